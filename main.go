package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"group-tracker/backend/internal/cache"
	"group-tracker/backend/internal/config"
	"group-tracker/backend/internal/handlers"
	"group-tracker/backend/internal/middleware"
	"group-tracker/backend/internal/monitoring"
	"group-tracker/backend/internal/repositories"
	"group-tracker/backend/internal/services"
	"group-tracker/backend/internal/worker"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := repositories.Connect(repositories.FromConfig(cfg))
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := repositories.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:         cfg.GetRedisAddr(),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		MaxRetries:   cfg.Redis.MaxRetries,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})

	taskCache := cache.NewMultiLevelCache(cache.NewRedisCacheWithClient(redisClient))
	defer taskCache.Close()

	// services
	resolver := services.NewRoleResolver(db)
	activityService := services.NewActivityService(db)
	taskService := services.NewTaskService(db, activityService)
	cachedTasks := services.NewCachedTaskService(taskService, taskCache)
	submissionService := services.NewSubmissionService(db, resolver, activityService)
	groupService := services.NewGroupService(db, taskService, activityService)
	authService := services.NewAuthService()
	registerService := services.NewRegisterService()

	// background jobs
	jobQueue := worker.NewJobQueue(redisClient)
	jobWorker := worker.NewWorker(worker.WorkerConfig{
		RedisClient:  redisClient,
		Concurrency:  cfg.Worker.Concurrency,
		PollInterval: cfg.Worker.PollInterval,
		Queues:       cfg.Worker.Queues,
	})
	jobWorker.RegisterHandler(worker.JobTypeDeadlineReminder, func(ctx context.Context, job *worker.Job) error {
		log.Printf("Deadline approaching for task %v (%v), due %v",
			job.Payload["task_id"], job.Payload["title"], job.Payload["deadline"])
		return nil
	})
	jobWorker.Start(cfg.Worker.Concurrency)
	defer jobWorker.Stop()

	registerHealthChecks(db, redisClient)

	router := setupRouter(cfg, db, resolver, activityService, cachedTasks, submissionService, groupService, authService, registerService, jobQueue)

	server := &http.Server{
		Addr:         cfg.GetServerAddr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Printf("Server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Forced shutdown: %v", err)
	}
	log.Println("Server stopped")
}

func setupRouter(
	cfg *config.Config,
	db *gorm.DB,
	resolver services.RoleResolver,
	activityService services.ActivityService,
	cachedTasks *services.CachedTaskService,
	submissionService services.SubmissionService,
	groupService services.GroupService,
	authService services.AuthService,
	registerService services.RegisterService,
	jobQueue *worker.JobQueue,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	router.Use(monitoring.MetricsMiddleware())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization")
	router.Use(cors.New(corsConfig))

	if cfg.RateLimit.Enabled {
		limiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerMin, cfg.RateLimit.BurstSize, cfg.RateLimit.CleanupInterval)
		router.Use(limiter.Middleware())
	}

	router.GET("/health", monitoring.HealthHandler)
	router.GET("/metrics", monitoring.MetricsHandler)

	authHandler := handlers.NewAuthHandler(db, authService)
	registerHandler := handlers.NewRegisterHandler(db, registerService)
	refreshHandler := handlers.NewRefreshHandler(db, authService)
	logoutHandler := handlers.NewLogoutHandler(db, authService)

	auth := router.Group("/auth")
	{
		auth.POST("/register", registerHandler.Register)
		auth.POST("/token", authHandler.Token)
		auth.POST("/refresh", refreshHandler.Refresh)
		auth.POST("/logout", logoutHandler.Logout)
	}

	taskHandler := handlers.NewTaskHandler(cachedTasks, resolver, jobQueue)
	submissionHandler := handlers.NewSubmissionHandler(submissionService, cachedTasks)
	groupHandler := handlers.NewGroupHandler(groupService, resolver)
	activityHandler := handlers.NewActivityHandler(activityService)

	api := router.Group("/api/v1")
	api.Use(middleware.AuthMiddleware())
	{
		api.POST("/groups", groupHandler.CreateGroup)
		api.GET("/groups/:group_id", groupHandler.GetGroup)
		api.DELETE("/groups/:group_id", middleware.RequireLeader(resolver), groupHandler.DeleteGroup)

		api.GET("/groups/:group_id/members", groupHandler.ListMembers)
		api.PUT("/groups/:group_id/members/:user_id/role", middleware.RequireLeader(resolver), groupHandler.ChangeRole)
		api.POST("/groups/:group_id/join", groupHandler.RequestJoin)
		api.POST("/approvals/:approval_id/decision", groupHandler.DecideApproval)

		api.POST("/groups/:group_id/stages", middleware.RequireLeader(resolver), groupHandler.CreateStage)
		api.GET("/groups/:group_id/stages", groupHandler.ListStages)
		api.POST("/groups/:group_id/stages/:stage_id/scores", middleware.RequireLeader(resolver), groupHandler.GradeStage)

		api.GET("/groups/:group_id/activity", activityHandler.Feed)

		api.POST("/groups/:group_id/tasks", taskHandler.CreateTask)
		api.GET("/groups/:group_id/tasks", taskHandler.GetTasksByGroup)

		api.GET("/tasks/:id", taskHandler.GetTaskByID)
		api.PUT("/tasks/:id", taskHandler.UpdateTask)
		api.DELETE("/tasks/:id", taskHandler.DeleteTask)
		api.POST("/tasks/:id/assignees", taskHandler.AssignUser)
		api.DELETE("/tasks/:id/assignees/:user_id", taskHandler.UnassignUser)
		api.POST("/tasks/:id/scores", taskHandler.GradeTask)

		api.POST("/tasks/:id/submit", submissionHandler.Submit)
		api.PATCH("/tasks/:id/status", submissionHandler.SetStatus)
		api.GET("/tasks/:id/history", submissionHandler.History)
	}

	return router
}

func registerHealthChecks(db *gorm.DB, redisClient *redis.Client) {
	monitoring.RegisterHealthCheck("database", func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	})
	monitoring.RegisterHealthCheck("redis", func(ctx context.Context) error {
		return redisClient.Ping(ctx).Err()
	})
}
