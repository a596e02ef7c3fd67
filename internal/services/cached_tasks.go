package services

import (
	"context"
	"fmt"
	"time"

	"group-tracker/backend/internal/cache"
	"group-tracker/backend/internal/models"

	"github.com/gofrs/uuid"
)

// CachedTaskService decorates a TaskService with read-through caching. Task
// and group-listing reads are served from cache when warm; every mutation
// invalidates the affected keys. Submissions bypass this layer entirely, so
// the projection cache is also invalidated by the submission handler.
type CachedTaskService struct {
	tasks TaskService
	cache cache.Cache
}

func NewCachedTaskService(tasks TaskService, cacheInstance cache.Cache) *CachedTaskService {
	return &CachedTaskService{tasks: tasks, cache: cacheInstance}
}

func taskKey(id uuid.UUID) string {
	return fmt.Sprintf("task:%s", id.String())
}

func groupTasksKey(groupID uuid.UUID) string {
	return fmt.Sprintf("group_tasks:%s", groupID.String())
}

func (s *CachedTaskService) CreateTask(ctx context.Context, task models.Task, assigneeIDs []uuid.UUID) (models.Task, error) {
	created, err := s.tasks.CreateTask(ctx, task, assigneeIDs)
	if err != nil {
		return created, err
	}

	s.cache.Set(taskKey(created.ID), created, 30*time.Minute)
	s.cache.Delete(groupTasksKey(created.GroupID))
	return created, nil
}

func (s *CachedTaskService) GetTaskByID(ctx context.Context, id uuid.UUID) (models.Task, error) {
	var cached models.Task
	if err := s.cache.Get(taskKey(id), &cached); err == nil {
		return cached, nil
	}

	task, err := s.tasks.GetTaskByID(ctx, id)
	if err != nil {
		return task, err
	}

	s.cache.Set(taskKey(id), task, 30*time.Minute)
	return task, nil
}

func (s *CachedTaskService) GetTasksByGroup(ctx context.Context, groupID uuid.UUID) ([]models.Task, error) {
	var cached []models.Task
	if err := s.cache.Get(groupTasksKey(groupID), &cached); err == nil {
		return cached, nil
	}

	tasks, err := s.tasks.GetTasksByGroup(ctx, groupID)
	if err != nil {
		return tasks, err
	}

	s.cache.Set(groupTasksKey(groupID), tasks, 10*time.Minute)
	return tasks, nil
}

func (s *CachedTaskService) UpdateTask(ctx context.Context, id uuid.UUID, updated models.Task) error {
	if err := s.tasks.UpdateTask(ctx, id, updated); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	return nil
}

func (s *CachedTaskService) AssignUser(ctx context.Context, taskID, userID uuid.UUID) error {
	if err := s.tasks.AssignUser(ctx, taskID, userID); err != nil {
		return err
	}
	s.invalidate(ctx, taskID)
	return nil
}

func (s *CachedTaskService) UnassignUser(ctx context.Context, taskID, userID uuid.UUID) error {
	if err := s.tasks.UnassignUser(ctx, taskID, userID); err != nil {
		return err
	}
	s.invalidate(ctx, taskID)
	return nil
}

func (s *CachedTaskService) GradeTask(ctx context.Context, score models.TaskScore) (models.TaskScore, error) {
	return s.tasks.GradeTask(ctx, score)
}

func (s *CachedTaskService) DeleteTask(ctx context.Context, id uuid.UUID) error {
	task, getErr := s.tasks.GetTaskByID(ctx, id)

	if err := s.tasks.DeleteTask(ctx, id); err != nil {
		return err
	}

	s.cache.Delete(taskKey(id))
	if getErr == nil {
		s.cache.Delete(groupTasksKey(task.GroupID))
	}
	return nil
}

// InvalidateTask drops the cached projection for a task, e.g. after a
// submission overwrote it outside this decorator.
func (s *CachedTaskService) InvalidateTask(ctx context.Context, id uuid.UUID) {
	s.invalidate(ctx, id)
}

func (s *CachedTaskService) invalidate(ctx context.Context, id uuid.UUID) {
	s.cache.Delete(taskKey(id))

	if task, err := s.tasks.GetTaskByID(ctx, id); err == nil {
		s.cache.Delete(groupTasksKey(task.GroupID))
	} else {
		s.cache.DeletePattern("group_tasks:*")
	}
}
