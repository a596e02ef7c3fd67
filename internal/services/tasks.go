package services

import (
	"context"
	"errors"
	"time"

	"group-tracker/backend/internal/models"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

// Deletion step names surfaced inside StepError. Children are removed before
// the parent so no orphaned row becomes visible, even transiently; the store
// has no cascade of its own.
const (
	StepAssignments = "task_assignments"
	StepScores      = "task_scores"
	StepHistory     = "submission_history"
	StepTask        = "task"
)

type TaskService interface {
	CreateTask(ctx context.Context, task models.Task, assigneeIDs []uuid.UUID) (models.Task, error)
	GetTaskByID(ctx context.Context, id uuid.UUID) (models.Task, error)
	GetTasksByGroup(ctx context.Context, groupID uuid.UUID) ([]models.Task, error)
	UpdateTask(ctx context.Context, id uuid.UUID, updated models.Task) error
	AssignUser(ctx context.Context, taskID, userID uuid.UUID) error
	UnassignUser(ctx context.Context, taskID, userID uuid.UUID) error
	GradeTask(ctx context.Context, score models.TaskScore) (models.TaskScore, error)
	DeleteTask(ctx context.Context, id uuid.UUID) error
}

type TaskServiceImpl struct {
	db       *gorm.DB
	activity ActivityService
}

func NewTaskService(db *gorm.DB, activity ActivityService) *TaskServiceImpl {
	return &TaskServiceImpl{db: db, activity: activity}
}

func (s *TaskServiceImpl) CreateTask(ctx context.Context, task models.Task, assigneeIDs []uuid.UUID) (models.Task, error) {
	if task.ID == uuid.Nil {
		task.ID = uuid.Must(uuid.NewV4())
	}
	if task.Status == "" {
		task.Status = models.StatusTodo
	}
	if !task.Status.IsValid() {
		return models.Task{}, ErrInvalidStatus
	}
	if task.SubmissionLinks == nil {
		task.SubmissionLinks = models.SubmissionLinks{}
	}

	if err := s.db.WithContext(ctx).Create(&task).Error; err != nil {
		return models.Task{}, err
	}

	for _, userID := range assigneeIDs {
		assignment := models.TaskAssignment{
			ID:        uuid.Must(uuid.NewV4()),
			TaskID:    task.ID,
			UserID:    userID,
			CreatedAt: time.Now(),
		}
		if err := s.db.WithContext(ctx).Create(&assignment).Error; err != nil {
			return task, err
		}
	}

	groupID := task.GroupID
	_ = s.activity.Record(ctx, models.ActivityLog{
		UserID:      task.CreatedBy,
		Action:      models.ActionTaskCreated,
		ActionType:  "task",
		Description: "created task " + task.Title,
		GroupID:     &groupID,
	})

	return task, nil
}

func (s *TaskServiceImpl) GetTaskByID(ctx context.Context, id uuid.UUID) (models.Task, error) {
	var task models.Task
	err := s.db.WithContext(ctx).
		Preload("Assignments").
		Where("id = ?", id).
		First(&task).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return task, ErrTaskNotFound
	}
	return task, err
}

func (s *TaskServiceImpl) GetTasksByGroup(ctx context.Context, groupID uuid.UUID) ([]models.Task, error) {
	var tasks []models.Task
	err := s.db.WithContext(ctx).
		Preload("Assignments").
		Where("group_id = ?", groupID).
		Order("created_at ASC").
		Find(&tasks).Error
	return tasks, err
}

// UpdateTask edits task metadata (title, description, deadline, stage). The
// submission path never goes through here; status and links are owned by the
// submission service.
func (s *TaskServiceImpl) UpdateTask(ctx context.Context, id uuid.UUID, updated models.Task) error {
	updates := map[string]interface{}{}
	if updated.Title != "" {
		updates["title"] = updated.Title
	}
	if updated.Description != "" {
		updates["description"] = updated.Description
	}
	if updated.Deadline != nil {
		updates["deadline"] = updated.Deadline
	}
	if updated.StageID != nil {
		updates["stage_id"] = updated.StageID
	}
	if len(updates) == 0 {
		return nil
	}

	res := s.db.WithContext(ctx).Model(&models.Task{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrTaskNotFound
	}
	return nil
}

func (s *TaskServiceImpl) AssignUser(ctx context.Context, taskID, userID uuid.UUID) error {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.TaskAssignment{}).
		Where("task_id = ? AND user_id = ?", taskID, userID).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	assignment := models.TaskAssignment{
		ID:        uuid.Must(uuid.NewV4()),
		TaskID:    taskID,
		UserID:    userID,
		CreatedAt: time.Now(),
	}
	return s.db.WithContext(ctx).Create(&assignment).Error
}

func (s *TaskServiceImpl) UnassignUser(ctx context.Context, taskID, userID uuid.UUID) error {
	return s.db.WithContext(ctx).
		Where("task_id = ? AND user_id = ?", taskID, userID).
		Delete(&models.TaskAssignment{}).Error
}

func (s *TaskServiceImpl) GradeTask(ctx context.Context, score models.TaskScore) (models.TaskScore, error) {
	if score.ID == uuid.Nil {
		score.ID = uuid.Must(uuid.NewV4())
	}
	err := s.db.WithContext(ctx).Create(&score).Error
	return score, err
}

// DeleteTask removes a task and everything that hangs off it, children
// first: assignments, scores, ledger entries, then the task row. The first
// failing step aborts the sequence and is named in the returned error;
// already-committed steps stay committed. Re-invoking is safe because
// deleting already-absent rows is not an error.
func (s *TaskServiceImpl) DeleteTask(ctx context.Context, id uuid.UUID) error {
	db := s.db.WithContext(ctx)

	var task models.Task
	found := db.Where("id = ?", id).First(&task).Error == nil

	if err := db.Where("task_id = ?", id).Delete(&models.TaskAssignment{}).Error; err != nil {
		return &StepError{Step: StepAssignments, Err: err}
	}
	if err := db.Where("task_id = ?", id).Delete(&models.TaskScore{}).Error; err != nil {
		return &StepError{Step: StepScores, Err: err}
	}
	if err := db.Where("task_id = ?", id).Delete(&models.SubmissionHistory{}).Error; err != nil {
		return &StepError{Step: StepHistory, Err: err}
	}
	if err := db.Where("id = ?", id).Delete(&models.Task{}).Error; err != nil {
		return &StepError{Step: StepTask, Err: err}
	}

	if found {
		groupID := task.GroupID
		_ = s.activity.Record(ctx, models.ActivityLog{
			UserID:      task.CreatedBy,
			Action:      models.ActionTaskDeleted,
			ActionType:  "task",
			Description: "deleted task " + task.Title,
			GroupID:     &groupID,
		})
	}
	return nil
}
