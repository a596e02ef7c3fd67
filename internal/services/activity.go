package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"group-tracker/backend/internal/models"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

type ActivityService interface {
	Record(ctx context.Context, entry models.ActivityLog) error
	RecordSubmission(ctx context.Context, actor models.User, task models.Task, decision SubmissionDecision) error
	ListByGroup(ctx context.Context, groupID uuid.UUID, limit int) ([]models.ActivityLog, error)
}

type ActivityServiceImpl struct {
	db *gorm.DB
}

func NewActivityService(db *gorm.DB) ActivityService {
	return &ActivityServiceImpl{db: db}
}

// Record appends one activity row. Every append is an independent insert
// keyed by a fresh id, so concurrent writers never lose entries.
func (s *ActivityServiceImpl) Record(ctx context.Context, entry models.ActivityLog) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.Must(uuid.NewV4())
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	return s.db.WithContext(ctx).Create(&entry).Error
}

func (s *ActivityServiceImpl) RecordSubmission(ctx context.Context, actor models.User, task models.Task, decision SubmissionDecision) error {
	action := models.ActionSubmission
	description := fmt.Sprintf("%s submitted %q", actor.Name(), task.Title)
	if decision.IsOverdue {
		action = models.ActionLateSubmission
		description = fmt.Sprintf("%s submitted %q %dh past the deadline", actor.Name(), task.Title, decision.LateHours)
	}

	meta := models.SubmissionMetadata{
		TaskID:            task.ID,
		TaskTitle:         task.Title,
		Deadline:          task.Deadline,
		IsLate:            decision.IsOverdue,
		LateHours:         decision.LateHours,
		SubmittedByLeader: decision.OnBehalf,
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to encode submission metadata: %w", err)
	}

	groupID := task.GroupID
	return s.Record(ctx, models.ActivityLog{
		UserID:      actor.ID,
		UserName:    actor.Name(),
		Action:      action,
		ActionType:  "task",
		Description: description,
		GroupID:     &groupID,
		Metadata:    string(metaJSON),
	})
}

func (s *ActivityServiceImpl) ListByGroup(ctx context.Context, groupID uuid.UUID, limit int) ([]models.ActivityLog, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var entries []models.ActivityLog
	err := s.db.WithContext(ctx).
		Where("group_id = ?", groupID).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}
