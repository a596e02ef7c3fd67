package services

import (
	"context"
	"errors"
	"log"
	"time"

	"group-tracker/backend/internal/models"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

type SubmitRequest struct {
	TaskID    uuid.UUID
	UserID    uuid.UUID
	Links     models.SubmissionLinks
	Note      string
	NewStatus models.TaskStatus
}

// SubmitResult reports the outcome of an accepted submission. The three
// writes behind it are independent and best-effort, so each one carries its
// own flag; a partial failure surfaces through Err while the flags tell the
// caller which writes landed.
type SubmitResult struct {
	Decision        SubmissionDecision
	ProjectionSaved bool
	HistorySaved    bool
	AuditSaved      bool
}

// AllSaved reports whether the projection, ledger and audit writes all
// succeeded.
func (r *SubmitResult) AllSaved() bool {
	return r.ProjectionSaved && r.HistorySaved && r.AuditSaved
}

type SubmissionService interface {
	Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error)
	SetStatus(ctx context.Context, taskID, userID uuid.UUID, status models.TaskStatus) error
	History(ctx context.Context, taskID uuid.UUID) ([]models.SubmissionHistory, error)
}

type SubmissionServiceImpl struct {
	db       *gorm.DB
	resolver RoleResolver
	activity ActivityService
	now      func() time.Time
}

func NewSubmissionService(db *gorm.DB, resolver RoleResolver, activity ActivityService) *SubmissionServiceImpl {
	return &SubmissionServiceImpl{
		db:       db,
		resolver: resolver,
		activity: activity,
		now:      time.Now,
	}
}

// Submit is the single gate every submission attempt passes through. On
// acceptance it overwrites the task projection, appends a ledger row and
// appends an audit row, in that order. The three writes are attempted
// independently: a failure in one does not stop the others, and the result
// reports which ones succeeded. There is deliberately no transaction around
// them; concurrent submissions race only on the projection row (last write
// wins) while the ledger keeps every accepted submission.
func (s *SubmissionServiceImpl) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	if req.NewStatus == "" {
		req.NewStatus = models.StatusDone
	}
	if !req.NewStatus.IsValid() {
		return nil, ErrInvalidStatus
	}
	if !req.Links.HasContent() {
		return nil, ErrEmptyPayload
	}

	var task models.Task
	err := s.db.WithContext(ctx).Where("id = ?", req.TaskID).First(&task).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}

	caps := s.resolver.ResolveCapabilities(ctx, req.UserID, task.GroupID, &req.TaskID)
	decision := EvaluateSubmission(SubmissionInput{
		Now:             s.now(),
		Deadline:        task.Deadline,
		IsAssignee:      caps.IsAssignee,
		IsLeaderOrAdmin: caps.IsLeaderOrAdmin,
	})
	if !decision.CanSubmit {
		return nil, ErrNotAuthorized
	}
	if !CanSetStatus(req.NewStatus, caps.IsLeaderOrAdmin) {
		return nil, ErrNotAuthorized
	}

	result := &SubmitResult{Decision: decision}
	var writeErrs []error

	// 1. projection: last write wins, it is only a cache of the current
	// state
	err = s.db.WithContext(ctx).Model(&models.Task{}).
		Where("id = ?", task.ID).
		Updates(map[string]interface{}{
			"submission_links": req.Links,
			"status":           req.NewStatus,
		}).Error
	if err != nil {
		writeErrs = append(writeErrs, err)
		log.Printf("submission: projection write failed for task %s: %v", task.ID, err)
	} else {
		result.ProjectionSaved = true
	}

	// 2. ledger: the authoritative record of who submitted what
	note := req.Note
	if decision.OnBehalf && note == "" {
		note = OnBehalfNote
	}
	entry := models.SubmissionHistory{
		ID:              uuid.Must(uuid.NewV4()),
		TaskID:          task.ID,
		UserID:          req.UserID,
		SubmissionLinks: req.Links,
		Note:            note,
		SubmittedAt:     s.now(),
	}
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		writeErrs = append(writeErrs, err)
		log.Printf("submission: ledger append failed for task %s: %v", task.ID, err)
	} else {
		result.HistorySaved = true
	}

	// 3. audit trail
	actor := models.User{ID: req.UserID}
	if err := s.db.WithContext(ctx).Where("id = ?", req.UserID).First(&actor).Error; err != nil {
		actor = models.User{ID: req.UserID, Username: req.UserID.String()}
	}
	if err := s.activity.RecordSubmission(ctx, actor, task, decision); err != nil {
		writeErrs = append(writeErrs, err)
		log.Printf("submission: audit append failed for task %s: %v", task.ID, err)
	} else {
		result.AuditSaved = true
	}

	return result, errors.Join(writeErrs...)
}

// SetStatus covers the non-submission status change path, e.g. an assignee
// moving a card. VERIFIED still requires a leader/admin; other values require
// being an assignee or a leader/admin of the group.
func (s *SubmissionServiceImpl) SetStatus(ctx context.Context, taskID, userID uuid.UUID, status models.TaskStatus) error {
	if !status.IsValid() {
		return ErrInvalidStatus
	}

	var task models.Task
	err := s.db.WithContext(ctx).Where("id = ?", taskID).First(&task).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTaskNotFound
		}
		return err
	}

	caps := s.resolver.ResolveCapabilities(ctx, userID, task.GroupID, &taskID)
	if !caps.IsAssignee && !caps.IsLeaderOrAdmin {
		return ErrNotAuthorized
	}
	if !CanSetStatus(status, caps.IsLeaderOrAdmin) {
		return ErrNotAuthorized
	}

	err = s.db.WithContext(ctx).Model(&models.Task{}).
		Where("id = ?", taskID).
		Update("status", status).Error
	if err != nil {
		return err
	}

	if status == models.StatusVerified {
		var actor models.User
		if err := s.db.WithContext(ctx).Where("id = ?", userID).First(&actor).Error; err == nil {
			groupID := task.GroupID
			_ = s.activity.Record(ctx, models.ActivityLog{
				UserID:      actor.ID,
				UserName:    actor.Name(),
				Action:      models.ActionTaskVerified,
				ActionType:  "task",
				Description: actor.Name() + " verified " + task.Title,
				GroupID:     &groupID,
			})
		}
	}
	return nil
}

func (s *SubmissionServiceImpl) History(ctx context.Context, taskID uuid.UUID) ([]models.SubmissionHistory, error) {
	var entries []models.SubmissionHistory
	err := s.db.WithContext(ctx).
		Where("task_id = ?", taskID).
		Order("submitted_at DESC").
		Find(&entries).Error
	return entries, err
}
