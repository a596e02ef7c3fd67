package services

import (
	"context"
	"errors"
	"time"

	"group-tracker/backend/internal/models"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

// Group deletion step names, in the order the cascade runs them.
const (
	StepGroupTasks   = "tasks"
	StepStageScores  = "stage_scores"
	StepStages       = "stages"
	StepApprovals    = "pending_approvals"
	StepMemberships  = "memberships"
	StepActivityLogs = "activity_logs"
	StepGroup        = "group"
)

type GroupService interface {
	CreateGroup(ctx context.Context, name, description string, creatorID uuid.UUID) (models.Group, error)
	GetGroupByID(ctx context.Context, id uuid.UUID) (models.Group, error)
	ListMembers(ctx context.Context, groupID uuid.UUID) ([]models.GroupMembership, error)
	ChangeRole(ctx context.Context, groupID, userID uuid.UUID, role models.GroupRole) error

	RequestJoin(ctx context.Context, groupID, userID uuid.UUID, message string) (models.PendingApproval, error)
	GetApproval(ctx context.Context, approvalID uuid.UUID) (models.PendingApproval, error)
	DecideApproval(ctx context.Context, approvalID, deciderID uuid.UUID, accept bool) error

	CreateStage(ctx context.Context, stage models.Stage) (models.Stage, error)
	ListStages(ctx context.Context, groupID uuid.UUID) ([]models.Stage, error)
	GradeStage(ctx context.Context, score models.StageScore) (models.StageScore, error)

	DeleteGroup(ctx context.Context, groupID uuid.UUID) error
}

type GroupServiceImpl struct {
	db       *gorm.DB
	tasks    TaskService
	activity ActivityService
}

func NewGroupService(db *gorm.DB, tasks TaskService, activity ActivityService) *GroupServiceImpl {
	return &GroupServiceImpl{db: db, tasks: tasks, activity: activity}
}

func (s *GroupServiceImpl) CreateGroup(ctx context.Context, name, description string, creatorID uuid.UUID) (models.Group, error) {
	group := models.Group{
		ID:          uuid.Must(uuid.NewV4()),
		Name:        name,
		Description: description,
		CreatedBy:   creatorID,
	}
	if err := s.db.WithContext(ctx).Create(&group).Error; err != nil {
		return models.Group{}, err
	}

	membership := models.GroupMembership{
		ID:       uuid.Must(uuid.NewV4()),
		GroupID:  group.ID,
		UserID:   creatorID,
		Role:     models.RoleLeader,
		JoinedAt: time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(&membership).Error; err != nil {
		return group, err
	}
	return group, nil
}

func (s *GroupServiceImpl) GetGroupByID(ctx context.Context, id uuid.UUID) (models.Group, error) {
	var group models.Group
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&group).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return group, ErrGroupNotFound
	}
	return group, err
}

func (s *GroupServiceImpl) ListMembers(ctx context.Context, groupID uuid.UUID) ([]models.GroupMembership, error) {
	var memberships []models.GroupMembership
	err := s.db.WithContext(ctx).
		Preload("User").
		Where("group_id = ?", groupID).
		Find(&memberships).Error
	return memberships, err
}

func (s *GroupServiceImpl) ChangeRole(ctx context.Context, groupID, userID uuid.UUID, role models.GroupRole) error {
	res := s.db.WithContext(ctx).
		Model(&models.GroupMembership{}).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		Update("role", role)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (s *GroupServiceImpl) RequestJoin(ctx context.Context, groupID, userID uuid.UUID, message string) (models.PendingApproval, error) {
	var existing models.PendingApproval
	err := s.db.WithContext(ctx).
		Where("group_id = ? AND user_id = ? AND status = ?", groupID, userID, models.ApprovalPending).
		First(&existing).Error
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.PendingApproval{}, err
	}

	approval := models.PendingApproval{
		ID:          uuid.Must(uuid.NewV4()),
		GroupID:     groupID,
		UserID:      userID,
		Status:      models.ApprovalPending,
		Message:     message,
		RequestedAt: time.Now(),
	}
	err = s.db.WithContext(ctx).Create(&approval).Error
	return approval, err
}

func (s *GroupServiceImpl) GetApproval(ctx context.Context, approvalID uuid.UUID) (models.PendingApproval, error) {
	var approval models.PendingApproval
	err := s.db.WithContext(ctx).Where("id = ?", approvalID).First(&approval).Error
	return approval, err
}

func (s *GroupServiceImpl) DecideApproval(ctx context.Context, approvalID, deciderID uuid.UUID, accept bool) error {
	var approval models.PendingApproval
	err := s.db.WithContext(ctx).Where("id = ?", approvalID).First(&approval).Error
	if err != nil {
		return err
	}
	if approval.Status != models.ApprovalPending {
		return errors.New("approval already decided")
	}

	now := time.Now()
	status := models.ApprovalRejected
	action := models.ActionMemberRejected
	if accept {
		status = models.ApprovalAccepted
		action = models.ActionMemberApproved
	}

	err = s.db.WithContext(ctx).Model(&approval).Updates(map[string]interface{}{
		"status":     status,
		"decided_by": deciderID,
		"decided_at": now,
	}).Error
	if err != nil {
		return err
	}

	if accept {
		membership := models.GroupMembership{
			ID:       uuid.Must(uuid.NewV4()),
			GroupID:  approval.GroupID,
			UserID:   approval.UserID,
			Role:     models.RoleMember,
			JoinedAt: now,
		}
		if err := s.db.WithContext(ctx).Create(&membership).Error; err != nil {
			return err
		}
	}

	groupID := approval.GroupID
	var decider models.User
	if err := s.db.WithContext(ctx).Where("id = ?", deciderID).First(&decider).Error; err == nil {
		_ = s.activity.Record(ctx, models.ActivityLog{
			UserID:     decider.ID,
			UserName:   decider.Name(),
			Action:     action,
			ActionType: "membership",
			GroupID:    &groupID,
		})
	}
	return nil
}

func (s *GroupServiceImpl) CreateStage(ctx context.Context, stage models.Stage) (models.Stage, error) {
	if stage.ID == uuid.Nil {
		stage.ID = uuid.Must(uuid.NewV4())
	}
	err := s.db.WithContext(ctx).Create(&stage).Error
	return stage, err
}

func (s *GroupServiceImpl) ListStages(ctx context.Context, groupID uuid.UUID) ([]models.Stage, error) {
	var stages []models.Stage
	err := s.db.WithContext(ctx).
		Where("group_id = ?", groupID).
		Order("position ASC").
		Find(&stages).Error
	return stages, err
}

// GradeStage upserts a member's score for a whole stage, independent of any
// per-task scores.
func (s *GroupServiceImpl) GradeStage(ctx context.Context, score models.StageScore) (models.StageScore, error) {
	var existing models.StageScore
	err := s.db.WithContext(ctx).
		Where("stage_id = ? AND user_id = ?", score.StageID, score.UserID).
		First(&existing).Error
	if err == nil {
		err = s.db.WithContext(ctx).Model(&existing).Updates(map[string]interface{}{
			"score":     score.Score,
			"graded_by": score.GradedBy,
		}).Error
		existing.Score = score.Score
		existing.GradedBy = score.GradedBy
		return existing, err
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.StageScore{}, err
	}

	if score.ID == uuid.Nil {
		score.ID = uuid.Must(uuid.NewV4())
	}
	err = s.db.WithContext(ctx).Create(&score).Error
	return score, err
}

// DeleteGroup purges a group and everything under it. Order: per-task
// dependents for every task, then tasks, stage scores, stages, pending
// approvals, memberships, activity logs, and finally the group row. Same
// failure semantics as task deletion: stop at the first failing step, name
// it, keep whatever already committed.
func (s *GroupServiceImpl) DeleteGroup(ctx context.Context, groupID uuid.UUID) error {
	db := s.db.WithContext(ctx)

	var taskIDs []uuid.UUID
	err := db.Model(&models.Task{}).
		Where("group_id = ?", groupID).
		Pluck("id", &taskIDs).Error
	if err != nil {
		return &StepError{Step: StepGroupTasks, Err: err}
	}

	for _, taskID := range taskIDs {
		if err := s.tasks.DeleteTask(ctx, taskID); err != nil {
			return err
		}
	}

	// listing stage ids is part of the stage-score step; its failure must
	// not be reported as the later stage-row step
	var stageIDs []uuid.UUID
	err = db.Model(&models.Stage{}).
		Where("group_id = ?", groupID).
		Pluck("id", &stageIDs).Error
	if err != nil {
		return &StepError{Step: StepStageScores, Err: err}
	}

	if len(stageIDs) > 0 {
		if err := db.Where("stage_id IN ?", stageIDs).Delete(&models.StageScore{}).Error; err != nil {
			return &StepError{Step: StepStageScores, Err: err}
		}
	}
	if err := db.Where("group_id = ?", groupID).Delete(&models.Stage{}).Error; err != nil {
		return &StepError{Step: StepStages, Err: err}
	}
	if err := db.Where("group_id = ?", groupID).Delete(&models.PendingApproval{}).Error; err != nil {
		return &StepError{Step: StepApprovals, Err: err}
	}
	if err := db.Where("group_id = ?", groupID).Delete(&models.GroupMembership{}).Error; err != nil {
		return &StepError{Step: StepMemberships, Err: err}
	}
	if err := db.Where("group_id = ?", groupID).Delete(&models.ActivityLog{}).Error; err != nil {
		return &StepError{Step: StepActivityLogs, Err: err}
	}
	if err := db.Where("id = ?", groupID).Delete(&models.Group{}).Error; err != nil {
		return &StepError{Step: StepGroup, Err: err}
	}
	return nil
}
