package models

import (
	"time"

	"github.com/gofrs/uuid"
)

type ActivityAction string

const (
	ActionSubmission     ActivityAction = "SUBMISSION"
	ActionLateSubmission ActivityAction = "LATE_SUBMISSION"
	ActionTaskCreated    ActivityAction = "TASK_CREATED"
	ActionTaskDeleted    ActivityAction = "TASK_DELETED"
	ActionTaskVerified   ActivityAction = "TASK_VERIFIED"
	ActionMemberApproved ActivityAction = "MEMBER_APPROVED"
	ActionMemberRejected ActivityAction = "MEMBER_REJECTED"
)

// ActivityLog is an append-only, human-readable record of notable actions.
// UserName is denormalized at write time so the feed stays stable if the
// account is later renamed or removed.
type ActivityLog struct {
	ID          uuid.UUID      `json:"id" gorm:"primaryKey;type:uuid"`
	UserID      uuid.UUID      `json:"user_id" gorm:"type:uuid;not null"`
	UserName    string         `json:"user_name"`
	Action      ActivityAction `json:"action" gorm:"type:varchar(32);not null"`
	ActionType  string         `json:"action_type"`
	Description string         `json:"description"`
	GroupID     *uuid.UUID     `json:"group_id,omitempty" gorm:"type:uuid;index"`
	Metadata    string         `json:"metadata" gorm:"type:text"`
	CreatedAt   time.Time      `json:"created_at"`
}

// SubmissionMetadata is the shape serialized into ActivityLog.Metadata for
// submission events.
type SubmissionMetadata struct {
	TaskID            uuid.UUID  `json:"task_id"`
	TaskTitle         string     `json:"task_title"`
	Deadline          *time.Time `json:"deadline,omitempty"`
	IsLate            bool       `json:"is_late"`
	LateHours         int        `json:"late_hours"`
	SubmittedByLeader bool       `json:"submitted_by_leader"`
}
