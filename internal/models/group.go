package models

import (
	"time"

	"github.com/gofrs/uuid"
)

type GroupRole string

const (
	RoleMember GroupRole = "member"
	RoleLeader GroupRole = "leader"
	RoleAdmin  GroupRole = "admin"
)

// IsElevated reports whether the role may act for other members of the group.
func (r GroupRole) IsElevated() bool {
	return r == RoleLeader || r == RoleAdmin
}

type Group struct {
	ID          uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	Name        string    `json:"name" gorm:"not null"`
	Description string    `json:"description"`
	CreatedBy   uuid.UUID `json:"created_by" gorm:"type:uuid"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Memberships []GroupMembership `json:"memberships,omitempty" gorm:"foreignKey:GroupID"`
	Stages      []Stage           `json:"stages,omitempty" gorm:"foreignKey:GroupID"`
	Tasks       []Task            `json:"tasks,omitempty" gorm:"foreignKey:GroupID"`
}

// GroupMembership binds a user to a group with a per-group role. A user's
// global admin flag overrides whatever role is recorded here.
type GroupMembership struct {
	ID        uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	GroupID   uuid.UUID `json:"group_id" gorm:"type:uuid;not null;index"`
	UserID    uuid.UUID `json:"user_id" gorm:"type:uuid;not null;index"`
	Role      GroupRole `json:"role" gorm:"type:varchar(16);not null;default:'member'"`
	JoinedAt  time.Time `json:"joined_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Group Group `json:"group,omitempty" gorm:"foreignKey:GroupID"`
	User  User  `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

// Stage is an ordered phase inside a group; tasks may optionally belong to
// one.
type Stage struct {
	ID        uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	GroupID   uuid.UUID `json:"group_id" gorm:"type:uuid;not null;index"`
	Name      string    `json:"name" gorm:"not null"`
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StageScore is a per-member grade for a whole stage, independent of the
// per-task scores.
type StageScore struct {
	ID        uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	StageID   uuid.UUID `json:"stage_id" gorm:"type:uuid;not null;index"`
	UserID    uuid.UUID `json:"user_id" gorm:"type:uuid;not null"`
	Score     float64   `json:"score"`
	GradedBy  uuid.UUID `json:"graded_by" gorm:"type:uuid"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalAccepted ApprovalStatus = "accepted"
	ApprovalRejected ApprovalStatus = "rejected"
)

// PendingApproval is a join request waiting on a leader's decision.
type PendingApproval struct {
	ID          uuid.UUID      `json:"id" gorm:"primaryKey;type:uuid"`
	GroupID     uuid.UUID      `json:"group_id" gorm:"type:uuid;not null;index"`
	UserID      uuid.UUID      `json:"user_id" gorm:"type:uuid;not null"`
	Status      ApprovalStatus `json:"status" gorm:"type:varchar(16);not null;default:'pending'"`
	Message     string         `json:"message"`
	RequestedAt time.Time      `json:"requested_at"`
	DecidedBy   *uuid.UUID     `json:"decided_by,omitempty" gorm:"type:uuid"`
	DecidedAt   *time.Time     `json:"decided_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}
