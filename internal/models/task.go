package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
)

type TaskStatus string

const (
	StatusTodo       TaskStatus = "TODO"
	StatusInProgress TaskStatus = "IN_PROGRESS"
	StatusDone       TaskStatus = "DONE"
	StatusVerified   TaskStatus = "VERIFIED"
)

func (s TaskStatus) IsValid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone, StatusVerified:
		return true
	}
	return false
}

// SubmissionLink is one deliverable attached to a submission.
type SubmissionLink struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// SubmissionLinks is an ordered list of deliverables persisted as a single
// JSON text column. The task projection and ledger snapshots share this
// encoding.
type SubmissionLinks []SubmissionLink

func (l SubmissionLinks) Value() (driver.Value, error) {
	if l == nil {
		l = SubmissionLinks{}
	}
	data, err := json.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("failed to encode submission links: %w", err)
	}
	return string(data), nil
}

func (l *SubmissionLinks) Scan(value interface{}) error {
	if value == nil {
		*l = SubmissionLinks{}
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.New("submission links column is not text")
	}

	if len(data) == 0 {
		*l = SubmissionLinks{}
		return nil
	}
	return json.Unmarshal(data, l)
}

// HasContent reports whether at least one link carries a non-blank URL.
func (l SubmissionLinks) HasContent() bool {
	for _, link := range l {
		if link.URL != "" {
			return true
		}
	}
	return false
}

type Task struct {
	ID              uuid.UUID       `json:"id" gorm:"primaryKey;type:uuid"`
	GroupID         uuid.UUID       `json:"group_id" gorm:"type:uuid;not null;index"`
	StageID         *uuid.UUID      `json:"stage_id,omitempty" gorm:"type:uuid"`
	Title           string          `json:"title" gorm:"not null"`
	Description     string          `json:"description"`
	Status          TaskStatus      `json:"status" gorm:"type:varchar(16);not null;default:'TODO'"`
	Deadline        *time.Time      `json:"deadline,omitempty"`
	SubmissionLinks SubmissionLinks `json:"submission_links" gorm:"type:text"`
	CreatedBy       uuid.UUID       `json:"created_by" gorm:"type:uuid"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`

	Assignments []TaskAssignment `json:"assignments,omitempty" gorm:"foreignKey:TaskID"`
}

// IsOverdue reports whether now is past the deadline. Tasks without a
// deadline are never overdue.
func (t *Task) IsOverdue(now time.Time) bool {
	return t.Deadline != nil && now.After(*t.Deadline)
}

type TaskAssignment struct {
	ID        uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	TaskID    uuid.UUID `json:"task_id" gorm:"type:uuid;not null;index"`
	UserID    uuid.UUID `json:"user_id" gorm:"type:uuid;not null;index"`
	CreatedAt time.Time `json:"created_at"`

	Task Task `json:"task,omitempty" gorm:"foreignKey:TaskID"`
	User User `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

type TaskScore struct {
	ID        uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	TaskID    uuid.UUID `json:"task_id" gorm:"type:uuid;not null;index"`
	UserID    uuid.UUID `json:"user_id" gorm:"type:uuid;not null"`
	Score     float64   `json:"score"`
	Feedback  string    `json:"feedback"`
	GradedBy  uuid.UUID `json:"graded_by" gorm:"type:uuid"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
