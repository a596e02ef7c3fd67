package models

import (
	"time"

	"github.com/gofrs/uuid"
)

// SubmissionHistory is the append-only ledger of accepted submissions. Rows
// are immutable once created; they are only ever removed by the deletion
// orchestrator when the parent task goes away. The task row's current links
// are a last-write-wins cache, this table is the source of truth for what was
// submitted and by whom.
type SubmissionHistory struct {
	ID              uuid.UUID       `json:"id" gorm:"primaryKey;type:uuid"`
	TaskID          uuid.UUID       `json:"task_id" gorm:"type:uuid;not null;index"`
	UserID          uuid.UUID       `json:"user_id" gorm:"type:uuid;not null"`
	SubmissionLinks SubmissionLinks `json:"submission_links" gorm:"type:text"`
	Note            string          `json:"note"`
	SubmittedAt     time.Time       `json:"submitted_at" gorm:"not null"`

	User User `json:"user,omitempty" gorm:"foreignKey:UserID"`
}
