package services

import (
	"math"
	"time"

	"group-tracker/backend/internal/models"
)

// OnBehalfNote is the ledger note recorded when a leader submits for an
// assignee after the deadline and leaves the note blank.
const OnBehalfNote = "Leader nộp thay"

// SubmissionInput is everything the submission policy looks at. It is
// assembled by the caller from the task row and the resolved capabilities;
// the policy itself performs no I/O.
type SubmissionInput struct {
	Now             time.Time
	Deadline        *time.Time
	IsAssignee      bool
	IsLeaderOrAdmin bool
}

type SubmissionDecision struct {
	CanSubmit bool
	IsOverdue bool
	// OnBehalf marks a leader/admin recording late work for a task they
	// are not assigned to. Such submissions must stay distinguishable from
	// on-time self-submissions in the ledger and audit trail.
	OnBehalf  bool
	LateHours int
}

// EvaluateSubmission decides whether a submission is permitted and under what
// label. A missing deadline means the task is never overdue, so only the
// assignee/leader check applies. A leader who is also the assignee submitting
// late is a normal late submission, not an on-behalf one.
func EvaluateSubmission(in SubmissionInput) SubmissionDecision {
	d := SubmissionDecision{}

	d.IsOverdue = in.Deadline != nil && in.Now.After(*in.Deadline)
	d.CanSubmit = in.IsLeaderOrAdmin || (in.IsAssignee && !d.IsOverdue)
	d.OnBehalf = in.IsLeaderOrAdmin && !in.IsAssignee && d.IsOverdue

	if d.IsOverdue {
		d.LateHours = lateHours(in.Now, *in.Deadline)
	}
	return d
}

// CanSetStatus gates status values on top of the submission decision: only a
// leader/admin may mark a task VERIFIED, every other value needs no extra
// check.
func CanSetStatus(status models.TaskStatus, isLeaderOrAdmin bool) bool {
	if status == models.StatusVerified {
		return isLeaderOrAdmin
	}
	return true
}

func lateHours(now, deadline time.Time) int {
	h := int(math.Round(now.Sub(deadline).Hours()))
	if h < 0 {
		return 0
	}
	return h
}
