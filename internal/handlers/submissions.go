package handlers

import (
	"context"
	"errors"
	"net/http"

	"group-tracker/backend/internal/middleware"
	"group-tracker/backend/internal/models"
	"group-tracker/backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
)

// TaskInvalidator drops cached task projections after a write that bypassed
// the caching decorator.
type TaskInvalidator interface {
	InvalidateTask(ctx context.Context, id uuid.UUID)
}

type SubmissionHandler struct {
	submissions services.SubmissionService
	invalidator TaskInvalidator
}

func NewSubmissionHandler(submissions services.SubmissionService, invalidator TaskInvalidator) *SubmissionHandler {
	return &SubmissionHandler{submissions: submissions, invalidator: invalidator}
}

type submitInput struct {
	Links     []models.SubmissionLink `json:"links" binding:"required"`
	Note      string                  `json:"note"`
	NewStatus models.TaskStatus       `json:"new_status"`
}

// Submit accepts deliverable links for a task. The response distinguishes
// full success from partial success: the ledger, audit and projection writes
// are independent, and the client is told exactly which ones landed.
func (h *SubmissionHandler) Submit(c *gin.Context) {
	userID, err := middleware.UserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	taskID, err := uuid.FromString(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid task id"})
		return
	}

	var input submitInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.submissions.Submit(c.Request.Context(), services.SubmitRequest{
		TaskID:    taskID,
		UserID:    userID,
		Links:     models.SubmissionLinks(input.Links),
		Note:      input.Note,
		NewStatus: input.NewStatus,
	})
	if err != nil && result == nil {
		handleSubmissionError(c, err)
		return
	}

	// the projection write bypassed the caching decorator
	if h.invalidator != nil {
		h.invalidator.InvalidateTask(c.Request.Context(), taskID)
	}

	body := gin.H{
		"is_late":          result.Decision.IsOverdue,
		"late_hours":       result.Decision.LateHours,
		"on_behalf":        result.Decision.OnBehalf,
		"projection_saved": result.ProjectionSaved,
		"history_saved":    result.HistorySaved,
		"audit_saved":      result.AuditSaved,
	}
	if !result.AllSaved() {
		body["message"] = "submission partially recorded; some writes failed"
		c.JSON(http.StatusMultiStatus, body)
		return
	}
	c.JSON(http.StatusOK, body)
}

func (h *SubmissionHandler) SetStatus(c *gin.Context) {
	userID, err := middleware.UserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	taskID, err := uuid.FromString(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid task id"})
		return
	}

	var input struct {
		Status models.TaskStatus `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.submissions.SetStatus(c.Request.Context(), taskID, userID, input.Status); err != nil {
		handleSubmissionError(c, err)
		return
	}
	if h.invalidator != nil {
		h.invalidator.InvalidateTask(c.Request.Context(), taskID)
	}
	c.JSON(http.StatusOK, gin.H{"message": "status updated"})
}

func (h *SubmissionHandler) History(c *gin.Context) {
	taskID, err := uuid.FromString(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid task id"})
		return
	}

	entries, err := h.submissions.History(c.Request.Context(), taskID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load submission history"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": entries, "total": len(entries)})
}

func handleSubmissionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrNotAuthorized):
		c.JSON(http.StatusForbidden, gin.H{
			"error":   "not_authorized",
			"message": "You are not allowed to submit to this task",
		})
	case errors.Is(err, services.ErrEmptyPayload):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "empty_payload",
			"message": "At least one link with a non-blank URL is required",
		})
	case errors.Is(err, services.ErrInvalidStatus):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_status"})
	case errors.Is(err, services.ErrTaskNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process submission"})
	}
}
