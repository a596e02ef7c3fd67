package handlers

import (
	"net/http"
	"strconv"

	"group-tracker/backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
)

type ActivityHandler struct {
	activity services.ActivityService
}

func NewActivityHandler(activity services.ActivityService) *ActivityHandler {
	return &ActivityHandler{activity: activity}
}

// Feed returns the newest activity rows for a group. Read-only; the engine
// appends rows elsewhere and never edits them.
func (h *ActivityHandler) Feed(c *gin.Context) {
	groupID, err := uuid.FromString(c.Param("group_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group id"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	entries, err := h.activity.ListByGroup(c.Request.Context(), groupID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load activity feed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"activity": entries, "total": len(entries)})
}
