package handlers

import (
	"errors"
	"net/http"

	"group-tracker/backend/internal/middleware"
	"group-tracker/backend/internal/models"
	"group-tracker/backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

type GroupHandler struct {
	groups   services.GroupService
	resolver services.RoleResolver
}

func NewGroupHandler(groups services.GroupService, resolver services.RoleResolver) *GroupHandler {
	return &GroupHandler{groups: groups, resolver: resolver}
}

func (h *GroupHandler) CreateGroup(c *gin.Context) {
	userID, err := middleware.UserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var input struct {
		Name        string `json:"name" binding:"required"`
		Description string `json:"description"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	group, err := h.groups.CreateGroup(c.Request.Context(), input.Name, input.Description, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create group"})
		return
	}
	c.JSON(http.StatusCreated, group)
}

func (h *GroupHandler) GetGroup(c *gin.Context) {
	groupID, err := uuid.FromString(c.Param("group_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group id"})
		return
	}

	group, err := h.groups.GetGroupByID(c.Request.Context(), groupID)
	if err != nil {
		if errors.Is(err, services.ErrGroupNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "group not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load group"})
		return
	}
	c.JSON(http.StatusOK, group)
}

func (h *GroupHandler) ListMembers(c *gin.Context) {
	groupID, err := uuid.FromString(c.Param("group_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group id"})
		return
	}

	members, err := h.groups.ListMembers(c.Request.Context(), groupID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list members"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"members": members, "total": len(members)})
}

func (h *GroupHandler) ChangeRole(c *gin.Context) {
	groupID, err := uuid.FromString(c.Param("group_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group id"})
		return
	}
	userID, err := uuid.FromString(c.Param("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	var input struct {
		Role models.GroupRole `json:"role" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.groups.ChangeRole(c.Request.Context(), groupID, userID, input.Role); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "membership not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to change role"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "role updated"})
}

func (h *GroupHandler) RequestJoin(c *gin.Context) {
	userID, err := middleware.UserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	groupID, err := uuid.FromString(c.Param("group_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group id"})
		return
	}

	var input struct {
		Message string `json:"message"`
	}
	c.ShouldBindJSON(&input)

	approval, err := h.groups.RequestJoin(c.Request.Context(), groupID, userID, input.Message)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to request membership"})
		return
	}
	c.JSON(http.StatusAccepted, approval)
}

func (h *GroupHandler) DecideApproval(c *gin.Context) {
	deciderID, err := middleware.UserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	approvalID, err := uuid.FromString(c.Param("approval_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid approval id"})
		return
	}

	var input struct {
		Accept bool `json:"accept"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// only a leader or admin of the approval's group may decide it; in
	// particular the applicant cannot wave themselves in
	approval, err := h.groups.GetApproval(c.Request.Context(), approvalID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "approval not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load approval"})
		return
	}
	caps := h.resolver.ResolveCapabilities(c.Request.Context(), deciderID, approval.GroupID, nil)
	if !caps.IsLeaderOrAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "only a leader or admin may decide join requests"})
		return
	}

	if err := h.groups.DecideApproval(c.Request.Context(), approvalID, deciderID, input.Accept); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to decide approval"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "approval decided"})
}

func (h *GroupHandler) CreateStage(c *gin.Context) {
	groupID, err := uuid.FromString(c.Param("group_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group id"})
		return
	}

	var input struct {
		Name     string `json:"name" binding:"required"`
		Position int    `json:"position"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	stage, err := h.groups.CreateStage(c.Request.Context(), models.Stage{
		GroupID:  groupID,
		Name:     input.Name,
		Position: input.Position,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create stage"})
		return
	}
	c.JSON(http.StatusCreated, stage)
}

func (h *GroupHandler) ListStages(c *gin.Context) {
	groupID, err := uuid.FromString(c.Param("group_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group id"})
		return
	}

	stages, err := h.groups.ListStages(c.Request.Context(), groupID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list stages"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"stages": stages})
}

func (h *GroupHandler) GradeStage(c *gin.Context) {
	graderID, err := middleware.UserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	stageID, err := uuid.FromString(c.Param("stage_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid stage id"})
		return
	}

	var input struct {
		UserID string  `json:"user_id" binding:"required"`
		Score  float64 `json:"score"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	userID, err := uuid.FromString(input.UserID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	score, err := h.groups.GradeStage(c.Request.Context(), models.StageScore{
		StageID:  stageID,
		UserID:   userID,
		Score:    input.Score,
		GradedBy: graderID,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to grade stage"})
		return
	}
	c.JSON(http.StatusCreated, score)
}

// DeleteGroup runs the full group cascade, same failure contract as task
// deletion.
func (h *GroupHandler) DeleteGroup(c *gin.Context) {
	groupID, err := uuid.FromString(c.Param("group_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group id"})
		return
	}

	if err := h.groups.DeleteGroup(c.Request.Context(), groupID); err != nil {
		var stepErr *services.StepError
		if errors.As(err, &stepErr) {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":       "partial_deletion_failure",
				"failed_step": stepErr.Step,
				"message":     "Deletion stopped; retry to remove the remaining records",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete group"})
		return
	}
	c.JSON(http.StatusNoContent, nil)
}
