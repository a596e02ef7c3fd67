package services

import (
	"context"
	"log"

	"group-tracker/backend/internal/models"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

// Capabilities is what a user may do inside one group, resolved at request
// time and consumed read-only by the submission policy.
type Capabilities struct {
	IsAssignee      bool
	IsLeaderOrAdmin bool
	IsGlobalAdmin   bool
}

type RoleResolver interface {
	// ResolveCapabilities looks up the user's group role, global admin
	// flag and, when taskID is given, their assignee status on that task.
	// Lookup failures demote rather than elevate: a user whose membership
	// cannot be read is treated as a plain member.
	ResolveCapabilities(ctx context.Context, userID, groupID uuid.UUID, taskID *uuid.UUID) Capabilities
}

type RoleResolverImpl struct {
	db *gorm.DB
}

func NewRoleResolver(db *gorm.DB) RoleResolver {
	return &RoleResolverImpl{db: db}
}

func (r *RoleResolverImpl) ResolveCapabilities(ctx context.Context, userID, groupID uuid.UUID, taskID *uuid.UUID) Capabilities {
	caps := Capabilities{}

	var user models.User
	err := r.db.WithContext(ctx).
		Select("is_admin").
		Where("id = ?", userID).
		First(&user).Error
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			log.Printf("role resolver: admin flag lookup failed for %s: %v", userID, err)
		}
	} else if user.IsAdmin {
		caps.IsGlobalAdmin = true
		caps.IsLeaderOrAdmin = true
	}

	var membership models.GroupMembership
	err = r.db.WithContext(ctx).
		Where("user_id = ? AND group_id = ?", userID, groupID).
		First(&membership).Error
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			// fail closed: an unreadable membership blocks leader
			// actions instead of granting them
			log.Printf("role resolver: membership lookup failed for %s in %s: %v", userID, groupID, err)
		}
	} else if membership.Role.IsElevated() {
		caps.IsLeaderOrAdmin = true
	}

	if taskID != nil {
		var count int64
		err = r.db.WithContext(ctx).
			Model(&models.TaskAssignment{}).
			Where("task_id = ? AND user_id = ?", *taskID, userID).
			Count(&count).Error
		if err != nil {
			log.Printf("role resolver: assignment lookup failed for %s on %s: %v", userID, *taskID, err)
		}
		caps.IsAssignee = count > 0
	}

	return caps
}
