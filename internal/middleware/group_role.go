package middleware

import (
	"errors"
	"net/http"

	"group-tracker/backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
)

var errNoUser = errors.New("user not authenticated")

// RequireLeader gates a route on leader/admin capability within the group
// named by the :group_id path parameter. Roles are per-group, so this cannot
// be decided from the token alone; the resolver is consulted per request and
// fails closed.
func RequireLeader(resolver services.RoleResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := UserIDFromContext(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
			return
		}

		groupID, err := uuid.FromString(c.Param("group_id"))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid group id"})
			return
		}

		caps := resolver.ResolveCapabilities(c.Request.Context(), userID, groupID, nil)
		if !caps.IsLeaderOrAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   "insufficient_role",
				"message": "This action requires a group leader or admin",
			})
			return
		}

		c.Next()
	}
}

// UserIDFromContext extracts the authenticated user id set by
// AuthMiddleware.
func UserIDFromContext(c *gin.Context) (uuid.UUID, error) {
	value, exists := c.Get("user_id")
	if !exists {
		return uuid.Nil, errNoUser
	}
	str, ok := value.(string)
	if !ok {
		return uuid.Nil, errNoUser
	}
	return uuid.FromString(str)
}
