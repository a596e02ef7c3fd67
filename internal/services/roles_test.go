package services_test

import (
	"context"
	"testing"
	"time"

	"group-tracker/backend/internal/models"
	"group-tracker/backend/internal/services"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newRolesDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.GroupMembership{},
		&models.TaskAssignment{},
	))
	return db
}

func seedRoleUser(t *testing.T, db *gorm.DB, admin bool) uuid.UUID {
	id := uuid.Must(uuid.NewV4())
	require.NoError(t, db.Create(&models.User{
		ID:       id,
		Username: "u-" + id.String()[:8],
		Email:    id.String() + "@example.com",
		Password: "hashed",
		IsAdmin:  admin,
	}).Error)
	return id
}

func TestRoleResolver_MemberHasNoElevatedCapabilities(t *testing.T) {
	db := newRolesDB(t)
	resolver := services.NewRoleResolver(db)

	groupID := uuid.Must(uuid.NewV4())
	userID := seedRoleUser(t, db, false)
	require.NoError(t, db.Create(&models.GroupMembership{
		ID:       uuid.Must(uuid.NewV4()),
		GroupID:  groupID,
		UserID:   userID,
		Role:     models.RoleMember,
		JoinedAt: time.Now(),
	}).Error)

	caps := resolver.ResolveCapabilities(context.Background(), userID, groupID, nil)
	require.False(t, caps.IsLeaderOrAdmin)
	require.False(t, caps.IsGlobalAdmin)
	require.False(t, caps.IsAssignee)
}

func TestRoleResolver_LeaderIsElevated(t *testing.T) {
	db := newRolesDB(t)
	resolver := services.NewRoleResolver(db)

	groupID := uuid.Must(uuid.NewV4())
	userID := seedRoleUser(t, db, false)
	require.NoError(t, db.Create(&models.GroupMembership{
		ID:      uuid.Must(uuid.NewV4()),
		GroupID: groupID,
		UserID:  userID,
		Role:    models.RoleLeader,
	}).Error)

	caps := resolver.ResolveCapabilities(context.Background(), userID, groupID, nil)
	require.True(t, caps.IsLeaderOrAdmin)
	require.False(t, caps.IsGlobalAdmin)
}

func TestRoleResolver_GlobalAdminWithoutMembership(t *testing.T) {
	db := newRolesDB(t)
	resolver := services.NewRoleResolver(db)

	userID := seedRoleUser(t, db, true)

	caps := resolver.ResolveCapabilities(context.Background(), userID, uuid.Must(uuid.NewV4()), nil)
	require.True(t, caps.IsGlobalAdmin)
	require.True(t, caps.IsLeaderOrAdmin)
}

func TestRoleResolver_AssigneeFlagFollowsTask(t *testing.T) {
	db := newRolesDB(t)
	resolver := services.NewRoleResolver(db)

	groupID := uuid.Must(uuid.NewV4())
	userID := seedRoleUser(t, db, false)
	taskID := uuid.Must(uuid.NewV4())
	otherTaskID := uuid.Must(uuid.NewV4())

	require.NoError(t, db.Create(&models.TaskAssignment{
		ID:     uuid.Must(uuid.NewV4()),
		TaskID: taskID,
		UserID: userID,
	}).Error)

	caps := resolver.ResolveCapabilities(context.Background(), userID, groupID, &taskID)
	require.True(t, caps.IsAssignee)

	caps = resolver.ResolveCapabilities(context.Background(), userID, groupID, &otherTaskID)
	require.False(t, caps.IsAssignee)
}

func TestRoleResolver_UnknownUserGetsNothing(t *testing.T) {
	db := newRolesDB(t)
	resolver := services.NewRoleResolver(db)

	taskID := uuid.Must(uuid.NewV4())
	caps := resolver.ResolveCapabilities(context.Background(), uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4()), &taskID)
	require.False(t, caps.IsLeaderOrAdmin)
	require.False(t, caps.IsGlobalAdmin)
	require.False(t, caps.IsAssignee)
}

func TestRoleResolver_FailsClosedOnBrokenStore(t *testing.T) {
	db := newRolesDB(t)
	resolver := services.NewRoleResolver(db)

	groupID := uuid.Must(uuid.NewV4())
	userID := seedRoleUser(t, db, false)
	require.NoError(t, db.Create(&models.GroupMembership{
		ID:      uuid.Must(uuid.NewV4()),
		GroupID: groupID,
		UserID:  userID,
		Role:    models.RoleLeader,
	}).Error)

	// an unreadable membership table must demote, not elevate
	require.NoError(t, db.Migrator().DropTable(&models.GroupMembership{}))

	caps := resolver.ResolveCapabilities(context.Background(), userID, groupID, nil)
	require.False(t, caps.IsLeaderOrAdmin)
}

func TestGroupRole_IsElevated(t *testing.T) {
	require.False(t, models.RoleMember.IsElevated())
	require.True(t, models.RoleLeader.IsElevated())
	require.True(t, models.RoleAdmin.IsElevated())
}
