package services_test

import (
	"context"
	"testing"
	"time"

	"group-tracker/backend/internal/models"
	"group-tracker/backend/internal/services"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type SubmissionServiceTestSuite struct {
	suite.Suite
	db       *gorm.DB
	service  services.SubmissionService
	activity services.ActivityService

	groupID    uuid.UUID
	leaderID   uuid.UUID
	memberID   uuid.UUID
	outsiderID uuid.UUID
}

func (suite *SubmissionServiceTestSuite) SetupTest() {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	suite.Require().NoError(err)

	err = db.AutoMigrate(
		&models.User{},
		&models.Group{},
		&models.GroupMembership{},
		&models.Task{},
		&models.TaskAssignment{},
		&models.SubmissionHistory{},
		&models.ActivityLog{},
	)
	suite.Require().NoError(err)

	suite.db = db
	resolver := services.NewRoleResolver(db)
	suite.activity = services.NewActivityService(db)
	suite.service = services.NewSubmissionService(db, resolver, suite.activity)

	suite.groupID = uuid.Must(uuid.NewV4())
	suite.leaderID = suite.seedUser("leader", false)
	suite.memberID = suite.seedUser("member", false)
	suite.outsiderID = suite.seedUser("outsider", false)

	suite.Require().NoError(db.Create(&models.Group{
		ID:        suite.groupID,
		Name:      "Project Team",
		CreatedBy: suite.leaderID,
	}).Error)
	suite.seedMembership(suite.leaderID, models.RoleLeader)
	suite.seedMembership(suite.memberID, models.RoleMember)
}

func (suite *SubmissionServiceTestSuite) seedUser(name string, admin bool) uuid.UUID {
	user := models.User{
		ID:       uuid.Must(uuid.NewV4()),
		Username: name,
		Email:    name + "@example.com",
		Password: "hashed",
		IsAdmin:  admin,
		IsActive: true,
	}
	suite.Require().NoError(suite.db.Create(&user).Error)
	return user.ID
}

func (suite *SubmissionServiceTestSuite) seedMembership(userID uuid.UUID, role models.GroupRole) {
	suite.Require().NoError(suite.db.Create(&models.GroupMembership{
		ID:       uuid.Must(uuid.NewV4()),
		GroupID:  suite.groupID,
		UserID:   userID,
		Role:     role,
		JoinedAt: time.Now(),
	}).Error)
}

func (suite *SubmissionServiceTestSuite) seedTask(deadline *time.Time, assignees ...uuid.UUID) uuid.UUID {
	task := models.Task{
		ID:        uuid.Must(uuid.NewV4()),
		GroupID:   suite.groupID,
		Title:     "Write report",
		Status:    models.StatusTodo,
		Deadline:  deadline,
		CreatedBy: suite.leaderID,
	}
	suite.Require().NoError(suite.db.Create(&task).Error)
	for _, userID := range assignees {
		suite.Require().NoError(suite.db.Create(&models.TaskAssignment{
			ID:     uuid.Must(uuid.NewV4()),
			TaskID: task.ID,
			UserID: userID,
		}).Error)
	}
	return task.ID
}

func links() models.SubmissionLinks {
	return models.SubmissionLinks{{Title: "report", URL: "https://example.com/report.pdf"}}
}

func (suite *SubmissionServiceTestSuite) TestAssigneeSubmitsOnTime() {
	taskID := suite.seedTask(deadlineIn(time.Hour), suite.memberID)

	result, err := suite.service.Submit(context.Background(), services.SubmitRequest{
		TaskID: taskID,
		UserID: suite.memberID,
		Links:  links(),
	})
	suite.Require().NoError(err)
	suite.True(result.AllSaved())
	suite.False(result.Decision.IsOverdue)
	suite.False(result.Decision.OnBehalf)

	var task models.Task
	suite.Require().NoError(suite.db.First(&task, "id = ?", taskID).Error)
	suite.Equal(models.StatusDone, task.Status)
	suite.Len(task.SubmissionLinks, 1)

	var historyCount, activityCount int64
	suite.db.Model(&models.SubmissionHistory{}).Where("task_id = ?", taskID).Count(&historyCount)
	suite.db.Model(&models.ActivityLog{}).Where("action = ?", models.ActionSubmission).Count(&activityCount)
	suite.Equal(int64(1), historyCount)
	suite.Equal(int64(1), activityCount)
}

func (suite *SubmissionServiceTestSuite) TestAssigneeBlockedAfterDeadline() {
	deadline := time.Now().Add(-time.Hour)
	taskID := suite.seedTask(&deadline, suite.memberID)

	_, err := suite.service.Submit(context.Background(), services.SubmitRequest{
		TaskID: taskID,
		UserID: suite.memberID,
		Links:  links(),
	})
	suite.ErrorIs(err, services.ErrNotAuthorized)

	var count int64
	suite.db.Model(&models.SubmissionHistory{}).Count(&count)
	suite.Zero(count)
}

func (suite *SubmissionServiceTestSuite) TestLeaderSubmitsOnBehalfAfterDeadline() {
	deadline := time.Now().Add(-3 * time.Hour)
	taskID := suite.seedTask(&deadline, suite.memberID)

	result, err := suite.service.Submit(context.Background(), services.SubmitRequest{
		TaskID: taskID,
		UserID: suite.leaderID,
		Links:  links(),
	})
	suite.Require().NoError(err)
	suite.True(result.AllSaved())
	suite.True(result.Decision.IsOverdue)
	suite.True(result.Decision.OnBehalf)
	suite.Equal(3, result.Decision.LateHours)

	// blank note defaults to the on-behalf marker
	var entry models.SubmissionHistory
	suite.Require().NoError(suite.db.First(&entry, "task_id = ?", taskID).Error)
	suite.Equal(services.OnBehalfNote, entry.Note)
	suite.Equal(suite.leaderID, entry.UserID)

	var audit models.ActivityLog
	suite.Require().NoError(suite.db.First(&audit, "action = ?", models.ActionLateSubmission).Error)
	suite.Contains(audit.Metadata, `"submitted_by_leader":true`)
}

func (suite *SubmissionServiceTestSuite) TestLeaderCustomNoteIsKept() {
	deadline := time.Now().Add(-time.Hour)
	taskID := suite.seedTask(&deadline, suite.memberID)

	_, err := suite.service.Submit(context.Background(), services.SubmitRequest{
		TaskID: taskID,
		UserID: suite.leaderID,
		Links:  links(),
		Note:   "collected from the printed copy",
	})
	suite.Require().NoError(err)

	var entry models.SubmissionHistory
	suite.Require().NoError(suite.db.First(&entry, "task_id = ?", taskID).Error)
	suite.Equal("collected from the printed copy", entry.Note)
}

func (suite *SubmissionServiceTestSuite) TestOutsiderCannotSubmit() {
	taskID := suite.seedTask(deadlineIn(time.Hour), suite.memberID)

	_, err := suite.service.Submit(context.Background(), services.SubmitRequest{
		TaskID: taskID,
		UserID: suite.outsiderID,
		Links:  links(),
	})
	suite.ErrorIs(err, services.ErrNotAuthorized)
}

func (suite *SubmissionServiceTestSuite) TestGlobalAdminMaySubmitAnywhere() {
	adminID := suite.seedUser("admin", true)
	deadline := time.Now().Add(-time.Hour)
	taskID := suite.seedTask(&deadline, suite.memberID)

	result, err := suite.service.Submit(context.Background(), services.SubmitRequest{
		TaskID: taskID,
		UserID: adminID,
		Links:  links(),
	})
	suite.Require().NoError(err)
	suite.True(result.Decision.OnBehalf)
}

func (suite *SubmissionServiceTestSuite) TestEmptyPayloadRejected() {
	taskID := suite.seedTask(deadlineIn(time.Hour), suite.memberID)

	_, err := suite.service.Submit(context.Background(), services.SubmitRequest{
		TaskID: taskID,
		UserID: suite.memberID,
		Links:  models.SubmissionLinks{{Title: "blank", URL: ""}},
	})
	suite.ErrorIs(err, services.ErrEmptyPayload)

	_, err = suite.service.Submit(context.Background(), services.SubmitRequest{
		TaskID: taskID,
		UserID: suite.memberID,
		Links:  nil,
	})
	suite.ErrorIs(err, services.ErrEmptyPayload)
}

func (suite *SubmissionServiceTestSuite) TestUnknownStatusRejected() {
	taskID := suite.seedTask(deadlineIn(time.Hour), suite.memberID)

	_, err := suite.service.Submit(context.Background(), services.SubmitRequest{
		TaskID:    taskID,
		UserID:    suite.memberID,
		Links:     links(),
		NewStatus: "ARCHIVED",
	})
	suite.ErrorIs(err, services.ErrInvalidStatus)
}

func (suite *SubmissionServiceTestSuite) TestMemberCannotSubmitAsVerified() {
	taskID := suite.seedTask(deadlineIn(time.Hour), suite.memberID)

	_, err := suite.service.Submit(context.Background(), services.SubmitRequest{
		TaskID:    taskID,
		UserID:    suite.memberID,
		Links:     links(),
		NewStatus: models.StatusVerified,
	})
	suite.ErrorIs(err, services.ErrNotAuthorized)
}

func (suite *SubmissionServiceTestSuite) TestTaskNotFound() {
	_, err := suite.service.Submit(context.Background(), services.SubmitRequest{
		TaskID: uuid.Must(uuid.NewV4()),
		UserID: suite.memberID,
		Links:  links(),
	})
	suite.ErrorIs(err, services.ErrTaskNotFound)
}

func (suite *SubmissionServiceTestSuite) TestRepeatedSubmissionsAppendToLedger() {
	taskID := suite.seedTask(deadlineIn(time.Hour), suite.memberID)

	first := models.SubmissionLinks{{Title: "draft", URL: "https://example.com/v1"}}
	second := models.SubmissionLinks{{Title: "final", URL: "https://example.com/v2"}}

	for _, l := range []models.SubmissionLinks{first, second} {
		_, err := suite.service.Submit(context.Background(), services.SubmitRequest{
			TaskID: taskID,
			UserID: suite.memberID,
			Links:  l,
		})
		suite.Require().NoError(err)
	}

	// the projection keeps only the newest links, the ledger keeps both
	var task models.Task
	suite.Require().NoError(suite.db.First(&task, "id = ?", taskID).Error)
	suite.Equal("https://example.com/v2", task.SubmissionLinks[0].URL)

	history, err := suite.service.History(context.Background(), taskID)
	suite.Require().NoError(err)
	suite.Len(history, 2)
}

func (suite *SubmissionServiceTestSuite) TestLedgerFailureDoesNotBlockOtherWrites() {
	taskID := suite.seedTask(deadlineIn(time.Hour), suite.memberID)
	suite.Require().NoError(suite.db.Migrator().DropTable(&models.SubmissionHistory{}))

	result, err := suite.service.Submit(context.Background(), services.SubmitRequest{
		TaskID: taskID,
		UserID: suite.memberID,
		Links:  links(),
	})
	suite.Error(err)
	suite.Require().NotNil(result)
	suite.True(result.ProjectionSaved)
	suite.False(result.HistorySaved)
	suite.True(result.AuditSaved)
	suite.False(result.AllSaved())

	var task models.Task
	suite.Require().NoError(suite.db.First(&task, "id = ?", taskID).Error)
	suite.Equal(models.StatusDone, task.Status)
}

func (suite *SubmissionServiceTestSuite) TestSetStatusByAssignee() {
	taskID := suite.seedTask(deadlineIn(time.Hour), suite.memberID)

	err := suite.service.SetStatus(context.Background(), taskID, suite.memberID, models.StatusInProgress)
	suite.Require().NoError(err)

	var task models.Task
	suite.Require().NoError(suite.db.First(&task, "id = ?", taskID).Error)
	suite.Equal(models.StatusInProgress, task.Status)
}

func (suite *SubmissionServiceTestSuite) TestSetStatusVerifiedRequiresLeader() {
	taskID := suite.seedTask(deadlineIn(time.Hour), suite.memberID)

	err := suite.service.SetStatus(context.Background(), taskID, suite.memberID, models.StatusVerified)
	suite.ErrorIs(err, services.ErrNotAuthorized)

	err = suite.service.SetStatus(context.Background(), taskID, suite.leaderID, models.StatusVerified)
	suite.Require().NoError(err)

	var audit models.ActivityLog
	suite.Require().NoError(suite.db.First(&audit, "action = ?", models.ActionTaskVerified).Error)
	suite.Equal(suite.leaderID, audit.UserID)
}

func (suite *SubmissionServiceTestSuite) TestSetStatusByOutsiderDenied() {
	taskID := suite.seedTask(deadlineIn(time.Hour), suite.memberID)

	err := suite.service.SetStatus(context.Background(), taskID, suite.outsiderID, models.StatusDone)
	suite.ErrorIs(err, services.ErrNotAuthorized)
}

func TestSubmissionServiceTestSuite(t *testing.T) {
	suite.Run(t, new(SubmissionServiceTestSuite))
}
