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

type GroupServiceTestSuite struct {
	suite.Suite
	db      *gorm.DB
	service services.GroupService
	tasks   services.TaskService

	leaderID uuid.UUID
}

func (suite *GroupServiceTestSuite) SetupTest() {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	suite.Require().NoError(err)

	err = db.AutoMigrate(
		&models.User{},
		&models.Group{},
		&models.GroupMembership{},
		&models.Stage{},
		&models.StageScore{},
		&models.PendingApproval{},
		&models.Task{},
		&models.TaskAssignment{},
		&models.TaskScore{},
		&models.SubmissionHistory{},
		&models.ActivityLog{},
	)
	suite.Require().NoError(err)

	suite.db = db
	activity := services.NewActivityService(db)
	suite.tasks = services.NewTaskService(db, activity)
	suite.service = services.NewGroupService(db, suite.tasks, activity)

	suite.leaderID = uuid.Must(uuid.NewV4())
	suite.Require().NoError(db.Create(&models.User{
		ID:       suite.leaderID,
		Username: "leader",
		Email:    "leader@example.com",
		Password: "hashed",
	}).Error)
}

func (suite *GroupServiceTestSuite) TestCreateGroupMakesCreatorLeader() {
	group, err := suite.service.CreateGroup(context.Background(), "Project Team", "semester project", suite.leaderID)
	suite.Require().NoError(err)

	var membership models.GroupMembership
	err = suite.db.Where("group_id = ? AND user_id = ?", group.ID, suite.leaderID).First(&membership).Error
	suite.Require().NoError(err)
	suite.Equal(models.RoleLeader, membership.Role)
}

func (suite *GroupServiceTestSuite) TestGetGroupByIDNotFound() {
	_, err := suite.service.GetGroupByID(context.Background(), uuid.Must(uuid.NewV4()))
	suite.ErrorIs(err, services.ErrGroupNotFound)
}

func (suite *GroupServiceTestSuite) TestJoinAndApprove() {
	group, err := suite.service.CreateGroup(context.Background(), "Project Team", "", suite.leaderID)
	suite.Require().NoError(err)

	applicantID := uuid.Must(uuid.NewV4())
	suite.Require().NoError(suite.db.Create(&models.User{
		ID:       applicantID,
		Username: "applicant",
		Email:    "applicant@example.com",
		Password: "hashed",
	}).Error)

	approval, err := suite.service.RequestJoin(context.Background(), group.ID, applicantID, "let me in")
	suite.Require().NoError(err)
	suite.Equal(models.ApprovalPending, approval.Status)

	fetched, err := suite.service.GetApproval(context.Background(), approval.ID)
	suite.Require().NoError(err)
	suite.Equal(group.ID, fetched.GroupID)

	// a second request reuses the pending one
	again, err := suite.service.RequestJoin(context.Background(), group.ID, applicantID, "please")
	suite.Require().NoError(err)
	suite.Equal(approval.ID, again.ID)

	err = suite.service.DecideApproval(context.Background(), approval.ID, suite.leaderID, true)
	suite.Require().NoError(err)

	var membership models.GroupMembership
	err = suite.db.Where("group_id = ? AND user_id = ?", group.ID, applicantID).First(&membership).Error
	suite.Require().NoError(err)
	suite.Equal(models.RoleMember, membership.Role)

	var audit int64
	suite.db.Model(&models.ActivityLog{}).Where("action = ?", models.ActionMemberApproved).Count(&audit)
	suite.Equal(int64(1), audit)

	// deciding twice is rejected
	err = suite.service.DecideApproval(context.Background(), approval.ID, suite.leaderID, false)
	suite.Error(err)
}

func (suite *GroupServiceTestSuite) TestRejectLeavesNoMembership() {
	group, err := suite.service.CreateGroup(context.Background(), "Project Team", "", suite.leaderID)
	suite.Require().NoError(err)

	applicantID := uuid.Must(uuid.NewV4())
	approval, err := suite.service.RequestJoin(context.Background(), group.ID, applicantID, "")
	suite.Require().NoError(err)

	suite.Require().NoError(suite.service.DecideApproval(context.Background(), approval.ID, suite.leaderID, false))

	var count int64
	suite.db.Model(&models.GroupMembership{}).Where("user_id = ?", applicantID).Count(&count)
	suite.Zero(count)
}

func (suite *GroupServiceTestSuite) TestChangeRole() {
	group, err := suite.service.CreateGroup(context.Background(), "Project Team", "", suite.leaderID)
	suite.Require().NoError(err)

	memberID := uuid.Must(uuid.NewV4())
	suite.Require().NoError(suite.db.Create(&models.GroupMembership{
		ID:      uuid.Must(uuid.NewV4()),
		GroupID: group.ID,
		UserID:  memberID,
		Role:    models.RoleMember,
	}).Error)

	suite.Require().NoError(suite.service.ChangeRole(context.Background(), group.ID, memberID, models.RoleLeader))

	var membership models.GroupMembership
	suite.Require().NoError(suite.db.Where("user_id = ?", memberID).First(&membership).Error)
	suite.Equal(models.RoleLeader, membership.Role)

	err = suite.service.ChangeRole(context.Background(), group.ID, uuid.Must(uuid.NewV4()), models.RoleLeader)
	suite.ErrorIs(err, gorm.ErrRecordNotFound)
}

func (suite *GroupServiceTestSuite) TestStagesOrderedByPosition() {
	group, err := suite.service.CreateGroup(context.Background(), "Project Team", "", suite.leaderID)
	suite.Require().NoError(err)

	for i, name := range []string{"planning", "build", "review"} {
		_, err := suite.service.CreateStage(context.Background(), models.Stage{
			GroupID:  group.ID,
			Name:     name,
			Position: 3 - i,
		})
		suite.Require().NoError(err)
	}

	stages, err := suite.service.ListStages(context.Background(), group.ID)
	suite.Require().NoError(err)
	suite.Require().Len(stages, 3)
	suite.Equal("review", stages[0].Name)
	suite.Equal("planning", stages[2].Name)
}

func (suite *GroupServiceTestSuite) TestGradeStageUpserts() {
	group, err := suite.service.CreateGroup(context.Background(), "Project Team", "", suite.leaderID)
	suite.Require().NoError(err)
	stage, err := suite.service.CreateStage(context.Background(), models.Stage{GroupID: group.ID, Name: "build"})
	suite.Require().NoError(err)

	memberID := uuid.Must(uuid.NewV4())
	first, err := suite.service.GradeStage(context.Background(), models.StageScore{
		StageID:  stage.ID,
		UserID:   memberID,
		Score:    7,
		GradedBy: suite.leaderID,
	})
	suite.Require().NoError(err)

	second, err := suite.service.GradeStage(context.Background(), models.StageScore{
		StageID:  stage.ID,
		UserID:   memberID,
		Score:    9,
		GradedBy: suite.leaderID,
	})
	suite.Require().NoError(err)
	suite.Equal(first.ID, second.ID)
	suite.Equal(float64(9), second.Score)

	var count int64
	suite.db.Model(&models.StageScore{}).Count(&count)
	suite.Equal(int64(1), count)
}

func (suite *GroupServiceTestSuite) TestDeleteGroupPurgesEverything() {
	group, err := suite.service.CreateGroup(context.Background(), "Project Team", "", suite.leaderID)
	suite.Require().NoError(err)

	stage, err := suite.service.CreateStage(context.Background(), models.Stage{GroupID: group.ID, Name: "build"})
	suite.Require().NoError(err)
	suite.Require().NoError(suite.db.Create(&models.StageScore{
		ID:      uuid.Must(uuid.NewV4()),
		StageID: stage.ID,
		UserID:  suite.leaderID,
		Score:   9,
	}).Error)

	assignee := uuid.Must(uuid.NewV4())
	task, err := suite.tasks.CreateTask(context.Background(), models.Task{
		GroupID:   group.ID,
		Title:     "Collect data",
		CreatedBy: suite.leaderID,
	}, []uuid.UUID{assignee})
	suite.Require().NoError(err)
	suite.Require().NoError(suite.db.Create(&models.SubmissionHistory{
		ID:          uuid.Must(uuid.NewV4()),
		TaskID:      task.ID,
		UserID:      assignee,
		SubmittedAt: time.Now(),
	}).Error)

	_, err = suite.service.RequestJoin(context.Background(), group.ID, uuid.Must(uuid.NewV4()), "")
	suite.Require().NoError(err)

	suite.Require().NoError(suite.service.DeleteGroup(context.Background(), group.ID))

	remaining := map[string]interface{}{
		"groups":       &models.Group{},
		"memberships":  &models.GroupMembership{},
		"stages":       &models.Stage{},
		"stage_scores": &models.StageScore{},
		"approvals":    &models.PendingApproval{},
		"tasks":        &models.Task{},
		"assignments":  &models.TaskAssignment{},
		"history":      &models.SubmissionHistory{},
		"activity":     &models.ActivityLog{},
	}
	for name, model := range remaining {
		var n int64
		suite.db.Model(model).Count(&n)
		suite.Zero(n, "leftover rows in %s", name)
	}
}

func (suite *GroupServiceTestSuite) TestDeleteGroupTwiceIsNotAnError() {
	group, err := suite.service.CreateGroup(context.Background(), "Project Team", "", suite.leaderID)
	suite.Require().NoError(err)

	suite.Require().NoError(suite.service.DeleteGroup(context.Background(), group.ID))
	suite.Require().NoError(suite.service.DeleteGroup(context.Background(), group.ID))
}

func (suite *GroupServiceTestSuite) TestDeleteGroupNamesFailedStep() {
	group, err := suite.service.CreateGroup(context.Background(), "Project Team", "", suite.leaderID)
	suite.Require().NoError(err)

	suite.Require().NoError(suite.db.Migrator().DropTable(&models.PendingApproval{}))

	err = suite.service.DeleteGroup(context.Background(), group.ID)
	suite.Require().Error(err)

	var stepErr *services.StepError
	suite.Require().ErrorAs(err, &stepErr)
	suite.Equal(services.StepApprovals, stepErr.Step)

	// the group row survives so a later retry can finish the job
	var groups int64
	suite.db.Model(&models.Group{}).Count(&groups)
	suite.Equal(int64(1), groups)
}

func (suite *GroupServiceTestSuite) TestDeleteGroupStageListingFailureNamesScoreStep() {
	group, err := suite.service.CreateGroup(context.Background(), "Project Team", "", suite.leaderID)
	suite.Require().NoError(err)

	// losing the stages table breaks the stage-score step, which needs the
	// stage ids; the later stage-row step never ran and must not be blamed
	suite.Require().NoError(suite.db.Migrator().DropTable(&models.Stage{}))

	err = suite.service.DeleteGroup(context.Background(), group.ID)
	suite.Require().Error(err)

	var stepErr *services.StepError
	suite.Require().ErrorAs(err, &stepErr)
	suite.Equal(services.StepStageScores, stepErr.Step)
}

func TestGroupServiceTestSuite(t *testing.T) {
	suite.Run(t, new(GroupServiceTestSuite))
}
