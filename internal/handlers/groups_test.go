package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"group-tracker/backend/internal/handlers"
	"group-tracker/backend/internal/models"
	"group-tracker/backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

type MockGroupService struct {
	approvals   map[uuid.UUID]models.PendingApproval
	decideCalls int
	roleErr     error
}

func NewMockGroupService() *MockGroupService {
	return &MockGroupService{approvals: make(map[uuid.UUID]models.PendingApproval)}
}

func (m *MockGroupService) CreateGroup(ctx context.Context, name, description string, creatorID uuid.UUID) (models.Group, error) {
	return models.Group{ID: uuid.Must(uuid.NewV4()), Name: name, Description: description, CreatedBy: creatorID}, nil
}

func (m *MockGroupService) GetGroupByID(ctx context.Context, id uuid.UUID) (models.Group, error) {
	return models.Group{}, services.ErrGroupNotFound
}

func (m *MockGroupService) ListMembers(ctx context.Context, groupID uuid.UUID) ([]models.GroupMembership, error) {
	return nil, nil
}

func (m *MockGroupService) ChangeRole(ctx context.Context, groupID, userID uuid.UUID, role models.GroupRole) error {
	return m.roleErr
}

func (m *MockGroupService) RequestJoin(ctx context.Context, groupID, userID uuid.UUID, message string) (models.PendingApproval, error) {
	approval := models.PendingApproval{
		ID:      uuid.Must(uuid.NewV4()),
		GroupID: groupID,
		UserID:  userID,
		Status:  models.ApprovalPending,
		Message: message,
	}
	m.approvals[approval.ID] = approval
	return approval, nil
}

func (m *MockGroupService) GetApproval(ctx context.Context, approvalID uuid.UUID) (models.PendingApproval, error) {
	approval, found := m.approvals[approvalID]
	if !found {
		return models.PendingApproval{}, gorm.ErrRecordNotFound
	}
	return approval, nil
}

func (m *MockGroupService) DecideApproval(ctx context.Context, approvalID, deciderID uuid.UUID, accept bool) error {
	m.decideCalls++
	return nil
}

func (m *MockGroupService) CreateStage(ctx context.Context, stage models.Stage) (models.Stage, error) {
	stage.ID = uuid.Must(uuid.NewV4())
	return stage, nil
}

func (m *MockGroupService) ListStages(ctx context.Context, groupID uuid.UUID) ([]models.Stage, error) {
	return nil, nil
}

func (m *MockGroupService) GradeStage(ctx context.Context, score models.StageScore) (models.StageScore, error) {
	return score, nil
}

func (m *MockGroupService) DeleteGroup(ctx context.Context, groupID uuid.UUID) error {
	return nil
}

func setupGroupRouter(svc services.GroupService, resolver services.RoleResolver, userID uuid.UUID) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := handlers.NewGroupHandler(svc, resolver)

	router := gin.New()
	router.Use(authAs(userID))
	router.PUT("/groups/:group_id/members/:user_id/role", handler.ChangeRole)
	router.POST("/approvals/:approval_id/decision", handler.DecideApproval)
	return router
}

// An applicant must not be able to decide their own join request; only a
// leader or admin of the approval's group may.
func TestDecideApproval_RequiresGroupLeader(t *testing.T) {
	svc := NewMockGroupService()
	applicantID := uuid.Must(uuid.NewV4())
	approval, _ := svc.RequestJoin(context.Background(), uuid.Must(uuid.NewV4()), applicantID, "let me in")

	router := setupGroupRouter(svc, &MockResolver{}, applicantID)

	body, _ := json.Marshal(gin.H{"accept": true})
	req := httptest.NewRequest(http.MethodPost, "/approvals/"+approval.ID.String()+"/decision", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Zero(t, svc.decideCalls)
}

func TestDecideApproval_LeaderSucceeds(t *testing.T) {
	svc := NewMockGroupService()
	approval, _ := svc.RequestJoin(context.Background(), uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4()), "")

	resolver := &MockResolver{caps: services.Capabilities{IsLeaderOrAdmin: true}}
	router := setupGroupRouter(svc, resolver, uuid.Must(uuid.NewV4()))

	body, _ := json.Marshal(gin.H{"accept": true})
	req := httptest.NewRequest(http.MethodPost, "/approvals/"+approval.ID.String()+"/decision", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, svc.decideCalls)
}

func TestDecideApproval_UnknownApprovalIs404(t *testing.T) {
	resolver := &MockResolver{caps: services.Capabilities{IsLeaderOrAdmin: true}}
	router := setupGroupRouter(NewMockGroupService(), resolver, uuid.Must(uuid.NewV4()))

	body, _ := json.Marshal(gin.H{"accept": true})
	req := httptest.NewRequest(http.MethodPost, "/approvals/"+uuid.Must(uuid.NewV4()).String()+"/decision", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestChangeRole_MissingMembershipIs404(t *testing.T) {
	svc := NewMockGroupService()
	svc.roleErr = gorm.ErrRecordNotFound

	router := setupGroupRouter(svc, &MockResolver{}, uuid.Must(uuid.NewV4()))

	body, _ := json.Marshal(gin.H{"role": "leader"})
	url := "/groups/" + uuid.Must(uuid.NewV4()).String() + "/members/" + uuid.Must(uuid.NewV4()).String() + "/role"
	req := httptest.NewRequest(http.MethodPut, url, bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
