package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"hopin-service/internal/mocks"
	"hopin-service/internal/models"
	"hopin-service/internal/plans"
	"hopin-service/internal/repositories"
)

type planFixture struct {
	repo   *mocks.PlanRepositoryMock
	router *gin.Engine
}

// The plan routes are exercised through the real service so that the
// handler's error mapping sees the errors the service actually returns.
func newPlanFixture(userID string) *planFixture {
	gin.SetMode(gin.TestMode)

	f := &planFixture{repo: new(mocks.PlanRepositoryMock)}
	handler := NewPlanHandler(plans.NewService(f.repo), nil)

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set("userID", userID)
		c.Next()
	})
	router.POST("/plans", handler.CreatePlan)
	router.GET("/plans/:plan_id", handler.GetPlan)
	router.GET("/plans/:plan_id/members", handler.ListMembers)
	router.PUT("/plans/:plan_id", handler.UpdatePlan)
	router.DELETE("/plans/:plan_id", handler.DeletePlan)
	router.POST("/plans/:plan_id/join", handler.RequestToJoin)
	router.POST("/plans/:plan_id/invites", handler.InviteUsers)
	router.POST("/plans/:plan_id/requests/:member_id", handler.ManageRequest)
	router.POST("/plans/:plan_id/respond", handler.RespondToInvite)
	router.POST("/plans/:plan_id/verify", handler.VerifyAttendee)
	f.router = router
	return f
}

func (f *planFixture) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func validPlanBody() gin.H {
	return gin.H{
		"title":      "Sunset hike",
		"type":       models.PlanTypeCommunity,
		"visibility": models.VisibilityPublic,
		"date":       time.Now().Add(24 * time.Hour).Format(time.RFC3339),
		"max_size":   10,
	}
}

func storedPlan(creatorID string) models.Plan {
	return models.Plan{
		ID:        "plan-1",
		Title:     "Sunset hike",
		Type:      models.PlanTypeCommunity,
		Status:    models.PlanStatusOpen,
		CreatorID: creatorID,
		MaxSize:   10,
	}
}

func TestCreatePlanReturnsCreated(t *testing.T) {
	f := newPlanFixture("alice")
	f.repo.On("CreatePlan", mock.Anything, mock.Anything, mock.MatchedBy(func(m models.PlanMember) bool {
		return m.UserID == "alice" && m.Status == models.MemberStatusAccepted && m.IsVerified
	})).Return(storedPlan("alice"), nil).Once()

	w := f.do(http.MethodPost, "/plans", validPlanBody())

	require.Equal(t, http.StatusCreated, w.Code)
	var got models.Plan
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "plan-1", got.ID)
	f.repo.AssertExpectations(t)
}

func TestCreatePlanRejectsUnknownType(t *testing.T) {
	f := newPlanFixture("alice")

	body := validPlanBody()
	body["type"] = "PARTY"
	w := f.do(http.MethodPost, "/plans", body)

	require.Equal(t, http.StatusBadRequest, w.Code)
	f.repo.AssertNotCalled(t, "CreatePlan", mock.Anything, mock.Anything, mock.Anything)
}

func TestGetPlanNotFound(t *testing.T) {
	f := newPlanFixture("alice")
	f.repo.On("GetPlan", mock.Anything, "missing").Return(models.Plan{}, repositories.ErrPlanNotFound).Once()

	w := f.do(http.MethodGet, "/plans/missing", nil)

	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestListMembersForbiddenForNonCreator(t *testing.T) {
	f := newPlanFixture("mallory")
	f.repo.On("GetPlan", mock.Anything, "plan-1").Return(storedPlan("alice"), nil).Once()

	w := f.do(http.MethodGet, "/plans/plan-1/members", nil)

	require.Equal(t, http.StatusForbidden, w.Code)
	assert.JSONEq(t, `{"error": "unauthorized"}`, w.Body.String())
	f.repo.AssertNotCalled(t, "ListMembers", mock.Anything, mock.Anything)
}

func TestDeletePlanNoContent(t *testing.T) {
	f := newPlanFixture("alice")
	f.repo.On("GetPlan", mock.Anything, "plan-1").Return(storedPlan("alice"), nil).Once()
	f.repo.On("DeletePlan", mock.Anything, "plan-1").Return(nil).Once()

	w := f.do(http.MethodDelete, "/plans/plan-1", nil)

	require.Equal(t, http.StatusNoContent, w.Code)
	f.repo.AssertExpectations(t)
}

func TestRequestToJoinDuplicateConflict(t *testing.T) {
	f := newPlanFixture("bob")
	f.repo.On("GetPlan", mock.Anything, "plan-1").Return(storedPlan("alice"), nil).Once()
	f.repo.On("GetMember", mock.Anything, "plan-1", "bob").Return(models.PlanMember{
		ID: "member-1", PlanID: "plan-1", UserID: "bob", Status: models.MemberStatusPending,
	}, nil).Once()

	w := f.do(http.MethodPost, "/plans/plan-1/join", nil)

	require.Equal(t, http.StatusConflict, w.Code)
	var resp struct {
		Error  string `json:"error"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, models.MemberStatusPending, resp.Status)
	assert.Contains(t, resp.Error, "pending")
}

func TestRequestToJoinClosedPlanConflict(t *testing.T) {
	f := newPlanFixture("bob")
	plan := storedPlan("alice")
	plan.Status = models.PlanStatusCancelled
	f.repo.On("GetPlan", mock.Anything, "plan-1").Return(plan, nil).Once()

	w := f.do(http.MethodPost, "/plans/plan-1/join", nil)

	require.Equal(t, http.StatusConflict, w.Code)
}

func TestManageRequestAcceptReturnsCode(t *testing.T) {
	f := newPlanFixture("alice")
	f.repo.On("GetMemberByID", mock.Anything, "member-1").Return(models.PlanMember{
		ID: "member-1", PlanID: "plan-1", UserID: "bob", Status: models.MemberStatusPending,
	}, nil).Once()
	f.repo.On("GetPlan", mock.Anything, "plan-1").Return(storedPlan("alice"), nil).Once()
	f.repo.On("UpdateMemberStatus", mock.Anything, "member-1", models.MemberStatusAccepted, mock.Anything).Return(nil).Once()
	f.repo.On("CountAccepted", mock.Anything, "plan-1").Return(2, nil).Once()

	w := f.do(http.MethodPost, "/plans/plan-1/requests/member-1", gin.H{"accept": true})

	require.Equal(t, http.StatusOK, w.Code)
	var member models.PlanMember
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &member))
	assert.Equal(t, models.MemberStatusAccepted, member.Status)
	require.NotNil(t, member.VerificationCode)
	assert.Len(t, *member.VerificationCode, 7)
}

func TestManageRequestMissingAcceptField(t *testing.T) {
	f := newPlanFixture("alice")

	w := f.do(http.MethodPost, "/plans/plan-1/requests/member-1", gin.H{})

	require.Equal(t, http.StatusBadRequest, w.Code)
	f.repo.AssertNotCalled(t, "GetMemberByID", mock.Anything, mock.Anything)
}

func TestRespondToInviteDecline(t *testing.T) {
	f := newPlanFixture("carol")
	f.repo.On("GetMember", mock.Anything, "plan-1", "carol").Return(models.PlanMember{
		ID: "member-2", PlanID: "plan-1", UserID: "carol", Status: models.MemberStatusInvited,
	}, nil).Once()
	f.repo.On("UpdateMemberStatus", mock.Anything, "member-2", models.MemberStatusRejected, (*string)(nil)).Return(nil).Once()

	w := f.do(http.MethodPost, "/plans/plan-1/respond", gin.H{"accept": false})

	require.Equal(t, http.StatusOK, w.Code)
	var member models.PlanMember
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &member))
	assert.Equal(t, models.MemberStatusRejected, member.Status)
}

func TestInviteUsersReportsSkipped(t *testing.T) {
	f := newPlanFixture("alice")
	f.repo.On("GetPlan", mock.Anything, "plan-1").Return(storedPlan("alice"), nil).Once()
	f.repo.On("ExistingMemberUserIDs", mock.Anything, "plan-1", []string{"bob", "carol"}).
		Return(map[string]bool{"bob": true}, nil).Once()
	f.repo.On("InsertMembers", mock.Anything, mock.MatchedBy(func(members []models.PlanMember) bool {
		return len(members) == 1 && members[0].UserID == "carol"
	})).Return(nil).Once()

	w := f.do(http.MethodPost, "/plans/plan-1/invites", gin.H{"user_ids": []string{"bob", "carol"}})

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"invited": 1, "skipped": ["bob"]}`, w.Body.String())
}

func TestVerifyAttendeeAlreadyVerified(t *testing.T) {
	f := newPlanFixture("alice")
	code := "1234567"
	f.repo.On("GetPlan", mock.Anything, "plan-1").Return(storedPlan("alice"), nil).Once()
	f.repo.On("GetMemberByCode", mock.Anything, "plan-1", code).Return(models.PlanMember{
		ID: "member-1", PlanID: "plan-1", UserID: "bob", Status: models.MemberStatusAccepted,
		VerificationCode: &code, IsVerified: true,
	}, nil).Once()

	w := f.do(http.MethodPost, "/plans/plan-1/verify", gin.H{"code": code})

	require.Equal(t, http.StatusOK, w.Code)
	var result plans.VerifyResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.True(t, result.AlreadyVerified)
	assert.Equal(t, "bob", result.UserID)
	f.repo.AssertNotCalled(t, "SetMemberVerified", mock.Anything, mock.Anything)
}

func TestVerifyAttendeeUnknownCodeNotFound(t *testing.T) {
	f := newPlanFixture("alice")
	f.repo.On("GetPlan", mock.Anything, "plan-1").Return(storedPlan("alice"), nil).Once()
	f.repo.On("GetMemberByCode", mock.Anything, "plan-1", "0000000").
		Return(models.PlanMember{}, repositories.ErrMemberNotFound).Once()

	w := f.do(http.MethodPost, "/plans/plan-1/verify", gin.H{"code": "0000000"})

	require.Equal(t, http.StatusNotFound, w.Code)
}
