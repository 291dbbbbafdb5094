package plans

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"hopin-service/internal/mocks"
	"hopin-service/internal/models"
	"hopin-service/internal/repositories"
)

func newTestService(repo *mocks.PlanRepositoryMock) *Service {
	svc := NewService(repo)
	svc.newCode = func() (string, error) { return "1234567", nil }
	return svc
}

func openPlan(creatorID string) models.Plan {
	return models.Plan{
		ID:        "plan-1",
		Title:     "Sunset hike",
		Type:      models.PlanTypeCommunity,
		Status:    models.PlanStatusOpen,
		CreatorID: creatorID,
		MaxSize:   10,
		Date:      time.Now().Add(24 * time.Hour),
	}
}

func TestCreateInsertsCreatorAsVerifiedMember(t *testing.T) {
	repo := new(mocks.PlanRepositoryMock)
	svc := newTestService(repo)

	repo.On("CreatePlan", mock.Anything, mock.MatchedBy(func(p models.Plan) bool {
		return p.Status == models.PlanStatusOpen && p.CreatorID == "alice"
	}), mock.MatchedBy(func(m models.PlanMember) bool {
		return m.UserID == "alice" && m.Status == models.MemberStatusAccepted &&
			m.IsVerified && m.VerificationCode != nil && *m.VerificationCode == "1234567"
	})).Return(openPlan("alice"), nil).Once()

	_, err := svc.Create(context.Background(), "alice", CreateInput{
		Title:      "Sunset hike",
		Type:       models.PlanTypeCommunity,
		Visibility: models.VisibilityPublic,
		Date:       time.Now().Add(24 * time.Hour),
	})
	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestRequestToJoinCreatesPendingMember(t *testing.T) {
	repo := new(mocks.PlanRepositoryMock)
	svc := newTestService(repo)

	repo.On("GetPlan", mock.Anything, "plan-1").Return(openPlan("alice"), nil).Once()
	repo.On("GetMember", mock.Anything, "plan-1", "bob").Return(models.PlanMember{}, repositories.ErrMemberNotFound).Once()
	repo.On("InsertMember", mock.Anything, mock.MatchedBy(func(m models.PlanMember) bool {
		return m.PlanID == "plan-1" && m.UserID == "bob" && m.Status == models.MemberStatusPending
	})).Return(nil).Once()

	member, err := svc.RequestToJoin(context.Background(), "bob", "plan-1")
	require.NoError(t, err)
	assert.Equal(t, models.MemberStatusPending, member.Status)
	repo.AssertExpectations(t)
}

func TestRequestToJoinDuplicateReportsExistingStatus(t *testing.T) {
	repo := new(mocks.PlanRepositoryMock)
	svc := newTestService(repo)

	repo.On("GetPlan", mock.Anything, "plan-1").Return(openPlan("alice"), nil).Once()
	repo.On("GetMember", mock.Anything, "plan-1", "bob").Return(models.PlanMember{
		ID: "member-1", PlanID: "plan-1", UserID: "bob", Status: models.MemberStatusPending,
	}, nil).Once()

	_, err := svc.RequestToJoin(context.Background(), "bob", "plan-1")
	var dup *DuplicateMemberError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, models.MemberStatusPending, dup.Status)
	assert.Contains(t, err.Error(), "pending")
	repo.AssertNotCalled(t, "InsertMember", mock.Anything, mock.Anything)
}

func TestRequestToJoinRefusedWhenNotOpen(t *testing.T) {
	repo := new(mocks.PlanRepositoryMock)
	svc := newTestService(repo)

	full := openPlan("alice")
	full.Status = models.PlanStatusFull
	repo.On("GetPlan", mock.Anything, "plan-1").Return(full, nil).Once()

	_, err := svc.RequestToJoin(context.Background(), "bob", "plan-1")
	require.ErrorIs(t, err, ErrPlanNotOpen)
}

func TestManageRequestAcceptIssuesCode(t *testing.T) {
	repo := new(mocks.PlanRepositoryMock)
	svc := newTestService(repo)

	repo.On("GetMemberByID", mock.Anything, "member-1").Return(models.PlanMember{
		ID: "member-1", PlanID: "plan-1", UserID: "bob", Status: models.MemberStatusPending,
	}, nil).Once()
	repo.On("GetPlan", mock.Anything, "plan-1").Return(openPlan("alice"), nil).Once()
	code := "1234567"
	repo.On("UpdateMemberStatus", mock.Anything, "member-1", models.MemberStatusAccepted, &code).Return(nil).Once()
	repo.On("CountAccepted", mock.Anything, "plan-1").Return(2, nil).Once()

	member, err := svc.ManageRequest(context.Background(), "alice", "plan-1", "member-1", true)
	require.NoError(t, err)
	assert.Equal(t, models.MemberStatusAccepted, member.Status)
	require.NotNil(t, member.VerificationCode)
	assert.Equal(t, "1234567", *member.VerificationCode)
	repo.AssertExpectations(t)
}

func TestManageRequestRejectIsTerminal(t *testing.T) {
	repo := new(mocks.PlanRepositoryMock)
	svc := newTestService(repo)

	repo.On("GetMemberByID", mock.Anything, "member-1").Return(models.PlanMember{
		ID: "member-1", PlanID: "plan-1", UserID: "bob", Status: models.MemberStatusPending,
	}, nil).Once()
	repo.On("GetPlan", mock.Anything, "plan-1").Return(openPlan("alice"), nil).Once()
	repo.On("UpdateMemberStatus", mock.Anything, "member-1", models.MemberStatusRejected, (*string)(nil)).Return(nil).Once()

	member, err := svc.ManageRequest(context.Background(), "alice", "plan-1", "member-1", false)
	require.NoError(t, err)
	assert.Equal(t, models.MemberStatusRejected, member.Status)
}

func TestManageRequestRejectsMemberFromOtherPlan(t *testing.T) {
	repo := new(mocks.PlanRepositoryMock)
	svc := newTestService(repo)

	repo.On("GetMemberByID", mock.Anything, "member-1").Return(models.PlanMember{
		ID: "member-1", PlanID: "plan-other", UserID: "bob", Status: models.MemberStatusPending,
	}, nil).Once()

	_, err := svc.ManageRequest(context.Background(), "alice", "plan-1", "member-1", true)
	require.ErrorIs(t, err, repositories.ErrMemberNotFound)
	repo.AssertNotCalled(t, "UpdateMemberStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestManageRequestRequiresPendingStatus(t *testing.T) {
	repo := new(mocks.PlanRepositoryMock)
	svc := newTestService(repo)

	repo.On("GetMemberByID", mock.Anything, "member-1").Return(models.PlanMember{
		ID: "member-1", PlanID: "plan-1", UserID: "bob", Status: models.MemberStatusRejected,
	}, nil).Once()
	repo.On("GetPlan", mock.Anything, "plan-1").Return(openPlan("alice"), nil).Once()

	_, err := svc.ManageRequest(context.Background(), "alice", "plan-1", "member-1", true)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestAcceptingLastSeatFlipsPlanFull(t *testing.T) {
	repo := new(mocks.PlanRepositoryMock)
	svc := newTestService(repo)

	plan := openPlan("alice")
	plan.MaxSize = 2
	repo.On("GetMemberByID", mock.Anything, "member-1").Return(models.PlanMember{
		ID: "member-1", PlanID: "plan-1", UserID: "bob", Status: models.MemberStatusPending,
	}, nil).Once()
	repo.On("GetPlan", mock.Anything, "plan-1").Return(plan, nil).Once()
	repo.On("UpdateMemberStatus", mock.Anything, "member-1", models.MemberStatusAccepted, mock.Anything).Return(nil).Once()
	repo.On("CountAccepted", mock.Anything, "plan-1").Return(2, nil).Once()
	repo.On("UpdatePlanStatus", mock.Anything, "plan-1", models.PlanStatusFull).Return(nil).Once()

	_, err := svc.ManageRequest(context.Background(), "alice", "plan-1", "member-1", true)
	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestRespondToInviteAccept(t *testing.T) {
	repo := new(mocks.PlanRepositoryMock)
	svc := newTestService(repo)

	repo.On("GetMember", mock.Anything, "plan-1", "carol").Return(models.PlanMember{
		ID: "member-2", PlanID: "plan-1", UserID: "carol", Status: models.MemberStatusInvited,
	}, nil).Once()
	repo.On("GetPlan", mock.Anything, "plan-1").Return(openPlan("alice"), nil).Once()
	code := "1234567"
	repo.On("UpdateMemberStatus", mock.Anything, "member-2", models.MemberStatusAccepted, &code).Return(nil).Once()
	repo.On("CountAccepted", mock.Anything, "plan-1").Return(2, nil).Once()

	member, err := svc.RespondToInvite(context.Background(), "carol", "plan-1", true)
	require.NoError(t, err)
	assert.Equal(t, models.MemberStatusAccepted, member.Status)
}

func TestRespondToInviteRequiresInvitedStatus(t *testing.T) {
	repo := new(mocks.PlanRepositoryMock)
	svc := newTestService(repo)

	repo.On("GetMember", mock.Anything, "plan-1", "carol").Return(models.PlanMember{
		ID: "member-2", PlanID: "plan-1", UserID: "carol", Status: models.MemberStatusPending,
	}, nil).Once()

	_, err := svc.RespondToInvite(context.Background(), "carol", "plan-1", true)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestInviteUsersSkipsExistingMembers(t *testing.T) {
	repo := new(mocks.PlanRepositoryMock)
	svc := newTestService(repo)

	repo.On("GetPlan", mock.Anything, "plan-1").Return(openPlan("alice"), nil).Once()
	repo.On("ExistingMemberUserIDs", mock.Anything, "plan-1", []string{"bob", "carol", "dave"}).
		Return(map[string]bool{"bob": true}, nil).Once()
	repo.On("InsertMembers", mock.Anything, mock.MatchedBy(func(members []models.PlanMember) bool {
		if len(members) != 2 {
			return false
		}
		return members[0].UserID == "carol" && members[1].UserID == "dave" &&
			members[0].Status == models.MemberStatusInvited
	})).Return(nil).Once()

	result, err := svc.InviteUsers(context.Background(), "alice", "plan-1", []string{"bob", "carol", "dave"})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Invited)
	assert.Equal(t, []string{"bob"}, result.Skipped)
	repo.AssertExpectations(t)
}

func TestVerifyAttendeeHappyPathAndIdempotence(t *testing.T) {
	repo := new(mocks.PlanRepositoryMock)
	svc := newTestService(repo)

	code := "1234567"
	repo.On("GetPlan", mock.Anything, "plan-1").Return(openPlan("alice"), nil).Twice()
	repo.On("GetMemberByCode", mock.Anything, "plan-1", code).Return(models.PlanMember{
		ID: "member-1", PlanID: "plan-1", UserID: "bob", Status: models.MemberStatusAccepted, VerificationCode: &code,
	}, nil).Once()
	repo.On("SetMemberVerified", mock.Anything, "member-1").Return(nil).Once()

	result, err := svc.VerifyAttendee(context.Background(), "alice", "plan-1", code)
	require.NoError(t, err)
	assert.Equal(t, "bob", result.UserID)
	assert.False(t, result.AlreadyVerified)

	// Re-scanning the same ticket succeeds without another write.
	repo.On("GetMemberByCode", mock.Anything, "plan-1", code).Return(models.PlanMember{
		ID: "member-1", PlanID: "plan-1", UserID: "bob", Status: models.MemberStatusAccepted,
		VerificationCode: &code, IsVerified: true,
	}, nil).Once()

	again, err := svc.VerifyAttendee(context.Background(), "alice", "plan-1", code)
	require.NoError(t, err)
	assert.True(t, again.AlreadyVerified)
	assert.Equal(t, "bob", again.UserID)
	repo.AssertNumberOfCalls(t, "SetMemberVerified", 1)
}

func TestVerifyAttendeeUnknownCode(t *testing.T) {
	repo := new(mocks.PlanRepositoryMock)
	svc := newTestService(repo)

	repo.On("GetPlan", mock.Anything, "plan-1").Return(openPlan("alice"), nil).Once()
	repo.On("GetMemberByCode", mock.Anything, "plan-1", "0000000").Return(models.PlanMember{}, repositories.ErrMemberNotFound).Once()

	_, err := svc.VerifyAttendee(context.Background(), "alice", "plan-1", "0000000")
	require.ErrorIs(t, err, ErrInvalidCode)
}

func TestPrivilegedOperationsRejectNonCreator(t *testing.T) {
	operations := map[string]func(svc *Service) error{
		"manage request": func(svc *Service) error {
			_, err := svc.ManageRequest(context.Background(), "mallory", "plan-1", "member-1", true)
			return err
		},
		"verify attendee": func(svc *Service) error {
			_, err := svc.VerifyAttendee(context.Background(), "mallory", "plan-1", "1234567")
			return err
		},
		"invite users": func(svc *Service) error {
			_, err := svc.InviteUsers(context.Background(), "mallory", "plan-1", []string{"bob"})
			return err
		},
		"update plan": func(svc *Service) error {
			_, err := svc.Update(context.Background(), "mallory", "plan-1", UpdateInput{Title: "x"})
			return err
		},
		"delete plan": func(svc *Service) error {
			return svc.Delete(context.Background(), "mallory", "plan-1")
		},
	}

	for name, op := range operations {
		t.Run(name, func(t *testing.T) {
			repo := new(mocks.PlanRepositoryMock)
			svc := newTestService(repo)

			repo.On("GetPlan", mock.Anything, "plan-1").Return(openPlan("alice"), nil).Once()
			repo.On("GetMemberByID", mock.Anything, "member-1").Return(models.PlanMember{
				ID: "member-1", PlanID: "plan-1", UserID: "bob", Status: models.MemberStatusPending,
			}, nil).Maybe()

			err := op(svc)
			require.ErrorIs(t, err, ErrUnauthorized)

			repo.AssertNotCalled(t, "UpdateMemberStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			repo.AssertNotCalled(t, "SetMemberVerified", mock.Anything, mock.Anything)
			repo.AssertNotCalled(t, "InsertMembers", mock.Anything, mock.Anything)
			repo.AssertNotCalled(t, "UpdatePlan", mock.Anything, mock.Anything)
			repo.AssertNotCalled(t, "DeletePlan", mock.Anything, mock.Anything)
		})
	}
}

func TestGenerateCodeIsSevenDigits(t *testing.T) {
	pattern := regexp.MustCompile(`^\d{7}$`)
	for i := 0; i < 50; i++ {
		code, err := generateCode()
		require.NoError(t, err)
		assert.Regexp(t, pattern, code)
	}
}
