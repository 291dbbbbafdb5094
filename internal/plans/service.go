package plans

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"

	"hopin-service/internal/models"
	"hopin-service/internal/repositories"
)

var (
	ErrUnauthorized      = errors.New("unauthorized")
	ErrPlanNotOpen       = errors.New("plan is not open for new members")
	ErrInvalidCode       = errors.New("invalid verification code")
	ErrInvalidTransition = errors.New("membership is not in a state that allows this transition")
)

// DuplicateMemberError reports an existing membership row back to a caller
// who requested to join again.
type DuplicateMemberError struct {
	Status string
}

func (e *DuplicateMemberError) Error() string {
	return "join request already " + strings.ToLower(e.Status)
}

// CreateInput carries the fields a caller supplies when creating a plan.
type CreateInput struct {
	Title       string
	Description string
	Type        string
	Visibility  string
	Location    string
	Latitude    *float64
	Longitude   *float64
	Date        time.Time
	MaxSize     int
}

// UpdateInput carries the mutable plan fields.
type UpdateInput struct {
	Title       string
	Description string
	Type        string
	Visibility  string
	Location    string
	Latitude    *float64
	Longitude   *float64
	Date        time.Time
	MaxSize     int
	Status      string
}

// InviteResult reports how many users were newly invited.
type InviteResult struct {
	Invited int      `json:"invited"`
	Skipped []string `json:"skipped,omitempty"`
}

// VerifyResult reports the outcome of a ticket scan.
type VerifyResult struct {
	UserID          string `json:"user_id"`
	MemberID        string `json:"member_id"`
	AlreadyVerified bool   `json:"already_verified"`
}

// Service drives the plan membership lifecycle:
//
//	(none)   -> PENDING   via RequestToJoin
//	(none)   -> INVITED   via InviteUsers
//	PENDING  -> ACCEPTED  via ManageRequest(accept)   [code issued]
//	PENDING  -> REJECTED  via ManageRequest(reject)
//	INVITED  -> ACCEPTED  via RespondToInvite(true)   [code issued]
//	INVITED  -> REJECTED  via RespondToInvite(false)
//	ACCEPTED -> verified  via VerifyAttendee(code)    [status unchanged]
type Service struct {
	repo repositories.PlanRepository

	// newCode is swappable in tests.
	newCode func() (string, error)
}

// NewService constructs a Service.
func NewService(repo repositories.PlanRepository) *Service {
	return &Service{repo: repo, newCode: generateCode}
}

// Create inserts the plan together with the creator's accepted, verified
// membership in a single transaction.
func (s *Service) Create(ctx context.Context, creatorID string, input CreateInput) (models.Plan, error) {
	plan := models.Plan{
		ID:          uuid.NewString(),
		Title:       input.Title,
		Description: input.Description,
		Type:        input.Type,
		Visibility:  input.Visibility,
		Location:    input.Location,
		Latitude:    input.Latitude,
		Longitude:   input.Longitude,
		Date:        input.Date,
		MaxSize:     input.MaxSize,
		Status:      models.PlanStatusOpen,
		CreatorID:   creatorID,
	}

	code, err := s.newCode()
	if err != nil {
		return models.Plan{}, fmt.Errorf("issue verification code: %w", err)
	}
	creator := models.PlanMember{
		ID:               uuid.NewString(),
		PlanID:           plan.ID,
		UserID:           creatorID,
		Status:           models.MemberStatusAccepted,
		VerificationCode: &code,
		IsVerified:       true,
	}

	return s.repo.CreatePlan(ctx, plan, creator)
}

// Get fetches a plan.
func (s *Service) Get(ctx context.Context, planID string) (models.Plan, error) {
	return s.repo.GetPlan(ctx, planID)
}

// Members lists membership rows; creator only.
func (s *Service) Members(ctx context.Context, callerID, planID string) ([]models.PlanMember, error) {
	if _, err := s.planOwnedBy(ctx, planID, callerID); err != nil {
		return nil, err
	}
	return s.repo.ListMembers(ctx, planID)
}

// Update replaces mutable plan fields; creator only.
func (s *Service) Update(ctx context.Context, callerID, planID string, input UpdateInput) (models.Plan, error) {
	plan, err := s.planOwnedBy(ctx, planID, callerID)
	if err != nil {
		return models.Plan{}, err
	}

	plan.Title = input.Title
	plan.Description = input.Description
	plan.Type = input.Type
	plan.Visibility = input.Visibility
	plan.Location = input.Location
	plan.Latitude = input.Latitude
	plan.Longitude = input.Longitude
	plan.Date = input.Date
	plan.MaxSize = input.MaxSize
	if input.Status != "" {
		plan.Status = input.Status
	}

	if err := s.repo.UpdatePlan(ctx, plan); err != nil {
		return models.Plan{}, err
	}
	return plan, nil
}

// Delete removes the plan and its membership rows; creator only.
func (s *Service) Delete(ctx context.Context, callerID, planID string) error {
	if _, err := s.planOwnedBy(ctx, planID, callerID); err != nil {
		return err
	}
	return s.repo.DeletePlan(ctx, planID)
}

// RequestToJoin creates a PENDING membership for the caller. An existing row
// in any status is a duplicate and its status is reported back.
func (s *Service) RequestToJoin(ctx context.Context, callerID, planID string) (models.PlanMember, error) {
	plan, err := s.repo.GetPlan(ctx, planID)
	if err != nil {
		return models.PlanMember{}, err
	}
	if plan.Status != models.PlanStatusOpen {
		return models.PlanMember{}, ErrPlanNotOpen
	}

	existing, err := s.repo.GetMember(ctx, planID, callerID)
	if err == nil {
		return models.PlanMember{}, &DuplicateMemberError{Status: existing.Status}
	}
	if !errors.Is(err, repositories.ErrMemberNotFound) {
		return models.PlanMember{}, err
	}

	member := models.PlanMember{
		ID:     uuid.NewString(),
		PlanID: planID,
		UserID: callerID,
		Status: models.MemberStatusPending,
	}
	if err := s.repo.InsertMember(ctx, member); err != nil {
		return models.PlanMember{}, err
	}
	return member, nil
}

// InviteUsers invites users to the plan; creator only. Users who already
// have a membership row in any status are skipped, so re-inviting is
// harmless.
func (s *Service) InviteUsers(ctx context.Context, callerID, planID string, userIDs []string) (InviteResult, error) {
	if _, err := s.planOwnedBy(ctx, planID, callerID); err != nil {
		return InviteResult{}, err
	}

	existing, err := s.repo.ExistingMemberUserIDs(ctx, planID, userIDs)
	if err != nil {
		return InviteResult{}, err
	}

	var members []models.PlanMember
	var skipped []string
	seen := map[string]struct{}{}
	for _, userID := range userIDs {
		if _, dup := seen[userID]; dup {
			continue
		}
		seen[userID] = struct{}{}
		if existing[userID] || userID == callerID {
			skipped = append(skipped, userID)
			continue
		}
		members = append(members, models.PlanMember{
			ID:     uuid.NewString(),
			PlanID: planID,
			UserID: userID,
			Status: models.MemberStatusInvited,
		})
	}

	if err := s.repo.InsertMembers(ctx, members); err != nil {
		return InviteResult{}, err
	}
	return InviteResult{Invited: len(members), Skipped: skipped}, nil
}

// ManageRequest accepts or rejects a PENDING join request; creator only.
// Accepting issues a fresh 7-digit verification code.
func (s *Service) ManageRequest(ctx context.Context, callerID, planID, memberID string, accept bool) (models.PlanMember, error) {
	member, err := s.repo.GetMemberByID(ctx, memberID)
	if err != nil {
		return models.PlanMember{}, err
	}
	if member.PlanID != planID {
		return models.PlanMember{}, repositories.ErrMemberNotFound
	}
	plan, err := s.planOwnedBy(ctx, member.PlanID, callerID)
	if err != nil {
		return models.PlanMember{}, err
	}
	if member.Status != models.MemberStatusPending {
		return models.PlanMember{}, ErrInvalidTransition
	}

	if !accept {
		if err := s.repo.UpdateMemberStatus(ctx, member.ID, models.MemberStatusRejected, nil); err != nil {
			return models.PlanMember{}, err
		}
		member.Status = models.MemberStatusRejected
		return member, nil
	}

	return s.acceptMember(ctx, plan, member)
}

// RespondToInvite lets the invited user accept or decline their own
// INVITED membership.
func (s *Service) RespondToInvite(ctx context.Context, callerID, planID string, accept bool) (models.PlanMember, error) {
	member, err := s.repo.GetMember(ctx, planID, callerID)
	if err != nil {
		return models.PlanMember{}, err
	}
	if member.Status != models.MemberStatusInvited {
		return models.PlanMember{}, ErrInvalidTransition
	}

	if !accept {
		if err := s.repo.UpdateMemberStatus(ctx, member.ID, models.MemberStatusRejected, nil); err != nil {
			return models.PlanMember{}, err
		}
		member.Status = models.MemberStatusRejected
		return member, nil
	}

	plan, err := s.repo.GetPlan(ctx, planID)
	if err != nil {
		return models.PlanMember{}, err
	}
	return s.acceptMember(ctx, plan, member)
}

// VerifyAttendee redeems a verification code; creator only. Scanning the
// same ticket twice succeeds and reports AlreadyVerified without a write.
func (s *Service) VerifyAttendee(ctx context.Context, callerID, planID, code string) (VerifyResult, error) {
	if _, err := s.planOwnedBy(ctx, planID, callerID); err != nil {
		return VerifyResult{}, err
	}

	member, err := s.repo.GetMemberByCode(ctx, planID, code)
	if err != nil {
		if errors.Is(err, repositories.ErrMemberNotFound) {
			return VerifyResult{}, ErrInvalidCode
		}
		return VerifyResult{}, err
	}

	if member.IsVerified {
		return VerifyResult{UserID: member.UserID, MemberID: member.ID, AlreadyVerified: true}, nil
	}

	if err := s.repo.SetMemberVerified(ctx, member.ID); err != nil {
		return VerifyResult{}, err
	}
	return VerifyResult{UserID: member.UserID, MemberID: member.ID}, nil
}

func (s *Service) acceptMember(ctx context.Context, plan models.Plan, member models.PlanMember) (models.PlanMember, error) {
	code, err := s.newCode()
	if err != nil {
		return models.PlanMember{}, fmt.Errorf("issue verification code: %w", err)
	}
	if err := s.repo.UpdateMemberStatus(ctx, member.ID, models.MemberStatusAccepted, &code); err != nil {
		return models.PlanMember{}, err
	}
	member.Status = models.MemberStatusAccepted
	member.VerificationCode = &code

	if plan.MaxSize > 0 {
		accepted, err := s.repo.CountAccepted(ctx, plan.ID)
		if err != nil {
			log.Printf("count accepted members for plan %s failed: %v", plan.ID, err)
		} else if accepted >= plan.MaxSize && plan.Status == models.PlanStatusOpen {
			if err := s.repo.UpdatePlanStatus(ctx, plan.ID, models.PlanStatusFull); err != nil {
				log.Printf("mark plan %s full failed: %v", plan.ID, err)
			}
		}
	}
	return member, nil
}

func (s *Service) planOwnedBy(ctx context.Context, planID, callerID string) (models.Plan, error) {
	plan, err := s.repo.GetPlan(ctx, planID)
	if err != nil {
		return models.Plan{}, err
	}
	if plan.CreatorID != callerID {
		return models.Plan{}, ErrUnauthorized
	}
	return plan, nil
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(10_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%07d", n.Int64()), nil
}
