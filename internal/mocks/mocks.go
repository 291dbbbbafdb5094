package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"hopin-service/internal/models"
)

type ConversationRepositoryMock struct {
	mock.Mock
}

func (m *ConversationRepositoryMock) CreateOrGetConversation(ctx context.Context, userID, counterpartID string) (models.Conversation, error) {
	args := m.Called(ctx, userID, counterpartID)
	var conv models.Conversation
	if val := args.Get(0); val != nil {
		conv = val.(models.Conversation)
	}
	return conv, args.Error(1)
}

func (m *ConversationRepositoryMock) GetConversation(ctx context.Context, conversationID string) (models.Conversation, error) {
	args := m.Called(ctx, conversationID)
	var conv models.Conversation
	if val := args.Get(0); val != nil {
		conv = val.(models.Conversation)
	}
	return conv, args.Error(1)
}

func (m *ConversationRepositoryMock) IsParticipant(ctx context.Context, conversationID, userID string) (bool, error) {
	args := m.Called(ctx, conversationID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *ConversationRepositoryMock) ListConversations(ctx context.Context, userID string) ([]models.ConversationSummary, error) {
	args := m.Called(ctx, userID)
	var list []models.ConversationSummary
	if val := args.Get(0); val != nil {
		list = val.([]models.ConversationSummary)
	}
	return list, args.Error(1)
}

func (m *ConversationRepositoryMock) TouchLastMessage(ctx context.Context, conversationID, content string, at time.Time) error {
	args := m.Called(ctx, conversationID, content, at)
	return args.Error(0)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) InsertMessage(ctx context.Context, msg models.Message) (models.Message, error) {
	args := m.Called(ctx, msg)
	var stored models.Message
	if val := args.Get(0); val != nil {
		stored = val.(models.Message)
	}
	return stored, args.Error(1)
}

func (m *MessageRepositoryMock) ListMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	args := m.Called(ctx, conversationID)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) GetMessage(ctx context.Context, messageID string) (models.Message, error) {
	args := m.Called(ctx, messageID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) MarkConversationRead(ctx context.Context, conversationID, readerID string, at time.Time) ([]string, error) {
	args := m.Called(ctx, conversationID, readerID, at)
	var ids []string
	if val := args.Get(0); val != nil {
		ids = val.([]string)
	}
	return ids, args.Error(1)
}

type UserRepositoryMock struct {
	mock.Mock
}

func (m *UserRepositoryMock) GetUser(ctx context.Context, userID string) (models.User, error) {
	args := m.Called(ctx, userID)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) BulkUsers(ctx context.Context, userIDs []string) ([]models.User, error) {
	args := m.Called(ctx, userIDs)
	var users []models.User
	if val := args.Get(0); val != nil {
		users = val.([]models.User)
	}
	return users, args.Error(1)
}

func (m *UserRepositoryMock) TouchLastSeen(ctx context.Context, userID string, at time.Time) error {
	args := m.Called(ctx, userID, at)
	return args.Error(0)
}

type PlanRepositoryMock struct {
	mock.Mock
}

func (m *PlanRepositoryMock) CreatePlan(ctx context.Context, plan models.Plan, creator models.PlanMember) (models.Plan, error) {
	args := m.Called(ctx, plan, creator)
	var stored models.Plan
	if val := args.Get(0); val != nil {
		stored = val.(models.Plan)
	}
	return stored, args.Error(1)
}

func (m *PlanRepositoryMock) GetPlan(ctx context.Context, planID string) (models.Plan, error) {
	args := m.Called(ctx, planID)
	var plan models.Plan
	if val := args.Get(0); val != nil {
		plan = val.(models.Plan)
	}
	return plan, args.Error(1)
}

func (m *PlanRepositoryMock) UpdatePlan(ctx context.Context, plan models.Plan) error {
	args := m.Called(ctx, plan)
	return args.Error(0)
}

func (m *PlanRepositoryMock) UpdatePlanStatus(ctx context.Context, planID, status string) error {
	args := m.Called(ctx, planID, status)
	return args.Error(0)
}

func (m *PlanRepositoryMock) DeletePlan(ctx context.Context, planID string) error {
	args := m.Called(ctx, planID)
	return args.Error(0)
}

func (m *PlanRepositoryMock) GetMember(ctx context.Context, planID, userID string) (models.PlanMember, error) {
	args := m.Called(ctx, planID, userID)
	var member models.PlanMember
	if val := args.Get(0); val != nil {
		member = val.(models.PlanMember)
	}
	return member, args.Error(1)
}

func (m *PlanRepositoryMock) GetMemberByID(ctx context.Context, memberID string) (models.PlanMember, error) {
	args := m.Called(ctx, memberID)
	var member models.PlanMember
	if val := args.Get(0); val != nil {
		member = val.(models.PlanMember)
	}
	return member, args.Error(1)
}

func (m *PlanRepositoryMock) GetMemberByCode(ctx context.Context, planID, code string) (models.PlanMember, error) {
	args := m.Called(ctx, planID, code)
	var member models.PlanMember
	if val := args.Get(0); val != nil {
		member = val.(models.PlanMember)
	}
	return member, args.Error(1)
}

func (m *PlanRepositoryMock) ListMembers(ctx context.Context, planID string) ([]models.PlanMember, error) {
	args := m.Called(ctx, planID)
	var members []models.PlanMember
	if val := args.Get(0); val != nil {
		members = val.([]models.PlanMember)
	}
	return members, args.Error(1)
}

func (m *PlanRepositoryMock) ExistingMemberUserIDs(ctx context.Context, planID string, userIDs []string) (map[string]bool, error) {
	args := m.Called(ctx, planID, userIDs)
	var existing map[string]bool
	if val := args.Get(0); val != nil {
		existing = val.(map[string]bool)
	}
	return existing, args.Error(1)
}

func (m *PlanRepositoryMock) InsertMember(ctx context.Context, member models.PlanMember) error {
	args := m.Called(ctx, member)
	return args.Error(0)
}

func (m *PlanRepositoryMock) InsertMembers(ctx context.Context, members []models.PlanMember) error {
	args := m.Called(ctx, members)
	return args.Error(0)
}

func (m *PlanRepositoryMock) UpdateMemberStatus(ctx context.Context, memberID, status string, verificationCode *string) error {
	args := m.Called(ctx, memberID, status, verificationCode)
	return args.Error(0)
}

func (m *PlanRepositoryMock) SetMemberVerified(ctx context.Context, memberID string) error {
	args := m.Called(ctx, memberID)
	return args.Error(0)
}

func (m *PlanRepositoryMock) CountAccepted(ctx context.Context, planID string) (int, error) {
	args := m.Called(ctx, planID)
	return args.Int(0), args.Error(1)
}
