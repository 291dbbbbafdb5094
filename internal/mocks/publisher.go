package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"hopin-service/internal/models"
)

type FeedPublisherMock struct {
	mock.Mock
}

func (m *FeedPublisherMock) PublishInsert(ctx context.Context, msg models.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *FeedPublisherMock) PublishRead(ctx context.Context, conversationID string, messageIDs []string, readAt time.Time) error {
	args := m.Called(ctx, conversationID, messageIDs, readAt)
	return args.Error(0)
}

func (m *FeedPublisherMock) Close() error {
	args := m.Called()
	return args.Error(0)
}
