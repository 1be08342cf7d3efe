package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"social-service/internal/rabbitmq"
	"social-service/internal/telemetry"
)

// MockPublisher mocks RabbitMQ publisher behavior for telemetry and events.
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, routingKey string, event any) error {
	args := m.Called(ctx, routingKey, event)
	return args.Error(0)
}

func (m *MockPublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}

type MockAuditor struct {
	mock.Mock
}

func (m *MockAuditor) EmitAudit(ctx context.Context, level, text, requestID string, userID *int64) {
	m.Called(ctx, level, text, requestID, userID)
}

var (
	_ rabbitmq.Publisher = (*MockPublisher)(nil)
	_ telemetry.Auditor  = (*MockAuditor)(nil)
)
