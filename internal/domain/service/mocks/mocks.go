package mocks

import (
	"context"
	"crypto"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/turtacn/entitle/internal/domain/models"
	"github.com/turtacn/entitle/internal/domain/service"
)

// MockSignatureVerifier is a mock implementation of SignatureVerifier
type MockSignatureVerifier struct {
	mock.Mock
}

func (m *MockSignatureVerifier) Verify(token string, key crypto.PublicKey) ([]byte, error) {
	args := m.Called(token, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// MockTokenExchanger is a mock implementation of TokenExchanger
type MockTokenExchanger struct {
	mock.Mock
}

func (m *MockTokenExchanger) Exchange(ctx context.Context, code string) (*models.Authorization, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Authorization), args.Error(1)
}

// MockTransport is a mock implementation of Transport
type MockTransport struct {
	mock.Mock
}

func (m *MockTransport) Do(ctx context.Context, req *service.HTTPRequest) (*service.HTTPResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.HTTPResponse), args.Error(1)
}

// MockBlobStore is a mock implementation of BlobStore
type MockBlobStore struct {
	mock.Mock
}

func (m *MockBlobStore) Load(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockBlobStore) Save(ctx context.Context, key string, data []byte) error {
	args := m.Called(ctx, key, data)
	return args.Error(0)
}

func (m *MockBlobStore) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

// MockAuditPublisher is a mock implementation of AuditPublisher
type MockAuditPublisher struct {
	mock.Mock
}

func (m *MockAuditPublisher) Publish(ctx context.Context, event *models.UsageEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockAuditPublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockMetrics is a mock implementation of Metrics
type MockMetrics struct {
	mock.Mock
}

func (m *MockMetrics) RecordFlowOutcome(outcome string, duration time.Duration) {
	m.Called(outcome, duration)
}

func (m *MockMetrics) RecordTokenExchange(success bool, duration time.Duration) {
	m.Called(success, duration)
}

func (m *MockMetrics) RecordEntitlementRequest(operation string, format string, success bool, duration time.Duration) {
	m.Called(operation, format, success, duration)
}

func (m *MockMetrics) RecordDecision(operation string, granted bool) {
	m.Called(operation, granted)
}

func (m *MockMetrics) RecordRelease(outcome string) {
	m.Called(outcome)
}

func (m *MockMetrics) RecordSignatureFailure(reason string) {
	m.Called(reason)
}
