package mocks

import (
	"context"
	"errors"
	"sync"

	"github.com/nkuznetsov/linkcut/internal/models"
)

// MockClickDispatcher implements service.ClickDispatcher for testing.
// Set Fail to simulate a queue outage and trigger the synchronous fallback.
type MockClickDispatcher struct {
	mu   sync.Mutex
	Fail bool
	Jobs []*models.ClickJob
}

func NewMockClickDispatcher() *MockClickDispatcher {
	return &MockClickDispatcher{}
}

func (m *MockClickDispatcher) Dispatch(ctx context.Context, job *models.ClickJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Fail {
		return errors.New("queue unavailable")
	}
	m.Jobs = append(m.Jobs, job)
	return nil
}

// DispatchedCount returns the number of successfully dispatched jobs
func (m *MockClickDispatcher) DispatchedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Jobs)
}

// MockClassifier implements safety.Classifier for testing.
// Returns Verdict when set, otherwise a safe verdict.
type MockClassifier struct {
	mu      sync.Mutex
	Verdict *models.SafetyVerdict
	Calls   int
}

func NewMockClassifier() *MockClassifier {
	return &MockClassifier{}
}

func (m *MockClassifier) Check(ctx context.Context, url string) *models.SafetyVerdict {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls++
	if m.Verdict != nil {
		return m.Verdict
	}
	return &models.SafetyVerdict{
		IsSafe:     true,
		Category:   models.CategorySafe,
		Confidence: 0.9,
	}
}

// MockClickService implements service.ClickService for testing
type MockClickService struct {
	mu         sync.Mutex
	Increments []string
	Err        error
}

func NewMockClickService() *MockClickService {
	return &MockClickService{}
}

func (m *MockClickService) Increment(ctx context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	m.Increments = append(m.Increments, code)
	return nil
}
