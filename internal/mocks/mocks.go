// Package mocks holds testify mocks of the outbound collaborators.
package mocks

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"
)

// MockPublisher is a mock implementation of events.Publisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, subject string, data map[string]interface{}) error {
	args := m.Called(ctx, subject, data)
	return args.Error(0)
}

// RecordingPublisher keeps every published subject in order. It is safe for
// concurrent use.
type RecordingPublisher struct {
	mu       sync.Mutex
	Subjects []string
}

func (r *RecordingPublisher) Publish(_ context.Context, subject string, _ map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Subjects = append(r.Subjects, subject)
	return nil
}

// Published returns a copy of the recorded subjects.
func (r *RecordingPublisher) Published() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.Subjects...)
}

// MockLocker is a mock implementation of importer.Locker
type MockLocker struct {
	mock.Mock
}

func (m *MockLocker) Acquire(ctx context.Context, key string) (func(context.Context) error, error) {
	args := m.Called(ctx, key)
	release, _ := args.Get(0).(func(context.Context) error)
	return release, args.Error(1)
}
