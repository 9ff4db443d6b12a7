package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/YusufStar/code-craft/internal/domain"
)

// StateRepository is a mock of repository.StateRepository.
type StateRepository struct {
	mock.Mock
}

func (m *StateRepository) InitEditor(ctx context.Context, roomID uint, state domain.EditorState) error {
	args := m.Called(ctx, roomID, state)
	return args.Error(0)
}

func (m *StateRepository) GetEditor(ctx context.Context, roomID uint) (domain.EditorState, error) {
	args := m.Called(ctx, roomID)
	return args.Get(0).(domain.EditorState), args.Error(1)
}

func (m *StateRepository) SetCode(ctx context.Context, roomID uint, code string) error {
	args := m.Called(ctx, roomID, code)
	return args.Error(0)
}

func (m *StateRepository) SetLanguage(ctx context.Context, roomID uint, language, version string) error {
	args := m.Called(ctx, roomID, language, version)
	return args.Error(0)
}

func (m *StateRepository) SetOutput(ctx context.Context, roomID uint, output string) error {
	args := m.Called(ctx, roomID, output)
	return args.Error(0)
}

func (m *StateRepository) CleanupRoomState(ctx context.Context, roomID uint) error {
	args := m.Called(ctx, roomID)
	return args.Error(0)
}

func (m *StateRepository) IncrementOpCount(ctx context.Context, roomID uint) (int64, error) {
	args := m.Called(ctx, roomID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *StateRepository) ResetOpCount(ctx context.Context, roomID uint) error {
	args := m.Called(ctx, roomID)
	return args.Error(0)
}

func (m *StateRepository) PublishEvent(ctx context.Context, roomID uint, payload []byte) error {
	args := m.Called(ctx, roomID, payload)
	return args.Error(0)
}

func (m *StateRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	args := m.Called(ctx, key, limit, window)
	return args.Bool(0), args.Error(1)
}
