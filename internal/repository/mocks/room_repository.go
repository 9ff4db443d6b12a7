package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/YusufStar/code-craft/internal/domain"
)

// RoomRepository is a mock of repository.RoomRepository.
type RoomRepository struct {
	mock.Mock
}

func (m *RoomRepository) FindByID(ctx context.Context, id uint) (*domain.Room, error) {
	args := m.Called(ctx, id)
	if r := args.Get(0); r != nil {
		return r.(*domain.Room), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *RoomRepository) FindByCode(ctx context.Context, code string) (*domain.Room, error) {
	args := m.Called(ctx, code)
	if r := args.Get(0); r != nil {
		return r.(*domain.Room), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *RoomRepository) Create(ctx context.Context, room *domain.Room, creator *domain.RoomMember) error {
	args := m.Called(ctx, room, creator)
	return args.Error(0)
}

func (m *RoomRepository) Save(ctx context.Context, room *domain.Room) error {
	args := m.Called(ctx, room)
	return args.Error(0)
}

func (m *RoomRepository) Delete(ctx context.Context, roomID uint) error {
	args := m.Called(ctx, roomID)
	return args.Error(0)
}

func (m *RoomRepository) IsRoomCodeExists(ctx context.Context, code string) (bool, error) {
	args := m.Called(ctx, code)
	return args.Bool(0), args.Error(1)
}

func (m *RoomRepository) FindAllByUserID(ctx context.Context, userID uint) ([]domain.Room, error) {
	args := m.Called(ctx, userID)
	if r := args.Get(0); r != nil {
		return r.([]domain.Room), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *RoomRepository) FindInactiveSince(ctx context.Context, cutoff time.Time) ([]domain.Room, error) {
	args := m.Called(ctx, cutoff)
	if r := args.Get(0); r != nil {
		return r.([]domain.Room), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *RoomRepository) ListMembers(ctx context.Context, roomID uint) ([]domain.RoomMember, error) {
	args := m.Called(ctx, roomID)
	if r := args.Get(0); r != nil {
		return r.([]domain.RoomMember), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *RoomRepository) FindMember(ctx context.Context, roomID, userID uint) (*domain.RoomMember, error) {
	args := m.Called(ctx, roomID, userID)
	if r := args.Get(0); r != nil {
		return r.(*domain.RoomMember), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *RoomRepository) AddMember(ctx context.Context, member *domain.RoomMember) error {
	args := m.Called(ctx, member)
	return args.Error(0)
}

func (m *RoomRepository) UpdateMember(ctx context.Context, member *domain.RoomMember) error {
	args := m.Called(ctx, member)
	return args.Error(0)
}

func (m *RoomRepository) RemoveMember(ctx context.Context, roomID, userID uint) error {
	args := m.Called(ctx, roomID, userID)
	return args.Error(0)
}

func (m *RoomRepository) CountMembers(ctx context.Context, roomID uint) (int64, error) {
	args := m.Called(ctx, roomID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *RoomRepository) SaveEditorSnapshot(ctx context.Context, roomID uint, state domain.EditorState) error {
	args := m.Called(ctx, roomID, state)
	return args.Error(0)
}

func (m *RoomRepository) LoadEditorSnapshot(ctx context.Context, roomID uint) (*domain.RoomEditor, error) {
	args := m.Called(ctx, roomID)
	if r := args.Get(0); r != nil {
		return r.(*domain.RoomEditor), args.Error(1)
	}
	return nil, args.Error(1)
}
