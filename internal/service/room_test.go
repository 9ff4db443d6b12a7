package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/YusufStar/code-craft/internal/domain"
	"github.com/YusufStar/code-craft/internal/repository"
	"github.com/YusufStar/code-craft/internal/repository/mocks"
	"github.com/YusufStar/code-craft/internal/service"
)

func newRoomService(roomRepo *mocks.RoomRepository, userRepo *mocks.UserRepository, stateRepo *mocks.StateRepository) *service.RoomService {
	return service.NewRoomService(roomRepo, userRepo, stateRepo, service.NewRoomLocker())
}

func TestRoomService_CreateRoom_Success(t *testing.T) {
	mockRoomRepo := new(mocks.RoomRepository)
	mockUserRepo := new(mocks.UserRepository)
	mockStateRepo := new(mocks.StateRepository)
	svc := newRoomService(mockRoomRepo, mockUserRepo, mockStateRepo)
	ctx := context.Background()

	creator := &domain.User{ID: 1, Username: "alice"}
	mockUserRepo.On("FindByID", ctx, uint(1)).Return(creator, nil).Once()
	mockRoomRepo.On("IsRoomCodeExists", ctx, mock.AnythingOfType("string")).Return(false, nil).Once()
	mockRoomRepo.On("Create", ctx, mock.MatchedBy(func(room *domain.Room) bool {
		assert.Equal(t, "pairing session", room.Name)
		assert.Len(t, room.RoomCode, 6)
		return true
	}), mock.MatchedBy(func(m *domain.RoomMember) bool {
		// The creator starts with every capability.
		return m.UserID == 1 && m.CanEdit && m.CanPlay && m.IsLead
	})).Run(func(args mock.Arguments) {
		room := args.Get(1).(*domain.Room)
		room.ID = 42
		args.Get(2).(*domain.RoomMember).RoomID = room.ID
	}).Return(nil).Once()
	mockStateRepo.On("InitEditor", ctx, uint(42), domain.NewEditorState()).Return(nil).Once()

	membership := []domain.RoomMember{{ID: 1, RoomID: 42, UserID: 1, CanEdit: true, CanPlay: true, IsLead: true}}
	mockRoomRepo.On("ListMembers", ctx, uint(42)).Return(membership, nil).Once()
	mockUserRepo.On("FindByIDs", ctx, []uint{1}).Return([]domain.User{*creator}, nil).Once()
	mockStateRepo.On("GetEditor", ctx, uint(42)).Return(domain.NewEditorState(), nil).Once()

	view, err := svc.CreateRoom(ctx, 1, "pairing session", false, "")

	require.NoError(t, err)
	require.NotNil(t, view)
	assert.Equal(t, uint(42), view.ID)
	assert.Len(t, view.RoomCode, 6)
	assert.Equal(t, domain.DefaultLanguage, view.Language)
	assert.Equal(t, domain.FullCapability(), view.Permissions[1])
	require.Len(t, view.Participants, 1)
	assert.Equal(t, "alice", view.Participants[0].Username)
	mockRoomRepo.AssertExpectations(t)
	mockUserRepo.AssertExpectations(t)
	mockStateRepo.AssertExpectations(t)
}

func TestRoomService_CreateRoom_PrivateWithoutPassword(t *testing.T) {
	mockRoomRepo := new(mocks.RoomRepository)
	mockUserRepo := new(mocks.UserRepository)
	mockStateRepo := new(mocks.StateRepository)
	svc := newRoomService(mockRoomRepo, mockUserRepo, mockStateRepo)

	_, err := svc.CreateRoom(context.Background(), 1, "secret club", true, "")

	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrValidation))
	mockRoomRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestRoomService_JoinRoom_WrongPassword(t *testing.T) {
	mockRoomRepo := new(mocks.RoomRepository)
	mockUserRepo := new(mocks.UserRepository)
	mockStateRepo := new(mocks.StateRepository)
	svc := newRoomService(mockRoomRepo, mockUserRepo, mockStateRepo)
	ctx := context.Background()

	room := &domain.Room{ID: 7, RoomCode: "ABC123", IsPrivate: true, Password: "s3cret"}
	mockRoomRepo.On("FindByCode", ctx, "ABC123").Return(room, nil).Once()
	mockRoomRepo.On("FindByID", ctx, uint(7)).Return(room, nil).Once()
	mockRoomRepo.On("FindMember", ctx, uint(7), uint(2)).Return(nil, repository.ErrMemberNotFound).Once()

	_, err := svc.JoinRoom(ctx, 2, "ABC123", "nope")

	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrWrongPassword))
	mockRoomRepo.AssertNotCalled(t, "AddMember", mock.Anything, mock.Anything)
	mockStateRepo.AssertNotCalled(t, "PublishEvent", mock.Anything, mock.Anything, mock.Anything)
}

func TestRoomService_JoinRoom_AlreadyMember(t *testing.T) {
	mockRoomRepo := new(mocks.RoomRepository)
	mockUserRepo := new(mocks.UserRepository)
	mockStateRepo := new(mocks.StateRepository)
	svc := newRoomService(mockRoomRepo, mockUserRepo, mockStateRepo)
	ctx := context.Background()

	room := &domain.Room{ID: 7, RoomCode: "ABC123"}
	mockRoomRepo.On("FindByCode", ctx, "ABC123").Return(room, nil).Once()
	mockRoomRepo.On("FindByID", ctx, uint(7)).Return(room, nil).Once()
	mockRoomRepo.On("FindMember", ctx, uint(7), uint(2)).
		Return(&domain.RoomMember{RoomID: 7, UserID: 2}, nil).Once()

	_, err := svc.JoinRoom(ctx, 2, "ABC123", "")

	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrAlreadyMember))
}

func TestRoomService_JoinRoom_BroadcastsNewUser(t *testing.T) {
	mockRoomRepo := new(mocks.RoomRepository)
	mockUserRepo := new(mocks.UserRepository)
	mockStateRepo := new(mocks.StateRepository)
	svc := newRoomService(mockRoomRepo, mockUserRepo, mockStateRepo)
	ctx := context.Background()

	room := &domain.Room{ID: 7, RoomCode: "ABC123"}
	mockRoomRepo.On("FindByCode", ctx, "ABC123").Return(room, nil).Once()
	mockRoomRepo.On("FindByID", ctx, uint(7)).Return(room, nil).Once()
	mockRoomRepo.On("FindMember", ctx, uint(7), uint(2)).Return(nil, repository.ErrMemberNotFound).Once()
	mockRoomRepo.On("AddMember", ctx, mock.MatchedBy(func(m *domain.RoomMember) bool {
		// Joiners start with no capabilities at all.
		return m.UserID == 2 && !m.CanEdit && !m.CanPlay && !m.IsLead
	})).Return(nil).Once()
	mockRoomRepo.On("Save", ctx, room).Return(nil).Once()

	membership := []domain.RoomMember{
		{ID: 1, RoomID: 7, UserID: 1, CanEdit: true, CanPlay: true, IsLead: true},
		{ID: 2, RoomID: 7, UserID: 2},
	}
	mockRoomRepo.On("ListMembers", ctx, uint(7)).Return(membership, nil).Once()
	mockUserRepo.On("FindByIDs", ctx, []uint{1, 2}).
		Return([]domain.User{{ID: 1, Username: "alice"}, {ID: 2, Username: "bob"}}, nil).Once()
	mockStateRepo.On("GetEditor", ctx, uint(7)).Return(domain.NewEditorState(), nil).Once()

	var published []byte
	mockStateRepo.On("PublishEvent", ctx, uint(7), mock.AnythingOfType("[]uint8")).
		Run(func(args mock.Arguments) { published = args.Get(2).([]byte) }).
		Return(nil).Once()

	view, err := svc.JoinRoom(ctx, 2, "ABC123", "")

	require.NoError(t, err)
	require.NotNil(t, view)
	assert.Equal(t, domain.Capability{}, view.Permissions[2])

	var event domain.Event
	require.NoError(t, event.Unmarshal(published))
	assert.Equal(t, domain.EventNewUser, event.Type)
	require.NotNil(t, event.Room)
	assert.Len(t, event.Room.Participants, 2)
	mockStateRepo.AssertExpectations(t)
}

func TestRoomService_LeaveRoom_LastMemberDeletesRoom(t *testing.T) {
	mockRoomRepo := new(mocks.RoomRepository)
	mockUserRepo := new(mocks.UserRepository)
	mockStateRepo := new(mocks.StateRepository)
	svc := newRoomService(mockRoomRepo, mockUserRepo, mockStateRepo)
	ctx := context.Background()

	room := &domain.Room{ID: 7}
	mockRoomRepo.On("FindByID", ctx, uint(7)).Return(room, nil).Once()
	mockRoomRepo.On("FindMember", ctx, uint(7), uint(1)).
		Return(&domain.RoomMember{ID: 1, RoomID: 7, UserID: 1, IsLead: true}, nil).Once()
	mockRoomRepo.On("RemoveMember", ctx, uint(7), uint(1)).Return(nil).Once()
	mockRoomRepo.On("ListMembers", ctx, uint(7)).Return([]domain.RoomMember{}, nil).Once()
	mockRoomRepo.On("Delete", ctx, uint(7)).Return(nil).Once()
	mockStateRepo.On("CleanupRoomState", ctx, uint(7)).Return(nil).Once()

	view, err := svc.LeaveRoom(ctx, 7, 1)

	require.NoError(t, err)
	assert.Nil(t, view)
	mockRoomRepo.AssertExpectations(t)
	mockStateRepo.AssertNotCalled(t, "PublishEvent", mock.Anything, mock.Anything, mock.Anything)
}

func TestRoomService_LeaveRoom_ReassignsLeadToEarliestJoiner(t *testing.T) {
	mockRoomRepo := new(mocks.RoomRepository)
	mockUserRepo := new(mocks.UserRepository)
	mockStateRepo := new(mocks.StateRepository)
	svc := newRoomService(mockRoomRepo, mockUserRepo, mockStateRepo)
	ctx := context.Background()

	room := &domain.Room{ID: 7}
	remaining := []domain.RoomMember{
		{ID: 2, RoomID: 7, UserID: 8},
		{ID: 3, RoomID: 7, UserID: 9},
	}
	mockRoomRepo.On("FindByID", ctx, uint(7)).Return(room, nil).Once()
	mockRoomRepo.On("FindMember", ctx, uint(7), uint(1)).
		Return(&domain.RoomMember{ID: 1, RoomID: 7, UserID: 1, IsLead: true}, nil).Once()
	mockRoomRepo.On("RemoveMember", ctx, uint(7), uint(1)).Return(nil).Once()
	mockRoomRepo.On("ListMembers", ctx, uint(7)).Return(remaining, nil)
	mockRoomRepo.On("UpdateMember", ctx, mock.MatchedBy(func(m *domain.RoomMember) bool {
		// Lead goes to the earliest remaining joiner.
		return m.UserID == 8 && m.IsLead
	})).Return(nil).Once()
	mockRoomRepo.On("Save", ctx, room).Return(nil).Once()
	mockUserRepo.On("FindByIDs", ctx, []uint{8, 9}).
		Return([]domain.User{{ID: 8, Username: "carol"}, {ID: 9, Username: "dave"}}, nil).Once()
	mockStateRepo.On("GetEditor", ctx, uint(7)).Return(domain.EditorState{}, nil).Once()

	var published []byte
	mockStateRepo.On("PublishEvent", ctx, uint(7), mock.AnythingOfType("[]uint8")).
		Run(func(args mock.Arguments) { published = args.Get(2).([]byte) }).
		Return(nil).Once()

	view, err := svc.LeaveRoom(ctx, 7, 1)

	require.NoError(t, err)
	require.NotNil(t, view)

	var event domain.Event
	require.NoError(t, event.Unmarshal(published))
	assert.Equal(t, domain.EventLeaveRoom, event.Type)
	// The departure event names the user who left so connected clients of
	// that user can be detached.
	assert.Equal(t, uint(1), event.UserID)
	mockRoomRepo.AssertExpectations(t)
}

func TestRoomService_LeaveRoom_NotMember(t *testing.T) {
	mockRoomRepo := new(mocks.RoomRepository)
	mockUserRepo := new(mocks.UserRepository)
	mockStateRepo := new(mocks.StateRepository)
	svc := newRoomService(mockRoomRepo, mockUserRepo, mockStateRepo)
	ctx := context.Background()

	mockRoomRepo.On("FindByID", ctx, uint(7)).Return(&domain.Room{ID: 7}, nil).Once()
	mockRoomRepo.On("FindMember", ctx, uint(7), uint(3)).Return(nil, repository.ErrMemberNotFound).Once()

	_, err := svc.LeaveRoom(ctx, 7, 3)

	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrNotMember))
	mockRoomRepo.AssertNotCalled(t, "RemoveMember", mock.Anything, mock.Anything, mock.Anything)
}
