package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/YusufStar/code-craft/internal/domain"
	"github.com/YusufStar/code-craft/internal/repository"
	"github.com/YusufStar/code-craft/internal/repository/mocks"
	"github.com/YusufStar/code-craft/internal/service"
	"github.com/YusufStar/code-craft/internal/tasks"
)

type mockEnqueuer struct {
	mock.Mock
}

func (m *mockEnqueuer) Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	args := m.Called(task, opts)
	if info := args.Get(0); info != nil {
		return info.(*asynq.TaskInfo), args.Error(1)
	}
	return nil, args.Error(1)
}

func newCollabService(roomRepo *mocks.RoomRepository, userRepo *mocks.UserRepository, stateRepo *mocks.StateRepository, enqueuer service.TaskEnqueuer) *service.CollaborationService {
	return service.NewCollaborationService(roomRepo, userRepo, stateRepo, enqueuer, service.NewRoomLocker())
}

func TestCollaborationService_ApplyCode_RequiresEditCapability(t *testing.T) {
	mockRoomRepo := new(mocks.RoomRepository)
	mockUserRepo := new(mocks.UserRepository)
	mockStateRepo := new(mocks.StateRepository)
	svc := newCollabService(mockRoomRepo, mockUserRepo, mockStateRepo, nil)
	ctx := context.Background()

	mockRoomRepo.On("FindByID", ctx, uint(7)).Return(&domain.Room{ID: 7}, nil).Once()
	mockRoomRepo.On("FindMember", ctx, uint(7), uint(2)).
		Return(&domain.RoomMember{RoomID: 7, UserID: 2, CanPlay: true}, nil).Once()

	err := svc.ApplyCode(ctx, 7, 2, "session-a", "print('hi')")

	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrForbidden))
	mockStateRepo.AssertNotCalled(t, "SetCode", mock.Anything, mock.Anything, mock.Anything)
}

func TestCollaborationService_ApplyCode_DepartedMemberRejected(t *testing.T) {
	mockRoomRepo := new(mocks.RoomRepository)
	mockUserRepo := new(mocks.UserRepository)
	mockStateRepo := new(mocks.StateRepository)
	svc := newCollabService(mockRoomRepo, mockUserRepo, mockStateRepo, nil)
	ctx := context.Background()

	mockRoomRepo.On("FindByID", ctx, uint(7)).Return(&domain.Room{ID: 7}, nil).Once()
	// The edit was sent before the departure, but membership is checked at
	// apply time.
	mockRoomRepo.On("FindMember", ctx, uint(7), uint(2)).Return(nil, repository.ErrMemberNotFound).Once()

	err := svc.ApplyCode(ctx, 7, 2, "session-a", "late edit")

	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrNotMember))
	mockStateRepo.AssertNotCalled(t, "SetCode", mock.Anything, mock.Anything, mock.Anything)
	mockStateRepo.AssertNotCalled(t, "PublishEvent", mock.Anything, mock.Anything, mock.Anything)
}

func TestCollaborationService_ApplyCode_PublishesTaggedEvent(t *testing.T) {
	mockRoomRepo := new(mocks.RoomRepository)
	mockUserRepo := new(mocks.UserRepository)
	mockStateRepo := new(mocks.StateRepository)
	enqueuer := new(mockEnqueuer)
	svc := newCollabService(mockRoomRepo, mockUserRepo, mockStateRepo, enqueuer)
	ctx := context.Background()

	mockRoomRepo.On("FindByID", ctx, uint(7)).Return(&domain.Room{ID: 7}, nil).Once()
	mockRoomRepo.On("FindMember", ctx, uint(7), uint(2)).
		Return(&domain.RoomMember{RoomID: 7, UserID: 2, CanEdit: true}, nil).Once()
	mockStateRepo.On("SetCode", ctx, uint(7), "const x = 1;").Return(nil).Once()

	var published []byte
	mockStateRepo.On("PublishEvent", ctx, uint(7), mock.AnythingOfType("[]uint8")).
		Run(func(args mock.Arguments) { published = args.Get(2).([]byte) }).
		Return(nil).Once()
	mockStateRepo.On("IncrementOpCount", ctx, uint(7)).Return(int64(1), nil).Once()

	err := svc.ApplyCode(ctx, 7, 2, "session-a", "const x = 1;")

	require.NoError(t, err)
	var event domain.Event
	require.NoError(t, event.Unmarshal(published))
	assert.Equal(t, domain.EventCode, event.Type)
	assert.Equal(t, "session-a", event.Origin)
	assert.Equal(t, "const x = 1;", event.Code)
	enqueuer.AssertNotCalled(t, "Enqueue", mock.Anything, mock.Anything)
}

func TestCollaborationService_ApplyCode_FlushesAfterBurst(t *testing.T) {
	mockRoomRepo := new(mocks.RoomRepository)
	mockUserRepo := new(mocks.UserRepository)
	mockStateRepo := new(mocks.StateRepository)
	enqueuer := new(mockEnqueuer)
	svc := newCollabService(mockRoomRepo, mockUserRepo, mockStateRepo, enqueuer)
	ctx := context.Background()

	mockRoomRepo.On("FindByID", ctx, uint(7)).Return(&domain.Room{ID: 7}, nil).Once()
	mockRoomRepo.On("FindMember", ctx, uint(7), uint(2)).
		Return(&domain.RoomMember{RoomID: 7, UserID: 2, CanEdit: true}, nil).Once()
	mockStateRepo.On("SetCode", ctx, uint(7), "burst").Return(nil).Once()
	mockStateRepo.On("PublishEvent", ctx, uint(7), mock.AnythingOfType("[]uint8")).Return(nil).Once()
	mockStateRepo.On("IncrementOpCount", ctx, uint(7)).Return(int64(25), nil).Once()
	enqueuer.On("Enqueue", mock.MatchedBy(func(task *asynq.Task) bool {
		return task.Type() == tasks.TypeEditorFlush
	}), mock.Anything).Return(&asynq.TaskInfo{}, nil).Once()
	mockStateRepo.On("ResetOpCount", ctx, uint(7)).Return(nil).Once()

	err := svc.ApplyCode(ctx, 7, 2, "session-a", "burst")

	require.NoError(t, err)
	enqueuer.AssertExpectations(t)
	mockStateRepo.AssertExpectations(t)
}

func TestCollaborationService_ApplyLanguage_DefaultsVersion(t *testing.T) {
	mockRoomRepo := new(mocks.RoomRepository)
	mockUserRepo := new(mocks.UserRepository)
	mockStateRepo := new(mocks.StateRepository)
	svc := newCollabService(mockRoomRepo, mockUserRepo, mockStateRepo, nil)
	ctx := context.Background()

	mockRoomRepo.On("FindByID", ctx, uint(7)).Return(&domain.Room{ID: 7}, nil).Once()
	mockRoomRepo.On("FindMember", ctx, uint(7), uint(2)).
		Return(&domain.RoomMember{RoomID: 7, UserID: 2, CanEdit: true}, nil).Once()
	mockStateRepo.On("SetLanguage", ctx, uint(7), "python", domain.DefaultVersion).Return(nil).Once()

	var published []byte
	mockStateRepo.On("PublishEvent", ctx, uint(7), mock.AnythingOfType("[]uint8")).
		Run(func(args mock.Arguments) { published = args.Get(2).([]byte) }).
		Return(nil).Once()

	err := svc.ApplyLanguage(ctx, 7, 2, "session-a", "python", "")

	require.NoError(t, err)
	var event domain.Event
	require.NoError(t, event.Unmarshal(published))
	assert.Equal(t, domain.EventLanguage, event.Type)
	assert.Equal(t, "python", event.Language)
	assert.Equal(t, domain.DefaultVersion, event.Version)
}

func TestCollaborationService_Snapshot_RoomGone(t *testing.T) {
	mockRoomRepo := new(mocks.RoomRepository)
	mockUserRepo := new(mocks.UserRepository)
	mockStateRepo := new(mocks.StateRepository)
	svc := newCollabService(mockRoomRepo, mockUserRepo, mockStateRepo, nil)
	ctx := context.Background()

	mockRoomRepo.On("FindByID", ctx, uint(404)).Return(nil, repository.ErrRoomNotFound).Once()

	_, err := svc.Snapshot(ctx, 404)

	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrRoomNotFound))
}
