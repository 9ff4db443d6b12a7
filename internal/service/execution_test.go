package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/YusufStar/code-craft/internal/domain"
	"github.com/YusufStar/code-craft/internal/repository"
	"github.com/YusufStar/code-craft/internal/repository/mocks"
	"github.com/YusufStar/code-craft/internal/service"
)

type mockRunner struct {
	mock.Mock
}

func (m *mockRunner) Run(ctx context.Context, language, version, code string) (*domain.RunResult, error) {
	args := m.Called(ctx, language, version, code)
	if r := args.Get(0); r != nil {
		return r.(*domain.RunResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func newExecutionService(roomRepo *mocks.RoomRepository, userRepo *mocks.UserRepository, stateRepo *mocks.StateRepository, runner service.Runner) *service.ExecutionService {
	return service.NewExecutionService(roomRepo, userRepo, stateRepo, runner, service.NewRoomLocker())
}

func uintPtr(v uint) *uint { return &v }

func TestExecutionService_Run_RequiresPlayCapability(t *testing.T) {
	mockRoomRepo := new(mocks.RoomRepository)
	mockUserRepo := new(mocks.UserRepository)
	mockStateRepo := new(mocks.StateRepository)
	runner := new(mockRunner)
	svc := newExecutionService(mockRoomRepo, mockUserRepo, mockStateRepo, runner)
	ctx := context.Background()

	mockRoomRepo.On("FindByID", ctx, uint(7)).Return(&domain.Room{ID: 7}, nil).Once()
	mockRoomRepo.On("FindMember", ctx, uint(7), uint(2)).
		Return(&domain.RoomMember{RoomID: 7, UserID: 2, CanEdit: true}, nil).Once()

	_, err := svc.Run(ctx, 2, uintPtr(7), "javascript", "", "console.log(1)")

	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrForbidden))
	runner.AssertNotCalled(t, "Run", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestExecutionService_Run_BroadcastsOutputToRoom(t *testing.T) {
	mockRoomRepo := new(mocks.RoomRepository)
	mockUserRepo := new(mocks.UserRepository)
	mockStateRepo := new(mocks.StateRepository)
	runner := new(mockRunner)
	svc := newExecutionService(mockRoomRepo, mockUserRepo, mockStateRepo, runner)
	ctx := context.Background()

	mockRoomRepo.On("FindByID", ctx, uint(7)).Return(&domain.Room{ID: 7}, nil).Twice()
	mockRoomRepo.On("FindMember", ctx, uint(7), uint(2)).
		Return(&domain.RoomMember{RoomID: 7, UserID: 2, CanPlay: true}, nil).Once()
	runner.On("Run", ctx, domain.DefaultLanguage, domain.DefaultVersion, "console.log(42)").
		Return(&domain.RunResult{Status: domain.RunSuccess, Stdout: "42\n"}, nil).Once()
	mockStateRepo.On("SetOutput", ctx, uint(7), "42\n").Return(nil).Once()

	var published []byte
	mockStateRepo.On("PublishEvent", ctx, uint(7), mock.AnythingOfType("[]uint8")).
		Run(func(args mock.Arguments) { published = args.Get(2).([]byte) }).
		Return(nil).Once()

	result, err := svc.Run(ctx, 2, uintPtr(7), "", "", "console.log(42)")

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, domain.RunSuccess, result.Status)

	var event domain.Event
	require.NoError(t, event.Unmarshal(published))
	assert.Equal(t, domain.EventOutput, event.Type)
	// Output events carry no origin: the invoker receives them too.
	assert.Empty(t, event.Origin)
	assert.Equal(t, "42\n", event.Output)
	mockStateRepo.AssertExpectations(t)
}

func TestExecutionService_Run_DiscardsOutputWhenRoomGone(t *testing.T) {
	mockRoomRepo := new(mocks.RoomRepository)
	mockUserRepo := new(mocks.UserRepository)
	mockStateRepo := new(mocks.StateRepository)
	runner := new(mockRunner)
	svc := newExecutionService(mockRoomRepo, mockUserRepo, mockStateRepo, runner)
	ctx := context.Background()

	// The room exists for the capability check but is gone by the time the
	// run finishes.
	mockRoomRepo.On("FindByID", ctx, uint(7)).Return(&domain.Room{ID: 7}, nil).Once()
	mockRoomRepo.On("FindMember", ctx, uint(7), uint(2)).
		Return(&domain.RoomMember{RoomID: 7, UserID: 2, CanPlay: true}, nil).Once()
	runner.On("Run", ctx, "javascript", domain.DefaultVersion, "slow()").
		Return(&domain.RunResult{Status: domain.RunSuccess, Stdout: "done"}, nil).Once()
	mockRoomRepo.On("FindByID", ctx, uint(7)).Return(nil, repository.ErrRoomNotFound).Once()

	result, err := svc.Run(ctx, 2, uintPtr(7), "javascript", "", "slow()")

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "done", result.Stdout)
	mockStateRepo.AssertNotCalled(t, "SetOutput", mock.Anything, mock.Anything, mock.Anything)
	mockStateRepo.AssertNotCalled(t, "PublishEvent", mock.Anything, mock.Anything, mock.Anything)
}

func TestExecutionService_Run_LocalRunSkipsGating(t *testing.T) {
	mockRoomRepo := new(mocks.RoomRepository)
	mockUserRepo := new(mocks.UserRepository)
	mockStateRepo := new(mocks.StateRepository)
	runner := new(mockRunner)
	svc := newExecutionService(mockRoomRepo, mockUserRepo, mockStateRepo, runner)
	ctx := context.Background()

	runner.On("Run", ctx, "python", "3.10.0", "print(1)").
		Return(&domain.RunResult{Status: domain.RunRuntimeError, Stderr: "boom"}, nil).Once()

	result, err := svc.Run(ctx, 2, nil, "python", "3.10.0", "print(1)")

	require.NoError(t, err)
	assert.Equal(t, domain.RunRuntimeError, result.Status)
	assert.Equal(t, "boom", result.RenderOutput())
	mockRoomRepo.AssertNotCalled(t, "FindMember", mock.Anything, mock.Anything, mock.Anything)
	mockStateRepo.AssertNotCalled(t, "PublishEvent", mock.Anything, mock.Anything, mock.Anything)
}

func TestExecutionService_RunProblem_AllCasesPass(t *testing.T) {
	mockRoomRepo := new(mocks.RoomRepository)
	mockUserRepo := new(mocks.UserRepository)
	mockStateRepo := new(mocks.StateRepository)
	runner := new(mockRunner)
	svc := newExecutionService(mockRoomRepo, mockUserRepo, mockStateRepo, runner)
	ctx := context.Background()

	code := "function solve(a, b) { return a + b; }"
	runner.On("Run", ctx, "javascript", domain.DefaultVersion, mock.MatchedBy(func(wrapped string) bool {
		return strings.Contains(wrapped, "solve(1, 2)")
	})).Return(&domain.RunResult{Status: domain.RunSuccess, Stdout: "3\n"}, nil).Once()
	runner.On("Run", ctx, "javascript", domain.DefaultVersion, mock.MatchedBy(func(wrapped string) bool {
		return strings.Contains(wrapped, "solve(5, 5)")
	})).Return(&domain.RunResult{Status: domain.RunSuccess, Stdout: "10\n"}, nil).Once()

	result, err := svc.RunProblem(ctx, 2, "javascript", "", code, []domain.ProblemCase{
		{Params: "1, 2", Expected: "3"},
		{Params: "5, 5", Expected: "10"},
	})

	require.NoError(t, err)
	assert.True(t, result.SubmissionConfirm)
	require.Len(t, result.DetailConfirm, 2)
	assert.Equal(t, "3", result.DetailConfirm[0].Response)
	assert.Equal(t, "10", result.DetailConfirm[1].Response)
}

func TestExecutionService_RunProblem_FailedCaseFailsSubmission(t *testing.T) {
	mockRoomRepo := new(mocks.RoomRepository)
	mockUserRepo := new(mocks.UserRepository)
	mockStateRepo := new(mocks.StateRepository)
	runner := new(mockRunner)
	svc := newExecutionService(mockRoomRepo, mockUserRepo, mockStateRepo, runner)
	ctx := context.Background()

	runner.On("Run", ctx, "python", domain.DefaultVersion, mock.AnythingOfType("string")).
		Return(&domain.RunResult{Status: domain.RunSuccess, Stdout: "wrong\n"}, nil).Once()

	result, err := svc.RunProblem(ctx, 2, "python", "", "def solve(n): return n", []domain.ProblemCase{
		{Params: "1", Expected: "right"},
	})

	require.NoError(t, err)
	assert.False(t, result.SubmissionConfirm)
	require.Len(t, result.DetailConfirm, 1)
	assert.Equal(t, "wrong", result.DetailConfirm[0].Response)
	assert.Equal(t, "right", result.DetailConfirm[0].ExpectedResponse)
}

func TestExecutionService_RunProblem_UnsupportedLanguage(t *testing.T) {
	mockRoomRepo := new(mocks.RoomRepository)
	mockUserRepo := new(mocks.UserRepository)
	mockStateRepo := new(mocks.StateRepository)
	runner := new(mockRunner)
	svc := newExecutionService(mockRoomRepo, mockUserRepo, mockStateRepo, runner)

	_, err := svc.RunProblem(context.Background(), 2, "cobol", "", "solve", []domain.ProblemCase{{Params: "1", Expected: "1"}})

	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrValidation))
	runner.AssertNotCalled(t, "Run", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
