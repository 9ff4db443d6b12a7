package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/YusufStar/code-craft/internal/domain"
	"github.com/YusufStar/code-craft/internal/infra/execution/piston"
	"github.com/YusufStar/code-craft/internal/repository"
)

// Runner executes a piece of code on a remote runtime and reports the
// outcome. *piston.Client satisfies it.
type Runner interface {
	Run(ctx context.Context, language, version, code string) (*domain.RunResult, error)
}

// ExecutionService hands code to the execution gateway and, for room runs,
// shares the rendered result with every member.
type ExecutionService struct {
	roomRepo  repository.RoomRepository
	userRepo  repository.UserRepository
	stateRepo repository.StateRepository
	runner    Runner
	locks     *RoomLocker
}

// NewExecutionService creates an ExecutionService.
func NewExecutionService(roomRepo repository.RoomRepository, userRepo repository.UserRepository, stateRepo repository.StateRepository, runner Runner, locks *RoomLocker) *ExecutionService {
	if roomRepo == nil || userRepo == nil || stateRepo == nil || runner == nil || locks == nil {
		panic("all dependencies must be non-nil for ExecutionService")
	}
	return &ExecutionService{roomRepo: roomRepo, userRepo: userRepo, stateRepo: stateRepo, runner: runner, locks: locks}
}

// Run executes code for userID. With a roomID the user must be a member with
// canPlay, and the rendered output is written to the room state and broadcast
// to all members, the runner included. Without a roomID the run is private
// and nothing is shared.
//
// A compile or runtime failure is a successful Run call: the failure lives in
// the returned RunResult. The error return covers gateway and policy
// failures only.
func (s *ExecutionService) Run(ctx context.Context, userID uint, roomID *uint, language, version, code string) (*domain.RunResult, error) {
	if language == "" {
		language = domain.DefaultLanguage
	}
	if version == "" {
		version = domain.DefaultVersion
	}
	logCtx := logrus.WithFields(logrus.Fields{"user_id": userID, "language": language})

	if roomID != nil {
		logCtx = logCtx.WithField("room_id", *roomID)
		if err := s.requirePlay(ctx, *roomID, userID, logCtx); err != nil {
			return nil, err
		}
	}

	// The gateway round-trip runs outside any room lock so a slow runtime
	// never stalls edits.
	result, err := s.runner.Run(ctx, language, version, code)
	if err != nil {
		var reqErr *piston.RequestError
		if errors.As(err, &reqErr) {
			logCtx.WithError(err).Warn("Execution gateway rejected the request")
			return nil, fmt.Errorf("%w: %s", ErrValidation, reqErr.Message)
		}
		logCtx.WithError(err).Error("Execution gateway call failed")
		return nil, ErrInternalServer
	}

	if roomID != nil {
		s.shareResult(ctx, *roomID, result, logCtx)
	}

	logCtx.WithField("status", result.Status).Info("Code executed")
	return result, nil
}

// requirePlay checks membership and the canPlay capability under the room
// lock, then releases it before the run itself.
func (s *ExecutionService) requirePlay(ctx context.Context, roomID, userID uint, logCtx *logrus.Entry) error {
	mu := s.locks.Lock(roomID)
	defer mu.Unlock()

	if _, err := s.roomRepo.FindByID(ctx, roomID); err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return ErrRoomNotFound
		}
		logCtx.WithError(err).Error("Failed to look up room")
		return ErrInternalServer
	}
	member, err := s.roomRepo.FindMember(ctx, roomID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrMemberNotFound) {
			logCtx.Warn("Run rejected: not a member")
			return ErrNotMember
		}
		logCtx.WithError(err).Error("Failed to look up membership")
		return ErrInternalServer
	}
	if !member.CanPlay {
		logCtx.Warn("Run rejected: member lacks play capability")
		return ErrForbidden
	}
	return nil
}

// shareResult stores the rendered output and broadcasts it. If the room was
// torn down while the run was in flight the result is silently discarded;
// the runner still receives it through the synchronous return.
func (s *ExecutionService) shareResult(ctx context.Context, roomID uint, result *domain.RunResult, logCtx *logrus.Entry) {
	mu := s.locks.Lock(roomID)
	defer mu.Unlock()

	if _, err := s.roomRepo.FindByID(ctx, roomID); err != nil {
		logCtx.Info("Room gone before run finished, output discarded")
		return
	}

	output := result.RenderOutput()
	if err := s.stateRepo.SetOutput(ctx, roomID, output); err != nil {
		logCtx.WithError(err).Error("Failed to write run output to live state")
		return
	}
	publishEvent(ctx, s.stateRepo, &domain.Event{
		Type:   domain.EventOutput,
		RoomID: roomID,
		Output: output,
	})
}

// RunProblem executes the submitted solution against every test case and
// compares each response to the expected value. The submission passes only
// when every case matches.
func (s *ExecutionService) RunProblem(ctx context.Context, userID uint, language, version, code string, cases []domain.ProblemCase) (*domain.SubmissionResult, error) {
	if language == "" {
		language = domain.DefaultLanguage
	}
	if version == "" {
		version = domain.DefaultVersion
	}
	if len(cases) == 0 {
		return nil, ErrValidation
	}
	logCtx := logrus.WithFields(logrus.Fields{"user_id": userID, "language": language, "cases": len(cases)})

	result := &domain.SubmissionResult{
		SubmissionConfirm: true,
		DetailConfirm:     make([]domain.CaseResult, 0, len(cases)),
	}
	for _, tc := range cases {
		wrapped, err := wrapSolution(language, code, tc.Params)
		if err != nil {
			return nil, err
		}

		run, err := s.runner.Run(ctx, language, version, wrapped)
		if err != nil {
			logCtx.WithError(err).Error("Execution gateway call failed during submission")
			return nil, ErrInternalServer
		}

		response := ""
		if run.Status == domain.RunSuccess {
			response = lastLine(run.Stdout)
		} else {
			response = strings.TrimSpace(run.RenderOutput())
		}

		if response != strings.TrimSpace(tc.Expected) {
			result.SubmissionConfirm = false
		}
		result.DetailConfirm = append(result.DetailConfirm, domain.CaseResult{
			Params:           tc.Params,
			Response:         response,
			ExpectedResponse: strings.TrimSpace(tc.Expected),
		})
	}

	logCtx.WithField("passed", result.SubmissionConfirm).Info("Submission evaluated")
	return result, nil
}

// wrapSolution appends a harness that calls solve with the case parameters
// and prints the result on its own final line.
func wrapSolution(language, code, params string) (string, error) {
	switch language {
	case "javascript", "typescript":
		return fmt.Sprintf("%s\nconsole.log(JSON.stringify(solve(%s)));", code, params), nil
	case "python":
		return fmt.Sprintf("%s\nprint(solve(%s))", code, params), nil
	default:
		return "", fmt.Errorf("%w: no submission harness for language %q", ErrValidation, language)
	}
}

// lastLine returns the final non-empty line of the output.
func lastLine(out string) string {
	trimmed := strings.TrimRight(out, "\n\r \t")
	if trimmed == "" {
		return ""
	}
	if i := strings.LastIndexByte(trimmed, '\n'); i >= 0 {
		return strings.TrimSpace(trimmed[i+1:])
	}
	return strings.TrimSpace(trimmed)
}
