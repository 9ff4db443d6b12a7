package service

import (
	"context"
	"errors"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/YusufStar/code-craft/internal/domain"
	"github.com/YusufStar/code-craft/internal/repository"
	"github.com/YusufStar/code-craft/internal/tasks"
)

// editorFlushThreshold is the number of applied edits after which the live
// document is flushed from Redis to MySQL in the background.
const editorFlushThreshold = 25

// TaskEnqueuer enqueues background tasks. *asynq.Client satisfies it.
type TaskEnqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// CollaborationService applies document edits to the live room state.
// Edits are last-writer-wins under the per-room lock: the lock order is the
// apply order, and events are published before the lock is released so every
// subscriber observes edits in that same order.
type CollaborationService struct {
	roomRepo  repository.RoomRepository
	userRepo  repository.UserRepository
	stateRepo repository.StateRepository
	enqueuer  TaskEnqueuer
	locks     *RoomLocker
}

// NewCollaborationService creates a CollaborationService. The enqueuer may be
// nil, in which case background flushing is disabled.
func NewCollaborationService(roomRepo repository.RoomRepository, userRepo repository.UserRepository, stateRepo repository.StateRepository, enqueuer TaskEnqueuer, locks *RoomLocker) *CollaborationService {
	if roomRepo == nil || userRepo == nil || stateRepo == nil || locks == nil {
		panic("all dependencies must be non-nil for CollaborationService")
	}
	return &CollaborationService{roomRepo: roomRepo, userRepo: userRepo, stateRepo: stateRepo, enqueuer: enqueuer, locks: locks}
}

// ApplyCode replaces the shared document text. The acting user must be a
// member with canEdit. sessionID tags the broadcast so the originating client
// can skip its own echo.
func (s *CollaborationService) ApplyCode(ctx context.Context, roomID, userID uint, sessionID, code string) error {
	logCtx := logrus.WithFields(logrus.Fields{"room_id": roomID, "user_id": userID})

	mu := s.locks.Lock(roomID)
	defer mu.Unlock()

	if err := s.requireEdit(ctx, roomID, userID, logCtx); err != nil {
		return err
	}

	if err := s.stateRepo.SetCode(ctx, roomID, code); err != nil {
		logCtx.WithError(err).Error("Failed to write code to live state")
		return ErrInternalServer
	}

	publishEvent(ctx, s.stateRepo, &domain.Event{
		Type:   domain.EventCode,
		RoomID: roomID,
		Origin: sessionID,
		Code:   code,
	})
	s.maybeFlush(ctx, roomID, logCtx)
	return nil
}

// ApplyLanguage switches the document's runtime. Empty version falls back to
// the default for consistency with fresh rooms.
func (s *CollaborationService) ApplyLanguage(ctx context.Context, roomID, userID uint, sessionID, language, version string) error {
	logCtx := logrus.WithFields(logrus.Fields{"room_id": roomID, "user_id": userID, "language": language})

	if language == "" {
		return ErrValidation
	}
	if version == "" {
		version = domain.DefaultVersion
	}

	mu := s.locks.Lock(roomID)
	defer mu.Unlock()

	if err := s.requireEdit(ctx, roomID, userID, logCtx); err != nil {
		return err
	}

	if err := s.stateRepo.SetLanguage(ctx, roomID, language, version); err != nil {
		logCtx.WithError(err).Error("Failed to write language to live state")
		return ErrInternalServer
	}

	publishEvent(ctx, s.stateRepo, &domain.Event{
		Type:     domain.EventLanguage,
		RoomID:   roomID,
		Origin:   sessionID,
		Language: language,
		Version:  version,
	})
	s.maybeFlush(ctx, roomID, logCtx)
	return nil
}

// Snapshot returns the full current view of a room, used to seed a freshly
// attached client before it starts consuming the event stream.
func (s *CollaborationService) Snapshot(ctx context.Context, roomID uint) (*domain.RoomView, error) {
	room, err := s.roomRepo.FindByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, ErrInternalServer
	}
	view, err := buildRoomView(ctx, s.roomRepo, s.userRepo, s.stateRepo, room)
	if err != nil {
		return nil, ErrInternalServer
	}
	return view, nil
}

// requireEdit verifies membership and the canEdit capability under the lock.
// A member that already left fails with ErrNotMember even if the edit was
// sent before the departure.
func (s *CollaborationService) requireEdit(ctx context.Context, roomID, userID uint, logCtx *logrus.Entry) error {
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
			logCtx.Warn("Edit rejected: not a member")
			return ErrNotMember
		}
		logCtx.WithError(err).Error("Failed to look up membership")
		return ErrInternalServer
	}
	if !member.CanEdit {
		logCtx.Warn("Edit rejected: member lacks edit capability")
		return ErrForbidden
	}
	return nil
}

// maybeFlush counts the edit and enqueues a background flush once the burst
// threshold is reached. Flush problems never fail the edit.
func (s *CollaborationService) maybeFlush(ctx context.Context, roomID uint, logCtx *logrus.Entry) {
	if s.enqueuer == nil {
		return
	}

	count, err := s.stateRepo.IncrementOpCount(ctx, roomID)
	if err != nil {
		logCtx.WithError(err).Warn("Failed to increment edit counter")
		return
	}
	if count < editorFlushThreshold {
		return
	}

	task, err := tasks.NewEditorFlushTask(roomID)
	if err != nil {
		logCtx.WithError(err).Error("Failed to build editor flush task")
		return
	}
	if _, err := s.enqueuer.Enqueue(task, asynq.Queue("low")); err != nil {
		logCtx.WithError(err).Error("Failed to enqueue editor flush task")
		return
	}
	if err := s.stateRepo.ResetOpCount(ctx, roomID); err != nil {
		logCtx.WithError(err).Warn("Failed to reset edit counter")
	}
	logCtx.WithField("op_count", count).Debug("Editor flush enqueued")
}
