package worker

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/YusufStar/code-craft/internal/repository"
)

// RoomSweepHandler removes rooms that have sat inactive past the retention
// window with nobody in them. Rooms that still have members are left alone
// no matter how old they are.
type RoomSweepHandler struct {
	roomRepo  repository.RoomRepository
	stateRepo repository.StateRepository
	retention time.Duration
}

// NewRoomSweepHandler creates a RoomSweepHandler.
func NewRoomSweepHandler(roomRepo repository.RoomRepository, stateRepo repository.StateRepository, retention time.Duration) *RoomSweepHandler {
	if roomRepo == nil || stateRepo == nil {
		panic("all dependencies must be non-nil for RoomSweepHandler")
	}
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	return &RoomSweepHandler{roomRepo: roomRepo, stateRepo: stateRepo, retention: retention}
}

// ProcessTask implements asynq.Handler.
func (h *RoomSweepHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	cutoff := time.Now().UTC().Add(-h.retention)
	logCtx := logrus.WithFields(logrus.Fields{"task_type": t.Type(), "cutoff": cutoff})

	stale, err := h.roomRepo.FindInactiveSince(ctx, cutoff)
	if err != nil {
		logCtx.WithError(err).Error("Failed to list inactive rooms")
		return err
	}

	swept := 0
	for _, room := range stale {
		count, err := h.roomRepo.CountMembers(ctx, room.ID)
		if err != nil {
			logCtx.WithError(err).WithField("room_id", room.ID).Warn("Failed to count members, skipping room")
			continue
		}
		if count > 0 {
			continue
		}
		if err := h.roomRepo.Delete(ctx, room.ID); err != nil {
			logCtx.WithError(err).WithField("room_id", room.ID).Warn("Failed to delete stale room")
			continue
		}
		if err := h.stateRepo.CleanupRoomState(ctx, room.ID); err != nil {
			logCtx.WithError(err).WithField("room_id", room.ID).Warn("Failed to clean up state of swept room")
		}
		swept++
	}

	logCtx.WithFields(logrus.Fields{"candidates": len(stale), "swept": swept}).Info("Stale room sweep completed")
	return nil
}
