package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/YusufStar/code-craft/internal/repository"
	"github.com/YusufStar/code-craft/internal/tasks"
)

// EditorFlushHandler persists a room's live editor document from the state
// store into MySQL. Edits keep flowing through Redis while this runs; the
// durable snapshot only needs to be recent, not exact.
type EditorFlushHandler struct {
	roomRepo  repository.RoomRepository
	stateRepo repository.StateRepository
}

// NewEditorFlushHandler creates an EditorFlushHandler.
func NewEditorFlushHandler(roomRepo repository.RoomRepository, stateRepo repository.StateRepository) *EditorFlushHandler {
	if roomRepo == nil || stateRepo == nil {
		panic("all dependencies must be non-nil for EditorFlushHandler")
	}
	return &EditorFlushHandler{roomRepo: roomRepo, stateRepo: stateRepo}
}

// ProcessTask implements asynq.Handler.
func (h *EditorFlushHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload tasks.EditorFlushPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal editor flush payload: %v: %w", err, asynq.SkipRetry)
	}
	logCtx := logrus.WithFields(logrus.Fields{"task_type": t.Type(), "room_id": payload.RoomID})

	if _, err := h.roomRepo.FindByID(ctx, payload.RoomID); err != nil {
		// Room already torn down; nothing left to flush.
		logCtx.WithError(err).Info("Skipping flush for missing room")
		return nil
	}

	state, err := h.stateRepo.GetEditor(ctx, payload.RoomID)
	if err != nil {
		return fmt.Errorf("read live editor state for room %d: %w", payload.RoomID, err)
	}

	if err := h.roomRepo.SaveEditorSnapshot(ctx, payload.RoomID, state); err != nil {
		return fmt.Errorf("persist editor snapshot for room %d: %w", payload.RoomID, err)
	}

	logCtx.Info("Editor snapshot flushed to database")
	return nil
}
