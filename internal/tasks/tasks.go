// Package tasks defines the asynq task types and payloads shared by the
// producers (services, scheduler) and the worker handlers.
package tasks

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const (
	// TypeEditorFlush persists a room's live editor state from Redis to MySQL.
	TypeEditorFlush = "editor:flush"
	// TypeRoomSweep removes rooms that have been inactive past the retention
	// window and hold no members.
	TypeRoomSweep = "room:sweep_stale"
)

// EditorFlushPayload identifies the room whose live document should be
// snapshotted to durable storage.
type EditorFlushPayload struct {
	RoomID uint `json:"room_id"`
}

// NewEditorFlushTask creates a flush task for one room.
func NewEditorFlushTask(roomID uint) (*asynq.Task, error) {
	payload, err := json.Marshal(EditorFlushPayload{RoomID: roomID})
	if err != nil {
		return nil, fmt.Errorf("marshal editor flush payload: %w", err)
	}
	return asynq.NewTask(TypeEditorFlush, payload), nil
}

// NewRoomSweepTask creates the periodic stale-room sweep task. It carries no
// payload; the handler derives the cutoff from its own configuration.
func NewRoomSweepTask() *asynq.Task {
	return asynq.NewTask(TypeRoomSweep, nil)
}
