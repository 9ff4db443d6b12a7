package repository

import (
	"context"
	"time"

	"github.com/YusufStar/code-craft/internal/domain"
)

// StateRepository holds the live per-room state and the broadcast channel,
// implemented on Redis. The live editor document here is the ground truth
// while a room is active; the GORM snapshot only trails it.
type StateRepository interface {
	// === Editor document ===

	// InitEditor seeds the room's live document.
	InitEditor(ctx context.Context, roomID uint, state domain.EditorState) error

	// GetEditor returns the room's live document. A missing document comes
	// back as the zero EditorState, not an error.
	GetEditor(ctx context.Context, roomID uint) (domain.EditorState, error)

	// SetCode replaces the shared code (last-writer-wins).
	SetCode(ctx context.Context, roomID uint, code string) error

	// SetLanguage replaces the shared language and runtime version.
	SetLanguage(ctx context.Context, roomID uint, language, version string) error

	// SetOutput replaces the shared execution output.
	SetOutput(ctx context.Context, roomID uint, output string) error

	// CleanupRoomState deletes every key the room owns. Called on teardown.
	CleanupRoomState(ctx context.Context, roomID uint) error

	// === Flush bookkeeping ===

	// IncrementOpCount atomically bumps the room's edit counter and returns
	// the new value. The counter drives snapshot flush scheduling.
	IncrementOpCount(ctx context.Context, roomID uint) (int64, error)

	// ResetOpCount zeroes the edit counter after a flush was enqueued.
	ResetOpCount(ctx context.Context, roomID uint) error

	// === Broadcast ===

	// PublishEvent puts a serialized sync event on the room's channel.
	// Publish order on one channel is the order subscribers observe.
	PublishEvent(ctx context.Context, roomID uint, payload []byte) error

	// === Rate limiting ===

	// CheckRateLimit increments the counter for key and reports whether the
	// caller exceeded limit within the window.
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
