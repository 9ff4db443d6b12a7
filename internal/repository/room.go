package repository

import (
	"context"
	"time"

	"github.com/YusufStar/code-craft/internal/domain"
)

// RoomRepository is the authoritative store of rooms and their membership.
type RoomRepository interface {
	// FindByID returns the room with the given id, or ErrRoomNotFound.
	FindByID(ctx context.Context, id uint) (*domain.Room, error)

	// FindByCode returns the room with the given shareable room code, or
	// ErrRoomNotFound.
	FindByCode(ctx context.Context, code string) (*domain.Room, error)

	// Create inserts the room and the creator's membership atomically, so a
	// room is never observable by code without at least one lead member.
	// Returns ErrDuplicateEntry on a room code collision.
	Create(ctx context.Context, room *domain.Room, creator *domain.RoomMember) error

	// Save creates the room when ID is zero, updates it otherwise. Returns
	// ErrDuplicateEntry on a room code collision.
	Save(ctx context.Context, room *domain.Room) error

	// Delete removes the room, its membership rows and its editor snapshot.
	Delete(ctx context.Context, roomID uint) error

	// IsRoomCodeExists reports whether a room code is already taken.
	IsRoomCodeExists(ctx context.Context, code string) (bool, error)

	// FindAllByUserID returns every room the user is a member of.
	FindAllByUserID(ctx context.Context, userID uint) ([]domain.Room, error)

	// FindInactiveSince returns rooms whose LastActive is older than the
	// cutoff. Used by the background sweep.
	FindInactiveSince(ctx context.Context, cutoff time.Time) ([]domain.Room, error)

	// ListMembers returns the room's membership ordered by join sequence
	// (lowest RoomMember.ID first), giving the UI a deterministic listing.
	ListMembers(ctx context.Context, roomID uint) ([]domain.RoomMember, error)

	// FindMember returns one membership entry, or ErrMemberNotFound.
	FindMember(ctx context.Context, roomID, userID uint) (*domain.RoomMember, error)

	// AddMember inserts a membership entry. Returns ErrDuplicateEntry if the
	// user is already a member.
	AddMember(ctx context.Context, member *domain.RoomMember) error

	// UpdateMember persists a changed membership entry.
	UpdateMember(ctx context.Context, member *domain.RoomMember) error

	// RemoveMember deletes a membership entry, or ErrMemberNotFound.
	RemoveMember(ctx context.Context, roomID, userID uint) error

	// CountMembers returns the number of members in the room.
	CountMembers(ctx context.Context, roomID uint) (int64, error)

	// SaveEditorSnapshot upserts the durable copy of the room document.
	SaveEditorSnapshot(ctx context.Context, roomID uint, state domain.EditorState) error

	// LoadEditorSnapshot returns the durable copy, or ErrEditorNotFound.
	LoadEditorSnapshot(ctx context.Context, roomID uint) (*domain.RoomEditor, error)
}
