package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/YusufStar/code-craft/internal/domain"
	"github.com/YusufStar/code-craft/internal/repository"
)

// RoomService is the room lifecycle manager: creation, join/leave and
// teardown-on-empty. All membership mutations run under the per-room lock.
type RoomService struct {
	roomRepo  repository.RoomRepository
	userRepo  repository.UserRepository
	stateRepo repository.StateRepository
	locks     *RoomLocker
}

// NewRoomService creates a RoomService.
func NewRoomService(roomRepo repository.RoomRepository, userRepo repository.UserRepository, stateRepo repository.StateRepository, locks *RoomLocker) *RoomService {
	if roomRepo == nil || userRepo == nil || stateRepo == nil || locks == nil {
		panic("all dependencies must be non-nil for RoomService")
	}
	return &RoomService{roomRepo: roomRepo, userRepo: userRepo, stateRepo: stateRepo, locks: locks}
}

// CreateRoom creates a room owned by creatorID with a fresh shareable code.
// The creator becomes the sole participant with full capabilities and the
// shared document starts from the runtime defaults. A private room without a
// password is rejected with ErrValidation.
func (s *RoomService) CreateRoom(ctx context.Context, creatorID uint, name string, isPrivate bool, password string) (*domain.RoomView, error) {
	logCtx := logrus.WithFields(logrus.Fields{"creator_id": creatorID, "room_name": name})

	if name == "" {
		return nil, ErrValidation
	}
	if isPrivate && password == "" {
		logCtx.Warn("Rejected private room without password")
		return nil, ErrValidation
	}

	if _, err := s.userRepo.FindByID(ctx, creatorID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		logCtx.WithError(err).Error("Failed to look up room creator")
		return nil, ErrInternalServer
	}

	roomCode, err := s.generateUniqueRoomCode(ctx)
	if err != nil {
		logCtx.WithError(err).Error("Failed to generate unique room code")
		return nil, ErrInternalServer
	}
	logCtx = logCtx.WithField("room_code", roomCode)

	room := &domain.Room{
		Name:          name,
		RoomCode:      roomCode,
		IsPrivate:     isPrivate,
		Password:      password,
		CreatedUserID: creatorID,
		LastActive:    time.Now().UTC(),
	}
	// Room and creator go in together, so a join racing the creation never
	// observes a lead-less room.
	creator := &domain.RoomMember{UserID: creatorID}
	creator.SetCapability(domain.FullCapability())
	if err := s.roomRepo.Create(ctx, room, creator); err != nil {
		logCtx.WithError(err).Error("Failed to create room")
		return nil, ErrInternalServer
	}
	logCtx = logCtx.WithField("room_id", room.ID)

	if err := s.stateRepo.InitEditor(ctx, room.ID, domain.NewEditorState()); err != nil {
		logCtx.WithError(err).Error("Failed to initialize editor state")
		return nil, ErrInternalServer
	}

	view, err := buildRoomView(ctx, s.roomRepo, s.userRepo, s.stateRepo, room)
	if err != nil {
		logCtx.WithError(err).Error("Failed to build room view after create")
		return nil, ErrInternalServer
	}

	logCtx.Info("Room created")
	return view, nil
}

// JoinRoom adds userID to the room identified by its shareable code. The new
// member starts with a zero capability set. The updated full snapshot is
// broadcast to every member, joiner included, so all clients resync the
// document immediately.
func (s *RoomService) JoinRoom(ctx context.Context, userID uint, roomCode, password string) (*domain.RoomView, error) {
	logCtx := logrus.WithFields(logrus.Fields{"user_id": userID, "room_code": roomCode})

	room, err := s.roomRepo.FindByCode(ctx, roomCode)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			logCtx.Warn("Join failed: room not found")
			return nil, ErrRoomNotFound
		}
		logCtx.WithError(err).Error("Failed to look up room by code")
		return nil, ErrInternalServer
	}
	logCtx = logCtx.WithField("room_id", room.ID)

	mu := s.locks.Lock(room.ID)
	defer mu.Unlock()

	// Re-read under the lock: the room may have been torn down while we
	// waited.
	room, err = s.roomRepo.FindByID(ctx, room.ID)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return nil, ErrRoomNotFound
		}
		logCtx.WithError(err).Error("Failed to re-read room under lock")
		return nil, ErrInternalServer
	}

	if _, err := s.roomRepo.FindMember(ctx, room.ID, userID); err == nil {
		logCtx.Warn("Join failed: already a member")
		return nil, ErrAlreadyMember
	} else if !errors.Is(err, repository.ErrMemberNotFound) {
		logCtx.WithError(err).Error("Failed to check existing membership")
		return nil, ErrInternalServer
	}

	if room.IsPrivate && password != room.Password {
		logCtx.Warn("Join failed: wrong password")
		return nil, ErrWrongPassword
	}

	member := &domain.RoomMember{RoomID: room.ID, UserID: userID}
	if err := s.roomRepo.AddMember(ctx, member); err != nil {
		if errors.Is(err, repository.ErrDuplicateEntry) {
			return nil, ErrAlreadyMember
		}
		logCtx.WithError(err).Error("Failed to add membership")
		return nil, ErrInternalServer
	}

	room.LastActive = time.Now().UTC()
	if err := s.roomRepo.Save(ctx, room); err != nil {
		logCtx.WithError(err).Error("Failed to bump room activity")
		return nil, ErrInternalServer
	}

	view, err := buildRoomView(ctx, s.roomRepo, s.userRepo, s.stateRepo, room)
	if err != nil {
		logCtx.WithError(err).Error("Failed to build room view after join")
		return nil, ErrInternalServer
	}

	publishEvent(ctx, s.stateRepo, &domain.Event{Type: domain.EventNewUser, RoomID: room.ID, Room: view})
	logCtx.Info("User joined room")
	return view, nil
}

// LeaveRoom removes userID from the room. The last member leaving tears the
// room down (returns nil, nil). If the sole lead departs, lead is granted to
// the earliest-remaining joiner so the room never ends up leaderless.
func (s *RoomService) LeaveRoom(ctx context.Context, roomID, userID uint) (*domain.RoomView, error) {
	logCtx := logrus.WithFields(logrus.Fields{"user_id": userID, "room_id": roomID})

	mu := s.locks.Lock(roomID)
	defer mu.Unlock()

	room, err := s.roomRepo.FindByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return nil, ErrRoomNotFound
		}
		logCtx.WithError(err).Error("Failed to look up room")
		return nil, ErrInternalServer
	}

	departing, err := s.roomRepo.FindMember(ctx, roomID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrMemberNotFound) {
			logCtx.Warn("Leave failed: not a member")
			return nil, ErrNotMember
		}
		logCtx.WithError(err).Error("Failed to look up membership")
		return nil, ErrInternalServer
	}

	if err := s.roomRepo.RemoveMember(ctx, roomID, userID); err != nil {
		logCtx.WithError(err).Error("Failed to remove membership")
		return nil, ErrInternalServer
	}

	remaining, err := s.roomRepo.ListMembers(ctx, roomID)
	if err != nil {
		logCtx.WithError(err).Error("Failed to list remaining members")
		return nil, ErrInternalServer
	}

	if len(remaining) == 0 {
		if err := s.roomRepo.Delete(ctx, roomID); err != nil {
			logCtx.WithError(err).Error("Failed to delete empty room")
			return nil, ErrInternalServer
		}
		if err := s.stateRepo.CleanupRoomState(ctx, roomID); err != nil {
			logCtx.WithError(err).Warn("Failed to clean up live state of deleted room")
		}
		s.locks.Forget(roomID)
		logCtx.Info("Last member left, room deleted")
		return nil, nil
	}

	if departing.IsLead && !anyLead(remaining) {
		// ListMembers is ordered by join sequence, so remaining[0] is the
		// earliest joiner.
		successor := remaining[0]
		successor.IsLead = true
		if err := s.roomRepo.UpdateMember(ctx, &successor); err != nil {
			logCtx.WithError(err).Error("Failed to reassign lead")
			return nil, ErrInternalServer
		}
		logCtx.WithField("new_lead_user_id", successor.UserID).Info("Lead reassigned to earliest remaining joiner")
	}

	room.LastActive = time.Now().UTC()
	if err := s.roomRepo.Save(ctx, room); err != nil {
		logCtx.WithError(err).Error("Failed to bump room activity")
		return nil, ErrInternalServer
	}

	view, err := buildRoomView(ctx, s.roomRepo, s.userRepo, s.stateRepo, room)
	if err != nil {
		logCtx.WithError(err).Error("Failed to build room view after leave")
		return nil, ErrInternalServer
	}

	publishEvent(ctx, s.stateRepo, &domain.Event{Type: domain.EventLeaveRoom, RoomID: roomID, UserID: userID, Room: view})
	logCtx.Info("User left room")
	return view, nil
}

// GetRoom returns the materialized snapshot of a room.
func (s *RoomService) GetRoom(ctx context.Context, roomID uint) (*domain.RoomView, error) {
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

// ListRoomsForUser enumerates the rooms the user currently belongs to.
func (s *RoomService) ListRoomsForUser(ctx context.Context, userID uint) ([]domain.Room, error) {
	rooms, err := s.roomRepo.FindAllByUserID(ctx, userID)
	if err != nil {
		logrus.WithError(err).WithField("user_id", userID).Error("Failed to list rooms for user")
		return nil, ErrInternalServer
	}
	return rooms, nil
}

func anyLead(members []domain.RoomMember) bool {
	for _, m := range members {
		if m.IsLead {
			return true
		}
	}
	return false
}

// generateUniqueRoomCode draws 6-character codes until one is free.
func (s *RoomService) generateUniqueRoomCode(ctx context.Context) (string, error) {
	const letters = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	const codeLength = 6
	const maxAttempts = 10

	b := make([]byte, codeLength)
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if _, err := rand.Read(b); err != nil {
			return "", fmt.Errorf("generate random bytes: %w", err)
		}
		for i := range b {
			b[i] = letters[int(b[i])%len(letters)]
		}
		code := string(b)

		exists, err := s.roomRepo.IsRoomCodeExists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("check room code uniqueness: %w", err)
		}
		if !exists {
			return code, nil
		}
		logrus.WithField("room_code", code).Warnf("Generated room code already exists, retrying (attempt %d)", attempt+1)
	}
	return "", fmt.Errorf("failed to generate a unique room code after %d attempts", maxAttempts)
}
