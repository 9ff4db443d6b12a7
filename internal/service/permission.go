package service

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/YusufStar/code-craft/internal/domain"
	"github.com/YusufStar/code-craft/internal/repository"
)

// PermissionService manages per-member capabilities. Only leads may change
// them, and a room is never allowed to drop to zero leads.
type PermissionService struct {
	roomRepo  repository.RoomRepository
	userRepo  repository.UserRepository
	stateRepo repository.StateRepository
	locks     *RoomLocker
}

// NewPermissionService creates a PermissionService.
func NewPermissionService(roomRepo repository.RoomRepository, userRepo repository.UserRepository, stateRepo repository.StateRepository, locks *RoomLocker) *PermissionService {
	if roomRepo == nil || userRepo == nil || stateRepo == nil || locks == nil {
		panic("all dependencies must be non-nil for PermissionService")
	}
	return &PermissionService{roomRepo: roomRepo, userRepo: userRepo, stateRepo: stateRepo, locks: locks}
}

// UpdatePermissions replaces the target member's capability set in full.
// The acting user must hold lead in the room, and a change that would leave
// the room with no lead at all is rejected with ErrForbidden.
func (s *PermissionService) UpdatePermissions(ctx context.Context, roomID, actingUserID, targetUserID uint, caps domain.Capability) (*domain.RoomView, error) {
	logCtx := logrus.WithFields(logrus.Fields{
		"room_id":        roomID,
		"acting_user_id": actingUserID,
		"target_user_id": targetUserID,
	})

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

	acting, err := s.roomRepo.FindMember(ctx, roomID, actingUserID)
	if err != nil {
		if errors.Is(err, repository.ErrMemberNotFound) {
			logCtx.Warn("Permission change rejected: acting user not a member")
			return nil, ErrNotMember
		}
		logCtx.WithError(err).Error("Failed to look up acting membership")
		return nil, ErrInternalServer
	}
	if !acting.IsLead {
		logCtx.Warn("Permission change rejected: acting user is not a lead")
		return nil, ErrForbidden
	}

	target, err := s.roomRepo.FindMember(ctx, roomID, targetUserID)
	if err != nil {
		if errors.Is(err, repository.ErrMemberNotFound) {
			logCtx.Warn("Permission change rejected: target not a member")
			return nil, ErrMemberNotFound
		}
		logCtx.WithError(err).Error("Failed to look up target membership")
		return nil, ErrInternalServer
	}

	if target.IsLead && !caps.IsLead {
		// Revoking a lead is only allowed while another lead remains.
		members, err := s.roomRepo.ListMembers(ctx, roomID)
		if err != nil {
			logCtx.WithError(err).Error("Failed to list members for lead count")
			return nil, ErrInternalServer
		}
		leads := 0
		for _, m := range members {
			if m.IsLead {
				leads++
			}
		}
		if leads <= 1 {
			logCtx.Warn("Permission change rejected: would leave room without a lead")
			return nil, ErrForbidden
		}
	}

	target.SetCapability(caps)
	if err := s.roomRepo.UpdateMember(ctx, target); err != nil {
		logCtx.WithError(err).Error("Failed to persist capability change")
		return nil, ErrInternalServer
	}

	view, err := buildRoomView(ctx, s.roomRepo, s.userRepo, s.stateRepo, room)
	if err != nil {
		logCtx.WithError(err).Error("Failed to build room view after permission change")
		return nil, ErrInternalServer
	}

	publishEvent(ctx, s.stateRepo, &domain.Event{Type: domain.EventPermissions, RoomID: roomID, Room: view})
	logCtx.WithFields(logrus.Fields{
		"can_edit": caps.CanEdit,
		"can_play": caps.CanPlay,
		"is_lead":  caps.IsLead,
	}).Info("Permissions updated")
	return view, nil
}

// GetPermissions returns the capability set of a single member.
func (s *PermissionService) GetPermissions(ctx context.Context, roomID, userID uint) (domain.Capability, error) {
	member, err := s.roomRepo.FindMember(ctx, roomID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrMemberNotFound) {
			return domain.Capability{}, ErrMemberNotFound
		}
		logrus.WithError(err).WithFields(logrus.Fields{"room_id": roomID, "user_id": userID}).
			Error("Failed to look up membership for permission read")
		return domain.Capability{}, ErrInternalServer
	}
	return member.Capability(), nil
}
