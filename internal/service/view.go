package service

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/YusufStar/code-craft/internal/domain"
	"github.com/YusufStar/code-craft/internal/repository"
)

// buildRoomView materializes the snapshot clients consume: membership in
// join order with profiles resolved, the permissions map, and the live
// editor document. The resolution is a read-side convenience; the Room,
// RoomMember and editor records stay authoritative.
func buildRoomView(
	ctx context.Context,
	roomRepo repository.RoomRepository,
	userRepo repository.UserRepository,
	stateRepo repository.StateRepository,
	room *domain.Room,
) (*domain.RoomView, error) {
	members, err := roomRepo.ListMembers(ctx, room.ID)
	if err != nil {
		return nil, err
	}

	ids := make([]uint, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.UserID)
	}
	users, err := userRepo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	usernames := make(map[uint]string, len(users))
	for _, u := range users {
		usernames[u.ID] = u.Username
	}

	editor, err := stateRepo.GetEditor(ctx, room.ID)
	if err != nil {
		// The view is still useful without the live document; log and
		// fall back to an empty one.
		logrus.WithError(err).WithField("room_id", room.ID).Warn("Failed to read live editor state for room view")
		editor = domain.EditorState{}
	}

	view := &domain.RoomView{
		ID:            room.ID,
		Name:          room.Name,
		RoomCode:      room.RoomCode,
		IsPrivate:     room.IsPrivate,
		CreatedUserID: room.CreatedUserID,
		Participants:  make([]domain.ParticipantView, 0, len(members)),
		Permissions:   make(map[uint]domain.Capability, len(members)),
		Code:          editor.Code,
		Language:      editor.Language,
		Version:       editor.Version,
		Output:        editor.Output,
	}
	for _, m := range members {
		view.Participants = append(view.Participants, domain.ParticipantView{
			UserID:   m.UserID,
			Username: usernames[m.UserID],
			CanEdit:  m.CanEdit,
			CanPlay:  m.CanPlay,
			IsLead:   m.IsLead,
			JoinedAt: m.JoinedAt,
		})
		view.Permissions[m.UserID] = m.Capability()
	}
	return view, nil
}

// publishEvent serializes and publishes a sync event on the room channel.
// Failures are logged, not propagated: the mutation already happened and the
// next full-snapshot event heals any member that missed this one.
func publishEvent(ctx context.Context, stateRepo repository.StateRepository, event *domain.Event) {
	payload, err := event.Marshal()
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{"room_id": event.RoomID, "type": event.Type}).
			Error("Failed to marshal sync event")
		return
	}
	if err := stateRepo.PublishEvent(ctx, event.RoomID, payload); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{"room_id": event.RoomID, "type": event.Type}).
			Error("Failed to publish sync event")
	}
}
