package domain

import "time"

// ParticipantView is a membership entry with the user profile resolved for
// UI consumption.
type ParticipantView struct {
	UserID   uint      `json:"userId"`
	Username string    `json:"username"`
	CanEdit  bool      `json:"canEdit"`
	CanPlay  bool      `json:"canPlay"`
	IsLead   bool      `json:"isLead"`
	JoinedAt time.Time `json:"joinedAt"`
}

// RoomView is the materialized room snapshot sent to clients: membership in
// join order, the permissions map, and the live editor document. Sync events
// carry the whole view rather than diffs, so a dropped event is healed by the
// next one and re-applying the same view is a no-op.
type RoomView struct {
	ID            uint              `json:"id"`
	Name          string            `json:"name"`
	RoomCode      string            `json:"roomCode"`
	IsPrivate     bool              `json:"isPrivate"`
	CreatedUserID uint              `json:"createdUserId"`
	Participants  []ParticipantView `json:"participants"`
	Permissions   map[uint]Capability `json:"permissions"`
	Code          string            `json:"code"`
	Language      string            `json:"language"`
	Version       string            `json:"version"`
	Output        string            `json:"output"`
}

// CapabilityOf returns the capability set of the given member, or a zero set
// if the user is not in the view.
func (v *RoomView) CapabilityOf(userID uint) Capability {
	if v == nil {
		return Capability{}
	}
	return v.Permissions[userID]
}
