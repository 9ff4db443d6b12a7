package domain

import "encoding/json"

// Sync event types carried on a room's pub/sub channel. Server-applied order
// on the channel is the single authoritative order every member observes.
const (
	// EventCode and EventLanguage are full-document replacements relayed to
	// every member except the originator (self-echo suppressed via Origin).
	EventCode     = "code"
	EventLanguage = "language"

	// EventOutput carries an execution result to all members, invoker included.
	EventOutput = "output"

	// Membership and capability changes carry the complete updated RoomView.
	EventPermissions = "permissions"
	EventNewUser     = "new-user"
	EventLeaveRoom   = "leave-room"

	// EventSync seeds a freshly attached client with the current snapshot.
	EventSync = "sync"
)

// Event is the envelope broadcast to room members.
type Event struct {
	Type   string `json:"type"`
	RoomID uint   `json:"roomId"`

	// Origin is the session id that caused the event. Delivery to that
	// session is suppressed for code/language events so a client never
	// overwrites its own in-flight edit.
	Origin string `json:"origin,omitempty"`

	// UserID names the user a membership event is about, e.g. the one who
	// left on a leave-room event.
	UserID uint `json:"userId,omitempty"`

	// Room is the full snapshot for membership/permission/sync events.
	Room *RoomView `json:"room,omitempty"`

	Code     string `json:"code,omitempty"`
	Language string `json:"language,omitempty"`
	Version  string `json:"version,omitempty"`
	Output   string `json:"output,omitempty"`
}

// Marshal serializes the event for the wire.
func (e *Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// Unmarshal parses a wire payload into the event.
func (e *Event) Unmarshal(payload []byte) error {
	return json.Unmarshal(payload, e)
}
