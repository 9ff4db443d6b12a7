package domain

import "time"

// Room is the authoritative record of a collaborative editing session.
// Membership lives in RoomMember rows, the live shared document in Redis
// (see repository.StateRepository) with a durable copy in RoomEditor.
type Room struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Name          string    `gorm:"type:varchar(191);not null" json:"name"`
	RoomCode      string    `gorm:"type:varchar(191);uniqueIndex:idx_room_code;not null" json:"roomCode"`
	IsPrivate     bool      `gorm:"not null" json:"isPrivate"`
	Password      string    `gorm:"type:varchar(191)" json:"-"`
	CreatedUserID uint      `gorm:"index;not null" json:"createdUserId"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"createdAt"`
	LastActive    time.Time `gorm:"index" json:"lastActive"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"-"`
}

// Capability is the fixed permission set attached to a room membership.
// CanEdit gates shared-document edits, CanPlay gates code execution, IsLead
// gates mutating other members' capabilities.
type Capability struct {
	CanEdit bool `json:"canEdit"`
	CanPlay bool `json:"canPlay"`
	IsLead  bool `json:"isLead"`
}

// FullCapability is what the room creator starts with.
func FullCapability() Capability {
	return Capability{CanEdit: true, CanPlay: true, IsLead: true}
}

// RoomMember is one membership entry. The auto-increment ID doubles as the
// join order, which makes lead reassignment on departure deterministic.
type RoomMember struct {
	ID       uint      `gorm:"primaryKey" json:"-"`
	RoomID   uint      `gorm:"uniqueIndex:idx_room_user;not null" json:"roomId"`
	UserID   uint      `gorm:"uniqueIndex:idx_room_user;index;not null" json:"userId"`
	CanEdit  bool      `gorm:"not null" json:"canEdit"`
	CanPlay  bool      `gorm:"not null" json:"canPlay"`
	IsLead   bool      `gorm:"not null" json:"isLead"`
	JoinedAt time.Time `gorm:"autoCreateTime" json:"joinedAt"`
}

// Capability returns the member's permission set as a value.
func (m *RoomMember) Capability() Capability {
	return Capability{CanEdit: m.CanEdit, CanPlay: m.CanPlay, IsLead: m.IsLead}
}

// SetCapability replaces the member's permission set.
func (m *RoomMember) SetCapability(c Capability) {
	m.CanEdit = c.CanEdit
	m.CanPlay = c.CanPlay
	m.IsLead = c.IsLead
}
