package domain

import "time"

// Runtime defaults for a fresh room document.
const (
	DefaultLanguage = "javascript"
	DefaultVersion  = "18.15.0"
)

// EditorState is the single shared document of a room: exactly one live copy
// per room, never per member. The live copy sits in Redis; RoomEditor is the
// durable snapshot flushed by the background worker.
type EditorState struct {
	Code     string `json:"code"`
	Language string `json:"language"`
	Version  string `json:"version"`
	Output   string `json:"output"`
}

// NewEditorState returns the document a freshly created room starts with.
func NewEditorState() EditorState {
	return EditorState{Language: DefaultLanguage, Version: DefaultVersion}
}

// RoomEditor is the persisted copy of a room's EditorState.
type RoomEditor struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	RoomID    uint      `gorm:"uniqueIndex:idx_editor_room;not null" json:"roomId"`
	Code      string    `gorm:"type:mediumtext" json:"code"`
	Language  string    `gorm:"type:varchar(64);not null" json:"language"`
	Version   string    `gorm:"type:varchar(64);not null" json:"version"`
	Output    string    `gorm:"type:mediumtext" json:"output"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}
