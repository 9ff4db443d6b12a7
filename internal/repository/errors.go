package repository

import "errors"

// Storage-level sentinel errors. Implementations map driver errors onto
// these so services never inspect gorm or Redis errors directly.
var (
	// ErrNotFound means the requested record does not exist.
	ErrNotFound = errors.New("repository: record not found")
	// ErrDuplicateEntry means an insert or update violated a unique constraint.
	ErrDuplicateEntry = errors.New("repository: duplicate entry")
)

// Resource-specific aliases of the generic sentinels.
var (
	ErrUserNotFound   = ErrNotFound
	ErrRoomNotFound   = ErrNotFound
	ErrMemberNotFound = ErrNotFound
	ErrEditorNotFound = ErrNotFound
)
