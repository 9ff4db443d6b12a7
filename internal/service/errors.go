package service

import "errors"

// Business errors returned synchronously to the initiating caller. They are
// never broadcast, and no room state is mutated once one is returned.
var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrUserNotFound   = errors.New("user not found")
	ErrMemberNotFound = errors.New("member not found in room")

	// ErrWrongPassword means a private room join with a mismatched password.
	ErrWrongPassword = errors.New("wrong room password")

	ErrAlreadyMember = errors.New("user already in room")
	ErrNotMember     = errors.New("user not in room")

	// ErrForbidden means a capability check failed: editing without canEdit,
	// running without canPlay, or permission changes without isLead.
	ErrForbidden = errors.New("operation not permitted")

	// ErrValidation means a malformed request, e.g. a private room created
	// without a password.
	ErrValidation = errors.New("invalid request")

	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrRegistrationFailed   = errors.New("registration failed: username or email already exists")

	ErrInternalServer = errors.New("internal server error")
)
