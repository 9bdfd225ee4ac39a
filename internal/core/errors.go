package core

import "errors"

// Error codes for domain errors.
const (
	ErrCodeBadRequest    = "bad_request"
	ErrCodeUnauthorized  = "unauthorized"
	ErrCodeNotFound      = "not_found"
	ErrCodeForbidden     = "forbidden"
	ErrCodeGone          = "gone"
	ErrCodeAlreadyOnline = "already_online"
	ErrCodeRateLimited   = "rate_limited"
	ErrCodeInternal      = "internal"
)

var (
	// ErrMessageNotFound is returned when a message id does not exist.
	ErrMessageNotFound = errors.New("message not found")
	// ErrNotOwner is returned when the requester is not the author of the message.
	ErrNotOwner = errors.New("not the message author")
	// ErrMessageDeleted is returned when editing a tombstoned message.
	ErrMessageDeleted = errors.New("message deleted")
	// ErrAlreadyOnline is returned when an identity already has a live session
	// and the registry rejects duplicates.
	ErrAlreadyOnline = errors.New("identity already online")
	// ErrSessionClosed is returned when an operation races with session shutdown.
	ErrSessionClosed = errors.New("session closed")
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}
