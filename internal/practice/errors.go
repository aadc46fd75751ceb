package practice

import "errors"

// User-facing failure conditions. The HTTP layer maps each to a distinct
// status so the client can render "try again", "out of attempts" and
// "sign in" differently.
var (
	ErrMissingKey        = errors.New("missing exercise key")
	ErrInvalidKey        = errors.New("invalid exercise key")
	ErrForbidden         = errors.New("exercise belongs to a different user")
	ErrInstanceNotFound  = errors.New("exercise instance not found")
	ErrSessionNotFound   = errors.New("session not found")
	ErrAlreadyFinalized  = errors.New("exercise already finalized")
	ErrAttemptsExhausted = errors.New("no attempts remaining")
	ErrRevealDisabled    = errors.New("reveal is disabled for this session")
	ErrUnknownKind       = errors.New("unknown exercise kind")
)
