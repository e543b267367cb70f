package handshake

import "errors"

// ErrIdentityInvalid is returned when a peer's transcript signature fails
// verification. This is fatal: no retries.
var ErrIdentityInvalid = errors.New("handshake: identity signature invalid")

// ErrAlreadyStarted and ErrWrongState guard the two-message state machine
// against being driven out of order.
var (
	ErrAlreadyStarted = errors.New("handshake: already started")
	ErrWrongState     = errors.New("handshake: called out of order")
)
