package chat

import "errors"

var (
	ErrMissingIdentifiers = errors.New("chat: missing patient or therapist id")

	// ErrEndpointNotFound is the only failure that moves the primary tiers to their fallback.
	ErrEndpointNotFound = errors.New("chat: endpoint not found")

	ErrNetworkOrServer = errors.New("chat: network or server error")

	// ErrTotalFailure means every tier failed. The engine degrades instead of returning it.
	ErrTotalFailure = errors.New("chat: all endpoints failed")

	ErrEngineStopped  = errors.New("chat: engine stopped")
	ErrAlreadyStarted = errors.New("chat: engine already started")
)
