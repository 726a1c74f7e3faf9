package app

import "errors"

var (
	// ErrListenerInactive means a widget message arrived while no
	// scheduling listener was held for the session.
	ErrListenerInactive = errors.New("scheduling listener not active: return to the scheduling step and book again")
	ErrUploadInFlight   = errors.New("an upload is already in progress")
	ErrInvalidMode      = errors.New("invalid wizard mode")
	ErrNewModeOnly      = errors.New("operation is only available for new requests")
)
