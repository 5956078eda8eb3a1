package resilience

import apperrors "github.com/go-i2p/redistools/lib/errors"

// These are aliases to the central error definitions in lib/errors.
var (
	// ErrReconnectExhausted is returned when every rebuild round failed.
	ErrReconnectExhausted = apperrors.ErrReconnectExhausted
	// ErrEngineClosed is returned after Engine.Close.
	ErrEngineClosed = apperrors.ErrEngineClosed
	// ErrNoHealthyResource is returned when a fresh pool still yields no
	// healthy connection for the caller.
	ErrNoHealthyResource = apperrors.ErrNoHealthyResource
)
