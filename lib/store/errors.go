package store

import apperrors "github.com/go-i2p/redistools/lib/errors"

// ErrPoolUnresolvable is returned by the pool factory when the store host
// does not resolve. It aliases the central definition in lib/errors.
var ErrPoolUnresolvable = apperrors.ErrPoolUnresolvable
