package pool

import apperrors "github.com/go-i2p/redistools/lib/errors"

// Errors returned by the pool. These are aliases to the central error
// definitions in lib/errors.
var (
	// ErrPoolClosed is returned when operating on a closed pool.
	ErrPoolClosed = apperrors.ErrPoolClosed
	// ErrBorrowTimeout is returned when no connection became available in time.
	ErrBorrowTimeout = apperrors.ErrBorrowTimeout
)
