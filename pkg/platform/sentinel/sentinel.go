package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and timers return these
// (optionally wrapped) so services can translate them into domain errors.
//
//   - ErrNotFound: session does not exist in the store
//   - ErrConflict: concurrent writer won an optimistic transaction
//   - ErrInvalidState: entity in wrong state for the requested operation
//   - ErrClosed: resource already torn down
//   - ErrUnavailable: backing service temporarily unavailable
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrClosed       = errors.New("closed")
	ErrUnavailable  = errors.New("unavailable")
)
