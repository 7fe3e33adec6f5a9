package collection

import "errors"

// Precondition and validation errors surfaced to API callers. State-machine
// violations leave the current state untouched.
var (
	ErrAlreadyActive   = errors.New("collection already active")
	ErrNotActive       = errors.New("no active collection")
	ErrNotPaused       = errors.New("collection not paused")
	ErrInvalidSchedule = errors.New("no valid capture times in the schedule")
)
