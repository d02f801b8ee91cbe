package alarm

import "errors"

var (
	// ErrNotFound is returned when no alarm matches the requested id.
	ErrNotFound = errors.New("alarm not found")
	// ErrAlreadyExists is returned when creating an alarm whose id is taken.
	ErrAlreadyExists = errors.New("alarm already exists")
	// ErrInvalidID is returned for ids that cannot serve as a stable key.
	ErrInvalidID = errors.New("invalid alarm id")
	// ErrInvariantViolation marks an alarm whose status and history disagree,
	// or whose history breaks the period ordering rules.
	ErrInvariantViolation = errors.New("alarm invariant violation")
	// ErrConflict is returned when a concurrent writer changed the alarm first.
	ErrConflict = errors.New("alarm changed concurrently")
)
