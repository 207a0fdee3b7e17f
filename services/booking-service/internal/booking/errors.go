package booking

import "errors"

var (
	// ErrNotFound matches any NotFoundError via errors.Is.
	ErrNotFound = errors.New("not found")

	// ErrConflict: the requested slot overlaps a non-cancelled appointment,
	// falls outside staff availability, or the appointment is in a terminal
	// state. The caller must pick another slot; no automatic retry.
	ErrConflict = errors.New("time slot is no longer available")

	// ErrInvalidInterval: end ≤ start, a half-specified interval, or a start
	// that is not strictly in the future.
	ErrInvalidInterval = errors.New("invalid appointment interval")

	ErrUnauthorized = errors.New("not authorized")

	// ErrStaleRevision: the appointment changed between read and write; the
	// caller must re-read and retry.
	ErrStaleRevision = errors.New("appointment was modified concurrently")
)

// NotFoundError names the missing entity (user, staff, service, appointment).
type NotFoundError struct {
	Entity string
}

func (e *NotFoundError) Error() string { return e.Entity + " not found" }

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }
