package records

import "errors"

var (
	// ErrNotFound is returned when a record id does not exist.
	ErrNotFound = errors.New("records: not found")
	// ErrConflict is returned when a booking overlaps a confirmed booking for the same doctor and location.
	ErrConflict = errors.New("records: booking conflicts with an existing appointment")
	// ErrInvalidTransition is returned for status changes other than confirmed → cancelled.
	ErrInvalidTransition = errors.New("records: invalid status transition")
	// ErrDuplicate is returned when an id is already taken.
	ErrDuplicate = errors.New("records: duplicate id")
)
