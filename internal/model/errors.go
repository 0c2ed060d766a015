package model

import (
	"errors"
	"fmt"
)

// ErrInvalidArgument is returned for missing or malformed input.
var ErrInvalidArgument = errors.New("invalid argument")

// ErrSchedulingConflict is returned when a new session overlaps one of the
// tutor's existing sessions.
var ErrSchedulingConflict = errors.New("session overlaps an existing session")

// ErrAlreadyBooked is returned when booking a session that is already booked.
var ErrAlreadyBooked = errors.New("session is already booked")

// ErrNotBooked is returned when unbooking a session that is not booked.
var ErrNotBooked = errors.New("session is not booked")

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// AlreadyBookedError tells the caller whether the existing booking belongs
// to the requesting student or to someone else.
type AlreadyBookedError struct {
	SessionID   string
	ByRequester bool
}

func (e *AlreadyBookedError) Error() string {
	if e.ByRequester {
		return fmt.Sprintf("you have already booked session %s", e.SessionID)
	}
	return fmt.Sprintf("session %s is already booked by another student", e.SessionID)
}

func (e *AlreadyBookedError) Is(target error) bool {
	return target == ErrAlreadyBooked
}

// SchedulingConflictError carries the existing session that overlaps.
type SchedulingConflictError struct {
	Conflicting Session
}

func (e *SchedulingConflictError) Error() string {
	return fmt.Sprintf("%s: %s to %s",
		ErrSchedulingConflict,
		e.Conflicting.Start.Format("2006-01-02 15:04"),
		e.Conflicting.End.Format("2006-01-02 15:04"),
	)
}

func (e *SchedulingConflictError) Is(target error) bool {
	return target == ErrSchedulingConflict
}

// IsDomainError reports whether err belongs to the domain taxonomy rather
// than the storage or transport layer.
func IsDomainError(err error) bool {
	return errors.Is(err, ErrInvalidArgument) ||
		errors.Is(err, ErrSchedulingConflict) ||
		errors.Is(err, ErrAlreadyBooked) ||
		errors.Is(err, ErrNotBooked) ||
		errors.Is(err, ErrNotFound)
}
