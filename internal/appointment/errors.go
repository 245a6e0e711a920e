package appointment

import (
	"errors"
	"fmt"
)

var (
	ErrValidation      = errors.New("validation failed")
	ErrNotFound        = errors.New("not found")
	ErrSlotUnavailable = errors.New("slot unavailable")
	ErrAlreadyDecided  = errors.New("reschedule request already decided")
	ErrStorageConflict = errors.New("slot taken by a concurrent write")
	ErrForbidden       = errors.New("caller may not perform this operation")
)

var (
	ErrAppointmentNotFound = fmt.Errorf("appointment %w", ErrNotFound)
	ErrRequestNotFound     = fmt.Errorf("reschedule request %w", ErrNotFound)
	ErrPatientNotFound     = fmt.Errorf("patient %w", ErrNotFound)
	ErrPhysicianNotFound   = fmt.Errorf("physician %w", ErrNotFound)
	ErrRoomNotFound        = fmt.Errorf("room %w", ErrNotFound)
	ErrProcedureNotFound   = fmt.Errorf("procedure %w", ErrNotFound)

	ErrSlotBeingBooked = fmt.Errorf("%w: slot is currently being booked, please retry", ErrSlotUnavailable)
)

// ValidationError describes malformed or missing input.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func validationError(msg string) error {
	return &ValidationError{msg: msg}
}

func validationErrorf(format string, args ...any) error {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

// IsRecoverable reports whether err is an expected outcome the caller can fix and retry.
func IsRecoverable(err error) bool {
	switch {
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrSlotUnavailable),
		errors.Is(err, ErrAlreadyDecided),
		errors.Is(err, ErrStorageConflict),
		errors.Is(err, ErrForbidden):
		return true
	}
	return false
}
