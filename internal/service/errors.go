package service

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks missing or malformed booking input.
	ErrValidation = errors.New("validation failed")
	// ErrPastDate is returned for bookings dated before today.
	ErrPastDate = errors.New("date is in the past")
	// ErrConflict means the slot was taken by another reservation.
	ErrConflict = errors.New("slot no longer available")
	// ErrServiceNotFound is returned for unknown or inactive services.
	ErrServiceNotFound = errors.New("service not found")
	// ErrReservationNotFound is returned by reservation lookups.
	ErrReservationNotFound = errors.New("reservation not found")
	// ErrSlotNotOffered means the time is not a start time of the service's rule.
	ErrSlotNotOffered = fmt.Errorf("%w: time is not offered by the service schedule", ErrValidation)
)

// rejections are failures caused by the request rather than the system.
func isRejection(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrPastDate) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrServiceNotFound)
}

func isConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}
