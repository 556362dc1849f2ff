package domain

import (
	"errors"
	"fmt"

	"parkspot/internal/models"
)

var (
	ErrLocationNotFound = errors.New("parking location not found")
	ErrBookingNotFound  = errors.New("booking not found")
	ErrUserNotFound     = errors.New("user not found")

	ErrNotBookingOwner        = errors.New("booking belongs to another user")
	ErrConcurrentModification = errors.New("booking was modified concurrently")

	ErrInvalidSignature = errors.New("payment signature mismatch")
	ErrOrderMismatch    = errors.New("payment order does not match booking")

	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid token")

	ErrSlotBusy    = errors.New("slot is being reserved by another request")
	ErrRateLimited = errors.New("booking rate limit exceeded")
	ErrGateway     = errors.New("payment gateway request failed")
	ErrNoCapacity  = errors.New("no capacity")
)

// CapacityError reports that a category cannot take another booking.
// Configured is false when the location offers no slots of that category at all.
type CapacityError struct {
	VehicleType models.VehicleType
	Configured  bool
}

func (e *CapacityError) Error() string {
	if !e.Configured {
		return fmt.Sprintf("no slots configured for %s", e.VehicleType)
	}
	return fmt.Sprintf("no free slots for %s", e.VehicleType)
}

func (e *CapacityError) Is(target error) bool {
	return target == ErrNoCapacity
}

// BookingStatusError reports a transition attempted from a non-active booking.
type BookingStatusError struct {
	Status string
}

func (e *BookingStatusError) Error() string {
	return fmt.Sprintf("booking is %s", e.Status)
}
