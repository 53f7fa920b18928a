package appointment

import (
	"errors"
	"fmt"
	"time"

	"github.com/hackgods/clinic-scheduling/internal/calendar"
)

var (
	ErrAppointmentNotFound     = errors.New("appointment not found")
	ErrSlotTaken               = errors.New("slot already has a live appointment")
	ErrTokenCollision          = errors.New("confirmation token collision")
	ErrSlotUnavailable         = errors.New("slot is not available")
	ErrModificationTooLate     = errors.New("appointment can no longer be changed")
	ErrAlreadyCancelled        = errors.New("appointment is already cancelled")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrNoChanges               = errors.New("no valid changes requested")
)

// SlotUnavailableError is returned when a slot is taken; it always carries alternatives
// when any exist in the look-ahead window.
type SlotUnavailableError struct {
	Slot         calendar.Slot
	Alternatives []calendar.Slot
}

func (e *SlotUnavailableError) Error() string {
	return fmt.Sprintf("%s: %s", ErrSlotUnavailable, e.Slot)
}

func (e *SlotUnavailableError) Is(target error) bool {
	return target == ErrSlotUnavailable
}

// Contact is where a patient can turn when self-service is refused.
type Contact struct {
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
}

type TooLateError struct {
	ScheduledAt time.Time
	Deadline    time.Time
	Contact     Contact
}

func (e *TooLateError) Error() string {
	return fmt.Sprintf("%s: changes closed at %s", ErrModificationTooLate, e.Deadline.Format(time.RFC3339))
}

func (e *TooLateError) Is(target error) bool {
	return target == ErrModificationTooLate
}
