package calendar

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidDateTime = errors.New("invalid appointment date/time")

type Reason string

const (
	ReasonPast           Reason = "past"
	ReasonNotBusinessDay Reason = "not_business_day"
	ReasonOutsideHours   Reason = "outside_business_hours"
	ReasonNotOnGrid      Reason = "not_on_grid"
)

// InvalidDateTimeError reports why a (date, time) pair cannot be booked.
type InvalidDateTimeError struct {
	Slot   Slot
	Reason Reason
}

func (e *InvalidDateTimeError) Error() string {
	return fmt.Sprintf("%s: %s (%s)", ErrInvalidDateTime, e.Slot, e.Reason)
}

func (e *InvalidDateTimeError) Is(target error) bool {
	return target == ErrInvalidDateTime
}

// ValidateSlot checks the business-day, hours and grid rules. It does not look at the clock.
func ValidateSlot(d Date, c Clock) error {
	slot := Slot{Date: d, Time: c}
	switch {
	case !IsBusinessDay(d):
		return &InvalidDateTimeError{Slot: slot, Reason: ReasonNotBusinessDay}
	case !WithinHours(c):
		return &InvalidDateTimeError{Slot: slot, Reason: ReasonOutsideHours}
	case !OnGrid(c):
		return &InvalidDateTimeError{Slot: slot, Reason: ReasonNotOnGrid}
	}
	return nil
}

// IsValidDateTime applies ValidateSlot and rejects slots that do not start after now.
// The comparison happens in loc, the clinic's timezone, never the caller's.
func IsValidDateTime(d Date, c Clock, now time.Time, loc *time.Location) error {
	if err := ValidateSlot(d, c); err != nil {
		return err
	}
	slot := Slot{Date: d, Time: c}
	if !slot.Start(loc).After(now) {
		return &InvalidDateTimeError{Slot: slot, Reason: ReasonPast}
	}
	return nil
}
