// Package apperr maps errors from the scheduling core onto the response shape the
// gateway returns to patients.
package apperr

import (
	"errors"
	"net/http"
	"time"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/availability"
	"github.com/hackgods/clinic-scheduling/internal/calendar"
	"github.com/hackgods/clinic-scheduling/internal/patient"
	"github.com/hackgods/clinic-scheduling/internal/waitlist"
)

const (
	CodeValidation              = "VALIDATION_ERROR"
	CodeInvalidDateTime         = "INVALID_DATETIME"
	CodeSlotUnavailable         = "SLOT_UNAVAILABLE"
	CodeAppointmentNotFound     = "APPOINTMENT_NOT_FOUND"
	CodeModificationTooLate     = "MODIFICATION_TOO_LATE"
	CodeAlreadyCancelled        = "ALREADY_CANCELLED"
	CodeInvalidStatusTransition = "INVALID_STATUS_TRANSITION"
	CodeAlreadyOnWaitlist       = "ALREADY_ON_WAITLIST"
	CodeWaitlistEntryNotFound   = "WAITLIST_ENTRY_NOT_FOUND"
	CodeNoValidUpdates          = "NO_VALID_UPDATES"
	CodeInternal                = "INTERNAL_ERROR"
)

// Problem is the failure shape: code, a message safe to show the patient, whether
// retrying can succeed and the HTTP status a gateway should use.
type Problem struct {
	Code           string         `json:"code"`
	UserMessage    string         `json:"userMessage"`
	Retryable      bool           `json:"retryable"`
	HTTPStatusHint int            `json:"httpStatusHint"`
	Details        map[string]any `json:"details,omitempty"`
}

func (p Problem) Error() string {
	return p.Code + ": " + p.UserMessage
}

var reasonMessages = map[calendar.Reason]string{
	calendar.ReasonPast:           "The requested date and time has already passed.",
	calendar.ReasonNotBusinessDay: "The clinic is open Monday to Friday only.",
	calendar.ReasonOutsideHours:   "Appointments are available between 08:00 and 18:00.",
	calendar.ReasonNotOnGrid:      "Appointments start on the hour or half hour.",
}

// Describe classifies err. Unknown errors become a retryable INTERNAL_ERROR whose message
// does not leak the cause.
func Describe(err error) Problem {
	var (
		validation *patient.ValidationError
		invalidDT  *calendar.InvalidDateTimeError
		taken      *appointment.SlotUnavailableError
		tooLate    *appointment.TooLateError
	)

	switch {
	case errors.As(err, &validation):
		return Problem{
			Code:           CodeValidation,
			UserMessage:    "Some fields are missing or invalid.",
			HTTPStatusHint: http.StatusBadRequest,
			Details:        map[string]any{"fields": validation.Fields},
		}
	case errors.Is(err, patient.ErrValidation):
		return Problem{
			Code:           CodeValidation,
			UserMessage:    "Some fields are missing or invalid.",
			HTTPStatusHint: http.StatusBadRequest,
		}
	case errors.As(err, &invalidDT):
		msg, ok := reasonMessages[invalidDT.Reason]
		if !ok {
			msg = "The requested date and time is not valid."
		}
		return Problem{
			Code:           CodeInvalidDateTime,
			UserMessage:    msg,
			HTTPStatusHint: http.StatusBadRequest,
			Details:        map[string]any{"reason": string(invalidDT.Reason)},
		}
	case errors.Is(err, calendar.ErrInvalidDateTime), errors.Is(err, calendar.ErrInvalidDate),
		errors.Is(err, calendar.ErrInvalidClock), errors.Is(err, availability.ErrInvalidRange):
		return Problem{
			Code:           CodeInvalidDateTime,
			UserMessage:    "The requested date or time is not valid.",
			HTTPStatusHint: http.StatusBadRequest,
		}
	case errors.As(err, &taken):
		return Problem{
			Code:           CodeSlotUnavailable,
			UserMessage:    "That time was just taken. Please choose one of the suggested times.",
			Retryable:      true,
			HTTPStatusHint: http.StatusConflict,
			Details:        map[string]any{"alternatives": SlotsJSON(taken.Alternatives)},
		}
	case errors.Is(err, appointment.ErrSlotUnavailable), errors.Is(err, appointment.ErrSlotTaken):
		return Problem{
			Code:           CodeSlotUnavailable,
			UserMessage:    "That time is no longer available.",
			Retryable:      true,
			HTTPStatusHint: http.StatusConflict,
		}
	case errors.As(err, &tooLate):
		return Problem{
			Code:           CodeModificationTooLate,
			UserMessage:    "Appointments can only be changed up to 24 hours in advance. Please contact the clinic.",
			HTTPStatusHint: http.StatusUnprocessableEntity,
			Details: map[string]any{
				"scheduled_at": tooLate.ScheduledAt.Format(time.RFC3339),
				"deadline":     tooLate.Deadline.Format(time.RFC3339),
				"contact":      tooLate.Contact,
			},
		}
	case errors.Is(err, appointment.ErrModificationTooLate):
		return Problem{
			Code:           CodeModificationTooLate,
			UserMessage:    "Appointments can only be changed up to 24 hours in advance. Please contact the clinic.",
			HTTPStatusHint: http.StatusUnprocessableEntity,
		}
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		return Problem{
			Code:           CodeAppointmentNotFound,
			UserMessage:    "We could not find that appointment.",
			HTTPStatusHint: http.StatusNotFound,
		}
	case errors.Is(err, appointment.ErrAlreadyCancelled):
		return Problem{
			Code:           CodeAlreadyCancelled,
			UserMessage:    "This appointment has already been cancelled.",
			HTTPStatusHint: http.StatusConflict,
		}
	case errors.Is(err, appointment.ErrInvalidStatusTransition):
		return Problem{
			Code:           CodeInvalidStatusTransition,
			UserMessage:    "This appointment can no longer be changed.",
			HTTPStatusHint: http.StatusConflict,
		}
	case errors.Is(err, appointment.ErrNoChanges), errors.Is(err, waitlist.ErrNoValidUpdates):
		return Problem{
			Code:           CodeNoValidUpdates,
			UserMessage:    "The request did not contain any change to apply.",
			HTTPStatusHint: http.StatusBadRequest,
		}
	case errors.Is(err, waitlist.ErrAlreadyOnWaitlist):
		return Problem{
			Code:           CodeAlreadyOnWaitlist,
			UserMessage:    "You are already on the waitlist for this date.",
			HTTPStatusHint: http.StatusConflict,
		}
	case errors.Is(err, waitlist.ErrEntryNotFound):
		return Problem{
			Code:           CodeWaitlistEntryNotFound,
			UserMessage:    "We could not find that waitlist entry.",
			HTTPStatusHint: http.StatusNotFound,
		}
	}

	return Problem{
		Code:           CodeInternal,
		UserMessage:    "Something went wrong on our side. Please try again.",
		Retryable:      true,
		HTTPStatusHint: http.StatusInternalServerError,
	}
}

// SlotJSON is the wire form of a slot.
type SlotJSON struct {
	Date string `json:"date"`
	Time string `json:"time"`
}

func SlotsJSON(slots []calendar.Slot) []SlotJSON {
	out := make([]SlotJSON, 0, len(slots))
	for _, s := range slots {
		out = append(out, SlotJSON{Date: s.Date.String(), Time: s.Time.String()})
	}
	return out
}
