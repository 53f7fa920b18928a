package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/calendar"
	"github.com/hackgods/clinic-scheduling/internal/patient"
	"github.com/hackgods/clinic-scheduling/internal/waitlist"
)

func TestDescribe(t *testing.T) {
	slot := calendar.Slot{Date: calendar.NewDate(2030, time.June, 3), Time: calendar.Clock{Hour: 10}}

	tests := []struct {
		name      string
		err       error
		code      string
		status    int
		retryable bool
	}{
		{"validation", patient.Field("email", "is required"), CodeValidation, http.StatusBadRequest, false},
		{"invalid datetime", &calendar.InvalidDateTimeError{Slot: slot, Reason: calendar.ReasonNotOnGrid}, CodeInvalidDateTime, http.StatusBadRequest, false},
		{"slot unavailable", &appointment.SlotUnavailableError{Slot: slot}, CodeSlotUnavailable, http.StatusConflict, true},
		{"wrapped not found", fmt.Errorf("load: %w", appointment.ErrAppointmentNotFound), CodeAppointmentNotFound, http.StatusNotFound, false},
		{"too late", &appointment.TooLateError{}, CodeModificationTooLate, http.StatusUnprocessableEntity, false},
		{"already cancelled", appointment.ErrAlreadyCancelled, CodeAlreadyCancelled, http.StatusConflict, false},
		{"bad transition", appointment.ErrInvalidStatusTransition, CodeInvalidStatusTransition, http.StatusConflict, false},
		{"no updates", waitlist.ErrNoValidUpdates, CodeNoValidUpdates, http.StatusBadRequest, false},
		{"no changes", appointment.ErrNoChanges, CodeNoValidUpdates, http.StatusBadRequest, false},
		{"duplicate waitlist", waitlist.ErrAlreadyOnWaitlist, CodeAlreadyOnWaitlist, http.StatusConflict, false},
		{"waitlist not found", waitlist.ErrEntryNotFound, CodeWaitlistEntryNotFound, http.StatusNotFound, false},
		{"unknown", errors.New("connection reset"), CodeInternal, http.StatusInternalServerError, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Describe(tt.err)
			if p.Code != tt.code {
				t.Fatalf("Code = %s, want %s", p.Code, tt.code)
			}
			if p.HTTPStatusHint != tt.status {
				t.Fatalf("HTTPStatusHint = %d, want %d", p.HTTPStatusHint, tt.status)
			}
			if p.Retryable != tt.retryable {
				t.Fatalf("Retryable = %t, want %t", p.Retryable, tt.retryable)
			}
			if p.UserMessage == "" {
				t.Fatal("empty UserMessage")
			}
		})
	}
}

func TestDescribeCarriesAlternatives(t *testing.T) {
	d := calendar.NewDate(2030, time.June, 3)
	err := &appointment.SlotUnavailableError{
		Slot:         calendar.Slot{Date: d, Time: calendar.Clock{Hour: 10}},
		Alternatives: []calendar.Slot{{Date: d, Time: calendar.Clock{Hour: 10, Minute: 30}}},
	}
	p := Describe(err)
	alts, ok := p.Details["alternatives"].([]SlotJSON)
	if !ok || len(alts) != 1 || alts[0].Time != "10:30" {
		t.Fatalf("alternatives = %#v", p.Details["alternatives"])
	}
}

func TestDescribeTooLateCarriesContact(t *testing.T) {
	p := Describe(&appointment.TooLateError{Contact: appointment.Contact{Phone: "+55 11 4000-0000"}})
	c, ok := p.Details["contact"].(appointment.Contact)
	if !ok || c.Phone == "" {
		t.Fatalf("contact = %#v", p.Details["contact"])
	}
}

func TestDescribeUnknownHidesCause(t *testing.T) {
	p := Describe(errors.New("pq: password authentication failed"))
	if p.UserMessage == "pq: password authentication failed" {
		t.Fatal("internal error leaked")
	}
}
