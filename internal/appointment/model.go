package appointment

import (
	"crypto/subtle"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/calendar"
)

type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusCompleted AppointmentStatus = "completed"
	StatusNoShow    AppointmentStatus = "no_show"
)

// transitions is the booking lifecycle. States without an entry are terminal.
var transitions = map[AppointmentStatus][]AppointmentStatus{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCompleted, StatusNoShow, StatusCancelled},
}

func (s AppointmentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted, StatusNoShow:
		return true
	}
	return false
}

func (s AppointmentStatus) Terminal() bool {
	return len(transitions[s]) == 0
}

// CanTransition reports whether from -> to is in the lifecycle table.
func CanTransition(from, to AppointmentStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type Channel string

const (
	ViaDirect  Channel = "direct"
	ViaChatbot Channel = "chatbot"
)

type Appointment struct {
	ID                 uuid.UUID
	PatientName        string
	PatientEmail       string
	PatientPhone       string
	Date               calendar.Date
	Time               calendar.Clock
	Status             AppointmentStatus
	ConfirmationToken  string
	Notes              *string
	CreatedVia         Channel
	SessionID          *string
	CancellationReason *string
	LateCancellation   bool
	ModificationReason *string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (a *Appointment) Slot() calendar.Slot {
	return calendar.Slot{Date: a.Date, Time: a.Time}
}

// Owner identifies the caller of a modify/cancel: either the session that booked the
// appointment or the holder of its confirmation token.
type Owner struct {
	SessionID string
	Token     string
}

func (a *Appointment) OwnedBy(o Owner) bool {
	if o.Token != "" && subtle.ConstantTimeCompare([]byte(o.Token), []byte(a.ConfirmationToken)) == 1 {
		return true
	}
	return o.SessionID != "" && a.SessionID != nil && *a.SessionID == o.SessionID
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}

type ListFilter struct {
	Date   *calendar.Date
	Status AppointmentStatus
	Limit  int
}
