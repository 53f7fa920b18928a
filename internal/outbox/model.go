package outbox

import (
	"time"

	"github.com/google/uuid"
)

type MessageType string

const (
	TypeEmail MessageType = "email"
	TypeSMS   MessageType = "sms"
)

func (t MessageType) Valid() bool {
	return t == TypeEmail || t == TypeSMS
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusSent      Status = "sent"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Template names understood by the renderer.
const (
	TemplateAppointmentConfirmation = "appointment_confirmation"
	TemplateAppointmentReminder24h  = "appointment_reminder_24h"
	TemplateAppointmentReminder2h   = "appointment_reminder_2h"
	TemplateAppointmentModified     = "appointment_modified"
	TemplateAppointmentCancelled    = "appointment_cancelled"
	TemplateWaitlistJoined          = "waitlist_joined"
	TemplateWaitlistSlotAvailable   = "waitlist_slot_available"
)

// Message is one outbound notification. Once Sent or Failed it is never modified again.
type Message struct {
	ID           uuid.UUID
	MessageType  MessageType
	Recipient    string
	Subject      *string
	Template     string
	TemplateData map[string]any
	Reference    string // owning aggregate, e.g. "appointment:<id>"
	Status       Status
	RetryCount   int
	MaxRetries   int
	SendAfter    time.Time
	SentAt       *time.Time
	ErrorMessage *string
	CreatedAt    time.Time
}

// Envelope is what the dispatch worker receives for delivery.
type Envelope struct {
	ID           uuid.UUID      `json:"id"`
	MessageType  MessageType    `json:"message_type"`
	Recipient    string         `json:"recipient"`
	Subject      *string        `json:"subject,omitempty"`
	TemplateData map[string]any `json:"template_data"`
	RetryCount   int            `json:"retry_count"`
	MaxRetries   int            `json:"max_retries"`
	SendAfter    time.Time      `json:"send_after"`
}

func (m Message) Envelope() Envelope {
	return Envelope{
		ID:           m.ID,
		MessageType:  m.MessageType,
		Recipient:    m.Recipient,
		Subject:      m.Subject,
		TemplateData: m.TemplateData,
		RetryCount:   m.RetryCount,
		MaxRetries:   m.MaxRetries,
		SendAfter:    m.SendAfter,
	}
}

// AppointmentRef and WaitlistRef build Reference values.
func AppointmentRef(id uuid.UUID) string { return "appointment:" + id.String() }
func WaitlistRef(id uuid.UUID) string    { return "waitlist:" + id.String() }
