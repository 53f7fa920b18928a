package appointment

import (
	"context"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/calendar"
)

// Repository contains all DB interactions needed by the service.
type Repository interface {
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	GetAppointmentByToken(ctx context.Context, token string) (*Appointment, error)
	ListAppointments(ctx context.Context, f ListFilter) ([]Appointment, error)

	// For availability
	OccupiedSlots(ctx context.Context, from, to calendar.Date, exclude uuid.UUID) ([]calendar.Slot, error)

	// TryBook inserts a new appointment. It returns ErrSlotTaken when the storage
	// uniqueness constraint rejects the slot, whatever any earlier read said.
	TryBook(ctx context.Context, a *Appointment) error
	// TryReschedule moves a pending/confirmed appointment to slot, with ErrSlotTaken on conflict.
	TryReschedule(ctx context.Context, id uuid.UUID, slot calendar.Slot, reason *string) (*Appointment, error)

	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error)
	CancelAppointment(ctx context.Context, id uuid.UUID, from AppointmentStatus, reason *string, late bool) (*Appointment, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}
