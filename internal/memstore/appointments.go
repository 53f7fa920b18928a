// Package memstore keeps appointments, waitlist entries and outbox messages in memory.
// It enforces the same uniqueness rules as the Postgres schema and backs the memory
// store backend, the simulator and the service tests.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/calendar"
)

type Appointments struct {
	mu     sync.Mutex
	byID   map[uuid.UUID]*appointment.Appointment
	active map[calendar.Slot]uuid.UUID
	tokens map[string]uuid.UUID
	events []appointment.EventLog
	now    func() time.Time
}

func NewAppointments() *Appointments {
	return &Appointments{
		byID:   make(map[uuid.UUID]*appointment.Appointment),
		active: make(map[calendar.Slot]uuid.UUID),
		tokens: make(map[string]uuid.UUID),
		now:    time.Now,
	}
}

func copyAppointment(a *appointment.Appointment) *appointment.Appointment {
	c := *a
	return &c
}

func (s *Appointments) GetAppointmentByID(_ context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byID[id]
	if !ok {
		return nil, appointment.ErrAppointmentNotFound
	}
	return copyAppointment(a), nil
}

func (s *Appointments) GetAppointmentByToken(_ context.Context, token string) (*appointment.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.tokens[token]
	if !ok {
		return nil, appointment.ErrAppointmentNotFound
	}
	return copyAppointment(s.byID[id]), nil
}

func (s *Appointments) ListAppointments(_ context.Context, f appointment.ListFilter) ([]appointment.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []appointment.Appointment
	for _, a := range s.byID {
		if f.Date != nil && a.Date != *f.Date {
			continue
		}
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Slot().Compare(out[j].Slot()); c != 0 {
			return c < 0
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *Appointments) OccupiedSlots(_ context.Context, from, to calendar.Date, exclude uuid.UUID) ([]calendar.Slot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []calendar.Slot
	for slot, id := range s.active {
		if id == exclude || slot.Date.Before(from) || slot.Date.After(to) {
			continue
		}
		out = append(out, slot)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Compare(out[j]) < 0 })
	return out, nil
}

func (s *Appointments) TryBook(_ context.Context, a *appointment.Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.active[a.Slot()]; taken {
		return appointment.ErrSlotTaken
	}
	if _, dup := s.tokens[a.ConfirmationToken]; dup {
		return appointment.ErrTokenCollision
	}

	now := s.now()
	a.CreatedAt = now
	a.UpdatedAt = now
	stored := copyAppointment(a)
	s.byID[a.ID] = stored
	s.tokens[a.ConfirmationToken] = a.ID
	if stored.Status != appointment.StatusCancelled {
		s.active[a.Slot()] = a.ID
	}
	return nil
}

func (s *Appointments) TryReschedule(_ context.Context, id uuid.UUID, slot calendar.Slot, reason *string) (*appointment.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byID[id]
	if !ok || (a.Status != appointment.StatusPending && a.Status != appointment.StatusConfirmed) {
		return nil, appointment.ErrAppointmentNotFound
	}
	if holder, taken := s.active[slot]; taken && holder != id {
		return nil, appointment.ErrSlotTaken
	}

	delete(s.active, a.Slot())
	a.Date = slot.Date
	a.Time = slot.Time
	a.ModificationReason = reason
	a.UpdatedAt = s.now()
	s.active[slot] = id
	return copyAppointment(a), nil
}

func (s *Appointments) UpdateAppointmentStatus(_ context.Context, id uuid.UUID, from, to appointment.AppointmentStatus) (*appointment.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byID[id]
	if !ok || a.Status != from {
		return nil, appointment.ErrAppointmentNotFound
	}
	a.Status = to
	a.UpdatedAt = s.now()
	if to == appointment.StatusCancelled {
		delete(s.active, a.Slot())
	}
	return copyAppointment(a), nil
}

func (s *Appointments) CancelAppointment(_ context.Context, id uuid.UUID, from appointment.AppointmentStatus, reason *string, late bool) (*appointment.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byID[id]
	if !ok || a.Status != from {
		return nil, appointment.ErrAppointmentNotFound
	}
	a.Status = appointment.StatusCancelled
	a.CancellationReason = reason
	a.LateCancellation = late
	a.UpdatedAt = s.now()
	delete(s.active, a.Slot())
	return copyAppointment(a), nil
}

func (s *Appointments) InsertEvent(_ context.Context, ev appointment.EventLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev.ID = int64(len(s.events) + 1)
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = s.now()
	}
	s.events = append(s.events, ev)
	return nil
}

// Events returns the logged events whose type starts with prefix.
func (s *Appointments) Events(prefix string) []appointment.EventLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []appointment.EventLog
	for _, ev := range s.events {
		if strings.HasPrefix(ev.EventType, prefix) {
			out = append(out, ev)
		}
	}
	return out
}
