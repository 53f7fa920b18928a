package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/availability"
	"github.com/hackgods/clinic-scheduling/internal/calendar"
	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/outbox"
	"github.com/hackgods/clinic-scheduling/internal/patient"
	redisclient "github.com/hackgods/clinic-scheduling/internal/redis"
)

const (
	EventAppointmentCreated     = "APPOINTMENT_CREATED"
	EventAppointmentConfirmed   = "APPOINTMENT_CONFIRMED"
	EventAppointmentModified    = "APPOINTMENT_MODIFIED"
	EventAppointmentCancelled   = "APPOINTMENT_CANCELLED"
	EventAppointmentTransitions = "APPOINTMENT_STATUS_CHANGED"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
	tokenAttempts    = 3
)

// Notifier is the part of the outbox the booking engine writes to.
type Notifier interface {
	Enqueue(ctx context.Context, req outbox.EnqueueRequest) (*outbox.Message, error)
	CancelPending(ctx context.Context, reference string) (int, error)
}

// WaitlistHooks lets the waitlist react to slots opening and patients booking.
type WaitlistHooks interface {
	SlotOpened(ctx context.Context, slot calendar.Slot)
	Booked(ctx context.Context, email string, date calendar.Date)
}

type Service struct {
	repo     Repository
	avail    *availability.Store
	locker   redisclient.Locker
	notifier Notifier
	hooks    WaitlistHooks
	cfg      config.Config
	now      func() time.Time
}

type Option func(*Service)

// WithClock replaces time.Now; the clinic location still comes from cfg.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithWaitlistHooks(h WaitlistHooks) Option {
	return func(s *Service) { s.hooks = h }
}

func NewService(repo Repository, locker redisclient.Locker, notifier Notifier, cfg config.Config, opts ...Option) *Service {
	if locker == nil {
		locker = redisclient.NopLocker{}
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.ModificationWindow <= 0 {
		cfg.ModificationWindow = 24 * time.Hour
	}
	s := &Service{
		repo:     repo,
		locker:   locker,
		notifier: notifier,
		cfg:      cfg,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.avail = availability.NewStore(repo, cfg.Location, s.now)
	return s
}

// SetWaitlistHooks wires the waitlist after both services exist.
func (s *Service) SetWaitlistHooks(h WaitlistHooks) {
	s.hooks = h
}

func (s *Service) Availability() *availability.Store {
	return s.avail
}

// CreateRequest is the input of a booking.
type CreateRequest struct {
	Patient    patient.Info
	Date       calendar.Date
	Time       calendar.Clock
	Notes      string  `validate:"max=1000"`
	CreatedVia Channel `validate:"omitempty,oneof=direct chatbot"`
	SessionID  string  `validate:"max=128"`
}

// CreateAppointment validates and books a slot. The availability pre-check only gives
// a fast answer; the constrained insert decides who gets a contested slot.
func (s *Service) CreateAppointment(ctx context.Context, req CreateRequest) (*Appointment, error) {
	req.Patient = req.Patient.Normalize()
	req.Notes = strings.TrimSpace(req.Notes)
	if err := patient.Validate(req); err != nil {
		return nil, err
	}
	if req.CreatedVia == "" {
		req.CreatedVia = ViaDirect
	}

	slot := calendar.Slot{Date: req.Date, Time: req.Time}
	if err := calendar.IsValidDateTime(slot.Date, slot.Time, s.now(), s.cfg.Location); err != nil {
		return nil, err
	}

	free, err := s.avail.IsAvailable(ctx, slot, uuid.Nil)
	if err != nil {
		return nil, fmt.Errorf("check availability: %w", err)
	}
	if !free {
		return nil, s.slotUnavailable(ctx, slot, nil)
	}

	appt := &Appointment{
		ID:           uuid.New(),
		PatientName:  req.Patient.Name,
		PatientEmail: req.Patient.Email,
		PatientPhone: req.Patient.Phone,
		Date:         slot.Date,
		Time:         slot.Time,
		Status:       StatusPending,
		Notes:        optional(req.Notes),
		CreatedVia:   req.CreatedVia,
		SessionID:    optional(req.SessionID),
	}

	err = s.locker.WithLock(ctx, redisclient.SlotKey(slot.Date.String(), slot.Time.String()), func(lockCtx context.Context) error {
		return s.insertWithFreshToken(lockCtx, appt)
	})
	if err != nil {
		if errors.Is(err, ErrSlotTaken) || errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, s.slotUnavailable(ctx, slot, nil)
		}
		return nil, fmt.Errorf("create appointment: %w", err)
	}

	s.logEvent(ctx, appt.ID, EventAppointmentCreated, map[string]any{
		"date":        appt.Date.String(),
		"time":        appt.Time.String(),
		"created_via": appt.CreatedVia,
	})

	s.enqueue(ctx, appt, outbox.TemplateAppointmentConfirmation, time.Time{}, nil)
	s.enqueueReminders(ctx, appt)

	if s.hooks != nil {
		s.hooks.Booked(ctx, appt.PatientEmail, appt.Date)
	}

	return appt, nil
}

func (s *Service) insertWithFreshToken(ctx context.Context, appt *Appointment) error {
	for attempt := 0; attempt < tokenAttempts; attempt++ {
		token, err := NewConfirmationToken()
		if err != nil {
			return err
		}
		appt.ConfirmationToken = token

		err = s.repo.TryBook(ctx, appt)
		if !errors.Is(err, ErrTokenCollision) {
			return err
		}
		log.Printf("confirmation token collision for appointment %s, regenerating", appt.ID)
	}
	return ErrTokenCollision
}

// ModifyRequest moves an appointment. Nil NewDate/NewTime keep the current value.
type ModifyRequest struct {
	ID      uuid.UUID
	Owner   Owner
	NewDate *calendar.Date
	NewTime *calendar.Clock
	Reason  string `validate:"max=500"`
}

func (s *Service) ModifyAppointment(ctx context.Context, req ModifyRequest) (*Appointment, error) {
	req.Reason = strings.TrimSpace(req.Reason)
	if err := patient.Validate(req); err != nil {
		return nil, err
	}

	appt, err := s.loadOwned(ctx, req.ID, req.Owner)
	if err != nil {
		return nil, err
	}
	if err := modifiable(appt); err != nil {
		return nil, err
	}

	now := s.now()
	if err := s.checkNotice(appt, now); err != nil {
		return nil, err
	}

	if req.NewDate == nil && req.NewTime == nil {
		return nil, ErrNoChanges
	}
	target := appt.Slot()
	if req.NewDate != nil {
		target.Date = *req.NewDate
	}
	if req.NewTime != nil {
		target.Time = *req.NewTime
	}
	if target == appt.Slot() {
		return nil, ErrNoChanges
	}

	if err := calendar.IsValidDateTime(target.Date, target.Time, now, s.cfg.Location); err != nil {
		return nil, err
	}

	free, err := s.avail.IsAvailable(ctx, target, appt.ID)
	if err != nil {
		return nil, fmt.Errorf("check availability: %w", err)
	}
	if !free {
		return nil, s.slotUnavailable(ctx, target, appt)
	}

	previous := appt.Slot()
	var updated *Appointment
	err = s.locker.WithLock(ctx, redisclient.SlotKey(target.Date.String(), target.Time.String()), func(lockCtx context.Context) error {
		var err error
		updated, err = s.repo.TryReschedule(lockCtx, appt.ID, target, optional(req.Reason))
		return err
	})
	if err != nil {
		if errors.Is(err, ErrSlotTaken) || errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, s.slotUnavailable(ctx, target, appt)
		}
		return nil, fmt.Errorf("modify appointment: %w", err)
	}

	s.logEvent(ctx, updated.ID, EventAppointmentModified, map[string]any{
		"previous_date": previous.Date.String(),
		"previous_time": previous.Time.String(),
		"date":          updated.Date.String(),
		"time":          updated.Time.String(),
		"reason":        req.Reason,
	})

	s.cancelPendingNotifications(ctx, updated)
	s.enqueue(ctx, updated, outbox.TemplateAppointmentModified, time.Time{}, map[string]any{
		"previous_date": displayDate(previous.Date),
		"previous_time": previous.Time.String(),
		"reason":        req.Reason,
	})
	s.enqueueReminders(ctx, updated)

	if s.hooks != nil {
		s.hooks.SlotOpened(ctx, previous)
	}

	return updated, nil
}

// CancelRequest cancels an appointment. Cancellation is never refused for lateness; late
// cancellations are flagged for reporting.
type CancelRequest struct {
	ID                uuid.UUID
	Owner             Owner
	Reason            string `validate:"max=500"`
	RequestReschedule bool
	SuggestionLimit   int
}

type CancelResult struct {
	Appointment  *Appointment
	Alternatives []calendar.Slot
}

func (s *Service) CancelAppointment(ctx context.Context, req CancelRequest) (*CancelResult, error) {
	req.Reason = strings.TrimSpace(req.Reason)
	if err := patient.Validate(req); err != nil {
		return nil, err
	}

	appt, err := s.loadOwned(ctx, req.ID, req.Owner)
	if err != nil {
		return nil, err
	}
	return s.cancel(ctx, appt, req)
}

// CancelByToken is the deep-link form of CancelAppointment.
func (s *Service) CancelByToken(ctx context.Context, token, reason string) (*CancelResult, error) {
	appt, err := s.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	return s.CancelAppointment(ctx, CancelRequest{
		ID:     appt.ID,
		Owner:  Owner{Token: token},
		Reason: reason,
	})
}

func (s *Service) cancel(ctx context.Context, appt *Appointment, req CancelRequest) (*CancelResult, error) {
	if appt.Status == StatusCancelled {
		return nil, ErrAlreadyCancelled
	}
	if !CanTransition(appt.Status, StatusCancelled) {
		return nil, ErrInvalidStatusTransition
	}

	now := s.now()
	start := appt.Slot().Start(s.cfg.Location)
	late := start.Sub(now) < s.cfg.ModificationWindow

	cancelled, err := s.repo.CancelAppointment(ctx, appt.ID, appt.Status, optional(req.Reason), late)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			// status changed underneath us; report what it is now
			return nil, s.concurrentChange(ctx, appt.ID, StatusCancelled)
		}
		return nil, fmt.Errorf("cancel appointment: %w", err)
	}

	s.logEvent(ctx, cancelled.ID, EventAppointmentCancelled, map[string]any{
		"reason":            req.Reason,
		"late_cancellation": late,
		"previous_status":   appt.Status,
	})

	s.cancelPendingNotifications(ctx, cancelled)
	s.enqueue(ctx, cancelled, outbox.TemplateAppointmentCancelled, time.Time{}, map[string]any{
		"reason": req.Reason,
	})

	if s.hooks != nil && start.After(now) {
		s.hooks.SlotOpened(ctx, cancelled.Slot())
	}

	result := &CancelResult{Appointment: cancelled}
	if req.RequestReschedule {
		alts, err := s.avail.Suggest(ctx, availability.SuggestRequest{
			Around:     cancelled.Slot(),
			Limit:      req.SuggestionLimit,
			WindowDays: availability.RescheduleWindowDays,
		})
		if err != nil {
			log.Printf("suggest alternatives after cancelling %s: %v", cancelled.ID, err)
		}
		result.Alternatives = alts
	}
	return result, nil
}

// ConfirmByToken moves a pending appointment to confirmed. Repeating the call on a
// confirmed appointment returns it unchanged.
func (s *Service) ConfirmByToken(ctx context.Context, token string) (*Appointment, error) {
	appt, err := s.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}

	switch appt.Status {
	case StatusConfirmed:
		return appt, nil
	case StatusCancelled:
		return nil, ErrAlreadyCancelled
	case StatusPending:
	default:
		return nil, ErrInvalidStatusTransition
	}

	updated, err := s.repo.UpdateAppointmentStatus(ctx, appt.ID, StatusPending, StatusConfirmed)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, s.concurrentChange(ctx, appt.ID, StatusConfirmed)
		}
		return nil, fmt.Errorf("confirm appointment: %w", err)
	}

	s.logEvent(ctx, updated.ID, EventAppointmentConfirmed, map[string]any{})

	return updated, nil
}

// TransitionAppointment applies an operator status change (e.g. completed, no_show).
func (s *Service) TransitionAppointment(ctx context.Context, id uuid.UUID, to AppointmentStatus, reason string) (*Appointment, error) {
	if !to.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidStatusTransition, to)
	}
	appt, err := s.GetAppointment(ctx, id)
	if err != nil {
		return nil, err
	}

	if to == StatusCancelled {
		res, err := s.cancel(ctx, appt, CancelRequest{ID: id, Reason: reason})
		if err != nil {
			return nil, err
		}
		return res.Appointment, nil
	}

	if !CanTransition(appt.Status, to) {
		if appt.Status == StatusCancelled {
			return nil, ErrAlreadyCancelled
		}
		return nil, ErrInvalidStatusTransition
	}

	updated, err := s.repo.UpdateAppointmentStatus(ctx, id, appt.Status, to)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, s.concurrentChange(ctx, id, to)
		}
		return nil, fmt.Errorf("transition appointment: %w", err)
	}

	s.logEvent(ctx, id, EventAppointmentTransitions, map[string]any{
		"from":   appt.Status,
		"to":     to,
		"reason": reason,
	})
	if to == StatusNoShow || to == StatusCompleted {
		s.cancelPendingNotifications(ctx, updated)
	}
	return updated, nil
}

// GetAppointment retrieves an appointment by ID
func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return appt, nil
}

func (s *Service) GetByToken(ctx context.Context, token string) (*Appointment, error) {
	if !ValidToken(token) {
		return nil, ErrAppointmentNotFound
	}
	appt, err := s.repo.GetAppointmentByToken(ctx, token)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get appointment by token: %w", err)
	}
	return appt, nil
}

// ListAppointments returns appointments ordered by date and time.
func (s *Service) ListAppointments(ctx context.Context, f ListFilter) ([]Appointment, error) {
	if f.Limit <= 0 {
		f.Limit = defaultListLimit
	}
	if f.Limit > maxListLimit {
		f.Limit = maxListLimit
	}
	if f.Status != "" && !f.Status.Valid() {
		return nil, patient.Field("status", "must be one of: pending confirmed cancelled completed no_show")
	}

	appointments, err := s.repo.ListAppointments(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return appointments, nil
}

// Suggest exposes the alternative-slot policy to callers outside a conflict.
func (s *Service) Suggest(ctx context.Context, around calendar.Slot, limit int) ([]calendar.Slot, error) {
	return s.avail.Suggest(ctx, availability.SuggestRequest{
		Around:     around,
		Limit:      limit,
		WindowDays: availability.RescheduleWindowDays,
	})
}

func (s *Service) loadOwned(ctx context.Context, id uuid.UUID, owner Owner) (*Appointment, error) {
	appt, err := s.GetAppointment(ctx, id)
	if err != nil {
		return nil, err
	}
	if !appt.OwnedBy(owner) {
		// do not reveal that the id exists
		return nil, ErrAppointmentNotFound
	}
	return appt, nil
}

func modifiable(appt *Appointment) error {
	switch appt.Status {
	case StatusPending, StatusConfirmed:
		return nil
	case StatusCancelled:
		return ErrAlreadyCancelled
	}
	return ErrInvalidStatusTransition
}

func (s *Service) checkNotice(appt *Appointment, now time.Time) error {
	start := appt.Slot().Start(s.cfg.Location)
	if start.Sub(now) >= s.cfg.ModificationWindow {
		return nil
	}
	return &TooLateError{
		ScheduledAt: start,
		Deadline:    start.Add(-s.cfg.ModificationWindow),
		Contact:     Contact{Phone: s.cfg.ContactPhone, Email: s.cfg.ContactEmail},
	}
}

// slotUnavailable builds the conflict error. When a move conflicts, the appointment's
// current slot is skipped so it is never offered back.
func (s *Service) slotUnavailable(ctx context.Context, slot calendar.Slot, moving *Appointment) error {
	req := availability.SuggestRequest{
		Around:     slot,
		Limit:      availability.DefaultSuggestions,
		WindowDays: availability.ConflictWindowDays,
	}
	if moving != nil {
		req.Exclude = moving.ID
		req.Skip = []calendar.Slot{moving.Slot()}
	}
	alts, err := s.avail.Suggest(ctx, req)
	if err != nil {
		log.Printf("suggest alternatives for %s: %v", slot, err)
	}
	return &SlotUnavailableError{Slot: slot, Alternatives: alts}
}

func (s *Service) concurrentChange(ctx context.Context, id uuid.UUID, wanted AppointmentStatus) error {
	current, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return err
	}
	if current.Status == StatusCancelled {
		return ErrAlreadyCancelled
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, current.Status, wanted)
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("failed to marshal event payload for %s: %v", eventType, err)
		data = nil
	}

	apptID := appointmentID

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     s.now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		log.Printf("failed to insert event log %s for appointment %s: %v", eventType, appointmentID, err)
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
