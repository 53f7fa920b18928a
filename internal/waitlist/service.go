package waitlist

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/calendar"
	"github.com/hackgods/clinic-scheduling/internal/outbox"
	"github.com/hackgods/clinic-scheduling/internal/patient"
)

// candidateScan bounds how many active entries SlotOpened inspects.
const candidateScan = 500

// Notifier is the part of the outbox the waitlist writes to.
type Notifier interface {
	Enqueue(ctx context.Context, req outbox.EnqueueRequest) (*outbox.Message, error)
	CancelPending(ctx context.Context, reference string) (int, error)
}

type Service struct {
	repo        Repository
	notifier    Notifier
	loc         *time.Location
	notifyBatch int
	now         func() time.Time
}

func NewService(repo Repository, notifier Notifier, loc *time.Location, notifyBatch int) *Service {
	if loc == nil {
		loc = time.UTC
	}
	if notifyBatch <= 0 {
		notifyBatch = 3
	}
	return &Service{
		repo:        repo,
		notifier:    notifier,
		loc:         loc,
		notifyBatch: notifyBatch,
		now:         time.Now,
	}
}

// WithClock replaces time.Now, for tests and simulations.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

type JoinRequest struct {
	Patient         patient.Info
	SessionID       string `validate:"max=128"`
	PreferredDate   calendar.Date
	PreferredTime   *calendar.Clock
	TimeFlexibility TimeFlexibility
	DateFlexibility DateFlexibility
	Notes           string `validate:"max=1000"`
}

type JoinResult struct {
	Entry         *Entry
	Position      int
	EstimatedWait Estimate
}

// Join adds the patient to the queue for a date. One active entry per email and date.
func (s *Service) Join(ctx context.Context, req JoinRequest) (*JoinResult, error) {
	req.Patient = req.Patient.Normalize()
	req.Notes = strings.TrimSpace(req.Notes)
	if err := patient.Validate(req); err != nil {
		return nil, err
	}
	if req.TimeFlexibility == "" {
		req.TimeFlexibility = TimeExact
		if req.PreferredTime == nil {
			req.TimeFlexibility = TimeAny
		}
	}
	if req.DateFlexibility == "" {
		req.DateFlexibility = DateExact
	}

	candidate := Entry{
		PreferredDate:   req.PreferredDate,
		PreferredTime:   req.PreferredTime,
		TimeFlexibility: req.TimeFlexibility,
		DateFlexibility: req.DateFlexibility,
	}
	if err := s.validatePreferences(candidate); err != nil {
		return nil, err
	}

	existing, err := s.repo.FindActive(ctx, req.Patient.Email, req.PreferredDate)
	if err != nil && !errors.Is(err, ErrEntryNotFound) {
		return nil, fmt.Errorf("check existing entry: %w", err)
	}
	if existing != nil {
		return nil, ErrAlreadyOnWaitlist
	}

	entry := &Entry{
		ID:              uuid.New(),
		SessionID:       optional(req.SessionID),
		PatientName:     req.Patient.Name,
		PatientEmail:    req.Patient.Email,
		PatientPhone:    req.Patient.Phone,
		PreferredDate:   req.PreferredDate,
		PreferredTime:   req.PreferredTime,
		TimeFlexibility: req.TimeFlexibility,
		DateFlexibility: req.DateFlexibility,
		Notes:           optional(req.Notes),
		Status:          StatusActive,
		CreatedAt:       s.now(),
	}
	if err := s.repo.Insert(ctx, entry); err != nil {
		if errors.Is(err, ErrAlreadyOnWaitlist) {
			return nil, err
		}
		return nil, fmt.Errorf("insert waitlist entry: %w", err)
	}

	position, err := s.positionOf(ctx, entry)
	if err != nil {
		return nil, err
	}
	estimate := s.estimate(position, entry.PreferredDate)

	data := s.templateData(entry)
	data["position"] = position
	data["estimated_weeks"] = estimate.Weeks
	data["confidence"] = string(estimate.Confidence)
	s.enqueue(ctx, entry, outbox.TypeEmail, entry.PatientEmail, outbox.TemplateWaitlistJoined, data)
	s.enqueue(ctx, entry, outbox.TypeSMS, entry.PatientPhone, outbox.TemplateWaitlistJoined, data)

	return &JoinResult{Entry: entry, Position: position, EstimatedWait: estimate}, nil
}

// Leave soft-cancels an active entry owned by sessionOwner.
func (s *Service) Leave(ctx context.Context, id uuid.UUID, sessionOwner, reason string) (*Entry, error) {
	reason = strings.TrimSpace(reason)
	if len([]rune(reason)) > 500 {
		return nil, patient.Field("reason", "must have at most 500 characters")
	}
	if sessionOwner == "" {
		return nil, ErrEntryNotFound
	}

	entry, err := s.repo.Cancel(ctx, id, sessionOwner, reason, s.now())
	if err != nil {
		if errors.Is(err, ErrEntryNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("leave waitlist: %w", err)
	}

	if s.notifier != nil {
		if _, err := s.notifier.CancelPending(ctx, outbox.WaitlistRef(entry.ID)); err != nil {
			log.Printf("failed to cancel pending notifications for waitlist entry %s: %v", entry.ID, err)
		}
	}
	return entry, nil
}

// Update applies whitelisted changes to an active entry owned by sessionOwner.
func (s *Service) Update(ctx context.Context, id uuid.UUID, sessionOwner string, p Partial) (*Entry, error) {
	if p.Empty() {
		return nil, ErrNoValidUpdates
	}
	if p.Notes != nil && len([]rune(*p.Notes)) > 1000 {
		return nil, patient.Field("notes", "must have at most 1000 characters")
	}
	if sessionOwner == "" {
		return nil, ErrEntryNotFound
	}

	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status != StatusActive || current.SessionID == nil || *current.SessionID != sessionOwner {
		return nil, ErrEntryNotFound
	}

	next := p.Apply(*current)
	if next.TimeFlexibility == TimeExact && next.PreferredTime == nil {
		next.TimeFlexibility = TimeAny
	}
	if err := s.validatePreferences(next); err != nil {
		return nil, err
	}

	saved, err := s.repo.Save(ctx, next, sessionOwner)
	if err != nil {
		if errors.Is(err, ErrEntryNotFound) || errors.Is(err, ErrAlreadyOnWaitlist) {
			return nil, err
		}
		return nil, fmt.Errorf("update waitlist entry: %w", err)
	}
	return saved, nil
}

// Position recomputes the FIFO rank of an entry. It returns nil for inactive entries.
func (s *Service) Position(ctx context.Context, id uuid.UUID) (*int, error) {
	entry, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if entry.Status != StatusActive {
		return nil, nil
	}
	pos, err := s.positionOf(ctx, entry)
	if err != nil {
		return nil, err
	}
	return &pos, nil
}

// Get returns the entry with its live position and estimate when still active.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*JoinResult, error) {
	entry, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	res := &JoinResult{Entry: entry}
	if entry.Status == StatusActive {
		pos, err := s.positionOf(ctx, entry)
		if err != nil {
			return nil, err
		}
		res.Position = pos
		res.EstimatedWait = s.estimate(pos, entry.PreferredDate)
	}
	return res, nil
}

func (s *Service) ListActive(ctx context.Context, date *calendar.Date, limit int) ([]Entry, error) {
	if limit <= 0 || limit > candidateScan {
		limit = 100
	}
	return s.repo.ListActive(ctx, ListFilter{Date: date, Limit: limit})
}

// SlotOpened tells the first matching active entries, in FIFO order, that slot is free.
// It offers; it never books.
func (s *Service) SlotOpened(ctx context.Context, slot calendar.Slot) {
	entries, err := s.repo.ListActive(ctx, ListFilter{Limit: candidateScan})
	if err != nil {
		log.Printf("waitlist slot-opened lookup for %s: %v", slot, err)
		return
	}

	notified := 0
	for i := range entries {
		if notified >= s.notifyBatch {
			break
		}
		e := &entries[i]
		if !e.Matches(slot) {
			continue
		}
		data := s.templateData(e)
		data["slot_date"] = slot.Date.Time().Format("02/01/2006")
		data["slot_date_iso"] = slot.Date.String()
		data["slot_time"] = slot.Time.String()
		s.enqueue(ctx, e, outbox.TypeEmail, e.PatientEmail, outbox.TemplateWaitlistSlotAvailable, data)
		notified++
	}
	if notified > 0 {
		log.Printf("waitlist notified=%d slot=%s", notified, slot)
	}
}

// Booked marks the patient's active entry for date as fulfilled.
func (s *Service) Booked(ctx context.Context, email string, date calendar.Date) {
	n, err := s.repo.MarkFulfilled(ctx, strings.ToLower(strings.TrimSpace(email)), date)
	if err != nil {
		log.Printf("waitlist fulfil for %s on %s: %v", email, date, err)
		return
	}
	if n > 0 {
		log.Printf("waitlist fulfilled=%d date=%s", n, date)
	}
}

func (s *Service) positionOf(ctx context.Context, e *Entry) (int, error) {
	ahead, err := s.repo.CountActiveBefore(ctx, e.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("count waitlist position: %w", err)
	}
	return ahead + 1, nil
}

func (s *Service) estimate(position int, preferred calendar.Date) Estimate {
	today := calendar.Today(s.now(), s.loc)
	return EstimateWait(position, calendar.DaysBetween(today, preferred))
}

func (s *Service) validatePreferences(e Entry) error {
	if !e.TimeFlexibility.Valid() {
		return patient.Field("time_flexibility", "must be one of: exact morning afternoon any")
	}
	if !e.DateFlexibility.Valid() {
		return patient.Field("date_flexibility", "must be one of: exact same_week any")
	}
	if e.PreferredDate.IsZero() {
		return patient.Field("preferred_date", "is required")
	}
	if !calendar.IsBusinessDay(e.PreferredDate) {
		return &calendar.InvalidDateTimeError{
			Slot:   calendar.Slot{Date: e.PreferredDate},
			Reason: calendar.ReasonNotBusinessDay,
		}
	}
	if e.PreferredDate.Before(calendar.Today(s.now(), s.loc)) {
		return &calendar.InvalidDateTimeError{
			Slot:   calendar.Slot{Date: e.PreferredDate},
			Reason: calendar.ReasonPast,
		}
	}
	if e.PreferredTime != nil {
		if err := calendar.ValidateSlot(e.PreferredDate, *e.PreferredTime); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) templateData(e *Entry) map[string]any {
	data := map[string]any{
		"entry_id":           e.ID.String(),
		"patient_name":       e.PatientName,
		"preferred_date":     e.PreferredDate.Time().Format("02/01/2006"),
		"preferred_date_iso": e.PreferredDate.String(),
	}
	if e.PreferredTime != nil {
		data["preferred_time"] = e.PreferredTime.String()
	}
	return data
}

func (s *Service) enqueue(ctx context.Context, e *Entry, typ outbox.MessageType, recipient, template string, data map[string]any) {
	if s.notifier == nil || recipient == "" {
		return
	}
	_, err := s.notifier.Enqueue(ctx, outbox.EnqueueRequest{
		MessageType: typ,
		Recipient:   recipient,
		Template:    template,
		Data:        data,
		Reference:   outbox.WaitlistRef(e.ID),
	})
	if err != nil {
		log.Printf("failed to enqueue %s/%s for waitlist entry %s: %v", template, typ, e.ID, err)
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
