package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/calendar"
	"github.com/hackgods/clinic-scheduling/internal/waitlist"
)

type waitlistKey struct {
	email string
	date  calendar.Date
}

type Waitlist struct {
	mu      sync.Mutex
	byID    map[uuid.UUID]*waitlist.Entry
	active  map[waitlistKey]uuid.UUID
	lastAt  time.Time
	ordered []uuid.UUID
}

func NewWaitlist() *Waitlist {
	return &Waitlist{
		byID:   make(map[uuid.UUID]*waitlist.Entry),
		active: make(map[waitlistKey]uuid.UUID),
	}
}

func keyOf(e *waitlist.Entry) waitlistKey {
	return waitlistKey{email: strings.ToLower(e.PatientEmail), date: e.PreferredDate}
}

func copyEntry(e *waitlist.Entry) *waitlist.Entry {
	c := *e
	return &c
}

// Insert keeps created_at strictly increasing so FIFO ranks never tie.
func (s *Waitlist) Insert(_ context.Context, e *waitlist.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.active[keyOf(e)]; dup {
		return waitlist.ErrAlreadyOnWaitlist
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	if !e.CreatedAt.After(s.lastAt) {
		e.CreatedAt = s.lastAt.Add(time.Microsecond)
	}
	s.lastAt = e.CreatedAt

	stored := copyEntry(e)
	s.byID[e.ID] = stored
	s.ordered = append(s.ordered, e.ID)
	if stored.Status == waitlist.StatusActive {
		s.active[keyOf(stored)] = e.ID
	}
	return nil
}

func (s *Waitlist) Get(_ context.Context, id uuid.UUID) (*waitlist.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.byID[id]
	if !ok {
		return nil, waitlist.ErrEntryNotFound
	}
	return copyEntry(e), nil
}

func (s *Waitlist) FindActive(_ context.Context, email string, date calendar.Date) (*waitlist.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.active[waitlistKey{email: strings.ToLower(email), date: date}]
	if !ok {
		return nil, waitlist.ErrEntryNotFound
	}
	return copyEntry(s.byID[id]), nil
}

func (s *Waitlist) ListActive(_ context.Context, f waitlist.ListFilter) ([]waitlist.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []waitlist.Entry
	for _, id := range s.ordered {
		e := s.byID[id]
		if e.Status != waitlist.StatusActive {
			continue
		}
		if f.Date != nil && e.PreferredDate != *f.Date {
			continue
		}
		out = append(out, *e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *Waitlist) CountActiveBefore(_ context.Context, createdAt time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.byID {
		if e.Status == waitlist.StatusActive && e.CreatedAt.Before(createdAt) {
			n++
		}
	}
	return n, nil
}

func (s *Waitlist) ownedActive(id uuid.UUID, sessionID string) (*waitlist.Entry, bool) {
	e, ok := s.byID[id]
	if !ok || e.Status != waitlist.StatusActive || e.SessionID == nil || *e.SessionID != sessionID {
		return nil, false
	}
	return e, true
}

func (s *Waitlist) Cancel(_ context.Context, id uuid.UUID, sessionID, reason string, at time.Time) (*waitlist.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.ownedActive(id, sessionID)
	if !ok {
		return nil, waitlist.ErrEntryNotFound
	}
	delete(s.active, keyOf(e))
	e.Status = waitlist.StatusCancelled
	e.CancelledAt = &at
	if reason != "" {
		e.CancellationReason = &reason
	}
	return copyEntry(e), nil
}

func (s *Waitlist) Save(_ context.Context, next waitlist.Entry, sessionID string) (*waitlist.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.ownedActive(next.ID, sessionID)
	if !ok {
		return nil, waitlist.ErrEntryNotFound
	}
	oldKey := keyOf(e)
	newKey := waitlistKey{email: oldKey.email, date: next.PreferredDate}
	if holder, taken := s.active[newKey]; taken && holder != e.ID {
		return nil, waitlist.ErrAlreadyOnWaitlist
	}

	delete(s.active, oldKey)
	e.PreferredDate = next.PreferredDate
	e.PreferredTime = next.PreferredTime
	e.TimeFlexibility = next.TimeFlexibility
	e.DateFlexibility = next.DateFlexibility
	e.Notes = next.Notes
	s.active[newKey] = e.ID
	return copyEntry(e), nil
}

func (s *Waitlist) MarkFulfilled(_ context.Context, email string, date calendar.Date) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := waitlistKey{email: strings.ToLower(email), date: date}
	id, ok := s.active[key]
	if !ok {
		return 0, nil
	}
	s.byID[id].Status = waitlist.StatusFulfilled
	delete(s.active, key)
	return 1, nil
}
