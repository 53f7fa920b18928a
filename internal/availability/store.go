package availability

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/calendar"
)

// MaxRangeDays bounds ListAvailable queries.
const MaxRangeDays = 62

var ErrInvalidRange = errors.New("invalid date range")

// Occupancy is the storage query behind availability: the live (non-cancelled) slots in
// [from, to], ignoring the appointment exclude (uuid.Nil for none).
type Occupancy interface {
	OccupiedSlots(ctx context.Context, from, to calendar.Date, exclude uuid.UUID) ([]calendar.Slot, error)
}

// Store answers free/busy questions. Its reads are snapshots; writes must still go through
// the constrained insert, which is authoritative.
type Store struct {
	occ Occupancy
	loc *time.Location
	now func() time.Time
}

func NewStore(occ Occupancy, loc *time.Location, now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{occ: occ, loc: loc, now: now}
}

func (s *Store) Location() *time.Location { return s.loc }

// Now is the store's clock.
func (s *Store) Now() time.Time { return s.now() }

// IsAvailable reports whether no live appointment other than exclude occupies slot.
func (s *Store) IsAvailable(ctx context.Context, slot calendar.Slot, exclude uuid.UUID) (bool, error) {
	if calendar.ValidateSlot(slot.Date, slot.Time) != nil {
		return false, nil
	}
	occupied, err := s.occ.OccupiedSlots(ctx, slot.Date, slot.Date, exclude)
	if err != nil {
		return false, fmt.Errorf("load occupied slots: %w", err)
	}
	for _, o := range occupied {
		if o == slot {
			return false, nil
		}
	}
	return true, nil
}

// ListAvailable returns the free slots of every business day in [start, end]. Days before
// today are omitted and today only lists slots that start after now.
func (s *Store) ListAvailable(ctx context.Context, start, end calendar.Date) (map[calendar.Date][]calendar.Slot, error) {
	if end.Before(start) {
		return nil, fmt.Errorf("%w: end %s is before start %s", ErrInvalidRange, end, start)
	}
	if calendar.DaysBetween(start, end) > MaxRangeDays {
		return nil, fmt.Errorf("%w: at most %d days", ErrInvalidRange, MaxRangeDays)
	}

	now := s.now()
	today := calendar.Today(now, s.loc)
	if start.Before(today) {
		start = today
	}

	result := make(map[calendar.Date][]calendar.Slot)
	if end.Before(start) {
		return result, nil
	}

	busy, err := s.busySet(ctx, start, end, uuid.Nil)
	if err != nil {
		return nil, err
	}

	for d := start; !d.After(end); d = d.AddDays(1) {
		if !calendar.IsBusinessDay(d) {
			continue
		}
		free := s.freeOn(d, busy, now)
		result[d] = free
	}
	return result, nil
}

func (s *Store) busySet(ctx context.Context, from, to calendar.Date, exclude uuid.UUID) (map[calendar.Slot]struct{}, error) {
	occupied, err := s.occ.OccupiedSlots(ctx, from, to, exclude)
	if err != nil {
		return nil, fmt.Errorf("load occupied slots: %w", err)
	}
	busy := make(map[calendar.Slot]struct{}, len(occupied))
	for _, o := range occupied {
		busy[o] = struct{}{}
	}
	return busy, nil
}

// freeOn lists the slots of d that are neither busy nor starting at or before now.
func (s *Store) freeOn(d calendar.Date, busy map[calendar.Slot]struct{}, now time.Time) []calendar.Slot {
	free := make([]calendar.Slot, 0, calendar.SlotsPerDay)
	for _, slot := range calendar.GenerateSlots(d) {
		if _, taken := busy[slot]; taken {
			continue
		}
		if !slot.Start(s.loc).After(now) {
			continue
		}
		free = append(free, slot)
	}
	return free
}

// Suggestion windows.
const (
	ConflictWindowDays   = 7
	RescheduleWindowDays = 14
	DefaultSuggestions   = 3
	MaxSuggestions       = 10
	sameDayMax           = 2
)

// SuggestRequest asks for alternatives to Around.
type SuggestRequest struct {
	Around     calendar.Slot
	Limit      int
	WindowDays int
	Exclude    uuid.UUID
	Skip       []calendar.Slot // treated as busy, e.g. the slot being moved away from
}

// Suggest returns up to Limit free slots: at most two on Around's date closest to its time,
// then slots from the following business days, nearest date first and, within a day,
// closest to the requested time of day.
func (s *Store) Suggest(ctx context.Context, req SuggestRequest) ([]calendar.Slot, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = DefaultSuggestions
	}
	if limit > MaxSuggestions {
		limit = MaxSuggestions
	}
	window := req.WindowDays
	if window <= 0 {
		window = ConflictWindowDays
	}

	now := s.now()
	first := req.Around.Date
	if today := calendar.Today(now, s.loc); first.Before(today) {
		first = today
	}
	last := first.AddDays(window)

	busy, err := s.busySet(ctx, first, last, req.Exclude)
	if err != nil {
		return nil, err
	}
	for _, sk := range req.Skip {
		busy[sk] = struct{}{}
	}

	out := make([]calendar.Slot, 0, limit)

	// A requested date in the past was clamped to today; today's free slots then count as
	// following days.
	next := first
	if first == req.Around.Date {
		next = first.AddDays(1)
		sameDay := s.freeOn(first, busy, now)
		sameDay = without(sameDay, req.Around)
		byCloseness(sameDay, req.Around.Time)
		n := min(sameDayMax, limit, len(sameDay))
		out = append(out, sameDay[:n]...)
	}

	for d := next; !d.After(last) && len(out) < limit; d = d.AddDays(1) {
		if !calendar.IsBusinessDay(d) {
			continue
		}
		day := s.freeOn(d, busy, now)
		byCloseness(day, req.Around.Time)
		n := min(limit-len(out), len(day))
		out = append(out, day[:n]...)
	}

	return out, nil
}

func without(slots []calendar.Slot, skip calendar.Slot) []calendar.Slot {
	out := slots[:0]
	for _, s := range slots {
		if s != skip {
			out = append(out, s)
		}
	}
	return out
}

func byCloseness(slots []calendar.Slot, target calendar.Clock) {
	sort.SliceStable(slots, func(i, j int) bool {
		di := abs(slots[i].Time.Minutes() - target.Minutes())
		dj := abs(slots[j].Time.Minutes() - target.Minutes())
		if di != dj {
			return di < dj
		}
		return slots[i].Time.Before(slots[j].Time)
	})
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
