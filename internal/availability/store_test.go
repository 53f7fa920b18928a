package availability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/calendar"
)

type fakeOccupancy struct {
	slots map[calendar.Slot]uuid.UUID
}

func (f *fakeOccupancy) OccupiedSlots(_ context.Context, from, to calendar.Date, exclude uuid.UUID) ([]calendar.Slot, error) {
	var out []calendar.Slot
	for s, id := range f.slots {
		if id == exclude || s.Date.Before(from) || s.Date.After(to) {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

var (
	monday  = calendar.NewDate(2030, time.June, 3)
	tuesday = calendar.NewDate(2030, time.June, 4)
	friday  = calendar.NewDate(2030, time.June, 7)
)

func at(d calendar.Date, hour, minute int) calendar.Slot {
	return calendar.Slot{Date: d, Time: calendar.Clock{Hour: hour, Minute: minute}}
}

func newTestStore(occupied map[calendar.Slot]uuid.UUID) *Store {
	now := time.Date(2030, time.June, 3, 9, 0, 0, 0, time.UTC)
	return NewStore(&fakeOccupancy{slots: occupied}, time.UTC, func() time.Time { return now })
}

func TestListAvailable(t *testing.T) {
	store := newTestStore(map[calendar.Slot]uuid.UUID{
		at(tuesday, 10, 0): uuid.New(),
	})

	days, err := store.ListAvailable(context.Background(), monday, monday.AddDays(6))
	if err != nil {
		t.Fatalf("ListAvailable: %v", err)
	}
	if len(days) != 5 {
		t.Fatalf("got %d days, want 5 business days", len(days))
	}
	if _, ok := days[monday.AddDays(5)]; ok {
		t.Fatal("saturday listed")
	}

	// today only lists slots strictly after 09:00
	if got := len(days[monday]); got != 17 {
		t.Fatalf("monday has %d free slots, want 17", got)
	}
	if first := days[monday][0]; first != at(monday, 9, 30) {
		t.Fatalf("first monday slot = %s", first)
	}
	if got := len(days[tuesday]); got != calendar.SlotsPerDay-1 {
		t.Fatalf("tuesday has %d free slots", got)
	}
	for _, s := range days[tuesday] {
		if s == at(tuesday, 10, 0) {
			t.Fatal("occupied slot listed as free")
		}
	}
}

func TestListAvailableOmitsPastDays(t *testing.T) {
	store := newTestStore(nil)
	days, err := store.ListAvailable(context.Background(), monday.AddDays(-7), monday.AddDays(-1))
	if err != nil {
		t.Fatalf("ListAvailable: %v", err)
	}
	if len(days) != 0 {
		t.Fatalf("expected no days, got %d", len(days))
	}
}

func TestListAvailableRejectsBadRanges(t *testing.T) {
	store := newTestStore(nil)
	if _, err := store.ListAvailable(context.Background(), tuesday, monday); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("reversed range: %v", err)
	}
	if _, err := store.ListAvailable(context.Background(), monday, monday.AddDays(MaxRangeDays+1)); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("long range: %v", err)
	}
}

func TestIsAvailable(t *testing.T) {
	owner := uuid.New()
	store := newTestStore(map[calendar.Slot]uuid.UUID{at(tuesday, 10, 0): owner})
	ctx := context.Background()

	tests := []struct {
		name    string
		slot    calendar.Slot
		exclude uuid.UUID
		want    bool
	}{
		{"free", at(tuesday, 10, 30), uuid.Nil, true},
		{"taken", at(tuesday, 10, 0), uuid.Nil, false},
		{"taken by excluded", at(tuesday, 10, 0), owner, true},
		{"off grid", at(tuesday, 10, 15), uuid.Nil, false},
		{"weekend", at(monday.AddDays(5), 10, 0), uuid.Nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.IsAvailable(ctx, tt.slot, tt.exclude)
			if err != nil {
				t.Fatalf("IsAvailable: %v", err)
			}
			if got != tt.want {
				t.Fatalf("IsAvailable(%s) = %t, want %t", tt.slot, got, tt.want)
			}
		})
	}
}

func TestSuggestPrefersSameDayThenNextBusinessDay(t *testing.T) {
	requested := at(tuesday, 10, 0)
	store := newTestStore(map[calendar.Slot]uuid.UUID{requested: uuid.New()})

	got, err := store.Suggest(context.Background(), SuggestRequest{Around: requested, Limit: 3})
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	want := []calendar.Slot{at(tuesday, 9, 30), at(tuesday, 10, 30), at(tuesday.AddDays(1), 10, 0)}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("suggestion %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestSuggestSkipsWeekend(t *testing.T) {
	requested := at(friday, 16, 0)
	store := newTestStore(nil)

	got, err := store.Suggest(context.Background(), SuggestRequest{Around: requested, Limit: 5})
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("got %d suggestions", len(got))
	}
	nextMonday := friday.AddDays(3)
	for i, s := range got {
		if s == requested {
			t.Fatal("requested slot suggested")
		}
		if !calendar.IsBusinessDay(s.Date) {
			t.Fatalf("suggestion %d on %s", i, s.Date.Weekday())
		}
		if i >= 2 && s.Date != nextMonday {
			t.Fatalf("suggestion %d = %s, want next monday", i, s)
		}
	}
	if got[2].Time != (calendar.Clock{Hour: 16}) {
		t.Fatalf("closest next-day slot = %s", got[2])
	}
}

func TestSuggestCapsLimit(t *testing.T) {
	store := newTestStore(nil)
	got, err := store.Suggest(context.Background(), SuggestRequest{Around: at(tuesday, 10, 0), Limit: 50})
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	if len(got) != MaxSuggestions {
		t.Fatalf("got %d, want %d", len(got), MaxSuggestions)
	}
}

func TestSuggestFromPastDateStartsToday(t *testing.T) {
	store := newTestStore(nil)
	lastFriday := monday.AddDays(-3)

	got, err := store.Suggest(context.Background(), SuggestRequest{Around: at(lastFriday, 10, 0), Limit: 3})
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	want := []calendar.Slot{at(monday, 10, 0), at(monday, 9, 30), at(monday, 10, 30)}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestSuggestTreatsSkippedSlotsAsBusy(t *testing.T) {
	own := uuid.New()
	store := newTestStore(map[calendar.Slot]uuid.UUID{
		at(tuesday, 10, 0):  own,
		at(tuesday, 10, 30): uuid.New(),
	})

	got, err := store.Suggest(context.Background(), SuggestRequest{
		Around:  at(tuesday, 10, 30),
		Limit:   3,
		Exclude: own,
		Skip:    []calendar.Slot{at(tuesday, 10, 0)},
	})
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	for _, s := range got {
		if s == at(tuesday, 10, 0) {
			t.Fatalf("skipped slot offered: %v", got)
		}
	}
	if len(got) != 3 || got[0] != at(tuesday, 11, 0) {
		t.Fatalf("got %v", got)
	}
}
