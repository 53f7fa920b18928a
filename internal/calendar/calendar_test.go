package calendar

import (
	"errors"
	"testing"
	"time"
)

func mustDate(t *testing.T, s string) Date {
	t.Helper()
	d, err := ParseDate(s)
	if err != nil {
		t.Fatalf("parse date %q: %v", s, err)
	}
	return d
}

func TestGenerateSlots(t *testing.T) {
	t.Run("Monday", func(t *testing.T) {
		slots := GenerateSlots(mustDate(t, "2024-06-03"))
		if len(slots) != 20 {
			t.Fatalf("expected 20 slots, got %d", len(slots))
		}
		if got := slots[0].Time.String(); got != "08:00" {
			t.Fatalf("first slot = %s, want 08:00", got)
		}
		if got := slots[len(slots)-1].Time.String(); got != "17:30" {
			t.Fatalf("last slot = %s, want 17:30", got)
		}
		for i := 1; i < len(slots); i++ {
			if slots[i].Compare(slots[i-1]) <= 0 {
				t.Fatalf("slots not ascending at %d: %s after %s", i, slots[i], slots[i-1])
			}
		}
	})

	t.Run("Saturday", func(t *testing.T) {
		if slots := GenerateSlots(mustDate(t, "2024-06-01")); len(slots) != 0 {
			t.Fatalf("expected no slots on Saturday, got %d", len(slots))
		}
	})

	t.Run("Restartable", func(t *testing.T) {
		d := mustDate(t, "2024-06-04")
		a, b := GenerateSlots(d), GenerateSlots(d)
		for i := range a {
			if a[i] != b[i] {
				t.Fatalf("slot %d differs between calls", i)
			}
		}
	})
}

func TestValidateSlotGrid(t *testing.T) {
	// 2024-06-03 is a Monday; walk the whole week at 15 minute steps.
	start := mustDate(t, "2024-06-03")
	for day := 0; day < 7; day++ {
		d := start.AddDays(day)
		for m := 0; m < 24*60; m += 15 {
			c := Clock{Hour: m / 60, Minute: m % 60}
			want := day < 5 && c.Hour >= 8 && c.Hour < 18 && (c.Minute == 0 || c.Minute == 30)
			err := ValidateSlot(d, c)
			if (err == nil) != want {
				t.Fatalf("ValidateSlot(%s, %s) err=%v, want valid=%v", d, c, err, want)
			}
			if err != nil && !errors.Is(err, ErrInvalidDateTime) {
				t.Fatalf("expected ErrInvalidDateTime, got %v", err)
			}
		}
	}
}

func TestIsValidDateTime(t *testing.T) {
	loc, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	// 10:00 local on Tuesday 2024-06-04.
	now := time.Date(2024, 6, 4, 10, 0, 0, 0, loc)
	d := mustDate(t, "2024-06-04")

	tests := []struct {
		name   string
		date   Date
		clock  Clock
		reason Reason
	}{
		{"earlier today", d, Clock{9, 30}, ReasonPast},
		{"exactly now", d, Clock{10, 0}, ReasonPast},
		{"later today", d, Clock{10, 30}, ""},
		{"weekend", mustDate(t, "2024-06-08"), Clock{10, 0}, ReasonNotBusinessDay},
		{"before opening", d, Clock{7, 30}, ReasonOutsideHours},
		{"closing time", d, Clock{18, 0}, ReasonOutsideHours},
		{"off grid", d, Clock{11, 15}, ReasonNotOnGrid},
		{"yesterday", mustDate(t, "2024-06-03"), Clock{17, 30}, ReasonPast},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := IsValidDateTime(tc.date, tc.clock, now, loc)
			if tc.reason == "" {
				if err != nil {
					t.Fatalf("expected valid, got %v", err)
				}
				return
			}
			var ide *InvalidDateTimeError
			if !errors.As(err, &ide) {
				t.Fatalf("expected InvalidDateTimeError, got %v", err)
			}
			if ide.Reason != tc.reason {
				t.Fatalf("reason = %s, want %s", ide.Reason, tc.reason)
			}
		})
	}
}

func TestIsValidDateTimeUsesClinicZone(t *testing.T) {
	loc, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	// 12:00 UTC is 09:00 in Sao Paulo; a 10:00 slot is still in the future there.
	now := time.Date(2024, 6, 4, 12, 0, 0, 0, time.UTC)
	if err := IsValidDateTime(mustDate(t, "2024-06-04"), Clock{10, 0}, now, loc); err != nil {
		t.Fatalf("expected slot to be valid in clinic zone: %v", err)
	}
	if err := IsValidDateTime(mustDate(t, "2024-06-04"), Clock{10, 0}, now, time.UTC); err == nil {
		t.Fatal("expected slot to be in the past when compared in UTC")
	}
}

func TestBusinessDayArithmetic(t *testing.T) {
	fri := mustDate(t, "2024-06-07")
	if got := NextBusinessDay(fri); got.String() != "2024-06-10" {
		t.Fatalf("NextBusinessDay(Fri) = %s", got)
	}
	if got := AddBusinessDays(fri, 3); got.String() != "2024-06-12" {
		t.Fatalf("AddBusinessDays(Fri, 3) = %s", got)
	}
	if got := AddBusinessDays(mustDate(t, "2024-06-10"), -1); got.String() != "2024-06-07" {
		t.Fatalf("AddBusinessDays(Mon, -1) = %s", got)
	}
	if got := BusinessDaysBetween(mustDate(t, "2024-06-03"), mustDate(t, "2024-06-17")); got != 10 {
		t.Fatalf("BusinessDaysBetween = %d, want 10", got)
	}
	if got := DaysBetween(mustDate(t, "2024-02-28"), mustDate(t, "2024-03-01")); got != 2 {
		t.Fatalf("DaysBetween across leap day = %d, want 2", got)
	}
}

func TestParseClock(t *testing.T) {
	for _, in := range []string{"09:00", "09:00:00", " 17:30 "} {
		if _, err := ParseClock(in); err != nil {
			t.Fatalf("ParseClock(%q): %v", in, err)
		}
	}
	for _, in := range []string{"", "9am", "25:00", "09:00:30"} {
		if _, err := ParseClock(in); err == nil {
			t.Fatalf("ParseClock(%q) expected error", in)
		}
	}
}
