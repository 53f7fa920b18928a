package calendar

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Business hours of the clinic: Monday to Friday, 08:00 to 18:00 on a 30 minute grid.
const (
	OpenHour    = 8
	CloseHour   = 18
	SlotMinutes = 30
	SlotsPerDay = (CloseHour - OpenHour) * 60 / SlotMinutes
)

const (
	dateLayout = "2006-01-02"
)

var (
	ErrInvalidDate  = errors.New("invalid date, expected YYYY-MM-DD")
	ErrInvalidClock = errors.New("invalid time, expected HH:MM")
)

// Date is a calendar date without a time of day or location.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate normalizes its arguments the way time.Date does (e.g. Jan 32 -> Feb 1).
func NewDate(year int, month time.Month, day int) Date {
	return DateOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// DateOf returns the date of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// Today returns the current date as seen from loc.
func Today(now time.Time, loc *time.Location) Date {
	return DateOf(now.In(loc))
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return DateOf(t), nil
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

func (d Date) IsZero() bool {
	return d == Date{}
}

// Time returns midnight UTC of d. Used as the storage representation.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// In returns midnight of d in loc.
func (d Date) In(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

func (d Date) Weekday() time.Weekday {
	return d.Time().Weekday()
}

func (d Date) AddDays(n int) Date {
	return NewDate(d.Year, d.Month, d.Day+n)
}

func (d Date) Compare(o Date) int {
	return d.Time().Compare(o.Time())
}

func (d Date) Before(o Date) bool { return d.Compare(o) < 0 }
func (d Date) After(o Date) bool  { return d.Compare(o) > 0 }

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// DaysBetween returns the number of calendar days from a to b (negative if b is before a).
func DaysBetween(a, b Date) int {
	return int(b.Time().Sub(a.Time()).Hours() / 24)
}

// Clock is a wall clock time of day with minute precision.
type Clock struct {
	Hour   int
	Minute int
}

// ParseClock accepts HH:MM and HH:MM:SS (seconds must be zero).
func ParseClock(s string) (Clock, error) {
	s = strings.TrimSpace(s)
	layout := "15:04"
	if len(s) == len("15:04:05") {
		layout = "15:04:05"
	}
	t, err := time.Parse(layout, s)
	if err != nil || t.Second() != 0 {
		return Clock{}, ErrInvalidClock
	}
	return Clock{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

func (c Clock) Minutes() int {
	return c.Hour*60 + c.Minute
}

func (c Clock) Compare(o Clock) int {
	switch {
	case c.Minutes() < o.Minutes():
		return -1
	case c.Minutes() > o.Minutes():
		return 1
	}
	return 0
}

func (c Clock) Before(o Clock) bool { return c.Compare(o) < 0 }

func (c Clock) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Clock) UnmarshalText(b []byte) error {
	parsed, err := ParseClock(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Slot is a (date, time) pair on the business-hours grid.
type Slot struct {
	Date Date  `json:"date"`
	Time Clock `json:"time"`
}

// Start is the instant the slot begins in the clinic's location.
func (s Slot) Start(loc *time.Location) time.Time {
	return time.Date(s.Date.Year, s.Date.Month, s.Date.Day, s.Time.Hour, s.Time.Minute, 0, 0, loc)
}

func (s Slot) String() string {
	return s.Date.String() + " " + s.Time.String()
}

func (s Slot) Compare(o Slot) int {
	if c := s.Date.Compare(o.Date); c != 0 {
		return c
	}
	return s.Time.Compare(o.Time)
}

func IsBusinessDay(d Date) bool {
	switch d.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return true
}

// WithinHours reports whether c falls in [08:00, 18:00).
func WithinHours(c Clock) bool {
	return c.Hour >= OpenHour && c.Hour < CloseHour && c.Minute >= 0 && c.Minute < 60
}

func OnGrid(c Clock) bool {
	return c.Minute%SlotMinutes == 0
}

// GenerateSlots returns the slots of d in ascending order, or nil for non-business days.
func GenerateSlots(d Date) []Slot {
	if !IsBusinessDay(d) {
		return nil
	}
	slots := make([]Slot, 0, SlotsPerDay)
	for m := OpenHour * 60; m < CloseHour*60; m += SlotMinutes {
		slots = append(slots, Slot{Date: d, Time: Clock{Hour: m / 60, Minute: m % 60}})
	}
	return slots
}

// NextBusinessDay returns the first business day strictly after d.
func NextBusinessDay(d Date) Date {
	next := d.AddDays(1)
	for !IsBusinessDay(next) {
		next = next.AddDays(1)
	}
	return next
}

// AddBusinessDays moves n business days from d. Negative n moves backwards.
func AddBusinessDays(d Date, n int) Date {
	step := 1
	if n < 0 {
		step, n = -1, -n
	}
	for n > 0 {
		d = d.AddDays(step)
		if IsBusinessDay(d) {
			n--
		}
	}
	return d
}

// BusinessDaysBetween counts business days in [from, to).
func BusinessDaysBetween(from, to Date) int {
	count := 0
	for d := from; d.Before(to); d = d.AddDays(1) {
		if IsBusinessDay(d) {
			count++
		}
	}
	return count
}

// Hours describes the bookable week for callers.
type Hours struct {
	Weekdays    []string `json:"weekdays"`
	Open        string   `json:"open"`
	Close       string   `json:"close"`
	SlotMinutes int      `json:"slot_minutes"`
	Timezone    string   `json:"timezone"`
}

func BusinessHours(loc *time.Location) Hours {
	return Hours{
		Weekdays:    []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday"},
		Open:        Clock{Hour: OpenHour}.String(),
		Close:       Clock{Hour: CloseHour}.String(),
		SlotMinutes: SlotMinutes,
		Timezone:    loc.String(),
	}
}
