package waitlist

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/calendar"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusCancelled Status = "cancelled"
	StatusFulfilled Status = "fulfilled"
)

type TimeFlexibility string

const (
	TimeExact     TimeFlexibility = "exact"
	TimeMorning   TimeFlexibility = "morning"
	TimeAfternoon TimeFlexibility = "afternoon"
	TimeAny       TimeFlexibility = "any"
)

func (f TimeFlexibility) Valid() bool {
	switch f {
	case TimeExact, TimeMorning, TimeAfternoon, TimeAny:
		return true
	}
	return false
}

type DateFlexibility string

const (
	DateExact    DateFlexibility = "exact"
	DateSameWeek DateFlexibility = "same_week"
	DateAny      DateFlexibility = "any"
)

func (f DateFlexibility) Valid() bool {
	switch f {
	case DateExact, DateSameWeek, DateAny:
		return true
	}
	return false
}

type Entry struct {
	ID                 uuid.UUID
	SessionID          *string
	PatientName        string
	PatientEmail       string
	PatientPhone       string
	PreferredDate      calendar.Date
	PreferredTime      *calendar.Clock
	TimeFlexibility    TimeFlexibility
	DateFlexibility    DateFlexibility
	Notes              *string
	Status             Status
	CreatedAt          time.Time
	CancelledAt        *time.Time
	CancellationReason *string
}

// noonMinutes splits morning from afternoon.
const noonMinutes = 12 * 60

// Matches reports whether a freed slot fits the entry's preferences.
func (e *Entry) Matches(slot calendar.Slot) bool {
	switch e.DateFlexibility {
	case DateSameWeek:
		py, pw := e.PreferredDate.Time().ISOWeek()
		sy, sw := slot.Date.Time().ISOWeek()
		if py != sy || pw != sw {
			return false
		}
	case DateAny:
	default:
		if slot.Date != e.PreferredDate {
			return false
		}
	}

	switch e.TimeFlexibility {
	case TimeMorning:
		return slot.Time.Minutes() < noonMinutes
	case TimeAfternoon:
		return slot.Time.Minutes() >= noonMinutes
	case TimeAny:
		return true
	}
	return e.PreferredTime == nil || *e.PreferredTime == slot.Time
}

type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Estimate is the expected wait for a waitlist position.
type Estimate struct {
	Weeks      int        `json:"weeks"`
	Confidence Confidence `json:"confidence"`
}

// Partial holds the fields a patient may change on an active entry.
type Partial struct {
	PreferredDate      *calendar.Date
	PreferredTime      *calendar.Clock
	ClearPreferredTime bool
	TimeFlexibility    *TimeFlexibility
	DateFlexibility    *DateFlexibility
	Notes              *string
}

func (p Partial) Empty() bool {
	return p.PreferredDate == nil && p.PreferredTime == nil && !p.ClearPreferredTime &&
		p.TimeFlexibility == nil && p.DateFlexibility == nil && p.Notes == nil
}

// Apply returns a copy of e with p applied.
func (p Partial) Apply(e Entry) Entry {
	if p.PreferredDate != nil {
		e.PreferredDate = *p.PreferredDate
	}
	if p.ClearPreferredTime {
		e.PreferredTime = nil
	}
	if p.PreferredTime != nil {
		t := *p.PreferredTime
		e.PreferredTime = &t
	}
	if p.TimeFlexibility != nil {
		e.TimeFlexibility = *p.TimeFlexibility
	}
	if p.DateFlexibility != nil {
		e.DateFlexibility = *p.DateFlexibility
	}
	if p.Notes != nil {
		if *p.Notes == "" {
			e.Notes = nil
		} else {
			n := *p.Notes
			e.Notes = &n
		}
	}
	return e
}
