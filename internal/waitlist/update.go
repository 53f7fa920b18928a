package waitlist

import (
	"encoding/json"
	"strings"

	"github.com/hackgods/clinic-scheduling/internal/calendar"
	"github.com/hackgods/clinic-scheduling/internal/patient"
)

// updatableFields is the whitelist for partial updates; other keys are ignored.
var updatableFields = map[string]struct{}{
	"preferred_date":   {},
	"preferred_time":   {},
	"time_flexibility": {},
	"date_flexibility": {},
	"notes":            {},
}

// ParsePartial decodes a JSON object keeping only whitelisted fields. A null
// preferred_time clears it. An object with no whitelisted field yields ErrNoValidUpdates.
func ParsePartial(fields map[string]json.RawMessage) (Partial, error) {
	var p Partial
	for key, raw := range fields {
		if _, ok := updatableFields[key]; !ok {
			continue
		}
		isNull := strings.TrimSpace(string(raw)) == "null"

		switch key {
		case "preferred_date":
			var d calendar.Date
			if err := json.Unmarshal(raw, &d); err != nil || isNull {
				return Partial{}, patient.Field(key, "must be a date in YYYY-MM-DD format")
			}
			p.PreferredDate = &d
		case "preferred_time":
			if isNull {
				p.ClearPreferredTime = true
				continue
			}
			var c calendar.Clock
			if err := json.Unmarshal(raw, &c); err != nil {
				return Partial{}, patient.Field(key, "must be a time in HH:MM format")
			}
			p.PreferredTime = &c
		case "time_flexibility":
			var f TimeFlexibility
			if err := json.Unmarshal(raw, &f); err != nil || !f.Valid() {
				return Partial{}, patient.Field(key, "must be one of: exact morning afternoon any")
			}
			p.TimeFlexibility = &f
		case "date_flexibility":
			var f DateFlexibility
			if err := json.Unmarshal(raw, &f); err != nil || !f.Valid() {
				return Partial{}, patient.Field(key, "must be one of: exact same_week any")
			}
			p.DateFlexibility = &f
		case "notes":
			var n string
			if !isNull {
				if err := json.Unmarshal(raw, &n); err != nil {
					return Partial{}, patient.Field(key, "must be a string")
				}
			}
			n = strings.TrimSpace(n)
			p.Notes = &n
		}
	}
	if p.Empty() {
		return Partial{}, ErrNoValidUpdates
	}
	return p, nil
}
