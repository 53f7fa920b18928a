package api

import (
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/calendar"
)

func businessHoursHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, calendar.BusinessHours(svc.Availability().Location()))
	}
}

// listAvailabilityHandler serves GET /availability?start=&end=. end defaults to start.
func listAvailabilityHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		start, err := parseDateField(q.Get("start"), "start")
		if err != nil {
			writeProblem(w, r, err)
			return
		}
		end := start
		if raw := q.Get("end"); raw != "" {
			if end, err = parseDateField(raw, "end"); err != nil {
				writeProblem(w, r, err)
				return
			}
		}

		byDay, err := svc.Availability().ListAvailable(r.Context(), start, end)
		if err != nil {
			writeProblem(w, r, err)
			return
		}

		days := make([]AvailabilityDay, 0, len(byDay))
		for d, slots := range byDay {
			times := make([]string, 0, len(slots))
			for _, s := range slots {
				times = append(times, s.Time.String())
			}
			days = append(days, AvailabilityDay{Date: d.String(), Weekday: d.Weekday().String(), Slots: times})
		}
		sort.Slice(days, func(i, j int) bool { return days[i].Date < days[j].Date })

		writeJSON(w, http.StatusOK, AvailabilityResponse{Start: start.String(), End: end.String(), Days: days})
	}
}

// checkSlotHandler serves GET /availability/{date}/{time}; a taken slot comes back with
// alternatives rather than an error.
func checkSlotHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date, err := parseDateField(chi.URLParam(r, "date"), "date")
		if err != nil {
			writeProblem(w, r, err)
			return
		}
		clock, err := parseClockField(chi.URLParam(r, "time"), "time")
		if err != nil {
			writeProblem(w, r, err)
			return
		}

		avail := svc.Availability()
		if err := calendar.IsValidDateTime(date, clock, avail.Now(), avail.Location()); err != nil {
			writeProblem(w, r, err)
			return
		}

		slot := calendar.Slot{Date: date, Time: clock}
		free, err := avail.IsAvailable(r.Context(), slot, uuid.Nil)
		if err != nil {
			writeProblem(w, r, err)
			return
		}

		resp := SlotCheckResponse{Date: date.String(), Time: clock.String(), Available: free}
		if !free {
			alts, err := svc.Suggest(r.Context(), slot, 0)
			if err != nil {
				writeProblem(w, r, err)
				return
			}
			resp.Alternatives = alternatives(alts)
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
