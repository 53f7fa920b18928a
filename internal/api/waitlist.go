package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hackgods/clinic-scheduling/internal/calendar"
	"github.com/hackgods/clinic-scheduling/internal/patient"
	"github.com/hackgods/clinic-scheduling/internal/waitlist"
)

func joinWaitlistHandler(svc *waitlist.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req JoinWaitlistRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeProblem(w, r, err)
			return
		}

		date, err := parseDateField(req.PreferredDate, "preferred_date")
		if err != nil {
			writeProblem(w, r, err)
			return
		}
		var preferred *calendar.Clock
		if req.PreferredTime != nil && *req.PreferredTime != "" {
			c, err := parseClockField(*req.PreferredTime, "preferred_time")
			if err != nil {
				writeProblem(w, r, err)
				return
			}
			preferred = &c
		}

		res, err := svc.Join(r.Context(), waitlist.JoinRequest{
			Patient:         patient.Info{Name: req.Name, Email: req.Email, Phone: req.Phone},
			SessionID:       sessionOf(r),
			PreferredDate:   date,
			PreferredTime:   preferred,
			TimeFlexibility: waitlist.TimeFlexibility(req.TimeFlexibility),
			DateFlexibility: waitlist.DateFlexibility(req.DateFlexibility),
			Notes:           req.Notes,
		})
		if err != nil {
			writeProblem(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, withStanding(newWaitlistEntryResponse(res.Entry), res))
	}
}

// getWaitlistEntryHandler only answers the session that created the entry.
func getWaitlistEntryHandler(svc *waitlist.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseID(chi.URLParam(r, "id"), "id")
		if err != nil {
			writeProblem(w, r, err)
			return
		}

		res, err := svc.Get(r.Context(), id)
		if err != nil {
			writeProblem(w, r, err)
			return
		}
		session := sessionOf(r)
		if session == "" || res.Entry.SessionID == nil || *res.Entry.SessionID != session {
			writeProblem(w, r, waitlist.ErrEntryNotFound)
			return
		}
		writeJSON(w, http.StatusOK, withStanding(newWaitlistEntryResponse(res.Entry), res))
	}
}

func updateWaitlistEntryHandler(svc *waitlist.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseID(chi.URLParam(r, "id"), "id")
		if err != nil {
			writeProblem(w, r, err)
			return
		}

		var fields map[string]json.RawMessage
		if err := decodeJSON(w, r, &fields); err != nil {
			writeProblem(w, r, err)
			return
		}
		partial, err := waitlist.ParsePartial(fields)
		if err != nil {
			writeProblem(w, r, err)
			return
		}

		entry, err := svc.Update(r.Context(), id, sessionOf(r), partial)
		if err != nil {
			writeProblem(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newWaitlistEntryResponse(entry))
	}
}

func leaveWaitlistHandler(svc *waitlist.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseID(chi.URLParam(r, "id"), "id")
		if err != nil {
			writeProblem(w, r, err)
			return
		}

		var req LeaveWaitlistRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeProblem(w, r, err)
			return
		}
		if req.Reason == "" {
			req.Reason = r.URL.Query().Get("reason")
		}

		entry, err := svc.Leave(r.Context(), id, sessionOf(r), req.Reason)
		if err != nil {
			writeProblem(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newWaitlistEntryResponse(entry))
	}
}

// waitlistPositionHandler recomputes the rank on every call; inactive entries have a null position.
func waitlistPositionHandler(svc *waitlist.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseID(chi.URLParam(r, "id"), "id")
		if err != nil {
			writeProblem(w, r, err)
			return
		}

		res, err := svc.Get(r.Context(), id)
		if err != nil {
			writeProblem(w, r, err)
			return
		}

		resp := PositionResponse{ID: id}
		if res.Entry.Status == waitlist.StatusActive {
			pos, est := res.Position, res.EstimatedWait
			resp.Position = &pos
			resp.EstimatedWait = &est
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
