package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/apperr"
	"github.com/hackgods/clinic-scheduling/internal/calendar"
	"github.com/hackgods/clinic-scheduling/internal/patient"
)

func parseDateField(raw, field string) (calendar.Date, error) {
	if strings.TrimSpace(raw) == "" {
		return calendar.Date{}, patient.Field(field, "is required")
	}
	d, err := calendar.ParseDate(raw)
	if err != nil {
		return calendar.Date{}, patient.Field(field, "must be a date in YYYY-MM-DD format")
	}
	return d, nil
}

func parseClockField(raw, field string) (calendar.Clock, error) {
	if strings.TrimSpace(raw) == "" {
		return calendar.Clock{}, patient.Field(field, "is required")
	}
	c, err := calendar.ParseClock(raw)
	if err != nil {
		return calendar.Clock{}, patient.Field(field, "must be a time in HH:MM format")
	}
	return c, nil
}

func createAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateAppointmentRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeProblem(w, r, err)
			return
		}

		date, err := parseDateField(req.Date, "date")
		if err != nil {
			writeProblem(w, r, err)
			return
		}
		clock, err := parseClockField(req.Time, "time")
		if err != nil {
			writeProblem(w, r, err)
			return
		}

		appt, err := svc.CreateAppointment(r.Context(), appointment.CreateRequest{
			Patient:    patient.Info{Name: req.Name, Email: req.Email, Phone: req.Phone},
			Date:       date,
			Time:       clock,
			Notes:      req.Notes,
			CreatedVia: appointment.Channel(req.CreatedVia),
			SessionID:  sessionOf(r),
		})
		if err != nil {
			writeProblem(w, r, err)
			return
		}

		resp := newAppointmentResponse(appt)
		resp.ConfirmationToken = appt.ConfirmationToken
		writeJSON(w, http.StatusCreated, resp)
	}
}

func listAppointmentsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		var f appointment.ListFilter

		if raw := q.Get("date"); raw != "" {
			d, err := parseDateField(raw, "date")
			if err != nil {
				writeProblem(w, r, err)
				return
			}
			f.Date = &d
		}
		f.Status = appointment.AppointmentStatus(q.Get("status"))
		if raw := q.Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				writeProblem(w, r, patient.Field("limit", "must be a positive integer"))
				return
			}
			f.Limit = n
		}

		appts, err := svc.ListAppointments(r.Context(), f)
		if err != nil {
			writeProblem(w, r, err)
			return
		}

		resp := make([]AppointmentResponse, 0, len(appts))
		for i := range appts {
			resp = append(resp, newAppointmentResponse(&appts[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// getAppointmentHandler answers only the owning session or the token holder (?token=).
func getAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseID(chi.URLParam(r, "id"), "id")
		if err != nil {
			writeProblem(w, r, err)
			return
		}

		appt, err := svc.GetAppointment(r.Context(), id)
		if err != nil {
			writeProblem(w, r, err)
			return
		}
		owner := appointment.Owner{SessionID: sessionOf(r), Token: r.URL.Query().Get("token")}
		if !appt.OwnedBy(owner) {
			writeProblem(w, r, appointment.ErrAppointmentNotFound)
			return
		}

		writeJSON(w, http.StatusOK, newAppointmentResponse(appt))
	}
}

func modifyAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseID(chi.URLParam(r, "id"), "id")
		if err != nil {
			writeProblem(w, r, err)
			return
		}

		var req ModifyAppointmentRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeProblem(w, r, err)
			return
		}

		mreq := appointment.ModifyRequest{
			ID:     id,
			Owner:  appointment.Owner{SessionID: sessionOf(r), Token: req.Token},
			Reason: req.Reason,
		}
		if req.Date != nil {
			d, err := parseDateField(*req.Date, "date")
			if err != nil {
				writeProblem(w, r, err)
				return
			}
			mreq.NewDate = &d
		}
		if req.Time != nil {
			c, err := parseClockField(*req.Time, "time")
			if err != nil {
				writeProblem(w, r, err)
				return
			}
			mreq.NewTime = &c
		}

		appt, err := svc.ModifyAppointment(r.Context(), mreq)
		if err != nil {
			writeProblem(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newAppointmentResponse(appt))
	}
}

func cancelAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseID(chi.URLParam(r, "id"), "id")
		if err != nil {
			writeProblem(w, r, err)
			return
		}

		var req CancelAppointmentRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeProblem(w, r, err)
			return
		}

		res, err := svc.CancelAppointment(r.Context(), appointment.CancelRequest{
			ID:                id,
			Owner:             appointment.Owner{SessionID: sessionOf(r), Token: req.Token},
			Reason:            req.Reason,
			RequestReschedule: req.RequestReschedule,
		})
		if err != nil {
			writeProblem(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, CancelAppointmentResponse{
			Appointment:  newAppointmentResponse(res.Appointment),
			Alternatives: alternatives(res.Alternatives),
		})
	}
}

func confirmByTokenHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appt, err := svc.ConfirmByToken(r.Context(), chi.URLParam(r, "token"))
		if err != nil {
			writeProblem(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newAppointmentResponse(appt))
	}
}

func cancelByTokenHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CancelAppointmentRequest
		if r.Method == http.MethodPost {
			if err := decodeJSON(w, r, &req); err != nil {
				writeProblem(w, r, err)
				return
			}
		}

		res, err := svc.CancelByToken(r.Context(), chi.URLParam(r, "token"), req.Reason)
		if err != nil {
			writeProblem(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, CancelAppointmentResponse{Appointment: newAppointmentResponse(res.Appointment)})
	}
}

func alternatives(slots []calendar.Slot) []apperr.SlotJSON {
	if len(slots) == 0 {
		return nil
	}
	return apperr.SlotsJSON(slots)
}
