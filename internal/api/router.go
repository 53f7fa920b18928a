package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/waitlist"
)

type RouterConfig struct {
	Appointments *appointment.Service
	Waitlist     *waitlist.Service
	Health       *HealthHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)
	r.Use(RecoverMiddleware)

	health := cfg.Health
	if health == nil {
		health = NewHealthHandler("", "")
	}
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	appts := cfg.Appointments
	r.Get("/business-hours", businessHoursHandler(appts))
	r.Get("/availability", listAvailabilityHandler(appts))
	r.Get("/availability/{date}/{time}", checkSlotHandler(appts))

	r.Route("/appointments", func(r chi.Router) {
		r.Post("/", createAppointmentHandler(appts))
		r.Get("/", listAppointmentsHandler(appts))

		// token deep links; GET variants serve links clicked from email
		r.Post("/confirm/{token}", confirmByTokenHandler(appts))
		r.Get("/confirm/{token}", confirmByTokenHandler(appts))
		r.Post("/cancel/{token}", cancelByTokenHandler(appts))
		r.Get("/cancel/{token}", cancelByTokenHandler(appts))

		r.Get("/{id}", getAppointmentHandler(appts))
		r.Patch("/{id}", modifyAppointmentHandler(appts))
		r.Post("/{id}/cancel", cancelAppointmentHandler(appts))
	})

	r.Route("/waitlist", func(r chi.Router) {
		r.Post("/", joinWaitlistHandler(cfg.Waitlist))
		r.Get("/{id}", getWaitlistEntryHandler(cfg.Waitlist))
		r.Patch("/{id}", updateWaitlistEntryHandler(cfg.Waitlist))
		r.Delete("/{id}", leaveWaitlistHandler(cfg.Waitlist))
		r.Get("/{id}/position", waitlistPositionHandler(cfg.Waitlist))
	})

	return r
}
