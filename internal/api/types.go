package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/apperr"
	"github.com/hackgods/clinic-scheduling/internal/waitlist"
)

type CreateAppointmentRequest struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Date       string `json:"date"`
	Time       string `json:"time"`
	Notes      string `json:"notes"`
	CreatedVia string `json:"created_via"`
}

type ModifyAppointmentRequest struct {
	Date   *string `json:"date"`
	Time   *string `json:"time"`
	Reason string  `json:"reason"`
	Token  string  `json:"token"`
}

type CancelAppointmentRequest struct {
	Reason            string `json:"reason"`
	RequestReschedule bool   `json:"request_reschedule"`
	Token             string `json:"token"`
}

type AppointmentResponse struct {
	ID                 uuid.UUID `json:"id"`
	PatientName        string    `json:"patient_name"`
	PatientEmail       string    `json:"patient_email"`
	PatientPhone       string    `json:"patient_phone"`
	Date               string    `json:"date"`
	Time               string    `json:"time"`
	Status             string    `json:"status"`
	ConfirmationToken  string    `json:"confirmation_token,omitempty"`
	Notes              *string   `json:"notes,omitempty"`
	CreatedVia         string    `json:"created_via"`
	CancellationReason *string   `json:"cancellation_reason,omitempty"`
	LateCancellation   bool      `json:"late_cancellation"`
	ModificationReason *string   `json:"modification_reason,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

func newAppointmentResponse(a *appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:                 a.ID,
		PatientName:        a.PatientName,
		PatientEmail:       a.PatientEmail,
		PatientPhone:       a.PatientPhone,
		Date:               a.Date.String(),
		Time:               a.Time.String(),
		Status:             string(a.Status),
		Notes:              a.Notes,
		CreatedVia:         string(a.CreatedVia),
		CancellationReason: a.CancellationReason,
		LateCancellation:   a.LateCancellation,
		ModificationReason: a.ModificationReason,
		CreatedAt:          a.CreatedAt,
		UpdatedAt:          a.UpdatedAt,
	}
}

type CancelAppointmentResponse struct {
	Appointment  AppointmentResponse `json:"appointment"`
	Alternatives []apperr.SlotJSON   `json:"alternatives,omitempty"`
}

type AvailabilityDay struct {
	Date    string   `json:"date"`
	Weekday string   `json:"weekday"`
	Slots   []string `json:"slots"`
}

type AvailabilityResponse struct {
	Start string            `json:"start"`
	End   string            `json:"end"`
	Days  []AvailabilityDay `json:"days"`
}

type SlotCheckResponse struct {
	Date         string            `json:"date"`
	Time         string            `json:"time"`
	Available    bool              `json:"available"`
	Alternatives []apperr.SlotJSON `json:"alternatives,omitempty"`
}

type JoinWaitlistRequest struct {
	Name            string  `json:"name"`
	Email           string  `json:"email"`
	Phone           string  `json:"phone"`
	PreferredDate   string  `json:"preferred_date"`
	PreferredTime   *string `json:"preferred_time"`
	TimeFlexibility string  `json:"time_flexibility"`
	DateFlexibility string  `json:"date_flexibility"`
	Notes           string  `json:"notes"`
}

type LeaveWaitlistRequest struct {
	Reason string `json:"reason"`
}

type WaitlistEntryResponse struct {
	ID                 uuid.UUID          `json:"id"`
	PatientName        string             `json:"patient_name"`
	PatientEmail       string             `json:"patient_email"`
	PatientPhone       string             `json:"patient_phone"`
	PreferredDate      string             `json:"preferred_date"`
	PreferredTime      *string            `json:"preferred_time"`
	TimeFlexibility    string             `json:"time_flexibility"`
	DateFlexibility    string             `json:"date_flexibility"`
	Notes              *string            `json:"notes,omitempty"`
	Status             string             `json:"status"`
	Position           *int               `json:"position,omitempty"`
	EstimatedWait      *waitlist.Estimate `json:"estimated_wait,omitempty"`
	CreatedAt          time.Time          `json:"created_at"`
	CancelledAt        *time.Time         `json:"cancelled_at,omitempty"`
	CancellationReason *string            `json:"cancellation_reason,omitempty"`
}

func newWaitlistEntryResponse(e *waitlist.Entry) WaitlistEntryResponse {
	resp := WaitlistEntryResponse{
		ID:                 e.ID,
		PatientName:        e.PatientName,
		PatientEmail:       e.PatientEmail,
		PatientPhone:       e.PatientPhone,
		PreferredDate:      e.PreferredDate.String(),
		TimeFlexibility:    string(e.TimeFlexibility),
		DateFlexibility:    string(e.DateFlexibility),
		Notes:              e.Notes,
		Status:             string(e.Status),
		CreatedAt:          e.CreatedAt,
		CancelledAt:        e.CancelledAt,
		CancellationReason: e.CancellationReason,
	}
	if e.PreferredTime != nil {
		t := e.PreferredTime.String()
		resp.PreferredTime = &t
	}
	return resp
}

func withStanding(resp WaitlistEntryResponse, res *waitlist.JoinResult) WaitlistEntryResponse {
	if res.Entry.Status != waitlist.StatusActive {
		return resp
	}
	pos := res.Position
	est := res.EstimatedWait
	resp.Position = &pos
	resp.EstimatedWait = &est
	return resp
}

type PositionResponse struct {
	ID            uuid.UUID          `json:"id"`
	Position      *int               `json:"position"`
	EstimatedWait *waitlist.Estimate `json:"estimated_wait,omitempty"`
}
