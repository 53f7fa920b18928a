package appointment

import (
	"context"
	"log"
	"time"

	"github.com/hackgods/clinic-scheduling/internal/calendar"
	"github.com/hackgods/clinic-scheduling/internal/outbox"
)

// reminderOffsets are measured back from the appointment start in the clinic's zone.
var reminderOffsets = []struct {
	before   time.Duration
	template string
}{
	{24 * time.Hour, outbox.TemplateAppointmentReminder24h},
	{2 * time.Hour, outbox.TemplateAppointmentReminder2h},
}

// enqueueReminders schedules the T-24h and T-2h reminders, skipping any already in the past.
func (s *Service) enqueueReminders(ctx context.Context, appt *Appointment) {
	start := appt.Slot().Start(s.cfg.Location)
	now := s.now()
	for _, r := range reminderOffsets {
		at := start.Add(-r.before)
		if !at.After(now) {
			continue
		}
		s.enqueue(ctx, appt, r.template, at, nil)
	}
}

// enqueue is best effort: the booking already committed, so a failed insert is logged
// rather than returned.
func (s *Service) enqueue(ctx context.Context, appt *Appointment, template string, sendAfter time.Time, extra map[string]any) {
	if s.notifier == nil {
		return
	}
	data := s.templateData(appt)
	for k, v := range extra {
		data[k] = v
	}
	_, err := s.notifier.Enqueue(ctx, outbox.EnqueueRequest{
		MessageType: outbox.TypeEmail,
		Recipient:   appt.PatientEmail,
		Template:    template,
		Data:        data,
		Reference:   outbox.AppointmentRef(appt.ID),
		SendAfter:   sendAfter,
	})
	if err != nil {
		log.Printf("failed to enqueue %s for appointment %s: %v", template, appt.ID, err)
	}
}

func (s *Service) cancelPendingNotifications(ctx context.Context, appt *Appointment) {
	if s.notifier == nil {
		return
	}
	if _, err := s.notifier.CancelPending(ctx, outbox.AppointmentRef(appt.ID)); err != nil {
		log.Printf("failed to cancel pending notifications for appointment %s: %v", appt.ID, err)
	}
}

func (s *Service) templateData(appt *Appointment) map[string]any {
	return map[string]any{
		"appointment_id": appt.ID.String(),
		"patient_name":   appt.PatientName,
		"date":           displayDate(appt.Date),
		"date_iso":       appt.Date.String(),
		"time":           appt.Time.String(),
		"confirm_url":    s.cfg.PublicBaseURL + "/appointments/confirm/" + appt.ConfirmationToken,
		"cancel_url":     s.cfg.PublicBaseURL + "/appointments/cancel/" + appt.ConfirmationToken,
		"contact_phone":  s.cfg.ContactPhone,
	}
}

// displayDate formats dates the way patients read them (DD/MM/YYYY).
func displayDate(d calendar.Date) string {
	return d.Time().Format("02/01/2006")
}
