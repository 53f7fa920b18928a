package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/clinic-scheduling/internal/calendar"
	"github.com/hackgods/clinic-scheduling/internal/db"
)

// Index names from the migrations; unique violations are classified by them.
const (
	slotConstraint  = "ux_appointments_active_slot"
	tokenConstraint = "ux_appointments_confirmation_token"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

const appointmentColumns = `id, patient_name, patient_email, patient_phone, appointment_date, appointment_time,
	status, confirmation_token, notes, created_via, session_id, cancellation_reason, late_cancellation,
	modification_reason, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var date time.Time
	var clock string

	err := row.Scan(
		&a.ID,
		&a.PatientName,
		&a.PatientEmail,
		&a.PatientPhone,
		&date,
		&clock,
		&a.Status,
		&a.ConfirmationToken,
		&a.Notes,
		&a.CreatedVia,
		&a.SessionID,
		&a.CancellationReason,
		&a.LateCancellation,
		&a.ModificationReason,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.Date = calendar.DateOf(date)
	a.Time, err = calendar.ParseClock(clock)
	if err != nil {
		return nil, fmt.Errorf("appointment %s has malformed time %q: %w", a.ID, clock, err)
	}
	return &a, nil
}

func classifyWriteError(err error) error {
	switch {
	case db.IsUniqueViolation(err, slotConstraint):
		return ErrSlotTaken
	case db.IsUniqueViolation(err, tokenConstraint):
		return ErrTokenCollision
	}
	return err
}

// Interface methods

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id)
	return scanAppointment(row)
}

func (r *PgRepository) GetAppointmentByToken(ctx context.Context, token string) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE confirmation_token = $1`, token)
	return scanAppointment(row)
}

func (r *PgRepository) ListAppointments(ctx context.Context, f ListFilter) ([]Appointment, error) {
	var date *time.Time
	if f.Date != nil {
		t := f.Date.Time()
		date = &t
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE ($1::date IS NULL OR appointment_date = $1::date)
		  AND ($2 = '' OR status = $2)
		ORDER BY appointment_date, appointment_time, created_at
		LIMIT $3
	`, date, string(f.Status), f.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PgRepository) OccupiedSlots(ctx context.Context, from, to calendar.Date, exclude uuid.UUID) ([]calendar.Slot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT appointment_date, appointment_time
		FROM appointments
		WHERE appointment_date BETWEEN $1 AND $2
		  AND status <> 'cancelled'
		  AND id <> $3
		ORDER BY appointment_date, appointment_time
	`, from.Time(), to.Time(), exclude)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []calendar.Slot
	for rows.Next() {
		var date time.Time
		var clock string
		if err := rows.Scan(&date, &clock); err != nil {
			return nil, err
		}
		c, err := calendar.ParseClock(clock)
		if err != nil {
			return nil, fmt.Errorf("malformed appointment_time %q: %w", clock, err)
		}
		result = append(result, calendar.Slot{Date: calendar.DateOf(date), Time: c})
	}
	return result, rows.Err()
}

func (r *PgRepository) TryBook(ctx context.Context, a *Appointment) error {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (id, patient_name, patient_email, patient_phone, appointment_date, appointment_time,
		                          status, confirmation_token, notes, created_via, session_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now(), now())
		RETURNING `+appointmentColumns,
		a.ID, a.PatientName, a.PatientEmail, a.PatientPhone, a.Date.Time(), a.Time.String(),
		a.Status, a.ConfirmationToken, a.Notes, a.CreatedVia, a.SessionID)

	stored, err := scanAppointment(row)
	if err != nil {
		return classifyWriteError(err)
	}
	*a = *stored
	return nil
}

func (r *PgRepository) TryReschedule(ctx context.Context, id uuid.UUID, slot calendar.Slot, reason *string) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET appointment_date = $2,
		    appointment_time = $3,
		    modification_reason = $4,
		    updated_at = now()
		WHERE id = $1
		  AND status IN ('pending', 'confirmed')
		RETURNING `+appointmentColumns,
		id, slot.Date.Time(), slot.Time.String(), reason)

	a, err := scanAppointment(row)
	if err != nil {
		return nil, classifyWriteError(err)
	}
	return a, nil
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns,
		id, to, from)

	return scanAppointment(row)
}

func (r *PgRepository) CancelAppointment(ctx context.Context, id uuid.UUID, from AppointmentStatus, reason *string, late bool) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = 'cancelled',
		    cancellation_reason = $3,
		    late_cancellation = $4,
		    updated_at = now()
		WHERE id = $1
		  AND status = $2
		RETURNING `+appointmentColumns,
		id, from, reason, late)

	return scanAppointment(row)
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO appointment_events (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
