package waitlist

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

const activeEmailDateConstraint = "ux_waitlist_active_email_date"

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const entryColumns = `id, session_id, patient_name, patient_email, patient_phone, preferred_date, preferred_time,
	time_flexibility, date_flexibility, notes, status, created_at, cancelled_at, cancellation_reason`

func scanEntry(row pgx.Row) (*Entry, error) {
	var e Entry
	var date time.Time
	var clock *string

	err := row.Scan(
		&e.ID,
		&e.SessionID,
		&e.PatientName,
		&e.PatientEmail,
		&e.PatientPhone,
		&date,
		&clock,
		&e.TimeFlexibility,
		&e.DateFlexibility,
		&e.Notes,
		&e.Status,
		&e.CreatedAt,
		&e.CancelledAt,
		&e.CancellationReason,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		return nil, err
	}

	e.PreferredDate = calendar.DateOf(date)
	if clock != nil {
		c, err := calendar.ParseClock(*clock)
		if err != nil {
			return nil, fmt.Errorf("waitlist entry %s has malformed time %q: %w", e.ID, *clock, err)
		}
		e.PreferredTime = &c
	}
	return &e, nil
}

func clockParam(c *calendar.Clock) *string {
	if c == nil {
		return nil
	}
	s := c.String()
	return &s
}

func classifyWriteError(err error) error {
	if db.IsUniqueViolation(err, activeEmailDateConstraint) {
		return ErrAlreadyOnWaitlist
	}
	return err
}

func (r *PgRepository) Insert(ctx context.Context, e *Entry) error {
	// created_at comes from clock_timestamp() so FIFO order follows commit-side time.
	row := r.pool.QueryRow(ctx, `
		INSERT INTO waitlist_entries (id, session_id, patient_name, patient_email, patient_phone, preferred_date,
		                              preferred_time, time_flexibility, date_flexibility, notes, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING `+entryColumns,
		e.ID, e.SessionID, e.PatientName, e.PatientEmail, e.PatientPhone, e.PreferredDate.Time(),
		clockParam(e.PreferredTime), e.TimeFlexibility, e.DateFlexibility, e.Notes, e.Status)

	stored, err := scanEntry(row)
	if err != nil {
		return classifyWriteError(err)
	}
	*e = *stored
	return nil
}

func (r *PgRepository) Get(ctx context.Context, id uuid.UUID) (*Entry, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+entryColumns+` FROM waitlist_entries WHERE id = $1`, id)
	return scanEntry(row)
}

func (r *PgRepository) FindActive(ctx context.Context, email string, date calendar.Date) (*Entry, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+entryColumns+`
		FROM waitlist_entries
		WHERE lower(patient_email) = lower($1)
		  AND preferred_date = $2
		  AND status = 'active'
	`, email, date.Time())
	return scanEntry(row)
}

func (r *PgRepository) ListActive(ctx context.Context, f ListFilter) ([]Entry, error) {
	var date *time.Time
	if f.Date != nil {
		t := f.Date.Time()
		date = &t
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+entryColumns+`
		FROM waitlist_entries
		WHERE status = 'active'
		  AND ($1::date IS NULL OR preferred_date = $1::date)
		ORDER BY created_at, id
		LIMIT $2
	`, date, f.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *e)
	}
	return result, rows.Err()
}

func (r *PgRepository) CountActiveBefore(ctx context.Context, createdAt time.Time) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT count(*)
		FROM waitlist_entries
		WHERE status = 'active'
		  AND created_at < $1
	`, createdAt).Scan(&n)
	return n, err
}

func (r *PgRepository) Cancel(ctx context.Context, id uuid.UUID, sessionID, reason string, at time.Time) (*Entry, error) {
	var why *string
	if reason != "" {
		why = &reason
	}
	row := r.pool.QueryRow(ctx, `
		UPDATE waitlist_entries
		SET status = 'cancelled',
		    cancelled_at = $3,
		    cancellation_reason = $4
		WHERE id = $1
		  AND session_id = $2
		  AND status = 'active'
		RETURNING `+entryColumns,
		id, sessionID, at, why)
	return scanEntry(row)
}

func (r *PgRepository) Save(ctx context.Context, e Entry, sessionID string) (*Entry, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE waitlist_entries
		SET preferred_date = $3,
		    preferred_time = $4,
		    time_flexibility = $5,
		    date_flexibility = $6,
		    notes = $7
		WHERE id = $1
		  AND session_id = $2
		  AND status = 'active'
		RETURNING `+entryColumns,
		e.ID, sessionID, e.PreferredDate.Time(), clockParam(e.PreferredTime), e.TimeFlexibility, e.DateFlexibility, e.Notes)

	stored, err := scanEntry(row)
	if err != nil {
		return nil, classifyWriteError(err)
	}
	return stored, nil
}

func (r *PgRepository) MarkFulfilled(ctx context.Context, email string, date calendar.Date) (int, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE waitlist_entries
		SET status = 'fulfilled'
		WHERE lower(patient_email) = lower($1)
		  AND preferred_date = $2
		  AND status = 'active'
	`, email, date.Time())
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
