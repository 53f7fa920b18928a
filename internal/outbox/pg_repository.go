package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool          *pgxpool.Pool
	notifyChannel string
}

// NewPgRepository returns a repository that NOTIFYs notifyChannel when a message becomes
// due immediately. An empty channel disables notifications.
func NewPgRepository(pool *pgxpool.Pool, notifyChannel string) *PgRepository {
	return &PgRepository{pool: pool, notifyChannel: notifyChannel}
}

const messageColumns = `id, message_type, recipient, subject, template, template_data, COALESCE(reference, ''),
	status, retry_count, max_retries, send_after, sent_at, error_message, created_at`

func scanMessage(row pgx.Row) (*Message, error) {
	var m Message
	var data []byte

	err := row.Scan(
		&m.ID,
		&m.MessageType,
		&m.Recipient,
		&m.Subject,
		&m.Template,
		&data,
		&m.Reference,
		&m.Status,
		&m.RetryCount,
		&m.MaxRetries,
		&m.SendAfter,
		&m.SentAt,
		&m.ErrorMessage,
		&m.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}

	if len(data) > 0 {
		if err := json.Unmarshal(data, &m.TemplateData); err != nil {
			return nil, fmt.Errorf("decode template data: %w", err)
		}
	}
	return &m, nil
}

func collectMessages(rows pgx.Rows) ([]Message, error) {
	defer rows.Close()

	var result []Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PgRepository) Insert(ctx context.Context, msg *Message) error {
	data, err := json.Marshal(msg.TemplateData)
	if err != nil {
		return fmt.Errorf("encode template data: %w", err)
	}

	var ref *string
	if msg.Reference != "" {
		ref = &msg.Reference
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO outbox_messages (id, message_type, recipient, subject, template, template_data, reference,
		                             status, retry_count, max_retries, send_after, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'pending', 0, $8, $9, now())
		RETURNING `+messageColumns,
		msg.ID, msg.MessageType, msg.Recipient, msg.Subject, msg.Template, data, ref, msg.MaxRetries, msg.SendAfter)

	stored, err := scanMessage(row)
	if err != nil {
		return fmt.Errorf("insert outbox message: %w", err)
	}
	*msg = *stored

	if r.notifyChannel != "" && !msg.SendAfter.After(time.Now()) {
		if _, err := r.pool.Exec(ctx, `SELECT pg_notify($1, $2)`, r.notifyChannel, msg.ID.String()); err != nil {
			log.Printf("outbox notify failed id=%s: %v", msg.ID, err)
		}
	}
	return nil
}

func (r *PgRepository) Get(ctx context.Context, id uuid.UUID) (*Message, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+messageColumns+` FROM outbox_messages WHERE id = $1`, id)
	return scanMessage(row)
}

func (r *PgRepository) List(ctx context.Context, f ListFilter) ([]Message, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+messageColumns+`
		FROM outbox_messages
		WHERE ($1 = '' OR status = $1)
		  AND ($2 = '' OR reference = $2)
		ORDER BY created_at DESC
		LIMIT $3
	`, string(f.Status), f.Reference, f.Limit)
	if err != nil {
		return nil, err
	}
	return collectMessages(rows)
}

func (r *PgRepository) CountByStatus(ctx context.Context) (map[Status]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT status, count(*) FROM outbox_messages GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[Status]int)
	for rows.Next() {
		var s Status
		var n int
		if err := rows.Scan(&s, &n); err != nil {
			return nil, err
		}
		counts[s] = n
	}
	return counts, rows.Err()
}

func (r *PgRepository) CancelPending(ctx context.Context, reference string) (int, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE outbox_messages
		SET status = 'cancelled'
		WHERE reference = $1
		  AND status = 'pending'
	`, reference)
	if err != nil {
		return 0, fmt.Errorf("cancel pending messages: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *PgRepository) ClaimDue(ctx context.Context, now time.Time, limit int, claimUntil time.Time) ([]Message, error) {
	rows, err := r.pool.Query(ctx, `
		WITH due AS (
			SELECT id AS due_id
			FROM outbox_messages
			WHERE status = 'pending'
			  AND send_after <= $1
			ORDER BY send_after, created_at
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		UPDATE outbox_messages m
		SET send_after = $3
		FROM due
		WHERE m.id = due.due_id
		RETURNING `+messageColumns,
		now, limit, claimUntil)
	if err != nil {
		return nil, err
	}
	msgs, err := collectMessages(rows)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].CreatedAt.Before(msgs[j].CreatedAt) })
	return msgs, nil
}

func (r *PgRepository) MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE outbox_messages
		SET status = 'sent',
		    sent_at = $2,
		    error_message = NULL
		WHERE id = $1
		  AND status = 'pending'
	`, id, sentAt)
	if err != nil {
		return fmt.Errorf("mark sent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrMessageNotPending
	}
	return nil
}

func (r *PgRepository) MarkAttemptFailed(ctx context.Context, id uuid.UUID, errMsg string, nextAttempt time.Time) (*Message, error) {
	// SET expressions see the pre-update row, so retry_count + 1 is the new count.
	row := r.pool.QueryRow(ctx, `
		UPDATE outbox_messages
		SET retry_count = LEAST(retry_count + 1, max_retries),
		    status = CASE WHEN retry_count + 1 >= max_retries THEN 'failed' ELSE 'pending' END,
		    send_after = CASE WHEN retry_count + 1 >= max_retries THEN send_after ELSE $3 END,
		    error_message = $2
		WHERE id = $1
		  AND status = 'pending'
		RETURNING `+messageColumns,
		id, errMsg, nextAttempt)

	m, err := scanMessage(row)
	if errors.Is(err, ErrMessageNotFound) {
		return nil, ErrMessageNotPending
	}
	return m, err
}
