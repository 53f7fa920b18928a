package outbox

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrMessageNotFound   = errors.New("outbox message not found")
	ErrMessageNotPending = errors.New("outbox message is not pending")
)

type ListFilter struct {
	Status    Status
	Reference string
	Limit     int
}

// Repository is the storage contract of the outbox.
type Repository interface {
	Insert(ctx context.Context, msg *Message) error
	Get(ctx context.Context, id uuid.UUID) (*Message, error)
	List(ctx context.Context, f ListFilter) ([]Message, error)
	CountByStatus(ctx context.Context) (map[Status]int, error)

	// CancelPending cancels every pending message with the given reference.
	CancelPending(ctx context.Context, reference string) (int, error)

	// Dispatch worker
	// ClaimDue returns up to limit pending messages due at now, oldest first, and moves
	// their send_after to claimUntil so concurrent workers never receive the same row.
	ClaimDue(ctx context.Context, now time.Time, limit int, claimUntil time.Time) ([]Message, error)
	MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error
	// MarkAttemptFailed increments retry_count; at max_retries the message becomes failed,
	// otherwise send_after moves to nextAttempt.
	MarkAttemptFailed(ctx context.Context, id uuid.UUID, errMsg string, nextAttempt time.Time) (*Message, error)
}
