package waitlist

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/calendar"
)

var (
	ErrEntryNotFound     = errors.New("waitlist entry not found")
	ErrAlreadyOnWaitlist = errors.New("already on the waitlist for this date")
	ErrNoValidUpdates    = errors.New("no valid updates")
)

type ListFilter struct {
	Date  *calendar.Date
	Limit int
}

// Repository is the storage contract of the waitlist. Inserts and updates return
// ErrAlreadyOnWaitlist when the active (email, date) uniqueness constraint rejects them.
type Repository interface {
	Insert(ctx context.Context, e *Entry) error
	Get(ctx context.Context, id uuid.UUID) (*Entry, error)
	FindActive(ctx context.Context, email string, date calendar.Date) (*Entry, error)

	// ListActive returns active entries in FIFO order.
	ListActive(ctx context.Context, f ListFilter) ([]Entry, error)
	// CountActiveBefore counts active entries created strictly before createdAt.
	CountActiveBefore(ctx context.Context, createdAt time.Time) (int, error)

	// Cancel and Save only touch active entries owned by sessionID.
	Cancel(ctx context.Context, id uuid.UUID, sessionID, reason string, at time.Time) (*Entry, error)
	Save(ctx context.Context, e Entry, sessionID string) (*Entry, error)

	MarkFulfilled(ctx context.Context, email string, date calendar.Date) (int, error)
}
