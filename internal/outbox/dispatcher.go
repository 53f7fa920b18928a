package outbox

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	redisclient "github.com/hackgods/clinic-scheduling/internal/redis"
)

const dispatchLockKey = "outbox:dispatch"

// Dispatcher is the delivery worker: it polls due pending messages, hands each to the
// provider for its type and records success or a failed attempt with backoff.
type Dispatcher struct {
	repo        Repository
	renderer    *Renderer
	providers   map[MessageType]Provider
	locker      redisclient.Locker
	backoff     Backoff
	batchSize   int
	sendTimeout time.Duration
	claimTTL    time.Duration
	now         func() time.Time
}

type DispatcherOption func(*Dispatcher)

func WithLocker(l redisclient.Locker) DispatcherOption {
	return func(d *Dispatcher) { d.locker = l }
}

func WithBackoff(b Backoff) DispatcherOption {
	return func(d *Dispatcher) { d.backoff = b }
}

func WithBatchSize(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.batchSize = n
		}
	}
}

// WithClaimTTL sets how long claimed messages stay invisible to other workers.
func WithClaimTTL(ttl time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if ttl > 0 {
			d.claimTTL = ttl
		}
	}
}

func WithClock(now func() time.Time) DispatcherOption {
	return func(d *Dispatcher) { d.now = now }
}

func NewDispatcher(repo Repository, renderer *Renderer, providers map[MessageType]Provider, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		repo:        repo,
		renderer:    renderer,
		providers:   providers,
		locker:      redisclient.NopLocker{},
		backoff:     Backoff{Base: time.Minute, Max: time.Hour},
		batchSize:   50,
		sendTimeout: 30 * time.Second,
		claimTTL:    5 * time.Minute,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Result summarizes one dispatch pass.
type Result struct {
	Sent    int
	Retried int
	Failed  int
	Skipped bool // another worker held the lease
}

// RunOnce processes one batch of due messages.
func (d *Dispatcher) RunOnce(ctx context.Context) (Result, error) {
	var res Result
	err := d.locker.WithLock(ctx, dispatchLockKey, func(ctx context.Context) error {
		now := d.now()
		claimUntil := now.Add(d.claimTTL)
		due, err := d.repo.ClaimDue(ctx, now, d.batchSize, claimUntil)
		if err != nil {
			return fmt.Errorf("claim due messages: %w", err)
		}
		for i, msg := range due {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// unsent claims become due again at claimUntil
			if !d.now().Before(claimUntil) {
				log.Printf("outbox claim expired, %d messages left for a later pass", len(due)-i)
				break
			}
			d.deliver(ctx, msg, &res)
		}
		return nil
	})
	if errors.Is(err, redisclient.ErrLockNotAcquired) {
		res.Skipped = true
		return res, nil
	}
	return res, err
}

func (d *Dispatcher) deliver(ctx context.Context, msg Message, res *Result) {
	sendErr := d.send(ctx, msg)
	// the outcome is recorded even if the lease expired during the send
	storeCtx := context.WithoutCancel(ctx)
	if sendErr == nil {
		if err := d.repo.MarkSent(storeCtx, msg.ID, d.now()); err != nil {
			log.Printf("outbox mark sent id=%s: %v", msg.ID, err)
			return
		}
		res.Sent++
		return
	}

	next := d.now().Add(d.backoff.Delay(msg.RetryCount))
	updated, err := d.repo.MarkAttemptFailed(storeCtx, msg.ID, sendErr.Error(), next)
	if err != nil {
		log.Printf("outbox mark failed id=%s: %v", msg.ID, err)
		return
	}
	if updated.Status == StatusFailed {
		res.Failed++
		log.Printf("outbox message failed permanently id=%s type=%s retries=%d: %v",
			msg.ID, msg.MessageType, updated.RetryCount, sendErr)
		return
	}
	res.Retried++
	log.Printf("outbox delivery failed id=%s retry=%d/%d next=%s: %v",
		msg.ID, updated.RetryCount, updated.MaxRetries, updated.SendAfter.Format(time.RFC3339), sendErr)
}

func (d *Dispatcher) send(ctx context.Context, msg Message) error {
	provider, ok := d.providers[msg.MessageType]
	if !ok {
		return fmt.Errorf("no provider for message type %q", msg.MessageType)
	}
	rendered, err := d.renderer.Render(msg)
	if err != nil {
		return err
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()
	return provider.Send(sendCtx, rendered)
}

// Run polls every interval and also whenever wake delivers a value, until ctx is done.
// wake may be nil.
func (d *Dispatcher) Run(ctx context.Context, interval time.Duration, wake <-chan string) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	d.runLogged(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			d.runLogged(ctx)
		case _, ok := <-wake:
			if !ok {
				wake = nil
				continue
			}
			d.runLogged(ctx)
		}
	}
}

func (d *Dispatcher) runLogged(ctx context.Context) {
	start := time.Now()
	res, err := d.RunOnce(ctx)
	if err != nil {
		log.Printf("outbox dispatch error: %v", err)
		return
	}
	if res.Skipped || res.Sent+res.Retried+res.Failed == 0 {
		return
	}
	log.Printf("outbox dispatch sent=%d retried=%d failed=%d duration=%s",
		res.Sent, res.Retried, res.Failed, time.Since(start))
}
