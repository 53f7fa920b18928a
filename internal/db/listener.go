package db

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/lib/pq"
)

// Listener wraps pq's LISTEN support. pgx serves queries; pq keeps a dedicated
// connection that reconnects on its own, which suits a long-lived wake-up channel.
type Listener struct {
	dsn     string
	channel string
}

func NewListener(dsn, channel string) *Listener {
	return &Listener{dsn: dsn, channel: channel}
}

// Listen yields notification payloads until ctx is done. A reconnect is reported as an
// empty payload so consumers can re-poll for anything missed while disconnected.
func (l *Listener) Listen(ctx context.Context) (<-chan string, error) {
	pl := pq.NewListener(l.dsn, time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			log.Printf("listener channel=%s event=%d error=%v", l.channel, ev, err)
		}
	})
	if err := pl.Listen(l.channel); err != nil {
		_ = pl.Close()
		return nil, fmt.Errorf("listen %s: %w", pq.QuoteIdentifier(l.channel), err)
	}

	out := make(chan string, 16)
	go func() {
		defer func() {
			_ = pl.Close()
			close(out)
		}()
		ping := time.NewTicker(90 * time.Second)
		defer ping.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case n := <-pl.Notify:
				payload := ""
				if n != nil {
					payload = n.Extra
				}
				select {
				case out <- payload:
				default:
					// consumer is busy; it re-polls the table anyway
				}
			case <-ping.C:
				if err := pl.Ping(); err != nil {
					log.Printf("listener ping channel=%s: %v", l.channel, err)
				}
			}
		}
	}()

	return out, nil
}
