// Package app wires storage, locks and services from a config.Config for the executables.
package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/hackgods/clinic-scheduling/internal/api"
	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/db"
	"github.com/hackgods/clinic-scheduling/internal/memstore"
	"github.com/hackgods/clinic-scheduling/internal/outbox"
	redisclient "github.com/hackgods/clinic-scheduling/internal/redis"
	"github.com/hackgods/clinic-scheduling/internal/waitlist"
)

// Backend holds the open connections and the repositories built on them.
type Backend struct {
	Pool  *pgxpool.Pool // nil for the memory backend
	Redis *redis.Client // nil when Redis is disabled

	Appointments appointment.Repository
	Waitlist     waitlist.Repository
	Outbox       outbox.Repository
}

type OpenOptions struct {
	Migrate bool
	Redis   bool
}

// Open connects the configured store and, if asked, Redis. Redis failures are not fatal:
// locks fall back to the storage constraints alone.
func Open(ctx context.Context, cfg config.Config, opts OpenOptions) (*Backend, error) {
	b := &Backend{}

	switch cfg.StoreBackend {
	case config.BackendMemory:
		log.Println("using in-memory store")
		b.Appointments = memstore.NewAppointments()
		b.Waitlist = memstore.NewWaitlist()
		b.Outbox = memstore.NewOutbox()
	default:
		pgCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		pool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("postgres connection: %w", err)
		}
		log.Println("connected to Postgres")

		if opts.Migrate {
			if err := db.Migrate(ctx, pool); err != nil {
				pool.Close()
				return nil, fmt.Errorf("migrate: %w", err)
			}
		}

		b.Pool = pool
		b.Appointments = appointment.NewPgRepository(pool)
		b.Waitlist = waitlist.NewPgRepository(pool)
		b.Outbox = outbox.NewPgRepository(pool, cfg.Outbox.NotifyChannel)
	}

	if opts.Redis && cfg.RedisEnabled {
		rdb, err := redisclient.Connect(ctx, redisclient.Options{
			Addr:     cfg.RedisAddr,
			Username: cfg.RedisUsername,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			log.Printf("redis unavailable, continuing without locks: %v", err)
		} else {
			log.Println("connected to Redis")
			b.Redis = rdb
		}
	}

	return b, nil
}

func (b *Backend) Close() {
	if b.Redis != nil {
		if err := b.Redis.Close(); err != nil {
			log.Printf("error closing redis: %v", err)
		}
	}
	if b.Pool != nil {
		b.Pool.Close()
	}
}

// Locker returns a Redis locker with ttl, or a no-op locker without Redis.
func (b *Backend) Locker(ttl time.Duration) redisclient.Locker {
	if b.Redis == nil {
		return redisclient.NopLocker{}
	}
	return redisclient.NewRedisLocker(b.Redis, ttl)
}

// Services are the core services sharing one backend.
type Services struct {
	Appointments *appointment.Service
	Waitlist     *waitlist.Service
	Outbox       *outbox.Service
}

func (b *Backend) Services(cfg config.Config) Services {
	notifier := outbox.NewService(b.Outbox, cfg.Outbox.MaxRetries)
	wl := waitlist.NewService(b.Waitlist, notifier, cfg.Location, cfg.Waitlist.NotifyBatch)
	appts := appointment.NewService(b.Appointments, b.Locker(cfg.LockTTL), notifier, cfg,
		appointment.WithWaitlistHooks(wl))
	return Services{Appointments: appts, Waitlist: wl, Outbox: notifier}
}

// HealthDependencies lists what the readiness check pings: Postgres is critical,
// Redis only degrades the service.
func (b *Backend) HealthDependencies() []api.Dependency {
	var deps []api.Dependency
	if b.Pool != nil {
		deps = append(deps, api.Dependency{Name: "postgres", Critical: true, Ping: b.Pool.Ping})
	}
	if b.Redis != nil {
		rdb := b.Redis
		deps = append(deps, api.Dependency{Name: "redis", Ping: func(ctx context.Context) error {
			return redisclient.Ping(ctx, rdb)
		}})
	}
	return deps
}

// Providers builds the delivery channels: SMTP and the SMS gateway when configured,
// otherwise a provider that only logs.
func Providers(cfg config.Config) map[outbox.MessageType]outbox.Provider {
	providers := map[outbox.MessageType]outbox.Provider{
		outbox.TypeEmail: outbox.LogProvider{},
		outbox.TypeSMS:   outbox.LogProvider{},
	}
	if cfg.SMTP.Host != "" {
		providers[outbox.TypeEmail] = outbox.NewSMTPProvider(cfg.SMTP.Host, cfg.SMTP.Port,
			cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From)
	} else {
		log.Println("SMTP_HOST not set, email is logged only")
	}
	if cfg.SMS.GatewayURL != "" {
		providers[outbox.TypeSMS] = outbox.NewSMSGatewayProvider(cfg.SMS.GatewayURL, cfg.SMS.Token, cfg.SMS.Sender)
	} else {
		log.Println("SMS_GATEWAY_URL not set, sms is logged only")
	}
	return providers
}

// Dispatcher builds the outbox delivery worker on this backend.
func (b *Backend) Dispatcher(cfg config.Config) (*outbox.Dispatcher, error) {
	renderer, err := outbox.NewRenderer()
	if err != nil {
		return nil, err
	}
	return outbox.NewDispatcher(b.Outbox, renderer, Providers(cfg),
		outbox.WithLocker(b.Locker(cfg.Outbox.LeaseTTL)),
		outbox.WithBackoff(outbox.Backoff{Base: cfg.Outbox.BackoffBase, Max: cfg.Outbox.BackoffMax}),
		outbox.WithBatchSize(cfg.Outbox.BatchSize),
		outbox.WithClaimTTL(cfg.Outbox.LeaseTTL),
	), nil
}
