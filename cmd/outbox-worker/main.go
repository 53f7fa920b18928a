package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"

	"github.com/hackgods/clinic-scheduling/internal/app"
	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/db"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("outbox-worker starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}
	if cfg.StoreBackend != config.BackendPostgres {
		log.Fatalf("outbox-worker needs STORE_BACKEND=postgres, got %q", cfg.StoreBackend)
	}

	log.Printf("running outbox worker in env=%s interval=%s batch=%d max_retries=%d",
		cfg.Env, cfg.Outbox.PollInterval, cfg.Outbox.BatchSize, cfg.Outbox.MaxRetries)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, err := app.Open(rootCtx, cfg, app.OpenOptions{Redis: true})
	if err != nil {
		log.Fatalf("backend error: %v", err)
	}
	defer backend.Close()

	dispatcher, err := backend.Dispatcher(cfg)
	if err != nil {
		log.Fatalf("dispatcher setup error: %v", err)
	}

	// Inserts NOTIFY the channel so new messages go out without waiting for the next tick.
	wake, err := db.NewListener(cfg.PostgresDSN, cfg.Outbox.NotifyChannel).Listen(rootCtx)
	if err != nil {
		log.Printf("listen on %s failed, polling only: %v", cfg.Outbox.NotifyChannel, err)
		wake = nil
	}

	if err := dispatcher.Run(rootCtx, cfg.Outbox.PollInterval, wake); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("dispatcher stopped: %v", err)
	}

	log.Println("shutdown signal received, stopping outbox worker")
}
