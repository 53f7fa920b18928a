// Command clinicctl is the operator CLI: migrations, staff-side appointment status
// changes and a view into the notification outbox.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hackgods/clinic-scheduling/internal/app"
	"github.com/hackgods/clinic-scheduling/internal/config"
)

var version = "dev"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "clinicctl",
		Short:         "Operate the clinic scheduling backend",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newMigrateCmd())
	root.AddCommand(newSlotsCmd())
	root.AddCommand(newAppointmentsCmd())
	root.AddCommand(newWaitlistCmd())
	root.AddCommand(newOutboxCmd())

	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// session is one command's view of the backend.
type session struct {
	cfg     config.Config
	backend *app.Backend
	svcs    app.Services
}

func open(ctx context.Context, migrate bool) (*session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if cfg.StoreBackend != config.BackendPostgres {
		return nil, fmt.Errorf("clinicctl needs STORE_BACKEND=postgres, got %q", cfg.StoreBackend)
	}
	backend, err := app.Open(ctx, cfg, app.OpenOptions{Migrate: migrate, Redis: true})
	if err != nil {
		return nil, err
	}
	return &session{cfg: cfg, backend: backend, svcs: backend.Services(cfg)}, nil
}

func (s *session) Close() { s.backend.Close() }

func newTable() *tabwriter.Writer {
	return tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := open(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer s.Close()
			fmt.Fprintln(os.Stdout, "migrations applied")
			return nil
		},
	}
}
