package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/hackgods/clinic-scheduling/internal/outbox"
)

func newOutboxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outbox",
		Short: "Inspect and drain the notification outbox",
	}
	cmd.AddCommand(newOutboxStatsCmd())
	cmd.AddCommand(newOutboxListCmd())
	cmd.AddCommand(newOutboxDispatchCmd())
	return cmd
}

func newOutboxStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count messages per status",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := open(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer s.Close()

			counts, err := s.svcs.Outbox.Stats(cmd.Context())
			if err != nil {
				return err
			}
			for _, st := range []outbox.Status{outbox.StatusPending, outbox.StatusSent, outbox.StatusFailed, outbox.StatusCancelled} {
				fmt.Fprintf(os.Stdout, "%-10s %d\n", st, counts[st])
			}
			return nil
		},
	}
}

func newOutboxListCmd() *cobra.Command {
	var (
		status    string
		reference string
		limit     int
	)
	c := &cobra.Command{
		Use:   "list",
		Short: "List outbox messages",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := open(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer s.Close()

			msgs, err := s.svcs.Outbox.List(cmd.Context(), outbox.ListFilter{
				Status:    outbox.Status(status),
				Reference: reference,
				Limit:     limit,
			})
			if err != nil {
				return err
			}

			tw := newTable()
			fmt.Fprintln(tw, "ID\tTYPE\tTEMPLATE\tRECIPIENT\tSTATUS\tRETRIES\tSEND_AFTER\tERROR")
			for _, m := range msgs {
				errMsg := ""
				if m.ErrorMessage != nil {
					errMsg = *m.ErrorMessage
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d/%d\t%s\t%s\n",
					m.ID, m.MessageType, m.Template, m.Recipient, m.Status, m.RetryCount, m.MaxRetries,
					m.SendAfter.In(s.cfg.Location).Format(time.RFC3339), errMsg)
			}
			return tw.Flush()
		},
	}
	c.Flags().StringVar(&status, "status", "", "pending, sent, failed or cancelled")
	c.Flags().StringVar(&reference, "reference", "", "owning aggregate, e.g. appointment:<id>")
	c.Flags().IntVar(&limit, "limit", 50, "maximum rows")
	return c
}

func newOutboxDispatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dispatch",
		Short: "Run a single dispatch pass and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := open(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer s.Close()

			d, err := s.backend.Dispatcher(s.cfg)
			if err != nil {
				return err
			}
			res, err := d.RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			if res.Skipped {
				fmt.Fprintln(os.Stdout, "another dispatcher holds the lease, nothing done")
				return nil
			}
			fmt.Fprintf(os.Stdout, "sent=%d retried=%d failed=%d\n", res.Sent, res.Retried, res.Failed)
			return nil
		},
	}
}
