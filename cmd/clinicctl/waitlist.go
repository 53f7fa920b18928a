package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hackgods/clinic-scheduling/internal/calendar"
)

func newWaitlistCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "waitlist",
		Short: "Inspect the waitlist",
	}
	cmd.AddCommand(newWaitlistListCmd())
	return cmd
}

func newWaitlistListCmd() *cobra.Command {
	var (
		date  string
		limit int
	)
	c := &cobra.Command{
		Use:   "list",
		Short: "List active entries in queue order",
		RunE: func(cmd *cobra.Command, args []string) error {
			var day *calendar.Date
			if date != "" {
				d, err := calendar.ParseDate(date)
				if err != nil {
					return fmt.Errorf("invalid --date (want YYYY-MM-DD): %w", err)
				}
				day = &d
			}

			s, err := open(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer s.Close()

			entries, err := s.svcs.Waitlist.ListActive(cmd.Context(), day, limit)
			if err != nil {
				return err
			}

			tw := newTable()
			fmt.Fprintln(tw, "ID\tPREFERRED\tTIME\tTIME_FLEX\tDATE_FLEX\tPATIENT\tJOINED")
			for _, e := range entries {
				clock := "-"
				if e.PreferredTime != nil {
					clock = e.PreferredTime.String()
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					e.ID, e.PreferredDate, clock, e.TimeFlexibility, e.DateFlexibility, e.PatientName,
					e.CreatedAt.In(s.cfg.Location).Format("2006-01-02 15:04"))
			}
			return tw.Flush()
		},
	}
	c.Flags().StringVar(&date, "date", "", "only entries preferring this date YYYY-MM-DD")
	c.Flags().IntVar(&limit, "limit", 100, "maximum rows")
	return c
}
