package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/calendar"
)

func newSlotsCmd() *cobra.Command {
	var start, end string
	c := &cobra.Command{
		Use:   "slots",
		Short: "Print free slots between two dates",
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := calendar.ParseDate(start)
			if err != nil {
				return fmt.Errorf("invalid --start (want YYYY-MM-DD): %w", err)
			}
			to := from
			if end != "" {
				if to, err = calendar.ParseDate(end); err != nil {
					return fmt.Errorf("invalid --end (want YYYY-MM-DD): %w", err)
				}
			}

			s, err := open(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer s.Close()

			byDay, err := s.svcs.Appointments.Availability().ListAvailable(cmd.Context(), from, to)
			if err != nil {
				return err
			}
			for d := from; !d.After(to); d = d.AddDays(1) {
				slots, ok := byDay[d]
				if !ok {
					continue
				}
				times := make([]string, 0, len(slots))
				for _, sl := range slots {
					times = append(times, sl.Time.String())
				}
				fmt.Fprintf(os.Stdout, "%s %-9s %2d free  %s\n", d, d.Weekday(), len(times), strings.Join(times, " "))
			}
			return nil
		},
	}
	c.Flags().StringVar(&start, "start", "", "first date YYYY-MM-DD")
	c.Flags().StringVar(&end, "end", "", "last date YYYY-MM-DD (defaults to --start)")
	_ = c.MarkFlagRequired("start")
	return c
}

func newAppointmentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "appointments",
		Aliases: []string{"appt"},
		Short:   "Inspect and update appointments",
	}
	cmd.AddCommand(newAppointmentsListCmd())
	cmd.AddCommand(newAppointmentsTransitionCmd())
	return cmd
}

func newAppointmentsListCmd() *cobra.Command {
	var (
		date   string
		status string
		limit  int
	)
	c := &cobra.Command{
		Use:   "list",
		Short: "List appointments by date and status",
		RunE: func(cmd *cobra.Command, args []string) error {
			f := appointment.ListFilter{Status: appointment.AppointmentStatus(status), Limit: limit}
			if date != "" {
				d, err := calendar.ParseDate(date)
				if err != nil {
					return fmt.Errorf("invalid --date (want YYYY-MM-DD): %w", err)
				}
				f.Date = &d
			}

			s, err := open(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer s.Close()

			appts, err := s.svcs.Appointments.ListAppointments(cmd.Context(), f)
			if err != nil {
				return err
			}

			tw := newTable()
			fmt.Fprintln(tw, "ID\tDATE\tTIME\tSTATUS\tPATIENT\tEMAIL\tVIA\tLATE")
			for _, a := range appts {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%t\n",
					a.ID, a.Date, a.Time, a.Status, a.PatientName, a.PatientEmail, a.CreatedVia, a.LateCancellation)
			}
			return tw.Flush()
		},
	}
	c.Flags().StringVar(&date, "date", "", "only this date YYYY-MM-DD")
	c.Flags().StringVar(&status, "status", "", "pending, confirmed, cancelled or completed")
	c.Flags().IntVar(&limit, "limit", 100, "maximum rows")
	return c
}

func newAppointmentsTransitionCmd() *cobra.Command {
	var reason string
	c := &cobra.Command{
		Use:   "transition <id> <status>",
		Short: "Move an appointment to a new status (confirmed, completed, cancelled)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid appointment id: %w", err)
			}

			s, err := open(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer s.Close()

			a, err := s.svcs.Appointments.TransitionAppointment(cmd.Context(), id, appointment.AppointmentStatus(args[1]), reason)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "appointment id=%s status=%s slot=%s\n", a.ID, a.Status, a.Slot())
			return nil
		},
	}
	c.Flags().StringVar(&reason, "reason", "", "reason recorded with a cancellation")
	return c
}
