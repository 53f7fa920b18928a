package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/hackgods/clinic-scheduling/internal/app"
	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/calendar"
	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/patient"
	"github.com/hackgods/clinic-scheduling/internal/waitlist"
)

var (
	timeFlex = []waitlist.TimeFlexibility{waitlist.TimeExact, waitlist.TimeMorning, waitlist.TimeAfternoon, waitlist.TimeAny}
	dateFlex = []waitlist.DateFlexibility{waitlist.DateExact, waitlist.DateSameWeek, waitlist.DateAny}

	visitNotes = []string{"", "first visit", "follow-up", "exam results", "prescription renewal", "annual checkup"}
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}
	if cfg.StoreBackend != config.BackendPostgres {
		log.Fatal("seeding only makes sense with STORE_BACKEND=postgres")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	backend, err := app.Open(ctx, cfg, app.OpenOptions{Migrate: true})
	if err != nil {
		log.Fatalf("backend error: %v", err)
	}
	defer backend.Close()

	svcs := backend.Services(cfg)
	faker := gofakeit.New(uint64(time.Now().UnixNano()))
	today := calendar.Today(time.Now(), cfg.Location)
	days := getInt("SEED_DAYS", 20)

	if err := seedAppointments(ctx, svcs.Appointments, faker, today, days, getInt("SEED_APPOINTMENTS", 300)); err != nil {
		log.Fatalf("seed appointments: %v", err)
	}
	if err := seedWaitlist(ctx, svcs.Waitlist, faker, today, days, getInt("SEED_WAITLIST", 60)); err != nil {
		log.Fatalf("seed waitlist: %v", err)
	}

	log.Println("seed complete")
}

func seedAppointments(ctx context.Context, svc *appointment.Service, faker *gofakeit.Faker, today calendar.Date, days, count int) error {
	log.Printf("seeding %d appointments over %d business days", count, days)

	booked, taken := 0, 0
	for i := 0; i < count; i++ {
		day := calendar.AddBusinessDays(today, faker.Number(1, days))
		slots := calendar.GenerateSlots(day)
		slot := slots[faker.Number(0, len(slots)-1)]

		_, err := svc.CreateAppointment(ctx, appointment.CreateRequest{
			Patient:    fakePatient(faker),
			Date:       slot.Date,
			Time:       slot.Time,
			Notes:      faker.RandomString(visitNotes),
			CreatedVia: appointment.ViaDirect,
		})
		switch {
		case err == nil:
			booked++
		case errors.Is(err, appointment.ErrSlotUnavailable):
			taken++
		default:
			return err
		}

		if (i+1)%100 == 0 {
			log.Printf("appointments attempted: %d/%d", i+1, count)
		}
	}

	log.Printf("appointments seeded: booked=%d slot_taken=%d", booked, taken)
	return nil
}

func seedWaitlist(ctx context.Context, svc *waitlist.Service, faker *gofakeit.Faker, today calendar.Date, days, count int) error {
	log.Printf("seeding %d waitlist entries", count)

	joined := 0
	for i := 0; i < count; i++ {
		req := waitlist.JoinRequest{
			Patient:         fakePatient(faker),
			PreferredDate:   calendar.AddBusinessDays(today, faker.Number(1, days)),
			TimeFlexibility: timeFlex[faker.Number(0, len(timeFlex)-1)],
			DateFlexibility: dateFlex[faker.Number(0, len(dateFlex)-1)],
		}
		if req.TimeFlexibility == waitlist.TimeExact {
			slots := calendar.GenerateSlots(req.PreferredDate)
			c := slots[faker.Number(0, len(slots)-1)].Time
			req.PreferredTime = &c
		}

		_, err := svc.Join(ctx, req)
		switch {
		case err == nil:
			joined++
		case errors.Is(err, waitlist.ErrAlreadyOnWaitlist):
		default:
			return err
		}
	}

	log.Printf("waitlist seeded: %d entries", joined)
	return nil
}

func fakePatient(faker *gofakeit.Faker) patient.Info {
	return patient.Info{
		Name:  faker.Name(),
		Email: faker.Email(),
		Phone: fmt.Sprintf("(%d) 9%04d-%04d", faker.Number(11, 99), faker.Number(0, 9999), faker.Number(0, 9999)),
	}
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
