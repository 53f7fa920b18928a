package waitlist_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/calendar"
	"github.com/hackgods/clinic-scheduling/internal/memstore"
	"github.com/hackgods/clinic-scheduling/internal/outbox"
	"github.com/hackgods/clinic-scheduling/internal/patient"
	"github.com/hackgods/clinic-scheduling/internal/waitlist"
)

var (
	testNow   = time.Date(2030, time.June, 3, 9, 0, 0, 0, time.UTC) // Monday
	wednesday = calendar.NewDate(2030, time.June, 5)
	thursday  = calendar.NewDate(2030, time.June, 6)
)

type fixture struct {
	svc    *waitlist.Service
	repo   *memstore.Waitlist
	outbox *memstore.Outbox
}

func newFixture(t *testing.T, notifyBatch int) *fixture {
	t.Helper()
	f := &fixture{repo: memstore.NewWaitlist(), outbox: memstore.NewOutbox()}
	f.svc = waitlist.NewService(f.repo, outbox.NewService(f.outbox, 3), time.UTC, notifyBatch).
		WithClock(func() time.Time { return testNow })
	return f
}

func person(n int) patient.Info {
	return patient.Info{
		Name:  gofakeit.Name(),
		Email: fmt.Sprintf("patient%d@example.com", n),
		Phone: "(11) 98765-4321",
	}
}

func (f *fixture) join(t *testing.T, n int, req waitlist.JoinRequest) *waitlist.JoinResult {
	t.Helper()
	req.Patient = person(n)
	if req.SessionID == "" {
		req.SessionID = fmt.Sprintf("sess-%d", n)
	}
	if req.PreferredDate.IsZero() {
		req.PreferredDate = wednesday
	}
	res, err := f.svc.Join(context.Background(), req)
	if err != nil {
		t.Fatalf("Join(%d): %v", n, err)
	}
	return res
}

func TestJoinAssignsGlobalFIFOPositions(t *testing.T) {
	f := newFixture(t, 3)

	first := f.join(t, 1, waitlist.JoinRequest{})
	second := f.join(t, 2, waitlist.JoinRequest{})
	third := f.join(t, 3, waitlist.JoinRequest{})
	other := f.join(t, 4, waitlist.JoinRequest{PreferredDate: thursday})

	for i, res := range []*waitlist.JoinResult{first, second, third, other} {
		if res.Position != i+1 {
			t.Fatalf("join %d position = %d", i+1, res.Position)
		}
	}
	if first.Entry.Status != waitlist.StatusActive || first.Entry.TimeFlexibility != waitlist.TimeAny {
		t.Fatalf("defaults not applied: %+v", first.Entry)
	}
	if first.EstimatedWait.Weeks != 1 || first.EstimatedWait.Confidence != waitlist.ConfidenceHigh {
		t.Fatalf("estimate = %+v", first.EstimatedWait)
	}
}

func TestJoinEnqueuesEmailAndSMS(t *testing.T) {
	f := newFixture(t, 3)
	res := f.join(t, 1, waitlist.JoinRequest{})

	msgs, err := f.outbox.List(context.Background(), outbox.ListFilter{Reference: outbox.WaitlistRef(res.Entry.ID)})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	types := map[outbox.MessageType]string{}
	for _, m := range msgs {
		if m.Template != outbox.TemplateWaitlistJoined {
			t.Fatalf("template = %s", m.Template)
		}
		types[m.MessageType] = m.Recipient
	}
	if types[outbox.TypeEmail] != res.Entry.PatientEmail || types[outbox.TypeSMS] != res.Entry.PatientPhone {
		t.Fatalf("recipients = %v", types)
	}
}

func TestJoinRejectsDuplicateActiveEntry(t *testing.T) {
	f := newFixture(t, 3)
	f.join(t, 1, waitlist.JoinRequest{})

	req := waitlist.JoinRequest{Patient: person(1), PreferredDate: wednesday}
	req.Patient.Email = strings.ToUpper(req.Patient.Email)
	if _, err := f.svc.Join(context.Background(), req); !errors.Is(err, waitlist.ErrAlreadyOnWaitlist) {
		t.Fatalf("err = %v", err)
	}

	req.PreferredDate = thursday
	if _, err := f.svc.Join(context.Background(), req); err != nil {
		t.Fatalf("other date: %v", err)
	}
}

func TestJoinValidatesPreferences(t *testing.T) {
	f := newFixture(t, 3)
	offGrid := calendar.Clock{Hour: 10, Minute: 10}

	tests := []struct {
		name string
		req  waitlist.JoinRequest
		want error
	}{
		{"saturday", waitlist.JoinRequest{PreferredDate: calendar.NewDate(2030, time.June, 8)}, calendar.ErrInvalidDateTime},
		{"past", waitlist.JoinRequest{PreferredDate: calendar.NewDate(2030, time.May, 31)}, calendar.ErrInvalidDateTime},
		{"off grid", waitlist.JoinRequest{PreferredDate: wednesday, PreferredTime: &offGrid}, calendar.ErrInvalidDateTime},
		{"bad flexibility", waitlist.JoinRequest{PreferredDate: wednesday, TimeFlexibility: "evening"}, patient.ErrValidation},
		{"long notes", waitlist.JoinRequest{PreferredDate: wednesday, Notes: strings.Repeat("x", 1001)}, patient.ErrValidation},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.req.Patient = person(100 + i)
			if _, err := f.svc.Join(context.Background(), tt.req); !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestPositionCountsEarlierEntriesForAnyDate(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()
	thursdayEntry := f.join(t, 1, waitlist.JoinRequest{PreferredDate: thursday})
	wednesdayEntry := f.join(t, 2, waitlist.JoinRequest{PreferredDate: wednesday})

	if wednesdayEntry.Position != 2 {
		t.Fatalf("join position = %d, want 2", wednesdayEntry.Position)
	}
	pos, err := f.svc.Position(ctx, wednesdayEntry.Entry.ID)
	if err != nil || pos == nil || *pos != 2 {
		t.Fatalf("position = %v, %v", pos, err)
	}

	if _, err := f.svc.Leave(ctx, thursdayEntry.Entry.ID, "sess-1", ""); err != nil {
		t.Fatalf("Leave: %v", err)
	}
	pos, err = f.svc.Position(ctx, wednesdayEntry.Entry.ID)
	if err != nil || pos == nil || *pos != 1 {
		t.Fatalf("position after leave = %v, %v", pos, err)
	}
}

func TestLeaveRecomputesPositions(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()
	first := f.join(t, 1, waitlist.JoinRequest{})
	second := f.join(t, 2, waitlist.JoinRequest{})

	if _, err := f.svc.Leave(ctx, first.Entry.ID, "sess-2", ""); !errors.Is(err, waitlist.ErrEntryNotFound) {
		t.Fatalf("foreign session err = %v", err)
	}

	left, err := f.svc.Leave(ctx, first.Entry.ID, "sess-1", "found another clinic")
	if err != nil {
		t.Fatalf("Leave: %v", err)
	}
	if left.Status != waitlist.StatusCancelled || left.CancelledAt == nil {
		t.Fatalf("entry = %+v", left)
	}

	pos, err := f.svc.Position(ctx, second.Entry.ID)
	if err != nil || pos == nil || *pos != 1 {
		t.Fatalf("position after leave = %v, %v", pos, err)
	}
	pos, err = f.svc.Position(ctx, first.Entry.ID)
	if err != nil || pos != nil {
		t.Fatalf("position of cancelled entry = %v, %v", pos, err)
	}

	if _, err := f.svc.Leave(ctx, first.Entry.ID, "sess-1", ""); !errors.Is(err, waitlist.ErrEntryNotFound) {
		t.Fatalf("second leave err = %v", err)
	}
	if _, err := f.svc.Position(ctx, uuid.New()); !errors.Is(err, waitlist.ErrEntryNotFound) {
		t.Fatalf("unknown id err = %v", err)
	}
}

func TestUpdate(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()
	res := f.join(t, 1, waitlist.JoinRequest{})
	f.join(t, 1, waitlist.JoinRequest{PreferredDate: thursday, SessionID: "sess-1"})

	if _, err := f.svc.Update(ctx, res.Entry.ID, "sess-1", waitlist.Partial{}); !errors.Is(err, waitlist.ErrNoValidUpdates) {
		t.Fatalf("empty update err = %v", err)
	}

	notes := "mornings are better"
	morning := waitlist.TimeMorning
	updated, err := f.svc.Update(ctx, res.Entry.ID, "sess-1", waitlist.Partial{Notes: &notes, TimeFlexibility: &morning})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Notes == nil || *updated.Notes != notes || updated.TimeFlexibility != waitlist.TimeMorning {
		t.Fatalf("updated = %+v", updated)
	}

	if _, err := f.svc.Update(ctx, res.Entry.ID, "sess-9", waitlist.Partial{Notes: &notes}); !errors.Is(err, waitlist.ErrEntryNotFound) {
		t.Fatalf("foreign session err = %v", err)
	}

	clash := thursday
	if _, err := f.svc.Update(ctx, res.Entry.ID, "sess-1", waitlist.Partial{PreferredDate: &clash}); !errors.Is(err, waitlist.ErrAlreadyOnWaitlist) {
		t.Fatalf("date clash err = %v", err)
	}
}

func TestSlotOpenedNotifiesMatchesInOrder(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()
	ten := calendar.Clock{Hour: 10}

	exact := f.join(t, 1, waitlist.JoinRequest{PreferredTime: &ten, TimeFlexibility: waitlist.TimeExact})
	afternoon := f.join(t, 2, waitlist.JoinRequest{TimeFlexibility: waitlist.TimeAfternoon})
	morning := f.join(t, 3, waitlist.JoinRequest{TimeFlexibility: waitlist.TimeMorning})
	sameWeek := f.join(t, 4, waitlist.JoinRequest{PreferredDate: thursday, DateFlexibility: waitlist.DateSameWeek})
	late := f.join(t, 5, waitlist.JoinRequest{PreferredDate: thursday, DateFlexibility: waitlist.DateAny})

	f.svc.SlotOpened(ctx, calendar.Slot{Date: wednesday, Time: ten})

	offers, err := f.outbox.List(ctx, outbox.ListFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	notified := map[string]bool{}
	for _, m := range offers {
		if m.Template == outbox.TemplateWaitlistSlotAvailable {
			notified[m.Reference] = true
		}
	}
	for _, want := range []*waitlist.JoinResult{exact, morning, sameWeek} {
		if !notified[outbox.WaitlistRef(want.Entry.ID)] {
			t.Fatalf("entry %s not notified", want.Entry.PatientEmail)
		}
	}
	if notified[outbox.WaitlistRef(afternoon.Entry.ID)] {
		t.Fatal("afternoon entry notified for a morning slot")
	}
	if notified[outbox.WaitlistRef(late.Entry.ID)] {
		t.Fatal("notification batch exceeded")
	}
}

func TestBookedFulfilsEntry(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()
	res := f.join(t, 1, waitlist.JoinRequest{})

	f.svc.Booked(ctx, strings.ToUpper(res.Entry.PatientEmail), wednesday)

	got, err := f.svc.Get(ctx, res.Entry.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Entry.Status != waitlist.StatusFulfilled || got.Position != 0 {
		t.Fatalf("entry after booking = %+v position %d", got.Entry, got.Position)
	}

	active, err := f.svc.ListActive(ctx, nil, 0)
	if err != nil || len(active) != 0 {
		t.Fatalf("active entries = %d, %v", len(active), err)
	}
}
