package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/apperr"
	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/memstore"
	"github.com/hackgods/clinic-scheduling/internal/outbox"
	"github.com/hackgods/clinic-scheduling/internal/waitlist"
)

// Monday 2030-06-03 09:00 UTC.
var testNow = time.Date(2030, time.June, 3, 9, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	clock := func() time.Time { return testNow }
	cfg := config.Config{Location: time.UTC, ModificationWindow: 24 * time.Hour, PublicBaseURL: "https://clinic.test"}

	notifier := outbox.NewService(memstore.NewOutbox(), 3).WithClock(clock)
	wl := waitlist.NewService(memstore.NewWaitlist(), notifier, time.UTC, 3).WithClock(clock)
	appts := appointment.NewService(memstore.NewAppointments(), nil, notifier, cfg,
		appointment.WithClock(clock), appointment.WithWaitlistHooks(wl))

	srv := httptest.NewServer(NewRouter(RouterConfig{Appointments: appts, Waitlist: wl}))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path, session string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	if session != "" {
		req.Header.Set(SessionHeader, session)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var out map[string]any
	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		t.Fatalf("decode %s %s: %v", method, path, err)
	}
	_ = json.Unmarshal(raw, &out)
	return resp, out
}

func expectProblem(t *testing.T, resp *http.Response, body map[string]any, status int, code string) {
	t.Helper()
	if resp.StatusCode != status || body["code"] != code {
		t.Fatalf("got %d %v, want %d %s", resp.StatusCode, body, status, code)
	}
	if _, ok := body["userMessage"].(string); !ok {
		t.Fatalf("problem without userMessage: %v", body)
	}
	if _, ok := body["retryable"].(bool); !ok {
		t.Fatalf("problem without retryable: %v", body)
	}
}

func booking(date, clock string) CreateAppointmentRequest {
	return CreateAppointmentRequest{
		Name:  "Maria Silva",
		Email: "maria@example.com",
		Phone: "(11) 98765-4321",
		Date:  date,
		Time:  clock,
	}
}

func TestAppointmentLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t)

	resp, created := do(t, srv, http.MethodPost, "/appointments", "sess-1", booking("2030-06-05", "10:00"))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: %d %v", resp.StatusCode, created)
	}
	id, _ := created["id"].(string)
	token, _ := created["confirmation_token"].(string)
	if id == "" || len(token) != 64 || created["status"] != "pending" {
		t.Fatalf("created = %v", created)
	}

	resp, body := do(t, srv, http.MethodPost, "/appointments", "sess-2", booking("2030-06-05", "10:00"))
	expectProblem(t, resp, body, http.StatusConflict, apperr.CodeSlotUnavailable)
	details, _ := body["details"].(map[string]any)
	if alts, _ := details["alternatives"].([]any); len(alts) == 0 {
		t.Fatalf("conflict without alternatives: %v", body)
	}

	resp, body = do(t, srv, http.MethodGet, "/appointments/"+id, "sess-2", nil)
	expectProblem(t, resp, body, http.StatusNotFound, apperr.CodeAppointmentNotFound)

	resp, body = do(t, srv, http.MethodGet, "/appointments/"+id, "sess-1", nil)
	if resp.StatusCode != http.StatusOK || body["confirmation_token"] != nil {
		t.Fatalf("get: %d %v", resp.StatusCode, body)
	}

	resp, body = do(t, srv, http.MethodGet, "/appointments/confirm/"+token, "", nil)
	if resp.StatusCode != http.StatusOK || body["status"] != "confirmed" {
		t.Fatalf("confirm: %d %v", resp.StatusCode, body)
	}

	newDate := "2030-06-06"
	resp, body = do(t, srv, http.MethodPatch, "/appointments/"+id, "sess-1", ModifyAppointmentRequest{Date: &newDate, Reason: "travel"})
	if resp.StatusCode != http.StatusOK || body["date"] != newDate || body["time"] != "10:00" {
		t.Fatalf("modify: %d %v", resp.StatusCode, body)
	}

	resp, body = do(t, srv, http.MethodPost, "/appointments/"+id+"/cancel", "", CancelAppointmentRequest{Token: token, RequestReschedule: true})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("cancel: %d %v", resp.StatusCode, body)
	}
	appt, _ := body["appointment"].(map[string]any)
	if appt["status"] != "cancelled" || appt["late_cancellation"] != false {
		t.Fatalf("cancelled = %v", appt)
	}
	if alts, _ := body["alternatives"].([]any); len(alts) == 0 {
		t.Fatal("no reschedule alternatives")
	}

	resp, body = do(t, srv, http.MethodPost, "/appointments/cancel/"+token, "", nil)
	expectProblem(t, resp, body, http.StatusConflict, apperr.CodeAlreadyCancelled)
}

func TestCreateAppointmentValidation(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name string
		req  CreateAppointmentRequest
		code string
	}{
		{"missing date", booking("", "10:00"), apperr.CodeValidation},
		{"bad time format", booking("2030-06-05", "10h"), apperr.CodeValidation},
		{"weekend", booking("2030-06-08", "10:00"), apperr.CodeInvalidDateTime},
		{"off grid", booking("2030-06-05", "10:20"), apperr.CodeInvalidDateTime},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := do(t, srv, http.MethodPost, "/appointments", "", tt.req)
			expectProblem(t, resp, body, http.StatusBadRequest, tt.code)
		})
	}
}

func TestAvailabilityEndpoints(t *testing.T) {
	srv := newTestServer(t)
	do(t, srv, http.MethodPost, "/appointments", "", booking("2030-06-05", "10:00"))

	resp, body := do(t, srv, http.MethodGet, "/availability?start=2030-06-05&end=2030-06-09", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list: %d %v", resp.StatusCode, body)
	}
	days, _ := body["days"].([]any)
	if len(days) != 3 {
		t.Fatalf("days = %v", days)
	}
	first, _ := days[0].(map[string]any)
	if slots, _ := first["slots"].([]any); first["date"] != "2030-06-05" || len(slots) != 19 {
		t.Fatalf("first day = %v", first)
	}

	resp, body = do(t, srv, http.MethodGet, "/availability/2030-06-05/10:00", "", nil)
	if resp.StatusCode != http.StatusOK || body["available"] != false {
		t.Fatalf("slot check: %d %v", resp.StatusCode, body)
	}
	if alts, _ := body["alternatives"].([]any); len(alts) == 0 {
		t.Fatal("taken slot without alternatives")
	}

	resp, body = do(t, srv, http.MethodGet, "/availability?start=2030-06-01&end=2030-09-01", "", nil)
	expectProblem(t, resp, body, http.StatusBadRequest, apperr.CodeInvalidDateTime)

	resp, body = do(t, srv, http.MethodGet, "/business-hours", "", nil)
	if resp.StatusCode != http.StatusOK || body["open"] != "08:00" || body["close"] != "18:00" {
		t.Fatalf("business hours: %d %v", resp.StatusCode, body)
	}
}

func TestWaitlistOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	join := JoinWaitlistRequest{
		Name:          "Ana Souza",
		Email:         "ana@example.com",
		Phone:         "+55 21 3456-7890",
		PreferredDate: "2030-06-05",
	}

	resp, body := do(t, srv, http.MethodPost, "/waitlist", "sess-1", join)
	if resp.StatusCode != http.StatusCreated || body["position"] != float64(1) {
		t.Fatalf("join: %d %v", resp.StatusCode, body)
	}
	id, _ := body["id"].(string)

	resp, body = do(t, srv, http.MethodPost, "/waitlist", "sess-1", join)
	expectProblem(t, resp, body, http.StatusConflict, apperr.CodeAlreadyOnWaitlist)

	resp, body = do(t, srv, http.MethodGet, "/waitlist/"+id+"/position", "", nil)
	if resp.StatusCode != http.StatusOK || body["position"] != float64(1) {
		t.Fatalf("position: %d %v", resp.StatusCode, body)
	}

	resp, body = do(t, srv, http.MethodPatch, "/waitlist/"+id, "sess-1", map[string]any{"status": "fulfilled"})
	expectProblem(t, resp, body, http.StatusBadRequest, apperr.CodeNoValidUpdates)

	resp, body = do(t, srv, http.MethodPatch, "/waitlist/"+id, "sess-1", map[string]any{"time_flexibility": "morning"})
	if resp.StatusCode != http.StatusOK || body["time_flexibility"] != "morning" {
		t.Fatalf("update: %d %v", resp.StatusCode, body)
	}

	resp, body = do(t, srv, http.MethodGet, "/waitlist/"+id, "sess-2", nil)
	expectProblem(t, resp, body, http.StatusNotFound, apperr.CodeWaitlistEntryNotFound)

	resp, body = do(t, srv, http.MethodDelete, "/waitlist/"+id, "sess-1", LeaveWaitlistRequest{Reason: "booked elsewhere"})
	if resp.StatusCode != http.StatusOK || body["status"] != "cancelled" {
		t.Fatalf("leave: %d %v", resp.StatusCode, body)
	}

	resp, body = do(t, srv, http.MethodDelete, "/waitlist/"+id, "sess-1", nil)
	expectProblem(t, resp, body, http.StatusNotFound, apperr.CodeWaitlistEntryNotFound)

	resp, body = do(t, srv, http.MethodGet, "/waitlist/"+id+"/position", "", nil)
	if resp.StatusCode != http.StatusOK || body["position"] != nil {
		t.Fatalf("position after leave: %d %v", resp.StatusCode, body)
	}
}

func TestReadiness(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	tests := []struct {
		name   string
		deps   []Dependency
		status int
		want   string
	}{
		{"all up", []Dependency{{Name: "postgres", Critical: true, Ping: ok}, {Name: "redis", Ping: ok}}, http.StatusOK, "ok"},
		{"optional down", []Dependency{{Name: "postgres", Critical: true, Ping: ok}, {Name: "redis", Ping: down}}, http.StatusOK, "degraded"},
		{"critical down", []Dependency{{Name: "postgres", Critical: true, Ping: down}, {Name: "redis", Ping: ok}}, http.StatusServiceUnavailable, "error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			NewHealthHandler("test", "v0", tt.deps...).Readiness(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

			var body ReadinessResponse
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if rec.Code != tt.status || body.Status != tt.want {
				t.Fatalf("got %d %s, want %d %s", rec.Code, body.Status, tt.status, tt.want)
			}
		})
	}
}
