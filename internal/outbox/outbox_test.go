package outbox

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestBackoffDelay(t *testing.T) {
	b := Backoff{Base: time.Minute, Max: 10 * time.Minute}
	tests := []struct {
		retries int
		want    time.Duration
	}{
		{0, time.Minute},
		{1, 2 * time.Minute},
		{2, 4 * time.Minute},
		{3, 8 * time.Minute},
		{4, 10 * time.Minute},
		{60, 10 * time.Minute},
	}
	for _, tt := range tests {
		if got := b.Delay(tt.retries); got != tt.want {
			t.Errorf("Delay(%d) = %s, want %s", tt.retries, got, tt.want)
		}
	}
	if got := (Backoff{}).Delay(3); got != 0 {
		t.Errorf("zero backoff = %s", got)
	}
}

func TestRendererCoversEveryTemplate(t *testing.T) {
	r, err := NewRenderer()
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	data := map[string]any{
		"patient_name":    "Maria Silva",
		"date":            "05/06/2030",
		"time":            "10:00",
		"confirm_url":     "https://clinic.test/appointments/confirm/abc",
		"cancel_url":      "https://clinic.test/appointments/cancel/abc",
		"preferred_date":  "05/06/2030",
		"position":        2,
		"estimated_weeks": 1,
		"confidence":      "high",
		"slot_date":       "05/06/2030",
		"slot_time":       "10:00",
	}
	for name := range templateSources {
		for _, typ := range []MessageType{TypeEmail, TypeSMS} {
			out, err := r.Render(Message{ID: uuid.New(), MessageType: typ, Template: name, TemplateData: data})
			if err != nil {
				t.Fatalf("Render(%s, %s): %v", name, typ, err)
			}
			if out.Body == "" || out.Subject == "" {
				t.Fatalf("Render(%s, %s) produced empty text", name, typ)
			}
		}
	}
}

func TestRendererSubjectOverrideAndMissingKeys(t *testing.T) {
	r, err := NewRenderer()
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	subject := "Custom"
	out, err := r.Render(Message{
		MessageType:  TypeEmail,
		Template:     TemplateAppointmentConfirmation,
		Subject:      &subject,
		TemplateData: map[string]any{"patient_name": "Ana"},
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if out.Subject != "Custom" {
		t.Fatalf("Subject = %q", out.Subject)
	}
	if !strings.Contains(out.Body, "Hello Ana") {
		t.Fatalf("Body = %q", out.Body)
	}

	if _, err := r.Render(Message{MessageType: TypeEmail, Template: "nope"}); err == nil {
		t.Fatal("unknown template rendered")
	}
}

func TestSMSGatewayProvider(t *testing.T) {
	var got smsRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if got.To == "fail" {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte("upstream down"))
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	p := NewSMSGatewayProvider(srv.URL, "secret", "Clinic")
	msg := Rendered{Message: Message{ID: uuid.New(), Recipient: "(11) 98765-4321"}, Body: "hello"}
	if err := p.Send(context.Background(), msg); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if auth != "Bearer secret" || got.Text != "hello" || got.From != "Clinic" || got.Reference != msg.ID.String() {
		t.Fatalf("request = %+v auth=%q", got, auth)
	}

	msg.Recipient = "fail"
	err := p.Send(context.Background(), msg)
	if err == nil || !strings.Contains(err.Error(), "502") {
		t.Fatalf("expected gateway error, got %v", err)
	}
}

func TestEnqueueValidation(t *testing.T) {
	svc := NewService(nil, 3)
	ctx := context.Background()
	for _, req := range []EnqueueRequest{
		{MessageType: "fax", Recipient: "a@b.c", Template: TemplateWaitlistJoined},
		{MessageType: TypeEmail, Recipient: "  ", Template: TemplateWaitlistJoined},
		{MessageType: TypeEmail, Recipient: "a@b.c"},
	} {
		if _, err := svc.Enqueue(ctx, req); err == nil {
			t.Errorf("Enqueue(%+v) succeeded", req)
		}
	}
}
