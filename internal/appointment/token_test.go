package appointment

import (
	"regexp"
	"testing"
)

func TestConfirmationTokensAreUniqueHex(t *testing.T) {
	shape := regexp.MustCompile(`^[0-9a-f]{64}$`)
	seen := make(map[string]struct{}, 10000)

	for i := 0; i < 10000; i++ {
		tok, err := NewConfirmationToken()
		if err != nil {
			t.Fatalf("NewConfirmationToken: %v", err)
		}
		if !shape.MatchString(tok) {
			t.Fatalf("token %q is not 64 lowercase hex characters", tok)
		}
		if _, dup := seen[tok]; dup {
			t.Fatalf("duplicate token after %d draws", i)
		}
		seen[tok] = struct{}{}
	}
}

func TestValidToken(t *testing.T) {
	tok, _ := NewConfirmationToken()
	tests := []struct {
		in   string
		want bool
	}{
		{tok, true},
		{"", false},
		{tok[:63], false},
		{"G" + tok[1:], false},
		{"A" + tok[1:], false},
	}
	for _, tt := range tests {
		if got := ValidToken(tt.in); got != tt.want {
			t.Errorf("ValidToken(%q) = %t, want %t", tt.in, got, tt.want)
		}
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to AppointmentStatus
		want     bool
	}{
		{StatusPending, StatusConfirmed, true},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusCompleted, false},
		{StatusPending, StatusNoShow, false},
		{StatusConfirmed, StatusCompleted, true},
		{StatusConfirmed, StatusNoShow, true},
		{StatusConfirmed, StatusCancelled, true},
		{StatusConfirmed, StatusPending, false},
		{StatusCancelled, StatusPending, false},
		{StatusCompleted, StatusCancelled, false},
		{StatusNoShow, StatusConfirmed, false},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %t, want %t", tt.from, tt.to, got, tt.want)
		}
	}
	for _, s := range []AppointmentStatus{StatusCancelled, StatusCompleted, StatusNoShow} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
}

func TestOwnedBy(t *testing.T) {
	session := "sess-1"
	a := &Appointment{SessionID: &session, ConfirmationToken: "abc"}

	if !a.OwnedBy(Owner{SessionID: "sess-1"}) {
		t.Error("session owner rejected")
	}
	if !a.OwnedBy(Owner{Token: "abc"}) {
		t.Error("token holder rejected")
	}
	if a.OwnedBy(Owner{SessionID: "sess-2"}) {
		t.Error("foreign session accepted")
	}
	if a.OwnedBy(Owner{}) {
		t.Error("anonymous caller accepted")
	}
}
