package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsUniqueViolation(t *testing.T) {
	slotErr := &pgconn.PgError{Code: "23505", ConstraintName: "ux_appointments_active_slot"}
	wrapped := fmt.Errorf("insert appointment: %w", slotErr)

	if !IsUniqueViolation(wrapped, "ux_appointments_active_slot") {
		t.Fatal("expected wrapped slot violation to match")
	}
	if !IsUniqueViolation(slotErr, "") {
		t.Fatal("expected any-constraint match")
	}
	if IsUniqueViolation(slotErr, "ux_appointments_confirmation_token") {
		t.Fatal("constraint name must be compared")
	}
	if IsUniqueViolation(&pgconn.PgError{Code: "23503"}, "") {
		t.Fatal("foreign key violation is not a unique violation")
	}
	if IsUniqueViolation(errors.New("boom"), "") {
		t.Fatal("plain error is not a unique violation")
	}
}

func TestMigrationsEmbedded(t *testing.T) {
	files, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		t.Fatalf("read embedded migrations: %v", err)
	}
	if len(files) < 3 {
		t.Fatalf("expected at least 3 migrations, got %d", len(files))
	}
}
