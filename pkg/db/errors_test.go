package db

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsUniqueViolationPostgres(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "ux_webhook_events_type_ref"}

	if !IsUniqueViolation(pgErr, "") {
		t.Fatal("expected bare unique violation to match")
	}
	if !IsUniqueViolation(pgErr, "ux_webhook_events_type_ref") {
		t.Fatal("expected matching constraint name to match")
	}
	if IsUniqueViolation(pgErr, "ux_payments_booking_id") {
		t.Fatal("expected mismatched constraint name not to match")
	}

	otherErr := &pgconn.PgError{Code: "23503"}
	if IsUniqueViolation(otherErr, "") {
		t.Fatal("foreign key violation should not match")
	}
}

func TestIsUniqueViolationSqlite(t *testing.T) {
	err := errors.New("UNIQUE constraint failed: webhook_events.event_type, webhook_events.external_ref")
	if !IsUniqueViolation(err, "") {
		t.Fatal("expected sqlite unique message to match")
	}

	named := errors.New("constraint ux_payments_booking_id violated")
	if !IsUniqueViolation(named, "ux_payments_booking_id") {
		t.Fatal("expected named constraint in message to match")
	}
}

func TestIsUniqueViolationNilAndUnrelated(t *testing.T) {
	if IsUniqueViolation(nil, "") {
		t.Fatal("nil error should not match")
	}
	if IsUniqueViolation(errors.New("connection refused"), "") {
		t.Fatal("unrelated error should not match")
	}
}
