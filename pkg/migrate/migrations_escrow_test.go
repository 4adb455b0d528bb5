package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestEscrowMigrationCarriesIdempotencyConstraints(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_escrow_core.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no escrow core migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TABLE bookings",
		"CREATE TABLE payments",
		"CONSTRAINT ux_payments_booking_id UNIQUE (booking_id)",
		"CONSTRAINT ux_payments_external_ref UNIQUE (external_ref)",
		"CONSTRAINT ux_payouts_payment_id UNIQUE (payment_id)",
		"CONSTRAINT ux_payouts_external_ref UNIQUE (external_ref)",
		"CONSTRAINT ux_job_proofs_booking_id UNIQUE (booking_id)",
		"CONSTRAINT ux_webhook_events_type_ref UNIQUE (event_type, external_ref)",
		"CHECK (total_amount_cents > 0)",
		"DROP TABLE bookings;",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}
