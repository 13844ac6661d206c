package analytics

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/dlnlabs/dln-indexer/internal/models"
)

func TestDateOnly(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"2024-03-01", "2024-03-01"},
		{"2024-03-01T15:04:05Z", "2024-03-01"},
		{"2024-03-01 15:04:05", "2024-03-01"},
		{"2024-03", "2024-03"},
	}
	for _, tt := range tests {
		if got := dateOnly(tt.in); got != tt.want {
			t.Errorf("dateOnly(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestOrderRow(t *testing.T) {
	usd := 42.5
	tag := models.PricingErrNoPrice
	o := models.Order{
		OrderID:       "abc",
		Signature:     "sig",
		BlockTime:     1700000000,
		USDValue:      &usd,
		PricingStatus: models.PricingOK,
		Kind:          models.KindOrderCreated,
	}

	row := orderRow(o)
	if len(row) != 7 {
		t.Fatalf("orderRow() returned %d columns, want 7", len(row))
	}
	ts, ok := row[2].(time.Time)
	if !ok {
		t.Fatalf("orderRow()[2] = %T, want time.Time", row[2])
	}
	if ts.Location() != time.UTC {
		t.Errorf("block time location = %v, want UTC", ts.Location())
	}
	if got := ts.Unix(); got != o.BlockTime {
		t.Errorf("block time = %d, want %d", got, o.BlockTime)
	}
	if got := row[3].(*float64); got == nil || *got != usd {
		t.Errorf("usd column = %v, want %v", got, usd)
	}
	if got := row[4].(string); got != "ok" {
		t.Errorf("status column = %q, want %q", got, "ok")
	}
	if row[5].(*string) != nil {
		t.Errorf("pricing error column = %v, want nil", row[5])
	}
	if got := row[6].(string); got != "created" {
		t.Errorf("event type column = %q, want %q", got, "created")
	}

	o.USDValue = nil
	o.PricingStatus = models.PricingError
	o.PricingError = &tag
	row = orderRow(o)
	if row[3].(*float64) != nil {
		t.Errorf("usd column = %v, want nil", row[3])
	}
	if got := row[5].(*string); got == nil || *got != tag {
		t.Errorf("pricing error column = %v, want %q", got, tag)
	}
}

func TestVolumeQuerySQL(t *testing.T) {
	t.Run("unbounded", func(t *testing.T) {
		query, args := volumeQuerySQL(models.VolumeQuery{EventType: models.KindOrderCreated})
		if strings.Contains(query, "toDate") {
			t.Errorf("unbounded query contains a date filter:\n%s", query)
		}
		if !strings.Contains(query, "GROUP BY date ORDER BY date") {
			t.Errorf("query missing aggregation clause:\n%s", query)
		}
		if len(args) != 1 || args[0].(string) != "created" {
			t.Errorf("args = %v, want [created]", args)
		}
	})

	t.Run("from only", func(t *testing.T) {
		query, args := volumeQuerySQL(models.VolumeQuery{
			EventType: models.KindOrderFulfilled,
			From:      "2024-03-01",
		})
		if !strings.Contains(query, "date >= toDate(?)") {
			t.Errorf("query missing lower bound:\n%s", query)
		}
		if strings.Contains(query, "date <= toDate(?)") {
			t.Errorf("query has unexpected upper bound:\n%s", query)
		}
		want := []string{"fulfilled", "2024-03-01"}
		if len(args) != len(want) {
			t.Fatalf("args = %v, want %v", args, want)
		}
		for i := range want {
			if args[i].(string) != want[i] {
				t.Errorf("args[%d] = %v, want %q", i, args[i], want[i])
			}
		}
	})

	t.Run("both bounds truncate timestamps", func(t *testing.T) {
		query, args := volumeQuerySQL(models.VolumeQuery{
			EventType: models.KindOrderCreated,
			From:      "2024-03-01T00:00:00Z",
			To:        "2024-03-31T23:59:59Z",
		})
		if !strings.Contains(query, "date >= toDate(?)") || !strings.Contains(query, "date <= toDate(?)") {
			t.Errorf("query missing a bound:\n%s", query)
		}
		if len(args) != 3 {
			t.Fatalf("args = %v, want 3 entries", args)
		}
		if args[1].(string) != "2024-03-01" || args[2].(string) != "2024-03-31" {
			t.Errorf("date args = %v, %v, want truncated dates", args[1], args[2])
		}
	})
}

func TestMigrationFiles(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("found %d migration files, want 2", len(entries))
	}

	for _, entry := range entries {
		var version uint32
		if _, err := fmt.Sscanf(entry.Name(), "%d", &version); err != nil {
			t.Errorf("migration %q has no numeric version prefix", entry.Name())
		}
		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			t.Fatalf("ReadFile(%s) error = %v", entry.Name(), err)
		}
		if !strings.Contains(string(content), "IF NOT EXISTS") {
			t.Errorf("migration %s is not idempotent", entry.Name())
		}
	}

	orders, err := migrationsFS.ReadFile("migrations/001_orders.sql")
	if err != nil {
		t.Fatalf("ReadFile(001_orders.sql) error = %v", err)
	}
	if !strings.Contains(string(orders), "ORDER BY (order_id, event_type)") {
		t.Errorf("orders table missing replacing key:\n%s", orders)
	}

	mv, err := migrationsFS.ReadFile("migrations/002_daily_volumes.sql")
	if err != nil {
		t.Fatalf("ReadFile(002_daily_volumes.sql) error = %v", err)
	}
	if !strings.Contains(string(mv), "MATERIALIZED VIEW") || !strings.Contains(string(mv), "SummingMergeTree") {
		t.Errorf("daily volume view misses rollup engine:\n%s", mv)
	}
}
