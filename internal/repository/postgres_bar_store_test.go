package repository

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/yybrother989/tesla-trading-agent-sub000/internal/domain/models"
)

func TestTableForMapping(t *testing.T) {
	cases := map[models.Granularity]string{
		models.Granularity1m:  "bars_1m",
		models.Granularity15m: "bars_15m",
		models.Granularity60m: "bars_60m",
		models.Granularity1d:  "bars_1d",
	}
	for g, want := range cases {
		got, err := tableFor(g)
		if err != nil {
			t.Fatalf("tableFor(%s): %v", g, err)
		}
		if got != want {
			t.Fatalf("tableFor(%s) = %s, want %s", g, got, want)
		}
	}
	if _, err := tableFor("5m"); !errors.Is(err, models.ErrInvalidGranularity) {
		t.Fatalf("expected ErrInvalidGranularity, got %v", err)
	}
}

func TestWritableTableForRejectsDerived(t *testing.T) {
	for _, g := range []models.Granularity{models.Granularity15m, models.Granularity60m} {
		if _, err := writableTableFor(g); !errors.Is(err, models.ErrUnsupportedTier) {
			t.Fatalf("writableTableFor(%s): expected ErrUnsupportedTier, got %v", g, err)
		}
	}
	for _, g := range []models.Granularity{models.Granularity1m, models.Granularity1d} {
		if _, err := writableTableFor(g); err != nil {
			t.Fatalf("writableTableFor(%s): %v", g, err)
		}
	}
}

func TestUpsertQueryGuard(t *testing.T) {
	q := upsertQuery("bars_1m", 1)
	if !strings.Contains(q, "ON CONFLICT (symbol, ts) DO UPDATE") {
		t.Fatalf("missing conflict clause: %s", q)
	}
	if !strings.Contains(q, "excluded.revision > bars_1m.revision") {
		t.Fatalf("missing revision guard: %s", q)
	}
}

func TestUpsertQueryPlaceholders(t *testing.T) {
	q := upsertQuery("bars_1d", 3)
	if !strings.Contains(q, "($1, $2, $3, $4, $5, $6, $7, $8, $9)") {
		t.Fatalf("first row placeholders wrong: %s", q)
	}
	if !strings.Contains(q, "($19, $20, $21, $22, $23, $24, $25, $26, $27)") {
		t.Fatalf("third row placeholders wrong: %s", q)
	}
}

func TestReadQueryBounds(t *testing.T) {
	from := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)

	q, args := readQuery("bars_1m", "TSLA", from, to, 100)
	if !strings.Contains(q, "ts >= $2") || !strings.Contains(q, "ts <= $3") {
		t.Fatalf("range filters missing: %s", q)
	}
	if !strings.Contains(q, "ORDER BY ts DESC LIMIT $4") {
		t.Fatalf("expected most-recent-first limit: %s", q)
	}
	if len(args) != 4 {
		t.Fatalf("expected 4 args, got %d", len(args))
	}

	q, args = readQuery("bars_1d", "TSLA", time.Time{}, time.Time{}, 10)
	if strings.Contains(q, ">=") || strings.Contains(q, "<=") {
		t.Fatalf("open range should not add bounds: %s", q)
	}
	if len(args) != 2 {
		t.Fatalf("expected 2 args, got %d", len(args))
	}
}
