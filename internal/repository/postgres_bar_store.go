package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/yybrother989/tesla-trading-agent-sub000/internal/domain/models"
	domrepo "github.com/yybrother989/tesla-trading-agent-sub000/internal/domain/repository"
	applogger "github.com/yybrother989/tesla-trading-agent-sub000/pkg/logger"
	pkgpg "github.com/yybrother989/tesla-trading-agent-sub000/pkg/postgres"
)

// Writable tables carry a revision column and an upsert conflict key on
// (symbol, ts). The 15m/60m views aggregate bars_1m and are refreshed by a
// scheduler outside this service; the unique indexes exist so that refresh
// can run CONCURRENTLY.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS bars_1m (
		symbol      text        NOT NULL,
		ts          timestamptz NOT NULL,
		open        double precision NOT NULL,
		high        double precision NOT NULL,
		low         double precision NOT NULL,
		close       double precision NOT NULL,
		volume      bigint      NOT NULL DEFAULT 0,
		adjusted    boolean     NOT NULL DEFAULT false,
		revision    bigint      NOT NULL DEFAULT 1,
		inserted_at timestamptz NOT NULL DEFAULT now(),
		PRIMARY KEY (symbol, ts)
	)`,
	`CREATE TABLE IF NOT EXISTS bars_1d (
		symbol      text        NOT NULL,
		ts          timestamptz NOT NULL,
		open        double precision NOT NULL,
		high        double precision NOT NULL,
		low         double precision NOT NULL,
		close       double precision NOT NULL,
		volume      bigint      NOT NULL DEFAULT 0,
		adjusted    boolean     NOT NULL DEFAULT false,
		revision    bigint      NOT NULL DEFAULT 1,
		inserted_at timestamptz NOT NULL DEFAULT now(),
		PRIMARY KEY (symbol, ts)
	)`,
	`CREATE MATERIALIZED VIEW IF NOT EXISTS bars_15m AS
		SELECT symbol,
		       to_timestamp(floor(extract(epoch FROM ts) / 900) * 900) AS ts,
		       (array_agg(open ORDER BY ts ASC))[1]   AS open,
		       max(high)                              AS high,
		       min(low)                               AS low,
		       (array_agg(close ORDER BY ts DESC))[1] AS close,
		       sum(volume)::bigint                    AS volume,
		       bool_and(adjusted)                     AS adjusted,
		       max(revision)                          AS revision
		FROM bars_1m
		GROUP BY 1, 2`,
	`CREATE UNIQUE INDEX IF NOT EXISTS bars_15m_symbol_ts_idx ON bars_15m (symbol, ts)`,
	`CREATE MATERIALIZED VIEW IF NOT EXISTS bars_60m AS
		SELECT symbol,
		       to_timestamp(floor(extract(epoch FROM ts) / 3600) * 3600) AS ts,
		       (array_agg(open ORDER BY ts ASC))[1]   AS open,
		       max(high)                              AS high,
		       min(low)                               AS low,
		       (array_agg(close ORDER BY ts DESC))[1] AS close,
		       sum(volume)::bigint                    AS volume,
		       bool_and(adjusted)                     AS adjusted,
		       max(revision)                          AS revision
		FROM bars_1m
		GROUP BY 1, 2`,
	`CREATE UNIQUE INDEX IF NOT EXISTS bars_60m_symbol_ts_idx ON bars_60m (symbol, ts)`,
}

// PGBarStore implements BarStore backed by Postgres.
type PGBarStore struct {
	client  *pkgpg.Client
	l       *applogger.Logger
	timeout time.Duration
}

func NewPGBarStore(client *pkgpg.Client, l *applogger.Logger, queryTimeout time.Duration) *PGBarStore {
	return &PGBarStore{client: client, l: l, timeout: queryTimeout}
}

func (s *PGBarStore) Init(ctx context.Context) error {
	if err := s.client.InitSchema(ctx, schemaStatements); err != nil {
		return fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}
	s.l.Info("bar store schema ensured", applogger.Int("statements", len(schemaStatements)))
	return nil
}

func (s *PGBarStore) Upsert(ctx context.Context, bar *models.Bar) (bool, error) {
	table, err := writableTableFor(bar.Granularity)
	if err != nil {
		return false, err
	}
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	q := upsertQuery(table, 1)
	tag, err := s.client.Pool().Exec(ctx, q,
		bar.Symbol, bar.Timestamp.UTC(), bar.Open, bar.High, bar.Low, bar.Close,
		bar.Volume, bar.Adjusted, bar.Revision,
	)
	if err != nil {
		s.l.Error("bar upsert failed",
			applogger.String("table", table),
			applogger.String("symbol", bar.Symbol),
			applogger.Time("ts", bar.Timestamp),
			applogger.Error(err),
		)
		return false, fmt.Errorf("%w: upsert %s: %v", models.ErrStoreUnavailable, table, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PGBarStore) UpsertBatch(ctx context.Context, bars []*models.Bar) (int, error) {
	if len(bars) == 0 {
		return 0, nil
	}
	table, err := writableTableFor(bars[0].Granularity)
	if err != nil {
		return 0, err
	}
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	args := make([]interface{}, 0, len(bars)*upsertCols)
	rows := 0
	for _, b := range bars {
		if b == nil || b.Symbol == "" || b.Timestamp.IsZero() {
			continue
		}
		args = append(args, b.Symbol, b.Timestamp.UTC(), b.Open, b.High, b.Low, b.Close,
			b.Volume, b.Adjusted, b.Revision)
		rows++
	}
	if rows == 0 {
		return 0, nil
	}

	start := time.Now()
	tag, err := s.client.Pool().Exec(ctx, upsertQuery(table, rows), args...)
	if err != nil {
		s.l.Error("bar batch upsert failed",
			applogger.String("table", table),
			applogger.String("symbol", bars[0].Symbol),
			applogger.Int("rows", rows),
			applogger.Error(err),
		)
		return 0, fmt.Errorf("%w: upsert batch %s: %v", models.ErrStoreUnavailable, table, err)
	}
	applied := int(tag.RowsAffected())
	s.l.Info("bar batch upsert ok",
		applogger.String("table", table),
		applogger.String("symbol", bars[0].Symbol),
		applogger.Int("rows", rows),
		applogger.Int("applied", applied),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return applied, nil
}

func (s *PGBarStore) Read(ctx context.Context, symbol string, g models.Granularity, from, to time.Time, limit int) ([]models.Bar, error) {
	start := time.Now()
	table, err := tableFor(g)
	if err != nil {
		return nil, err
	}
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	q, args := readQuery(table, symbol, from, to, limit)
	rows, err := s.client.Pool().Query(ctx, q, args...)
	if err != nil {
		s.l.Error("bar read query error",
			applogger.String("table", table),
			applogger.String("symbol", symbol),
			applogger.String("granularity", string(g)),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("%w: read %s: %v", models.ErrStoreUnavailable, table, err)
	}
	defer rows.Close()

	tmp := make([]models.Bar, 0, limit)
	for rows.Next() {
		var b models.Bar
		if err := rows.Scan(&b.Symbol, &b.Timestamp, &b.Open, &b.High, &b.Low, &b.Close,
			&b.Volume, &b.Adjusted, &b.Revision); err != nil {
			return nil, fmt.Errorf("%w: scan bar: %v", models.ErrStoreUnavailable, err)
		}
		b.Granularity = g
		b.Timestamp = b.Timestamp.UTC()
		tmp = append(tmp, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: rows: %v", models.ErrStoreUnavailable, err)
	}
	// reverse to ASC
	for i, j := 0, len(tmp)-1; i < j; i, j = i+1, j-1 {
		tmp[i], tmp[j] = tmp[j], tmp[i]
	}
	s.l.Debug("bar read ok",
		applogger.String("table", table),
		applogger.String("symbol", symbol),
		applogger.String("granularity", string(g)),
		applogger.Int("rows", len(tmp)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return tmp, nil
}

func (s *PGBarStore) Get(ctx context.Context, symbol string, g models.Granularity, ts time.Time) (*models.Bar, error) {
	table, err := tableFor(g)
	if err != nil {
		return nil, err
	}
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	q := fmt.Sprintf(`SELECT symbol, ts, open, high, low, close, volume, adjusted, revision
		FROM %s WHERE symbol = $1 AND ts = $2`, table)
	var b models.Bar
	err = s.client.Pool().QueryRow(ctx, q, symbol, ts.UTC()).Scan(
		&b.Symbol, &b.Timestamp, &b.Open, &b.High, &b.Low, &b.Close,
		&b.Volume, &b.Adjusted, &b.Revision,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get %s: %v", models.ErrStoreUnavailable, table, err)
	}
	b.Granularity = g
	b.Timestamp = b.Timestamp.UTC()
	return &b, nil
}

func (s *PGBarStore) Health(ctx context.Context) error {
	if err := s.client.Health(ctx); err != nil {
		return fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}
	return nil
}

// Close releases the connection pool. The store is the only pool consumer,
// so it owns the client's lifetime.
func (s *PGBarStore) Close() error {
	return s.client.Close()
}

func (s *PGBarStore) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout > 0 {
		return context.WithTimeout(ctx, s.timeout)
	}
	return ctx, func() {}
}

const upsertCols = 9

// upsertQuery builds a multi-row INSERT with the revision guard: the update
// branch only fires when the incoming revision is strictly newer, so replays
// and stale corrections fall out as zero affected rows.
func upsertQuery(table string, rows int) string {
	values := make([]string, 0, rows)
	for i := 0; i < rows; i++ {
		base := i * upsertCols
		ph := make([]string, upsertCols)
		for j := 0; j < upsertCols; j++ {
			ph[j] = fmt.Sprintf("$%d", base+j+1)
		}
		values = append(values, "("+strings.Join(ph, ", ")+")")
	}
	return fmt.Sprintf(`INSERT INTO %s (symbol, ts, open, high, low, close, volume, adjusted, revision)
		VALUES %s
		ON CONFLICT (symbol, ts) DO UPDATE SET
			open = excluded.open,
			high = excluded.high,
			low = excluded.low,
			close = excluded.close,
			volume = excluded.volume,
			adjusted = excluded.adjusted,
			revision = excluded.revision
		WHERE excluded.revision > %s.revision`,
		table, strings.Join(values, ", "), table)
}

func readQuery(table, symbol string, from, to time.Time, limit int) (string, []interface{}) {
	var sb strings.Builder
	args := make([]interface{}, 0, 4)

	sb.WriteString(fmt.Sprintf("SELECT symbol, ts, open, high, low, close, volume, adjusted, revision FROM %s WHERE symbol = $1", table))
	args = append(args, symbol)
	if !from.IsZero() {
		args = append(args, from.UTC())
		sb.WriteString(fmt.Sprintf(" AND ts >= $%d", len(args)))
	}
	if !to.IsZero() {
		args = append(args, to.UTC())
		sb.WriteString(fmt.Sprintf(" AND ts <= $%d", len(args)))
	}
	args = append(args, limit)
	sb.WriteString(fmt.Sprintf(" ORDER BY ts DESC LIMIT $%d", len(args)))
	return sb.String(), args
}

func tableFor(g models.Granularity) (string, error) {
	switch g {
	case models.Granularity1m:
		return "bars_1m", nil
	case models.Granularity15m:
		return "bars_15m", nil
	case models.Granularity60m:
		return "bars_60m", nil
	case models.Granularity1d:
		return "bars_1d", nil
	default:
		return "", fmt.Errorf("%w: %q", models.ErrInvalidGranularity, g)
	}
}

// writableTableFor rejects derive-only tiers: 15m/60m rows exist only as
// aggregates of bars_1m and are never written by the pipeline.
func writableTableFor(g models.Granularity) (string, error) {
	tier, ok := domrepo.TierFor(g)
	if !ok {
		return "", fmt.Errorf("%w: %q", models.ErrInvalidGranularity, g)
	}
	if !tier.Writable() {
		return "", fmt.Errorf("%w: %s bars are aggregated from the fine tier", models.ErrUnsupportedTier, g)
	}
	return tableFor(g)
}
