package load

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mlenz/stockpipe/internal/model"
)

// Postgres implements DB on a pgx connection pool.
type Postgres struct {
	db          *pgxpool.Pool
	table       string
	instruments string
	logger      *slog.Logger
}

// NewPostgres creates a Postgres-backed metrics store. table is the metrics
// table name, instruments the registry table name (used only by
// EnsureSchema).
func NewPostgres(db *pgxpool.Pool, table, instruments string, logger *slog.Logger) *Postgres {
	if logger == nil {
		logger = slog.Default()
	}
	return &Postgres{db: db, table: table, instruments: instruments, logger: logger}
}

// EnsureSchema creates the metrics and instruments tables if absent.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	metricsDDL := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			instrument   TEXT             NOT NULL,
			date         DATE             NOT NULL,
			open         DOUBLE PRECISION NOT NULL,
			high         DOUBLE PRECISION NOT NULL,
			low          DOUBLE PRECISION NOT NULL,
			close        DOUBLE PRECISION NOT NULL,
			volume       BIGINT           NOT NULL,
			daily_return DOUBLE PRECISION,
			rolling_vol  DOUBLE PRECISION,
			ingested_at  TIMESTAMPTZ      NOT NULL,
			PRIMARY KEY (instrument, date)
		)
	`, p.table)
	if _, err := p.db.Exec(ctx, metricsDDL); err != nil {
		return fmt.Errorf("create table %s: %w", p.table, err)
	}

	instrumentsDDL := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id     TEXT PRIMARY KEY,
			name   TEXT NOT NULL DEFAULT '',
			sector TEXT NOT NULL DEFAULT ''
		)
	`, p.instruments)
	if _, err := p.db.Exec(ctx, instrumentsDDL); err != nil {
		return fmt.Errorf("create table %s: %w", p.instruments, err)
	}

	p.logger.Info("database schema ensured",
		"metrics_table", p.table,
		"instruments_table", p.instruments,
	)
	return nil
}

func (p *Postgres) MaxDatePerInstrument(ctx context.Context) (map[string]time.Time, error) {
	rows, err := p.db.Query(ctx,
		fmt.Sprintf(`SELECT instrument, MAX(date) FROM %s GROUP BY instrument`, p.table))
	if err != nil {
		return nil, fmt.Errorf("query high-water marks: %w", err)
	}
	defer rows.Close()

	out := make(map[string]time.Time)
	for rows.Next() {
		var instrument string
		var max time.Time
		if err := rows.Scan(&instrument, &max); err != nil {
			return nil, fmt.Errorf("scan high-water mark: %w", err)
		}
		out[instrument] = model.Day(max)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate high-water marks: %w", err)
	}
	return out, nil
}

func (p *Postgres) AppendBatch(ctx context.Context, instrument string, reload time.Time, rows []model.EnrichedRow) (int64, error) {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if !reload.IsZero() {
		tag, err := tx.Exec(ctx,
			fmt.Sprintf(`DELETE FROM %s WHERE instrument = $1 AND date = $2`, p.table),
			instrument, reload)
		if err != nil {
			return 0, fmt.Errorf("delete reloaded date: %w", err)
		}
		if tag.RowsAffected() > 0 {
			p.logger.Debug("superseding provisional rows",
				"instrument", instrument,
				"date", reload.Format("2006-01-02"),
				"rows", tag.RowsAffected(),
			)
		}
	}

	copied, err := tx.CopyFrom(ctx,
		pgx.Identifier{p.table},
		[]string{"instrument", "date", "open", "high", "low", "close", "volume", "daily_return", "rolling_vol", "ingested_at"},
		pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
			r := rows[i]
			return []any{
				r.Instrument, r.Date, r.Open, r.High, r.Low, r.Close,
				r.Volume, r.DailyReturn, r.RollingVol, r.IngestTS,
			}, nil
		}),
	)
	if err != nil {
		return 0, fmt.Errorf("copy rows: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}
	return copied, nil
}
