package registry

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mlenz/stockpipe/internal/model"
)

// Postgres reads the instruments table.
type Postgres struct {
	db     *pgxpool.Pool
	table  string
	logger *slog.Logger
}

// NewPostgres creates a table-backed registry.
func NewPostgres(db *pgxpool.Pool, table string, logger *slog.Logger) *Postgres {
	if logger == nil {
		logger = slog.Default()
	}
	return &Postgres{db: db, table: table, logger: logger}
}

func (p *Postgres) List(ctx context.Context) ([]model.Instrument, error) {
	rows, err := p.db.Query(ctx,
		fmt.Sprintf(`SELECT id, name, sector FROM %s ORDER BY id`, p.table))
	if err != nil {
		return nil, fmt.Errorf("query instruments: %w", err)
	}
	defer rows.Close()

	var out []model.Instrument
	for rows.Next() {
		var inst model.Instrument
		if err := rows.Scan(&inst.ID, &inst.Name, &inst.Sector); err != nil {
			return nil, fmt.Errorf("scan instrument: %w", err)
		}
		out = append(out, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate instruments: %w", err)
	}
	return out, nil
}

// Sync inserts instruments that are not yet present in the table. Existing
// rows are left untouched; the registry never deletes.
func (p *Postgres) Sync(ctx context.Context, instruments []model.Instrument) (inserted int, err error) {
	batch := &pgx.Batch{}
	for _, inst := range instruments {
		batch.Queue(fmt.Sprintf(`
			INSERT INTO %s (id, name, sector)
			VALUES ($1, $2, $3)
			ON CONFLICT (id) DO NOTHING
		`, p.table), inst.ID, inst.Name, inst.Sector)
	}

	results := p.db.SendBatch(ctx, batch)
	defer results.Close()

	for range instruments {
		ct, err := results.Exec()
		if err != nil {
			return inserted, fmt.Errorf("insert instrument: %w", err)
		}
		inserted += int(ct.RowsAffected())
	}

	p.logger.Info("instrument registry synced",
		"instruments", len(instruments),
		"inserted", inserted,
	)
	return inserted, nil
}
