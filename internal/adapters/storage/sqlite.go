package storage

// sqlite.go — sink tabular del path batch.
//
// Estrategia:
//   - `replay_runs`: una fila de resumen por run (contadores + timing).
//   - `market_snapshots` / `runner_snapshots`: el aplanado materializado,
//     una fila por mercado y por runner, con upsert por (run_id, ...) para
//     que reintentar un run fallido sea idempotente.
//   - Los precios ausentes se guardan como NULL, nunca como 0.0: cero es
//     un precio imposible pero un NULL es inequívoco.

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/alejandrodnm/betstream/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
-- Resumen por replay run
CREATE TABLE IF NOT EXISTS replay_runs (
    run_id         TEXT PRIMARY KEY,
    started_at     DATETIME NOT NULL,
    finished_at    DATETIME NOT NULL,
    files          INTEGER  NOT NULL DEFAULT 0,
    failed_files   INTEGER  NOT NULL DEFAULT 0,
    lines          INTEGER  NOT NULL DEFAULT 0,
    decode_errors  INTEGER  NOT NULL DEFAULT 0,
    stale_discards INTEGER  NOT NULL DEFAULT 0
);

-- Un mercado materializado por run
CREATE TABLE IF NOT EXISTS market_snapshots (
    run_id      TEXT NOT NULL,
    market_id   TEXT NOT NULL,
    event_id    TEXT,
    venue       TEXT,
    market_type TEXT,
    status      TEXT NOT NULL,
    market_time DATETIME,
    PRIMARY KEY (run_id, market_id)
);

-- Un runner materializado por mercado y run
CREATE TABLE IF NOT EXISTS runner_snapshots (
    run_id            TEXT    NOT NULL,
    market_id         TEXT    NOT NULL,
    runner_id         INTEGER NOT NULL,
    name              TEXT,
    status            TEXT    NOT NULL,
    last_traded_price REAL,
    best_lay_price    REAL,
    best_lay_size     REAL,
    as_of             DATETIME,
    PRIMARY KEY (run_id, market_id, runner_id)
);

CREATE INDEX IF NOT EXISTS idx_runs_started    ON replay_runs(started_at DESC);
CREATE INDEX IF NOT EXISTS idx_markets_status  ON market_snapshots(status);
CREATE INDEX IF NOT EXISTS idx_runners_market  ON runner_snapshots(market_id);
`

// SQLiteSink implementa ports.SnapshotSink usando SQLite (pure Go, sin CGo).
type SQLiteSink struct {
	db *sql.DB
}

// NewSQLiteSink abre (o crea) la base de datos en la ruta dada y aplica
// el schema.
func NewSQLiteSink(path string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteSink: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteSink: apply schema: %w", err)
	}

	return &SQLiteSink{db: db}, nil
}

// SaveRun persiste el run completo en una transacción.
func (s *SQLiteSink) SaveRun(ctx context.Context, run domain.ReplayRun) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.SaveRun: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO replay_runs
			(run_id, started_at, finished_at, files, failed_files, lines, decode_errors, stale_discards)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			finished_at    = excluded.finished_at,
			files          = excluded.files,
			failed_files   = excluded.failed_files,
			lines          = excluded.lines,
			decode_errors  = excluded.decode_errors,
			stale_discards = excluded.stale_discards`,
		run.RunID, run.StartedAt, run.FinishedAt,
		run.Files, run.FailedFiles, run.Lines, run.DecodeErrors, run.StaleDiscards,
	); err != nil {
		return fmt.Errorf("storage.SaveRun: insert run: %w", err)
	}

	marketStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO market_snapshots
			(run_id, market_id, event_id, venue, market_type, status, market_time)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, market_id) DO UPDATE SET
			event_id    = excluded.event_id,
			venue       = excluded.venue,
			market_type = excluded.market_type,
			status      = excluded.status,
			market_time = excluded.market_time`)
	if err != nil {
		return fmt.Errorf("storage.SaveRun: prepare markets: %w", err)
	}
	defer marketStmt.Close()

	runnerStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO runner_snapshots
			(run_id, market_id, runner_id, name, status,
			 last_traded_price, best_lay_price, best_lay_size, as_of)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, market_id, runner_id) DO UPDATE SET
			name              = excluded.name,
			status            = excluded.status,
			last_traded_price = excluded.last_traded_price,
			best_lay_price    = excluded.best_lay_price,
			best_lay_size     = excluded.best_lay_size,
			as_of             = excluded.as_of`)
	if err != nil {
		return fmt.Errorf("storage.SaveRun: prepare runners: %w", err)
	}
	defer runnerStmt.Close()

	for _, m := range run.Markets {
		if _, err := marketStmt.ExecContext(ctx,
			run.RunID, m.MarketID, m.EventID, m.Venue, m.MarketType,
			string(m.Status), nullTime(m.MarketTime),
		); err != nil {
			return fmt.Errorf("storage.SaveRun: market %s: %w", m.MarketID, err)
		}
		for _, r := range m.Runners {
			if _, err := runnerStmt.ExecContext(ctx,
				run.RunID, m.MarketID, r.RunnerID, r.Name, string(r.Status),
				nullFloat(r.LastTradedPrice), nullFloat(r.BestLayPrice), nullFloat(r.BestLaySize),
				nullTime(r.AsOf),
			); err != nil {
				return fmt.Errorf("storage.SaveRun: runner %s/%d: %w", m.MarketID, r.RunnerID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.SaveRun: commit: %w", err)
	}
	return nil
}

// LoadRun reconstruye un run guardado, snapshots incluidos. Pensado para
// verificación y tests; el path batch normal solo escribe.
func (s *SQLiteSink) LoadRun(ctx context.Context, runID string) (domain.ReplayRun, error) {
	var run domain.ReplayRun
	err := s.db.QueryRowContext(ctx, `
		SELECT run_id, started_at, finished_at, files, failed_files, lines, decode_errors, stale_discards
		FROM replay_runs WHERE run_id = ?`, runID,
	).Scan(&run.RunID, &run.StartedAt, &run.FinishedAt,
		&run.Files, &run.FailedFiles, &run.Lines, &run.DecodeErrors, &run.StaleDiscards)
	if err != nil {
		return domain.ReplayRun{}, fmt.Errorf("storage.LoadRun: %q: %w", runID, err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT market_id, event_id, venue, market_type, status, market_time
		FROM market_snapshots WHERE run_id = ? ORDER BY market_id`, runID)
	if err != nil {
		return domain.ReplayRun{}, fmt.Errorf("storage.LoadRun: markets: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var m domain.MarketSnapshot
		var status string
		var marketTime sql.NullTime
		if err := rows.Scan(&m.MarketID, &m.EventID, &m.Venue, &m.MarketType, &status, &marketTime); err != nil {
			return domain.ReplayRun{}, fmt.Errorf("storage.LoadRun: scan market: %w", err)
		}
		m.Status = domain.MarketStatus(status)
		if marketTime.Valid {
			m.MarketTime = marketTime.Time
		}

		m.Runners, err = s.loadRunners(ctx, runID, m.MarketID)
		if err != nil {
			return domain.ReplayRun{}, err
		}
		run.Markets = append(run.Markets, m)
	}
	if err := rows.Err(); err != nil {
		return domain.ReplayRun{}, fmt.Errorf("storage.LoadRun: iterate markets: %w", err)
	}
	return run, nil
}

func (s *SQLiteSink) loadRunners(ctx context.Context, runID, marketID string) ([]domain.RunnerSnapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT runner_id, name, status, last_traded_price, best_lay_price, best_lay_size, as_of
		FROM runner_snapshots WHERE run_id = ? AND market_id = ? ORDER BY runner_id`, runID, marketID)
	if err != nil {
		return nil, fmt.Errorf("storage.loadRunners: %w", err)
	}
	defer rows.Close()

	var runners []domain.RunnerSnapshot
	for rows.Next() {
		var r domain.RunnerSnapshot
		var status string
		var ltp, layPrice, laySize sql.NullFloat64
		var asOf sql.NullTime
		if err := rows.Scan(&r.RunnerID, &r.Name, &status, &ltp, &layPrice, &laySize, &asOf); err != nil {
			return nil, fmt.Errorf("storage.loadRunners: scan: %w", err)
		}
		r.Status = domain.RunnerStatus(status)
		r.LastTradedPrice = floatPtr(ltp)
		r.BestLayPrice = floatPtr(layPrice)
		r.BestLaySize = floatPtr(laySize)
		if asOf.Valid {
			r.AsOf = asOf.Time
		}
		runners = append(runners, r)
	}
	return runners, rows.Err()
}

// Close cierra la base de datos.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
