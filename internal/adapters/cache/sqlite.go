// Package cache implements the read-through bar store below: a SQLite
// file (pure Go, no CGo) holding OHLCV bars per symbol, guarded by a
// process-level advisory lock for the duration of a run.
package cache

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"

	"github.com/lmoretti-dev/whitelight/internal/domain"
	"github.com/lmoretti-dev/whitelight/internal/money"
)

const schema = `
CREATE TABLE IF NOT EXISTS bars (
 symbol TEXT NOT NULL,
 date TEXT NOT NULL,
 open TEXT NOT NULL,
 high TEXT NOT NULL,
 low TEXT NOT NULL,
 close TEXT NOT NULL,
 volume INTEGER NOT NULL DEFAULT 0,
 PRIMARY KEY (symbol, date)
);

CREATE INDEX IF NOT EXISTS idx_bars_symbol_date ON bars(symbol, date);

CREATE TABLE IF NOT EXISTS decisions (
 session_id TEXT PRIMARY KEY,
 date TEXT NOT NULL,
 composite_score REAL NOT NULL,
 recorded_at TEXT DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_decisions_date ON decisions(date);

CREATE TABLE IF NOT EXISTS decision_signals (
 session_id TEXT NOT NULL,
 strategy_name TEXT NOT NULL,
 raw_score REAL NOT NULL,
 strength TEXT NOT NULL,
 weight REAL NOT NULL,
 PRIMARY KEY (session_id, strategy_name),
 FOREIGN KEY (session_id) REFERENCES decisions(session_id)
);
`

// SQLiteCache implements ports.BarCache. Prices are stored as decimal
// strings, never as floats, so a round trip through the cache never loses
// precision.
type SQLiteCache struct {
	db   *sql.DB
	lock *flock.Flock
}

// Open opens (or creates) the cache database at path and acquires the
// process-level advisory lock. The lock is released by Close; a second
// Open against the same path while a run is in flight returns an error
// rather than blocking — no concurrent runs on the same cache.
func Open(path string) (*SQLiteCache, error) {
	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("cache.Open: acquire lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("cache.Open: bar cache %q is locked by another run", path)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		lock.Unlock()
		return nil, fmt.Errorf("cache.Open: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		lock.Unlock()
		return nil, fmt.Errorf("cache.Open: apply schema: %w", err)
	}

	return &SQLiteCache{db: db, lock: lock}, nil
}

// GetBars returns the bars on file for symbol within [start, end].
func (c *SQLiteCache) GetBars(ctx context.Context, symbol string, start, end time.Time) (domain.History, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT date, open, high, low, close, volume
		FROM bars
		WHERE symbol = ? AND date BETWEEN ? AND ?
		ORDER BY date ASC
	`, symbol, start.UTC().Format(time.DateOnly), end.UTC().Format(time.DateOnly))
	if err != nil {
		return domain.History{}, fmt.Errorf("cache.GetBars: query %s: %w", symbol, err)
	}
	defer rows.Close()

	var bars []domain.Bar
	for rows.Next() {
		var dateStr, openStr, highStr, lowStr, closeStr string
		var volume int64
		if err := rows.Scan(&dateStr, &openStr, &highStr, &lowStr, &closeStr, &volume); err != nil {
			return domain.History{}, fmt.Errorf("cache.GetBars: scan row: %w", err)
		}
		bar, err := scanBar(dateStr, openStr, highStr, lowStr, closeStr, volume)
		if err != nil {
			return domain.History{}, fmt.Errorf("cache.GetBars: decode %s bar: %w", symbol, err)
		}
		bars = append(bars, bar)
	}
	if err := rows.Err(); err != nil {
		return domain.History{}, fmt.Errorf("cache.GetBars: %s: %w", symbol, err)
	}
	return domain.History{Symbol: symbol, Bars: bars}, nil
}

// PutBars upserts bars for symbol, overwriting any existing row for the
// same (symbol, date).
func (c *SQLiteCache) PutBars(ctx context.Context, symbol string, bars []domain.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("cache.PutBars: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO bars (symbol, date, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol, date) DO UPDATE SET
			open = excluded.open,
			high = excluded.high,
			low = excluded.low,
			close = excluded.close,
			volume = excluded.volume
	`)
	if err != nil {
		return fmt.Errorf("cache.PutBars: prepare: %w", err)
	}
	defer stmt.Close()

	for _, b := range bars {
		if _, err := stmt.ExecContext(ctx,
			symbol,
			b.Date.UTC().Format(time.DateOnly),
			b.Open.String(),
			b.High.String(),
			b.Low.String(),
			b.Close.String(),
			b.Volume,
		); err != nil {
			return fmt.Errorf("cache.PutBars: upsert %s %s: %w", symbol, b.Date.Format(time.DateOnly), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("cache.PutBars: commit: %w", err)
	}
	return nil
}

// LatestDate returns the most recent date on file for symbol.
func (c *SQLiteCache) LatestDate(ctx context.Context, symbol string) (time.Time, bool, error) {
	var dateStr sql.NullString
	err := c.db.QueryRowContext(ctx,
		`SELECT MAX(date) FROM bars WHERE symbol = ?`, symbol,
	).Scan(&dateStr)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("cache.LatestDate: %s: %w", symbol, err)
	}
	if !dateStr.Valid {
		return time.Time{}, false, nil
	}
	t, err := time.Parse(time.DateOnly, dateStr.String)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("cache.LatestDate: parse %s: %w", dateStr.String, err)
	}
	return t, true, nil
}

// RecordDecision persists one session's composite score and full
// per-strategy Signal breakdown, the Go counterpart of the original
// research pipeline's strategy/backtest bookkeeping. This is telemetry
// only: nothing written here is ever read back by GetBars/LatestDate or
// otherwise fed into a later allocation decision.
func (c *SQLiteCache) RecordDecision(ctx context.Context, sessionID string, date time.Time, composite float64, signals []domain.Signal) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("cache.RecordDecision: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO decisions (session_id, date, composite_score) VALUES (?, ?, ?)`,
		sessionID, date.UTC().Format(time.DateOnly), composite,
	); err != nil {
		return fmt.Errorf("cache.RecordDecision: insert decision: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO decision_signals (session_id, strategy_name, raw_score, strength, weight) VALUES (?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("cache.RecordDecision: prepare signal insert: %w", err)
	}
	defer stmt.Close()

	for _, s := range signals {
		if _, err := stmt.ExecContext(ctx, sessionID, s.StrategyName, s.RawScore, s.Strength.String(), s.Weight); err != nil {
			return fmt.Errorf("cache.RecordDecision: insert signal %s: %w", s.StrategyName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("cache.RecordDecision: commit: %w", err)
	}
	return nil
}

// Close closes the database and releases the advisory lock.
func (c *SQLiteCache) Close() error {
	dbErr := c.db.Close()
	lockErr := c.lock.Unlock()
	if dbErr != nil {
		return dbErr
	}
	return lockErr
}

func scanBar(dateStr, openStr, highStr, lowStr, closeStr string, volume int64) (domain.Bar, error) {
	date, err := time.Parse(time.DateOnly, dateStr)
	if err != nil {
		return domain.Bar{}, fmt.Errorf("parse date %q: %w", dateStr, err)
	}
	open, err := money.FromString(openStr)
	if err != nil {
		return domain.Bar{}, fmt.Errorf("parse open %q: %w", openStr, err)
	}
	high, err := money.FromString(highStr)
	if err != nil {
		return domain.Bar{}, fmt.Errorf("parse high %q: %w", highStr, err)
	}
	low, err := money.FromString(lowStr)
	if err != nil {
		return domain.Bar{}, fmt.Errorf("parse low %q: %w", lowStr, err)
	}
	closePrice, err := money.FromString(closeStr)
	if err != nil {
		return domain.Bar{}, fmt.Errorf("parse close %q: %w", closeStr, err)
	}
	return domain.Bar{Date: date, Open: open, High: high, Low: low, Close: closePrice, Volume: volume}, nil
}
