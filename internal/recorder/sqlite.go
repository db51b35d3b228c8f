package recorder

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"QuantSentinel/internal/collector"
	"QuantSentinel/internal/model"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

// goose keeps its configuration in package globals.
var gooseMu sync.Mutex

// SQLiteRecorder persists price history and refresh events to SQLite.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL so API reads do not wait on scheduled writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Printf("[INFO] sqlite recorder opened: %s", dbPath)
	return &SQLiteRecorder{db: db}, nil
}

func migrate(db *sql.DB) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()
	goose.SetBaseFS(migrations)
	defer goose.SetBaseFS(nil)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	return goose.Up(db, "migrations")
}

func (r *SQLiteRecorder) Name() string { return Name }

// IsConnected reports whether the database answers a ping.
func (r *SQLiteRecorder) IsConnected() bool {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return r.db.PingContext(ctx) == nil
}

// FetchSeries returns up to count of the most recent bars, oldest first.
func (r *SQLiteRecorder) FetchSeries(ctx context.Context, symbol string, count int) ([]model.PriceBar, error) {
	if count <= 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx, `SELECT ts, open, high, low, close, volume
		FROM bars WHERE symbol = ? ORDER BY ts DESC LIMIT ?`, symbol, count)
	if err != nil {
		return nil, fmt.Errorf("query bars: %w", err)
	}
	defer rows.Close()

	var bars []model.PriceBar
	for rows.Next() {
		var (
			ts int64
			b  model.PriceBar
		)
		if err := rows.Scan(&ts, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		b.Time = time.Unix(ts, 0).UTC()
		bars = append(bars, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(bars)-1; i < j; i, j = i+1, j-1 {
		bars[i], bars[j] = bars[j], bars[i]
	}
	return bars, nil
}

// FetchLatest returns the last archived quote, or one derived from stored
// bars when no quote was archived.
func (r *SQLiteRecorder) FetchLatest(ctx context.Context, symbol string) (*model.Quote, error) {
	q := &model.Quote{Symbol: symbol}
	var ts int64
	var name sql.NullString
	err := r.db.QueryRowContext(ctx, `SELECT name, price, previous_close, open, high, low, volume,
		change_pct, high_52w, low_52w, ts FROM quotes WHERE symbol = ?`, symbol).
		Scan(&name, &q.CurrentPrice, &q.PreviousClose, &q.Open, &q.High, &q.Low, &q.Volume,
			&q.ChangePercent, &q.High52w, &q.Low52w, &ts)
	switch {
	case err == nil:
		q.Name = name.String
		q.Time = time.Unix(ts, 0).UTC()
		return q, nil
	case !errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("query quote: %w", err)
	}

	bars, err := r.FetchSeries(ctx, symbol, 252)
	if err != nil {
		return nil, err
	}
	return collector.QuoteFromSeries(model.NewSeries(symbol, bars)), nil
}

// SaveBars upserts bars keyed by (symbol, timestamp).
func (r *SQLiteRecorder) SaveBars(ctx context.Context, symbol string, bars []model.PriceBar) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO bars (symbol, ts, open, high, low, close, volume)
		VALUES (?,?,?,?,?,?,?)
		ON CONFLICT(symbol, ts) DO UPDATE SET
			open = excluded.open, high = excluded.high, low = excluded.low,
			close = excluded.close, volume = excluded.volume`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, b := range bars {
		if _, err := stmt.ExecContext(ctx, symbol, b.Time.Unix(), b.Open, b.High, b.Low, b.Close, b.Volume); err != nil {
			return fmt.Errorf("insert bar %s: %w", b.Time.Format("2006-01-02"), err)
		}
	}
	return tx.Commit()
}

func (r *SQLiteRecorder) SaveQuote(ctx context.Context, q *model.Quote) error {
	if q == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.ExecContext(ctx, `INSERT INTO quotes
		(symbol, name, price, previous_close, open, high, low, volume, change_pct, high_52w, low_52w, ts, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(symbol) DO UPDATE SET
			name = excluded.name, price = excluded.price, previous_close = excluded.previous_close,
			open = excluded.open, high = excluded.high, low = excluded.low, volume = excluded.volume,
			change_pct = excluded.change_pct, high_52w = excluded.high_52w, low_52w = excluded.low_52w,
			ts = excluded.ts, updated_at = excluded.updated_at`,
		q.Symbol, q.Name, q.CurrentPrice, q.PreviousClose, q.Open, q.High, q.Low, q.Volume,
		q.ChangePercent, q.High52w, q.Low52w, q.Time.Unix(), time.Now().Unix(),
	)
	return err
}

func (r *SQLiteRecorder) RecordRefresh(ctx context.Context, ev model.RefreshEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO refresh_events
		(timestamp, run_id, symbol, kind, source, ok, error, bars, duration_ms)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		at.Unix(), ev.RunID, ev.Symbol, string(ev.Kind), ev.Source, ev.OK, ev.Error,
		ev.Bars, ev.Duration.Milliseconds(),
	)
	return err
}

// RecentRefreshes returns the latest refresh events for symbol, newest first.
// An empty symbol matches all symbols.
func (r *SQLiteRecorder) RecentRefreshes(ctx context.Context, symbol string, limit int) ([]model.RefreshEvent, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT timestamp, run_id, symbol, kind, source, ok, error, bars, duration_ms
		FROM refresh_events WHERE (? = '' OR symbol = ?) ORDER BY timestamp DESC, id DESC LIMIT ?`,
		symbol, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("query refresh events: %w", err)
	}
	defer rows.Close()

	var out []model.RefreshEvent
	for rows.Next() {
		var (
			ev                  model.RefreshEvent
			ts, ms              int64
			kind                string
			runID, errS, source sql.NullString
		)
		if err := rows.Scan(&ts, &runID, &ev.Symbol, &kind, &source, &ev.OK, &errS, &ev.Bars, &ms); err != nil {
			return nil, fmt.Errorf("scan refresh event: %w", err)
		}
		ev.At = time.Unix(ts, 0).UTC()
		ev.RunID = runID.String
		ev.Kind = model.Kind(kind)
		ev.Source = source.String
		ev.Error = errS.String
		ev.Duration = time.Duration(ms) * time.Millisecond
		out = append(out, ev)
	}
	return out, rows.Err()
}

// ActiveSymbols lists every symbol with stored bars.
func (r *SQLiteRecorder) ActiveSymbols(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT symbol FROM bars ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("query symbols: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Purge deletes bars older than barsBefore and quotes and refresh events
// older than eventsBefore.
func (r *SQLiteRecorder) Purge(ctx context.Context, barsBefore, eventsBefore time.Time) (PurgeResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var res PurgeResult
	steps := []struct {
		query string
		arg   int64
		n     *int64
	}{
		{`DELETE FROM bars WHERE ts < ?`, barsBefore.Unix(), &res.Bars},
		{`DELETE FROM quotes WHERE updated_at < ?`, eventsBefore.Unix(), &res.Quotes},
		{`DELETE FROM refresh_events WHERE timestamp < ?`, eventsBefore.Unix(), &res.Events},
	}
	for _, s := range steps {
		out, err := r.db.ExecContext(ctx, s.query, s.arg)
		if err != nil {
			return res, fmt.Errorf("purge: %w", err)
		}
		*s.n, _ = out.RowsAffected()
	}
	return res, nil
}

func (r *SQLiteRecorder) Close() error {
	log.Println("[INFO] closing sqlite recorder")
	return r.db.Close()
}
