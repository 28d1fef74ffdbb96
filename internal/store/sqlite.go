package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	apperrors "delta-strangler/internal/errors"
	"delta-strangler/internal/models"
)

// SQLiteLedger implements Ledger using SQLite.
type SQLiteLedger struct {
	db *sql.DB
}

// NewSQLiteLedger opens (or creates) the ledger database.
func NewSQLiteLedger(dbPath string) (*SQLiteLedger, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One writer per run; keep the pool small.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(time.Hour)

	ledger := &SQLiteLedger{db: db}

	if err := ledger.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return ledger, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteLedger) initSchema() error {
	schema := `
	-- One row per completed strangle
	CREATE TABLE IF NOT EXISTS trades (
		id TEXT PRIMARY KEY,
		date TEXT NOT NULL,
		day TEXT NOT NULL,
		entry_time TEXT NOT NULL,
		exit_time TEXT NOT NULL,
		mode TEXT NOT NULL,
		spot_price REAL NOT NULL,
		atm_strike REAL NOT NULL,
		call_strike REAL NOT NULL,
		put_strike REAL NOT NULL,
		ce_distance INTEGER NOT NULL,
		pe_distance INTEGER NOT NULL,
		entry_call REAL NOT NULL,
		entry_put REAL NOT NULL,
		entry_combined REAL NOT NULL,
		exit_call REAL NOT NULL,
		exit_put REAL NOT NULL,
		exit_combined REAL NOT NULL,
		pnl_usd REAL NOT NULL,
		pnl_inr REAL NOT NULL,
		pnl_percent REAL NOT NULL,
		exit_reason TEXT NOT NULL,
		exit_trigger TEXT NOT NULL,
		breach TEXT NOT NULL,
		data_source TEXT NOT NULL,
		manual_review INTEGER DEFAULT 0,
		duration TEXT NOT NULL,
		created_at INTEGER NOT NULL -- unix milliseconds
	);

	CREATE INDEX IF NOT EXISTS idx_trades_date ON trades(date);
	CREATE INDEX IF NOT EXISTS idx_trades_mode ON trades(mode);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteLedger) Close() error {
	return s.db.Close()
}

// SaveTrade appends a trade to the ledger, assigning an ID if missing.
func (s *SQLiteLedger) SaveTrade(ctx context.Context, trade *models.TradeRecord) error {
	if trade.ID == "" {
		trade.ID = uuid.New().String()
	}
	if trade.CreatedAt.IsZero() {
		trade.CreatedAt = time.Now()
	}
	manual := 0
	if trade.ManualReview {
		manual = 1
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trades (id, date, day, entry_time, exit_time, mode, spot_price, atm_strike, call_strike, put_strike, ce_distance, pe_distance,
			entry_call, entry_put, entry_combined, exit_call, exit_put, exit_combined, pnl_usd, pnl_inr, pnl_percent,
			exit_reason, exit_trigger, breach, data_source, manual_review, duration, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, trade.ID, trade.Date, trade.Day, trade.EntryTime, trade.ExitTime, string(trade.Mode), trade.SpotPrice, trade.ATMStrike,
		trade.CallStrike, trade.PutStrike, trade.CEDistance, trade.PEDistance,
		trade.EntryCall, trade.EntryPut, trade.EntryCombined, trade.ExitCall, trade.ExitPut, trade.ExitCombined,
		trade.PnLUSD, trade.PnLINR, trade.PnLPercent,
		trade.ExitReason, string(trade.Trigger), string(trade.Breach), string(trade.DataSource), manual, trade.Duration, trade.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to save trade: %w: %v", apperrors.ErrDatabaseError, err)
	}
	return nil
}

// ListTrades retrieves trades, newest first, with the running P&L total.
func (s *SQLiteLedger) ListTrades(ctx context.Context, filter TradeFilter) ([]models.TradeRecord, error) {
	where, args := filter.where()
	query := `
		SELECT id, date, day, entry_time, exit_time, mode, spot_price, atm_strike, call_strike, put_strike, ce_distance, pe_distance,
			entry_call, entry_put, entry_combined, exit_call, exit_put, exit_combined, pnl_usd, pnl_inr, pnl_percent,
			exit_reason, exit_trigger, breach, data_source, manual_review, duration, created_at, cum_pnl_inr
		FROM (
			SELECT *, SUM(pnl_inr) OVER (ORDER BY date, created_at, id ROWS UNBOUNDED PRECEDING) AS cum_pnl_inr
			FROM trades
		)` + where + " ORDER BY date DESC, created_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	var trades []models.TradeRecord
	for rows.Next() {
		var t models.TradeRecord
		var mode, trigger, breach, source string
		var manual int
		var createdAt int64

		if err := rows.Scan(&t.ID, &t.Date, &t.Day, &t.EntryTime, &t.ExitTime, &mode, &t.SpotPrice, &t.ATMStrike,
			&t.CallStrike, &t.PutStrike, &t.CEDistance, &t.PEDistance,
			&t.EntryCall, &t.EntryPut, &t.EntryCombined, &t.ExitCall, &t.ExitPut, &t.ExitCombined,
			&t.PnLUSD, &t.PnLINR, &t.PnLPercent,
			&t.ExitReason, &trigger, &breach, &source, &manual, &t.Duration, &createdAt, &t.CumulativePnLINR); err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}

		t.Mode = models.TradingMode(mode)
		t.Trigger = models.ExitTrigger(trigger)
		t.Breach = models.Breach(breach)
		t.DataSource = models.DataSource(source)
		t.ManualReview = manual == 1
		t.CreatedAt = time.UnixMilli(createdAt)
		trades = append(trades, t)
	}

	return trades, rows.Err()
}

// Summarize aggregates the trades matching filter.
func (s *SQLiteLedger) Summarize(ctx context.Context, filter TradeFilter) (*Summary, error) {
	where, args := filter.where()
	query := `
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN pnl_usd >= 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(manual_review), 0),
			COALESCE(SUM(pnl_usd), 0),
			COALESCE(SUM(pnl_inr), 0),
			COALESCE(MAX(pnl_inr), 0),
			COALESCE(MIN(pnl_inr), 0)
		FROM trades` + where

	var sum Summary
	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&sum.Trades, &sum.Wins, &sum.ManualReview, &sum.TotalUSD, &sum.TotalINR, &sum.BestINR, &sum.WorstINR)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize trades: %w", err)
	}
	sum.Losses = sum.Trades - sum.Wins
	return &sum, nil
}

func (f TradeFilter) where() (string, []interface{}) {
	clause := " WHERE 1=1"
	args := []interface{}{}

	if f.Mode != "" {
		clause += " AND mode = ?"
		args = append(args, string(f.Mode))
	}
	if f.StartDate != "" {
		clause += " AND date >= ?"
		args = append(args, f.StartDate)
	}
	if f.EndDate != "" {
		clause += " AND date <= ?"
		args = append(args, f.EndDate)
	}
	if f.ManualReview != nil {
		manual := 0
		if *f.ManualReview {
			manual = 1
		}
		clause += " AND manual_review = ?"
		args = append(args, manual)
	}
	return clause, args
}
