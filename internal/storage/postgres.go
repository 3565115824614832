package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Sink persists scan, opportunity and session records to PostgreSQL. Every
// write is fire-and-forget from the scan loop's point of view: the loop
// disables the sink after the first failure instead of aborting.
type Sink struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewSink creates a connection pool and verifies connectivity.
func NewSink(ctx context.Context, dsn string, logger *slog.Logger) (*Sink, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Sink{pool: pool, logger: logger}, nil
}

func (s *Sink) Close() {
	s.pool.Close()
}

// Migrate creates the schema if it does not exist.
func (s *Sink) Migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS price_scans (
			id BIGSERIAL PRIMARY KEY,
			scan_timestamp TIMESTAMPTZ NOT NULL,
			quotes JSONB NOT NULL,
			spread_pct NUMERIC(10, 4) NOT NULL,
			price_changed BOOLEAN NOT NULL,
			created_at TIMESTAMPTZ DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS arbitrage_opportunities (
			id BIGSERIAL PRIMARY KEY,
			scan_id BIGINT REFERENCES price_scans(id),
			opportunity_timestamp TIMESTAMPTZ NOT NULL,
			buy_venue VARCHAR(50) NOT NULL,
			sell_venue VARCHAR(50) NOT NULL,
			spread_pct NUMERIC(10, 4) NOT NULL,
			borrow_amount NUMERIC(30, 8) NOT NULL,
			gross_profit NUMERIC(30, 8) NOT NULL,
			net_profit NUMERIC(30, 8) NOT NULL,
			executed BOOLEAN DEFAULT FALSE,
			tx_hash VARCHAR(66),
			created_at TIMESTAMPTZ DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS bot_sessions (
			id BIGSERIAL PRIMARY KEY,
			session_start TIMESTAMPTZ NOT NULL,
			session_end TIMESTAMPTZ,
			total_scans INTEGER DEFAULT 0,
			opportunities_found INTEGER DEFAULT 0,
			status VARCHAR(20) DEFAULT 'running',
			created_at TIMESTAMPTZ DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_price_scans_timestamp ON price_scans(scan_timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_opportunities_timestamp ON arbitrage_opportunities(opportunity_timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_opportunities_net_profit ON arbitrage_opportunities(net_profit DESC)`,
	}

	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// ScanRecord is one scan cycle's persisted summary. Amount fields are
// human-readable decimal strings; smallest-unit integers never reach the
// database.
type ScanRecord struct {
	Timestamp    time.Time
	Quotes       map[string]string // venue -> quoted output, decimal string
	SpreadPct    float64
	PriceChanged bool
}

// OpportunityRecord is a selected opportunity tied to its scan row.
type OpportunityRecord struct {
	Timestamp    time.Time
	BuyVenue     string
	SellVenue    string
	SpreadPct    float64
	BorrowAmount string
	GrossProfit  string
	NetProfit    string
	Executed     bool
	TxHash       string
}

func (s *Sink) RecordScan(ctx context.Context, rec ScanRecord) (int64, error) {
	quotes, err := json.Marshal(rec.Quotes)
	if err != nil {
		return 0, fmt.Errorf("marshal quotes: %w", err)
	}

	var id int64
	err = s.pool.QueryRow(ctx,
		`INSERT INTO price_scans (scan_timestamp, quotes, spread_pct, price_changed)
		 VALUES ($1, $2, $3, $4) RETURNING id`,
		rec.Timestamp, quotes, rec.SpreadPct, rec.PriceChanged,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert price scan: %w", err)
	}
	return id, nil
}

func (s *Sink) RecordOpportunity(ctx context.Context, scanID int64, rec OpportunityRecord) error {
	var txHash *string
	if rec.TxHash != "" {
		txHash = &rec.TxHash
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO arbitrage_opportunities
			(scan_id, opportunity_timestamp, buy_venue, sell_venue, spread_pct,
			 borrow_amount, gross_profit, net_profit, executed, tx_hash)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		scanID, rec.Timestamp, rec.BuyVenue, rec.SellVenue, rec.SpreadPct,
		rec.BorrowAmount, rec.GrossProfit, rec.NetProfit, rec.Executed, txHash,
	)
	if err != nil {
		return fmt.Errorf("insert opportunity: %w", err)
	}
	return nil
}

func (s *Sink) StartSession(ctx context.Context) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO bot_sessions (session_start, status) VALUES (now(), 'running') RETURNING id`,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("start session: %w", err)
	}
	return id, nil
}

func (s *Sink) EndSession(ctx context.Context, sessionID int64, totalScans, opportunitiesFound int) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE bot_sessions
		 SET session_end = now(), total_scans = $2, opportunities_found = $3, status = 'completed'
		 WHERE id = $1`,
		sessionID, totalScans, opportunitiesFound,
	)
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	return nil
}

// Stats summarizes recent sink contents for the shutdown report.
type Stats struct {
	TotalScans         int64
	PriceChanges       int64
	TotalOpportunities int64
	TotalNetProfit     string
}

func (s *Sink) Statistics(ctx context.Context, window time.Duration) (Stats, error) {
	since := time.Now().Add(-window)

	var stats Stats
	err := s.pool.QueryRow(ctx,
		`SELECT count(*), count(*) FILTER (WHERE price_changed)
		 FROM price_scans WHERE scan_timestamp >= $1`,
		since,
	).Scan(&stats.TotalScans, &stats.PriceChanges)
	if err != nil {
		return Stats{}, fmt.Errorf("scan statistics: %w", err)
	}

	err = s.pool.QueryRow(ctx,
		`SELECT count(*), COALESCE(sum(net_profit), 0)::text
		 FROM arbitrage_opportunities WHERE opportunity_timestamp >= $1`,
		since,
	).Scan(&stats.TotalOpportunities, &stats.TotalNetProfit)
	if err != nil {
		return Stats{}, fmt.Errorf("opportunity statistics: %w", err)
	}

	return stats, nil
}

// ScanRow is one exported scan-history row, flattened for offline analysis.
type ScanRow struct {
	ID           int64
	Timestamp    time.Time
	Quotes       string
	SpreadPct    float64
	PriceChanged bool
}

// ScanHistory returns the most recent scans, newest first.
func (s *Sink) ScanHistory(ctx context.Context, limit int) ([]ScanRow, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, scan_timestamp, quotes::text, spread_pct, price_changed
		 FROM price_scans ORDER BY scan_timestamp DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query scan history: %w", err)
	}
	defer rows.Close()

	var out []ScanRow
	for rows.Next() {
		var r ScanRow
		if err := rows.Scan(&r.ID, &r.Timestamp, &r.Quotes, &r.SpreadPct, &r.PriceChanged); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
