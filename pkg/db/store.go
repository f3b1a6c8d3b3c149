package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/token-pulse/pkg/analyzer"
)

const schema = `
CREATE TABLE IF NOT EXISTS analysis_runs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    token_address TEXT NOT NULL,
    window_minutes INTEGER NOT NULL,
    transaction_count INTEGER DEFAULT 0,
    active_wallets INTEGER DEFAULT 0,
    trading_velocity REAL DEFAULT 0,
    total_volume REAL DEFAULT 0,
    metrics TEXT DEFAULT '{}',
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_runs_token ON analysis_runs(token_address, created_at);

CREATE TABLE IF NOT EXISTS wallet_categories (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id INTEGER REFERENCES analysis_runs(id),
    address TEXT NOT NULL,
    category TEXT NOT NULL,
    trade_count INTEGER DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_categories_run ON wallet_categories(run_id);
`

type Store struct {
	db *sql.DB
}

func NewStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// AnalysisRow is a stored analysis snapshot. Metrics holds the full
// serialized Analysis for the API history endpoint.
type AnalysisRow struct {
	ID               int64     `json:"id"`
	TokenAddress     string    `json:"token_address"`
	WindowMinutes    int       `json:"window_minutes"`
	TransactionCount int       `json:"transaction_count"`
	ActiveWallets    int       `json:"active_wallets"`
	TradingVelocity  float64   `json:"trading_velocity"`
	TotalVolume      float64   `json:"total_volume"`
	Metrics          string    `json:"metrics"`
	CreatedAt        time.Time `json:"created_at"`
}

// InsertAnalysis persists one snapshot plus its per-wallet category
// assignments, returning the run id.
func (s *Store) InsertAnalysis(a *analyzer.Analysis) (int64, error) {
	metrics, err := json.Marshal(a)
	if err != nil {
		return 0, fmt.Errorf("marshal analysis: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		INSERT INTO analysis_runs
		(token_address, window_minutes, transaction_count, active_wallets, trading_velocity, total_volume, metrics)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.TokenAddress, a.WindowMinutes, a.TransactionCount, a.ActiveWallets,
		a.TradingVelocity, a.TotalVolume, string(metrics))
	if err != nil {
		return 0, err
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	tradeCounts := map[string]int{}
	for _, vt := range a.Transactions {
		tradeCounts[vt.Wallet]++
	}
	for addr, cat := range a.WalletCategories {
		if _, err := tx.Exec(`
			INSERT INTO wallet_categories (run_id, address, category, trade_count)
			VALUES (?, ?, ?, ?)`,
			runID, addr, string(cat), tradeCounts[addr]); err != nil {
			return 0, err
		}
	}

	return runID, tx.Commit()
}

// History returns the most recent snapshots for a token, newest first.
func (s *Store) History(token string, limit int) ([]AnalysisRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`
		SELECT id, token_address, window_minutes, transaction_count, active_wallets,
		       trading_velocity, total_volume, metrics, created_at
		FROM analysis_runs WHERE token_address = ?
		ORDER BY created_at DESC LIMIT ?`, token, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AnalysisRow
	for rows.Next() {
		var r AnalysisRow
		if err := rows.Scan(&r.ID, &r.TokenAddress, &r.WindowMinutes, &r.TransactionCount,
			&r.ActiveWallets, &r.TradingVelocity, &r.TotalVolume, &r.Metrics, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// CategoriesForRun returns wallet→category for one stored run.
func (s *Store) CategoriesForRun(runID int64) (map[string]string, error) {
	rows, err := s.db.Query(`SELECT address, category FROM wallet_categories WHERE run_id = ?`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]string{}
	for rows.Next() {
		var addr, cat string
		if err := rows.Scan(&addr, &cat); err != nil {
			return nil, err
		}
		out[addr] = cat
	}
	return out, rows.Err()
}

// Stats returns row counts for the health endpoint.
func (s *Store) Stats() (map[string]int64, error) {
	stats := map[string]int64{}
	for _, table := range []string{"analysis_runs", "wallet_categories"} {
		var n int64
		if err := s.db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
			return nil, err
		}
		stats[table] = n
	}
	return stats, nil
}
