package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/common"
	_ "github.com/mattn/go-sqlite3"
)

const tokenCacheSchema = `
CREATE TABLE IF NOT EXISTS tokens (
	chain_id INTEGER NOT NULL,
	address  TEXT NOT NULL,
	symbol   TEXT NOT NULL,
	decimals INTEGER NOT NULL,
	PRIMARY KEY (chain_id, address)
);`

// TokenCache persists token metadata (symbol, decimals) in a local sqlite
// file so repeat runs skip the on-chain lookups. Metadata never changes for
// a deployed token, so entries are never invalidated.
type TokenCache struct {
	db *sql.DB
}

func NewTokenCache(dbPath string) (*TokenCache, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}

	// WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	if _, err := db.Exec(tokenCacheSchema); err != nil {
		return nil, fmt.Errorf("initialise schema: %w", err)
	}

	return &TokenCache{db: db}, nil
}

func (c *TokenCache) Close() error {
	return c.db.Close()
}

func (c *TokenCache) Get(chainID int64, addr common.Address) (symbol string, decimals uint8, ok bool) {
	err := c.db.QueryRow(
		"SELECT symbol, decimals FROM tokens WHERE chain_id = ? AND address = ?",
		chainID, addr.Hex(),
	).Scan(&symbol, &decimals)

	if err == sql.ErrNoRows {
		return "", 0, false
	}
	if err != nil {
		return "", 0, false
	}

	return symbol, decimals, true
}

func (c *TokenCache) Put(chainID int64, addr common.Address, symbol string, decimals uint8) error {
	_, err := c.db.Exec(
		"INSERT OR REPLACE INTO tokens (chain_id, address, symbol, decimals) VALUES (?, ?, ?, ?)",
		chainID, addr.Hex(), symbol, decimals,
	)
	return err
}

// Stats for monitoring cache contents
func (c *TokenCache) Stats() (map[string]int64, error) {
	stats := make(map[string]int64)

	var count int64
	if err := c.db.QueryRow("SELECT COUNT(*) FROM tokens").Scan(&count); err != nil {
		return nil, err
	}
	stats["token_entries"] = count

	return stats, nil
}
