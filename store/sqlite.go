package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore persists claims across restarts of a single instance.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) init() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS proof_claims (
		tx_hash TEXT PRIMARY KEY,
		binding TEXT NOT NULL,
		claimed_at INTEGER NOT NULL
	)`)
	return err
}

func (s *SQLiteStore) Claim(ctx context.Context, txHash, binding string) error {
	key := normalize(txHash)

	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO proof_claims (tx_hash, binding, claimed_at) VALUES (?, ?, ?)`,
		key, binding, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("claim proof: %w", err)
	}

	var existing string
	if err := s.db.QueryRowContext(ctx,
		`SELECT binding FROM proof_claims WHERE tx_hash = ?`, key,
	).Scan(&existing); err != nil {
		return fmt.Errorf("read proof claim: %w", err)
	}

	if existing != binding {
		return ErrProofReused
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
