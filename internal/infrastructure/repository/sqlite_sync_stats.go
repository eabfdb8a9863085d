package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"wallet_indexer/internal/domain/entity"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS sync_stats (
	wallet_id          TEXT PRIMARY KEY,
	sync_duration_ms   INTEGER NOT NULL,
	addresses_synced   INTEGER NOT NULL,
	transactions_found INTEGER NOT NULL,
	completed_at       TEXT NOT NULL
)`

// SQLiteSyncStatsRepository keeps the latest SyncStats of every wallet.
type SQLiteSyncStatsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLiteSyncStatsRepository opens (creating if needed) the database at path
// and ensures the schema exists.
func NewSQLiteSyncStatsRepository(ctx context.Context, path string, logger *zap.Logger) (*SQLiteSyncStatsRepository, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// single writer; busy_timeout avoids "database is locked" under concurrent saves
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, `PRAGMA busy_timeout = 5000`); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	logger.Named("SyncStatsRepository").Info("Sync stats database ready", zap.String("path", path))
	return &SQLiteSyncStatsRepository{db: db, logger: logger.Named("SyncStatsRepository")}, nil
}

// Save replaces the stats row of the wallet.
func (r *SQLiteSyncStatsRepository) Save(ctx context.Context, stats entity.SyncStats) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO sync_stats
			(wallet_id, sync_duration_ms, addresses_synced, transactions_found, completed_at)
		 VALUES (?, ?, ?, ?, ?)`,
		stats.WalletID.String(),
		int64(stats.SyncDurationMs),
		int64(stats.AddressesSynced),
		int64(stats.TransactionsFound),
		stats.CompletedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save sync stats for %s: %w", stats.WalletID, err)
	}
	return nil
}

// Latest returns the stored stats of walletID, or nil when none exist.
func (r *SQLiteSyncStatsRepository) Latest(ctx context.Context, walletID uuid.UUID) (*entity.SyncStats, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT sync_duration_ms, addresses_synced, transactions_found, completed_at
		   FROM sync_stats WHERE wallet_id = ?`, walletID.String())

	var (
		duration, addresses, txs int64
		completed                string
	)
	if err := row.Scan(&duration, &addresses, &txs, &completed); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("load sync stats for %s: %w", walletID, err)
	}
	at, err := time.Parse(time.RFC3339Nano, completed)
	if err != nil {
		return nil, fmt.Errorf("parse completed_at for %s: %w", walletID, err)
	}
	return &entity.SyncStats{
		WalletID:          walletID,
		SyncDurationMs:    uint64(duration),
		AddressesSynced:   uint32(addresses),
		TransactionsFound: uint32(txs),
		CompletedAt:       at,
	}, nil
}

// Close closes the database.
func (r *SQLiteSyncStatsRepository) Close() error {
	return r.db.Close()
}
