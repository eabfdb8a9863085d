package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"wallet_indexer/internal/app/port"
	"wallet_indexer/internal/domain/entity"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// WalletSyncService syncs one wallet at a time through the indexer and writes
// the fetched balances back onto the wallet.
type WalletSyncService struct {
	indexer port.Indexer
	repo    port.SyncStatsRepository
	logger  *zap.Logger
	now     func() time.Time
}

// NewWalletSyncService creates the service. repo may be nil, in which case
// stats are only returned to the caller.
func NewWalletSyncService(indexer port.Indexer, repo port.SyncStatsRepository, logger *zap.Logger) *WalletSyncService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WalletSyncService{
		indexer: indexer,
		repo:    repo,
		logger:  logger.Named("WalletSyncService"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// SyncWallet fetches balances for every address of w (and its xpub, if set)
// and attaches them by position. On failure w is left in the error state with
// the failure message and the error is returned unchanged.
func (s *WalletSyncService) SyncWallet(ctx context.Context, w *entity.Wallet) (entity.SyncStats, error) {
	if w == nil {
		return entity.SyncStats{}, entity.NewSyncError(entity.KindValidation, "", "sync wallet", fmt.Errorf("nil wallet"))
	}

	entries := w.AddressStrings()
	if w.Xpub != "" {
		entries = append(entries, w.Xpub)
	}

	w.SetStatus(entity.WalletSyncing)
	start := time.Now()
	balances, err := s.indexer.SyncAddresses(ctx, w.Chain, entries)
	elapsed := time.Since(start)
	if err == nil && len(balances) != len(entries) {
		err = entity.NewSyncError(entity.KindParse, w.Chain, "sync wallet",
			fmt.Errorf("got %d balances for %d entries", len(balances), len(entries)))
	}
	if err != nil {
		w.MarkError(err.Error())
		s.logger.Warn("Wallet sync failed",
			zap.String("wallet", w.ID.String()),
			zap.String("chain", w.Chain.String()),
			zap.Error(err))
		return entity.SyncStats{}, err
	}

	var txs uint64
	for i := range w.Addresses {
		w.Addresses[i].UpdateBalance(balances[i])
		txs += balances[i].TxCount
	}
	if w.Xpub != "" {
		xb := balances[len(w.Addresses)]
		w.XpubBalance = &xb
		txs += xb.TxCount
	}
	w.MarkSynced()

	stats := entity.SyncStats{
		WalletID:          w.ID,
		SyncDurationMs:    uint64(elapsed.Milliseconds()),
		AddressesSynced:   uint32(len(entries)),
		TransactionsFound: uint32(min(txs, math.MaxUint32)),
		CompletedAt:       s.now(),
	}
	s.logger.Info("Wallet synced",
		zap.String("wallet", w.ID.String()),
		zap.String("chain", w.Chain.String()),
		zap.Int("entries", len(entries)),
		zap.Uint32("transactions", stats.TransactionsFound),
		zap.Duration("elapsed", elapsed))
	return stats, nil
}

// SyncAndPersist syncs w and hands the resulting stats to the repository.
// A persistence failure is logged and does not fail the sync.
func (s *WalletSyncService) SyncAndPersist(ctx context.Context, w *entity.Wallet) (entity.SyncStats, error) {
	stats, err := s.SyncWallet(ctx, w)
	if err != nil {
		return stats, err
	}
	if s.repo != nil {
		if err := s.repo.Save(ctx, stats); err != nil {
			s.logger.Error("Failed to persist sync stats", zap.String("wallet", w.ID.String()), zap.Error(err))
		}
	}
	return stats, nil
}

// LatestStats returns the last persisted stats for a wallet, or nil.
func (s *WalletSyncService) LatestStats(ctx context.Context, walletID uuid.UUID) (*entity.SyncStats, error) {
	if s.repo == nil {
		return nil, nil
	}
	return s.repo.Latest(ctx, walletID)
}
