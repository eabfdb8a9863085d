package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"wallet_indexer/internal/app/port"
	"wallet_indexer/internal/domain/entity"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrWalletNotFound is returned when a wallet id is not in the cache.
	ErrWalletNotFound = errors.New("wallet not found")
	// ErrSyncInProgress is returned when the wallet is already being synced.
	ErrSyncInProgress = errors.New("wallet sync already in progress")
)

const (
	defaultSchedulerTick        = 30 * time.Second
	defaultSchedulerConcurrency = 4
)

// SchedulerOptions configures SyncScheduler. Interval returns how stale a
// wallet on chain may get before it is synced again.
type SchedulerOptions struct {
	Tick        time.Duration
	Concurrency int
	Interval    func(chain entity.Chain) time.Duration
}

// SyncScheduler periodically syncs cached wallets that are due.
type SyncScheduler struct {
	store  port.WalletStore
	syncer *WalletSyncService
	opts   SchedulerOptions
	logger *zap.Logger
	now    func() time.Time
}

// NewSyncScheduler creates a scheduler over store.
func NewSyncScheduler(store port.WalletStore, syncer *WalletSyncService, opts SchedulerOptions, logger *zap.Logger) *SyncScheduler {
	if opts.Tick <= 0 {
		opts.Tick = defaultSchedulerTick
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultSchedulerConcurrency
	}
	if opts.Interval == nil {
		opts.Interval = func(entity.Chain) time.Duration { return time.Minute }
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncScheduler{
		store:  store,
		syncer: syncer,
		opts:   opts,
		logger: logger.Named("SyncScheduler"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Run syncs due wallets on every tick until ctx is cancelled.
func (s *SyncScheduler) Run(ctx context.Context) {
	s.logger.Info("Scheduler started", zap.Duration("tick", s.opts.Tick), zap.Int("concurrency", s.opts.Concurrency))
	ticker := time.NewTicker(s.opts.Tick)
	defer ticker.Stop()

	s.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler stopped")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// DueWallets returns the cached wallets whose last sync is older than their chain's interval.
func (s *SyncScheduler) DueWallets() []*entity.Wallet {
	now := s.now()
	var due []*entity.Wallet
	for _, w := range s.store.ListWallets() {
		if w.Status == entity.WalletInactive || w.Status == entity.WalletSyncing {
			continue
		}
		if w.NeedsSync(s.opts.Interval(w.Chain), now) {
			due = append(due, w)
		}
	}
	return due
}

// RunOnce syncs every due wallet and reports how many succeeded and failed.
// Failed wallets are written back in the error state and retried next run.
// Wallets removed or claimed by another sync since listing count as neither.
func (s *SyncScheduler) RunOnce(ctx context.Context) (synced, failed int) {
	due := s.DueWallets()
	if len(due) == 0 {
		return 0, 0
	}

	results := make([]error, len(due))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)
	for i, w := range due {
		g.Go(func() error {
			// per-wallet errors are collected, not returned, so one failure does not cancel the rest
			results[i] = s.syncOne(gctx, w)
			return nil
		})
	}
	_ = g.Wait()

	for _, err := range results {
		switch {
		case err == nil:
			synced++
		case errors.Is(err, ErrWalletNotFound), errors.Is(err, ErrSyncInProgress):
		default:
			failed++
		}
	}
	s.logger.Info("Scheduled sync finished", zap.Int("due", len(due)), zap.Int("synced", synced), zap.Int("failed", failed))
	return synced, failed
}

func (s *SyncScheduler) syncOne(ctx context.Context, w *entity.Wallet) error {
	_, _, err := syncAndStore(ctx, s.syncer, s.store, w.ID)
	return err
}

// SyncCached syncs the cached wallet id now, regardless of its schedule.
func (s *SyncScheduler) SyncCached(ctx context.Context, id uuid.UUID) (*entity.Wallet, entity.SyncStats, error) {
	return syncAndStore(ctx, s.syncer, s.store, id)
}

// syncAndStore marks the cached wallet id as syncing, syncs a copy of it and
// merges the outcome into whatever is cached under id afterwards. A wallet
// removed mid-sync stays removed; the synced copy is still returned.
func syncAndStore(ctx context.Context, syncer *WalletSyncService, store port.WalletStore, id uuid.UUID) (*entity.Wallet, entity.SyncStats, error) {
	var (
		claimed *entity.Wallet
		busy    bool
	)
	_, found := store.UpdateWallet(id, func(w *entity.Wallet) map[string]entity.Balance {
		if w.Status == entity.WalletSyncing {
			busy = true
			return nil
		}
		w.SetStatus(entity.WalletSyncing)
		claimed = w.Clone()
		return nil
	})
	if !found {
		return nil, entity.SyncStats{}, ErrWalletNotFound
	}
	if busy {
		return nil, entity.SyncStats{}, ErrSyncInProgress
	}

	stats, err := syncer.SyncAndPersist(ctx, claimed)
	merged, ok := store.UpdateWallet(id, func(cur *entity.Wallet) map[string]entity.Balance {
		return mergeSyncResult(cur, claimed, err == nil)
	})
	if !ok {
		merged = claimed
	}
	return merged, stats, err
}

// mergeSyncResult folds the synced copy into cur, the wallet cached now, and
// returns the balances to cache. Balances are matched by address, so edits
// made while the sync ran are kept. The sync outcome only replaces the status
// if cur is still the wallet that was claimed.
func mergeSyncResult(cur, synced *entity.Wallet, ok bool) map[string]entity.Balance {
	if cur.Status == entity.WalletSyncing {
		cur.Status = synced.Status
		cur.StatusMessage = synced.StatusMessage
		cur.UpdatedAt = synced.UpdatedAt
		if synced.LastSync != nil {
			at := *synced.LastSync
			cur.LastSync = &at
		}
	}
	if !ok || cur.Chain != synced.Chain {
		return nil
	}

	fetched := make(map[string]*entity.Balance, len(synced.Addresses))
	for _, a := range synced.Addresses {
		if a.Balance != nil {
			fetched[addressKey(a.Address)] = a.Balance
		}
	}
	out := make(map[string]entity.Balance, len(fetched)+1)
	for i := range cur.Addresses {
		b, hit := fetched[addressKey(cur.Addresses[i].Address)]
		if !hit {
			continue
		}
		cur.Addresses[i].UpdateBalance(b.Clone())
		out[cur.Addresses[i].Address] = *b
	}
	if cur.Xpub != "" && cur.Xpub == synced.Xpub && synced.XpubBalance != nil {
		xb := synced.XpubBalance.Clone()
		cur.XpubBalance = &xb
		out[cur.Xpub] = xb
	}
	return out
}

// addressKey folds hex addresses to lower case; other formats are case sensitive.
func addressKey(address string) string {
	address = strings.TrimSpace(address)
	if strings.HasPrefix(address, "0x") || strings.HasPrefix(address, "0X") {
		return strings.ToLower(address)
	}
	return address
}
