package port

import (
	"context"

	"wallet_indexer/internal/domain/entity"

	"github.com/google/uuid"
)

// WalletProvider loads the wallets tracked at startup.
type WalletProvider interface {
	GetWallets() ([]*entity.Wallet, error)
}

// Indexer is the part of the multi-chain indexer the wallet sync service relies on.
type Indexer interface {
	SyncAddresses(ctx context.Context, chain entity.Chain, addresses []string) ([]entity.Balance, error)
}

// SyncStatsRepository persists per-wallet sync statistics.
type SyncStatsRepository interface {
	Save(ctx context.Context, stats entity.SyncStats) error
	Latest(ctx context.Context, walletID uuid.UUID) (*entity.SyncStats, error)
}

// WalletStore is the read-through cache the scheduler and HTTP layer share.
// UpdateWallet and DeleteWallet touch a wallet and its address balances as
// one step.
type WalletStore interface {
	GetWallet(id uuid.UUID) (*entity.Wallet, bool)
	PutWallet(w *entity.Wallet)
	RemoveWallet(id uuid.UUID)
	UpdateWallet(id uuid.UUID, fn func(w *entity.Wallet) map[string]entity.Balance) (*entity.Wallet, bool)
	DeleteWallet(id uuid.UUID) bool
	ListWallets() []*entity.Wallet
	GetBalance(address string) (entity.Balance, bool)
	PutBalance(address string, b entity.Balance)
	RemoveBalance(address string)
}
