package provider

import (
	"wallet_indexer/internal/app/port"

	"go.uber.org/zap"
)

// SeedWallets puts every wallet of source into store and returns how many were added.
// Wallets already present in store are left untouched.
func SeedWallets(source port.WalletProvider, store port.WalletStore, logger *zap.Logger) (int, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	wallets, err := source.GetWallets()
	if err != nil {
		logger.Error("Failed to load seed wallets", zap.Error(err))
		return 0, err
	}
	added := 0
	for _, w := range wallets {
		if _, ok := store.GetWallet(w.ID); ok {
			continue
		}
		store.PutWallet(w)
		added++
	}
	logger.Info("Seed wallets cached", zap.Int("loaded", len(wallets)), zap.Int("added", added))
	return added, nil
}
