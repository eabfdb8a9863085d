package walletloader

import (
	"fmt"
	"strings"

	"wallet_indexer/internal/domain/entity"
	"wallet_indexer/internal/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// WalletDefinition is one entry of the seed wallets file.
type WalletDefinition struct {
	ID        string   `json:"id,omitempty"`
	Name      string   `json:"name"`
	Type      string   `json:"type,omitempty"`
	Chain     string   `json:"chain"`
	Addresses []string `json:"addresses"`
	Xpub      string   `json:"xpub,omitempty"`
	Tags      []string `json:"tags,omitempty"`
	Inactive  bool     `json:"inactive,omitempty"`
}

// WalletFileLoader reads seed wallets from a JSON file.
type WalletFileLoader struct {
	filePath string
	logger   *zap.Logger
}

// NewWalletFileLoader creates a loader for filePath.
func NewWalletFileLoader(filePath string, logger *zap.Logger) *WalletFileLoader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WalletFileLoader{filePath: filePath, logger: logger.Named("WalletLoader")}
}

// GetWallets decodes the file. Malformed entries are skipped with a warning;
// an unreadable file is an error.
func (l *WalletFileLoader) GetWallets() ([]*entity.Wallet, error) {
	var defs []WalletDefinition
	if err := utils.ReadJSONFile(l.filePath, &defs); err != nil {
		return nil, fmt.Errorf("load wallets: %w", err)
	}

	wallets := make([]*entity.Wallet, 0, len(defs))
	for i, def := range defs {
		w, err := def.ToWallet()
		if err != nil {
			l.logger.Warn("Skipping invalid wallet definition", zap.String("path", l.filePath), zap.Int("index", i), zap.Error(err))
			continue
		}
		wallets = append(wallets, w)
	}
	l.logger.Info("Wallets loaded", zap.String("path", l.filePath), zap.Int("count", len(wallets)))
	return wallets, nil
}

// ToWallet validates d and builds a wallet from it.
func (d WalletDefinition) ToWallet() (*entity.Wallet, error) {
	chain, err := entity.ParseChain(d.Chain)
	if err != nil {
		return nil, err
	}
	if len(d.Addresses) == 0 && strings.TrimSpace(d.Xpub) == "" {
		return nil, fmt.Errorf("wallet %q has neither addresses nor xpub", d.Name)
	}
	if d.Xpub != "" && chain != entity.Bitcoin {
		return nil, fmt.Errorf("wallet %q: xpub is only supported on %s", d.Name, entity.Bitcoin)
	}

	walletType := entity.WalletWatchOnly
	switch entity.WalletType(strings.ToLower(d.Type)) {
	case "", entity.WalletWatchOnly:
	case entity.WalletCold:
		walletType = entity.WalletCold
	case entity.WalletHardware:
		walletType = entity.WalletHardware
	default:
		return nil, fmt.Errorf("wallet %q: unknown type %q", d.Name, d.Type)
	}

	w := entity.NewWallet(d.Name, walletType, chain, d.Addresses, d.Xpub)
	if d.ID != "" {
		id, err := uuid.Parse(d.ID)
		if err != nil {
			return nil, fmt.Errorf("wallet %q: invalid id: %w", d.Name, err)
		}
		w.ID = id
	}
	w.Tags = d.Tags
	if d.Inactive {
		w.SetStatus(entity.WalletInactive)
	}
	return w, nil
}
