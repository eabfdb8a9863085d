package tokenloader

import (
	"fmt"
	"strings"

	"wallet_indexer/internal/domain/entity"
	"wallet_indexer/internal/pkg/utils"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// TokenFileLoader reads per-chain token lists from JSON files.
type TokenFileLoader struct {
	files  map[entity.Chain]string
	logger *zap.Logger
}

// NewTokenLoader creates a loader over chain -> file path.
func NewTokenLoader(files map[entity.Chain]string, logger *zap.Logger) *TokenFileLoader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TokenFileLoader{files: files, logger: logger.Named("TokenLoader")}
}

// GetTokensByChain loads every configured file. A file that cannot be read
// or decoded is an error; individual tokens with a mismatched chain id, an
// invalid contract address or the zero address are skipped.
func (l *TokenFileLoader) GetTokensByChain() (map[entity.Chain][]entity.TokenInfo, error) {
	out := make(map[entity.Chain][]entity.TokenInfo, len(l.files))
	for chain, path := range l.files {
		chainID, ok := chain.ChainID()
		if !ok {
			l.logger.Warn("Token list configured for a non-EVM chain, skipping", zap.String("chain", chain.String()), zap.String("path", path))
			continue
		}

		var tokens []entity.TokenInfo
		if err := utils.ReadJSONFile(path, &tokens); err != nil {
			return nil, fmt.Errorf("load tokens for %s: %w", chain, err)
		}

		valid := make([]entity.TokenInfo, 0, len(tokens))
		seen := make(map[string]struct{}, len(tokens))
		for _, token := range tokens {
			if token.ChainID != 0 && token.ChainID != chainID {
				l.logger.Warn("Token has mismatched chain id, skipping",
					zap.String("path", path),
					zap.String("symbol", token.Symbol),
					zap.Uint64("tokenChainId", token.ChainID),
					zap.Uint64("expectedChainId", chainID))
				continue
			}
			if strings.EqualFold(token.Address, entity.ZeroAddress) {
				l.logger.Debug("Native placeholder in token list, skipping", zap.String("path", path), zap.String("symbol", token.Symbol))
				continue
			}
			if !common.IsHexAddress(token.Address) {
				l.logger.Warn("Token has invalid contract address, skipping",
					zap.String("path", path), zap.String("symbol", token.Symbol), zap.String("address", token.Address))
				continue
			}
			key := strings.ToLower(token.Address)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			token.ChainID = chainID
			token.Symbol = strings.ToUpper(strings.TrimSpace(token.Symbol))
			valid = append(valid, token)
		}
		out[chain] = valid
		l.logger.Info("Tokens loaded", zap.String("chain", chain.String()), zap.Int("count", len(valid)))
	}
	return out, nil
}
