package provider

import (
	"sync"

	"wallet_indexer/internal/app/port"
	"wallet_indexer/internal/domain/entity"

	"go.uber.org/zap"
)

type tokenProviderImpl struct {
	source port.TokenProvider
	logger *zap.Logger

	mu     sync.Mutex
	tokens map[entity.Chain][]entity.TokenInfo
}

// NewTokenProvider wraps source and caches its result after the first successful load.
func NewTokenProvider(source port.TokenProvider, logger *zap.Logger) port.TokenProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &tokenProviderImpl{source: source, logger: logger.Named("TokenProvider")}
}

// GetTokensByChain returns the cached token lists, loading them on first use.
// A failed load is not cached.
func (p *tokenProviderImpl) GetTokensByChain() (map[entity.Chain][]entity.TokenInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.tokens != nil {
		p.logger.Debug("Returning cached tokens by chain")
		return p.tokens, nil
	}
	tokens, err := p.source.GetTokensByChain()
	if err != nil {
		p.logger.Error("Failed to load tokens", zap.Error(err))
		return nil, err
	}
	p.tokens = tokens
	p.logger.Info("Tokens loaded and cached", zap.Int("chains", len(tokens)))
	return tokens, nil
}
