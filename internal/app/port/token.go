package port

import (
	"context"

	"wallet_indexer/internal/domain/entity"
)

// TokenProvider returns the token contracts tracked on each EVM chain.
type TokenProvider interface {
	GetTokensByChain() (map[entity.Chain][]entity.TokenInfo, error)
}

// PriceOracle fetches USD prices from a third-party pricing service.
type PriceOracle interface {
	// GetPrices returns upper-cased symbol -> USD price. Unknown symbols are absent.
	GetPrices(ctx context.Context, symbols []string) (map[string]float64, error)
	HealthCheck(ctx context.Context) error
}
