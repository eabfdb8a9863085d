package port

import (
	"context"

	"wallet_indexer/internal/domain/entity"
)

// ChainAdapter performs balance, block height and health queries for one chain family.
// One implementation may serve several chains; the chain argument selects the endpoint.
type ChainAdapter interface {
	// SyncAddresses returns one balance per input address, in input order.
	// A failure for any address fails the whole call.
	SyncAddresses(ctx context.Context, chain entity.Chain, addresses []string) ([]entity.Balance, error)

	// GetCurrentBlock returns the chain head seen by the configured endpoint.
	GetCurrentBlock(ctx context.Context, chain entity.Chain) (uint64, error)

	// HealthCheck checks the endpoint, bounded by the adapter timeout.
	HealthCheck(ctx context.Context, chain entity.Chain) (entity.ChainHealth, error)

	// Chains lists the chains this adapter serves.
	Chains() []entity.Chain
}

// NetworkDefinitionProvider resolves the per-deployment network definitions.
type NetworkDefinitionProvider interface {
	GetAllNetworkDefinitions() []entity.NetworkDefinition
	GetNetworkDefinition(chain entity.Chain) (entity.NetworkDefinition, bool)
	Endpoint(chain entity.Chain) string
}
