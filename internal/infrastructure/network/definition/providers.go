package networkdefinition

import (
	"fmt"

	"wallet_indexer/internal/domain/entity"

	"go.uber.org/zap"
)

// Registry serves the static chain definitions together with the endpoints
// resolved from configuration.
type Registry struct {
	logger    *zap.Logger
	active    []entity.NetworkDefinition
	endpoints map[entity.Chain]string
}

// NewRegistry activates every chain in chains. endpoints overrides the default
// RPC or explorer URL per chain; chains missing from it keep their default.
func NewRegistry(chains []entity.Chain, endpoints map[entity.Chain]string, logger *zap.Logger) (*Registry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{
		logger:    logger.Named("NetworkRegistry"),
		endpoints: make(map[entity.Chain]string, len(chains)),
	}

	seen := make(map[entity.Chain]struct{}, len(chains))
	for _, chain := range chains {
		if _, dup := seen[chain]; dup {
			r.logger.Warn("Duplicate chain in registry input, skipping", zap.String("chain", chain.String()))
			continue
		}
		def, ok := chain.Definition()
		if !ok {
			return nil, entity.NewSyncError(entity.KindConfig, chain, "registry", fmt.Errorf("unsupported chain %q", chain))
		}
		endpoint := def.DefaultEndpoint
		if override, ok := endpoints[chain]; ok && override != "" {
			endpoint = override
		}
		r.active = append(r.active, def)
		r.endpoints[chain] = endpoint
		seen[chain] = struct{}{}
		r.logger.Debug("Chain activated",
			zap.String("chain", chain.String()),
			zap.String("name", def.Name),
			zap.String("endpoint", endpoint))
	}

	if len(r.active) == 0 {
		r.logger.Warn("No chains activated")
	} else {
		r.logger.Info("Network registry initialized", zap.Int("activeChains", len(r.active)))
	}
	return r, nil
}

// GetAllNetworkDefinitions returns the active definitions in activation order.
func (r *Registry) GetAllNetworkDefinitions() []entity.NetworkDefinition {
	if r == nil {
		return []entity.NetworkDefinition{}
	}
	out := make([]entity.NetworkDefinition, len(r.active))
	copy(out, r.active)
	return out
}

// GetNetworkDefinition returns the definition of chain if it is active.
func (r *Registry) GetNetworkDefinition(chain entity.Chain) (entity.NetworkDefinition, bool) {
	if r == nil {
		return entity.NetworkDefinition{}, false
	}
	for _, def := range r.active {
		if def.Chain == chain {
			return def, true
		}
	}
	return entity.NetworkDefinition{}, false
}

// Endpoint returns the URL the adapter for chain should talk to.
func (r *Registry) Endpoint(chain entity.Chain) string {
	if r == nil {
		return chain.DefaultEndpoint()
	}
	if ep, ok := r.endpoints[chain]; ok {
		return ep
	}
	return chain.DefaultEndpoint()
}

// Chains returns the active chains filtered by family.
func (r *Registry) Chains(family entity.ChainFamily) []entity.Chain {
	if r == nil {
		return nil
	}
	var out []entity.Chain
	for _, def := range r.active {
		if def.Family == family {
			out = append(out, def.Chain)
		}
	}
	return out
}
