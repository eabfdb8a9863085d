package client

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"wallet_indexer/internal/app/port"
	"wallet_indexer/internal/domain/entity"

	"go.uber.org/zap"
)

const defaultProviderConnectionTimeout = 10 * time.Second

// EVMClientProvider dials and caches one EVMClient per chain.
type EVMClientProvider struct {
	networks          port.NetworkDefinitionProvider
	httpClient        *http.Client
	logger            *zap.Logger
	connectionTimeout time.Duration

	mu      sync.Mutex
	clients map[entity.Chain]*EVMClient
}

// NewEVMClientProvider creates a provider resolving endpoints through networks.
func NewEVMClientProvider(networks port.NetworkDefinitionProvider, httpClient *http.Client, logger *zap.Logger) *EVMClientProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EVMClientProvider{
		networks:          networks,
		httpClient:        httpClient,
		logger:            logger.Named("EVMClientProvider"),
		connectionTimeout: defaultProviderConnectionTimeout,
		clients:           make(map[entity.Chain]*EVMClient),
	}
}

// GetClient returns the cached client for chain, dialing it on first use.
func (p *EVMClientProvider) GetClient(ctx context.Context, chain entity.Chain) (*EVMClient, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if c, ok := p.clients[chain]; ok {
		return c, nil
	}

	def, ok := p.networks.GetNetworkDefinition(chain)
	if !ok || def.Family != entity.FamilyEVM {
		return nil, entity.NewSyncError(entity.KindConfig, chain, "dial", fmt.Errorf("no EVM network configured for %s", chain))
	}
	endpoint := p.networks.Endpoint(chain)

	p.logger.Info("Creating new EVM client", zap.String("chain", chain.String()), zap.String("endpoint", endpoint))
	dialCtx, cancel := context.WithTimeout(ctx, p.connectionTimeout)
	defer cancel()
	c, err := DialEVMClient(dialCtx, chain, endpoint, p.httpClient)
	if err != nil {
		p.logger.Error("Failed to create EVM client", zap.String("chain", chain.String()), zap.Error(err))
		return nil, err
	}
	p.clients[chain] = c
	return c, nil
}

// Close closes every cached client.
func (p *EVMClientProvider) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for chain, c := range p.clients {
		c.Close()
		delete(p.clients, chain)
	}
}
