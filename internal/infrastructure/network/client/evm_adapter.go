package client

import (
	"context"
	"fmt"
	"time"

	"wallet_indexer/internal/domain/entity"
	"wallet_indexer/internal/pkg/utils"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// EVMAdapter is the chain adapter for Ethereum-compatible chains. sem bounds
// the RPC requests in flight across all concurrent calls.
type EVMAdapter struct {
	provider *EVMClientProvider
	chains   []entity.Chain
	tokens   map[entity.Chain][]entity.TokenInfo
	opts     AdapterOptions
	limiter  *rate.Limiter
	sem      *semaphore.Weighted
	logger   *zap.Logger
}

// NewEVMAdapter serves chains through provider. tokens lists the ERC-20 contracts queried per chain.
func NewEVMAdapter(
	provider *EVMClientProvider,
	chains []entity.Chain,
	tokens map[entity.Chain][]entity.TokenInfo,
	opts AdapterOptions,
	logger *zap.Logger,
) (*EVMAdapter, error) {
	for _, chain := range chains {
		if !chain.IsEVM() {
			return nil, entity.NewSyncError(entity.KindConfig, chain, "new adapter", fmt.Errorf("%s is not an EVM chain", chain))
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	opts = opts.withDefaults()
	return &EVMAdapter{
		provider: provider,
		chains:   append([]entity.Chain(nil), chains...),
		tokens:   tokens,
		opts:     opts,
		limiter:  opts.newLimiter(),
		sem:      semaphore.NewWeighted(int64(opts.MaxConcurrent)),
		logger:   logger.Named("EVMAdapter"),
	}, nil
}

// Chains lists the chains served.
func (a *EVMAdapter) Chains() []entity.Chain {
	return append([]entity.Chain(nil), a.chains...)
}

func (a *EVMAdapter) client(ctx context.Context, chain entity.Chain) (*EVMClient, error) {
	if !containsChain(a.chains, chain) {
		return nil, entity.NewSyncError(entity.KindConfig, chain, "adapter", fmt.Errorf("chain %s is not served by the EVM adapter", chain))
	}
	return a.provider.GetClient(ctx, chain)
}

// SyncAddresses fetches native balance, nonce and tracked token balances for
// every address at the current head block.
func (a *EVMAdapter) SyncAddresses(ctx context.Context, chain entity.Chain, addresses []string) ([]entity.Balance, error) {
	for _, addr := range addresses {
		if !common.IsHexAddress(addr) {
			return nil, entity.NewSyncError(entity.KindValidation, chain, "sync", fmt.Errorf("invalid address %q", addr))
		}
	}

	ctx, cancel := context.WithTimeout(ctx, a.opts.Timeout)
	defer cancel()

	c, err := a.client(ctx, chain)
	if err != nil {
		return nil, err
	}
	if len(addresses) == 0 {
		return []entity.Balance{}, nil
	}

	head, err := a.headBlock(ctx, c, chain)
	if err != nil {
		return nil, err
	}

	tokens := a.tokens[chain]
	balances := make([]entity.Balance, len(addresses))
	indices := make([]int, len(addresses))
	for i := range indices {
		indices[i] = i
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, batch := range utils.Batch(indices, a.opts.BatchSize) {
		if err := a.sem.Acquire(gctx, 1); err != nil {
			g.Go(func() error { return entity.ClassifyTransportError(chain, "sync", err) })
			break
		}
		g.Go(func() error {
			defer a.sem.Release(1)
			if err := waitLimiter(gctx, a.limiter, chain); err != nil {
				return err
			}
			results, err := c.GetBalances(gctx, head, buildBalanceRequests(addresses, batch, tokens))
			if err != nil {
				return err
			}
			// Each batch owns a disjoint set of indices.
			for _, idx := range batch {
				balances[idx] = entity.NewBalance(chain, "0", head)
			}
			for _, r := range results {
				applyResult(&balances[r.Request.AddressIndex], chain, r)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		a.logger.Warn("EVM sync failed",
			zap.String("chain", chain.String()),
			zap.Int("addresses", len(addresses)),
			zap.Error(err))
		return nil, err
	}

	a.logger.Debug("EVM sync complete",
		zap.String("chain", chain.String()),
		zap.Uint64("block", head),
		zap.Int("addresses", len(addresses)),
		zap.Int("tokens", len(tokens)))
	return balances, nil
}

func buildBalanceRequests(addresses []string, batch []int, tokens []entity.TokenInfo) []entity.BalanceRequestItem {
	requests := make([]entity.BalanceRequestItem, 0, len(batch)*(2+len(tokens)))
	for _, idx := range batch {
		addr := addresses[idx]
		requests = append(requests,
			entity.BalanceRequestItem{AddressIndex: idx, Type: entity.NativeBalanceRequest, WalletAddress: addr},
			entity.BalanceRequestItem{AddressIndex: idx, Type: entity.TxCountRequest, WalletAddress: addr},
		)
		for _, token := range tokens {
			requests = append(requests, entity.BalanceRequestItem{
				AddressIndex:  idx,
				Type:          entity.TokenBalanceRequest,
				WalletAddress: addr,
				Token:         token,
			})
		}
	}
	return requests
}

func applyResult(b *entity.Balance, chain entity.Chain, r entity.BalanceResultItem) {
	switch r.Request.Type {
	case entity.NativeBalanceRequest:
		b.Native = utils.FormatBigInt(r.Value, chain.NativeDecimals())
	case entity.TxCountRequest:
		b.TxCount = r.Value.Uint64()
	case entity.TokenBalanceRequest:
		token := r.Request.Token
		b.SetToken(token.Address, entity.TokenBalance{
			Symbol:           token.Symbol,
			Name:             token.Name,
			Decimals:         token.Decimals,
			RawBalance:       r.Value.String(),
			FormattedBalance: utils.FormatBigInt(r.Value, token.Decimals),
		})
	}
}

// GetCurrentBlock returns the head block seen by the chain endpoint.
func (a *EVMAdapter) GetCurrentBlock(ctx context.Context, chain entity.Chain) (uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, a.opts.Timeout)
	defer cancel()

	c, err := a.client(ctx, chain)
	if err != nil {
		return 0, err
	}
	return a.headBlock(ctx, c, chain)
}

func (a *EVMAdapter) headBlock(ctx context.Context, c *EVMClient, chain entity.Chain) (uint64, error) {
	if err := a.sem.Acquire(ctx, 1); err != nil {
		return 0, entity.ClassifyTransportError(chain, "block number", err)
	}
	defer a.sem.Release(1)
	if err := waitLimiter(ctx, a.limiter, chain); err != nil {
		return 0, err
	}
	return c.BlockNumber(ctx)
}

// HealthCheck checks the endpoint with eth_blockNumber.
func (a *EVMAdapter) HealthCheck(ctx context.Context, chain entity.Chain) (entity.ChainHealth, error) {
	return timedHealth(ctx, func(ctx context.Context) (uint64, error) {
		return a.GetCurrentBlock(ctx, chain)
	})
}

// timedHealth times one block-height query and converts it into a health record.
func timedHealth(ctx context.Context, headFn func(context.Context) (uint64, error)) (entity.ChainHealth, error) {
	start := time.Now()
	head, err := headFn(ctx)
	health := entity.ChainHealth{LatencyMs: uint64(time.Since(start).Milliseconds())}
	if err != nil {
		health.Error = err.Error()
		return health, err
	}
	health.Connected = true
	health.LatestBlock = head
	return health, nil
}
