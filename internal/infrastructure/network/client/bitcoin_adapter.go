package client

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"wallet_indexer/internal/app/port"
	"wallet_indexer/internal/domain/entity"
	explorer "wallet_indexer/internal/entity"
	"wallet_indexer/internal/infrastructure/httpclient"
	"wallet_indexer/internal/pkg/utils"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// BitcoinAdapter is the chain adapter for Bitcoin, backed by a
// Blockstream-compatible explorer API.
type BitcoinAdapter struct {
	networks port.NetworkDefinitionProvider
	rest     *httpclient.RESTClient
	deriver  *XpubDeriver
	opts     AdapterOptions
	sem      *semaphore.Weighted
	limiter  *rate.Limiter
	logger   *zap.Logger
}

// NewBitcoinAdapter creates the adapter. The explorer base URL is resolved through networks.
func NewBitcoinAdapter(networks port.NetworkDefinitionProvider, deriver *XpubDeriver, opts AdapterOptions, logger *zap.Logger) (*BitcoinAdapter, error) {
	if _, ok := networks.GetNetworkDefinition(entity.Bitcoin); !ok {
		return nil, entity.NewSyncError(entity.KindConfig, entity.Bitcoin, "new adapter", fmt.Errorf("bitcoin network is not configured"))
	}
	if deriver == nil {
		deriver = NewXpubDeriver(nil, 0, 0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	opts = opts.withDefaults()
	return &BitcoinAdapter{
		networks: networks,
		rest:     httpclient.NewRESTClient(opts.Timeout),
		deriver:  deriver,
		opts:     opts,
		sem:      semaphore.NewWeighted(int64(opts.MaxConcurrent)),
		limiter:  opts.newLimiter(),
		logger:   logger.Named("BitcoinAdapter"),
	}, nil
}

// Chains lists the chains served.
func (a *BitcoinAdapter) Chains() []entity.Chain {
	return []entity.Chain{entity.Bitcoin}
}

func (a *BitcoinAdapter) baseURL(chain entity.Chain) (string, error) {
	if chain != entity.Bitcoin {
		return "", entity.NewSyncError(entity.KindConfig, chain, "adapter", fmt.Errorf("chain %s is not served by the bitcoin adapter", chain))
	}
	return strings.TrimRight(a.networks.Endpoint(chain), "/"), nil
}

// SyncAddresses returns one balance per entry. An entry is either an address
// or an extended public key; the balance of an extended key aggregates every
// derived receive and change address.
func (a *BitcoinAdapter) SyncAddresses(ctx context.Context, chain entity.Chain, entries []string) ([]entity.Balance, error) {
	base, err := a.baseURL(chain)
	if err != nil {
		return nil, err
	}

	groups := make([][]string, len(entries))
	for i, entry := range entries {
		entry = strings.TrimSpace(entry)
		if IsExtendedKey(entry) {
			derived, err := a.deriver.Derive(entry)
			if err != nil {
				return nil, err
			}
			groups[i] = derived
			continue
		}
		if err := a.deriver.ValidateAddress(entry); err != nil {
			return nil, err
		}
		groups[i] = []string{entry}
	}
	if len(entries) == 0 {
		return []entity.Balance{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, a.opts.Timeout)
	defer cancel()

	head, err := a.tipHeight(ctx, base)
	if err != nil {
		return nil, err
	}

	// Each distinct address is queried once even if several entries share it.
	unique := make(map[string]int)
	var flat []string
	for _, group := range groups {
		for _, addr := range group {
			if _, ok := unique[addr]; !ok {
				unique[addr] = len(flat)
				flat = append(flat, addr)
			}
		}
	}

	stats := make([]explorer.BlockstreamAddress, len(flat))
	g, gctx := errgroup.WithContext(ctx)
	for i, addr := range flat {
		if err := a.sem.Acquire(gctx, 1); err != nil {
			break // gctx is done; g.Wait reports the cause
		}
		g.Go(func() error {
			defer a.sem.Release(1)
			if err := waitLimiter(gctx, a.limiter, chain); err != nil {
				return err
			}
			var resp explorer.BlockstreamAddress
			if err := a.rest.GetJSON(gctx, chain, "get address", base+"/address/"+addr, nil, &resp); err != nil {
				return err
			}
			stats[i] = resp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		a.logger.Warn("Bitcoin sync failed", zap.Int("entries", len(entries)), zap.Error(err))
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, entity.ClassifyTransportError(chain, "sync", err)
	}

	balances := make([]entity.Balance, len(entries))
	for i, group := range groups {
		var sats, txs int64
		for _, addr := range group {
			s := stats[unique[addr]]
			sats += s.BalanceSats()
			txs += s.TxCount()
		}
		if sats < 0 {
			return nil, entity.NewSyncError(entity.KindParse, chain, "sync", fmt.Errorf("negative balance for %s", entries[i]))
		}
		b := entity.NewBalance(chain, utils.FormatBigInt(big.NewInt(sats), chain.NativeDecimals()), head)
		b.TxCount = uint64(txs)
		balances[i] = b
	}

	a.logger.Debug("Bitcoin sync complete",
		zap.Uint64("block", head),
		zap.Int("entries", len(entries)),
		zap.Int("addressesQueried", len(flat)))
	return balances, nil
}

func (a *BitcoinAdapter) tipHeight(ctx context.Context, base string) (uint64, error) {
	if err := waitLimiter(ctx, a.limiter, entity.Bitcoin); err != nil {
		return 0, err
	}
	body, err := a.rest.Get(ctx, entity.Bitcoin, "get tip height", base+"/blocks/tip/height", nil)
	if err != nil {
		return 0, err
	}
	height, err := strconv.ParseUint(strings.TrimSpace(string(body)), 10, 64)
	if err != nil {
		return 0, entity.NewSyncError(entity.KindParse, entity.Bitcoin, "get tip height", err)
	}
	return height, nil
}

// GetCurrentBlock returns the explorer's tip height.
func (a *BitcoinAdapter) GetCurrentBlock(ctx context.Context, chain entity.Chain) (uint64, error) {
	base, err := a.baseURL(chain)
	if err != nil {
		return 0, err
	}
	ctx, cancel := context.WithTimeout(ctx, a.opts.Timeout)
	defer cancel()
	return a.tipHeight(ctx, base)
}

// HealthCheck queries the explorer's tip height endpoint.
func (a *BitcoinAdapter) HealthCheck(ctx context.Context, chain entity.Chain) (entity.ChainHealth, error) {
	return timedHealth(ctx, func(ctx context.Context) (uint64, error) {
		return a.GetCurrentBlock(ctx, chain)
	})
}
