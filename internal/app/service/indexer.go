package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"wallet_indexer/internal/app/port"
	"wallet_indexer/internal/domain/entity"
	"wallet_indexer/internal/pkg/metrics"
	"wallet_indexer/internal/pkg/utils"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// MultiChainIndexer dispatches sync and block queries to the adapter of each
// chain, values balances through the price oracle, and tracks per-chain sync state.
type MultiChainIndexer struct {
	adapters map[entity.Chain]port.ChainAdapter
	chains   []entity.Chain
	oracle   port.PriceOracle
	state    *syncStateStore
	metrics  *metrics.Metrics
	logger   *zap.Logger
	now      func() time.Time
}

// NewMultiChainIndexer registers every chain served by adapters. Two adapters
// serving the same chain, or a missing oracle, is a configuration error.
func NewMultiChainIndexer(adapters []port.ChainAdapter, oracle port.PriceOracle, m *metrics.Metrics, logger *zap.Logger) (*MultiChainIndexer, error) {
	if oracle == nil {
		return nil, entity.NewSyncError(entity.KindConfig, "", "new indexer", fmt.Errorf("price oracle is required"))
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	idx := &MultiChainIndexer{
		adapters: make(map[entity.Chain]port.ChainAdapter),
		oracle:   oracle,
		state:    newSyncStateStore(),
		metrics:  m,
		logger:   logger.Named("MultiChainIndexer"),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, adapter := range adapters {
		for _, chain := range adapter.Chains() {
			if _, dup := idx.adapters[chain]; dup {
				return nil, entity.NewSyncError(entity.KindConfig, chain, "register adapter", fmt.Errorf("chain %s served by more than one adapter", chain))
			}
			idx.adapters[chain] = adapter
			idx.chains = append(idx.chains, chain)
		}
	}
	idx.logger.Info("Indexer initialized", zap.Int("chains", len(idx.chains)))
	return idx, nil
}

// Chains returns the configured chains in registration order.
func (i *MultiChainIndexer) Chains() []entity.Chain {
	return append([]entity.Chain(nil), i.chains...)
}

func (i *MultiChainIndexer) adapter(chain entity.Chain) (port.ChainAdapter, error) {
	a, ok := i.adapters[chain]
	if !ok {
		return nil, entity.NewSyncError(entity.KindConfig, chain, "dispatch", fmt.Errorf("no adapter configured for chain %s", chain))
	}
	return a, nil
}

// SyncAddresses fetches balances for addresses on chain, in input order.
// The chain's SyncState is upserted on success; on failure only its error log grows.
func (i *MultiChainIndexer) SyncAddresses(ctx context.Context, chain entity.Chain, addresses []string) ([]entity.Balance, error) {
	a, err := i.adapter(chain)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	balances, err := a.SyncAddresses(ctx, chain, addresses)
	elapsed := time.Since(start)
	if err == nil && len(balances) != len(addresses) {
		err = entity.NewSyncError(entity.KindParse, chain, "sync",
			fmt.Errorf("adapter returned %d balances for %d addresses", len(balances), len(addresses)))
	}
	i.metrics.ObserveSync(chain.String(), len(addresses), elapsed, err)
	if err != nil {
		i.state.recordFailure(chain, err.Error())
		i.logger.Warn("Address sync failed",
			zap.String("chain", chain.String()),
			zap.Int("addresses", len(addresses)),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		return nil, err
	}

	var head *uint64
	for _, b := range balances {
		if b.BlockNumber != nil && (head == nil || *b.BlockNumber > *head) {
			bn := *b.BlockNumber
			head = &bn
		}
	}
	i.state.recordSuccess(chain, head, i.now(), elapsed, len(addresses))
	if head != nil {
		i.metrics.SetChainHead(chain.String(), *head)
	}

	i.logger.Debug("Address sync complete",
		zap.String("chain", chain.String()),
		zap.Int("addresses", len(addresses)),
		zap.Duration("elapsed", elapsed))
	return balances, nil
}

// GetCurrentBlock returns the head block of chain.
func (i *MultiChainIndexer) GetCurrentBlock(ctx context.Context, chain entity.Chain) (uint64, error) {
	a, err := i.adapter(chain)
	if err != nil {
		return 0, err
	}
	head, err := a.GetCurrentBlock(ctx, chain)
	if err != nil {
		return 0, err
	}
	i.metrics.SetChainHead(chain.String(), head)
	return head, nil
}

// GetTokenPrices returns USD prices keyed by upper-cased symbol.
func (i *MultiChainIndexer) GetTokenPrices(ctx context.Context, symbols []string) (map[string]float64, error) {
	unique := utils.UniqueUpper(symbols)
	if len(unique) == 0 {
		return map[string]float64{}, nil
	}
	return i.oracle.GetPrices(ctx, unique)
}

// nativeSymbol prices untagged balances as Ethereum.
func nativeSymbol(b entity.Balance) string {
	if b.Chain == "" {
		return entity.Ethereum.NativeSymbol()
	}
	return b.Chain.NativeSymbol()
}

// GetPortfolioValue sums the USD value of balances with a single oracle call.
// Amounts that do not parse and symbols without a finite price are skipped.
func (i *MultiChainIndexer) GetPortfolioValue(ctx context.Context, balances []entity.Balance) (float64, error) {
	var symbols []string
	for _, b := range balances {
		symbols = append(symbols, nativeSymbol(b))
		for _, tb := range b.Tokens {
			symbols = append(symbols, tb.Symbol)
		}
	}

	prices, err := i.GetTokenPrices(ctx, symbols)
	if err != nil {
		i.logger.Warn("Price lookup failed during valuation", zap.Error(err))
		return 0, err
	}

	total := decimal.Zero
	skipped := 0
	add := func(amount, symbol string) {
		price, ok := prices[strings.ToUpper(strings.TrimSpace(symbol))]
		if !ok || math.IsNaN(price) || math.IsInf(price, 0) {
			skipped++
			return
		}
		value, err := utils.ParseAmount(amount)
		if err != nil {
			skipped++
			return
		}
		total = total.Add(value.Mul(decimal.NewFromFloat(price)))
	}
	for _, b := range balances {
		add(b.Native, nativeSymbol(b))
		for _, tb := range b.Tokens {
			add(tb.FormattedBalance, tb.Symbol)
		}
	}

	if skipped > 0 {
		i.logger.Debug("Valuation skipped entries", zap.Int("skipped", skipped))
	}
	return total.InexactFloat64(), nil
}

// HealthCheck checks every adapter and the price oracle concurrently. It never
// fails: each component failure becomes a degraded entry.
func (i *MultiChainIndexer) HealthCheck(ctx context.Context) entity.IndexerHealth {
	chainHealth := make([]entity.ChainHealth, len(i.chains))
	var oracleErr error

	var wg sync.WaitGroup
	for n, chain := range i.chains {
		wg.Add(1)
		go func() {
			defer wg.Done()
			chainHealth[n] = i.checkChain(ctx, chain)
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		oracleErr = i.checkOracle(ctx)
	}()
	wg.Wait()

	report := entity.IndexerHealth{
		Healthy: true,
		Chains:  make(map[entity.Chain]entity.ChainHealth, len(i.chains)),
		Errors:  []string{},
	}
	for n, chain := range i.chains {
		h := chainHealth[n]
		report.Chains[chain] = h
		if !h.Connected {
			report.Healthy = false
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %s", chain, h.Error))
		}
	}
	if oracleErr != nil {
		report.Healthy = false
		report.Errors = append(report.Errors, fmt.Sprintf("price oracle: %v", oracleErr))
	}
	return report
}

func (i *MultiChainIndexer) checkChain(ctx context.Context, chain entity.Chain) (h entity.ChainHealth) {
	defer func() {
		if r := recover(); r != nil {
			i.logger.Error("Health check panicked", zap.String("chain", chain.String()), zap.Any("panic", r))
			h = entity.ChainHealth{Error: fmt.Sprintf("health check panicked: %v", r)}
		}
	}()

	h, err := i.adapters[chain].HealthCheck(ctx, chain)
	if err != nil {
		h.Connected = false
		if h.Error == "" {
			h.Error = err.Error()
		}
		i.logger.Warn("Chain unhealthy", zap.String("chain", chain.String()), zap.Error(err))
		return h
	}
	if h.Connected {
		i.metrics.SetChainHead(chain.String(), h.LatestBlock)
	} else if h.Error == "" {
		h.Error = "not connected"
	}
	return h
}

func (i *MultiChainIndexer) checkOracle(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			i.logger.Error("Price oracle check panicked", zap.Any("panic", r))
			err = fmt.Errorf("health check panicked: %v", r)
		}
	}()
	if err := i.oracle.HealthCheck(ctx); err != nil {
		i.logger.Warn("Price oracle unhealthy", zap.Error(err))
		return err
	}
	return nil
}

// GetSyncStats returns a copy of every chain's SyncState.
func (i *MultiChainIndexer) GetSyncStats() map[entity.Chain]entity.SyncState {
	return i.state.snapshot()
}

// GetChainSyncState returns the SyncState of chain if one exists.
func (i *MultiChainIndexer) GetChainSyncState(chain entity.Chain) (entity.SyncState, bool) {
	return i.state.get(chain)
}
