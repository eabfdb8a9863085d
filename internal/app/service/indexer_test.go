package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"wallet_indexer/internal/app/port"
	"wallet_indexer/internal/domain/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAdapter struct {
	mu       sync.Mutex
	chains   []entity.Chain
	head     uint64
	syncErr  error
	healthFn func(chain entity.Chain) (entity.ChainHealth, error)
	short    bool // return one balance fewer than requested
	calls    int
}

func (f *fakeAdapter) Chains() []entity.Chain { return f.chains }

func (f *fakeAdapter) SyncAddresses(_ context.Context, chain entity.Chain, addresses []string) ([]entity.Balance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.syncErr != nil {
		return nil, f.syncErr
	}
	out := make([]entity.Balance, 0, len(addresses))
	for i := range addresses {
		b := entity.NewBalance(chain, fmt.Sprintf("%d", i+1), f.head)
		b.TxCount = 2
		out = append(out, b)
	}
	if f.short && len(out) > 0 {
		out = out[:len(out)-1]
	}
	return out, nil
}

func (f *fakeAdapter) GetCurrentBlock(_ context.Context, _ entity.Chain) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.head, nil
}

func (f *fakeAdapter) HealthCheck(_ context.Context, chain entity.Chain) (entity.ChainHealth, error) {
	if f.healthFn != nil {
		return f.healthFn(chain)
	}
	return entity.ChainHealth{Connected: true, LatestBlock: f.head}, nil
}

type fakeOracle struct {
	mu        sync.Mutex
	prices    map[string]float64
	err       error
	healthErr error
	requests  [][]string
}

func (f *fakeOracle) GetPrices(_ context.Context, symbols []string) (map[string]float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, append([]string(nil), symbols...))
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]float64)
	for _, s := range symbols {
		if p, ok := f.prices[s]; ok {
			out[s] = p
		}
	}
	return out, nil
}

func (f *fakeOracle) HealthCheck(context.Context) error { return f.healthErr }

func newTestIndexer(t *testing.T, oracle *fakeOracle, adapters ...*fakeAdapter) *MultiChainIndexer {
	t.Helper()
	var list []port.ChainAdapter
	for _, a := range adapters {
		list = append(list, a)
	}
	idx, err := NewMultiChainIndexer(list, oracle, nil, nil)
	require.NoError(t, err)
	return idx
}

func TestNewMultiChainIndexer_RequiresOracle(t *testing.T) {
	_, err := NewMultiChainIndexer([]port.ChainAdapter{&fakeAdapter{chains: []entity.Chain{entity.Ethereum}}}, nil, nil, nil)
	assert.ErrorIs(t, err, entity.ErrConfig)
}

func TestNewMultiChainIndexer_DuplicateChain(t *testing.T) {
	a := &fakeAdapter{chains: []entity.Chain{entity.Ethereum, entity.Polygon}}
	b := &fakeAdapter{chains: []entity.Chain{entity.Polygon}}
	_, err := NewMultiChainIndexer([]port.ChainAdapter{a, b}, &fakeOracle{}, nil, nil)
	assert.ErrorIs(t, err, entity.ErrConfig)
}

func TestMultiChainIndexer_SyncAddresses(t *testing.T) {
	evm := &fakeAdapter{chains: []entity.Chain{entity.Ethereum, entity.Polygon}, head: 500}
	idx := newTestIndexer(t, &fakeOracle{}, evm)
	assert.Equal(t, []entity.Chain{entity.Ethereum, entity.Polygon}, idx.Chains())

	_, ok := idx.GetChainSyncState(entity.Ethereum)
	assert.False(t, ok)

	balances, err := idx.SyncAddresses(context.Background(), entity.Ethereum, []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, balances, 3)
	assert.Equal(t, "1", balances[0].Native)
	assert.Equal(t, "3", balances[2].Native)

	st, ok := idx.GetChainSyncState(entity.Ethereum)
	require.True(t, ok)
	assert.Equal(t, entity.Ethereum, st.Chain)
	assert.Equal(t, uint64(500), st.LastBlock)
	assert.Equal(t, uint32(3), st.AddressesSynced)
	assert.False(t, st.LastSync.IsZero())
	assert.Empty(t, st.Errors)

	_, ok = idx.GetChainSyncState(entity.Polygon)
	assert.False(t, ok)
}

func TestMultiChainIndexer_SyncAddressesUnconfiguredChain(t *testing.T) {
	idx := newTestIndexer(t, &fakeOracle{}, &fakeAdapter{chains: []entity.Chain{entity.Ethereum}})

	_, err := idx.SyncAddresses(context.Background(), entity.Bitcoin, []string{"x"})
	assert.ErrorIs(t, err, entity.ErrConfig)
	assert.Empty(t, idx.GetSyncStats())
}

func TestMultiChainIndexer_SyncAddressesLengthMismatch(t *testing.T) {
	idx := newTestIndexer(t, &fakeOracle{}, &fakeAdapter{chains: []entity.Chain{entity.Ethereum}, short: true})

	_, err := idx.SyncAddresses(context.Background(), entity.Ethereum, []string{"a", "b"})
	assert.ErrorIs(t, err, entity.ErrParse)
}

func TestMultiChainIndexer_FailuresBeforeFirstSuccess(t *testing.T) {
	adapter := &fakeAdapter{
		chains:  []entity.Chain{entity.Ethereum},
		head:    10,
		syncErr: entity.NewSyncError(entity.KindNetwork, entity.Ethereum, "sync", errors.New("connection refused")),
	}
	idx := newTestIndexer(t, &fakeOracle{}, adapter)

	_, err := idx.SyncAddresses(context.Background(), entity.Ethereum, []string{"a"})
	require.ErrorIs(t, err, entity.ErrNetwork)

	_, ok := idx.GetChainSyncState(entity.Ethereum)
	assert.False(t, ok, "no state until a sync succeeds")
	assert.Empty(t, idx.GetSyncStats())

	adapter.syncErr = nil
	_, err = idx.SyncAddresses(context.Background(), entity.Ethereum, []string{"a"})
	require.NoError(t, err)

	st, ok := idx.GetChainSyncState(entity.Ethereum)
	require.True(t, ok)
	require.Len(t, st.Errors, 1)
	assert.Contains(t, st.Errors[0], "connection refused")
}

func TestMultiChainIndexer_ErrorLogIsBounded(t *testing.T) {
	adapter := &fakeAdapter{chains: []entity.Chain{entity.Ethereum}, head: 1}
	idx := newTestIndexer(t, &fakeOracle{}, adapter)

	_, err := idx.SyncAddresses(context.Background(), entity.Ethereum, []string{"a"})
	require.NoError(t, err)
	before, _ := idx.GetChainSyncState(entity.Ethereum)

	for n := 0; n < 15; n++ {
		adapter.syncErr = fmt.Errorf("failure %d", n)
		_, err := idx.SyncAddresses(context.Background(), entity.Ethereum, []string{"a"})
		require.Error(t, err)
	}

	st, ok := idx.GetChainSyncState(entity.Ethereum)
	require.True(t, ok)
	require.Len(t, st.Errors, maxRecentErrors)
	assert.Equal(t, "failure 5", st.Errors[0])
	assert.Equal(t, "failure 14", st.Errors[maxRecentErrors-1])
	assert.Equal(t, before.LastSync, st.LastSync, "failures leave timestamps untouched")
}

func TestMultiChainIndexer_LastSyncNeverMovesBackwards(t *testing.T) {
	adapter := &fakeAdapter{chains: []entity.Chain{entity.Ethereum}, head: 1}
	idx := newTestIndexer(t, &fakeOracle{}, adapter)

	later := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	idx.now = func() time.Time { return later }
	_, err := idx.SyncAddresses(context.Background(), entity.Ethereum, []string{"a"})
	require.NoError(t, err)

	idx.now = func() time.Time { return later.Add(-time.Hour) }
	_, err = idx.SyncAddresses(context.Background(), entity.Ethereum, []string{"a"})
	require.NoError(t, err)

	st, _ := idx.GetChainSyncState(entity.Ethereum)
	assert.Equal(t, later, st.LastSync)
}

func TestMultiChainIndexer_SnapshotIsIsolated(t *testing.T) {
	adapter := &fakeAdapter{chains: []entity.Chain{entity.Ethereum}, head: 1}
	idx := newTestIndexer(t, &fakeOracle{}, adapter)
	_, err := idx.SyncAddresses(context.Background(), entity.Ethereum, []string{"a"})
	require.NoError(t, err)
	adapter.syncErr = errors.New("boom")
	_, _ = idx.SyncAddresses(context.Background(), entity.Ethereum, []string{"a"})

	stats := idx.GetSyncStats()
	st := stats[entity.Ethereum]
	st.Errors[0] = "tampered"
	st.LastBlock = 999

	fresh, _ := idx.GetChainSyncState(entity.Ethereum)
	assert.Equal(t, "boom", fresh.Errors[0])
	assert.Equal(t, uint64(1), fresh.LastBlock)
}

func TestMultiChainIndexer_GetCurrentBlock(t *testing.T) {
	idx := newTestIndexer(t, &fakeOracle{}, &fakeAdapter{chains: []entity.Chain{entity.BinanceSmartChain}, head: 42})

	head, err := idx.GetCurrentBlock(context.Background(), entity.BinanceSmartChain)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), head)

	_, err = idx.GetCurrentBlock(context.Background(), entity.Ethereum)
	assert.ErrorIs(t, err, entity.ErrConfig)
}

func TestMultiChainIndexer_GetPortfolioValue(t *testing.T) {
	oracle := &fakeOracle{prices: map[string]float64{"ETH": 2000, "BNB": 500, "USDC": 1, "BTC": 60000}}
	idx := newTestIndexer(t, oracle)

	eth := entity.Balance{Chain: entity.Ethereum, Native: "1.5"}
	eth.SetToken("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", entity.TokenBalance{Symbol: "usdc", FormattedBalance: "250"})
	eth.SetToken("0x0000000000000000000000000000000000000001", entity.TokenBalance{Symbol: "NOPRICE", FormattedBalance: "10"})
	bsc := entity.Balance{Chain: entity.BinanceSmartChain, Native: "2"}
	untagged := entity.Balance{Native: "0.5"}
	broken := entity.Balance{Chain: entity.Bitcoin, Native: "not-a-number"}

	total, err := idx.GetPortfolioValue(context.Background(), []entity.Balance{eth, bsc, untagged, broken})
	require.NoError(t, err)
	// 1.5*2000 + 250*1 + 2*500 + 0.5*2000
	assert.InDelta(t, 5250.0, total, 1e-9)

	require.Len(t, oracle.requests, 1, "one oracle call per valuation")
	assert.ElementsMatch(t, []string{"ETH", "USDC", "NOPRICE", "BNB", "BTC"}, oracle.requests[0])
}

func TestMultiChainIndexer_GetPortfolioValueSkipsNonFinitePrices(t *testing.T) {
	oracle := &fakeOracle{prices: map[string]float64{"ETH": math.NaN(), "BNB": math.Inf(1), "MATIC": 0.5}}
	idx := newTestIndexer(t, oracle)

	balances := []entity.Balance{
		{Chain: entity.Ethereum, Native: "1"},
		{Chain: entity.BinanceSmartChain, Native: "1"},
		{Chain: entity.Polygon, Native: "4"},
	}
	var total float64
	var err error
	require.NotPanics(t, func() {
		total, err = idx.GetPortfolioValue(context.Background(), balances)
	})
	require.NoError(t, err)
	assert.InDelta(t, 2.0, total, 1e-9)
}

func TestMultiChainIndexer_GetPortfolioValueEmpty(t *testing.T) {
	oracle := &fakeOracle{}
	idx := newTestIndexer(t, oracle)

	total, err := idx.GetPortfolioValue(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, oracle.requests)
}

func TestMultiChainIndexer_GetPortfolioValueOracleFailure(t *testing.T) {
	oracle := &fakeOracle{err: entity.NewSyncError(entity.KindRateLimit, "", "get prices", errors.New("429"))}
	idx := newTestIndexer(t, oracle)

	_, err := idx.GetPortfolioValue(context.Background(), []entity.Balance{{Chain: entity.Ethereum, Native: "1"}})
	assert.ErrorIs(t, err, entity.ErrRateLimit)
}

func TestMultiChainIndexer_GetTokenPrices(t *testing.T) {
	oracle := &fakeOracle{prices: map[string]float64{"ETH": 2000}}
	idx := newTestIndexer(t, oracle)

	prices, err := idx.GetTokenPrices(context.Background(), []string{"eth", "ETH", " "})
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"ETH": 2000}, prices)
	assert.Equal(t, [][]string{{"ETH"}}, oracle.requests)
}

func TestMultiChainIndexer_HealthCheck(t *testing.T) {
	t.Run("all healthy", func(t *testing.T) {
		idx := newTestIndexer(t, &fakeOracle{},
			&fakeAdapter{chains: []entity.Chain{entity.Ethereum}, head: 7},
			&fakeAdapter{chains: []entity.Chain{entity.Bitcoin}, head: 9})

		report := idx.HealthCheck(context.Background())
		assert.True(t, report.Healthy)
		assert.Empty(t, report.Errors)
		require.Len(t, report.Chains, 2)
		assert.Equal(t, uint64(9), report.Chains[entity.Bitcoin].LatestBlock)
	})

	t.Run("one chain down", func(t *testing.T) {
		down := &fakeAdapter{
			chains: []entity.Chain{entity.Polygon},
			healthFn: func(entity.Chain) (entity.ChainHealth, error) {
				return entity.ChainHealth{LatencyMs: 3}, errors.New("dial tcp: refused")
			},
		}
		idx := newTestIndexer(t, &fakeOracle{}, &fakeAdapter{chains: []entity.Chain{entity.Ethereum}}, down)

		report := idx.HealthCheck(context.Background())
		assert.False(t, report.Healthy)
		assert.True(t, report.Chains[entity.Ethereum].Connected)
		assert.False(t, report.Chains[entity.Polygon].Connected)
		assert.Equal(t, "dial tcp: refused", report.Chains[entity.Polygon].Error)
		require.Len(t, report.Errors, 1)
		assert.Contains(t, report.Errors[0], "polygon")
	})

	t.Run("panicking check", func(t *testing.T) {
		bad := &fakeAdapter{
			chains:   []entity.Chain{entity.BinanceSmartChain},
			healthFn: func(entity.Chain) (entity.ChainHealth, error) { panic("nil client") },
		}
		idx := newTestIndexer(t, &fakeOracle{}, bad)

		report := idx.HealthCheck(context.Background())
		assert.False(t, report.Healthy)
		assert.Contains(t, report.Chains[entity.BinanceSmartChain].Error, "panicked")
	})

	t.Run("oracle down", func(t *testing.T) {
		idx := newTestIndexer(t, &fakeOracle{healthErr: errors.New("503")},
			&fakeAdapter{chains: []entity.Chain{entity.Ethereum}})

		report := idx.HealthCheck(context.Background())
		assert.False(t, report.Healthy)
		assert.True(t, report.Chains[entity.Ethereum].Connected)
		require.Len(t, report.Errors, 1)
		assert.Contains(t, report.Errors[0], "price oracle")
	})
}
