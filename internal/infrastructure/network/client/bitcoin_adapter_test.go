package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"wallet_indexer/internal/domain/entity"
	explorer "wallet_indexer/internal/entity"
	networkdefinition "wallet_indexer/internal/infrastructure/network/definition"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	btcAddrP2PKH  = "1BgGZ9tcN4rm9KBzDn7KprQz87SZ26SAMH"
	btcAddrP2WPKH = "bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4"
)

type fakeExplorer struct {
	mu        sync.Mutex
	tip       string
	addresses map[string]explorer.BlockstreamAddress
	status    map[string]int // per-address forced status
	hits      map[string]int
}

func newFakeExplorer(tip uint64) *fakeExplorer {
	return &fakeExplorer{
		tip:       fmt.Sprint(tip),
		addresses: make(map[string]explorer.BlockstreamAddress),
		status:    make(map[string]int),
		hits:      make(map[string]int),
	}
}

func (f *fakeExplorer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case r.URL.Path == "/blocks/tip/height":
		_, _ = w.Write([]byte(f.tip))
	case strings.HasPrefix(r.URL.Path, "/address/"):
		addr := strings.TrimPrefix(r.URL.Path, "/address/")
		f.hits[addr]++
		if code, ok := f.status[addr]; ok {
			w.WriteHeader(code)
			return
		}
		stats, ok := f.addresses[addr]
		if !ok {
			stats = explorer.BlockstreamAddress{Address: addr}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(stats)
	default:
		http.NotFound(w, r)
	}
}

func funded(sats, txs int64) explorer.BlockstreamAddress {
	return explorer.BlockstreamAddress{ChainStats: explorer.BlockstreamStats{FundedTxoSum: sats, TxCount: txs}}
}

func newTestBitcoinAdapter(t *testing.T, h http.Handler, gapLimit int) *BitcoinAdapter {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	registry, err := networkdefinition.NewRegistry([]entity.Chain{entity.Bitcoin}, map[entity.Chain]string{entity.Bitcoin: srv.URL + "/"}, nil)
	require.NoError(t, err)

	adapter, err := NewBitcoinAdapter(registry, NewXpubDeriver(&chaincfg.MainNetParams, gapLimit, time.Minute),
		AdapterOptions{MaxConcurrent: 3, Timeout: 5 * time.Second}, nil)
	require.NoError(t, err)
	return adapter
}

func TestBitcoinAdapter_SyncAddresses(t *testing.T) {
	fx := newFakeExplorer(850_000)
	fx.addresses[btcAddrP2PKH] = explorer.BlockstreamAddress{
		ChainStats:   explorer.BlockstreamStats{FundedTxoSum: 150_000_000, SpentTxoSum: 50_000_000, TxCount: 3},
		MempoolStats: explorer.BlockstreamStats{FundedTxoSum: 1_000, TxCount: 1},
	}
	fx.addresses[btcAddrP2WPKH] = funded(2_500, 1)
	adapter := newTestBitcoinAdapter(t, fx, 2)

	balances, err := adapter.SyncAddresses(context.Background(), entity.Bitcoin, []string{btcAddrP2WPKH, btcAddrP2PKH})
	require.NoError(t, err)
	require.Len(t, balances, 2)

	assert.Equal(t, "0.000025", balances[0].Native)
	assert.Equal(t, uint64(1), balances[0].TxCount)
	assert.Equal(t, "1.00001", balances[1].Native)
	assert.Equal(t, uint64(4), balances[1].TxCount)
	for _, b := range balances {
		assert.Equal(t, entity.Bitcoin, b.Chain)
		require.NotNil(t, b.BlockNumber)
		assert.Equal(t, uint64(850_000), *b.BlockNumber)
		assert.Empty(t, b.Tokens)
	}
}

func TestBitcoinAdapter_XpubAggregatesDerivedAddresses(t *testing.T) {
	fx := newFakeExplorer(1)
	fx.addresses["12CL4K2eVqj7hQTix7dM7CVHCkpP17Pry3"] = funded(1_000, 2) // 0/0
	fx.addresses["18FcseQ86zCaXzLbgDsH86292xb2EuKtFW"] = funded(500, 1)   // 1/1
	fx.addresses[btcAddrP2PKH] = funded(7, 1)
	adapter := newTestBitcoinAdapter(t, fx, 2)

	balances, err := adapter.SyncAddresses(context.Background(), entity.Bitcoin, []string{btcAddrP2PKH, testXpub})
	require.NoError(t, err)
	require.Len(t, balances, 2)

	assert.Equal(t, "0.00000007", balances[0].Native)
	assert.Equal(t, "0.000015", balances[1].Native)
	assert.Equal(t, uint64(3), balances[1].TxCount)

	// four derived addresses plus the explicit one
	assert.Len(t, fx.hits, 5)
}

func TestBitcoinAdapter_QueriesSharedAddressOnce(t *testing.T) {
	fx := newFakeExplorer(1)
	fx.addresses[btcAddrP2PKH] = funded(100, 1)
	adapter := newTestBitcoinAdapter(t, fx, 2)

	balances, err := adapter.SyncAddresses(context.Background(), entity.Bitcoin, []string{btcAddrP2PKH, btcAddrP2PKH})
	require.NoError(t, err)
	require.Len(t, balances, 2)
	assert.Equal(t, balances[0].Native, balances[1].Native)
	assert.Equal(t, 1, fx.hits[btcAddrP2PKH])
}

func TestBitcoinAdapter_Failures(t *testing.T) {
	t.Run("invalid address", func(t *testing.T) {
		fx := newFakeExplorer(1)
		adapter := newTestBitcoinAdapter(t, fx, 2)
		_, err := adapter.SyncAddresses(context.Background(), entity.Bitcoin, []string{btcAddrP2PKH, "0xabc"})
		assert.ErrorIs(t, err, entity.ErrValidation)
		assert.Empty(t, fx.hits)
	})

	t.Run("extended private key", func(t *testing.T) {
		adapter := newTestBitcoinAdapter(t, newFakeExplorer(1), 2)
		_, err := adapter.SyncAddresses(context.Background(), entity.Bitcoin, []string{testXprv})
		assert.ErrorIs(t, err, entity.ErrValidation)
	})

	t.Run("rate limited address", func(t *testing.T) {
		fx := newFakeExplorer(1)
		fx.status[btcAddrP2WPKH] = http.StatusTooManyRequests
		adapter := newTestBitcoinAdapter(t, fx, 2)
		balances, err := adapter.SyncAddresses(context.Background(), entity.Bitcoin, []string{btcAddrP2PKH, btcAddrP2WPKH})
		assert.ErrorIs(t, err, entity.ErrRateLimit)
		assert.Nil(t, balances)
	})

	t.Run("server error", func(t *testing.T) {
		fx := newFakeExplorer(1)
		fx.status[btcAddrP2PKH] = http.StatusInternalServerError
		adapter := newTestBitcoinAdapter(t, fx, 2)
		_, err := adapter.SyncAddresses(context.Background(), entity.Bitcoin, []string{btcAddrP2PKH})
		assert.ErrorIs(t, err, entity.ErrNetwork)
	})

	t.Run("malformed tip height", func(t *testing.T) {
		fx := newFakeExplorer(1)
		fx.tip = "not-a-number"
		adapter := newTestBitcoinAdapter(t, fx, 2)
		_, err := adapter.SyncAddresses(context.Background(), entity.Bitcoin, []string{btcAddrP2PKH})
		assert.ErrorIs(t, err, entity.ErrParse)
	})

	t.Run("wrong chain", func(t *testing.T) {
		adapter := newTestBitcoinAdapter(t, newFakeExplorer(1), 2)
		_, err := adapter.SyncAddresses(context.Background(), entity.Ethereum, []string{btcAddrP2PKH})
		assert.ErrorIs(t, err, entity.ErrConfig)
	})
}

func TestBitcoinAdapter_BlockAndHealth(t *testing.T) {
	fx := newFakeExplorer(123)
	adapter := newTestBitcoinAdapter(t, fx, 2)

	head, err := adapter.GetCurrentBlock(context.Background(), entity.Bitcoin)
	require.NoError(t, err)
	assert.Equal(t, uint64(123), head)

	health, err := adapter.HealthCheck(context.Background(), entity.Bitcoin)
	require.NoError(t, err)
	assert.True(t, health.Connected)
	assert.Equal(t, uint64(123), health.LatestBlock)

	fx.mu.Lock()
	fx.tip = ""
	fx.mu.Unlock()
	health, err = adapter.HealthCheck(context.Background(), entity.Bitcoin)
	require.Error(t, err)
	assert.False(t, health.Connected)
	assert.NotEmpty(t, health.Error)
}

func TestBitcoinAdapter_EmptyInput(t *testing.T) {
	fx := newFakeExplorer(1)
	adapter := newTestBitcoinAdapter(t, fx, 2)
	balances, err := adapter.SyncAddresses(context.Background(), entity.Bitcoin, nil)
	require.NoError(t, err)
	assert.Empty(t, balances)
}
