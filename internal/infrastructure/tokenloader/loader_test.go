package tokenloader

import (
	"os"
	"path/filepath"
	"testing"

	"wallet_indexer/internal/domain/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestTokenFileLoader_GetTokensByChain(t *testing.T) {
	eth := writeFile(t, "ethereum.json", `[
		{"chainId": 1, "address": "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", "name": "USD Coin", "symbol": " usdc ", "decimals": 6},
		{"address": "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48", "symbol": "USDC-DUP", "decimals": 6},
		{"chainId": 56, "address": "0x55d398326f99059fF775485246999027B3197955", "symbol": "USDT", "decimals": 18},
		{"chainId": 1, "address": "not-an-address", "symbol": "BAD", "decimals": 18},
		{"chainId": 1, "address": "0x0000000000000000000000000000000000000000", "symbol": "ETH", "decimals": 18},
		{"address": "0xdAC17F958D2ee523a2206206994597C13D831ec7", "symbol": "USDT", "decimals": 6}
	]`)
	btc := writeFile(t, "bitcoin.json", `[]`)

	loader := NewTokenLoader(map[entity.Chain]string{entity.Ethereum: eth, entity.Bitcoin: btc}, nil)
	tokens, err := loader.GetTokensByChain()
	require.NoError(t, err)

	require.Contains(t, tokens, entity.Ethereum)
	assert.NotContains(t, tokens, entity.Bitcoin)

	got := tokens[entity.Ethereum]
	require.Len(t, got, 2)
	assert.Equal(t, "USDC", got[0].Symbol)
	assert.Equal(t, uint64(1), got[0].ChainID)
	assert.Equal(t, uint8(6), got[0].Decimals)
	assert.Equal(t, "USDT", got[1].Symbol)
	assert.Equal(t, uint64(1), got[1].ChainID, "missing chain id is filled in")
}

func TestTokenFileLoader_FileErrors(t *testing.T) {
	missing := NewTokenLoader(map[entity.Chain]string{entity.Polygon: filepath.Join(t.TempDir(), "nope.json")}, nil)
	_, err := missing.GetTokensByChain()
	assert.Error(t, err)

	broken := NewTokenLoader(map[entity.Chain]string{entity.Polygon: writeFile(t, "polygon.json", `{"not":"a list"}`)}, nil)
	_, err = broken.GetTokensByChain()
	assert.Error(t, err)
}
