package entity

import (
	"strings"
	"time"
)

// Balance is the last observed holding of one address.
// Amounts are kept as decimal strings; callers must treat them as possibly unparsable.
type Balance struct {
	Chain       Chain                   `json:"chain,omitempty"`
	Native      string                  `json:"native"`
	BlockNumber *uint64                 `json:"blockNumber,omitempty"`
	Tokens      map[string]TokenBalance `json:"tokens"` // keyed by lower-cased contract address
	TxCount     uint64                  `json:"txCount"`
	UpdatedAt   time.Time               `json:"updatedAt"`
}

// TokenBalance represents the amount of a specific token held by an address.
type TokenBalance struct {
	ContractAddress  string `json:"contractAddress"`
	Symbol           string `json:"symbol"`
	Name             string `json:"name,omitempty"`
	Decimals         uint8  `json:"decimals"`
	RawBalance       string `json:"rawBalance"`
	FormattedBalance string `json:"formattedBalance"`
}

// NewBalance creates a balance observed at the given block.
func NewBalance(chain Chain, native string, blockNumber uint64) Balance {
	bn := blockNumber
	return Balance{
		Chain:       chain,
		Native:      native,
		BlockNumber: &bn,
		Tokens:      make(map[string]TokenBalance),
		UpdatedAt:   time.Now().UTC(),
	}
}

// SetToken adds or replaces a token entry.
func (b *Balance) SetToken(contractAddress string, tb TokenBalance) {
	if b.Tokens == nil {
		b.Tokens = make(map[string]TokenBalance)
	}
	key := strings.ToLower(contractAddress)
	tb.ContractAddress = key
	b.Tokens[key] = tb
}

// Token looks up a token entry by contract address.
func (b Balance) Token(contractAddress string) (TokenBalance, bool) {
	tb, ok := b.Tokens[strings.ToLower(contractAddress)]
	return tb, ok
}

// Clone returns a deep copy.
func (b Balance) Clone() Balance {
	out := b
	if b.BlockNumber != nil {
		bn := *b.BlockNumber
		out.BlockNumber = &bn
	}
	if b.Tokens != nil {
		out.Tokens = make(map[string]TokenBalance, len(b.Tokens))
		for k, v := range b.Tokens {
			out.Tokens[k] = v
		}
	}
	return out
}
