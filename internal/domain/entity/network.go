package entity

import (
	"fmt"
	"strings"
)

// Chain identifies one supported blockchain network.
type Chain string

const (
	Ethereum          Chain = "ethereum"
	BinanceSmartChain Chain = "bsc"
	Polygon           Chain = "polygon"
	Bitcoin           Chain = "bitcoin"
)

// ChainFamily groups chains that share a wire protocol.
type ChainFamily int

const (
	FamilyEVM ChainFamily = iota
	FamilyUTXO
)

// NetworkDefinition holds the static facts for a chain.
type NetworkDefinition struct {
	Chain              Chain       `json:"chain" yaml:"chain"`
	Name               string      `json:"name" yaml:"name"`
	ChainID            uint64      `json:"chainId,omitempty" yaml:"chainId,omitempty"` // zero for non-EVM chains
	NativeSymbol       string      `json:"nativeSymbol" yaml:"nativeSymbol"`
	Decimals           uint8       `json:"decimals" yaml:"decimals"`
	DefaultEndpoint    string      `json:"defaultEndpoint" yaml:"defaultEndpoint"`
	ConfirmationBlocks uint32      `json:"confirmationBlocks" yaml:"confirmationBlocks"`
	Family             ChainFamily `json:"-" yaml:"-"`
}

var networkDefinitions = map[Chain]NetworkDefinition{ //nolint:gochecknoglobals // compile-time registry
	Ethereum: {
		Chain:              Ethereum,
		Name:               "Ethereum Mainnet",
		ChainID:            1,
		NativeSymbol:       "ETH",
		Decimals:           18,
		DefaultEndpoint:    "https://ethereum-rpc.publicnode.com",
		ConfirmationBlocks: 12,
		Family:             FamilyEVM,
	},
	BinanceSmartChain: {
		Chain:              BinanceSmartChain,
		Name:               "BNB Smart Chain",
		ChainID:            56,
		NativeSymbol:       "BNB",
		Decimals:           18,
		DefaultEndpoint:    "https://bsc-dataseed.binance.org/",
		ConfirmationBlocks: 15,
		Family:             FamilyEVM,
	},
	Polygon: {
		Chain:              Polygon,
		Name:               "Polygon PoS",
		ChainID:            137,
		NativeSymbol:       "MATIC",
		Decimals:           18,
		DefaultEndpoint:    "https://polygon-rpc.com/",
		ConfirmationBlocks: 20,
		Family:             FamilyEVM,
	},
	Bitcoin: {
		Chain:              Bitcoin,
		Name:               "Bitcoin",
		NativeSymbol:       "BTC",
		Decimals:           8,
		DefaultEndpoint:    "https://blockstream.info/api",
		ConfirmationBlocks: 6,
		Family:             FamilyUTXO,
	},
}

var chainOrder = []Chain{Ethereum, BinanceSmartChain, Polygon, Bitcoin} //nolint:gochecknoglobals

// AllChains returns every supported chain in a stable order.
func AllChains() []Chain {
	out := make([]Chain, len(chainOrder))
	copy(out, chainOrder)
	return out
}

// ParseChain accepts the canonical identifier and a few common aliases.
func ParseChain(s string) (Chain, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ethereum", "eth":
		return Ethereum, nil
	case "bsc", "binance", "binancesmartchain", "bnb":
		return BinanceSmartChain, nil
	case "polygon", "matic":
		return Polygon, nil
	case "bitcoin", "btc":
		return Bitcoin, nil
	}
	return "", fmt.Errorf("unsupported chain %q", s)
}

// Valid reports whether c is one of the supported chains.
func (c Chain) Valid() bool {
	_, ok := networkDefinitions[c]
	return ok
}

// Definition returns the static facts for c.
func (c Chain) Definition() (NetworkDefinition, bool) {
	def, ok := networkDefinitions[c]
	return def, ok
}

// ChainID returns the numeric chain id. EVM chains only.
func (c Chain) ChainID() (uint64, bool) {
	def, ok := networkDefinitions[c]
	if !ok || def.Family != FamilyEVM {
		return 0, false
	}
	return def.ChainID, true
}

// NativeSymbol returns the ticker of the chain's native currency.
func (c Chain) NativeSymbol() string {
	return networkDefinitions[c].NativeSymbol
}

// NativeDecimals returns the number of decimals of the native currency.
func (c Chain) NativeDecimals() uint8 {
	return networkDefinitions[c].Decimals
}

// DefaultEndpoint returns the convenience RPC or explorer URL for c.
func (c Chain) DefaultEndpoint() string {
	return networkDefinitions[c].DefaultEndpoint
}

// ConfirmationBlocks returns the depth after which a block is treated as final.
func (c Chain) ConfirmationBlocks() uint32 {
	return networkDefinitions[c].ConfirmationBlocks
}

// Family returns the protocol family of c.
func (c Chain) Family() ChainFamily {
	return networkDefinitions[c].Family
}

// IsEVM reports whether c speaks Ethereum JSON-RPC.
func (c Chain) IsEVM() bool {
	def, ok := networkDefinitions[c]
	return ok && def.Family == FamilyEVM
}

func (c Chain) String() string {
	return string(c)
}
