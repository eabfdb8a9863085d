package entity

import "math/big"

// BalanceRequestType defines the type of balance request.
type BalanceRequestType int

const (
	// NativeBalanceRequest requests the native balance of a wallet.
	NativeBalanceRequest BalanceRequestType = iota
	// TokenBalanceRequest requests the balance of a specific token for a wallet.
	TokenBalanceRequest
	// TxCountRequest requests the number of transactions sent from a wallet.
	TxCountRequest
)

// ZeroAddress represents the Ethereum zero address.
const ZeroAddress = "0x0000000000000000000000000000000000000000"

// BalanceRequestItem is one element of a JSON-RPC batch.
type BalanceRequestItem struct {
	AddressIndex  int // position of the wallet address in the caller's input
	Type          BalanceRequestType
	WalletAddress string
	Token         TokenInfo // zero for native and tx count requests
}

// BalanceResultItem is the decoded answer to a BalanceRequestItem.
type BalanceResultItem struct {
	Request BalanceRequestItem
	Value   *big.Int
}
