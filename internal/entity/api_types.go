package entity

import jsoniter "github.com/json-iterator/go"

// BlockstreamAddress is the body of GET /address/{address} on a Blockstream-compatible explorer.
type BlockstreamAddress struct {
	Address      string           `json:"address"`
	ChainStats   BlockstreamStats `json:"chain_stats"`
	MempoolStats BlockstreamStats `json:"mempool_stats"`
}

// BlockstreamStats holds the confirmed or unconfirmed output totals of an address, in satoshi.
type BlockstreamStats struct {
	FundedTxoCount int64 `json:"funded_txo_count"`
	FundedTxoSum   int64 `json:"funded_txo_sum"`
	SpentTxoCount  int64 `json:"spent_txo_count"`
	SpentTxoSum    int64 `json:"spent_txo_sum"`
	TxCount        int64 `json:"tx_count"`
}

// BalanceSats returns the UTXO balance including unconfirmed activity.
func (a BlockstreamAddress) BalanceSats() int64 {
	return a.ChainStats.FundedTxoSum - a.ChainStats.SpentTxoSum +
		a.MempoolStats.FundedTxoSum - a.MempoolStats.SpentTxoSum
}

// TxCount returns confirmed plus mempool transactions.
func (a BlockstreamAddress) TxCount() int64 {
	return a.ChainStats.TxCount + a.MempoolStats.TxCount
}

// CoinStatsCoinsResponse is the body of GET /coins on the CoinStats public API.
// Older API revisions return the list under "coins" instead of "result".
// Entries stay raw so one malformed coin does not fail the whole body.
type CoinStatsCoinsResponse struct {
	Result []jsoniter.RawMessage `json:"result"`
	Coins  []jsoniter.RawMessage `json:"coins"`
}

// Items returns whichever list the response carried.
func (r CoinStatsCoinsResponse) Items() []jsoniter.RawMessage {
	if len(r.Result) > 0 {
		return r.Result
	}
	return r.Coins
}

// CoinStatsCoin is one coin entry.
type CoinStatsCoin struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Symbol string   `json:"symbol"`
	Price  *float64 `json:"price"` // null for delisted coins
	Rank   int      `json:"rank"`
}
