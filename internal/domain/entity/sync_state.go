package entity

import (
	"time"

	"github.com/google/uuid"
)

// SyncState is the most recent synchronization outcome for one chain.
type SyncState struct {
	Chain           Chain     `json:"chain"`
	LastBlock       uint64    `json:"lastBlock"`
	LastSync        time.Time `json:"lastSync"`
	SyncDurationMs  uint64    `json:"syncDurationMs"`
	AddressesSynced uint32    `json:"addressesSynced"`
	Errors          []string  `json:"errors"`
}

// Clone returns a copy that shares no memory with s.
func (s SyncState) Clone() SyncState {
	out := s
	out.Errors = make([]string, len(s.Errors))
	copy(out.Errors, s.Errors)
	return out
}

// ChainHealth is the result of one connectivity check.
type ChainHealth struct {
	Connected   bool   `json:"connected"`
	LatestBlock uint64 `json:"latestBlock"`
	LatencyMs   uint64 `json:"latencyMs"`
	Error       string `json:"error,omitempty"`
}

// IndexerHealth aggregates the checks of every adapter and the price oracle.
type IndexerHealth struct {
	Healthy bool                  `json:"healthy"`
	Chains  map[Chain]ChainHealth `json:"chains"`
	Errors  []string              `json:"errors"`
}

// SyncStats is handed to the persistence layer after a wallet sync.
type SyncStats struct {
	WalletID          uuid.UUID `json:"walletId"`
	SyncDurationMs    uint64    `json:"syncDurationMs"`
	AddressesSynced   uint32    `json:"addressesSynced"`
	TransactionsFound uint32    `json:"transactionsFound"`
	CompletedAt       time.Time `json:"completedAt"`
}
