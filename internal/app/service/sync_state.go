package service

import (
	"sync"
	"time"

	"wallet_indexer/internal/domain/entity"
)

// maxRecentErrors bounds the error log kept per chain; the oldest entries are dropped.
const maxRecentErrors = 10

type chainSyncRecord struct {
	state *entity.SyncState // nil until the first successful sync
	// failures seen before the first success, attached when state is created
	pendingErrors []string
}

// syncStateStore holds at most one SyncState per chain.
type syncStateStore struct {
	mu      sync.RWMutex
	records map[entity.Chain]*chainSyncRecord
}

func newSyncStateStore() *syncStateStore {
	return &syncStateStore{records: make(map[entity.Chain]*chainSyncRecord)}
}

func appendBounded(list []string, msg string) []string {
	list = append(list, msg)
	if over := len(list) - maxRecentErrors; over > 0 {
		list = append([]string(nil), list[over:]...)
	}
	return list
}

func (s *syncStateStore) record(chain entity.Chain) *chainSyncRecord {
	r, ok := s.records[chain]
	if !ok {
		r = &chainSyncRecord{}
		s.records[chain] = r
	}
	return r
}

// recordSuccess upserts the chain's state. lastSync never moves backwards.
func (s *syncStateStore) recordSuccess(chain entity.Chain, block *uint64, at time.Time, duration time.Duration, addresses int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.record(chain)
	if r.state == nil {
		r.state = &entity.SyncState{Chain: chain, Errors: r.pendingErrors}
		r.pendingErrors = nil
	}
	st := r.state
	if at.After(st.LastSync) {
		st.LastSync = at
	}
	if duration < 0 {
		duration = 0
	}
	st.SyncDurationMs = uint64(duration.Milliseconds())
	st.AddressesSynced = uint32(addresses)
	if block != nil && *block > st.LastBlock {
		st.LastBlock = *block
	}
}

// recordFailure appends msg to the chain's error log without touching timestamps.
func (s *syncStateStore) recordFailure(chain entity.Chain, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.record(chain)
	if r.state == nil {
		r.pendingErrors = appendBounded(r.pendingErrors, msg)
		return
	}
	r.state.Errors = appendBounded(r.state.Errors, msg)
}

func (s *syncStateStore) get(chain entity.Chain) (entity.SyncState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[chain]
	if !ok || r.state == nil {
		return entity.SyncState{}, false
	}
	return r.state.Clone(), true
}

// snapshot returns deep copies of every existing state.
func (s *syncStateStore) snapshot() map[entity.Chain]entity.SyncState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[entity.Chain]entity.SyncState, len(s.records))
	for chain, r := range s.records {
		if r.state != nil {
			out[chain] = r.state.Clone()
		}
	}
	return out
}
