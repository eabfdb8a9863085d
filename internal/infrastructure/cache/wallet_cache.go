package cache

import (
	"strings"
	"sync"

	"wallet_indexer/internal/domain/entity"
	"wallet_indexer/internal/pkg/metrics"

	"github.com/google/uuid"
)

// Stats reports the number of entries in each map.
type Stats struct {
	Wallets  int `json:"wallets"`
	Balances int `json:"balances"`
}

// WalletCache keeps wallets by id and balances by address in two maps with
// their own locks. It is never authoritative.
//
// Lock order: walletsMu before balancesMu. Any operation that needs both
// must acquire them in that order.
type WalletCache struct {
	walletsMu sync.RWMutex
	wallets   map[uuid.UUID]*entity.Wallet

	balancesMu sync.RWMutex
	balances   map[string]entity.Balance

	metrics *metrics.Metrics
}

// NewWalletCache returns an empty cache. m may be nil.
func NewWalletCache(m *metrics.Metrics) *WalletCache {
	return &WalletCache{
		wallets:  make(map[uuid.UUID]*entity.Wallet),
		balances: make(map[string]entity.Balance),
		metrics:  m,
	}
}

// balanceKey folds hex addresses to lower case; other formats are case sensitive.
func balanceKey(address string) string {
	address = strings.TrimSpace(address)
	if strings.HasPrefix(address, "0x") || strings.HasPrefix(address, "0X") {
		return strings.ToLower(address)
	}
	return address
}

// GetWallet returns a copy of the cached wallet.
func (c *WalletCache) GetWallet(id uuid.UUID) (*entity.Wallet, bool) {
	c.walletsMu.RLock()
	defer c.walletsMu.RUnlock()
	w, ok := c.wallets[id]
	if !ok {
		return nil, false
	}
	return w.Clone(), true
}

// PutWallet stores a copy of w, replacing any previous entry with the same id.
func (c *WalletCache) PutWallet(w *entity.Wallet) {
	if w == nil {
		return
	}
	cp := w.Clone()
	c.walletsMu.Lock()
	defer c.walletsMu.Unlock()
	c.wallets[cp.ID] = cp
	c.metrics.SetCachedWallets(len(c.wallets))
}

// RemoveWallet drops the wallet; removing an absent id is a no-op.
func (c *WalletCache) RemoveWallet(id uuid.UUID) {
	c.walletsMu.Lock()
	defer c.walletsMu.Unlock()
	delete(c.wallets, id)
	c.metrics.SetCachedWallets(len(c.wallets))
}

// UpdateWallet calls fn on the cached wallet id while holding walletsMu and
// stores the balances fn returns before releasing it. fn is not called when id
// is absent. It returns a copy of the wallet as updated.
func (c *WalletCache) UpdateWallet(id uuid.UUID, fn func(w *entity.Wallet) map[string]entity.Balance) (*entity.Wallet, bool) {
	c.walletsMu.Lock()
	defer c.walletsMu.Unlock()
	w, ok := c.wallets[id]
	if !ok {
		return nil, false
	}
	if balances := fn(w); len(balances) > 0 {
		c.balancesMu.Lock()
		for address, b := range balances {
			c.balances[balanceKey(address)] = b.Clone()
		}
		c.metrics.SetCachedBalances(len(c.balances))
		c.balancesMu.Unlock()
	}
	return w.Clone(), true
}

// DeleteWallet removes the wallet and the balances of its addresses and xpub
// in one step. It reports whether id was cached.
func (c *WalletCache) DeleteWallet(id uuid.UUID) bool {
	c.walletsMu.Lock()
	defer c.walletsMu.Unlock()
	w, ok := c.wallets[id]
	if !ok {
		return false
	}
	delete(c.wallets, id)
	c.metrics.SetCachedWallets(len(c.wallets))

	c.balancesMu.Lock()
	for _, a := range w.Addresses {
		delete(c.balances, balanceKey(a.Address))
	}
	if w.Xpub != "" {
		delete(c.balances, balanceKey(w.Xpub))
	}
	c.metrics.SetCachedBalances(len(c.balances))
	c.balancesMu.Unlock()
	return true
}

// ListWallets returns copies of every cached wallet in no particular order.
func (c *WalletCache) ListWallets() []*entity.Wallet {
	c.walletsMu.RLock()
	defer c.walletsMu.RUnlock()
	out := make([]*entity.Wallet, 0, len(c.wallets))
	for _, w := range c.wallets {
		out = append(out, w.Clone())
	}
	return out
}

// GetBalance returns a copy of the cached balance of address.
func (c *WalletCache) GetBalance(address string) (entity.Balance, bool) {
	c.balancesMu.RLock()
	defer c.balancesMu.RUnlock()
	b, ok := c.balances[balanceKey(address)]
	if !ok {
		return entity.Balance{}, false
	}
	return b.Clone(), true
}

// PutBalance stores a copy of b under address.
func (c *WalletCache) PutBalance(address string, b entity.Balance) {
	cp := b.Clone()
	c.balancesMu.Lock()
	defer c.balancesMu.Unlock()
	c.balances[balanceKey(address)] = cp
	c.metrics.SetCachedBalances(len(c.balances))
}

// RemoveBalance drops the balance of address.
func (c *WalletCache) RemoveBalance(address string) {
	c.balancesMu.Lock()
	defer c.balancesMu.Unlock()
	delete(c.balances, balanceKey(address))
	c.metrics.SetCachedBalances(len(c.balances))
}

// Clear empties both maps, taking walletsMu then balancesMu. Readers racing
// Clear may see either map before or after it independently.
func (c *WalletCache) Clear() {
	c.walletsMu.Lock()
	c.balancesMu.Lock()
	c.wallets = make(map[uuid.UUID]*entity.Wallet)
	c.balances = make(map[string]entity.Balance)
	c.metrics.SetCachedWallets(0)
	c.metrics.SetCachedBalances(0)
	c.balancesMu.Unlock()
	c.walletsMu.Unlock()
}

// Stats reads each count under its own lock.
func (c *WalletCache) Stats() Stats {
	var s Stats
	c.walletsMu.RLock()
	s.Wallets = len(c.wallets)
	c.walletsMu.RUnlock()

	c.balancesMu.RLock()
	s.Balances = len(c.balances)
	c.balancesMu.RUnlock()
	return s
}
