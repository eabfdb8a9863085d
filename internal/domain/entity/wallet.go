package entity

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// WalletType describes how the keys of a tracked wallet are held.
type WalletType string

const (
	WalletWatchOnly WalletType = "watch_only"
	WalletCold      WalletType = "cold"
	WalletHardware  WalletType = "hardware"
)

// WalletStatus is the sync lifecycle state of a wallet.
type WalletStatus string

const (
	WalletActive   WalletStatus = "active"
	WalletInactive WalletStatus = "inactive"
	WalletSyncing  WalletStatus = "syncing"
	WalletError    WalletStatus = "error"
)

// Address is a chain-formatted address plus its last known balance.
type Address struct {
	Address        string    `json:"address"`
	Label          string    `json:"label,omitempty"`
	DerivationPath string    `json:"derivationPath,omitempty"`
	Balance        *Balance  `json:"balance,omitempty"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// UpdateBalance replaces the balance snapshot.
func (a *Address) UpdateBalance(b Balance) {
	a.Balance = &b
	a.UpdatedAt = time.Now().UTC()
}

// Wallet is a watch-only, cold or hardware wallet tracked on one chain.
type Wallet struct {
	ID            uuid.UUID    `json:"id"`
	Name          string       `json:"name"`
	Type          WalletType   `json:"type"`
	Chain         Chain        `json:"chain"`
	Status        WalletStatus `json:"status"`
	StatusMessage string       `json:"statusMessage,omitempty"`
	Addresses     []Address    `json:"addresses"`
	Xpub          string       `json:"xpub,omitempty"`
	XpubBalance   *Balance     `json:"xpubBalance,omitempty"`
	Tags          []string     `json:"tags,omitempty"`
	CreatedAt     time.Time    `json:"createdAt"`
	UpdatedAt     time.Time    `json:"updatedAt"`
	LastSync      *time.Time   `json:"lastSync,omitempty"`
}

// NewWallet creates an active wallet with a fresh id.
func NewWallet(name string, walletType WalletType, chain Chain, addresses []string, xpub string) *Wallet {
	now := time.Now().UTC()
	w := &Wallet{
		ID:        uuid.New(),
		Name:      name,
		Type:      walletType,
		Chain:     chain,
		Status:    WalletActive,
		Xpub:      strings.TrimSpace(xpub),
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, a := range addresses {
		w.Addresses = append(w.Addresses, Address{Address: strings.TrimSpace(a), UpdatedAt: now})
	}
	return w
}

// AddressStrings returns the plain address strings in wallet order.
func (w *Wallet) AddressStrings() []string {
	out := make([]string, len(w.Addresses))
	for i, a := range w.Addresses {
		out[i] = a.Address
	}
	return out
}

// SetStatus moves the wallet to status and clears any error message.
func (w *Wallet) SetStatus(status WalletStatus) {
	w.Status = status
	w.StatusMessage = ""
	w.UpdatedAt = time.Now().UTC()
}

// MarkSynced records a successful sync.
func (w *Wallet) MarkSynced() {
	now := time.Now().UTC()
	w.Status = WalletActive
	w.StatusMessage = ""
	w.LastSync = &now
	w.UpdatedAt = now
}

// MarkError moves the wallet into the error state with a readable message.
func (w *Wallet) MarkError(msg string) {
	w.Status = WalletError
	w.StatusMessage = msg
	w.UpdatedAt = time.Now().UTC()
}

// NeedsSync reports whether the last sync is older than interval.
func (w *Wallet) NeedsSync(interval time.Duration, now time.Time) bool {
	if w.LastSync == nil {
		return true
	}
	return now.Sub(*w.LastSync) > interval
}

// Clone returns a deep copy so cached values cannot be mutated through shared pointers.
func (w *Wallet) Clone() *Wallet {
	if w == nil {
		return nil
	}
	out := *w
	if w.Addresses != nil {
		out.Addresses = make([]Address, len(w.Addresses))
		for i, a := range w.Addresses {
			out.Addresses[i] = a
			if a.Balance != nil {
				b := a.Balance.Clone()
				out.Addresses[i].Balance = &b
			}
		}
	}
	if w.XpubBalance != nil {
		b := w.XpubBalance.Clone()
		out.XpubBalance = &b
	}
	if w.Tags != nil {
		out.Tags = append([]string(nil), w.Tags...)
	}
	if w.LastSync != nil {
		ls := *w.LastSync
		out.LastSync = &ls
	}
	return &out
}
