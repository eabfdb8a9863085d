package client

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"wallet_indexer/internal/domain/entity"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	gocache "github.com/patrickmn/go-cache"
)

const (
	externalBranch = 0
	changeBranch   = 1

	defaultGapLimit = 20
)

type scriptKind int

const (
	scriptP2PKH scriptKind = iota
	scriptP2SHP2WPKH
	scriptP2WPKH
)

// extended public key prefix -> address script and whether it is a testnet key
var extendedKeyPrefixes = map[string]struct { //nolint:gochecknoglobals
	kind    scriptKind
	testnet bool
}{
	"xpub": {scriptP2PKH, false},
	"ypub": {scriptP2SHP2WPKH, false},
	"zpub": {scriptP2WPKH, false},
	"tpub": {scriptP2PKH, true},
	"upub": {scriptP2SHP2WPKH, true},
	"vpub": {scriptP2WPKH, true},
}

// IsExtendedKey reports whether s looks like a serialized extended public key.
func IsExtendedKey(s string) bool {
	s = strings.TrimSpace(s)
	if len(s) < 4 {
		return false
	}
	_, ok := extendedKeyPrefixes[s[:4]]
	return ok
}

// ParseBitcoinNetwork maps a config value onto chain parameters.
func ParseBitcoinNetwork(name string) (*chaincfg.Params, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "mainnet", "main":
		return &chaincfg.MainNetParams, nil
	case "testnet", "testnet3":
		return &chaincfg.TestNet3Params, nil
	case "regtest":
		return &chaincfg.RegressionNetParams, nil
	case "signet":
		return &chaincfg.SigNetParams, nil
	}
	return nil, entity.NewSyncError(entity.KindConfig, entity.Bitcoin, "network", fmt.Errorf("unknown bitcoin network %q", name))
}

// XpubDeriver expands extended public keys into receive and change addresses.
// Derived sets are memoised for the configured TTL.
type XpubDeriver struct {
	params   *chaincfg.Params
	gapLimit int
	cache    *gocache.Cache
}

// NewXpubDeriver derives gapLimit addresses per branch. params selects the
// network used for testnet-prefixed keys and for address validation.
func NewXpubDeriver(params *chaincfg.Params, gapLimit int, ttl time.Duration) *XpubDeriver {
	if params == nil {
		params = &chaincfg.MainNetParams
	}
	if gapLimit <= 0 {
		gapLimit = defaultGapLimit
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &XpubDeriver{
		params:   params,
		gapLimit: gapLimit,
		cache:    gocache.New(ttl, 2*ttl),
	}
}

// Derive returns the external addresses followed by the change addresses of xpub.
func (d *XpubDeriver) Derive(xpub string) ([]string, error) {
	xpub = strings.TrimSpace(xpub)
	cacheKey := fmt.Sprintf("%s/%d", xpub, d.gapLimit)
	if cached, ok := d.cache.Get(cacheKey); ok {
		return append([]string(nil), cached.([]string)...), nil
	}

	if !IsExtendedKey(xpub) {
		return nil, entity.NewSyncError(entity.KindValidation, entity.Bitcoin, "derive", errors.New("unsupported extended key prefix"))
	}
	prefix := extendedKeyPrefixes[xpub[:4]]
	params := &chaincfg.MainNetParams
	if prefix.testnet {
		params = d.params
		if params.Net == chaincfg.MainNetParams.Net {
			params = &chaincfg.TestNet3Params
		}
	}

	key, err := hdkeychain.NewKeyFromString(xpub)
	if err != nil {
		return nil, entity.NewSyncError(entity.KindValidation, entity.Bitcoin, "derive", fmt.Errorf("invalid extended key: %w", err))
	}
	if key.IsPrivate() {
		return nil, entity.NewSyncError(entity.KindValidation, entity.Bitcoin, "derive", errors.New("extended private keys are not accepted"))
	}

	addresses := make([]string, 0, 2*d.gapLimit)
	for _, branch := range []uint32{externalBranch, changeBranch} {
		branchKey, err := key.Derive(branch)
		if err != nil {
			return nil, entity.NewSyncError(entity.KindValidation, entity.Bitcoin, "derive", fmt.Errorf("branch %d: %w", branch, err))
		}
		for i := 0; i < d.gapLimit; i++ {
			child, err := branchKey.Derive(uint32(i))
			if err != nil {
				return nil, entity.NewSyncError(entity.KindValidation, entity.Bitcoin, "derive", fmt.Errorf("%d/%d: %w", branch, i, err))
			}
			addr, err := childAddress(child, prefix.kind, params)
			if err != nil {
				return nil, entity.NewSyncError(entity.KindValidation, entity.Bitcoin, "derive", fmt.Errorf("%d/%d: %w", branch, i, err))
			}
			addresses = append(addresses, addr)
		}
	}

	d.cache.Set(cacheKey, addresses, gocache.DefaultExpiration)
	return append([]string(nil), addresses...), nil
}

func childAddress(child *hdkeychain.ExtendedKey, kind scriptKind, params *chaincfg.Params) (string, error) {
	pub, err := child.ECPubKey()
	if err != nil {
		return "", err
	}
	pkHash := btcutil.Hash160(pub.SerializeCompressed())

	switch kind {
	case scriptP2WPKH:
		addr, err := btcutil.NewAddressWitnessPubKeyHash(pkHash, params)
		if err != nil {
			return "", err
		}
		return addr.EncodeAddress(), nil
	case scriptP2SHP2WPKH:
		// redeem script: OP_0 <20-byte key hash>
		redeem := append([]byte{0x00, 0x14}, pkHash...)
		addr, err := btcutil.NewAddressScriptHash(redeem, params)
		if err != nil {
			return "", err
		}
		return addr.EncodeAddress(), nil
	default:
		addr, err := btcutil.NewAddressPubKeyHash(pkHash, params)
		if err != nil {
			return "", err
		}
		return addr.EncodeAddress(), nil
	}
}

// ValidateAddress checks that addr decodes for the configured network.
func (d *XpubDeriver) ValidateAddress(addr string) error {
	decoded, err := btcutil.DecodeAddress(addr, d.params)
	if err != nil {
		return entity.NewSyncError(entity.KindValidation, entity.Bitcoin, "validate", fmt.Errorf("invalid address %q: %w", addr, err))
	}
	if !decoded.IsForNet(d.params) {
		return entity.NewSyncError(entity.KindValidation, entity.Bitcoin, "validate", fmt.Errorf("address %q is not for %s", addr, d.params.Name))
	}
	return nil
}
