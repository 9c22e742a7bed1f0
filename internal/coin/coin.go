package coin

import (
	"strings"
	"time"

	"github.com/OKaluzny/devicewallet/internal/errs"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// BaseType is the chain family a coin belongs to. Command sets, chain
// clients and composers are selected by it.
type BaseType string

// Supported chain families.
const (
	BaseNEM     BaseType = "nem"
	BaseRipple  BaseType = "ripple"
	BaseStellar BaseType = "stellar"
)

// ErrUnknownCoin is returned when no descriptor is registered under a name
// (or it belongs to another family). Constructors treat it as fatal.
var ErrUnknownCoin = errors.New("unknown coin")

const (
	stellarPublicPassphrase  = "Public Global Stellar Network ; September 2015"
	stellarTestnetPassphrase = "Test SDF Network ; September 2015"
)

// NEMEpoch is the origin of NEM timestamps.
var NEMEpoch = time.Date(2015, time.March, 29, 0, 6, 25, 0, time.UTC)

// Descriptor is the immutable description of a coin.
type Descriptor struct {
	Name     string
	Shortcut string // backend path segment, e.g. XLM
	BaseType BaseType
	Slip44   uint32
	Test     bool
	Decimals int32

	// NetworkID is the NEM network byte.
	NetworkID byte
	// NetworkPassphrase identifies the Stellar network.
	NetworkPassphrase string
}

var registry = map[string]Descriptor{
	"nem": {
		Name: "Nem", Shortcut: "XEM", BaseType: BaseNEM,
		Slip44: 43, Decimals: 6, NetworkID: 0x68,
	},
	"nem testnet": {
		Name: "Nem Testnet", Shortcut: "TXEM", BaseType: BaseNEM,
		Slip44: 1, Test: true, Decimals: 6, NetworkID: 0x98,
	},
	"stellar": {
		Name: "Stellar", Shortcut: "XLM", BaseType: BaseStellar,
		Slip44: 148, Decimals: 7, NetworkPassphrase: stellarPublicPassphrase,
	},
	"stellar testnet": {
		Name: "Stellar Testnet", Shortcut: "TXLM", BaseType: BaseStellar,
		Slip44: 148, Test: true, Decimals: 7, NetworkPassphrase: stellarTestnetPassphrase,
	},
	"ripple": {
		Name: "Ripple", Shortcut: "XRP", BaseType: BaseRipple,
		Slip44: 144, Decimals: 6,
	},
}

// Get returns the descriptor registered under name (case-insensitive,
// matching either the name or the shortcut).
func Get(name string) (Descriptor, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if d, ok := registry[key]; ok {
		return d, nil
	}
	for _, d := range registry {
		if strings.EqualFold(d.Shortcut, key) {
			return d, nil
		}
	}
	return Descriptor{}, errors.Wrapf(ErrUnknownCoin, "%q", name)
}

// Lookup is Get restricted to one chain family.
func Lookup(name string, base BaseType) (Descriptor, error) {
	d, err := Get(name)
	if err != nil {
		return Descriptor{}, err
	}
	if d.BaseType != base {
		return Descriptor{}, errors.Wrapf(ErrUnknownCoin, "%q is not a %s coin", name, base)
	}
	return d, nil
}

// All returns every registered descriptor.
func All() []Descriptor {
	out := make([]Descriptor, 0, len(registry))
	for _, d := range registry {
		out = append(out, d)
	}
	return out
}

// ToUnits converts an amount to the coin's smallest unit. Amounts with more
// decimals than the coin supports are rejected, never rounded.
func (d Descriptor) ToUnits(v decimal.Decimal) (int64, error) {
	u := v.Shift(d.Decimals)
	if !u.Equal(u.Truncate(0)) {
		return 0, errors.Wrapf(errs.ErrInvalidParameter, "%s has more than %d decimals", v, d.Decimals)
	}
	return u.IntPart(), nil
}

// FromUnits converts smallest units to a decimal amount.
func (d Descriptor) FromUnits(n int64) decimal.Decimal {
	return decimal.New(n, -d.Decimals)
}
