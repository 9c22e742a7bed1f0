package coin

import (
	"testing"

	"github.com/OKaluzny/devicewallet/internal/errs"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet(t *testing.T) {
	tests := []struct {
		name   string
		base   BaseType
		slip44 uint32
	}{
		{"Nem", BaseNEM, 43},
		{"stellar", BaseStellar, 148},
		{"XLM", BaseStellar, 148},
		{"  Ripple ", BaseRipple, 144},
		{"Nem Testnet", BaseNEM, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Get(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.base, d.BaseType)
			assert.Equal(t, tt.slip44, d.Slip44)
		})
	}
}

func TestLookup_WrongFamily(t *testing.T) {
	_, err := Lookup("Stellar", BaseNEM)
	assert.True(t, errors.Is(err, ErrUnknownCoin))

	_, err = Lookup("Dogecoin", BaseNEM)
	assert.True(t, errors.Is(err, ErrUnknownCoin))
}

func TestNEMNetworkBytes(t *testing.T) {
	main, err := Lookup("Nem", BaseNEM)
	require.NoError(t, err)
	test, err := Lookup("Nem Testnet", BaseNEM)
	require.NoError(t, err)

	assert.Equal(t, byte(0x68), main.NetworkID)
	assert.Equal(t, byte(0x98), test.NetworkID)
	assert.True(t, test.Test)
}

func TestUnits(t *testing.T) {
	nem, err := Get("Nem")
	require.NoError(t, err)

	n, err := nem.ToUnits(decimal.RequireFromString("1.25"))
	require.NoError(t, err)
	assert.Equal(t, int64(1_250_000), n)
	assert.True(t, nem.FromUnits(n).Equal(decimal.RequireFromString("1.25")))

	_, err = nem.ToUnits(decimal.RequireFromString("0.0000001"))
	assert.True(t, errors.Is(err, errs.ErrInvalidParameter))
}
