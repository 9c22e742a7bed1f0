package path

import (
	"fmt"
	"testing"

	"github.com/OKaluzny/devicewallet/internal/coin"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const h = hdkeychain.HardenedKeyStart

func TestParse(t *testing.T) {
	tests := []struct {
		input  string
		output DerivationPath
	}{
		{"m/44'/148'/0'", DerivationPath{h + 44, h + 148, h}},
		{"44'/43'/7'", DerivationPath{h + 44, h + 43, h + 7}},
		{"m/44'/144'/0'/0/5", DerivationPath{h + 44, h + 144, h, 0, 5}},
		{"m/2147483692/2147483796/2147483648", DerivationPath{h + 44, h + 148, h}},
		{"0/0", DerivationPath{0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			p, err := Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.output, p)
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	inputs := []string{
		"",
		"m",
		"m/",
		"/44'/148'/0'",
		"m/44'//0'",
		"m/-1'",
		"m/44''/148'",
		"m/4'4/148'",
		"m/0x2c'/148'/0'",
		"m/abc",
		"m/2147483648'",
		"m/4294967296",
		"m/44'/ 148'/0'",
	}
	for _, in := range inputs {
		t.Run(fmt.Sprintf("%q", in), func(t *testing.T) {
			p, err := Parse(in)
			assert.Nil(t, p)
			assert.True(t, errors.Is(err, ErrInvalidPath), "got %v", err)
		})
	}
}

func TestParse_RoundTrip(t *testing.T) {
	for _, slip44 := range []uint32{1, 43, 144, 148} {
		for _, n := range []uint32{0, 1, 19, 1 << 20} {
			s := fmt.Sprintf("44'/%d'/%d'", slip44, n)
			p, err := Parse(s)
			require.NoError(t, err)
			assert.Equal(t, DerivationPath{h + 44, h + slip44, h + n}, p)

			again, err := Parse(p.String())
			require.NoError(t, err)
			assert.Equal(t, p, again)
			assert.Equal(t, "m/"+s, p.String())
		}
	}
}

func TestDerive(t *testing.T) {
	xlm, err := coin.Get("Stellar")
	require.NoError(t, err)

	p, err := Derive(xlm, 3)
	require.NoError(t, err)
	assert.Equal(t, DerivationPath{h + 44, h + 148, h + 3}, p)
	assert.Equal(t, "m/44'/148'/3'", p.String())

	_, err = Derive(xlm, h)
	assert.True(t, errors.Is(err, ErrInvalidPath))
}

func TestDeriver_Suffix(t *testing.T) {
	xrp, err := coin.Get("Ripple")
	require.NoError(t, err)

	dv := Deriver{Suffix: map[coin.BaseType]DerivationPath{coin.BaseRipple: {0, 0}}}
	p, err := dv.Derive(xrp, 1)
	require.NoError(t, err)
	assert.Equal(t, "m/44'/144'/1'/0/0", p.String())
}

func TestParseAccount(t *testing.T) {
	xem, err := coin.Get("Nem")
	require.NoError(t, err)

	_, n, err := ParseAccount("m/44'/43'/12'", xem)
	require.NoError(t, err)
	assert.Equal(t, uint32(12), n)

	for _, bad := range []string{"m/44'/148'/0'", "m/44'/43'/0", "m/49'/43'/0'", "m/44'/43'/0'/0"} {
		_, _, err := ParseAccount(bad, xem)
		assert.True(t, errors.Is(err, ErrInvalidPath), bad)
	}
}

func TestClone(t *testing.T) {
	p := DerivationPath{h + 44, h + 148, h}
	c := p.Clone()
	c[2] = h + 1
	assert.Equal(t, uint32(h), p[2])
}
