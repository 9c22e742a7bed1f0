package tx

import (
	"crypto/ed25519"
	"testing"
	"time"

	"github.com/OKaluzny/devicewallet/internal/address"
	"github.com/OKaluzny/devicewallet/internal/coin"
	"github.com/OKaluzny/devicewallet/internal/errs"
	"github.com/OKaluzny/devicewallet/internal/path"
	"github.com/OKaluzny/devicewallet/pkg/models"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stellar/go-stellar-sdk/keypair"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func composer(t *testing.T, coinName string) Composer {
	t.Helper()
	d, err := coin.Get(coinName)
	require.NoError(t, err)
	c, err := NewComposer(d, path.Deriver{}, nil)
	require.NoError(t, err)
	return c
}

func nemAddress(seed byte, network byte) string {
	s := make([]byte, ed25519.SeedSize)
	s[0] = seed
	return address.EncodeNEM(ed25519.NewKeyFromSeed(s).Public().(ed25519.PublicKey), network)
}

func TestNewComposer_Ripple(t *testing.T) {
	d, err := coin.Get("Ripple")
	require.NoError(t, err)
	_, err = NewComposer(d, path.Deriver{}, nil)
	assert.True(t, errors.Is(err, errs.ErrNotImplemented))
}

func TestStellarReserve(t *testing.T) {
	tests := []struct {
		account models.AccountState
		want    string
	}{
		{models.AccountState{}, "1"},
		{models.AccountState{SubentryCount: 1}, "1.5"},
		{models.AccountState{SubentryCount: 3, NumSponsoring: 2, NumSponsored: 1}, "3"},
	}
	for _, tt := range tests {
		assert.True(t, StellarReserve(tt.account).Equal(dec(tt.want)), "got %s want %s", StellarReserve(tt.account), tt.want)
	}
}

func TestStellarCompose_Balance(t *testing.T) {
	c := composer(t, "Stellar")
	source := keypair.MustRandom().Address()
	dest := keypair.MustRandom().Address()
	// reserve (2 + 1) * 0.5 = 1.5
	account := models.AccountState{Index: 2, Address: source, Balance: dec("10"), Sequence: 42, SubentryCount: 1}

	tests := []struct {
		name    string
		amount  string
		wantErr error
	}{
		{"fits", "5", nil},
		{"exactly everything spendable", "8.49", nil},
		{"over by reserve", "9", errs.ErrInsufficientBalance},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx, err := c.Compose(SendRequest{To: dest, Amount: dec(tt.amount), Fee: dec("0.01")}, account)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				assert.Nil(t, tx)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, models.NetworkStellar, tx.Network)
			assert.Equal(t, source, tx.Source)
			assert.Equal(t, int64(42), tx.Sequence)
			assert.Equal(t, []uint32{path.Hardened(44), path.Hardened(148), path.Hardened(2)}, tx.Path)
			require.Len(t, tx.Operations, 1)
			assert.Equal(t, models.OpPayment, tx.Operations[0].Kind)
			assert.True(t, tx.Fee.Equal(dec("0.01")))
		})
	}
}

func TestStellarCompose_Details(t *testing.T) {
	c := composer(t, "Stellar Testnet")
	source := keypair.MustRandom().Address()
	dest := keypair.MustRandom().Address()
	account := models.AccountState{Address: source, Balance: dec("100")}
	now := time.Date(2024, 5, 1, 12, 0, 0, 500, time.UTC)

	tx, err := c.Compose(SendRequest{To: dest, Amount: dec("2"), Memo: "invoice 7", DestinationUnfunded: true, Now: now}, account)
	require.NoError(t, err)
	assert.Equal(t, models.OpCreateAccount, tx.Operations[0].Kind)
	assert.True(t, tx.Fee.Equal(StellarDefaultFee))
	assert.Equal(t, "invoice 7", tx.Memo)
	assert.Equal(t, now.Truncate(time.Second), tx.ValidAfter)
	assert.Equal(t, now.Truncate(time.Second).Add(StellarDefaultValidity), tx.ValidBefore)
	assert.Equal(t, "Test SDF Network ; September 2015", tx.NetworkPassphrase)

	// Trailing zeros beyond the coin's precision are still a whole stroop.
	tx, err = c.Compose(SendRequest{To: dest, Amount: dec("1.000000000")}, account)
	require.NoError(t, err)
	assert.True(t, tx.Operations[0].Amount.Equal(dec("1")))

	bad := []struct {
		name string
		req  SendRequest
	}{
		{"invalid destination", SendRequest{To: "GNOPE", Amount: dec("1")}},
		{"zero amount", SendRequest{To: dest, Amount: decimal.Zero}},
		{"too precise", SendRequest{To: dest, Amount: dec("0.00000001")}},
		{"memo too long", SendRequest{To: dest, Amount: dec("1"), Memo: "abcdefghijklmnopqrstuvwxyz012"}},
		{"unfunded below minimum", SendRequest{To: dest, Amount: dec("0.5"), DestinationUnfunded: true}},
		{"to self", SendRequest{To: source, Amount: dec("1")}},
		{"negative fee", SendRequest{To: dest, Amount: dec("1"), Fee: dec("-1")}},
	}
	for _, tt := range bad {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Compose(tt.req, account)
			assert.True(t, errors.Is(err, errs.ErrInvalidParameter), "got %v", err)
		})
	}
}

func TestNEMFee(t *testing.T) {
	tests := []struct {
		amount string
		memo   string
		want   string
	}{
		{"1", "", "0.05"},
		{"19999", "", "0.05"},
		{"25000", "", "0.1"},
		{"1000000", "", "1.25"},
		{"1", "hello", "0.1"},
		{"1", "0123456789012345678901234567890123", "0.15"},
	}
	for _, tt := range tests {
		got := NEMFee(dec(tt.amount), tt.memo)
		assert.True(t, got.Equal(dec(tt.want)), "NEMFee(%s, %q) = %s, want %s", tt.amount, tt.memo, got, tt.want)
	}
}

func TestNEMCompose(t *testing.T) {
	c := composer(t, "Nem")
	source := nemAddress(1, 0x68)
	dest := nemAddress(2, 0x68)
	account := models.AccountState{Index: 0, Address: source, Balance: dec("100")}
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	tx, err := c.Compose(SendRequest{To: dest, Amount: dec("10"), Memo: "hi", Now: now}, account)
	require.NoError(t, err)
	assert.Equal(t, models.NetworkNEM, tx.Network)
	assert.True(t, tx.Fee.Equal(dec("0.1")))
	assert.Equal(t, byte(0x68), tx.NetworkID)
	assert.Equal(t, now.Add(NEMDefaultValidity), tx.ValidBefore)
	assert.Equal(t, []models.Operation{{Kind: models.OpTransfer, Destination: dest, Amount: dec("10")}}, tx.Operations)

	_, err = c.Compose(SendRequest{To: dest, Amount: dec("99.96"), Now: now}, account)
	assert.True(t, errors.Is(err, errs.ErrInsufficientBalance))

	bad := []struct {
		name string
		req  SendRequest
	}{
		{"testnet destination", SendRequest{To: nemAddress(2, 0x98), Amount: dec("1"), Now: now}},
		{"validity over a day", SendRequest{To: dest, Amount: dec("1"), Validity: 25 * time.Hour, Now: now}},
		{"fee below minimum", SendRequest{To: dest, Amount: dec("1"), Fee: dec("0.01"), Now: now}},
		{"before epoch", SendRequest{To: dest, Amount: dec("1"), Now: coin.NEMEpoch.Add(-time.Hour)}},
	}
	for _, tt := range bad {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Compose(tt.req, account)
			assert.True(t, errors.Is(err, errs.ErrInvalidParameter), "got %v", err)
		})
	}
}
