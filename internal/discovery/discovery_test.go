package discovery

import (
	"context"
	"testing"

	"github.com/OKaluzny/devicewallet/internal/chain/chaintest"
	"github.com/OKaluzny/devicewallet/internal/coin"
	"github.com/OKaluzny/devicewallet/internal/commands"
	"github.com/OKaluzny/devicewallet/internal/device"
	"github.com/OKaluzny/devicewallet/internal/device/emulator"
	"github.com/OKaluzny/devicewallet/internal/errs"
	"github.com/OKaluzny/devicewallet/internal/path"
	"github.com/OKaluzny/devicewallet/pkg/models"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

type fixture struct {
	cmds      commands.CoinCommandSet
	dev       *device.Device
	chain     *chaintest.Client
	addresses []string
}

func newFixture(t *testing.T, coinName string, n int) *fixture {
	t.Helper()
	emu, err := emulator.New(testMnemonic, "")
	require.NoError(t, err)
	f := &fixture{dev: device.New(emu), chain: &chaintest.Client{}}
	f.cmds, err = commands.New(coinName)
	require.NoError(t, err)

	for i := 0; i < n; i++ {
		p, err := path.Derive(f.cmds.Coin(), uint32(i))
		require.NoError(t, err)
		addr, err := f.cmds.GetAddress(context.Background(), f.dev, p, false)
		require.NoError(t, err)
		f.addresses = append(f.addresses, addr)
	}
	return f
}

func (f *fixture) funded(i int, balance int64) {
	f.chain.On("QueryAddress", mock.Anything, f.addresses[i]).
		Return(&models.AccountState{Address: f.addresses[i], Balance: decimal.NewFromInt(balance), Sequence: int64(i + 1)}, nil).Once()
}

func (f *fixture) unknown(i int) {
	f.chain.On("QueryAddress", mock.Anything, f.addresses[i]).Return(nil, errs.ErrNotFound).Once()
}

func TestDiscover_StopsAtFirstUnknown(t *testing.T) {
	f := newFixture(t, "Stellar", 3)
	f.funded(0, 10)
	f.funded(1, 20)
	f.unknown(2)

	var seen []uint32
	accounts, err := New(f.cmds, f.dev, f.chain, Config{}).Discover(context.Background(), func(a models.AccountState) {
		seen = append(seen, a.Index)
	})
	require.NoError(t, err)

	require.Len(t, accounts, 2)
	assert.Equal(t, []uint32{0, 1}, seen)
	for i, a := range accounts {
		assert.Equal(t, uint32(i), a.Index)
		assert.Equal(t, f.addresses[i], a.Address)
	}
	assert.True(t, accounts[1].Balance.Equal(decimal.NewFromInt(20)))
	f.chain.AssertExpectations(t)
}

func TestDiscover_FirstAccountUnknown(t *testing.T) {
	f := newFixture(t, "Nem", 1)
	f.unknown(0)

	calls := 0
	accounts, err := New(f.cmds, f.dev, f.chain, Config{}).Discover(context.Background(), func(models.AccountState) { calls++ })
	require.NoError(t, err)
	assert.Empty(t, accounts)
	assert.Zero(t, calls)
}

func TestDiscover_BackendErrorPropagates(t *testing.T) {
	f := newFixture(t, "Stellar", 2)
	f.funded(0, 10)
	backendErr := &errs.BackendError{Op: "GET", URL: "http://x", StatusCode: 502}
	f.chain.On("QueryAddress", mock.Anything, f.addresses[1]).Return(nil, backendErr).Once()

	accounts, err := New(f.cmds, f.dev, f.chain, Config{}).Discover(context.Background(), nil)
	assert.Nil(t, accounts)
	var be *errs.BackendError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, 502, be.StatusCode)
}

func TestDiscover_DeviceErrorPropagates(t *testing.T) {
	emu, err := emulator.New(testMnemonic, "", emulator.RejectOn("StellarGetAddress"))
	require.NoError(t, err)
	cmds, err := commands.New("Stellar")
	require.NoError(t, err)
	client := &chaintest.Client{}

	_, err = New(cmds, device.New(emu), client, Config{}).Discover(context.Background(), nil)
	assert.True(t, errors.Is(err, errs.ErrDeviceRejected))
	client.AssertNotCalled(t, "QueryAddress", mock.Anything, mock.Anything)
}

func TestDiscover_MaxAccounts(t *testing.T) {
	f := newFixture(t, "Stellar", 2)
	f.funded(0, 1)
	f.funded(1, 1)

	accounts, err := New(f.cmds, f.dev, f.chain, Config{MaxAccounts: 2}).Discover(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, accounts, 2)
	f.chain.AssertNumberOfCalls(t, "QueryAddress", 2)
}

func TestDiscover_CanceledContext(t *testing.T) {
	f := newFixture(t, "Stellar", 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(f.cmds, f.dev, f.chain, Config{}).Discover(ctx, nil)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestDiscover_DeriverSuffix(t *testing.T) {
	f := newFixture(t, "Stellar", 0)
	cfg := Config{Deriver: path.Deriver{Suffix: map[coin.BaseType]path.DerivationPath{
		coin.BaseStellar: {0},
	}}}

	// ed25519 derivation refuses the unhardened suffix level.
	_, err := New(f.cmds, f.dev, f.chain, cfg).Discover(context.Background(), nil)
	require.Error(t, err)
	f.chain.AssertNotCalled(t, "QueryAddress", mock.Anything, mock.Anything)
}
