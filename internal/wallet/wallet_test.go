package wallet

import (
	"context"
	"encoding/hex"
	"testing"

	"github.com/OKaluzny/devicewallet/internal/chain"
	"github.com/OKaluzny/devicewallet/internal/chain/chaintest"
	"github.com/OKaluzny/devicewallet/internal/device"
	"github.com/OKaluzny/devicewallet/internal/device/emulator"
	"github.com/OKaluzny/devicewallet/internal/errs"
	"github.com/OKaluzny/devicewallet/internal/listener"
	"github.com/OKaluzny/devicewallet/internal/storage"
	"github.com/OKaluzny/devicewallet/internal/tx"
	"github.com/OKaluzny/devicewallet/pkg/models"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stellar/go-stellar-sdk/keypair"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func testDevice(t *testing.T, opts ...emulator.Option) *device.Device {
	t.Helper()
	emu, err := emulator.New(testMnemonic, "", opts...)
	require.NoError(t, err)
	return device.New(emu)
}

func newStellarWallet(t *testing.T, dev *device.Device) (*Wallet, *chaintest.Client) {
	t.Helper()
	client := &chaintest.Client{}
	w, err := New("Stellar", dev, Options{Chain: client})
	require.NoError(t, err)
	return w, client
}

// discovered runs discovery with accounts 0 and 1 funded.
func discovered(t *testing.T, w *Wallet, client *chaintest.Client) []string {
	t.Helper()
	ctx := context.Background()
	var addrs []string
	for i := uint32(0); i < 3; i++ {
		a, err := w.Address(ctx, i, false)
		require.NoError(t, err)
		addrs = append(addrs, a)
	}
	client.On("QueryAddress", mock.Anything, addrs[0]).
		Return(&models.AccountState{Balance: decimal.NewFromInt(10), Sequence: 100, SubentryCount: 1}, nil).Once()
	client.On("QueryAddress", mock.Anything, addrs[1]).
		Return(&models.AccountState{Balance: decimal.NewFromInt(3), Sequence: 200}, nil).Once()
	client.On("QueryAddress", mock.Anything, addrs[2]).Return(nil, errs.ErrNotFound).Once()

	var called int
	found, err := w.Discover(ctx, func(models.AccountState) { called++ })
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, 2, called)
	return addrs
}

func TestNew(t *testing.T) {
	_, err := New("Stellar", nil, Options{})
	assert.True(t, errors.Is(err, errs.ErrInvalidParameter))

	_, err = New("Dogecoin", testDevice(t), Options{})
	assert.Error(t, err)

	// Ripple has no backend but still serves addresses.
	w, err := New("Ripple", testDevice(t), Options{})
	require.NoError(t, err)
	addr, err := w.Address(context.Background(), 0, false)
	require.NoError(t, err)
	assert.True(t, w.IsAddressValid(addr))

	_, err = w.Discover(context.Background(), nil)
	assert.True(t, errors.Is(err, errs.ErrNotImplemented))
	_, err = w.Fee(context.Background())
	assert.True(t, errors.Is(err, errs.ErrNotImplemented))
	_, err = w.Send(context.Background(), tx.SendRequest{}, 0)
	assert.True(t, errors.Is(err, errs.ErrNotImplemented))
}

func TestWallet_DiscoverStoresAccounts(t *testing.T) {
	w, client := newStellarWallet(t, testDevice(t))
	addrs := discovered(t, w, client)

	accounts, err := w.Accounts()
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, addrs[0], accounts[0].Address)
	assert.Equal(t, uint32(1), accounts[1].Index)

	a, err := w.Account(1)
	require.NoError(t, err)
	assert.Equal(t, int64(200), a.Sequence)

	_, err = w.Account(2)
	assert.True(t, errors.Is(err, errs.ErrInvalidParameter))
}

func TestWallet_DiscoverErrorKeepsRecords(t *testing.T) {
	w, client := newStellarWallet(t, testDevice(t))
	addrs := discovered(t, w, client)

	client.On("QueryAddress", mock.Anything, addrs[0]).Return(nil, &errs.BackendError{StatusCode: 503}).Once()
	_, err := w.Discover(context.Background(), nil)
	require.Error(t, err)

	accounts, err := w.Accounts()
	require.NoError(t, err)
	assert.Len(t, accounts, 2)
}

func TestWallet_RefreshAndTransactions(t *testing.T) {
	w, client := newStellarWallet(t, testDevice(t))
	addrs := discovered(t, w, client)
	ctx := context.Background()

	client.On("QueryAddress", mock.Anything, addrs[1]).
		Return(&models.AccountState{Balance: decimal.NewFromInt(4), Sequence: 201}, nil).Once()
	fresh, err := w.Refresh(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, addrs[1], fresh.Address)
	assert.Equal(t, uint32(1), fresh.Index)
	stored, _ := w.Account(1)
	assert.Equal(t, int64(201), stored.Sequence)

	page := &models.TransactionPage{Transactions: []models.TransactionRecord{{Hash: "h"}}, NextCursor: "c"}
	client.On("QueryTransactions", mock.Anything, addrs[0], "").Return(page, nil).Once()
	got, err := w.Transactions(ctx, 0, "")
	require.NoError(t, err)
	assert.Equal(t, "c", got.NextCursor)

	_, err = w.Transactions(ctx, 5, "")
	assert.True(t, errors.Is(err, errs.ErrInvalidParameter))

	client.On("QueryFee", mock.Anything).Return(&models.FeeInfo{Base: decimal.RequireFromString("0.00001")}, nil).Once()
	fee, err := w.Fee(ctx)
	require.NoError(t, err)
	assert.True(t, fee.Base.Equal(decimal.RequireFromString("0.00001")))
}

func TestWallet_TransactionOperations(t *testing.T) {
	w, client := newStellarWallet(t, testDevice(t))
	ctx := context.Background()

	ops := []models.Operation{{Kind: models.OpPayment, Destination: "GB", Amount: decimal.NewFromInt(5)}}
	client.On("Operations", mock.Anything, "aa").Return(ops, nil).Once()
	got, err := w.TransactionOperations(ctx, "aa")
	require.NoError(t, err)
	assert.Equal(t, ops, got)

	_, err = w.TransactionOperations(ctx, "")
	assert.True(t, errors.Is(err, errs.ErrInvalidParameter))

	// The NEM backend does not itemize transactions.
	nem, err := New("Nem", testDevice(t), Options{ChainConfig: chain.Config{BaseURL: "http://127.0.0.1:1/"}})
	require.NoError(t, err)
	_, err = nem.TransactionOperations(ctx, "aa")
	assert.True(t, errors.Is(err, errs.ErrNotImplemented))
}

func TestWallet_Send(t *testing.T) {
	w, client := newStellarWallet(t, testDevice(t))
	discovered(t, w, client)
	client.On("Broadcast", mock.Anything, mock.Anything).Return(&models.BroadcastReceipt{Hash: "abc"}, nil).Once()

	receipt, err := w.Send(context.Background(), tx.SendRequest{
		To:     keypair.MustRandom().Address(),
		Amount: decimal.NewFromInt(5),
		Fee:    decimal.RequireFromString("0.01"),
	}, 0)
	require.NoError(t, err)
	assert.Equal(t, "abc", receipt.Hash)

	a, _ := w.Account(0)
	assert.Equal(t, int64(101), a.Sequence)

	_, err = w.Send(context.Background(), tx.SendRequest{
		To:     keypair.MustRandom().Address(),
		Amount: decimal.NewFromInt(9),
		Fee:    decimal.RequireFromString("0.01"),
	}, 0)
	assert.True(t, errors.Is(err, errs.ErrInsufficientBalance))
}

func TestWallet_SendReplayKeepsSequence(t *testing.T) {
	w, client := newStellarWallet(t, testDevice(t))
	discovered(t, w, client)
	client.On("Broadcast", mock.Anything, mock.Anything).Return(&models.BroadcastReceipt{Hash: "abc"}, nil).Once()

	req := tx.SendRequest{
		IdempotencyKey: "k1",
		To:             keypair.MustRandom().Address(),
		Amount:         decimal.NewFromInt(1),
	}
	for i := 0; i < 4; i++ {
		receipt, err := w.Send(context.Background(), req, 0)
		require.NoError(t, err)
		assert.Equal(t, "abc", receipt.Hash)
		assert.Equal(t, i > 0, receipt.Replayed)
	}

	a, _ := w.Account(0)
	assert.Equal(t, int64(101), a.Sequence)
	client.AssertNumberOfCalls(t, "Broadcast", 1)
}

func TestWallet_SendRejected(t *testing.T) {
	w, client := newStellarWallet(t, testDevice(t, emulator.RejectOn("StellarPaymentOp")))
	discovered(t, w, client)

	_, err := w.Send(context.Background(), tx.SendRequest{
		To:     keypair.MustRandom().Address(),
		Amount: decimal.NewFromInt(1),
	}, 0)
	assert.True(t, errors.Is(err, errs.ErrDeviceRejected))

	a, _ := w.Account(0)
	assert.Equal(t, int64(100), a.Sequence)
	client.AssertNotCalled(t, "Broadcast", mock.Anything, mock.Anything)
}

func TestWallet_BuildSignBroadcast(t *testing.T) {
	w, client := newStellarWallet(t, testDevice(t))
	discovered(t, w, client)
	ctx := context.Background()

	unsigned, err := w.BuildTransaction(tx.SendRequest{To: keypair.MustRandom().Address(), Amount: decimal.NewFromInt(1)}, 1)
	require.NoError(t, err)
	signed, err := w.SignTransaction(ctx, unsigned)
	require.NoError(t, err)
	assert.NotEmpty(t, signed.Encoded)

	client.On("Broadcast", mock.Anything, signed).Return(&models.BroadcastReceipt{Hash: "h"}, nil).Once()
	receipt, err := w.Broadcast(ctx, 1, signed)
	require.NoError(t, err)
	assert.Equal(t, "h", receipt.Hash)

	// The next intent from the same account uses the following sequence.
	a, _ := w.Account(1)
	assert.Equal(t, int64(201), a.Sequence)
	next, err := w.BuildTransaction(tx.SendRequest{To: keypair.MustRandom().Address(), Amount: decimal.NewFromInt(1)}, 1)
	require.NoError(t, err)
	assert.Equal(t, unsigned.Sequence+1, next.Sequence)

	_, err = w.Broadcast(ctx, 7, signed)
	assert.True(t, errors.Is(err, errs.ErrInvalidParameter))
}

func TestWallet_BroadcastFailureKeepsSequence(t *testing.T) {
	w, client := newStellarWallet(t, testDevice(t))
	discovered(t, w, client)
	ctx := context.Background()

	unsigned, err := w.BuildTransaction(tx.SendRequest{To: keypair.MustRandom().Address(), Amount: decimal.NewFromInt(1)}, 0)
	require.NoError(t, err)
	signed, err := w.SignTransaction(ctx, unsigned)
	require.NoError(t, err)

	client.On("Broadcast", mock.Anything, signed).Return(nil, &errs.BackendError{StatusCode: 400}).Once()
	_, err = w.Broadcast(ctx, 0, signed)
	require.Error(t, err)

	a, _ := w.Account(0)
	assert.Equal(t, int64(100), a.Sequence)
}

func TestWallet_NEMMessages(t *testing.T) {
	client := &chaintest.Client{}
	w, err := New("Nem", testDevice(t), Options{Chain: client})
	require.NoError(t, err)
	ctx := context.Background()

	addr, err := w.Address(ctx, 0, false)
	require.NoError(t, err)
	assert.True(t, w.IsAddressValid(addr))
	assert.False(t, w.IsAddressValid("GABC"))

	sig, err := w.SignMessage(ctx, 0, []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, addr, sig.Address)

	raw, err := hex.DecodeString(sig.Signature)
	require.NoError(t, err)
	ok, err := w.VerifyMessage(ctx, addr, []byte("hello"), raw)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = w.VerifyMessage(ctx, addr, []byte("tampered"), raw)
	require.NoError(t, err)
	assert.False(t, ok)

	pk, err := w.PublicKey(ctx, 0, false)
	require.NoError(t, err)
	assert.Equal(t, "m/44'/43'/0'", pk.Path)

	// Another wallet on a new device with the same seed.
	other, err := New("Nem", testDevice(t), Options{Chain: client})
	require.NoError(t, err)
	ok, err = other.VerifyMessage(ctx, addr, []byte("hello"), raw)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestWallet_Watch(t *testing.T) {
	w, client := newStellarWallet(t, testDevice(t))
	addrs := discovered(t, w, client)

	ws := storage.NewMemoryWatchStore()
	l := listener.NewPollingListener(models.NetworkStellar, 0, ws, client, listener.PollingConfig{})
	require.NoError(t, w.Watch(l))

	watched, _ := ws.List()
	assert.ElementsMatch(t, addrs[:2], watched)
}
