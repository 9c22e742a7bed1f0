package envelope

import (
	"crypto/ed25519"
	"testing"
	"time"

	"github.com/OKaluzny/devicewallet/internal/errs"
	"github.com/OKaluzny/devicewallet/pkg/models"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stellar/go-stellar-sdk/keypair"
	"github.com/stellar/go-stellar-sdk/strkey"
	"github.com/stellar/go-stellar-sdk/txnbuild"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPassphrase = "Test SDF Network ; September 2015"

func testKey(t *testing.T) (ed25519.PrivateKey, string) {
	t.Helper()
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = byte(i)
	}
	priv := ed25519.NewKeyFromSeed(seed)
	addr, err := strkey.Encode(strkey.VersionByteAccountID, priv.Public().(ed25519.PublicKey))
	require.NoError(t, err)
	return priv, addr
}

func testIntent(source, dest string) *models.UnsignedTransaction {
	return &models.UnsignedTransaction{
		Network:  models.NetworkStellar,
		Source:   source,
		Fee:      decimal.RequireFromString("0.00001"),
		Sequence: 41,
		Operations: []models.Operation{
			{Kind: models.OpPayment, Destination: dest, Amount: decimal.RequireFromString("5")},
		},
		Memo:              "invoice 7",
		ValidAfter:        time.Unix(1_700_000_000, 0),
		ValidBefore:       time.Unix(1_700_000_300, 0),
		NetworkPassphrase: testPassphrase,
	}
}

func TestStellar_Encode(t *testing.T) {
	priv, source := testKey(t)
	dest := keypair.MustRandom().Address()
	tx := testIntent(source, dest)

	hash, err := Hash(tx)
	require.NoError(t, err)
	sig := ed25519.Sign(priv, hash[:])

	encoded, err := Stellar{}.Encode(tx, priv.Public().(ed25519.PublicKey), sig)
	require.NoError(t, err)

	// same inputs, same envelope
	again, err := Stellar{}.Encode(tx, priv.Public().(ed25519.PublicKey), sig)
	require.NoError(t, err)
	assert.Equal(t, encoded, again)

	parsed, err := txnbuild.TransactionFromXDR(encoded)
	require.NoError(t, err)
	decoded, ok := parsed.Transaction()
	require.True(t, ok)

	assert.Equal(t, int64(42), decoded.SequenceNumber())
	assert.Equal(t, int64(100), decoded.BaseFee())
	require.Len(t, decoded.Signatures(), 1)

	kp := keypair.MustParseAddress(source)
	assert.NoError(t, kp.Verify(hash[:], decoded.Signatures()[0].Signature))
}

func TestStellar_EncodeRejectsBadInput(t *testing.T) {
	priv, source := testKey(t)
	dest := keypair.MustRandom().Address()

	tests := []struct {
		name   string
		mutate func(*models.UnsignedTransaction)
		sig    []byte
	}{
		{"short signature", func(*models.UnsignedTransaction) {}, []byte{1, 2, 3}},
		{"no operations", func(tx *models.UnsignedTransaction) { tx.Operations = nil }, make([]byte, 64)},
		{"fee below minimum", func(tx *models.UnsignedTransaction) { tx.Fee = decimal.RequireFromString("0.000001") }, make([]byte, 64)},
		{"too many decimals", func(tx *models.UnsignedTransaction) {
			tx.Operations[0].Amount = decimal.RequireFromString("1.00000001")
		}, make([]byte, 64)},
		{"unsupported op", func(tx *models.UnsignedTransaction) { tx.Operations[0].Kind = models.OpTransfer }, make([]byte, 64)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := testIntent(source, dest)
			tt.mutate(tx)
			_, err := Stellar{}.Encode(tx, priv.Public().(ed25519.PublicKey), tt.sig)
			assert.True(t, errors.Is(err, errs.ErrInvalidParameter), "got %v", err)
		})
	}
}

func TestFees(t *testing.T) {
	tx := &models.UnsignedTransaction{
		Fee:        decimal.RequireFromString("0.0000301"),
		Operations: make([]models.Operation, 3),
	}
	base, total, err := Fees(tx)
	require.NoError(t, err)
	assert.Equal(t, int64(100), base)
	assert.Equal(t, uint32(300), total)
}

func TestStroops(t *testing.T) {
	n, err := Stroops(decimal.RequireFromString("1.5"))
	require.NoError(t, err)
	assert.Equal(t, int64(15_000_000), n)
	assert.True(t, FromStroops(n).Equal(decimal.RequireFromString("1.5")))
}
