// Package envelope turns an unsigned Stellar intent plus a device signature
// into the base64 XDR envelope a Horizon backend accepts.
package envelope

import (
	"github.com/OKaluzny/devicewallet/internal/errs"
	"github.com/OKaluzny/devicewallet/pkg/models"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stellar/go-stellar-sdk/keypair"
	"github.com/stellar/go-stellar-sdk/strkey"
	"github.com/stellar/go-stellar-sdk/txnbuild"
	"github.com/stellar/go-stellar-sdk/xdr"
)

// StroopsPerLumen is the fixed-point scale of Stellar amounts.
const StroopsPerLumen = 10_000_000

const stellarDecimals = 7

// Encoder assembles the final broadcast string of a signed transaction.
type Encoder interface {
	Encode(tx *models.UnsignedTransaction, publicKey, signature []byte) (string, error)
}

// Stellar is the txnbuild-backed Encoder.
type Stellar struct{}

var _ Encoder = Stellar{}

// Encode builds the envelope, attaches the decorated signature and returns
// the base64 XDR.
func (Stellar) Encode(tx *models.UnsignedTransaction, publicKey, signature []byte) (string, error) {
	if len(signature) != 64 {
		return "", errors.Wrapf(errs.ErrInvalidParameter, "signature is %d bytes", len(signature))
	}
	signer, err := strkey.Encode(strkey.VersionByteAccountID, publicKey)
	if err != nil {
		return "", errors.Wrap(errs.ErrInvalidParameter, "signer public key")
	}
	kp, err := keypair.ParseAddress(signer)
	if err != nil {
		return "", errors.Wrap(errs.ErrInvalidParameter, "signer public key")
	}

	built, err := Build(tx)
	if err != nil {
		return "", err
	}
	built, err = built.AddSignatureDecorated(xdr.DecoratedSignature{
		Hint:      xdr.SignatureHint(kp.Hint()),
		Signature: xdr.Signature(signature),
	})
	if err != nil {
		return "", errors.Wrap(err, "attach signature")
	}
	return built.Base64()
}

// Hash returns the network-bound hash a device signs for tx.
func Hash(tx *models.UnsignedTransaction) ([32]byte, error) {
	built, err := Build(tx)
	if err != nil {
		return [32]byte{}, err
	}
	return built.Hash(tx.NetworkPassphrase)
}

// Build converts the intent into a txnbuild transaction. tx.Sequence is the
// source account's current sequence; the built transaction carries
// Sequence+1.
func Build(tx *models.UnsignedTransaction) (*txnbuild.Transaction, error) {
	if tx == nil || len(tx.Operations) == 0 {
		return nil, errors.Wrap(errs.ErrInvalidParameter, "transaction has no operations")
	}
	baseFee, _, err := Fees(tx)
	if err != nil {
		return nil, err
	}

	ops := make([]txnbuild.Operation, 0, len(tx.Operations))
	for _, op := range tx.Operations {
		o, err := operation(op)
		if err != nil {
			return nil, err
		}
		ops = append(ops, o)
	}

	var memo txnbuild.Memo
	if tx.Memo != "" {
		memo = txnbuild.MemoText(tx.Memo)
	}

	built, err := txnbuild.NewTransaction(txnbuild.TransactionParams{
		SourceAccount:        &txnbuild.SimpleAccount{AccountID: tx.Source, Sequence: tx.Sequence},
		IncrementSequenceNum: true,
		BaseFee:              baseFee,
		Operations:           ops,
		Memo:                 memo,
		Preconditions: txnbuild.Preconditions{
			TimeBounds: txnbuild.NewTimebounds(unix(tx.ValidAfter.Unix()), unix(tx.ValidBefore.Unix())),
		},
	})
	if err != nil {
		return nil, errors.Wrap(errs.ErrInvalidParameter, err.Error())
	}
	return built, nil
}

// Fees splits the intent's total fee into the per-operation base fee and
// the total actually charged (base fee times operation count), in stroops.
func Fees(tx *models.UnsignedTransaction) (baseFee int64, total uint32, err error) {
	n := int64(len(tx.Operations))
	if n == 0 {
		return 0, 0, errors.Wrap(errs.ErrInvalidParameter, "transaction has no operations")
	}
	stroops, err := Stroops(tx.Fee)
	if err != nil {
		return 0, 0, err
	}
	baseFee = stroops / n
	if baseFee < txnbuild.MinBaseFee {
		return 0, 0, errors.Wrapf(errs.ErrInvalidParameter, "fee %s below minimum", tx.Fee)
	}
	return baseFee, uint32(baseFee * n), nil
}

// Stroops converts a lumen amount to stroops. Amounts with more than seven
// decimals are rejected.
func Stroops(d decimal.Decimal) (int64, error) {
	s := d.Shift(stellarDecimals)
	if !s.Equal(s.Truncate(0)) {
		return 0, errors.Wrapf(errs.ErrInvalidParameter, "amount %s has more than %d decimals", d, stellarDecimals)
	}
	return s.IntPart(), nil
}

// FromStroops converts stroops to lumens.
func FromStroops(n int64) decimal.Decimal {
	return decimal.New(n, -stellarDecimals)
}

func operation(op models.Operation) (txnbuild.Operation, error) {
	if !op.Amount.IsPositive() {
		return nil, errors.Wrapf(errs.ErrInvalidParameter, "amount %s", op.Amount)
	}
	if _, err := Stroops(op.Amount); err != nil {
		return nil, err
	}
	amount := op.Amount.StringFixed(stellarDecimals)

	switch op.Kind {
	case models.OpPayment:
		return &txnbuild.Payment{
			Destination:   op.Destination,
			Amount:        amount,
			Asset:         txnbuild.NativeAsset{},
			SourceAccount: op.Source,
		}, nil
	case models.OpCreateAccount:
		return &txnbuild.CreateAccount{
			Destination:   op.Destination,
			Amount:        amount,
			SourceAccount: op.Source,
		}, nil
	default:
		return nil, errors.Wrapf(errs.ErrInvalidParameter, "operation %q not supported on stellar", op.Kind)
	}
}

func unix(sec int64) int64 {
	// zero time.Time means no bound
	if sec < 0 {
		return 0
	}
	return sec
}
