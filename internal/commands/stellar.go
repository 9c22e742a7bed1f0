package commands

import (
	"context"

	"github.com/OKaluzny/devicewallet/internal/device"
	"github.com/OKaluzny/devicewallet/internal/envelope"
	"github.com/OKaluzny/devicewallet/internal/errs"
	"github.com/OKaluzny/devicewallet/pkg/models"
	"github.com/pkg/errors"
)

const stellarNativeAsset = 0

// Stellar is the Stellar command set. Signing is three-step: the header,
// then one message per operation, the last answered with the signature.
type Stellar struct {
	base
}

var _ CoinCommandSet = (*Stellar)(nil)

func (c *Stellar) GetAddress(ctx context.Context, dev *device.Device, p Path, display bool) (string, error) {
	levels, err := c.levels(dev, p)
	if err != nil {
		return "", err
	}
	resp, err := device.Expect[*device.StellarAddress](dev.Call(ctx, &device.StellarGetAddress{
		AddressN:    levels,
		ShowDisplay: display,
	}))
	if err != nil {
		return "", err
	}
	return resp.Address, nil
}

func (c *Stellar) GetAddresses(ctx context.Context, dev *device.Device, paths []Path) ([]string, error) {
	return getAddresses(ctx, dev, paths, c.GetAddress)
}

func (c *Stellar) GetPublicKey(ctx context.Context, dev *device.Device, p Path, display bool) (*models.PublicKey, error) {
	pk, _, err := c.getPublicKey(ctx, dev, p, display)
	return pk, err
}

func (c *Stellar) SignMessage(context.Context, *device.Device, Path, []byte, string) (*models.MessageSignature, error) {
	return nil, notImplemented("message signing", c.desc)
}

func (c *Stellar) VerifyMessage(context.Context, *device.Device, string, []byte, []byte, string) (bool, error) {
	return false, notImplemented("message verification", c.desc)
}

// SignTransaction runs the three-step exchange and assembles the base64
// envelope from the intent, the device public key and its signature.
func (c *Stellar) SignTransaction(ctx context.Context, dev *device.Device, tx *models.UnsignedTransaction) (*models.SignedTransaction, error) {
	plan, err := c.plan(dev, tx)
	if err != nil {
		return nil, err
	}

	sm := NewSigningMachine(plan, c.logger, c.metrics)
	resp, err := sm.Run(ctx, dev)
	if err != nil {
		return nil, err
	}
	signed := resp.(*device.StellarSignedTx)

	encoded, err := c.encoder.Encode(tx, signed.PublicKey, signed.Signature)
	if err != nil {
		return nil, &errs.SigningError{State: string(StateSigned), Err: errors.WithMessage(err, "assemble envelope")}
	}
	return &models.SignedTransaction{
		Network:   models.NetworkStellar,
		Encoded:   encoded,
		Signature: hexString(signed.Signature),
		PublicKey: hexString(signed.PublicKey),
	}, nil
}

// plan validates the intent and turns it into device messages.
func (c *Stellar) plan(dev *device.Device, tx *models.UnsignedTransaction) (SigningPlan, error) {
	if dev == nil || tx == nil {
		return SigningPlan{}, errors.Wrap(errs.ErrInvalidParameter, "device and transaction are required")
	}
	if len(tx.Path) == 0 {
		return SigningPlan{}, errors.Wrap(errs.ErrPathNotValid, "transaction has no path")
	}
	// Catches anything the envelope could not encode before the device
	// is involved.
	if _, err := envelope.Build(tx); err != nil {
		return SigningPlan{}, err
	}
	_, totalFee, err := envelope.Fees(tx)
	if err != nil {
		return SigningPlan{}, err
	}

	passphrase := tx.NetworkPassphrase
	if passphrase == "" {
		passphrase = c.desc.NetworkPassphrase
	}
	header := &device.StellarSignTx{
		AddressN:          tx.Path,
		NetworkPassphrase: passphrase,
		SourceAccount:     tx.Source,
		Fee:               totalFee,
		SequenceNumber:    tx.Sequence + 1,
		MemoType:          device.StellarMemoNone,
		NumOperations:     uint32(len(tx.Operations)),
	}
	if !tx.ValidAfter.IsZero() {
		header.TimeboundsStart = uint64(tx.ValidAfter.Unix())
	}
	if !tx.ValidBefore.IsZero() {
		header.TimeboundsEnd = uint64(tx.ValidBefore.Unix())
	}
	if tx.Memo != "" {
		header.MemoType = device.StellarMemoText
		header.MemoText = tx.Memo
	}

	ops := make([]device.Message, 0, len(tx.Operations))
	for _, op := range tx.Operations {
		amount, err := envelope.Stroops(op.Amount)
		if err != nil {
			return SigningPlan{}, err
		}
		switch op.Kind {
		case models.OpPayment:
			ops = append(ops, &device.StellarPaymentOp{
				SourceAccount:      op.Source,
				DestinationAccount: op.Destination,
				Asset:              device.StellarAsset{Type: stellarNativeAsset},
				Amount:             amount,
			})
		case models.OpCreateAccount:
			ops = append(ops, &device.StellarCreateAccountOp{
				SourceAccount:   op.Source,
				NewAccount:      op.Destination,
				StartingBalance: amount,
			})
		default:
			return SigningPlan{}, errors.Wrapf(errs.ErrInvalidParameter, "operation %q", op.Kind)
		}
	}

	return SigningPlan{
		Coin:       c.desc.Name,
		Header:     header,
		Operations: ops,
		IsAck: func(m device.Message) bool {
			_, ok := m.(*device.StellarTxOpRequest)
			return ok
		},
		IsResult: func(m device.Message) bool {
			_, ok := m.(*device.StellarSignedTx)
			return ok
		},
	}, nil
}
