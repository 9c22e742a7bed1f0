package commands

import (
	"context"

	"github.com/OKaluzny/devicewallet/internal/device"
	"github.com/OKaluzny/devicewallet/pkg/models"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/pkg/errors"
)

// Ripple covers addresses and public keys only.
type Ripple struct {
	base
}

var _ CoinCommandSet = (*Ripple)(nil)

func (c *Ripple) GetAddress(ctx context.Context, dev *device.Device, p Path, display bool) (string, error) {
	levels, err := c.levels(dev, p)
	if err != nil {
		return "", err
	}
	resp, err := device.Expect[*device.RippleAddress](dev.Call(ctx, &device.RippleGetAddress{
		AddressN:    levels,
		ShowDisplay: display,
	}))
	if err != nil {
		return "", err
	}
	return resp.Address, nil
}

func (c *Ripple) GetAddresses(ctx context.Context, dev *device.Device, paths []Path) ([]string, error) {
	return getAddresses(ctx, dev, paths, c.GetAddress)
}

// GetPublicKey rejects keys that are not valid secp256k1 points.
func (c *Ripple) GetPublicKey(ctx context.Context, dev *device.Device, p Path, display bool) (*models.PublicKey, error) {
	pk, raw, err := c.getPublicKey(ctx, dev, p, display)
	if err != nil {
		return nil, err
	}
	if _, err := btcec.ParsePubKey(raw); err != nil {
		return nil, errors.Wrap(device.ErrUnexpectedMessage, "device returned an invalid secp256k1 key")
	}
	return pk, nil
}

func (c *Ripple) SignMessage(context.Context, *device.Device, Path, []byte, string) (*models.MessageSignature, error) {
	return nil, notImplemented("message signing", c.desc)
}

func (c *Ripple) VerifyMessage(context.Context, *device.Device, string, []byte, []byte, string) (bool, error) {
	return false, notImplemented("message verification", c.desc)
}

func (c *Ripple) SignTransaction(context.Context, *device.Device, *models.UnsignedTransaction) (*models.SignedTransaction, error) {
	return nil, notImplemented("transaction signing", c.desc)
}
