package commands

import (
	"context"
	"time"

	"github.com/OKaluzny/devicewallet/internal/coin"
	"github.com/OKaluzny/devicewallet/internal/device"
	"github.com/OKaluzny/devicewallet/internal/errs"
	"github.com/OKaluzny/devicewallet/pkg/models"
	"github.com/pkg/errors"
)

const nemDefaultCoinName = "Nem"

// NEM is the NEM command set. Transactions are signed in a single
// exchange.
type NEM struct {
	base
}

var _ CoinCommandSet = (*NEM)(nil)

// network is the NEM network byte of the coin.
func (c *NEM) network() uint32 {
	if c.desc.Test {
		return 0x98
	}
	return 0x68
}

func (c *NEM) GetAddress(ctx context.Context, dev *device.Device, p Path, display bool) (string, error) {
	levels, err := c.levels(dev, p)
	if err != nil {
		return "", err
	}
	resp, err := device.Expect[*device.NEMAddress](dev.Call(ctx, &device.NEMGetAddress{
		AddressN:    levels,
		Network:     c.network(),
		ShowDisplay: display,
	}))
	if err != nil {
		return "", err
	}
	return resp.Address, nil
}

func (c *NEM) GetAddresses(ctx context.Context, dev *device.Device, paths []Path) ([]string, error) {
	return getAddresses(ctx, dev, paths, c.GetAddress)
}

func (c *NEM) GetPublicKey(ctx context.Context, dev *device.Device, p Path, display bool) (*models.PublicKey, error) {
	pk, _, err := c.getPublicKey(ctx, dev, p, display)
	return pk, err
}

// SignMessage signs with the account key. The signature comes back as
// lowercase hex.
func (c *NEM) SignMessage(ctx context.Context, dev *device.Device, p Path, message []byte, coinHint string) (*models.MessageSignature, error) {
	levels, err := c.levels(dev, p)
	if err != nil {
		return nil, err
	}
	if coinHint == "" {
		coinHint = nemDefaultCoinName
	}
	resp, err := device.Expect[*device.MessageSignature](dev.Call(ctx, &device.SignMessage{
		AddressN: levels,
		Message:  message,
		CoinName: coinHint,
	}))
	if err != nil {
		return nil, err
	}
	return &models.MessageSignature{Address: resp.Address, Signature: hexString(resp.Signature)}, nil
}

// VerifyMessage reports whether signature is valid for address. A device
// answer of "invalid signature" is a false result, not an error.
func (c *NEM) VerifyMessage(ctx context.Context, dev *device.Device, address string, message, signature []byte, coinHint string) (bool, error) {
	if dev == nil || address == "" {
		return false, errors.Wrap(errs.ErrInvalidParameter, "device and address are required")
	}
	if coinHint == "" {
		coinHint = nemDefaultCoinName
	}
	_, err := device.Expect[*device.Success](dev.Call(ctx, &device.VerifyMessage{
		Address:   address,
		Signature: signature,
		Message:   message,
		CoinName:  coinHint,
	}))
	var fe *device.FailureError
	if errors.As(err, &fe) && fe.Code == device.FailureInvalidSignature {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// SignTransaction signs a single transfer. Encoded and Signature of the
// result are hex, ready for announcement.
func (c *NEM) SignTransaction(ctx context.Context, dev *device.Device, tx *models.UnsignedTransaction) (*models.SignedTransaction, error) {
	msg, err := c.signRequest(dev, tx)
	if err != nil {
		return nil, err
	}

	sm := NewSigningMachine(SigningPlan{
		Coin:   c.desc.Name,
		Header: msg,
		IsResult: func(m device.Message) bool {
			_, ok := m.(*device.NEMSignedTx)
			return ok
		},
	}, c.logger, c.metrics)
	resp, err := sm.Run(ctx, dev)
	if err != nil {
		return nil, err
	}
	signed := resp.(*device.NEMSignedTx)

	return &models.SignedTransaction{
		Network:   models.NetworkNEM,
		Encoded:   hexString(signed.Data),
		Signature: hexString(signed.Signature),
	}, nil
}

func (c *NEM) signRequest(dev *device.Device, tx *models.UnsignedTransaction) (*device.NEMSignTx, error) {
	if dev == nil || tx == nil {
		return nil, errors.Wrap(errs.ErrInvalidParameter, "device and transaction are required")
	}
	if len(tx.Path) == 0 {
		return nil, errors.Wrap(errs.ErrPathNotValid, "transaction has no path")
	}
	if len(tx.Operations) != 1 || tx.Operations[0].Kind != models.OpTransfer {
		return nil, errors.Wrap(errs.ErrInvalidParameter, "nem signs exactly one transfer")
	}
	op := tx.Operations[0]

	fee, err := c.desc.ToUnits(tx.Fee)
	if err != nil {
		return nil, err
	}
	amount, err := c.desc.ToUnits(op.Amount)
	if err != nil {
		return nil, err
	}
	if fee < 0 || amount <= 0 {
		return nil, errors.Wrap(errs.ErrInvalidParameter, "amount and fee must be positive")
	}
	timestamp, err := NEMTimestamp(tx.ValidAfter)
	if err != nil {
		return nil, err
	}
	deadline, err := NEMTimestamp(tx.ValidBefore)
	if err != nil {
		return nil, err
	}
	if deadline <= timestamp {
		return nil, errors.Wrap(errs.ErrInvalidParameter, "deadline must follow timestamp")
	}

	network := c.network()
	if tx.NetworkID != 0 {
		network = uint32(tx.NetworkID)
	}
	req := &device.NEMSignTx{
		Transaction: device.NEMTransactionCommon{
			AddressN:  tx.Path,
			Network:   network,
			Timestamp: timestamp,
			Fee:       uint64(fee),
			Deadline:  deadline,
		},
		Transfer: &device.NEMTransfer{
			Recipient: op.Destination,
			Amount:    uint64(amount),
		},
	}
	if tx.Memo != "" {
		req.Transfer.Payload = []byte(tx.Memo)
	}
	return req, nil
}

// NEMTimestamp converts t to seconds since the NEM epoch.
func NEMTimestamp(t time.Time) (uint32, error) {
	if t.Before(coin.NEMEpoch) {
		return 0, errors.Wrapf(errs.ErrInvalidParameter, "%s precedes the nem epoch", t)
	}
	return uint32(t.Sub(coin.NEMEpoch) / time.Second), nil
}
