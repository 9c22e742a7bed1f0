package tx

import (
	"time"

	"github.com/OKaluzny/devicewallet/internal/address"
	"github.com/OKaluzny/devicewallet/internal/coin"
	"github.com/OKaluzny/devicewallet/internal/errs"
	"github.com/OKaluzny/devicewallet/internal/path"
	"github.com/OKaluzny/devicewallet/pkg/models"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// NEM fee schedule, in XEM.
var (
	nemFeeUnit   = decimal.RequireFromString("0.05")
	nemFeeMax    = decimal.RequireFromString("1.25")
	nemFeePerXEM = decimal.NewFromInt(10_000)
	nemMemoChunk = 32
)

const (
	NEMDefaultValidity = time.Hour
	NEMMaxValidity     = 24 * time.Hour
	NEMMemoMaxBytes    = 1024
)

// NEMFee is the minimum fee of a transfer: 0.05 XEM per started 10,000 XEM
// between 0.05 and 1.25, plus 0.05 per started 32 bytes of message.
func NEMFee(amount decimal.Decimal, memo string) decimal.Decimal {
	fee := amount.Div(nemFeePerXEM).Floor().Mul(nemFeeUnit)
	if fee.LessThan(nemFeeUnit) {
		fee = nemFeeUnit
	}
	if fee.GreaterThan(nemFeeMax) {
		fee = nemFeeMax
	}
	if memo != "" {
		fee = fee.Add(nemFeeUnit.Mul(decimal.NewFromInt(int64(len(memo)/nemMemoChunk + 1))))
	}
	return fee
}

// NEMComposer builds NEM transfers.
type NEMComposer struct {
	desc      coin.Descriptor
	deriver   path.Deriver
	validator address.Validator
}

func (c *NEMComposer) Compose(req SendRequest, account models.AccountState) (*models.UnsignedTransaction, error) {
	if err := checkCommon(c.desc, c.validator, req); err != nil {
		return nil, err
	}
	if network, _ := address.NEMNetwork(req.To); network != c.desc.NetworkID {
		return nil, errors.Wrapf(errs.ErrInvalidParameter, "destination is not on %s", c.desc.Name)
	}
	if len(req.Memo) > NEMMemoMaxBytes {
		return nil, errors.Wrapf(errs.ErrInvalidParameter, "memo is %d bytes, max %d", len(req.Memo), NEMMemoMaxBytes)
	}
	validity := req.Validity
	if validity == 0 {
		validity = NEMDefaultValidity
	}
	if validity > NEMMaxValidity {
		return nil, errors.Wrapf(errs.ErrInvalidParameter, "validity %s exceeds %s", validity, NEMMaxValidity)
	}

	fee := req.Fee
	minimum := NEMFee(req.Amount, req.Memo)
	if fee.IsZero() {
		fee = minimum
	}
	if fee.LessThan(minimum) {
		return nil, errors.Wrapf(errs.ErrInvalidParameter, "fee %s is below the minimum %s", fee, minimum)
	}
	remaining := account.Balance.Sub(req.Amount).Sub(fee)
	if remaining.IsNegative() {
		return nil, insufficient(remaining)
	}

	p, err := c.deriver.Derive(c.desc, account.Index)
	if err != nil {
		return nil, errors.Wrap(errs.ErrPathNotValid, err.Error())
	}
	start := req.now().Truncate(time.Second)
	if start.Before(coin.NEMEpoch) {
		return nil, errors.Wrap(errs.ErrInvalidParameter, "time precedes the nem epoch")
	}

	return &models.UnsignedTransaction{
		Network: models.NetworkNEM,
		Coin:    c.desc.Name,
		Path:    p,
		Source:  account.Address,
		Fee:     fee,
		Operations: []models.Operation{
			{Kind: models.OpTransfer, Destination: address.NormalizeNEM(req.To), Amount: req.Amount},
		},
		Memo:        req.Memo,
		ValidAfter:  start,
		ValidBefore: start.Add(validity),
		NetworkID:   c.desc.NetworkID,
	}, nil
}
