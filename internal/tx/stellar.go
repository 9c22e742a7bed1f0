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

// Stellar composition constants.
var (
	StellarBaseReserve    = decimal.RequireFromString("0.5")
	StellarDefaultFee     = decimal.RequireFromString("0.00001")
	StellarMinimumBalance = decimal.NewFromInt(1)
)

const (
	StellarMemoMaxBytes    = 28
	StellarDefaultValidity = 5 * time.Minute
)

// StellarComposer builds single-operation Stellar payments.
type StellarComposer struct {
	desc      coin.Descriptor
	deriver   path.Deriver
	validator address.Validator
}

// StellarReserve is the balance an account must keep:
// (2 + subentries + sponsoring - sponsored) base reserves.
func StellarReserve(a models.AccountState) decimal.Decimal {
	entries := 2 + int64(a.SubentryCount) + int64(a.NumSponsoring) - int64(a.NumSponsored)
	return StellarBaseReserve.Mul(decimal.NewFromInt(entries))
}

func (c *StellarComposer) Compose(req SendRequest, account models.AccountState) (*models.UnsignedTransaction, error) {
	if err := checkCommon(c.desc, c.validator, req); err != nil {
		return nil, err
	}
	if len(req.Memo) > StellarMemoMaxBytes {
		return nil, errors.Wrapf(errs.ErrInvalidParameter, "memo is %d bytes, max %d", len(req.Memo), StellarMemoMaxBytes)
	}
	if req.To == account.Address {
		return nil, errors.Wrap(errs.ErrInvalidParameter, "destination is the source account")
	}

	fee := req.Fee
	if fee.IsZero() {
		fee = StellarDefaultFee
	}
	remaining := account.Balance.Sub(StellarReserve(account)).Sub(req.Amount).Sub(fee)
	if remaining.IsNegative() {
		return nil, insufficient(remaining)
	}

	op := models.Operation{Kind: models.OpPayment, Destination: req.To, Amount: req.Amount}
	if req.DestinationUnfunded {
		if req.Amount.LessThan(StellarMinimumBalance) {
			return nil, errors.Wrapf(errs.ErrInvalidParameter, "creating an account needs at least %s", StellarMinimumBalance)
		}
		op.Kind = models.OpCreateAccount
	}

	p, err := c.deriver.Derive(c.desc, account.Index)
	if err != nil {
		return nil, errors.Wrap(errs.ErrPathNotValid, err.Error())
	}
	validity := req.Validity
	if validity == 0 {
		validity = StellarDefaultValidity
	}
	start := req.now().Truncate(time.Second)

	return &models.UnsignedTransaction{
		Network:           models.NetworkStellar,
		Coin:              c.desc.Name,
		Path:              p,
		Source:            account.Address,
		Fee:               fee,
		Sequence:          account.Sequence,
		Operations:        []models.Operation{op},
		Memo:              req.Memo,
		ValidAfter:        start,
		ValidBefore:       start.Add(validity),
		NetworkPassphrase: c.desc.NetworkPassphrase,
	}, nil
}
