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

// SendRequest represents a request to send a transaction.
type SendRequest struct {
	IdempotencyKey string // prevents duplicate sends
	To             string
	Amount         decimal.Decimal
	// Fee is the total fee in native units. Zero selects the chain default.
	Fee  decimal.Decimal
	Memo string
	// DestinationUnfunded makes a Stellar send create the destination
	// account instead of paying into it.
	DestinationUnfunded bool
	// Validity is how long the transaction stays acceptable. Zero selects
	// the chain default.
	Validity time.Duration
	// Now pins the start of the validity window. Zero means time.Now.
	Now time.Time
}

func (r SendRequest) now() time.Time {
	if r.Now.IsZero() {
		return time.Now()
	}
	return r.Now
}

// Composer turns a send request and the sending account's stored record
// into an unsigned intent. Composers are pure: they never talk to the
// device or the backend.
type Composer interface {
	Compose(req SendRequest, account models.AccountState) (*models.UnsignedTransaction, error)
}

// NewComposer returns the composer for d's chain family.
func NewComposer(d coin.Descriptor, deriver path.Deriver, v address.Validator) (Composer, error) {
	if v == nil {
		v = address.Default
	}
	switch d.BaseType {
	case coin.BaseStellar:
		return &StellarComposer{desc: d, deriver: deriver, validator: v}, nil
	case coin.BaseNEM:
		return &NEMComposer{desc: d, deriver: deriver, validator: v}, nil
	default:
		return nil, errors.Wrapf(errs.ErrNotImplemented, "composing %s transactions", d.Name)
	}
}

// checkCommon validates what every chain requires of a request.
func checkCommon(d coin.Descriptor, v address.Validator, req SendRequest) error {
	if !v.Validate(req.To, d.BaseType) {
		return errors.Wrapf(errs.ErrInvalidParameter, "destination %q is not a %s address", req.To, d.Name)
	}
	if !req.Amount.IsPositive() {
		return errors.Wrap(errs.ErrInvalidParameter, "amount must be positive")
	}
	if req.Fee.IsNegative() {
		return errors.Wrap(errs.ErrInvalidParameter, "fee must not be negative")
	}
	if req.Validity < 0 {
		return errors.Wrap(errs.ErrInvalidParameter, "validity must not be negative")
	}
	if _, err := d.ToUnits(req.Amount); err != nil {
		return errors.WithMessage(err, "amount")
	}
	return nil
}

func insufficient(remaining decimal.Decimal) error {
	return errors.Wrapf(errs.ErrInsufficientBalance, "short by %s", remaining.Neg())
}
