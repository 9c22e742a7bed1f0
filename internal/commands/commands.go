// Package commands maps wallet intents onto device protocol exchanges, one
// command set per chain family.
package commands

import (
	"context"

	"github.com/OKaluzny/devicewallet/internal/coin"
	"github.com/OKaluzny/devicewallet/internal/device"
	"github.com/OKaluzny/devicewallet/internal/envelope"
	"github.com/OKaluzny/devicewallet/internal/errs"
	"github.com/OKaluzny/devicewallet/internal/metrics"
	"github.com/OKaluzny/devicewallet/internal/path"
	"github.com/OKaluzny/devicewallet/pkg/logger"
	"github.com/OKaluzny/devicewallet/pkg/models"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// CoinCommandSet is the device contract of one coin.
type CoinCommandSet interface {
	Coin() coin.Descriptor

	GetAddress(ctx context.Context, dev *device.Device, p Path, display bool) (string, error)
	// GetAddresses reads several addresses without display, in order.
	GetAddresses(ctx context.Context, dev *device.Device, paths []Path) ([]string, error)
	GetPublicKey(ctx context.Context, dev *device.Device, p Path, display bool) (*models.PublicKey, error)
	SignMessage(ctx context.Context, dev *device.Device, p Path, message []byte, coinHint string) (*models.MessageSignature, error)
	VerifyMessage(ctx context.Context, dev *device.Device, address string, message, signature []byte, coinHint string) (bool, error)
	SignTransaction(ctx context.Context, dev *device.Device, tx *models.UnsignedTransaction) (*models.SignedTransaction, error)
}

// Path is a derivation path in either parsed or string form.
type Path interface {
	Levels() (path.DerivationPath, error)
}

// PathString is a path such as "m/44'/148'/0'".
type PathString string

// Levels parses the string.
func (s PathString) Levels() (path.DerivationPath, error) {
	return path.Parse(string(s))
}

// Option configures a command set.
type Option func(*base)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(b *base) { b.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(b *base) { b.metrics = m }
}

// WithEncoder replaces the envelope encoder (Stellar).
func WithEncoder(e envelope.Encoder) Option {
	return func(b *base) { b.encoder = e }
}

// New returns the command set for coinName, selected by its chain family.
func New(coinName string, opts ...Option) (CoinCommandSet, error) {
	d, err := coin.Get(coinName)
	if err != nil {
		return nil, err
	}
	b := newBase(d, opts)
	switch d.BaseType {
	case coin.BaseNEM:
		return &NEM{base: b}, nil
	case coin.BaseStellar:
		return &Stellar{base: b}, nil
	case coin.BaseRipple:
		return &Ripple{base: b}, nil
	default:
		return nil, errors.Wrapf(coin.ErrUnknownCoin, "no command set for %s", d.BaseType)
	}
}

type base struct {
	desc    coin.Descriptor
	logger  *zap.Logger
	metrics *metrics.Metrics
	encoder envelope.Encoder
}

func newBase(d coin.Descriptor, opts []Option) base {
	b := base{desc: d, logger: logger.Log, encoder: envelope.Stellar{}}
	for _, opt := range opts {
		opt(&b)
	}
	b.logger = b.logger.With(zap.String("component", "commands"), zap.String("coin", d.Name))
	return b
}

func (b *base) Coin() coin.Descriptor { return b.desc }

// levels validates the device and converts p.
func (b *base) levels(dev *device.Device, p Path) (path.DerivationPath, error) {
	if dev == nil || p == nil {
		return nil, errors.Wrap(errs.ErrInvalidParameter, "device and path are required")
	}
	levels, err := p.Levels()
	if err != nil {
		return nil, errors.Wrap(errs.ErrPathNotValid, err.Error())
	}
	if len(levels) == 0 {
		return nil, errors.Wrap(errs.ErrPathNotValid, "empty path")
	}
	return levels, nil
}

func (b *base) getPublicKey(ctx context.Context, dev *device.Device, p Path, display bool) (*models.PublicKey, []byte, error) {
	levels, err := b.levels(dev, p)
	if err != nil {
		return nil, nil, err
	}
	pk, err := device.Expect[*device.PublicKey](dev.Call(ctx, &device.GetPublicKey{
		AddressN:    levels,
		ShowDisplay: display,
	}))
	if err != nil {
		return nil, nil, err
	}
	return &models.PublicKey{
		Path:      levels.String(),
		Key:       hexString(pk.Node.PublicKey),
		ChainCode: hexString(pk.Node.ChainCode),
		XPub:      pk.XPub,
	}, pk.Node.PublicKey, nil
}

// getAddresses calls get for every path without display.
func getAddresses(ctx context.Context, dev *device.Device, paths []Path,
	get func(context.Context, *device.Device, Path, bool) (string, error)) ([]string, error) {
	if dev == nil {
		return nil, errors.Wrap(errs.ErrInvalidParameter, "device is required")
	}
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		addr, err := get(ctx, dev, p, false)
		if err != nil {
			return nil, err
		}
		out = append(out, addr)
	}
	return out, nil
}

func notImplemented(what string, d coin.Descriptor) error {
	return errors.Wrapf(errs.ErrNotImplemented, "%s on %s", what, d.Name)
}
