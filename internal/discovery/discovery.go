// Package discovery finds the accounts a device holds on a chain by walking
// account indices until the backend reports an unknown address.
package discovery

import (
	"context"

	"github.com/OKaluzny/devicewallet/internal/chain"
	"github.com/OKaluzny/devicewallet/internal/commands"
	"github.com/OKaluzny/devicewallet/internal/device"
	"github.com/OKaluzny/devicewallet/internal/errs"
	"github.com/OKaluzny/devicewallet/internal/metrics"
	"github.com/OKaluzny/devicewallet/internal/path"
	"github.com/OKaluzny/devicewallet/pkg/logger"
	"github.com/OKaluzny/devicewallet/pkg/models"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Config tunes a discovery run.
type Config struct {
	// MaxAccounts stops discovery after this many accounts. 0 is unbounded.
	MaxAccounts uint32
	Deriver     path.Deriver
	Logger      *zap.Logger
	Metrics     *metrics.Metrics
}

// Engine runs discovery for one coin. It is not safe for concurrent use.
type Engine struct {
	commands commands.CoinCommandSet
	dev      *device.Device
	chain    chain.Client
	cfg      Config
	logger   *zap.Logger
}

func New(cmds commands.CoinCommandSet, dev *device.Device, client chain.Client, cfg Config) *Engine {
	l := cfg.Logger
	if l == nil {
		l = logger.Log
	}
	return &Engine{
		commands: cmds,
		dev:      dev,
		chain:    client,
		cfg:      cfg,
		logger:   l.With(zap.String("component", "discovery"), zap.String("coin", cmds.Coin().Name)),
	}
}

// Discover walks indices 0, 1, ... deriving the account path, reading its
// address from the device without display and querying the backend. The
// first address the backend does not know ends the walk; no gap is
// tolerated. onFound, when set, is called for each account before the next
// index is tried. Any error other than not-found aborts the run.
func (e *Engine) Discover(ctx context.Context, onFound func(models.AccountState)) ([]models.AccountState, error) {
	desc := e.commands.Coin()
	var found []models.AccountState

	for index := uint32(0); e.cfg.MaxAccounts == 0 || index < e.cfg.MaxAccounts; index++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p, err := e.cfg.Deriver.Derive(desc, index)
		if err != nil {
			return nil, errors.Wrap(errs.ErrPathNotValid, err.Error())
		}
		address, err := e.commands.GetAddress(ctx, e.dev, p, false)
		if err != nil {
			return nil, errors.WithMessagef(err, "address of account %d", index)
		}

		state, err := e.chain.QueryAddress(ctx, address)
		if errors.Is(err, errs.ErrNotFound) {
			e.logger.Debug("unused account ends discovery", zap.Uint32("index", index), zap.String("address", address))
			break
		}
		if err != nil {
			return nil, errors.WithMessagef(err, "state of account %d", index)
		}

		account := *state
		account.Index = index
		account.Address = address
		found = append(found, account)
		e.logger.Info("account discovered",
			zap.Uint32("index", index),
			zap.String("address", address),
			zap.String("balance", account.Balance.String()),
		)
		if onFound != nil {
			onFound(account)
		}
	}

	e.cfg.Metrics.SetDiscovered(desc.Name, len(found))
	return found, nil
}
