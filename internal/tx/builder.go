// Package tx composes unsigned transactions from send requests and drives
// them through device signing and backend broadcast.
package tx

import (
	"context"

	"github.com/OKaluzny/devicewallet/internal/chain"
	"github.com/OKaluzny/devicewallet/internal/commands"
	"github.com/OKaluzny/devicewallet/internal/device"
	"github.com/OKaluzny/devicewallet/internal/errs"
	"github.com/OKaluzny/devicewallet/internal/storage"
	"github.com/OKaluzny/devicewallet/pkg/logger"
	"github.com/OKaluzny/devicewallet/pkg/models"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Builder manages the transaction lifecycle of one coin: compose, sign on
// the device, broadcast. Nothing is retried; a failed step surfaces as is.
type Builder struct {
	composer Composer
	commands commands.CoinCommandSet
	dev      *device.Device
	chain    chain.Client
	txStore  storage.TxStore
	logger   *zap.Logger
}

// NewBuilder wires the builder's collaborators. txs may be nil, which
// disables idempotency.
func NewBuilder(composer Composer, cmds commands.CoinCommandSet, dev *device.Device, client chain.Client, txs storage.TxStore, l *zap.Logger) *Builder {
	if l == nil {
		l = logger.Log
	}
	return &Builder{
		composer: composer,
		commands: cmds,
		dev:      dev,
		chain:    client,
		txStore:  txs,
		logger:   l.With(zap.String("component", "tx_builder"), zap.String("coin", cmds.Coin().Name)),
	}
}

// Build composes the unsigned intent for req from account's stored record.
func (b *Builder) Build(req SendRequest, account models.AccountState) (*models.UnsignedTransaction, error) {
	tx, err := b.composer.Compose(req, account)
	if err != nil {
		return nil, err
	}
	b.logger.Info("building transaction",
		zap.Uint32("account", account.Index),
		zap.String("from", tx.Source),
		zap.String("to", req.To),
		zap.String("amount", req.Amount.String()),
		zap.String("fee", tx.Fee.String()),
	)
	return tx, nil
}

// Sign runs the device signing exchange. tx itself is never modified.
func (b *Builder) Sign(ctx context.Context, tx *models.UnsignedTransaction) (*models.SignedTransaction, error) {
	signed, err := b.commands.SignTransaction(ctx, b.dev, tx.Clone())
	if err != nil {
		return nil, err
	}
	b.logger.Info("transaction signed", zap.String("signature", signed.Signature))
	return signed, nil
}

// Broadcast submits a signed transaction once.
func (b *Builder) Broadcast(ctx context.Context, signed *models.SignedTransaction) (*models.BroadcastReceipt, error) {
	if signed == nil {
		return nil, errors.Wrap(errs.ErrInvalidParameter, "nothing to broadcast")
	}
	receipt, err := b.chain.Broadcast(ctx, signed)
	if err != nil {
		b.logger.Warn("broadcast failed", zap.Error(err))
		return nil, err
	}
	b.logger.Info("transaction broadcast successful", zap.String("tx_hash", receipt.Hash))
	return receipt, nil
}

// Send builds, signs and broadcasts a transaction. A repeated idempotency
// key returns a copy of the stored receipt, marked Replayed, without
// touching the device.
func (b *Builder) Send(ctx context.Context, req SendRequest, account models.AccountState) (*models.BroadcastReceipt, error) {
	if b.txStore != nil && req.IdempotencyKey != "" {
		existing, err := b.txStore.Get(req.IdempotencyKey)
		if err != nil {
			return nil, errors.Wrap(err, "tx store get")
		}
		if existing != nil {
			b.logger.Info("duplicate request, returning existing tx",
				zap.String("idempotency_key", req.IdempotencyKey),
				zap.String("tx_hash", existing.Hash),
			)
			replay := *existing
			replay.Replayed = true
			return &replay, nil
		}
	}

	tx, err := b.Build(req, account)
	if err != nil {
		return nil, err
	}
	signed, err := b.Sign(ctx, tx)
	if err != nil {
		return nil, err
	}
	receipt, err := b.Broadcast(ctx, signed)
	if err != nil {
		return nil, err
	}

	if b.txStore != nil && req.IdempotencyKey != "" {
		if err := b.txStore.Put(req.IdempotencyKey, receipt); err != nil {
			return nil, errors.Wrap(err, "tx store put")
		}
	}
	return receipt, nil
}
