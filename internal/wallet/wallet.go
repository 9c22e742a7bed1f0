// Package wallet binds one coin's command set, chain backend, discovery and
// transaction builder to a device and keeps the discovered account records.
package wallet

import (
	"context"
	"sync"

	"github.com/OKaluzny/devicewallet/internal/address"
	"github.com/OKaluzny/devicewallet/internal/chain"
	"github.com/OKaluzny/devicewallet/internal/coin"
	"github.com/OKaluzny/devicewallet/internal/commands"
	"github.com/OKaluzny/devicewallet/internal/device"
	"github.com/OKaluzny/devicewallet/internal/discovery"
	"github.com/OKaluzny/devicewallet/internal/errs"
	"github.com/OKaluzny/devicewallet/internal/listener"
	"github.com/OKaluzny/devicewallet/internal/metrics"
	"github.com/OKaluzny/devicewallet/internal/path"
	"github.com/OKaluzny/devicewallet/internal/storage"
	"github.com/OKaluzny/devicewallet/internal/tx"
	"github.com/OKaluzny/devicewallet/pkg/logger"
	"github.com/OKaluzny/devicewallet/pkg/models"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Options wires a Wallet. Zero values select the defaults.
type Options struct {
	// Chain overrides the backend built from ChainConfig.
	Chain       chain.Client
	ChainConfig chain.Config
	Accounts    storage.AccountStore
	TxStore     storage.TxStore
	Validator   address.Validator
	Deriver     path.Deriver
	// MaxAccounts caps discovery, 0 = unbounded.
	MaxAccounts uint32
	Logger      *zap.Logger
	Metrics     *metrics.Metrics
}

// Wallet is the per-coin entry point. Its methods serialize on one mutex,
// so discovery never overlaps with reads or sends on the same wallet.
type Wallet struct {
	mu sync.Mutex

	desc      coin.Descriptor
	dev       *device.Device
	commands  commands.CoinCommandSet
	chain     chain.Client // nil when the coin has no backend
	discovery *discovery.Engine
	composer  tx.Composer // nil when the coin cannot compose
	builder   *tx.Builder
	accounts  storage.AccountStore
	validator address.Validator
	deriver   path.Deriver
	logger    *zap.Logger
}

// New builds the wallet of coinName on dev. Coins without a backend or
// composer still get addresses, keys and messages; the missing parts
// answer errs.ErrNotImplemented.
func New(coinName string, dev *device.Device, opts Options) (*Wallet, error) {
	if dev == nil {
		return nil, errors.Wrap(errs.ErrInvalidParameter, "device is required")
	}
	l := opts.Logger
	if l == nil {
		l = logger.Log
	}
	cmds, err := commands.New(coinName, commands.WithLogger(l), commands.WithMetrics(opts.Metrics))
	if err != nil {
		return nil, err
	}
	desc := cmds.Coin()

	client := opts.Chain
	if client == nil {
		cc := opts.ChainConfig
		if cc.Logger == nil {
			cc.Logger = l
		}
		if cc.Metrics == nil {
			cc.Metrics = opts.Metrics
		}
		client, err = chain.New(desc, cc)
		if err != nil && !errors.Is(err, errs.ErrNotImplemented) {
			return nil, err
		}
	}

	w := &Wallet{
		desc:      desc,
		dev:       dev,
		commands:  cmds,
		chain:     client,
		accounts:  opts.Accounts,
		validator: opts.Validator,
		deriver:   opts.Deriver,
		logger:    l.With(zap.String("component", "wallet"), zap.String("coin", desc.Name)),
	}
	if w.accounts == nil {
		w.accounts = storage.NewMemoryAccountStore()
	}
	if w.validator == nil {
		w.validator = address.Default
	}

	if client != nil {
		w.discovery = discovery.New(cmds, dev, client, discovery.Config{
			MaxAccounts: opts.MaxAccounts,
			Deriver:     opts.Deriver,
			Logger:      l,
			Metrics:     opts.Metrics,
		})
	}
	w.composer, err = tx.NewComposer(desc, opts.Deriver, w.validator)
	if err != nil && !errors.Is(err, errs.ErrNotImplemented) {
		return nil, err
	}
	if w.composer != nil && client != nil {
		txs := opts.TxStore
		if txs == nil {
			txs = storage.NewMemoryTxStore()
		}
		w.builder = tx.NewBuilder(w.composer, cmds, dev, client, txs, l)
	}
	return w, nil
}

// Coin returns the wallet's coin descriptor.
func (w *Wallet) Coin() coin.Descriptor { return w.desc }

// Network returns the coin family as reported in transactions and events.
func (w *Wallet) Network() models.Network {
	switch w.desc.BaseType {
	case coin.BaseNEM:
		return models.NetworkNEM
	case coin.BaseStellar:
		return models.NetworkStellar
	default:
		return models.NetworkRipple
	}
}

// Backend returns the coin's chain client, or errs.ErrNotImplemented when
// the coin has none.
func (w *Wallet) Backend() (chain.Client, error) {
	if w.chain == nil {
		return nil, errors.Wrapf(errs.ErrNotImplemented, "no backend for %s", w.desc.Name)
	}
	return w.chain, nil
}

// Discover replaces the stored accounts with a fresh discovery run. On
// error the previous records stay in place.
func (w *Wallet) Discover(ctx context.Context, onFound func(models.AccountState)) ([]models.AccountState, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.discovery == nil {
		return nil, errors.Wrapf(errs.ErrNotImplemented, "discovery on %s", w.desc.Name)
	}
	found, err := w.discovery.Discover(ctx, onFound)
	if err != nil {
		return nil, err
	}
	if err := w.accounts.Replace(found); err != nil {
		return nil, errors.Wrap(err, "store accounts")
	}
	w.logger.Info("discovery finished", zap.Int("accounts", len(found)))
	return found, nil
}

// Accounts returns the stored records ordered by index.
func (w *Wallet) Accounts() ([]models.AccountState, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.accounts.List()
}

// Account returns the stored record of a discovered account.
func (w *Wallet) Account(index uint32) (models.AccountState, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.account(index)
}

func (w *Wallet) account(index uint32) (models.AccountState, error) {
	a, err := w.accounts.Get(index)
	if errors.Is(err, storage.ErrNotStored) {
		return models.AccountState{}, errors.Wrapf(errs.ErrInvalidParameter, "account number %d is wrong", index)
	}
	return a, err
}

// Refresh re-reads a stored account from the backend.
func (w *Wallet) Refresh(ctx context.Context, index uint32) (models.AccountState, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	client, err := w.Backend()
	if err != nil {
		return models.AccountState{}, err
	}
	a, err := w.account(index)
	if err != nil {
		return models.AccountState{}, err
	}
	state, err := client.QueryAddress(ctx, a.Address)
	if err != nil {
		return models.AccountState{}, err
	}
	fresh := *state
	fresh.Index = index
	fresh.Address = a.Address
	if err := w.accounts.Put(fresh); err != nil {
		return models.AccountState{}, errors.Wrap(err, "store account")
	}
	return fresh, nil
}

func (w *Wallet) path(index uint32) (path.DerivationPath, error) {
	p, err := w.deriver.Derive(w.desc, index)
	if err != nil {
		return nil, errors.Wrap(errs.ErrInvalidParameter, err.Error())
	}
	return p, nil
}

// Address reads the address of account index from the device, optionally
// showing it for confirmation.
func (w *Wallet) Address(ctx context.Context, index uint32, display bool) (string, error) {
	p, err := w.path(index)
	if err != nil {
		return "", err
	}
	return w.commands.GetAddress(ctx, w.dev, p, display)
}

// PublicKey reads the public key of account index from the device.
func (w *Wallet) PublicKey(ctx context.Context, index uint32, display bool) (*models.PublicKey, error) {
	p, err := w.path(index)
	if err != nil {
		return nil, err
	}
	return w.commands.GetPublicKey(ctx, w.dev, p, display)
}

// Transactions returns one history page of a stored account.
func (w *Wallet) Transactions(ctx context.Context, index uint32, cursor string) (*models.TransactionPage, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	client, err := w.Backend()
	if err != nil {
		return nil, err
	}
	a, err := w.account(index)
	if err != nil {
		return nil, err
	}
	return client.QueryTransactions(ctx, a.Address, cursor)
}

// TransactionOperations lists the operations of transaction txID. Only
// backends that itemize transactions support it.
func (w *Wallet) TransactionOperations(ctx context.Context, txID string) ([]models.Operation, error) {
	client, err := w.Backend()
	if err != nil {
		return nil, err
	}
	lister, ok := client.(chain.OperationLister)
	if !ok {
		return nil, errors.Wrapf(errs.ErrNotImplemented, "transaction operations on %s", w.desc.Name)
	}
	if txID == "" {
		return nil, errors.Wrap(errs.ErrInvalidParameter, "transaction id is empty")
	}
	return lister.Operations(ctx, txID)
}

// Fee returns the backend's current fee levels.
func (w *Wallet) Fee(ctx context.Context) (*models.FeeInfo, error) {
	client, err := w.Backend()
	if err != nil {
		return nil, err
	}
	return client.QueryFee(ctx)
}

// IsAddressValid reports whether address is well formed for the coin.
func (w *Wallet) IsAddressValid(addr string) bool {
	return w.validator.Validate(addr, w.desc.BaseType)
}

// BuildTransaction composes an unsigned transaction from account index.
func (w *Wallet) BuildTransaction(req tx.SendRequest, index uint32) (*models.UnsignedTransaction, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.composer == nil {
		return nil, errors.Wrapf(errs.ErrNotImplemented, "transactions on %s", w.desc.Name)
	}
	a, err := w.account(index)
	if err != nil {
		return nil, err
	}
	return w.composer.Compose(req, a)
}

// SignTransaction signs a composed transaction on the device.
func (w *Wallet) SignTransaction(ctx context.Context, unsigned *models.UnsignedTransaction) (*models.SignedTransaction, error) {
	return w.commands.SignTransaction(ctx, w.dev, unsigned.Clone())
}

// Broadcast submits a transaction signed for account index. On success the
// stored Stellar sequence of that account advances by one.
func (w *Wallet) Broadcast(ctx context.Context, index uint32, signed *models.SignedTransaction) (*models.BroadcastReceipt, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.builder == nil {
		return nil, errors.Wrapf(errs.ErrNotImplemented, "broadcast on %s", w.desc.Name)
	}
	a, err := w.account(index)
	if err != nil {
		return nil, err
	}
	receipt, err := w.builder.Broadcast(ctx, signed)
	if err != nil {
		return nil, err
	}
	if err := w.advance(a); err != nil {
		return nil, err
	}
	return receipt, nil
}

// Send composes, signs and broadcasts a transfer from account index. After
// a successful Stellar broadcast the stored sequence advances by one; a
// failed or replayed send leaves the record as it was.
func (w *Wallet) Send(ctx context.Context, req tx.SendRequest, index uint32) (*models.BroadcastReceipt, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.builder == nil {
		return nil, errors.Wrapf(errs.ErrNotImplemented, "transactions on %s", w.desc.Name)
	}
	a, err := w.account(index)
	if err != nil {
		return nil, err
	}
	receipt, err := w.builder.Send(ctx, req, a)
	if err != nil {
		return nil, err
	}
	if !receipt.Replayed {
		if err := w.advance(a); err != nil {
			return nil, err
		}
	}
	return receipt, nil
}

// advance records that a transaction from a consumed a sequence number.
func (w *Wallet) advance(a models.AccountState) error {
	if w.desc.BaseType != coin.BaseStellar {
		return nil
	}
	a.Sequence++
	return errors.Wrap(w.accounts.Put(a), "store account")
}

// SignMessage signs message with the key of account index.
func (w *Wallet) SignMessage(ctx context.Context, index uint32, message []byte) (*models.MessageSignature, error) {
	p, err := w.path(index)
	if err != nil {
		return nil, err
	}
	return w.commands.SignMessage(ctx, w.dev, p, message, "")
}

// VerifyMessage asks the device to check a message signature.
func (w *Wallet) VerifyMessage(ctx context.Context, addr string, message, signature []byte) (bool, error) {
	return w.commands.VerifyMessage(ctx, w.dev, addr, message, signature, "")
}

// Watch registers every stored account address with l.
func (w *Wallet) Watch(l listener.Listener) error {
	accounts, err := w.Accounts()
	if err != nil {
		return err
	}
	for _, a := range accounts {
		if err := l.WatchAddress(a.Address); err != nil {
			return errors.Wrapf(err, "watch %s", a.Address)
		}
	}
	return nil
}
