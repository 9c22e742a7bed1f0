// Package listener watches account addresses by polling their transaction
// history and emits an event for every transaction not seen before.
package listener

import (
	"context"
	"sync"
	"time"

	"github.com/OKaluzny/devicewallet/internal/chain"
	"github.com/OKaluzny/devicewallet/internal/errs"
	"github.com/OKaluzny/devicewallet/internal/metrics"
	"github.com/OKaluzny/devicewallet/internal/storage"
	"github.com/OKaluzny/devicewallet/pkg/logger"
	"github.com/OKaluzny/devicewallet/pkg/models"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Listener defines the interface for monitoring account addresses.
type Listener interface {
	// Start begins polling watched addresses
	Start(ctx context.Context) error

	// Stop gracefully shuts down the listener
	Stop() error

	// WatchAddress adds an address to the watch list
	WatchAddress(address string) error

	// UnwatchAddress removes an address from the watch list
	UnwatchAddress(address string) error

	// Events returns a channel of detected transactions
	Events() <-chan models.TransactionEvent
}

// EventHandler processes detected transactions.
type EventHandler func(event models.TransactionEvent) error

// PollingConfig holds configuration for the polling listener.
type PollingConfig struct {
	// MaxPages bounds the history pages read per address and poll.
	MaxPages int
	// EmitExisting makes the first poll of an address report its existing
	// history too. By default that history only seeds the seen set.
	EmitExisting bool
	Logger       *zap.Logger
	Metrics      *metrics.Metrics
}

// PollingListener implements Listener over chain.Client history queries.
type PollingListener struct {
	network      models.Network
	pollInterval time.Duration
	events       chan models.TransactionEvent
	watchStore   storage.WatchStore
	client       chain.Client
	cfg          PollingConfig
	// seen holds the transaction hashes already handled, per address.
	// Only the poll loop touches it.
	seen   map[string]map[string]bool
	logger *zap.Logger

	stopOnce sync.Once
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewPollingListener(network models.Network, pollInterval time.Duration, ws storage.WatchStore, client chain.Client, cfg PollingConfig) *PollingListener {
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 1
	}
	l := cfg.Logger
	if l == nil {
		l = logger.Log
	}
	return &PollingListener{
		network:      network,
		pollInterval: pollInterval,
		events:       make(chan models.TransactionEvent, 100),
		watchStore:   ws,
		client:       client,
		cfg:          cfg,
		seen:         make(map[string]map[string]bool),
		done:         make(chan struct{}),
		logger:       l.With(zap.String("component", "listener"), zap.String("network", string(network))),
	}
}

func (l *PollingListener) Start(ctx context.Context) error {
	if l.cancel != nil {
		return errors.New("listener already started")
	}
	ctx, l.cancel = context.WithCancel(ctx)

	l.logger.Info("starting history listener",
		zap.Duration("poll_interval", l.pollInterval),
		zap.Int("max_pages", l.cfg.MaxPages),
	)

	go l.pollLoop(ctx)
	return nil
}

func (l *PollingListener) Stop() error {
	l.stopOnce.Do(func() {
		if l.cancel != nil {
			l.cancel()
			<-l.done // wait for pollLoop to exit
		}
		close(l.events)
		l.logger.Info("listener stopped")
	})
	return nil
}

func (l *PollingListener) WatchAddress(address string) error {
	if err := l.watchStore.Add(address); err != nil {
		return err
	}
	l.logger.Info("watching address", zap.String("address", address))
	return nil
}

func (l *PollingListener) UnwatchAddress(address string) error {
	if err := l.watchStore.Remove(address); err != nil {
		return err
	}
	l.logger.Info("unwatched address", zap.String("address", address))
	return nil
}

func (l *PollingListener) Events() <-chan models.TransactionEvent {
	return l.events
}

func (l *PollingListener) pollLoop(ctx context.Context) {
	defer close(l.done)
	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()

	for {
		if err := l.poll(ctx); err != nil && ctx.Err() == nil {
			l.logger.Error("poll failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// poll checks every watched address once. A failing address does not stop
// the others; the first failure is returned.
func (l *PollingListener) poll(ctx context.Context) error {
	addrs, err := l.watchStore.List()
	if err != nil {
		return errors.Wrap(err, "list watched")
	}

	watched := make(map[string]bool, len(addrs))
	var first error
	for _, addr := range addrs {
		watched[addr] = true
		if err := l.pollAddress(ctx, addr); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			l.logger.Warn("address poll failed", zap.String("address", addr), zap.Error(err))
			if first == nil {
				first = errors.WithMessagef(err, "poll %s", addr)
			}
		}
	}

	// Forget unwatched addresses so a later re-watch starts fresh.
	for addr := range l.seen {
		if !watched[addr] {
			delete(l.seen, addr)
		}
	}
	return first
}

func (l *PollingListener) pollAddress(ctx context.Context, addr string) error {
	seen, known := l.seen[addr]
	if !known {
		seen = make(map[string]bool)
	}

	cursor := ""
	for page := 0; page < l.cfg.MaxPages; page++ {
		p, err := l.client.QueryTransactions(ctx, addr, cursor)
		if errors.Is(err, errs.ErrNotFound) {
			break // not funded yet
		}
		if err != nil {
			return err
		}

		for _, rec := range p.Transactions {
			if seen[rec.Hash] {
				continue
			}
			seen[rec.Hash] = true
			if !known && !l.cfg.EmitExisting {
				continue
			}

			event := models.TransactionEvent{Network: l.network, Address: addr, Tx: rec}
			l.logger.Info("detected transaction",
				zap.String("address", addr),
				zap.String("tx", rec.Hash),
				zap.String("amount", rec.Amount.String()),
			)
			select {
			case l.events <- event:
				l.cfg.Metrics.ObserveEvent(string(l.network))
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if len(p.Transactions) == 0 || p.NextCursor == "" || p.NextCursor == cursor {
			break
		}
		cursor = p.NextCursor
	}

	l.seen[addr] = seen
	return nil
}

// ----- Multi-chain listener manager -----

// Manager coordinates listeners across multiple networks.
type Manager struct {
	listeners map[models.Network]Listener
	handler   EventHandler
	logger    *zap.Logger
	wg        sync.WaitGroup
}

func NewManager(handler EventHandler) *Manager {
	return &Manager{
		listeners: make(map[models.Network]Listener),
		handler:   handler,
		logger:    logger.Named("listener_manager"),
	}
}

func (m *Manager) RegisterListener(network models.Network, listener Listener) {
	m.listeners[network] = listener
}

// StartAll starts all registered listeners and routes events to the handler.
func (m *Manager) StartAll(ctx context.Context) error {
	for network, listener := range m.listeners {
		if err := listener.Start(ctx); err != nil {
			return errors.Wrapf(err, "start %s listener", network)
		}

		// Fan-in: route events from each listener to the common handler
		m.wg.Add(1)
		go func(net models.Network, l Listener) {
			defer m.wg.Done()
			for event := range l.Events() {
				if err := m.handler(event); err != nil {
					m.logger.Error("handle event failed",
						zap.String("network", string(net)),
						zap.String("tx", event.Tx.Hash),
						zap.Error(err),
					)
				}
			}
		}(network, listener)
	}

	m.logger.Info("all listeners started", zap.Int("count", len(m.listeners)))
	return nil
}

// StopAll stops every listener and waits for queued events to be handled.
func (m *Manager) StopAll() {
	for network, listener := range m.listeners {
		if err := listener.Stop(); err != nil {
			m.logger.Error("stop listener failed", zap.String("network", string(network)), zap.Error(err))
		}
	}
	m.wg.Wait()
}

// WatchAddress adds an address to the appropriate network listener.
func (m *Manager) WatchAddress(network models.Network, address string) error {
	l, ok := m.listeners[network]
	if !ok {
		return errors.Errorf("no listener registered for %s", network)
	}
	return l.WatchAddress(address)
}
