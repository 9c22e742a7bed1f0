// Package chain queries chain-indexer backends: account state, history,
// fees and transaction submission. One Client serves one coin.
package chain

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/OKaluzny/devicewallet/internal/coin"
	"github.com/OKaluzny/devicewallet/internal/errs"
	"github.com/OKaluzny/devicewallet/internal/metrics"
	"github.com/OKaluzny/devicewallet/pkg/logger"
	"github.com/OKaluzny/devicewallet/pkg/models"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// DefaultBaseURL is the local indexer gateway.
const DefaultBaseURL = "http://127.0.0.1:50001/api/"

// Client is the backend-agnostic view of one coin's chain. Every call is
// a single round trip with no retry.
type Client interface {
	// QueryAddress returns errs.ErrNotFound when the account does not exist.
	QueryAddress(ctx context.Context, address string) (*models.AccountState, error)
	// QueryTransactions returns one page of history. An empty cursor asks
	// for the newest page.
	QueryTransactions(ctx context.Context, address, cursor string) (*models.TransactionPage, error)
	Broadcast(ctx context.Context, tx *models.SignedTransaction) (*models.BroadcastReceipt, error)
	// QueryFee returns errs.ErrNotImplemented for chains without a fee
	// endpoint.
	QueryFee(ctx context.Context) (*models.FeeInfo, error)
}

// OperationLister is implemented by backends that can break a transaction
// down into its operations.
type OperationLister interface {
	Operations(ctx context.Context, txID string) ([]models.Operation, error)
}

// Config configures a backend client.
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	RateLimit int // requests per second, 0 = unlimited
	PageSize  int // history page size where the backend takes one

	Metrics *metrics.Metrics
	Logger  *zap.Logger
	// HTTPClient overrides the client built from Timeout.
	HTTPClient *http.Client
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
	if c.PageSize == 0 {
		c.PageSize = 10
	}
	return c
}

// New returns the client for d's chain family.
func New(d coin.Descriptor, cfg Config) (Client, error) {
	cfg = cfg.withDefaults()
	l := cfg.Logger
	if l == nil {
		l = logger.Log
	}
	l = l.With(zap.String("component", "chain"), zap.String("coin", d.Shortcut))

	switch d.BaseType {
	case coin.BaseNEM:
		return NewNEM(d, cfg, l), nil
	case coin.BaseStellar:
		return NewStellar(d, cfg, l), nil
	default:
		return nil, errors.Wrapf(errs.ErrNotImplemented, "no backend for %s", d.Name)
	}
}

func escape(s string) string {
	return url.PathEscape(s)
}
