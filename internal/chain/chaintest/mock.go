// Package chaintest provides a testify mock of chain.Client.
package chaintest

import (
	"context"

	"github.com/OKaluzny/devicewallet/internal/chain"
	"github.com/OKaluzny/devicewallet/pkg/models"
	"github.com/stretchr/testify/mock"
)

// Client is a mock chain.Client.
type Client struct {
	mock.Mock
}

var (
	_ chain.Client          = (*Client)(nil)
	_ chain.OperationLister = (*Client)(nil)
)

func (m *Client) QueryAddress(ctx context.Context, address string) (*models.AccountState, error) {
	args := m.Called(ctx, address)
	acc, _ := args.Get(0).(*models.AccountState)
	return acc, args.Error(1)
}

func (m *Client) QueryTransactions(ctx context.Context, address, cursor string) (*models.TransactionPage, error) {
	args := m.Called(ctx, address, cursor)
	page, _ := args.Get(0).(*models.TransactionPage)
	return page, args.Error(1)
}

func (m *Client) Broadcast(ctx context.Context, tx *models.SignedTransaction) (*models.BroadcastReceipt, error) {
	args := m.Called(ctx, tx)
	r, _ := args.Get(0).(*models.BroadcastReceipt)
	return r, args.Error(1)
}

func (m *Client) Operations(ctx context.Context, txID string) ([]models.Operation, error) {
	args := m.Called(ctx, txID)
	ops, _ := args.Get(0).([]models.Operation)
	return ops, args.Error(1)
}

func (m *Client) QueryFee(ctx context.Context) (*models.FeeInfo, error) {
	args := m.Called(ctx)
	f, _ := args.Get(0).(*models.FeeInfo)
	return f, args.Error(1)
}
