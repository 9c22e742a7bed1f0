package chain

import (
	"context"
	"encoding/hex"
	"time"

	"github.com/OKaluzny/devicewallet/internal/address"
	"github.com/OKaluzny/devicewallet/internal/coin"
	"github.com/OKaluzny/devicewallet/internal/errs"
	"github.com/OKaluzny/devicewallet/pkg/models"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	nemMessagePlain  = 1
	nemResultSuccess = 1
)

// NEM talks to a NIS-shaped indexer.
type NEM struct {
	desc coin.Descriptor
	http *httpClient
}

var _ Client = (*NEM)(nil)

// NewNEM builds a NEM client.
func NewNEM(d coin.Descriptor, cfg Config, logger *zap.Logger) *NEM {
	return &NEM{desc: d, http: newHTTPClient(d.Shortcut, cfg.withDefaults(), logger)}
}

type nemAccountInfo struct {
	Account struct {
		Address       string `json:"address"`
		Balance       int64  `json:"balance"`
		VestedBalance int64  `json:"vestedBalance"`
		PublicKey     string `json:"publicKey"`
	} `json:"account"`
	Meta struct {
		Status       string `json:"status"`
		RemoteStatus string `json:"remoteStatus"`
	} `json:"meta"`
}

type nemHash struct {
	Data string `json:"data"`
}

type nemTransactionItem struct {
	Meta struct {
		Hash   nemHash `json:"hash"`
		Height int64   `json:"height"`
	} `json:"meta"`
	Transaction struct {
		TimeStamp int64  `json:"timeStamp"`
		Amount    int64  `json:"amount"`
		Fee       int64  `json:"fee"`
		Recipient string `json:"recipient"`
		Type      int    `json:"type"`
		Signer    string `json:"signer"`
		Message   struct {
			Payload string `json:"payload"`
			Type    int    `json:"type"`
		} `json:"message"`
	} `json:"transaction"`
}

type nemTransactionsResponse struct {
	Data []nemTransactionItem `json:"data"`
}

type nemAnnounceRequest struct {
	Data      string `json:"data"`
	Signature string `json:"signature"`
}

type nemAnnounceResult struct {
	Type            int     `json:"type"`
	Code            int     `json:"code"`
	Message         string  `json:"message"`
	TransactionHash nemHash `json:"transactionHash"`
}

// QueryAddress fetches account state. Balance comes back in micro-XEM.
func (c *NEM) QueryAddress(ctx context.Context, addr string) (*models.AccountState, error) {
	const op = "account"
	path := c.desc.Shortcut + "/account/" + escape(address.NormalizeNEM(addr))

	resp, err := c.http.get(ctx, op, path)
	if err != nil {
		return nil, err
	}
	if notFound(resp) {
		return nil, errors.Wrapf(errs.ErrNotFound, "nem account %s", addr)
	}
	var info nemAccountInfo
	if err := c.http.decode(op, path, resp, &info); err != nil {
		return nil, err
	}
	if info.Account.Address == "" {
		return nil, errors.Wrapf(errs.ErrNotFound, "nem account %s", addr)
	}

	return &models.AccountState{
		Address:   info.Account.Address,
		Balance:   c.desc.FromUnits(info.Account.Balance),
		PublicKey: info.Account.PublicKey,
		Extra: map[string]string{
			"vested_balance": c.desc.FromUnits(info.Account.VestedBalance).String(),
			"status":         info.Meta.Status,
			"remote_status":  info.Meta.RemoteStatus,
		},
	}, nil
}

// QueryTransactions pages backwards through history. The cursor is the
// hash of the last transaction of the previous page.
func (c *NEM) QueryTransactions(ctx context.Context, addr, cursor string) (*models.TransactionPage, error) {
	const op = "transactions"
	path := c.desc.Shortcut + "/account/transactions/?accountAddress=" + escape(address.NormalizeNEM(addr))
	if cursor != "" {
		path += "&hash=" + escape(cursor)
	}

	resp, err := c.http.get(ctx, op, path)
	if err != nil {
		return nil, err
	}
	var body nemTransactionsResponse
	if err := c.http.decode(op, path, resp, &body); err != nil {
		return nil, err
	}

	page := &models.TransactionPage{Transactions: make([]models.TransactionRecord, 0, len(body.Data))}
	for _, item := range body.Data {
		page.Transactions = append(page.Transactions, c.record(item))
	}
	if n := len(body.Data); n > 0 {
		page.NextCursor = body.Data[n-1].Meta.Hash.Data
	}
	return page, nil
}

func (c *NEM) record(item nemTransactionItem) models.TransactionRecord {
	t := item.Transaction
	rec := models.TransactionRecord{
		Hash:      item.Meta.Hash.Data,
		To:        t.Recipient,
		Amount:    c.desc.FromUnits(t.Amount),
		Fee:       c.desc.FromUnits(t.Fee),
		Timestamp: coin.NEMEpoch.Add(time.Duration(t.TimeStamp) * time.Second),
		Success:   true, // NIS only lists confirmed transactions
	}
	if pub, err := hex.DecodeString(t.Signer); err == nil && len(pub) == 32 {
		rec.From = address.EncodeNEM(pub, c.desc.NetworkID)
	}
	if t.Message.Type == nemMessagePlain && t.Message.Payload != "" {
		if memo, err := hex.DecodeString(t.Message.Payload); err == nil {
			rec.Memo = string(memo)
		}
	}
	return rec
}

// Broadcast announces a signed transaction. Encoded and Signature are hex.
func (c *NEM) Broadcast(ctx context.Context, tx *models.SignedTransaction) (*models.BroadcastReceipt, error) {
	const op = "broadcast"
	if tx == nil || tx.Encoded == "" || tx.Signature == "" {
		return nil, errors.Wrap(errs.ErrInvalidParameter, "signed transaction is empty")
	}
	path := c.desc.Shortcut + "/transaction/submit"

	resp, err := c.http.postJSON(ctx, op, path, nemAnnounceRequest{Data: tx.Encoded, Signature: tx.Signature})
	if err != nil {
		return nil, err
	}
	var result nemAnnounceResult
	if err := c.http.decode(op, path, resp, &result); err != nil {
		return nil, err
	}
	if result.Code != nemResultSuccess {
		return nil, &errs.BackendError{
			Op: op, URL: c.http.base + path, StatusCode: resp.status, Body: string(resp.body),
			Err: errors.Errorf("announce rejected: %s", result.Message),
		}
	}
	return &models.BroadcastReceipt{Hash: result.TransactionHash.Data, Raw: string(resp.body)}, nil
}

// QueryFee is not offered by NEM backends; fees are computed locally.
func (c *NEM) QueryFee(context.Context) (*models.FeeInfo, error) {
	return nil, errors.Wrap(errs.ErrNotImplemented, "nem fee endpoint")
}
