package chain

import (
	"context"
	"strconv"
	"time"

	"github.com/OKaluzny/devicewallet/internal/coin"
	"github.com/OKaluzny/devicewallet/internal/envelope"
	"github.com/OKaluzny/devicewallet/internal/errs"
	"github.com/OKaluzny/devicewallet/pkg/models"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Stellar talks to a Horizon-shaped indexer.
type Stellar struct {
	desc     coin.Descriptor
	http     *httpClient
	pageSize int
}

var _ Client = (*Stellar)(nil)

// NewStellar builds a Stellar client.
func NewStellar(d coin.Descriptor, cfg Config, logger *zap.Logger) *Stellar {
	cfg = cfg.withDefaults()
	return &Stellar{desc: d, http: newHTTPClient(d.Shortcut, cfg, logger), pageSize: cfg.PageSize}
}

type stellarBalance struct {
	Balance   string `json:"balance"`
	AssetType string `json:"asset_type"`
}

type stellarAccountInfo struct {
	AccountID     string           `json:"account_id"`
	Sequence      string           `json:"sequence"`
	SubentryCount uint32           `json:"subentry_count"`
	NumSponsoring uint32           `json:"num_sponsoring"`
	NumSponsored  uint32           `json:"num_sponsored"`
	Balances      []stellarBalance `json:"balances"`
}

type stellarTransaction struct {
	ID            string `json:"id"`
	Hash          string `json:"hash"`
	PagingToken   string `json:"paging_token"`
	Successful    bool   `json:"successful"`
	SourceAccount string `json:"source_account"`
	FeeCharged    string `json:"fee_charged"`
	Memo          string `json:"memo"`
	MemoType      string `json:"memo_type"`
	CreatedAt     string `json:"created_at"`
}

type stellarTransactionsResponse struct {
	Transactions []stellarTransaction `json:"transactions"`
	Cursor       string               `json:"cursor"`
}

type stellarOperation struct {
	Type            string `json:"type"`
	SourceAccount   string `json:"source_account"`
	From            string `json:"from"`
	To              string `json:"to"`
	Amount          string `json:"amount"`
	AssetType       string `json:"asset_type"`
	AssetCode       string `json:"asset_code"`
	Account         string `json:"account"`
	StartingBalance string `json:"starting_balance"`
}

type stellarOperationsResponse struct {
	Operations []stellarOperation `json:"operations"`
}

type stellarFeeDistribution struct {
	Min  string `json:"min"`
	Mode string `json:"mode"`
	P10  string `json:"p10"`
	P50  string `json:"p50"`
	P90  string `json:"p90"`
}

type stellarFeeStats struct {
	LastLedgerBaseFee string                 `json:"last_ledger_base_fee"`
	FeeCharged        stellarFeeDistribution `json:"fee_charged"`
	MaxFee            stellarFeeDistribution `json:"max_fee"`
}

type stellarSubmitRequest struct {
	SignedTransactionBlob string `json:"SignedTransactionBlob"`
}

type stellarSubmitResult struct {
	Hash string `json:"hash"`
}

// QueryAddress fetches account state. Only the native balance is kept.
func (c *Stellar) QueryAddress(ctx context.Context, addr string) (*models.AccountState, error) {
	const op = "account"
	path := c.desc.Shortcut + "/account/" + escape(addr)

	resp, err := c.http.get(ctx, op, path)
	if err != nil {
		return nil, err
	}
	if notFound(resp) {
		return nil, errors.Wrapf(errs.ErrNotFound, "stellar account %s", addr)
	}
	var info stellarAccountInfo
	if err := c.http.decode(op, path, resp, &info); err != nil {
		return nil, err
	}
	if info.AccountID == "" {
		return nil, errors.Wrapf(errs.ErrNotFound, "stellar account %s", addr)
	}

	seq, err := strconv.ParseInt(info.Sequence, 10, 64)
	if err != nil {
		return nil, c.malformed(op, path, resp, errors.Wrap(err, "sequence"))
	}
	state := &models.AccountState{
		Address:       info.AccountID,
		Balance:       decimal.Zero,
		Sequence:      seq,
		SubentryCount: info.SubentryCount,
		NumSponsoring: info.NumSponsoring,
		NumSponsored:  info.NumSponsored,
	}
	for _, b := range info.Balances {
		if b.AssetType != "native" {
			continue
		}
		if state.Balance, err = decimal.NewFromString(b.Balance); err != nil {
			return nil, c.malformed(op, path, resp, errors.Wrap(err, "balance"))
		}
	}
	return state, nil
}

// QueryTransactions returns one page of the account's transactions. The
// cursor is a paging token; the next cursor is the backend's, or the last
// record's paging token.
func (c *Stellar) QueryTransactions(ctx context.Context, addr, cursor string) (*models.TransactionPage, error) {
	const op = "transactions"
	path := c.desc.Shortcut + "/transaction/account/" + escape(addr) + "?limit=" + strconv.Itoa(c.pageSize)
	if cursor != "" {
		path += "&cursor=" + escape(cursor)
	}

	resp, err := c.http.get(ctx, op, path)
	if err != nil {
		return nil, err
	}
	var body stellarTransactionsResponse
	if err := c.http.decode(op, path, resp, &body); err != nil {
		return nil, err
	}

	page := &models.TransactionPage{
		Transactions: make([]models.TransactionRecord, 0, len(body.Transactions)),
		NextCursor:   body.Cursor,
	}
	for _, t := range body.Transactions {
		rec := models.TransactionRecord{
			Hash:    t.Hash,
			From:    t.SourceAccount,
			Success: t.Successful,
		}
		if t.MemoType == "text" {
			rec.Memo = t.Memo
		}
		if fee, err := strconv.ParseInt(t.FeeCharged, 10, 64); err == nil {
			rec.Fee = envelope.FromStroops(fee)
		}
		if ts, err := time.Parse(time.RFC3339, t.CreatedAt); err == nil {
			rec.Timestamp = ts
		}
		page.Transactions = append(page.Transactions, rec)
	}
	if page.NextCursor == "" && len(body.Transactions) > 0 {
		page.NextCursor = body.Transactions[len(body.Transactions)-1].PagingToken
	}
	return page, nil
}

var _ OperationLister = (*Stellar)(nil)

// Operations lists the value-moving operations of one transaction.
func (c *Stellar) Operations(ctx context.Context, txID string) ([]models.Operation, error) {
	const op = "operations"
	path := c.desc.Shortcut + "/transaction/" + escape(txID) + "/operations"

	resp, err := c.http.get(ctx, op, path)
	if err != nil {
		return nil, err
	}
	var body stellarOperationsResponse
	if err := c.http.decode(op, path, resp, &body); err != nil {
		return nil, err
	}

	out := make([]models.Operation, 0, len(body.Operations))
	for _, o := range body.Operations {
		switch o.Type {
		case "payment":
			amount, err := decimal.NewFromString(o.Amount)
			if err != nil {
				return nil, c.malformed(op, path, resp, errors.Wrap(err, "amount"))
			}
			code := o.AssetCode
			if o.AssetType == "native" {
				code = c.desc.Shortcut
			}
			out = append(out, models.Operation{
				Kind: models.OpPayment, Source: o.From, Destination: o.To, Amount: amount, AssetCode: code,
			})
		case "create_account":
			amount, err := decimal.NewFromString(o.StartingBalance)
			if err != nil {
				return nil, c.malformed(op, path, resp, errors.Wrap(err, "starting balance"))
			}
			out = append(out, models.Operation{
				Kind: models.OpCreateAccount, Source: o.SourceAccount, Destination: o.Account,
				Amount: amount, AssetCode: c.desc.Shortcut,
			})
		}
	}
	return out, nil
}

// Broadcast submits a base64 XDR envelope.
func (c *Stellar) Broadcast(ctx context.Context, tx *models.SignedTransaction) (*models.BroadcastReceipt, error) {
	const op = "broadcast"
	if tx == nil || tx.Encoded == "" {
		return nil, errors.Wrap(errs.ErrInvalidParameter, "signed transaction is empty")
	}
	path := c.desc.Shortcut + "/transaction/submit"

	resp, err := c.http.postJSON(ctx, op, path, stellarSubmitRequest{SignedTransactionBlob: tx.Encoded})
	if err != nil {
		return nil, err
	}
	if err := c.http.ok(op, path, resp); err != nil {
		return nil, err
	}
	receipt := &models.BroadcastReceipt{Raw: string(resp.body)}
	var result stellarSubmitResult
	if err := c.http.decode(op, path, resp, &result); err == nil {
		receipt.Hash = result.Hash
	}
	return receipt, nil
}

// QueryFee maps Horizon fee stats (stroops) onto fee levels in XLM.
func (c *Stellar) QueryFee(ctx context.Context) (*models.FeeInfo, error) {
	const op = "fee"
	path := c.desc.Shortcut + "/fee"

	resp, err := c.http.get(ctx, op, path)
	if err != nil {
		return nil, err
	}
	var stats stellarFeeStats
	if err := c.http.decode(op, path, resp, &stats); err != nil {
		return nil, err
	}

	levels := []string{stats.LastLedgerBaseFee, stats.FeeCharged.Min, stats.FeeCharged.Mode, stats.FeeCharged.P90}
	values := make([]decimal.Decimal, len(levels))
	for i, s := range levels {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, c.malformed(op, path, resp, errors.Wrap(err, "fee stats"))
		}
		values[i] = envelope.FromStroops(n)
	}
	return &models.FeeInfo{
		Base:    values[0],
		Low:     values[1],
		Medium:  values[2],
		High:    values[3],
		Updated: time.Now().UTC(),
	}, nil
}

func (c *Stellar) malformed(op, path string, resp *response, err error) error {
	return &errs.BackendError{
		Op: op, URL: c.http.base + path, StatusCode: resp.status, Body: string(resp.body), Err: err,
	}
}
