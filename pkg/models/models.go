package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Network represents a coin family understood by the wallet.
type Network string

// Supported networks.
const (
	NetworkNEM     Network = "NEM"
	NetworkStellar Network = "XLM"
	NetworkRipple  Network = "XRP"
)

// AccountState is the normalized on-chain state of one account, as
// returned by a chain backend and stored after discovery.
type AccountState struct {
	Index     uint32          `json:"index"`
	Address   string          `json:"address"`
	Balance   decimal.Decimal `json:"balance"`
	Sequence  int64           `json:"sequence,omitempty"`
	PublicKey string          `json:"public_key,omitempty"`

	// Reserve-affecting counters (Stellar)
	SubentryCount uint32 `json:"subentry_count,omitempty"`
	NumSponsoring uint32 `json:"num_sponsoring,omitempty"`
	NumSponsored  uint32 `json:"num_sponsored,omitempty"`

	Extra map[string]string `json:"extra,omitempty"`
}

// TransactionRecord is one entry of an account's transaction history.
type TransactionRecord struct {
	Hash      string          `json:"hash"`
	From      string          `json:"from,omitempty"`
	To        string          `json:"to,omitempty"`
	Amount    decimal.Decimal `json:"amount"`
	Fee       decimal.Decimal `json:"fee"`
	Memo      string          `json:"memo,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Success   bool            `json:"success"`
}

// TransactionPage is one page of history. NextCursor is passed back to the
// backend untouched; empty means no further page is known.
type TransactionPage struct {
	Transactions []TransactionRecord `json:"transactions"`
	NextCursor   string              `json:"next_cursor,omitempty"`
}

// FeeInfo holds fee levels in native units (XLM, XEM).
type FeeInfo struct {
	Base    decimal.Decimal `json:"base"`
	Low     decimal.Decimal `json:"low"`
	Medium  decimal.Decimal `json:"medium"`
	High    decimal.Decimal `json:"high"`
	Updated time.Time       `json:"updated"`
}

// OperationKind names one operation in an unsigned transaction.
type OperationKind string

// Operation kinds.
const (
	OpPayment       OperationKind = "payment"
	OpCreateAccount OperationKind = "create_account"
	OpTransfer      OperationKind = "transfer"
)

// Operation is a single value movement inside a transaction.
type Operation struct {
	Kind        OperationKind   `json:"kind"`
	Source      string          `json:"source,omitempty"`
	Destination string          `json:"destination"`
	Amount      decimal.Decimal `json:"amount"`
	AssetCode   string          `json:"asset_code,omitempty"`
}

// UnsignedTransaction is a fully composed, not yet signed transaction.
// It is never modified after composition; hand-offs use Clone.
type UnsignedTransaction struct {
	Network    Network         `json:"network"`
	Coin       string          `json:"coin"`
	Path       []uint32        `json:"path"`
	Source     string          `json:"source"`
	Fee        decimal.Decimal `json:"fee"`
	Sequence   int64           `json:"sequence,omitempty"`
	Operations []Operation     `json:"operations"`
	Memo       string          `json:"memo,omitempty"`

	// Validity window. Stellar uses it as time bounds, NEM as
	// timestamp/deadline.
	ValidAfter  time.Time `json:"valid_after"`
	ValidBefore time.Time `json:"valid_before"`

	NetworkPassphrase string `json:"network_passphrase,omitempty"`
	NetworkID         byte   `json:"network_id,omitempty"`
}

// Clone returns a deep copy.
func (tx *UnsignedTransaction) Clone() *UnsignedTransaction {
	if tx == nil {
		return nil
	}
	out := *tx
	out.Path = append([]uint32(nil), tx.Path...)
	out.Operations = append([]Operation(nil), tx.Operations...)
	return &out
}

// SignedTransaction is the broadcast-ready artifact of a signing run.
type SignedTransaction struct {
	Network   Network `json:"network"`
	Encoded   string  `json:"encoded"`
	Signature string  `json:"signature,omitempty"`
	PublicKey string  `json:"public_key,omitempty"`
}

// BroadcastReceipt is what a backend answered to a submission.
type BroadcastReceipt struct {
	Hash string `json:"hash,omitempty"`
	Raw  string `json:"raw"`
	// Replayed is set when the receipt was returned for a repeated
	// idempotency key and nothing was broadcast.
	Replayed bool `json:"replayed,omitempty"`
}

// PublicKey is a device-reported public key.
type PublicKey struct {
	Path      string `json:"path"`
	Key       string `json:"key"` // hex
	ChainCode string `json:"chain_code,omitempty"`
	XPub      string `json:"xpub,omitempty"`
}

// MessageSignature is a device message signature, hex-encoded.
type MessageSignature struct {
	Address   string `json:"address"`
	Signature string `json:"signature"`
}

// TransactionEvent is emitted by the listener for new history entries.
type TransactionEvent struct {
	Network Network           `json:"network"`
	Address string            `json:"address"`
	Tx      TransactionRecord `json:"tx"`
}
