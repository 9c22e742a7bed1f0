package device

// Message is a typed device protocol message. MessageName is the wire name
// the transport uses to frame it.
type Message interface {
	MessageName() string
}

// HDNode is the node part of a PublicKey response.
type HDNode struct {
	Depth       uint32 `json:"depth"`
	Fingerprint uint32 `json:"fingerprint"`
	ChildNum    uint32 `json:"child_num"`
	ChainCode   []byte `json:"chain_code"`
	PublicKey   []byte `json:"public_key"`
}

// ----- common -----

type GetPublicKey struct {
	AddressN    []uint32 `json:"address_n"`
	ShowDisplay bool     `json:"show_display"`
	CoinName    string   `json:"coin_name,omitempty"`
}

type PublicKey struct {
	Node HDNode `json:"node"`
	XPub string `json:"xpub"`
}

type SignMessage struct {
	AddressN []uint32 `json:"address_n"`
	Message  []byte   `json:"message"`
	CoinName string   `json:"coin_name"`
}

type MessageSignature struct {
	Address   string `json:"address"`
	Signature []byte `json:"signature"`
}

type VerifyMessage struct {
	Address   string `json:"address"`
	Signature []byte `json:"signature"`
	Message   []byte `json:"message"`
	CoinName  string `json:"coin_name"`
}

type Success struct {
	Message string `json:"message,omitempty"`
}

// FailureType mirrors the device failure codes.
type FailureType uint32

// Failure codes the wallet distinguishes.
const (
	FailureUnexpectedMessage FailureType = 1
	FailureDataError         FailureType = 3
	FailureActionCancelled   FailureType = 4
	FailurePinCancelled      FailureType = 6
	FailureInvalidSignature  FailureType = 11
	FailureProcessError      FailureType = 12
	FailureFirmwareError     FailureType = 99
)

type Failure struct {
	Code    FailureType `json:"code"`
	Message string      `json:"message"`
}

// ----- NEM -----

type NEMGetAddress struct {
	AddressN    []uint32 `json:"address_n"`
	Network     uint32   `json:"network"`
	ShowDisplay bool     `json:"show_display"`
}

type NEMAddress struct {
	Address string `json:"address"`
}

type NEMTransactionCommon struct {
	AddressN  []uint32 `json:"address_n"`
	Network   uint32   `json:"network"`
	Timestamp uint32   `json:"timestamp"`
	Fee       uint64   `json:"fee"`
	Deadline  uint32   `json:"deadline"`
}

type NEMTransfer struct {
	Recipient string `json:"recipient"`
	Amount    uint64 `json:"amount"`
	Payload   []byte `json:"payload,omitempty"`
}

type NEMSignTx struct {
	Transaction NEMTransactionCommon `json:"transaction"`
	Transfer    *NEMTransfer         `json:"transfer,omitempty"`
}

type NEMSignedTx struct {
	Data      []byte `json:"data"`
	Signature []byte `json:"signature"`
}

// ----- Stellar -----

type StellarGetAddress struct {
	AddressN    []uint32 `json:"address_n"`
	ShowDisplay bool     `json:"show_display"`
}

type StellarAddress struct {
	Address string `json:"address"`
}

// Stellar memo types.
const (
	StellarMemoNone uint32 = 0
	StellarMemoText uint32 = 1
)

type StellarSignTx struct {
	AddressN          []uint32 `json:"address_n"`
	NetworkPassphrase string   `json:"network_passphrase"`
	SourceAccount     string   `json:"source_account"`
	Fee               uint32   `json:"fee"`
	SequenceNumber    int64    `json:"sequence_number"`
	TimeboundsStart   uint64   `json:"timebounds_start"`
	TimeboundsEnd     uint64   `json:"timebounds_end"`
	MemoType          uint32   `json:"memo_type"`
	MemoText          string   `json:"memo_text,omitempty"`
	NumOperations     uint32   `json:"num_operations"`
}

type StellarTxOpRequest struct{}

type StellarAsset struct {
	Type   uint32 `json:"type"` // 0 = native
	Code   string `json:"code,omitempty"`
	Issuer string `json:"issuer,omitempty"`
}

type StellarPaymentOp struct {
	SourceAccount      string       `json:"source_account,omitempty"`
	DestinationAccount string       `json:"destination_account"`
	Asset              StellarAsset `json:"asset"`
	Amount             int64        `json:"amount"`
}

type StellarCreateAccountOp struct {
	SourceAccount   string `json:"source_account,omitempty"`
	NewAccount      string `json:"new_account"`
	StartingBalance int64  `json:"starting_balance"`
}

type StellarSignedTx struct {
	PublicKey []byte `json:"public_key"`
	Signature []byte `json:"signature"`
}

// ----- Ripple -----

type RippleGetAddress struct {
	AddressN    []uint32 `json:"address_n"`
	ShowDisplay bool     `json:"show_display"`
}

type RippleAddress struct {
	Address string `json:"address"`
}

func (GetPublicKey) MessageName() string           { return "GetPublicKey" }
func (PublicKey) MessageName() string              { return "PublicKey" }
func (SignMessage) MessageName() string            { return "SignMessage" }
func (MessageSignature) MessageName() string       { return "MessageSignature" }
func (VerifyMessage) MessageName() string          { return "VerifyMessage" }
func (Success) MessageName() string                { return "Success" }
func (Failure) MessageName() string                { return "Failure" }
func (NEMGetAddress) MessageName() string          { return "NEMGetAddress" }
func (NEMAddress) MessageName() string             { return "NEMAddress" }
func (NEMSignTx) MessageName() string              { return "NEMSignTx" }
func (NEMSignedTx) MessageName() string            { return "NEMSignedTx" }
func (StellarGetAddress) MessageName() string      { return "StellarGetAddress" }
func (StellarAddress) MessageName() string         { return "StellarAddress" }
func (StellarSignTx) MessageName() string          { return "StellarSignTx" }
func (StellarTxOpRequest) MessageName() string     { return "StellarTxOpRequest" }
func (StellarPaymentOp) MessageName() string       { return "StellarPaymentOp" }
func (StellarCreateAccountOp) MessageName() string { return "StellarCreateAccountOp" }
func (StellarSignedTx) MessageName() string        { return "StellarSignedTx" }
func (RippleGetAddress) MessageName() string       { return "RippleGetAddress" }
func (RippleAddress) MessageName() string          { return "RippleAddress" }
