// Package emulator is a software signing device. It derives keys from a
// BIP-39 mnemonic and answers the same typed messages a hardware wallet
// does, so the wallet can run end to end without hardware.
package emulator

import (
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"sync"
	"time"

	"github.com/OKaluzny/devicewallet/internal/address"
	"github.com/OKaluzny/devicewallet/internal/device"
	"github.com/OKaluzny/devicewallet/internal/envelope"
	"github.com/OKaluzny/devicewallet/internal/errs"
	"github.com/OKaluzny/devicewallet/internal/path"
	"github.com/OKaluzny/devicewallet/pkg/logger"
	"github.com/OKaluzny/devicewallet/pkg/models"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/pkg/errors"
	"github.com/tyler-smith/go-bip39"
	"go.uber.org/zap"
)

const (
	nemMainnet byte = 0x68
	nemTestnet byte = 0x98

	nemSlip44        = 43
	nemTestnetSlip44 = 1
	stellarSlip44    = 148

	// scanAccounts is how many accounts per coin type VerifyMessage
	// searches for an address it has not derived yet.
	scanAccounts = 20
)

// Emulator implements device.Transport.
type Emulator struct {
	mu      sync.Mutex
	seed    []byte
	reject  map[string]bool
	stellar *stellarRun
	known   map[string]*key // address -> key, for VerifyMessage
	logger  *zap.Logger
}

var _ device.Transport = (*Emulator)(nil)

// stellarRun is a multi-step Stellar signing in progress.
type stellarRun struct {
	header *device.StellarSignTx
	ops    []models.Operation
}

// Option configures an Emulator.
type Option func(*Emulator)

// RejectOn makes the emulator answer the named messages with an
// ActionCancelled failure, as if the user pressed cancel.
func RejectOn(names ...string) Option {
	return func(e *Emulator) {
		for _, n := range names {
			e.reject[n] = true
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Emulator) { e.logger = l.With(zap.String("component", "emulator")) }
}

// New seeds an emulator from a mnemonic and optional passphrase.
func New(mnemonic, passphrase string, opts ...Option) (*Emulator, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, errors.Wrap(errs.ErrInvalidParameter, "invalid mnemonic")
	}
	e := &Emulator{
		seed:   bip39.NewSeed(mnemonic, passphrase),
		reject: make(map[string]bool),
		known:  make(map[string]*key),
		logger: logger.Named("emulator"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Exchange answers one request. Device-level problems come back as a
// *device.Failure message, never as an error.
func (e *Emulator) Exchange(_ context.Context, req device.Message) (device.Message, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if req == nil {
		return failure(device.FailureUnexpectedMessage, "empty request"), nil
	}
	if e.reject[req.MessageName()] {
		e.stellar = nil
		e.logger.Debug("rejecting", zap.String("request", req.MessageName()))
		return failure(device.FailureActionCancelled, "Action cancelled by user"), nil
	}

	switch m := req.(type) {
	case *device.NEMGetAddress:
		return e.nemAddress(m)
	case *device.StellarGetAddress:
		return e.stellarAddress(m)
	case *device.RippleGetAddress:
		return e.rippleAddress(m)
	case *device.GetPublicKey:
		return e.publicKey(m)
	case *device.SignMessage:
		return e.signMessage(m)
	case *device.VerifyMessage:
		return e.verifyMessage(m)
	case *device.NEMSignTx:
		return e.nemSign(m)
	case *device.StellarSignTx:
		return e.stellarBegin(m)
	case *device.StellarPaymentOp:
		return e.stellarOp(models.Operation{
			Kind:        models.OpPayment,
			Source:      m.SourceAccount,
			Destination: m.DestinationAccount,
			Amount:      envelope.FromStroops(m.Amount),
		})
	case *device.StellarCreateAccountOp:
		return e.stellarOp(models.Operation{
			Kind:        models.OpCreateAccount,
			Source:      m.SourceAccount,
			Destination: m.NewAccount,
			Amount:      envelope.FromStroops(m.StartingBalance),
		})
	default:
		return failure(device.FailureUnexpectedMessage, "unexpected message "+req.MessageName()), nil
	}
}

func failure(code device.FailureType, msg string) *device.Failure {
	return &device.Failure{Code: code, Message: msg}
}

func (e *Emulator) derive(p []uint32) (*key, *device.Failure) {
	k, err := derive(e.seed, path.DerivationPath(p))
	if err != nil {
		return nil, failure(device.FailureDataError, err.Error())
	}
	return k, nil
}

// addressOf renders the address a path's coin type uses and remembers the
// key behind it.
func (e *Emulator) addressOf(p []uint32, k *key) (string, error) {
	var addr string
	switch {
	case k.curve == curveSecp256k1:
		addr = address.EncodeRipple(k.public)
	case len(p) > 1 && p[1] == path.Hardened(stellarSlip44):
		var err error
		if addr, err = address.EncodeStellar(k.public); err != nil {
			return "", err
		}
	case len(p) > 1 && p[1] == path.Hardened(nemTestnetSlip44):
		addr = address.EncodeNEM(k.public, nemTestnet)
	default:
		addr = address.EncodeNEM(k.public, nemMainnet)
	}
	e.known[addr] = k
	return addr, nil
}

func (e *Emulator) nemAddress(m *device.NEMGetAddress) (device.Message, error) {
	k, f := e.derive(m.AddressN)
	if f != nil {
		return f, nil
	}
	network := byte(m.Network)
	if network == 0 {
		network = nemMainnet
	}
	addr := address.EncodeNEM(k.public, network)
	e.known[addr] = k
	return &device.NEMAddress{Address: addr}, nil
}

func (e *Emulator) stellarAddress(m *device.StellarGetAddress) (device.Message, error) {
	k, f := e.derive(m.AddressN)
	if f != nil {
		return f, nil
	}
	addr, err := address.EncodeStellar(k.public)
	if err != nil {
		return failure(device.FailureProcessError, err.Error()), nil
	}
	e.known[addr] = k
	return &device.StellarAddress{Address: addr}, nil
}

func (e *Emulator) rippleAddress(m *device.RippleGetAddress) (device.Message, error) {
	if curveFor(m.AddressN) != curveSecp256k1 {
		return failure(device.FailureDataError, "not a ripple path"), nil
	}
	k, f := e.derive(m.AddressN)
	if f != nil {
		return f, nil
	}
	addr := address.EncodeRipple(k.public)
	e.known[addr] = k
	return &device.RippleAddress{Address: addr}, nil
}

func (e *Emulator) publicKey(m *device.GetPublicKey) (device.Message, error) {
	k, f := e.derive(m.AddressN)
	if f != nil {
		return f, nil
	}
	var child uint32
	if n := len(m.AddressN); n > 0 {
		child = m.AddressN[n-1]
	}
	return &device.PublicKey{
		Node: device.HDNode{
			Depth:     uint32(len(m.AddressN)),
			ChildNum:  child,
			ChainCode: k.chainCode,
			PublicKey: k.public,
		},
		XPub: k.xpub,
	}, nil
}

func (e *Emulator) signMessage(m *device.SignMessage) (device.Message, error) {
	k, f := e.derive(m.AddressN)
	if f != nil {
		return f, nil
	}
	addr, err := e.addressOf(m.AddressN, k)
	if err != nil {
		return failure(device.FailureProcessError, err.Error()), nil
	}
	return &device.MessageSignature{Address: addr, Signature: sign(k, m.Message)}, nil
}

// lookup finds the key behind addr, deriving the first scanAccounts
// accounts of every supported coin type when addr is not known yet.
func (e *Emulator) lookup(addr string) (*key, bool) {
	if k, ok := e.known[addr]; ok {
		return k, true
	}
	for _, slip44 := range []uint32{nemSlip44, nemTestnetSlip44, stellarSlip44, rippleSlip44} {
		for i := uint32(0); i < scanAccounts; i++ {
			p := []uint32{path.Hardened(path.Purpose), path.Hardened(slip44), path.Hardened(i)}
			k, f := e.derive(p)
			if f != nil {
				break
			}
			if a, err := e.addressOf(p, k); err == nil && a == addr {
				return k, true
			}
		}
	}
	return nil, false
}

func (e *Emulator) verifyMessage(m *device.VerifyMessage) (device.Message, error) {
	addr := m.Address
	if address.ValidNEM(addr) {
		addr = address.NormalizeNEM(addr)
	}
	k, ok := e.lookup(addr)
	if !ok {
		return failure(device.FailureDataError, "unknown address"), nil
	}
	if !verify(k, m.Message, m.Signature) {
		return failure(device.FailureInvalidSignature, "Invalid signature"), nil
	}
	return &device.Success{Message: "Message verified"}, nil
}

func sign(k *key, msg []byte) []byte {
	if k.curve == curveSecp256k1 {
		hash := sha256.Sum256(msg)
		return ecdsa.Sign(k.secp256k1(), hash[:]).Serialize()
	}
	return ed25519.Sign(k.ed25519(), msg)
}

func verify(k *key, msg, sig []byte) bool {
	if k.curve == curveSecp256k1 {
		parsed, err := ecdsa.ParseDERSignature(sig)
		if err != nil {
			return false
		}
		pub, err := btcec.ParsePubKey(k.public)
		if err != nil {
			return false
		}
		hash := sha256.Sum256(msg)
		return parsed.Verify(hash[:], pub)
	}
	return ed25519.Verify(k.public, msg, sig)
}

func (e *Emulator) nemSign(m *device.NEMSignTx) (device.Message, error) {
	if m.Transfer == nil {
		return failure(device.FailureDataError, "only transfer transactions are supported"), nil
	}
	if !address.ValidNEM(m.Transfer.Recipient) {
		return failure(device.FailureDataError, "invalid recipient"), nil
	}
	k, f := e.derive(m.Transaction.AddressN)
	if f != nil {
		return f, nil
	}
	data := serializeNEMTransfer(k.public, m.Transaction, m.Transfer)
	return &device.NEMSignedTx{Data: data, Signature: ed25519.Sign(k.ed25519(), data)}, nil
}

func (e *Emulator) stellarBegin(m *device.StellarSignTx) (device.Message, error) {
	if m.NumOperations == 0 {
		return failure(device.FailureDataError, "transaction has no operations"), nil
	}
	if _, f := e.derive(m.AddressN); f != nil {
		return f, nil
	}
	header := *m
	e.stellar = &stellarRun{header: &header}
	return &device.StellarTxOpRequest{}, nil
}

func (e *Emulator) stellarOp(op models.Operation) (device.Message, error) {
	run := e.stellar
	if run == nil {
		return failure(device.FailureUnexpectedMessage, "no transaction in progress"), nil
	}
	run.ops = append(run.ops, op)
	if uint32(len(run.ops)) < run.header.NumOperations {
		return &device.StellarTxOpRequest{}, nil
	}
	e.stellar = nil

	k, f := e.derive(run.header.AddressN)
	if f != nil {
		return f, nil
	}
	hash, err := envelope.Hash(run.intent())
	if err != nil {
		return failure(device.FailureDataError, err.Error()), nil
	}
	return &device.StellarSignedTx{
		PublicKey: k.public,
		Signature: ed25519.Sign(k.ed25519(), hash[:]),
	}, nil
}

// intent rebuilds the unsigned transaction the header and ops describe.
func (r *stellarRun) intent() *models.UnsignedTransaction {
	h := r.header
	tx := &models.UnsignedTransaction{
		Network:           models.NetworkStellar,
		Source:            h.SourceAccount,
		Fee:               envelope.FromStroops(int64(h.Fee)),
		Sequence:          h.SequenceNumber - 1,
		Operations:        r.ops,
		NetworkPassphrase: h.NetworkPassphrase,
	}
	if h.MemoType == device.StellarMemoText {
		tx.Memo = h.MemoText
	}
	if h.TimeboundsStart > 0 {
		tx.ValidAfter = time.Unix(int64(h.TimeboundsStart), 0)
	}
	if h.TimeboundsEnd > 0 {
		tx.ValidBefore = time.Unix(int64(h.TimeboundsEnd), 0)
	}
	return tx
}
