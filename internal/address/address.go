// Package address encodes and validates account addresses for each chain
// family the wallet supports.
package address

import (
	"bytes"
	"crypto/sha256"
	"encoding/base32"
	"strings"

	"github.com/OKaluzny/devicewallet/internal/coin"
	"github.com/mr-tron/base58"
	"github.com/stellar/go-stellar-sdk/strkey"
	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // RIPEMD-160 is part of NEM and Ripple address derivation
	"golang.org/x/crypto/sha3"
)

// Validator reports whether an address string is well formed for a chain
// family.
type Validator interface {
	Validate(address string, base coin.BaseType) bool
}

// Default is the validator backed by this package's chain rules.
var Default Validator = validator{}

type validator struct{}

func (validator) Validate(address string, base coin.BaseType) bool {
	switch base {
	case coin.BaseStellar:
		return ValidStellar(address)
	case coin.BaseNEM:
		return ValidNEM(address)
	case coin.BaseRipple:
		return ValidRipple(address)
	default:
		return false
	}
}

// ----- Stellar -----

// EncodeStellar returns the G... account id of an ed25519 public key.
func EncodeStellar(pub []byte) (string, error) {
	return strkey.Encode(strkey.VersionByteAccountID, pub)
}

// ValidStellar checks a G... account id.
func ValidStellar(address string) bool {
	return strkey.IsValidEd25519PublicKey(address)
}

// ----- NEM -----

const nemAddressLen = 25 // version + 20 byte hash + 4 byte checksum

// EncodeNEM returns the base32 NEM address of a public key on network.
// NEM address = Base32(network + RIPEMD160(Keccak256(pubKey)) + checksum)
func EncodeNEM(pub []byte, network byte) string {
	sha := keccak256(pub)
	ripe := ripemd160.New()
	ripe.Write(sha)

	raw := make([]byte, 0, nemAddressLen)
	raw = append(raw, network)
	raw = append(raw, ripe.Sum(nil)...)
	raw = append(raw, keccak256(raw)[:4]...)

	return base32.StdEncoding.EncodeToString(raw)
}

// NormalizeNEM strips the dash grouping wallets display and upper-cases.
func NormalizeNEM(address string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(address), "-", ""))
}

// ValidNEM checks length, base32 alphabet and checksum.
func ValidNEM(address string) bool {
	address = NormalizeNEM(address)
	if len(address) != 40 {
		return false
	}
	raw, err := base32.StdEncoding.DecodeString(address)
	if err != nil || len(raw) != nemAddressLen {
		return false
	}
	sum := keccak256(raw[:21])[:4]
	return bytes.Equal(sum, raw[21:])
}

// NEMNetwork returns the network byte encoded in a valid address.
func NEMNetwork(address string) (byte, bool) {
	if !ValidNEM(address) {
		return 0, false
	}
	raw, _ := base32.StdEncoding.DecodeString(NormalizeNEM(address))
	return raw[0], true
}

// ----- Ripple -----

var rippleAlphabet = base58.NewAlphabet("rpshnaf39wBUDNEGHJKLM4PQRST7VWXYZ2bcdeCg65jkm8oFqi1tuvAxyz")

// EncodeRipple returns the r... classic address of a compressed secp256k1
// public key.
func EncodeRipple(pub []byte) string {
	sha := sha256.Sum256(pub)
	ripe := ripemd160.New()
	ripe.Write(sha[:])

	raw := make([]byte, 0, 25)
	raw = append(raw, 0x00)
	raw = append(raw, ripe.Sum(nil)...)
	raw = append(raw, doubleSHA256(raw)[:4]...)

	return base58.EncodeAlphabet(raw, rippleAlphabet)
}

// ValidRipple checks prefix, alphabet and checksum of a classic address.
func ValidRipple(address string) bool {
	if !strings.HasPrefix(address, "r") || len(address) < 25 || len(address) > 35 {
		return false
	}
	raw, err := base58.DecodeAlphabet(address, rippleAlphabet)
	if err != nil || len(raw) != 25 || raw[0] != 0x00 {
		return false
	}
	return bytes.Equal(doubleSHA256(raw[:21])[:4], raw[21:])
}

// --- helpers ---

func keccak256(data []byte) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	return h.Sum(nil)
}

func doubleSHA256(data []byte) []byte {
	first := sha256.Sum256(data)
	second := sha256.Sum256(first[:])
	return second[:]
}
