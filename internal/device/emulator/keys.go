package emulator

import (
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/binary"

	"github.com/OKaluzny/devicewallet/internal/path"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/pkg/errors"
	"github.com/tyler-smith/go-bip32"
)

// curve selects the key scheme a path is derived with.
type curve int

const (
	curveEd25519 curve = iota
	curveSecp256k1
)

const rippleSlip44 = 144

func curveFor(p path.DerivationPath) curve {
	if len(p) > 1 && p[1] == path.Hardened(rippleSlip44) {
		return curveSecp256k1
	}
	return curveEd25519
}

// key is a derived node: private key, public key, chain code.
type key struct {
	curve     curve
	private   []byte
	public    []byte // 32 byte ed25519 or 33 byte compressed secp256k1
	chainCode []byte
	xpub      string
}

func (k *key) ed25519() ed25519.PrivateKey {
	return ed25519.NewKeyFromSeed(k.private)
}

func (k *key) secp256k1() *btcec.PrivateKey {
	priv, _ := btcec.PrivKeyFromBytes(k.private)
	return priv
}

// derive walks p from the seed on the curve the path selects.
func derive(seed []byte, p path.DerivationPath) (*key, error) {
	if curveFor(p) == curveSecp256k1 {
		return deriveSecp256k1(seed, p)
	}
	return deriveEd25519(seed, p)
}

// deriveSecp256k1 is BIP-32.
func deriveSecp256k1(seed []byte, p path.DerivationPath) (*key, error) {
	node, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, errors.Wrap(err, "master key")
	}
	for _, level := range p {
		node, err = node.NewChildKey(level)
		if err != nil {
			return nil, errors.Wrapf(err, "derive %s", p)
		}
	}
	pub := node.PublicKey()
	return &key{
		curve:     curveSecp256k1,
		private:   node.Key,
		public:    pub.Key,
		chainCode: node.ChainCode,
		xpub:      pub.B58Serialize(),
	}, nil
}

// deriveEd25519 is SLIP-10, which only defines hardened children. NEM
// paths use it too, although hardware devices derive and sign NEM keys
// with ed25519-keccak; emulator NEM addresses and signatures are therefore
// self-consistent but not those of a real device for the same seed.
func deriveEd25519(seed []byte, p path.DerivationPath) (*key, error) {
	sum := hmacSHA512([]byte("ed25519 seed"), seed)
	k, c := sum[:32], sum[32:]

	for _, level := range p {
		if !path.IsHardened(level) {
			return nil, errors.Wrapf(path.ErrInvalidPath, "ed25519 level %d is not hardened", level)
		}
		data := make([]byte, 0, 37)
		data = append(data, 0x00)
		data = append(data, k...)
		data = binary.BigEndian.AppendUint32(data, level)
		sum = hmacSHA512(c, data)
		k, c = sum[:32], sum[32:]
	}

	priv := ed25519.NewKeyFromSeed(k)
	return &key{
		curve:     curveEd25519,
		private:   k,
		public:    priv.Public().(ed25519.PublicKey),
		chainCode: c,
	}, nil
}

func hmacSHA512(k, data []byte) []byte {
	mac := hmac.New(sha512.New, k)
	mac.Write(data)
	return mac.Sum(nil)
}
