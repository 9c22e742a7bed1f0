package path

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/OKaluzny/devicewallet/internal/coin"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/pkg/errors"
)

// Purpose is the BIP44 purpose level.
const Purpose uint32 = 44

// ErrInvalidPath is returned for any path string that does not parse.
var ErrInvalidPath = errors.New("invalid derivation path")

// DerivationPath is the binary form of a BIP32 path; hardened levels have
// the high bit set.
type DerivationPath []uint32

// Hardened returns i with the hardened bit set.
func Hardened(i uint32) uint32 {
	return hdkeychain.HardenedKeyStart + i
}

// IsHardened reports whether i is a hardened index.
func IsHardened(i uint32) bool {
	return i >= hdkeychain.HardenedKeyStart
}

// Parse converts "m/44'/148'/0'" (or the relative "44'/148'/0'") into a
// DerivationPath. Every level must be a non-negative decimal integer,
// optionally followed by a single apostrophe.
func Parse(s string) (DerivationPath, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.Wrap(ErrInvalidPath, "empty path")
	}

	elems := strings.Split(s, "/")
	if elems[0] == "m" {
		elems = elems[1:]
	}
	if len(elems) == 0 {
		return nil, errors.Wrapf(ErrInvalidPath, "%q has no levels", s)
	}

	path := make(DerivationPath, 0, len(elems))
	for _, elem := range elems {
		value, err := parseLevel(elem)
		if err != nil {
			return nil, errors.Wrapf(ErrInvalidPath, "%q: %v", s, err)
		}
		path = append(path, value)
	}
	return path, nil
}

func parseLevel(elem string) (uint32, error) {
	hardened := strings.HasSuffix(elem, "'")
	digits := strings.TrimSuffix(elem, "'")
	if digits == "" {
		return 0, errors.New("empty level")
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return 0, errors.Errorf("level %q is not a non-negative integer", elem)
		}
	}
	n, err := strconv.ParseUint(digits, 10, 32)
	if err != nil {
		return 0, errors.Errorf("level %q out of range", elem)
	}
	value := uint32(n)
	if hardened {
		if IsHardened(value) {
			return 0, errors.Errorf("level %q exceeds hardened range", elem)
		}
		value = Hardened(value)
	}
	return value, nil
}

// String renders the path in its canonical "m/44'/148'/0'" form.
func (p DerivationPath) String() string {
	if len(p) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("m")
	for _, level := range p {
		if IsHardened(level) {
			fmt.Fprintf(&b, "/%d'", level-hdkeychain.HardenedKeyStart)
			continue
		}
		fmt.Fprintf(&b, "/%d", level)
	}
	return b.String()
}

// Clone returns a copy that does not share storage with p.
func (p DerivationPath) Clone() DerivationPath {
	if p == nil {
		return nil
	}
	out := make(DerivationPath, len(p))
	copy(out, p)
	return out
}

// Deriver computes account paths. Suffix appends extra levels for chain
// families whose address model needs them.
type Deriver struct {
	Suffix map[coin.BaseType]DerivationPath
}

// Derive returns [44', slip44', account'] plus any registered suffix.
func (dv Deriver) Derive(d coin.Descriptor, account uint32) (DerivationPath, error) {
	if IsHardened(account) {
		return nil, errors.Wrapf(ErrInvalidPath, "account %d exceeds hardened range", account)
	}
	p := DerivationPath{Hardened(Purpose), Hardened(d.Slip44), Hardened(account)}
	if suffix, ok := dv.Suffix[d.BaseType]; ok {
		p = append(p, suffix...)
	}
	return p, nil
}

// Derive uses a Deriver with no suffixes.
func Derive(d coin.Descriptor, account uint32) (DerivationPath, error) {
	return Deriver{}.Derive(d, account)
}

// ParseAccount parses s and checks it is the account triplet
// (44', slip44', N') for d, returning N.
func ParseAccount(s string, d coin.Descriptor) (DerivationPath, uint32, error) {
	p, err := Parse(s)
	if err != nil {
		return nil, 0, err
	}
	if len(p) != 3 {
		return nil, 0, errors.Wrapf(ErrInvalidPath, "%q: want 3 levels, got %d", s, len(p))
	}
	if p[0] != Hardened(Purpose) || p[1] != Hardened(d.Slip44) || !IsHardened(p[2]) {
		return nil, 0, errors.Wrapf(ErrInvalidPath, "%q is not 44'/%d'/N'", s, d.Slip44)
	}
	return p, p[2] - hdkeychain.HardenedKeyStart, nil
}

// Levels lets a parsed path stand wherever a path is accepted in either
// form.
func (p DerivationPath) Levels() (DerivationPath, error) {
	return p, nil
}
