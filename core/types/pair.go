package types

import (
	"bytes"
	"fmt"

	coreerrors "crosshub/core/errors"
)

// KeySeparator joins the components of composite keys. Tokens and chain uids
// cannot contain it, so byte order of joined keys equals tuple order.
const KeySeparator byte = 0x00

// PoolID identifies the virtual liquidity pool serving a pair.
type PoolID string

// Pair is an unordered trading pair stored in canonical order: Token1 sorts
// strictly before Token2.
type Pair struct {
	Token1 Token `json:"token_1"`
	Token2 Token `json:"token_2"`
}

// NewPair validates both tokens and returns the canonical pair. (A, B) and
// (B, A) produce identical pairs.
func NewPair(a, b Token) (Pair, error) {
	p := Pair{Token1: a, Token2: b}
	if err := p.Validate(); err != nil {
		return Pair{}, err
	}
	return p.Canonical(), nil
}

// Validate checks both tokens and rejects identical sides. Order is not
// required; use Canonical before keying.
func (p Pair) Validate() error {
	if err := p.Token1.Validate(); err != nil {
		return err
	}
	if err := p.Token2.Validate(); err != nil {
		return err
	}
	if p.Token1 == p.Token2 {
		return fmt.Errorf("%w: tokens must differ (%s)", coreerrors.ErrInvalidPair, p.Token1)
	}
	return nil
}

// Canonical returns the pair with its tokens in ascending byte order.
func (p Pair) Canonical() Pair {
	if p.Token2 < p.Token1 {
		return Pair{Token1: p.Token2, Token2: p.Token1}
	}
	return p
}

// Key returns the canonical storage key suffix of the pair.
func (p Pair) Key() []byte {
	c := p.Canonical()
	buf := make([]byte, 0, len(c.Token1)+len(c.Token2)+1)
	buf = append(buf, c.Token1...)
	buf = append(buf, KeySeparator)
	return append(buf, c.Token2...)
}

// ParsePairKey reverses Key.
func ParsePairKey(key []byte) (Pair, error) {
	idx := bytes.IndexByte(key, KeySeparator)
	if idx <= 0 || idx == len(key)-1 {
		return Pair{}, fmt.Errorf("%w: malformed key %x", coreerrors.ErrInvalidPair, key)
	}
	return NewPair(Token(key[:idx]), Token(key[idx+1:]))
}

// Tokens returns the two sides in canonical order.
func (p Pair) Tokens() []Token {
	c := p.Canonical()
	return []Token{c.Token1, c.Token2}
}

func (p Pair) String() string {
	c := p.Canonical()
	return fmt.Sprintf("%s/%s", c.Token1, c.Token2)
}

// PairWithDenom is the request-side pair carrying each token's chain
// representation.
type PairWithDenom struct {
	Token1 TokenWithDenom `json:"token_1"`
	Token2 TokenWithDenom `json:"token_2"`
}

// Pair validates the denominations and returns the canonical hub pair.
func (p PairWithDenom) Pair() (Pair, error) {
	if err := p.Token1.Validate(); err != nil {
		return Pair{}, err
	}
	if err := p.Token2.Validate(); err != nil {
		return Pair{}, err
	}
	return NewPair(p.Token1.Token, p.Token2.Token)
}

// Tokens returns both sides in request order.
func (p PairWithDenom) Tokens() []TokenWithDenom {
	return []TokenWithDenom{p.Token1, p.Token2}
}
