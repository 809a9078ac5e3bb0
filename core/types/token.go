package types

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/bech32"
	"github.com/ethereum/go-ethereum/common"

	coreerrors "crosshub/core/errors"
)

const maxTokenLength = 64

// Token is the chain-agnostic identifier of an asset on the hub.
type Token string

// Validate checks that the identifier is non-empty, bounded and limited to
// lowercase alphanumerics plus '.', '_' and '-'. The restricted alphabet keeps
// the 0x00 key separator out of every token.
func (t Token) Validate() error {
	if len(t) == 0 || len(t) > maxTokenLength {
		return fmt.Errorf("%w: %q", coreerrors.ErrInvalidToken, string(t))
	}
	for _, r := range string(t) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
		default:
			return fmt.Errorf("%w: %q", coreerrors.ErrInvalidToken, string(t))
		}
	}
	return nil
}

func (t Token) String() string { return string(t) }

// Token representation kinds on a spoke chain.
const (
	TokenKindNative = "native"
	TokenKindSmart  = "smart"
)

// TokenType describes how a token is held on a particular chain: either a
// native bank denomination or a token contract.
type TokenType struct {
	Kind            string `json:"kind"`
	Denom           string `json:"denom,omitempty"`
	ContractAddress string `json:"contract_address,omitempty"`
}

// NativeDenom returns a native token type for denom.
func NativeDenom(denom string) TokenType {
	return TokenType{Kind: TokenKindNative, Denom: denom}
}

// SmartToken returns a contract-backed token type.
func SmartToken(contract string) TokenType {
	return TokenType{Kind: TokenKindSmart, ContractAddress: contract}
}

func (t TokenType) IsNative() bool { return t.Kind == TokenKindNative }

func (t TokenType) IsSmart() bool { return t.Kind == TokenKindSmart }

// Identifier returns the bank denomination for native tokens and the
// contract address for smart tokens.
func (t TokenType) Identifier() string {
	if t.IsSmart() {
		return t.ContractAddress
	}
	return t.Denom
}

// Key is the stable identifier used for allow-list storage.
func (t TokenType) Key() string {
	return t.Kind + ":" + t.Identifier()
}

// Validate checks the kind and, for smart tokens, the contract address.
func (t TokenType) Validate() error {
	switch t.Kind {
	case TokenKindNative:
		if strings.TrimSpace(t.Denom) == "" || strings.ContainsRune(t.Denom, 0) {
			return fmt.Errorf("%w: empty native denom", coreerrors.ErrInvalidToken)
		}
		return nil
	case TokenKindSmart:
		return ValidateAddress(t.ContractAddress)
	default:
		return fmt.Errorf("%w: unknown token kind %q", coreerrors.ErrInvalidToken, t.Kind)
	}
}

// TokenWithDenom couples a hub token with its representation on the
// requesting chain.
type TokenWithDenom struct {
	Token     Token     `json:"token"`
	TokenType TokenType `json:"token_type"`
}

// Validate validates both halves.
func (t TokenWithDenom) Validate() error {
	if err := t.Token.Validate(); err != nil {
		return err
	}
	return t.TokenType.Validate()
}

// ValidateAddress accepts bech32 account or contract addresses and 0x-prefixed
// 20 byte hex addresses.
func ValidateAddress(addr string) error {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return fmt.Errorf("%w: empty", coreerrors.ErrInvalidAddress)
	}
	if strings.HasPrefix(addr, "0x") || strings.HasPrefix(addr, "0X") {
		if !common.IsHexAddress(addr) {
			return fmt.Errorf("%w: %s", coreerrors.ErrInvalidAddress, addr)
		}
		return nil
	}
	if _, _, err := bech32.Decode(addr); err != nil {
		return fmt.Errorf("%w: %s: %v", coreerrors.ErrInvalidAddress, addr, err)
	}
	return nil
}
