package main

import (
	"fmt"
	"strings"

	"github.com/holiman/uint256"
	"golang.org/x/text/unicode/norm"

	"crosshub/core/types"
	"crosshub/native/factory"
)

// clean folds compatibility characters (full-width letters, non-breaking
// spaces) pasted into flags before anything is validated.
func clean(raw string) string {
	return strings.TrimSpace(norm.NFKC.String(raw))
}

func parseAmount(raw string) (*uint256.Int, error) {
	raw = clean(raw)
	if raw == "" {
		return nil, fmt.Errorf("amount required")
	}
	v, err := uint256.FromDecimal(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", raw, err)
	}
	return v, nil
}

// parseTokenWithDenom reads token=native:denom or token=smart:contract.
func parseTokenWithDenom(raw string) (types.TokenWithDenom, error) {
	token, rest, ok := strings.Cut(clean(raw), "=")
	if !ok {
		return types.TokenWithDenom{}, fmt.Errorf("expected token=kind:id, got %q", raw)
	}
	kind, id, ok := strings.Cut(rest, ":")
	if !ok {
		return types.TokenWithDenom{}, fmt.Errorf("expected token=kind:id, got %q", raw)
	}
	out := types.TokenWithDenom{Token: types.Token(token)}
	switch kind {
	case types.TokenKindNative:
		out.TokenType = types.NativeDenom(id)
	case types.TokenKindSmart:
		out.TokenType = types.SmartToken(id)
	default:
		return types.TokenWithDenom{}, fmt.Errorf("unknown token kind %q", kind)
	}
	return out, out.Validate()
}

// parseRoute reads hops written as in/out pairs separated by commas, for
// example usdc/atom,atom/osmo.
func parseRoute(raw string) ([]types.NextSwapPair, error) {
	var route []types.NextSwapPair
	for _, hop := range splitList(raw) {
		in, out, ok := strings.Cut(hop, "/")
		if !ok {
			return nil, fmt.Errorf("invalid hop %q, expected in/out", hop)
		}
		route = append(route, types.NextSwapPair{TokenIn: types.Token(in), TokenOut: types.Token(out)})
	}
	return route, nil
}

// parseClaimants reads address@chain entries with an optional =limit.
func parseClaimants(raw string) ([]types.CrossChainUserWithLimit, error) {
	var out []types.CrossChainUserWithLimit
	for _, entry := range splitList(raw) {
		user, limit, hasLimit := strings.Cut(entry, "=")
		addr, chain, ok := strings.Cut(user, "@")
		if !ok {
			return nil, fmt.Errorf("invalid claimant %q, expected address@chain", entry)
		}
		claimant := types.CrossChainUserWithLimit{User: types.CrossChainUser{Address: addr, ChainUID: types.ChainUID(chain)}}
		if hasLimit {
			v, err := parseAmount(limit)
			if err != nil {
				return nil, err
			}
			claimant.Limit = v
		}
		out = append(out, claimant)
	}
	return out, nil
}

// parseFunds reads denom=amount entries.
func parseFunds(raw string) ([]factory.Coin, error) {
	var out []factory.Coin
	for _, entry := range splitList(raw) {
		denom, amount, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("invalid coin %q, expected denom=amount", entry)
		}
		v, err := parseAmount(amount)
		if err != nil {
			return nil, err
		}
		out = append(out, factory.Coin{Denom: denom, Amount: v})
	}
	return out, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(clean(raw), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
