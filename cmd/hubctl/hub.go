package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"crosshub/core/types"
	"crosshub/gateway/middleware"
	"crosshub/native/swap"
)

type pageFlags struct {
	skip  uint
	limit uint
}

func (p *pageFlags) register(fs *flag.FlagSet) {
	fs.UintVar(&p.skip, "skip", 0, "entries to skip")
	fs.UintVar(&p.limit, "limit", 0, "maximum entries to return (default 10)")
}

func paginate[K any](p pageFlags) types.Pagination[K] {
	return types.Pagination[K]{Skip: uint32(p.skip), Limit: uint32(p.limit)}
}

func runHubState(ctx context.Context, c *client, args []string, stdout, stderr io.Writer) int {
	var out json.RawMessage
	if err := c.hub(ctx, http.MethodGet, "/v1/state", nil, &out); err != nil {
		return fail(stderr, err)
	}
	return printJSON(stdout, stderr, out)
}

func runChains(ctx context.Context, c *client, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("chains", stderr)
	var page pageFlags
	page.register(fs)
	if err := fs.Parse(args); err != nil {
		return 1
	}
	var out json.RawMessage
	if err := c.hub(ctx, http.MethodPost, "/v1/chains/list", paginate[types.ChainUID](page), &out); err != nil {
		return fail(stderr, err)
	}
	return printJSON(stdout, stderr, out)
}

func runChain(ctx context.Context, c *client, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("chain", stderr)
	uid := fs.String("uid", "", "chain uid")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if err := types.ChainUID(*uid).Validate(); err != nil {
		return fail(stderr, err)
	}
	var out json.RawMessage
	if err := c.hub(ctx, http.MethodGet, "/v1/chains/"+url.PathEscape(*uid), nil, &out); err != nil {
		return fail(stderr, err)
	}
	return printJSON(stdout, stderr, out)
}

func runPools(ctx context.Context, c *client, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("pools", stderr)
	var page pageFlags
	page.register(fs)
	if err := fs.Parse(args); err != nil {
		return 1
	}
	var out json.RawMessage
	if err := c.hub(ctx, http.MethodPost, "/v1/pools/list", paginate[types.Pair](page), &out); err != nil {
		return fail(stderr, err)
	}
	return printJSON(stdout, stderr, out)
}

func runPool(ctx context.Context, c *client, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("pool", stderr)
	token1 := fs.String("token1", "", "first token of the pair")
	token2 := fs.String("token2", "", "second token of the pair")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	pair, err := types.NewPair(types.Token(*token1), types.Token(*token2))
	if err != nil {
		return fail(stderr, err)
	}
	var out json.RawMessage
	if err := c.hub(ctx, http.MethodPost, "/v1/pools/get", map[string]interface{}{"pair": pair}, &out); err != nil {
		return fail(stderr, err)
	}
	return printJSON(stdout, stderr, out)
}

func runTokens(ctx context.Context, c *client, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("tokens", stderr)
	var page pageFlags
	page.register(fs)
	if err := fs.Parse(args); err != nil {
		return 1
	}
	var out json.RawMessage
	if err := c.hub(ctx, http.MethodPost, "/v1/tokens/list", paginate[types.Token](page), &out); err != nil {
		return fail(stderr, err)
	}
	return printJSON(stdout, stderr, out)
}

func runEscrows(ctx context.Context, c *client, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("escrows", stderr)
	token := fs.String("token", "", "token whose escrows to list")
	var page pageFlags
	page.register(fs)
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if err := types.Token(*token).Validate(); err != nil {
		return fail(stderr, err)
	}
	body := map[string]interface{}{"token": *token, "pagination": paginate[types.ChainUID](page)}
	var out json.RawMessage
	if err := c.hub(ctx, http.MethodPost, "/v1/escrows/list", body, &out); err != nil {
		return fail(stderr, err)
	}
	return printJSON(stdout, stderr, out)
}

func runSimulateSwap(ctx context.Context, c *client, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("simulate-swap", stderr)
	assetIn := fs.String("asset-in", "", "token sent into the route")
	amountIn := fs.String("amount-in", "", "amount sent into the route")
	assetOut := fs.String("asset-out", "", "token expected out of the route")
	route := fs.String("route", "", "hops as in/out pairs, e.g. usdc/atom,atom/osmo")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	amount, err := parseAmount(*amountIn)
	if err != nil {
		return fail(stderr, err)
	}
	hops, err := parseRoute(*route)
	if err != nil {
		return fail(stderr, err)
	}
	req := swap.SimulateSwapRequest{
		AssetIn:  types.Token(*assetIn),
		AmountIn: amount,
		AssetOut: types.Token(*assetOut),
		Route:    hops,
	}
	var quote swap.Quote
	if err := c.hub(ctx, http.MethodPost, "/v1/simulate/swap", req, &quote); err != nil {
		return fail(stderr, err)
	}
	return printJSON(stdout, stderr, quote)
}

func runSimulateRelease(ctx context.Context, c *client, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("simulate-release", stderr)
	token := fs.String("token", "", "token to release")
	amountRaw := fs.String("amount", "", "amount to release")
	claimantsRaw := fs.String("claimants", "", "address@chain[=limit] entries in priority order")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	amount, err := parseAmount(*amountRaw)
	if err != nil {
		return fail(stderr, err)
	}
	claimants, err := parseClaimants(*claimantsRaw)
	if err != nil {
		return fail(stderr, err)
	}
	if len(claimants) == 0 {
		return fail(stderr, fmt.Errorf("at least one claimant required"))
	}
	body := map[string]interface{}{"token": *token, "amount": amount, "cross_chain_addresses": claimants}
	var out json.RawMessage
	if err := c.hub(ctx, http.MethodPost, "/v1/simulate/release", body, &out); err != nil {
		return fail(stderr, err)
	}
	return printJSON(stdout, stderr, out)
}

func runLock(ctx context.Context, c *client, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("lock", stderr)
	locked := fs.Bool("locked", true, "lock (true) or unlock (false) the hub")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	var out json.RawMessage
	if err := c.hub(ctx, http.MethodPost, "/v1/admin/lock", map[string]bool{"locked": *locked}, &out, middleware.ScopeAdmin); err != nil {
		return fail(stderr, err)
	}
	return printJSON(stdout, stderr, out)
}
