package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/google/uuid"

	"crosshub/core/types"
	"crosshub/gateway/middleware"
	"crosshub/native/factory"
)

var pendingKinds = map[string]bool{
	"pools":            true,
	"swaps":            true,
	"liquidity":        true,
	"liquidity-add":    true,
	"liquidity-remove": true,
}

// requestFlags are shared by every factory request command.
type requestFlags struct {
	txID          string
	timeout       uint64
	funds         string
	tokenContract string
}

func (r *requestFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&r.txID, "tx-id", "", "idempotency key (random uuid when empty)")
	fs.Uint64Var(&r.timeout, "timeout", 0, "packet timeout in seconds (factory default when zero)")
	fs.StringVar(&r.funds, "funds", "", "attached coins as denom=amount entries")
	fs.StringVar(&r.tokenContract, "token-contract", "", "contract that forwarded the funds, for smart tokens")
}

func (r *requestFlags) resolveTxID() string {
	if r.txID == "" {
		r.txID = uuid.NewString()
	}
	return r.txID
}

func (r *requestFlags) timeoutPtr() *uint64 {
	if r.timeout == 0 {
		return nil
	}
	t := r.timeout
	return &t
}

type submission struct {
	Funds         []factory.Coin `json:"funds,omitempty"`
	TokenContract string         `json:"token_contract,omitempty"`
	Params        interface{}    `json:"params"`
}

func submit(ctx context.Context, c *client, path string, flags requestFlags, params interface{}, stdout, stderr io.Writer) int {
	funds, err := parseFunds(flags.funds)
	if err != nil {
		return fail(stderr, err)
	}
	body := submission{Funds: funds, TokenContract: flags.tokenContract, Params: params}
	var receipt factory.Receipt
	if err := c.factory(ctx, http.MethodPost, path, body, &receipt, middleware.ScopeSubmit); err != nil {
		return fail(stderr, err)
	}
	c.remember(receipt, stderr)
	return printJSON(stdout, stderr, receipt)
}

func runCreatePool(ctx context.Context, c *client, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("create-pool", stderr)
	token1 := fs.String("token1", "", "first token as token=kind:id")
	token2 := fs.String("token2", "", "second token as token=kind:id")
	var req requestFlags
	req.register(fs)
	if err := fs.Parse(args); err != nil {
		return 1
	}
	pair, err := parsePairWithDenom(*token1, *token2)
	if err != nil {
		return fail(stderr, err)
	}
	params := factory.PoolCreationParams{Pair: pair, Timeout: req.timeoutPtr(), TxID: req.resolveTxID()}
	return submit(ctx, c, "/v1/requests/pools", req, params, stdout, stderr)
}

func runAddLiquidity(ctx context.Context, c *client, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("add-liquidity", stderr)
	token1 := fs.String("token1", "", "first token as token=kind:id")
	token2 := fs.String("token2", "", "second token as token=kind:id")
	amount1 := fs.String("amount1", "", "liquidity of the first token")
	amount2 := fs.String("amount2", "", "liquidity of the second token")
	slippage := fs.Uint64("slippage", 1, "slippage tolerance in percent (1-100)")
	var req requestFlags
	req.register(fs)
	if err := fs.Parse(args); err != nil {
		return 1
	}
	pair, err := parsePairWithDenom(*token1, *token2)
	if err != nil {
		return fail(stderr, err)
	}
	liq1, err := parseAmount(*amount1)
	if err != nil {
		return fail(stderr, err)
	}
	liq2, err := parseAmount(*amount2)
	if err != nil {
		return fail(stderr, err)
	}
	params := factory.AddLiquidityParams{
		Pair:              pair,
		Token1Liquidity:   liq1,
		Token2Liquidity:   liq2,
		SlippageTolerance: *slippage,
		Timeout:           req.timeoutPtr(),
		TxID:              req.resolveTxID(),
	}
	return submit(ctx, c, "/v1/requests/liquidity/add", req, params, stdout, stderr)
}

func runRemoveLiquidity(ctx context.Context, c *client, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("remove-liquidity", stderr)
	token1 := fs.String("token1", "", "first token of the pair")
	token2 := fs.String("token2", "", "second token of the pair")
	lp := fs.String("lp", "", "lp tokens to burn")
	claimantsRaw := fs.String("claimants", "", "extra address@chain[=limit] entries paid before the requester")
	var req requestFlags
	req.register(fs)
	if err := fs.Parse(args); err != nil {
		return 1
	}
	pair, err := types.NewPair(types.Token(*token1), types.Token(*token2))
	if err != nil {
		return fail(stderr, err)
	}
	allocation, err := parseAmount(*lp)
	if err != nil {
		return fail(stderr, err)
	}
	claimants, err := parseClaimants(*claimantsRaw)
	if err != nil {
		return fail(stderr, err)
	}
	params := factory.RemoveLiquidityParams{
		Pair:                pair,
		LpAllocation:        allocation,
		CrossChainAddresses: claimants,
		Timeout:             req.timeoutPtr(),
		TxID:                req.resolveTxID(),
	}
	return submit(ctx, c, "/v1/requests/liquidity/remove", req, params, stdout, stderr)
}

func runSwap(ctx context.Context, c *client, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("swap", stderr)
	assetIn := fs.String("asset-in", "", "token sent as token=kind:id")
	amountIn := fs.String("amount-in", "", "amount sent into the route")
	assetOut := fs.String("asset-out", "", "token expected out of the route")
	minOut := fs.String("min-out", "", "minimum acceptable output")
	route := fs.String("route", "", "hops as in/out pairs, e.g. usdc/atom,atom/osmo")
	claimantsRaw := fs.String("claimants", "", "extra address@chain[=limit] entries paid before the requester")
	var req requestFlags
	req.register(fs)
	if err := fs.Parse(args); err != nil {
		return 1
	}
	in, err := parseTokenWithDenom(*assetIn)
	if err != nil {
		return fail(stderr, err)
	}
	amount, err := parseAmount(*amountIn)
	if err != nil {
		return fail(stderr, err)
	}
	minimum, err := parseAmount(*minOut)
	if err != nil {
		return fail(stderr, err)
	}
	hops, err := parseRoute(*route)
	if err != nil {
		return fail(stderr, err)
	}
	claimants, err := parseClaimants(*claimantsRaw)
	if err != nil {
		return fail(stderr, err)
	}
	params := factory.SwapParams{
		AssetIn:             in,
		AssetOut:            types.Token(*assetOut),
		AmountIn:            amount,
		MinAmountOut:        minimum,
		Swaps:               hops,
		CrossChainAddresses: claimants,
		Timeout:             req.timeoutPtr(),
		TxID:                req.resolveTxID(),
	}
	return submit(ctx, c, "/v1/requests/swaps", req, params, stdout, stderr)
}

func parsePairWithDenom(raw1, raw2 string) (types.PairWithDenom, error) {
	t1, err := parseTokenWithDenom(raw1)
	if err != nil {
		return types.PairWithDenom{}, err
	}
	t2, err := parseTokenWithDenom(raw2)
	if err != nil {
		return types.PairWithDenom{}, err
	}
	return types.PairWithDenom{Token1: t1, Token2: t2}, nil
}

func runFactoryState(ctx context.Context, c *client, args []string, stdout, stderr io.Writer) int {
	var out factory.State
	if err := c.factory(ctx, http.MethodGet, "/v1/state", nil, &out); err != nil {
		return fail(stderr, err)
	}
	return printJSON(stdout, stderr, out)
}

func runPending(ctx context.Context, c *client, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("pending", stderr)
	kind := fs.String("kind", "swaps", "pools, swaps, liquidity, liquidity-add or liquidity-remove")
	requester := fs.String("requester", "", "requester address (profile subject when empty)")
	var page pageFlags
	page.register(fs)
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if !pendingKinds[*kind] {
		return fail(stderr, fmt.Errorf("unknown pending kind %q", *kind))
	}
	if *requester == "" {
		*requester = c.cfg.Subject
	}
	body := map[string]interface{}{"requester": *requester, "pagination": paginate[string](page)}
	var out json.RawMessage
	if err := c.factory(ctx, http.MethodPost, "/v1/pending/"+*kind, body, &out); err != nil {
		return fail(stderr, err)
	}
	return printJSON(stdout, stderr, out)
}

func runOutbox(ctx context.Context, c *client, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("outbox", stderr)
	limit := fs.Uint("limit", 0, "maximum packets to show")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	path := "/v1/outbox"
	if *limit > 0 {
		path += "?limit=" + strconv.FormatUint(uint64(*limit), 10)
	}
	var out json.RawMessage
	if err := c.factory(ctx, http.MethodGet, path, nil, &out); err != nil {
		return fail(stderr, err)
	}
	return printJSON(stdout, stderr, out)
}

func runRelays(ctx context.Context, c *client, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("relays", stderr)
	txID := fs.String("tx-id", "", "filter by tx id")
	requester := fs.String("requester", "", "filter by requester")
	result := fs.String("result", "", "filter by result (acked, failed, timeout, error)")
	limit := fs.Uint("limit", 0, "maximum attempts to show")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	q := url.Values{}
	for key, value := range map[string]string{"tx_id": *txID, "requester": *requester, "result": *result} {
		if value != "" {
			q.Set(key, value)
		}
	}
	if *limit > 0 {
		q.Set("limit", strconv.FormatUint(uint64(*limit), 10))
	}
	path := "/v1/relays"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out json.RawMessage
	if err := c.factory(ctx, http.MethodGet, path, nil, &out); err != nil {
		return fail(stderr, err)
	}
	return printJSON(stdout, stderr, out)
}

func runRelay(ctx context.Context, c *client, args []string, stdout, stderr io.Writer) int {
	var out json.RawMessage
	if err := c.factory(ctx, http.MethodPost, "/v1/admin/relay", nil, &out, middleware.ScopeAdmin); err != nil {
		return fail(stderr, err)
	}
	return printJSON(stdout, stderr, out)
}
