package pools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/holiman/uint256"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	coreerrors "crosshub/core/errors"
	"crosshub/core/types"
	"crosshub/native/router"
	"crosshub/native/swap"
)

// Config describes how to reach the liquidity pool service.
type Config struct {
	Endpoint      string
	APIKey        string
	Timeout       time.Duration
	RatePerSecond float64
	Burst         int
}

// Client talks JSON over HTTP to the pool service that owns pricing curves
// and reserves. It satisfies router.Pools.
type Client struct {
	base       *url.URL
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

var _ router.Pools = (*Client)(nil)

// NewClient constructs a client for cfg.Endpoint.
func NewClient(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/"))
	if err != nil {
		return nil, fmt.Errorf("pools: parse endpoint: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("pools: endpoint %q must be absolute", cfg.Endpoint)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	perSecond := cfg.RatePerSecond
	if perSecond <= 0 {
		perSecond = 50
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 10
	}
	return &Client{
		base:   base,
		apiKey: strings.TrimSpace(cfg.APIKey),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}, nil
}

type swapBody struct {
	AssetIn  types.Token         `json:"asset_in"`
	AmountIn *uint256.Int        `json:"amount_in"`
	Next     []types.NextSwapVlp `json:"next"`
	Quote    *swap.Quote         `json:"quote,omitempty"`
}

type liquidityBody struct {
	Pair     types.Pair   `json:"pair"`
	Token1   *uint256.Int `json:"token_1,omitempty"`
	Token2   *uint256.Int `json:"token_2,omitempty"`
	Slippage uint64       `json:"slippage_tolerance,omitempty"`
	LP       *uint256.Int `json:"lp_allocation,omitempty"`
}

// SimulateSwap asks the entry pool to price a route.
func (c *Client) SimulateSwap(ctx context.Context, pool types.PoolID, assetIn types.Token, amountIn *uint256.Int, next []types.NextSwapVlp) (swap.Quote, error) {
	var quote swap.Quote
	err := c.call(ctx, pool, "simulate", swapBody{AssetIn: assetIn, AmountIn: amountIn, Next: next}, &quote)
	return quote, err
}

// ExecuteSwap applies a priced swap to the pool reserves. The pool rejects
// the call when it can no longer honour quote.
func (c *Client) ExecuteSwap(ctx context.Context, pool types.PoolID, assetIn types.Token, amountIn *uint256.Int, next []types.NextSwapVlp, quote swap.Quote) error {
	return c.call(ctx, pool, "swap", swapBody{AssetIn: assetIn, AmountIn: amountIn, Next: next, Quote: &quote}, nil)
}

func (c *Client) AddLiquidity(ctx context.Context, pool types.PoolID, pair types.Pair, token1, token2 *uint256.Int, slippage uint64) (*uint256.Int, error) {
	var out struct {
		Minted *uint256.Int `json:"lp_minted"`
	}
	if err := c.call(ctx, pool, "liquidity/add", liquidityBody{Pair: pair, Token1: token1, Token2: token2, Slippage: slippage}, &out); err != nil {
		return nil, err
	}
	if out.Minted == nil {
		return new(uint256.Int), nil
	}
	return out.Minted, nil
}

func (c *Client) QuoteWithdrawal(ctx context.Context, pool types.PoolID, pair types.Pair, lp *uint256.Int) (router.Withdrawal, error) {
	var out router.Withdrawal
	if err := c.call(ctx, pool, "liquidity/quote", liquidityBody{Pair: pair, LP: lp}, &out); err != nil {
		return router.Withdrawal{}, err
	}
	if out.Token1Amount == nil {
		out.Token1Amount = new(uint256.Int)
	}
	if out.Token2Amount == nil {
		out.Token2Amount = new(uint256.Int)
	}
	return out, nil
}

func (c *Client) RemoveLiquidity(ctx context.Context, pool types.PoolID, pair types.Pair, lp *uint256.Int) error {
	return c.call(ctx, pool, "liquidity/remove", liquidityBody{Pair: pair, LP: lp}, nil)
}

func (c *Client) call(ctx context.Context, pool types.PoolID, action string, body interface{}, out interface{}) error {
	if c == nil {
		return fmt.Errorf("pools: client not configured")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("pools: rate limit: %w", err)
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("pools: encode %s: %w", action, err)
	}
	target := c.base.JoinPath("v1", "pools", string(pool), action)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.String(), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("pools: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", coreerrors.ErrPricing, action, pool, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: read %s response: %v", coreerrors.ErrPricing, action, err)
	}
	if resp.StatusCode/100 != 2 {
		var failure struct {
			Code  string `json:"code"`
			Error string `json:"error"`
		}
		_ = json.Unmarshal(raw, &failure)
		msg := strings.TrimSpace(failure.Error)
		if msg == "" {
			msg = strings.TrimSpace(string(raw))
		}
		if resp.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%w: pool %s: %s", coreerrors.ErrUnregisteredPool, pool, msg)
		}
		return fmt.Errorf("%w: %s %s: status %d: %s", coreerrors.ErrPricing, action, pool, resp.StatusCode, msg)
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: decode %s response: %v", coreerrors.ErrPricing, action, err)
	}
	return nil
}
