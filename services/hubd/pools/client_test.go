package pools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	coreerrors "crosshub/core/errors"
	"crosshub/core/types"
	"crosshub/native/swap"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := NewClient(Config{Endpoint: srv.URL, APIKey: "pool-key", RatePerSecond: 1000, Burst: 100})
	require.NoError(t, err)
	return client
}

func TestSimulateSwapPostsRoute(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/pools/vlp-1/simulate", r.URL.Path)
		require.Equal(t, "pool-key", r.Header.Get("X-API-Key"))
		var body swapBody
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, types.Token("usdc"), body.AssetIn)
		require.Equal(t, uint64(100), body.AmountIn.Uint64())
		require.Len(t, body.Next, 1)
		_ = json.NewEncoder(w).Encode(swap.Quote{AssetOut: "osmo", AmountOut: uint256.NewInt(420)})
	})

	quote, err := client.SimulateSwap(context.Background(), "vlp-1", "usdc", uint256.NewInt(100), []types.NextSwapVlp{{Pool: "vlp-2"}})
	require.NoError(t, err)
	require.Equal(t, types.Token("osmo"), quote.AssetOut)
	require.Equal(t, uint64(420), quote.AmountOut.Uint64())
}

func TestFailuresAreClassified(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/pools/missing/simulate":
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"code":"slippage","error":"reserves moved"}`))
		}
	})

	_, err := client.SimulateSwap(context.Background(), "missing", "usdc", uint256.NewInt(1), nil)
	require.ErrorIs(t, err, coreerrors.ErrUnregisteredPool)

	err = client.ExecuteSwap(context.Background(), "vlp-1", "usdc", uint256.NewInt(1), nil, swap.Quote{AssetOut: "atom", AmountOut: uint256.NewInt(1)})
	require.ErrorIs(t, err, coreerrors.ErrPricing)
	require.Contains(t, err.Error(), "reserves moved")
}

func TestLiquidityCalls(t *testing.T) {
	pair := types.Pair{Token1: "atom", Token2: "usdc"}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body liquidityBody
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, pair, body.Pair)
		switch r.URL.Path {
		case "/v1/pools/vlp-1/liquidity/add":
			_, _ = w.Write([]byte(`{"lp_minted":"77"}`))
		case "/v1/pools/vlp-1/liquidity/quote":
			_, _ = w.Write([]byte(`{"token_1_amount":"5","token_2_amount":"9"}`))
		case "/v1/pools/vlp-1/liquidity/remove":
			w.WriteHeader(http.StatusNoContent)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})
	ctx := context.Background()

	minted, err := client.AddLiquidity(ctx, "vlp-1", pair, uint256.NewInt(10), uint256.NewInt(20), 5)
	require.NoError(t, err)
	require.Equal(t, uint64(77), minted.Uint64())

	w, err := client.QuoteWithdrawal(ctx, "vlp-1", pair, uint256.NewInt(3))
	require.NoError(t, err)
	require.Equal(t, uint64(5), w.Token1Amount.Uint64())
	require.Equal(t, uint64(9), w.Token2Amount.Uint64())

	require.NoError(t, client.RemoveLiquidity(ctx, "vlp-1", pair, uint256.NewInt(3)))
}

func TestNewClientRequiresAbsoluteEndpoint(t *testing.T) {
	_, err := NewClient(Config{Endpoint: "pools.local"})
	require.Error(t, err)
}
