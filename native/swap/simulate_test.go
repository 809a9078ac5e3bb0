package swap

import (
	"context"
	"errors"
	"testing"

	"github.com/holiman/uint256"

	coreerrors "crosshub/core/errors"
	"crosshub/core/state"
	"crosshub/core/types"
	"crosshub/native/registry"
	"crosshub/storage"
)

type pricerCall struct {
	pool     types.PoolID
	assetIn  types.Token
	amountIn uint64
	next     []types.NextSwapVlp
}

type fakePricer struct {
	calls []pricerCall
	quote Quote
	err   error
}

func (f *fakePricer) SimulateSwap(_ context.Context, pool types.PoolID, assetIn types.Token, amountIn *uint256.Int, next []types.NextSwapVlp) (Quote, error) {
	f.calls = append(f.calls, pricerCall{pool: pool, assetIn: assetIn, amountIn: amountIn.Uint64(), next: next})
	return f.quote, f.err
}

func newTestRegistry(t *testing.T, pools map[[2]types.Token]types.PoolID) *registry.Registry {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(func() { db.Close() })
	reg := registry.New(state.NewManager(db))
	for tokens, pool := range pools {
		pair, err := types.NewPair(tokens[0], tokens[1])
		if err != nil {
			t.Fatalf("pair: %v", err)
		}
		if _, err := reg.RegisterPool(pair, pool); err != nil {
			t.Fatalf("register: %v", err)
		}
	}
	return reg
}

func TestValidateEmptyRoute(t *testing.T) {
	v := NewValidator(newTestRegistry(t, nil))
	_, err := v.Validate(nil)
	if !errors.Is(err, coreerrors.ErrEmptyRoute) {
		t.Fatalf("expected empty route, got %v", err)
	}
}

func TestValidateResolvesHopsInOrder(t *testing.T) {
	reg := newTestRegistry(t, map[[2]types.Token]types.PoolID{
		{"atom", "usdc"}: "vlp-au",
		{"eth", "usdc"}:  "vlp-eu",
	})
	v := NewValidator(reg)
	resolved, err := v.Validate([]types.NextSwapPair{
		{TokenIn: "atom", TokenOut: "usdc"},
		{TokenIn: "usdc", TokenOut: "eth", TestFail: true},
	})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if len(resolved) != 2 || resolved[0].Pool != "vlp-au" || resolved[1].Pool != "vlp-eu" {
		t.Fatalf("unexpected resolution: %+v", resolved)
	}
	if resolved[0].TestFail || !resolved[1].TestFail {
		t.Fatalf("test-fail marker not carried through: %+v", resolved)
	}
}

func TestSimulateUnregisteredHopFailsBeforePricing(t *testing.T) {
	reg := newTestRegistry(t, map[[2]types.Token]types.PoolID{{"a", "b"}: "vlp-ab"})
	pricer := &fakePricer{quote: Quote{AssetOut: "c", AmountOut: uint256.NewInt(1)}}
	sim := NewSimulator(NewValidator(reg), pricer)

	_, err := sim.SimulateSwap(context.Background(), SimulateSwapRequest{
		AssetIn:  "a",
		AmountIn: uint256.NewInt(100),
		AssetOut: "c",
		Route:    []types.NextSwapPair{{TokenIn: "a", TokenOut: "b"}, {TokenIn: "b", TokenOut: "c"}},
	})
	if !errors.Is(err, coreerrors.ErrUnregisteredPool) {
		t.Fatalf("expected unregistered pool, got %v", err)
	}
	if coreerrors.KindOf(err) != coreerrors.KindNotFound {
		t.Fatalf("expected not found kind, got %s", coreerrors.KindOf(err))
	}
	if len(pricer.calls) != 0 {
		t.Fatalf("pricer must not be called, got %d calls", len(pricer.calls))
	}
}

func TestSimulateBoundaryChecks(t *testing.T) {
	reg := newTestRegistry(t, map[[2]types.Token]types.PoolID{{"a", "b"}: "vlp-ab"})
	pricer := &fakePricer{}
	sim := NewSimulator(NewValidator(reg), pricer)
	route := []types.NextSwapPair{{TokenIn: "a", TokenOut: "b"}}

	cases := []struct {
		name string
		req  SimulateSwapRequest
		want error
	}{
		{name: "empty", req: SimulateSwapRequest{AssetIn: "a", AssetOut: "b"}, want: coreerrors.ErrEmptyRoute},
		{name: "asset in", req: SimulateSwapRequest{AssetIn: "x", AssetOut: "b", Route: route}, want: coreerrors.ErrAssetInMismatch},
		{name: "asset out", req: SimulateSwapRequest{AssetIn: "a", AssetOut: "x", Route: route}, want: coreerrors.ErrAssetOutMismatch},
		{name: "both wrong reports asset in first", req: SimulateSwapRequest{AssetIn: "x", AssetOut: "y", Route: route}, want: coreerrors.ErrAssetInMismatch},
	}
	for _, tc := range cases {
		tc.req.AmountIn = uint256.NewInt(1)
		_, err := sim.SimulateSwap(context.Background(), tc.req)
		if !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
	if len(pricer.calls) != 0 {
		t.Fatalf("pricer must not be called on boundary failures")
	}
}

func TestSimulateDelegatesFirstHopAndRest(t *testing.T) {
	reg := newTestRegistry(t, map[[2]types.Token]types.PoolID{
		{"a", "b"}: "vlp-ab",
		{"b", "c"}: "vlp-bc",
	})
	pricer := &fakePricer{quote: Quote{AssetOut: "c", AmountOut: uint256.NewInt(95)}}
	sim := NewSimulator(NewValidator(reg), pricer)

	quote, err := sim.SimulateSwap(context.Background(), SimulateSwapRequest{
		AssetIn:  "a",
		AmountIn: uint256.NewInt(100),
		AssetOut: "c",
		Route:    []types.NextSwapPair{{TokenIn: "a", TokenOut: "b"}, {TokenIn: "b", TokenOut: "c"}},
	})
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	if quote.AmountOut.Uint64() != 95 {
		t.Fatalf("unexpected amount out %s", quote.AmountOut)
	}
	if len(pricer.calls) != 1 {
		t.Fatalf("expected one pricing call, got %d", len(pricer.calls))
	}
	call := pricer.calls[0]
	if call.pool != "vlp-ab" || call.assetIn != "a" || call.amountIn != 100 {
		t.Fatalf("unexpected pricing call: %+v", call)
	}
	if len(call.next) != 1 || call.next[0].Pool != "vlp-bc" {
		t.Fatalf("unexpected remaining hops: %+v", call.next)
	}
}

func TestSimulateOutputAssetMismatch(t *testing.T) {
	reg := newTestRegistry(t, map[[2]types.Token]types.PoolID{{"a", "b"}: "vlp-ab"})
	pricer := &fakePricer{quote: Quote{AssetOut: "a", AmountOut: uint256.NewInt(5)}}
	sim := NewSimulator(NewValidator(reg), pricer)

	_, err := sim.SimulateSwap(context.Background(), SimulateSwapRequest{
		AssetIn: "a", AmountIn: uint256.NewInt(10), AssetOut: "b",
		Route: []types.NextSwapPair{{TokenIn: "a", TokenOut: "b"}},
	})
	if !errors.Is(err, coreerrors.ErrSwapOutputMismatch) {
		t.Fatalf("expected output mismatch, got %v", err)
	}
	if coreerrors.KindOf(err) != coreerrors.KindExternal {
		t.Fatalf("expected external kind")
	}
}

func TestSimulatePricerFailureIsExternal(t *testing.T) {
	reg := newTestRegistry(t, map[[2]types.Token]types.PoolID{{"a", "b"}: "vlp-ab"})
	sim := NewSimulator(NewValidator(reg), &fakePricer{err: errors.New("pool offline")})

	_, err := sim.SimulateSwap(context.Background(), SimulateSwapRequest{
		AssetIn: "a", AmountIn: uint256.NewInt(10), AssetOut: "b",
		Route: []types.NextSwapPair{{TokenIn: "a", TokenOut: "b"}},
	})
	if !errors.Is(err, coreerrors.ErrPricing) {
		t.Fatalf("expected pricing error, got %v", err)
	}
}
