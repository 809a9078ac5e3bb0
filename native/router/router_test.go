package router

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	coreerrors "crosshub/core/errors"
	"crosshub/core/events"
	"crosshub/core/packet"
	"crosshub/core/state"
	"crosshub/core/types"
	"crosshub/native/swap"
	"crosshub/storage"
)

const (
	hubAdmin = "0x00000000000000000000000000000000000000ad"
	alice    = "0x00000000000000000000000000000000000000a1"
	bob      = "0x00000000000000000000000000000000000000b2"
)

var testNow = time.Unix(1_700_000_000, 0)

// fakePools prices every hop at a fixed ratio and records reserve changes.
type fakePools struct {
	ratio     uint64
	swaps     int
	added     []*uint256.Int
	removed   int
	withdrawn Withdrawal
	failNext  error
}

func (f *fakePools) SimulateSwap(_ context.Context, _ types.PoolID, _ types.Token, amountIn *uint256.Int, next []types.NextSwapVlp) (swap.Quote, error) {
	return swap.Quote{AssetOut: "atom", AmountOut: new(uint256.Int).Mul(amountIn, uint256.NewInt(f.ratio))}, nil
}

func (f *fakePools) ExecuteSwap(context.Context, types.PoolID, types.Token, *uint256.Int, []types.NextSwapVlp, swap.Quote) error {
	if f.failNext != nil {
		return f.failNext
	}
	f.swaps++
	return nil
}

func (f *fakePools) AddLiquidity(_ context.Context, _ types.PoolID, _ types.Pair, token1, token2 *uint256.Int, _ uint64) (*uint256.Int, error) {
	f.added = append(f.added, token1, token2)
	return uint256.NewInt(7), nil
}

func (f *fakePools) QuoteWithdrawal(context.Context, types.PoolID, types.Pair, *uint256.Int) (Withdrawal, error) {
	return f.withdrawn, nil
}

func (f *fakePools) RemoveLiquidity(context.Context, types.PoolID, types.Pair, *uint256.Int) error {
	f.removed++
	return nil
}

type recorder struct{ got []events.Event }

func (r *recorder) Emit(evt events.Event) { r.got = append(r.got, evt) }

type hub struct {
	db     storage.Database
	router *Router
	pools  *fakePools
	events *recorder
}

func newHub(t *testing.T) *hub {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(func() { db.Close() })
	pools := &fakePools{ratio: 2}
	r := New(Config{Admin: hubAdmin}, pools)
	rec := &recorder{}
	r.SetEmitter(rec)
	r.SetNowFunc(func() time.Time { return testNow })
	r.SetState(state.NewManager(db))
	for _, uid := range []types.ChainUID{"osmosis", "ethereum"} {
		require.NoError(t, r.RegisterChain(hubAdmin, uid, types.Chain{ChainID: string(uid), FromFactoryChannel: "channel-" + string(uid)}))
	}
	_, err := r.RegisterPool(hubAdmin, types.Pair{Token1: "usdc", Token2: "atom"}, "vlp-atom-usdc")
	require.NoError(t, err)
	return &hub{db: db, router: r, pools: pools, events: rec}
}

// deliver executes p the way the hub daemon does: one step for the
// execution and, when it fails, a second one recording the failure.
func (h *hub) deliver(ctx context.Context, p packet.Packet) (packet.Ack, error) {
	defer h.router.SetState(state.NewManager(h.db))
	var ack packet.Ack
	err := state.Apply(h.db, func(m *state.Manager) error {
		h.router.SetState(m)
		var err error
		ack, err = h.router.Execute(ctx, p)
		return err
	})
	if err == nil {
		return ack, nil
	}
	cause := err
	err = state.Apply(h.db, func(m *state.Manager) error {
		h.router.SetState(m)
		var err error
		ack, err = h.router.RecordFailure(p, cause)
		return err
	})
	return ack, err
}

func sender(chain types.ChainUID) types.CrossChainUser {
	return types.CrossChainUser{Address: alice, ChainUID: chain}
}

func swapPacket(txID string, amountIn, minOut uint64, claimants ...types.CrossChainUserWithLimit) packet.Packet {
	return packet.Packet{
		Sequence:  1,
		Channel:   "channel-osmosis",
		Kind:      packet.KindSwap,
		Sender:    sender("osmosis"),
		TxID:      txID,
		ExpiresAt: uint64(testNow.Unix()) + 60,
		Swap: &packet.Swap{
			AssetIn:             "usdc",
			AmountIn:            uint256.NewInt(amountIn),
			AssetOut:            "atom",
			MinAmountOut:        uint256.NewInt(minOut),
			Swaps:               []types.NextSwapPair{{TokenIn: "usdc", TokenOut: "atom"}},
			CrossChainAddresses: claimants,
		},
	}
}

func claimant(addr string, chain types.ChainUID, limit *uint256.Int) types.CrossChainUserWithLimit {
	return types.CrossChainUserWithLimit{User: types.CrossChainUser{Address: addr, ChainUID: chain}, Limit: limit}
}

func TestExecutePoolCreationRegistersPool(t *testing.T) {
	h := newHub(t)
	p := packet.Packet{
		Channel:      "channel-osmosis",
		Kind:         packet.KindPoolCreation,
		Sender:       sender("osmosis"),
		TxID:         "p-1",
		ExpiresAt:    uint64(testNow.Unix()) + 60,
		PoolCreation: &packet.PoolCreation{Pair: types.Pair{Token1: "osmo", Token2: "usdc"}},
	}
	ack, err := h.deliver(context.Background(), p)
	require.NoError(t, err)
	require.True(t, ack.Success)
	require.NotEmpty(t, ack.Pool)

	pool, err := h.router.Pool(types.Pair{Token1: "usdc", Token2: "osmo"})
	require.NoError(t, err)
	require.Equal(t, ack.Pool, pool)

	st, err := h.router.State()
	require.NoError(t, err)
	require.Equal(t, uint64(2), st.PoolCount)
	require.Equal(t, uint64(2), st.ChainCount)

	// A second factory request for the same pair fails with a stable code.
	p.TxID = "p-2"
	ack, err = h.deliver(context.Background(), p)
	require.NoError(t, err)
	require.False(t, ack.Success)
	require.Equal(t, "pool_already_exists", ack.Code)
}

func TestExecuteSwapReleasesAcrossChains(t *testing.T) {
	h := newHub(t)
	_, err := h.router.DepositEscrow(hubAdmin, "atom", "ethereum", uint256.NewInt(30))
	require.NoError(t, err)
	_, err = h.router.DepositEscrow(hubAdmin, "atom", "osmosis", uint256.NewInt(100))
	require.NoError(t, err)

	p := swapPacket("s-1", 25, 40, claimant(bob, "ethereum", nil), claimant(alice, "osmosis", nil))
	ack, err := h.deliver(context.Background(), p)
	require.NoError(t, err)
	require.True(t, ack.Success, ack.Error)
	require.Equal(t, uint64(50), ack.Amount.Uint64())
	require.Len(t, ack.Releases, 2)
	require.Equal(t, uint64(30), ack.Releases[0].Amount.Uint64())
	require.Equal(t, bob, ack.Releases[0].Recipient.Address)
	require.Equal(t, uint64(20), ack.Releases[1].Amount.Uint64())
	require.Equal(t, 1, h.pools.swaps)

	balances, err := h.router.TokenEscrows("atom", types.Pagination[types.ChainUID]{})
	require.NoError(t, err)
	require.Len(t, balances, 2)
	require.Equal(t, types.ChainUID("ethereum"), balances[0].ChainUID)
	require.True(t, balances[0].Balance.IsZero())
	require.Equal(t, uint64(80), balances[1].Balance.Uint64())

	deposited, err := h.router.TokenEscrows("usdc", types.Pagination[types.ChainUID]{})
	require.NoError(t, err)
	require.Equal(t, uint64(25), deposited[0].Balance.Uint64())

	// Redelivery returns the stored ack without executing again.
	again, err := h.deliver(context.Background(), p)
	require.NoError(t, err)
	require.Equal(t, ack.Amount.Uint64(), again.Amount.Uint64())
	require.Equal(t, 1, h.pools.swaps)

	// Same tx id with different contents is a conflict.
	changed := swapPacket("s-1", 26, 40, claimant(alice, "osmosis", nil))
	err = state.Apply(h.db, func(m *state.Manager) error {
		h.router.SetState(m)
		_, err := h.router.Execute(context.Background(), changed)
		return err
	})
	require.ErrorIs(t, err, coreerrors.ErrTxAlreadyExists)
}

func TestExecuteSwapClaimantsShareChainEscrow(t *testing.T) {
	h := newHub(t)
	_, err := h.router.DepositEscrow(hubAdmin, "atom", "osmosis", uint256.NewInt(50))
	require.NoError(t, err)
	_, err = h.router.DepositEscrow(hubAdmin, "atom", "ethereum", uint256.NewInt(100))
	require.NoError(t, err)
	claimants := []types.CrossChainUserWithLimit{
		claimant(bob, "osmosis", uint256.NewInt(40)),
		claimant(alice, "osmosis", nil),
		claimant(alice, "ethereum", nil),
	}

	// The read-only simulation looks at each chain balance on its own.
	sim, err := h.router.SimulateEscrowRelease("atom", uint256.NewInt(60), claimants)
	require.NoError(t, err)
	require.Len(t, sim.Releases, 2)
	require.Equal(t, uint64(20), sim.Releases[1].Amount.Uint64())

	ack, err := h.deliver(context.Background(), swapPacket("s-1", 30, 1, claimants...))
	require.NoError(t, err)
	require.True(t, ack.Success, ack.Error)
	require.Equal(t, uint64(60), ack.Amount.Uint64())
	require.Len(t, ack.Releases, 3)
	for i, want := range []uint64{40, 10, 10} {
		require.Equal(t, want, ack.Releases[i].Amount.Uint64(), "release %d", i)
	}
	require.Equal(t, types.ChainUID("ethereum"), ack.Releases[2].Recipient.ChainUID)

	balances, err := h.router.TokenEscrows("atom", types.Pagination[types.ChainUID]{})
	require.NoError(t, err)
	require.Equal(t, uint64(90), balances[0].Balance.Uint64())
	require.True(t, balances[1].Balance.IsZero())
}

func TestExecuteSwapFailuresLeaveNoTrace(t *testing.T) {
	h := newHub(t)
	_, err := h.router.DepositEscrow(hubAdmin, "atom", "osmosis", uint256.NewInt(10))
	require.NoError(t, err)

	// Output 20 cannot be covered by 10 in escrow.
	ack, err := h.deliver(context.Background(), swapPacket("s-1", 10, 1, claimant(alice, "osmosis", nil)))
	require.NoError(t, err)
	require.False(t, ack.Success)
	require.Equal(t, "insufficient_escrow", ack.Code)

	ack, err = h.deliver(context.Background(), swapPacket("s-2", 5, 11, claimant(alice, "osmosis", nil)))
	require.NoError(t, err)
	require.Equal(t, "min_amount_out", ack.Code)

	h.pools.failNext = errors.New("pool offline")
	ack, err = h.deliver(context.Background(), swapPacket("s-3", 5, 1, claimant(alice, "osmosis", nil)))
	require.NoError(t, err)
	require.Equal(t, "pricing_failed", ack.Code)

	balance, err := h.router.TokenEscrows("atom", types.Pagination[types.ChainUID]{})
	require.NoError(t, err)
	require.Equal(t, uint64(10), balance[0].Balance.Uint64())
	tokens, err := h.router.AllTokens(types.Pagination[types.Token]{})
	require.NoError(t, err)
	require.Len(t, tokens, 1, "failed swaps must not deposit asset in")
}

func TestExecuteRejectsLockedExpiredAndForeignChannel(t *testing.T) {
	h := newHub(t)
	ctx := context.Background()

	foreign := swapPacket("s-1", 1, 1)
	foreign.Channel = "channel-ethereum"
	ack, err := h.deliver(ctx, foreign)
	require.NoError(t, err)
	require.Equal(t, "unknown_channel", ack.Code)

	expired := swapPacket("s-2", 1, 1)
	expired.ExpiresAt = uint64(testNow.Unix())
	ack, err = h.deliver(ctx, expired)
	require.NoError(t, err)
	require.Equal(t, "packet_expired", ack.Code)

	require.NoError(t, h.router.SetLocked(hubAdmin, true))
	ack, err = h.deliver(ctx, swapPacket("s-3", 1, 1))
	require.NoError(t, err)
	require.Equal(t, "hub_locked", ack.Code)
	st, err := h.router.State()
	require.NoError(t, err)
	require.True(t, st.Locked)

	unknown := swapPacket("s-4", 1, 1)
	unknown.Sender.ChainUID = "juno"
	ack, err = h.deliver(ctx, unknown)
	require.NoError(t, err)
	require.Equal(t, "chain_not_found", ack.Code)
}

func TestExecuteLiquidity(t *testing.T) {
	h := newHub(t)
	ctx := context.Background()

	add := packet.Packet{
		Channel:   "channel-osmosis",
		Kind:      packet.KindAddLiquidity,
		Sender:    sender("osmosis"),
		TxID:      "a-1",
		ExpiresAt: uint64(testNow.Unix()) + 60,
		AddLiquidity: &packet.AddLiquidity{
			Pair:              types.Pair{Token1: "usdc", Token2: "atom"},
			Token1Liquidity:   uint256.NewInt(100),
			Token2Liquidity:   uint256.NewInt(50),
			SlippageTolerance: 1,
		},
	}
	ack, err := h.deliver(ctx, add)
	require.NoError(t, err)
	require.True(t, ack.Success, ack.Error)
	require.Equal(t, uint64(7), ack.Amount.Uint64())
	// Amounts reach the pool in canonical order: atom, usdc.
	require.Equal(t, uint64(50), h.pools.added[0].Uint64())
	require.Equal(t, uint64(100), h.pools.added[1].Uint64())

	h.pools.withdrawn = Withdrawal{Token1Amount: uint256.NewInt(40), Token2Amount: uint256.NewInt(0)}
	remove := packet.Packet{
		Channel:   "channel-osmosis",
		Kind:      packet.KindRemoveLiquidity,
		Sender:    sender("osmosis"),
		TxID:      "r-1",
		ExpiresAt: uint64(testNow.Unix()) + 60,
		RemoveLiquidity: &packet.RemoveLiquidity{
			Pair:                types.Pair{Token1: "usdc", Token2: "atom"},
			LpAllocation:        uint256.NewInt(7),
			CrossChainAddresses: []types.CrossChainUserWithLimit{claimant(alice, "osmosis", nil)},
		},
	}
	ack, err = h.deliver(ctx, remove)
	require.NoError(t, err)
	require.True(t, ack.Success, ack.Error)
	require.Len(t, ack.Releases, 1)
	require.Equal(t, types.Token("atom"), ack.Releases[0].Token)
	require.Equal(t, 1, h.pools.removed)

	balance, err := h.router.SimulateEscrowRelease("atom", uint256.NewInt(100), []types.CrossChainUserWithLimit{claimant(alice, "osmosis", nil)})
	require.NoError(t, err)
	require.Equal(t, uint64(10), balance.Total().Uint64())
	require.Equal(t, uint64(90), balance.Remaining.Uint64())
}

func TestAdminRequired(t *testing.T) {
	h := newHub(t)
	require.ErrorIs(t, h.router.RegisterChain(alice, "juno", types.Chain{}), coreerrors.ErrUnauthorized)
	_, err := h.router.DepositEscrow(alice, "usdc", "osmosis", uint256.NewInt(1))
	require.ErrorIs(t, err, coreerrors.ErrUnauthorized)
	_, err = h.router.DepositEscrow(hubAdmin, "usdc", "juno", uint256.NewInt(1))
	require.ErrorIs(t, err, coreerrors.ErrChainNotFound)
	require.ErrorIs(t, h.router.SetLocked(bob, true), coreerrors.ErrUnauthorized)
}

func TestSimulateSwapThroughRouter(t *testing.T) {
	h := newHub(t)
	quote, err := h.router.SimulateSwap(context.Background(), swap.SimulateSwapRequest{
		AssetIn:  "usdc",
		AmountIn: uint256.NewInt(3),
		AssetOut: "atom",
		Route:    []types.NextSwapPair{{TokenIn: "usdc", TokenOut: "atom"}},
	})
	require.NoError(t, err)
	require.Equal(t, uint64(6), quote.AmountOut.Uint64())

	var r *Router
	_, err = r.State()
	require.ErrorIs(t, err, errNilState)
}
