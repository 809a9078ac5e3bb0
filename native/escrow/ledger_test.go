package escrow

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	coreerrors "crosshub/core/errors"
	"crosshub/core/state"
	"crosshub/core/types"
	"crosshub/storage"
)

func newTestLedger(t *testing.T) (*Ledger, storage.Database) {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(func() { db.Close() })
	return NewLedger(state.NewManager(db)), db
}

func claimant(chain types.ChainUID, limit *uint256.Int) types.CrossChainUserWithLimit {
	return types.CrossChainUserWithLimit{
		User:  types.CrossChainUser{Address: "0x00000000000000000000000000000000000000a1", ChainUID: chain},
		Limit: limit,
	}
}

func deposit(t *testing.T, l *Ledger, token types.Token, chain types.ChainUID, amount uint64) {
	t.Helper()
	_, err := l.Deposit(token, chain, uint256.NewInt(amount))
	require.NoError(t, err)
}

func TestBalanceMissingIsZero(t *testing.T) {
	l, _ := newTestLedger(t)
	balance, err := l.Balance("usdc", "osmosis")
	require.NoError(t, err)
	require.True(t, balance.IsZero())
}

func TestDepositAndWithdraw(t *testing.T) {
	l, _ := newTestLedger(t)
	deposit(t, l, "usdc", "osmosis", 50)
	deposit(t, l, "usdc", "osmosis", 25)

	balance, err := l.Withdraw("usdc", "osmosis", uint256.NewInt(70))
	require.NoError(t, err)
	require.Equal(t, uint64(5), balance.Uint64())

	_, err = l.Withdraw("usdc", "osmosis", uint256.NewInt(6))
	require.ErrorIs(t, err, coreerrors.ErrInsufficientEscrow)
	require.Equal(t, coreerrors.KindArithmetic, coreerrors.KindOf(err))

	balance, err = l.Balance("usdc", "osmosis")
	require.NoError(t, err)
	require.Equal(t, uint64(5), balance.Uint64())

	_, err = l.Deposit("usdc", "osmosis", uint256.NewInt(0))
	require.ErrorIs(t, err, coreerrors.ErrZeroAmount)
}

func TestDepositOverflow(t *testing.T) {
	l, _ := newTestLedger(t)
	_, err := l.Deposit("usdc", "osmosis", new(uint256.Int).SetAllOne())
	require.NoError(t, err)
	_, err = l.Deposit("usdc", "osmosis", uint256.NewInt(1))
	require.ErrorIs(t, err, coreerrors.ErrOverflow)
}

func TestReleaseAllocationGreedyWithLimits(t *testing.T) {
	l, _ := newTestLedger(t)
	deposit(t, l, "usdc", "chaina", 50)
	deposit(t, l, "usdc", "chainb", 30)

	alloc, err := l.ReleaseAllocation("usdc", uint256.NewInt(100), []types.CrossChainUserWithLimit{
		claimant("chaina", nil),
		claimant("chainb", uint256.NewInt(20)),
	})
	require.NoError(t, err)
	require.Equal(t, uint64(30), alloc.Remaining.Uint64())
	require.Len(t, alloc.Releases, 2)
	require.Equal(t, uint64(50), alloc.Releases[0].Amount.Uint64())
	require.Equal(t, types.ChainUID("chaina"), alloc.Releases[0].Claimant.User.ChainUID)
	require.Equal(t, uint64(20), alloc.Releases[1].Amount.Uint64())
	require.Equal(t, types.ChainUID("chainb"), alloc.Releases[1].Claimant.User.ChainUID)

	// Allocation never touches balances.
	balance, err := l.Balance("usdc", "chaina")
	require.NoError(t, err)
	require.Equal(t, uint64(50), balance.Uint64())
}

func TestReleaseAllocationSkipsZeroTakes(t *testing.T) {
	l, _ := newTestLedger(t)
	deposit(t, l, "usdc", "chaina", 10)

	alloc, err := l.ReleaseAllocation("usdc", uint256.NewInt(5), []types.CrossChainUserWithLimit{
		claimant("chainz", nil),
		claimant("chaina", uint256.NewInt(0)),
		claimant("chaina", nil),
		claimant("chaina", nil),
	})
	require.NoError(t, err)
	require.True(t, alloc.Remaining.IsZero())
	require.Len(t, alloc.Releases, 1)
	require.Equal(t, uint64(5), alloc.Releases[0].Amount.Uint64())
}

func TestSettlementAllocationSharesChainBalance(t *testing.T) {
	l, _ := newTestLedger(t)
	deposit(t, l, "atom", "osmosis", 50)
	deposit(t, l, "atom", "ethereum", 100)
	claimants := []types.CrossChainUserWithLimit{
		claimant("osmosis", uint256.NewInt(40)),
		claimant("osmosis", nil),
		claimant("ethereum", nil),
	}

	alloc, err := l.SettlementAllocation("atom", uint256.NewInt(60), claimants)
	require.NoError(t, err)
	require.True(t, alloc.Remaining.IsZero())
	require.Len(t, alloc.Releases, 3)
	require.Equal(t, uint64(40), alloc.Releases[0].Amount.Uint64())
	require.Equal(t, uint64(10), alloc.Releases[1].Amount.Uint64())
	require.Equal(t, uint64(10), alloc.Releases[2].Amount.Uint64())

	require.NoError(t, l.CommitRelease("atom", alloc))
	balance, err := l.Balance("atom", "osmosis")
	require.NoError(t, err)
	require.True(t, balance.IsZero())
	balance, err = l.Balance("atom", "ethereum")
	require.NoError(t, err)
	require.Equal(t, uint64(90), balance.Uint64())

	// The plain allocation counts the osmosis balance once per claimant.
	deposit(t, l, "atom", "osmosis", 50)
	read, err := l.ReleaseAllocation("atom", uint256.NewInt(60), claimants)
	require.NoError(t, err)
	require.Len(t, read.Releases, 2)
	require.Equal(t, uint64(20), read.Releases[1].Amount.Uint64())
}

func TestReleaseAllocationConservation(t *testing.T) {
	l, _ := newTestLedger(t)
	deposit(t, l, "eth", "chaina", 7)
	deposit(t, l, "eth", "chainb", 13)
	deposit(t, l, "eth", "chainc", 3)

	claimants := []types.CrossChainUserWithLimit{
		claimant("chainc", nil),
		claimant("chaina", uint256.NewInt(4)),
		claimant("chainb", nil),
	}
	for _, amount := range []uint64{0, 1, 5, 20, 23, 100} {
		alloc, err := l.ReleaseAllocation("eth", uint256.NewInt(amount), claimants)
		require.NoError(t, err)
		total := new(uint256.Int).Add(alloc.Total(), alloc.Remaining)
		require.Equal(t, amount, total.Uint64(), "amount %d", amount)
		for _, r := range alloc.Releases {
			require.False(t, r.Amount.IsZero())
			balance, err := l.Balance("eth", r.Claimant.User.ChainUID)
			require.NoError(t, err)
			require.False(t, r.Amount.Gt(balance))
			if r.Claimant.Limit != nil {
				require.False(t, r.Amount.Gt(r.Claimant.Limit))
			}
		}
	}
}

func TestReleaseAllocationOrderSensitivity(t *testing.T) {
	l, _ := newTestLedger(t)
	deposit(t, l, "eth", "chaina", 10)
	deposit(t, l, "eth", "chainb", 10)

	forward, err := l.ReleaseAllocation("eth", uint256.NewInt(15), []types.CrossChainUserWithLimit{claimant("chaina", nil), claimant("chainb", nil)})
	require.NoError(t, err)
	backward, err := l.ReleaseAllocation("eth", uint256.NewInt(15), []types.CrossChainUserWithLimit{claimant("chainb", nil), claimant("chaina", nil)})
	require.NoError(t, err)

	require.Equal(t, uint64(10), forward.Releases[0].Amount.Uint64())
	require.Equal(t, types.ChainUID("chaina"), forward.Releases[0].Claimant.User.ChainUID)
	require.Equal(t, uint64(10), backward.Releases[0].Amount.Uint64())
	require.Equal(t, types.ChainUID("chainb"), backward.Releases[0].Claimant.User.ChainUID)
	require.Equal(t, forward.Total().Uint64(), backward.Total().Uint64())
	require.True(t, forward.Remaining.IsZero())
}

func TestCommitReleaseIsAtomic(t *testing.T) {
	l, db := newTestLedger(t)
	deposit(t, l, "eth", "chaina", 10)
	deposit(t, l, "eth", "chainb", 5)

	// Both claimants read chainb's balance, so the second debit overdraws.
	alloc, err := l.ReleaseAllocation("eth", uint256.NewInt(10), []types.CrossChainUserWithLimit{claimant("chainb", nil), claimant("chainb", nil)})
	require.NoError(t, err)
	require.Len(t, alloc.Releases, 2)

	err = state.Apply(db, func(m *state.Manager) error {
		return NewLedger(m).CommitRelease("eth", alloc)
	})
	require.True(t, errors.Is(err, coreerrors.ErrInsufficientEscrow))

	balance, err := l.Balance("eth", "chainb")
	require.NoError(t, err)
	require.Equal(t, uint64(5), balance.Uint64())
}

func TestTokenEscrowsAndTokens(t *testing.T) {
	l, _ := newTestLedger(t)
	deposit(t, l, "usdc", "osmosis", 1)
	deposit(t, l, "usdc", "ethereum", 2)
	deposit(t, l, "usdc", "nibiru", 3)
	deposit(t, l, "usd", "osmosis", 4)
	deposit(t, l, "atom", "osmosis", 5)

	chains, err := l.TokenEscrows("usdc", types.Pagination[types.ChainUID]{})
	require.NoError(t, err)
	require.Len(t, chains, 3)
	require.Equal(t, types.ChainUID("ethereum"), chains[0].ChainUID)
	require.Equal(t, uint64(2), chains[0].Balance.Uint64())
	require.Equal(t, types.ChainUID("osmosis"), chains[2].ChainUID)

	lower := types.ChainUID("f")
	chains, err = l.TokenEscrows("usdc", types.Pagination[types.ChainUID]{Min: &lower, Limit: 1})
	require.NoError(t, err)
	require.Len(t, chains, 1)
	require.Equal(t, types.ChainUID("nibiru"), chains[0].ChainUID)

	all, err := l.Tokens(types.Pagination[types.Token]{})
	require.NoError(t, err)
	require.Equal(t, []TokenChain{
		{Token: "atom", ChainUID: "osmosis"},
		{Token: "usd", ChainUID: "osmosis"},
		{Token: "usdc", ChainUID: "ethereum"},
		{Token: "usdc", ChainUID: "nibiru"},
		{Token: "usdc", ChainUID: "osmosis"},
	}, all)

	minTok, maxTok := types.Token("usd"), types.Token("usdc")
	window, err := l.Tokens(types.Pagination[types.Token]{Min: &minTok, Max: &maxTok})
	require.NoError(t, err)
	require.Equal(t, []TokenChain{{Token: "usd", ChainUID: "osmosis"}}, window)
}
