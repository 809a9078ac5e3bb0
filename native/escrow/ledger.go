package escrow

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"

	coreerrors "crosshub/core/errors"
	"crosshub/core/events"
	"crosshub/core/types"
)

var errNilState = errors.New("escrow ledger: state not configured")

// Storage is the subset of the state manager used by the ledger.
type Storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVPage(prefix, lower, upper []byte, skip, limit uint32, fn func(suffix, value []byte) error) error
}

// ChainBalance is the custodied balance of a token on one chain.
type ChainBalance struct {
	ChainUID types.ChainUID `json:"chain_uid"`
	Balance  *uint256.Int   `json:"balance"`
}

// TokenChain marks the presence of an escrow entry for a token on a chain.
type TokenChain struct {
	Token    types.Token    `json:"token"`
	ChainUID types.ChainUID `json:"chain_uid"`
}

// Ledger tracks custodied balances per (token, chain). A missing entry reads
// as zero; entries are created on first deposit and kept when drained.
type Ledger struct {
	store   Storage
	emitter events.Emitter
}

// NewLedger returns a ledger over store.
func NewLedger(store Storage) *Ledger {
	return &Ledger{store: store, emitter: events.NoopEmitter{}}
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (l *Ledger) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		l.emitter = events.NoopEmitter{}
		return
	}
	l.emitter = emitter
}

// Balance returns the custodied amount of token on chain.
func (l *Ledger) Balance(token types.Token, chain types.ChainUID) (*uint256.Int, error) {
	if l == nil || l.store == nil {
		return nil, errNilState
	}
	balance := new(uint256.Int)
	if _, err := l.store.KVGet(balanceKey(token, chain), balance); err != nil {
		return nil, err
	}
	return balance, nil
}

// Deposit credits amount and returns the new balance.
func (l *Ledger) Deposit(token types.Token, chain types.ChainUID, amount *uint256.Int) (*uint256.Int, error) {
	if err := validateEntry(token, chain); err != nil {
		return nil, err
	}
	if types.IsZero(amount) {
		return nil, coreerrors.ErrZeroAmount
	}
	current, err := l.Balance(token, chain)
	if err != nil {
		return nil, err
	}
	next, err := types.CheckedAdd(current, amount)
	if err != nil {
		return nil, fmt.Errorf("escrow %s on %s: %w", token, chain, err)
	}
	if err := l.store.KVPut(balanceKey(token, chain), next); err != nil {
		return nil, err
	}
	l.emitter.Emit(events.EscrowDeposited{Token: token, ChainUID: chain, Amount: types.CloneAmount(amount), Balance: types.CloneAmount(next)})
	return next, nil
}

// Withdraw debits amount and returns the new balance. Debiting more than the
// balance fails with ErrInsufficientEscrow and leaves the entry untouched.
func (l *Ledger) Withdraw(token types.Token, chain types.ChainUID, amount *uint256.Int) (*uint256.Int, error) {
	if err := validateEntry(token, chain); err != nil {
		return nil, err
	}
	current, err := l.Balance(token, chain)
	if err != nil {
		return nil, err
	}
	next, err := types.CheckedSub(current, amount)
	if err != nil {
		return nil, fmt.Errorf("%w: %s on %s has %s, need %s", coreerrors.ErrInsufficientEscrow, token, chain, current.Dec(), types.CloneAmount(amount).Dec())
	}
	if err := l.store.KVPut(balanceKey(token, chain), next); err != nil {
		return nil, err
	}
	return next, nil
}

// TokenEscrows lists the balances of token ascending by chain uid.
func (l *Ledger) TokenEscrows(token types.Token, page types.Pagination[types.ChainUID]) ([]ChainBalance, error) {
	if l == nil || l.store == nil {
		return nil, errNilState
	}
	if err := token.Validate(); err != nil {
		return nil, err
	}
	var lower, upper []byte
	if page.Min != nil {
		lower = []byte(*page.Min)
	}
	if page.Max != nil {
		upper = []byte(*page.Max)
	}
	out := make([]ChainBalance, 0)
	err := l.store.KVPage(tokenPrefix(token), lower, upper, page.Skip, page.PageLimit(), func(suffix, value []byte) error {
		balance := new(uint256.Int)
		if err := rlp.DecodeBytes(value, balance); err != nil {
			return err
		}
		out = append(out, ChainBalance{ChainUID: types.ChainUID(suffix), Balance: balance})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Tokens lists every (token, chain) escrow entry ascending. Min and Max bound
// the token component: Min inclusive, Max exclusive.
func (l *Ledger) Tokens(page types.Pagination[types.Token]) ([]TokenChain, error) {
	if l == nil || l.store == nil {
		return nil, errNilState
	}
	var lower, upper []byte
	if page.Min != nil {
		lower = []byte(*page.Min)
	}
	if page.Max != nil {
		upper = []byte(*page.Max)
	}
	out := make([]TokenChain, 0)
	err := l.store.KVPage(balancePrefix, lower, upper, page.Skip, page.PageLimit(), func(suffix, _ []byte) error {
		token, chain, ok := splitBalanceKey(suffix)
		if !ok {
			return fmt.Errorf("escrow ledger: malformed balance key %x", suffix)
		}
		out = append(out, TokenChain{Token: token, ChainUID: chain})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ReleaseAllocation computes how amount of token would be paid out across
// claimants without touching balances.
func (l *Ledger) ReleaseAllocation(token types.Token, amount *uint256.Int, claimants []types.CrossChainUserWithLimit) (Allocation, error) {
	if l == nil || l.store == nil {
		return Allocation{}, errNilState
	}
	return Allocate(l, token, amount, claimants)
}

// SettlementAllocation computes a release that CommitRelease can apply:
// claimants on the same chain draw from one shared balance.
func (l *Ledger) SettlementAllocation(token types.Token, amount *uint256.Int, claimants []types.CrossChainUserWithLimit) (Allocation, error) {
	if l == nil || l.store == nil {
		return Allocation{}, errNilState
	}
	return AllocateDrawdown(l, token, amount, claimants)
}

// CommitRelease debits every release of alloc. Callers run it inside an
// atomic step; a failing debit aborts the whole release.
func (l *Ledger) CommitRelease(token types.Token, alloc Allocation) error {
	for _, release := range alloc.Releases {
		balance, err := l.Withdraw(token, release.Claimant.User.ChainUID, release.Amount)
		if err != nil {
			return err
		}
		l.emitter.Emit(events.EscrowReleased{
			Token:     token,
			Recipient: release.Claimant.User,
			Amount:    types.CloneAmount(release.Amount),
			Balance:   balance,
		})
	}
	return nil
}

func validateEntry(token types.Token, chain types.ChainUID) error {
	if err := token.Validate(); err != nil {
		return err
	}
	return chain.Validate()
}
