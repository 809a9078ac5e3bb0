package types

import (
	"fmt"
	"sort"

	"github.com/holiman/uint256"

	coreerrors "crosshub/core/errors"
)

// MaxPartnerFeeBps caps the integrator fee at 0.3%.
const MaxPartnerFeeBps uint64 = 30

// PartnerFee is an optional integrator fee deducted from a swap input.
type PartnerFee struct {
	PartnerFeeBps uint64 `json:"partner_fee_bps"`
	Recipient     string `json:"recipient"`
}

// Validate checks the cap and the recipient address.
func (f *PartnerFee) Validate() error {
	if f == nil {
		return nil
	}
	if f.PartnerFeeBps > MaxPartnerFeeBps {
		return fmt.Errorf("%w: %d bps exceeds %d", coreerrors.ErrInvalidPartnerFee, f.PartnerFeeBps, MaxPartnerFeeBps)
	}
	return ValidateAddress(f.Recipient)
}

// DenomFees accumulates fee totals per denomination.
type DenomFees struct {
	Totals map[string]*uint256.Int `json:"totals"`
}

// Get returns the total for denom, zero when absent.
func (d DenomFees) Get(denom string) *uint256.Int {
	if v, ok := d.Totals[denom]; ok && v != nil {
		return new(uint256.Int).Set(v)
	}
	return new(uint256.Int)
}

// Add increases the total for denom.
func (d *DenomFees) Add(denom string, amount *uint256.Int) error {
	if d.Totals == nil {
		d.Totals = make(map[string]*uint256.Int)
	}
	next, err := CheckedAdd(d.Get(denom), amount)
	if err != nil {
		return err
	}
	d.Totals[denom] = next
	return nil
}

// DenomFeeEntry is the storage form of one DenomFees total.
type DenomFeeEntry struct {
	Denom  string
	Amount *uint256.Int
}

// Entries returns the totals sorted by denomination.
func (d DenomFees) Entries() []DenomFeeEntry {
	out := make([]DenomFeeEntry, 0, len(d.Totals))
	for denom, amount := range d.Totals {
		out = append(out, DenomFeeEntry{Denom: denom, Amount: CloneAmount(amount)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Denom < out[j].Denom })
	return out
}

// DenomFeesFromEntries rebuilds a DenomFees from its storage form.
func DenomFeesFromEntries(entries []DenomFeeEntry) DenomFees {
	fees := DenomFees{Totals: make(map[string]*uint256.Int, len(entries))}
	for _, e := range entries {
		fees.Totals[e.Denom] = CloneAmount(e.Amount)
	}
	return fees
}
