package types

import (
	"github.com/holiman/uint256"
)

// CrossChainUser is an address qualified by the chain it lives on.
type CrossChainUser struct {
	Address  string   `json:"address"`
	ChainUID ChainUID `json:"chain_uid"`
}

// Validate checks the chain uid and the address format.
func (u CrossChainUser) Validate() error {
	if err := u.ChainUID.Validate(); err != nil {
		return err
	}
	return ValidateAddress(u.Address)
}

// CrossChainUserWithLimit is a release claimant. A nil Limit means the
// claimant accepts any amount.
type CrossChainUserWithLimit struct {
	User  CrossChainUser `json:"user"`
	Limit *uint256.Int   `json:"limit,omitempty" rlp:"nil"`
}
