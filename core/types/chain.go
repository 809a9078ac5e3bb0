package types

import (
	"fmt"

	coreerrors "crosshub/core/errors"
)

const maxChainUIDLength = 32

// ChainUID is the hub-wide identifier of a connected chain.
type ChainUID string

// Validate enforces 1 to 32 characters from [a-z0-9_].
func (c ChainUID) Validate() error {
	if len(c) == 0 || len(c) > maxChainUIDLength {
		return fmt.Errorf("%w: %q", coreerrors.ErrInvalidChainUID, string(c))
	}
	for _, r := range string(c) {
		if !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9') && r != '_' {
			return fmt.Errorf("%w: %q", coreerrors.ErrInvalidChainUID, string(c))
		}
	}
	return nil
}

func (c ChainUID) String() string { return string(c) }

// Chain is the metadata the hub keeps for a connected chain.
type Chain struct {
	ChainID            string `json:"chain_id"`
	FactoryChainID     string `json:"factory_chain_id"`
	Factory            string `json:"factory"`
	FromHubChannel     string `json:"from_hub_channel"`
	FromFactoryChannel string `json:"from_factory_channel"`
}
