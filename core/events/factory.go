package events

import (
	"strings"

	"github.com/holiman/uint256"

	"crosshub/core/types"
)

const (
	// TypeFactoryTx is emitted for every accepted cross-chain request.
	TypeFactoryTx = "factory.tx"
	// TypeFactorySwap carries the swap details of an accepted swap request.
	TypeFactorySwap = "factory.swap"
	// TypeFactoryReconciled is emitted when the hub acknowledged a request.
	TypeFactoryReconciled = "factory.reconciled"
	// TypeFactoryExpired is emitted when a request timed out in transit.
	TypeFactoryExpired = "factory.expired"
	// TypeFactoryHubChannelUpdated records an admin channel change.
	TypeFactoryHubChannelUpdated = "factory.hub_channel_updated"
	// TypeFactoryDenomRegistered records an escrow allow-list addition.
	TypeFactoryDenomRegistered = "factory.denom_registered"
	// TypeFactoryDenomDeregistered records an escrow allow-list removal.
	TypeFactoryDenomDeregistered = "factory.denom_deregistered"
)

type FactoryTx struct {
	TxID   string
	Sender string
	Kind   string
}

func (FactoryTx) EventType() string { return TypeFactoryTx }

func (e FactoryTx) Event() *types.Event {
	return &types.Event{
		Type: TypeFactoryTx,
		Attributes: map[string]string{
			"txId":   strings.TrimSpace(e.TxID),
			"sender": strings.TrimSpace(e.Sender),
			"kind":   e.Kind,
		},
	}
}

type FactorySwap struct {
	TxID             string
	Sender           string
	AssetIn          types.Token
	AssetOut         types.Token
	AmountIn         *uint256.Int
	MinAmountOut     *uint256.Int
	PartnerFeeAmount *uint256.Int
	Hops             int
}

func (FactorySwap) EventType() string { return TypeFactorySwap }

func (e FactorySwap) Event() *types.Event {
	return &types.Event{
		Type: TypeFactorySwap,
		Attributes: map[string]string{
			"txId":             e.TxID,
			"sender":           e.Sender,
			"assetIn":          e.AssetIn.String(),
			"assetOut":         e.AssetOut.String(),
			"amountIn":         amountString(e.AmountIn),
			"minAmountOut":     amountString(e.MinAmountOut),
			"partnerFeeAmount": amountString(e.PartnerFeeAmount),
			"hops":             itoa(e.Hops),
		},
	}
}

// FactoryReconciled reports the hub's answer for a pending request. Status is
// "success" or "failure"; Reason carries the hub error on failure. Entry is
// the JSON encoding of the removed pending entry.
type FactoryReconciled struct {
	TxID     string
	Sender   string
	Kind     string
	Status   string
	Reason   string
	Pool     types.PoolID
	Releases int
	Entry    string
}

func (FactoryReconciled) EventType() string { return TypeFactoryReconciled }

func (e FactoryReconciled) Event() *types.Event {
	attrs := map[string]string{
		"txId":   e.TxID,
		"sender": e.Sender,
		"kind":   e.Kind,
		"status": e.Status,
		"entry":  e.Entry,
	}
	if e.Reason != "" {
		attrs["reason"] = e.Reason
	}
	if e.Pool != "" {
		attrs["vlp"] = string(e.Pool)
	}
	if e.Releases > 0 {
		attrs["releases"] = itoa(e.Releases)
	}
	return &types.Event{Type: TypeFactoryReconciled, Attributes: attrs}
}

type FactoryExpired struct {
	TxID   string
	Sender string
	Kind   string
	Entry  string
}

func (FactoryExpired) EventType() string { return TypeFactoryExpired }

func (e FactoryExpired) Event() *types.Event {
	return &types.Event{
		Type: TypeFactoryExpired,
		Attributes: map[string]string{
			"txId":   e.TxID,
			"sender": e.Sender,
			"kind":   e.Kind,
			"entry":  e.Entry,
		},
	}
}

type FactoryHubChannelUpdated struct {
	OldChannel string
	NewChannel string
}

func (FactoryHubChannelUpdated) EventType() string { return TypeFactoryHubChannelUpdated }

func (e FactoryHubChannelUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeFactoryHubChannelUpdated,
		Attributes: map[string]string{
			"oldChannel": e.OldChannel,
			"newChannel": e.NewChannel,
		},
	}
}

// FactoryDenom records an allow-list change. Registered distinguishes the
// addition from the removal.
type FactoryDenom struct {
	Token      types.Token
	Denom      types.TokenType
	Registered bool
}

func (e FactoryDenom) EventType() string {
	if e.Registered {
		return TypeFactoryDenomRegistered
	}
	return TypeFactoryDenomDeregistered
}

func (e FactoryDenom) Event() *types.Event {
	return &types.Event{
		Type: e.EventType(),
		Attributes: map[string]string{
			"token": e.Token.String(),
			"denom": e.Denom.Key(),
		},
	}
}
