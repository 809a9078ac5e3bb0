package events

import (
	"github.com/holiman/uint256"

	"crosshub/core/types"
)

const (
	TypePoolRegistered  = "router.pool_registered"
	TypeChainRegistered = "router.chain_registered"
	TypePacketExecuted  = "router.packet_executed"
	TypeEscrowDeposited = "escrow.deposited"
	TypeEscrowReleased  = "escrow.released"
)

type PoolRegistered struct {
	Pair types.Pair
	Pool types.PoolID
}

func (PoolRegistered) EventType() string { return TypePoolRegistered }

func (e PoolRegistered) Event() *types.Event {
	c := e.Pair.Canonical()
	return &types.Event{
		Type: TypePoolRegistered,
		Attributes: map[string]string{
			"token1": c.Token1.String(),
			"token2": c.Token2.String(),
			"pool":   string(e.Pool),
		},
	}
}

type ChainRegistered struct {
	ChainUID types.ChainUID
	ChainID  string
}

func (ChainRegistered) EventType() string { return TypeChainRegistered }

func (e ChainRegistered) Event() *types.Event {
	return &types.Event{
		Type: TypeChainRegistered,
		Attributes: map[string]string{
			"chainUid": e.ChainUID.String(),
			"chainId":  e.ChainID,
		},
	}
}

// PacketExecuted summarises how the hub handled an inbound request packet.
type PacketExecuted struct {
	Kind    string
	TxID    string
	Sender  types.CrossChainUser
	Success bool
	Reason  string
}

func (PacketExecuted) EventType() string { return TypePacketExecuted }

func (e PacketExecuted) Event() *types.Event {
	attrs := map[string]string{
		"kind":     e.Kind,
		"txId":     e.TxID,
		"sender":   e.Sender.Address,
		"chainUid": e.Sender.ChainUID.String(),
		"success":  boolString(e.Success),
	}
	if e.Reason != "" {
		attrs["reason"] = e.Reason
	}
	return &types.Event{Type: TypePacketExecuted, Attributes: attrs}
}

type EscrowDeposited struct {
	Token    types.Token
	ChainUID types.ChainUID
	Amount   *uint256.Int
	Balance  *uint256.Int
}

func (EscrowDeposited) EventType() string { return TypeEscrowDeposited }

func (e EscrowDeposited) Event() *types.Event {
	return &types.Event{
		Type: TypeEscrowDeposited,
		Attributes: map[string]string{
			"token":    e.Token.String(),
			"chainUid": e.ChainUID.String(),
			"amount":   amountString(e.Amount),
			"balance":  amountString(e.Balance),
		},
	}
}

type EscrowReleased struct {
	Token     types.Token
	Recipient types.CrossChainUser
	Amount    *uint256.Int
	Balance   *uint256.Int
}

func (EscrowReleased) EventType() string { return TypeEscrowReleased }

func (e EscrowReleased) Event() *types.Event {
	return &types.Event{
		Type: TypeEscrowReleased,
		Attributes: map[string]string{
			"token":     e.Token.String(),
			"chainUid":  e.Recipient.ChainUID.String(),
			"recipient": e.Recipient.Address,
			"amount":    amountString(e.Amount),
			"balance":   amountString(e.Balance),
		},
	}
}
