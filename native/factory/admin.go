package factory

import (
	"fmt"
	"strings"

	coreerrors "crosshub/core/errors"
	"crosshub/core/events"
	"crosshub/core/types"
)

func (e *Engine) requireAdmin(caller string) error {
	if err := e.ready(); err != nil {
		return err
	}
	if strings.TrimSpace(caller) == "" || caller != e.cfg.Admin {
		return fmt.Errorf("%w: %s is not the factory admin", coreerrors.ErrUnauthorized, caller)
	}
	return nil
}

// UpdateHubChannel sets the channel packets are sent on.
func (e *Engine) UpdateHubChannel(caller, channel string) error {
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	channel = strings.TrimSpace(channel)
	if channel == "" {
		return fmt.Errorf("factory: hub channel must not be empty")
	}
	var old string
	if _, err := e.state.KVGet(hubChannelKey, &old); err != nil {
		return err
	}
	if err := e.state.KVPut(hubChannelKey, channel); err != nil {
		return err
	}
	e.emitter.Emit(events.FactoryHubChannelUpdated{OldChannel: old, NewChannel: channel})
	return nil
}

// RegisterEscrow records the escrow address custodying token on this chain.
func (e *Engine) RegisterEscrow(caller string, token types.Token, escrow string) error {
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if err := token.Validate(); err != nil {
		return err
	}
	if err := types.ValidateAddress(escrow); err != nil {
		return err
	}
	return e.state.KVPut(escrowKey(token), strings.TrimSpace(escrow))
}

// RegisterDenom adds denom to the allow-list of token's escrow.
func (e *Engine) RegisterDenom(caller string, token types.Token, denom types.TokenType) error {
	return e.setDenom(caller, token, denom, true)
}

// DeregisterDenom removes denom from the allow-list of token's escrow.
func (e *Engine) DeregisterDenom(caller string, token types.Token, denom types.TokenType) error {
	return e.setDenom(caller, token, denom, false)
}

func (e *Engine) setDenom(caller string, token types.Token, denom types.TokenType, allowed bool) error {
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if err := token.Validate(); err != nil {
		return err
	}
	if err := denom.Validate(); err != nil {
		return err
	}
	if _, err := e.EscrowOf(token); err != nil {
		return err
	}
	key := denomKey(token, denom)
	var err error
	if allowed {
		err = e.state.KVPut(key, denom)
	} else {
		err = e.state.KVDelete(key)
	}
	if err != nil {
		return err
	}
	e.emitter.Emit(events.FactoryDenom{Token: token, Denom: denom, Registered: allowed})
	return nil
}

// SetPaused toggles the pause flag of module.
func (e *Engine) SetPaused(caller, module string, paused bool) error {
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	module = strings.TrimSpace(module)
	if module == "" {
		return fmt.Errorf("factory: module must not be empty")
	}
	if !paused {
		return e.state.KVDelete(pausedKey(module))
	}
	return e.state.KVPut(pausedKey(module), true)
}
