package errors

import stderrors "errors"

// Kind classifies a failure so callers can react without matching on
// individual errors.
type Kind uint8

const (
	KindUnknown Kind = iota
	// KindConflict marks an idempotency or uniqueness violation.
	KindConflict
	// KindNotFound marks a missing registry, escrow, channel or pending entry.
	KindNotFound
	// KindValidation marks malformed or out-of-range input.
	KindValidation
	// KindArithmetic marks a checked overflow or underflow.
	KindArithmetic
	// KindExternal marks a collaborator failure or an inconsistent
	// collaborator response.
	KindExternal
)

func (k Kind) String() string {
	switch k {
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation"
	case KindArithmetic:
		return "arithmetic"
	case KindExternal:
		return "external"
	default:
		return "unknown"
	}
}

// Error is a classified failure with a stable machine-readable code.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

// New constructs a classified error.
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func (e *Error) Error() string { return e.Message }

// Is matches any *Error carrying the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t == nil {
		return false
	}
	return t.Code == e.Code
}

// KindOf returns the kind of the first classified error in err's chain.
func KindOf(err error) Kind {
	var classified *Error
	if stderrors.As(err, &classified) {
		return classified.Kind
	}
	return KindUnknown
}

// CodeOf returns the code of the first classified error in err's chain, or
// "internal" when the chain carries none.
func CodeOf(err error) string {
	var classified *Error
	if stderrors.As(err, &classified) {
		return classified.Code
	}
	return "internal"
}

// Is forwards to the standard library so callers importing this package
// under its short name keep errors.Is available.
func Is(err, target error) bool { return stderrors.Is(err, target) }

// As forwards to the standard library.
func As(err error, target any) bool { return stderrors.As(err, target) }

var (
	ErrTxAlreadyExists   = New(KindConflict, "tx_already_exists", "tx already exists")
	ErrPoolAlreadyExists = New(KindConflict, "pool_already_exists", "pool already exists")
	ErrPoolIDInUse       = New(KindConflict, "pool_id_in_use", "pool id already serves another pair")

	ErrPairNotFound     = New(KindNotFound, "pair_not_found", "pool doesn't exist")
	ErrChainNotFound    = New(KindNotFound, "chain_not_found", "chain not registered")
	ErrUnregisteredPool = New(KindNotFound, "unregistered_pool", "swap route hop has no registered pool")
	ErrEscrowNotFound   = New(KindNotFound, "escrow_not_found", "escrow does not exist")
	ErrHubChannelNotSet = New(KindNotFound, "hub_channel_not_set", "hub channel not configured")
	ErrPendingNotFound  = New(KindNotFound, "pending_not_found", "pending request not found")

	ErrEmptyRoute          = New(KindValidation, "empty_route", "empty swap not allowed")
	ErrAssetInMismatch     = New(KindValidation, "asset_in_mismatch", "asset in doesn't match swap route")
	ErrAssetOutMismatch    = New(KindValidation, "asset_out_mismatch", "asset out doesn't match swap route")
	ErrInvalidSlippage     = New(KindValidation, "invalid_slippage", "slippage tolerance must be between 1 and 100")
	ErrZeroAmount          = New(KindValidation, "zero_amount", "asset amount must be greater than zero")
	ErrUnsupportedDenom    = New(KindValidation, "unsupported_denomination", "denomination not allowed by escrow")
	ErrInsufficientDeposit = New(KindValidation, "insufficient_deposit", "attached funds are less than funds needed")
	ErrInvalidPartnerFee   = New(KindValidation, "invalid_partner_fee", "invalid partner fee")
	ErrInvalidTimeout      = New(KindValidation, "invalid_timeout", "timeout out of range")
	ErrInvalidToken        = New(KindValidation, "invalid_token", "invalid token")
	ErrInvalidPair         = New(KindValidation, "invalid_pair", "invalid pair")
	ErrInvalidChainUID     = New(KindValidation, "invalid_chain_uid", "invalid chain uid")
	ErrInvalidAddress      = New(KindValidation, "invalid_address", "invalid address")
	ErrInvalidTxID         = New(KindValidation, "invalid_tx_id", "invalid tx id")
	ErrUnauthorized        = New(KindValidation, "unauthorized", "unauthorized")
	ErrMinAmountOut        = New(KindValidation, "min_amount_out", "swap output below minimum amount out")
	ErrHubLocked           = New(KindValidation, "hub_locked", "hub is locked")
	ErrPacketExpired       = New(KindValidation, "packet_expired", "packet timed out before execution")
	ErrUnknownChannel      = New(KindValidation, "unknown_channel", "packet arrived on an unexpected channel")

	ErrOverflow           = New(KindArithmetic, "overflow", "arithmetic overflow")
	ErrUnderflow          = New(KindArithmetic, "underflow", "arithmetic underflow")
	ErrInsufficientEscrow = New(KindArithmetic, "insufficient_escrow", "release exceeds escrow balance")

	ErrSwapOutputMismatch = New(KindExternal, "swap_output_mismatch", "asset out doesn't match after swap")
	ErrPricing            = New(KindExternal, "pricing_failed", "pool pricing failed")
	ErrTransport          = New(KindExternal, "transport_failed", "packet dispatch failed")
)
