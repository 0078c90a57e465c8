package settlement

import "errors"

// Kind classifies why an engine call was rejected.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindState
	KindArithmetic
	KindCustody
	KindAuthorization
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindState:
		return "state"
	case KindArithmetic:
		return "arithmetic"
	case KindCustody:
		return "custody"
	case KindAuthorization:
		return "authorization"
	case KindNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Error is a rejection raised by the settlement engine. Values are compared by
// identity, so callers use errors.Is against the sentinels below.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// KindOf returns the kind of a settlement error anywhere in err's chain.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindUnknown
}

// CodeOf returns the stable code of a settlement error, or "internal".
func CodeOf(err error) string {
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return "internal"
}

// Validation
var (
	ErrInvalidTitleLength = newError(KindValidation, "invalid_title_length", "invalid title length")
	ErrInvalidCategory    = newError(KindValidation, "invalid_category", "invalid category")
	ErrInvalidBetEndTime  = newError(KindValidation, "invalid_bet_end_time", "invalid bet end time")
	ErrInvalidTimeOrder   = newError(KindValidation, "invalid_time_order", "invalid time order")
	ErrInvalidThreshold   = newError(KindValidation, "invalid_threshold", "consensus threshold must be between 1 and 10000 bps")
	ErrInvalidAmount      = newError(KindValidation, "invalid_amount", "invalid amount")
	ErrInvalidSide        = newError(KindValidation, "invalid_side", "invalid side")
	ErrInvalidAddress     = newError(KindValidation, "invalid_address", "invalid address")
	ErrNotWinningMint     = newError(KindValidation, "not_winning_token", "not winning token")
	ErrQuestionMismatch   = newError(KindValidation, "question_mismatch", "oracle question does not match event")
	ErrInsufficientTokens = newError(KindValidation, "insufficient_tokens", "insufficient token balance")
	ErrOracleNotLinked    = newError(KindValidation, "oracle_not_linked", "event has no linked oracle question")
	ErrDepositNotVerified = newError(KindValidation, "deposit_not_verified", "deposit transaction could not be verified")
)

// Precondition / state
var (
	ErrBettingEnded        = newError(KindState, "betting_ended", "betting period has ended")
	ErrBettingStillActive  = newError(KindState, "betting_still_active", "betting period is still active")
	ErrAlreadyResolved     = newError(KindState, "already_resolved", "event already resolved")
	ErrNotResolved         = newError(KindState, "not_resolved", "event not resolved")
	ErrNotWinnerOutcome    = newError(KindState, "not_winner_outcome", "event did not resolve to a winner")
	ErrWinnerOutcome       = newError(KindState, "winner_outcome", "event resolved to a winner")
	ErrAlreadySwept        = newError(KindState, "already_swept", "unclaimed value already swept")
	ErrSweepTooEarly       = newError(KindState, "sweep_too_early", "sweep delay has not elapsed")
	ErrRevealNotEnded      = newError(KindState, "reveal_not_ended", "oracle reveal window has not closed")
	ErrNotBootstrapped     = newError(KindState, "not_bootstrapped", "event vault and mints are not bootstrapped")
	ErrPendingCommissions  = newError(KindState, "pending_commissions", "commissions must be claimed first")
	ErrOutstandingTokens   = newError(KindState, "outstanding_tokens", "claim tokens are still outstanding")
	ErrVaultNotEmpty       = newError(KindState, "vault_not_empty", "vault holds value above the keep-alive reserve")
	ErrNothingToClaim      = newError(KindState, "nothing_to_claim", "nothing to claim")
	ErrOracleNotReady      = newError(KindState, "oracle_not_ready", "oracle has not finalized its vote")
	ErrAlreadyBootstrapped = newError(KindState, "already_bootstrapped", "event already bootstrapped with different addresses")
	ErrConcurrentUpdate    = newError(KindState, "concurrent_modification", "record changed concurrently, retry")
	ErrDepositCredited     = newError(KindState, "deposit_already_credited", "deposit already credited to another wallet")
)

// Arithmetic
var (
	ErrMathOverflow = newError(KindArithmetic, "math_overflow", "math overflow")
)

// Custody
var (
	ErrInsufficientVaultBalance = newError(KindCustody, "insufficient_vault_balance", "vault balance would fall below keep-alive reserve")
	ErrInsufficientFunds        = newError(KindCustody, "insufficient_funds", "insufficient funds")
)

// Authorization
var (
	ErrUnauthorized      = newError(KindAuthorization, "unauthorized", "caller is not the event creator")
	ErrVaultMismatch     = newError(KindAuthorization, "vault_mismatch", "oracle payout vault mismatch")
	ErrAuthorityMismatch = newError(KindAuthorization, "authority_mismatch", "authority is not valid for this account")
)

// Not found
var (
	ErrEventNotFound    = newError(KindNotFound, "event_not_found", "event not found")
	ErrCounterNotFound  = newError(KindNotFound, "counter_not_found", "event counter not found")
	ErrQuestionNotFound = newError(KindNotFound, "question_not_found", "oracle question not found")
	ErrAccountNotFound  = newError(KindNotFound, "account_not_found", "account not found")
)
