package balance

import "errors"

// Service errors
var (
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrBelowMinimum         = errors.New("amount below minimum withdrawal")
	ErrMissingPayoutDetails = errors.New("no payout details on file")
	ErrInsufficientBalance  = errors.New("insufficient available balance")
	ErrInvalidTransition    = errors.New("invalid status transition")

	// ErrConcurrencyConflict means an optimistic status check lost a race
	// with a concurrent transition. Callers retry up to a small bound.
	ErrConcurrencyConflict = errors.New("concurrent status transition detected")

	// ErrLedgerMismatch means a user's cached balances disagree with the
	// commission/withdrawal ledger. Logged for operator attention; the
	// detecting operation must not mutate anything.
	ErrLedgerMismatch = errors.New("balances do not match ledger")
)
