package commission

import "errors"

// Service errors
var (
	// ErrOrderNotPaid is a caller error: distribution was requested for an
	// order that has not completed payment. Nothing is mutated.
	ErrOrderNotPaid = errors.New("order is not paid")

	// ErrAlreadyDistributed means commissions for this order already exist.
	// Under at-least-once event delivery this is the expected outcome of a
	// duplicate; callers treat it as a safe no-op.
	ErrAlreadyDistributed = errors.New("order already distributed")
)
