package referral

import "errors"

// Service errors
var (
	// ErrSponsorCycle signals a malformed sponsor graph: a user was seen
	// twice while walking the chain. The partial chain built before the
	// cycle is still returned.
	ErrSponsorCycle = errors.New("cycle detected in sponsor graph")

	ErrBuyerNotFound = errors.New("buyer not found")
)
