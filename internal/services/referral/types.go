package referral

import "rede/internal/models"

// UplineEntry is one qualifying beneficiary in a buyer's sponsor chain.
// Level 0 is the direct sponsor.
type UplineEntry struct {
	Level  int  `json:"level"`
	UserID uint `json:"user_id"`
}

// Config controls how the upline chain is resolved.
type Config struct {
	// MaxDepth is how many eligible beneficiaries to collect.
	MaxDepth int

	// EligibleLevels are the access levels allowed to earn commissions.
	// Ineligible sponsors are skipped without consuming a level; the walk
	// continues through their own sponsor link.
	EligibleLevels []models.AccessLevel

	// WalkLimit bounds the total number of sponsor links followed,
	// including skipped ones, so a long chain of ineligible accounts
	// cannot turn resolution into an unbounded scan.
	WalkLimit int
}

// Default configuration values
const (
	DefaultMaxDepth  = 3
	DefaultWalkLimit = 32
)

// DefaultEligibleLevels returns the access levels that earn network
// commissions: resellers and above in the hierarchy.
func DefaultEligibleLevels() []models.AccessLevel {
	return []models.AccessLevel{
		models.AccessLevelReseller,
		models.AccessLevelLeader,
		models.AccessLevelSupervisor,
	}
}
