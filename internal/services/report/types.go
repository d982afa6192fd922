package report

import (
	"time"

	"rede/internal/repositories"
)

// Summary is the per-user dashboard aggregation.
type Summary struct {
	UserID           uint                      `json:"user_id"`
	AvailableBalance float64                   `json:"available_balance"`
	BlockedBalance   float64                   `json:"blocked_balance"`
	ThisMonth        float64                   `json:"this_month"`
	ByLevel          []repositories.LevelTotal `json:"by_level"`
}

// RankingCriteria selects what a period ranking is ordered by.
type RankingCriteria string

const (
	RankBySales       RankingCriteria = "sales"
	RankByCommissions RankingCriteria = "commissions"
	RankByNetwork     RankingCriteria = "network"
	RankByPoints      RankingCriteria = "points"
)

// Period is a half-open [Start, End) reporting window.
type Period struct {
	Start time.Time
	End   time.Time
}

// MonthToDate returns the period from the first of now's month to now.
func MonthToDate(now time.Time) Period {
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return Period{Start: start, End: now}
}

// Cache duration for user summaries; invalidated early on balance changes.
const summaryCacheTTL = 5 * time.Minute

// DefaultRankingLimit caps ranking result size.
const DefaultRankingLimit = 20

// withdrawalCSVHeader is the literal column set the admin export produces.
var withdrawalCSVHeader = []string{
	"user name", "email", "cpf", "phone",
	"withdrawal id", "user id", "amount",
	"bank name", "bank code", "agency", "account", "account type", "pix key",
}
