// Package referral resolves the upline sponsor chain commissions are routed
// through: level 0 is the buyer's direct sponsor, level 1 that sponsor's
// sponsor, level 2 the third generation.
package referral

import (
	"context"
	"fmt"

	"rede/internal/models"
	"rede/internal/repositories"
)

// Service resolves upline chains.
type Service interface {
	// ResolveUpline walks the sponsor back-references above buyerID and
	// returns up to maxDepth eligible beneficiaries in chain order. A
	// missing or null sponsor link truncates the chain without error; a
	// repeated user returns the partial chain with ErrSponsorCycle.
	ResolveUpline(ctx context.Context, buyerID uint, maxDepth int) ([]UplineEntry, error)

	// Eligible reports whether an access level earns network commissions.
	Eligible(level models.AccessLevel) bool
}

type service struct {
	users    repositories.UserRepository
	config   Config
	eligible map[models.AccessLevel]bool
}

// NewService creates a new upline resolver.
func NewService(users repositories.UserRepository, config Config) Service {
	if users == nil {
		panic("user repository is required")
	}

	if config.MaxDepth <= 0 {
		config.MaxDepth = DefaultMaxDepth
	}
	if config.WalkLimit <= 0 {
		config.WalkLimit = DefaultWalkLimit
	}
	if len(config.EligibleLevels) == 0 {
		config.EligibleLevels = DefaultEligibleLevels()
	}

	eligible := make(map[models.AccessLevel]bool, len(config.EligibleLevels))
	for _, level := range config.EligibleLevels {
		eligible[level] = true
	}

	return &service{
		users:    users,
		config:   config,
		eligible: eligible,
	}
}

func (s *service) Eligible(level models.AccessLevel) bool {
	return s.eligible[level]
}

// ResolveUpline walks iteratively, not recursively, so an arbitrarily long
// real chain cannot blow the stack.
func (s *service) ResolveUpline(ctx context.Context, buyerID uint, maxDepth int) ([]UplineEntry, error) {
	if maxDepth <= 0 || maxDepth > s.config.MaxDepth {
		maxDepth = s.config.MaxDepth
	}

	buyer, err := s.users.GetByID(buyerID)
	if err != nil {
		if err == repositories.ErrUserNotFound {
			return nil, ErrBuyerNotFound
		}
		return nil, fmt.Errorf("failed to load buyer %d: %w", buyerID, err)
	}

	chain := make([]UplineEntry, 0, maxDepth)
	seen := map[uint]bool{buyerID: true}
	next := buyer.SponsorID

	for steps := 0; next != nil && len(chain) < maxDepth; steps++ {
		if steps >= s.config.WalkLimit {
			break
		}
		if err := ctx.Err(); err != nil {
			return chain, err
		}

		if seen[*next] {
			return chain, fmt.Errorf("%w: user %d repeats above buyer %d", ErrSponsorCycle, *next, buyerID)
		}
		seen[*next] = true

		sponsor, err := s.users.GetByID(*next)
		if err != nil {
			if err == repositories.ErrUserNotFound {
				// Dangling back-reference: treat like a missing link and
				// let the caller work with the shorter chain.
				return chain, nil
			}
			return chain, fmt.Errorf("failed to load sponsor %d: %w", *next, err)
		}

		if s.eligible[sponsor.AccessLevel] {
			chain = append(chain, UplineEntry{Level: len(chain), UserID: sponsor.ID})
		}

		next = sponsor.SponsorID
	}

	return chain, nil
}
