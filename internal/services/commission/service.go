// Package commission converts order-paid events into commission ledger
// entries across the buyer's upline, exactly once per order.
package commission

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"rede/internal/models"
	"rede/internal/repositories"
	"rede/internal/services/balance"
	"rede/internal/services/referral"
	"rede/internal/services/settings"
	"rede/internal/utils"
)

// Service distributes commissions for paid orders.
type Service interface {
	// Distribute creates one blocked commission per qualifying upline level
	// of the order's buyer and credits each beneficiary's blocked balance,
	// all in one storage transaction.
	//
	// Preconditions: order.PaymentStatus == paid, else ErrOrderNotPaid.
	// Calling it twice for the same order returns ErrAlreadyDistributed and
	// creates nothing. A buyer without a sponsor chain yields an empty
	// batch and no error.
	Distribute(ctx context.Context, order *models.Order) ([]*models.Commission, error)
}

type service struct {
	ledger   repositories.LedgerRepository
	users    repositories.UserRepository
	resolver referral.Service
	balances balance.Service
	settings settings.Service
	config   Config
}

// NewService creates a new distribution engine.
func NewService(
	ledger repositories.LedgerRepository,
	users repositories.UserRepository,
	resolver referral.Service,
	balances balance.Service,
	settingsService settings.Service,
	config Config,
) Service {
	if ledger == nil {
		panic("ledger repository is required")
	}
	if users == nil {
		panic("user repository is required")
	}
	if resolver == nil {
		panic("resolver is required")
	}
	if balances == nil {
		panic("balance service is required")
	}
	if settingsService == nil {
		panic("settings service is required")
	}

	if config.MaxLevels <= 0 {
		config.MaxLevels = DefaultMaxLevels
	}
	if config.ReferrerPolicy == "" {
		config.ReferrerPolicy = ReferrerReplaces
	}

	return &service{
		ledger:   ledger,
		users:    users,
		resolver: resolver,
		balances: balances,
		settings: settingsService,
		config:   config,
	}
}

func (s *service) Distribute(ctx context.Context, order *models.Order) ([]*models.Commission, error) {
	if order == nil {
		return nil, errors.New("order is required")
	}
	if order.PaymentStatus != models.PaymentStatusPaid {
		return nil, fmt.Errorf("order %d: %w", order.ID, ErrOrderNotPaid)
	}

	cfg, err := s.settings.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	chain, err := s.resolver.ResolveUpline(ctx, order.BuyerID, s.config.MaxLevels)
	if err != nil {
		if errors.Is(err, referral.ErrSponsorCycle) {
			// Malformed graph. Distributing against a partial chain could
			// pay the wrong people, so no-op and leave a trace for the
			// operator instead.
			log.Printf("distribution skipped for order %d: %v", order.ID, err)
			return nil, err
		}
		return nil, fmt.Errorf("failed to resolve upline for order %d: %w", order.ID, err)
	}

	beneficiaries, err := s.planBeneficiaries(order, chain, cfg)
	if err != nil {
		return nil, err
	}
	if len(beneficiaries) == 0 {
		// No sponsor chain is a normal state for direct customers.
		return nil, nil
	}

	now := time.Now().UTC()
	availableAt := now.AddDate(0, 0, cfg.BonusBlockDays)

	batch := make([]*models.Commission, 0, len(beneficiaries))
	for _, b := range beneficiaries {
		amount := utils.CommissionAmount(order.Subtotal, b.rate)
		if amount <= 0 {
			continue
		}
		batch = append(batch, &models.Commission{
			OrderID:           order.ID,
			BeneficiaryUserID: b.userID,
			SourceUserID:      order.BuyerID,
			Level:             b.level,
			Rate:              b.rate,
			BaseAmount:        order.Subtotal,
			Amount:            amount,
			Status:            models.CommissionStatusBlocked,
			CreatedAt:         now,
			AvailableAt:       availableAt,
		})
	}
	if len(batch) == 0 {
		return nil, nil
	}

	// Records and balance credits commit together. The explicit
	// already-distributed check handles the common duplicate; the unique
	// index on (order, beneficiary, level) closes the write race between
	// two concurrent deliveries of the same event.
	err = s.ledger.ExecuteInTransaction(func(tx repositories.LedgerRepository) error {
		exists, err := tx.CommissionsExistForOrder(order.ID)
		if err != nil {
			return err
		}
		if exists {
			return ErrAlreadyDistributed
		}
		for _, c := range batch {
			if err := tx.CreateCommission(c); err != nil {
				return err
			}
			if err := s.balances.CreditBlocked(tx, c.BeneficiaryUserID, c.Amount); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrAlreadyDistributed) || errors.Is(err, repositories.ErrDuplicateCommission) {
			return nil, ErrAlreadyDistributed
		}
		return nil, fmt.Errorf("failed to distribute order %d: %w", order.ID, err)
	}

	return batch, nil
}

// planBeneficiaries maps the resolved chain to per-level rates and applies
// the referrer policy.
func (s *service) planBeneficiaries(order *models.Order, chain []referral.UplineEntry, cfg *models.CommissionSettings) ([]beneficiary, error) {
	plan := make([]beneficiary, 0, len(chain)+1)
	for _, entry := range chain {
		plan = append(plan, beneficiary{
			userID: entry.UserID,
			level:  entry.Level,
			rate:   cfg.RateForLevel(entry.Level),
		})
	}

	if order.ReferrerID == nil || *order.ReferrerID == order.BuyerID {
		return plan, nil
	}
	if len(plan) > 0 && plan[0].userID == *order.ReferrerID {
		// The click-tracked referrer is already the direct sponsor.
		return plan, nil
	}

	referrer, err := s.users.GetByID(*order.ReferrerID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			log.Printf("order %d references unknown referrer %d, ignoring", order.ID, *order.ReferrerID)
			return plan, nil
		}
		return nil, fmt.Errorf("failed to load referrer %d: %w", *order.ReferrerID, err)
	}

	// Clients earn the dedicated referral rate; eligible network members
	// earn the regular level-1 rate.
	rate := cfg.RateForLevel(0)
	if referrer.AccessLevel == models.AccessLevelClient {
		rate = cfg.ClientReferralCommission
	} else if !s.resolver.Eligible(referrer.AccessLevel) {
		return plan, nil
	}

	entry := beneficiary{userID: referrer.ID, level: 0, rate: rate}
	switch s.config.ReferrerPolicy {
	case ReferrerAdds:
		plan = append(plan, entry)
	default: // replace
		if len(plan) > 0 && plan[0].level == 0 {
			plan[0] = entry
		} else {
			plan = append([]beneficiary{entry}, plan...)
		}
	}
	return plan, nil
}
