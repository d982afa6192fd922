// Package balance is the balance lifecycle manager: it owns the commission
// state machine (blocked, available, paid, reversed), every mutation of the
// two per-user balances, and the withdrawal flow.
package balance

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"rede/internal/models"
	"rede/internal/repositories"
	"rede/internal/repositories/cache"
	"rede/internal/services/settings"
	"rede/internal/utils"

	"github.com/google/uuid"
)

// Service owns commission and withdrawal lifecycles and the user balances
// derived from them. No other component mutates balances.
type Service interface {
	// CreditBlocked credits a freshly distributed commission amount to the
	// beneficiary's blocked balance. The caller passes the transaction-bound
	// ledger so the credit commits or rolls back with the commission batch.
	CreditBlocked(ledger repositories.LedgerRepository, userID uint, amount float64) error

	// ReleaseDue moves commissions whose hold window has elapsed from
	// blocked to available, transferring each amount between the two
	// balances. Safe to run concurrently with itself; overlapping runs lose
	// the optimistic status check instead of double-crediting.
	ReleaseDue(ctx context.Context, now time.Time, limit int) (ReleaseResult, error)

	// ReverseOrder voids all pre-paid commissions of a cancelled order,
	// debiting whichever balance currently holds each amount. Returns how
	// many commissions were reversed.
	ReverseOrder(ctx context.Context, orderID uint) (int, error)

	// Withdrawals
	RequestWithdrawal(ctx context.Context, userID uint, amount float64) (*models.Withdrawal, error)
	ApproveWithdrawal(ctx context.Context, withdrawalID uint) error
	RejectWithdrawal(ctx context.Context, withdrawalID uint, reason string) error
	PayWithdrawal(ctx context.Context, withdrawalID uint) error

	GetBalances(ctx context.Context, userID uint) (available, blocked float64, err error)

	// Reconcile recomputes a user's balances from the append-only ledger
	// and reports drift. Returns ErrLedgerMismatch when they disagree.
	Reconcile(ctx context.Context, userID uint) (*ReconcileReport, error)
}

type service struct {
	ledger   repositories.LedgerRepository
	users    repositories.UserRepository
	settings settings.Service
	cache    *cache.CacheService
	metrics  MetricsCollector
}

// NewService creates a new balance lifecycle manager.
func NewService(
	ledger repositories.LedgerRepository,
	users repositories.UserRepository,
	settingsService settings.Service,
	cacheService *cache.CacheService,
	metrics MetricsCollector,
) Service {
	if ledger == nil {
		panic("ledger repository is required")
	}
	if users == nil {
		panic("user repository is required")
	}
	if settingsService == nil {
		panic("settings service is required")
	}
	if metrics == nil {
		metrics = &NoopMetricsCollector{}
	}

	return &service{
		ledger:   ledger,
		users:    users,
		settings: settingsService,
		cache:    cacheService,
		metrics:  metrics,
	}
}

func (s *service) CreditBlocked(ledger repositories.LedgerRepository, userID uint, amount float64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if err := ledger.CreditBlocked(userID, amount); err != nil {
		s.metrics.RecordError("credit_blocked", "storage")
		return fmt.Errorf("failed to credit blocked balance of user %d: %w", userID, err)
	}
	s.metrics.RecordLedgerMove("credit_blocked", amount)
	return nil
}

func (s *service) ReleaseDue(ctx context.Context, now time.Time, limit int) (ReleaseResult, error) {
	start := time.Now()
	defer func() { s.metrics.RecordOperationDuration("release_due", time.Since(start)) }()

	if limit <= 0 {
		limit = DefaultSweepBatchSize
	}

	var result ReleaseResult
	due, err := s.ledger.CommissionsDueForRelease(now, limit)
	if err != nil {
		return result, fmt.Errorf("failed to query due commissions: %w", err)
	}
	result.Scanned = len(due)

	for _, c := range due {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		err := s.ledger.ExecuteInTransaction(func(tx repositories.LedgerRepository) error {
			if err := tx.TransitionCommission(c.ID, models.CommissionStatusBlocked, models.CommissionStatusAvailable, now); err != nil {
				return err
			}
			return tx.ReleaseBlocked(c.BeneficiaryUserID, c.Amount)
		})
		switch {
		case err == nil:
			result.Released++
			s.metrics.RecordLedgerMove("release", c.Amount)
			s.invalidateSummary(ctx, c.BeneficiaryUserID)
		case errors.Is(err, repositories.ErrStaleTransition):
			// Another sweep run or a reversal got there first.
			result.Conflicts++
		default:
			result.Failed++
			s.metrics.RecordError("release_due", "storage")
			log.Printf("failed to release commission %d: %v", c.ID, err)
		}
	}

	s.metrics.RecordSweep(result.Released, result.Conflicts)
	return result, nil
}

func (s *service) ReverseOrder(ctx context.Context, orderID uint) (int, error) {
	start := time.Now()
	defer func() { s.metrics.RecordOperationDuration("reverse_order", time.Since(start)) }()

	commissions, err := s.ledger.CommissionsByOrder(orderID)
	if err != nil {
		return 0, fmt.Errorf("failed to load commissions of order %d: %w", orderID, err)
	}

	reversed := 0
	for _, c := range commissions {
		if err := ctx.Err(); err != nil {
			return reversed, err
		}
		ok, err := s.reverseCommission(c.ID)
		if err != nil {
			return reversed, err
		}
		if ok {
			reversed++
			s.metrics.RecordLedgerMove("reverse", c.Amount)
			s.invalidateSummary(ctx, c.BeneficiaryUserID)
		}
	}
	return reversed, nil
}

// reverseCommission voids one commission, debiting the balance its current
// status maps to. The status is re-read on each attempt because the sweep
// may move it from blocked to available between read and update; the
// optimistic guard turns that race into a bounded retry.
func (s *service) reverseCommission(commissionID uint) (bool, error) {
	for attempt := 0; attempt < maxTransitionAttempts; attempt++ {
		c, err := s.ledger.GetCommission(commissionID)
		if err != nil {
			return false, fmt.Errorf("failed to load commission %d: %w", commissionID, err)
		}

		if c.Status.Terminal() {
			// Paid commissions stay paid; already-reversed stays reversed.
			return false, nil
		}

		now := time.Now().UTC()
		err = s.ledger.ExecuteInTransaction(func(tx repositories.LedgerRepository) error {
			if err := tx.TransitionCommission(c.ID, c.Status, models.CommissionStatusReversed, now); err != nil {
				return err
			}
			if c.Status == models.CommissionStatusBlocked {
				return tx.DebitBlocked(c.BeneficiaryUserID, c.Amount)
			}
			return tx.DebitAvailable(c.BeneficiaryUserID, c.Amount)
		})
		if err == nil {
			return true, nil
		}
		if errors.Is(err, repositories.ErrStaleTransition) {
			continue
		}
		if errors.Is(err, repositories.ErrInsufficientFunds) {
			// The funds already left through a withdrawal. Skip it and leave
			// the commission for an operator; reconciliation surfaces the
			// drift.
			s.metrics.RecordError("reverse", "insufficient_funds")
			log.Printf("cannot reverse commission %d for user %d: funds already withdrawn",
				c.ID, c.BeneficiaryUserID)
			return false, nil
		}
		s.metrics.RecordError("reverse", "storage")
		return false, fmt.Errorf("failed to reverse commission %d: %w", commissionID, err)
	}

	s.metrics.RecordError("reverse", "conflict")
	return false, fmt.Errorf("commission %d: %w", commissionID, ErrConcurrencyConflict)
}

func (s *service) RequestWithdrawal(ctx context.Context, userID uint, amount float64) (*models.Withdrawal, error) {
	start := time.Now()
	defer func() { s.metrics.RecordOperationDuration("request_withdrawal", time.Since(start)) }()

	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	cfg, err := s.settings.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	if amount < cfg.MinWithdrawalAmount {
		return nil, fmt.Errorf("%w: minimum is %.2f", ErrBelowMinimum, cfg.MinWithdrawalAmount)
	}

	user, err := s.users.GetByID(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user %d: %w", userID, err)
	}
	if !user.PayoutDetails.Complete() {
		return nil, ErrMissingPayoutDetails
	}

	fee := utils.CommissionAmount(amount, cfg.WithdrawalFeePercent)
	withdrawal := &models.Withdrawal{
		Reference:     uuid.NewString(),
		UserID:        userID,
		Amount:        amount,
		Fee:           fee,
		NetAmount:     utils.RoundCurrency(amount - fee),
		Status:        models.WithdrawalStatusPending,
		PayoutDetails: *user.PayoutDetails,
	}

	// The full amount is reserved up front; the conditional debit is the
	// only balance check, so two concurrent requests cannot both pass.
	err = s.ledger.ExecuteInTransaction(func(tx repositories.LedgerRepository) error {
		if err := tx.DebitAvailable(userID, amount); err != nil {
			return err
		}
		return tx.CreateWithdrawal(withdrawal)
	})
	if err != nil {
		if errors.Is(err, repositories.ErrInsufficientFunds) {
			return nil, ErrInsufficientBalance
		}
		s.metrics.RecordError("request_withdrawal", "storage")
		return nil, fmt.Errorf("failed to create withdrawal: %w", err)
	}

	s.metrics.RecordLedgerMove("withdrawal_reserve", amount)
	s.invalidateSummary(ctx, userID)
	return withdrawal, nil
}

func (s *service) ApproveWithdrawal(ctx context.Context, withdrawalID uint) error {
	return s.transitionWithdrawal(ctx, withdrawalID, models.WithdrawalStatusApproved, "")
}

func (s *service) PayWithdrawal(ctx context.Context, withdrawalID uint) error {
	// Funds already left available_balance at request time; paying is an
	// audit-trail transition only.
	return s.transitionWithdrawal(ctx, withdrawalID, models.WithdrawalStatusPaid, "")
}

func (s *service) RejectWithdrawal(ctx context.Context, withdrawalID uint, reason string) error {
	return s.transitionWithdrawal(ctx, withdrawalID, models.WithdrawalStatusRejected, reason)
}

func (s *service) transitionWithdrawal(ctx context.Context, withdrawalID uint, to models.WithdrawalStatus, reason string) error {
	for attempt := 0; attempt < maxTransitionAttempts; attempt++ {
		w, err := s.ledger.GetWithdrawal(withdrawalID)
		if err != nil {
			return err
		}
		if !w.Status.CanTransition(to) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, w.Status, to)
		}

		now := time.Now().UTC()
		err = s.ledger.ExecuteInTransaction(func(tx repositories.LedgerRepository) error {
			if err := tx.TransitionWithdrawal(w.ID, w.Status, to, now, reason); err != nil {
				return err
			}
			if to == models.WithdrawalStatusRejected {
				// Release the reservation made at request time.
				return tx.CreditAvailable(w.UserID, w.Amount)
			}
			return nil
		})
		if err == nil {
			if to == models.WithdrawalStatusRejected {
				s.metrics.RecordLedgerMove("withdrawal_restore", w.Amount)
			}
			s.invalidateSummary(ctx, w.UserID)
			return nil
		}
		if errors.Is(err, repositories.ErrStaleTransition) {
			continue
		}
		s.metrics.RecordError("transition_withdrawal", "storage")
		return fmt.Errorf("failed to transition withdrawal %d: %w", withdrawalID, err)
	}
	return fmt.Errorf("withdrawal %d: %w", withdrawalID, ErrConcurrencyConflict)
}

func (s *service) GetBalances(ctx context.Context, userID uint) (float64, float64, error) {
	return s.ledger.GetBalances(userID)
}

func (s *service) Reconcile(ctx context.Context, userID uint) (*ReconcileReport, error) {
	available, blocked, err := s.ledger.GetBalances(userID)
	if err != nil {
		return nil, err
	}

	earned, err := s.ledger.SumCommissionAmounts(userID, []models.CommissionStatus{
		models.CommissionStatusBlocked,
		models.CommissionStatusAvailable,
		models.CommissionStatusPaid,
	})
	if err != nil {
		return nil, err
	}

	withdrawn, err := s.ledger.SumWithdrawalAmounts(userID, []models.WithdrawalStatus{
		models.WithdrawalStatusRejected,
	})
	if err != nil {
		return nil, err
	}

	report := &ReconcileReport{
		UserID:           userID,
		AvailableBalance: available,
		BlockedBalance:   blocked,
		LedgerTotal:      utils.RoundCurrency(earned - withdrawn),
	}
	report.Drift = utils.RoundCurrency(available + blocked - report.LedgerTotal)
	report.Consistent = math.Abs(report.Drift) < reconcileTolerance

	if !report.Consistent {
		log.Printf("ledger mismatch for user %d: balances=%.2f ledger=%.2f",
			userID, available+blocked, report.LedgerTotal)
		return report, fmt.Errorf("user %d: %w", userID, ErrLedgerMismatch)
	}
	return report, nil
}

func (s *service) invalidateSummary(ctx context.Context, userID uint) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateSummary(ctx, userID); err != nil {
		log.Printf("failed to invalidate summary cache for user %d: %v", userID, err)
	}
}
