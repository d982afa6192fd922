package repositories

import (
	"errors"
	"fmt"
	"time"

	"rede/internal/models"

	"gorm.io/gorm"
)

type ledgerRepository struct {
	db *gorm.DB
}

func NewLedgerRepository(db *gorm.DB) LedgerRepository {
	return &ledgerRepository{db: db}
}

// Commission ledger

func (r *ledgerRepository) CreateCommission(c *models.Commission) error {
	if err := r.db.Create(c).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateCommission
		}
		return fmt.Errorf("failed to create commission: %w", err)
	}
	return nil
}

func (r *ledgerRepository) GetCommission(id uint) (*models.Commission, error) {
	var c models.Commission
	if err := r.db.First(&c, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCommissionNotFound
		}
		return nil, fmt.Errorf("failed to get commission: %w", err)
	}
	return &c, nil
}

func (r *ledgerRepository) CommissionsExistForOrder(orderID uint) (bool, error) {
	var count int64
	err := r.db.Model(&models.Commission{}).Where("order_id = ?", orderID).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check commissions for order: %w", err)
	}
	return count > 0, nil
}

func (r *ledgerRepository) CommissionsByOrder(orderID uint) ([]*models.Commission, error) {
	var commissions []*models.Commission
	err := r.db.Where("order_id = ?", orderID).Order("level ASC").Find(&commissions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get commissions by order: %w", err)
	}
	return commissions, nil
}

func (r *ledgerRepository) CommissionsDueForRelease(now time.Time, limit int) ([]*models.Commission, error) {
	var commissions []*models.Commission
	err := r.db.Where("status = ? AND available_at <= ?", models.CommissionStatusBlocked, now).
		Order("available_at ASC").
		Limit(limit).
		Find(&commissions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get due commissions: %w", err)
	}
	return commissions, nil
}

func (r *ledgerRepository) TransitionCommission(id uint, from, to models.CommissionStatus, at time.Time) error {
	updates := map[string]interface{}{"status": to, "updated_at": at}
	switch to {
	case models.CommissionStatusAvailable:
		updates["released_at"] = at
	case models.CommissionStatusPaid:
		updates["paid_at"] = at
	case models.CommissionStatusReversed:
		updates["reversed_at"] = at
	}

	result := r.db.Model(&models.Commission{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to transition commission: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrStaleTransition
	}
	return nil
}

func (r *ledgerRepository) ListCommissions(filter CommissionFilter) ([]*models.Commission, int64, error) {
	query := r.db.Model(&models.Commission{})
	if filter.UserID != 0 {
		query = query.Where("beneficiary_user_id = ?", filter.UserID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count commissions: %w", err)
	}

	var commissions []*models.Commission
	err := query.Order("created_at DESC").
		Limit(filter.Limit).
		Offset(filter.Offset).
		Find(&commissions).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list commissions: %w", err)
	}
	return commissions, total, nil
}

func (r *ledgerRepository) SumCommissionAmounts(userID uint, statuses []models.CommissionStatus) (float64, error) {
	var total float64
	query := r.db.Model(&models.Commission{}).Where("beneficiary_user_id = ?", userID)
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}
	if err := query.Select("COALESCE(SUM(amount), 0)").Scan(&total).Error; err != nil {
		return 0, fmt.Errorf("failed to sum commissions: %w", err)
	}
	return total, nil
}

func (r *ledgerRepository) SumCommissionsByLevel(userID uint, statuses []models.CommissionStatus) ([]LevelTotal, error) {
	var totals []LevelTotal
	query := r.db.Model(&models.Commission{}).Where("beneficiary_user_id = ?", userID)
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}
	err := query.Select("level, COALESCE(SUM(amount), 0) as total").
		Group("level").
		Order("level ASC").
		Scan(&totals).Error
	if err != nil {
		return nil, fmt.Errorf("failed to sum commissions by level: %w", err)
	}
	return totals, nil
}

func (r *ledgerRepository) SumCommissionsSince(userID uint, since time.Time) (float64, error) {
	var total float64
	err := r.db.Model(&models.Commission{}).
		Where("beneficiary_user_id = ? AND created_at >= ? AND status <> ?",
			userID, since, models.CommissionStatusReversed).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("failed to sum commissions since %s: %w", since, err)
	}
	return total, nil
}

// Balances

func (r *ledgerRepository) CreditBlocked(userID uint, amount float64) error {
	return r.adjustBalance(userID, "blocked_balance", amount, false)
}

func (r *ledgerRepository) DebitBlocked(userID uint, amount float64) error {
	return r.adjustBalance(userID, "blocked_balance", -amount, true)
}

func (r *ledgerRepository) CreditAvailable(userID uint, amount float64) error {
	return r.adjustBalance(userID, "available_balance", amount, false)
}

func (r *ledgerRepository) DebitAvailable(userID uint, amount float64) error {
	return r.adjustBalance(userID, "available_balance", -amount, true)
}

// ReleaseBlocked moves amount from blocked to available in one statement so
// the two columns can never be observed mid-move.
func (r *ledgerRepository) ReleaseBlocked(userID uint, amount float64) error {
	result := r.db.Model(&models.User{}).
		Where("id = ? AND blocked_balance >= ?", userID, amount).
		Updates(map[string]interface{}{
			"blocked_balance":   gorm.Expr("blocked_balance - ?", amount),
			"available_balance": gorm.Expr("available_balance + ?", amount),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to release blocked balance: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrInsufficientFunds
	}
	return nil
}

func (r *ledgerRepository) adjustBalance(userID uint, column string, delta float64, guarded bool) error {
	query := r.db.Model(&models.User{}).Where("id = ?", userID)
	if guarded {
		query = query.Where(column+" >= ?", -delta)
	}
	result := query.Update(column, gorm.Expr(column+" + ?", delta))
	if result.Error != nil {
		return fmt.Errorf("failed to adjust %s: %w", column, result.Error)
	}
	if result.RowsAffected == 0 {
		if guarded {
			return ErrInsufficientFunds
		}
		return ErrUserNotFound
	}
	return nil
}

func (r *ledgerRepository) GetBalances(userID uint) (float64, float64, error) {
	var user models.User
	if err := r.db.Select("available_balance", "blocked_balance").First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, 0, ErrUserNotFound
		}
		return 0, 0, fmt.Errorf("failed to get balances: %w", err)
	}
	return user.AvailableBalance, user.BlockedBalance, nil
}

// Withdrawals

func (r *ledgerRepository) CreateWithdrawal(w *models.Withdrawal) error {
	if err := r.db.Create(w).Error; err != nil {
		return fmt.Errorf("failed to create withdrawal: %w", err)
	}
	return nil
}

func (r *ledgerRepository) GetWithdrawal(id uint) (*models.Withdrawal, error) {
	var w models.Withdrawal
	if err := r.db.First(&w, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWithdrawalNotFound
		}
		return nil, fmt.Errorf("failed to get withdrawal: %w", err)
	}
	return &w, nil
}

func (r *ledgerRepository) TransitionWithdrawal(id uint, from, to models.WithdrawalStatus, at time.Time, reason string) error {
	updates := map[string]interface{}{"status": to, "updated_at": at}
	switch to {
	case models.WithdrawalStatusApproved:
		updates["approved_at"] = at
	case models.WithdrawalStatusPaid:
		updates["paid_at"] = at
	case models.WithdrawalStatusRejected:
		updates["rejected_at"] = at
		updates["reject_reason"] = reason
	}

	result := r.db.Model(&models.Withdrawal{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to transition withdrawal: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrStaleTransition
	}
	return nil
}

func (r *ledgerRepository) ListWithdrawals(filter WithdrawalFilter) ([]*models.Withdrawal, int64, error) {
	query := r.db.Model(&models.Withdrawal{})
	if filter.UserID != 0 {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count withdrawals: %w", err)
	}

	var withdrawals []*models.Withdrawal
	err := query.Order("created_at DESC").
		Limit(filter.Limit).
		Offset(filter.Offset).
		Find(&withdrawals).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list withdrawals: %w", err)
	}
	return withdrawals, total, nil
}

func (r *ledgerRepository) SumWithdrawalAmounts(userID uint, excluding []models.WithdrawalStatus) (float64, error) {
	var total float64
	query := r.db.Model(&models.Withdrawal{}).Where("user_id = ?", userID)
	if len(excluding) > 0 {
		query = query.Where("status NOT IN ?", excluding)
	}
	if err := query.Select("COALESCE(SUM(amount), 0)").Scan(&total).Error; err != nil {
		return 0, fmt.Errorf("failed to sum withdrawals: %w", err)
	}
	return total, nil
}

func (r *ledgerRepository) ExportWithdrawals(status models.WithdrawalStatus) ([]WithdrawalExportRow, error) {
	var rows []WithdrawalExportRow
	query := r.db.Model(&models.Withdrawal{}).
		Select(`users.name as user_name, users.email, users.cpf, users.phone,
			withdrawals.id as withdrawal_id, withdrawals.user_id, withdrawals.amount,
			withdrawals.payout_bank_name as bank_name, withdrawals.payout_bank_code as bank_code,
			withdrawals.payout_agency as agency, withdrawals.payout_account as account,
			withdrawals.payout_account_type as account_type, withdrawals.payout_pix_key as pix_key`).
		Joins("JOIN users ON users.id = withdrawals.user_id")
	if status != "" {
		query = query.Where("withdrawals.status = ?", status)
	}
	if err := query.Order("withdrawals.created_at ASC").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to export withdrawals: %w", err)
	}
	return rows, nil
}

func (r *ledgerRepository) ExecuteInTransaction(fn func(LedgerRepository) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(&ledgerRepository{db: tx})
	})
}
