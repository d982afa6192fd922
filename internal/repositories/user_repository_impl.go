package repositories

import (
	"errors"
	"fmt"
	"strings"

	"rede/internal/models"

	"gorm.io/gorm"
)

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(user *models.User) error {
	if err := r.db.Create(user).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateUser
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *userRepository) GetByID(id uint) (*models.User, error) {
	var user models.User
	if err := r.db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

func (r *userRepository) GetByEmail(email string) (*models.User, error) {
	var user models.User
	if err := r.db.Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return &user, nil
}

func (r *userRepository) GetBySponsorCode(code string) (*models.User, error) {
	var user models.User
	if err := r.db.Where("sponsor_code = ?", code).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by sponsor code: %w", err)
	}
	return &user, nil
}

func (r *userRepository) Update(user *models.User) error {
	if err := r.db.Save(user).Error; err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

func (r *userRepository) UpdateTokenVersion(userID uint, version int) error {
	result := r.db.Model(&models.User{}).Where("id = ?", userID).Update("token_version", version)
	if result.Error != nil {
		return fmt.Errorf("failed to update token version: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *userRepository) UpdatePayoutDetails(userID uint, details models.PayoutDetails) error {
	result := r.db.Model(&models.User{}).Where("id = ?", userID).Updates(map[string]interface{}{
		"payout_bank_name":    details.BankName,
		"payout_bank_code":    details.BankCode,
		"payout_agency":       details.Agency,
		"payout_account":      details.Account,
		"payout_account_type": details.AccountType,
		"payout_pix_key":      details.PixKey,
	})
	if result.Error != nil {
		return fmt.Errorf("failed to update payout details: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *userRepository) CountDirectDownline(userID uint) (int64, error) {
	var count int64
	if err := r.db.Model(&models.User{}).Where("sponsor_id = ?", userID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count downline: %w", err)
	}
	return count, nil
}

func (r *userRepository) ListDirectDownline(userID uint, limit, offset int) ([]*models.User, error) {
	var users []*models.User
	err := r.db.Where("sponsor_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list downline: %w", err)
	}
	return users, nil
}

// isUniqueViolation matches the Postgres unique-constraint error without
// binding to a driver-specific error type.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return err != nil && strings.Contains(err.Error(), "duplicate key")
}
