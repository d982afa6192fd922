package repositories

import (
	"errors"

	"rede/internal/models"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrDuplicateUser = errors.New("user already exists")
)

// UserRepository defines user identity and referral-placement persistence.
// Balances live on the user row but are mutated only through the
// LedgerRepository's atomic operations, never through Update here.
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetBySponsorCode(code string) (*models.User, error)
	Update(user *models.User) error

	UpdateTokenVersion(userID uint, version int) error
	UpdatePayoutDetails(userID uint, details models.PayoutDetails) error

	CountDirectDownline(userID uint) (int64, error)
	ListDirectDownline(userID uint, limit, offset int) ([]*models.User, error)
}
