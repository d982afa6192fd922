package repositories

import (
	"errors"
	"time"

	"rede/internal/models"
)

var (
	ErrCommissionNotFound  = errors.New("commission not found")
	ErrWithdrawalNotFound  = errors.New("withdrawal not found")
	ErrDuplicateCommission = errors.New("commission already exists for order, beneficiary and level")
	ErrStaleTransition     = errors.New("row was not in the expected status")
	ErrInsufficientFunds   = errors.New("insufficient funds for debit")
)

// CommissionFilter selects a page of commission ledger entries.
type CommissionFilter struct {
	UserID uint // 0 = all users
	Status models.CommissionStatus
	Limit  int
	Offset int
}

// WithdrawalFilter selects a page of withdrawals.
type WithdrawalFilter struct {
	UserID uint
	Status models.WithdrawalStatus
	Limit  int
	Offset int
}

// LevelTotal is a per-level commission aggregate.
type LevelTotal struct {
	Level int     `json:"level"`
	Total float64 `json:"total"`
}

// WithdrawalExportRow is one line of the admin CSV export.
type WithdrawalExportRow struct {
	UserName     string
	Email        string
	CPF          string
	Phone        string
	WithdrawalID uint
	UserID       uint
	Amount       float64
	BankName     string
	BankCode     string
	Agency       string
	Account      string
	AccountType  string
	PixKey       string
}

// LedgerRepository owns the append-only commission/withdrawal ledger and the
// two derived balances on the user row.
//
// Balance methods are expressed as single atomic column increments, never
// read-modify-write across round trips. DebitAvailable and DebitBlocked are
// conditional: the WHERE guard rejects a debit that would drive a balance
// negative and the method returns ErrInsufficientFunds, which is what makes
// concurrent withdrawal requests safe without a per-user mutex.
//
// TransitionCommission and TransitionWithdrawal are optimistic: they update
// only if the row is still in the expected status and return
// ErrStaleTransition otherwise, so overlapping sweep runs cannot release the
// same commission twice.
type LedgerRepository interface {
	// Commission ledger
	CreateCommission(c *models.Commission) error
	GetCommission(id uint) (*models.Commission, error)
	CommissionsExistForOrder(orderID uint) (bool, error)
	CommissionsByOrder(orderID uint) ([]*models.Commission, error)
	CommissionsDueForRelease(now time.Time, limit int) ([]*models.Commission, error)
	TransitionCommission(id uint, from, to models.CommissionStatus, at time.Time) error
	ListCommissions(filter CommissionFilter) ([]*models.Commission, int64, error)
	SumCommissionAmounts(userID uint, statuses []models.CommissionStatus) (float64, error)
	SumCommissionsByLevel(userID uint, statuses []models.CommissionStatus) ([]LevelTotal, error)
	SumCommissionsSince(userID uint, since time.Time) (float64, error)

	// Balances
	CreditBlocked(userID uint, amount float64) error
	DebitBlocked(userID uint, amount float64) error
	ReleaseBlocked(userID uint, amount float64) error
	CreditAvailable(userID uint, amount float64) error
	DebitAvailable(userID uint, amount float64) error
	GetBalances(userID uint) (available, blocked float64, err error)

	// Withdrawals
	CreateWithdrawal(w *models.Withdrawal) error
	GetWithdrawal(id uint) (*models.Withdrawal, error)
	TransitionWithdrawal(id uint, from, to models.WithdrawalStatus, at time.Time, reason string) error
	ListWithdrawals(filter WithdrawalFilter) ([]*models.Withdrawal, int64, error)
	SumWithdrawalAmounts(userID uint, excluding []models.WithdrawalStatus) (float64, error)
	ExportWithdrawals(status models.WithdrawalStatus) ([]WithdrawalExportRow, error)

	// ExecuteInTransaction runs fn against a repository bound to a single
	// database transaction.
	ExecuteInTransaction(fn func(LedgerRepository) error) error
}
