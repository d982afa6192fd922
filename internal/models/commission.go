package models

import (
	"time"
)

// CommissionStatus is the commission state machine's closed state set.
type CommissionStatus string

const (
	CommissionStatusBlocked   CommissionStatus = "blocked"
	CommissionStatusAvailable CommissionStatus = "available"
	CommissionStatusPaid      CommissionStatus = "paid"
	CommissionStatusReversed  CommissionStatus = "reversed"
)

// Terminal reports whether the status accepts no further transitions.
func (s CommissionStatus) Terminal() bool {
	return s == CommissionStatusPaid || s == CommissionStatusReversed
}

// commissionTransitions is the single source of transition legality.
// blocked releases to available after the hold window; reversal is reachable
// from any pre-paid state when the originating order is cancelled.
var commissionTransitions = map[CommissionStatus][]CommissionStatus{
	CommissionStatusBlocked:   {CommissionStatusAvailable, CommissionStatusReversed},
	CommissionStatusAvailable: {CommissionStatusPaid, CommissionStatusReversed},
}

// CanTransition reports whether a commission may move from s to next.
func (s CommissionStatus) CanTransition(next CommissionStatus) bool {
	for _, allowed := range commissionTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Commission is one ledger entry per (order, beneficiary, level). Entries are
// append-only: they change status but are never deleted, so balances stay
// auditable against the ledger.
type Commission struct {
	ID                uint `gorm:"primarykey"`
	OrderID           uint `gorm:"not null;index;index:idx_commission_order_beneficiary_level,unique"`
	BeneficiaryUserID uint `gorm:"not null;index;index:idx_commission_order_beneficiary_level,unique"`
	SourceUserID      uint `gorm:"not null"` // the buyer whose order generated this entry

	// Level 0 = direct sponsor, 1 = sponsor's sponsor, 2 = third generation.
	Level int `gorm:"not null;index:idx_commission_order_beneficiary_level,unique"`

	Rate       float64 `gorm:"not null"` // percent applied to BaseAmount
	BaseAmount float64 `gorm:"not null"` // order subtotal at distribution time
	Amount     float64 `gorm:"not null"` // BaseAmount * Rate / 100, rounded half-even

	Status      CommissionStatus `gorm:"type:varchar(16);not null;index"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
	AvailableAt time.Time `gorm:"index"` // CreatedAt + bonus block days
	ReleasedAt  *time.Time
	PaidAt      *time.Time
	ReversedAt  *time.Time
}
