package models

import (
	"time"
)

// WithdrawalStatus is the withdrawal state machine's closed state set.
type WithdrawalStatus string

const (
	WithdrawalStatusPending  WithdrawalStatus = "pending"
	WithdrawalStatusApproved WithdrawalStatus = "approved"
	WithdrawalStatusPaid     WithdrawalStatus = "paid"
	WithdrawalStatusRejected WithdrawalStatus = "rejected"
)

// Terminal reports whether the status accepts no further transitions.
func (s WithdrawalStatus) Terminal() bool {
	return s == WithdrawalStatusPaid || s == WithdrawalStatusRejected
}

var withdrawalTransitions = map[WithdrawalStatus][]WithdrawalStatus{
	WithdrawalStatusPending:  {WithdrawalStatusApproved, WithdrawalStatusRejected},
	WithdrawalStatusApproved: {WithdrawalStatusPaid, WithdrawalStatusRejected},
}

// CanTransition reports whether a withdrawal may move from s to next.
func (s WithdrawalStatus) CanTransition(next WithdrawalStatus) bool {
	for _, allowed := range withdrawalTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Withdrawal is a payout request against a user's available balance. The
// full Amount is reserved (debited) at creation and restored on rejection;
// the paid transition only timestamps, funds already left at request time.
type Withdrawal struct {
	ID        uint   `gorm:"primarykey"`
	Reference string `gorm:"uniqueIndex;not null"` // external reference number
	UserID    uint   `gorm:"index;not null"`

	Amount    float64 `gorm:"not null"`
	Fee       float64 `gorm:"not null"` // Amount * fee percent / 100 at request time
	NetAmount float64 `gorm:"not null"` // Amount - Fee

	Status       WithdrawalStatus `gorm:"type:varchar(16);not null;index"`
	RejectReason string

	// Snapshot of the payout destination at request time, so later edits to
	// the user's details don't rewrite pending payouts.
	PayoutDetails PayoutDetails `gorm:"embedded;embeddedPrefix:payout_"`

	CreatedAt  time.Time
	UpdatedAt  time.Time
	ApprovedAt *time.Time
	PaidAt     *time.Time
	RejectedAt *time.Time
}
