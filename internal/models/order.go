package models

import (
	"time"
)

// Payment statuses
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
)

// Order statuses
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Terminal reports whether no further status changes are allowed.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// orderTransitions is the single place order status legality lives.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending: {OrderStatusPaid, OrderStatusCancelled},
	OrderStatusPaid:    {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped: {OrderStatusDelivered, OrderStatusCancelled},
}

// CanTransition reports whether an order may move from s to next.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Order is a purchase event. Commission distribution keys off the paid
// transition; reversal keys off cancellation.
type Order struct {
	ID            uint    `gorm:"primarykey"`
	ExternalID    string  `gorm:"uniqueIndex;not null"` // reference used by the storefront / payment provider
	BuyerID       uint    `gorm:"index;not null"`
	Subtotal      float64 `gorm:"not null"` // commissionable base, excludes shipping
	Total         float64 `gorm:"not null"`
	PaymentStatus PaymentStatus
	OrderStatus   OrderStatus `gorm:"index"`

	// Optional click-tracked referrer, distinct from the buyer's registered
	// sponsor. Whether it replaces or adds to the level-0 beneficiary is a
	// configured policy on the distribution engine.
	ReferrerID   *uint
	ReferrerType string

	CreatedAt   time.Time
	UpdatedAt   time.Time
	PaidAt      *time.Time
	CancelledAt *time.Time
}
