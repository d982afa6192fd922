package repositories

import (
	"errors"
	"time"

	"rede/internal/models"
)

var (
	ErrOrderNotFound          = errors.New("order not found")
	ErrInvalidOrderTransition = errors.New("invalid order status transition")
)

// OrderRepository persists purchase events. Status transitions are guarded
// at the storage layer so a cancelled order can never be re-marked paid by
// a late webhook.
type OrderRepository interface {
	Create(order *models.Order) error
	GetByID(id uint) (*models.Order, error)
	GetByExternalID(externalID string) (*models.Order, error)

	// MarkPaid flips payment_status and order_status to paid if and only if
	// the order is still pending. Returns ErrInvalidOrderTransition when the
	// guard fails on an existing order.
	MarkPaid(id uint, at time.Time) error

	// MarkCancelled cancels an order in any non-terminal status.
	MarkCancelled(id uint, at time.Time) error

	ListByBuyer(buyerID uint, limit, offset int) ([]*models.Order, int64, error)
}
