package repositories

import (
	"errors"
	"fmt"
	"time"

	"rede/internal/models"

	"gorm.io/gorm"
)

type orderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) Create(order *models.Order) error {
	if err := r.db.Create(order).Error; err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

func (r *orderRepository) GetByID(id uint) (*models.Order, error) {
	var order models.Order
	if err := r.db.First(&order, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return &order, nil
}

func (r *orderRepository) GetByExternalID(externalID string) (*models.Order, error) {
	var order models.Order
	if err := r.db.Where("external_id = ?", externalID).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order by external id: %w", err)
	}
	return &order, nil
}

func (r *orderRepository) MarkPaid(id uint, at time.Time) error {
	result := r.db.Model(&models.Order{}).
		Where("id = ? AND order_status = ?", id, models.OrderStatusPending).
		Updates(map[string]interface{}{
			"payment_status": models.PaymentStatusPaid,
			"order_status":   models.OrderStatusPaid,
			"paid_at":        at,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to mark order paid: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		if _, err := r.GetByID(id); err != nil {
			return err
		}
		return ErrInvalidOrderTransition
	}
	return nil
}

func (r *orderRepository) MarkCancelled(id uint, at time.Time) error {
	result := r.db.Model(&models.Order{}).
		Where("id = ? AND order_status NOT IN ?", id,
			[]models.OrderStatus{models.OrderStatusDelivered, models.OrderStatusCancelled}).
		Updates(map[string]interface{}{
			"order_status": models.OrderStatusCancelled,
			"cancelled_at": at,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to cancel order: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		if _, err := r.GetByID(id); err != nil {
			return err
		}
		return ErrInvalidOrderTransition
	}
	return nil
}

func (r *orderRepository) ListByBuyer(buyerID uint, limit, offset int) ([]*models.Order, int64, error) {
	var orders []*models.Order
	var total int64

	query := r.db.Model(&models.Order{}).Where("buyer_id = ?", buyerID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	err := query.Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&orders).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, total, nil
}
