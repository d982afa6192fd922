// Package order ingests purchase events from the storefront, whether they
// arrive over the webhook endpoints or the message broker, and drives the
// downstream commission distribution and reversal.
package order

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"rede/internal/models"
	"rede/internal/repositories"
	"rede/internal/services/balance"
	"rede/internal/services/commission"

	"github.com/google/uuid"
)

var (
	ErrInvalidEvent  = errors.New("invalid order event")
	ErrOrderNotFound = repositories.ErrOrderNotFound
)

// PaidEvent is a storefront notification that an order was paid.
type PaidEvent struct {
	ExternalID   string  `json:"external_id"`
	BuyerID      uint    `json:"buyer_id"`
	Subtotal     float64 `json:"subtotal"`
	Total        float64 `json:"total"`
	ReferrerID   *uint   `json:"referrer_id,omitempty"`
	ReferrerType string  `json:"referrer_type,omitempty"`
}

// CancelledEvent is a storefront notification that an order was cancelled.
type CancelledEvent struct {
	ExternalID string `json:"external_id"`
}

// Follow-up events published after an order settles, for downstream
// consumers such as notification services.
const (
	EventTypeCommissionsDistributed = "commission.distributed"
	EventTypeCommissionsReversed    = "commission.reversed"
)

// SettlementEvent announces the commission outcome of an order.
type SettlementEvent struct {
	EventID     string  `json:"event_id"`
	EventType   string  `json:"event_type"`
	OrderID     uint    `json:"order_id"`
	ExternalID  string  `json:"external_id"`
	Commissions int     `json:"commissions"`
	Amount      float64 `json:"amount,omitempty"`
}

// EventPublisher emits follow-up events. *broker.Producer satisfies it.
type EventPublisher interface {
	PublishEvent(ctx context.Context, key string, event interface{}) error
}

type Service interface {
	// RecordPaid upserts the order, marks it paid and distributes
	// commissions. Re-delivery of the same event is a no-op: the order is
	// already paid and distribution refuses to run twice.
	RecordPaid(ctx context.Context, event PaidEvent) (*models.Order, []*models.Commission, error)

	// RecordCancelled cancels the order and reverses its pre-paid
	// commissions. Returns how many commissions were reversed.
	RecordCancelled(ctx context.Context, event CancelledEvent) (int, error)
}

type service struct {
	orders      repositories.OrderRepository
	commissions commission.Service
	balances    balance.Service
	publisher   EventPublisher
}

// NewService creates the ingest service. publisher may be nil; settlement
// events are then skipped.
func NewService(
	orders repositories.OrderRepository,
	commissions commission.Service,
	balances balance.Service,
	publisher EventPublisher,
) Service {
	return &service{
		orders:      orders,
		commissions: commissions,
		balances:    balances,
		publisher:   publisher,
	}
}

func (s *service) RecordPaid(ctx context.Context, event PaidEvent) (*models.Order, []*models.Commission, error) {
	if event.ExternalID == "" || event.BuyerID == 0 {
		return nil, nil, fmt.Errorf("%w: external_id and buyer_id are required", ErrInvalidEvent)
	}
	if event.Subtotal < 0 || event.Total < 0 {
		return nil, nil, fmt.Errorf("%w: negative amounts", ErrInvalidEvent)
	}

	ord, err := s.orders.GetByExternalID(event.ExternalID)
	switch {
	case errors.Is(err, repositories.ErrOrderNotFound):
		ord = &models.Order{
			ExternalID:    event.ExternalID,
			BuyerID:       event.BuyerID,
			Subtotal:      event.Subtotal,
			Total:         event.Total,
			PaymentStatus: models.PaymentStatusPending,
			OrderStatus:   models.OrderStatusPending,
			ReferrerID:    event.ReferrerID,
			ReferrerType:  event.ReferrerType,
		}
		if err := s.orders.Create(ord); err != nil {
			// A concurrent delivery may have created it first.
			ord, err = s.orders.GetByExternalID(event.ExternalID)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to record order %s: %w", event.ExternalID, err)
			}
		}
	case err != nil:
		return nil, nil, fmt.Errorf("failed to load order %s: %w", event.ExternalID, err)
	}

	if err := s.orders.MarkPaid(ord.ID, time.Now().UTC()); err != nil {
		if errors.Is(err, repositories.ErrInvalidOrderTransition) {
			// Already paid or beyond; distribution below stays idempotent.
			log.Printf("order %s already past pending, skipping paid transition", event.ExternalID)
		} else {
			return nil, nil, fmt.Errorf("failed to mark order %s paid: %w", event.ExternalID, err)
		}
	}

	ord, err = s.orders.GetByID(ord.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to reload order %s: %w", event.ExternalID, err)
	}
	if ord.PaymentStatus != models.PaymentStatusPaid {
		return ord, nil, nil
	}

	created, err := s.commissions.Distribute(ctx, ord)
	if err != nil {
		if errors.Is(err, commission.ErrAlreadyDistributed) {
			return ord, nil, nil
		}
		return ord, nil, err
	}
	if len(created) > 0 {
		var total float64
		for _, c := range created {
			total += c.Amount
		}
		s.publishSettlement(ctx, EventTypeCommissionsDistributed, ord, len(created), total)
	}
	return ord, created, nil
}

func (s *service) RecordCancelled(ctx context.Context, event CancelledEvent) (int, error) {
	if event.ExternalID == "" {
		return 0, fmt.Errorf("%w: external_id is required", ErrInvalidEvent)
	}

	ord, err := s.orders.GetByExternalID(event.ExternalID)
	if err != nil {
		return 0, err
	}

	if err := s.orders.MarkCancelled(ord.ID, time.Now().UTC()); err != nil {
		if errors.Is(err, repositories.ErrInvalidOrderTransition) {
			// Terminal already; re-running the reversal is safe, reversed
			// commissions are skipped.
			log.Printf("order %s already terminal, re-checking reversals", event.ExternalID)
		} else {
			return 0, fmt.Errorf("failed to cancel order %s: %w", event.ExternalID, err)
		}
	}

	reversed, err := s.balances.ReverseOrder(ctx, ord.ID)
	if err != nil {
		return reversed, err
	}
	if reversed > 0 {
		s.publishSettlement(ctx, EventTypeCommissionsReversed, ord, reversed, 0)
	}
	return reversed, nil
}

// publishSettlement is best-effort: the commissions are already committed,
// so a broker outage must not fail the ingest and trigger a redelivery.
func (s *service) publishSettlement(ctx context.Context, eventType string, ord *models.Order, count int, amount float64) {
	if s.publisher == nil {
		return
	}
	event := SettlementEvent{
		EventID:     uuid.NewString(),
		EventType:   eventType,
		OrderID:     ord.ID,
		ExternalID:  ord.ExternalID,
		Commissions: count,
		Amount:      amount,
	}
	if err := s.publisher.PublishEvent(ctx, ord.ExternalID, event); err != nil {
		log.Printf("failed to publish %s for order %s: %v", eventType, ord.ExternalID, err)
	}
}
