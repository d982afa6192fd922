package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"rede/internal/services/order"

	"github.com/segmentio/kafka-go"
)

// Event types carried on the order.events topic.
const (
	EventTypeOrderPaid      = "order.paid"
	EventTypeOrderCancelled = "order.cancelled"
)

// BaseEvent is the envelope every message on the topic shares.
type BaseEvent struct {
	EventID   string `json:"event_id"`
	EventType string `json:"event_type"`
}

// OrderPaidEvent is the full order.paid payload.
type OrderPaidEvent struct {
	BaseEvent
	order.PaidEvent
}

// OrderCancelledEvent is the full order.cancelled payload.
type OrderCancelledEvent struct {
	BaseEvent
	order.CancelledEvent
}

// EventHandler routes decoded order events to the registered callbacks.
type EventHandler struct {
	onOrderPaid      func(context.Context, *OrderPaidEvent) error
	onOrderCancelled func(context.Context, *OrderCancelledEvent) error
}

func NewEventHandler() *EventHandler {
	return &EventHandler{}
}

func (eh *EventHandler) OnOrderPaid(handler func(context.Context, *OrderPaidEvent) error) {
	eh.onOrderPaid = handler
}

func (eh *EventHandler) OnOrderCancelled(handler func(context.Context, *OrderCancelledEvent) error) {
	eh.onOrderCancelled = handler
}

// HandleMessage decodes the envelope and dispatches on event type. Unknown
// types are logged and committed so a topic shared with other consumers
// never wedges this one.
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	switch baseEvent.EventType {
	case EventTypeOrderPaid:
		if eh.onOrderPaid != nil {
			var event OrderPaidEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal order.paid event: %w", err)
			}
			return eh.onOrderPaid(ctx, &event)
		}

	case EventTypeOrderCancelled:
		if eh.onOrderCancelled != nil {
			var event OrderCancelledEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal order.cancelled event: %w", err)
			}
			return eh.onOrderCancelled(ctx, &event)
		}

	default:
		log.Printf("Unhandled event type: %s", baseEvent.EventType)
	}

	return nil
}
