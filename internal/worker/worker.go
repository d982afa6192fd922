// Package worker runs the engine's background loops: the order event
// consumer and the timed release sweep that moves matured commissions from
// blocked to available.
package worker

import (
	"context"
	"errors"
	"log"
	"time"

	"rede/internal/broker"
	"rede/internal/services/balance"
	"rede/internal/services/order"
)

// OrderWorker consumes order.paid / order.cancelled events and feeds them to
// the order service. Distribution idempotency makes Kafka's at-least-once
// delivery safe here.
type OrderWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
}

func NewOrderWorker(consumer *broker.Consumer, orderService order.Service) *OrderWorker {
	eventHandler := broker.NewEventHandler()

	eventHandler.OnOrderPaid(func(ctx context.Context, event *broker.OrderPaidEvent) error {
		_, created, err := orderService.RecordPaid(ctx, event.PaidEvent)
		if err != nil {
			if errors.Is(err, order.ErrInvalidEvent) {
				// Malformed payloads never become valid, drop them.
				log.Printf("Dropping invalid order.paid event %s: %v", event.EventID, err)
				return nil
			}
			return err
		}
		if len(created) > 0 {
			log.Printf("Distributed %d commissions for order %s", len(created), event.ExternalID)
		}
		return nil
	})

	eventHandler.OnOrderCancelled(func(ctx context.Context, event *broker.OrderCancelledEvent) error {
		reversed, err := orderService.RecordCancelled(ctx, event.CancelledEvent)
		if err != nil {
			switch {
			case errors.Is(err, order.ErrInvalidEvent):
				log.Printf("Dropping invalid order.cancelled event %s: %v", event.EventID, err)
				return nil
			case errors.Is(err, order.ErrOrderNotFound):
				// Cancellation for an order we never saw paid. Nothing to
				// reverse; committing is safe.
				log.Printf("Cancellation for unknown order %s, skipping", event.ExternalID)
				return nil
			default:
				return err
			}
		}
		if reversed > 0 {
			log.Printf("Reversed %d commissions for order %s", reversed, event.ExternalID)
		}
		return nil
	})

	return &OrderWorker{
		consumer:     consumer,
		eventHandler: eventHandler,
	}
}

func (w *OrderWorker) Start(ctx context.Context) error {
	log.Println("Starting order event worker...")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

func (w *OrderWorker) Stop() error {
	log.Println("Stopping order event worker...")
	return w.consumer.Close()
}

// ReleaseWorker periodically sweeps commissions whose hold window has
// elapsed. Conflicts with a concurrent sweep are expected and simply picked
// up on the next tick.
type ReleaseWorker struct {
	balances balance.Service
	interval time.Duration
	batch    int
}

func NewReleaseWorker(balances balance.Service, interval time.Duration, batch int) *ReleaseWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	if batch <= 0 {
		batch = balance.DefaultSweepBatchSize
	}
	return &ReleaseWorker{
		balances: balances,
		interval: interval,
		batch:    batch,
	}
}

func (w *ReleaseWorker) Start(ctx context.Context) {
	log.Printf("Starting release sweep every %s (batch %d)", w.interval, w.batch)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Release sweep stopped")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

// sweep drains due commissions in batches until a run comes back empty.
func (w *ReleaseWorker) sweep(ctx context.Context) {
	for {
		result, err := w.balances.ReleaseDue(ctx, time.Now().UTC(), w.batch)
		if err != nil {
			log.Printf("Release sweep failed: %v", err)
			return
		}
		if result.Released > 0 || result.Conflicts > 0 || result.Failed > 0 {
			log.Printf("Release sweep: scanned=%d released=%d conflicts=%d failed=%d",
				result.Scanned, result.Released, result.Conflicts, result.Failed)
		}
		if result.Scanned < w.batch {
			return
		}
	}
}
