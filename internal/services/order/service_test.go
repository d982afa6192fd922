package order

import (
	"context"
	"testing"
	"time"

	"rede/internal/models"
	"rede/internal/repositories"
	"rede/internal/services/balance"
	"rede/internal/services/commission"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memOrders struct {
	byID   map[uint]*models.Order
	nextID uint
}

func newMemOrders() *memOrders {
	return &memOrders{byID: make(map[uint]*models.Order)}
}

func (m *memOrders) Create(o *models.Order) error {
	for _, existing := range m.byID {
		if existing.ExternalID == o.ExternalID {
			return repositories.ErrOrderNotFound // unique violation stand-in
		}
	}
	m.nextID++
	o.ID = m.nextID
	cp := *o
	m.byID[o.ID] = &cp
	return nil
}

func (m *memOrders) GetByID(id uint) (*models.Order, error) {
	o, ok := m.byID[id]
	if !ok {
		return nil, repositories.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *memOrders) GetByExternalID(externalID string) (*models.Order, error) {
	for _, o := range m.byID {
		if o.ExternalID == externalID {
			cp := *o
			return &cp, nil
		}
	}
	return nil, repositories.ErrOrderNotFound
}

func (m *memOrders) MarkPaid(id uint, at time.Time) error {
	o, ok := m.byID[id]
	if !ok {
		return repositories.ErrOrderNotFound
	}
	if o.OrderStatus != models.OrderStatusPending {
		return repositories.ErrInvalidOrderTransition
	}
	o.PaymentStatus = models.PaymentStatusPaid
	o.OrderStatus = models.OrderStatusPaid
	o.PaidAt = &at
	return nil
}

func (m *memOrders) MarkCancelled(id uint, at time.Time) error {
	o, ok := m.byID[id]
	if !ok {
		return repositories.ErrOrderNotFound
	}
	if o.OrderStatus.Terminal() {
		return repositories.ErrInvalidOrderTransition
	}
	o.OrderStatus = models.OrderStatusCancelled
	o.CancelledAt = &at
	return nil
}

func (m *memOrders) ListByBuyer(buyerID uint, limit, offset int) ([]*models.Order, int64, error) {
	var matches []*models.Order
	for _, o := range m.byID {
		if o.BuyerID == buyerID {
			cp := *o
			matches = append(matches, &cp)
		}
	}
	total := int64(len(matches))
	if offset >= len(matches) {
		return nil, total, nil
	}
	matches = matches[offset:]
	if limit > 0 && limit < len(matches) {
		matches = matches[:limit]
	}
	return matches, total, nil
}

// spyDistributor counts Distribute calls and mimics the real idempotency.
type spyDistributor struct {
	calls       int
	distributed map[uint]bool
}

func (s *spyDistributor) Distribute(ctx context.Context, order *models.Order) ([]*models.Commission, error) {
	s.calls++
	if s.distributed == nil {
		s.distributed = make(map[uint]bool)
	}
	if s.distributed[order.ID] {
		return nil, commission.ErrAlreadyDistributed
	}
	s.distributed[order.ID] = true
	return []*models.Commission{{OrderID: order.ID, Amount: 10}}, nil
}

// spyBalances only supports ReverseOrder.
type spyBalances struct {
	balance.Service
	reversedOrders []uint
}

func (s *spyBalances) ReverseOrder(ctx context.Context, orderID uint) (int, error) {
	s.reversedOrders = append(s.reversedOrders, orderID)
	return 2, nil
}

// spyPublisher records published settlement events.
type spyPublisher struct {
	events []SettlementEvent
	err    error
}

func (s *spyPublisher) PublishEvent(ctx context.Context, key string, event interface{}) error {
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, event.(SettlementEvent))
	return nil
}

func TestRecordPaid(t *testing.T) {
	orders := newMemOrders()
	distributor := &spyDistributor{}
	svc := NewService(orders, distributor, &spyBalances{}, nil)

	event := PaidEvent{ExternalID: "ext-1", BuyerID: 5, Subtotal: 100, Total: 120}
	ord, created, err := svc.RecordPaid(context.Background(), event)
	require.NoError(t, err)
	require.NotNil(t, ord)
	assert.Equal(t, models.PaymentStatusPaid, ord.PaymentStatus)
	assert.NotNil(t, ord.PaidAt)
	assert.Len(t, created, 1)
	assert.Equal(t, 1, distributor.calls)

	stored, err := orders.GetByExternalID("ext-1")
	require.NoError(t, err)
	assert.Equal(t, uint(5), stored.BuyerID)
	assert.Equal(t, 100.0, stored.Subtotal)
}

func TestRecordPaid_DuplicateDelivery(t *testing.T) {
	orders := newMemOrders()
	distributor := &spyDistributor{}
	svc := NewService(orders, distributor, &spyBalances{}, nil)
	ctx := context.Background()

	event := PaidEvent{ExternalID: "ext-1", BuyerID: 5, Subtotal: 100, Total: 120}
	_, created, err := svc.RecordPaid(ctx, event)
	require.NoError(t, err)
	assert.Len(t, created, 1)

	// Redelivery: transition is skipped, distribution reports duplicate,
	// the caller sees a clean no-op.
	_, created, err = svc.RecordPaid(ctx, event)
	require.NoError(t, err)
	assert.Empty(t, created)
	assert.Len(t, orders.byID, 1, "no duplicate order rows")
}

func TestRecordPaid_Validation(t *testing.T) {
	svc := NewService(newMemOrders(), &spyDistributor{}, &spyBalances{}, nil)
	ctx := context.Background()

	_, _, err := svc.RecordPaid(ctx, PaidEvent{BuyerID: 5})
	assert.ErrorIs(t, err, ErrInvalidEvent)

	_, _, err = svc.RecordPaid(ctx, PaidEvent{ExternalID: "x"})
	assert.ErrorIs(t, err, ErrInvalidEvent)

	_, _, err = svc.RecordPaid(ctx, PaidEvent{ExternalID: "x", BuyerID: 5, Subtotal: -1})
	assert.ErrorIs(t, err, ErrInvalidEvent)
}

func TestRecordCancelled(t *testing.T) {
	orders := newMemOrders()
	distributor := &spyDistributor{}
	balances := &spyBalances{}
	svc := NewService(orders, distributor, balances, nil)
	ctx := context.Background()

	_, _, err := svc.RecordPaid(ctx, PaidEvent{ExternalID: "ext-1", BuyerID: 5, Subtotal: 100, Total: 120})
	require.NoError(t, err)

	reversed, err := svc.RecordCancelled(ctx, CancelledEvent{ExternalID: "ext-1"})
	require.NoError(t, err)
	assert.Equal(t, 2, reversed)
	require.Len(t, balances.reversedOrders, 1)

	stored, _ := orders.GetByExternalID("ext-1")
	assert.Equal(t, models.OrderStatusCancelled, stored.OrderStatus)
	assert.NotNil(t, stored.CancelledAt)

	// Redelivered cancellation re-runs the (idempotent) reversal.
	_, err = svc.RecordCancelled(ctx, CancelledEvent{ExternalID: "ext-1"})
	require.NoError(t, err)
	assert.Len(t, balances.reversedOrders, 2)
}

func TestSettlementEvents(t *testing.T) {
	orders := newMemOrders()
	balances := &spyBalances{}
	publisher := &spyPublisher{}
	svc := NewService(orders, &spyDistributor{}, balances, publisher)
	ctx := context.Background()

	event := PaidEvent{ExternalID: "ext-1", BuyerID: 5, Subtotal: 100, Total: 120}
	_, _, err := svc.RecordPaid(ctx, event)
	require.NoError(t, err)

	require.Len(t, publisher.events, 1)
	distributed := publisher.events[0]
	assert.Equal(t, EventTypeCommissionsDistributed, distributed.EventType)
	assert.Equal(t, "ext-1", distributed.ExternalID)
	assert.Equal(t, 1, distributed.Commissions)
	assert.Equal(t, 10.0, distributed.Amount)
	assert.NotEmpty(t, distributed.EventID)

	// Redelivery creates no commissions, so nothing is announced.
	_, _, err = svc.RecordPaid(ctx, event)
	require.NoError(t, err)
	assert.Len(t, publisher.events, 1)

	_, err = svc.RecordCancelled(ctx, CancelledEvent{ExternalID: "ext-1"})
	require.NoError(t, err)
	require.Len(t, publisher.events, 2)
	assert.Equal(t, EventTypeCommissionsReversed, publisher.events[1].EventType)
	assert.Equal(t, 2, publisher.events[1].Commissions)
}

func TestSettlementEvents_PublishFailureIsNotFatal(t *testing.T) {
	orders := newMemOrders()
	publisher := &spyPublisher{err: context.DeadlineExceeded}
	svc := NewService(orders, &spyDistributor{}, &spyBalances{}, publisher)

	ord, created, err := svc.RecordPaid(context.Background(), PaidEvent{
		ExternalID: "ext-1", BuyerID: 5, Subtotal: 100, Total: 120,
	})
	require.NoError(t, err, "broker outage must not fail the ingest")
	assert.Equal(t, models.PaymentStatusPaid, ord.PaymentStatus)
	assert.Len(t, created, 1)
}

func TestRecordCancelled_UnknownOrder(t *testing.T) {
	svc := NewService(newMemOrders(), &spyDistributor{}, &spyBalances{}, nil)

	_, err := svc.RecordCancelled(context.Background(), CancelledEvent{ExternalID: "nope"})
	assert.ErrorIs(t, err, ErrOrderNotFound)
}
