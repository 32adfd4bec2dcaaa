package worker

import (
	"context"
	"errors"
	"testing"

	"fulfillment-service/internal/errs"
	"fulfillment-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEngine struct {
	orderID string
	items   []models.ReservationItem
	err     error
}

func (f *fakeEngine) Reserve(ctx context.Context, orderID string, items []models.ReservationItem) (string, error) {
	f.orderID = orderID
	f.items = items
	return "", f.err
}

type capturingPublisher struct {
	reserved []*models.StockReservedEvent
	failed   []*models.ReservationFailedEvent
}

func (c *capturingPublisher) PublishStockReserved(ctx context.Context, event *models.StockReservedEvent) error {
	c.reserved = append(c.reserved, event)
	return nil
}

func (c *capturingPublisher) PublishReservationFailed(ctx context.Context, event *models.ReservationFailedEvent) error {
	c.failed = append(c.failed, event)
	return nil
}

func orderCreated(orderID int64) *models.OrderCreatedEvent {
	return &models.OrderCreatedEvent{
		BaseEvent: models.BaseEvent{EventType: models.EventTypeOrderCreated},
		OrderID:   orderID,
		UserID:    7,
		Items: []models.EventItemData{
			{ProductID: 1, Quantity: 2, Price: 7.5},
			{ProductID: 2, Quantity: 1, Price: 5.0},
		},
	}
}

func TestHandleOrderCreatedReserves(t *testing.T) {
	engine := &fakeEngine{}
	pub := &capturingPublisher{}
	w := NewReservationWorker(nil, engine, pub)

	err := w.handleOrderCreated(context.Background(), orderCreated(42))
	require.NoError(t, err)

	assert.Equal(t, "order-42", engine.orderID)
	require.Len(t, engine.items, 2)
	assert.Equal(t, int64(1), engine.items[0].ProductID)
	assert.Equal(t, 2, engine.items[0].Quantity)

	require.Len(t, pub.reserved, 1)
	assert.Equal(t, int64(42), pub.reserved[0].OrderID)
	assert.Empty(t, pub.failed)
}

func TestHandleOrderCreatedBusinessFailure(t *testing.T) {
	engine := &fakeEngine{err: errs.New(errs.BusinessRule, "Insufficient stock for product ID: 1")}
	pub := &capturingPublisher{}
	w := NewReservationWorker(nil, engine, pub)

	// Business failures are terminal: the message is consumed and a
	// failure event goes out instead of a redelivery.
	err := w.handleOrderCreated(context.Background(), orderCreated(43))
	require.NoError(t, err)

	require.Len(t, pub.failed, 1)
	assert.Equal(t, int64(43), pub.failed[0].OrderID)
	assert.Contains(t, pub.failed[0].Reason, "Insufficient stock")
	assert.Empty(t, pub.reserved)
}

func TestHandleOrderCreatedConflictIsRedelivered(t *testing.T) {
	engine := &fakeEngine{err: errs.New(errs.Conflict, "reservation failed due to concurrent stock updates")}
	pub := &capturingPublisher{}
	w := NewReservationWorker(nil, engine, pub)

	err := w.handleOrderCreated(context.Background(), orderCreated(44))
	require.Error(t, err)
	assert.Empty(t, pub.reserved)
	assert.Empty(t, pub.failed)
}

type fakeUpdater struct {
	statuses map[int64]string
	err      error
}

func (f *fakeUpdater) UpdateOrderStatus(ctx context.Context, orderID int64, status string) error {
	if f.err != nil {
		return f.err
	}
	if f.statuses == nil {
		f.statuses = make(map[int64]string)
	}
	f.statuses[orderID] = status
	return nil
}

func TestOrderStatusWorkerPaymentOutcomes(t *testing.T) {
	updater := &fakeUpdater{}
	w := NewOrderStatusWorker(nil, updater)

	err := w.handlePaymentSucceeded(context.Background(), &models.PaymentSucceededEvent{OrderID: 1, TransactionID: "TXN-1"})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPaid, updater.statuses[1])

	err = w.handlePaymentFailed(context.Background(), &models.PaymentFailedEvent{OrderID: 2, TransactionID: "TXN-2", Reason: "Insufficient funds"})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPaymentFailed, updater.statuses[2])
}

func TestOrderStatusWorkerPropagatesStoreError(t *testing.T) {
	updater := &fakeUpdater{err: errors.New("db down")}
	w := NewOrderStatusWorker(nil, updater)

	err := w.handlePaymentSucceeded(context.Background(), &models.PaymentSucceededEvent{OrderID: 1})
	assert.Error(t, err)
}
