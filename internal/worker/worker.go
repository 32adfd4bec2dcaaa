// Package worker hosts the background consumers driven by order events.
package worker

import (
	"context"
	"fmt"
	"time"

	"fulfillment-service/internal/broker"
	"fulfillment-service/internal/inventory"
	"fulfillment-service/internal/models"
	"fulfillment-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ReservationEngine reserves stock for an order's items.
type ReservationEngine interface {
	Reserve(ctx context.Context, orderID string, items []models.ReservationItem) (string, error)
}

// ReservationPublisher publishes reservation outcome events.
type ReservationPublisher interface {
	PublishStockReserved(ctx context.Context, event *models.StockReservedEvent) error
	PublishReservationFailed(ctx context.Context, event *models.ReservationFailedEvent) error
}

// ReservationWorker consumes OrderCreated events and reserves stock for each
// order. The order identifier doubles as the idempotency key, so consumer
// redeliveries are harmless.
type ReservationWorker struct {
	consumer  *broker.Consumer
	engine    ReservationEngine
	publisher ReservationPublisher
	logger    *zap.Logger
}

// NewReservationWorker creates a reservation worker
func NewReservationWorker(consumer *broker.Consumer, engine ReservationEngine, publisher ReservationPublisher) *ReservationWorker {
	return &ReservationWorker{
		consumer:  consumer,
		engine:    engine,
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// Start consumes events until ctx is cancelled
func (w *ReservationWorker) Start(ctx context.Context) error {
	handler := broker.NewEventHandler()
	handler.OnOrderCreated(w.handleOrderCreated)
	return w.consumer.StartConsuming(ctx, handler.HandleMessage)
}

// Stop closes the underlying consumer
func (w *ReservationWorker) Stop() error {
	return w.consumer.Close()
}

func (w *ReservationWorker) handleOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error {
	orderID := fmt.Sprintf("order-%d", event.OrderID)
	items := make([]models.ReservationItem, 0, len(event.Items))
	for _, item := range event.Items {
		items = append(items, models.ReservationItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		})
	}

	w.logger.Info("Reserving stock for order",
		zap.Int64("order_id", event.OrderID),
		zap.Int("items", len(items)))

	_, err := w.engine.Reserve(ctx, orderID, items)
	if err != nil {
		if inventory.IsRetryableConflict(err) {
			// Returning the error leaves the offset uncommitted so the
			// message is redelivered for another round of attempts.
			w.logger.Warn("Reservation conflict, will retry on redelivery",
				zap.Int64("order_id", event.OrderID))
			return err
		}
		w.logger.Warn("Reservation failed",
			zap.Int64("order_id", event.OrderID),
			zap.Error(err))
		w.publishFailed(ctx, event.OrderID, err.Error())
		return nil
	}

	w.publishReserved(ctx, event.OrderID)
	return nil
}

func (w *ReservationWorker) publishReserved(ctx context.Context, orderID int64) {
	event := &models.StockReservedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeStockReserved,
			Timestamp: time.Now(),
		},
		OrderID: orderID,
	}
	if err := w.publisher.PublishStockReserved(ctx, event); err != nil {
		w.logger.Error("Failed to publish StockReserved event", zap.Error(err))
	}
}

func (w *ReservationWorker) publishFailed(ctx context.Context, orderID int64, reason string) {
	event := &models.ReservationFailedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeReservationFailed,
			Timestamp: time.Now(),
		},
		OrderID: orderID,
		Reason:  reason,
	}
	if err := w.publisher.PublishReservationFailed(ctx, event); err != nil {
		w.logger.Error("Failed to publish ReservationFailed event", zap.Error(err))
	}
}

// OrderUpdater updates the persisted status of an order.
type OrderUpdater interface {
	UpdateOrderStatus(ctx context.Context, orderID int64, status string) error
}

// OrderStatusWorker consumes payment outcome events and moves the order to
// its terminal payment state.
type OrderStatusWorker struct {
	consumer *broker.Consumer
	orders   OrderUpdater
	logger   *zap.Logger
}

// NewOrderStatusWorker creates an order status worker
func NewOrderStatusWorker(consumer *broker.Consumer, orders OrderUpdater) *OrderStatusWorker {
	return &OrderStatusWorker{
		consumer: consumer,
		orders:   orders,
		logger:   util.GetLogger(),
	}
}

// Start consumes events until ctx is cancelled
func (w *OrderStatusWorker) Start(ctx context.Context) error {
	handler := broker.NewEventHandler()
	handler.OnPaymentSucceeded(w.handlePaymentSucceeded)
	handler.OnPaymentFailed(w.handlePaymentFailed)
	return w.consumer.StartConsuming(ctx, handler.HandleMessage)
}

// Stop closes the underlying consumer
func (w *OrderStatusWorker) Stop() error {
	return w.consumer.Close()
}

func (w *OrderStatusWorker) handlePaymentSucceeded(ctx context.Context, event *models.PaymentSucceededEvent) error {
	w.logger.Info("Payment succeeded, marking order paid",
		zap.Int64("order_id", event.OrderID),
		zap.String("transaction_id", event.TransactionID))
	return w.setStatus(ctx, event.OrderID, models.OrderStatusPaid)
}

func (w *OrderStatusWorker) handlePaymentFailed(ctx context.Context, event *models.PaymentFailedEvent) error {
	w.logger.Info("Payment failed, marking order",
		zap.Int64("order_id", event.OrderID),
		zap.String("reason", event.Reason))
	return w.setStatus(ctx, event.OrderID, models.OrderStatusPaymentFailed)
}

func (w *OrderStatusWorker) setStatus(ctx context.Context, orderID int64, status string) error {
	if err := w.orders.UpdateOrderStatus(ctx, orderID, status); err != nil {
		w.logger.Error("Failed to update order status",
			zap.Int64("order_id", orderID),
			zap.String("status", status),
			zap.Error(err))
		return err
	}
	return nil
}
