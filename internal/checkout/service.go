// Package checkout sequences cart, order creation and payment without a
// distributed-transaction coordinator. Each remote call fails on its own;
// nothing here assumes atomicity across services.
package checkout

import (
	"context"
	"time"

	"fulfillment-service/internal/errs"
	"fulfillment-service/internal/models"
	"fulfillment-service/internal/payment"
	"fulfillment-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PaymentStatusError marks a payment call that errored before producing a
// transaction outcome. The order itself stays PENDING in that case, unlike
// a gateway-declined payment which moves it to PAYMENT_FAILED. The split is
// deliberate, matching the behavior this service replaces.
const PaymentStatusError = "ERROR"

// OrderStore is the order persistence checkout needs.
type OrderStore interface {
	CreateOrder(ctx context.Context, order *models.Order) error
	CreateOrderItem(ctx context.Context, item *models.OrderItem) error
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error)
	GetOrdersByUserID(ctx context.Context, userID int64) ([]models.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID int64, status string) error
}

// CartClient is the external cart service.
type CartClient interface {
	GetCartItems(ctx context.Context, userID int64) ([]models.CartItem, error)
	ClearCart(ctx context.Context, userID int64) error
}

// PaymentProcessor runs a payment attempt for the order.
type PaymentProcessor interface {
	ProcessPayment(ctx context.Context, req *payment.ProcessPaymentRequest) (*payment.Response, error)
}

// EventPublisher publishes order lifecycle events.
type EventPublisher interface {
	PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error
}

// Request is one checkout call. PaymentType empty means no payment is
// attempted at checkout.
type Request struct {
	ShippingAddress string `json:"shippingAddress" binding:"required"`
	PaymentType     string `json:"paymentType,omitempty"`
	PaymentMethodID *int64 `json:"paymentMethodId,omitempty"`
	CardNumber      string `json:"cardNumber,omitempty"`
	CVV             string `json:"cvv,omitempty"`
	ExpiryMonth     string `json:"expiryMonth,omitempty"`
	ExpiryYear      string `json:"expiryYear,omitempty"`
	DeliveryPhone   string `json:"deliveryPhone,omitempty"`
}

// OrderView is the order returned to the caller, with payment fields set
// when a payment was attempted.
type OrderView struct {
	models.Order
	Items         []models.OrderItem `json:"items"`
	PaymentStatus string             `json:"paymentStatus,omitempty"`
	TransactionID string             `json:"transactionId,omitempty"`
}

type Service struct {
	orders    OrderStore
	cart      CartClient
	payments  PaymentProcessor
	publisher EventPublisher
	metrics   *util.Metrics
	logger    *zap.Logger
}

// NewService creates the checkout orchestrator.
func NewService(orders OrderStore, cart CartClient, payments PaymentProcessor, publisher EventPublisher, metrics *util.Metrics) *Service {
	return &Service{
		orders:    orders,
		cart:      cart,
		payments:  payments,
		publisher: publisher,
		metrics:   metrics,
		logger:    util.GetLogger(),
	}
}

// Checkout converts the user's cart into an order and, when a payment type
// is supplied, runs the payment. The cart is cleared best-effort regardless
// of the payment outcome. Stock reservation is a separate call keyed by the
// order identifier; a later payment failure does not release stock.
func (s *Service) Checkout(ctx context.Context, userID int64, req *Request) (*OrderView, error) {
	ctx, span := util.StartSpan(ctx, "checkout.Checkout")
	defer span.End()

	s.logger.Info("Processing checkout", zap.Int64("user_id", userID))

	cartItems, err := s.cart.GetCartItems(ctx, userID)
	if err != nil {
		s.metrics.OrdersFailedTotal.WithLabelValues("cart_unavailable").Inc()
		return nil, err
	}
	if len(cartItems) == 0 {
		s.metrics.OrdersFailedTotal.WithLabelValues("cart_empty").Inc()
		return nil, errs.New(errs.BusinessRule, "Cart is empty")
	}

	var total float64
	for _, item := range cartItems {
		total += item.Price * float64(item.Quantity)
	}

	order := &models.Order{
		UserID:          userID,
		Status:          models.OrderStatusPending,
		TotalAmount:     total,
		ShippingAddress: req.ShippingAddress,
	}
	if err := s.orders.CreateOrder(ctx, order); err != nil {
		s.metrics.OrdersFailedTotal.WithLabelValues("db_error").Inc()
		return nil, errs.Wrap(errs.Internal, err, "failed to create order")
	}

	items := make([]models.OrderItem, 0, len(cartItems))
	for _, cartItem := range cartItems {
		item := models.OrderItem{
			OrderID:     order.ID,
			ProductID:   cartItem.ProductID,
			ProductName: cartItem.ProductName,
			Quantity:    cartItem.Quantity,
			Price:       cartItem.Price,
		}
		if err := s.orders.CreateOrderItem(ctx, &item); err != nil {
			return nil, errs.Wrap(errs.Internal, err, "failed to create order item")
		}
		items = append(items, item)
	}

	s.metrics.OrdersCreatedTotal.Inc()
	s.logger.Info("Order created",
		zap.Int64("order_id", order.ID),
		zap.Float64("total", total))

	s.publishOrderCreated(ctx, order, items)

	view := &OrderView{Order: *order, Items: items}

	if req.PaymentType != "" {
		s.runPayment(ctx, view, req, total)
	}

	// best effort: a failed clear is logged, checkout still succeeds
	if err := s.cart.ClearCart(ctx, userID); err != nil {
		s.metrics.CartClearFailedTotal.Inc()
		s.logger.Error("Failed to clear cart",
			zap.Int64("user_id", userID),
			zap.Error(err))
	}

	return view, nil
}

// runPayment invokes the payment engine. A declined payment moves the order
// to PAYMENT_FAILED; an error from the payment call records payment status
// ERROR and leaves the order PENDING.
func (s *Service) runPayment(ctx context.Context, view *OrderView, req *Request, total float64) {
	resp, err := s.payments.ProcessPayment(ctx, &payment.ProcessPaymentRequest{
		OrderID:         view.ID,
		UserID:          view.UserID,
		Amount:          total,
		Currency:        "USD",
		PaymentType:     req.PaymentType,
		PaymentMethodID: req.PaymentMethodID,
		CardNumber:      req.CardNumber,
		CVV:             req.CVV,
		ExpiryMonth:     req.ExpiryMonth,
		ExpiryYear:      req.ExpiryYear,
		DeliveryPhone:   req.DeliveryPhone,
	})
	if err != nil {
		s.logger.Error("Payment call failed",
			zap.Int64("order_id", view.ID),
			zap.Error(err))
		view.PaymentStatus = PaymentStatusError
		return
	}

	view.PaymentStatus = resp.Status
	view.TransactionID = resp.TransactionID

	if resp.Status == models.TxStatusFailed {
		if err := s.orders.UpdateOrderStatus(ctx, view.ID, models.OrderStatusPaymentFailed); err != nil {
			s.logger.Error("Failed to mark order payment-failed",
				zap.Int64("order_id", view.ID),
				zap.Error(err))
			return
		}
		view.Status = models.OrderStatusPaymentFailed
	}
}

// GetOrder returns the order with its items.
func (s *Service) GetOrder(ctx context.Context, orderID int64) (*OrderView, error) {
	order, err := s.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, errs.Wrap(errs.NotFound, err, "Order not found")
	}

	items, err := s.orders.GetOrderItemsByOrderID(ctx, orderID)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "failed to load order items")
	}

	return &OrderView{Order: *order, Items: items}, nil
}

// GetUserOrders returns the user's orders, newest first.
func (s *Service) GetUserOrders(ctx context.Context, userID int64) ([]models.Order, error) {
	orders, err := s.orders.GetOrdersByUserID(ctx, userID)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "failed to load orders")
	}
	return orders, nil
}

// UpdateOrderStatus sets a new order status after validating it.
func (s *Service) UpdateOrderStatus(ctx context.Context, orderID int64, status string) error {
	switch status {
	case models.OrderStatusPending, models.OrderStatusPaid, models.OrderStatusPaymentFailed,
		models.OrderStatusShipped, models.OrderStatusDelivered, models.OrderStatusCancelled:
	default:
		return errs.New(errs.Validation, "unknown order status: %s", status)
	}

	if err := s.orders.UpdateOrderStatus(ctx, orderID, status); err != nil {
		return errs.Wrap(errs.NotFound, err, "Order not found")
	}
	return nil
}

func (s *Service) publishOrderCreated(ctx context.Context, order *models.Order, items []models.OrderItem) {
	if s.publisher == nil {
		return
	}

	eventItems := make([]models.EventItemData, 0, len(items))
	for _, item := range items {
		eventItems = append(eventItems, models.EventItemData{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price,
		})
	}

	event := &models.OrderCreatedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderCreated,
			Timestamp: time.Now(),
		},
		OrderID:     order.ID,
		UserID:      order.UserID,
		TotalAmount: order.TotalAmount,
		Items:       eventItems,
	}

	if err := s.publisher.PublishOrderCreated(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderCreated event", zap.Error(err))
	}
}
