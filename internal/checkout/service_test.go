package checkout

import (
	"context"
	"errors"
	"testing"

	"fulfillment-service/internal/errs"
	"fulfillment-service/internal/models"
	"fulfillment-service/internal/payment"
	"fulfillment-service/internal/util"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOrderStore struct {
	orders      map[int64]*models.Order
	items       map[int64][]models.OrderItem
	nextOrderID int64
	nextItemID  int64
}

func newFakeOrderStore() *fakeOrderStore {
	return &fakeOrderStore{
		orders:      make(map[int64]*models.Order),
		items:       make(map[int64][]models.OrderItem),
		nextOrderID: 1,
		nextItemID:  1,
	}
}

func (f *fakeOrderStore) CreateOrder(ctx context.Context, order *models.Order) error {
	order.ID = f.nextOrderID
	f.nextOrderID++
	copied := *order
	f.orders[order.ID] = &copied
	return nil
}

func (f *fakeOrderStore) CreateOrderItem(ctx context.Context, item *models.OrderItem) error {
	item.ID = f.nextItemID
	f.nextItemID++
	f.items[item.OrderID] = append(f.items[item.OrderID], *item)
	return nil
}

func (f *fakeOrderStore) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	order, ok := f.orders[id]
	if !ok {
		return nil, errors.New("no rows")
	}
	copied := *order
	return &copied, nil
}

func (f *fakeOrderStore) GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	return f.items[orderID], nil
}

func (f *fakeOrderStore) GetOrdersByUserID(ctx context.Context, userID int64) ([]models.Order, error) {
	var out []models.Order
	for _, order := range f.orders {
		if order.UserID == userID {
			out = append(out, *order)
		}
	}
	return out, nil
}

func (f *fakeOrderStore) UpdateOrderStatus(ctx context.Context, orderID int64, status string) error {
	order, ok := f.orders[orderID]
	if !ok {
		return errors.New("no rows")
	}
	order.Status = status
	return nil
}

type fakeCart struct {
	items     []models.CartItem
	fetchErr  error
	clearErr  error
	cleared   bool
	clearedBy int64
}

func (f *fakeCart) GetCartItems(ctx context.Context, userID int64) ([]models.CartItem, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.items, nil
}

func (f *fakeCart) ClearCart(ctx context.Context, userID int64) error {
	if f.clearErr != nil {
		return f.clearErr
	}
	f.cleared = true
	f.clearedBy = userID
	return nil
}

type fakeProcessor struct {
	resp *payment.Response
	err  error
	req  *payment.ProcessPaymentRequest
}

func (f *fakeProcessor) ProcessPayment(ctx context.Context, req *payment.ProcessPaymentRequest) (*payment.Response, error) {
	f.req = req
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

type fakeOrderPublisher struct {
	events []*models.OrderCreatedEvent
}

func (f *fakeOrderPublisher) PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error {
	f.events = append(f.events, event)
	return nil
}

func twoItemCart() []models.CartItem {
	return []models.CartItem{
		{ProductID: 1, ProductName: "Widget", Quantity: 2, Price: 7.50},
		{ProductID: 2, ProductName: "Gadget", Quantity: 1, Price: 5.00},
	}
}

func newCheckoutService(orders *fakeOrderStore, cart *fakeCart, proc *fakeProcessor, pub *fakeOrderPublisher) *Service {
	metrics := util.NewMetrics(prometheus.NewRegistry())
	return NewService(orders, cart, proc, pub, metrics)
}

func TestCheckoutCODSuccess(t *testing.T) {
	orders := newFakeOrderStore()
	cart := &fakeCart{items: twoItemCart()}
	proc := &fakeProcessor{resp: &payment.Response{
		TransactionID: "TXN-ABCD1234",
		Status:        models.TxStatusSuccess,
	}}
	pub := &fakeOrderPublisher{}
	svc := newCheckoutService(orders, cart, proc, pub)

	view, err := svc.Checkout(context.Background(), 7, &Request{
		ShippingAddress: "1 Main St",
		PaymentType:     models.PaymentTypeCOD,
		DeliveryPhone:   "+15550001111",
	})
	require.NoError(t, err)

	assert.Equal(t, 20.00, view.TotalAmount)
	assert.Equal(t, models.OrderStatusPending, view.Status)
	assert.Equal(t, models.TxStatusSuccess, view.PaymentStatus)
	assert.Equal(t, "TXN-ABCD1234", view.TransactionID)
	assert.Len(t, view.Items, 2)

	// The payment request carries the computed total.
	require.NotNil(t, proc.req)
	assert.Equal(t, 20.00, proc.req.Amount)
	assert.Equal(t, view.ID, proc.req.OrderID)

	assert.True(t, cart.cleared)
	assert.Equal(t, int64(7), cart.clearedBy)

	require.Len(t, pub.events, 1)
	assert.Equal(t, view.ID, pub.events[0].OrderID)
	assert.Len(t, pub.events[0].Items, 2)
}

func TestCheckoutEmptyCart(t *testing.T) {
	orders := newFakeOrderStore()
	cart := &fakeCart{}
	svc := newCheckoutService(orders, cart, &fakeProcessor{}, &fakeOrderPublisher{})

	_, err := svc.Checkout(context.Background(), 7, &Request{ShippingAddress: "1 Main St"})
	require.Error(t, err)
	assert.Equal(t, errs.BusinessRule, errs.KindOf(err))
	assert.Empty(t, orders.orders)
}

func TestCheckoutCartUnavailable(t *testing.T) {
	orders := newFakeOrderStore()
	cart := &fakeCart{fetchErr: errs.New(errs.Upstream, "cart service unavailable")}
	svc := newCheckoutService(orders, cart, &fakeProcessor{}, &fakeOrderPublisher{})

	// An unreachable cart is distinct from an empty one.
	_, err := svc.Checkout(context.Background(), 7, &Request{ShippingAddress: "1 Main St"})
	require.Error(t, err)
	assert.Equal(t, errs.Upstream, errs.KindOf(err))
	assert.Empty(t, orders.orders)
}

func TestCheckoutWithoutPaymentType(t *testing.T) {
	orders := newFakeOrderStore()
	cart := &fakeCart{items: twoItemCart()}
	proc := &fakeProcessor{}
	svc := newCheckoutService(orders, cart, proc, &fakeOrderPublisher{})

	view, err := svc.Checkout(context.Background(), 7, &Request{ShippingAddress: "1 Main St"})
	require.NoError(t, err)

	assert.Equal(t, models.OrderStatusPending, view.Status)
	assert.Empty(t, view.PaymentStatus)
	assert.Nil(t, proc.req)
	assert.True(t, cart.cleared)
}

func TestCheckoutPaymentDeclined(t *testing.T) {
	orders := newFakeOrderStore()
	cart := &fakeCart{items: twoItemCart()}
	proc := &fakeProcessor{resp: &payment.Response{
		TransactionID: "TXN-DEAD0001",
		Status:        models.TxStatusFailed,
		StatusMessage: "Insufficient funds",
	}}
	svc := newCheckoutService(orders, cart, proc, &fakeOrderPublisher{})

	view, err := svc.Checkout(context.Background(), 7, &Request{
		ShippingAddress: "1 Main St",
		PaymentType:     models.PaymentTypeCreditCard,
		CardNumber:      "4111111111110001",
		CVV:             "123",
		ExpiryMonth:     "12",
		ExpiryYear:      "2030",
	})
	require.NoError(t, err)

	// A declined payment moves the order to PAYMENT_FAILED.
	assert.Equal(t, models.TxStatusFailed, view.PaymentStatus)
	assert.Equal(t, models.OrderStatusPaymentFailed, view.Status)
	assert.Equal(t, models.OrderStatusPaymentFailed, orders.orders[view.ID].Status)

	// The cart is still cleared.
	assert.True(t, cart.cleared)
}

func TestCheckoutPaymentCallError(t *testing.T) {
	orders := newFakeOrderStore()
	cart := &fakeCart{items: twoItemCart()}
	proc := &fakeProcessor{err: errors.New("payment store down")}
	svc := newCheckoutService(orders, cart, proc, &fakeOrderPublisher{})

	view, err := svc.Checkout(context.Background(), 7, &Request{
		ShippingAddress: "1 Main St",
		PaymentType:     models.PaymentTypeCreditCard,
		CardNumber:      "4111111111111111",
		CVV:             "123",
		ExpiryMonth:     "12",
		ExpiryYear:      "2030",
	})
	require.NoError(t, err)

	// A payment call error is not the same as a declined payment: the
	// order stays PENDING with payment status ERROR.
	assert.Equal(t, PaymentStatusError, view.PaymentStatus)
	assert.Empty(t, view.TransactionID)
	assert.Equal(t, models.OrderStatusPending, view.Status)
	assert.Equal(t, models.OrderStatusPending, orders.orders[view.ID].Status)
}

func TestCheckoutCartClearFailureDoesNotFailCheckout(t *testing.T) {
	orders := newFakeOrderStore()
	cart := &fakeCart{items: twoItemCart(), clearErr: errors.New("cart service down")}
	svc := newCheckoutService(orders, cart, &fakeProcessor{}, &fakeOrderPublisher{})

	view, err := svc.Checkout(context.Background(), 7, &Request{ShippingAddress: "1 Main St"})
	require.NoError(t, err)
	assert.NotZero(t, view.ID)
	assert.False(t, cart.cleared)
}

func TestGetOrderNotFound(t *testing.T) {
	svc := newCheckoutService(newFakeOrderStore(), &fakeCart{}, &fakeProcessor{}, &fakeOrderPublisher{})

	_, err := svc.GetOrder(context.Background(), 404)
	require.Error(t, err)
	assert.Equal(t, errs.NotFound, errs.KindOf(err))
}

func TestUpdateOrderStatusValidation(t *testing.T) {
	orders := newFakeOrderStore()
	svc := newCheckoutService(orders, &fakeCart{}, &fakeProcessor{}, &fakeOrderPublisher{})

	order := &models.Order{UserID: 7, Status: models.OrderStatusPending}
	require.NoError(t, orders.CreateOrder(context.Background(), order))

	err := svc.UpdateOrderStatus(context.Background(), order.ID, "TELEPORTED")
	require.Error(t, err)
	assert.Equal(t, errs.Validation, errs.KindOf(err))

	require.NoError(t, svc.UpdateOrderStatus(context.Background(), order.ID, models.OrderStatusShipped))
	assert.Equal(t, models.OrderStatusShipped, orders.orders[order.ID].Status)

	err = svc.UpdateOrderStatus(context.Background(), 404, models.OrderStatusShipped)
	require.Error(t, err)
	assert.Equal(t, errs.NotFound, errs.KindOf(err))
}
