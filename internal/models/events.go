package models

import "time"

// Event types
const (
	EventTypeOrderCreated      = "ORDER_CREATED"
	EventTypeStockReserved     = "STOCK_RESERVED"
	EventTypeReservationFailed = "RESERVATION_FAILED"
	EventTypePaymentSucceeded  = "PAYMENT_SUCCEEDED"
	EventTypePaymentFailed     = "PAYMENT_FAILED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderCreatedEvent published when checkout creates an order. It drives the
// decoupled reservation path keyed by the order identifier.
type OrderCreatedEvent struct {
	BaseEvent
	OrderID     int64           `json:"order_id"`
	UserID      int64           `json:"user_id"`
	TotalAmount float64         `json:"total_amount"`
	Items       []EventItemData `json:"items"`
}

// StockReservedEvent published after inventory is decremented for an order.
type StockReservedEvent struct {
	BaseEvent
	OrderID int64 `json:"order_id"`
}

// ReservationFailedEvent published when a reservation attempt fails.
type ReservationFailedEvent struct {
	BaseEvent
	OrderID int64  `json:"order_id"`
	Reason  string `json:"reason"`
}

// PaymentSucceededEvent published when a payment transaction finalizes SUCCESS.
type PaymentSucceededEvent struct {
	BaseEvent
	OrderID       int64   `json:"order_id"`
	TransactionID string  `json:"transaction_id"`
	Amount        float64 `json:"amount"`
}

// PaymentFailedEvent published when a payment transaction finalizes FAILED.
type PaymentFailedEvent struct {
	BaseEvent
	OrderID       int64  `json:"order_id"`
	TransactionID string `json:"transaction_id"`
	Reason        string `json:"reason"`
}

// EventItemData represents item data in events
type EventItemData struct {
	ProductID int64   `json:"product_id"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}
