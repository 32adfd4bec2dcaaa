package models

import "time"

// Product represents a catalog product with its stock row. Version is the
// optimistic-lock token: every successful stock write increments it.
type Product struct {
	ID            int64     `db:"id" json:"id"`
	Name          string    `db:"name" json:"name"`
	Price         float64   `db:"price" json:"price"`
	StockQuantity int       `db:"stock_quantity" json:"stockQuantity"`
	Version       int64     `db:"version" json:"-"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time `db:"updated_at" json:"updatedAt"`
}

// StockChange is one pending stock write, conditioned on the version
// captured when the row was read.
type StockChange struct {
	ProductID   int64
	NewQuantity int
	Version     int64
}

// Reservation is the idempotency record for a stock reservation. The status
// is terminal and overwritten on re-attempts; there is no attempt history.
type Reservation struct {
	OrderID   string    `db:"order_id" json:"orderId"`
	Status    string    `db:"status" json:"status"`
	Detail    string    `db:"detail" json:"detail,omitempty"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// ReservationItem is one line of a reservation request.
type ReservationItem struct {
	ProductID int64 `json:"productId" binding:"required"`
	Quantity  int   `json:"quantity" binding:"required,min=1"`
}

// Reservation statuses
const (
	ReservationProcessed = "PROCESSED"
	ReservationFailed    = "FAILED"
)

// Order represents a customer order created at checkout.
type Order struct {
	ID              int64     `db:"id" json:"id"`
	UserID          int64     `db:"user_id" json:"userId"`
	OrderDate       time.Time `db:"order_date" json:"orderDate"`
	Status          string    `db:"status" json:"status"`
	TotalAmount     float64   `db:"total_amount" json:"totalAmount"`
	ShippingAddress string    `db:"shipping_address" json:"shippingAddress"`
}

// OrderItem represents one line of an order.
type OrderItem struct {
	ID          int64   `db:"id" json:"id"`
	OrderID     int64   `db:"order_id" json:"orderId"`
	ProductID   int64   `db:"product_id" json:"productId"`
	ProductName string  `db:"product_name" json:"productName"`
	Quantity    int     `db:"quantity" json:"quantity"`
	Price       float64 `db:"price" json:"price"`
}

// Order statuses
const (
	OrderStatusPending       = "PENDING"
	OrderStatusPaid          = "PAID"
	OrderStatusPaymentFailed = "PAYMENT_FAILED"
	OrderStatusShipped       = "SHIPPED"
	OrderStatusDelivered     = "DELIVERED"
	OrderStatusCancelled     = "CANCELLED"
)

// CartItem is what the cart service returns for one cart line.
type CartItem struct {
	ProductID   int64   `json:"productId"`
	ProductName string  `json:"productName"`
	Quantity    int     `json:"quantity"`
	Price       float64 `json:"price"`
}

// PaymentMethod is a stored payment instrument. Card numbers are stored
// masked only.
type PaymentMethod struct {
	ID               int64     `db:"id" json:"id"`
	UserID           int64     `db:"user_id" json:"userId"`
	Type             string    `db:"type" json:"type"`
	CardHolderName   *string   `db:"card_holder_name" json:"cardHolderName,omitempty"`
	MaskedCardNumber *string   `db:"masked_card_number" json:"maskedCardNumber,omitempty"`
	CardBrand        *string   `db:"card_brand" json:"cardBrand,omitempty"`
	ExpiryMonth      *string   `db:"expiry_month" json:"expiryMonth,omitempty"`
	ExpiryYear       *string   `db:"expiry_year" json:"expiryYear,omitempty"`
	PhoneNumber      *string   `db:"phone_number" json:"phoneNumber,omitempty"`
	IsDefault        bool      `db:"is_default" json:"isDefault"`
	CreatedAt        time.Time `db:"created_at" json:"createdAt"`
}

// Payment types
const (
	PaymentTypeCreditCard = "CREDIT_CARD"
	PaymentTypeDebitCard  = "DEBIT_CARD"
	PaymentTypeCOD        = "COD"
)

// PaymentTransaction is one payment attempt for an order. It is created in
// PROCESSING before the gateway call and finalized exactly once.
type PaymentTransaction struct {
	ID               int64      `db:"id" json:"-"`
	TransactionID    string     `db:"transaction_id" json:"transactionId"`
	OrderID          int64      `db:"order_id" json:"orderId"`
	UserID           int64      `db:"user_id" json:"userId"`
	Amount           float64    `db:"amount" json:"amount"`
	Currency         string     `db:"currency" json:"currency"`
	PaymentType      string     `db:"payment_type" json:"paymentType"`
	PaymentMethodID  *int64     `db:"payment_method_id" json:"paymentMethodId,omitempty"`
	MaskedCardNumber *string    `db:"masked_card_number" json:"maskedCardNumber,omitempty"`
	CardBrand        *string    `db:"card_brand" json:"cardBrand,omitempty"`
	Status           string     `db:"status" json:"status"`
	StatusMessage    string     `db:"status_message" json:"statusMessage"`
	GatewayReference *string    `db:"gateway_reference" json:"gatewayReference,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"createdAt"`
	ProcessedAt      *time.Time `db:"processed_at" json:"processedAt,omitempty"`
}

// Transaction statuses
const (
	TxStatusPending    = "PENDING"
	TxStatusProcessing = "PROCESSING"
	TxStatusSuccess    = "SUCCESS"
	TxStatusFailed     = "FAILED"
	TxStatusRefunded   = "REFUNDED"
	TxStatusCancelled  = "CANCELLED"
)
