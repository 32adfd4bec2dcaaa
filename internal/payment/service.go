// Package payment owns the payment-transaction state machine and stored
// payment methods. Transactions are created PROCESSING before the gateway
// call and finalized exactly once.
package payment

import (
	"context"
	"strings"
	"time"

	"fulfillment-service/internal/errs"
	"fulfillment-service/internal/gateway"
	"fulfillment-service/internal/models"
	"fulfillment-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Simulated card used when paying with a stored method; real systems would
// hold a gateway token instead of card data.
const (
	storedMethodCardNumber = "4111111111111111"
	storedMethodCVV        = "123"
)

// Store is the persistence the engine needs.
type Store interface {
	CreateTransaction(ctx context.Context, tx *models.PaymentTransaction) error
	FinalizeTransaction(ctx context.Context, transactionID, status, statusMessage string, gatewayRef *string, processedAt time.Time) error
	UpdateTransactionCard(ctx context.Context, transactionID string, methodID *int64, maskedCard, brand string) error
	GetTransactionByID(ctx context.Context, transactionID string) (*models.PaymentTransaction, error)
	GetTransactionByOrderID(ctx context.Context, orderID int64) (*models.PaymentTransaction, error)
	GetTransactionsByUserID(ctx context.Context, userID int64) ([]models.PaymentTransaction, error)

	CreatePaymentMethod(ctx context.Context, m *models.PaymentMethod) error
	GetPaymentMethodByID(ctx context.Context, id int64) (*models.PaymentMethod, error)
	GetPaymentMethodsByUserID(ctx context.Context, userID int64) ([]models.PaymentMethod, error)
	DeletePaymentMethod(ctx context.Context, id int64) error
	HasPaymentMethodOfType(ctx context.Context, userID int64, paymentType string) (bool, error)
	ClearDefaultPaymentMethods(ctx context.Context, userID int64) error
	SetDefaultPaymentMethod(ctx context.Context, id int64) error
}

// EventPublisher publishes payment outcomes.
type EventPublisher interface {
	PublishPaymentSucceeded(ctx context.Context, event *models.PaymentSucceededEvent) error
	PublishPaymentFailed(ctx context.Context, event *models.PaymentFailedEvent) error
}

// ProcessPaymentRequest is the typed payment request. PaymentMethodID being
// present selects a stored method; otherwise the inline card fields are
// used. Only COD uses DeliveryPhone.
type ProcessPaymentRequest struct {
	OrderID         int64   `json:"orderId" binding:"required"`
	UserID          int64   `json:"userId" binding:"required"`
	Amount          float64 `json:"amount" binding:"required,gt=0"`
	Currency        string  `json:"currency"`
	PaymentType     string  `json:"paymentType" binding:"required"`
	PaymentMethodID *int64  `json:"paymentMethodId,omitempty"`
	CardNumber      string  `json:"cardNumber,omitempty"`
	CVV             string  `json:"cvv,omitempty"`
	ExpiryMonth     string  `json:"expiryMonth,omitempty"`
	ExpiryYear      string  `json:"expiryYear,omitempty"`
	DeliveryPhone   string  `json:"deliveryPhone,omitempty"`
}

// Response is the result of a payment attempt.
type Response struct {
	TransactionID    string     `json:"transactionId"`
	OrderID          int64      `json:"orderId"`
	Amount           float64    `json:"amount"`
	Currency         string     `json:"currency,omitempty"`
	PaymentType      string     `json:"paymentType,omitempty"`
	MaskedCardNumber string     `json:"maskedCardNumber,omitempty"`
	CardBrand        string     `json:"cardBrand,omitempty"`
	Status           string     `json:"status"`
	StatusMessage    string     `json:"statusMessage"`
	GatewayReference string     `json:"gatewayReference,omitempty"`
	ProcessedAt      *time.Time `json:"processedAt,omitempty"`
}

type Service struct {
	store     Store
	gateway   *gateway.Simulator
	publisher EventPublisher
	metrics   *util.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

// NewService creates a payment service.
func NewService(store Store, gw *gateway.Simulator, publisher EventPublisher, metrics *util.Metrics) *Service {
	return &Service{
		store:     store,
		gateway:   gw,
		publisher: publisher,
		metrics:   metrics,
		logger:    util.GetLogger(),
		now:       time.Now,
	}
}

// ProcessPayment runs one payment attempt. Once the PROCESSING record is
// persisted this never returns an error: any failure during processing
// finalizes the transaction FAILED and is reported in the response.
func (s *Service) ProcessPayment(ctx context.Context, req *ProcessPaymentRequest) (*Response, error) {
	ctx, span := util.StartSpan(ctx, "payment.ProcessPayment")
	defer span.End()

	if err := validateRequest(req); err != nil {
		return nil, err
	}

	s.metrics.PaymentAttemptsTotal.Inc()
	start := time.Now()
	defer func() {
		s.metrics.PaymentProcessingLatency.Observe(time.Since(start).Seconds())
	}()

	currency := req.Currency
	if currency == "" {
		currency = "USD"
	}

	txnID := "TXN-" + strings.ToUpper(uuid.New().String()[:8])
	s.logger.Info("Processing payment",
		zap.Int64("order_id", req.OrderID),
		zap.String("transaction_id", txnID),
		zap.Float64("amount", req.Amount))

	txn := &models.PaymentTransaction{
		TransactionID: txnID,
		OrderID:       req.OrderID,
		UserID:        req.UserID,
		Amount:        req.Amount,
		Currency:      currency,
		PaymentType:   req.PaymentType,
		Status:        models.TxStatusProcessing,
		StatusMessage: "Processing payment",
	}

	if err := s.store.CreateTransaction(ctx, txn); err != nil {
		return nil, errs.Wrap(errs.Internal, err, "failed to create payment transaction")
	}

	if req.PaymentType == models.PaymentTypeCOD {
		return s.processCOD(ctx, txn, req), nil
	}
	return s.processCard(ctx, txn, req), nil
}

func (s *Service) processCOD(ctx context.Context, txn *models.PaymentTransaction, req *ProcessPaymentRequest) *Response {
	gwResp, err := s.gateway.ConfirmCOD(ctx, req.OrderID, req.DeliveryPhone)
	if err != nil {
		return s.finalizeFailed(ctx, txn, err.Error())
	}

	return s.finalizeSuccess(ctx, txn, "Cash on Delivery order confirmed. Pay at delivery.", gwResp.ReferenceCode)
}

func (s *Service) processCard(ctx context.Context, txn *models.PaymentTransaction, req *ProcessPaymentRequest) *Response {
	cardNumber := req.CardNumber
	cvv := req.CVV
	expiryMonth := req.ExpiryMonth
	expiryYear := req.ExpiryYear

	if req.PaymentMethodID != nil {
		method, err := s.store.GetPaymentMethodByID(ctx, *req.PaymentMethodID)
		if err != nil {
			return s.finalizeFailed(ctx, txn, "failed to load payment method")
		}
		if method == nil {
			return s.finalizeFailed(ctx, txn, "Payment method not found")
		}
		if method.UserID != req.UserID {
			return s.finalizeFailed(ctx, txn, "Payment method does not belong to user")
		}

		cardNumber = storedMethodCardNumber
		cvv = storedMethodCVV
		if method.ExpiryMonth != nil {
			expiryMonth = *method.ExpiryMonth
		}
		if method.ExpiryYear != nil {
			expiryYear = *method.ExpiryYear
		}

		masked, brand := "", ""
		if method.MaskedCardNumber != nil {
			masked = *method.MaskedCardNumber
		}
		if method.CardBrand != nil {
			brand = *method.CardBrand
		}
		s.recordCard(ctx, txn, req.PaymentMethodID, masked, brand)
	} else {
		s.recordCard(ctx, txn, nil, s.gateway.MaskCard(cardNumber), s.gateway.DetectBrand(cardNumber))
	}

	gwResp, err := s.gateway.AuthorizeCard(ctx, cardNumber, cvv, expiryMonth, expiryYear, req.Amount)
	if err != nil {
		return s.finalizeFailed(ctx, txn, err.Error())
	}
	if !gwResp.Success {
		return s.finalizeFailed(ctx, txn, gwResp.Message)
	}

	return s.finalizeSuccess(ctx, txn, "Payment successful", gwResp.ReferenceCode)
}

func (s *Service) recordCard(ctx context.Context, txn *models.PaymentTransaction, methodID *int64, masked, brand string) {
	txn.PaymentMethodID = methodID
	txn.MaskedCardNumber = &masked
	txn.CardBrand = &brand
	if err := s.store.UpdateTransactionCard(ctx, txn.TransactionID, methodID, masked, brand); err != nil {
		s.logger.Error("Failed to record card details",
			zap.String("transaction_id", txn.TransactionID),
			zap.Error(err))
	}
}

func (s *Service) finalizeSuccess(ctx context.Context, txn *models.PaymentTransaction, message, gatewayRef string) *Response {
	processedAt := s.now()
	if err := s.store.FinalizeTransaction(ctx, txn.TransactionID, models.TxStatusSuccess, message, &gatewayRef, processedAt); err != nil {
		// the gateway authorized but the terminal write failed; surface as
		// a failed payment rather than leaving the caller unsure
		s.logger.Error("Failed to finalize successful transaction",
			zap.String("transaction_id", txn.TransactionID),
			zap.Error(err))
		return s.finalizeFailed(ctx, txn, "failed to record payment outcome")
	}

	s.metrics.PaymentSuccessTotal.Inc()
	s.logger.Info("Payment succeeded",
		zap.String("transaction_id", txn.TransactionID),
		zap.String("gateway_ref", gatewayRef))

	s.publishSucceeded(ctx, txn)

	return &Response{
		TransactionID:    txn.TransactionID,
		OrderID:          txn.OrderID,
		Amount:           txn.Amount,
		Currency:         txn.Currency,
		PaymentType:      txn.PaymentType,
		MaskedCardNumber: deref(txn.MaskedCardNumber),
		CardBrand:        deref(txn.CardBrand),
		Status:           models.TxStatusSuccess,
		StatusMessage:    message,
		GatewayReference: gatewayRef,
		ProcessedAt:      &processedAt,
	}
}

func (s *Service) finalizeFailed(ctx context.Context, txn *models.PaymentTransaction, reason string) *Response {
	processedAt := s.now()
	if err := s.store.FinalizeTransaction(ctx, txn.TransactionID, models.TxStatusFailed, reason, nil, processedAt); err != nil {
		s.logger.Error("Failed to finalize failed transaction",
			zap.String("transaction_id", txn.TransactionID),
			zap.Error(err))
	}

	s.metrics.PaymentFailedTotal.Inc()
	s.logger.Warn("Payment failed",
		zap.String("transaction_id", txn.TransactionID),
		zap.String("reason", reason))

	s.publishFailed(ctx, txn, reason)

	return &Response{
		TransactionID: txn.TransactionID,
		OrderID:       txn.OrderID,
		Amount:        txn.Amount,
		Status:        models.TxStatusFailed,
		StatusMessage: reason,
		ProcessedAt:   &processedAt,
	}
}

func (s *Service) publishSucceeded(ctx context.Context, txn *models.PaymentTransaction) {
	if s.publisher == nil {
		return
	}
	event := &models.PaymentSucceededEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypePaymentSucceeded,
			Timestamp: s.now(),
		},
		OrderID:       txn.OrderID,
		TransactionID: txn.TransactionID,
		Amount:        txn.Amount,
	}
	if err := s.publisher.PublishPaymentSucceeded(ctx, event); err != nil {
		s.logger.Error("Failed to publish PaymentSucceeded event", zap.Error(err))
	}
}

func (s *Service) publishFailed(ctx context.Context, txn *models.PaymentTransaction, reason string) {
	if s.publisher == nil {
		return
	}
	event := &models.PaymentFailedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypePaymentFailed,
			Timestamp: s.now(),
		},
		OrderID:       txn.OrderID,
		TransactionID: txn.TransactionID,
		Reason:        reason,
	}
	if err := s.publisher.PublishPaymentFailed(ctx, event); err != nil {
		s.logger.Error("Failed to publish PaymentFailed event", zap.Error(err))
	}
}

func validateRequest(req *ProcessPaymentRequest) error {
	if req.OrderID == 0 {
		return errs.New(errs.Validation, "order ID is required")
	}
	if req.Amount <= 0 {
		return errs.New(errs.Validation, "amount must be positive")
	}
	switch req.PaymentType {
	case models.PaymentTypeCreditCard, models.PaymentTypeDebitCard, models.PaymentTypeCOD:
		return nil
	default:
		return errs.New(errs.Validation, "unsupported payment type: %s", req.PaymentType)
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
