package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"fulfillment-service/internal/models"
)

// CreateTransaction persists a new payment transaction. Callers create it in
// PROCESSING before the gateway call so a crash mid-call leaves an
// observable non-terminal record.
func (s *Store) CreateTransaction(ctx context.Context, tx *models.PaymentTransaction) error {
	query := `
		INSERT INTO payment_transactions
			(transaction_id, order_id, user_id, amount, currency, payment_type,
			 payment_method_id, masked_card_number, card_brand, status, status_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at`

	return s.db.QueryRowxContext(ctx, query,
		tx.TransactionID, tx.OrderID, tx.UserID, tx.Amount, tx.Currency, tx.PaymentType,
		tx.PaymentMethodID, tx.MaskedCardNumber, tx.CardBrand, tx.Status, tx.StatusMessage).
		Scan(&tx.ID, &tx.CreatedAt)
}

// FinalizeTransaction writes the terminal outcome of a transaction. This is
// the only write after creation; the record is never mutated again.
func (s *Store) FinalizeTransaction(ctx context.Context, transactionID, status, statusMessage string, gatewayRef *string, processedAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE payment_transactions
		 SET status = $1, status_message = $2, gateway_reference = $3, processed_at = $4
		 WHERE transaction_id = $5`,
		status, statusMessage, gatewayRef, processedAt, transactionID)
	return err
}

// UpdateTransactionCard records the resolved card details on a transaction
// before the gateway call.
func (s *Store) UpdateTransactionCard(ctx context.Context, transactionID string, methodID *int64, maskedCard, brand string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE payment_transactions
		 SET payment_method_id = $1, masked_card_number = $2, card_brand = $3
		 WHERE transaction_id = $4`,
		methodID, maskedCard, brand, transactionID)
	return err
}

// GetTransactionByID retrieves a transaction by its transaction id
func (s *Store) GetTransactionByID(ctx context.Context, transactionID string) (*models.PaymentTransaction, error) {
	var tx models.PaymentTransaction
	err := s.db.GetContext(ctx, &tx,
		"SELECT * FROM payment_transactions WHERE transaction_id = $1", transactionID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("transaction not found: %s", transactionID)
	}
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

// GetTransactionByOrderID retrieves the latest transaction for an order,
// nil if the order has none.
func (s *Store) GetTransactionByOrderID(ctx context.Context, orderID int64) (*models.PaymentTransaction, error) {
	var tx models.PaymentTransaction
	err := s.db.GetContext(ctx, &tx,
		"SELECT * FROM payment_transactions WHERE order_id = $1 ORDER BY created_at DESC LIMIT 1", orderID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

// GetTransactionsByUserID retrieves a user's transaction history, newest first
func (s *Store) GetTransactionsByUserID(ctx context.Context, userID int64) ([]models.PaymentTransaction, error) {
	var txs []models.PaymentTransaction
	err := s.db.SelectContext(ctx, &txs,
		"SELECT * FROM payment_transactions WHERE user_id = $1 ORDER BY created_at DESC", userID)
	return txs, err
}

// CreatePaymentMethod persists a payment method
func (s *Store) CreatePaymentMethod(ctx context.Context, m *models.PaymentMethod) error {
	query := `
		INSERT INTO payment_methods
			(user_id, type, card_holder_name, masked_card_number, card_brand,
			 expiry_month, expiry_year, phone_number, is_default)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at`

	return s.db.QueryRowxContext(ctx, query,
		m.UserID, m.Type, m.CardHolderName, m.MaskedCardNumber, m.CardBrand,
		m.ExpiryMonth, m.ExpiryYear, m.PhoneNumber, m.IsDefault).
		Scan(&m.ID, &m.CreatedAt)
}

// GetPaymentMethodByID retrieves a payment method by ID
func (s *Store) GetPaymentMethodByID(ctx context.Context, id int64) (*models.PaymentMethod, error) {
	var m models.PaymentMethod
	err := s.db.GetContext(ctx, &m, "SELECT * FROM payment_methods WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// GetPaymentMethodsByUserID retrieves all payment methods for a user
func (s *Store) GetPaymentMethodsByUserID(ctx context.Context, userID int64) ([]models.PaymentMethod, error) {
	var methods []models.PaymentMethod
	err := s.db.SelectContext(ctx, &methods,
		"SELECT * FROM payment_methods WHERE user_id = $1 ORDER BY created_at", userID)
	return methods, err
}

// DeletePaymentMethod removes a payment method
func (s *Store) DeletePaymentMethod(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM payment_methods WHERE id = $1", id)
	return err
}

// HasPaymentMethodOfType reports whether the user already has a method of
// the given type
func (s *Store) HasPaymentMethodOfType(ctx context.Context, userID int64, paymentType string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM payment_methods WHERE user_id = $1 AND type = $2)",
		userID, paymentType)
	return exists, err
}

// ClearDefaultPaymentMethods clears the default flag on all of a user's
// methods. Paired with SetDefaultPaymentMethod; there is no database-level
// uniqueness constraint, so two concurrent set-default calls can leave two
// defaults.
func (s *Store) ClearDefaultPaymentMethods(ctx context.Context, userID int64) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE payment_methods SET is_default = FALSE WHERE user_id = $1", userID)
	return err
}

// SetDefaultPaymentMethod marks one method as the default
func (s *Store) SetDefaultPaymentMethod(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE payment_methods SET is_default = TRUE WHERE id = $1", id)
	return err
}
