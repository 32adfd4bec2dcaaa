package payment

import (
	"context"

	"fulfillment-service/internal/errs"
	"fulfillment-service/internal/models"

	"go.uber.org/zap"
)

// AddCardRequest carries the inline card details for a new stored method.
// Only the masked number and brand are persisted.
type AddCardRequest struct {
	CardType       string `json:"cardType" binding:"required"`
	CardHolderName string `json:"cardHolderName" binding:"required"`
	CardNumber     string `json:"cardNumber" binding:"required"`
	ExpiryMonth    string `json:"expiryMonth" binding:"required"`
	ExpiryYear     string `json:"expiryYear" binding:"required"`
	SetAsDefault   bool   `json:"setAsDefault"`
}

// AddCard stores a new card for the user.
func (s *Service) AddCard(ctx context.Context, userID int64, req *AddCardRequest) (*models.PaymentMethod, error) {
	if req.CardType != models.PaymentTypeCreditCard && req.CardType != models.PaymentTypeDebitCard {
		return nil, errs.New(errs.Validation, "unsupported card type: %s", req.CardType)
	}

	s.logger.Info("Adding card", zap.Int64("user_id", userID))

	brand := s.gateway.DetectBrand(req.CardNumber)
	masked := s.gateway.MaskCard(req.CardNumber)

	// clear-then-set; a race between two concurrent defaults can leave two
	if req.SetAsDefault {
		if err := s.store.ClearDefaultPaymentMethods(ctx, userID); err != nil {
			return nil, errs.Wrap(errs.Internal, err, "failed to clear default payment methods")
		}
	}

	method := &models.PaymentMethod{
		UserID:           userID,
		Type:             req.CardType,
		CardHolderName:   &req.CardHolderName,
		MaskedCardNumber: &masked,
		CardBrand:        &brand,
		ExpiryMonth:      &req.ExpiryMonth,
		ExpiryYear:       &req.ExpiryYear,
		IsDefault:        req.SetAsDefault,
	}

	if err := s.store.CreatePaymentMethod(ctx, method); err != nil {
		return nil, errs.Wrap(errs.Internal, err, "failed to save payment method")
	}

	s.logger.Info("Card added",
		zap.Int64("user_id", userID),
		zap.String("brand", brand))
	return method, nil
}

// EnableCOD enables cash on delivery for the user; at most once per user.
func (s *Service) EnableCOD(ctx context.Context, userID int64, phoneNumber string) (*models.PaymentMethod, error) {
	if phoneNumber == "" {
		return nil, errs.New(errs.Validation, "phone number is required")
	}

	exists, err := s.store.HasPaymentMethodOfType(ctx, userID, models.PaymentTypeCOD)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "failed to check payment methods")
	}
	if exists {
		return nil, errs.New(errs.Conflict, "COD already enabled for this user")
	}

	method := &models.PaymentMethod{
		UserID:      userID,
		Type:        models.PaymentTypeCOD,
		PhoneNumber: &phoneNumber,
	}

	if err := s.store.CreatePaymentMethod(ctx, method); err != nil {
		return nil, errs.Wrap(errs.Internal, err, "failed to save payment method")
	}

	s.logger.Info("COD enabled", zap.Int64("user_id", userID))
	return method, nil
}

// GetUserPaymentMethods lists the user's stored methods.
func (s *Service) GetUserPaymentMethods(ctx context.Context, userID int64) ([]models.PaymentMethod, error) {
	methods, err := s.store.GetPaymentMethodsByUserID(ctx, userID)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "failed to load payment methods")
	}
	return methods, nil
}

// DeletePaymentMethod removes a method after an ownership check.
func (s *Service) DeletePaymentMethod(ctx context.Context, methodID, userID int64) error {
	method, err := s.loadOwnedMethod(ctx, methodID, userID)
	if err != nil {
		return err
	}

	if err := s.store.DeletePaymentMethod(ctx, method.ID); err != nil {
		return errs.Wrap(errs.Internal, err, "failed to delete payment method")
	}

	s.logger.Info("Payment method deleted",
		zap.Int64("method_id", methodID),
		zap.Int64("user_id", userID))
	return nil
}

// SetDefaultPaymentMethod marks one of the user's methods as default using
// clear-then-set.
func (s *Service) SetDefaultPaymentMethod(ctx context.Context, methodID, userID int64) (*models.PaymentMethod, error) {
	method, err := s.loadOwnedMethod(ctx, methodID, userID)
	if err != nil {
		return nil, err
	}

	if err := s.store.ClearDefaultPaymentMethods(ctx, userID); err != nil {
		return nil, errs.Wrap(errs.Internal, err, "failed to clear default payment methods")
	}
	if err := s.store.SetDefaultPaymentMethod(ctx, method.ID); err != nil {
		return nil, errs.Wrap(errs.Internal, err, "failed to set default payment method")
	}

	method.IsDefault = true
	return method, nil
}

// GetTransaction looks up a transaction by id; missing is an error.
func (s *Service) GetTransaction(ctx context.Context, transactionID string) (*models.PaymentTransaction, error) {
	txn, err := s.store.GetTransactionByID(ctx, transactionID)
	if err != nil {
		return nil, errs.Wrap(errs.NotFound, err, "Transaction not found")
	}
	return txn, nil
}

// GetTransactionByOrderID looks up the latest transaction for an order;
// missing is an empty result, not an error.
func (s *Service) GetTransactionByOrderID(ctx context.Context, orderID int64) (*models.PaymentTransaction, error) {
	txn, err := s.store.GetTransactionByOrderID(ctx, orderID)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "failed to load transaction")
	}
	return txn, nil
}

// GetUserTransactions returns the user's transaction history.
func (s *Service) GetUserTransactions(ctx context.Context, userID int64) ([]models.PaymentTransaction, error) {
	txns, err := s.store.GetTransactionsByUserID(ctx, userID)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "failed to load transactions")
	}
	return txns, nil
}

func (s *Service) loadOwnedMethod(ctx context.Context, methodID, userID int64) (*models.PaymentMethod, error) {
	method, err := s.store.GetPaymentMethodByID(ctx, methodID)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "failed to load payment method")
	}
	if method == nil {
		return nil, errs.New(errs.NotFound, "Payment method not found")
	}
	if method.UserID != userID {
		return nil, errs.New(errs.BusinessRule, "Payment method does not belong to user")
	}
	return method, nil
}
