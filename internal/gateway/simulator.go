// Package gateway simulates an external payment authorizer (Stripe, PayPal,
// Razorpay). It injects per-call latency, deterministic test-card outcomes
// and a configurable random decline rate.
package gateway

import (
	"context"
	"fmt"
	"math/rand"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"fulfillment-service/internal/util"

	"go.uber.org/zap"
)

var cardNumberPattern = regexp.MustCompile(`^\d{13,19}$`)

// Response is the gateway's answer to an authorization attempt.
type Response struct {
	Success       bool
	Message       string
	ReferenceCode string
}

type Simulator struct {
	baseDelay   time.Duration
	jitter      time.Duration
	failureRate float64

	mu  sync.Mutex
	rng *rand.Rand

	now    func() time.Time
	logger *zap.Logger
}

// NewSimulator creates a gateway simulator. failureRate is the probability
// of a random issuer decline per authorization, 0 disables it.
func NewSimulator(baseDelay, jitter time.Duration, failureRate float64) *Simulator {
	return &Simulator{
		baseDelay:   baseDelay,
		jitter:      jitter,
		failureRate: failureRate,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		now:         time.Now,
		logger:      util.GetLogger(),
	}
}

// AuthorizeCard simulates a card authorization. The injected latency
// suspends only the calling goroutine; a cancelled context aborts the wait
// and is the only error this returns.
func (s *Simulator) AuthorizeCard(ctx context.Context, cardNumber, cvv, expiryMonth, expiryYear string, amount float64) (Response, error) {
	s.logger.Info("Gateway authorizing card payment", zap.Float64("amount", amount))

	if err := s.simulateNetworkDelay(ctx); err != nil {
		return Response{}, fmt.Errorf("gateway call aborted: %w", err)
	}

	if !cardNumberPattern.MatchString(cardNumber) {
		s.logger.Warn("Gateway rejected card: invalid number format")
		return Response{Success: false, Message: "Invalid card number"}, nil
	}

	if !s.isValidExpiry(expiryMonth, expiryYear) {
		s.logger.Warn("Gateway rejected card: expired")
		return Response{Success: false, Message: "Card has expired"}, nil
	}

	// Special test card numbers for specific scenarios
	if strings.HasSuffix(cardNumber, "0001") {
		s.logger.Warn("Gateway rejected card: insufficient funds")
		return Response{Success: false, Message: "Insufficient funds"}, nil
	}
	if strings.HasSuffix(cardNumber, "0002") {
		s.logger.Warn("Gateway rejected card: blocked")
		return Response{Success: false, Message: "Card blocked by issuer"}, nil
	}

	if s.draw() < s.failureRate {
		s.logger.Warn("Gateway declined payment")
		return Response{Success: false, Message: "Payment declined by issuing bank"}, nil
	}

	authCode := fmt.Sprintf("AUTH-%d-%04d", s.now().UnixMilli(), s.intn(10000))
	s.logger.Info("Gateway authorized payment", zap.String("auth_code", authCode))

	return Response{Success: true, Message: "Payment authorized successfully", ReferenceCode: authCode}, nil
}

// ConfirmCOD simulates cash-on-delivery confirmation; it never declines.
func (s *Simulator) ConfirmCOD(ctx context.Context, orderID int64, phoneNumber string) (Response, error) {
	s.logger.Info("Gateway confirming COD order",
		zap.Int64("order_id", orderID),
		zap.String("phone", phoneNumber))

	if err := s.simulateNetworkDelay(ctx); err != nil {
		return Response{}, fmt.Errorf("gateway call aborted: %w", err)
	}

	code := fmt.Sprintf("COD-%d", s.now().UnixMilli())
	return Response{Success: true, Message: "COD order confirmed", ReferenceCode: code}, nil
}

// DetectBrand detects the card brand from the number prefix.
func (s *Simulator) DetectBrand(cardNumber string) string {
	if len(cardNumber) < 4 {
		return "UNKNOWN"
	}

	switch {
	case strings.HasPrefix(cardNumber, "4"):
		return "VISA"
	case cardNumber[0] == '5' && cardNumber[1] >= '1' && cardNumber[1] <= '5':
		return "MASTERCARD"
	case strings.HasPrefix(cardNumber, "34") || strings.HasPrefix(cardNumber, "37"):
		return "AMEX"
	case strings.HasPrefix(cardNumber, "6011") || strings.HasPrefix(cardNumber, "65"):
		return "DISCOVER"
	case isJCBPrefix(cardNumber):
		return "JCB"
	case isDinersPrefix(cardNumber):
		return "DINERS"
	}
	return "UNKNOWN"
}

// MaskCard keeps only the last four digits.
func (s *Simulator) MaskCard(cardNumber string) string {
	if len(cardNumber) < 4 {
		return "****"
	}
	return "**** **** **** " + cardNumber[len(cardNumber)-4:]
}

func isJCBPrefix(cardNumber string) bool {
	if !strings.HasPrefix(cardNumber, "35") || len(cardNumber) < 4 {
		return false
	}
	n, err := strconv.Atoi(cardNumber[2:4])
	return err == nil && n >= 28 && n <= 89
}

func isDinersPrefix(cardNumber string) bool {
	if strings.HasPrefix(cardNumber, "36") || strings.HasPrefix(cardNumber, "38") {
		return true
	}
	if strings.HasPrefix(cardNumber, "30") && len(cardNumber) >= 3 {
		return cardNumber[2] >= '0' && cardNumber[2] <= '5'
	}
	return false
}

// isValidExpiry checks month range and that the card has not expired.
// Two-digit years are normalized to 2000+.
func (s *Simulator) isValidExpiry(month, year string) bool {
	m, err := strconv.Atoi(month)
	if err != nil {
		return false
	}
	y, err := strconv.Atoi(year)
	if err != nil {
		return false
	}
	if y < 100 {
		y += 2000
	}
	if m < 1 || m > 12 {
		return false
	}

	now := s.now()
	return y*100+m >= now.Year()*100+int(now.Month())
}

func (s *Simulator) simulateNetworkDelay(ctx context.Context) error {
	delay := s.baseDelay
	if s.jitter > 0 {
		delay += time.Duration(s.intn(int(s.jitter)))
	}
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Simulator) draw() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}

func (s *Simulator) intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Intn(n)
}
