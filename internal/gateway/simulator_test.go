package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSimulator() *Simulator {
	s := NewSimulator(0, 0, 0)
	s.now = func() time.Time {
		return time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC)
	}
	return s
}

func TestAuthorizeCardSuccess(t *testing.T) {
	s := newTestSimulator()

	resp, err := s.AuthorizeCard(context.Background(), "4111111111111111", "123", "12", "2030", 50.0)
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Equal(t, "Payment authorized successfully", resp.Message)
	assert.NotEmpty(t, resp.ReferenceCode)
}

func TestAuthorizeCardInvalidNumber(t *testing.T) {
	s := newTestSimulator()

	cases := []string{"abc", "", "4111", "41111111111111111111"}
	for _, num := range cases {
		resp, err := s.AuthorizeCard(context.Background(), num, "123", "12", "2030", 10.0)
		require.NoError(t, err)
		assert.False(t, resp.Success, "card %q should be rejected", num)
		assert.Equal(t, "Invalid card number", resp.Message)
	}
}

func TestAuthorizeCardExpired(t *testing.T) {
	s := newTestSimulator()

	resp, err := s.AuthorizeCard(context.Background(), "4111111111111111", "123", "05", "2025", 10.0)
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, "Card has expired", resp.Message)

	// Current month is still valid.
	resp, err = s.AuthorizeCard(context.Background(), "4111111111111111", "123", "06", "2025", 10.0)
	require.NoError(t, err)
	assert.True(t, resp.Success)
}

func TestAuthorizeCardTwoDigitYear(t *testing.T) {
	s := newTestSimulator()

	resp, err := s.AuthorizeCard(context.Background(), "4111111111111111", "123", "12", "30", 10.0)
	require.NoError(t, err)
	assert.True(t, resp.Success)

	resp, err = s.AuthorizeCard(context.Background(), "4111111111111111", "123", "12", "24", 10.0)
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, "Card has expired", resp.Message)
}

func TestAuthorizeCardInvalidMonth(t *testing.T) {
	s := newTestSimulator()

	for _, month := range []string{"0", "13", "xx"} {
		resp, err := s.AuthorizeCard(context.Background(), "4111111111111111", "123", month, "2030", 10.0)
		require.NoError(t, err)
		assert.False(t, resp.Success, "month %q should be rejected", month)
	}
}

func TestAuthorizeCardDeterministicDeclines(t *testing.T) {
	// Test card suffixes decline even with the random failure path disabled.
	s := newTestSimulator()

	resp, err := s.AuthorizeCard(context.Background(), "4111111111110001", "123", "12", "2030", 10.0)
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, "Insufficient funds", resp.Message)

	resp, err = s.AuthorizeCard(context.Background(), "4111111111110002", "123", "12", "2030", 10.0)
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, "Card blocked by issuer", resp.Message)
}

func TestAuthorizeCardAlwaysDeclines(t *testing.T) {
	s := newTestSimulator()
	s.failureRate = 1.0

	resp, err := s.AuthorizeCard(context.Background(), "4111111111111111", "123", "12", "2030", 10.0)
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, "Payment declined by issuing bank", resp.Message)
}

func TestAuthorizeCardCancelledContext(t *testing.T) {
	s := NewSimulator(time.Second, 0, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.AuthorizeCard(ctx, "4111111111111111", "123", "12", "2030", 10.0)
	assert.Error(t, err)
}

func TestConfirmCOD(t *testing.T) {
	s := newTestSimulator()

	resp, err := s.ConfirmCOD(context.Background(), 42, "+15550001111")
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Contains(t, resp.ReferenceCode, "COD-")
}

func TestDetectBrand(t *testing.T) {
	s := newTestSimulator()

	cases := map[string]string{
		"4111111111111111": "VISA",
		"5155555555554444": "MASTERCARD",
		"371449635398431":  "AMEX",
		"341449635398431":  "AMEX",
		"6011111111111117": "DISCOVER",
		"6511111111111117": "DISCOVER",
		"3530111333300000": "JCB",
		"36227206271667":   "DINERS",
		"30569309025904":   "DINERS",
		"9999999999999999": "UNKNOWN",
		"12":               "UNKNOWN",
	}
	for num, want := range cases {
		assert.Equal(t, want, s.DetectBrand(num), "brand for %s", num)
	}
}

func TestMaskCard(t *testing.T) {
	s := newTestSimulator()

	assert.Equal(t, "**** **** **** 1111", s.MaskCard("4111111111111111"))
	assert.Equal(t, "****", s.MaskCard("12"))
}
