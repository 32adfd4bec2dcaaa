// Package clients holds HTTP clients for the external collaborator services.
package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"fulfillment-service/internal/errs"
	"fulfillment-service/internal/models"
	"fulfillment-service/internal/util"

	"go.uber.org/zap"
)

// CartClient talks to the external cart service. Every call carries a
// bounded timeout; a timeout is a transport failure, never retried here.
type CartClient struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
	logger  *zap.Logger
}

// NewCartClient creates a cart client for the given base URL.
func NewCartClient(baseURL string, timeout time.Duration) *CartClient {
	return &CartClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
		logger:  util.GetLogger(),
	}
}

// GetCartItems fetches the user's cart snapshot. An empty cart is an empty
// slice with nil error; transport failures are upstream errors.
func (c *CartClient) GetCartItems(ctx context.Context, userID int64) ([]models.CartItem, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cartURL(userID), nil)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "failed to build cart request")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errs.Wrap(errs.Upstream, err, "cart service unavailable")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errs.New(errs.Upstream, "cart service returned status %d", resp.StatusCode)
	}

	var items []models.CartItem
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, errs.Wrap(errs.Upstream, err, "failed to decode cart response")
	}
	return items, nil
}

// ClearCart empties the user's cart. Best effort at the call site; this
// still reports failures so the caller can log them.
func (c *CartClient) ClearCart(ctx context.Context, userID int64) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.cartURL(userID), nil)
	if err != nil {
		return fmt.Errorf("failed to build cart clear request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("cart service unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("cart clear returned status %d", resp.StatusCode)
	}
	return nil
}

func (c *CartClient) cartURL(userID int64) string {
	return c.baseURL + "/cart?" + url.Values{"user": {strconv.FormatInt(userID, 10)}}.Encode()
}
