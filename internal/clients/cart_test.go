package clients

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fulfillment-service/internal/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetCartItems(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/cart", r.URL.Path)
		assert.Equal(t, "7", r.URL.Query().Get("user"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"productId":1,"productName":"Widget","quantity":2,"price":7.5}]`))
	}))
	defer srv.Close()

	client := NewCartClient(srv.URL, time.Second)
	items, err := client.GetCartItems(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, int64(1), items[0].ProductID)
	assert.Equal(t, 2, items[0].Quantity)
	assert.Equal(t, 7.5, items[0].Price)
}

func TestGetCartItemsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	client := NewCartClient(srv.URL, time.Second)
	items, err := client.GetCartItems(context.Background(), 7)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestGetCartItemsUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewCartClient(srv.URL, time.Second)
	_, err := client.GetCartItems(context.Background(), 7)
	require.Error(t, err)
	assert.Equal(t, errs.Upstream, errs.KindOf(err))

	// Unreachable server is also an upstream failure, not a crash.
	srv.Close()
	client = NewCartClient(srv.URL, 100*time.Millisecond)
	_, err = client.GetCartItems(context.Background(), 7)
	require.Error(t, err)
	assert.Equal(t, errs.Upstream, errs.KindOf(err))
}

func TestClearCart(t *testing.T) {
	cleared := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		cleared = true
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := NewCartClient(srv.URL, time.Second)
	require.NoError(t, client.ClearCart(context.Background(), 7))
	assert.True(t, cleared)
}

func TestClearCartFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewCartClient(srv.URL, time.Second)
	assert.Error(t, client.ClearCart(context.Background(), 7))
}
