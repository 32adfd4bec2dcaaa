package redisclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"fulfillment-service/internal/models"

	"github.com/go-redis/redis/v8"
)

const (
	productTTL     = 5 * time.Minute
	reservationTTL = 24 * time.Hour
)

// cachedProduct is the cache encoding of a product. The API encoding hides
// the version token; cache readers get it back intact so a cached row is
// usable for optimistic writes.
type cachedProduct struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Price         float64   `json:"price"`
	StockQuantity int       `json:"stockQuantity"`
	Version       int64     `json:"version"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func toCached(p *models.Product) cachedProduct {
	return cachedProduct{
		ID:            p.ID,
		Name:          p.Name,
		Price:         p.Price,
		StockQuantity: p.StockQuantity,
		Version:       p.Version,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

func (c cachedProduct) product() *models.Product {
	return &models.Product{
		ID:            c.ID,
		Name:          c.Name,
		Price:         c.Price,
		StockQuantity: c.StockQuantity,
		Version:       c.Version,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
}

type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// NewClientFromRedis wraps an existing redis client; used by tests.
func NewClientFromRedis(rdb *redis.Client) *Client {
	return &Client{rdb: rdb}
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// GetProduct returns a cached product, nil on miss.
func (c *Client) GetProduct(ctx context.Context, productID int64) (*models.Product, error) {
	val, err := c.rdb.Get(ctx, productKey(productID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("product cache read failed: %w", err)
	}

	var cached cachedProduct
	if err := json.Unmarshal([]byte(val), &cached); err != nil {
		return nil, fmt.Errorf("product cache decode failed: %w", err)
	}
	return cached.product(), nil
}

// SetProduct caches a product for display reads.
func (c *Client) SetProduct(ctx context.Context, product *models.Product) error {
	data, err := json.Marshal(toCached(product))
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, productKey(product.ID), data, productTTL).Err()
}

// InvalidateProduct drops a product from the cache after a stock write.
func (c *Client) InvalidateProduct(ctx context.Context, productID int64) error {
	return c.rdb.Del(ctx, productKey(productID)).Err()
}

// GetReservationStatus returns the cached terminal status for an order's
// reservation, empty string on miss.
func (c *Client) GetReservationStatus(ctx context.Context, orderID string) (string, error) {
	status, err := c.rdb.Get(ctx, reservationKey(orderID)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reservation cache read failed: %w", err)
	}
	return status, nil
}

// SetReservationStatus caches a reservation's terminal status.
func (c *Client) SetReservationStatus(ctx context.Context, orderID, status string) error {
	return c.rdb.Set(ctx, reservationKey(orderID), status, reservationTTL).Err()
}

func productKey(productID int64) string {
	return fmt.Sprintf("product:%d", productID)
}

func reservationKey(orderID string) string {
	return fmt.Sprintf("reservation:%s", orderID)
}
