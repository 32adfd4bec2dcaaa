package store

import (
	"context"
	"database/sql"
	"fmt"

	"fulfillment-service/internal/models"
)

// CreateOrder creates a new order
func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders (user_id, status, total_amount, shipping_address)
		VALUES ($1, $2, $3, $4)
		RETURNING id, order_date`

	return s.db.QueryRowxContext(ctx, query,
		order.UserID, order.Status, order.TotalAmount, order.ShippingAddress).
		Scan(&order.ID, &order.OrderDate)
}

// GetOrderByID retrieves an order by ID
func (s *Store) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("order not found: %d", id)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrdersByUserID retrieves orders for a user, newest first
func (s *Store) GetOrdersByUserID(ctx context.Context, userID int64) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders,
		"SELECT * FROM orders WHERE user_id = $1 ORDER BY order_date DESC", userID)
	return orders, err
}

// UpdateOrderStatus updates order status
func (s *Store) UpdateOrderStatus(ctx context.Context, orderID int64, status string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE orders SET status = $1 WHERE id = $2", status, orderID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("order not found: %d", orderID)
	}
	return nil
}

// CreateOrderItem creates a new order item
func (s *Store) CreateOrderItem(ctx context.Context, item *models.OrderItem) error {
	query := `
		INSERT INTO order_items (order_id, product_id, product_name, quantity, price)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	return s.db.GetContext(ctx, &item.ID, query,
		item.OrderID, item.ProductID, item.ProductName, item.Quantity, item.Price)
}

// GetOrderItemsByOrderID retrieves all items for an order
func (s *Store) GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM order_items WHERE order_id = $1", orderID)
	return items, err
}
