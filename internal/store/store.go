package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"fulfillment-service/internal/errs"
	"fulfillment-service/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetProductByID retrieves a product by ID
func (s *Store) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, "SELECT * FROM products WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, errs.New(errs.NotFound, "Product not found: %d", id)
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// GetProductsByIDs retrieves multiple products by IDs, including the version
// token captured for optimistic writes.
func (s *Store) GetProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error) {
	if len(ids) == 0 {
		return []models.Product{}, nil
	}

	query, args, err := sqlx.In("SELECT * FROM products WHERE id IN (?)", ids)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var products []models.Product
	err = s.db.SelectContext(ctx, &products, query, args...)
	return products, err
}

// ApplyStockChanges writes back new stock quantities, each conditioned on the
// version read with the snapshot. All writes run in one transaction: if any
// row was modified by another writer since the read, nothing is committed and
// the call returns false.
func (s *Store) ApplyStockChanges(ctx context.Context, changes []models.StockChange) (bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	for _, change := range changes {
		res, err := tx.ExecContext(ctx,
			`UPDATE products
			 SET stock_quantity = $1, version = version + 1, updated_at = NOW()
			 WHERE id = $2 AND version = $3`,
			change.NewQuantity, change.ProductID, change.Version)
		if err != nil {
			return false, fmt.Errorf("failed to update stock for product %d: %w", change.ProductID, err)
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return false, err
		}
		if affected == 0 {
			// version conflict: another writer got there first
			return false, nil
		}
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

// GetReservation retrieves the idempotency record for an order, nil if none
// exists yet.
func (s *Store) GetReservation(ctx context.Context, orderID string) (*models.Reservation, error) {
	var res models.Reservation
	err := s.db.GetContext(ctx, &res, "SELECT * FROM reservations WHERE order_id = $1", orderID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// SaveReservation upserts the terminal status for an order's reservation.
// Retries overwrite the previous status; no attempt history is kept.
func (s *Store) SaveReservation(ctx context.Context, orderID, status, detail string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reservations (order_id, status, detail, updated_at)
		 VALUES ($1, $2, $3, NOW())
		 ON CONFLICT (order_id) DO UPDATE SET status = $2, detail = $3, updated_at = NOW()`,
		orderID, status, detail)
	return err
}
