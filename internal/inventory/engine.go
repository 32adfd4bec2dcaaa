// Package inventory applies an order's line items to the stock ledger
// exactly once, using optimistic concurrency with a bounded retry.
package inventory

import (
	"context"
	"errors"
	"time"

	"fulfillment-service/internal/errs"
	"fulfillment-service/internal/models"
	"fulfillment-service/internal/util"

	"go.uber.org/zap"
)

// Messages returned to callers of the reservation endpoint.
const (
	MsgAlreadyProcessed = "Order already processed successfully."
	MsgProcessed        = "Order processed successfully. Inventory updated."
)

// Store is the persistence the engine needs: versioned product reads,
// all-or-nothing conditional stock writes and the idempotency record.
type Store interface {
	GetProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error)
	ApplyStockChanges(ctx context.Context, changes []models.StockChange) (bool, error)
	GetReservation(ctx context.Context, orderID string) (*models.Reservation, error)
	SaveReservation(ctx context.Context, orderID, status, detail string) error
}

// StatusCache is an optional fast path in front of the idempotency table.
// Errors from it are ignored; the store is authoritative.
type StatusCache interface {
	GetReservationStatus(ctx context.Context, orderID string) (string, error)
	SetReservationStatus(ctx context.Context, orderID, status string) error
}

type Engine struct {
	store       Store
	cache       StatusCache
	metrics     *util.Metrics
	retryBudget int
	logger      *zap.Logger
}

// NewEngine creates a reservation engine. retryBudget is the number of
// retries beyond the first attempt on version conflicts.
func NewEngine(store Store, cache StatusCache, metrics *util.Metrics, retryBudget int) *Engine {
	if retryBudget < 0 {
		retryBudget = 0
	}
	return &Engine{
		store:       store,
		cache:       cache,
		metrics:     metrics,
		retryBudget: retryBudget,
		logger:      util.GetLogger(),
	}
}

// Reserve decrements stock for the order's items, all-or-nothing. A repeat
// call for an order already PROCESSED returns success without touching
// stock; a repeat after FAILED re-attempts from scratch.
func (e *Engine) Reserve(ctx context.Context, orderID string, items []models.ReservationItem) (string, error) {
	ctx, span := util.StartSpan(ctx, "inventory.Reserve")
	defer span.End()

	if orderID == "" {
		return "", errs.New(errs.Validation, "order ID is required for idempotency")
	}
	if len(items) == 0 {
		return "", errs.New(errs.Validation, "order must contain items")
	}
	for _, item := range items {
		if item.Quantity <= 0 {
			return "", errs.New(errs.Validation, "Invalid quantity for product: %d", item.ProductID)
		}
	}

	start := time.Now()
	defer func() {
		e.metrics.ReserveLatency.Observe(time.Since(start).Seconds())
	}()

	e.logger.Info("Processing reservation", zap.String("order_id", orderID))

	if e.cache != nil {
		if status, err := e.cache.GetReservationStatus(ctx, orderID); err == nil && status == models.ReservationProcessed {
			e.logger.Info("Reservation already processed (cache)", zap.String("order_id", orderID))
			return MsgAlreadyProcessed, nil
		}
	}

	existing, err := e.store.GetReservation(ctx, orderID)
	if err != nil {
		return "", errs.Wrap(errs.Internal, err, "failed to check idempotency record")
	}
	if existing != nil && existing.Status == models.ReservationProcessed {
		e.logger.Info("Reservation already processed", zap.String("order_id", orderID))
		e.cacheStatus(ctx, orderID, models.ReservationProcessed)
		return MsgAlreadyProcessed, nil
	}
	// a FAILED record means a previous attempt completed unsuccessfully;
	// proceed with a fresh attempt

	for attempt := 0; attempt <= e.retryBudget; attempt++ {
		applied, err := e.attempt(ctx, orderID, items)
		if err != nil {
			kind := errs.KindOf(err)
			if kind == errs.NotFound || kind == errs.BusinessRule {
				e.failReservation(ctx, orderID, err.Error())
				e.metrics.ReservationsFailedTotal.WithLabelValues(reasonLabel(kind)).Inc()
			}
			return "", err
		}
		if applied {
			if err := e.store.SaveReservation(ctx, orderID, models.ReservationProcessed, ""); err != nil {
				return "", errs.Wrap(errs.Internal, err, "failed to save idempotency record")
			}
			e.cacheStatus(ctx, orderID, models.ReservationProcessed)
			e.metrics.ReservationsProcessedTotal.Inc()
			e.logger.Info("Reservation processed", zap.String("order_id", orderID))
			return MsgProcessed, nil
		}

		e.metrics.ReservationConflictsTotal.Inc()
		e.logger.Warn("Optimistic lock conflict, retrying reservation",
			zap.String("order_id", orderID),
			zap.Int("attempt", attempt+1))
	}

	e.failReservation(ctx, orderID, "concurrent stock updates")
	e.metrics.ReservationsFailedTotal.WithLabelValues("conflict").Inc()
	return "", errs.New(errs.Conflict, "reservation failed due to concurrent stock updates")
}

// attempt runs one full reservation pass: snapshot load, validation against
// the snapshot, conditional write-back. Returns false with nil error on a
// version conflict so the caller can restart from a fresh snapshot.
func (e *Engine) attempt(ctx context.Context, orderID string, items []models.ReservationItem) (bool, error) {
	ids := make([]int64, 0, len(items))
	seen := make(map[int64]bool, len(items))
	for _, item := range items {
		if !seen[item.ProductID] {
			seen[item.ProductID] = true
			ids = append(ids, item.ProductID)
		}
	}

	products, err := e.store.GetProductsByIDs(ctx, ids)
	if err != nil {
		return false, errs.Wrap(errs.Internal, err, "failed to load stock rows")
	}

	snapshot := make(map[int64]*models.Product, len(products))
	for i := range products {
		snapshot[products[i].ID] = &products[i]
	}

	// validate every line against the snapshot before writing anything, so
	// a failing line never partially decrements
	remaining := make(map[int64]int, len(snapshot))
	for id, p := range snapshot {
		remaining[id] = p.StockQuantity
	}
	for _, item := range items {
		product, ok := snapshot[item.ProductID]
		if !ok {
			return false, errs.New(errs.NotFound, "Product not found: %d", item.ProductID)
		}
		if remaining[product.ID] < item.Quantity {
			return false, errs.New(errs.BusinessRule, "Insufficient stock for product ID: %d", item.ProductID)
		}
		remaining[product.ID] -= item.Quantity
	}

	changes := make([]models.StockChange, 0, len(ids))
	for _, id := range ids {
		product := snapshot[id]
		changes = append(changes, models.StockChange{
			ProductID:   id,
			NewQuantity: remaining[id],
			Version:     product.Version,
		})
	}

	applied, err := e.store.ApplyStockChanges(ctx, changes)
	if err != nil {
		return false, errs.Wrap(errs.Internal, err, "failed to write stock rows")
	}
	if applied {
		e.metrics.StockUpdatesTotal.Add(float64(len(changes)))
	}
	return applied, nil
}

func (e *Engine) failReservation(ctx context.Context, orderID, detail string) {
	if err := e.store.SaveReservation(ctx, orderID, models.ReservationFailed, detail); err != nil {
		e.logger.Error("Failed to save idempotency record",
			zap.String("order_id", orderID),
			zap.Error(err))
	}
	e.cacheStatus(ctx, orderID, models.ReservationFailed)
}

func (e *Engine) cacheStatus(ctx context.Context, orderID, status string) {
	if e.cache == nil {
		return
	}
	if err := e.cache.SetReservationStatus(ctx, orderID, status); err != nil {
		e.logger.Warn("Failed to cache reservation status",
			zap.String("order_id", orderID),
			zap.Error(err))
	}
}

func reasonLabel(kind errs.Kind) string {
	if kind == errs.NotFound {
		return "product_not_found"
	}
	return "insufficient_stock"
}

// IsRetryableConflict reports whether err is the terminal conflict failure,
// kept for callers that want to distinguish it from business failures.
func IsRetryableConflict(err error) bool {
	var e *errs.Error
	return errors.As(err, &e) && e.Kind == errs.Conflict
}
