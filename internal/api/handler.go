// Package api exposes the HTTP surface: reservation and payment processing,
// checkout, payment methods and product reads.
package api

import (
	"net/http"
	"strconv"
	"time"

	"fulfillment-service/internal/checkout"
	"fulfillment-service/internal/errs"
	"fulfillment-service/internal/inventory"
	"fulfillment-service/internal/models"
	"fulfillment-service/internal/payment"
	"fulfillment-service/internal/redisclient"
	"fulfillment-service/internal/store"
	"fulfillment-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Handler contains HTTP handlers
type Handler struct {
	inventory *inventory.Engine
	payments  *payment.Service
	checkout  *checkout.Service
	store     *store.Store
	cache     *redisclient.Client
	metrics   *util.Metrics
	jwtSecret string
	logger    *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(inv *inventory.Engine, payments *payment.Service, co *checkout.Service, st *store.Store, cache *redisclient.Client, metrics *util.Metrics, jwtSecret string) *Handler {
	return &Handler{
		inventory: inv,
		payments:  payments,
		checkout:  co,
		store:     st,
		cache:     cache,
		metrics:   metrics,
		jwtSecret: jwtSecret,
		logger:    util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware(h.metrics))
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	{
		api.POST("/orders/process", h.processReservation)
		api.POST("/payments/process", h.processPayment)
		api.GET("/products/:id", h.getProduct)

		auth := api.Group("")
		auth.Use(authMiddleware(h.jwtSecret))
		{
			auth.POST("/orders/checkout", h.checkoutOrder)
			auth.GET("/orders", h.getUserOrders)
			auth.GET("/orders/:id", h.getOrder)
			auth.PUT("/orders/:id/status", h.updateOrderStatus)

			auth.POST("/payments/methods/card", h.addCard)
			auth.POST("/payments/methods/cod", h.enableCOD)
			auth.GET("/payments/methods", h.getPaymentMethods)
			auth.DELETE("/payments/methods/:id", h.deletePaymentMethod)
			auth.PUT("/payments/methods/:id/default", h.setDefaultPaymentMethod)

			auth.GET("/payments/transactions", h.getUserTransactions)
			auth.GET("/payments/transactions/:transactionId", h.getTransaction)
			auth.GET("/payments/transactions/order/:orderId", h.getTransactionByOrder)
		}
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// reservationRequest is one stock reservation call, keyed by order ID.
type reservationRequest struct {
	OrderID string                   `json:"orderId" binding:"required"`
	Items   []models.ReservationItem `json:"items" binding:"required"`
}

// processReservation handles stock reservation for an order. Business
// rejections surface as 400 with the engine's message; version-conflict
// exhaustion is 409 so the caller knows a retry may still succeed.
func (h *Handler) processReservation(c *gin.Context) {
	var req reservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	msg, err := h.inventory.Reserve(c.Request.Context(), req.OrderID, req.Items)
	if err != nil {
		switch errs.KindOf(err) {
		case errs.Validation, errs.NotFound, errs.BusinessRule:
			c.JSON(http.StatusBadRequest, gin.H{"error": errs.Message(err)})
		case errs.Conflict:
			c.JSON(http.StatusConflict, gin.H{"error": errs.Message(err)})
		default:
			h.logger.Error("Reservation failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": msg})
}

// processPayment handles a payment attempt. A declined payment is still a
// 200 with status FAILED; only malformed requests are 4xx.
func (h *Handler) processPayment(c *gin.Context) {
	var req payment.ProcessPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	resp, err := h.payments.ProcessPayment(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// getProduct serves a product, preferring the cache.
func (h *Handler) getProduct(c *gin.Context) {
	productID, ok := parseID(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if h.cache != nil {
		if product, err := h.cache.GetProduct(ctx, productID); err == nil && product != nil {
			c.JSON(http.StatusOK, product)
			return
		}
	}

	product, err := h.store.GetProductByID(ctx, productID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	if h.cache != nil {
		if err := h.cache.SetProduct(ctx, product); err != nil {
			h.logger.Warn("Failed to cache product", zap.Int64("product_id", productID), zap.Error(err))
		}
	}

	c.JSON(http.StatusOK, product)
}

// checkoutOrder converts the user's cart into an order
func (h *Handler) checkoutOrder(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req checkout.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	order, err := h.checkout.Checkout(c.Request.Context(), userID, &req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, order)
}

// getUserOrders lists the authenticated user's orders
func (h *Handler) getUserOrders(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	orders, err := h.checkout.GetUserOrders(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, orders)
}

// getOrder serves one order with its items. Orders belonging to another
// user read as not found.
func (h *Handler) getOrder(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	orderID, ok := parseID(c, "id")
	if !ok {
		return
	}

	order, err := h.checkout.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if order.UserID != userID {
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		return
	}

	c.JSON(http.StatusOK, order)
}

type updateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// updateOrderStatus moves an order to a new status
func (h *Handler) updateOrderStatus(c *gin.Context) {
	orderID, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	if err := h.checkout.UpdateOrderStatus(c.Request.Context(), orderID, req.Status); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Order status updated"})
}

// addCard stores a new card for the user
func (h *Handler) addCard(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req payment.AddCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	method, err := h.payments.AddCard(c.Request.Context(), userID, &req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, method)
}

type enableCODRequest struct {
	PhoneNumber string `json:"phoneNumber" binding:"required"`
}

// enableCOD registers cash-on-delivery for the user
func (h *Handler) enableCOD(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req enableCODRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	method, err := h.payments.EnableCOD(c.Request.Context(), userID, req.PhoneNumber)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, method)
}

// getPaymentMethods lists the user's stored payment methods
func (h *Handler) getPaymentMethods(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	methods, err := h.payments.GetUserPaymentMethods(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, methods)
}

// deletePaymentMethod removes one of the user's stored methods
func (h *Handler) deletePaymentMethod(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	methodID, ok := parseID(c, "id")
	if !ok {
		return
	}

	if err := h.payments.DeletePaymentMethod(c.Request.Context(), methodID, userID); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Payment method deleted"})
}

// setDefaultPaymentMethod marks one of the user's methods as default
func (h *Handler) setDefaultPaymentMethod(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	methodID, ok := parseID(c, "id")
	if !ok {
		return
	}

	method, err := h.payments.SetDefaultPaymentMethod(c.Request.Context(), methodID, userID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, method)
}

// getUserTransactions lists the user's payment transactions
func (h *Handler) getUserTransactions(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	txns, err := h.payments.GetUserTransactions(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, txns)
}

// getTransaction serves one transaction by its ID
func (h *Handler) getTransaction(c *gin.Context) {
	transactionID := c.Param("transactionId")

	txn, err := h.payments.GetTransaction(c.Request.Context(), transactionID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, txn)
}

// getTransactionByOrder serves the transaction for an order. An order with
// no payment attempt reads as a 200 with a null body, not a 404.
func (h *Handler) getTransactionByOrder(c *gin.Context) {
	orderID, ok := parseID(c, "orderId")
	if !ok {
		return
	}

	txn, err := h.payments.GetTransactionByOrderID(c.Request.Context(), orderID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, txn)
}

// respondError maps a service error to an HTTP response.
func (h *Handler) respondError(c *gin.Context, err error) {
	switch errs.KindOf(err) {
	case errs.Validation, errs.BusinessRule:
		c.JSON(http.StatusBadRequest, gin.H{"error": errs.Message(err)})
	case errs.NotFound:
		c.JSON(http.StatusNotFound, gin.H{"error": errs.Message(err)})
	case errs.Conflict:
		c.JSON(http.StatusConflict, gin.H{"error": errs.Message(err)})
	case errs.Upstream:
		c.JSON(http.StatusBadGateway, gin.H{"error": errs.Message(err)})
	default:
		h.logger.Error("Request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

func parseID(c *gin.Context, param string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(param), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + param})
		return 0, false
	}
	return id, true
}
