package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"shop-service/internal/cart"
	"shop-service/internal/catalog"
	"shop-service/internal/checkout"
	"shop-service/internal/models"
	"shop-service/internal/orders"
	"shop-service/internal/payment"
	"shop-service/internal/pricing"
	"shop-service/internal/profile"
	"shop-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Handler contains HTTP handlers
type Handler struct {
	catalog      catalog.Catalog
	orders       orders.Repository
	gateway      payment.Gateway
	orchestrator *checkout.Orchestrator
	calc         *pricing.Calculator
	addresses    *profile.AddressBook
	statusEvents func(ctx context.Context, event *models.OrderStatusChangedEvent) error
	cartMirror   cart.Mirror

	mu    sync.Mutex
	carts map[string]*cart.Store
}

// NewHandler creates a new HTTP handler
func NewHandler(
	cat catalog.Catalog,
	repo orders.Repository,
	gateway payment.Gateway,
	orchestrator *checkout.Orchestrator,
	calc *pricing.Calculator,
	addresses *profile.AddressBook,
	mirror cart.Mirror,
) *Handler {
	return &Handler{
		catalog:      cat,
		orders:       repo,
		gateway:      gateway,
		orchestrator: orchestrator,
		calc:         calc,
		addresses:    addresses,
		cartMirror:   mirror,
		carts:        make(map[string]*cart.Store),
	}
}

// SetStatusPublisher wires the optional status-change event publisher.
// Publishing is best effort: failures are logged, the local update stands.
func (h *Handler) SetStatusPublisher(publish func(ctx context.Context, event *models.OrderStatusChangedEvent) error) {
	h.statusEvents = publish
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/products", h.listProducts)
		v1.GET("/products/:id", h.getProduct)

		v1.GET("/cart", h.getCart)
		v1.POST("/cart/items", h.addCartItem)
		v1.PUT("/cart/items/:productId", h.updateCartItem)
		v1.DELETE("/cart/items/:productId", h.removeCartItem)
		v1.DELETE("/cart", h.clearCart)

		v1.GET("/payment/methods", h.listPaymentMethods)

		v1.POST("/checkout", h.processCheckout)
		v1.GET("/checkout/state", h.checkoutState)

		v1.GET("/orders", h.listOrders)
		v1.GET("/orders/:id", h.getOrder)
		v1.PATCH("/orders/:id/status", h.updateOrderStatus)

		v1.GET("/addresses", h.listAddresses)
		v1.POST("/addresses", h.addAddress)
		v1.PUT("/addresses/:id/default", h.setDefaultAddress)
		v1.DELETE("/addresses/:id", h.removeAddress)
	}
}

// sessionCart resolves the caller's cart from the X-Session-ID header,
// creating it on first use.
func (h *Handler) sessionCart(c *gin.Context) (*cart.Store, bool) {
	sessionID := c.GetHeader("X-Session-ID")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "X-Session-ID header is required"})
		return nil, false
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	store, ok := h.carts[sessionID]
	if !ok {
		store = cart.NewStore(sessionID, h.catalog, h.cartMirror)
		h.carts[sessionID] = store
	}
	return store, true
}

func (h *Handler) sessionID(c *gin.Context) (string, bool) {
	sessionID := c.GetHeader("X-Session-ID")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "X-Session-ID header is required"})
		return "", false
	}
	return sessionID, true
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

func (h *Handler) listProducts(c *gin.Context) {
	products, err := h.catalog.ListProducts(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}

func (h *Handler) getProduct(c *gin.Context) {
	product, err := h.catalog.GetProductByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *Handler) getCart(c *gin.Context) {
	store, ok := h.sessionCart(c)
	if !ok {
		return
	}

	lines, err := store.Lines(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"items":      lines,
		"item_count": store.ItemCount(),
		"quote":      h.calc.Compute(lines),
	})
}

type cartItemRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required"`
}

func (h *Handler) addCartItem(c *gin.Context) {
	store, ok := h.sessionCart(c)
	if !ok {
		return
	}

	var req cartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if err := store.Add(c.Request.Context(), req.ProductID, req.Quantity); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"item_count": store.ItemCount()})
}

type quantityRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) updateCartItem(c *gin.Context) {
	store, ok := h.sessionCart(c)
	if !ok {
		return
	}

	var req quantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if err := store.UpdateQuantity(c.Request.Context(), c.Param("productId"), req.Quantity); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"item_count": store.ItemCount()})
}

func (h *Handler) removeCartItem(c *gin.Context) {
	store, ok := h.sessionCart(c)
	if !ok {
		return
	}

	if err := store.Remove(c.Request.Context(), c.Param("productId")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"item_count": store.ItemCount()})
}

func (h *Handler) clearCart(c *gin.Context) {
	store, ok := h.sessionCart(c)
	if !ok {
		return
	}

	if err := store.Clear(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"item_count": 0})
}

func (h *Handler) listPaymentMethods(c *gin.Context) {
	methods, err := h.gateway.ListMethods(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"methods": methods})
}

func (h *Handler) processCheckout(c *gin.Context) {
	store, ok := h.sessionCart(c)
	if !ok {
		return
	}

	var req checkout.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.GetHeader("Idempotency-Key")
	}

	result, err := h.orchestrator.ProcessCheckout(c.Request.Context(), store, &req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h *Handler) checkoutState(c *gin.Context) {
	sessionID, ok := h.sessionID(c)
	if !ok {
		return
	}

	state, lastErr := h.orchestrator.State(sessionID)
	c.JSON(http.StatusOK, gin.H{"state": state, "last_error": lastErr})
}

func (h *Handler) listOrders(c *gin.Context) {
	sessionID, ok := h.sessionID(c)
	if !ok {
		return
	}

	list, err := h.orders.ListBySession(c.Request.Context(), sessionID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": list})
}

func (h *Handler) getOrder(c *gin.Context) {
	order, err := h.orders.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (h *Handler) updateOrderStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	orderID := c.Param("id")
	if err := h.orders.UpdateStatus(c.Request.Context(), orderID, req.Status); err != nil {
		writeError(c, err)
		return
	}

	if h.statusEvents != nil {
		event := &models.OrderStatusChangedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeOrderStatusChanged,
				Timestamp: time.Now(),
			},
			OrderID: orderID,
			Status:  req.Status,
		}
		if err := h.statusEvents(c.Request.Context(), event); err != nil {
			util.GetLogger().Warn("Failed to publish status change event", zap.Error(err))
		}
	}

	c.JSON(http.StatusOK, gin.H{"order_id": orderID, "status": req.Status})
}

func (h *Handler) listAddresses(c *gin.Context) {
	sessionID, ok := h.sessionID(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"addresses": h.addresses.List(c.Request.Context(), sessionID)})
}

func (h *Handler) addAddress(c *gin.Context) {
	sessionID, ok := h.sessionID(c)
	if !ok {
		return
	}

	var addr models.Address
	if err := c.ShouldBindJSON(&addr); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	saved, err := h.addresses.Add(c.Request.Context(), sessionID, addr)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, saved)
}

func (h *Handler) setDefaultAddress(c *gin.Context) {
	sessionID, ok := h.sessionID(c)
	if !ok {
		return
	}

	if err := h.addresses.SetDefault(c.Request.Context(), sessionID, c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"default": c.Param("id")})
}

func (h *Handler) removeAddress(c *gin.Context) {
	sessionID, ok := h.sessionID(c)
	if !ok {
		return
	}

	if err := h.addresses.Remove(c.Request.Context(), sessionID, c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// writeError maps the domain error taxonomy onto HTTP statuses.
func writeError(c *gin.Context, err error) {
	var verr *models.ValidationError
	var nferr *models.NotFoundError
	var gerr *models.GatewayError
	var ierr *models.InconsistentStateError

	switch {
	case errors.Is(err, checkout.ErrCheckoutInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error(), "field": verr.Field})
	case errors.As(err, &nferr):
		c.JSON(http.StatusNotFound, gin.H{"error": nferr.Error()})
	case errors.As(err, &gerr):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": gerr.Error()})
	case errors.As(err, &ierr):
		// Payment captured but finalization failed: the caller must see
		// the order id that needs reconciliation.
		c.JSON(http.StatusInternalServerError, gin.H{"error": ierr.Error(), "order_id": ierr.OrderID})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
