// Package checkout sequences validation, payment-intent creation, and
// payment confirmation into one finalized order. Steps run strictly one
// after another; a session can have at most one checkout in flight.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"shop-service/internal/models"
	"shop-service/internal/orders"
	"shop-service/internal/payment"
	"shop-service/internal/pricing"
	"shop-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// State is the checkout progress tag for one session.
type State string

const (
	StateNotStarted     State = "NOT_STARTED"
	StateValidating     State = "VALIDATING"
	StateAwaitingIntent State = "AWAITING_INTENT"
	StateProcessing     State = "PROCESSING"
	StateSucceeded      State = "SUCCEEDED"
	StateFailed         State = "FAILED"
)

// InFlight reports whether the state blocks a new submission.
func (s State) InFlight() bool {
	return s == StateValidating || s == StateAwaitingIntent || s == StateProcessing
}

// ErrCheckoutInProgress rejects a re-entrant submission for a session
// whose previous checkout has not finished.
var ErrCheckoutInProgress = errors.New("checkout already in progress")

// Cart is the slice of the cart store the orchestrator needs.
type Cart interface {
	SessionID() string
	Lines(ctx context.Context) ([]models.CartLine, error)
	Clear(ctx context.Context) error
}

// EventSink receives checkout outcome events. Publishing is best effort.
type EventSink interface {
	PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error
	PublishCheckoutFailed(ctx context.Context, event *models.CheckoutFailedEvent) error
}

// Locker guards checkout across service instances. AcquireLock returns
// false when another instance holds the session's lock.
type Locker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key string) error
}

// Request carries the contact, shipping, and payment fields submitted at
// checkout.
type Request struct {
	Name            string `json:"name" binding:"required"`
	Email           string `json:"email" binding:"required"`
	Phone           string `json:"phone" binding:"required"`
	Address         string `json:"address" binding:"required"`
	City            string `json:"city" binding:"required"`
	State           string `json:"state" binding:"required"`
	Zip             string `json:"zip" binding:"required"`
	PaymentMethodID string `json:"payment_method_id" binding:"required"`
	CardNumber      string `json:"card_number,omitempty"`
	CardExpiry      string `json:"card_expiry,omitempty"`
	CardCVV         string `json:"card_cvv,omitempty"`
	IdempotencyKey  string `json:"idempotency_key,omitempty"`
}

// Result is returned on a successful checkout.
type Result struct {
	OrderID    string `json:"order_id"`
	TotalCents int64  `json:"total_cents"`
	Status     string `json:"status"`
	Replayed   bool   `json:"replayed,omitempty"`
}

type sessionState struct {
	state   State
	lastErr string
}

// Orchestrator drives the checkout pipeline for all sessions.
type Orchestrator struct {
	gateway        payment.Gateway
	orders         orders.Repository
	calc           *pricing.Calculator
	events         EventSink
	locker         Locker
	currency       string
	gatewayTimeout time.Duration
	logger         *zap.Logger

	mu       sync.Mutex
	sessions map[string]*sessionState
	idem     map[string]string // idempotency key -> order id
}

// New creates an orchestrator. events and locker may be nil.
func New(
	gateway payment.Gateway,
	repo orders.Repository,
	calc *pricing.Calculator,
	events EventSink,
	locker Locker,
	currency string,
	gatewayTimeout time.Duration,
) *Orchestrator {
	if gatewayTimeout <= 0 {
		gatewayTimeout = 15 * time.Second
	}
	return &Orchestrator{
		gateway:        gateway,
		orders:         repo,
		calc:           calc,
		events:         events,
		locker:         locker,
		currency:       currency,
		gatewayTimeout: gatewayTimeout,
		logger:         util.GetLogger(),
		sessions:       make(map[string]*sessionState),
		idem:           make(map[string]string),
	}
}

// State returns the session's current checkout state and last error.
func (o *Orchestrator) State(sessionID string) (State, string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if st, ok := o.sessions[sessionID]; ok {
		return st.state, st.lastErr
	}
	return StateNotStarted, ""
}

// ProcessCheckout runs the full pipeline: validate, price the current
// cart, create and confirm a payment intent, then clear the cart and
// append the order. Each attempt requests a fresh intent; stale intents
// are never reused.
func (o *Orchestrator) ProcessCheckout(ctx context.Context, cart Cart, req *Request) (*Result, error) {
	ctx, span := util.StartSpan(ctx, "Checkout.ProcessCheckout")
	defer span.End()

	util.CheckoutAttemptsTotal.Inc()
	sessionID := cart.SessionID()

	st, err := o.begin(sessionID)
	if err != nil {
		util.CheckoutRejectedInFlight.Inc()
		return nil, err
	}

	if req.IdempotencyKey != "" {
		if orderID, ok := o.replayedOrder(req.IdempotencyKey); ok {
			o.finish(st, StateSucceeded, "")
			o.logger.Info("Duplicate checkout replayed",
				zap.String("session_id", sessionID),
				zap.String("order_id", orderID))
			result := &Result{OrderID: orderID, Status: models.OrderStatusPending, Replayed: true}
			if order, err := o.orders.GetByID(ctx, orderID); err == nil {
				result.TotalCents = order.TotalCents
				result.Status = order.Status
			}
			return result, nil
		}
	}

	if o.locker != nil {
		acquired, lockErr := o.locker.AcquireLock(ctx, "checkout:"+sessionID, o.gatewayTimeout*2)
		if lockErr != nil {
			// Lock service down: fall back to the in-process guard alone.
			o.logger.Warn("Checkout lock unavailable", zap.Error(lockErr))
		} else if !acquired {
			o.finish(st, StateNotStarted, "")
			util.CheckoutRejectedInFlight.Inc()
			return nil, ErrCheckoutInProgress
		} else {
			defer func() {
				if err := o.locker.ReleaseLock(context.Background(), "checkout:"+sessionID); err != nil {
					o.logger.Warn("Failed to release checkout lock", zap.Error(err))
				}
			}()
		}
	}

	// Validating: no payment intent is consumed on failure.
	if verr := validateRequest(req); verr != nil {
		o.finish(st, StateNotStarted, verr.Error())
		util.CheckoutFailedTotal.WithLabelValues("validation").Inc()
		return nil, verr
	}

	lines, err := cart.Lines(ctx)
	if err != nil {
		o.finish(st, StateFailed, err.Error())
		util.CheckoutFailedTotal.WithLabelValues("cart_read").Inc()
		return nil, err
	}
	if len(lines) == 0 {
		verr := &models.ValidationError{Field: "cart", Message: "cart is empty"}
		o.finish(st, StateNotStarted, verr.Error())
		util.CheckoutFailedTotal.WithLabelValues("validation").Inc()
		return nil, verr
	}

	quote := o.calc.Compute(lines)

	o.transition(st, StateAwaitingIntent)
	intent, err := o.createIntent(ctx, sessionID, quote.TotalCents)
	if err != nil {
		o.fail(ctx, st, sessionID, "intent", err)
		return nil, err
	}

	o.transition(st, StateProcessing)
	result, err := o.confirm(ctx, intent.ID)
	if err != nil {
		o.fail(ctx, st, sessionID, "confirm", err)
		return nil, err
	}
	if result.Status != models.IntentStatusSucceeded {
		gerr := &models.GatewayError{
			Op:      "confirm",
			Message: fmt.Sprintf("payment not captured, provider returned status %q", result.Status),
		}
		o.fail(ctx, st, sessionID, "declined", gerr)
		return nil, gerr
	}

	// Payment captured. The order is built from the lines snapshotted
	// before the clear, so later catalog changes cannot leak in.
	order := o.buildOrder(sessionID, lines, quote, req, result.Ref)

	if clearErr := cart.Clear(ctx); clearErr != nil {
		order.Status = models.OrderStatusNeedsReconciliation
		if appendErr := o.orders.Append(ctx, order); appendErr != nil {
			o.logger.Error("Failed to record reconciliation order",
				zap.String("order_id", order.ID),
				zap.Error(appendErr))
		}
		util.OrdersReconciliationTotal.Inc()
		ierr := &models.InconsistentStateError{OrderID: order.ID, Err: clearErr}
		o.fail(ctx, st, sessionID, "inconsistent", ierr)
		return nil, ierr
	}

	if appendErr := o.orders.Append(ctx, order); appendErr != nil {
		util.OrdersReconciliationTotal.Inc()
		ierr := &models.InconsistentStateError{OrderID: order.ID, Err: appendErr}
		o.fail(ctx, st, sessionID, "inconsistent", ierr)
		return nil, ierr
	}

	if req.IdempotencyKey != "" {
		o.mu.Lock()
		o.idem[req.IdempotencyKey] = order.ID
		o.mu.Unlock()
	}

	o.publishPlaced(ctx, order)

	util.CheckoutSucceededTotal.Inc()
	util.OrdersPlacedTotal.Inc()
	o.finish(st, StateSucceeded, "")
	o.logger.Info("Checkout succeeded",
		zap.String("session_id", sessionID),
		zap.String("order_id", order.ID),
		zap.Int64("total_cents", order.TotalCents))

	return &Result{OrderID: order.ID, TotalCents: order.TotalCents, Status: order.Status}, nil
}

func (o *Orchestrator) begin(sessionID string) (*sessionState, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	st, ok := o.sessions[sessionID]
	if !ok {
		st = &sessionState{state: StateNotStarted}
		o.sessions[sessionID] = st
	}
	if st.state.InFlight() {
		return nil, ErrCheckoutInProgress
	}
	st.state = StateValidating
	st.lastErr = ""
	return st, nil
}

func (o *Orchestrator) transition(st *sessionState, next State) {
	o.mu.Lock()
	st.state = next
	o.mu.Unlock()
}

func (o *Orchestrator) finish(st *sessionState, final State, lastErr string) {
	o.mu.Lock()
	st.state = final
	st.lastErr = lastErr
	o.mu.Unlock()
}

func (o *Orchestrator) fail(ctx context.Context, st *sessionState, sessionID, reason string, err error) {
	o.finish(st, StateFailed, err.Error())
	util.CheckoutFailedTotal.WithLabelValues(reason).Inc()
	o.logger.Warn("Checkout failed",
		zap.String("session_id", sessionID),
		zap.String("reason", reason),
		zap.Error(err))

	if o.events != nil {
		event := &models.CheckoutFailedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeCheckoutFailed,
				Timestamp: time.Now(),
			},
			SessionID: sessionID,
			Reason:    err.Error(),
		}
		if perr := o.events.PublishCheckoutFailed(ctx, event); perr != nil {
			o.logger.Warn("Failed to publish CheckoutFailed event", zap.Error(perr))
		}
	}
}

func (o *Orchestrator) replayedOrder(key string) (string, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	orderID, ok := o.idem[key]
	return orderID, ok
}

func (o *Orchestrator) createIntent(ctx context.Context, sessionID string, totalCents int64) (*models.PaymentIntent, error) {
	ctx, span := util.StartSpan(ctx, "Checkout.CreateIntent")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, o.gatewayTimeout)
	defer cancel()

	intent, err := o.gateway.CreateIntent(ctx, totalCents, o.currency,
		fmt.Sprintf("order for session %s", sessionID))
	if err != nil {
		var gerr *models.GatewayError
		if errors.As(err, &gerr) {
			return nil, err
		}
		return nil, &models.GatewayError{Op: "create_intent", Message: "request failed", Err: err}
	}
	return intent, nil
}

func (o *Orchestrator) confirm(ctx context.Context, intentID string) (*payment.ConfirmResult, error) {
	ctx, span := util.StartSpan(ctx, "Checkout.Confirm")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, o.gatewayTimeout)
	defer cancel()

	result, err := o.gateway.Confirm(ctx, intentID)
	if err != nil {
		var gerr *models.GatewayError
		if errors.As(err, &gerr) {
			return nil, err
		}
		return nil, &models.GatewayError{Op: "confirm", Message: "request failed", Err: err}
	}
	return result, nil
}

func (o *Orchestrator) buildOrder(sessionID string, lines []models.CartLine, quote pricing.Quote, req *Request, paymentRef string) *models.Order {
	items := make([]models.OrderLine, len(lines))
	for i, l := range lines {
		items[i] = models.OrderLine{
			ProductID:      l.ProductID,
			Name:           l.Name,
			UnitPriceCents: l.UnitPriceCents,
			Quantity:       l.Quantity,
		}
	}

	return &models.Order{
		ID:            uuid.New().String(),
		SessionID:     sessionID,
		Items:         items,
		SubtotalCents: quote.SubtotalCents,
		TaxCents:      quote.TaxCents,
		ShippingCents: quote.ShippingCents,
		TotalCents:    quote.TotalCents,
		Status:        models.OrderStatusPending,
		ShippingAddr: models.Address{
			FullName: req.Name,
			Line1:    req.Address,
			City:     req.City,
			State:    req.State,
			Zip:      req.Zip,
			Phone:    req.Phone,
		},
		PaymentMethod: req.PaymentMethodID,
		PaymentRef:    paymentRef,
	}
}

func (o *Orchestrator) publishPlaced(ctx context.Context, order *models.Order) {
	if o.events == nil {
		return
	}

	event := &models.OrderPlacedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderPlaced,
			Timestamp: time.Now(),
		},
		Order: *order,
	}
	if err := o.events.PublishOrderPlaced(ctx, event); err != nil {
		o.logger.Warn("Failed to publish OrderPlaced event",
			zap.String("order_id", order.ID),
			zap.Error(err))
	}
}
