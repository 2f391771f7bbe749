// Package payment defines the payment provider facade used by checkout.
// The orchestrator treats the provider as opaque I/O behind the Gateway
// interface; Simulated stands in for the real provider.
package payment

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"shop-service/internal/models"
	"shop-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ConfirmResult is the provider's answer to a confirmation request.
type ConfirmResult struct {
	Status string `json:"status"`
	Ref    string `json:"ref"`
}

// Gateway is the external payment provider abstraction.
type Gateway interface {
	CreateIntent(ctx context.Context, amountCents int64, currency, description string) (*models.PaymentIntent, error)
	ListMethods(ctx context.Context) ([]models.PaymentMethod, error)
	Confirm(ctx context.Context, intentID string) (*ConfirmResult, error)
}

type intentState struct {
	intent   models.PaymentIntent
	consumed bool
}

// Simulated is an in-memory payment provider with configurable latency
// and decline rate. An intent can be confirmed at most once.
type Simulated struct {
	logger      *zap.Logger
	failureRate float64
	latency     time.Duration

	mu      sync.Mutex
	rnd     *rand.Rand
	intents map[string]*intentState
	methods []models.PaymentMethod
}

// NewSimulated creates a simulated gateway. failureRate is the fraction
// of confirmations that decline (0.0 - 1.0).
func NewSimulated(failureRate float64, latency time.Duration) *Simulated {
	return &Simulated{
		logger:      util.GetLogger(),
		failureRate: failureRate,
		latency:     latency,
		rnd:         rand.New(rand.NewSource(time.Now().UnixNano())),
		intents:     make(map[string]*intentState),
		methods: []models.PaymentMethod{
			{ID: "pm-card", Name: "Credit / Debit Card", Type: models.PaymentMethodTypeCard, IconURL: "/img/pm-card.png"},
			{ID: "pm-cod", Name: "Cash on Delivery", Type: models.PaymentMethodTypeOther, IconURL: "/img/pm-cod.png"},
			{ID: "pm-wallet", Name: "Wallet", Type: models.PaymentMethodTypeOther, IconURL: "/img/pm-wallet.png"},
		},
	}
}

// CreateIntent issues a new intent for the amount.
func (g *Simulated) CreateIntent(ctx context.Context, amountCents int64, currency, description string) (*models.PaymentIntent, error) {
	start := time.Now()
	defer func() {
		util.GatewayCallLatency.WithLabelValues("create_intent").Observe(time.Since(start).Seconds())
	}()

	if amountCents <= 0 {
		return nil, &models.GatewayError{Op: "create_intent", Message: "amount must be positive"}
	}

	if err := g.simulateLatency(ctx); err != nil {
		return nil, &models.GatewayError{Op: "create_intent", Message: "request aborted", Err: err}
	}

	intent := models.PaymentIntent{
		ID:          fmt.Sprintf("pi_%s", uuid.New().String()[:12]),
		AmountCents: amountCents,
		Currency:    currency,
		Status:      models.IntentStatusRequiresConfirmation,
		CreatedAt:   time.Now(),
	}

	g.mu.Lock()
	g.intents[intent.ID] = &intentState{intent: intent}
	g.mu.Unlock()

	g.logger.Info("Payment intent created",
		zap.String("intent_id", intent.ID),
		zap.Int64("amount_cents", amountCents),
		zap.String("currency", currency),
		zap.String("description", description))

	out := intent
	return &out, nil
}

// ListMethods returns the available payment methods.
func (g *Simulated) ListMethods(ctx context.Context) ([]models.PaymentMethod, error) {
	if err := g.simulateLatency(ctx); err != nil {
		return nil, &models.GatewayError{Op: "list_methods", Message: "request aborted", Err: err}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]models.PaymentMethod, len(g.methods))
	copy(out, g.methods)
	return out, nil
}

// Confirm consumes the intent. A second confirmation of the same intent
// fails regardless of the first outcome.
func (g *Simulated) Confirm(ctx context.Context, intentID string) (*ConfirmResult, error) {
	start := time.Now()
	defer func() {
		util.GatewayCallLatency.WithLabelValues("confirm").Observe(time.Since(start).Seconds())
	}()

	if err := g.simulateLatency(ctx); err != nil {
		return nil, &models.GatewayError{Op: "confirm", Message: "request aborted", Err: err}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	state, ok := g.intents[intentID]
	if !ok {
		return nil, &models.GatewayError{Op: "confirm", Message: fmt.Sprintf("unknown intent %s", intentID)}
	}
	if state.consumed {
		return nil, &models.GatewayError{Op: "confirm", Message: fmt.Sprintf("intent %s already consumed", intentID)}
	}
	state.consumed = true

	if g.rnd.Float64() < g.failureRate {
		state.intent.Status = models.IntentStatusFailed
		g.logger.Warn("Payment declined", zap.String("intent_id", intentID))
		return &ConfirmResult{Status: models.IntentStatusFailed}, nil
	}

	state.intent.Status = models.IntentStatusSucceeded
	ref := fmt.Sprintf("TXN-%s", uuid.New().String()[:8])
	g.logger.Info("Payment confirmed",
		zap.String("intent_id", intentID),
		zap.String("ref", ref))

	return &ConfirmResult{Status: models.IntentStatusSucceeded, Ref: ref}, nil
}

func (g *Simulated) simulateLatency(ctx context.Context) error {
	if g.latency <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(g.latency)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
