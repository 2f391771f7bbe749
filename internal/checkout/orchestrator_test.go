package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"shop-service/internal/cart"
	"shop-service/internal/catalog"
	"shop-service/internal/models"
	"shop-service/internal/orders"
	"shop-service/internal/payment"
	"shop-service/internal/pricing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type createCall struct {
	AmountCents int64
	Currency    string
}

// mockGateway implements payment.Gateway for testing
type mockGateway struct {
	mu            sync.Mutex
	createCalls   []createCall
	createErr     error
	confirmCalls  int
	confirmStatus string
	confirmErr    error
	block         chan struct{} // CreateIntent waits on this when set
}

func (g *mockGateway) CreateIntent(ctx context.Context, amountCents int64, currency, description string) (*models.PaymentIntent, error) {
	if g.block != nil {
		<-g.block
	}
	g.mu.Lock()
	g.createCalls = append(g.createCalls, createCall{AmountCents: amountCents, Currency: currency})
	g.mu.Unlock()
	if g.createErr != nil {
		return nil, g.createErr
	}
	return &models.PaymentIntent{
		ID:          "pi_test",
		AmountCents: amountCents,
		Currency:    currency,
		Status:      models.IntentStatusRequiresConfirmation,
	}, nil
}

func (g *mockGateway) ListMethods(_ context.Context) ([]models.PaymentMethod, error) {
	return nil, nil
}

func (g *mockGateway) Confirm(_ context.Context, _ string) (*payment.ConfirmResult, error) {
	g.mu.Lock()
	g.confirmCalls++
	g.mu.Unlock()
	if g.confirmErr != nil {
		return nil, g.confirmErr
	}
	status := g.confirmStatus
	if status == "" {
		status = models.IntentStatusSucceeded
	}
	return &payment.ConfirmResult{Status: status, Ref: "TXN-TEST"}, nil
}

func (g *mockGateway) calls() []createCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]createCall, len(g.createCalls))
	copy(out, g.createCalls)
	return out
}

// failingClearCart wraps a real cart but refuses to clear.
type failingClearCart struct {
	*cart.Store
}

func (f *failingClearCart) Clear(_ context.Context) error {
	return errors.New("cart backend down")
}

func testCatalog() *catalog.Memory {
	return catalog.NewMemoryWith(
		models.Product{ID: "p-a", Name: "Product A", PriceCents: 1000},
		models.Product{ID: "p-b", Name: "Product B", PriceCents: 500},
	)
}

func validRequest() *Request {
	return &Request{
		Name:            "Dana Smith",
		Email:           "dana@example.com",
		Phone:           "555-0100",
		Address:         "1 Main St",
		City:            "Springfield",
		State:           "IL",
		Zip:             "62701",
		PaymentMethodID: "pm-card",
		CardNumber:      "4242424242424242",
		CardExpiry:      "12/27",
		CardCVV:         "123",
	}
}

func newTestSetup(t *testing.T, gw *mockGateway) (*Orchestrator, *cart.Store, *orders.Memory) {
	t.Helper()

	cartStore := cart.NewStore("s-1", testCatalog(), nil)
	repo := orders.NewMemory()
	orch := New(gw, repo, pricing.NewDefault(), nil, nil, "USD", 5*time.Second)

	ctx := context.Background()
	require.NoError(t, cartStore.Add(ctx, "p-a", 2)) // 2 x $10.00
	require.NoError(t, cartStore.Add(ctx, "p-b", 1)) // 1 x $5.00

	return orch, cartStore, repo
}

func TestCheckoutSuccess(t *testing.T) {
	gw := &mockGateway{}
	orch, cartStore, repo := newTestSetup(t, gw)
	ctx := context.Background()

	result, err := orch.ProcessCheckout(ctx, cartStore, validRequest())
	require.NoError(t, err)

	// $25.00 subtotal + $2.00 tax = $27.00, charged exactly once.
	calls := gw.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, int64(2700), calls[0].AmountCents)
	assert.Equal(t, "USD", calls[0].Currency)
	assert.Equal(t, int64(2700), result.TotalCents)

	// Cart cleared, exactly one order appended with the pre-clear snapshot.
	assert.Equal(t, 0, cartStore.ItemCount())

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	order := list[0]
	assert.Equal(t, result.OrderID, order.ID)
	assert.Equal(t, int64(2700), order.TotalCents)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	require.Len(t, order.Items, 2)
	assert.Equal(t, "p-a", order.Items[0].ProductID)
	assert.Equal(t, 2, order.Items[0].Quantity)
	assert.Equal(t, int64(1000), order.Items[0].UnitPriceCents)
	assert.Equal(t, "p-b", order.Items[1].ProductID)
	assert.Equal(t, "Springfield", order.ShippingAddr.City)

	state, lastErr := orch.State("s-1")
	assert.Equal(t, StateSucceeded, state)
	assert.Empty(t, lastErr)
}

func TestValidationFailureSkipsGateway(t *testing.T) {
	gw := &mockGateway{}
	orch, cartStore, repo := newTestSetup(t, gw)

	req := validRequest()
	req.City = ""

	_, err := orch.ProcessCheckout(context.Background(), cartStore, req)

	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "city", verr.Field)

	// No gateway interaction, no cart mutation, no order.
	assert.Empty(t, gw.calls())
	assert.Equal(t, 3, cartStore.ItemCount())
	list, _ := repo.List(context.Background())
	assert.Empty(t, list)

	// Validation failure returns the session to NOT_STARTED with the
	// error message retained.
	state, lastErr := orch.State("s-1")
	assert.Equal(t, StateNotStarted, state)
	assert.Contains(t, lastErr, "city")
}

func TestCardValidation(t *testing.T) {
	gw := &mockGateway{}
	orch, cartStore, _ := newTestSetup(t, gw)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*Request)
		field  string
	}{
		{"short card number", func(r *Request) { r.CardNumber = "4242" }, "card_number"},
		{"bad expiry", func(r *Request) { r.CardExpiry = "13/27" }, "card_expiry"},
		{"bad expiry format", func(r *Request) { r.CardExpiry = "1227" }, "card_expiry"},
		{"short cvv", func(r *Request) { r.CardCVV = "12" }, "card_cvv"},
		{"bad email", func(r *Request) { r.Email = "not-an-email" }, "email"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(req)

			_, err := orch.ProcessCheckout(ctx, cartStore, req)

			var verr *models.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}

	assert.Empty(t, gw.calls())
}

func TestNonCardSkipsCardChecks(t *testing.T) {
	gw := &mockGateway{}
	orch, cartStore, _ := newTestSetup(t, gw)

	req := validRequest()
	req.PaymentMethodID = "pm-cod"
	req.CardNumber = ""
	req.CardExpiry = ""
	req.CardCVV = ""

	_, err := orch.ProcessCheckout(context.Background(), cartStore, req)
	require.NoError(t, err)
}

func TestConfirmDeclinedLeavesCartIntact(t *testing.T) {
	gw := &mockGateway{confirmStatus: models.IntentStatusFailed}
	orch, cartStore, repo := newTestSetup(t, gw)
	ctx := context.Background()

	_, err := orch.ProcessCheckout(ctx, cartStore, validRequest())

	var gerr *models.GatewayError
	require.ErrorAs(t, err, &gerr)
	assert.Contains(t, gerr.Error(), models.IntentStatusFailed)

	// Cart unchanged, no order appended.
	assert.Equal(t, 3, cartStore.ItemCount())
	list, _ := repo.List(ctx)
	assert.Empty(t, list)

	state, _ := orch.State("s-1")
	assert.Equal(t, StateFailed, state)
}

func TestCreateIntentErrorFails(t *testing.T) {
	gw := &mockGateway{createErr: &models.GatewayError{Op: "create_intent", Message: "provider unreachable"}}
	orch, cartStore, repo := newTestSetup(t, gw)
	ctx := context.Background()

	_, err := orch.ProcessCheckout(ctx, cartStore, validRequest())

	var gerr *models.GatewayError
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, 0, gw.confirmCalls)
	assert.Equal(t, 3, cartStore.ItemCount())
	list, _ := repo.List(ctx)
	assert.Empty(t, list)
}

func TestCartClearFailureRecordsReconciliation(t *testing.T) {
	gw := &mockGateway{}
	orch, cartStore, repo := newTestSetup(t, gw)
	ctx := context.Background()

	_, err := orch.ProcessCheckout(ctx, &failingClearCart{cartStore}, validRequest())

	var ierr *models.InconsistentStateError
	require.ErrorAs(t, err, &ierr)
	require.NotEmpty(t, ierr.OrderID)

	// Payment was captured, so the order must be recorded for manual
	// reconciliation even though the checkout is reported as failed.
	order, err := repo.GetByID(ctx, ierr.OrderID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusNeedsReconciliation, order.Status)
	assert.Equal(t, int64(2700), order.TotalCents)

	state, _ := orch.State("s-1")
	assert.Equal(t, StateFailed, state)
}

func TestReentrantCheckoutRejected(t *testing.T) {
	gw := &mockGateway{block: make(chan struct{})}
	orch, cartStore, _ := newTestSetup(t, gw)
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = orch.ProcessCheckout(ctx, cartStore, validRequest())
	}()

	// Wait until the first attempt is past validation and inside the
	// gateway call.
	require.Eventually(t, func() bool {
		state, _ := orch.State("s-1")
		return state == StateAwaitingIntent
	}, 2*time.Second, 5*time.Millisecond)

	_, err := orch.ProcessCheckout(ctx, cartStore, validRequest())
	assert.ErrorIs(t, err, ErrCheckoutInProgress)

	close(gw.block)
	<-done

	// The rejected attempt must not have issued a second intent.
	assert.Len(t, gw.calls(), 1)
}

func TestRetryAfterFailureUsesFreshIntent(t *testing.T) {
	gw := &mockGateway{confirmStatus: models.IntentStatusFailed}
	orch, cartStore, _ := newTestSetup(t, gw)
	ctx := context.Background()

	_, err := orch.ProcessCheckout(ctx, cartStore, validRequest())
	require.Error(t, err)

	gw.confirmStatus = models.IntentStatusSucceeded
	_, err = orch.ProcessCheckout(ctx, cartStore, validRequest())
	require.NoError(t, err)

	assert.Len(t, gw.calls(), 2)
}

func TestIdempotentSubmissionReplays(t *testing.T) {
	gw := &mockGateway{}
	orch, cartStore, repo := newTestSetup(t, gw)
	ctx := context.Background()

	req := validRequest()
	req.IdempotencyKey = "idem-123"

	first, err := orch.ProcessCheckout(ctx, cartStore, req)
	require.NoError(t, err)

	second, err := orch.ProcessCheckout(ctx, cartStore, req)
	require.NoError(t, err)

	assert.Equal(t, first.OrderID, second.OrderID)
	assert.True(t, second.Replayed)
	assert.Len(t, gw.calls(), 1)

	list, _ := repo.List(ctx)
	assert.Len(t, list, 1)
}

func TestEmptyCartRejected(t *testing.T) {
	gw := &mockGateway{}
	orch, cartStore, _ := newTestSetup(t, gw)
	ctx := context.Background()

	require.NoError(t, cartStore.Clear(ctx))

	_, err := orch.ProcessCheckout(ctx, cartStore, validRequest())

	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "cart", verr.Field)
	assert.Empty(t, gw.calls())
}

func TestOrderPricesFrozenAfterCatalogChange(t *testing.T) {
	gw := &mockGateway{}
	cat := testCatalog()
	cartStore := cart.NewStore("s-1", cat, nil)
	repo := orders.NewMemory()
	orch := New(gw, repo, pricing.NewDefault(), nil, nil, "USD", 5*time.Second)
	ctx := context.Background()

	require.NoError(t, cartStore.Add(ctx, "p-a", 1))

	result, err := orch.ProcessCheckout(ctx, cartStore, validRequest())
	require.NoError(t, err)

	// Catalog price change after checkout must not leak into the order.
	cat.Put(models.Product{ID: "p-a", Name: "Product A", PriceCents: 9999})

	order, err := repo.GetByID(ctx, result.OrderID)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), order.Items[0].UnitPriceCents)
}
