package stripewebhook

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/wavecrate/wavecrate-backend/internal/checkout"
	pkgerrors "github.com/wavecrate/wavecrate-backend/pkg/errors"
)

type fakeCheckout struct {
	sessionIDs []string
	result     *checkout.PaidResult
	err        error
}

func (f *fakeCheckout) MarkOrderPaid(ctx context.Context, stripeSessionID string) (*checkout.PaidResult, error) {
	f.sessionIDs = append(f.sessionIDs, stripeSessionID)
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &checkout.PaidResult{OrderID: uuid.New(), UserID: uuid.New()}, nil
}

func checkoutSessionEvent(t *testing.T, sessionID string) *stripe.Event {
	t.Helper()
	raw, err := json.Marshal(&stripe.CheckoutSession{ID: sessionID})
	if err != nil {
		t.Fatalf("marshal session: %v", err)
	}
	return &stripe.Event{
		ID:   "evt_" + uuid.NewString(),
		Type: stripe.EventTypeCheckoutSessionCompleted,
		Data: &stripe.EventData{Raw: raw},
	}
}

func TestHandleEventMarksOrderPaid(t *testing.T) {
	co := &fakeCheckout{}
	svc, err := NewService(ServiceParams{Checkout: co})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	if err := svc.HandleEvent(context.Background(), checkoutSessionEvent(t, "cs_test_123")); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if len(co.sessionIDs) != 1 || co.sessionIDs[0] != "cs_test_123" {
		t.Fatalf("expected one paid call for cs_test_123, got %v", co.sessionIDs)
	}
}

func TestHandleEventIgnoresUnknownTypes(t *testing.T) {
	co := &fakeCheckout{}
	svc, err := NewService(ServiceParams{Checkout: co})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	event := &stripe.Event{
		ID:   "evt_other",
		Type: stripe.EventTypeInvoicePaid,
		Data: &stripe.EventData{Raw: []byte(`{}`)},
	}
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("unknown event should be acknowledged, got %v", err)
	}
	if len(co.sessionIDs) != 0 {
		t.Fatalf("checkout should not be touched, got %v", co.sessionIDs)
	}
}

func TestHandleEventRequiresSessionID(t *testing.T) {
	co := &fakeCheckout{}
	svc, err := NewService(ServiceParams{Checkout: co})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	err = svc.HandleEvent(context.Background(), checkoutSessionEvent(t, ""))
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestHandleEventPropagatesCheckoutFailure(t *testing.T) {
	co := &fakeCheckout{err: errors.New("db down")}
	svc, err := NewService(ServiceParams{Checkout: co})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	if err := svc.HandleEvent(context.Background(), checkoutSessionEvent(t, "cs_test_456")); err == nil {
		t.Fatalf("expected checkout failure to surface")
	}
}
