package stripewebhook

import (
	"context"
	"encoding/json"

	"github.com/stripe/stripe-go/v84"

	"github.com/wavecrate/wavecrate-backend/internal/checkout"
	pkgerrors "github.com/wavecrate/wavecrate-backend/pkg/errors"
	"github.com/wavecrate/wavecrate-backend/pkg/logger"
)

type checkoutService interface {
	MarkOrderPaid(ctx context.Context, stripeSessionID string) (*checkout.PaidResult, error)
}

type ServiceParams struct {
	Checkout checkoutService
	Logger   *logger.Logger
}

// Service reacts to Stripe Checkout lifecycle events. Payment is the
// only state transition driven from the webhook; everything downstream
// of a paid order rides the outbox.
type Service struct {
	checkout checkoutService
	logg     *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Checkout == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "checkout service required")
	}
	return &Service{
		checkout: params.Checkout,
		logg:     params.Logger,
	}, nil
}

func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode checkout session event")
		}
		if session.ID == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "checkout session id missing")
		}

		result, err := s.checkout.MarkOrderPaid(ctx, session.ID)
		if err != nil {
			return err
		}

		if s.logg != nil {
			logCtx := s.logg.WithFields(ctx, map[string]any{
				"order_id":     result.OrderID.String(),
				"session_id":   session.ID,
				"already_paid": result.AlreadyPaid,
			})
			s.logg.Info(logCtx, "checkout.session.completed")
		}
		return nil
	default:
		// Unrecognized events are acknowledged so Stripe stops retrying.
		return nil
	}
}
