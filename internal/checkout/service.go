package checkout

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/wavecrate/wavecrate-backend/internal/cart"
	"github.com/wavecrate/wavecrate-backend/internal/orders"
	"github.com/wavecrate/wavecrate-backend/pkg/db/models"
	"github.com/wavecrate/wavecrate-backend/pkg/enums"
	pkgerrors "github.com/wavecrate/wavecrate-backend/pkg/errors"
	"github.com/wavecrate/wavecrate-backend/pkg/logger"
	"github.com/wavecrate/wavecrate-backend/pkg/outbox"
	"github.com/wavecrate/wavecrate-backend/pkg/outbox/payloads"
)

const checkoutCurrency = "usd"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type orderRepository interface {
	SetStripeSession(ctx context.Context, orderID uuid.UUID, sessionID string) error
}

// Service turns the active cart into an order and drives the payment
// lifecycle around Stripe Checkout.
type Service interface {
	CreateSession(ctx context.Context, userID uuid.UUID) (*SessionResponse, error)
	MarkOrderPaid(ctx context.Context, stripeSessionID string) (*PaidResult, error)
}

type ServiceParams struct {
	TxRunner   txRunner
	Orders     orderRepository
	Stripe     StripeCheckoutClient
	Outbox     outboxEmitter
	SuccessURL string
	CancelURL  string
	Logger     *logger.Logger
}

type service struct {
	tx         txRunner
	orders     orderRepository
	stripe     StripeCheckoutClient
	outbox     outboxEmitter
	successURL string
	cancelURL  string
	logg       *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.TxRunner == nil || params.Orders == nil || params.Stripe == nil || params.Outbox == nil {
		return nil, errors.New("checkout: missing service dependencies")
	}
	return &service{
		tx:         params.TxRunner,
		orders:     params.Orders,
		stripe:     params.Stripe,
		outbox:     params.Outbox,
		successURL: params.SuccessURL,
		cancelURL:  params.CancelURL,
		logg:       params.Logger,
	}, nil
}

// CreateSession converts the active cart into a pending order in one
// transaction, then opens a Stripe Checkout Session for the order total and
// records the session id on the order. Item prices come from the cart
// snapshots, never from the live catalog.
func (s *service) CreateSession(ctx context.Context, userID uuid.UUID) (*SessionResponse, error) {
	var order models.Order

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		cartRepo := cart.NewRepository(tx)

		record, err := cartRepo.FindActiveByUser(ctx, userID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "cart is empty")
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
		}
		if len(record.Items) == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "cart is empty")
		}

		subtotal := record.SubtotalCents()
		order = models.Order{
			ID:            uuid.New(),
			UserID:        userID,
			Status:        enums.OrderStatusPending,
			SubtotalCents: subtotal,
			TotalCents:    subtotal,
		}
		for _, item := range record.Items {
			order.Items = append(order.Items, models.OrderItem{
				ID:             uuid.New(),
				OrderID:        order.ID,
				SampleID:       item.SampleID,
				PackID:         item.PackID,
				Format:         item.Format,
				Title:          item.Title,
				UnitPriceCents: item.UnitPriceCents,
			})
		}
		if err := orders.NewRepository(tx).Create(ctx, &order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create order")
		}
		if err := cartRepo.MarkConverted(ctx, record.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "convert cart")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sess, err := s.stripe.CreateSession(ctx, s.sessionParams(order))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create checkout session")
	}
	if err := s.orders.SetStripeSession(ctx, order.ID, sess.ID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record checkout session")
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"order_id":          order.ID.String(),
			"stripe_session_id": sess.ID,
			"total_cents":       order.TotalCents,
		})
		s.logg.Info(logCtx, "checkout.session.created")
	}

	return &SessionResponse{
		OrderID:         order.ID,
		StripeSessionID: sess.ID,
		CheckoutURL:     sess.URL,
		TotalCents:      order.TotalCents,
	}, nil
}

func (s *service) sessionParams(order models.Order) *stripe.CheckoutSessionParams {
	lineItems := make([]*stripe.CheckoutSessionLineItemParams, 0, len(order.Items))
	for _, item := range order.Items {
		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(1),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(checkoutCurrency),
				UnitAmount: stripe.Int64(int64(item.UnitPriceCents)),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(item.Title),
				},
			},
		})
	}
	return &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(s.successURL),
		CancelURL:         stripe.String(s.cancelURL),
		ClientReferenceID: stripe.String(order.ID.String()),
		LineItems:         lineItems,
		Metadata: map[string]string{
			"order_id": order.ID.String(),
			"user_id":  order.UserID.String(),
		},
	}
}

// MarkOrderPaid transitions the order behind a completed checkout session to
// paid and queues the order.paid event in the same transaction. Replayed
// webhooks find the order already paid and change nothing.
func (s *service) MarkOrderPaid(ctx context.Context, stripeSessionID string) (*PaidResult, error) {
	var result PaidResult

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := orders.NewRepository(tx)

		order, err := repo.FindByStripeSessionID(ctx, stripeSessionID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found for checkout session")
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
		}

		result.OrderID = order.ID
		result.UserID = order.UserID
		if order.Status.GrantsEntitlement() {
			result.AlreadyPaid = true
			if order.PaidAt != nil {
				result.PaidAt = *order.PaidAt
			}
			return nil
		}

		paidAt := time.Now().UTC()
		if err := repo.MarkPaid(ctx, order.ID, paidAt); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark order paid")
		}
		result.PaidAt = paidAt

		event := outbox.DomainEvent{
			EventType:     enums.OutboxEventOrderPaid,
			AggregateType: enums.OutboxAggregateOrder,
			AggregateID:   order.ID,
			Data: payloads.OrderPaidEvent{
				OrderID:    order.ID,
				UserID:     order.UserID,
				TotalCents: order.TotalCents,
				ItemCount:  len(order.Items),
				PaidAt:     paidAt,
			},
			Version: 1,
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit order.paid")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil && !result.AlreadyPaid {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"order_id": result.OrderID.String(),
			"user_id":  result.UserID.String(),
		})
		s.logg.Info(logCtx, "order.paid")
	}
	return &result, nil
}
