package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wavecrate/wavecrate-backend/pkg/db/models"
	"github.com/wavecrate/wavecrate-backend/pkg/enums"
	"github.com/wavecrate/wavecrate-backend/pkg/logger"
	"github.com/wavecrate/wavecrate-backend/pkg/mailer"
	"github.com/wavecrate/wavecrate-backend/pkg/outbox"
	"github.com/wavecrate/wavecrate-backend/pkg/outbox/idempotency"
	"github.com/wavecrate/wavecrate-backend/pkg/outbox/payloads"
)

const domainEventConsumer = "domain-notifications"

type userFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Consumer watches domain events and turns them into in-app notifications
// plus transactional email. One instance serves one subscription; events it
// does not recognize are acked and skipped.
type Consumer struct {
	repo         Repository
	users        userFinder
	mail         mailer.Sender
	subscription *pubsub.Subscriber
	idempotency  *idempotency.Manager
	logg         *logger.Logger
}

// NewConsumer builds a domain event notification consumer.
func NewConsumer(repo Repository, users userFinder, mail mailer.Sender, subscription *pubsub.Subscriber, manager *idempotency.Manager, logg *logger.Logger) (*Consumer, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if users == nil {
		return nil, fmt.Errorf("user repository required")
	}
	if mail == nil {
		return nil, fmt.Errorf("mail sender required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("domain subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		repo:         repo,
		users:        users,
		mail:         mail,
		subscription: subscription,
		idempotency:  manager,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := msg.Attributes["event_type"]
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	})

	var handler func(context.Context, outbox.PayloadEnvelope, context.Context) error
	switch eventType {
	case string(enums.OutboxEventOrderPaid):
		handler = c.handleOrderPaid
	case string(enums.OutboxEventPackDeleted):
		handler = c.handlePackDeleted
	default:
		c.logg.Info(logCtx, "skipping unhandled event")
		return processResult{ack: true}
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{ack: true}
	}

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, domainEventConsumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	if err := handler(ctx, envelope, logCtx); err != nil {
		c.logg.Error(logCtx, "notification handling failed", err)
		_ = c.idempotency.Delete(ctx, domainEventConsumer, eventID)
		return processResult{nack: true}
	}
	return processResult{ack: true}
}

func (c *Consumer) handleOrderPaid(ctx context.Context, envelope outbox.PayloadEnvelope, logCtx context.Context) error {
	var payload payloads.OrderPaidEvent
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		return fmt.Errorf("parse order.paid payload: %w", err)
	}
	if payload.UserID == uuid.Nil {
		return fmt.Errorf("user id missing")
	}

	total := decimal.NewFromInt(int64(payload.TotalCents)).Shift(-2).StringFixed(2)
	subject := "Your order is confirmed"
	body := fmt.Sprintf("Thanks for your purchase! %d item(s) for $%s are now in your library.", payload.ItemCount, total)

	notification := &models.Notification{
		ID:      uuid.New(),
		UserID:  payload.UserID,
		Kind:    enums.NotificationKindOrderConfirmation,
		Subject: subject,
		Body:    body,
	}
	if err := c.repo.Create(ctx, notification); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}

	user, err := c.users.FindByID(ctx, payload.UserID)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	if err := c.mail.Send(ctx, mailer.Message{
		ToEmail:   user.Email,
		ToName:    user.DisplayName,
		Subject:   subject,
		PlainBody: body,
	}); err != nil {
		return fmt.Errorf("send confirmation email: %w", err)
	}

	c.logg.Info(c.logg.WithField(logCtx, "order_id", payload.OrderID.String()), "order confirmation delivered")
	return nil
}

func (c *Consumer) handlePackDeleted(ctx context.Context, envelope outbox.PayloadEnvelope, logCtx context.Context) error {
	var payload payloads.PackDeletedEvent
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		return fmt.Errorf("parse pack.deleted payload: %w", err)
	}
	if payload.CreatorID == uuid.Nil {
		return fmt.Errorf("creator id missing")
	}

	notification := &models.Notification{
		ID:      uuid.New(),
		UserID:  payload.CreatorID,
		Kind:    enums.NotificationKindPackRemoved,
		Subject: "Pack removed",
		Body:    fmt.Sprintf("%q and its %d sample(s) were removed from the catalog.", payload.Title, len(payload.SampleIDs)),
	}
	if err := c.repo.Create(ctx, notification); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}

	c.logg.Info(c.logg.WithField(logCtx, "pack_id", payload.PackID.String()), "pack removal recorded")
	return nil
}
