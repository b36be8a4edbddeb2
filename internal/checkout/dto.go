package checkout

import (
	"time"

	"github.com/google/uuid"
)

// SessionResponse hands the client everything it needs to finish paying.
type SessionResponse struct {
	OrderID         uuid.UUID `json:"order_id"`
	StripeSessionID string    `json:"stripe_session_id"`
	CheckoutURL     string    `json:"checkout_url"`
	TotalCents      int       `json:"total_cents"`
}

// PaidResult reports the outcome of a paid-webhook transition.
type PaidResult struct {
	OrderID     uuid.UUID
	UserID      uuid.UUID
	AlreadyPaid bool
	PaidAt      time.Time
}
