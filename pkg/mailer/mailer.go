package mailer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/wavecrate/wavecrate-backend/pkg/config"
	"github.com/wavecrate/wavecrate-backend/pkg/logger"
)

// Message is a single outbound email.
type Message struct {
	ToEmail   string
	ToName    string
	Subject   string
	PlainBody string
	HTMLBody  string
}

// Sender delivers transactional email.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Client sends mail through SendGrid.
type Client struct {
	send     func(ctx context.Context, email *mail.SGMailV3) (int, string, error)
	fromAddr string
	fromName string
	logg     *logger.Logger
}

// NewClient builds a SendGrid-backed sender.
func NewClient(cfg config.SendgridConfig, logg *logger.Logger) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("sendgrid api key is required")
	}
	if cfg.DefaultFrom == "" {
		return nil, errors.New("sendgrid from address is required")
	}

	sg := sendgrid.NewSendClient(apiKey)
	return &Client{
		send: func(ctx context.Context, email *mail.SGMailV3) (int, string, error) {
			resp, err := sg.SendWithContext(ctx, email)
			if err != nil {
				return 0, "", err
			}
			return resp.StatusCode, resp.Body, nil
		},
		fromAddr: cfg.DefaultFrom,
		fromName: cfg.FromName,
		logg:     logg,
	}, nil
}

// Send delivers the message, treating any non-2xx SendGrid status as an error.
func (c *Client) Send(ctx context.Context, msg Message) error {
	if c == nil || c.send == nil {
		return errors.New("mailer not initialized")
	}
	if msg.ToEmail == "" {
		return errors.New("recipient email is required")
	}
	if msg.Subject == "" {
		return errors.New("subject is required")
	}

	from := mail.NewEmail(c.fromName, c.fromAddr)
	to := mail.NewEmail(msg.ToName, msg.ToEmail)
	email := mail.NewSingleEmail(from, msg.Subject, to, msg.PlainBody, msg.HTMLBody)

	status, body, err := c.send(ctx, email)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if status < http.StatusOK || status >= http.StatusMultipleChoices {
		return fmt.Errorf("sendgrid send returned %d: %s", status, strings.TrimSpace(body))
	}
	if c.logg != nil {
		c.logg.Info(ctx, fmt.Sprintf("email sent to %s", msg.ToEmail))
	}
	return nil
}
