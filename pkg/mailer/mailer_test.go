package mailer

import (
	"context"
	"testing"

	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendRequiresRecipient(t *testing.T) {
	client := &Client{
		send: func(ctx context.Context, email *mail.SGMailV3) (int, string, error) {
			t.Fatal("send should not be called")
			return 0, "", nil
		},
		fromAddr: "orders@wavecrate.io",
	}

	err := client.Send(context.Background(), Message{Subject: "hi"})
	require.Error(t, err)
}

func TestSendSurfacesNon2xx(t *testing.T) {
	client := &Client{
		send: func(ctx context.Context, email *mail.SGMailV3) (int, string, error) {
			return 401, `{"errors":[{"message":"bad key"}]}`, nil
		},
		fromAddr: "orders@wavecrate.io",
		fromName: "Wavecrate",
	}

	err := client.Send(context.Background(), Message{
		ToEmail: "buyer@example.com",
		Subject: "Your order",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestSendSuccess(t *testing.T) {
	var sent *mail.SGMailV3
	client := &Client{
		send: func(ctx context.Context, email *mail.SGMailV3) (int, string, error) {
			sent = email
			return 202, "", nil
		},
		fromAddr: "orders@wavecrate.io",
		fromName: "Wavecrate",
	}

	err := client.Send(context.Background(), Message{
		ToEmail:   "buyer@example.com",
		ToName:    "Buyer",
		Subject:   "Your order is ready",
		PlainBody: "Thanks for your purchase.",
	})
	require.NoError(t, err)
	require.NotNil(t, sent)
	assert.Equal(t, "Your order is ready", sent.Subject)
	assert.Equal(t, "orders@wavecrate.io", sent.From.Address)
}
