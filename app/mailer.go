package app

import (
	"context"
	"fmt"
	"log"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/samouzou/verza/app/config"
	"github.com/samouzou/verza/app/models"
)

// Mailer sends one transactional email. No delivery-status callback is
// consumed; a nil error only means the provider accepted the message.
type Mailer interface {
	Send(ctx context.Context, msg models.MailMessage) error
}

// SendGridMailer sends through the SendGrid v3 API.
type SendGridMailer struct {
	client    *sendgrid.Client
	fromEmail string
	fromName  string
}

func NewSendGridMailer(cfg config.MailConfig) *SendGridMailer {
	return &SendGridMailer{
		client:    sendgrid.NewSendClient(cfg.SendGridKey),
		fromEmail: cfg.FromEmail,
		fromName:  cfg.FromName,
	}
}

func (m *SendGridMailer) Send(ctx context.Context, msg models.MailMessage) error {
	if msg.To == "" {
		return validationErrorf("mail message missing recipient")
	}
	fromEmail := msg.From
	if fromEmail == "" {
		fromEmail = m.fromEmail
	}

	from := mail.NewEmail(m.fromName, fromEmail)
	to := mail.NewEmail("", msg.To)
	message := mail.NewSingleEmail(from, msg.Subject, to, msg.Text, msg.HTML)

	resp, err := m.client.SendWithContext(ctx, message)
	if err != nil {
		return gatewayError("mail send failed", err)
	}
	if resp.StatusCode >= 400 {
		return gatewayError(fmt.Sprintf("mail provider rejected send with status %d", resp.StatusCode), nil)
	}
	log.Printf("email sent kind=%s to=%s contract=%s", msg.Kind, msg.To, msg.ContractID)
	return nil
}
