package mailer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"strings"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// MailLogger defines the logging contract for receipt delivery operations.
type MailLogger func(ctx context.Context, event string, fields map[string]any)

type sendClient interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

const receiptHTML = `<!DOCTYPE html>
<html>
  <body style="font-family: Arial, sans-serif; color: #333;">
    <h2>Thank you for your purchase!</h2>
    <p>Your payment has been processed successfully.</p>
    <p>Your transaction ID is: <strong>{{.TransactionID}}</strong></p>
    <p>Please keep this email for your records.</p>
  </body>
</html>`

var receiptTemplate = template.Must(template.New("receipt").Parse(receiptHTML))

// Receipt describes a single purchase confirmation to deliver.
type Receipt struct {
	TransactionID string
	// ToAddress overrides the configured default recipient when set.
	ToAddress string
}

// ReceiptMailerConfig configures the ReceiptMailer.
type ReceiptMailerConfig struct {
	APIKey      string
	FromAddress string
	FromName    string
	Subject     string
	// ToAddress is the default recipient used when a receipt names none.
	ToAddress string
	Client    sendClient
	Logger    MailLogger
}

// ReceiptMailer delivers purchase confirmation emails through SendGrid.
type ReceiptMailer struct {
	client    sendClient
	from      *mail.Email
	subject   string
	toDefault string
	logger    MailLogger
}

// NewReceiptMailer constructs a ReceiptMailer using the given configuration.
func NewReceiptMailer(cfg ReceiptMailerConfig) (*ReceiptMailer, error) {
	client := cfg.Client
	if client == nil {
		apiKey := strings.TrimSpace(cfg.APIKey)
		if apiKey == "" {
			return nil, errors.New("mailer: sendgrid api key is required")
		}
		client = sendgrid.NewSendClient(apiKey)
	}

	fromAddress := strings.TrimSpace(cfg.FromAddress)
	if fromAddress == "" {
		return nil, errors.New("mailer: from address is required")
	}

	subject := strings.TrimSpace(cfg.Subject)
	if subject == "" {
		subject = "Thank you for purchasing our NFT!"
	}

	logger := cfg.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &ReceiptMailer{
		client:    client,
		from:      mail.NewEmail(strings.TrimSpace(cfg.FromName), fromAddress),
		subject:   subject,
		toDefault: strings.TrimSpace(cfg.ToAddress),
		logger:    logger,
	}, nil
}

// SendReceipt renders and delivers the purchase confirmation email.
func (m *ReceiptMailer) SendReceipt(ctx context.Context, receipt Receipt) error {
	if m == nil {
		return errors.New("mailer: mailer is nil")
	}

	transactionID := strings.TrimSpace(receipt.TransactionID)
	if transactionID == "" {
		return errors.New("mailer: transaction id is required")
	}

	toAddress := strings.TrimSpace(receipt.ToAddress)
	if toAddress == "" {
		toAddress = m.toDefault
	}
	if toAddress == "" {
		return errors.New("mailer: recipient address is required")
	}

	var html bytes.Buffer
	if err := receiptTemplate.Execute(&html, struct{ TransactionID string }{transactionID}); err != nil {
		return fmt.Errorf("mailer: rendering receipt: %w", err)
	}

	plain := fmt.Sprintf("Thank you for your purchase! Your transaction ID is: %s", transactionID)
	message := mail.NewSingleEmail(m.from, m.subject, mail.NewEmail("", toAddress), plain, html.String())

	resp, err := m.client.SendWithContext(ctx, message)
	if err != nil {
		m.logger(ctx, "mail.receipt.transport_error", map[string]any{
			"transaction_id": transactionID,
			"error":          err.Error(),
		})
		return fmt.Errorf("mailer: sending receipt: %w", err)
	}
	if resp != nil && resp.StatusCode >= 400 {
		m.logger(ctx, "mail.receipt.rejected", map[string]any{
			"transaction_id": transactionID,
			"status":         resp.StatusCode,
		})
		return fmt.Errorf("mailer: sendgrid rejected receipt with status %d", resp.StatusCode)
	}

	m.logger(ctx, "mail.receipt.sent", map[string]any{
		"transaction_id": transactionID,
	})
	return nil
}
