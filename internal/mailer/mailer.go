// Package mailer sends invoice and verification emails over SMTP.
package mailer

import (
	"context"
	"fmt"
	"invisifeed/entity"
	"invisifeed/internal/config"
	"invisifeed/lib/sl"
	"log/slog"

	"github.com/wneessen/go-mail"
)

// Sender delivers composed messages; *mail.Client implements it
type Sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

type Mailer struct {
	sender Sender
	from   string
	log    *slog.Logger
}

// New returns a mailer; when mail is disabled messages are only logged
func New(conf config.Mail, log *slog.Logger) (*Mailer, error) {
	m := &Mailer{
		from: conf.From,
		log:  log.With(sl.Module("mailer")),
	}
	if !conf.Enabled {
		m.log.Warn("smtp disabled, emails will be logged only")
		return m, nil
	}
	client, err := mail.NewClient(conf.Host,
		mail.WithPort(conf.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(conf.Username),
		mail.WithPassword(conf.Password),
		mail.WithTLSPortPolicy(mail.TLSOpportunistic),
	)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	m.sender = client
	return m, nil
}

func NewWithSender(sender Sender, from string, log *slog.Logger) *Mailer {
	return &Mailer{
		sender: sender,
		from:   from,
		log:    log.With(sl.Module("mailer")),
	}
}

func (m *Mailer) SendInvoice(ctx context.Context, data *entity.InvoiceMail) error {
	company := data.CompanyName
	if company == "" {
		company = "Your Company"
	}
	body, err := renderInvoice(&entity.InvoiceMail{
		CustomerEmail: data.CustomerEmail,
		InvoiceNumber: data.InvoiceNumber,
		PdfUrl:        data.PdfUrl,
		CompanyName:   company,
		FeedbackUrl:   data.FeedbackUrl,
	})
	if err != nil {
		return fmt.Errorf("render invoice mail: %w", err)
	}
	subject := fmt.Sprintf("Invoice %s from %s", data.InvoiceNumber, company)
	return m.send(ctx, data.CustomerEmail, subject, body)
}

func (m *Mailer) SendVerification(ctx context.Context, data *entity.VerificationMail) error {
	body, err := renderVerification(data)
	if err != nil {
		return fmt.Errorf("render verification mail: %w", err)
	}
	if m.sender == nil {
		// without smtp the code is only reachable through a debug log
		m.log.With(sl.Owner(data.Username), slog.String("code", data.Code)).Debug("verification code")
	}
	return m.send(ctx, data.Email, "Verify your InvisiFeed account", body)
}

func (m *Mailer) send(ctx context.Context, to, subject, body string) error {
	log := m.log.With(
		sl.Secret("to", to),
		slog.String("subject", subject),
	)
	if m.sender == nil {
		log.Info("email not sent: smtp disabled")
		return nil
	}

	msg := mail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return fmt.Errorf("from address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("recipient address: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextHTML, body)

	if err := m.sender.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	log.Debug("email sent")
	return nil
}
