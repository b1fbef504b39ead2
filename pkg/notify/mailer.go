package notify

import (
	"context"
	"fmt"

	"github.com/example/shopfront/pkg/config"
	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// NewMailer returns an SMTP mailer, or a LogMailer when no SMTP host is set.
func NewMailer(cfg *config.MailConfig, logger *zap.Logger) (Mailer, error) {
	if !cfg.Enabled() {
		return &LogMailer{logger: logger}, nil
	}
	return NewSMTPMailer(cfg)
}

type SMTPMailer struct {
	client *mail.Client
	from   string
}

func NewSMTPMailer(cfg *config.MailConfig) (*SMTPMailer, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTimeout(cfg.Timeout),
	}
	if cfg.UseTLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create mail client: %w", err)
	}
	return &SMTPMailer{client: client, from: cfg.From}, nil
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	mm := mail.NewMsg()
	if err := mm.From(m.from); err != nil {
		return fmt.Errorf("invalid sender: %w", err)
	}
	if err := mm.To(msg.To); err != nil {
		return fmt.Errorf("invalid recipient: %w", err)
	}
	mm.Subject(msg.Subject)
	mm.SetBodyString(mail.TypeTextPlain, msg.Body)

	if err := m.client.DialAndSendWithContext(ctx, mm); err != nil {
		return fmt.Errorf("failed to send mail: %w", err)
	}
	return nil
}

// LogMailer only logs what would have been sent.
type LogMailer struct {
	logger *zap.Logger
}

func NewLogMailer(logger *zap.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(_ context.Context, msg Message) error {
	m.logger.Info("Mail",
		zap.String("kind", msg.Kind),
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.Uint("order_id", msg.OrderID))
	return nil
}
