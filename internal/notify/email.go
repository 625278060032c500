package notify

import (
	"context"
	"fmt"

	"github.com/wneessen/go-mail"

	"github.com/shaiso/etlflows/internal/domain"
)

// Sender отправляет готовые письма. *mail.Client реализует Sender.
type Sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// SMTPConfig — параметры SMTP сервера.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
}

// NewSMTPClient создаёт go-mail клиент.
// Авторизация включается, только если задан Username.
func NewSMTPClient(cfg SMTPConfig) (*mail.Client, error) {
	opts := []mail.Option{
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if cfg.Port > 0 {
		opts = append(opts, mail.WithPort(cfg.Port))
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
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	return client, nil
}

// EmailConfig — настройки EmailNotifier.
type EmailConfig struct {
	From      string
	To        []string
	FlowUIURL string
}

// EmailNotifier отправляет события письмом.
type EmailNotifier struct {
	sender Sender
	cfg    EmailConfig
}

// NewEmailNotifier создаёт EmailNotifier.
func NewEmailNotifier(sender Sender, cfg EmailConfig) *EmailNotifier {
	return &EmailNotifier{sender: sender, cfg: cfg}
}

// Notify реализует Notifier.
func (n *EmailNotifier) Notify(ctx context.Context, event domain.Event) error {
	msg, err := n.Build(event)
	if err != nil {
		return err
	}
	if err := n.sender.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("%w: email: %v", ErrSend, err)
	}
	return nil
}

// Build собирает письмо для события без отправки.
func (n *EmailNotifier) Build(event domain.Event) (*mail.Msg, error) {
	if len(n.cfg.To) == 0 {
		return nil, ErrNoRecipients
	}

	rendered, err := Render(event, n.cfg.FlowUIURL)
	if err != nil {
		return nil, err
	}

	msg := mail.NewMsg()
	if err := msg.From(n.cfg.From); err != nil {
		return nil, fmt.Errorf("from address: %w", err)
	}
	if err := msg.To(n.cfg.To...); err != nil {
		return nil, fmt.Errorf("to address: %w", err)
	}
	msg.Subject(rendered.Subject)
	msg.SetBodyString(mail.TypeTextPlain, rendered.Body)
	return msg, nil
}
