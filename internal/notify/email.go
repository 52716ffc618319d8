// Package notify relays share links to recipients by email.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	LinkSubject = "Your Shared File Link"
	linkBody    = "Here is the link to download your shared files: %s"
)

// ErrNotification reports that the transport refused or could not take the message.
var ErrNotification = errors.New("notification failure")

// Sender submits messages to a mail transport. *mail.Client implements it.
type Sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	Timeout  time.Duration
}

// NewSMTPSender builds a go-mail client. Port 465 uses implicit TLS, other
// ports STARTTLS when offered. Auth is skipped without a username.
func NewSMTPSender(c SMTPConfig) (*mail.Client, error) {
	var opts []mail.Option
	if c.Port == 465 {
		opts = append(opts, mail.WithSSL())
	} else {
		// WithTLSPortPolicy would move port 25 to 587.
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}
	if c.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(c.Username),
			mail.WithPassword(c.Password),
		)
	}
	if c.Timeout > 0 {
		opts = append(opts, mail.WithTimeout(c.Timeout))
	}
	opts = append(opts, mail.WithPort(c.Port))

	client, err := mail.NewClient(c.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}
	return client, nil
}

type Notifier struct {
	sender Sender
	from   string
	logger *zap.Logger
	tracer trace.Tracer
}

func NewNotifier(sender Sender, from string, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{
		sender: sender,
		from:   from,
		logger: logger,
		tracer: otel.Tracer("github.com/PaulBabatuyi/WeShare/internal/notify"),
	}
}

// LinkMessage builds the share-link email.
func LinkMessage(from, recipient, link string) (*mail.Msg, error) {
	m := mail.NewMsg(mail.WithEncoding(mail.NoEncoding))
	if err := m.From(from); err != nil {
		return nil, fmt.Errorf("sender address: %w", err)
	}
	if err := m.To(recipient); err != nil {
		return nil, fmt.Errorf("recipient address: %w", err)
	}
	m.Subject(LinkSubject)
	m.SetBodyString(mail.TypeTextPlain, fmt.Sprintf(linkBody, link))
	return m, nil
}

// SendLinkEmail sends link to recipient. It returns once the transport
// accepted the message; there is no retry.
func (n *Notifier) SendLinkEmail(ctx context.Context, recipient, link string) error {
	ctx, span := n.tracer.Start(ctx, "Notifier.SendLinkEmail")
	defer span.End()

	err := n.send(ctx, recipient, link)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "send failed")
		n.logger.Warn("failed to send link email", zap.Error(err))
		return err
	}

	n.logger.Info("link email sent")
	return nil
}

func (n *Notifier) send(ctx context.Context, recipient, link string) error {
	if recipient == "" || link == "" {
		return fmt.Errorf("%w: recipient and link are required", ErrNotification)
	}

	msg, err := LinkMessage(n.from, recipient, link)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNotification, err)
	}

	if err := n.sender.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("%w: %w", ErrNotification, err)
	}
	return nil
}
