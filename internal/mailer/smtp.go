package mailer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	mail "github.com/wneessen/go-mail"
)

const (
	defaultDisplayName = "Conduit"
	defaultTimeout     = 10 * time.Second
)

var ErrHeaderInjection = errors.New("mail header contains a line break")

type Config struct {
	From        string
	Password    string
	Host        string
	Port        int
	DisplayName string
	Timeout     time.Duration
}

// SMTPMailer submits plain-text mail through an SMTP submission port. It
// requires STARTTLS for anything but a loopback host.
type SMTPMailer struct {
	cfg     Config
	log     *slog.Logger
	nowFunc func() time.Time
}

func New(cfg Config, log *slog.Logger) (*SMTPMailer, error) {
	if cfg.From == "" {
		return nil, fmt.Errorf("sender address is required")
	}
	if cfg.Host == "" {
		return nil, fmt.Errorf("smtp host is required")
	}
	if cfg.Port <= 0 {
		return nil, fmt.Errorf("smtp port must be > 0")
	}
	if cfg.DisplayName == "" {
		cfg.DisplayName = defaultDisplayName
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	return &SMTPMailer{cfg: cfg, log: log, nowFunc: time.Now}, nil
}

func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	msg, err := buildMessage(m.cfg.DisplayName, m.cfg.From, to, subject, body, m.nowFunc())
	if err != nil {
		return err
	}
	client, err := m.client()
	if err != nil {
		return err
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send mail via %s: %w", m.cfg.Host, err)
	}
	m.log.Debug("mail sent", slog.String("subject", subject))
	return nil
}

func (m *SMTPMailer) client() (*mail.Client, error) {
	policy := mail.TLSMandatory
	if isLoopback(m.cfg.Host) {
		policy = mail.TLSOpportunistic
	}
	opts := []mail.Option{
		mail.WithPort(m.cfg.Port),
		mail.WithTimeout(m.cfg.Timeout),
		mail.WithTLSPolicy(policy),
	}
	if m.cfg.Password != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.cfg.From),
			mail.WithPassword(m.cfg.Password),
		)
	}
	c, err := mail.NewClient(m.cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}
	return c, nil
}

func buildMessage(displayName, from, to, subject, body string, date time.Time) (*mail.Msg, error) {
	for _, v := range []string{displayName, from, to, subject} {
		if strings.ContainsAny(v, "\r\n") {
			return nil, ErrHeaderInjection
		}
	}
	msg := mail.NewMsg()
	if err := msg.FromFormat(displayName, from); err != nil {
		return nil, fmt.Errorf("set sender: %w", err)
	}
	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("set recipient: %w", err)
	}
	msg.Subject(subject)
	msg.SetDateWithValue(date)
	msg.SetMessageID()
	msg.SetBodyString(mail.TypeTextPlain, body)
	return msg, nil
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
