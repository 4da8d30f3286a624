package mail

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
	"time"

	"github.com/FACorreiaa/go-account-service/app/observability/metrics"
	"github.com/FACorreiaa/go-account-service/config"
)

// sendTimeout bounds every outbound send so a hung mail provider cannot
// stall the calling operation.
const sendTimeout = 30 * time.Second

// Message is a single outbound mail. At least one of Text or HTML must be set.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// TemplatedMessage resolves a template (explicit text > named key > default
// welcome template), renders it, and routes by detected content kind.
type TemplatedMessage struct {
	To           string
	Subject      string
	TemplateKey  string
	TemplateText string
	Variables    map[string]string
}

// Sender delivers a rendered message to an address.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Notifier adds templating on top of a Sender.
type Notifier struct {
	sender Sender
	logger *slog.Logger
}

func NewNotifier(sender Sender, logger *slog.Logger) *Notifier {
	return &Notifier{sender: sender, logger: logger}
}

func (n *Notifier) Send(ctx context.Context, msg Message) error {
	m := metrics.Get()
	m.MailSendsTotal.Add(ctx, 1)
	err := n.sender.Send(ctx, msg)
	if err != nil {
		m.MailSendErrorsTotal.Add(ctx, 1)
		n.logger.WarnContext(ctx, "Mail send failed", slog.String("to", msg.To), slog.Any("error", err))
	}
	return err
}

func (n *Notifier) SendTemplated(ctx context.Context, msg TemplatedMessage) error {
	chosen := msg.TemplateText
	if chosen == "" && msg.TemplateKey != "" {
		chosen = DefaultTemplates[msg.TemplateKey]
	}
	if chosen == "" {
		chosen = DefaultTemplates[TemplateWelcomeTempPassword]
	}

	rendered := Render(chosen, msg.Variables)

	subject := msg.Subject
	if subject == "" {
		subject = "Your temporary password"
	}

	out := Message{To: msg.To, Subject: subject}
	if DetectContentKind(rendered) == KindHTML {
		out.HTML = rendered
	} else {
		out.Text = rendered
	}
	return n.Send(ctx, out)
}

// SMTPSender delivers mail over SMTP.
type SMTPSender struct {
	host     string
	port     int
	username string
	password string
	from     string
	fromName string
	useTLS   bool
}

func NewSMTPSender(cfg config.SMTPConfig) (*SMTPSender, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, fmt.Errorf("smtp host is required")
	}
	if strings.TrimSpace(cfg.From) == "" {
		return nil, fmt.Errorf("smtp from is required")
	}
	port := cfg.Port
	if port == 0 {
		port = 587
	}
	return &SMTPSender{
		host:     cfg.Host,
		port:     port,
		username: cfg.Username,
		password: cfg.Password,
		from:     cfg.From,
		fromName: cfg.FromName,
		useTLS:   cfg.UseTLS,
	}, nil
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if strings.TrimSpace(msg.To) == "" {
		return fmt.Errorf("to email is required")
	}
	if msg.Text == "" && msg.HTML == "" {
		return errors.New("either text or html must be provided")
	}

	raw := s.buildMessage(msg)
	addr := fmt.Sprintf("%s:%d", s.host, s.port)

	var auth smtp.Auth
	if s.username != "" {
		auth = smtp.PlainAuth("", s.username, s.password, s.host)
	}

	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- s.deliver(addr, auth, msg.To, raw)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("mail send timed out: %w", ctx.Err())
	}
}

func (s *SMTPSender) deliver(addr string, auth smtp.Auth, to string, raw []byte) error {
	if !s.useTLS {
		return smtp.SendMail(addr, auth, s.from, []string{to}, raw)
	}

	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: s.host})
	if err != nil {
		return err
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, s.host)
	if err != nil {
		return err
	}
	defer client.Quit()

	if auth != nil {
		if err := client.Auth(auth); err != nil {
			return err
		}
	}
	if err := client.Mail(s.from); err != nil {
		return err
	}
	if err := client.Rcpt(to); err != nil {
		return err
	}
	writer, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := writer.Write(raw); err != nil {
		_ = writer.Close()
		return err
	}
	return writer.Close()
}

func (s *SMTPSender) buildMessage(msg Message) []byte {
	fromHeader := s.from
	if strings.TrimSpace(s.fromName) != "" {
		fromHeader = fmt.Sprintf("%s <%s>", s.fromName, s.from)
	}

	contentType := `text/plain; charset="UTF-8"`
	body := msg.Text
	if msg.HTML != "" {
		contentType = `text/html; charset="UTF-8"`
		body = msg.HTML
	}

	headers := []string{
		fmt.Sprintf("From: %s", fromHeader),
		fmt.Sprintf("To: %s", msg.To),
		fmt.Sprintf("Subject: %s", msg.Subject),
		"MIME-Version: 1.0",
		fmt.Sprintf("Content-Type: %s", contentType),
	}

	return []byte(strings.Join(headers, "\r\n") + "\r\n\r\n" + body)
}

// DisabledSender stands in when no SMTP host is configured; every send
// fails with the configured reason.
type DisabledSender struct {
	Reason string
}

func (d *DisabledSender) Send(_ context.Context, _ Message) error {
	if d.Reason == "" {
		return errors.New("mail sender disabled")
	}
	return errors.New(d.Reason)
}
