package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/smtp"
	"strconv"
	"time"

	"github.com/emersion/go-message/mail"

	"hashhost/internal/config"
)

// Notification is a plain-text summary of a new inquiry for the site owner.
type Notification struct {
	Subject string
	Body    string
	ReplyTo string
}

type Sender interface {
	Send(ctx context.Context, n Notification) error
}

type LogSender struct{}

func (LogSender) Send(ctx context.Context, n Notification) error {
	slog.InfoContext(ctx, "notification", "subject", n.Subject, "reply_to", n.ReplyTo, "body_bytes", len(n.Body))
	return nil
}

type SMTPSender struct {
	host string
	port int
	from string
	to   []string

	username    string
	password    string
	implicitTLS bool
	startTLS    bool
	tlsConfig   *tls.Config
}

func NewSender(cfg config.Config) Sender {
	switch cfg.NotifySender {
	case "smtp":
		return SMTPSender{
			host:        cfg.SMTPHost,
			port:        cfg.SMTPPort,
			from:        cfg.NotifyFrom,
			to:          cfg.NotifyTo,
			username:    cfg.SMTPUsername,
			password:    cfg.SMTPPassword,
			implicitTLS: cfg.SMTPTLS,
			startTLS:    cfg.SMTPStartTLS,
			tlsConfig:   &tls.Config{ServerName: cfg.SMTPHost, InsecureSkipVerify: cfg.SMTPInsecureSkipVerify},
		}
	default:
		return LogSender{}
	}
}

func (s SMTPSender) Send(ctx context.Context, n Notification) error {
	msg, err := Compose(s.from, s.to, n, time.Now())
	if err != nil {
		return err
	}
	// The envelope takes bare addresses; display names stay in the headers.
	from, err := mail.ParseAddress(s.from)
	if err != nil {
		return fmt.Errorf("parse from address: %w", err)
	}
	rcpts := make([]string, 0, len(s.to))
	for _, a := range s.to {
		addr, err := mail.ParseAddress(a)
		if err != nil {
			return fmt.Errorf("parse recipient %q: %w", a, err)
		}
		rcpts = append(rcpts, addr.Address)
	}

	addr := net.JoinHostPort(s.host, strconv.Itoa(s.port))
	conn, err := (&net.Dialer{Timeout: 10 * time.Second}).DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial smtp %s: %w", addr, err)
	}
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	}
	if s.implicitTLS {
		conn = tls.Client(conn, s.tlsConfig)
	}
	c, err := smtp.NewClient(conn, s.host)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer c.Close()

	if s.startTLS && !s.implicitTLS {
		if ok, _ := c.Extension("STARTTLS"); ok {
			if err := c.StartTLS(s.tlsConfig); err != nil {
				return fmt.Errorf("smtp starttls: %w", err)
			}
		}
	}
	if s.username != "" {
		if ok, _ := c.Extension("AUTH"); !ok {
			return fmt.Errorf("smtp relay %s does not offer AUTH", addr)
		}
		if err := c.Auth(smtp.PlainAuth("", s.username, s.password, s.host)); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	if err := c.Mail(from.Address); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	for _, rcpt := range rcpts {
		if err := c.Rcpt(rcpt); err != nil {
			return fmt.Errorf("smtp rcpt %s: %w", rcpt, err)
		}
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		_ = w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

// Compose renders n as an RFC 5322 text/plain message.
func Compose(from string, to []string, n Notification, at time.Time) ([]byte, error) {
	fromAddr, err := mail.ParseAddress(from)
	if err != nil {
		return nil, fmt.Errorf("parse from address: %w", err)
	}
	toAddrs := make([]*mail.Address, 0, len(to))
	for _, a := range to {
		addr, err := mail.ParseAddress(a)
		if err != nil {
			return nil, fmt.Errorf("parse recipient %q: %w", a, err)
		}
		toAddrs = append(toAddrs, addr)
	}

	var h mail.Header
	h.SetDate(at)
	h.SetAddressList("From", []*mail.Address{fromAddr})
	h.SetAddressList("To", toAddrs)
	if n.ReplyTo != "" {
		if rt, err := mail.ParseAddress(n.ReplyTo); err == nil {
			h.SetAddressList("Reply-To", []*mail.Address{rt})
		}
	}
	h.SetSubject(n.Subject)
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	if err := h.GenerateMessageID(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, err
	}
	if _, err := io.WriteString(w, n.Body); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
