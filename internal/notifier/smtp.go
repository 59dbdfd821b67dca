package notifier

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/smtp"
	"strconv"

	"bookstore/pkg/config"

	"gopkg.in/gomail.v2"
)

// SMTPNotifier sends plain-text mail through an SMTP relay.
type SMTPNotifier struct {
	cfg config.MailConfig
}

// NewSMTPNotifier creates a new SMTPNotifier.
func NewSMTPNotifier(cfg config.MailConfig) *SMTPNotifier {
	return &SMTPNotifier{cfg: cfg}
}

// Send delivers one message. It returns ErrNotConfigured without dialing when
// host or port is missing. The whole SMTP session runs on the caller's
// goroutine and is cut off when ctx is done, so nothing outlives the call.
func (n *SMTPNotifier) Send(ctx context.Context, to, subject, body string) (err error) {
	if !n.cfg.Enabled() {
		return ErrNotConfigured
	}

	m := gomail.NewMessage()
	m.SetHeader("From", n.cfg.From)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: smtp panic: %v", ErrNotify, r)
		}
	}()

	addr := net.JoinHostPort(n.cfg.Host, strconv.Itoa(n.cfg.Port))

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return n.sendError(ctx, addr, err)
	}
	defer conn.Close()

	// Closing the connection unblocks any pending read or write.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	if err := n.deliver(conn, m); err != nil {
		return n.sendError(ctx, addr, err)
	}
	return nil
}

func (n *SMTPNotifier) sendError(ctx context.Context, addr string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %w", ErrNotify, ctxErr)
	}
	return fmt.Errorf("%w: smtp %s: %w", ErrNotify, addr, err)
}

func (n *SMTPNotifier) deliver(conn net.Conn, m *gomail.Message) error {
	c, err := smtp.NewClient(conn, n.cfg.Host)
	if err != nil {
		return err
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: n.cfg.Host}); err != nil {
			return err
		}
	}
	if n.cfg.Username != "" {
		if ok, _ := c.Extension("AUTH"); ok {
			auth := smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)
			if err := c.Auth(auth); err != nil {
				return err
			}
		}
	}

	send := gomail.SendFunc(func(from string, to []string, msg io.WriterTo) error {
		if err := c.Mail(from); err != nil {
			return err
		}
		for _, addr := range to {
			if err := c.Rcpt(addr); err != nil {
				return err
			}
		}
		w, err := c.Data()
		if err != nil {
			return err
		}
		if _, err := msg.WriteTo(w); err != nil {
			w.Close()
			return err
		}
		return w.Close()
	})
	if err := gomail.Send(send, m); err != nil {
		return err
	}
	return c.Quit()
}
