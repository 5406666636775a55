// Package mail доставляет одноразовые коды по email.
package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Abishake01/0G-Proof-Pass/internal/config"
	"github.com/Abishake01/0G-Proof-Pass/internal/logger"
)

// Sender отправляет код на адрес. Ошибка означает, что письмо не доставлено.
type Sender interface {
	SendOTP(ctx context.Context, email, code string) error
}

// SMTPSender отправляет письма через SMTP: STARTTLS по умолчанию, implicit TLS при Secure.
type SMTPSender struct {
	cfg           config.SMTPConfig
	expiryMinutes int
	dialer        net.Dialer
}

func NewSMTPSender(cfg config.SMTPConfig, expiry time.Duration) *SMTPSender {
	return &SMTPSender{
		cfg:           cfg,
		expiryMinutes: int(expiry / time.Minute),
	}
}

func (s *SMTPSender) SendOTP(ctx context.Context, email, code string) error {
	body, err := renderOTP(code, s.expiryMinutes)
	if err != nil {
		return err
	}
	msg := buildMessage(s.cfg.User, email, otpSubject, body)

	if err := s.send(ctx, email, msg); err != nil {
		return fmt.Errorf("mail: smtp send: %w", err)
	}
	return nil
}

func (s *SMTPSender) send(ctx context.Context, to string, msg []byte) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.FormatInt(s.cfg.Port, 10))
	tlsConfig := &tls.Config{ServerName: s.cfg.Host}

	conn, err := s.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	// net/smtp не принимает контекст, поэтому переносим его дедлайн на соединение
	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return err
		}
	}

	if s.cfg.Secure {
		conn = tls.Client(conn, tlsConfig)
	}

	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		return err
	}
	defer client.Close()

	if !s.cfg.Secure {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(tlsConfig); err != nil {
				return err
			}
		}
	}

	auth := smtp.PlainAuth("", s.cfg.User, s.cfg.Pass, s.cfg.Host)
	if err := client.Auth(auth); err != nil {
		return err
	}
	if err := client.Mail(s.cfg.User); err != nil {
		return err
	}
	if err := client.Rcpt(to); err != nil {
		return err
	}

	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}

// LogSender пишет код в лог вместо отправки. Только для development без SMTP.
type LogSender struct{}

func NewLogSender() *LogSender {
	return &LogSender{}
}

func (LogSender) SendOTP(_ context.Context, email, code string) error {
	logger.Log.WithFields(logrus.Fields{
		"email": email,
		"code":  code,
	}).Warn("mail: SMTP не настроен, код выведен в лог")
	return nil
}
