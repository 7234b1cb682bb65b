package notify

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"time"

	"github.com/kalambet/susi/internal/retry"
)

// ErrNotConfigured is returned by a transport missing its server or addresses.
var ErrNotConfigured = errors.New("notify: transport not configured")

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTP delivers mail through a submission server. smtp.SendMail upgrades the
// connection with STARTTLS before PLAIN authentication.
type SMTP struct {
	host     string
	port     int
	username string
	password string
	to       string
	sendMail sendMailFunc
	now      func() time.Time
}

// NewSMTP creates an SMTP transport sending from username to recipient.
func NewSMTP(host string, port int, username, password, recipient string) *SMTP {
	return &SMTP{
		host:     host,
		port:     port,
		username: username,
		password: password,
		to:       recipient,
		sendMail: smtp.SendMail,
		now:      time.Now,
	}
}

func (s *SMTP) Name() string { return "smtp" }

func (s *SMTP) Send(ctx context.Context, subject, body string) error {
	if s.host == "" || s.username == "" || s.to == "" {
		return retry.Permanent(ErrNotConfigured)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	msg, err := Message{From: s.username, To: s.to, Subject: subject, Body: body}.Bytes(s.now())
	if err != nil {
		return err
	}
	addr := net.JoinHostPort(s.host, strconv.Itoa(s.port))
	auth := smtp.PlainAuth("", s.username, s.password, s.host)
	if err := s.sendMail(addr, auth, s.username, []string{s.to}, msg); err != nil {
		return fmt.Errorf("smtp send via %s: %w", addr, err)
	}
	return nil
}
