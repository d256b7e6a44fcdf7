package smtp

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/expatdesk/docvault/internal/core/domain"
)

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// RecipientDomain turns an owner id into a deliverable address,
	// e.g. "mail.example.com" -> owner-1@mail.example.com.
	RecipientDomain string
}

// Sender delivers due reminders over SMTP.
type Sender struct {
	cfg  Config
	send func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error
}

func NewSender(cfg Config) *Sender {
	return &Sender{cfg: cfg, send: smtp.SendMail}
}

func (s *Sender) Notify(_ context.Context, rem domain.Reminder) error {
	to := rem.OwnerID + "@" + s.cfg.RecipientDomain
	msg := buildMessage(s.cfg.From, to, rem)

	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	if err := s.send(addr, auth, s.cfg.From, []string{to}, msg); err != nil {
		return fmt.Errorf("send reminder mail: %w", err)
	}
	return nil
}

func buildMessage(from, to string, rem domain.Reminder) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: Reminder: %s\r\n", rem.Title)
	b.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	fmt.Fprintf(&b, "%s\r\n\r\nDocument: %s\r\nDue: %s\r\n",
		rem.Title, rem.DocumentID, rem.DueAt.Format("2006-01-02"))
	return []byte(b.String())
}
