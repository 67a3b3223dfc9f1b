package email

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/fampita/backend/internal/email/templates"
	"github.com/fampita/backend/pkg/config"
	"gopkg.in/gomail.v2"
)

// Sender dispatches account emails. Injected into handlers so tests can
// substitute a fake.
type Sender interface {
	SendConfirmationEmail(to, code string) error
}

// SMTPSender sends mail through the configured SMTP relay.
type SMTPSender struct {
	cfg *config.Config
}

func NewSMTPSender(cfg *config.Config) *SMTPSender {
	return &SMTPSender{cfg: cfg}
}

// SendConfirmationEmail renders the confirmation template and queues the
// message for async delivery. Registration must not block on (or fail
// because of) the SMTP relay.
func (s *SMTPSender) SendConfirmationEmail(to, code string) error {
	html, err := templates.RenderConfirmationEmail(templates.ConfirmationData{
		Code:      code,
		UserEmail: to,
	})
	if err != nil {
		return fmt.Errorf("render confirmation email: %w", err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", fmt.Sprintf("%s <%s>", s.cfg.SMTPFromName, s.cfg.SMTPFrom))
	m.SetHeader("To", to)
	m.SetHeader("Subject", "Confirme ton adresse email - Fampita")
	m.SetBody("text/plain", fmt.Sprintf("Ton code de confirmation : %s", code))
	m.AddAlternative("text/html", html)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.deliver(ctx, m, to); err != nil {
			log.Printf("confirmation email to %s failed: %v", to, err)
		}
	}()
	return nil
}

// deliver retries with exponential backoff: 1s, 2s, 4s.
func (s *SMTPSender) deliver(ctx context.Context, m *gomail.Message, to string) error {
	dialer := gomail.NewDialer(s.cfg.SMTPHost, s.cfg.SMTPPort, s.cfg.SMTPUser, s.cfg.SMTPPass)

	for attempt := 0; attempt < 3; attempt++ {
		if err := dialer.DialAndSend(m); err != nil {
			delay := time.Duration(1<<attempt) * time.Second
			log.Printf("email send to %s failed (attempt %d): %v, retrying in %v", to, attempt+1, err, delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return fmt.Errorf("email send cancelled: %w", ctx.Err())
			}
			continue
		}
		return nil
	}
	return fmt.Errorf("failed to send email to %s after 3 attempts", to)
}
