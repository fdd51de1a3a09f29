// Package email delivers notifications over SMTP. It is the production
// implementation of the dispatch queue's delivery channel.
package email

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/vespl/caseflow-api/internal/config"
	"github.com/vespl/caseflow-api/internal/model"
	apperrors "github.com/vespl/caseflow-api/pkg/errors"
)

type Service struct {
	dialer *gomail.Dialer
	cfg    config.SMTPConfig
}

func NewService(cfg config.SMTPConfig) *Service {
	return &Service{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		cfg:    cfg,
	}
}

// Send resolves the recipient descriptor to an address and delivers one
// message. The dialer has no context support, so the send runs in a
// goroutine and the caller's deadline is honored by abandoning it.
func (s *Service) Send(ctx context.Context, recipient model.Recipient, subject, body string) error {
	to, err := s.resolve(recipient)
	if err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", s.cfg.From)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	done := make(chan error, 1)
	go func() {
		done <- s.dialer.DialAndSend(msg)
	}()

	select {
	case <-ctx.Done():
		return apperrors.NewDelivery("smtp send timed out", ctx.Err())
	case err := <-done:
		if err != nil {
			return apperrors.NewDelivery("smtp send failed", err)
		}
		return nil
	}
}

func (s *Service) resolve(recipient model.Recipient) (string, error) {
	switch {
	case recipient.UserID != nil:
		if s.cfg.Domain == "" {
			return "", apperrors.NewDelivery("no mail domain configured for user recipients", nil)
		}
		return fmt.Sprintf("%s@%s", recipient.UserID.String(), s.cfg.Domain), nil
	case recipient.Role != "":
		if addr, ok := s.cfg.RoleAddresses[recipient.Role]; ok {
			return addr, nil
		}
		return "", apperrors.NewDelivery(fmt.Sprintf("no mailbox configured for role %q", recipient.Role), nil)
	case recipient.Location != "":
		if addr, ok := s.cfg.RoleAddresses[recipient.Location]; ok {
			return addr, nil
		}
		return "", apperrors.NewDelivery(fmt.Sprintf("no mailbox configured for location %q", recipient.Location), nil)
	}
	return "", apperrors.NewDelivery("empty recipient", nil)
}
