package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gopkg.in/gomail.v2"

	"github.com/viralforge/invoicing-accounts/internal/domain"
)

// MailConfig holds SMTP settings.
type MailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

func (c MailConfig) validate() error {
	if c.Host == "" {
		return errors.New("smtp host is required")
	}
	if c.Port == 0 {
		return errors.New("smtp port is required")
	}
	if c.From == "" {
		return errors.New("smtp from address is required")
	}
	return nil
}

// mailSender is satisfied by *gomail.Dialer.
type mailSender interface {
	DialAndSend(m ...*gomail.Message) error
}

// MailPublisher delivers the out-of-band messages of the verification flows.
// Events that carry nothing for the account holder are acknowledged unsent.
type MailPublisher struct {
	from   string
	sender mailSender
}

func NewMailPublisher(cfg MailConfig) (*MailPublisher, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &MailPublisher{
		from:   cfg.From,
		sender: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}, nil
}

type email struct {
	to      string
	subject string
	body    string
}

func (p *MailPublisher) Publish(_ context.Context, eventType string, payload []byte, _ string) error {
	var evt domain.DeliveryPayload
	if err := json.Unmarshal(payload, &evt); err != nil {
		return fmt.Errorf("decode %s payload: %w", eventType, err)
	}
	msg, ok := render(eventType, evt)
	if !ok {
		return nil
	}
	if strings.TrimSpace(msg.to) == "" {
		return fmt.Errorf("%s payload has no recipient", eventType)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", p.from)
	m.SetHeader("To", msg.to)
	m.SetHeader("Subject", msg.subject)
	m.SetBody("text/plain", msg.body)
	if err := p.sender.DialAndSend(m); err != nil {
		return fmt.Errorf("send %s mail: %w", eventType, err)
	}
	return nil
}

func render(eventType string, evt domain.DeliveryPayload) (email, bool) {
	greeting := "Hello,"
	if evt.FirstName != "" {
		greeting = fmt.Sprintf("Hello %s,", evt.FirstName)
	}
	expires := evt.ExpiresAt.UTC().Format(time.RFC1123)

	switch eventType {
	case domain.EventAccountRegistered:
		return activationMail(evt, greeting, expires, "Your new account has been created. Open the link below to activate it."), true
	case domain.EventVerificationLinkIssued:
		if evt.Kind == domain.LinkKindPassword {
			return email{
				to:      evt.Email,
				subject: "Reset Password Request",
				body: fmt.Sprintf("%s\n\nOpen the link below to reset your password.\n\n%s\n\nThe link expires %s.\n\nThe Support Team\n",
					greeting, evt.URL, expires),
			}, true
		}
		return activationMail(evt, greeting, expires, "Open the link below to activate your account."), true
	case domain.EventVerificationCodeIssued:
		return email{
			to:      evt.Email,
			subject: "Your login verification code",
			body: fmt.Sprintf("%s\n\nYour verification code is:\n\n%s\n\nThe code expires %s.\n\nThe Support Team\n",
				greeting, evt.Code, expires),
		}, true
	case domain.EventAccountPasswordChanged:
		return email{
			to:      evt.Email,
			subject: "Your password was changed",
			body:    fmt.Sprintf("%s\n\nThe password of your account was just changed. If this was not you, reset it now.\n\nThe Support Team\n", greeting),
		}, true
	default:
		return email{}, false
	}
}

func activationMail(evt domain.DeliveryPayload, greeting, expires, lead string) email {
	return email{
		to:      evt.Email,
		subject: "New User Account Verification",
		body:    fmt.Sprintf("%s\n\n%s\n\n%s\n\nThe link expires %s.\n\nThe Support Team\n", greeting, lead, evt.URL, expires),
	}
}
