package mail

import (
	"context"
	"time"

	"github.com/mailgun/mailgun-go/v4"
)

type Email struct {
	Subject      string
	Body         string
	From         string
	To           []string
	Template     string
	TemplateVars map[string]any
}

type Mailer interface {
	SendMail(ctx context.Context, e *Email) error
}

type Mailgun struct {
	domain  string
	apiKey  string
	apiBase string
}

func NewMailer(domain, apiKey, apiBase string) *Mailgun {
	return &Mailgun{
		domain:  domain,
		apiKey:  apiKey,
		apiBase: apiBase,
	}
}

func (m *Mailgun) client() *mailgun.MailgunImpl {
	mg := mailgun.NewMailgun(m.domain, m.apiKey)
	if m.apiBase != "" {
		mg.SetAPIBase(m.apiBase)
	}
	return mg
}

// SendMail sends a plain message, or a stored template when e.Template is set.
func (m *Mailgun) SendMail(ctx context.Context, e *Email) error {
	message := m.client().NewMessage(e.From, e.Subject, e.Body, e.To...)
	if e.Template != "" {
		message.SetTemplate(e.Template)
		for k, v := range e.TemplateVars {
			if err := message.AddTemplateVariable(k, v); err != nil {
				return err
			}
		}
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	_, _, err := m.client().Send(ctx, message)
	return err
}

// Nop drops every message. It stands in when mail is not configured.
type Nop struct{}

func (Nop) SendMail(context.Context, *Email) error { return nil }
