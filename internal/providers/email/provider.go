package email

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
)

type Message struct {
	To      []string
	ReplyTo string
	Subject string
	HTML    string
	Text    string
}

type Provider interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

var (
	ErrMisconfigured = errors.New("email_provider_misconfigured")
	ErrNoRecipients  = errors.New("email_no_recipients")
	ErrRejected      = errors.New("email_rejected")
)

func validateMessage(msg Message) error {
	if len(msg.To) == 0 {
		return ErrNoRecipients
	}
	for _, to := range msg.To {
		if strings.TrimSpace(to) == "" || strings.ContainsAny(to, "\r\n") {
			return ErrNoRecipients
		}
	}
	if strings.ContainsAny(msg.Subject, "\r\n") || strings.ContainsAny(msg.ReplyTo, "\r\n") {
		return ErrRejected
	}
	return nil
}

// NoOpProvider drops every message. Used when no provider is configured.
type NoOpProvider struct {
	log *zap.Logger
}

func NewNoOp(log *zap.Logger) *NoOpProvider {
	return &NoOpProvider{log: log.Named("email.noop")}
}

func (p *NoOpProvider) Name() string { return "noop" }

func (p *NoOpProvider) Send(ctx context.Context, msg Message) error {
	if err := validateMessage(msg); err != nil {
		return err
	}
	p.log.Debug("email dropped", zap.String("subject", msg.Subject), zap.Int("recipients", len(msg.To)))
	return nil
}
