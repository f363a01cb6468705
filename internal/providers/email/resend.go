package email

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/resend/resend-go/v2"
)

// ResendProvider sends through the Resend API.
type ResendProvider struct {
	from   string
	client *resend.Client
}

func NewResend(apiKey, baseURL, from string, timeout time.Duration) (*ResendProvider, error) {
	apiKey = strings.TrimSpace(apiKey)
	from = strings.TrimSpace(from)
	if apiKey == "" || from == "" {
		return nil, ErrMisconfigured
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := resend.NewCustomClient(&http.Client{Timeout: timeout}, apiKey)
	if baseURL = strings.TrimSpace(baseURL); baseURL != "" {
		// Request paths are resolved relative to the base, so it must end in a slash.
		parsed, err := url.Parse(strings.TrimRight(baseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("%w: api base url: %v", ErrMisconfigured, err)
		}
		client.BaseURL = parsed
	}
	return &ResendProvider{from: from, client: client}, nil
}

func (p *ResendProvider) Name() string { return "resend" }

func (p *ResendProvider) Send(ctx context.Context, msg Message) error {
	if err := validateMessage(msg); err != nil {
		return err
	}
	_, err := p.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    p.from,
		To:      msg.To,
		ReplyTo: msg.ReplyTo,
		Subject: msg.Subject,
		Html:    msg.HTML,
		Text:    msg.Text,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRejected, err)
	}
	return nil
}
