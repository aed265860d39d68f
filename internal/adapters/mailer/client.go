package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	pkglog "github.com/JaiminPatel345/glowup-sub002/pkg/log"
)

const (
	templatePasswordReset     = "password_reset"
	templateEmailVerification = "email_verification"
)

// HTTPClient delivers transactional mail through the notification service.
type HTTPClient struct {
	baseURL string
	client  *http.Client
	backoff func() backoff.BackOff
}

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		backoff: func() backoff.BackOff {
			bo := backoff.NewExponentialBackOff()
			bo.InitialInterval = 200 * time.Millisecond
			bo.MaxElapsedTime = 3 * time.Second
			return bo
		},
	}
}

type sendRequest struct {
	To       string            `json:"to"`
	Template string            `json:"template"`
	Data     map[string]string `json:"data"`
}

func (c *HTTPClient) SendPasswordReset(ctx context.Context, email, link string) error {
	return c.send(ctx, sendRequest{To: email, Template: templatePasswordReset, Data: map[string]string{"link": link}})
}

func (c *HTTPClient) SendEmailVerification(ctx context.Context, email, link string) error {
	return c.send(ctx, sendRequest{To: email, Template: templateEmailVerification, Data: map[string]string{"link": link}})
}

func (c *HTTPClient) send(ctx context.Context, payload sendRequest) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/messages", bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		res, err := c.client.Do(req)
		if err != nil {
			return err
		}
		defer res.Body.Close()
		switch {
		case res.StatusCode >= 500 || res.StatusCode == http.StatusTooManyRequests:
			return fmt.Errorf("mailer error: %d", res.StatusCode)
		case res.StatusCode >= 400:
			return backoff.Permanent(fmt.Errorf("mailer rejected message: %d", res.StatusCode))
		}
		return nil
	}
	return backoff.Retry(op, backoff.WithContext(c.backoff(), ctx))
}

// LogMailer writes links to the log instead of sending them. Used when no
// notification service is configured.
type LogMailer struct {
	logger pkglog.Logger
}

func NewLogMailer(logger pkglog.Logger) *LogMailer { return &LogMailer{logger: logger} }

func (m *LogMailer) SendPasswordReset(_ context.Context, email, link string) error {
	m.logger.Info().Str("to", email).Str("template", templatePasswordReset).Str("link", link).Msg("mail not sent, no mailer configured")
	return nil
}

func (m *LogMailer) SendEmailVerification(_ context.Context, email, link string) error {
	m.logger.Info().Str("to", email).Str("template", templateEmailVerification).Str("link", link).Msg("mail not sent, no mailer configured")
	return nil
}
