package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	TemplateVerification = "email_verification"
	TemplateWelcome      = "welcome"
)

// Message is the payload understood by the mail gateway and the NATS mail consumer.
type Message struct {
	Template string            `json:"template"`
	To       string            `json:"to"`
	Data     map[string]string `json:"data"`
}

func VerificationMessage(email, code string) Message {
	return Message{Template: TemplateVerification, To: email, Data: map[string]string{"code": code}}
}

func WelcomeMessage(email, username string) Message {
	return Message{Template: TemplateWelcome, To: email, Data: map[string]string{"username": username}}
}

// HTTPSender posts messages to a mail gateway, retrying transient failures.
type HTTPSender struct {
	baseURL     string
	client      *http.Client
	maxElapsed  time.Duration
	initialWait time.Duration
}

func NewHTTPSender(baseURL string, timeout time.Duration) *HTTPSender {
	return &HTTPSender{
		baseURL:     baseURL,
		client:      &http.Client{Timeout: timeout},
		maxElapsed:  3 * time.Second,
		initialWait: 200 * time.Millisecond,
	}
}

func (c *HTTPSender) SendVerificationEmail(ctx context.Context, email, code string) error {
	return c.post(ctx, "/v1/messages", VerificationMessage(email, code))
}

func (c *HTTPSender) SendWelcomeEmail(ctx context.Context, email, username string) error {
	return c.post(ctx, "/v1/messages", WelcomeMessage(email, username))
}

func (c *HTTPSender) post(ctx context.Context, path string, payload interface{}) error {
	op := func() error {
		body, err := json.Marshal(payload)
		if err != nil {
			return backoff.Permanent(err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s%s", c.baseURL, path), bytes.NewReader(body))
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
		case res.StatusCode >= 500:
			return fmt.Errorf("mail gateway error: %d", res.StatusCode)
		case res.StatusCode >= 400:
			return backoff.Permanent(fmt.Errorf("mail gateway rejected message: %d", res.StatusCode))
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.initialWait
	bo.MaxElapsedTime = c.maxElapsed
	return backoff.Retry(op, backoff.WithContext(bo, ctx))
}
