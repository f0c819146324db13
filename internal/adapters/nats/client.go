package natsadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	nats "github.com/nats-io/nats.go"

	"github.com/Jxel117/GastanGO-sub000/internal/adapters/mailer"
)

// MailPublisher hands messages to the mail consumer over request/reply so a
// missing consumer surfaces as an error instead of a silent drop.
type MailPublisher struct {
	conn    *nats.Conn
	subject string
	timeout time.Duration
}

func NewMailPublisher(conn *nats.Conn, subject string) *MailPublisher {
	return &MailPublisher{conn: conn, subject: subject, timeout: 3 * time.Second}
}

func (p *MailPublisher) SendVerificationEmail(ctx context.Context, email, code string) error {
	return requestAck(ctx, p.conn, p.subject, p.timeout, mailer.VerificationMessage(email, code))
}

func (p *MailPublisher) SendWelcomeEmail(ctx context.Context, email, username string) error {
	return requestAck(ctx, p.conn, p.subject, p.timeout, mailer.WelcomeMessage(email, username))
}

func requestAck(ctx context.Context, conn *nats.Conn, subject string, timeout time.Duration, payload interface{}) error {
	if conn == nil {
		return errors.New("nats connection is nil")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	msg, err := conn.RequestWithContext(ctx, subject, data)
	if err != nil {
		return err
	}
	if msg == nil {
		return fmt.Errorf("empty response from %s", subject)
	}
	var resp struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(msg.Data, &resp); err != nil {
		return err
	}
	if !resp.OK {
		if resp.Error != "" {
			return errors.New(resp.Error)
		}
		return fmt.Errorf("request to %s failed", subject)
	}
	return nil
}
