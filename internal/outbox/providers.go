package outbox

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"gopkg.in/gomail.v2"
)

// Provider delivers one rendered message over a single channel.
type Provider interface {
	Send(ctx context.Context, msg Rendered) error
}

// SMTPProvider sends email through an SMTP relay.
type SMTPProvider struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPProvider(host string, port int, username, password, from string) *SMTPProvider {
	d := gomail.NewDialer(host, port, username, password)
	d.TLSConfig = &tls.Config{ServerName: host, MinVersion: tls.VersionTLS12}
	return &SMTPProvider{dialer: d, from: from}
}

func (p *SMTPProvider) Send(ctx context.Context, msg Rendered) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", p.from)
	m.SetHeader("To", msg.Recipient)
	m.SetHeader("Subject", msg.Subject)
	m.SetHeader("X-Outbox-ID", msg.ID.String())
	m.SetBody("text/plain", msg.Body)

	if err := p.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

// SMSGatewayProvider posts messages to an HTTP SMS gateway.
type SMSGatewayProvider struct {
	url    string
	token  string
	sender string
	client *http.Client
}

func NewSMSGatewayProvider(url, token, sender string) *SMSGatewayProvider {
	return &SMSGatewayProvider{
		url:    url,
		token:  token,
		sender: sender,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

type smsRequest struct {
	To        string `json:"to"`
	From      string `json:"from,omitempty"`
	Text      string `json:"text"`
	Reference string `json:"reference"`
}

func (p *SMSGatewayProvider) Send(ctx context.Context, msg Rendered) error {
	body, err := json.Marshal(smsRequest{
		To:        msg.Recipient,
		From:      p.sender,
		Text:      msg.Body,
		Reference: msg.ID.String(),
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("sms gateway: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("sms gateway status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}
	return nil
}

// LogProvider only logs. Used in dev when no transport is configured.
type LogProvider struct{}

func (LogProvider) Send(_ context.Context, msg Rendered) error {
	log.Printf("outbox deliver type=%s to=%s subject=%q id=%s", msg.MessageType, msg.Recipient, msg.Subject, msg.ID)
	return nil
}
