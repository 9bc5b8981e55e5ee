// Package mailer is a thin wrapper over a hosted transactional email API.
// The service never speaks SMTP; it posts JSON to the provider and lets it
// handle delivery. When no API key is configured the LogMailer stands in so
// local development never sends real mail.
package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

type Mailer interface {
	// SendLeadMagnet delivers the gated-download link for a magnet.
	SendLeadMagnet(ctx context.Context, to, magnetTitle, downloadURL string) error
	// SendProfilePrompt delivers a progressive-profiling survey link.
	SendProfilePrompt(ctx context.Context, to, question, profileURL string) error
}

// APIMailer posts messages to a hosted provider's JSON API using a bearer
// key (Resend-style contract).
type APIMailer struct {
	apiURL string
	apiKey string
	from   string
	client *http.Client
}

func NewAPIMailer(apiURL, apiKey, from string) *APIMailer {
	return &APIMailer{
		apiURL: apiURL,
		apiKey: apiKey,
		from:   from,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

type message struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

func (m *APIMailer) SendLeadMagnet(ctx context.Context, to, magnetTitle, downloadURL string) error {
	return m.send(ctx, message{
		From:    m.from,
		To:      to,
		Subject: "Your download: " + magnetTitle,
		HTML: fmt.Sprintf(
			`<p>Thanks for subscribing! Here is your copy of <strong>%s</strong>.</p>`+
				`<p><a href="%s">Download it here</a> (the link expires in 7 days).</p>`,
			magnetTitle, downloadURL),
	})
}

func (m *APIMailer) SendProfilePrompt(ctx context.Context, to, question, profileURL string) error {
	return m.send(ctx, message{
		From:    m.from,
		To:      to,
		Subject: "Quick question",
		HTML: fmt.Sprintf(
			`<p>%s</p><p><a href="%s">Answer in one click</a>.</p>`,
			question, profileURL),
	})
}

func (m *APIMailer) send(ctx context.Context, msg message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("mailer: marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.apiURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("mailer: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+m.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("mailer: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("mailer: provider returned %d: %s", resp.StatusCode, detail)
	}
	return nil
}

// LogMailer logs instead of sending. Used whenever MAIL_API_KEY is absent.
type LogMailer struct {
	log *zap.Logger
}

func NewLogMailer(log *zap.Logger) *LogMailer {
	return &LogMailer{log: log}
}

func (m *LogMailer) SendLeadMagnet(_ context.Context, to, magnetTitle, downloadURL string) error {
	m.log.Info("lead magnet email (not sent)",
		zap.String("to", to),
		zap.String("magnet", magnetTitle),
		zap.String("url", downloadURL),
	)
	return nil
}

func (m *LogMailer) SendProfilePrompt(_ context.Context, to, question, profileURL string) error {
	m.log.Info("profile prompt email (not sent)",
		zap.String("to", to),
		zap.String("question", question),
		zap.String("url", profileURL),
	)
	return nil
}
