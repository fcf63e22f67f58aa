package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sudo-init-do/chatpay/internal/config"
)

// PlunkMailer sends through the Plunk HTTP API.
type PlunkMailer struct {
	apiKey  string
	apiURL  string
	from    string
	replyTo string
	http    *http.Client
}

func NewPlunkMailer(cfg config.MailConfig, hc *http.Client) *PlunkMailer {
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	url := cfg.PlunkURL
	if url == "" {
		url = "https://api.useplunk.com/v1/send"
	}
	return &PlunkMailer{
		apiKey:  cfg.PlunkAPIKey,
		apiURL:  url,
		from:    cfg.From,
		replyTo: cfg.ReplyTo,
		http:    hc,
	}
}

type plunkSendBody struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	From    string `json:"from,omitempty"`
	Reply   string `json:"reply,omitempty"`
}

func (m *PlunkMailer) Send(ctx context.Context, to, subject, body string) error {
	if m.apiKey == "" {
		return errors.New("plunk not configured: set PLUNK_API_KEY")
	}
	b, err := json.Marshal(plunkSendBody{To: to, Subject: subject, Body: body, From: m.from, Reply: m.replyTo})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.apiURL, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.apiKey)

	resp, err := m.http.Do(req)
	if err != nil {
		return fmt.Errorf("plunk send: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		if len(msg) > 0 {
			return fmt.Errorf("plunk send failed: status=%d body=%s", resp.StatusCode, msg)
		}
		return fmt.Errorf("plunk send failed: status=%d", resp.StatusCode)
	}
	return nil
}
