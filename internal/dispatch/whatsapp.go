package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode"

	"github.com/edgard/herald/internal/store"
)

// WhatsAppSender posts messages to a WhatsApp HTTP gateway that exposes
// POST /chat/send/text with a {"Phone", "Body"} payload and a Token header.
type WhatsAppSender struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewWhatsAppSender creates a gateway client. A nil client means http.DefaultClient.
func NewWhatsAppSender(baseURL, token string, client *http.Client) *WhatsAppSender {
	if client == nil {
		client = http.DefaultClient
	}
	return &WhatsAppSender{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  client,
	}
}

type whatsAppTextRequest struct {
	Phone string `json:"Phone"`
	Body  string `json:"Body"`
}

// Send implements Sender.
func (s *WhatsAppSender) Send(ctx context.Context, recipient store.Recipient, body string) (string, error) {
	if s.baseURL == "" {
		return "", errors.New("whatsapp gateway url is not configured")
	}

	phone := digitsOnly(recipient.Phone)
	if phone == "" {
		return "", fmt.Errorf("invalid phone number %q", recipient.Phone)
	}

	payload, err := json.Marshal(whatsAppTextRequest{Phone: phone, Body: body})
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/chat/send/text", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Token", s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("gateway request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("gateway returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	return "WhatsApp message sent.", nil
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
