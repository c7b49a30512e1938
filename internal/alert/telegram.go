package alert

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const telegramTimeout = 10 * time.Second

// Telegram sends messages through the Telegram Bot HTTP API's sendMessage
// method. No Telegram SDK travels with this pack, so this is a direct
// net/http client against the documented endpoint.
type Telegram struct {
	botToken string
	chatID   string
	client   *http.Client
}

// NewTelegram builds a Telegram channel for the given bot token and chat.
func NewTelegram(botToken, chatID string) *Telegram {
	return &Telegram{
		botToken: botToken,
		chatID:   chatID,
		client:   &http.Client{Timeout: telegramTimeout},
	}
}

// Send posts message to the configured chat.
func (t *Telegram) Send(ctx context.Context, message string) error {
	endpoint := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.botToken)

	form := url.Values{}
	form.Set("chat_id", t.chatID)
	form.Set("text", message)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("telegram: building request: %w", err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: sending message: %w", err)
	}

	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("telegram: unexpected status %d", resp.StatusCode)
	}

	return nil
}
