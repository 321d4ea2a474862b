package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// TelegramSink posts messages through the Telegram Bot API sendMessage method
type TelegramSink struct {
	apiURL string
	token  string
	chatID string
	client *http.Client
}

// NewTelegramSink creates a sink. A nil client uses http.DefaultClient;
// request timeouts come from the context passed to Send.
func NewTelegramSink(apiURL, token, chatID string, client *http.Client) *TelegramSink {
	if client == nil {
		client = http.DefaultClient
	}
	return &TelegramSink{
		apiURL: strings.TrimRight(apiURL, "/"),
		token:  token,
		chatID: chatID,
		client: client,
	}
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func (s *TelegramSink) Send(ctx context.Context, message string) error {
	form := url.Values{
		"chat_id":                  {s.chatID},
		"text":                     {message},
		"parse_mode":               {"HTML"},
		"disable_web_page_preview": {"true"},
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", s.apiURL, s.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		// The endpoint embeds the token; do not echo it back
		return errors.New("telegram: failed to build request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			return fmt.Errorf("telegram: request failed: %w", urlErr.Err)
		}
		return fmt.Errorf("telegram: request failed: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var result telegramResponse
	_ = json.Unmarshal(body, &result)

	if resp.StatusCode < 200 || resp.StatusCode > 299 || !result.OK {
		if result.Description != "" {
			return fmt.Errorf("telegram: %s (status %d)", result.Description, resp.StatusCode)
		}
		return fmt.Errorf("telegram: unexpected status %d", resp.StatusCode)
	}

	return nil
}
