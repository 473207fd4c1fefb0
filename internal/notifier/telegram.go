package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
)

const (
	telegramAPI = "https://api.telegram.org"
	// Bot API limit on the text of a single message, in characters.
	maxMessageLen = 4096
)

// Notifier delivers run reports to an operator.
type Notifier interface {
	SendWithRetry(ctx context.Context, text string, maxRetries int) error
}

// TelegramNotifier talks to one chat through the Telegram Bot API.
type TelegramNotifier struct {
	BotToken string
	ChatID   string
	BaseURL  string
	Client   *http.Client
	Backoff  time.Duration

	logger arbor.ILogger
}

func NewTelegramNotifier(botToken, chatID, proxyURL string, logger arbor.ILogger) *TelegramNotifier {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &TelegramNotifier{
		BotToken: botToken,
		ChatID:   chatID,
		BaseURL:  telegramAPI,
		Client:   &http.Client{Timeout: 30 * time.Second, Transport: transport},
		Backoff:  time.Second,
		logger:   logger,
	}
}

// APIError is a failed Bot API call. RetryAfter is set when Telegram asks
// the caller to slow down.
type APIError struct {
	Status      int
	Description string
	RetryAfter  time.Duration
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram API error: status %d: %s", e.Status, e.Description)
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
	Parameters  *struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters"`
}

// call posts payload to a Bot API method and decodes the result into out
// when out is non-nil.
func (t *TelegramNotifier) call(ctx context.Context, client *http.Client, method string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", method, err)
	}
	endpoint := fmt.Sprintf("%s/bot%s/%s", t.BaseURL, t.BotToken, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read %s response: %w", method, err)
	}

	var r apiResponse
	if jsonErr := json.Unmarshal(raw, &r); jsonErr != nil || !r.OK || resp.StatusCode != http.StatusOK {
		apiErr := &APIError{Status: resp.StatusCode, Description: r.Description}
		if apiErr.Description == "" {
			apiErr.Description = strings.TrimSpace(string(raw))
		}
		if r.Parameters != nil {
			apiErr.RetryAfter = time.Duration(r.Parameters.RetryAfter) * time.Second
		}
		return apiErr
	}
	if out != nil {
		if err := json.Unmarshal(r.Result, out); err != nil {
			return fmt.Errorf("decode %s result: %w", method, err)
		}
	}
	return nil
}

func (t *TelegramNotifier) sendChunk(ctx context.Context, text string) error {
	return t.call(ctx, t.Client, "sendMessage", map[string]any{
		"chat_id":                  t.ChatID,
		"text":                     text,
		"parse_mode":               "HTML",
		"disable_web_page_preview": true,
	}, nil)
}

// Send delivers text to the configured chat, split into as many messages as
// the length limit requires.
func (t *TelegramNotifier) Send(ctx context.Context, text string) error {
	for _, chunk := range splitMessage(text, maxMessageLen) {
		if err := t.sendChunk(ctx, chunk); err != nil {
			return err
		}
	}
	return nil
}

// SendWithRetry is Send with exponential backoff per message. A server
// supplied retry_after wins over a shorter backoff.
func (t *TelegramNotifier) SendWithRetry(ctx context.Context, text string, maxRetries int) error {
	for _, chunk := range splitMessage(text, maxMessageLen) {
		if err := t.retryChunk(ctx, chunk, maxRetries); err != nil {
			return err
		}
	}
	return nil
}

func (t *TelegramNotifier) retryChunk(ctx context.Context, chunk string, maxRetries int) error {
	var lastErr error
	for i := 0; i <= maxRetries; i++ {
		err := t.sendChunk(ctx, chunk)
		if err == nil {
			return nil
		}
		lastErr = err
		if i == maxRetries {
			break
		}
		wait := t.Backoff * time.Duration(1<<uint(i))
		if apiErr, ok := err.(*APIError); ok && apiErr.RetryAfter > wait {
			wait = apiErr.RetryAfter
		}
		t.logger.Warn().Err(err).Int("attempt", i+1).Dur("backoff", wait).Msg("telegram send failed, retrying")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return fmt.Errorf("all %d retries exhausted: %w", maxRetries+1, lastErr)
}

// splitMessage cuts text into pieces of at most limit runes, preferring to
// break after a newline.
func splitMessage(text string, limit int) []string {
	runes := []rune(text)
	if len(runes) <= limit {
		return []string{text}
	}
	var out []string
	for len(runes) > limit {
		cut := limit
		for i := limit - 1; i > limit/2; i-- {
			if runes[i] == '\n' {
				cut = i + 1
				break
			}
		}
		out = append(out, string(runes[:cut]))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		out = append(out, string(runes))
	}
	return out
}

// NoopNotifier drops every message. It is used when Telegram is not configured.
type NoopNotifier struct{}

func (NoopNotifier) SendWithRetry(context.Context, string, int) error { return nil }
