package notifier

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// CommandHandler answers a chat command. An empty reply sends nothing.
type CommandHandler func(ctx context.Context, command string) string

const pollTimeout = 30 // seconds Telegram holds a getUpdates call open

type update struct {
	UpdateID int `json:"update_id"`
	Message  *struct {
		Text string `json:"text"`
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
	} `json:"message"`
}

// StartPolling long-polls for commands from the configured chat until ctx
// is cancelled.
func (t *TelegramNotifier) StartPolling(ctx context.Context, handler CommandHandler) {
	client := &http.Client{Timeout: (pollTimeout + 5) * time.Second, Transport: t.Client.Transport}
	offset := 0
	for ctx.Err() == nil {
		next, err := t.poll(ctx, client, offset, handler)
		if err == nil {
			offset = next
			continue
		}
		if ctx.Err() != nil {
			break
		}
		t.logger.Warn().Err(err).Int("offset", offset).Msg("telegram polling failed")
		select {
		case <-ctx.Done():
		case <-time.After(5 * time.Second):
		}
	}
	t.logger.Info().Msg("telegram polling stopped")
}

// poll handles one getUpdates batch and returns the offset that
// acknowledges it. Messages from other chats are acknowledged and ignored.
func (t *TelegramNotifier) poll(ctx context.Context, client *http.Client, offset int, handler CommandHandler) (int, error) {
	var updates []update
	err := t.call(ctx, client, "getUpdates", map[string]any{
		"offset":          offset,
		"timeout":         pollTimeout,
		"allowed_updates": []string{"message"},
	}, &updates)
	if err != nil {
		return offset, err
	}

	for _, u := range updates {
		offset = u.UpdateID + 1
		if u.Message == nil || strconv.FormatInt(u.Message.Chat.ID, 10) != t.ChatID {
			continue
		}
		cmd := parseCommand(u.Message.Text)
		if cmd == "" {
			continue
		}
		t.logger.Info().Str("command", cmd).Msg("received command")
		if reply := handler(ctx, cmd); reply != "" {
			if err := t.Send(ctx, reply); err != nil {
				t.logger.Error().Err(err).Str("command", cmd).Msg("send reply failed")
			}
		}
	}
	return offset, nil
}

// parseCommand returns the lower-cased command word of a "/cmd@bot args"
// message, or "" when the text is not a command.
func parseCommand(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return ""
	}
	cmd, _, _ := strings.Cut(fields[0], "@")
	if cmd == "/" {
		return ""
	}
	return strings.ToLower(cmd)
}
