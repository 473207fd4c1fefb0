package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"PennyAI/internal/backfill"
	"PennyAI/internal/pipeline"
)

func newTestNotifier(srv *httptest.Server) *TelegramNotifier {
	n := NewTelegramNotifier("TOKEN", "42", "", arbor.NewLogger())
	n.BaseURL = srv.URL
	n.Backoff = time.Millisecond
	return n
}

func TestSendWithRetry(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		var payload map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "42", payload["chat_id"])
		assert.Equal(t, "HTML", payload["parse_mode"])
		assert.Equal(t, true, payload["disable_web_page_preview"])
		if atomic.AddInt32(&calls, 1) == 1 {
			http.Error(w, "flood", http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{"ok":true}`)
	}))
	defer srv.Close()

	require.NoError(t, newTestNotifier(srv).SendWithRetry(context.Background(), "hello", 2))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestSendWithRetry_Exhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadRequest)
	}))
	defer srv.Close()

	err := newTestNotifier(srv).SendWithRetry(context.Background(), "hello", 1)
	assert.ErrorContains(t, err, "all 2 retries exhausted")
	assert.ErrorContains(t, err, "status 400")
}

func TestSend_APIErrorDescription(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"ok":false,"description":"Too Many Requests: retry after 3","parameters":{"retry_after":3}}`)
	}))
	defer srv.Close()

	err := newTestNotifier(srv).Send(context.Background(), "hello")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusTooManyRequests, apiErr.Status)
	assert.Equal(t, "Too Many Requests: retry after 3", apiErr.Description)
	assert.Equal(t, 3*time.Second, apiErr.RetryAfter)
}

func TestSend_SplitsLongMessages(t *testing.T) {
	var texts []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		texts = append(texts, payload["text"].(string))
		fmt.Fprint(w, `{"ok":true,"result":{}}`)
	}))
	defer srv.Close()

	line := strings.Repeat("x", 99) + "\n"
	require.NoError(t, newTestNotifier(srv).Send(context.Background(), strings.Repeat(line, 50)))
	require.Len(t, texts, 2)
	assert.Len(t, texts[0], 4000)
	assert.Len(t, texts[1], 1000)
}

func TestSplitMessage(t *testing.T) {
	assert.Equal(t, []string{"short"}, splitMessage("short", 10))
	assert.Equal(t, []string{"abcdefghij", "klm"}, splitMessage("abcdefghijklm", 10))
	assert.Equal(t, []string{"abcdef\n", "ghijk"}, splitMessage("abcdef\nghijk", 10))
	assert.Equal(t, []string{"ééééé", "éé"}, splitMessage("ééééééé", 5))
}

func TestParseCommand(t *testing.T) {
	assert.Equal(t, "/status", parseCommand(" /status "))
	assert.Equal(t, "/run", parseCommand("/Run@PennyAIBot now"))
	assert.Equal(t, "", parseCommand("hello"))
	assert.Equal(t, "", parseCommand("/"))
	assert.Equal(t, "", parseCommand(""))
}

func TestPoll_DispatchesCommands(t *testing.T) {
	var replies []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		switch {
		case strings.HasSuffix(r.URL.Path, "/getUpdates"):
			assert.EqualValues(t, 7, payload["offset"])
			fmt.Fprint(w, `{"ok":true,"result":[
				{"update_id":7,"message":{"text":" /status ","chat":{"id":42}}},
				{"update_id":8},
				{"update_id":9,"message":{"text":"/run","chat":{"id":99}}},
				{"update_id":10,"message":{"text":"just chatting","chat":{"id":42}}},
				{"update_id":11,"message":{"text":"/quiet@PennyAIBot","chat":{"id":42}}}
			]}`)
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			replies = append(replies, payload["text"].(string))
			fmt.Fprint(w, `{"ok":true,"result":{}}`)
		}
	}))
	defer srv.Close()

	n := newTestNotifier(srv)
	var got []string
	next, err := n.poll(context.Background(), srv.Client(), 7, func(_ context.Context, cmd string) string {
		got = append(got, cmd)
		if cmd == "/status" {
			return "all good"
		}
		return ""
	})
	require.NoError(t, err)
	assert.Equal(t, 12, next)
	assert.Equal(t, []string{"/status", "/quiet"}, got)
	assert.Equal(t, []string{"all good"}, replies)
}

func TestFormatRunReport(t *testing.T) {
	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	ok := &pipeline.Result{
		RunID: "run-1", Started: start, Finished: start.Add(90 * time.Second),
		Posts: 40, Mentions: 12, Tickers: 8, Unresolved: 3, Appended: 12, TotalRows: 120,
		Backfill: backfill.Result{Pending: 12, Succeeded: 11, Failed: 1},
	}
	msg := FormatRunReport(ok)
	assert.Contains(t, msg, "completed")
	assert.Contains(t, msg, "Tickers resolved: 5/8")
	assert.Contains(t, msg, "Rows appended: 12 (total 120)")
	assert.Contains(t, msg, "11 ok, 1 failed of 12 pending")
	assert.Contains(t, msg, "Elapsed: 1m30s")

	failed := &pipeline.Result{RunID: "run-2", Started: start, Stage: "upload", Err: errors.New("disk <full>")}
	msg = FormatRunReport(failed)
	assert.Contains(t, msg, "failed at upload")
	assert.Contains(t, msg, "disk &lt;full&gt;")
}

func TestFormatStatus(t *testing.T) {
	msg := FormatStatus(StoreStatus{TotalRows: 10, Pending: 2, TickersToday: 3})
	assert.Contains(t, msg, "Stored rows: 10")
	assert.Contains(t, msg, "Last run: none")

	msg = FormatStatus(StoreStatus{Running: true})
	assert.Contains(t, msg, "running")
}
