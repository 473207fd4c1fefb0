package summarizer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClaudeGenerator_JoinsTextBlocks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "claude-test", body["model"])
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"id": "msg_1", "type": "message", "role": "assistant", "model": "claude-test",
			"content": [
				{"type": "text", "text": "{\"summarized_content\":\"s\","},
				{"type": "thinking", "thinking": "hmm", "signature": "sig"},
				{"type": "text", "text": "\"verdict\":\"BUY\"}"}
			],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 1, "output_tokens": 1}
		}`)
	}))
	defer srv.Close()

	g := &claudeGenerator{
		client:    anthropic.NewClient(option.WithAPIKey("key"), option.WithBaseURL(srv.URL), option.WithMaxRetries(0)),
		model:     "claude-test",
		maxTokens: 64,
	}
	out, err := g.generate(context.Background(), systemPrompt, "prompt")
	require.NoError(t, err)
	assert.Equal(t, `{"summarized_content":"s","verdict":"BUY"}`, out)
}

func TestClaudeGenerator_NoText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"msg_2","type":"message","role":"assistant","model":"m","content":[],"usage":{}}`)
	}))
	defer srv.Close()

	g := &claudeGenerator{
		client:    anthropic.NewClient(option.WithAPIKey("key"), option.WithBaseURL(srv.URL), option.WithMaxRetries(0)),
		model:     "m",
		maxTokens: 64,
	}
	_, err := g.generate(context.Background(), "", "prompt")
	assert.ErrorContains(t, err, "no text")
}
