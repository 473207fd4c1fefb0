// Package summarizer turns a post and its comments into a short summary and a
// BUY/SELL/HOLD verdict using a hosted language model.
package summarizer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"PennyAI/internal/config"
	"PennyAI/internal/model"
)

// Summarizer produces an annotation for one stored row.
type Summarizer interface {
	Summarize(ctx context.Context, content, comments string) (*model.Annotation, error)
	Name() string
}

// Func adapts a plain function to Summarizer.
type Func func(ctx context.Context, content, comments string) (*model.Annotation, error)

func (f Func) Summarize(ctx context.Context, content, comments string) (*model.Annotation, error) {
	return f(ctx, content, comments)
}

func (f Func) Name() string { return "func" }

// generator is a provider's raw text completion.
type generator interface {
	generate(ctx context.Context, system, prompt string) (string, error)
	name() string
}

// LLMSummarizer prompts a provider for JSON and parses the reply.
type LLMSummarizer struct {
	gen     generator
	timeout time.Duration
	logger  arbor.ILogger
}

// New builds the summarizer for the configured provider.
func New(ctx context.Context, cfg config.SummarizerConfig, logger arbor.ILogger) (*LLMSummarizer, error) {
	var (
		gen generator
		err error
	)
	switch cfg.Provider {
	case config.ProviderClaude:
		gen, err = newClaude(cfg)
	case config.ProviderGemini:
		gen, err = newGemini(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown summarizer provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	logger.Debug().
		Str("provider", cfg.Provider).
		Str("model", cfg.Model).
		Dur("timeout", cfg.Timeout).
		Msg("summarizer initialized")
	return &LLMSummarizer{gen: gen, timeout: cfg.Timeout, logger: logger}, nil
}

func (s *LLMSummarizer) Name() string { return s.gen.name() }

// Summarize sends one prompt and parses the structured reply.
func (s *LLMSummarizer) Summarize(ctx context.Context, content, comments string) (*model.Annotation, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	text, err := s.gen.generate(ctx, systemPrompt, BuildPrompt(content, comments))
	if err != nil {
		return nil, fmt.Errorf("%s completion: %w", s.gen.name(), err)
	}
	a, err := ParseAnnotation(text)
	if err != nil {
		return nil, err
	}
	s.logger.Debug().
		Str("verdict", string(a.Verdict)).
		Int("response_length", len(text)).
		Dur("duration", time.Since(start)).
		Msg("summary generated")
	return a, nil
}

const systemPrompt = "You are a financial analyst AI. You answer with a single JSON object and nothing else."

// BuildPrompt renders the per-row prompt.
func BuildPrompt(content, comments string) string {
	var b strings.Builder
	b.WriteString("Summarize the Reddit post content and comments.\n\n")
	b.WriteString("Post content:\n")
	b.WriteString(content)
	b.WriteString("\n\nComments:\n")
	b.WriteString(comments)
	b.WriteString("\n\nReturn a JSON object with exactly these keys:\n")
	b.WriteString(`  "summarized_content": short summary of the post content` + "\n")
	b.WriteString(`  "summarized_comments": summary of the comments` + "\n")
	b.WriteString(`  "verdict": one of "BUY", "SELL" or "HOLD" based on sentiment` + "\n")
	return b.String()
}

type reply struct {
	SummarizedContent  string `json:"summarized_content"`
	SummarizedComments string `json:"summarized_comments"`
	Verdict            string `json:"verdict"`
}

// ParseAnnotation extracts the first JSON object from a model reply, which may
// be wrapped in a code fence or surrounded by prose.
func ParseAnnotation(text string) (*model.Annotation, error) {
	obj, ok := firstObject(text)
	if !ok {
		return nil, fmt.Errorf("parse reply: no JSON object in %q", truncate(text, 80))
	}
	var r reply
	if err := json.Unmarshal([]byte(obj), &r); err != nil {
		return nil, fmt.Errorf("parse reply: %w", err)
	}
	summary := strings.TrimSpace(r.SummarizedContent)
	if summary == "" {
		return nil, fmt.Errorf("parse reply: empty summarized_content")
	}
	return &model.Annotation{
		Summary:        summary,
		CommentSummary: strings.TrimSpace(r.SummarizedComments),
		Verdict:        model.ParseVerdict(r.Verdict),
	}, nil
}

// firstObject returns the first balanced {...} span, skipping braces inside
// JSON strings.
func firstObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
