package summarizer

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"PennyAI/internal/config"
)

type geminiGenerator struct {
	client      *genai.Client
	model       string
	maxTokens   int
	temperature float32
}

func newGemini(ctx context.Context, cfg config.SummarizerConfig) (*geminiGenerator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required for the gemini summarizer")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &geminiGenerator{
		client:      client,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}, nil
}

func (g *geminiGenerator) name() string { return config.ProviderGemini }

func (g *geminiGenerator) generate(ctx context.Context, system, prompt string) (string, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(g.temperature),
		MaxOutputTokens:  int32(g.maxTokens),
		ResponseMIMEType: "application/json",
	}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}, cfg)
	if err != nil {
		return "", fmt.Errorf("gemini API call failed: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("empty response from gemini")
	}

	var out strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part.Text != "" {
				out.WriteString(part.Text)
			}
		}
	}
	if out.Len() == 0 {
		return "", fmt.Errorf("no text in gemini response")
	}
	return out.String(), nil
}
