package llm

import (
	"context"
	"strings"

	genai "google.golang.org/genai"
)

// GeminiProvider is a thin wrapper around the official genai client. Model ids
// are passed through with the catalog's "gemini/" prefix stripped.
type GeminiProvider struct {
	cli *genai.Client
}

func NewGeminiProvider(ctx context.Context) (*GeminiProvider, error) {
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, err
	}
	return &GeminiProvider{cli: cli}, nil
}

func (g *GeminiProvider) Invoke(ctx context.Context, modelID string, msgs []Message, opts Options) (string, error) {
	sys, rest := system(msgs)

	contents := make([]*genai.Content, 0, len(rest))
	for _, m := range rest {
		role := genai.RoleUser
		if m.Role == "assistant" {
			role = genai.RoleModel
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: m.Content}},
		})
	}

	cfg := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(opts.MaxTokens),
		Temperature:     genai.Ptr(opts.Temperature),
	}
	if sys != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: sys}}}
	}

	model := strings.TrimPrefix(modelID, "gemini/")
	resp, err := g.cli.Models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", ErrEmptyResponse
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	if b.Len() == 0 {
		return "", ErrEmptyResponse
	}
	return b.String(), nil
}

func (g *GeminiProvider) Close() error { return nil }
