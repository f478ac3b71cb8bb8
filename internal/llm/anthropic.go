package llm

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicProvider calls the Anthropic Messages API. Model ids carry the
// catalog's "anthropic/" prefix which is stripped before dispatch.
type AnthropicProvider struct {
	cli anthropic.Client
}

// NewAnthropicProvider creates a provider. If apiKey is empty, it falls back
// to the ANTHROPIC_API_KEY env var.
func NewAnthropicProvider(apiKey string) (*AnthropicProvider, error) {
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("llm: ANTHROPIC_API_KEY is not set")
	}
	return &AnthropicProvider{cli: anthropic.NewClient(option.WithAPIKey(apiKey))}, nil
}

func (a *AnthropicProvider) Invoke(ctx context.Context, modelID string, msgs []Message, opts Options) (string, error) {
	sys, rest := system(msgs)

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(strings.TrimPrefix(modelID, "anthropic/")),
		MaxTokens:   int64(opts.MaxTokens),
		Temperature: anthropic.Float(float64(opts.Temperature)),
	}
	if sys != "" {
		params.System = []anthropic.TextBlockParam{{Text: sys}}
	}
	for _, m := range rest {
		if m.Role == "assistant" {
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		} else {
			params.Messages = append(params.Messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}

	resp, err := a.cli.Messages.New(ctx, params)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, block := range resp.Content {
		if variant, ok := block.AsAny().(anthropic.TextBlock); ok {
			b.WriteString(variant.Text)
		}
	}
	if b.Len() == 0 {
		return "", ErrEmptyResponse
	}
	return b.String(), nil
}

func (a *AnthropicProvider) Close() error { return nil }
