package app

import (
	"context"
	"log"
	"os"
	"strings"

	"edgejury/internal/gateway/config"
	"edgejury/internal/llm"
)

// initGateway registers one provider per configured API key. With no keys at
// all the gateway falls back to canned offline responses so local installs
// still exercise the full pipeline.
func initGateway(_ *config.Config) (llm.Gateway, error) {
	router := llm.NewRouter()
	registered := 0

	if key := strings.TrimSpace(os.Getenv("GROQ_API_KEY")); key != "" {
		p, err := llm.NewGroqProvider(key)
		if err != nil {
			return nil, err
		}
		router.Register("groq", p)
		registered++
	}
	if strings.TrimSpace(os.Getenv("GEMINI_API_KEY")) != "" || strings.TrimSpace(os.Getenv("GOOGLE_API_KEY")) != "" {
		p, err := llm.NewGeminiProvider(context.Background())
		if err != nil {
			return nil, err
		}
		router.Register("gemini", p)
		registered++
	}
	if key := strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY")); key != "" {
		p, err := llm.NewAnthropicProvider(key)
		if err != nil {
			return nil, err
		}
		router.Register("anthropic", p)
		registered++
	}

	if registered == 0 {
		log.Printf("llm gateway: no provider keys found, using offline fake responses")
		fake := llm.NewFakeGateway()
		fake.Default = "This is an offline development response. Configure GROQ_API_KEY, GEMINI_API_KEY, or ANTHROPIC_API_KEY for real inference."
		return fake, nil
	}
	log.Printf("llm gateway: %d provider(s) registered", registered)
	return router, nil
}
