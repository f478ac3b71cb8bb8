package llm

import (
	"context"
	"os"
	"strconv"
	"strings"
)

// Router dispatches model identifiers to provider clients by prefix
// ("groq/...", "gemini/...", "anthropic/..."). A shared token-bucket limiter
// throttles all outbound calls when LLM_RPS is set.
type Router struct {
	providers map[string]Gateway
	rl        *rpsLimiter
}

func NewRouter() *Router {
	var rps float64
	var burst int
	if v := os.Getenv("LLM_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			rps = f
		}
	}
	if v := os.Getenv("LLM_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			burst = n
		}
	}
	return &Router{
		providers: map[string]Gateway{},
		rl:        newRPSLimiter(rps, burst),
	}
}

// Register binds a provider to a model-id prefix. Later registrations for the
// same prefix win.
func (r *Router) Register(prefix string, gw Gateway) {
	r.providers[prefix] = gw
}

func (r *Router) Invoke(ctx context.Context, modelID string, msgs []Message, opts Options) (string, error) {
	prefix, _, ok := strings.Cut(modelID, "/")
	if !ok {
		return "", &InferenceError{ModelID: modelID, Err: ErrUnknownModel}
	}
	gw, found := r.providers[prefix]
	if !found {
		return "", &InferenceError{ModelID: modelID, Err: ErrUnknownModel}
	}
	if err := r.rl.Acquire(ctx); err != nil {
		return "", &InferenceError{ModelID: modelID, Err: err}
	}
	text, err := gw.Invoke(ctx, modelID, msgs, opts)
	if err != nil {
		return "", &InferenceError{ModelID: modelID, Err: err}
	}
	return text, nil
}

func (r *Router) Close() error {
	r.rl.Stop()
	var firstErr error
	for _, gw := range r.providers {
		if err := gw.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
