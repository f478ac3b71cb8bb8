// Package llm abstracts remote text generation behind a single Gateway
// interface and routes model identifiers to provider clients.
package llm

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrEmptyResponse = errors.New("llm: empty response from model")
	ErrUnknownModel  = errors.New("llm: unknown model")
)

// Message is one turn of a chat-style request.
type Message struct {
	Role    string `json:"role"` // system | user | assistant
	Content string `json:"content"`
}

// Options are the sampling parameters for one call.
type Options struct {
	MaxTokens   int
	Temperature float32
}

// Gateway is a single remote text-generation call. Implementations own their
// timeouts; callers own retries and fallbacks.
type Gateway interface {
	Invoke(ctx context.Context, modelID string, msgs []Message, opts Options) (string, error)
	Close() error
}

// InferenceError wraps a provider failure with the model that produced it so
// stage-local recovery can surface the identity inline.
type InferenceError struct {
	ModelID string
	Err     error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("llm: model %s: %v", e.ModelID, e.Err)
}

func (e *InferenceError) Unwrap() error { return e.Err }

// PermanentError indicates an error that will not resolve with retries.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

func NewPermanentError(err error) error {
	return &PermanentError{Err: err}
}

func system(msgs []Message) (string, []Message) {
	var sys string
	rest := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == "system" && sys == "" {
			sys = m.Content
			continue
		}
		rest = append(rest, m)
	}
	return sys, rest
}
