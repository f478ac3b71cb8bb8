package llm

import (
	"context"
	"sync"
)

// FakeGateway returns scripted responses for offline runs and tests.
type FakeGateway struct {
	mu sync.Mutex
	// Responses maps model id to a queue of canned responses; each Invoke
	// pops the head, and the last entry repeats once the queue drains.
	Responses map[string][]string
	// Default is returned for models with no scripted queue.
	Default string
	// Fail marks models whose calls always error.
	Fail map[string]error
	// Calls records every invocation in arrival order.
	Calls []FakeCall
}

type FakeCall struct {
	ModelID  string
	Messages []Message
	Opts     Options
}

func NewFakeGateway() *FakeGateway {
	return &FakeGateway{
		Responses: map[string][]string{},
		Fail:      map[string]error{},
		Default:   "fake response",
	}
}

func (f *FakeGateway) Script(modelID string, responses ...string) *FakeGateway {
	f.Responses[modelID] = append(f.Responses[modelID], responses...)
	return f
}

func (f *FakeGateway) FailWith(modelID string, err error) *FakeGateway {
	f.Fail[modelID] = err
	return f
}

func (f *FakeGateway) Invoke(_ context.Context, modelID string, msgs []Message, opts Options) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, FakeCall{ModelID: modelID, Messages: msgs, Opts: opts})
	if err, ok := f.Fail[modelID]; ok {
		return "", &InferenceError{ModelID: modelID, Err: err}
	}
	queue := f.Responses[modelID]
	if len(queue) == 0 {
		return f.Default, nil
	}
	head := queue[0]
	if len(queue) > 1 {
		f.Responses[modelID] = queue[1:]
	}
	return head, nil
}

func (f *FakeGateway) Close() error { return nil }

// CallCount returns how many invocations hit the given model.
func (f *FakeGateway) CallCount(modelID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.Calls {
		if c.ModelID == modelID {
			n++
		}
	}
	return n
}
