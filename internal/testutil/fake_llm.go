package testutil

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/hmi-forge/backend/internal/llm"
)

// Route answers requests whose prompt contains Match.
type Route struct {
	Match string
	Text  string
	Err   error
}

// FakeLLM is a scripted llm.Client. The first route whose Match is found
// in the prompt answers; otherwise Default is returned.
type FakeLLM struct {
	mu       sync.Mutex
	Routes   []Route
	Default  string
	Err      error
	Delay    time.Duration
	requests []llm.Request
}

var _ llm.Client = (*FakeLLM)(nil)

func (f *FakeLLM) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if f.Delay > 0 {
		select {
		case <-ctx.Done():
			return llm.Response{}, ctx.Err()
		case <-time.After(f.Delay):
		}
	}
	if err := ctx.Err(); err != nil {
		return llm.Response{}, err
	}
	if f.Err != nil {
		return llm.Response{}, f.Err
	}

	text := f.Default
	for _, r := range f.Routes {
		if strings.Contains(req.Prompt, r.Match) {
			if r.Err != nil {
				return llm.Response{}, r.Err
			}
			text = r.Text
			break
		}
	}
	return llm.Response{
		Text:  text,
		Usage: llm.Usage{InputTokens: int64(len(req.Prompt) / 4), OutputTokens: int64(len(text) / 4)},
	}, nil
}

// Requests returns a copy of every request received.
func (f *FakeLLM) Requests() []llm.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]llm.Request(nil), f.requests...)
}

// Calls is the number of requests received.
func (f *FakeLLM) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}
