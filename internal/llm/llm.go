// Package llm wraps the language model providers behind a single
// Complete call and provides lenient JSON extraction for their replies.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hmi-forge/backend/internal/config"
)

var (
	// ErrMissingCredentials is fatal: a provider is configured without a key.
	ErrMissingCredentials = errors.New("llm: missing model credentials")
	// ErrDisabled is returned by the disabled client so callers take their
	// deterministic path.
	ErrDisabled = errors.New("llm: model calls disabled")
	// ErrEmptyResponse means the provider answered without any text.
	ErrEmptyResponse = errors.New("llm: empty response")
	// ErrUnparsable means no JSON object could be recovered from a reply.
	ErrUnparsable = errors.New("llm: response is not valid JSON")
)

const (
	defaultMaxTokens = 4096
	defaultTimeout   = 120 * time.Second
)

// Request is a single prompt with its generation parameters.
type Request struct {
	System      string
	Prompt      string
	Model       string
	Temperature float64
	MaxTokens   int
}

// Response carries the raw reply text and token accounting.
type Response struct {
	Text  string
	Usage Usage
}

// Client is a language model service.
type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// Usage counts tokens spent on model calls.
type Usage struct {
	InputTokens  int64 `json:"inputTokens" msgpack:"inputTokens"`
	OutputTokens int64 `json:"outputTokens" msgpack:"outputTokens"`
	Calls        int   `json:"calls" msgpack:"calls"`
}

func (u Usage) TotalTokens() int64 {
	return u.InputTokens + u.OutputTokens
}

func (u *Usage) Add(other Usage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.Calls += other.Calls
}

// New builds the client for cfg.Provider. Provider "none" yields a client
// that always fails with ErrDisabled.
func New(cfg config.LLMConfig, logger *slog.Logger) (Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	switch cfg.Provider {
	case config.ProviderAnthropic:
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("%w: anthropic_api_key is not set", ErrMissingCredentials)
		}
		return NewAnthropicClient(cfg.AnthropicAPIKey, cfg.Model, timeout, logger), nil
	case config.ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("%w: openai_api_key is not set", ErrMissingCredentials)
		}
		return NewOpenAIClient(cfg.OpenAIAPIKey, cfg.Model, cfg.OpenAIBaseURL, timeout, logger), nil
	case config.ProviderNone, "":
		return Disabled{}, nil
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", cfg.Provider)
	}
}

// Disabled never calls a model.
type Disabled struct{}

// Enabled reports whether c can reach a model at all.
func Enabled(c Client) bool {
	switch c.(type) {
	case nil, Disabled, *Disabled:
		return false
	}
	return true
}

func (Disabled) Complete(context.Context, Request) (Response, error) {
	return Response{}, ErrDisabled
}

// Metered wraps a Client and sums the usage of every call. It is safe for
// concurrent use.
type Metered struct {
	inner Client
	mu    sync.Mutex
	usage Usage
}

// NewMetered wraps c.
func NewMetered(c Client) *Metered {
	return &Metered{inner: c}
}

func (m *Metered) Complete(ctx context.Context, req Request) (Response, error) {
	resp, err := m.inner.Complete(ctx, req)
	if errors.Is(err, ErrDisabled) {
		return resp, err
	}
	m.mu.Lock()
	u := resp.Usage
	u.Calls = 1
	m.usage.Add(u)
	m.mu.Unlock()
	return resp, err
}

// Usage returns the accumulated usage.
func (m *Metered) Usage() Usage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.usage
}

// withDefaults fills zero generation parameters.
func (r Request) withDefaults(model string) Request {
	if r.Model == "" {
		r.Model = model
	}
	if r.MaxTokens <= 0 {
		r.MaxTokens = defaultMaxTokens
	}
	return r
}
