// Package llm provides completion client interfaces and implementations.
package llm

import (
	"context"
	"errors"
	"fmt"
)

// ErrQuotaExceeded is wrapped by clients when the provider reports that the
// account is out of quota.
var ErrQuotaExceeded = errors.New("completion quota exceeded")

// ErrNotConfigured is returned when no provider credentials were supplied.
var ErrNotConfigured = errors.New("completion provider not configured")

// CompletionRequest represents a completion request.
type CompletionRequest struct {
	Model       string
	Messages    []ChatMessage
	MaxTokens   int
	Temperature float64
}

// ChatMessage represents a chat message for LLM.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionResponse represents a completion response.
type CompletionResponse struct {
	Content    string
	Model      string
	TokensIn   int
	TokensOut  int
	StopReason string
	LatencyMs  int64
}

// TotalTokens returns prompt plus completion tokens.
func (r *CompletionResponse) TotalTokens() int {
	return r.TokensIn + r.TokensOut
}

// Client is the interface for LLM providers.
type Client interface {
	// Complete sends a completion request and returns the response.
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)

	// Name returns the provider name.
	Name() string
}

// Provider is the type of LLM provider.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
)

// Options configures a provider client.
type Options struct {
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	AnthropicAPIKey string
}

// NewClient creates a new LLM client based on provider.
func NewClient(provider Provider, opts Options) (Client, error) {
	switch provider {
	case ProviderAnthropic:
		client, err := NewAnthropicClient(opts.AnthropicAPIKey)
		if err != nil {
			return nil, err
		}
		return client, nil
	case ProviderOpenAI, "":
		client, err := NewOpenAIClient(opts.OpenAIAPIKey, opts.OpenAIBaseURL)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", provider)
	}
}

// Unconfigured is a Client that fails every call with ErrNotConfigured.
type Unconfigured struct{}

// Complete always fails.
func (Unconfigured) Complete(context.Context, *CompletionRequest) (*CompletionResponse, error) {
	return nil, ErrNotConfigured
}

// Name returns the provider name.
func (Unconfigured) Name() string {
	return "none"
}
