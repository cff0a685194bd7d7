// Package llm defines the Provider interface for hosted chat-completion
// backends.
//
// An LLM provider wraps a remote model API (e.g., OpenAI, Anthropic, or a
// Groq-hosted open model) and exposes a uniform single request/response
// interface for the workout parser. The parser only ever needs one blocking
// completion per call: no streaming, no retries, no caching; failures are
// surfaced to the caller, which decides what to do with them.
//
// Implementations must be safe for concurrent use and must propagate context
// cancellation promptly.
package llm

import (
	"context"

	"github.com/gymtime/gymtime/pkg/types"
)

// Usage holds token accounting information returned by the LLM backend.
// All counts are in the model's native token unit and may differ between
// providers for the same textual content.
type Usage struct {
	// PromptTokens is the number of tokens consumed by the input messages and
	// system prompt.
	PromptTokens int

	// CompletionTokens is the number of tokens generated in the response.
	CompletionTokens int

	// TotalTokens is PromptTokens + CompletionTokens. Some providers return it
	// directly rather than computing it from the parts.
	TotalTokens int
}

// CompletionRequest carries everything the LLM needs to produce a response.
// A zero-value request is invalid; at minimum Messages must be non-empty.
type CompletionRequest struct {
	// Messages is the ordered exchange. For gymtime this is a single
	// user-role message carrying the transcript or workout description.
	Messages []types.Message

	// SystemPrompt is a high-priority instruction injected before the
	// messages. Providers that lack a dedicated system slot must prepend it as
	// a "system"-role message.
	SystemPrompt string

	// Temperature controls output randomness in the range [0.0, 2.0].
	// Zero means use the provider default.
	Temperature float64

	// MaxTokens caps the number of completion tokens the model may generate.
	// Zero means use the provider default.
	MaxTokens int
}

// CompletionResponse is the result of a Complete call.
type CompletionResponse struct {
	// Content is the full text of the first choice's message, verbatim. No
	// trimming and no JSON validation happen at this layer.
	Content string

	// Usage contains token accounting for this request/response pair.
	Usage Usage
}

// Provider is the abstraction over any chat-completion backend.
//
// Implementations must be safe for concurrent use from multiple goroutines.
type Provider interface {
	// Complete sends req to the model and waits for the full response.
	//
	// Returns an error for malformed configuration, transport failures,
	// non-2xx statuses (with the server's detail where available), response
	// decode failures, or an empty choice list. No automatic retry is
	// performed.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}
