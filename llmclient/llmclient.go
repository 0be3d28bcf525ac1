// Package llmclient defines the single-method capability interface the
// extraction and synthesis stages call through, plus a small provider
// registry so the orchestrator and retrieval agent can be wired to
// OpenAI, Anthropic, or Bedrock without a compile-time dependency on
// any one SDK.
package llmclient

import "context"

// Client is the narrow surface every LLM provider implements: a single
// text-in, text-out completion call. Tool-calling, streaming, and chat
// history are deliberately out of scope: extraction and synthesis
// both work from one assembled prompt string.
type Client interface {
	// Complete sends prompt to the model and returns its text response,
	// truncated by the provider to maxOutputTokens.
	Complete(ctx context.Context, prompt string, maxOutputTokens int) (string, error)

	// Name identifies the provider for logging and metrics.
	Name() string
}

// Factory constructs a Client from provider-specific options already
// resolved by the caller (API key, model name, region, ...).
type Factory func(opts map[string]string) (Client, error)

var registry = map[string]Factory{}

// Register adds a provider factory under name. Providers call this
// from an init function, mirroring the registration pattern used by
// the embedding package.
func Register(name string, factory Factory) {
	registry[name] = factory
}

// New constructs a Client for the named provider.
func New(name string, opts map[string]string) (Client, error) {
	factory, ok := registry[name]
	if !ok {
		return nil, newUnknownProviderError(name)
	}
	return factory(opts)
}
