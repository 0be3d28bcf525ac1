// Package embedding defines the capability interface extraction,
// storage, and retrieval call through to turn text into vectors, plus
// a small provider registry mirroring package llmclient's shape.
package embedding

import "context"

// Provider embeds a batch of texts into fixed-length vectors.
type Provider interface {
	// EmbedBatch returns one vector per text, same order as input.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension is the length of every vector this provider returns.
	Dimension() int
}

// Factory constructs a Provider from resolved options (API key, model
// name, ...).
type Factory func(opts map[string]string) (Provider, error)

var registry = map[string]Factory{}

// Register adds a provider factory under name.
func Register(name string, factory Factory) {
	registry[name] = factory
}

// New constructs a Provider for the named provider.
func New(name string, opts map[string]string) (Provider, error) {
	factory, ok := registry[name]
	if !ok {
		return nil, newUnknownProviderError(name)
	}
	return factory(opts)
}
