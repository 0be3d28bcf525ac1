// Package openai implements embedding.Provider using
// sashabaranov/go-openai's embeddings endpoint.
package openai

import (
	"context"

	openaiClient "github.com/sashabaranov/go-openai"

	"github.com/wikigr/wikigr/core"
	"github.com/wikigr/wikigr/embedding"
)

const ProviderName = "openai"

var modelDimensions = map[string]int{
	"text-embedding-ada-002": 1536,
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
}

func init() {
	embedding.Register(ProviderName, New)
}

// Provider implements embedding.Provider against the OpenAI embeddings
// endpoint.
type Provider struct {
	client *openaiClient.Client
	model  string
	dim    int
}

// New constructs a Provider from opts["api_key"] and opts["model"].
// The dimension is inferred from the model name; an unrecognized model
// name fails configuration rather than guessing.
func New(opts map[string]string) (embedding.Provider, error) {
	apiKey := opts["api_key"]
	if apiKey == "" {
		return nil, core.NewError("openai.New", core.KindConfiguration, "api_key is required", nil)
	}
	model := opts["model"]
	if model == "" {
		model = "text-embedding-3-small"
	}
	dim, ok := modelDimensions[model]
	if !ok {
		return nil, core.NewError("openai.New", core.KindConfiguration,
			"unrecognized embedding model "+model, nil)
	}

	client := openaiClient.NewClient(apiKey)
	if baseURL := opts["base_url"]; baseURL != "" {
		cfg := openaiClient.DefaultConfig(apiKey)
		cfg.BaseURL = baseURL
		client = openaiClient.NewClientWithConfig(cfg)
	}

	return &Provider{client: client, model: model, dim: dim}, nil
}

func (p *Provider) Dimension() int { return p.dim }

// EmbedBatch sends all texts as a single embeddings request and
// verifies the response preserves input order.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := p.client.CreateEmbeddings(ctx, openaiClient.EmbeddingRequest{
		Input: texts,
		Model: openaiClient.EmbeddingModel(p.model),
	})
	if err != nil {
		return nil, core.NewError("openai.EmbedBatch", core.KindTransient, "", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, core.NewError("openai.EmbedBatch", core.KindTransient,
			"embedding count mismatch", nil)
	}

	out := make([][]float32, len(texts))
	for i, d := range resp.Data {
		if d.Index != i {
			return nil, core.NewError("openai.EmbedBatch", core.KindTransient,
				"embedding index mismatch", nil)
		}
		out[i] = d.Embedding
	}
	return out, nil
}
