// Package openai implements llmclient.Client using sashabaranov/go-openai's
// chat completion API.
package openai

import (
	"context"

	openaiClient "github.com/sashabaranov/go-openai"

	"github.com/wikigr/wikigr/core"
	"github.com/wikigr/wikigr/llmclient"
)

const (
	ProviderName = "openai"
	DefaultModel = "gpt-4o-mini"
)

func init() {
	llmclient.Register(ProviderName, New)
}

// Provider implements llmclient.Client against the OpenAI chat
// completions endpoint.
type Provider struct {
	client *openaiClient.Client
	model  string
}

// New constructs a Provider from opts["api_key"] and opts["model"]
// (model defaults to DefaultModel when absent).
func New(opts map[string]string) (llmclient.Client, error) {
	apiKey := opts["api_key"]
	if apiKey == "" {
		return nil, core.NewError("openai.New", core.KindConfiguration, "api_key is required", nil)
	}
	model := opts["model"]
	if model == "" {
		model = DefaultModel
	}
	if baseURL := opts["base_url"]; baseURL != "" {
		cfg := openaiClient.DefaultConfig(apiKey)
		cfg.BaseURL = baseURL
		return &Provider{client: openaiClient.NewClientWithConfig(cfg), model: model}, nil
	}
	return &Provider{client: openaiClient.NewClient(apiKey), model: model}, nil
}

func (p *Provider) Name() string { return ProviderName }

// Complete sends prompt as a single user message and returns the first
// choice's text.
func (p *Provider) Complete(ctx context.Context, prompt string, maxOutputTokens int) (string, error) {
	req := openaiClient.ChatCompletionRequest{
		Model: p.model,
		Messages: []openaiClient.ChatCompletionMessage{
			{Role: openaiClient.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens: maxOutputTokens,
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", core.NewError("openai.Complete", core.KindTransient, "", err)
	}
	if len(resp.Choices) == 0 {
		return "", core.NewError("openai.Complete", core.KindTransient, "empty response", nil)
	}
	return resp.Choices[0].Message.Content, nil
}
