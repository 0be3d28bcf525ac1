// Package anthropic implements llmclient.Client using
// anthropics/anthropic-sdk-go's Beta Messages API, restricted to plain
// text-in/text-out completions (no tool calls, no streaming).
package anthropic

import (
	"context"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/wikigr/wikigr/core"
	"github.com/wikigr/wikigr/llmclient"
)

const (
	ProviderName = "anthropic"
	DefaultModel = "claude-3-5-sonnet-20241022"
)

func init() {
	llmclient.Register(ProviderName, New)
}

// Provider implements llmclient.Client against the Anthropic Beta
// Messages endpoint.
type Provider struct {
	client anthropicsdk.Client
	model  string
}

// New constructs a Provider from opts["api_key"] and opts["model"]
// (model defaults to DefaultModel when absent).
func New(opts map[string]string) (llmclient.Client, error) {
	apiKey := opts["api_key"]
	if apiKey == "" {
		return nil, core.NewError("anthropic.New", core.KindConfiguration, "api_key is required", nil)
	}
	model := opts["model"]
	if model == "" {
		model = DefaultModel
	}

	clientOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL := opts["base_url"]; baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(baseURL))
	}

	return &Provider{client: anthropicsdk.NewClient(clientOpts...), model: model}, nil
}

func (p *Provider) Name() string { return ProviderName }

// Complete sends prompt as a single user-role message and concatenates
// the text blocks of the response.
func (p *Provider) Complete(ctx context.Context, prompt string, maxOutputTokens int) (string, error) {
	req := anthropicsdk.BetaMessageNewParams{
		Model:     p.model,
		MaxTokens: int64(maxOutputTokens),
		Messages: []anthropicsdk.BetaMessageParam{
			{
				Role: anthropicsdk.BetaMessageParamRoleUser,
				Content: []anthropicsdk.BetaContentBlockParamUnion{
					anthropicsdk.BetaContentBlockParamOfRequestTextBlock(prompt),
				},
			},
		},
	}

	resp, err := p.client.Beta.Messages.New(ctx, req)
	if err != nil {
		return "", core.NewError("anthropic.Complete", core.KindTransient, "", err)
	}

	var text string
	for _, block := range resp.Content {
		if tb, ok := block.AsAny().(anthropicsdk.BetaTextBlock); ok {
			text += tb.Text
		}
	}
	if text == "" {
		return "", core.NewError("anthropic.Complete", core.KindTransient, "empty response", nil)
	}
	return text, nil
}
