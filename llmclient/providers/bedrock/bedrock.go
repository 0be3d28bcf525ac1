// Package bedrock implements llmclient.Client using aws-sdk-go-v2's
// bedrockruntime client against Anthropic Claude models hosted on
// Bedrock. It is registered alongside the direct OpenAI and Anthropic
// providers but not selected by default; operators opt in via
// provider configuration.
package bedrock

import (
	"context"
	"encoding/json"

	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/wikigr/wikigr/core"
	"github.com/wikigr/wikigr/llmclient"
)

const (
	ProviderName = "bedrock"
	DefaultModel = "anthropic.claude-3-5-sonnet-20241022-v2:0"

	anthropicVersion = "bedrock-2023-05-31"
)

func init() {
	llmclient.Register(ProviderName, New)
}

// Provider implements llmclient.Client against Bedrock's InvokeModel
// API using the Anthropic Messages request/response shape.
type Provider struct {
	client *bedrockruntime.Client
	model  string
}

// New constructs a Provider from opts["region"] and opts["model"]
// (model defaults to DefaultModel when absent). Credentials are
// resolved the standard AWS SDK way (environment, shared config, or
// instance role); WikiGR does not prescribe which.
func New(opts map[string]string) (llmclient.Client, error) {
	ctx := context.Background()
	loadOpts := []func(*awscfg.LoadOptions) error{}
	if region := opts["region"]; region != "" {
		loadOpts = append(loadOpts, awscfg.WithRegion(region))
	}
	awsCfg, err := awscfg.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, core.NewError("bedrock.New", core.KindConfiguration, "load AWS config", err)
	}

	model := opts["model"]
	if model == "" {
		model = DefaultModel
	}

	return &Provider{client: bedrockruntime.NewFromConfig(awsCfg), model: model}, nil
}

func (p *Provider) Name() string { return ProviderName }

type invokeRequest struct {
	AnthropicVersion string          `json:"anthropic_version"`
	MaxTokens        int             `json:"max_tokens"`
	Messages         []invokeMessage `json:"messages"`
}

type invokeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type invokeResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// Complete invokes the model with a single user-role message and
// concatenates the returned text content blocks.
func (p *Provider) Complete(ctx context.Context, prompt string, maxOutputTokens int) (string, error) {
	body, err := json.Marshal(invokeRequest{
		AnthropicVersion: anthropicVersion,
		MaxTokens:        maxOutputTokens,
		Messages:         []invokeMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", core.NewError("bedrock.Complete", core.KindConfiguration, "marshal request", err)
	}

	out, err := p.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     &p.model,
		Body:        body,
		ContentType: strPtr("application/json"),
	})
	if err != nil {
		return "", core.NewError("bedrock.Complete", core.KindTransient, "", err)
	}

	var resp invokeResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return "", core.NewError("bedrock.Complete", core.KindSchemaViolation, "unmarshal response", err)
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	if text == "" {
		return "", core.NewError("bedrock.Complete", core.KindTransient, "empty response", nil)
	}
	return text, nil
}

func strPtr(s string) *string { return &s }
