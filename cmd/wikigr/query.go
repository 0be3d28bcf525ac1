package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/wikigr/wikigr/config"
	"github.com/wikigr/wikigr/embedding"
	_ "github.com/wikigr/wikigr/embedding/providers/openai"
	"github.com/wikigr/wikigr/llmclient"
	_ "github.com/wikigr/wikigr/llmclient/providers/anthropic"
	_ "github.com/wikigr/wikigr/llmclient/providers/openai"
	"github.com/wikigr/wikigr/retrieval"
	"github.com/wikigr/wikigr/store"
	"github.com/wikigr/wikigr/store/sqlite"
)

func runQuery(args []string) error {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	configPath := fs.String("config", ".", "directory to search for wikigr.yaml")
	maxResults := fs.Int("max-results", 5, "maximum number of sections cited in the answer")
	if err := fs.Parse(args); err != nil {
		return err
	}

	question := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if question == "" {
		return fmt.Errorf("a question is required: wikigr query --config DIR \"question text\"")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx := context.Background()

	gs, err := sqlite.Open(ctx, cfg.PackDir+"/pack.db")
	if err != nil {
		return fmt.Errorf("open pack store: %w", err)
	}
	defer gs.Close()

	embedder, err := embedding.New("openai", map[string]string{
		"api_key": cfg.Providers.OpenAIAPIKey,
		"model":   cfg.EmbeddingModel,
	})
	if err != nil {
		return fmt.Errorf("init embedding provider: %w", err)
	}

	llmProvider := "anthropic"
	llmOpts := map[string]string{"api_key": cfg.Providers.AnthropicAPIKey}
	if cfg.Providers.AnthropicAPIKey == "" {
		llmProvider = "openai"
		llmOpts = map[string]string{"api_key": cfg.Providers.OpenAIAPIKey}
	}
	llm, err := llmclient.New(llmProvider, llmOpts)
	if err != nil {
		return fmt.Errorf("init LLM provider: %w", err)
	}

	agent := retrieval.New(gs, llm, embedder, store.NewFewShotFile(cfg.PackDir), cfg.Retrieval)

	answer, err := agent.Query(ctx, question, *maxResults)
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}

	fmt.Fprintln(os.Stdout, answer.Answer)
	if len(answer.Sources) > 0 {
		fmt.Fprintln(os.Stdout, "\nSources:")
		for _, src := range answer.Sources {
			fmt.Fprintf(os.Stdout, "  - %s\n", src)
		}
	}
	fmt.Fprintf(os.Stdout, "\n(query type: %s)\n", answer.QueryType)
	return nil
}
