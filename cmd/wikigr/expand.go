package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"encoding/json"

	"github.com/gorilla/mux"

	"github.com/wikigr/wikigr/config"
	"github.com/wikigr/wikigr/embedding"
	_ "github.com/wikigr/wikigr/embedding/providers/openai"
	"github.com/wikigr/wikigr/expansion"
	"github.com/wikigr/wikigr/extract"
	"github.com/wikigr/wikigr/fetch/providers/wikipedia"
	"github.com/wikigr/wikigr/llmclient"
	_ "github.com/wikigr/wikigr/llmclient/providers/anthropic"
	_ "github.com/wikigr/wikigr/llmclient/providers/openai"
	"github.com/wikigr/wikigr/o11y"
	"github.com/wikigr/wikigr/store"
	"github.com/wikigr/wikigr/store/sqlite"
)

func runExpand(args []string) error {
	fs := flag.NewFlagSet("expand", flag.ExitOnError)
	configPath := fs.String("config", ".", "directory to search for wikigr.yaml")
	watch := fs.Bool("watch", false, "expose orchestrator progress over /progress")
	watchAddr := fs.String("watch-addr", ":8089", "address for the --watch HTTP server")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := o11y.NewJSON(os.Stderr, "wikigr", o11y.Info)

	gs, err := sqlite.Open(context.Background(), cfg.PackDir+"/pack.db")
	if err != nil {
		return fmt.Errorf("open pack store: %w", err)
	}
	defer gs.Close()

	meta, err := store.LoadMetadata(cfg.PackDir)
	if err != nil {
		return fmt.Errorf("load pack metadata: %w", err)
	}
	if err := store.CheckEmbeddingCompat(meta, cfg.EmbeddingModel, cfg.EmbeddingDim); err != nil {
		return err
	}

	seeds, err := store.LoadSeeds(cfg.PackDir)
	if err != nil {
		return fmt.Errorf("load seeds: %w", err)
	}
	if len(seeds) == 0 {
		return fmt.Errorf("no seeds found in %s", cfg.PackDir)
	}

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

	source := wikipedia.New(wikipedia.WithMinWords(cfg.Expansion.MinContentWords))
	extractor := extract.New(llm)

	orch := expansion.New(gs, source, embedder, extractor, cfg.Expansion)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *watch {
		go serveProgress(orch, *watchAddr, logger)
	}

	start := time.Now()
	stats, err := orch.Run(ctx, seeds)
	if err != nil {
		return fmt.Errorf("run expansion: %w", err)
	}

	logger.Info("expansion complete", o11y.Fields{
		"duration":  time.Since(start).String(),
		"processed": stats.Processed,
		"failed":    stats.Failed,
	})

	meta.PackID = cfg.PackID
	meta.ArticleCount = stats.Articles
	meta.EntityCount = stats.Entities
	meta.RelationshipCount = stats.Relations
	meta.EmbeddingModel = cfg.EmbeddingModel
	meta.EmbeddingDim = cfg.EmbeddingDim
	meta.BuildTime = time.Now().UTC().Format(time.RFC3339)
	return store.WriteMetadata(cfg.PackDir, meta)
}

func serveProgress(orch *expansion.Orchestrator, addr string, logger *o11y.Logger) {
	r := mux.NewRouter()
	r.HandleFunc("/progress", func(w http.ResponseWriter, req *http.Request) {
		select {
		case snap := <-orch.Progress():
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(snap)
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	})
	logger.Info("serving progress endpoint", o11y.Fields{"addr": addr})
	if err := http.ListenAndServe(addr, r); err != nil {
		logger.Error("progress server exited", o11y.Fields{"error": err})
	}
}
