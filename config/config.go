package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// ExpansionConfig enumerates the orchestrator's tunable knobs.
type ExpansionConfig struct {
	TargetArticles       int           `mapstructure:"target_articles" validate:"required,gt=0"`
	MaxDepth             int           `mapstructure:"max_depth" validate:"gte=0"`
	WorkerCount          int           `mapstructure:"worker_count" validate:"required,gt=0"`
	ClaimBatchSize       int           `mapstructure:"claim_batch_size" validate:"required,gt=0"`
	HeartbeatTimeout     time.Duration `mapstructure:"heartbeat_timeout" validate:"required,gt=0"`
	MaxRetries           int           `mapstructure:"max_retries" validate:"gte=0"`
	LinkBudgetPerArticle int           `mapstructure:"link_budget_per_article" validate:"required,gt=0"`
	MinContentWords      int           `mapstructure:"min_content_words" validate:"gte=0"`
	FetchTimeout         time.Duration `mapstructure:"fetch_timeout" validate:"required,gt=0"`
	EmbedTimeout         time.Duration `mapstructure:"embed_timeout" validate:"required,gt=0"`
	ExtractTimeout       time.Duration `mapstructure:"extract_timeout" validate:"required,gt=0"`
}

// RetrievalConfig enumerates the retrieval agent's tunable defaults.
type RetrievalConfig struct {
	UseEnhancements             bool          `mapstructure:"use_enhancements"`
	EnableReranker              bool          `mapstructure:"enable_reranker"`
	EnableMultidoc              bool          `mapstructure:"enable_multidoc"`
	EnableFewshot               bool          `mapstructure:"enable_fewshot"`
	EnableCrossEncoder          bool          `mapstructure:"enable_cross_encoder"`
	EnableMultiQuery            bool          `mapstructure:"enable_multi_query"`
	VectorWeight                float64       `mapstructure:"vector_weight" validate:"gte=0,lte=1"`
	GraphWeight                 float64       `mapstructure:"graph_weight" validate:"gte=0,lte=1"`
	NumDocs                     int           `mapstructure:"num_docs" validate:"required,gt=0"`
	MaxSectionsPerArticle       int           `mapstructure:"max_sections_per_article" validate:"required,gt=0"`
	ContextConfidenceThreshold  float64       `mapstructure:"context_confidence_threshold" validate:"gte=0,lte=1"`
	ContentQualityThreshold     float64       `mapstructure:"content_quality_threshold" validate:"gte=0,lte=1"`
	StubWordCutoff              int           `mapstructure:"stub_word_cutoff" validate:"gte=0"`
	CandidateMultiplier         int           `mapstructure:"candidate_multiplier" validate:"required,gt=0"`
	SynthesisTimeout            time.Duration `mapstructure:"synthesis_timeout" validate:"required,gt=0"`
}

// ProviderCredentials keeps external-service credentials explicit and
// out of global discovery.
type ProviderCredentials struct {
	OpenAIAPIKey    string `mapstructure:"openai_api_key"`
	AnthropicAPIKey string `mapstructure:"anthropic_api_key"`
	AWSRegion       string `mapstructure:"aws_region"`
}

// Config is WikiGR's complete, validated configuration.
type Config struct {
	PackDir        string              `mapstructure:"pack_dir" validate:"required"`
	PackID         string              `mapstructure:"pack_id" validate:"required"`
	EmbeddingModel string              `mapstructure:"embedding_model" validate:"required"`
	EmbeddingDim   int                 `mapstructure:"embedding_dim" validate:"required,gt=0"`
	Expansion      ExpansionConfig     `mapstructure:"expansion"`
	Retrieval      RetrievalConfig     `mapstructure:"retrieval"`
	Providers      ProviderCredentials `mapstructure:"providers"`
}

// Defaults returns a Config populated with the documented tuning
// defaults, leaving credentials and pack identity empty for the caller
// to fill in.
func Defaults() Config {
	return Config{
		EmbeddingModel: "text-embedding-3-small",
		EmbeddingDim:   1536,
		Expansion: ExpansionConfig{
			TargetArticles:       200,
			MaxDepth:             3,
			WorkerCount:          4,
			ClaimBatchSize:       10,
			HeartbeatTimeout:     90 * time.Second,
			MaxRetries:           3,
			LinkBudgetPerArticle: 20,
			MinContentWords:      200,
			FetchTimeout:         30 * time.Second,
			EmbedTimeout:         60 * time.Second,
			ExtractTimeout:       120 * time.Second,
		},
		Retrieval: RetrievalConfig{
			UseEnhancements:             true,
			EnableReranker:              true,
			EnableMultidoc:              true,
			EnableFewshot:               true,
			EnableCrossEncoder:          false,
			EnableMultiQuery:            false,
			VectorWeight:                0.6,
			GraphWeight:                 0.4,
			NumDocs:                     5,
			MaxSectionsPerArticle:       3,
			ContextConfidenceThreshold:  0.5,
			ContentQualityThreshold:     0.3,
			StubWordCutoff:              20,
			CandidateMultiplier:         2,
			SynthesisTimeout:            60 * time.Second,
		},
	}
}

var validate = validator.New()

// Load reads configuration from a YAML file named "wikigr" found under
// any of paths (or the current directory if paths is empty), overlays
// environment variables prefixed WIKIGR_, and validates the result.
// Any validation failure fails orchestrator start-up immediately,
// before a pack is ever touched.
func Load(paths ...string) (*Config, error) {
	if len(paths) == 0 {
		paths = []string{"."}
	}

	v := viper.New()
	v.SetConfigName("wikigr")
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.SetEnvPrefix("WIKIGR")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	bindEnvKeys(v)

	defaults := Defaults()
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, wrapConfig("config.Load", "read config file", err)
		}
	}

	cfg := defaults
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, wrapConfig("config.Load", "unmarshal config", err)
	}

	if err := validate.Struct(&cfg); err != nil {
		return nil, wrapConfig("config.Load", "validate config", err)
	}
	if err := validateWeights(cfg.Retrieval); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// bindEnvKeys binds every mapstructure key explicitly. Viper's
// AutomaticEnv only resolves environment variables for keys it already
// knows about (from a config file or a prior Set/BindEnv call), so a
// bare env-only deployment would otherwise unmarshal to zero values.
func bindEnvKeys(v *viper.Viper) {
	keys := []string{
		"pack_dir", "pack_id", "embedding_model", "embedding_dim",
		"expansion.target_articles", "expansion.max_depth", "expansion.worker_count",
		"expansion.claim_batch_size", "expansion.heartbeat_timeout", "expansion.max_retries",
		"expansion.link_budget_per_article", "expansion.min_content_words",
		"expansion.fetch_timeout", "expansion.embed_timeout", "expansion.extract_timeout",
		"retrieval.use_enhancements", "retrieval.enable_reranker", "retrieval.enable_multidoc",
		"retrieval.enable_fewshot", "retrieval.enable_cross_encoder", "retrieval.enable_multi_query",
		"retrieval.vector_weight", "retrieval.graph_weight", "retrieval.num_docs",
		"retrieval.max_sections_per_article", "retrieval.context_confidence_threshold",
		"retrieval.content_quality_threshold", "retrieval.stub_word_cutoff",
		"retrieval.candidate_multiplier", "retrieval.synthesis_timeout",
		"providers.openai_api_key", "providers.anthropic_api_key", "providers.aws_region",
	}
	for _, k := range keys {
		_ = v.BindEnv(k)
	}
}

// validateWeights enforces that the rerank combination weights sum to 1.
func validateWeights(r RetrievalConfig) error {
	sum := r.VectorWeight + r.GraphWeight
	if sum < 0.999 || sum > 1.001 {
		return wrapConfig("config.Load", fmt.Sprintf("vector_weight + graph_weight must sum to 1, got %.3f", sum), nil)
	}
	return nil
}
