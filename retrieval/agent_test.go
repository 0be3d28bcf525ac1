package retrieval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wikigr/wikigr/config"
	"github.com/wikigr/wikigr/internal/wikigrtest"
	"github.com/wikigr/wikigr/schema"
	"github.com/wikigr/wikigr/store/sqlite"
)

func seedPack(t *testing.T, gs *sqlite.Store, embedder *wikigrtest.FakeEmbedder) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, gs.UpsertArticle(ctx, schema.Article{Title: "Newton's laws of motion", State: schema.StateClaimed}))
	sections := []schema.Section{
		{ID: "n-0", Article: "Newton's laws of motion", Ordinal: 0, Heading: "Introduction",
			Text: "Newton's laws of motion describe the relationship between force and motion of an object.", WordCount: 40},
	}
	require.NoError(t, gs.WriteArticleContents(ctx, "Newton's laws of motion", sections, []string{"Isaac Newton"}, nil))

	vecs, err := embedder.EmbedBatch(ctx, []string{sections[0].Text})
	require.NoError(t, err)
	require.NoError(t, gs.WriteEmbeddings(ctx, map[string][]float32{"n-0": vecs[0]}))

	require.NoError(t, gs.UpsertArticle(ctx, schema.Article{Title: "Isaac Newton", State: schema.StateClaimed}))
	isaacSections := []schema.Section{
		{ID: "i-0", Article: "Isaac Newton", Ordinal: 0, Heading: "Introduction",
			Text: "Isaac Newton was an English mathematician and physicist who formulated the laws of motion.", WordCount: 40},
	}
	require.NoError(t, gs.WriteArticleContents(ctx, "Isaac Newton", isaacSections, nil, nil))
	ivecs, err := embedder.EmbedBatch(ctx, []string{isaacSections[0].Text})
	require.NoError(t, err)
	require.NoError(t, gs.WriteEmbeddings(ctx, map[string][]float32{"i-0": ivecs[0]}))
}

func baseConfig() config.RetrievalConfig {
	return config.RetrievalConfig{
		UseEnhancements:            true,
		EnableReranker:             true,
		EnableMultidoc:             false,
		EnableFewshot:              false,
		EnableCrossEncoder:         false,
		EnableMultiQuery:           false,
		VectorWeight:               0.6,
		GraphWeight:                0.4,
		NumDocs:                    5,
		MaxSectionsPerArticle:      3,
		ContextConfidenceThreshold: 0.0,
		ContentQualityThreshold:    0.0,
		StubWordCutoff:             5,
		CandidateMultiplier:        2,
	}
}

func TestQueryReturnsVectorSearchAnswer(t *testing.T) {
	gs, err := sqlite.Open(context.Background(), "file:TestQueryReturnsVectorSearchAnswer?mode=memory&cache=shared")
	require.NoError(t, err)
	defer gs.Close()

	embedder := &wikigrtest.FakeEmbedder{Dim: 8}
	seedPack(t, gs, embedder)

	llm := &wikigrtest.FakeLLM{Responses: []string{"Newton formulated three laws of motion [Newton's laws of motion]."}}
	agent := New(gs, llm, embedder, nil, baseConfig())

	answer, err := agent.Query(context.Background(), "What are Newton's laws of motion?", 5)
	require.NoError(t, err)
	assert.Equal(t, schema.QueryTypeVectorSearch, answer.QueryType)
	assert.NotEmpty(t, answer.Sources)
}

func TestQueryConfidenceGateFiresOnLowSimilarity(t *testing.T) {
	gs, err := sqlite.Open(context.Background(), "file:TestQueryConfidenceGateFiresOnLowSimilarity?mode=memory&cache=shared")
	require.NoError(t, err)
	defer gs.Close()

	embedder := &wikigrtest.FakeEmbedder{Dim: 8}
	seedPack(t, gs, embedder)

	cfg := baseConfig()
	cfg.ContextConfidenceThreshold = 2.0 // unreachable, forces the gate
	llm := &wikigrtest.FakeLLM{Responses: []string{"Paris is the capital of France."}}
	agent := New(gs, llm, embedder, nil, cfg)

	answer, err := agent.Query(context.Background(), "What is the capital of France?", 5)
	require.NoError(t, err)
	assert.Equal(t, schema.QueryTypeConfidenceGated, answer.QueryType)
	assert.Empty(t, answer.Sources)
	assert.NotEmpty(t, answer.Answer)
}

func TestQueryVectorFallbackOnEmptyPack(t *testing.T) {
	gs, err := sqlite.Open(context.Background(), "file:TestQueryVectorFallbackOnEmptyPack?mode=memory&cache=shared")
	require.NoError(t, err)
	defer gs.Close()

	embedder := &wikigrtest.FakeEmbedder{Dim: 8}
	llm := &wikigrtest.FakeLLM{Responses: []string{"I don't know."}}
	agent := New(gs, llm, embedder, nil, baseConfig())

	answer, err := agent.Query(context.Background(), "Anything?", 5)
	require.NoError(t, err)
	assert.Equal(t, schema.QueryTypeVectorFallback, answer.QueryType)
	assert.Empty(t, answer.Sources)
}

func TestContentQualityFilterDropsStubSections(t *testing.T) {
	cfg := baseConfig()
	a := New(nil, nil, nil, nil, cfg)

	candidates := []*candidate{
		{hit: schema.SearchHit{ArticleTitle: "A", Section: schema.Section{WordCount: 2, Text: "short"}}},
		{hit: schema.SearchHit{ArticleTitle: "B", Section: schema.Section{WordCount: 200, Text: "a long and detailed passage about the topic at hand"}}},
	}
	cfg.StubWordCutoff = 10
	cfg.ContentQualityThreshold = 0.1
	a.cfg = cfg

	filtered := a.filterByQuality(candidates, "topic")
	require.Len(t, filtered, 1)
	assert.Equal(t, "B", filtered[0].hit.ArticleTitle)
}

func TestCapPerArticleLimitsSectionsPerTitle(t *testing.T) {
	candidates := []*candidate{
		{hit: schema.SearchHit{ArticleTitle: "A"}},
		{hit: schema.SearchHit{ArticleTitle: "A"}},
		{hit: schema.SearchHit{ArticleTitle: "A"}},
	}
	out := capPerArticle(candidates, 2)
	assert.Len(t, out, 2)
}
