package expansion

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wikigr/wikigr/config"
	"github.com/wikigr/wikigr/extract"
	"github.com/wikigr/wikigr/internal/wikigrtest"
	"github.com/wikigr/wikigr/store/sqlite"
)

func testConfig() config.ExpansionConfig {
	return config.ExpansionConfig{
		TargetArticles:       3,
		MaxDepth:             2,
		WorkerCount:          2,
		ClaimBatchSize:       5,
		HeartbeatTimeout:     2 * time.Second,
		MaxRetries:           2,
		LinkBudgetPerArticle: 5,
		MinContentWords:      1,
		FetchTimeout:         time.Second,
		EmbedTimeout:         time.Second,
		ExtractTimeout:       time.Second,
	}
}

func TestRunExpandsFromSeedUntilQueueDrains(t *testing.T) {
	gs, err := sqlite.Open(context.Background(), "file:TestRunExpandsFromSeedUntilQueueDrains?mode=memory&cache=shared")
	require.NoError(t, err)
	defer gs.Close()

	source := &wikigrtest.FakeSource{Content: map[string]string{
		"Go":   "Intro about Go.\n== See also ==\n[[Rust]] and [[Python]].\n",
		"Rust": "Intro about Rust.\n== See also ==\n[[Python]].\n",
	}}
	embedder := &wikigrtest.FakeEmbedder{Dim: 4}
	llm := &wikigrtest.FakeLLM{Responses: []string{`{"entities":[],"relations":[],"facts":[]}`}}

	orch := New(gs, source, embedder, extract.New(llm), testConfig())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stats, err := orch.Run(ctx, []string{"Go"})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, stats.Processed+stats.Failed, 1)
}

func TestDefaultFilterRejectsNamespaces(t *testing.T) {
	assert.False(t, DefaultFilter("File:Example.png"))
	assert.False(t, DefaultFilter("Category:Programming"))
	assert.True(t, DefaultFilter("Go (programming language)"))
	assert.False(t, DefaultFilter(""))
}

func TestProgressIsNonBlocking(t *testing.T) {
	gs, err := sqlite.Open(context.Background(), "file:TestProgressIsNonBlocking?mode=memory&cache=shared")
	require.NoError(t, err)
	defer gs.Close()

	orch := New(gs, &wikigrtest.FakeSource{}, &wikigrtest.FakeEmbedder{Dim: 2}, extract.New(&wikigrtest.FakeLLM{}), testConfig())

	for i := 0; i < 5; i++ {
		stats, err := gs.Stats(context.Background())
		require.NoError(t, err)
		orch.sendProgress(stats)
	}

	select {
	case <-orch.Progress():
	default:
		t.Fatal("expected a buffered progress snapshot")
	}
}
