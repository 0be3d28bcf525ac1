package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wikigr/wikigr/schema"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	s, err := Open(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestUpsertArticleInsertsThenUpdates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.UpsertArticle(ctx, schema.Article{Title: "Go", State: schema.StateDiscovered})
	require.NoError(t, err)

	err = s.UpsertArticle(ctx, schema.Article{Title: "Go", State: schema.StateClaimed, URL: "https://x"})
	require.NoError(t, err)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Articles)
	assert.Equal(t, 1, stats.Claimed)
}

func TestUpsertArticleRejectsRegression(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertArticle(ctx, schema.Article{Title: "Go", State: schema.StateProcessed}))
	require.NoError(t, s.UpsertArticle(ctx, schema.Article{Title: "Go", State: schema.StateDiscovered}))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Processed)
	assert.Equal(t, 0, stats.Discovered)
}

func TestUpsertArticleRediscoveryDoesNotDisturbClaim(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertArticle(ctx, schema.Article{Title: "Go", State: schema.StateDiscovered, Depth: 2}))
	_, err := s.ClaimBatch(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, s.MarkFailed(ctx, "Go", 5))

	var stateBefore string
	var retryBefore int
	require.NoError(t, s.db.QueryRowContext(ctx, `SELECT state, retry_count FROM articles WHERE title = ?`, "Go").
		Scan(&stateBefore, &retryBefore))
	require.Equal(t, string(schema.StateDiscovered), stateBefore)
	require.Equal(t, 1, retryBefore)

	_, err = s.ClaimBatch(ctx, 1)
	require.NoError(t, err)

	require.NoError(t, s.UpsertArticle(ctx, schema.Article{Title: "Go", State: schema.StateDiscovered, Depth: 1}))

	var state, claimedAt sql.NullString
	var retryCount, depth int
	require.NoError(t, s.db.QueryRowContext(ctx, `SELECT state, claimed_at, retry_count, depth FROM articles WHERE title = ?`, "Go").
		Scan(&state, &claimedAt, &retryCount, &depth))

	assert.Equal(t, string(schema.StateClaimed), state.String)
	assert.True(t, claimedAt.Valid, "claimed_at must survive rediscovery")
	assert.Equal(t, 1, retryCount, "retry_count must survive rediscovery")
	assert.Equal(t, 1, depth, "depth must tighten towards the lower value seen")
}

func TestUpsertArticleRediscoveryTakesMinDepth(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertArticle(ctx, schema.Article{Title: "B", State: schema.StateDiscovered, Depth: 2}))
	require.NoError(t, s.UpsertArticle(ctx, schema.Article{Title: "B", State: schema.StateDiscovered, Depth: 1}))
	require.NoError(t, s.UpsertArticle(ctx, schema.Article{Title: "B", State: schema.StateDiscovered, Depth: 5}))

	var depth int
	require.NoError(t, s.db.QueryRowContext(ctx, `SELECT depth FROM articles WHERE title = ?`, "B").Scan(&depth))
	assert.Equal(t, 1, depth)
}

func TestUpsertArticleRediscoveryBackfillsURLAndCategoryOnly(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertArticle(ctx, schema.Article{Title: "Go", URL: "https://first", Category: "Languages", State: schema.StateDiscovered}))
	require.NoError(t, s.UpsertArticle(ctx, schema.Article{Title: "Go", URL: "https://second", State: schema.StateDiscovered}))

	var url, category string
	require.NoError(t, s.db.QueryRowContext(ctx, `SELECT url, category FROM articles WHERE title = ?`, "Go").Scan(&url, &category))
	assert.Equal(t, "https://first", url, "rediscovery must not replace an already known url")
	assert.Equal(t, "Languages", category)
}

func TestClaimBatchMovesStateAndRespectsLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, title := range []string{"A", "B", "C"} {
		require.NoError(t, s.UpsertArticle(ctx, schema.Article{Title: title, State: schema.StateDiscovered}))
	}

	refs, err := s.ClaimBatch(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, refs, 2)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Claimed)
	assert.Equal(t, 1, stats.Discovered)
}

func TestReclaimStaleRestoresClaims(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertArticle(ctx, schema.Article{Title: "A", State: schema.StateDiscovered}))
	_, err := s.ClaimBatch(ctx, 1)
	require.NoError(t, err)

	n, err := s.ReclaimStale(ctx, time.Now().Add(time.Hour).Unix())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Discovered)
	assert.Equal(t, 0, stats.Claimed)
}

func TestTouchClaimRefreshesClaimedAt(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertArticle(ctx, schema.Article{Title: "A", State: schema.StateDiscovered}))
	_, err := s.ClaimBatch(ctx, 1)
	require.NoError(t, err)

	require.NoError(t, s.TouchClaim(ctx, "A"))

	n, err := s.ReclaimStale(ctx, time.Now().Add(-time.Hour).Unix())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestWriteArticleContentsAndNeighbors(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertArticle(ctx, schema.Article{Title: "Go", State: schema.StateClaimed}))

	sections := []schema.Section{
		{ID: "go-0", Article: "Go", Ordinal: 0, Heading: "Introduction", Level: 1, Text: "intro", WordCount: 1},
	}
	err := s.WriteArticleContents(ctx, "Go", sections, []string{"Google", "Rob Pike"}, []string{"Programming languages"})
	require.NoError(t, err)

	neighbors, err := s.Neighbors(ctx, "Go")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Google", "Rob Pike"}, neighbors)

	degree, err := s.Degree(ctx, "Go")
	require.NoError(t, err)
	assert.Equal(t, 2, degree)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Loaded)
}

func TestSectionsReturnsOrdinalOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertArticle(ctx, schema.Article{Title: "Go", State: schema.StateClaimed}))
	sections := []schema.Section{
		{ID: "go-1", Article: "Go", Ordinal: 1, Heading: "History", Text: "h"},
		{ID: "go-0", Article: "Go", Ordinal: 0, Heading: "Introduction", Text: "i"},
	}
	require.NoError(t, s.WriteArticleContents(ctx, "Go", sections, nil, nil))

	got, err := s.Sections(ctx, "Go")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Introduction", got[0].Heading)
	assert.Equal(t, "History", got[1].Heading)
}

func TestWriteEmbeddingsAndVectorSearch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertArticle(ctx, schema.Article{Title: "Go", State: schema.StateClaimed}))
	sections := []schema.Section{
		{ID: "go-0", Article: "Go", Ordinal: 0, Heading: "Introduction", Level: 1, Text: "intro"},
		{ID: "go-1", Article: "Go", Ordinal: 1, Heading: "History", Level: 1, Text: "history"},
	}
	require.NoError(t, s.WriteArticleContents(ctx, "Go", sections, nil, nil))

	require.NoError(t, s.WriteEmbeddings(ctx, map[string][]float32{
		"go-0": {1, 0, 0},
		"go-1": {0, 1, 0},
	}))

	hits, err := s.VectorSearch(ctx, []float32{1, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "go-0", hits[0].SectionID)
	assert.InDelta(t, 1.0, hits[0].CosineSim, 0.0001)
}

func TestWriteExtractionsAccumulatesEntityCounts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertArticle(ctx, schema.Article{Title: "Go", State: schema.StateLoaded}))
	require.NoError(t, s.UpsertArticle(ctx, schema.Article{Title: "Rust", State: schema.StateLoaded}))

	entity := schema.Entity{Name: "Google", Type: "Organization"}
	require.NoError(t, s.WriteExtractions(ctx, "Go", []schema.Entity{entity}, nil, []schema.Fact{{Text: "Go was released in 2009"}}))
	require.NoError(t, s.WriteExtractions(ctx, "Rust", []schema.Entity{entity}, nil, nil))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Entities)
	assert.Equal(t, 2, stats.Processed)
}

func TestMarkFailedReturnsToDiscoveredBeforeExhaustingRetries(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertArticle(ctx, schema.Article{Title: "Go", State: schema.StateClaimed}))
	require.NoError(t, s.MarkFailed(ctx, "Go", 3))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Discovered)
	assert.Equal(t, 0, stats.Failed)
}

func TestMarkFailedTransitionsToFailedAfterMaxRetries(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertArticle(ctx, schema.Article{Title: "Go", State: schema.StateClaimed}))
	require.NoError(t, s.MarkFailed(ctx, "Go", 1))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Failed)
}
