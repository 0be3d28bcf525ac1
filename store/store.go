// Package store defines the durability boundary for a knowledge-graph
// pack: the GraphStore capability interface (implemented on SQLite
// under store/sqlite), plus the readers and writers for the pack's
// metadata, seed-list and few-shot sidecar files.
package store

import (
	"context"

	"github.com/wikigr/wikigr/schema"
)

// GraphStore is the sole durability boundary for a pack. Every write
// it exposes is transactional per article; callers never see a
// partially written article.
type GraphStore interface {
	// UpsertArticle inserts or updates an article record. A state
	// transition that would regress rank is rejected, not silently
	// applied. An upsert carrying state "discovered" is treated as
	// rediscovery, not a transition: it only tightens depth towards
	// min(existing, new) and backfills url/category, never disturbing
	// an existing claim, claimed_at, or retry_count.
	UpsertArticle(ctx context.Context, a schema.Article) error

	// ClaimBatch atomically moves up to n discovered articles to
	// claimed and returns their refs, ordered by discovery depth then
	// title. Returns fewer than n if fewer are available.
	ClaimBatch(ctx context.Context, n int) ([]schema.ArticleRef, error)

	// ReclaimStale moves claimed articles whose claim is older than
	// olderThan back to discovered, returning how many were reclaimed.
	ReclaimStale(ctx context.Context, olderThan int64) (int, error)

	// TouchClaim refreshes article's claimed_at so a long-running
	// worker's claim is not eligible for reclamation. A no-op if
	// article is not currently claimed.
	TouchClaim(ctx context.Context, article string) error

	// WriteArticleContents writes an article's sections (with
	// embeddings, if already computed), outbound links, and categories
	// in one transaction, and advances the article to loaded.
	WriteArticleContents(ctx context.Context, article string, sections []schema.Section, links, categories []string) error

	// WriteEmbeddings attaches vectors to already-written sections by
	// ID.
	WriteEmbeddings(ctx context.Context, sectionVectors map[string][]float32) error

	// WriteExtractions persists entities, relations, and facts
	// attributed to article, and advances it to processed.
	WriteExtractions(ctx context.Context, article string, entities []schema.Entity, relations []schema.Relation, facts []schema.Fact) error

	// MarkFailed increments article's retry_count. If the new count is
	// ≥ maxRetries, the article transitions to failed; otherwise it
	// reverts to discovered for another attempt.
	MarkFailed(ctx context.Context, article string, maxRetries int) error

	// VectorSearch returns the topK sections by cosine similarity to
	// queryVector.
	VectorSearch(ctx context.Context, queryVector []float32, topK int) ([]schema.SearchHit, error)

	// Neighbors returns the titles one LINKS_TO hop away from article,
	// in either direction.
	Neighbors(ctx context.Context, article string) ([]string, error)

	// Sections returns every Section belonging to article, ordinal
	// order, used by multi-doc expansion to pull in a neighbor
	// article's content without a fresh vector search.
	Sections(ctx context.Context, article string) ([]schema.Section, error)

	// Degree returns article's total LINKS_TO edge count (in + out),
	// used by the reranker as an authority signal.
	Degree(ctx context.Context, article string) (int, error)

	// Stats returns pack-wide counts for the orchestrator's stop
	// condition and monitoring.
	Stats(ctx context.Context) (schema.Stats, error)

	// Close releases the store's underlying resources.
	Close() error
}
