// Package sqlite implements store.GraphStore on a single on-disk
// SQLite database file, using mattn/go-sqlite3 as the driver. A pack
// is one database file plus its metadata, seed-list and few-shot
// sidecar files under the same directory; the sidecar files are read
// and written by package store, not by this package.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/wikigr/wikigr/core"
	"github.com/wikigr/wikigr/schema"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS articles (
	title TEXT PRIMARY KEY,
	url TEXT NOT NULL DEFAULT '',
	category TEXT NOT NULL DEFAULT '',
	word_count INTEGER NOT NULL DEFAULT 0,
	state TEXT NOT NULL,
	depth INTEGER NOT NULL DEFAULT 0,
	claimed_at INTEGER,
	retry_count INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_articles_state ON articles(state);
CREATE INDEX IF NOT EXISTS idx_articles_state_depth ON articles(state, depth, title);

CREATE TABLE IF NOT EXISTS sections (
	id TEXT PRIMARY KEY,
	article TEXT NOT NULL REFERENCES articles(title) ON DELETE CASCADE,
	ordinal INTEGER NOT NULL,
	heading TEXT NOT NULL,
	level INTEGER NOT NULL,
	text TEXT NOT NULL,
	word_count INTEGER NOT NULL,
	embedding BLOB
);
CREATE INDEX IF NOT EXISTS idx_sections_article ON sections(article);

CREATE TABLE IF NOT EXISTS links (
	source TEXT NOT NULL,
	target TEXT NOT NULL,
	PRIMARY KEY (source, target)
);
CREATE INDEX IF NOT EXISTS idx_links_source ON links(source);
CREATE INDEX IF NOT EXISTS idx_links_target ON links(target);

CREATE TABLE IF NOT EXISTS categories (
	name TEXT PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS article_categories (
	article TEXT NOT NULL,
	category TEXT NOT NULL,
	PRIMARY KEY (article, category)
);

CREATE TABLE IF NOT EXISTS entities (
	name TEXT NOT NULL,
	type TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	article_count INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (name, type)
);

CREATE TABLE IF NOT EXISTS mentions (
	article TEXT NOT NULL,
	entity_name TEXT NOT NULL,
	entity_type TEXT NOT NULL,
	PRIMARY KEY (article, entity_name, entity_type)
);

CREATE TABLE IF NOT EXISTS relations (
	source_name TEXT NOT NULL,
	source_type TEXT NOT NULL,
	target_name TEXT NOT NULL,
	target_type TEXT NOT NULL,
	predicate TEXT NOT NULL,
	PRIMARY KEY (source_name, source_type, target_name, target_type, predicate)
);

CREATE TABLE IF NOT EXISTS facts (
	article TEXT NOT NULL,
	ordinal INTEGER NOT NULL,
	text TEXT NOT NULL,
	PRIMARY KEY (article, ordinal)
);
`

// DB is the subset of *sql.DB the store needs, narrow enough that a
// test can substitute an in-memory fake for error-path coverage.
type DB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// Store implements store.GraphStore against a DB.
type Store struct {
	db     DB
	closer func() error
}

// Option configures a Store.
type Option func(*Store)

// WithDB injects an already-open database handle, e.g. ":memory:" in
// tests.
func WithDB(db DB) Option {
	return func(s *Store) { s.db = db }
}

// Open opens (creating if necessary) the SQLite database file at
// path and ensures the schema exists.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	s := &Store{}
	for _, opt := range opts {
		opt(s)
	}
	if s.db == nil {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		sqlDB, err := sql.Open("sqlite3", path+sep+"_journal_mode=WAL&_foreign_keys=1")
		if err != nil {
			return nil, core.NewError("sqlite.Open", core.KindConfiguration, "open database", err)
		}
		// SQLite serializes writers regardless; a single connection avoids
		// "database is locked" errors and keeps in-memory DSNs coherent
		// across the pool.
		sqlDB.SetMaxOpenConns(1)
		s.db = sqlDB
		s.closer = sqlDB.Close
	}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaDDL); err != nil {
		return core.NewError("sqlite.ensureSchema", core.KindStoreIntegrity, "create schema", err)
	}
	return nil
}

// Close releases the underlying database handle, if this Store opened
// it itself.
func (s *Store) Close() error {
	if s.closer != nil {
		return s.closer()
	}
	return nil
}

// UpsertArticle inserts article, or updates it in place while
// refusing to regress its state rank.
//
// A discovered-state upsert is how link discovery records an
// already-known article being seen again from another path; it never
// owns the claim lifecycle. It only ever tightens depth towards
// min(existing, new) and fills in url/category if not already known.
// It never touches state, claimed_at, or retry_count: releasing a
// claim back to discovered is the exclusive job of ReclaimStale and
// MarkFailed, not of rediscovery.
func (s *Store) UpsertArticle(ctx context.Context, a schema.Article) error {
	var existing sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT state FROM articles WHERE title = ?`, a.Title).Scan(&existing)
	if err != nil && err != sql.ErrNoRows {
		return core.NewError("sqlite.UpsertArticle", core.KindStoreIntegrity, "", err)
	}

	if err == sql.ErrNoRows {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO articles (title, url, category, word_count, state, depth, retry_count)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, a.Title, a.URL, a.Category, a.WordCount, string(a.State), a.Depth, a.RetryCount)
		if err != nil {
			return core.NewError("sqlite.UpsertArticle", core.KindStoreIntegrity, "insert", err)
		}
		return nil
	}

	if a.State == schema.StateDiscovered {
		_, err = s.db.ExecContext(ctx, `
			UPDATE articles SET
				url = COALESCE(NULLIF(url, ''), ?),
				category = COALESCE(NULLIF(category, ''), ?),
				depth = MIN(depth, ?)
			WHERE title = ?
		`, a.URL, a.Category, a.Depth, a.Title)
		if err != nil {
			return core.NewError("sqlite.UpsertArticle", core.KindStoreIntegrity, "rediscover", err)
		}
		return nil
	}

	if !schema.CanTransition(schema.ArticleState(existing.String), a.State) {
		return nil
	}

	var claimedAt any
	if a.ClaimedAt != nil {
		claimedAt = a.ClaimedAt.Unix()
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE articles SET url = ?, category = ?, word_count = ?, state = ?, depth = MIN(depth, ?), claimed_at = ?, retry_count = ?
		WHERE title = ?
	`, a.URL, a.Category, a.WordCount, string(a.State), a.Depth, claimedAt, a.RetryCount, a.Title)
	if err != nil {
		return core.NewError("sqlite.UpsertArticle", core.KindStoreIntegrity, "update", err)
	}
	return nil
}

// ClaimBatch moves up to n discovered articles to claimed inside one
// transaction, so concurrent workers never claim the same article.
func (s *Store) ClaimBatch(ctx context.Context, n int) ([]schema.ArticleRef, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, core.NewError("sqlite.ClaimBatch", core.KindStoreIntegrity, "begin tx", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		SELECT title, url, depth FROM articles
		WHERE state = ? ORDER BY depth ASC, title ASC LIMIT ?
	`, string(schema.StateDiscovered), n)
	if err != nil {
		return nil, core.NewError("sqlite.ClaimBatch", core.KindStoreIntegrity, "select", err)
	}

	var refs []schema.ArticleRef
	for rows.Next() {
		var ref schema.ArticleRef
		if err := rows.Scan(&ref.Title, &ref.URL, &ref.Depth); err != nil {
			rows.Close()
			return nil, core.NewError("sqlite.ClaimBatch", core.KindStoreIntegrity, "scan", err)
		}
		refs = append(refs, ref)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, core.NewError("sqlite.ClaimBatch", core.KindStoreIntegrity, "", err)
	}

	now := time.Now().Unix()
	for _, ref := range refs {
		if _, err := tx.ExecContext(ctx, `
			UPDATE articles SET state = ?, claimed_at = ? WHERE title = ?
		`, string(schema.StateClaimed), now, ref.Title); err != nil {
			return nil, core.NewError("sqlite.ClaimBatch", core.KindStoreIntegrity, "claim", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, core.NewError("sqlite.ClaimBatch", core.KindStoreIntegrity, "commit", err)
	}
	return refs, nil
}

// ReclaimStale releases claims older than olderThan (unix seconds)
// back to discovered.
func (s *Store) ReclaimStale(ctx context.Context, olderThan int64) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE articles SET state = ?, claimed_at = NULL
		WHERE state = ? AND claimed_at IS NOT NULL AND claimed_at < ?
	`, string(schema.StateDiscovered), string(schema.StateClaimed), olderThan)
	if err != nil {
		return 0, core.NewError("sqlite.ReclaimStale", core.KindStoreIntegrity, "", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// TouchClaim refreshes article's claimed_at to now.
func (s *Store) TouchClaim(ctx context.Context, article string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE articles SET claimed_at = ? WHERE title = ? AND state = ?
	`, time.Now().Unix(), article, string(schema.StateClaimed))
	if err != nil {
		return core.NewError("sqlite.TouchClaim", core.KindStoreIntegrity, "", err)
	}
	return nil
}

// WriteArticleContents writes sections, links, and categories for
// article in one transaction and advances it to loaded.
func (s *Store) WriteArticleContents(ctx context.Context, article string, sections []schema.Section, links, categories []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return core.NewError("sqlite.WriteArticleContents", core.KindStoreIntegrity, "begin tx", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM sections WHERE article = ?`, article); err != nil {
		return core.NewError("sqlite.WriteArticleContents", core.KindStoreIntegrity, "clear sections", err)
	}
	for _, sec := range sections {
		var embedding any
		if len(sec.Embedding) > 0 {
			embedding = encodeVector(sec.Embedding)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO sections (id, article, ordinal, heading, level, text, word_count, embedding)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, sec.ID, article, sec.Ordinal, sec.Heading, sec.Level, sec.Text, sec.WordCount, embedding); err != nil {
			return core.NewError("sqlite.WriteArticleContents", core.KindStoreIntegrity, "insert section", err)
		}
	}

	for _, target := range links {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO links (source, target) VALUES (?, ?)
		`, article, target); err != nil {
			return core.NewError("sqlite.WriteArticleContents", core.KindStoreIntegrity, "insert link", err)
		}
	}

	for _, cat := range categories {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO categories (name) VALUES (?)`, cat); err != nil {
			return core.NewError("sqlite.WriteArticleContents", core.KindStoreIntegrity, "insert category", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO article_categories (article, category) VALUES (?, ?)
		`, article, cat); err != nil {
			return core.NewError("sqlite.WriteArticleContents", core.KindStoreIntegrity, "link category", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `UPDATE articles SET state = ? WHERE title = ? AND state != ?`,
		string(schema.StateLoaded), article, string(schema.StateFailed)); err != nil {
		return core.NewError("sqlite.WriteArticleContents", core.KindStoreIntegrity, "advance state", err)
	}

	if err := tx.Commit(); err != nil {
		return core.NewError("sqlite.WriteArticleContents", core.KindStoreIntegrity, "commit", err)
	}
	return nil
}

// WriteEmbeddings attaches vectors to already-written sections.
func (s *Store) WriteEmbeddings(ctx context.Context, sectionVectors map[string][]float32) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return core.NewError("sqlite.WriteEmbeddings", core.KindStoreIntegrity, "begin tx", err)
	}
	defer tx.Rollback()

	for id, vec := range sectionVectors {
		if _, err := tx.ExecContext(ctx, `UPDATE sections SET embedding = ? WHERE id = ?`, encodeVector(vec), id); err != nil {
			return core.NewError("sqlite.WriteEmbeddings", core.KindStoreIntegrity, "update embedding", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return core.NewError("sqlite.WriteEmbeddings", core.KindStoreIntegrity, "commit", err)
	}
	return nil
}

// WriteExtractions persists entities, relations, and facts for
// article and advances it to processed.
func (s *Store) WriteExtractions(ctx context.Context, article string, entities []schema.Entity, relations []schema.Relation, facts []schema.Fact) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return core.NewError("sqlite.WriteExtractions", core.KindStoreIntegrity, "begin tx", err)
	}
	defer tx.Rollback()

	for _, e := range entities {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO entities (name, type, description, article_count) VALUES (?, ?, ?, 1)
			ON CONFLICT(name, type) DO UPDATE SET
				description = CASE WHEN excluded.description != '' THEN excluded.description ELSE entities.description END,
				article_count = entities.article_count + 1
		`, e.Name, e.Type, e.Description); err != nil {
			return core.NewError("sqlite.WriteExtractions", core.KindStoreIntegrity, "upsert entity", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO mentions (article, entity_name, entity_type) VALUES (?, ?, ?)
		`, article, e.Name, e.Type); err != nil {
			return core.NewError("sqlite.WriteExtractions", core.KindStoreIntegrity, "insert mention", err)
		}
	}

	for _, r := range relations {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO relations (source_name, source_type, target_name, target_type, predicate)
			VALUES (?, ?, ?, ?, ?)
		`, r.SourceName, r.SourceType, r.TargetName, r.TargetType, r.Predicate); err != nil {
			return core.NewError("sqlite.WriteExtractions", core.KindStoreIntegrity, "insert relation", err)
		}
	}

	for i, f := range facts {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO facts (article, ordinal, text) VALUES (?, ?, ?)
		`, article, i, f.Text); err != nil {
			return core.NewError("sqlite.WriteExtractions", core.KindStoreIntegrity, "insert fact", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `UPDATE articles SET state = ? WHERE title = ? AND state != ?`,
		string(schema.StateProcessed), article, string(schema.StateFailed)); err != nil {
		return core.NewError("sqlite.WriteExtractions", core.KindStoreIntegrity, "advance state", err)
	}

	if err := tx.Commit(); err != nil {
		return core.NewError("sqlite.WriteExtractions", core.KindStoreIntegrity, "commit", err)
	}
	return nil
}

// MarkFailed increments article's retry_count and transitions it to
// failed once maxRetries is reached, or back to discovered otherwise.
func (s *Store) MarkFailed(ctx context.Context, article string, maxRetries int) error {
	var retryCount int
	err := s.db.QueryRowContext(ctx, `SELECT retry_count FROM articles WHERE title = ?`, article).Scan(&retryCount)
	if err != nil {
		return core.NewError("sqlite.MarkFailed", core.KindStoreIntegrity, "", err)
	}
	retryCount++

	nextState := string(schema.StateDiscovered)
	if retryCount >= maxRetries {
		nextState = string(schema.StateFailed)
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE articles SET state = ?, retry_count = ?, claimed_at = NULL WHERE title = ?
	`, nextState, retryCount, article)
	if err != nil {
		return core.NewError("sqlite.MarkFailed", core.KindStoreIntegrity, "", err)
	}
	return nil
}

// VectorSearch brute-force scans every embedded section, scoring by
// cosine similarity. A pack's section count (low thousands at the
// documented target_articles scale) keeps this within budget without
// a dedicated ANN index or optional C extension.
func (s *Store) VectorSearch(ctx context.Context, queryVector []float32, topK int) ([]schema.SearchHit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, article, ordinal, heading, level, text, word_count, embedding
		FROM sections WHERE embedding IS NOT NULL
	`)
	if err != nil {
		return nil, core.NewError("sqlite.VectorSearch", core.KindStoreIntegrity, "", err)
	}
	defer rows.Close()

	var hits []schema.SearchHit
	for rows.Next() {
		var sec schema.Section
		var blob []byte
		if err := rows.Scan(&sec.ID, &sec.Article, &sec.Ordinal, &sec.Heading, &sec.Level, &sec.Text, &sec.WordCount, &blob); err != nil {
			return nil, core.NewError("sqlite.VectorSearch", core.KindStoreIntegrity, "scan", err)
		}
		vec := decodeVector(blob)
		sim := cosineSimilarity(queryVector, vec)
		hits = append(hits, schema.SearchHit{
			SectionID:    sec.ID,
			ArticleTitle: sec.Article,
			Section:      sec,
			CosineSim:    sim,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, core.NewError("sqlite.VectorSearch", core.KindStoreIntegrity, "", err)
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].CosineSim != hits[j].CosineSim {
			return hits[i].CosineSim > hits[j].CosineSim
		}
		return hits[i].ArticleTitle < hits[j].ArticleTitle
	})
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// Neighbors returns the titles one LINKS_TO hop away from article in
// either direction.
func (s *Store) Neighbors(ctx context.Context, article string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT target FROM links WHERE source = ?
		UNION
		SELECT source FROM links WHERE target = ?
	`, article, article)
	if err != nil {
		return nil, core.NewError("sqlite.Neighbors", core.KindStoreIntegrity, "", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var title string
		if err := rows.Scan(&title); err != nil {
			return nil, core.NewError("sqlite.Neighbors", core.KindStoreIntegrity, "scan", err)
		}
		out = append(out, title)
	}
	return out, rows.Err()
}

// Sections returns article's sections in ordinal order, decoding any
// stored embedding.
func (s *Store) Sections(ctx context.Context, article string) ([]schema.Section, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, article, ordinal, heading, level, text, word_count, embedding
		FROM sections WHERE article = ? ORDER BY ordinal ASC
	`, article)
	if err != nil {
		return nil, core.NewError("sqlite.Sections", core.KindStoreIntegrity, "", err)
	}
	defer rows.Close()

	var out []schema.Section
	for rows.Next() {
		var sec schema.Section
		var blob []byte
		if err := rows.Scan(&sec.ID, &sec.Article, &sec.Ordinal, &sec.Heading, &sec.Level, &sec.Text, &sec.WordCount, &blob); err != nil {
			return nil, core.NewError("sqlite.Sections", core.KindStoreIntegrity, "scan", err)
		}
		sec.Embedding = decodeVector(blob)
		out = append(out, sec)
	}
	return out, rows.Err()
}

// Degree returns article's total LINKS_TO edge count.
func (s *Store) Degree(ctx context.Context, article string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM links WHERE source = ?) +
			(SELECT COUNT(*) FROM links WHERE target = ?)
	`, article, article).Scan(&n)
	if err != nil {
		return 0, core.NewError("sqlite.Degree", core.KindStoreIntegrity, "", err)
	}
	return n, nil
}

// Stats returns pack-wide counts.
func (s *Store) Stats(ctx context.Context) (schema.Stats, error) {
	var stats schema.Stats
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM articles`).Scan(&stats.Articles)
	if err != nil {
		return stats, core.NewError("sqlite.Stats", core.KindStoreIntegrity, "", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sections`).Scan(&stats.Sections); err != nil {
		return stats, core.NewError("sqlite.Stats", core.KindStoreIntegrity, "", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entities`).Scan(&stats.Entities); err != nil {
		return stats, core.NewError("sqlite.Stats", core.KindStoreIntegrity, "", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM relations`).Scan(&stats.Relations); err != nil {
		return stats, core.NewError("sqlite.Stats", core.KindStoreIntegrity, "", err)
	}

	counts := map[schema.ArticleState]*int{
		schema.StateDiscovered: &stats.Discovered,
		schema.StateClaimed:    &stats.Claimed,
		schema.StateLoaded:     &stats.Loaded,
		schema.StateProcessed:  &stats.Processed,
		schema.StateFailed:     &stats.Failed,
	}
	for state, dest := range counts {
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM articles WHERE state = ?`, string(state)).Scan(dest); err != nil {
			return stats, core.NewError("sqlite.Stats", core.KindStoreIntegrity, fmt.Sprintf("count %s", state), err)
		}
	}
	return stats, nil
}
