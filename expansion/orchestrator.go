// Package expansion implements the work-queue state machine that
// drives articles from discovered to processed with no user input:
// claim, fetch, parse, embed, extract, persist, discover links.
package expansion

import (
	"context"
	"sync"
	"time"

	"github.com/wikigr/wikigr/config"
	"github.com/wikigr/wikigr/core"
	"github.com/wikigr/wikigr/embedding"
	"github.com/wikigr/wikigr/extract"
	"github.com/wikigr/wikigr/fetch"
	"github.com/wikigr/wikigr/parse"
	"github.com/wikigr/wikigr/schema"
	"github.com/wikigr/wikigr/store"
)

// FilterPredicate rejects a discovered title at discovery time (not at
// claim time): special pages, disambiguation, language-prefixed, and
// file/image links never enter the queue.
type FilterPredicate func(title string) bool

// DefaultFilter rejects Wikipedia namespace titles and bare file/image
// links.
func DefaultFilter(title string) bool {
	if title == "" {
		return false
	}
	for _, prefix := range []string{
		"File:", "Image:", "Category:", "Template:", "Wikipedia:",
		"Help:", "Portal:", "Talk:", "Special:", "Draft:", "Module:",
	} {
		if len(title) >= len(prefix) && title[:len(prefix)] == prefix {
			return false
		}
	}
	return true
}

// Orchestrator drives the expansion state machine against one pack.
type Orchestrator struct {
	store     store.GraphStore
	source    fetch.SourceClient
	embedder  embedding.Provider
	extractor *extract.Extractor
	cfg       config.ExpansionConfig
	filter    FilterPredicate
	retryCfg  core.RetryConfig

	progress chan schema.ProgressSnapshot
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithFilter overrides the default discovery-time filter predicate.
func WithFilter(f FilterPredicate) Option {
	return func(o *Orchestrator) { o.filter = f }
}

// WithRetryConfig overrides the default retry/backoff policy applied
// at every external capability boundary.
func WithRetryConfig(rc core.RetryConfig) Option {
	return func(o *Orchestrator) { o.retryCfg = rc }
}

// New builds an Orchestrator from its dependencies.
func New(gs store.GraphStore, source fetch.SourceClient, embedder embedding.Provider, extractor *extract.Extractor, cfg config.ExpansionConfig, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:     gs,
		source:    source,
		embedder:  embedder,
		extractor: extractor,
		cfg:       cfg,
		filter:    DefaultFilter,
		retryCfg:  core.DefaultRetryConfig(),
		progress:  make(chan schema.ProgressSnapshot, 1),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.retryCfg.MaxRetries = cfg.MaxRetries
	return o
}

// Progress returns the channel on which ProgressSnapshots are emitted
// at no more than 1 Hz. A slow consumer drains only the latest value;
// sends never block the orchestrator.
func (o *Orchestrator) Progress() <-chan schema.ProgressSnapshot {
	return o.progress
}

func (o *Orchestrator) sendProgress(stats schema.Stats) {
	snap := schema.ProgressSnapshot{
		Discovered: stats.Discovered,
		Claimed:    stats.Claimed,
		Loaded:     stats.Loaded,
		Processed:  stats.Processed,
		Failed:     stats.Failed,
	}
	select {
	case o.progress <- snap:
	default:
		select {
		case <-o.progress:
		default:
		}
		select {
		case o.progress <- snap:
		default:
		}
	}
}

// Run seeds the queue at depth 0 and drives expansion until
// target_articles is reached or the queue drains, or ctx is
// cancelled. In-flight workers are allowed to finish their current
// article; no new claims are issued once stopping begins.
func (o *Orchestrator) Run(ctx context.Context, seeds []string) (schema.Stats, error) {
	seeded := 0
	for _, seed := range seeds {
		title := parse.NormalizeTitle(seed)
		if title == "" {
			continue
		}
		if err := o.store.UpsertArticle(ctx, schema.Article{Title: title, State: schema.StateDiscovered, Depth: 0}); err != nil {
			return schema.Stats{}, err
		}
		seeded++
	}
	if seeded == 0 {
		return schema.Stats{}, core.NewError("expansion.Run", core.KindConfiguration, "no seeds", nil)
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	var wg sync.WaitGroup
	sem := make(chan struct{}, o.cfg.WorkerCount)
	active := int32(0)
	var mu sync.Mutex

	for {
		stats, err := o.store.Stats(ctx)
		if err != nil {
			return schema.Stats{}, err
		}
		o.sendProgress(stats)

		if stats.Processed >= o.cfg.TargetArticles {
			break
		}
		if ctx.Err() != nil {
			break
		}

		if _, err := o.store.ReclaimStale(ctx, time.Now().Add(-o.cfg.HeartbeatTimeout).Unix()); err != nil {
			return schema.Stats{}, err
		}

		refs, err := o.store.ClaimBatch(ctx, o.cfg.ClaimBatchSize)
		if err != nil {
			return schema.Stats{}, err
		}

		mu.Lock()
		noWork := len(refs) == 0 && active == 0
		mu.Unlock()
		if noWork {
			break
		}

		for _, ref := range refs {
			ref := ref
			sem <- struct{}{}
			mu.Lock()
			active++
			mu.Unlock()
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer func() {
					<-sem
					mu.Lock()
					active--
					mu.Unlock()
				}()
				o.processArticle(ctx, ref)
			}()
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
		}
	}

	wg.Wait()
	return o.store.Stats(ctx)
}

func (o *Orchestrator) processArticle(ctx context.Context, ref schema.ArticleRef) {
	stopHeartbeat := o.startHeartbeat(ctx, ref.Title)
	defer stopHeartbeat()

	doc, rawWordCount, err := o.fetchAndParse(ctx, ref)
	if err != nil {
		o.fail(ctx, ref.Title, err)
		return
	}
	_ = rawWordCount

	if err := o.store.WriteArticleContents(ctx, ref.Title, doc.Sections, doc.OutboundLinks, doc.Categories); err != nil {
		o.fail(ctx, ref.Title, err)
		return
	}

	if err := o.embedAndExtract(ctx, ref.Title, doc.Sections); err != nil {
		o.fail(ctx, ref.Title, err)
		return
	}

	o.discoverLinks(ctx, ref, doc.OutboundLinks)
}

func (o *Orchestrator) fetchAndParse(ctx context.Context, ref schema.ArticleRef) (parse.Document, int, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, o.cfg.FetchTimeout)
	defer cancel()

	var rawText, canonicalURL string
	err := core.Retry(fetchCtx, o.retryCfg, "expansion.fetch", func() error {
		var ferr error
		rawText, canonicalURL, ferr = o.source.Fetch(fetchCtx, ref.Title, ref.URL)
		return ferr
	})
	if err != nil {
		return parse.Document{}, 0, err
	}

	doc := parse.Parse(ref.Title, rawText)
	total := 0
	for _, s := range doc.Sections {
		total += s.WordCount
	}
	if total < o.cfg.MinContentWords {
		return parse.Document{}, 0, wrapInvalidContent("expansion.fetchAndParse", "thin content")
	}
	if canonicalURL != "" {
		_ = o.store.UpsertArticle(ctx, schema.Article{Title: ref.Title, URL: canonicalURL, State: schema.StateDiscovered, Depth: ref.Depth})
	}
	return doc, total, nil
}

func (o *Orchestrator) embedAndExtract(ctx context.Context, title string, sections []schema.Section) error {
	if len(sections) > 0 {
		embedCtx, cancel := context.WithTimeout(ctx, o.cfg.EmbedTimeout)
		texts := make([]string, len(sections))
		for i, s := range sections {
			texts[i] = s.Heading + "\n" + s.Text
		}
		var vectors [][]float32
		err := core.Retry(embedCtx, o.retryCfg, "expansion.embed", func() error {
			var eerr error
			vectors, eerr = o.embedder.EmbedBatch(embedCtx, texts)
			return eerr
		})
		cancel()
		if err != nil {
			return err
		}

		sectionVectors := make(map[string][]float32, len(sections))
		for i, s := range sections {
			if i < len(vectors) {
				sectionVectors[s.ID] = vectors[i]
			}
		}
		if err := o.store.WriteEmbeddings(ctx, sectionVectors); err != nil {
			return err
		}
	}

	extractCtx, cancel := context.WithTimeout(ctx, o.cfg.ExtractTimeout)
	defer cancel()
	result, err := o.extractor.Extract(extractCtx, title, sections)
	if err != nil {
		return err
	}
	return o.store.WriteExtractions(ctx, title, result.Entities, result.Relations, result.Facts)
}

func (o *Orchestrator) discoverLinks(ctx context.Context, ref schema.ArticleRef, links []string) {
	budget := o.cfg.LinkBudgetPerArticle
	newDepth := ref.Depth + 1
	if newDepth > o.cfg.MaxDepth {
		return
	}
	count := 0
	for _, link := range links {
		if count >= budget {
			break
		}
		if !o.filter(link) {
			continue
		}
		title := parse.NormalizeTitle(link)
		if title == "" {
			continue
		}
		if err := o.store.UpsertArticle(ctx, schema.Article{Title: title, State: schema.StateDiscovered, Depth: newDepth}); err == nil {
			count++
		}
	}
}

// fail routes a pipeline error through mark_failed. Non-retryable
// kinds (invalid content, exhausted schema correction) fail the
// article immediately by forcing maxRetries to 0; transient errors go
// through the normal increment-then-threshold path so the article gets
// another attempt.
func (o *Orchestrator) fail(ctx context.Context, title string, err error) {
	maxRetries := o.cfg.MaxRetries
	if !core.IsRetryable(err) {
		maxRetries = 0
	}
	_ = o.store.MarkFailed(ctx, title, maxRetries)
}

func (o *Orchestrator) startHeartbeat(ctx context.Context, title string) func() {
	stop := make(chan struct{})
	interval := o.cfg.HeartbeatTimeout / 2
	if interval <= 0 {
		interval = time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				_ = o.store.TouchClaim(ctx, title)
			case <-stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
	return func() { close(stop) }
}
