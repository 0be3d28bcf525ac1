// Package retrieval implements the multi-stage pipeline that answers
// a free-form question against a built pack: vector search, optional
// graph reranking and multi-document expansion, a confidence gate,
// few-shot prompting, and synthesis via an external LLM.
package retrieval

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/wikigr/wikigr/config"
	"github.com/wikigr/wikigr/core"
	"github.com/wikigr/wikigr/embedding"
	"github.com/wikigr/wikigr/llmclient"
	"github.com/wikigr/wikigr/schema"
	"github.com/wikigr/wikigr/store"
)

// FewShotSource loads the pack's optional few-shot examples. A missing
// source (nil) disables the feature.
type FewShotSource interface {
	LoadExamples() ([]schema.FewShotExample, error)
}

var stopWords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "by": true, "for": true, "from": true, "has": true, "he": true,
	"in": true, "is": true, "it": true, "its": true, "of": true, "on": true,
	"that": true, "the": true, "to": true, "was": true, "were": true, "will": true,
	"with": true, "what": true, "how": true, "why": true, "when": true, "who": true,
}

// Agent answers questions against one built pack.
type Agent struct {
	store    store.GraphStore
	llm      llmclient.Client
	embedder embedding.Provider
	fewshot  FewShotSource
	cfg      config.RetrievalConfig

	fewshotLoaded    bool
	fewshotExamples  []schema.FewShotExample
	fewshotEmbedding map[int][]float32
}

// New builds an Agent. fewshot may be nil to disable few-shot
// assembly regardless of cfg.EnableFewshot.
func New(gs store.GraphStore, llm llmclient.Client, embedder embedding.Provider, fewshot FewShotSource, cfg config.RetrievalConfig) *Agent {
	return &Agent{store: gs, llm: llm, embedder: embedder, fewshot: fewshot, cfg: cfg}
}

type candidate struct {
	hit          schema.SearchHit
	normDegree   float32
	rerankScore  float32
	qualityScore float32
	sourceAnchor string
}

// Query answers question against the pack, returning the synthesized
// answer plus the source titles actually used and a tag describing how
// the answer was produced.
// Query answers question using vector search plus whichever
// enhancements use_enhancements and the individual enable_* flags
// leave active. use_enhancements is a master switch: false disables
// every enhancement below regardless of its own flag, but the basic
// vector-search pipeline still runs.
func (a *Agent) Query(ctx context.Context, question string, maxResults int) (schema.Answer, error) {
	queryVectors, err := a.embedQueries(ctx, question)
	if err != nil {
		return schema.Answer{}, err
	}

	candidates, err := a.collectCandidates(ctx, queryVectors)
	if err != nil {
		return schema.Answer{}, err
	}

	if len(candidates) == 0 {
		return a.synthesizeWithoutPack(ctx, question, schema.QueryTypeVectorFallback)
	}

	maxSim := float32(0)
	for _, c := range candidates {
		if c.hit.CosineSim > maxSim {
			maxSim = c.hit.CosineSim
		}
	}
	if maxSim < float32(a.cfg.ContextConfidenceThreshold) {
		return a.synthesizeWithoutPack(ctx, question, schema.QueryTypeConfidenceGated)
	}

	if a.enabled(a.cfg.EnableReranker) {
		a.rerank(ctx, candidates)
	}
	sortCandidates(candidates)

	if a.enabled(a.cfg.EnableMultidoc) && len(candidates) > 0 {
		candidates, err = a.expandMultiDoc(ctx, candidates)
		if err != nil {
			return schema.Answer{}, err
		}
	}

	filtered := a.filterByQuality(candidates, question)
	if len(filtered) == 0 {
		filtered = candidates
	}

	filtered = capPerArticle(filtered, a.cfg.MaxSectionsPerArticle)
	if maxResults > 0 && len(filtered) > maxResults {
		filtered = filtered[:maxResults]
	}

	examples := a.loadFewShot(ctx, question)

	answerText, usage, err := a.synthesize(ctx, question, examples, filtered)
	if err != nil {
		return schema.Answer{}, err
	}

	return schema.Answer{
		Answer:     answerText,
		Sources:    sourceTitles(filtered),
		QueryType:  schema.QueryTypeVectorSearch,
		TokenUsage: usage,
	}, nil
}

// enabled applies the use_enhancements master switch to an individual
// enable_* flag.
func (a *Agent) enabled(flag bool) bool {
	return a.cfg.UseEnhancements && flag
}

func (a *Agent) embedQueries(ctx context.Context, question string) ([][]float32, error) {
	vecs, err := a.embedder.EmbedBatch(ctx, []string{question})
	if err != nil {
		return nil, wrapTransient("retrieval.embedQueries", err)
	}
	queryVectors := vecs

	if a.enabled(a.cfg.EnableMultiQuery) {
		paraphrases := a.paraphrase(ctx, question)
		if len(paraphrases) > 0 {
			more, err := a.embedder.EmbedBatch(ctx, paraphrases)
			if err == nil {
				queryVectors = append(queryVectors, more...)
			}
		}
	}
	return queryVectors, nil
}

func (a *Agent) paraphrase(ctx context.Context, question string) []string {
	truncated := question
	if len(truncated) > 500 {
		truncated = truncated[:500]
	}
	prompt := "Generate exactly 2 alternative phrasings of this question, one per line, no numbering:\n" + truncated
	resp, err := a.llm.Complete(ctx, prompt, 200)
	if err != nil || resp == "" {
		return nil
	}
	var out []string
	for _, line := range strings.Split(resp, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

func (a *Agent) collectCandidates(ctx context.Context, queryVectors [][]float32) ([]*candidate, error) {
	k := a.cfg.NumDocs * a.cfg.CandidateMultiplier
	if k <= 0 {
		k = a.cfg.NumDocs
	}

	bySection := map[string]*candidate{}
	for _, qv := range queryVectors {
		hits, err := a.store.VectorSearch(ctx, qv, k)
		if err != nil {
			return nil, err
		}
		for _, hit := range hits {
			existing, ok := bySection[hit.SectionID]
			if !ok || hit.CosineSim > existing.hit.CosineSim {
				bySection[hit.SectionID] = &candidate{hit: hit, sourceAnchor: hit.ArticleTitle}
			}
		}
	}

	out := make([]*candidate, 0, len(bySection))
	for _, c := range bySection {
		out = append(out, c)
	}
	return out, nil
}

func (a *Agent) rerank(ctx context.Context, candidates []*candidate) {
	degrees := map[string]int{}
	for _, c := range candidates {
		if _, ok := degrees[c.hit.ArticleTitle]; ok {
			continue
		}
		d, err := a.store.Degree(ctx, c.hit.ArticleTitle)
		if err == nil {
			degrees[c.hit.ArticleTitle] = d
		}
	}

	minD, maxD := math.MaxInt32, 0
	for _, d := range degrees {
		if d < minD {
			minD = d
		}
		if d > maxD {
			maxD = d
		}
	}

	for _, c := range candidates {
		d := degrees[c.hit.ArticleTitle]
		norm := float32(0)
		if maxD > minD {
			norm = float32(d-minD) / float32(maxD-minD)
		}
		c.normDegree = norm
		c.hit.NormDegree = norm
		c.rerankScore = float32(a.cfg.VectorWeight)*c.hit.CosineSim + float32(a.cfg.GraphWeight)*norm
	}

	if a.enabled(a.cfg.EnableCrossEncoder) {
		a.crossEncoderRescore(ctx, candidates)
	}
}

// crossEncoderRescore re-scores the candidate pool with a joint
// query-document relevance prompt, standing in for a dedicated
// cross-encoder model. It is best-effort: a malformed or failed
// response leaves the vector/graph rerank score untouched.
func (a *Agent) crossEncoderRescore(ctx context.Context, candidates []*candidate) {
	for _, c := range candidates {
		prompt := "Rate the relevance of this passage to the query on a scale from 0 to 1. Respond with only the number.\n\nPassage: " +
			c.hit.Section.Text
		resp, err := a.llm.Complete(ctx, prompt, 10)
		if err != nil {
			continue
		}
		score, ok := parseScore(resp)
		if ok {
			c.rerankScore = score
		}
	}
}

func parseScore(s string) (float32, bool) {
	s = strings.TrimSpace(s)
	var f float64
	n, err := fmt.Sscan(s, &f)
	if err != nil || n != 1 {
		return 0, false
	}
	return float32(f), true
}

func sortCandidates(candidates []*candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		si, sj := candidates[i].hit.CosineSim, candidates[j].hit.CosineSim
		if candidates[i].rerankScore != 0 || candidates[j].rerankScore != 0 {
			si, sj = candidates[i].rerankScore, candidates[j].rerankScore
		}
		if si != sj {
			return si > sj
		}
		return candidates[i].hit.ArticleTitle < candidates[j].hit.ArticleTitle
	})
}

// expandMultiDoc traverses up to 2 hops of LINKS_TO from the top
// article, adding up to 2 neighbors, capping the total source set at
// 7 articles. Neighbors inherit the top article's similarity for
// ordering purposes.
func (a *Agent) expandMultiDoc(ctx context.Context, candidates []*candidate) ([]*candidate, error) {
	seen := map[string]bool{}
	for _, c := range candidates {
		seen[c.hit.ArticleTitle] = true
	}

	top := candidates[0]
	frontier := []string{top.hit.ArticleTitle}
	added := 0
	const maxNeighbors = 2
	const maxHops = 2
	const maxTotalArticles = 7

	for hop := 0; hop < maxHops && added < maxNeighbors; hop++ {
		var next []string
		for _, title := range frontier {
			if added >= maxNeighbors || len(seen) >= maxTotalArticles {
				break
			}
			neighbors, err := a.store.Neighbors(ctx, title)
			if err != nil {
				return nil, err
			}
			for _, n := range neighbors {
				if seen[n] || added >= maxNeighbors || len(seen) >= maxTotalArticles {
					continue
				}
				seen[n] = true
				added++
				next = append(next, n)

				sections, err := a.store.Sections(ctx, n)
				if err != nil || len(sections) == 0 {
					continue
				}
				for _, sec := range sections {
					candidates = append(candidates, &candidate{
						hit: schema.SearchHit{
							SectionID:    sec.ID,
							ArticleTitle: n,
							Section:      sec,
							CosineSim:    top.hit.CosineSim,
						},
						sourceAnchor: top.hit.ArticleTitle,
					})
				}
			}
		}
		frontier = next
	}

	return candidates, nil
}

// filterByQuality scores and drops low-signal sections. length_score
// rewards longer content up to a cap; keyword_score rewards lexical
// overlap with the question, stop words excluded.
func (a *Agent) filterByQuality(candidates []*candidate, question string) []*candidate {
	keywords := questionKeywords(question)

	var out []*candidate
	for _, c := range candidates {
		if c.hit.Section.WordCount < a.cfg.StubWordCutoff {
			c.qualityScore = 0
			continue
		}
		lengthScore := math.Min(0.8, 0.2+(float64(c.hit.Section.WordCount)/200)*0.6)
		overlap := overlapRatio(keywords, c.hit.Section.Text)
		keywordScore := math.Min(0.2, overlap*0.2)
		score := math.Min(1, lengthScore+keywordScore)
		c.qualityScore = float32(score)
		if score >= a.cfg.ContentQualityThreshold {
			out = append(out, c)
		}
	}
	return out
}

func questionKeywords(question string) map[string]bool {
	words := strings.Fields(strings.ToLower(question))
	set := map[string]bool{}
	for _, w := range words {
		w = strings.Trim(w, ".,?!;:\"'")
		if w == "" || stopWords[w] {
			continue
		}
		set[w] = true
	}
	return set
}

func overlapRatio(keywords map[string]bool, text string) float64 {
	if len(keywords) == 0 {
		return 0
	}
	textWords := map[string]bool{}
	for _, w := range strings.Fields(strings.ToLower(text)) {
		textWords[strings.Trim(w, ".,?!;:\"'")] = true
	}
	matched := 0
	for k := range keywords {
		if textWords[k] {
			matched++
		}
	}
	return float64(matched) / float64(len(keywords))
}

func capPerArticle(candidates []*candidate, maxPerArticle int) []*candidate {
	counts := map[string]int{}
	var out []*candidate
	for _, c := range candidates {
		if counts[c.hit.ArticleTitle] >= maxPerArticle {
			continue
		}
		counts[c.hit.ArticleTitle]++
		out = append(out, c)
	}
	return out
}

func sourceTitles(candidates []*candidate) []string {
	seen := map[string]bool{}
	var out []string
	for _, c := range candidates {
		if !seen[c.hit.ArticleTitle] {
			seen[c.hit.ArticleTitle] = true
			out = append(out, c.hit.ArticleTitle)
		}
	}
	sort.Strings(out)
	return out
}

func (a *Agent) loadFewShot(ctx context.Context, question string) []schema.FewShotExample {
	if !a.enabled(a.cfg.EnableFewshot) || a.fewshot == nil {
		return nil
	}
	if !a.fewshotLoaded {
		examples, err := a.fewshot.LoadExamples()
		if err == nil {
			a.fewshotExamples = examples
		}
		a.fewshotLoaded = true
		a.fewshotEmbedding = map[int][]float32{}
	}
	if len(a.fewshotExamples) == 0 {
		return nil
	}

	qVecs, err := a.embedder.EmbedBatch(ctx, []string{question})
	if err != nil || len(qVecs) == 0 {
		return nil
	}
	qVec := qVecs[0]

	type scored struct {
		idx int
		sim float32
	}
	var scores []scored
	for i, ex := range a.fewshotExamples {
		vec, ok := a.fewshotEmbedding[i]
		if !ok {
			vecs, err := a.embedder.EmbedBatch(ctx, []string{ex.Question})
			if err != nil || len(vecs) == 0 {
				continue
			}
			vec = vecs[0]
			a.fewshotEmbedding[i] = vec
		}
		scores = append(scores, scored{idx: i, sim: cosineSim(qVec, vec)})
	}
	sort.Slice(scores, func(i, j int) bool { return scores[i].sim > scores[j].sim })

	n := 3
	if n > len(scores) {
		n = len(scores)
	}
	out := make([]schema.FewShotExample, n)
	for i := 0; i < n; i++ {
		out[i] = a.fewshotExamples[scores[i].idx]
	}
	return out
}

func cosineSim(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

func (a *Agent) synthesize(ctx context.Context, question string, examples []schema.FewShotExample, candidates []*candidate) (string, schema.TokenUsage, error) {
	var b strings.Builder
	for _, ex := range examples {
		b.WriteString("Q: ")
		b.WriteString(ex.Question)
		b.WriteString("\nA: ")
		b.WriteString(ex.Answer)
		b.WriteString("\n\n")
	}
	for _, c := range candidates {
		b.WriteString("[")
		b.WriteString(c.hit.ArticleTitle)
		b.WriteString("] ")
		b.WriteString(c.hit.Section.Text)
		b.WriteString("\n\n")
	}
	b.WriteString("Question: ")
	b.WriteString(question)
	b.WriteString("\n\nAnswer the question using only the context above, and cite sources by title.")

	text, err := a.llm.Complete(ctx, b.String(), 1000)
	if err != nil {
		return "", schema.TokenUsage{}, wrapTransient("retrieval.synthesize", err)
	}
	return text, schema.TokenUsage{}, nil
}

func (a *Agent) synthesizeWithoutPack(ctx context.Context, question string, queryType schema.QueryType) (schema.Answer, error) {
	text, err := a.llm.Complete(ctx, question, 1000)
	if err != nil {
		return schema.Answer{
			Answer:    fmt.Sprintf("Unable to answer: %s", core.KindOf(err)),
			Sources:   nil,
			QueryType: queryType,
		}, nil
	}
	return schema.Answer{
		Answer:    text,
		Sources:   nil,
		QueryType: queryType,
	}, nil
}
