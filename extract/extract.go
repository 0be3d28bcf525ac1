// Package extract drives an LLMClient over a parsed article's
// sections, eliciting a structured list of entities, relations, and
// facts.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/wikigr/wikigr/llmclient"
	"github.com/wikigr/wikigr/schema"
)

// Extractor turns an article's sections into entities, relations, and
// facts via one LLM call, with one corrective retry on malformed
// output.
type Extractor struct {
	llm             llmclient.Client
	maxPromptChars  int
	maxOutputTokens int
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithMaxPromptChars bounds the character budget for assembled section
// text; sections are dropped tail-first until the budget is met.
func WithMaxPromptChars(n int) Option {
	return func(e *Extractor) { e.maxPromptChars = n }
}

// WithMaxOutputTokens bounds the model's response length.
func WithMaxOutputTokens(n int) Option {
	return func(e *Extractor) { e.maxOutputTokens = n }
}

// New returns an Extractor driving llm.
func New(llm llmclient.Client, opts ...Option) *Extractor {
	e := &Extractor{llm: llm, maxPromptChars: 12000, maxOutputTokens: 2000}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// rawExtraction is the strict JSON shape the model is asked to
// produce.
type rawExtraction struct {
	Entities []struct {
		Name        string `json:"name"`
		Type        string `json:"type"`
		Description string `json:"description"`
	} `json:"entities"`
	Relations []struct {
		SourceName string `json:"source_name"`
		TargetName string `json:"target_name"`
		Predicate  string `json:"predicate"`
	} `json:"relations"`
	Facts []string `json:"facts"`
}

// Result is the normalized output of an Extract call.
type Result struct {
	Entities  []schema.Entity
	Relations []schema.Relation
	Facts     []schema.Fact
}

// Extract elicits entities, relations, and facts from article's
// sections. On a malformed response it retries once with a stricter
// prompt; if that also fails it returns an empty Result and a nil
// error, since the article is still indexed as processed even with no
// extraction.
func (e *Extractor) Extract(ctx context.Context, article string, sections []schema.Section) (Result, error) {
	body := truncateSections(sections, e.maxPromptChars)

	prompt := buildPrompt(article, body, false)
	raw, err := e.llm.Complete(ctx, prompt, e.maxOutputTokens)
	if err == nil {
		if result, perr := parseExtraction(article, raw); perr == nil {
			return result, nil
		}
	}

	strictPrompt := buildPrompt(article, body, true)
	raw, err = e.llm.Complete(ctx, strictPrompt, e.maxOutputTokens)
	if err != nil {
		return Result{}, nil
	}
	result, perr := parseExtraction(article, raw)
	if perr != nil {
		return Result{}, nil
	}
	return result, nil
}

func truncateSections(sections []schema.Section, maxChars int) string {
	var kept []schema.Section
	total := 0
	for _, s := range sections {
		cost := len(s.Heading) + len(s.Text)
		if total+cost > maxChars && len(kept) > 0 {
			break
		}
		kept = append(kept, s)
		total += cost
	}

	var b strings.Builder
	for _, s := range kept {
		b.WriteString("== ")
		b.WriteString(s.Heading)
		b.WriteString(" ==\n")
		b.WriteString(s.Text)
		b.WriteString("\n\n")
	}
	return b.String()
}

func buildPrompt(article, body string, strict bool) string {
	var b strings.Builder
	b.WriteString("Extract entities, relations, and facts from the following article text. ")
	b.WriteString("Respond with ONLY a JSON object shaped exactly as ")
	b.WriteString(`{"entities":[{"name":"","type":"","description":""}],"relations":[{"source_name":"","target_name":"","predicate":""}],"facts":["..."]}`)
	b.WriteString(". No prose, no markdown fences.")
	if strict {
		b.WriteString(" Your previous response could not be parsed as JSON. Output valid JSON only, nothing else.")
	}
	b.WriteString("\n\nArticle: ")
	b.WriteString(article)
	b.WriteString("\n\n")
	b.WriteString(body)
	return b.String()
}

func parseExtraction(article, raw string) (Result, error) {
	raw = stripCodeFence(raw)

	var parsed rawExtraction
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return Result{}, wrapSchema("extract.Extract", fmt.Sprintf("malformed extraction for %q", article), err)
	}

	seen := map[string]bool{}
	var entities []schema.Entity
	for _, re := range parsed.Entities {
		name := strings.TrimSpace(re.Name)
		typ := strings.TrimSpace(re.Type)
		if name == "" || typ == "" {
			continue
		}
		ent := schema.Entity{Name: name, Type: typ, Description: strings.TrimSpace(re.Description)}
		key := ent.Key()
		if seen[key] {
			continue
		}
		seen[key] = true
		entities = append(entities, ent)
	}

	var relations []schema.Relation
	for _, rr := range parsed.Relations {
		source := strings.TrimSpace(rr.SourceName)
		target := strings.TrimSpace(rr.TargetName)
		predicate := strings.TrimSpace(rr.Predicate)
		if source == "" || target == "" || predicate == "" {
			continue
		}
		relations = append(relations, schema.Relation{
			SourceName: source,
			TargetName: target,
			Predicate:  predicate,
		})
	}

	var facts []schema.Fact
	for _, f := range parsed.Facts {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		facts = append(facts, schema.Fact{Article: article, Text: f})
	}

	return Result{Entities: entities, Relations: relations, Facts: facts}, nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
