// Package parse splits raw fetched article text into ordered sections,
// outbound links, and categories, and owns the single canonical title
// normalization used everywhere a LINKS_TO edge or dedupe key is built.
package parse

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/wikigr/wikigr/schema"
)

var (
	headingRe  = regexp.MustCompile(`^(={1,2})\s*(.+?)\s*\1\s*$`)
	linkRe     = regexp.MustCompile(`\[\[([^\]|#]+)(?:\|[^\]]*)?\]\]`)
	categoryRe = regexp.MustCompile(`(?i)^\s*\[\[Category:([^\]|]+)`)
)

// Document is the structured result of parsing one article's raw text.
type Document struct {
	Sections      []schema.Section
	OutboundLinks []string
	Categories    []string
}

// Parse splits rawText into heading-bounded sections (level 1 "=
// Heading =" or level 2 "== Heading =="), collects [[wikilink]]
// targets as outbound links, and collects [[Category:...]] markers.
// A leading run of text with no heading becomes an implicit section
// titled "Introduction" at level 1.
func Parse(article, rawText string) Document {
	lines := strings.Split(rawText, "\n")

	var doc Document
	seenLinks := map[string]bool{}
	seenCats := map[string]bool{}

	current := schema.Section{Article: article, Heading: "Introduction", Level: 1, Ordinal: 0}
	var body strings.Builder
	ordinal := 0

	flush := func() {
		text := strings.TrimSpace(body.String())
		if text != "" || current.Heading != "Introduction" {
			current.ID = fmt.Sprintf("%s#%d", article, current.Ordinal)
			current.Text = text
			current.WordCount = len(strings.Fields(text))
			doc.Sections = append(doc.Sections, current)
		}
		body.Reset()
	}

	for _, line := range lines {
		if m := categoryRe.FindStringSubmatch(line); m != nil {
			cat := NormalizeTitle(m[1])
			if !seenCats[cat] {
				seenCats[cat] = true
				doc.Categories = append(doc.Categories, cat)
			}
			continue
		}

		if m := headingRe.FindStringSubmatch(line); m != nil {
			flush()
			ordinal++
			level := len(m[1])
			current = schema.Section{
				Article: article,
				Heading: strings.TrimSpace(m[2]),
				Level:   level,
				Ordinal: ordinal,
			}
			continue
		}

		for _, lm := range linkRe.FindAllStringSubmatch(line, -1) {
			target := NormalizeTitle(lm[1])
			if target != "" && !seenLinks[target] {
				seenLinks[target] = true
				doc.OutboundLinks = append(doc.OutboundLinks, target)
			}
		}

		body.WriteString(line)
		body.WriteString("\n")
	}
	flush()

	return doc
}

// NormalizeTitle is the single canonical title-normalization function:
// trim whitespace and collapse internal whitespace/underscores to a
// single space, preserving the casing the source gave. All LINKS_TO
// edges, dedupe keys, and queue entries go through this.
func NormalizeTitle(title string) string {
	title = strings.TrimSpace(title)
	title = strings.ReplaceAll(title, "_", " ")
	fields := strings.Fields(title)
	return strings.Join(fields, " ")
}
