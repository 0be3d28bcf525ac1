// Package fetch defines the capability interface that retrieves raw
// article content from a web documentation source, plus a token-bucket
// rate limiter shared by provider implementations.
package fetch

import "context"

// SourceClient retrieves one document's raw text and a canonical URL
// for it. Implementations own their own rate limiting and retries are
// applied by the caller via core.Retry.
type SourceClient interface {
	// Fetch returns rawText (plain text, section headings preserved as
	// "= Heading =" / "== Subheading ==" markers) and the canonical URL
	// for title. url is a hint the client may use to skip a lookup
	// step; it may be empty.
	Fetch(ctx context.Context, title, url string) (rawText string, canonicalURL string, err error)
}
