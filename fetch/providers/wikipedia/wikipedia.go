// Package wikipedia implements fetch.SourceClient against the
// Wikipedia action API's plain-text extract endpoint, rate-limited
// with fetch.TokenBucket.
package wikipedia

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/wikigr/wikigr/core"
	"github.com/wikigr/wikigr/fetch"
)

const (
	apiBase   = "https://en.wikipedia.org/w/api.php"
	userAgent = "wikigr/1.0 (+https://github.com/wikigr/wikigr)"
)

// Client fetches plain-text article extracts from Wikipedia.
type Client struct {
	httpClient *http.Client
	limiter    *fetch.TokenBucket
	minWords   int
	apiBase    string
}

// Option configures a Client.
type Option func(*Client)

// WithRateLimit sets requests-per-minute and burst for the client's
// token bucket.
func WithRateLimit(rpm, burst int) Option {
	return func(c *Client) { c.limiter = fetch.NewTokenBucket(rpm, burst) }
}

// WithMinWords sets the word-count floor below which Fetch reports a
// thin-content error instead of returning the article.
func WithMinWords(min int) Option {
	return func(c *Client) { c.minWords = min }
}

// WithHTTPClient overrides the underlying http.Client, e.g. in tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithAPIBase overrides the action API endpoint, e.g. to point at a
// local httptest.Server in tests.
func WithAPIBase(base string) Option {
	return func(c *Client) { c.apiBase = base }
}

// New creates a Client with a 30-second request timeout and a 30
// requests/minute default rate limit, matching Wikipedia's documented
// courtesy limits for anonymous REST/action API clients.
func New(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    fetch.NewTokenBucket(30, 5),
		minWords:   0,
		apiBase:    apiBase,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type extractResponse struct {
	Query struct {
		Pages map[string]struct {
			Title   string `json:"title"`
			Extract string `json:"extract"`
			Missing string `json:"missing"`
		} `json:"pages"`
	} `json:"query"`
}

// Fetch retrieves title's plain-text extract, with section headings
// preserved as Wikipedia's "== Heading ==" markup, ready for
// package parse to split into sections.
func (c *Client) Fetch(ctx context.Context, title, _ string) (string, string, error) {
	c.limiter.Wait()

	q := url.Values{}
	q.Set("action", "query")
	q.Set("prop", "extracts")
	q.Set("explaintext", "1")
	q.Set("format", "json")
	q.Set("titles", title)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiBase+"?"+q.Encode(), nil)
	if err != nil {
		return "", "", core.NewError("wikipedia.Fetch", core.KindConfiguration, "build request", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", "", core.NewError("wikipedia.Fetch", core.KindTransient, "", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return "", "", core.NewError("wikipedia.Fetch", core.KindTransient,
			fmt.Sprintf("http %s", resp.Status), nil)
	}
	if resp.StatusCode >= 300 {
		return "", "", core.NewError("wikipedia.Fetch", core.KindInvalidContent,
			fmt.Sprintf("http %s", resp.Status), nil)
	}

	var parsed extractResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", "", core.NewError("wikipedia.Fetch", core.KindTransient, "decode response", err)
	}

	for _, page := range parsed.Query.Pages {
		if page.Missing != "" || strings.TrimSpace(page.Extract) == "" {
			return "", "", core.NewError("wikipedia.Fetch", core.KindInvalidContent,
				fmt.Sprintf("%q not found", title), nil)
		}

		wordCount := len(strings.Fields(page.Extract))
		if c.minWords > 0 && wordCount < c.minWords {
			return "", "", fetch.NewThinContentError("wikipedia.Fetch", title, wordCount, c.minWords)
		}

		canonicalURL := "https://en.wikipedia.org/wiki/" + escapeTitle(page.Title)
		return page.Extract, canonicalURL, nil
	}

	return "", "", core.NewError("wikipedia.Fetch", core.KindInvalidContent,
		fmt.Sprintf("%q not found", title), nil)
}

func escapeTitle(t string) string {
	t = strings.TrimSpace(t)
	t = strings.ReplaceAll(t, " ", "_")
	return url.PathEscape(t)
}
