package wikipedia

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/wikigr/wikigr/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, body string, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchSuccess(t *testing.T) {
	srv := newTestServer(t, `{"query":{"pages":{"1":{"title":"Go (programming language)","extract":"Go is a statically typed language. == History ==\nGo was designed at Google."}}}}`, 200)

	c := New(WithAPIBase(srv.URL), WithMinWords(0))
	text, canonicalURL, err := c.Fetch(context.Background(), "Go (programming language)", "")
	require.NoError(t, err)
	assert.Contains(t, text, "History")
	assert.Contains(t, canonicalURL, "Go_")
}

func TestFetchThinContent(t *testing.T) {
	srv := newTestServer(t, `{"query":{"pages":{"1":{"title":"Stub","extract":"Short."}}}}`, 200)

	c := New(WithAPIBase(srv.URL), WithMinWords(50))
	_, _, err := c.Fetch(context.Background(), "Stub", "")
	require.Error(t, err)
	assert.Equal(t, core.KindInvalidContent, core.KindOf(err))
}

func TestFetchMissingPage(t *testing.T) {
	srv := newTestServer(t, `{"query":{"pages":{"-1":{"title":"Nope","missing":""}}}}`, 200)

	c := New(WithAPIBase(srv.URL))
	_, _, err := c.Fetch(context.Background(), "Nope", "")
	require.Error(t, err)
	assert.Equal(t, core.KindInvalidContent, core.KindOf(err))
}

func TestFetchServerError(t *testing.T) {
	srv := newTestServer(t, `oops`, 503)

	c := New(WithAPIBase(srv.URL))
	_, _, err := c.Fetch(context.Background(), "Whatever", "")
	require.Error(t, err)
	assert.Equal(t, core.KindTransient, core.KindOf(err))
}
