package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wikigr/wikigr/core"
)

func mockMessagesServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{
			"id": "msg_test", "type": "message", "role": "assistant",
			"model": "claude-3-5-sonnet-20241022", "stop_reason": "end_turn",
			"content": []map[string]any{{"type": "text", "text": content}},
			"usage":   map[string]any{"input_tokens": 10, "output_tokens": 5},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewRequiresAPIKey(t *testing.T) {
	_, err := New(map[string]string{})
	require.Error(t, err)
	assert.Equal(t, core.KindConfiguration, core.KindOf(err))
}

func TestCompleteConcatenatesTextBlocks(t *testing.T) {
	srv := mockMessagesServer(t, "Newton formulated three laws of motion.")

	p, err := New(map[string]string{"api_key": "test", "base_url": srv.URL})
	require.NoError(t, err)

	got, err := p.Complete(context.Background(), "summarize", 64)
	require.NoError(t, err)
	assert.Equal(t, "Newton formulated three laws of motion.", got)
}

func TestCompleteReportsAuthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"authentication_error","message":"Invalid API key"}}`))
	}))
	defer srv.Close()

	p, err := New(map[string]string{"api_key": "bad", "base_url": srv.URL})
	require.NoError(t, err)

	_, err = p.Complete(context.Background(), "summarize", 64)
	require.Error(t, err)
	assert.Equal(t, core.KindTransient, core.KindOf(err))
}
