package embedding

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct{ dim int }

func (s *stubProvider) Dimension() int { return s.dim }
func (s *stubProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, s.dim)
	}
	return out, nil
}

func TestRegisterAndNew(t *testing.T) {
	Register("stub-test-provider", func(opts map[string]string) (Provider, error) {
		return &stubProvider{dim: 8}, nil
	})

	p, err := New("stub-test-provider", nil)
	require.NoError(t, err)
	assert.Equal(t, 8, p.Dimension())

	vecs, err := p.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, vecs, 2)
	assert.Len(t, vecs[0], 8)
}

func TestNewUnknownProvider(t *testing.T) {
	_, err := New("does-not-exist", nil)
	require.Error(t, err)
}
