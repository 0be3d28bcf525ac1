// Package wikigrtest provides function-field test doubles for WikiGR's
// capability interfaces, used across package tests in place of a
// mocking framework.
package wikigrtest

import "context"

// FakeLLM implements llmclient.Client with a scripted response queue.
// CompleteFunc, if set, answers every call and Responses is not used;
// otherwise Responses are returned in order and, once exhausted, the
// last response repeats.
type FakeLLM struct {
	Responses    []string
	Err          error
	CompleteFunc func(ctx context.Context, prompt string, maxOutputTokens int) (string, error)
	Calls        []string
	calls        int
}

func (f *FakeLLM) Name() string { return "fake" }

func (f *FakeLLM) Complete(ctx context.Context, prompt string, maxOutputTokens int) (string, error) {
	f.Calls = append(f.Calls, prompt)
	if f.Err != nil {
		return "", f.Err
	}
	if f.CompleteFunc != nil {
		return f.CompleteFunc(ctx, prompt, maxOutputTokens)
	}
	if len(f.Responses) == 0 {
		return "", nil
	}
	idx := f.calls
	if idx >= len(f.Responses) {
		idx = len(f.Responses) - 1
	}
	f.calls++
	return f.Responses[idx], nil
}

// FakeEmbedder implements embedding.Provider, returning a fixed-length
// deterministic vector per text (hash-derived, not semantically
// meaningful) unless VectorFunc is set.
type FakeEmbedder struct {
	Dim        int
	Err        error
	VectorFunc func(text string) []float32
}

func (f *FakeEmbedder) Dimension() int { return f.Dim }

func (f *FakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if f.VectorFunc != nil {
			out[i] = f.VectorFunc(t)
			continue
		}
		out[i] = hashVector(t, f.Dim)
	}
	return out, nil
}

func hashVector(text string, dim int) []float32 {
	v := make([]float32, dim)
	h := uint32(2166136261)
	for i := 0; i < len(text); i++ {
		h ^= uint32(text[i])
		h *= 16777619
	}
	for i := range v {
		h ^= uint32(i) * 2654435761
		h *= 16777619
		v[i] = float32(h%1000) / 1000.0
	}
	return v
}

// FakeSource implements fetch.SourceClient, returning scripted content
// keyed by title.
type FakeSource struct {
	Content map[string]string
	URLs    map[string]string
	Err     error
}

func (f *FakeSource) Fetch(ctx context.Context, title, url string) (string, string, error) {
	if f.Err != nil {
		return "", "", f.Err
	}
	text, ok := f.Content[title]
	if !ok {
		return "", "", nil
	}
	return text, f.URLs[title], nil
}
