package extract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wikigr/wikigr/internal/wikigrtest"
	"github.com/wikigr/wikigr/schema"
)

func TestExtractParsesWellFormedResponse(t *testing.T) {
	llm := &wikigrtest.FakeLLM{Responses: []string{
		`{"entities":[{"name":"Rob Pike","type":"Person","description":"Co-creator of Go"}],` +
			`"relations":[{"source_name":"Rob Pike","target_name":"Go","predicate":"created"}],` +
			`"facts":["Go was released in 2009."]}`,
	}}
	e := New(llm)

	result, err := e.Extract(context.Background(), "Go", []schema.Section{
		{Heading: "Introduction", Text: "Go is a language created by Rob Pike."},
	})
	require.NoError(t, err)
	require.Len(t, result.Entities, 1)
	assert.Equal(t, "Rob Pike", result.Entities[0].Name)
	require.Len(t, result.Relations, 1)
	require.Len(t, result.Facts, 1)
}

func TestExtractDedupesEntitiesByNameAndType(t *testing.T) {
	llm := &wikigrtest.FakeLLM{Responses: []string{
		`{"entities":[{"name":"Go","type":"Language"},{"name":"go","type":"Language"}],"relations":[],"facts":[]}`,
	}}
	e := New(llm)

	result, err := e.Extract(context.Background(), "Go", nil)
	require.NoError(t, err)
	assert.Len(t, result.Entities, 1)
}

func TestExtractStripsCodeFences(t *testing.T) {
	llm := &wikigrtest.FakeLLM{Responses: []string{
		"```json\n" + `{"entities":[],"relations":[],"facts":["a fact"]}` + "\n```",
	}}
	e := New(llm)

	result, err := e.Extract(context.Background(), "Go", nil)
	require.NoError(t, err)
	require.Len(t, result.Facts, 1)
}

func TestExtractFallsBackToEmptyAfterTwoMalformedResponses(t *testing.T) {
	llm := &wikigrtest.FakeLLM{Responses: []string{"not json", "still not json"}}
	e := New(llm)

	result, err := e.Extract(context.Background(), "Go", nil)
	require.NoError(t, err)
	assert.Empty(t, result.Entities)
	assert.Empty(t, result.Relations)
	assert.Empty(t, result.Facts)
	assert.Len(t, llm.Calls, 2)
}

func TestTruncateSectionsDropsTailFirst(t *testing.T) {
	sections := []schema.Section{
		{Heading: "A", Text: "short"},
		{Heading: "B", Text: "also short"},
	}
	body := truncateSections(sections, 10)
	assert.Contains(t, body, "A")
	assert.NotContains(t, body, "== B ==")
}
