package schema

// Section is a heading-bounded fragment of an Article's text, the unit
// of embedding and vector search.
type Section struct {
	ID        string
	Article   string // owning Article's canonical title
	Ordinal   int
	Heading   string
	Level     int // 1 or 2
	Text      string
	WordCount int
	Embedding []float32 // nil until the embedding step completes
}

// SearchHit is one row of a vector search result: a Section plus its
// cosine similarity to the query vector, and the title of its owning
// Article for convenience.
type SearchHit struct {
	SectionID    string
	ArticleTitle string
	Section      Section
	CosineSim    float32
	NormDegree   float32 // filled in by the reranker, 0 until then
	RerankScore  float32
	QualityScore float32
	SourceAnchor string // for multi-doc expansion: the article this hit was pulled in via
}
