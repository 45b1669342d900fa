package core

// SearchResult is the normalized projection returned by every knowledge
// search path, whether the match came from the personality collection or
// the wiki collection.
type SearchResult struct {
	// Text is the stored snippet.
	Text string `json:"text"`

	// ContentType tags the source collection: "personality" or "wiki".
	ContentType string `json:"content_type"`

	// Category is the record's free-form category string.
	Category string `json:"category"`

	// Importance is the stored importance weight in [0, 1].
	Importance float32 `json:"importance"`

	// Similarity is the cosine similarity against the query in [-1, 1].
	// Keyword-ranked results carry 0 here; they have no query vector.
	Similarity float32 `json:"similarity"`
}
