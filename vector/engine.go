package vector

import (
	"log"
	"sort"
)

// DefaultLimit caps result counts when the caller does not supply one.
const DefaultLimit = 20

// Candidate is one corpus entry offered to Search. The engine never mutates
// candidates; it only reads them.
type Candidate struct {
	ID       string
	Category string
	Vector   []float32
}

// Match is one ranked search result.
type Match struct {
	ID         string
	Similarity float32
}

// Options tunes a Search call. The zero value means "no category filter,
// DefaultLimit results".
type Options struct {
	// Limit truncates the result list. Zero or negative selects DefaultLimit.
	Limit int

	// Categories restricts the corpus to candidates whose Category is in
	// the set. Empty means no filtering.
	Categories []string
}

// Search ranks the corpus by cosine similarity against query, descending,
// ties broken by corpus order (earlier wins). Candidates whose vector
// length differs from the query are skipped and counted rather than
// failing the whole query, so heterogeneous collections degrade
// gracefully. Search is pure: it holds no state between calls.
func Search(query []float32, corpus []Candidate, opts Options) []Match {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	var allowed map[string]struct{}
	if len(opts.Categories) > 0 {
		allowed = make(map[string]struct{}, len(opts.Categories))
		for _, c := range opts.Categories {
			allowed[c] = struct{}{}
		}
	}

	matches := make([]Match, 0, len(corpus))
	skipped := 0
	for _, cand := range corpus {
		if allowed != nil {
			if _, ok := allowed[cand.Category]; !ok {
				continue
			}
		}
		if len(cand.Vector) != len(query) {
			skipped++
			continue
		}
		matches = append(matches, Match{ID: cand.ID, Similarity: Cosine(query, cand.Vector)})
	}

	if skipped > 0 {
		log.Printf("[VECTOR] skipped %d candidates with mismatched dimensions", skipped)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}
