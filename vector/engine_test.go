package vector_test

import (
	"testing"

	"github.com/kindredlabs/kindred/vector"
)

func TestSearch_RankedDescending(t *testing.T) {
	query := []float32{1, 0}
	corpus := []vector.Candidate{
		{ID: "orthogonal", Vector: []float32{0, 1}},
		{ID: "exact", Vector: []float32{2, 0}},
		{ID: "close", Vector: []float32{1, 0.5}},
	}

	got := vector.Search(query, corpus, vector.Options{})

	if len(got) != 3 {
		t.Fatalf("got %d matches, want 3", len(got))
	}
	if got[0].ID != "exact" || got[1].ID != "close" || got[2].ID != "orthogonal" {
		t.Errorf("wrong order: %v", got)
	}
	for i := 1; i < len(got); i++ {
		if got[i].Similarity > got[i-1].Similarity {
			t.Errorf("results not sorted descending at %d: %v", i, got)
		}
	}
}

func TestSearch_TiesKeepCorpusOrder(t *testing.T) {
	query := []float32{1, 0}
	corpus := []vector.Candidate{
		{ID: "first", Vector: []float32{3, 0}},
		{ID: "second", Vector: []float32{7, 0}}, // identical similarity (1.0)
	}

	got := vector.Search(query, corpus, vector.Options{})

	if got[0].ID != "first" {
		t.Errorf("tie should keep corpus order, got %v", got)
	}
}

func TestSearch_SkipsMismatchedDimensions(t *testing.T) {
	query := []float32{1, 0}
	corpus := []vector.Candidate{
		{ID: "bad", Vector: []float32{1, 0, 0}},
		{ID: "good", Vector: []float32{1, 0}},
	}

	got := vector.Search(query, corpus, vector.Options{})

	if len(got) != 1 || got[0].ID != "good" {
		t.Errorf("expected only the matching-dimension candidate, got %v", got)
	}
}

func TestSearch_CategoryFilter(t *testing.T) {
	query := []float32{1, 0}
	corpus := []vector.Candidate{
		{ID: "a", Category: "wiki", Vector: []float32{1, 0}},
		{ID: "b", Category: "preference", Vector: []float32{1, 0}},
	}

	got := vector.Search(query, corpus, vector.Options{Categories: []string{"wiki"}})

	if len(got) != 1 || got[0].ID != "a" {
		t.Errorf("category filter not applied, got %v", got)
	}
}

func TestSearch_LimitAndDefault(t *testing.T) {
	query := []float32{1}
	var corpus []vector.Candidate
	for i := 0; i < 30; i++ {
		corpus = append(corpus, vector.Candidate{ID: string(rune('a' + i)), Vector: []float32{1}})
	}

	if got := vector.Search(query, corpus, vector.Options{}); len(got) != vector.DefaultLimit {
		t.Errorf("default limit: got %d, want %d", len(got), vector.DefaultLimit)
	}
	if got := vector.Search(query, corpus, vector.Options{Limit: 5}); len(got) != 5 {
		t.Errorf("explicit limit: got %d, want 5", len(got))
	}
}

func TestSearch_EmptyCorpus(t *testing.T) {
	if got := vector.Search([]float32{1}, nil, vector.Options{}); len(got) != 0 {
		t.Errorf("empty corpus should return no matches, got %v", got)
	}
}
