// Package knowledge unifies the two retrieval corpora: personality
// fragments held in the record store and wiki articles held in an
// embedded chromem-go vector database.
package knowledge

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	chromem "github.com/philippgille/chromem-go"

	"github.com/kindredlabs/kindred/store"
)

// WikiEntry is one wiki article with its embedding.
type WikiEntry struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Text      string    `json:"text"`
	Category  string    `json:"category"`
	Embedding []float32 `json:"embedding"`
	CreatedAt int64     `json:"created_at"`
}

// WikiMatch is a wiki search hit.
type WikiMatch struct {
	Entry      WikiEntry
	Similarity float32
}

// WikiStore keeps wiki articles in a chromem-go collection for semantic
// search, with a parallel entry list for keyword scans and stats, which
// chromem does not support.
type WikiStore struct {
	mu      sync.RWMutex
	db      *chromem.DB
	col     *chromem.Collection
	dim     int
	entries []WikiEntry
	now     func() int64
}

// NewWikiStore creates an empty in-memory wiki store.
func NewWikiStore() (*WikiStore, error) {
	db := chromem.NewDB()

	// No embedding func: callers supply embeddings. Default cosine
	// distance.
	col, err := db.CreateCollection("wiki", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create wiki collection: %w", err)
	}

	return &WikiStore{
		db:  db,
		col: col,
		now: func() int64 { return time.Now().UnixNano() },
	}, nil
}

// Add loads a batch of articles. The whole batch is validated before any
// entry is written: one bad entry rejects the batch and leaves the store
// unchanged. The embedding dimension locks on the first accepted entry.
func (w *WikiStore) Add(ctx context.Context, batch []WikiEntry) error {
	if len(batch) == 0 {
		return store.ErrEmptyInput
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	dim := w.dim
	for i, e := range batch {
		if strings.TrimSpace(e.Text) == "" {
			return fmt.Errorf("entry %d: %w", i, store.ErrEmptyInput)
		}
		if len(e.Embedding) == 0 {
			return fmt.Errorf("entry %d: %w", i, store.ErrEmptyVector)
		}
		if dim == 0 {
			dim = len(e.Embedding)
		} else if len(e.Embedding) != dim {
			return fmt.Errorf("entry %d: %w: got %d, want %d",
				i, store.ErrDimensionMismatch, len(e.Embedding), dim)
		}
	}

	for _, e := range batch {
		e.ID = uuid.NewString()
		e.CreatedAt = w.now()
		doc := chromem.Document{
			ID:        e.ID,
			Content:   e.Text,
			Embedding: e.Embedding,
			Metadata: map[string]string{
				"title":    e.Title,
				"category": e.Category,
			},
		}
		if err := w.col.AddDocument(ctx, doc); err != nil {
			return fmt.Errorf("add wiki document: %w", err)
		}
		w.entries = append(w.entries, e)
	}
	w.dim = dim

	log.Printf("[WIKI] loaded %d articles (total %d)", len(batch), len(w.entries))
	return nil
}

// Search returns the closest articles to the query embedding, optionally
// restricted to one category. Empty store yields empty results.
func (w *WikiStore) Search(ctx context.Context, embedding []float32, limit int, category string) ([]WikiMatch, error) {
	if len(embedding) == 0 {
		return nil, store.ErrEmptyVector
	}
	if limit <= 0 {
		limit = 5
	}

	var where map[string]string
	if category != "" {
		where = map[string]string{"category": category}
	}

	// chromem-go requires nResults <= collection size; retry with
	// smaller limits until the query fits.
	var results []chromem.Result
	for currentLimit := limit; currentLimit >= 1; currentLimit-- {
		var err error
		results, err = w.col.QueryEmbedding(ctx, embedding, currentLimit, where, nil)
		if err == nil {
			break
		}
		if isInsufficientDocsError(err) {
			if currentLimit == 1 {
				return nil, nil
			}
			continue
		}
		return nil, fmt.Errorf("wiki query: %w", err)
	}

	out := make([]WikiMatch, 0, len(results))
	for _, r := range results {
		out = append(out, WikiMatch{
			Entry: WikiEntry{
				ID:        r.ID,
				Title:     r.Metadata["title"],
				Text:      r.Content,
				Category:  r.Metadata["category"],
				Embedding: r.Embedding,
			},
			Similarity: r.Similarity,
		})
	}
	return out, nil
}

// All returns a copy of every loaded article in insertion order.
func (w *WikiStore) All() []WikiEntry {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]WikiEntry, len(w.entries))
	copy(out, w.entries)
	return out
}

// Count reports the number of loaded articles.
func (w *WikiStore) Count() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.entries)
}

func isInsufficientDocsError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "nResults must be") ||
		strings.Contains(msg, "number of documents")
}
