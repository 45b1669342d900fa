// Package conversation chunks and indexes per-(user, channel) conversation
// history. The aggregator owns the chunk counters: callers must store
// chunks in exactly the order the counters dictate.
package conversation

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/kindredlabs/kindred/store"
	"github.com/kindredlabs/kindred/vector"
)

// ErrOutOfOrderChunk is returned when a chunk's index is not the expected
// next value for its (user, channel) sequence.
var ErrOutOfOrderChunk = errors.New("chunk index out of order")

// DefaultRecent is the chunk count returned when the caller supplies no
// limit.
const DefaultRecent = 3

type counterKey struct {
	userID    string
	channelID string
}

// Aggregator tracks monotonic chunk sequences and persists chunks into the
// embedding store. Counters are process-wide, keyed by (user, channel),
// and initialized to 0 lazily on first observation.
type Aggregator struct {
	mu       sync.Mutex
	store    *store.Store
	counters map[counterKey]uint32
}

// New creates an aggregator over the given store.
func New(s *store.Store) *Aggregator {
	return &Aggregator{
		store:    s,
		counters: make(map[counterKey]uint32),
	}
}

// NextChunkIndex returns the expected index of the next chunk for the pair
// without incrementing the counter.
func (a *Aggregator) NextChunkIndex(userID, channelID string) uint32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.counters[counterKey{userID, channelID}]
}

// StoreChunk validates the chunk's index against the counter, persists it,
// and increments the counter. A rejected chunk leaves both the store and
// the counter unchanged.
func (a *Aggregator) StoreChunk(rec store.ConversationRecord) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	key := counterKey{rec.UserID, rec.ChannelID}
	want := a.counters[key]
	if rec.ChunkIndex != want {
		return "", fmt.Errorf("%w: got %d, want %d for (%s, %s)",
			ErrOutOfOrderChunk, rec.ChunkIndex, want, rec.UserID, rec.ChannelID)
	}

	id, err := a.store.AppendConversation(rec)
	if err != nil {
		return "", err
	}

	a.counters[key] = want + 1
	log.Printf("[CONV] stored chunk %d for (%s, %s)", want, rec.UserID, rec.ChannelID)
	return id, nil
}

// History returns the user's chunks for a channel in insertion order. An
// empty channelID spans every channel.
func (a *Aggregator) History(userID, channelID string) []store.ConversationRecord {
	return a.store.Conversations(userID, channelID)
}

// UserConversations returns every chunk for the user across all channels.
// This is the profiler's view of a user's accumulated history.
func (a *Aggregator) UserConversations(userID string) []store.ConversationRecord {
	return a.store.Conversations(userID, "")
}

// Recent returns the most recent limit chunks, newest first, rendered as
// text. A chunk's summary is preferred over its full text when present.
// A non-positive limit selects DefaultRecent.
func (a *Aggregator) Recent(userID, channelID string, limit int) []string {
	if limit <= 0 {
		limit = DefaultRecent
	}

	chunks := a.store.Conversations(userID, channelID)
	sort.SliceStable(chunks, func(i, j int) bool {
		return chunks[i].ChunkIndex > chunks[j].ChunkIndex
	})

	if len(chunks) > limit {
		chunks = chunks[:limit]
	}

	out := make([]string, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, renderChunk(c))
	}
	return out
}

// SearchHistory ranks the user's chunks in a channel by similarity against
// the query embedding and returns the top limit rendered texts.
func (a *Aggregator) SearchHistory(userID, channelID string, query []float32, limit int) []string {
	if limit <= 0 {
		limit = DefaultRecent
	}

	chunks := a.store.Conversations(userID, channelID)
	byID := make(map[string]store.ConversationRecord, len(chunks))
	corpus := make([]vector.Candidate, 0, len(chunks))
	for _, c := range chunks {
		byID[c.ID] = c
		corpus = append(corpus, vector.Candidate{ID: c.ID, Vector: c.Embedding})
	}

	matches := vector.Search(query, corpus, vector.Options{Limit: limit})

	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, renderChunk(byID[m.ID]))
	}
	return out
}

// Stats returns the chunk count and summed message count for the pair.
func (a *Aggregator) Stats(userID, channelID string) (chunks uint32, messages uint32) {
	for _, c := range a.store.Conversations(userID, channelID) {
		chunks++
		messages += c.MessageCount
	}
	return chunks, messages
}

func renderChunk(c store.ConversationRecord) string {
	if c.Summary != "" {
		return c.Summary
	}
	return c.ConversationText
}
