// Package store is the append-and-lookup storage for personality and
// conversation embeddings. It keeps everything in ordered in-memory slices
// behind a single RWMutex: mutating calls are serialized, reads take a
// snapshot and return copies.
package store

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store owns the embedding collections. All write access goes through its
// mutex; readers observe the most recently committed write and never see a
// partially applied batch.
type Store struct {
	mu sync.RWMutex

	// dim is the embedding dimension, locked at the first successful
	// write. Zero means no vector has been stored yet.
	dim int

	personalities []PersonalityRecord
	conversations []ConversationRecord

	now    func() int64
	lastTS int64
}

// New creates an empty store.
func New() *Store {
	return &Store{now: func() int64 { return time.Now().UnixNano() }}
}

// Dimension returns the locked embedding dimension, or 0 before the first
// write.
func (s *Store) Dimension() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dim
}

// PutPersonality validates and appends one personality record, returning
// the generated identifier.
func (s *Store) PutPersonality(rec PersonalityRecord) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.validate(rec.Embedding, rec.Importance); err != nil {
		return "", err
	}

	s.commitPersonality(&rec)
	return rec.ID, nil
}

// PutPersonalityBatch appends records all-or-nothing: if any record fails
// validation the whole batch is rejected and the store is unchanged.
func (s *Store) PutPersonalityBatch(recs []PersonalityRecord) ([]string, error) {
	if len(recs) == 0 {
		return nil, ErrEmptyInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate everything before touching state. The first record of a
	// fresh store decides the dimension for the rest of the batch.
	dim := s.dim
	for i, rec := range recs {
		if err := validateAgainst(dim, rec.Embedding, rec.Importance); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		if dim == 0 {
			dim = len(rec.Embedding)
		}
	}

	ids := make([]string, len(recs))
	for i := range recs {
		rec := recs[i]
		s.commitPersonality(&rec)
		ids[i] = rec.ID
	}

	log.Printf("[STORE] batch stored %d personality records", len(recs))
	return ids, nil
}

// ListPersonality returns matching records in insertion order. Copies are
// returned; callers cannot mutate stored state.
func (s *Store) ListPersonality(f Filter) []PersonalityRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []PersonalityRecord
	for _, rec := range s.personalities {
		if f.ChannelID != "" && rec.ChannelID != f.ChannelID {
			continue
		}
		if f.Category != "" && rec.Category != f.Category {
			continue
		}
		out = append(out, copyPersonality(rec))
	}
	return out
}

// AppendConversation validates and appends one conversation chunk. Chunk
// ordering is the conversation aggregator's concern; the store only checks
// the vector.
func (s *Store) AppendConversation(rec ConversationRecord) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.validate(rec.Embedding, 0); err != nil {
		return "", err
	}

	rec.ID = uuid.New().String()
	rec.Embedding = copyVector(rec.Embedding)
	if rec.CreatedAt == 0 {
		rec.CreatedAt = s.tick()
	}
	if s.dim == 0 {
		s.dim = len(rec.Embedding)
	}
	s.conversations = append(s.conversations, rec)
	return rec.ID, nil
}

// Conversations returns the chunks for a user in insertion order. An empty
// channelID matches every channel.
func (s *Store) Conversations(userID, channelID string) []ConversationRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []ConversationRecord
	for _, rec := range s.conversations {
		if rec.UserID != userID {
			continue
		}
		if channelID != "" && rec.ChannelID != channelID {
			continue
		}
		out = append(out, copyConversation(rec))
	}
	return out
}

// commitPersonality assigns identity and timestamps and appends. Callers
// hold the write lock and have already validated.
func (s *Store) commitPersonality(rec *PersonalityRecord) {
	rec.ID = uuid.New().String()
	rec.Embedding = copyVector(rec.Embedding)
	if rec.CreatedAt == 0 {
		rec.CreatedAt = s.tick()
	}
	if s.dim == 0 {
		s.dim = len(rec.Embedding)
	}
	s.personalities = append(s.personalities, *rec)
}

// tick returns a strictly increasing nanosecond timestamp.
func (s *Store) tick() int64 {
	ts := s.now()
	if ts <= s.lastTS {
		ts = s.lastTS + 1
	}
	s.lastTS = ts
	return ts
}

func (s *Store) validate(embedding []float32, importance float32) error {
	return validateAgainst(s.dim, embedding, importance)
}

func validateAgainst(dim int, embedding []float32, importance float32) error {
	if len(embedding) == 0 {
		return ErrEmptyVector
	}
	if dim != 0 && len(embedding) != dim {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(embedding), dim)
	}
	if importance < 0 || importance > 1 {
		return fmt.Errorf("%w: importance %v", ErrInvalidRange, importance)
	}
	return nil
}

func copyVector(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}

func copyPersonality(rec PersonalityRecord) PersonalityRecord {
	rec.Embedding = copyVector(rec.Embedding)
	return rec
}

func copyConversation(rec ConversationRecord) ConversationRecord {
	rec.Embedding = copyVector(rec.Embedding)
	return rec
}
