// Package profile derives per-user personality profiles from aggregated
// conversation history: a Big-Five trait vector, topic interests, and the
// centroid of the user's conversation embeddings.
package profile

import (
	"log"
	"sync"
	"time"

	"github.com/kindredlabs/kindred/store"
	"github.com/kindredlabs/kindred/vector"
)

// HistorySource supplies a user's accumulated conversation chunks across
// all channels. The conversation aggregator satisfies this.
type HistorySource interface {
	UserConversations(userID string) []store.ConversationRecord
}

// Profiler computes and stores UserProfiles. Profiles are upserted keyed
// by user id: created on the first pass over a user with history, updated
// on every later pass, never duplicated and never deleted here.
type Profiler struct {
	mu       sync.RWMutex
	history  HistorySource
	scorer   TraitScorer
	profiles map[string]UserProfile
	order    []string

	now func() int64
}

// New creates a profiler over the given history source. A nil scorer
// selects the default LexicalScorer.
func New(history HistorySource, scorer TraitScorer) *Profiler {
	if scorer == nil {
		scorer = LexicalScorer{}
	}
	return &Profiler{
		history:  history,
		scorer:   scorer,
		profiles: make(map[string]UserProfile),
		now:      func() int64 { return time.Now().UnixNano() },
	}
}

// CreateOrRefresh recomputes the user's profile from every conversation
// chunk across channels and upserts it. A user with no history produces
// no profile: the second return is false and nothing is stored.
//
// The pass is deterministic and idempotent; re-running it on unchanged
// history yields the same traits, interests, and embedding.
func (p *Profiler) CreateOrRefresh(userID string) (UserProfile, bool) {
	chunks := p.history.UserConversations(userID)
	if len(chunks) == 0 {
		return UserProfile{}, false
	}

	texts := make([]string, 0, len(chunks))
	embeddings := make([][]float32, 0, len(chunks))
	var totalMessages uint32
	for _, c := range chunks {
		texts = append(texts, c.ConversationText)
		embeddings = append(embeddings, c.Embedding)
		totalMessages += c.MessageCount
	}

	fresh := UserProfile{
		UserID:              userID,
		PersonalityTraits:   clampTraits(p.scorer.Score(texts)),
		Interests:           deriveInterests(chunks),
		AggregatedEmbedding: vector.Mean(embeddings),
		TotalMessages:       totalMessages,
		ConversationCount:   uint32(len(chunks)),
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ts := p.now()
	if prev, ok := p.profiles[userID]; ok {
		fresh.Interests = mergeInterests(prev.Interests, fresh.Interests)
		fresh.CreatedAt = prev.CreatedAt
		fresh.UpdatedAt = ts
	} else {
		fresh.CreatedAt = ts
		fresh.UpdatedAt = ts
		p.order = append(p.order, userID)
	}
	p.profiles[userID] = fresh

	log.Printf("[PROFILE] refreshed %s: %d chunks, %d interests",
		userID, len(chunks), len(fresh.Interests))
	return fresh, true
}

// Get returns the stored profile for the user, if any.
func (p *Profiler) Get(userID string) (UserProfile, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	prof, ok := p.profiles[userID]
	return prof, ok
}

// All returns every stored profile in creation order.
func (p *Profiler) All() []UserProfile {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]UserProfile, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, p.profiles[id])
	}
	return out
}

// AnalyzeTraits scores the user's traits from current history without
// persisting anything. False when the user has no history.
func (p *Profiler) AnalyzeTraits(userID string) (BigFiveTraits, bool) {
	chunks := p.history.UserConversations(userID)
	if len(chunks) == 0 {
		return BigFiveTraits{}, false
	}

	texts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		texts = append(texts, c.ConversationText)
	}
	return clampTraits(p.scorer.Score(texts)), true
}

// AnalyzeInterests derives the user's topic interests from current
// history without persisting anything. Empty for users with no history.
func (p *Profiler) AnalyzeInterests(userID string) []TopicInterest {
	return deriveInterests(p.history.UserConversations(userID))
}

func clampTraits(t BigFiveTraits) BigFiveTraits {
	return BigFiveTraits{
		Openness:          vector.Clamp01(t.Openness),
		Conscientiousness: vector.Clamp01(t.Conscientiousness),
		Extraversion:      vector.Clamp01(t.Extraversion),
		Agreeableness:     vector.Clamp01(t.Agreeableness),
		Neuroticism:       vector.Clamp01(t.Neuroticism),
	}
}
