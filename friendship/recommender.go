// Package friendship scores pairwise user compatibility and recommends
// potential friends. Compatibility blends five sub-scores, each
// normalized to [0, 1]: semantic closeness of aggregated conversation
// embeddings, personality trait alignment, shared topic interests,
// communication style, and interaction pattern.
package friendship

import (
	"log"
	"math"
	"sort"

	"github.com/kindredlabs/kindred/profile"
	"github.com/kindredlabs/kindred/store"
	"github.com/kindredlabs/kindred/vector"
)

// DefaultLimit caps a recommendation listing when the caller asks for
// zero.
const DefaultLimit = 10

// ProfileSource supplies user profiles. The profiler satisfies this.
type ProfileSource interface {
	Get(userID string) (profile.UserProfile, bool)
	All() []profile.UserProfile
}

// HistorySource supplies raw conversation chunks for style and
// interaction analysis. The conversation aggregator satisfies this.
type HistorySource interface {
	UserConversations(userID string) []store.ConversationRecord
}

// Weights blends the five sub-scores. They are expected to sum to 1.
type Weights struct {
	Semantic    float32
	Personality float32
	Interests   float32
	Style       float32
	Interaction float32
}

// DefaultWeights favors what users talk about over how they talk.
var DefaultWeights = Weights{
	Semantic:    0.35,
	Personality: 0.25,
	Interests:   0.20,
	Style:       0.15,
	Interaction: 0.05,
}

// Recommendation is one candidate friend with the blended score and the
// topics both users share.
type Recommendation struct {
	UserID       string   `json:"user_id"`
	Score        float32  `json:"score"`
	CommonTopics []string `json:"common_topics"`
}

// Recommender scores compatibility between profiled users.
type Recommender struct {
	profiles ProfileSource
	history  HistorySource
	weights  Weights
}

// NewRecommender builds a recommender with DefaultWeights.
func NewRecommender(profiles ProfileSource, history HistorySource) *Recommender {
	return &Recommender{profiles: profiles, history: history, weights: DefaultWeights}
}

// WithWeights overrides the blend. Returns the recommender for chaining.
func (r *Recommender) WithWeights(w Weights) *Recommender {
	r.weights = w
	return r
}

// Similarity scores the compatibility of two users in [0, 1]. False when
// either user has no profile.
func (r *Recommender) Similarity(a, b string) (float32, bool) {
	pa, ok := r.profiles.Get(a)
	if !ok {
		return 0, false
	}
	pb, ok := r.profiles.Get(b)
	if !ok {
		return 0, false
	}
	return r.score(pa, pb), true
}

// Recommend ranks every other profiled user by compatibility with the
// given user, highest first, ties broken by user id. The user themselves
// is never a candidate. A limit of zero or less applies DefaultLimit.
func (r *Recommender) Recommend(userID string, limit int) ([]Recommendation, bool) {
	self, ok := r.profiles.Get(userID)
	if !ok {
		return nil, false
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	var out []Recommendation
	for _, candidate := range r.profiles.All() {
		if candidate.UserID == userID {
			continue
		}
		out = append(out, Recommendation{
			UserID:       candidate.UserID,
			Score:        r.score(self, candidate),
			CommonTopics: commonTopics(self.Interests, candidate.Interests),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].UserID < out[j].UserID
	})
	if len(out) > limit {
		out = out[:limit]
	}

	log.Printf("[FRIEND] recommended %d candidates for %s", len(out), userID)
	return out, true
}

func (r *Recommender) score(a, b profile.UserProfile) float32 {
	w := r.weights
	blended := w.Semantic*semanticScore(a.AggregatedEmbedding, b.AggregatedEmbedding) +
		w.Personality*personalityScore(a.PersonalityTraits, b.PersonalityTraits) +
		w.Interests*interestScore(a.Interests, b.Interests) +
		w.Style*styleScore(r.chunks(a.UserID), r.chunks(b.UserID)) +
		w.Interaction*interactionScore(r.chunks(a.UserID), r.chunks(b.UserID))
	return vector.Clamp01(blended)
}

func (r *Recommender) chunks(userID string) []store.ConversationRecord {
	if r.history == nil {
		return nil
	}
	return r.history.UserConversations(userID)
}

// semanticScore clamps cosine similarity into [0, 1]; anti-aligned
// embeddings contribute nothing rather than a negative pull.
func semanticScore(a, b []float32) float32 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	return vector.Clamp01(vector.Cosine(a, b))
}

// personalityScore is one minus the mean absolute trait difference.
// Identical traits score 1.
func personalityScore(a, b profile.BigFiveTraits) float32 {
	sum := absDiff(a.Openness, b.Openness) +
		absDiff(a.Conscientiousness, b.Conscientiousness) +
		absDiff(a.Extraversion, b.Extraversion) +
		absDiff(a.Agreeableness, b.Agreeableness) +
		absDiff(a.Neuroticism, b.Neuroticism)
	return vector.Clamp01(1 - sum/5)
}

// interestScore is a weighted Jaccard over topics, each topic weighted by
// the mean of its expertise and engagement. Identical interest sets score
// 1, disjoint sets 0. Two users with no interests at all are vacuously
// identical.
func interestScore(a, b []profile.TopicInterest) float32 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	wa := interestWeights(a)
	wb := interestWeights(b)

	topics := make(map[string]struct{}, len(wa)+len(wb))
	for t := range wa {
		topics[t] = struct{}{}
	}
	for t := range wb {
		topics[t] = struct{}{}
	}

	var minSum, maxSum float32
	for t := range topics {
		x, y := wa[t], wb[t]
		if x < y {
			minSum += x
			maxSum += y
		} else {
			minSum += y
			maxSum += x
		}
	}
	if maxSum == 0 {
		return 0
	}
	return vector.Clamp01(minSum / maxSum)
}

func interestWeights(interests []profile.TopicInterest) map[string]float32 {
	out := make(map[string]float32, len(interests))
	for _, t := range interests {
		out[t.Topic] = (t.ExpertiseLevel + t.EngagementScore) / 2
	}
	return out
}

// styleScore compares how the two users write. Users with no history
// share DefaultStyle and therefore score 1 against each other.
func styleScore(a, b []store.ConversationRecord) float32 {
	sa := AnalyzeStyle(a)
	sb := AnalyzeStyle(b)
	sum := absDiff(sa.Formality, sb.Formality) +
		absDiff(sa.Emotiveness, sb.Emotiveness) +
		absDiff(sa.Verbosity, sb.Verbosity) +
		absDiff(sa.Politeness, sb.Politeness)
	return vector.Clamp01(1 - sum/4)
}

// interactionScore compares participation patterns the same way.
func interactionScore(a, b []store.ConversationRecord) float32 {
	va := interactionVector(a)
	vb := interactionVector(b)
	var sum float32
	for i := range va {
		sum += absDiff(va[i], vb[i])
	}
	return vector.Clamp01(1 - sum/float32(len(va)))
}

func commonTopics(a, b []profile.TopicInterest) []string {
	set := make(map[string]struct{}, len(a))
	for _, t := range a {
		set[t.Topic] = struct{}{}
	}
	var out []string
	for _, t := range b {
		if _, ok := set[t.Topic]; ok {
			out = append(out, t.Topic)
		}
	}
	sort.Strings(out)
	return out
}

func absDiff(a, b float32) float32 {
	return float32(math.Abs(float64(a - b)))
}
