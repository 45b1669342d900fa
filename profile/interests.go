package profile

import (
	"sort"
	"strings"

	"github.com/kindredlabs/kindred/store"
	"github.com/kindredlabs/kindred/vector"
)

// topicLexicon maps topic names to the keywords that signal them. The
// topics mirror the room catalog so interests line up with where users
// actually talk.
var topicLexicon = map[string][]string{
	"technology": {"code", "programming", "software", "computer", "tech", "api", "server", "compiler"},
	"gaming":     {"game", "gaming", "play", "quest", "console", "rpg", "speedrun"},
	"music":      {"music", "song", "album", "band", "guitar", "melody", "playlist"},
	"art":        {"art", "design", "drawing", "painting", "sketch", "creative"},
	"food":       {"food", "cook", "recipe", "restaurant", "meal", "baking"},
	"movies":     {"movie", "film", "cinema", "series", "episode", "director"},
	"sports":     {"sport", "team", "match", "training", "league", "workout"},
	"science":    {"science", "research", "theory", "experiment", "physics", "biology"},
	"travel":     {"travel", "trip", "visit", "country", "flight", "abroad"},
	"books":      {"book", "read", "novel", "story", "author", "chapter"},
}

// deriveInterests tags conversation chunks against the topic lexicon and
// scores each mentioned topic. Deterministic: the same chunks always
// yield the same interests, sorted by engagement descending then topic
// name.
func deriveInterests(chunks []store.ConversationRecord) []TopicInterest {
	if len(chunks) == 0 {
		return nil
	}

	type topicStats struct {
		mentions  int
		chunkHits int
		messages  uint32
		first     int64
		last      int64
	}
	stats := make(map[string]*topicStats)

	for _, chunk := range chunks {
		text := strings.ToLower(chunk.ConversationText + " " + chunk.Summary)
		for topic, keywords := range topicLexicon {
			hits := 0
			for _, kw := range keywords {
				hits += strings.Count(text, kw)
			}
			if hits == 0 {
				continue
			}
			ts := stats[topic]
			if ts == nil {
				ts = &topicStats{first: chunk.CreatedAt}
				stats[topic] = ts
			}
			ts.mentions += hits
			ts.chunkHits++
			ts.messages += chunk.MessageCount
			if chunk.CreatedAt < ts.first {
				ts.first = chunk.CreatedAt
			}
			if chunk.CreatedAt > ts.last {
				ts.last = chunk.CreatedAt
			}
		}
	}

	out := make([]TopicInterest, 0, len(stats))
	for topic, ts := range stats {
		coverage := float32(ts.chunkHits) / float32(len(chunks))
		out = append(out, TopicInterest{
			Topic: topic,
			// Saturating mention count: expertise approaches 1 as a
			// topic keeps coming up.
			ExpertiseLevel:  float32(ts.mentions) / float32(ts.mentions+10),
			EngagementScore: vector.Clamp01(coverage),
			MessageCount:    ts.messages,
			FirstMentioned:  ts.first,
			LastMentioned:   ts.last,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].EngagementScore != out[j].EngagementScore {
			return out[i].EngagementScore > out[j].EngagementScore
		}
		return out[i].Topic < out[j].Topic
	})
	return out
}

// mergeInterests refines fresh interests against the previous profiling
// pass. Scores never decrease unless the topic's recomputed message count
// dropped, which counts as contradicting evidence (the underlying history
// changed out from under the old score).
func mergeInterests(previous, fresh []TopicInterest) []TopicInterest {
	if len(previous) == 0 {
		return fresh
	}

	old := make(map[string]TopicInterest, len(previous))
	for _, t := range previous {
		old[t.Topic] = t
	}

	for i, t := range fresh {
		prev, ok := old[t.Topic]
		if !ok {
			continue
		}
		if t.MessageCount >= prev.MessageCount {
			if prev.ExpertiseLevel > t.ExpertiseLevel {
				fresh[i].ExpertiseLevel = prev.ExpertiseLevel
			}
			if prev.EngagementScore > t.EngagementScore {
				fresh[i].EngagementScore = prev.EngagementScore
			}
		}
		if prev.FirstMentioned != 0 && prev.FirstMentioned < t.FirstMentioned {
			fresh[i].FirstMentioned = prev.FirstMentioned
		}
	}
	return fresh
}
