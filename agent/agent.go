// Package agent builds prompts for the chat surface. It retrieves
// context (personality fragments, wiki knowledge, conversation history,
// user profiles, friend recommendations), folds it into the room's
// persona prompt, and delegates reply generation to the configured
// Generator. There is no tool-dispatch loop; retrieval happens before
// the single generation call.
package agent

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/kindredlabs/kindred/conversation"
	"github.com/kindredlabs/kindred/core"
	"github.com/kindredlabs/kindred/friendship"
	"github.com/kindredlabs/kindred/knowledge"
	"github.com/kindredlabs/kindred/llm"
	"github.com/kindredlabs/kindred/profile"
	"github.com/kindredlabs/kindred/rooms"
)

// friendsRoom is the room where the agent surfaces friend
// recommendations conversationally.
const friendsRoom = "friends"

// contextSnippets caps how many retrieved fragments are folded into a
// prompt.
const contextSnippets = 5

// Agent wires retrieval into prompt construction.
type Agent struct {
	generator llm.Generator
	catalog   *rooms.Catalog

	knowledge     *knowledge.Service
	conversations *conversation.Aggregator
	profiles      *profile.Profiler
	recommender   *friendship.Recommender
}

// Option configures the agent.
type Option func(*Agent)

// WithKnowledge enables personality and wiki retrieval.
func WithKnowledge(svc *knowledge.Service) Option {
	return func(a *Agent) { a.knowledge = svc }
}

// WithConversations enables recent-history retrieval.
func WithConversations(agg *conversation.Aggregator) Option {
	return func(a *Agent) { a.conversations = agg }
}

// WithProfiles enables user profile context.
func WithProfiles(p *profile.Profiler) Option {
	return func(a *Agent) { a.profiles = p }
}

// WithRecommender enables friend recommendations in the friends room.
func WithRecommender(r *friendship.Recommender) Option {
	return func(a *Agent) { a.recommender = r }
}

// New creates an agent. A nil catalog uses the default rooms.
func New(generator llm.Generator, catalog *rooms.Catalog, opts ...Option) *Agent {
	if catalog == nil {
		catalog = rooms.Defaults()
	}
	a := &Agent{generator: generator, catalog: catalog}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ChatDefault replies with the general room persona and no retrieval.
func (a *Agent) ChatDefault(ctx context.Context, history []core.Message) (string, error) {
	room, _ := a.catalog.Lookup("general")
	return a.generate(ctx, room.Prompt, history)
}

// Chat replies in a room, folding the room's importance-ranked
// personality context into the persona prompt. Used when the caller has
// no query embedding.
func (a *Agent) Chat(ctx context.Context, roomID string, history []core.Message) (string, error) {
	room, _ := a.catalog.Lookup(roomID)

	var snippets []string
	if a.knowledge != nil {
		for _, r := range a.knowledge.ChannelContext(room.ID, contextSnippets) {
			snippets = append(snippets, r.Text)
		}
	}
	return a.generate(ctx, rooms.EnhancedPrompt(room, snippets), history)
}

// ChatWithRAG replies in a room using semantic retrieval: the caller
// supplies a query embedding, and the closest personality fragments plus
// the user's relevant conversation history are folded in.
func (a *Agent) ChatWithRAG(ctx context.Context, roomID, userID string, embedding []float32, history []core.Message) (string, error) {
	room, _ := a.catalog.Lookup(roomID)

	var snippets []string
	if a.knowledge != nil && len(embedding) > 0 {
		for _, r := range a.knowledge.SearchPersonality(embedding, room.ID) {
			snippets = append(snippets, r.Text)
		}
	}
	if a.conversations != nil && userID != "" && len(embedding) > 0 {
		past := a.conversations.SearchHistory(userID, room.ID, embedding, conversation.DefaultRecent)
		for _, p := range past {
			snippets = append(snippets, "Earlier conversation: "+p)
		}
	}
	return a.generate(ctx, rooms.EnhancedPrompt(room, snippets), history)
}

// ChatWithKnowledge replies in a room with unified retrieval across the
// personality and wiki corpora, optionally adding keyword matches.
func (a *Agent) ChatWithKnowledge(ctx context.Context, roomID string, embedding []float32, keywords string, history []core.Message) (string, error) {
	room, _ := a.catalog.Lookup(roomID)

	var snippets []string
	if a.knowledge != nil {
		if len(embedding) > 0 {
			results, err := a.knowledge.SearchUnified(ctx, embedding, contextSnippets, nil)
			if err != nil {
				return "", fmt.Errorf("knowledge retrieval: %w", err)
			}
			for _, r := range results {
				snippets = append(snippets, labelResult(r))
			}
		}
		if keywords != "" {
			for _, r := range a.knowledge.SearchByText(keywords, contextSnippets, nil) {
				snippets = append(snippets, labelResult(r))
			}
		}
	}
	return a.generate(ctx, rooms.EnhancedPrompt(room, dedupe(snippets)), history)
}

// ChatWithUserContext replies in a room with the user's profile folded
// into the prompt: traits, interests, and recent history. In the friends
// room it additionally surfaces friend recommendations for the agent to
// relay.
func (a *Agent) ChatWithUserContext(ctx context.Context, roomID, userID string, history []core.Message) (string, error) {
	room, _ := a.catalog.Lookup(roomID)

	var snippets []string
	if a.profiles != nil && userID != "" {
		if prof, ok := a.profiles.Get(userID); ok {
			snippets = append(snippets, describeProfile(prof)...)
		}
	}
	if a.conversations != nil && userID != "" {
		for _, text := range a.conversations.Recent(userID, room.ID, conversation.DefaultRecent) {
			snippets = append(snippets, "Earlier conversation: "+text)
		}
	}
	if roomID == friendsRoom && a.recommender != nil && userID != "" {
		snippets = append(snippets, describeRecommendations(a.recommender, userID)...)
	}
	return a.generate(ctx, rooms.EnhancedPrompt(room, snippets), history)
}

func (a *Agent) generate(ctx context.Context, system string, history []core.Message) (string, error) {
	reply, err := a.generator.Generate(ctx, system, history)
	if err != nil {
		return "", fmt.Errorf("generate reply: %w", err)
	}
	log.Printf("[AGENT] generated %d chars", len(reply))
	return reply, nil
}

func labelResult(r core.SearchResult) string {
	if r.ContentType == "wiki" {
		return "Background knowledge: " + r.Text
	}
	return r.Text
}

func describeProfile(prof profile.UserProfile) []string {
	var out []string

	t := prof.PersonalityTraits
	out = append(out, fmt.Sprintf(
		"User personality (0-1): openness %.2f, conscientiousness %.2f, extraversion %.2f, agreeableness %.2f, neuroticism %.2f",
		t.Openness, t.Conscientiousness, t.Extraversion, t.Agreeableness, t.Neuroticism))

	if len(prof.Interests) > 0 {
		topics := make([]string, 0, len(prof.Interests))
		for i, interest := range prof.Interests {
			if i == contextSnippets {
				break
			}
			topics = append(topics, interest.Topic)
		}
		out = append(out, "User is interested in: "+strings.Join(topics, ", "))
	}
	return out
}

func describeRecommendations(r *friendship.Recommender, userID string) []string {
	recs, ok := r.Recommend(userID, 3)
	if !ok || len(recs) == 0 {
		return nil
	}

	var out []string
	for _, rec := range recs {
		line := fmt.Sprintf("Potential friend: %s (compatibility %.0f%%)", rec.UserID, rec.Score*100)
		if len(rec.CommonTopics) > 0 {
			line += ", shared interests: " + strings.Join(rec.CommonTopics, ", ")
		}
		out = append(out, line)
	}
	return out
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	var out []string
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
