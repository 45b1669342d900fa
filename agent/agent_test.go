package agent_test

import (
	"context"
	"strings"
	"testing"

	"github.com/kindredlabs/kindred/agent"
	"github.com/kindredlabs/kindred/conversation"
	"github.com/kindredlabs/kindred/core"
	"github.com/kindredlabs/kindred/friendship"
	"github.com/kindredlabs/kindred/knowledge"
	"github.com/kindredlabs/kindred/profile"
	"github.com/kindredlabs/kindred/store"
)

// captureGenerator records what the agent asked for and returns a fixed
// reply.
type captureGenerator struct {
	system  string
	history []core.Message
}

func (c *captureGenerator) Generate(ctx context.Context, system string, history []core.Message) (string, error) {
	c.system = system
	c.history = history
	return "canned reply", nil
}

func newKnowledge(t *testing.T) *knowledge.Service {
	t.Helper()
	wiki, err := knowledge.NewWikiStore()
	if err != nil {
		t.Fatal(err)
	}
	svc, err := knowledge.NewService(store.New(), wiki)
	if err != nil {
		t.Fatal(err)
	}
	return svc
}

func userTurn(text string) []core.Message {
	return []core.Message{core.UserMessage{Content: text}}
}

func TestChatDefault_GeneralPersonaNoRetrieval(t *testing.T) {
	gen := &captureGenerator{}
	a := agent.New(gen, nil)

	reply, err := a.ChatDefault(context.Background(), userTurn("hi"))
	if err != nil {
		t.Fatalf("ChatDefault: %v", err)
	}
	if reply != "canned reply" {
		t.Errorf("reply = %q", reply)
	}
	if !strings.Contains(gen.system, "Kindred") {
		t.Errorf("system prompt missing persona: %q", gen.system)
	}
	if strings.Contains(gen.system, "Relevant context") {
		t.Errorf("default chat folded context: %q", gen.system)
	}
}

func TestChat_FoldsChannelContext(t *testing.T) {
	svc := newKnowledge(t)
	if _, err := svc.AddPersonality(store.PersonalityRecord{
		ChannelID:  "tech",
		Text:       "prefers functional languages",
		Category:   "technical_preference",
		Importance: 0.9,
		Embedding:  []float32{1, 0},
	}); err != nil {
		t.Fatal(err)
	}

	gen := &captureGenerator{}
	a := agent.New(gen, nil, agent.WithKnowledge(svc))

	if _, err := a.Chat(context.Background(), "tech", userTurn("what language?")); err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if !strings.Contains(gen.system, "prefers functional languages") {
		t.Errorf("channel context not folded: %q", gen.system)
	}
}

func TestChat_UnknownRoomFallsBack(t *testing.T) {
	gen := &captureGenerator{}
	a := agent.New(gen, nil)

	if _, err := a.Chat(context.Background(), "no-such-room", userTurn("hi")); err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if !strings.Contains(gen.system, "general room") {
		t.Errorf("unknown room did not fall back to general: %q", gen.system)
	}
}

func TestChatWithRAG_FoldsSemanticHits(t *testing.T) {
	svc := newKnowledge(t)
	if _, err := svc.AddPersonality(store.PersonalityRecord{
		ChannelID:  "music",
		Text:       "grew up on shoegaze",
		Category:   "music_preference",
		Importance: 0.8,
		Embedding:  []float32{0, 1},
	}); err != nil {
		t.Fatal(err)
	}

	st := store.New()
	agg := conversation.New(st)
	if _, err := agg.StoreChunk(store.ConversationRecord{
		UserID:           "u1",
		ChannelID:        "music",
		ChunkIndex:       0,
		ConversationText: "talked about guitar pedals",
		MessageCount:     4,
		Embedding:        []float32{0, 1},
	}); err != nil {
		t.Fatal(err)
	}

	gen := &captureGenerator{}
	a := agent.New(gen, nil, agent.WithKnowledge(svc), agent.WithConversations(agg))

	_, err := a.ChatWithRAG(context.Background(), "music", "u1", []float32{0, 1}, userTurn("any recs?"))
	if err != nil {
		t.Fatalf("ChatWithRAG: %v", err)
	}
	if !strings.Contains(gen.system, "grew up on shoegaze") {
		t.Errorf("personality hit not folded: %q", gen.system)
	}
	if !strings.Contains(gen.system, "guitar pedals") {
		t.Errorf("conversation history not folded: %q", gen.system)
	}
}

func TestChatWithKnowledge_FoldsWikiAndKeywords(t *testing.T) {
	ctx := context.Background()
	svc := newKnowledge(t)
	if err := svc.AddWiki(ctx, []knowledge.WikiEntry{
		{Title: "Synthesizers", Text: "analog synthesizers shape sound with voltage", Category: "music", Embedding: []float32{0, 1}},
	}); err != nil {
		t.Fatal(err)
	}

	gen := &captureGenerator{}
	a := agent.New(gen, nil, agent.WithKnowledge(svc))

	_, err := a.ChatWithKnowledge(ctx, "music", []float32{0, 1}, "voltage", userTurn("how do synths work?"))
	if err != nil {
		t.Fatalf("ChatWithKnowledge: %v", err)
	}
	if !strings.Contains(gen.system, "Background knowledge: analog synthesizers") {
		t.Errorf("wiki hit not folded: %q", gen.system)
	}
	// The same article matches both semantically and by keyword; it must
	// appear once.
	if strings.Count(gen.system, "analog synthesizers") != 1 {
		t.Errorf("duplicate context lines: %q", gen.system)
	}
}

func TestChatWithUserContext_ProfileAndFriends(t *testing.T) {
	st := store.New()
	agg := conversation.New(st)
	for i, user := range []string{"u1", "u2"} {
		if _, err := agg.StoreChunk(store.ConversationRecord{
			UserID:           user,
			ChannelID:        "tech",
			ChunkIndex:       0,
			ConversationText: "we love programming and code",
			MessageCount:     5,
			Embedding:        []float32{float32(1), 0},
		}); err != nil {
			t.Fatalf("chunk %d: %v", i, err)
		}
	}

	profiles := profile.New(agg, nil)
	for _, user := range []string{"u1", "u2"} {
		if _, ok := profiles.CreateOrRefresh(user); !ok {
			t.Fatalf("no profile for %s", user)
		}
	}
	rec := friendship.NewRecommender(profiles, agg)

	gen := &captureGenerator{}
	a := agent.New(gen, nil,
		agent.WithConversations(agg),
		agent.WithProfiles(profiles),
		agent.WithRecommender(rec),
	)

	_, err := a.ChatWithUserContext(context.Background(), "friends", "u1", userTurn("anyone like me here?"))
	if err != nil {
		t.Fatalf("ChatWithUserContext: %v", err)
	}
	if !strings.Contains(gen.system, "User personality") {
		t.Errorf("profile traits not folded: %q", gen.system)
	}
	if !strings.Contains(gen.system, "Potential friend: u2") {
		t.Errorf("friend recommendation not folded: %q", gen.system)
	}

	// Outside the friends room, no recommendations.
	gen2 := &captureGenerator{}
	a2 := agent.New(gen2, nil,
		agent.WithConversations(agg),
		agent.WithProfiles(profiles),
		agent.WithRecommender(rec),
	)
	if _, err := a2.ChatWithUserContext(context.Background(), "tech", "u1", userTurn("hi")); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(gen2.system, "Potential friend") {
		t.Errorf("recommendations leaked outside the friends room: %q", gen2.system)
	}
}
