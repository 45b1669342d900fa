package conversation_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/kindredlabs/kindred/conversation"
	"github.com/kindredlabs/kindred/store"
)

func chunk(user, channel string, index uint32, text string, messages uint32) store.ConversationRecord {
	return store.ConversationRecord{
		UserID:           user,
		ChannelID:        channel,
		ChunkIndex:       index,
		ConversationText: text,
		MessageCount:     messages,
		Embedding:        []float32{float32(index + 1), 1},
	}
}

func TestStoreChunk_SequenceScenario(t *testing.T) {
	agg := conversation.New(store.New())

	// Store chunks 0, 1, 2 for (u1, c1).
	for i := uint32(0); i < 3; i++ {
		if got := agg.NextChunkIndex("u1", "c1"); got != i {
			t.Fatalf("NextChunkIndex before chunk %d = %d", i, got)
		}
		if _, err := agg.StoreChunk(chunk("u1", "c1", i, fmt.Sprintf("chunk %d", i), 10)); err != nil {
			t.Fatalf("StoreChunk %d: %v", i, err)
		}
	}

	if got := agg.NextChunkIndex("u1", "c1"); got != 3 {
		t.Errorf("NextChunkIndex = %d, want 3", got)
	}

	chunks, messages := agg.Stats("u1", "c1")
	if chunks != 3 || messages != 30 {
		t.Errorf("Stats = (%d, %d), want (3, 30)", chunks, messages)
	}
}

func TestStoreChunk_OutOfOrderRejected(t *testing.T) {
	agg := conversation.New(store.New())

	if _, err := agg.StoreChunk(chunk("u1", "c1", 0, "first", 5)); err != nil {
		t.Fatalf("StoreChunk: %v", err)
	}

	// Skipping ahead and replaying are both rejected.
	for _, bad := range []uint32{2, 0, 5} {
		_, err := agg.StoreChunk(chunk("u1", "c1", bad, "bad", 5))
		if !errors.Is(err, conversation.ErrOutOfOrderChunk) {
			t.Errorf("index %d: got %v, want ErrOutOfOrderChunk", bad, err)
		}
	}

	// The counter must be unchanged by rejections.
	if got := agg.NextChunkIndex("u1", "c1"); got != 1 {
		t.Errorf("counter moved after rejected writes: %d, want 1", got)
	}
}

func TestStoreChunk_InvalidVectorLeavesCounter(t *testing.T) {
	agg := conversation.New(store.New())

	rec := chunk("u1", "c1", 0, "first", 5)
	rec.Embedding = nil
	if _, err := agg.StoreChunk(rec); !errors.Is(err, store.ErrEmptyVector) {
		t.Fatalf("got %v, want ErrEmptyVector", err)
	}
	if got := agg.NextChunkIndex("u1", "c1"); got != 0 {
		t.Errorf("counter moved after failed store: %d, want 0", got)
	}
}

func TestCounters_IndependentPerPair(t *testing.T) {
	agg := conversation.New(store.New())

	if _, err := agg.StoreChunk(chunk("u1", "c1", 0, "a", 1)); err != nil {
		t.Fatal(err)
	}
	if _, err := agg.StoreChunk(chunk("u1", "c2", 0, "b", 1)); err != nil {
		t.Fatal(err)
	}
	if _, err := agg.StoreChunk(chunk("u2", "c1", 0, "c", 1)); err != nil {
		t.Fatal(err)
	}

	if agg.NextChunkIndex("u1", "c1") != 1 ||
		agg.NextChunkIndex("u1", "c2") != 1 ||
		agg.NextChunkIndex("u2", "c1") != 1 {
		t.Error("counters are not independent per (user, channel)")
	}
}

func TestRecent_NewestFirstAndSummaryFallback(t *testing.T) {
	agg := conversation.New(store.New())

	first := chunk("u1", "c1", 0, "full text zero", 1)
	first.Summary = "summary zero"
	if _, err := agg.StoreChunk(first); err != nil {
		t.Fatal(err)
	}
	if _, err := agg.StoreChunk(chunk("u1", "c1", 1, "full text one", 1)); err != nil {
		t.Fatal(err)
	}
	if _, err := agg.StoreChunk(chunk("u1", "c1", 2, "full text two", 1)); err != nil {
		t.Fatal(err)
	}

	got := agg.Recent("u1", "c1", 2)
	if len(got) != 2 {
		t.Fatalf("got %d entries, want 2", len(got))
	}
	if got[0] != "full text two" || got[1] != "full text one" {
		t.Errorf("not newest first: %v", got)
	}

	all := agg.Recent("u1", "c1", 10)
	if all[2] != "summary zero" {
		t.Errorf("summary should be preferred over full text, got %q", all[2])
	}
}

func TestSearchHistory_RanksBySimilarity(t *testing.T) {
	agg := conversation.New(store.New())

	a := chunk("u1", "c1", 0, "about cooking", 1)
	a.Embedding = []float32{1, 0}
	b := chunk("u1", "c1", 1, "about compilers", 1)
	b.Embedding = []float32{0, 1}
	if _, err := agg.StoreChunk(a); err != nil {
		t.Fatal(err)
	}
	if _, err := agg.StoreChunk(b); err != nil {
		t.Fatal(err)
	}

	got := agg.SearchHistory("u1", "c1", []float32{0, 1}, 1)
	if len(got) != 1 || got[0] != "about compilers" {
		t.Errorf("SearchHistory = %v, want the compilers chunk", got)
	}
}

func TestQueries_EmptyHistory(t *testing.T) {
	agg := conversation.New(store.New())

	if got := agg.Recent("ghost", "c1", 5); len(got) != 0 {
		t.Errorf("Recent on empty history = %v", got)
	}
	if got := agg.SearchHistory("ghost", "c1", []float32{1}, 5); len(got) != 0 {
		t.Errorf("SearchHistory on empty history = %v", got)
	}
	chunks, messages := agg.Stats("ghost", "c1")
	if chunks != 0 || messages != 0 {
		t.Errorf("Stats on empty history = (%d, %d)", chunks, messages)
	}
}
