package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"

	"github.com/kindredlabs/kindred/agent"
	"github.com/kindredlabs/kindred/conversation"
	"github.com/kindredlabs/kindred/core"
	"github.com/kindredlabs/kindred/friendship"
	"github.com/kindredlabs/kindred/knowledge"
	"github.com/kindredlabs/kindred/profile"
	"github.com/kindredlabs/kindred/server"
	"github.com/kindredlabs/kindred/store"
)

type echoGenerator struct{}

func (echoGenerator) Generate(ctx context.Context, system string, history []core.Message) (string, error) {
	return "reply to: " + system[:min(20, len(system))], nil
}

func newTestServer(t *testing.T) *server.Server {
	t.Helper()

	st := store.New()
	wiki, err := knowledge.NewWikiStore()
	if err != nil {
		t.Fatal(err)
	}
	svc, err := knowledge.NewService(st, wiki)
	if err != nil {
		t.Fatal(err)
	}
	agg := conversation.New(st)
	profiles := profile.New(agg, nil)
	rec := friendship.NewRecommender(profiles, agg)

	a := agent.New(echoGenerator{}, nil,
		agent.WithKnowledge(svc),
		agent.WithConversations(agg),
		agent.WithProfiles(profiles),
		agent.WithRecommender(rec),
	)

	return server.New(server.Config{
		Knowledge:     svc,
		Conversations: agg,
		Profiles:      profiles,
		Recommender:   rec,
		Agent:         a,
	})
}

func post(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
}

func TestPersonalityStoreAndSearch(t *testing.T) {
	srv := newTestServer(t)

	w := post(t, srv, "/v1/personality/store", map[string]any{
		"channel_id": "tech",
		"text":       "writes compilers for fun",
		"category":   "technical_preference",
		"importance": 0.9,
		"embedding":  []float32{1, 0},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("store status %d: %s", w.Code, w.Body.String())
	}
	var stored struct {
		ID string `json:"id"`
	}
	decodeBody(t, w, &stored)
	if stored.ID == "" {
		t.Fatal("no id returned")
	}

	w = post(t, srv, "/v1/personality/search", map[string]any{
		"channel_id": "tech",
		"embedding":  []float32{1, 0},
	})
	var search struct {
		Results []core.SearchResult `json:"results"`
	}
	decodeBody(t, w, &search)
	if len(search.Results) != 1 || search.Results[0].Text != "writes compilers for fun" {
		t.Errorf("search results = %+v", search.Results)
	}
}

func TestPersonalityBatchRejection(t *testing.T) {
	srv := newTestServer(t)

	w := post(t, srv, "/v1/personality/store_batch", map[string]any{
		"records": []map[string]any{
			{"channel_id": "c1", "text": "ok", "importance": 0.5, "embedding": []float32{1, 0}},
			{"channel_id": "c1", "text": "bad", "importance": 1.5, "embedding": []float32{1, 0}},
		},
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("invalid batch status %d, want 400", w.Code)
	}

	stats := get(t, srv, "/v1/knowledge/stats")
	var got knowledge.Stats
	decodeBody(t, stats, &got)
	if got.PersonalityEntries != 0 {
		t.Errorf("rejected batch persisted %d records", got.PersonalityEntries)
	}
}

func TestConversationEndpoints(t *testing.T) {
	srv := newTestServer(t)

	for i := 0; i < 3; i++ {
		w := post(t, srv, "/v1/conversations/store_chunk", map[string]any{
			"user_id":           "u1",
			"channel_id":        "c1",
			"chunk_index":       i,
			"conversation_text": "chunk text",
			"message_count":     10,
			"embedding":         []float32{1, 0},
		})
		if w.Code != http.StatusOK {
			t.Fatalf("chunk %d status %d: %s", i, w.Code, w.Body.String())
		}
	}

	w := post(t, srv, "/v1/conversations/next_index", map[string]any{
		"user_id": "u1", "channel_id": "c1",
	})
	var next struct {
		NextIndex uint32 `json:"next_index"`
	}
	decodeBody(t, w, &next)
	if next.NextIndex != 3 {
		t.Errorf("next_index = %d, want 3", next.NextIndex)
	}

	w = post(t, srv, "/v1/conversations/stats", map[string]any{
		"user_id": "u1", "channel_id": "c1",
	})
	var stats struct {
		ChunkCount   uint32 `json:"chunk_count"`
		MessageCount uint32 `json:"message_count"`
	}
	decodeBody(t, w, &stats)
	if stats.ChunkCount != 3 || stats.MessageCount != 30 {
		t.Errorf("stats = %+v, want (3, 30)", stats)
	}

	w = post(t, srv, "/v1/conversations/store_chunk", map[string]any{
		"user_id": "u1", "channel_id": "c1", "chunk_index": 7,
		"conversation_text": "bad", "message_count": 1, "embedding": []float32{1, 0},
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("out-of-order chunk status %d, want 400", w.Code)
	}
}

func TestProfileAndRecommendationEndpoints(t *testing.T) {
	srv := newTestServer(t)

	// No history: creation yields a null profile, not an error.
	w := post(t, srv, "/v1/profiles/create", map[string]any{"user_id": "ghost"})
	if w.Code != http.StatusOK {
		t.Fatalf("create status %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"profile":null`) {
		t.Errorf("ghost profile body = %s", w.Body.String())
	}

	// Unprofiled users get empty recommendations, not an error.
	w = post(t, srv, "/v1/friends/recommendations", map[string]any{"user_id": "ghost"})
	if w.Code != http.StatusOK {
		t.Fatalf("recommendations status %d", w.Code)
	}
	var recs struct {
		Recommendations []friendship.Recommendation `json:"recommendations"`
	}
	decodeBody(t, w, &recs)
	if len(recs.Recommendations) != 0 {
		t.Errorf("ghost recommendations = %+v", recs.Recommendations)
	}

	for _, user := range []string{"u1", "u2"} {
		w = post(t, srv, "/v1/conversations/store_chunk", map[string]any{
			"user_id": user, "channel_id": "tech", "chunk_index": 0,
			"conversation_text": "all about code and programming",
			"message_count":     5, "embedding": []float32{1, 0},
		})
		if w.Code != http.StatusOK {
			t.Fatal(w.Body.String())
		}
		w = post(t, srv, "/v1/profiles/create", map[string]any{"user_id": user})
		if w.Code != http.StatusOK || strings.Contains(w.Body.String(), `"profile":null`) {
			t.Fatalf("profile for %s: %s", user, w.Body.String())
		}
	}

	w = post(t, srv, "/v1/friends/similarity", map[string]any{"user_a": "u1", "user_b": "u2"})
	var sim struct {
		Score *float32 `json:"score"`
	}
	decodeBody(t, w, &sim)
	if sim.Score == nil || *sim.Score < 0.99 {
		t.Errorf("similarity = %v, want about 1.0 for twin users", sim.Score)
	}

	w = post(t, srv, "/v1/friends/recommendations", map[string]any{"user_id": "u1"})
	decodeBody(t, w, &recs)
	if len(recs.Recommendations) != 1 || recs.Recommendations[0].UserID != "u2" {
		t.Errorf("recommendations = %+v", recs.Recommendations)
	}
}

func TestRoomsEndpoint(t *testing.T) {
	srv := newTestServer(t)

	w := get(t, srv, "/v1/rooms")
	var got struct {
		Rooms []struct {
			ID string `json:"id"`
		} `json:"rooms"`
	}
	decodeBody(t, w, &got)
	if len(got.Rooms) != 11 {
		t.Errorf("rooms = %d, want 11", len(got.Rooms))
	}
}

func TestChatEndpoint(t *testing.T) {
	srv := newTestServer(t)

	w := post(t, srv, "/v1/chat", map[string]any{
		"room": "tech",
		"history": []map[string]any{
			{"role": "user", "content": "hello"},
		},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("chat status %d: %s", w.Code, w.Body.String())
	}
	var reply struct {
		Reply string `json:"reply"`
	}
	decodeBody(t, w, &reply)
	if !strings.HasPrefix(reply.Reply, "reply to: ") {
		t.Errorf("reply = %q", reply.Reply)
	}

	w = post(t, srv, "/v1/chat", map[string]any{
		"history": []map[string]any{{"role": "oracle", "content": "hm"}},
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown role status %d, want 400", w.Code)
	}
}

func TestChatStream(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/chat/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	err = conn.WriteJSON(map[string]any{
		"mode": "default",
		"history": []map[string]any{
			{"role": "user", "content": "hello"},
		},
	})
	if err != nil {
		t.Fatalf("write: %v", err)
	}

	var got struct {
		Reply string `json:"reply"`
		Error string `json:"error"`
	}
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Error != "" || !strings.HasPrefix(got.Reply, "reply to: ") {
		t.Errorf("stream reply = %+v", got)
	}
}
