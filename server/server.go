// Package server exposes the backend over JSON HTTP, plus a websocket
// chat stream. It is a thin gateway: every handler validates input,
// calls one core operation, and encodes the result. Mutating operations
// are serialized behind a single write lock; reads run concurrently.
package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"

	"github.com/kindredlabs/kindred/agent"
	"github.com/kindredlabs/kindred/conversation"
	"github.com/kindredlabs/kindred/core"
	"github.com/kindredlabs/kindred/friendship"
	"github.com/kindredlabs/kindred/knowledge"
	"github.com/kindredlabs/kindred/profile"
	"github.com/kindredlabs/kindred/rooms"
	"github.com/kindredlabs/kindred/store"
)

// Server routes the RPC surface. Construct with New; the zero value is
// not usable.
type Server struct {
	mux *http.ServeMux

	// writeMu serializes every state-mutating operation, matching the
	// single-writer semantics the stores assume across components.
	writeMu sync.Mutex

	knowledge     *knowledge.Service
	conversations *conversation.Aggregator
	profiles      *profile.Profiler
	recommender   *friendship.Recommender
	catalog       *rooms.Catalog
	agent         *agent.Agent
}

// Config carries the wired components.
type Config struct {
	Knowledge     *knowledge.Service
	Conversations *conversation.Aggregator
	Profiles      *profile.Profiler
	Recommender   *friendship.Recommender
	Catalog       *rooms.Catalog
	Agent         *agent.Agent
}

// New builds the server and registers every route.
func New(cfg Config) *Server {
	s := &Server{
		mux:           http.NewServeMux(),
		knowledge:     cfg.Knowledge,
		conversations: cfg.Conversations,
		profiles:      cfg.Profiles,
		recommender:   cfg.Recommender,
		catalog:       cfg.Catalog,
		agent:         cfg.Agent,
	}
	if s.catalog == nil {
		s.catalog = rooms.Defaults()
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /v1/personality/store", s.handleStorePersonality)
	s.mux.HandleFunc("POST /v1/personality/store_batch", s.handleStorePersonalityBatch)
	s.mux.HandleFunc("POST /v1/personality/search", s.handleSearchPersonality)

	s.mux.HandleFunc("POST /v1/knowledge/search_unified", s.handleSearchUnified)
	s.mux.HandleFunc("POST /v1/knowledge/search_text", s.handleSearchByText)
	s.mux.HandleFunc("POST /v1/knowledge/search_wiki", s.handleSearchWiki)
	s.mux.HandleFunc("POST /v1/knowledge/wiki", s.handleAddWiki)
	s.mux.HandleFunc("GET /v1/knowledge/stats", s.handleKnowledgeStats)
	s.mux.HandleFunc("GET /v1/knowledge/categories", s.handleKnowledgeCategories)

	s.mux.HandleFunc("POST /v1/conversations/store_chunk", s.handleStoreChunk)
	s.mux.HandleFunc("POST /v1/conversations/next_index", s.handleNextChunkIndex)
	s.mux.HandleFunc("POST /v1/conversations/recent", s.handleRecentConversations)
	s.mux.HandleFunc("POST /v1/conversations/list", s.handleListConversations)
	s.mux.HandleFunc("POST /v1/conversations/stats", s.handleConversationStats)
	s.mux.HandleFunc("POST /v1/conversations/search", s.handleSearchConversations)

	s.mux.HandleFunc("POST /v1/profiles/create", s.handleCreateProfile)
	s.mux.HandleFunc("POST /v1/profiles/get", s.handleGetProfile)
	s.mux.HandleFunc("GET /v1/profiles", s.handleAllProfiles)
	s.mux.HandleFunc("POST /v1/profiles/analyze_personality", s.handleAnalyzePersonality)
	s.mux.HandleFunc("POST /v1/profiles/analyze_interests", s.handleAnalyzeInterests)

	s.mux.HandleFunc("POST /v1/friends/similarity", s.handleSimilarity)
	s.mux.HandleFunc("POST /v1/friends/recommendations", s.handleRecommendations)

	s.mux.HandleFunc("GET /v1/rooms", s.handleRooms)

	s.mux.HandleFunc("POST /v1/chat", s.handleChat)
	s.mux.HandleFunc("POST /v1/chat/default", s.handleChatDefault)
	s.mux.HandleFunc("POST /v1/chat/rag", s.handleChatRAG)
	s.mux.HandleFunc("POST /v1/chat/knowledge", s.handleChatKnowledge)
	s.mux.HandleFunc("POST /v1/chat/user_context", s.handleChatUserContext)
	s.mux.HandleFunc("GET /v1/chat/stream", s.handleChatStream)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// --- personality ---

type personalityRequest struct {
	ChannelID  string    `json:"channel_id"`
	Text       string    `json:"text"`
	Category   string    `json:"category"`
	Importance float32   `json:"importance"`
	Embedding  []float32 `json:"embedding"`
}

func (p personalityRequest) record() store.PersonalityRecord {
	return store.PersonalityRecord{
		ChannelID:  p.ChannelID,
		Text:       p.Text,
		Category:   p.Category,
		Importance: p.Importance,
		Embedding:  p.Embedding,
	}
}

func (s *Server) handleStorePersonality(w http.ResponseWriter, r *http.Request) {
	var req personalityRequest
	if !decode(w, r, &req) {
		return
	}

	s.writeMu.Lock()
	id, err := s.knowledge.AddPersonality(req.record())
	s.writeMu.Unlock()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]string{"id": id})
}

func (s *Server) handleStorePersonalityBatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Records []personalityRequest `json:"records"`
	}
	if !decode(w, r, &req) {
		return
	}

	batch := make([]store.PersonalityRecord, 0, len(req.Records))
	for _, p := range req.Records {
		batch = append(batch, p.record())
	}

	s.writeMu.Lock()
	ids, err := s.knowledge.AddPersonalityBatch(batch)
	s.writeMu.Unlock()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string][]string{"ids": ids})
}

func (s *Server) handleSearchPersonality(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ChannelID string    `json:"channel_id"`
		Embedding []float32 `json:"embedding"`
	}
	if !decode(w, r, &req) {
		return
	}
	writeJSON(w, map[string]any{
		"results": s.knowledge.SearchPersonality(req.Embedding, req.ChannelID),
	})
}

// --- knowledge ---

func (s *Server) handleSearchUnified(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Embedding  []float32 `json:"embedding"`
		Categories []string  `json:"categories,omitempty"`
		Limit      *int      `json:"limit,omitempty"`
	}
	if !decode(w, r, &req) {
		return
	}

	results, err := s.knowledge.SearchUnified(r.Context(), req.Embedding, intOrZero(req.Limit), req.Categories)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"results": results})
}

func (s *Server) handleSearchByText(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Keywords   string   `json:"keywords"`
		Categories []string `json:"categories,omitempty"`
		Limit      *int     `json:"limit,omitempty"`
	}
	if !decode(w, r, &req) {
		return
	}
	writeJSON(w, map[string]any{
		"results": s.knowledge.SearchByText(req.Keywords, intOrZero(req.Limit), req.Categories),
	})
}

func (s *Server) handleSearchWiki(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Embedding []float32 `json:"embedding"`
		Category  *string   `json:"category,omitempty"`
		Limit     *int      `json:"limit,omitempty"`
	}
	if !decode(w, r, &req) {
		return
	}

	categories := []string{"wiki"}
	if req.Category != nil {
		categories = []string{knowledge.WikiCategoryPrefix + *req.Category}
	}
	results, err := s.knowledge.SearchUnified(r.Context(), req.Embedding, intOrZero(req.Limit), categories)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"results": results})
}

func (s *Server) handleAddWiki(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Entries []knowledge.WikiEntry `json:"entries"`
	}
	if !decode(w, r, &req) {
		return
	}

	s.writeMu.Lock()
	err := s.knowledge.AddWiki(r.Context(), req.Entries)
	s.writeMu.Unlock()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]int{"loaded": len(req.Entries)})
}

func (s *Server) handleKnowledgeStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.knowledge.Stats())
}

func (s *Server) handleKnowledgeCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"categories": s.knowledge.Categories()})
}

// --- conversations ---

type conversationPair struct {
	UserID    string `json:"user_id"`
	ChannelID string `json:"channel_id"`
}

func (s *Server) handleStoreChunk(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID           string    `json:"user_id"`
		ChannelID        string    `json:"channel_id"`
		ChunkIndex       uint32    `json:"chunk_index"`
		ConversationText string    `json:"conversation_text"`
		Summary          string    `json:"summary"`
		MessageCount     uint32    `json:"message_count"`
		Embedding        []float32 `json:"embedding"`
	}
	if !decode(w, r, &req) {
		return
	}

	s.writeMu.Lock()
	id, err := s.conversations.StoreChunk(store.ConversationRecord{
		UserID:           req.UserID,
		ChannelID:        req.ChannelID,
		ChunkIndex:       req.ChunkIndex,
		ConversationText: req.ConversationText,
		Summary:          req.Summary,
		MessageCount:     req.MessageCount,
		Embedding:        req.Embedding,
	})
	s.writeMu.Unlock()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]string{"id": id})
}

func (s *Server) handleNextChunkIndex(w http.ResponseWriter, r *http.Request) {
	var req conversationPair
	if !decode(w, r, &req) {
		return
	}
	writeJSON(w, map[string]uint32{
		"next_index": s.conversations.NextChunkIndex(req.UserID, req.ChannelID),
	})
}

func (s *Server) handleRecentConversations(w http.ResponseWriter, r *http.Request) {
	var req struct {
		conversationPair
		Limit *int `json:"limit,omitempty"`
	}
	if !decode(w, r, &req) {
		return
	}
	writeJSON(w, map[string]any{
		"conversations": s.conversations.Recent(req.UserID, req.ChannelID, intOrZero(req.Limit)),
	})
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	var req conversationPair
	if !decode(w, r, &req) {
		return
	}
	writeJSON(w, map[string]any{
		"conversations": s.conversations.History(req.UserID, req.ChannelID),
	})
}

func (s *Server) handleConversationStats(w http.ResponseWriter, r *http.Request) {
	var req conversationPair
	if !decode(w, r, &req) {
		return
	}
	chunks, messages := s.conversations.Stats(req.UserID, req.ChannelID)
	writeJSON(w, map[string]uint32{
		"chunk_count":   chunks,
		"message_count": messages,
	})
}

func (s *Server) handleSearchConversations(w http.ResponseWriter, r *http.Request) {
	var req struct {
		conversationPair
		Embedding []float32 `json:"embedding"`
		Limit     *int      `json:"limit,omitempty"`
	}
	if !decode(w, r, &req) {
		return
	}
	writeJSON(w, map[string]any{
		"conversations": s.conversations.SearchHistory(req.UserID, req.ChannelID, req.Embedding, intOrZero(req.Limit)),
	})
}

// --- profiles ---

type userRequest struct {
	UserID string `json:"user_id"`
}

func (s *Server) handleCreateProfile(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if !decode(w, r, &req) {
		return
	}

	s.writeMu.Lock()
	prof, ok := s.profiles.CreateOrRefresh(req.UserID)
	s.writeMu.Unlock()
	if !ok {
		// No history is a normal condition, not a failure.
		writeJSON(w, map[string]any{"profile": nil})
		return
	}
	writeJSON(w, map[string]any{"profile": prof})
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if !decode(w, r, &req) {
		return
	}
	if prof, ok := s.profiles.Get(req.UserID); ok {
		writeJSON(w, map[string]any{"profile": prof})
		return
	}
	writeJSON(w, map[string]any{"profile": nil})
}

func (s *Server) handleAllProfiles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"profiles": s.profiles.All()})
}

func (s *Server) handleAnalyzePersonality(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if !decode(w, r, &req) {
		return
	}
	if traits, ok := s.profiles.AnalyzeTraits(req.UserID); ok {
		writeJSON(w, map[string]any{"traits": traits})
		return
	}
	writeJSON(w, map[string]any{"traits": nil})
}

func (s *Server) handleAnalyzeInterests(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if !decode(w, r, &req) {
		return
	}
	writeJSON(w, map[string]any{
		"interests": s.profiles.AnalyzeInterests(req.UserID),
	})
}

// --- friendship ---

func (s *Server) handleSimilarity(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserA string `json:"user_a"`
		UserB string `json:"user_b"`
	}
	if !decode(w, r, &req) {
		return
	}
	if score, ok := s.recommender.Similarity(req.UserA, req.UserB); ok {
		writeJSON(w, map[string]any{"score": score})
		return
	}
	writeJSON(w, map[string]any{"score": nil})
}

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	var req struct {
		userRequest
		Limit *int `json:"limit,omitempty"`
	}
	if !decode(w, r, &req) {
		return
	}

	recs, ok := s.recommender.Recommend(req.UserID, intOrZero(req.Limit))
	if !ok {
		// Unprofiled users get an empty list, never an error.
		writeJSON(w, map[string]any{"recommendations": []friendship.Recommendation{}})
		return
	}
	if recs == nil {
		recs = []friendship.Recommendation{}
	}
	writeJSON(w, map[string]any{"recommendations": recs})
}

// --- rooms and chat ---

func (s *Server) handleRooms(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"rooms": s.catalog.List()})
}

type chatRequest struct {
	Room      *string       `json:"room,omitempty"`
	UserID    *string       `json:"user_id,omitempty"`
	Embedding []float32     `json:"embedding,omitempty"`
	Keywords  *string       `json:"keywords,omitempty"`
	History   []wireMessage `json:"history"`
}

func (s *Server) chat(w http.ResponseWriter, r *http.Request, run func(req chatRequest) (string, error)) {
	var req chatRequest
	if !decode(w, r, &req) {
		return
	}
	if _, err := decodeHistory(req.History); err != nil {
		writeStatus(w, http.StatusBadRequest, err)
		return
	}

	reply, err := run(req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]string{"reply": reply})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	s.chat(w, r, func(req chatRequest) (string, error) {
		history, _ := decodeHistory(req.History)
		return s.agent.Chat(r.Context(), strOrEmpty(req.Room), history)
	})
}

func (s *Server) handleChatDefault(w http.ResponseWriter, r *http.Request) {
	s.chat(w, r, func(req chatRequest) (string, error) {
		history, _ := decodeHistory(req.History)
		return s.agent.ChatDefault(r.Context(), history)
	})
}

func (s *Server) handleChatRAG(w http.ResponseWriter, r *http.Request) {
	s.chat(w, r, func(req chatRequest) (string, error) {
		history, _ := decodeHistory(req.History)
		return s.agent.ChatWithRAG(r.Context(), strOrEmpty(req.Room), principal(req.UserID), req.Embedding, history)
	})
}

func (s *Server) handleChatKnowledge(w http.ResponseWriter, r *http.Request) {
	s.chat(w, r, func(req chatRequest) (string, error) {
		history, _ := decodeHistory(req.History)
		return s.agent.ChatWithKnowledge(r.Context(), strOrEmpty(req.Room), req.Embedding, strOrEmpty(req.Keywords), history)
	})
}

func (s *Server) handleChatUserContext(w http.ResponseWriter, r *http.Request) {
	s.chat(w, r, func(req chatRequest) (string, error) {
		history, _ := decodeHistory(req.History)
		return s.agent.ChatWithUserContext(r.Context(), strOrEmpty(req.Room), principal(req.UserID), history)
	})
}

// --- helpers ---

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeStatus(w, http.StatusBadRequest, err)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[HTTP] encode response: %v", err)
	}
}

func writeStatus(w http.ResponseWriter, code int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(errorBody{Error: err.Error()})
}

// writeError maps validation failures to 400 and everything else to 500.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrDimensionMismatch),
		errors.Is(err, store.ErrEmptyVector),
		errors.Is(err, store.ErrInvalidRange),
		errors.Is(err, store.ErrEmptyInput),
		errors.Is(err, conversation.ErrOutOfOrderChunk):
		writeStatus(w, http.StatusBadRequest, err)
	default:
		writeStatus(w, http.StatusInternalServerError, err)
	}
}

func intOrZero(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

func strOrEmpty(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// principal resolves the optional caller identity for chat paths,
// defaulting to the anonymous principal.
func principal(p *string) string {
	if p == nil || *p == "" {
		return core.Anonymous.String()
	}
	return *p
}
