package knowledge

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/dgraph-io/ristretto"

	"github.com/kindredlabs/kindred/core"
	"github.com/kindredlabs/kindred/store"
	"github.com/kindredlabs/kindred/vector"
)

// WikiCategoryPrefix namespaces wiki categories in unified results so
// they never collide with personality categories.
const WikiCategoryPrefix = "wiki_"

// personalityTopK caps channel-scoped personality search.
const personalityTopK = 5

const (
	cacheKeyStats      = "stats"
	cacheKeyCategories = "categories"
)

// Stats summarizes the knowledge corpora.
type Stats struct {
	PersonalityEntries int `json:"personality_entries"`
	WikiEntries        int `json:"wiki_entries"`
	Categories         int `json:"categories"`
}

// Service fronts both corpora behind one search surface. Derived views
// (stats, category listings) are cached and invalidated on every write.
type Service struct {
	store *store.Store
	wiki  *WikiStore
	cache *ristretto.Cache

	// gen counts writes. A cache repopulation only commits if no write
	// landed between its snapshot and its Set.
	gen atomic.Uint64
}

// NewService wires the record store and wiki store together.
func NewService(st *store.Store, wiki *WikiStore) (*Service, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e4,
		MaxCost:     1 << 20,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create knowledge cache: %w", err)
	}
	return &Service{store: st, wiki: wiki, cache: cache}, nil
}

// AddPersonality stores one personality fragment and invalidates the
// derived views. Returns the generated record id.
func (s *Service) AddPersonality(rec store.PersonalityRecord) (string, error) {
	id, err := s.store.PutPersonality(rec)
	if err != nil {
		return "", err
	}
	s.invalidate()
	return id, nil
}

// AddPersonalityBatch stores a batch atomically, then invalidates the
// derived views. Returns the generated ids in batch order.
func (s *Service) AddPersonalityBatch(batch []store.PersonalityRecord) ([]string, error) {
	ids, err := s.store.PutPersonalityBatch(batch)
	if err != nil {
		return nil, err
	}
	s.invalidate()
	return ids, nil
}

// AddWiki bulk-loads wiki articles, then invalidates the derived views.
func (s *Service) AddWiki(ctx context.Context, batch []WikiEntry) error {
	if err := s.wiki.Add(ctx, batch); err != nil {
		return err
	}
	s.invalidate()
	return nil
}

// SearchUnified queries both corpora with one embedding and merges the
// hits by similarity. Categories restrict the search: plain names match
// personality fragments, names carrying the wiki prefix match wiki
// articles. An empty category list searches everything.
func (s *Service) SearchUnified(ctx context.Context, embedding []float32, limit int, categories []string) ([]core.SearchResult, error) {
	if len(embedding) == 0 {
		return nil, store.ErrEmptyVector
	}
	if limit <= 0 {
		limit = vector.DefaultLimit
	}

	personalityCats, wikiCats, wikiAll := splitCategories(categories)
	searchWiki := len(categories) == 0 || len(wikiCats) > 0 || wikiAll
	searchPersonality := len(categories) == 0 || len(personalityCats) > 0

	var merged []core.SearchResult

	if searchPersonality {
		records := s.store.ListPersonality(store.Filter{})
		byID := make(map[string]store.PersonalityRecord, len(records))
		candidates := make([]vector.Candidate, 0, len(records))
		for _, r := range records {
			byID[r.ID] = r
			candidates = append(candidates, vector.Candidate{
				ID:       r.ID,
				Category: r.Category,
				Vector:   r.Embedding,
			})
		}
		matches := vector.Search(embedding, candidates, vector.Options{
			Limit:      limit,
			Categories: personalityCats,
		})
		for _, m := range matches {
			r := byID[m.ID]
			merged = append(merged, core.SearchResult{
				Text:        r.Text,
				ContentType: "personality",
				Category:    r.Category,
				Importance:  r.Importance,
				Similarity:  m.Similarity,
			})
		}
	}

	if searchWiki {
		if wikiAll {
			wikiCats = nil
		}
		wikiMatches, err := s.searchWiki(ctx, embedding, limit, wikiCats)
		if err != nil {
			return nil, err
		}
		for _, m := range wikiMatches {
			merged = append(merged, core.SearchResult{
				Text:        m.Entry.Text,
				ContentType: "wiki",
				Category:    WikiCategoryPrefix + m.Entry.Category,
				Importance:  1,
				Similarity:  m.Similarity,
			})
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Similarity > merged[j].Similarity
	})
	if len(merged) > limit {
		merged = merged[:limit]
	}

	log.Printf("[KNOW] unified search: %d results (limit %d)", len(merged), limit)
	return merged, nil
}

func (s *Service) searchWiki(ctx context.Context, embedding []float32, limit int, categories []string) ([]WikiMatch, error) {
	if len(categories) == 0 {
		return s.wiki.Search(ctx, embedding, limit, "")
	}
	var out []WikiMatch
	for _, cat := range categories {
		matches, err := s.wiki.Search(ctx, embedding, limit, cat)
		if err != nil {
			return nil, err
		}
		out = append(out, matches...)
	}
	return out, nil
}

// SearchByText scans both corpora for the query's whitespace-separated
// keywords, each matched as a case-insensitive substring. Hits are
// ranked by total occurrence count across keywords, newest first on
// ties. Keyword hits carry zero similarity; they were never scored
// against an embedding. The category filter follows the same convention
// as SearchUnified.
func (s *Service) SearchByText(query string, limit int, categories []string) []core.SearchResult {
	keywords := strings.Fields(strings.ToLower(query))
	if len(keywords) == 0 {
		return nil
	}
	if limit <= 0 {
		limit = vector.DefaultLimit
	}

	personalityCats, wikiCats, wikiAll := splitCategories(categories)
	scanWiki := len(categories) == 0 || len(wikiCats) > 0 || wikiAll
	scanPersonality := len(categories) == 0 || len(personalityCats) > 0

	personalitySet := toSet(personalityCats)
	wikiSet := toSet(wikiCats)

	type hit struct {
		result    core.SearchResult
		count     int
		createdAt int64
	}
	var hits []hit

	for _, r := range s.store.ListPersonality(store.Filter{}) {
		if !scanPersonality {
			break
		}
		if len(personalitySet) > 0 {
			if _, ok := personalitySet[r.Category]; !ok {
				continue
			}
		}
		n := countOccurrences(r.Text, keywords)
		if n == 0 {
			continue
		}
		hits = append(hits, hit{
			result: core.SearchResult{
				Text:        r.Text,
				ContentType: "personality",
				Category:    r.Category,
				Importance:  r.Importance,
			},
			count:     n,
			createdAt: r.CreatedAt,
		})
	}

	for _, e := range s.wiki.All() {
		if !scanWiki {
			break
		}
		if !wikiAll && len(wikiSet) > 0 {
			if _, ok := wikiSet[e.Category]; !ok {
				continue
			}
		}
		n := countOccurrences(e.Text, keywords) + countOccurrences(e.Title, keywords)
		if n == 0 {
			continue
		}
		hits = append(hits, hit{
			result: core.SearchResult{
				Text:        e.Text,
				ContentType: "wiki",
				Category:    WikiCategoryPrefix + e.Category,
				Importance:  1,
			},
			count:     n,
			createdAt: e.CreatedAt,
		})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].count != hits[j].count {
			return hits[i].count > hits[j].count
		}
		return hits[i].createdAt > hits[j].createdAt
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}

	out := make([]core.SearchResult, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.result)
	}
	return out
}

func countOccurrences(text string, keywords []string) int {
	lowered := strings.ToLower(text)
	var n int
	for _, k := range keywords {
		n += strings.Count(lowered, k)
	}
	return n
}

func toSet(in []string) map[string]struct{} {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]struct{}, len(in))
	for _, s := range in {
		out[s] = struct{}{}
	}
	return out
}

// SearchPersonality runs a channel-scoped semantic search over the
// personality corpus, returning at most five fragments.
func (s *Service) SearchPersonality(embedding []float32, channelID string) []core.SearchResult {
	records := s.store.ListPersonality(store.Filter{ChannelID: channelID})
	byID := make(map[string]store.PersonalityRecord, len(records))
	candidates := make([]vector.Candidate, 0, len(records))
	for _, r := range records {
		byID[r.ID] = r
		candidates = append(candidates, vector.Candidate{ID: r.ID, Vector: r.Embedding})
	}

	matches := vector.Search(embedding, candidates, vector.Options{Limit: personalityTopK})
	out := make([]core.SearchResult, 0, len(matches))
	for _, m := range matches {
		r := byID[m.ID]
		out = append(out, core.SearchResult{
			Text:        r.Text,
			ContentType: "personality",
			Category:    r.Category,
			Importance:  r.Importance,
			Similarity:  m.Similarity,
		})
	}
	return out
}

// ChannelContext returns a channel's personality fragments ranked by
// importance, newest first on ties.
func (s *Service) ChannelContext(channelID string, limit int) []core.SearchResult {
	if limit <= 0 {
		limit = vector.DefaultLimit
	}
	records := s.store.ListPersonality(store.Filter{ChannelID: channelID})

	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Importance != records[j].Importance {
			return records[i].Importance > records[j].Importance
		}
		return records[i].CreatedAt > records[j].CreatedAt
	})
	if len(records) > limit {
		records = records[:limit]
	}

	out := make([]core.SearchResult, 0, len(records))
	for _, r := range records {
		out = append(out, core.SearchResult{
			Text:        r.Text,
			ContentType: "personality",
			Category:    r.Category,
			Importance:  r.Importance,
		})
	}
	return out
}

// Stats reports corpus sizes, served from cache between writes.
func (s *Service) Stats() Stats {
	if cached, ok := s.cache.Get(cacheKeyStats); ok {
		if stats, ok := cached.(Stats); ok {
			return stats
		}
	}

	gen := s.gen.Load()
	stats := Stats{
		PersonalityEntries: len(s.store.ListPersonality(store.Filter{})),
		WikiEntries:        s.wiki.Count(),
		Categories:         len(s.Categories()),
	}
	if s.gen.Load() == gen {
		s.cache.Set(cacheKeyStats, stats, 1)
		s.cache.Wait()
	}
	return stats
}

// Categories lists every known category, wiki ones carrying the prefix,
// sorted. Served from cache between writes.
func (s *Service) Categories() []string {
	if cached, ok := s.cache.Get(cacheKeyCategories); ok {
		if cats, ok := cached.([]string); ok {
			return cats
		}
	}

	gen := s.gen.Load()
	set := make(map[string]struct{})
	for _, r := range s.store.ListPersonality(store.Filter{}) {
		if r.Category != "" {
			set[r.Category] = struct{}{}
		}
	}
	for _, e := range s.wiki.All() {
		if e.Category != "" {
			set[WikiCategoryPrefix+e.Category] = struct{}{}
		}
	}

	cats := make([]string, 0, len(set))
	for c := range set {
		cats = append(cats, c)
	}
	sort.Strings(cats)

	if s.gen.Load() == gen {
		s.cache.Set(cacheKeyCategories, cats, 1)
		s.cache.Wait()
	}
	return cats
}

func (s *Service) invalidate() {
	s.gen.Add(1)
	s.cache.Del(cacheKeyStats)
	s.cache.Del(cacheKeyCategories)
	s.cache.Wait()
}

// splitCategories sorts a category filter into its personality and wiki
// halves. The bare name "wiki" selects the whole wiki corpus.
func splitCategories(categories []string) (personality, wiki []string, wikiAll bool) {
	for _, c := range categories {
		switch {
		case c == "wiki":
			wikiAll = true
		case strings.HasPrefix(c, WikiCategoryPrefix):
			wiki = append(wiki, strings.TrimPrefix(c, WikiCategoryPrefix))
		default:
			personality = append(personality, c)
		}
	}
	return personality, wiki, wikiAll
}
