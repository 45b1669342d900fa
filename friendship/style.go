package friendship

import (
	"strings"

	"github.com/kindredlabs/kindred/store"
	"github.com/kindredlabs/kindred/vector"
)

// StyleFeatures describes how a user writes, each dimension in [0, 1].
type StyleFeatures struct {
	Formality   float32 `json:"formality"`
	Emotiveness float32 `json:"emotiveness"`
	Verbosity   float32 `json:"verbosity"`
	Politeness  float32 `json:"politeness"`
}

// DefaultStyle is assumed for users with no conversation history. The
// politeness baseline leans positive; most chat text carries no explicit
// politeness markers either way.
var DefaultStyle = StyleFeatures{
	Formality:   0.5,
	Emotiveness: 0.5,
	Verbosity:   0.5,
	Politeness:  0.7,
}

var (
	formalMarkers   = []string{"therefore", "however", "furthermore", "regarding", "moreover", "indeed"}
	casualMarkers   = []string{"lol", "gonna", "wanna", "yeah", "haha", "btw", "omg"}
	emotiveMarkers  = []string{"!", "love", "hate", "amazing", "terrible", "excited", "awesome", "wow"}
	politeMarkers   = []string{"please", "thank", "sorry", "excuse me", "would you"}
	impoliteMarkers = []string{"shut up", "stupid", "idiot", "whatever"}
)

// AnalyzeStyle derives style features from a user's conversation chunks.
// No chunks yields DefaultStyle.
func AnalyzeStyle(chunks []store.ConversationRecord) StyleFeatures {
	if len(chunks) == 0 {
		return DefaultStyle
	}

	var builder strings.Builder
	var totalMessages uint32
	for _, c := range chunks {
		builder.WriteString(c.ConversationText)
		builder.WriteByte('\n')
		totalMessages += c.MessageCount
	}
	text := strings.ToLower(builder.String())
	words := len(strings.Fields(text))

	return StyleFeatures{
		Formality:   markerRatio(text, formalMarkers, casualMarkers, 0.5),
		Emotiveness: densityScore(text, emotiveMarkers, words),
		Verbosity:   verbosityScore(words, totalMessages),
		Politeness:  markerRatio(text, politeMarkers, impoliteMarkers, 0.7),
	}
}

// markerRatio scores pos / (pos + neg) marker occurrences, falling back
// to the given neutral value when neither family appears.
func markerRatio(text string, pos, neg []string, neutral float32) float32 {
	p := countAll(text, pos)
	n := countAll(text, neg)
	if p+n == 0 {
		return neutral
	}
	return float32(p) / float32(p+n)
}

// densityScore saturates at one emotive marker per ten words.
func densityScore(text string, markers []string, words int) float32 {
	if words == 0 {
		return 0.5
	}
	hits := countAll(text, markers)
	return vector.Clamp01(float32(hits) * 10 / float32(words))
}

// verbosityScore saturates at forty words per message.
func verbosityScore(words int, messages uint32) float32 {
	if messages == 0 {
		return 0.5
	}
	perMessage := float32(words) / float32(messages)
	return vector.Clamp01(perMessage / 40)
}

func countAll(text string, markers []string) int {
	n := 0
	for _, m := range markers {
		n += strings.Count(text, m)
	}
	return n
}

// interactionVector summarizes how a user participates: overall activity,
// channel breadth, and chunk depth, each saturating into [0, 1]. Users
// with no history share the same neutral vector.
func interactionVector(chunks []store.ConversationRecord) []float32 {
	if len(chunks) == 0 {
		return []float32{0.5, 0.5, 0.5}
	}

	channels := make(map[string]struct{})
	var totalMessages uint32
	for _, c := range chunks {
		channels[c.ChannelID] = struct{}{}
		totalMessages += c.MessageCount
	}

	activity := vector.Clamp01(float32(len(chunks)) / 20)
	breadth := vector.Clamp01(float32(len(channels)) / 10)
	depth := vector.Clamp01(float32(totalMessages) / float32(len(chunks)) / 20)
	return []float32{activity, breadth, depth}
}
