package profile

import "strings"

// TraitScorer derives Big-Five traits from a user's accumulated
// conversation text. Implementations must be deterministic: the same
// texts always produce the same traits. The scorer is pluggable; its
// internals are not part of the profiler's contract.
type TraitScorer interface {
	Score(texts []string) BigFiveTraits
}

// LexicalScorer is the default TraitScorer. Each trait is scored from the
// ratio of two opposing marker-word families counted over the lowercased
// text; a trait with no marker hits stays at the neutral 0.5.
type LexicalScorer struct{}

var (
	opennessMarkers = markerPair{
		pos: []string{"why", "how", "imagine", "wonder", "idea", "explore", "curious", "learn", "create", "new"},
		neg: []string{"usual", "always", "routine", "same old", "never change", "boring"},
	}
	conscientiousnessMarkers = markerPair{
		pos: []string{"plan", "schedule", "organize", "finish", "deadline", "careful", "detail", "checklist"},
		neg: []string{"whatever", "later", "someday", "improvise", "wing it", "forgot"},
	}
	extraversionMarkers = markerPair{
		pos: []string{"we ", "let's", "everyone", "friends", "together", "party", "hang out", "!"},
		neg: []string{"alone", "by myself", "quiet", "solo", "on my own"},
	}
	agreeablenessMarkers = markerPair{
		pos: []string{"please", "thank", "sorry", "agree", "sure", "of course", "happy to", "good point"},
		neg: []string{"wrong", "stupid", "whatever", "no way", "shut up", "hate"},
	}
	neuroticismMarkers = markerPair{
		pos: []string{"worried", "anxious", "stress", "afraid", "nervous", "sad", "angry", "upset"},
		neg: []string{"calm", "fine", "relaxed", "easy", "chill", "no problem"},
	}
)

type markerPair struct {
	pos []string
	neg []string
}

// Score counts marker occurrences over the joined, lowercased texts.
func (LexicalScorer) Score(texts []string) BigFiveTraits {
	text := strings.ToLower(strings.Join(texts, "\n"))

	return BigFiveTraits{
		Openness:          opennessMarkers.ratio(text),
		Conscientiousness: conscientiousnessMarkers.ratio(text),
		Extraversion:      extraversionMarkers.ratio(text),
		Agreeableness:     agreeablenessMarkers.ratio(text),
		Neuroticism:       neuroticismMarkers.ratio(text),
	}
}

// ratio returns pos / (pos + neg) occurrence counts, or 0.5 when neither
// family appears.
func (m markerPair) ratio(text string) float32 {
	pos := countAll(text, m.pos)
	neg := countAll(text, m.neg)
	total := pos + neg
	if total == 0 {
		return 0.5
	}
	return float32(pos) / float32(total)
}

func countAll(text string, markers []string) int {
	n := 0
	for _, m := range markers {
		n += strings.Count(text, m)
	}
	return n
}
