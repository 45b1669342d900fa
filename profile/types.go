package profile

// BigFiveTraits is the five-dimensional personality model. Every value is
// derived and clamped to [0, 1]; traits are never independently settable.
type BigFiveTraits struct {
	Openness          float32 `json:"openness"`
	Conscientiousness float32 `json:"conscientiousness"`
	Extraversion      float32 `json:"extraversion"`
	Agreeableness     float32 `json:"agreeableness"`
	Neuroticism       float32 `json:"neuroticism"`
}

// TopicInterest records a user's derived interest in one topic. Uniqueness
// is enforced by the topic string; a profile never holds two entries for
// the same topic.
type TopicInterest struct {
	Topic           string  `json:"topic"`
	ExpertiseLevel  float32 `json:"expertise_level"`
	EngagementScore float32 `json:"engagement_score"`
	MessageCount    uint32  `json:"message_count"`
	FirstMentioned  int64   `json:"first_mentioned"`
	LastMentioned   int64   `json:"last_mentioned"`
}

// UserProfile is the aggregated view of a user derived from conversation
// history. Created on the first profiling pass with at least one chunk,
// updated in place on every subsequent pass, never duplicated.
type UserProfile struct {
	UserID string `json:"user_id"`

	PersonalityTraits BigFiveTraits   `json:"personality_traits"`
	Interests         []TopicInterest `json:"interests"`

	// AggregatedEmbedding is the centroid of the user's conversation
	// embeddings. Its dimension matches the conversation collection's.
	AggregatedEmbedding []float32 `json:"aggregated_embedding"`

	TotalMessages     uint32 `json:"total_messages"`
	ConversationCount uint32 `json:"conversation_count"`

	CreatedAt int64 `json:"created_at"`
	UpdatedAt int64 `json:"updated_at"`
}
