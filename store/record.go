package store

// PersonalityRecord is one stored personality memory. Records are immutable
// once stored; an update is a new record, never an in-place mutation.
type PersonalityRecord struct {
	// ID is assigned by the store on write.
	ID string `json:"id"`

	// ChannelID scopes the memory to a room.
	ChannelID string `json:"channel_id"`

	// Text is the original personality text.
	Text string `json:"text"`

	// Category is a free-form tag: "preference", "core_belief",
	// "communication_style", and so on.
	Category string `json:"category"`

	// Importance weights the memory in [0, 1].
	Importance float32 `json:"importance"`

	// Embedding is the vector representation. Its length must match the
	// store's dimension, which is locked at the first successful write.
	Embedding []float32 `json:"embedding"`

	// CreatedAt is a monotonic nanosecond timestamp, assigned by the store
	// when zero.
	CreatedAt int64 `json:"created_at"`
}

// ConversationRecord is one indexed chunk of a user's conversation history
// within a channel.
type ConversationRecord struct {
	ID string `json:"id"`

	UserID    string `json:"user_id"`
	ChannelID string `json:"channel_id"`

	// ChunkIndex is the chunk's position in the per-(user, channel)
	// sequence. The conversation aggregator owns the counter; the store
	// only persists what the aggregator validated.
	ChunkIndex uint32 `json:"chunk_index"`

	ConversationText string `json:"conversation_text"`
	Summary          string `json:"summary"`
	MessageCount     uint32 `json:"message_count"`

	Embedding []float32 `json:"embedding"`
	CreatedAt int64     `json:"created_at"`
}

// Filter selects personality records on List. Zero-value fields match
// everything.
type Filter struct {
	ChannelID string
	Category  string
}
