package model

import "time"

// EmbeddingDimension is the vector size requested from embedding backends.
// The Firestore vector index is created with the same dimension.
const EmbeddingDimension = 768

// ConversationID identifies one chat context, e.g. a Slack channel or the
// local console session
type ConversationID string

// ParticipantID identifies a speaker inside a conversation
type ParticipantID string

// Role is the speaker role of a message or context entry
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// Conversation owns an ordered collection of messages
type Conversation struct {
	ID             ConversationID
	Name           string
	Description    string
	CreatedAt      time.Time
	LastInteractAt time.Time
}

// Message is one persisted entry of a conversation. Index is assigned by the
// store as the current message count, so it strictly increases in creation
// order. System messages hold the persona directives at the lowest indices
// and carry no embedding.
type Message struct {
	ConversationID ConversationID
	Index          int
	Role           Role
	Text           string
	Embedding      []float32
	CreatedAt      time.Time
}

// Copy returns a deep copy of m
func (m *Message) Copy() *Message {
	copied := *m
	if m.Embedding != nil {
		copied.Embedding = make([]float32, len(m.Embedding))
		copy(copied.Embedding, m.Embedding)
	}
	return &copied
}

// ScoredMessage pairs a message with its similarity to a query vector
type ScoredMessage struct {
	Message *Message
	Score   float64
}

// ContextEntry is one role-tagged element of the prompt submitted to a
// generation backend
type ContextEntry struct {
	Role    Role
	Content string
}

func SystemEntry(content string) ContextEntry {
	return ContextEntry{Role: RoleSystem, Content: content}
}

func UserEntry(content string) ContextEntry {
	return ContextEntry{Role: RoleUser, Content: content}
}

func AssistantEntry(content string) ContextEntry {
	return ContextEntry{Role: RoleAssistant, Content: content}
}
