package interfaces

import (
	"context"
	"time"

	"github.com/secmon-lab/kokoro/pkg/domain/model"
)

// ConversationRepository persists conversation headers
type ConversationRepository interface {
	// Get returns nil without error when the conversation does not exist
	Get(ctx context.Context, id model.ConversationID) (*model.Conversation, error)

	// Put creates or overwrites a conversation
	Put(ctx context.Context, conv *model.Conversation) error

	// Touch sets LastInteractAt of an existing conversation
	Touch(ctx context.Context, id model.ConversationID, at time.Time) error
}

// MessageRepository persists the ordered messages of conversations
type MessageRepository interface {
	// Append stores msg with Index set to the current message count of the
	// conversation. Index assignment and insertion happen atomically.
	Append(ctx context.Context, convID model.ConversationID, msg *model.Message) (*model.Message, error)

	// Count returns the number of messages in the conversation
	Count(ctx context.Context, convID model.ConversationID) (int, error)

	// ListSystem returns system messages ordered by Index ascending
	ListSystem(ctx context.Context, convID model.ConversationID) ([]*model.Message, error)

	// ListRecent returns the newest n non-system messages ordered by Index ascending
	ListRecent(ctx context.Context, convID model.ConversationID, n int) ([]*model.Message, error)

	// FindSimilar ranks non-system messages that carry an embedding and
	// whose Index is below beforeIndex by cosine similarity to query, most
	// similar first. Order among equal scores is not defined.
	FindSimilar(ctx context.Context, convID model.ConversationID, query []float32, beforeIndex, limit int) ([]*model.ScoredMessage, error)

	// UpdateText replaces the text of the message at index
	UpdateText(ctx context.Context, convID model.ConversationID, index int, text string) error
}
