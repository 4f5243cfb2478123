package memory

import (
	"context"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/kokoro/pkg/domain/model"
)

type conversationRepository struct {
	mu    sync.RWMutex
	convs map[model.ConversationID]*model.Conversation
}

func newConversationRepository() *conversationRepository {
	return &conversationRepository{
		convs: make(map[model.ConversationID]*model.Conversation),
	}
}

func copyConversation(c *model.Conversation) *model.Conversation {
	copied := *c
	return &copied
}

func (r *conversationRepository) Get(ctx context.Context, id model.ConversationID) (*model.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conv, ok := r.convs[id]
	if !ok {
		return nil, nil
	}
	return copyConversation(conv), nil
}

func (r *conversationRepository) Put(ctx context.Context, conv *model.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.convs[conv.ID] = copyConversation(conv)
	return nil
}

func (r *conversationRepository) Touch(ctx context.Context, id model.ConversationID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	conv, ok := r.convs[id]
	if !ok {
		return goerr.Wrap(ErrNotFound, "conversation not found", goerr.V("conversation_id", id))
	}
	conv.LastInteractAt = at
	return nil
}
