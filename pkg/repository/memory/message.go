package memory

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/kokoro/pkg/domain/model"
)

type messageRepository struct {
	mu       sync.RWMutex
	messages map[model.ConversationID][]*model.Message
}

func newMessageRepository() *messageRepository {
	return &messageRepository{
		messages: make(map[model.ConversationID][]*model.Message),
	}
}

func (r *messageRepository) Append(ctx context.Context, convID model.ConversationID, msg *model.Message) (*model.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	created := msg.Copy()
	created.ConversationID = convID
	created.Index = len(r.messages[convID])
	if created.CreatedAt.IsZero() {
		created.CreatedAt = time.Now().UTC()
	}

	r.messages[convID] = append(r.messages[convID], created)
	return created.Copy(), nil
}

func (r *messageRepository) Count(ctx context.Context, convID model.ConversationID) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.messages[convID]), nil
}

func (r *messageRepository) ListSystem(ctx context.Context, convID model.ConversationID) ([]*model.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*model.Message
	for _, m := range r.messages[convID] {
		if m.Role == model.RoleSystem {
			result = append(result, m.Copy())
		}
	}
	return result, nil
}

func (r *messageRepository) ListRecent(ctx context.Context, convID model.ConversationID, n int) ([]*model.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if n <= 0 {
		return []*model.Message{}, nil
	}

	// messages are stored in Index order, so walk backwards
	all := r.messages[convID]
	result := make([]*model.Message, 0, n)
	for i := len(all) - 1; i >= 0 && len(result) < n; i-- {
		if all[i].Role == model.RoleSystem {
			continue
		}
		result = append(result, all[i].Copy())
	}

	for i, j := 0, len(result)-1; i < j; i, j = i+1, j-1 {
		result[i], result[j] = result[j], result[i]
	}
	return result, nil
}

func (r *messageRepository) FindSimilar(ctx context.Context, convID model.ConversationID, query []float32, beforeIndex, limit int) ([]*model.ScoredMessage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if limit <= 0 {
		return []*model.ScoredMessage{}, nil
	}

	var candidates []*model.ScoredMessage
	for _, m := range r.messages[convID] {
		if m.Index >= beforeIndex || m.Role == model.RoleSystem || len(m.Embedding) == 0 {
			continue
		}
		candidates = append(candidates, &model.ScoredMessage{
			Message: m.Copy(),
			Score:   cosineSimilarity(query, m.Embedding),
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})

	if limit > len(candidates) {
		limit = len(candidates)
	}
	return candidates[:limit], nil
}

func (r *messageRepository) UpdateText(ctx context.Context, convID model.ConversationID, index int, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	msgs := r.messages[convID]
	if index < 0 || index >= len(msgs) {
		return goerr.Wrap(ErrNotFound, "message not found",
			goerr.V("conversation_id", convID),
			goerr.V("index", index))
	}
	msgs[index].Text = text
	return nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}

	return dot / denom
}
