package usecase

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/kokoro/pkg/domain/interfaces"
	"github.com/secmon-lab/kokoro/pkg/domain/model"
)

// RelevanceRetriever selects past messages similar to a query vector,
// restricted to messages older than the recent window
type RelevanceRetriever struct {
	repo interfaces.Repository
}

func NewRelevanceRetriever(repo interfaces.Repository) *RelevanceRetriever {
	return &RelevanceRetriever{repo: repo}
}

// Retrieve returns at most limit messages with Index below beforeIndex, most
// similar first. System messages and messages without an embedding are
// never returned.
func (r *RelevanceRetriever) Retrieve(ctx context.Context, convID model.ConversationID, query []float32, beforeIndex, limit int) ([]*model.Message, error) {
	if beforeIndex <= 0 || limit <= 0 || len(query) == 0 {
		return nil, nil
	}

	scored, err := r.repo.Message().FindSimilar(ctx, convID, query, beforeIndex, limit)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to find similar messages",
			goerr.V(ConversationIDKey, convID),
			goerr.V("before_index", beforeIndex))
	}

	result := make([]*model.Message, 0, len(scored))
	for _, s := range scored {
		m := s.Message
		if m == nil || m.Index >= beforeIndex || m.Role == model.RoleSystem || len(m.Embedding) == 0 {
			continue
		}
		result = append(result, m)
		if len(result) == limit {
			break
		}
	}
	return result, nil
}
