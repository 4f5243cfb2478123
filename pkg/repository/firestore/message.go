package firestore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/kokoro/pkg/domain/model"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// distanceField receives the cosine distance computed by FindNearest
const distanceField = "Distance"

// messageDoc is the Firestore document representation of model.Message.
// Embedding is stored as firestore.Vector32 for FindNearest vector search.
type messageDoc struct {
	Index     int                `firestore:"Index"`
	Role      string             `firestore:"Role"`
	Text      string             `firestore:"Text"`
	Embedding firestore.Vector32 `firestore:"Embedding,omitempty"`
	CreatedAt time.Time          `firestore:"CreatedAt"`
}

type scoredMessageDoc struct {
	messageDoc
	Distance float64 `firestore:"Distance"`
}

type counterDoc struct {
	Count int `firestore:"Count"`
}

func toMessageDoc(m *model.Message) *messageDoc {
	doc := &messageDoc{
		Index:     m.Index,
		Role:      string(m.Role),
		Text:      m.Text,
		CreatedAt: m.CreatedAt,
	}
	if len(m.Embedding) > 0 {
		doc.Embedding = firestore.Vector32(m.Embedding)
	}
	return doc
}

func fromMessageDoc(convID model.ConversationID, d *messageDoc) *model.Message {
	m := &model.Message{
		ConversationID: convID,
		Index:          d.Index,
		Role:           model.Role(d.Role),
		Text:           d.Text,
		CreatedAt:      d.CreatedAt,
	}
	if len(d.Embedding) > 0 {
		m.Embedding = []float32(d.Embedding)
	}
	return m
}

type messageRepository struct {
	cols *collections
}

// messagesCollection returns the subcollection path:
// conversations/{convID}/messages
func (r *messageRepository) messagesCollection(convID model.ConversationID) *firestore.CollectionRef {
	return r.cols.coll(collConversations).Doc(string(convID)).Collection(collMessages)
}

func (r *messageRepository) counterRef(convID model.ConversationID) *firestore.DocumentRef {
	return r.cols.coll(collMessageCounters).Doc(string(convID))
}

// messageDocID zero pads the index so document IDs sort like indices
func messageDocID(index int) string {
	return fmt.Sprintf("%010d", index)
}

func (r *messageRepository) Append(ctx context.Context, convID model.ConversationID, msg *model.Message) (*model.Message, error) {
	created := msg.Copy()
	created.ConversationID = convID
	if created.CreatedAt.IsZero() {
		created.CreatedAt = time.Now().UTC()
	}

	counterRef := r.counterRef(convID)
	err := r.cols.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		var counter counterDoc
		snap, err := tx.Get(counterRef)
		switch {
		case status.Code(err) == codes.NotFound:
		case err != nil:
			return goerr.Wrap(err, "failed to read message counter")
		default:
			if err := snap.DataTo(&counter); err != nil {
				return goerr.Wrap(err, "failed to unmarshal message counter")
			}
		}

		created.Index = counter.Count
		if err := tx.Set(counterRef, &counterDoc{Count: counter.Count + 1}); err != nil {
			return goerr.Wrap(err, "failed to update message counter")
		}
		msgRef := r.messagesCollection(convID).Doc(messageDocID(created.Index))
		if err := tx.Create(msgRef, toMessageDoc(created)); err != nil {
			return goerr.Wrap(err, "failed to create message")
		}
		return nil
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to append message", goerr.V("conversation_id", convID))
	}

	return created, nil
}

func (r *messageRepository) Count(ctx context.Context, convID model.ConversationID) (int, error) {
	snap, err := r.counterRef(convID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return 0, nil
		}
		return 0, goerr.Wrap(err, "failed to get message counter", goerr.V("conversation_id", convID))
	}

	var counter counterDoc
	if err := snap.DataTo(&counter); err != nil {
		return 0, goerr.Wrap(err, "failed to unmarshal message counter", goerr.V("conversation_id", convID))
	}
	return counter.Count, nil
}

func (r *messageRepository) collect(convID model.ConversationID, iter *firestore.DocumentIterator) ([]*model.Message, error) {
	defer iter.Stop()

	messages := make([]*model.Message, 0)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate messages", goerr.V("conversation_id", convID))
		}

		var d messageDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal message", goerr.V("conversation_id", convID))
		}
		messages = append(messages, fromMessageDoc(convID, &d))
	}
	return messages, nil
}

func (r *messageRepository) ListSystem(ctx context.Context, convID model.ConversationID) ([]*model.Message, error) {
	iter := r.messagesCollection(convID).
		Where("Role", "==", string(model.RoleSystem)).
		OrderBy("Index", firestore.Asc).
		Documents(ctx)
	return r.collect(convID, iter)
}

func (r *messageRepository) ListRecent(ctx context.Context, convID model.ConversationID, n int) ([]*model.Message, error) {
	if n <= 0 {
		return []*model.Message{}, nil
	}

	iter := r.messagesCollection(convID).
		Where("Role", "in", []string{string(model.RoleUser), string(model.RoleAssistant)}).
		OrderBy("Index", firestore.Desc).
		Limit(n).
		Documents(ctx)
	messages, err := r.collect(convID, iter)
	if err != nil {
		return nil, err
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (r *messageRepository) FindSimilar(ctx context.Context, convID model.ConversationID, query []float32, beforeIndex, limit int) ([]*model.ScoredMessage, error) {
	if limit <= 0 || beforeIndex <= 0 || len(query) == 0 {
		return []*model.ScoredMessage{}, nil
	}

	// Documents without Embedding (system directives) never match a vector query
	vq := r.messagesCollection(convID).
		Where("Index", "<", beforeIndex).
		FindNearest("Embedding", firestore.Vector32(query), limit, firestore.DistanceMeasureCosine,
			&firestore.FindNearestOptions{DistanceResultField: distanceField})

	iter := vq.Documents(ctx)
	defer iter.Stop()

	results := make([]*model.ScoredMessage, 0, limit)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate message vector search results", goerr.V("conversation_id", convID))
		}

		var d scoredMessageDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal message from vector search", goerr.V("conversation_id", convID))
		}
		if model.Role(d.Role) == model.RoleSystem {
			continue
		}

		results = append(results, &model.ScoredMessage{
			Message: fromMessageDoc(convID, &d.messageDoc),
			Score:   1 - d.Distance,
		})
	}

	return results, nil
}

func (r *messageRepository) UpdateText(ctx context.Context, convID model.ConversationID, index int, text string) error {
	_, err := r.messagesCollection(convID).Doc(messageDocID(index)).Update(ctx, []firestore.Update{
		{Path: "Text", Value: text},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return goerr.Wrap(ErrNotFound, "message not found",
				goerr.V("conversation_id", convID),
				goerr.V("index", index))
		}
		return goerr.Wrap(err, "failed to update message text",
			goerr.V("conversation_id", convID),
			goerr.V("index", index))
	}
	return nil
}
