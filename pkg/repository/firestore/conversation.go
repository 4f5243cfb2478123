package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/kokoro/pkg/domain/model"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type conversationDoc struct {
	ID             string    `firestore:"ID"`
	Name           string    `firestore:"Name"`
	Description    string    `firestore:"Description"`
	CreatedAt      time.Time `firestore:"CreatedAt"`
	LastInteractAt time.Time `firestore:"LastInteractAt"`
}

func toConversationDoc(c *model.Conversation) *conversationDoc {
	return &conversationDoc{
		ID:             string(c.ID),
		Name:           c.Name,
		Description:    c.Description,
		CreatedAt:      c.CreatedAt,
		LastInteractAt: c.LastInteractAt,
	}
}

func fromConversationDoc(d *conversationDoc) *model.Conversation {
	return &model.Conversation{
		ID:             model.ConversationID(d.ID),
		Name:           d.Name,
		Description:    d.Description,
		CreatedAt:      d.CreatedAt,
		LastInteractAt: d.LastInteractAt,
	}
}

type conversationRepository struct {
	cols *collections
}

func (r *conversationRepository) doc(id model.ConversationID) *firestore.DocumentRef {
	return r.cols.coll(collConversations).Doc(string(id))
}

func (r *conversationRepository) Get(ctx context.Context, id model.ConversationID) (*model.Conversation, error) {
	doc, err := r.doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, goerr.Wrap(err, "failed to get conversation", goerr.V("conversation_id", id))
	}

	var d conversationDoc
	if err := doc.DataTo(&d); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal conversation", goerr.V("conversation_id", id))
	}
	return fromConversationDoc(&d), nil
}

func (r *conversationRepository) Put(ctx context.Context, conv *model.Conversation) error {
	if _, err := r.doc(conv.ID).Set(ctx, toConversationDoc(conv)); err != nil {
		return goerr.Wrap(err, "failed to put conversation", goerr.V("conversation_id", conv.ID))
	}
	return nil
}

func (r *conversationRepository) Touch(ctx context.Context, id model.ConversationID, at time.Time) error {
	_, err := r.doc(id).Update(ctx, []firestore.Update{
		{Path: "LastInteractAt", Value: at},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return goerr.Wrap(ErrNotFound, "conversation not found", goerr.V("conversation_id", id))
		}
		return goerr.Wrap(err, "failed to touch conversation", goerr.V("conversation_id", id))
	}
	return nil
}
