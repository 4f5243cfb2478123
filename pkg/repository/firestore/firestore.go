package firestore

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/kokoro/pkg/domain/interfaces"
)

const (
	collConversations   = "conversations"
	collMessages        = "messages"
	collMessageCounters = "message_counters"
	collEmotions        = "emotions"
	collAffinities      = "affinities"
	collCredentials     = "credentials"
	collChannelSettings = "channel_settings"
)

// collections resolves collection names with an optional prefix so that
// several deployments or test runs can share one database
type collections struct {
	client *firestore.Client
	prefix string
}

func (c *collections) coll(name string) *firestore.CollectionRef {
	return c.client.Collection(c.prefix + name)
}

type Firestore struct {
	client       *firestore.Client
	cols         *collections
	conversation *conversationRepository
	message      *messageRepository
	emotion      *emotionRepository
	affinity     *affinityRepository
	credential   *credentialRepository
	settings     *channelSettingsRepository
}

var _ interfaces.Repository = &Firestore{}

type Option func(*Firestore)

// WithCollectionPrefix prepends prefix to every top level collection name
func WithCollectionPrefix(prefix string) Option {
	return func(f *Firestore) {
		f.cols.prefix = prefix
	}
}

func New(ctx context.Context, projectID, databaseID string, opts ...Option) (*Firestore, error) {
	if databaseID == "" {
		databaseID = firestore.DefaultDatabaseID
	}

	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("projectID", projectID),
			goerr.V("databaseID", databaseID))
	}

	cols := &collections{client: client}
	f := &Firestore{
		client:       client,
		cols:         cols,
		conversation: &conversationRepository{cols: cols},
		message:      &messageRepository{cols: cols},
		emotion:      &emotionRepository{cols: cols},
		affinity:     &affinityRepository{cols: cols},
		credential:   &credentialRepository{cols: cols},
		settings:     &channelSettingsRepository{cols: cols},
	}

	for _, opt := range opts {
		opt(f)
	}

	return f, nil
}

func (f *Firestore) Conversation() interfaces.ConversationRepository {
	return f.conversation
}

func (f *Firestore) Message() interfaces.MessageRepository {
	return f.message
}

func (f *Firestore) Emotion() interfaces.EmotionRepository {
	return f.emotion
}

func (f *Firestore) Affinity() interfaces.AffinityRepository {
	return f.affinity
}

func (f *Firestore) Credential() interfaces.CredentialRepository {
	return f.credential
}

func (f *Firestore) ChannelSettings() interfaces.ChannelSettingsRepository {
	return f.settings
}

func (f *Firestore) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}
