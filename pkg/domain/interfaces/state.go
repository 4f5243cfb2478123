package interfaces

import (
	"context"
	"time"

	"github.com/secmon-lab/kokoro/pkg/domain/model"
)

// EmotionRepository persists one emotion record per conversation
type EmotionRepository interface {
	// Get returns nil without error when no emotion has been stored
	Get(ctx context.Context, convID model.ConversationID) (*model.EmotionRecord, error)
	Put(ctx context.Context, record *model.EmotionRecord) error
}

// AffinityRepository persists per (conversation, participant) affinity values
type AffinityRepository interface {
	// Get returns nil without error when no record exists
	Get(ctx context.Context, convID model.ConversationID, participantID model.ParticipantID) (*model.Affinity, error)

	// Set overwrites the value, creating the record when absent
	Set(ctx context.Context, convID model.ConversationID, participantID model.ParticipantID, value float64, at time.Time) error

	// Add increments the value, creating the record with delta when absent,
	// and returns the resulting value
	Add(ctx context.Context, convID model.ConversationID, participantID model.ParticipantID, delta float64, at time.Time) (float64, error)

	// List returns every record of the conversation
	List(ctx context.Context, convID model.ConversationID) ([]*model.Affinity, error)
}

// CredentialRepository keeps versioned master credentials
type CredentialRepository interface {
	// Latest returns the highest version, or nil when none exists
	Latest(ctx context.Context) (*model.MasterCredential, error)

	// Create stores apiKey as a new version one above the current latest
	Create(ctx context.Context, apiKey string, at time.Time) (*model.MasterCredential, error)
}

// ChannelSettingsRepository persists chat adapter settings per channel
type ChannelSettingsRepository interface {
	// Get returns nil without error when the channel has no stored settings
	Get(ctx context.Context, channelID string) (*model.ChannelSettings, error)
	Put(ctx context.Context, settings *model.ChannelSettings) error
}
