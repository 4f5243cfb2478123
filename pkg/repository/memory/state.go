package memory

import (
	"context"
	"sync"
	"time"

	"github.com/secmon-lab/kokoro/pkg/domain/model"
)

type emotionRepository struct {
	mu      sync.RWMutex
	records map[model.ConversationID]model.EmotionRecord
}

func newEmotionRepository() *emotionRepository {
	return &emotionRepository{
		records: make(map[model.ConversationID]model.EmotionRecord),
	}
}

func (r *emotionRepository) Get(ctx context.Context, convID model.ConversationID) (*model.EmotionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[convID]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (r *emotionRepository) Put(ctx context.Context, record *model.EmotionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.records[record.ConversationID] = *record
	return nil
}

// affinityKey is a composite key for affinity records (conversation + participant)
type affinityKey struct {
	convID        model.ConversationID
	participantID model.ParticipantID
}

type affinityRepository struct {
	mu      sync.RWMutex
	records map[affinityKey]model.Affinity
}

func newAffinityRepository() *affinityRepository {
	return &affinityRepository{
		records: make(map[affinityKey]model.Affinity),
	}
}

func (r *affinityRepository) Get(ctx context.Context, convID model.ConversationID, participantID model.ParticipantID) (*model.Affinity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[affinityKey{convID: convID, participantID: participantID}]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (r *affinityRepository) Set(ctx context.Context, convID model.ConversationID, participantID model.ParticipantID, value float64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.records[affinityKey{convID: convID, participantID: participantID}] = model.Affinity{
		ConversationID: convID,
		ParticipantID:  participantID,
		Value:          value,
		UpdatedAt:      at,
	}
	return nil
}

func (r *affinityRepository) Add(ctx context.Context, convID model.ConversationID, participantID model.ParticipantID, delta float64, at time.Time) (float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := affinityKey{convID: convID, participantID: participantID}
	rec, ok := r.records[key]
	if !ok {
		rec = model.Affinity{ConversationID: convID, ParticipantID: participantID}
	}
	rec.Value += delta
	rec.UpdatedAt = at
	r.records[key] = rec

	return rec.Value, nil
}

func (r *affinityRepository) List(ctx context.Context, convID model.ConversationID) ([]*model.Affinity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*model.Affinity, 0)
	for key, rec := range r.records {
		if key.convID == convID {
			copied := rec
			result = append(result, &copied)
		}
	}
	return result, nil
}

type credentialRepository struct {
	mu       sync.RWMutex
	versions []model.MasterCredential
}

func newCredentialRepository() *credentialRepository {
	return &credentialRepository{}
}

func (r *credentialRepository) Latest(ctx context.Context) (*model.MasterCredential, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.versions) == 0 {
		return nil, nil
	}
	latest := r.versions[len(r.versions)-1]
	return &latest, nil
}

func (r *credentialRepository) Create(ctx context.Context, apiKey string, at time.Time) (*model.MasterCredential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cred := model.MasterCredential{
		Version:   int64(len(r.versions)) + 1,
		APIKey:    apiKey,
		CreatedAt: at,
	}
	r.versions = append(r.versions, cred)
	return &cred, nil
}

type channelSettingsRepository struct {
	mu       sync.RWMutex
	settings map[string]model.ChannelSettings
}

func newChannelSettingsRepository() *channelSettingsRepository {
	return &channelSettingsRepository{
		settings: make(map[string]model.ChannelSettings),
	}
}

func (r *channelSettingsRepository) Get(ctx context.Context, channelID string) (*model.ChannelSettings, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.settings[channelID]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (r *channelSettingsRepository) Put(ctx context.Context, settings *model.ChannelSettings) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.settings[settings.ChannelID] = *settings
	return nil
}
