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

type emotionDoc struct {
	Anger     float64   `firestore:"Anger"`
	Disgust   float64   `firestore:"Disgust"`
	Fear      float64   `firestore:"Fear"`
	Joy       float64   `firestore:"Joy"`
	Sadness   float64   `firestore:"Sadness"`
	UpdatedAt time.Time `firestore:"UpdatedAt"`
}

type emotionRepository struct {
	cols *collections
}

func (r *emotionRepository) Get(ctx context.Context, convID model.ConversationID) (*model.EmotionRecord, error) {
	doc, err := r.cols.coll(collEmotions).Doc(string(convID)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, goerr.Wrap(err, "failed to get emotion", goerr.V("conversation_id", convID))
	}

	var d emotionDoc
	if err := doc.DataTo(&d); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal emotion", goerr.V("conversation_id", convID))
	}

	return &model.EmotionRecord{
		ConversationID: convID,
		Values: model.EmotionDelta{
			Anger:   d.Anger,
			Disgust: d.Disgust,
			Fear:    d.Fear,
			Joy:     d.Joy,
			Sadness: d.Sadness,
		},
		UpdatedAt: d.UpdatedAt,
	}, nil
}

func (r *emotionRepository) Put(ctx context.Context, record *model.EmotionRecord) error {
	d := &emotionDoc{
		Anger:     record.Values.Anger,
		Disgust:   record.Values.Disgust,
		Fear:      record.Values.Fear,
		Joy:       record.Values.Joy,
		Sadness:   record.Values.Sadness,
		UpdatedAt: record.UpdatedAt,
	}
	if _, err := r.cols.coll(collEmotions).Doc(string(record.ConversationID)).Set(ctx, d); err != nil {
		return goerr.Wrap(err, "failed to put emotion", goerr.V("conversation_id", record.ConversationID))
	}
	return nil
}

type affinityDoc struct {
	ParticipantID string    `firestore:"ParticipantID"`
	Value         float64   `firestore:"Value"`
	UpdatedAt     time.Time `firestore:"UpdatedAt"`
}

type affinityRepository struct {
	cols *collections
}

// affinitiesCollection returns the subcollection path:
// conversations/{convID}/affinities
func (r *affinityRepository) affinitiesCollection(convID model.ConversationID) *firestore.CollectionRef {
	return r.cols.coll(collConversations).Doc(string(convID)).Collection(collAffinities)
}

func fromAffinityDoc(convID model.ConversationID, d *affinityDoc) *model.Affinity {
	return &model.Affinity{
		ConversationID: convID,
		ParticipantID:  model.ParticipantID(d.ParticipantID),
		Value:          d.Value,
		UpdatedAt:      d.UpdatedAt,
	}
}

func (r *affinityRepository) Get(ctx context.Context, convID model.ConversationID, participantID model.ParticipantID) (*model.Affinity, error) {
	doc, err := r.affinitiesCollection(convID).Doc(string(participantID)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, goerr.Wrap(err, "failed to get affinity",
			goerr.V("conversation_id", convID),
			goerr.V("participant_id", participantID))
	}

	var d affinityDoc
	if err := doc.DataTo(&d); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal affinity",
			goerr.V("conversation_id", convID),
			goerr.V("participant_id", participantID))
	}
	return fromAffinityDoc(convID, &d), nil
}

func (r *affinityRepository) Set(ctx context.Context, convID model.ConversationID, participantID model.ParticipantID, value float64, at time.Time) error {
	d := &affinityDoc{ParticipantID: string(participantID), Value: value, UpdatedAt: at}
	if _, err := r.affinitiesCollection(convID).Doc(string(participantID)).Set(ctx, d); err != nil {
		return goerr.Wrap(err, "failed to set affinity",
			goerr.V("conversation_id", convID),
			goerr.V("participant_id", participantID))
	}
	return nil
}

// Add reads the current value and writes the sum in one transaction, so a
// returned error means nothing was committed
func (r *affinityRepository) Add(ctx context.Context, convID model.ConversationID, participantID model.ParticipantID, delta float64, at time.Time) (float64, error) {
	ref := r.affinitiesCollection(convID).Doc(string(participantID))

	var value float64
	err := r.cols.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		var current affinityDoc
		doc, err := tx.Get(ref)
		switch {
		case status.Code(err) == codes.NotFound:
		case err != nil:
			return goerr.Wrap(err, "failed to read affinity in transaction")
		default:
			if err := doc.DataTo(&current); err != nil {
				return goerr.Wrap(err, "failed to unmarshal affinity")
			}
		}

		value = current.Value + delta
		d := &affinityDoc{ParticipantID: string(participantID), Value: value, UpdatedAt: at}
		if err := tx.Set(ref, d); err != nil {
			return goerr.Wrap(err, "failed to write affinity in transaction")
		}
		return nil
	})
	if err != nil {
		return 0, goerr.Wrap(err, "failed to increment affinity",
			goerr.V("conversation_id", convID),
			goerr.V("participant_id", participantID))
	}
	return value, nil
}

func (r *affinityRepository) List(ctx context.Context, convID model.ConversationID) ([]*model.Affinity, error) {
	iter := r.affinitiesCollection(convID).Documents(ctx)
	defer iter.Stop()

	result := make([]*model.Affinity, 0)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate affinities", goerr.V("conversation_id", convID))
		}

		var d affinityDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal affinity", goerr.V("conversation_id", convID))
		}
		result = append(result, fromAffinityDoc(convID, &d))
	}
	return result, nil
}

type credentialDoc struct {
	Version   int64     `firestore:"Version"`
	APIKey    string    `firestore:"APIKey"`
	CreatedAt time.Time `firestore:"CreatedAt"`
}

type credentialRepository struct {
	cols *collections
}

func (r *credentialRepository) latestQuery() firestore.Query {
	return r.cols.coll(collCredentials).OrderBy("Version", firestore.Desc).Limit(1)
}

func decodeLatestCredential(iter *firestore.DocumentIterator) (*model.MasterCredential, error) {
	defer iter.Stop()

	doc, err := iter.Next()
	if err == iterator.Done {
		return nil, nil
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query latest credential")
	}

	var d credentialDoc
	if err := doc.DataTo(&d); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal credential")
	}
	return &model.MasterCredential{Version: d.Version, APIKey: d.APIKey, CreatedAt: d.CreatedAt}, nil
}

func (r *credentialRepository) Latest(ctx context.Context) (*model.MasterCredential, error) {
	return decodeLatestCredential(r.latestQuery().Documents(ctx))
}

func (r *credentialRepository) Create(ctx context.Context, apiKey string, at time.Time) (*model.MasterCredential, error) {
	var created *model.MasterCredential

	err := r.cols.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		latest, err := decodeLatestCredential(tx.Documents(r.latestQuery()))
		if err != nil {
			return err
		}

		version := int64(1)
		if latest != nil {
			version = latest.Version + 1
		}

		d := &credentialDoc{Version: version, APIKey: apiKey, CreatedAt: at}
		ref := r.cols.coll(collCredentials).Doc(fmt.Sprintf("%010d", version))
		if err := tx.Create(ref, d); err != nil {
			return goerr.Wrap(err, "failed to create credential", goerr.V("version", version))
		}

		created = &model.MasterCredential{Version: version, APIKey: apiKey, CreatedAt: at}
		return nil
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to run credential transaction")
	}
	return created, nil
}

type channelSettingsDoc struct {
	ChannelID     string  `firestore:"ChannelID"`
	Prefix        string  `firestore:"Prefix"`
	ResponseRatio float64 `firestore:"ResponseRatio"`
	DebugConsole  bool    `firestore:"DebugConsole"`
}

type channelSettingsRepository struct {
	cols *collections
}

func (r *channelSettingsRepository) Get(ctx context.Context, channelID string) (*model.ChannelSettings, error) {
	doc, err := r.cols.coll(collChannelSettings).Doc(channelID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, goerr.Wrap(err, "failed to get channel settings", goerr.V("channel_id", channelID))
	}

	var d channelSettingsDoc
	if err := doc.DataTo(&d); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal channel settings", goerr.V("channel_id", channelID))
	}
	return &model.ChannelSettings{
		ChannelID:     d.ChannelID,
		Prefix:        d.Prefix,
		ResponseRatio: d.ResponseRatio,
		DebugConsole:  d.DebugConsole,
	}, nil
}

func (r *channelSettingsRepository) Put(ctx context.Context, s *model.ChannelSettings) error {
	d := &channelSettingsDoc{
		ChannelID:     s.ChannelID,
		Prefix:        s.Prefix,
		ResponseRatio: s.ResponseRatio,
		DebugConsole:  s.DebugConsole,
	}
	if _, err := r.cols.coll(collChannelSettings).Doc(s.ChannelID).Set(ctx, d); err != nil {
		return goerr.Wrap(err, "failed to put channel settings", goerr.V("channel_id", s.ChannelID))
	}
	return nil
}
