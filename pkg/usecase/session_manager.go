package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/kokoro/pkg/domain/model"
	"github.com/secmon-lab/kokoro/pkg/utils/logging"
)

type sessionEntry struct {
	ready   chan struct{}
	session *ConversationSession
	err     error
}

// SessionManager lazily loads one ConversationSession per conversation.
// Concurrent callers for the same conversation share a single load.
type SessionManager struct {
	uc       *UseCases
	mu       sync.Mutex
	sessions map[model.ConversationID]*sessionEntry
}

func newSessionManager(uc *UseCases) *SessionManager {
	return &SessionManager{
		uc:       uc,
		sessions: make(map[model.ConversationID]*sessionEntry),
	}
}

// Session returns the session of convID, creating the conversation with
// the persona directives on first use
func (m *SessionManager) Session(ctx context.Context, convID model.ConversationID) (*ConversationSession, error) {
	m.mu.Lock()
	entry, ok := m.sessions[convID]
	if !ok {
		entry = &sessionEntry{ready: make(chan struct{})}
		m.sessions[convID] = entry
	}
	m.mu.Unlock()

	if !ok {
		entry.session, entry.err = m.load(ctx, convID)
		if entry.err != nil {
			m.mu.Lock()
			delete(m.sessions, convID)
			m.mu.Unlock()
		}
		close(entry.ready)
	}

	select {
	case <-entry.ready:
	case <-ctx.Done():
		return nil, goerr.Wrap(ctx.Err(), "waiting for session", goerr.V(ConversationIDKey, convID))
	}
	if entry.err != nil {
		return nil, entry.err
	}
	return entry.session, nil
}

// Loaded returns the conversations that currently have a session
func (m *SessionManager) Loaded() []model.ConversationID {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]model.ConversationID, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	return ids
}

func (m *SessionManager) load(ctx context.Context, convID model.ConversationID) (*ConversationSession, error) {
	uc := m.uc
	repo := uc.repo
	now := uc.clock()

	conv, err := repo.Conversation().Get(ctx, convID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get conversation", goerr.V(ConversationIDKey, convID))
	}

	var system []*model.Message
	if conv == nil {
		conv = &model.Conversation{
			ID:          convID,
			Name:        string(convID),
			Description: uc.persona.Description,
			CreatedAt:   now,
		}
		if err := repo.Conversation().Put(ctx, conv); err != nil {
			return nil, goerr.Wrap(err, "failed to create conversation", goerr.V(ConversationIDKey, convID))
		}
		for _, d := range uc.persona.Directives {
			msg, err := repo.Message().Append(ctx, convID, &model.Message{
				Role:      model.RoleSystem,
				Text:      d,
				CreatedAt: now,
			})
			if err != nil {
				return nil, goerr.Wrap(err, "failed to install directive", goerr.V(ConversationIDKey, convID))
			}
			system = append(system, msg)
		}
		logging.From(ctx).Info("conversation created",
			"conversation_id", convID,
			"directives", len(system))
	} else {
		system, err = repo.Message().ListSystem(ctx, convID)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to list directives", goerr.V(ConversationIDKey, convID))
		}
	}

	emotion, err := m.loadEmotion(ctx, convID, now)
	if err != nil {
		return nil, err
	}

	persona := make([]string, len(system))
	for i, msg := range system {
		persona[i] = msg.Text
	}
	directives, err := sessionStartDirectives(persona, now, conv.LastInteractAt)
	if err != nil {
		return nil, err
	}

	promptIndex := -1
	if len(system) > 0 {
		promptIndex = system[0].Index
	}

	return &ConversationSession{
		uc:           uc,
		convID:       convID,
		directives:   directives,
		promptIndex:  promptIndex,
		emotion:      emotion,
		firstStartup: conv.LastInteractAt.IsZero(),
	}, nil
}

func (m *SessionManager) loadEmotion(ctx context.Context, convID model.ConversationID, now time.Time) (model.Emotion, error) {
	rec, err := m.uc.repo.Emotion().Get(ctx, convID)
	if err != nil {
		return model.Emotion{}, goerr.Wrap(err, "failed to get emotion", goerr.V(ConversationIDKey, convID))
	}
	if rec != nil {
		return rec.Emotion(), nil
	}

	emotion := model.RandomEmotion(now, model.DefaultEmotionWeights, m.uc.rnd)
	if err := m.uc.repo.Emotion().Put(ctx, emotion.Record(convID)); err != nil {
		return model.Emotion{}, goerr.Wrap(err, "failed to save initial emotion", goerr.V(ConversationIDKey, convID))
	}
	return emotion, nil
}
