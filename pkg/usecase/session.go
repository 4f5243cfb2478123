package usecase

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/kokoro/pkg/domain/model"
	"github.com/secmon-lab/kokoro/pkg/service/llm"
	"github.com/secmon-lab/kokoro/pkg/utils/logging"
	"golang.org/x/sync/errgroup"
)

// TurnState is the step a conversation session is currently executing
type TurnState int32

const (
	TurnIdle TurnState = iota
	TurnEmbeddingQuery
	TurnRetrieving
	TurnUpdatingEmotion
	TurnAssembling
	TurnGenerating
	TurnEmbeddingResponse
	TurnPersisting
)

func (s TurnState) String() string {
	switch s {
	case TurnIdle:
		return "idle"
	case TurnEmbeddingQuery:
		return "embedding_query"
	case TurnRetrieving:
		return "retrieving"
	case TurnUpdatingEmotion:
		return "updating_emotion"
	case TurnAssembling:
		return "assembling"
	case TurnGenerating:
		return "generating"
	case TurnEmbeddingResponse:
		return "embedding_response"
	case TurnPersisting:
		return "persisting"
	default:
		return "unknown"
	}
}

// TurnInput is one inbound message for a conversation
type TurnInput struct {
	SpeakerID   model.ParticipantID
	SpeakerName string
	Text        string
	// Note is an extra system note for this turn only
	Note string
	// NeedsResponse false stores the message and updates emotion without
	// generating a reply
	NeedsResponse bool
	// Debug logs the retrieved excerpts and the assembled prompt
	Debug bool
}

// ConversationSession runs turns of one conversation. Turns are serialized;
// the cached directives and the emotion may be read concurrently.
type ConversationSession struct {
	uc     *UseCases
	convID model.ConversationID

	turnMu sync.Mutex
	state  atomic.Int32

	stateMu      sync.RWMutex
	directives   []string
	promptIndex  int
	emotion      model.Emotion
	firstStartup bool
}

func (s *ConversationSession) ConversationID() model.ConversationID { return s.convID }

// FirstStartup reports whether the conversation had no interaction before
// this session was loaded
func (s *ConversationSession) FirstStartup() bool { return s.firstStartup }

func (s *ConversationSession) State() TurnState {
	return TurnState(s.state.Load())
}

func (s *ConversationSession) setState(ctx context.Context, st TurnState) {
	s.state.Store(int32(st))
	logging.From(ctx).Debug("turn state changed", "state", st.String())
}

// Emotion returns the live emotion
func (s *ConversationSession) Emotion() model.Emotion {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.emotion
}

// EmotionDescription describes the emotion decayed to the current time
func (s *ConversationSession) EmotionDescription() string {
	return s.Emotion().Describe(s.uc.clock())
}

// Directives returns a copy of the system entries installed at session start
func (s *ConversationSession) Directives() []string {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return append([]string(nil), s.directives...)
}

// InitialPrompt returns the first persona directive
func (s *ConversationSession) InitialPrompt() (string, error) {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	if s.promptIndex < 0 || len(s.directives) == 0 {
		return "", goerr.Wrap(ErrNoInitialPrompt, "no directive", goerr.V(ConversationIDKey, s.convID))
	}
	return s.directives[0], nil
}

// SetInitialPrompt replaces the first persona directive in the store and in
// the cache used by subsequent turns
func (s *ConversationSession) SetInitialPrompt(ctx context.Context, text string) error {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	if s.promptIndex < 0 || len(s.directives) == 0 {
		return goerr.Wrap(ErrNoInitialPrompt, "no directive", goerr.V(ConversationIDKey, s.convID))
	}
	if err := s.uc.repo.Message().UpdateText(ctx, s.convID, s.promptIndex, text); err != nil {
		return goerr.Wrap(err, "failed to update initial prompt", goerr.V(ConversationIDKey, s.convID))
	}
	s.directives[0] = text
	return nil
}

// Turn processes one inbound message and returns the reply, or an empty
// string when in.NeedsResponse is false
func (s *ConversationSession) Turn(ctx context.Context, in TurnInput) (reply string, err error) {
	if in.Text == "" {
		return "", goerr.Wrap(ErrEmptyText, "cannot start turn", goerr.V(ConversationIDKey, s.convID))
	}

	s.turnMu.Lock()
	defer s.turnMu.Unlock()
	defer s.setState(ctx, TurnIdle)

	turnID := uuid.Must(uuid.NewV7()).String()
	logger := logging.From(ctx).With(ConversationIDKey, s.convID, TurnIDKey, turnID)
	ctx = logging.With(ctx, logger)

	defer func() {
		if err != nil {
			s.uc.stats.turnsFailed.Add(1)
		}
	}()

	uc := s.uc
	repo := uc.repo

	s.setState(ctx, TurnEmbeddingQuery)
	query, err := uc.llm.Embed(ctx, in.Text)
	if err != nil {
		return "", goerr.Wrap(err, "failed to embed message", goerr.V(TurnIDKey, turnID))
	}

	s.setState(ctx, TurnRetrieving)
	recent, err := repo.Message().ListRecent(ctx, s.convID, uc.config.RecentWindow)
	if err != nil {
		return "", goerr.Wrap(err, "failed to list recent messages", goerr.V(TurnIDKey, turnID))
	}
	oldest := 0
	if len(recent) > 0 {
		oldest = recent[0].Index
	}

	var (
		retrieved []*model.Message
		delta     model.EmotionDelta
	)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		retrieved, err = uc.retriever.Retrieve(egCtx, s.convID, query, oldest, uc.config.RetrieveLimit)
		return err
	})
	eg.Go(func() error {
		d, err := uc.llm.ScoreAffect(egCtx, in.Text)
		if err != nil {
			if egCtx.Err() != nil {
				return egCtx.Err()
			}
			uc.stats.affectScoreFailures.Add(1)
			logger.Warn("affect scoring failed, emotion left unchanged", "error", err.Error())
			return nil
		}
		delta = d
		return nil
	})
	if err := eg.Wait(); err != nil {
		return "", goerr.Wrap(err, "failed to prepare turn", goerr.V(TurnIDKey, turnID))
	}

	s.setState(ctx, TurnUpdatingEmotion)
	if err := s.updateEmotion(ctx, in.SpeakerID, delta.Scale(uc.config.AffectScale)); err != nil {
		return "", err
	}

	s.setState(ctx, TurnAssembling)
	note, err := s.buildNote(ctx, in)
	if err != nil {
		return "", err
	}
	entries := Assemble(AssembleInput{
		Directives: s.Directives(),
		Recent:     recent,
		Retrieved:  retrieved,
		Emotion:    s.EmotionDescription(),
		Note:       note,
		Text:       in.Text,
	})
	if in.Debug {
		for _, m := range retrieved {
			logger.Info("retrieved excerpt", "index", m.Index, "role", m.Role, "text", m.Text)
		}
		logger.Info("assembled prompt", "entries", len(entries), "emotion", s.EmotionDescription())
	}

	s.setState(ctx, TurnPersisting)
	if _, err := repo.Message().Append(ctx, s.convID, &model.Message{
		Role:      model.RoleUser,
		Text:      in.Text,
		Embedding: query,
		CreatedAt: uc.clock(),
	}); err != nil {
		return "", goerr.Wrap(err, "failed to save user message", goerr.V(TurnIDKey, turnID))
	}

	if !in.NeedsResponse {
		uc.stats.listenOnlyTurns.Add(1)
		return "", nil
	}

	s.setState(ctx, TurnGenerating)
	reply, err = s.generate(ctx, entries)
	if err != nil {
		return "", err
	}

	s.setState(ctx, TurnEmbeddingResponse)
	replyVec, err := uc.llm.Embed(ctx, reply)
	if err != nil {
		return "", goerr.Wrap(err, "failed to embed reply", goerr.V(TurnIDKey, turnID))
	}

	s.setState(ctx, TurnPersisting)
	now := uc.clock()
	if _, err := repo.Message().Append(ctx, s.convID, &model.Message{
		Role:      model.RoleAssistant,
		Text:      reply,
		Embedding: replyVec,
		CreatedAt: now,
	}); err != nil {
		return "", goerr.Wrap(err, "failed to save reply", goerr.V(TurnIDKey, turnID))
	}
	if err := repo.Conversation().Touch(ctx, s.convID, now); err != nil {
		return "", goerr.Wrap(err, "failed to update last interaction", goerr.V(TurnIDKey, turnID))
	}

	uc.stats.turnsCompleted.Add(1)
	return reply, nil
}

// updateEmotion applies delta, persists the result and records the observed
// change in the affinity ledger
func (s *ConversationSession) updateEmotion(ctx context.Context, speaker model.ParticipantID, delta model.EmotionDelta) error {
	now := s.uc.clock()

	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	before := s.emotion.Snapshot(now)
	next := s.emotion.Apply(delta, now)
	if err := s.uc.repo.Emotion().Put(ctx, next.Record(s.convID)); err != nil {
		return goerr.Wrap(err, "failed to save emotion", goerr.V(ConversationIDKey, s.convID))
	}
	s.emotion = next

	after := next.Snapshot(now)
	s.uc.ledger.Record(s.convID, speaker, after.Raw().Sub(before.Raw()))
	return nil
}

// buildNote combines the speaker's affinity descriptor with the injected
// note. Neutral affinity contributes nothing.
func (s *ConversationSession) buildNote(ctx context.Context, in TurnInput) (string, error) {
	var parts []string

	if in.SpeakerID != "" {
		rec, err := s.uc.repo.Affinity().Get(ctx, s.convID, in.SpeakerID)
		if err != nil {
			return "", goerr.Wrap(err, "failed to get affinity",
				goerr.V(ConversationIDKey, s.convID),
				goerr.V(ParticipantIDKey, in.SpeakerID))
		}
		if rec != nil {
			name := in.SpeakerName
			if name == "" {
				name = string(in.SpeakerID)
			}
			if desc, ok := model.DescribeAffinity(name, math.Max(-1, math.Min(1, rec.Value))); ok {
				parts = append(parts, desc)
			}
		}
	}
	if in.Note != "" {
		parts = append(parts, in.Note)
	}

	switch len(parts) {
	case 0:
		return "", nil
	case 1:
		return parts[0], nil
	default:
		return parts[0] + "\n" + parts[1], nil
	}
}

// generate calls the backend with a per-attempt timeout. Timeout failures
// are retried immediately; any other failure ends the turn.
func (s *ConversationSession) generate(ctx context.Context, entries []model.ContextEntry) (string, error) {
	uc := s.uc
	logger := logging.From(ctx)

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", goerr.Wrap(err, "turn cancelled during generation", goerr.V("attempt", attempt))
		}

		reply, err := s.generateOnce(ctx, entries)
		if err == nil {
			return reply, nil
		}
		if ctx.Err() != nil || !llm.IsTimeout(err) {
			return "", goerr.Wrap(err, "failed to generate reply", goerr.V("attempt", attempt))
		}

		if uc.config.MaxGenerateRetries > 0 && attempt > uc.config.MaxGenerateRetries {
			return "", goerr.Wrap(ErrGenerationRetryExhausted, "giving up generation",
				goerr.V("attempt", attempt),
				goerr.V("cause", err.Error()))
		}

		total := uc.stats.generateTimeoutRetries.Add(1)
		logger.Warn("generation timed out, retrying",
			"attempt", attempt,
			"total_timeout_retries", total,
			"timeout", uc.config.GenerateTimeout.String())
	}
}

func (s *ConversationSession) generateOnce(ctx context.Context, entries []model.ContextEntry) (string, error) {
	timeout := s.uc.config.GenerateTimeout
	if timeout <= 0 {
		return s.uc.llm.Generate(ctx, entries)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	reply, err := s.uc.llm.Generate(attemptCtx, entries)
	if err != nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return "", goerr.Wrap(llm.ErrTimeout, "generation attempt exceeded timeout", goerr.V("cause", err.Error()))
	}
	return reply, err
}

// sessionStartDirectives renders the note appended to the persona
// directives when a session is loaded
func sessionStartDirectives(directives []string, startup, previous time.Time) ([]string, error) {
	note, err := buildSessionNote(startup, previous)
	if err != nil {
		return nil, err
	}
	result := make([]string, 0, len(directives)+1)
	result = append(result, directives...)
	return append(result, note), nil
}
