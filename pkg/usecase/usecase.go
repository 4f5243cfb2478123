package usecase

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/kokoro/pkg/domain/interfaces"
	"github.com/secmon-lab/kokoro/pkg/domain/model"
	"github.com/secmon-lab/kokoro/pkg/service/llm"
)

// Config tunes the turn pipeline
type Config struct {
	// RecentWindow is the number of latest non-system messages replayed verbatim
	RecentWindow int
	// RetrieveLimit caps the number of relevance-retrieved excerpts
	RetrieveLimit int
	// GenerateTimeout bounds a single generation attempt. Zero disables it.
	GenerateTimeout time.Duration
	// MaxGenerateRetries caps timeout retries. Zero retries forever.
	MaxGenerateRetries int
	// AffectScale multiplies the scored affect before it is applied
	AffectScale float64
	// AffinityScale divides the projected delta sum during aggregation
	AffinityScale float64
}

// DefaultConfig returns the standard pipeline settings
func DefaultConfig() Config {
	return Config{
		RecentWindow:    10,
		RetrieveLimit:   10,
		GenerateTimeout: 60 * time.Second,
		AffectScale:     0.1,
		AffinityScale:   model.DefaultAffinityScale,
	}
}

type UseCases struct {
	repo      interfaces.Repository
	llm       llm.Client
	persona   *model.Persona
	config    Config
	clock     func() time.Time
	rnd       *rand.Rand
	stats     statsCounter
	ledger    *AffinityLedger
	retriever *RelevanceRetriever
	sessions  *SessionManager

	slackService SlackService

	Chat  *ChatUseCase
	Slack *SlackUseCase
}

type Option func(*UseCases)

// WithPersona replaces the default persona installed into new conversations
func WithPersona(p *model.Persona) Option {
	return func(uc *UseCases) {
		uc.persona = p
	}
}

func WithConfig(cfg Config) Option {
	return func(uc *UseCases) {
		uc.config = cfg
	}
}

func WithClock(clock func() time.Time) Option {
	return func(uc *UseCases) {
		uc.clock = clock
	}
}

// WithRandom sets the source for initial emotions and response sampling
func WithRandom(rnd *rand.Rand) Option {
	return func(uc *UseCases) {
		uc.rnd = rnd
	}
}

func WithSlackService(svc SlackService) Option {
	return func(uc *UseCases) {
		uc.slackService = svc
	}
}

func New(repo interfaces.Repository, client llm.Client, opts ...Option) *UseCases {
	uc := &UseCases{
		repo:    repo,
		llm:     client,
		persona: DefaultPersona(),
		config:  DefaultConfig(),
		clock:   time.Now,
	}

	for _, opt := range opts {
		opt(uc)
	}

	uc.ledger = NewAffinityLedger(repo, uc.config.AffinityScale, uc.clock)
	uc.retriever = NewRelevanceRetriever(repo)
	uc.sessions = newSessionManager(uc)
	uc.Chat = NewChatUseCase(uc)
	if uc.slackService != nil {
		uc.Slack = NewSlackUseCase(uc.Chat, uc.slackService)
	}

	return uc
}

func (uc *UseCases) Sessions() *SessionManager { return uc.sessions }

func (uc *UseCases) Ledger() *AffinityLedger { return uc.ledger }

func (uc *UseCases) Stats() Stats { return uc.stats.snapshot() }

// StartTurn runs one turn in the conversation and returns the reply, or an
// empty string when in.NeedsResponse is false
func (uc *UseCases) StartTurn(ctx context.Context, convID model.ConversationID, in TurnInput) (string, error) {
	s, err := uc.sessions.Session(ctx, convID)
	if err != nil {
		return "", err
	}
	return s.Turn(ctx, in)
}

func (uc *UseCases) InitialPrompt(ctx context.Context, convID model.ConversationID) (string, error) {
	s, err := uc.sessions.Session(ctx, convID)
	if err != nil {
		return "", err
	}
	return s.InitialPrompt()
}

func (uc *UseCases) SetInitialPrompt(ctx context.Context, convID model.ConversationID, text string) error {
	s, err := uc.sessions.Session(ctx, convID)
	if err != nil {
		return err
	}
	return s.SetInitialPrompt(ctx, text)
}

func (uc *UseCases) EmotionDescription(ctx context.Context, convID model.ConversationID) (string, error) {
	s, err := uc.sessions.Session(ctx, convID)
	if err != nil {
		return "", err
	}
	return s.EmotionDescription(), nil
}

// Affinity returns the stored affinity of the participant, zero when absent
func (uc *UseCases) Affinity(ctx context.Context, convID model.ConversationID, participantID model.ParticipantID) (float64, error) {
	rec, err := uc.repo.Affinity().Get(ctx, convID, participantID)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to get affinity",
			goerr.V(ConversationIDKey, convID),
			goerr.V(ParticipantIDKey, participantID))
	}
	if rec == nil {
		return 0, nil
	}
	return rec.Value, nil
}

func (uc *UseCases) SetAffinity(ctx context.Context, convID model.ConversationID, participantID model.ParticipantID, value float64) error {
	if err := uc.repo.Affinity().Set(ctx, convID, participantID, value, uc.clock()); err != nil {
		return goerr.Wrap(err, "failed to set affinity",
			goerr.V(ConversationIDKey, convID),
			goerr.V(ParticipantIDKey, participantID))
	}
	return nil
}

func (uc *UseCases) AddAffinity(ctx context.Context, convID model.ConversationID, participantID model.ParticipantID, delta float64) (float64, error) {
	value, err := uc.repo.Affinity().Add(ctx, convID, participantID, delta, uc.clock())
	if err != nil {
		return 0, goerr.Wrap(err, "failed to add affinity",
			goerr.V(ConversationIDKey, convID),
			goerr.V(ParticipantIDKey, participantID))
	}
	return value, nil
}

// AggregateAffinity folds the pending emotion deltas into stored affinity
func (uc *UseCases) AggregateAffinity(ctx context.Context) (int, error) {
	return uc.ledger.Aggregate(ctx)
}
