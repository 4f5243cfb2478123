package usecase

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/kokoro/pkg/domain/interfaces"
	"github.com/secmon-lab/kokoro/pkg/domain/model"
	"github.com/secmon-lab/kokoro/pkg/utils/logging"
)

// AffinityLedger accumulates per-participant emotion deltas between
// aggregation cycles
type AffinityLedger struct {
	repo    interfaces.Repository
	scale   float64
	clock   func() time.Time
	mu      sync.Mutex
	pending map[model.ConversationID]map[model.ParticipantID]model.EmotionDelta
}

func NewAffinityLedger(repo interfaces.Repository, scale float64, clock func() time.Time) *AffinityLedger {
	if clock == nil {
		clock = time.Now
	}
	return &AffinityLedger{
		repo:    repo,
		scale:   scale,
		clock:   clock,
		pending: make(map[model.ConversationID]map[model.ParticipantID]model.EmotionDelta),
	}
}

// Record adds delta to the pending sum of the participant
func (l *AffinityLedger) Record(convID model.ConversationID, participantID model.ParticipantID, delta model.EmotionDelta) {
	if participantID == "" {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	byParticipant, ok := l.pending[convID]
	if !ok {
		byParticipant = make(map[model.ParticipantID]model.EmotionDelta)
		l.pending[convID] = byParticipant
	}
	byParticipant[participantID] = byParticipant[participantID].Add(delta)
}

// Pending returns the current sum for the participant without draining it
func (l *AffinityLedger) Pending(convID model.ConversationID, participantID model.ParticipantID) model.EmotionDelta {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pending[convID][participantID]
}

// Len returns the number of participants with a pending sum
func (l *AffinityLedger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for _, byParticipant := range l.pending {
		n += len(byParticipant)
	}
	return n
}

func (l *AffinityLedger) drain() map[model.ConversationID]map[model.ParticipantID]model.EmotionDelta {
	l.mu.Lock()
	defer l.mu.Unlock()

	drained := l.pending
	l.pending = make(map[model.ConversationID]map[model.ParticipantID]model.EmotionDelta)
	return drained
}

// Aggregate drains the ledger and adds each participant's affinity score to
// the persisted value. Entries that could not be written are put back into
// the ledger so the next cycle retries them.
func (l *AffinityLedger) Aggregate(ctx context.Context) (int, error) {
	drained := l.drain()
	now := l.clock()

	var (
		updated  int
		firstErr error
	)
	for convID, byParticipant := range drained {
		for participantID, sum := range byParticipant {
			if firstErr != nil {
				l.Record(convID, participantID, sum)
				continue
			}

			score := model.AffinityScore(sum, l.scale)
			if score == 0 || math.IsNaN(score) {
				continue
			}

			value, err := l.repo.Affinity().Add(ctx, convID, participantID, score, now)
			if err != nil {
				firstErr = goerr.Wrap(err, "failed to add affinity",
					goerr.V(ConversationIDKey, convID),
					goerr.V(ParticipantIDKey, participantID))
				l.Record(convID, participantID, sum)
				continue
			}

			updated++
			logging.From(ctx).Debug("affinity updated",
				"conversation_id", convID,
				"participant_id", participantID,
				"score", score,
				"value", value)
		}
	}

	return updated, firstErr
}
