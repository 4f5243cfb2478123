package usecase

import "sync/atomic"

// Stats is a point-in-time snapshot of turn counters
type Stats struct {
	TurnsCompleted         int64 `json:"turns_completed"`
	TurnsFailed            int64 `json:"turns_failed"`
	ListenOnlyTurns        int64 `json:"listen_only_turns"`
	GenerateTimeoutRetries int64 `json:"generate_timeout_retries"`
	AffectScoreFailures    int64 `json:"affect_score_failures"`
}

type statsCounter struct {
	turnsCompleted         atomic.Int64
	turnsFailed            atomic.Int64
	listenOnlyTurns        atomic.Int64
	generateTimeoutRetries atomic.Int64
	affectScoreFailures    atomic.Int64
}

func (c *statsCounter) snapshot() Stats {
	return Stats{
		TurnsCompleted:         c.turnsCompleted.Load(),
		TurnsFailed:            c.turnsFailed.Load(),
		ListenOnlyTurns:        c.listenOnlyTurns.Load(),
		GenerateTimeoutRetries: c.generateTimeoutRetries.Load(),
		AffectScoreFailures:    c.affectScoreFailures.Load(),
	}
}

// LogAttrs returns the snapshot as slog key/value pairs
func (s Stats) LogAttrs() []any {
	return []any{
		"turns_completed", s.TurnsCompleted,
		"turns_failed", s.TurnsFailed,
		"listen_only_turns", s.ListenOnlyTurns,
		"generate_timeout_retries", s.GenerateTimeoutRetries,
		"affect_score_failures", s.AffectScoreFailures,
	}
}
