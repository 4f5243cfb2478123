package llm

import (
	"context"
	"errors"
	"net"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/kokoro/pkg/domain/model"
)

var (
	// ErrEmptyEmbedding is returned when a backend yields no vector
	ErrEmptyEmbedding = goerr.New("empty embedding returned")

	// ErrTimeout marks backend failures that are safe to retry immediately
	ErrTimeout = goerr.New("llm request timed out")

	// ErrEmptyResponse is returned when generation yields no text
	ErrEmptyResponse = goerr.New("empty response from llm")
)

// Embedder turns text into a vector. Dimensionality is backend defined.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// AffectScorer estimates the emotional impact of text on the five axes,
// each component roughly in [-10, 10]
type AffectScorer interface {
	ScoreAffect(ctx context.Context, text string) (model.EmotionDelta, error)
}

// Generator produces a reply for an ordered, role-tagged context
type Generator interface {
	Generate(ctx context.Context, entries []model.ContextEntry) (string, error)
}

// Client bundles every backend operation a conversation turn needs
type Client interface {
	Embedder
	AffectScorer
	Generator
}

// IsTimeout reports whether err belongs to the timeout class that the turn
// pipeline retries without backoff
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func toFloat32(v []float64) []float32 {
	result := make([]float32, len(v))
	for i, f := range v {
		result[i] = float32(f)
	}
	return result
}
