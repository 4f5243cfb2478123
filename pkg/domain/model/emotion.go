package model

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"time"
)

const (
	// EmotionDecayRate is the per-second multiplier applied to stored axis values
	EmotionDecayRate = 0.999

	// CalmThreshold is the magnitude below which an emotion is described as calm
	CalmThreshold = 0.4

	calmDescription = "You feel calm and composed."
)

// DefaultEmotionWeights favors joy over the other axes for a freshly drawn emotion
var DefaultEmotionWeights = EmotionDelta{Anger: 0.1, Disgust: 0.1, Fear: 0.1, Joy: 0.6, Sadness: 0.1}

// Emotion is an immutable 5-axis affect value. Stored values are raw and
// unclamped; every read is filtered through exponential time decay measured
// from UpdatedAt, except on frozen snapshots which never decay.
type Emotion struct {
	raw       EmotionDelta
	updatedAt time.Time
	frozen    bool
}

// NewEmotion returns a live emotion seeded with raw values at the given time
func NewEmotion(raw EmotionDelta, at time.Time) Emotion {
	return Emotion{raw: raw, updatedAt: at}
}

// RandomEmotion draws each axis from uniform(0,1)*weight clamped to at most 1.
// rnd may be nil to use the global source.
func RandomEmotion(at time.Time, weights EmotionDelta, rnd *rand.Rand) Emotion {
	draw := rand.Float64
	if rnd != nil {
		draw = rnd.Float64
	}

	w := weights.Values()
	var v [axisCount]float64
	for i := range v {
		v[i] = math.Min(draw()*w[i], 1.0)
	}
	return NewEmotion(NewEmotionDelta(v), at)
}

func (e Emotion) Raw() EmotionDelta    { return e.raw }
func (e Emotion) UpdatedAt() time.Time { return e.updatedAt }
func (e Emotion) Frozen() bool         { return e.frozen }

func (e Emotion) decayFactor(now time.Time) float64 {
	if e.frozen {
		return 1
	}
	elapsed := now.Sub(e.updatedAt).Seconds()
	if elapsed <= 0 {
		return 1
	}
	return math.Pow(EmotionDecayRate, elapsed)
}

// Value returns the decayed value of one axis as observed at now
func (e Emotion) Value(axis Axis, now time.Time) float64 {
	return e.raw.At(axis) * e.decayFactor(now)
}

// Vector returns all five decayed axis values as observed at now
func (e Emotion) Vector(now time.Time) EmotionDelta {
	return e.raw.Scale(e.decayFactor(now))
}

// Snapshot returns a frozen copy holding the values observed at now
func (e Emotion) Snapshot(now time.Time) Emotion {
	return Emotion{raw: e.Vector(now), updatedAt: now, frozen: true}
}

// Apply returns a live emotion whose raw values are the currently decayed
// values plus delta. Successive applications therefore compound decay.
func (e Emotion) Apply(delta EmotionDelta, now time.Time) Emotion {
	return Emotion{raw: e.Vector(now).Add(delta), updatedAt: now}
}

func (e Emotion) Magnitude(now time.Time) float64 {
	return e.Vector(now).Magnitude()
}

// Describe renders the emotion as one sentence. Below CalmThreshold a fixed
// calm phrase is returned; otherwise each axis is shown as its share of the
// magnitude in percent.
func (e Emotion) Describe(now time.Time) string {
	v := e.Vector(now)
	m := v.Magnitude()
	if m < CalmThreshold {
		return calmDescription
	}

	values := v.Values()
	parts := make([]string, len(Axes))
	for i, axis := range Axes {
		parts[i] = fmt.Sprintf("%s %.0f%%", axis, values[i]/m*100)
	}
	return "Your emotion is " + strings.Join(parts[:len(parts)-1], ", ") + " and " + parts[len(parts)-1] + "."
}

// EmotionRecord is the persisted form of a conversation's emotion
type EmotionRecord struct {
	ConversationID ConversationID
	Values         EmotionDelta
	UpdatedAt      time.Time
}

// Record converts e into its persisted form
func (e Emotion) Record(convID ConversationID) *EmotionRecord {
	return &EmotionRecord{ConversationID: convID, Values: e.raw, UpdatedAt: e.updatedAt}
}

// Emotion restores a live emotion. Decay continues from the stored UpdatedAt.
func (r *EmotionRecord) Emotion() Emotion {
	return NewEmotion(r.Values, r.UpdatedAt)
}
