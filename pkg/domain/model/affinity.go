package model

import (
	"fmt"
	"math"
	"time"
)

// DefaultAffinityScale divides the projected delta sum during aggregation
const DefaultAffinityScale = 10.0

// AffectionReference is the normalized direction along which accumulated
// emotion deltas count as growing affection: joy up, everything else down.
var AffectionReference = func() EmotionDelta {
	ref, err := EmotionDelta{Anger: -1, Disgust: -1, Fear: -1, Joy: 1, Sadness: -1}.Normalize()
	if err != nil {
		panic(err)
	}
	return ref
}()

// AffinityScore projects an accumulated delta sum onto AffectionReference
func AffinityScore(sum EmotionDelta, scale float64) float64 {
	if scale == 0 {
		scale = DefaultAffinityScale
	}
	return sum.Dot(AffectionReference) / scale
}

// Affinity is the accumulated score of one participant in one conversation
type Affinity struct {
	ConversationID ConversationID
	ParticipantID  ParticipantID
	Value          float64
	UpdatedAt      time.Time
}

// AffinityBand is a discrete tier of an affinity value
type AffinityBand int

const (
	AffinityDislike AffinityBand = iota - 3
	AffinityCold
	AffinityWary
	AffinityNeutral
	AffinityFriendly
	AffinityFriend
	AffinityLike
)

func (b AffinityBand) String() string {
	switch b {
	case AffinityDislike:
		return "dislike"
	case AffinityCold:
		return "cold"
	case AffinityWary:
		return "wary"
	case AffinityNeutral:
		return "neutral"
	case AffinityFriendly:
		return "friendly"
	case AffinityFriend:
		return "friend"
	case AffinityLike:
		return "like"
	}
	return "unknown"
}

// BandOf maps an affinity value onto its tier. Values beyond [-1, 1] fall
// into the outermost tiers, values with magnitude below 0.2 and NaN are
// neutral.
func BandOf(v float64) AffinityBand {
	switch {
	case math.IsNaN(v):
		return AffinityNeutral
	case v >= 0.8:
		return AffinityLike
	case v >= 0.4:
		return AffinityFriend
	case v >= 0.2:
		return AffinityFriendly
	case v > -0.2:
		return AffinityNeutral
	case v > -0.4:
		return AffinityWary
	case v > -0.8:
		return AffinityCold
	default:
		return AffinityDislike
	}
}

var affinityTemplates = map[AffinityBand]string{
	AffinityLike:     "You really like %s and enjoy talking with them very much.",
	AffinityFriend:   "You consider %s a good friend.",
	AffinityFriendly: "You feel friendly toward %s.",
	AffinityWary:     "You feel a little wary of %s.",
	AffinityCold:     "You feel cold toward %s and keep your distance.",
	AffinityDislike:  "You dislike %s.",
}

// DescribeAffinity renders the note injected for a speaker. The second
// return value is false for the neutral band, where no note applies.
func DescribeAffinity(speaker string, v float64) (string, bool) {
	tmpl, ok := affinityTemplates[BandOf(v)]
	if !ok {
		return "", false
	}
	return fmt.Sprintf(tmpl, speaker), true
}
