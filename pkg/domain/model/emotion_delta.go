package model

import (
	"math"

	"github.com/m-mizutani/goerr/v2"
)

// ErrZeroMagnitude is returned when a zero vector is normalized
var ErrZeroMagnitude = goerr.New("cannot normalize zero magnitude vector")

// Axis identifies one of the five emotion axes. The numeric order is fixed
// and matches the index order of EmotionDelta.Values.
type Axis int

const (
	AxisAnger Axis = iota
	AxisDisgust
	AxisFear
	AxisJoy
	AxisSadness

	axisCount
)

// Axes lists every axis in canonical order
var Axes = [axisCount]Axis{AxisAnger, AxisDisgust, AxisFear, AxisJoy, AxisSadness}

var axisNames = [axisCount]string{"anger", "disgust", "fear", "joy", "sadness"}

func (a Axis) String() string {
	if a < 0 || a >= axisCount {
		return "unknown"
	}
	return axisNames[a]
}

// EmotionDelta is a plain 5-axis vector used both as a difference between two
// emotion snapshots and as an externally computed adjustment.
type EmotionDelta struct {
	Anger   float64 `json:"anger"`
	Disgust float64 `json:"disgust"`
	Fear    float64 `json:"fear"`
	Joy     float64 `json:"joy"`
	Sadness float64 `json:"sadness"`
}

// NewEmotionDelta builds a delta from values ordered as Axes
func NewEmotionDelta(v [axisCount]float64) EmotionDelta {
	return EmotionDelta{
		Anger:   v[AxisAnger],
		Disgust: v[AxisDisgust],
		Fear:    v[AxisFear],
		Joy:     v[AxisJoy],
		Sadness: v[AxisSadness],
	}
}

// Values returns the components ordered as Axes
func (d EmotionDelta) Values() [axisCount]float64 {
	return [axisCount]float64{d.Anger, d.Disgust, d.Fear, d.Joy, d.Sadness}
}

// At returns the component for axis
func (d EmotionDelta) At(axis Axis) float64 {
	if axis < 0 || axis >= axisCount {
		return 0
	}
	return d.Values()[axis]
}

func (d EmotionDelta) zip(other EmotionDelta, f func(a, b float64) float64) EmotionDelta {
	a, b := d.Values(), other.Values()
	var out [axisCount]float64
	for i := range out {
		out[i] = f(a[i], b[i])
	}
	return NewEmotionDelta(out)
}

func (d EmotionDelta) Add(other EmotionDelta) EmotionDelta {
	return d.zip(other, func(a, b float64) float64 { return a + b })
}

func (d EmotionDelta) Sub(other EmotionDelta) EmotionDelta {
	return d.zip(other, func(a, b float64) float64 { return a - b })
}

func (d EmotionDelta) Scale(s float64) EmotionDelta {
	return d.zip(EmotionDelta{}, func(a, _ float64) float64 { return a * s })
}

// Div divides every component by s. Division by zero yields infinities,
// so callers holding a possibly zero divisor must check it first.
func (d EmotionDelta) Div(s float64) EmotionDelta {
	return d.zip(EmotionDelta{}, func(a, _ float64) float64 { return a / s })
}

func (d EmotionDelta) Dot(other EmotionDelta) float64 {
	a, b := d.Values(), other.Values()
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// Magnitude is the Euclidean norm of the five components
func (d EmotionDelta) Magnitude() float64 {
	return math.Sqrt(d.Dot(d))
}

// Normalize returns the unit vector in the direction of d
func (d EmotionDelta) Normalize() (EmotionDelta, error) {
	m := d.Magnitude()
	if m == 0 {
		return EmotionDelta{}, goerr.Wrap(ErrZeroMagnitude, "failed to normalize emotion delta")
	}
	return d.Div(m), nil
}

func (d EmotionDelta) IsZero() bool {
	return d == EmotionDelta{}
}

// Clamp limits each component to [lo, hi]
func (d EmotionDelta) Clamp(lo, hi float64) EmotionDelta {
	return d.zip(EmotionDelta{}, func(a, _ float64) float64 {
		return math.Max(lo, math.Min(hi, a))
	})
}
