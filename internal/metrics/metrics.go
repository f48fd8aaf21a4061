package metrics

import (
	"github.com/san-kum/foldsim/internal/continuation"
)

// Metric summarises the points of a continuation run. Every metric is a
// continuation.Observer and is safe for concurrent use.
type Metric interface {
	continuation.Observer
	Name() string
	Value() float64
	Reset()
}

// Standard returns one of each metric.
func Standard() []Metric {
	return []Metric{NewStableFraction(), NewMaxResidual(), NewMeanStep()}
}

// Attach registers every metric on the engine.
func Attach(e *continuation.Engine, ms ...Metric) {
	for _, m := range ms {
		e.AddObserver(m)
	}
}

// Snapshot reads every metric by name.
func Snapshot(ms ...Metric) map[string]float64 {
	out := make(map[string]float64, len(ms))
	for _, m := range ms {
		out[m.Name()] = m.Value()
	}
	return out
}
