package metrics

import (
	"sync"

	"github.com/san-kum/foldsim/internal/continuation"
)

// MeanStep is the average arclength step over the observed points,
// excluding start points.
type MeanStep struct {
	mu      sync.Mutex
	name    string
	sum     float64
	samples int
}

func NewMeanStep() *MeanStep {
	return &MeanStep{
		name: "mean_step",
	}
}

func (m *MeanStep) Name() string {
	return m.name
}

func (m *MeanStep) OnPoint(_ continuation.Direction, pt continuation.Point) {
	if pt.Flag == continuation.Start {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sum += pt.StepSize
	m.samples++
}

func (m *MeanStep) Value() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.samples == 0 {
		return 0
	}
	return m.sum / float64(m.samples)
}

func (m *MeanStep) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sum = 0
	m.samples = 0
}
