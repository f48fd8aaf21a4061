package metrics

import (
	"math"
	"sync"

	"github.com/san-kum/foldsim/internal/continuation"
)

// MaxResidual is the largest ‖F‖ over the observed points.
type MaxResidual struct {
	mu   sync.Mutex
	name string
	max  float64
}

func NewMaxResidual() *MaxResidual {
	return &MaxResidual{name: "max_residual"}
}

func (m *MaxResidual) Name() string { return m.name }

func (m *MaxResidual) OnPoint(_ continuation.Direction, pt continuation.Point) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.max = math.Max(m.max, pt.Residual)
}

func (m *MaxResidual) Value() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.max
}

func (m *MaxResidual) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.max = 0
}
