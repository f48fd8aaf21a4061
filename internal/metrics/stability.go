package metrics

import (
	"sync"

	"github.com/san-kum/foldsim/internal/continuation"
	"github.com/san-kum/foldsim/internal/stability"
)

// StableFraction is the share of observed points labelled stable. The
// start point opens both directions and is counted once.
type StableFraction struct {
	mu       sync.Mutex
	name     string
	stable   int
	samples  int
	sawStart bool
}

func NewStableFraction() *StableFraction {
	return &StableFraction{
		name: "stable_fraction",
	}
}

func (s *StableFraction) Name() string {
	return s.name
}

func (s *StableFraction) OnPoint(_ continuation.Direction, pt continuation.Point) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if pt.Flag == continuation.Start {
		if s.sawStart {
			return
		}
		s.sawStart = true
	}
	s.samples++
	if pt.Stability == stability.Stable {
		s.stable++
	}
}

func (s *StableFraction) Value() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.samples == 0 {
		return 0
	}
	return float64(s.stable) / float64(s.samples)
}

func (s *StableFraction) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stable = 0
	s.samples = 0
	s.sawStart = false
}
