package continuation

import (
	"fmt"
	"math"

	"github.com/san-kum/foldsim/internal/dynamo"
	"github.com/san-kum/foldsim/internal/equilibrium"
)

// StepConfig bounds the arclength step controller.
type StepConfig struct {
	StepSize     float64 `yaml:"step_size" validate:"gt=0"`
	MinStepSize  float64 `yaml:"min_step_size" validate:"gt=0"`
	MaxStepSize  float64 `yaml:"max_step_size" validate:"gt=0"`
	GrowFactor   float64 `yaml:"grow_factor" validate:"gte=1"`
	ShrinkFactor float64 `yaml:"shrink_factor" validate:"gt=0,lt=1"`
	// FastIters is the corrector iteration count at or below which the
	// step grows.
	FastIters    int `yaml:"fast_iters" validate:"gte=0"`
	MaxCorrIters int `yaml:"max_corr_iters" validate:"gte=1"`
}

func DefaultStepConfig() StepConfig {
	return StepConfig{
		StepSize:     0.05,
		MinStepSize:  1e-6,
		MaxStepSize:  0.1,
		GrowFactor:   1.3,
		ShrinkFactor: 0.5,
		FastIters:    3,
		MaxCorrIters: 8,
	}
}

func (c StepConfig) Validate() error {
	if c.MinStepSize <= 0 {
		return fmt.Errorf("%w: min step size must be positive, got %g", dynamo.ErrInvalidConfig, c.MinStepSize)
	}
	if c.MinStepSize > c.MaxStepSize {
		return fmt.Errorf("%w: min step size %g exceeds max step size %g", dynamo.ErrInvalidConfig, c.MinStepSize, c.MaxStepSize)
	}
	if c.StepSize < c.MinStepSize || c.StepSize > c.MaxStepSize {
		return fmt.Errorf("%w: step size %g outside [%g, %g]", dynamo.ErrInvalidConfig, c.StepSize, c.MinStepSize, c.MaxStepSize)
	}
	if c.GrowFactor < 1 {
		return fmt.Errorf("%w: grow factor must be at least 1, got %g", dynamo.ErrInvalidConfig, c.GrowFactor)
	}
	if c.ShrinkFactor <= 0 || c.ShrinkFactor >= 1 {
		return fmt.Errorf("%w: shrink factor must be in (0, 1), got %g", dynamo.ErrInvalidConfig, c.ShrinkFactor)
	}
	if c.FastIters < 0 || c.MaxCorrIters < 1 {
		return fmt.Errorf("%w: corrector iteration bounds must be positive", dynamo.ErrInvalidConfig)
	}
	return nil
}

// Bound is a closed interval.
type Bound struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

func (b Bound) Contains(v float64) bool {
	return v >= b.Min && v <= b.Max
}

// Unbounded is the interval (-Inf, +Inf).
func Unbounded() Bound {
	return Bound{Min: math.Inf(-1), Max: math.Inf(1)}
}

// Box is the region a curve may occupy. Missing entries are unbounded.
type Box struct {
	Params map[string]Bound
	State  []Bound
}

type Predictor int

const (
	// Secant extrapolates along the chord of the last two accepted points.
	Secant Predictor = iota
	// Tangent extrapolates along the bordered-system tangent.
	Tangent
)

func (p Predictor) String() string {
	if p == Tangent {
		return "tangent"
	}
	return "secant"
}

// Directions selects which traversals a run performs.
type Directions int

const (
	Both Directions = iota
	ForwardOnly
	BackwardOnly
)

// DefaultMaxNumPoints caps a single traversal direction.
const DefaultMaxNumPoints = 1000

// DefaultFoldTol is the arclength bracket width at which fold refinement stops.
const DefaultFoldTol = 1e-8

// Request describes one continuation run. All tolerances and bounds are
// carried here; the engine keeps no state between runs.
type Request struct {
	ID          string
	System      dynamo.System
	StartState  dynamo.State
	StartParams dynamo.Params
	FreeParams  []string

	Step         StepConfig
	MaxNumPoints int
	Box          Box
	DetectFolds  bool
	Predictor    Predictor
	Directions   Directions
	Solver       equilibrium.Config
	FoldTol      float64
	// StabilityThreshold is the real-part bound below which an eigenvalue counts as stable.
	StabilityThreshold float64

	// Stop, if set, ends a traversal after the point it returns true for.
	Stop func(Point) bool
}

// NewRequest fills a request with default step, solver and fold settings.
func NewRequest(sys dynamo.System, x0 dynamo.State, p dynamo.Params, free ...string) Request {
	return Request{
		System:             sys,
		StartState:         x0,
		StartParams:        p,
		FreeParams:         free,
		Step:               DefaultStepConfig(),
		MaxNumPoints:       DefaultMaxNumPoints,
		DetectFolds:        true,
		Solver:             equilibrium.DefaultConfig(),
		FoldTol:            DefaultFoldTol,
		StabilityThreshold: -1e-9,
	}
}

// Validate rejects malformed requests before any computation.
func (r Request) Validate() error {
	if r.System == nil {
		return fmt.Errorf("%w: no system", dynamo.ErrInvalidConfig)
	}
	if err := r.Step.Validate(); err != nil {
		return err
	}
	if err := r.Solver.Validate(); err != nil {
		return err
	}
	if r.MaxNumPoints < 1 {
		return fmt.Errorf("%w: max number of points must be positive, got %d", dynamo.ErrInvalidConfig, r.MaxNumPoints)
	}
	if r.FoldTol <= 0 {
		return fmt.Errorf("%w: fold tolerance must be positive, got %g", dynamo.ErrInvalidConfig, r.FoldTol)
	}
	if len(r.StartState) != r.System.StateDim() {
		return fmt.Errorf("%w: start state has %d components, system has %d",
			dynamo.ErrDimensionMismatch, len(r.StartState), r.System.StateDim())
	}
	if !r.StartState.IsValid() {
		return fmt.Errorf("%w: start state", dynamo.ErrInvalidState)
	}
	if len(r.FreeParams) == 0 {
		return fmt.Errorf("%w: no free parameter", dynamo.ErrInvalidConfig)
	}

	seen := make(map[string]bool, len(r.FreeParams))
	for _, name := range r.FreeParams {
		if _, ok := r.StartParams.Lookup(name); !ok {
			return fmt.Errorf("%w: free parameter: %w %q", dynamo.ErrInvalidConfig, dynamo.ErrUnknownParam, name)
		}
		if seen[name] {
			return fmt.Errorf("%w: free parameter %q listed twice", dynamo.ErrInvalidConfig, name)
		}
		seen[name] = true
	}

	for name, b := range r.Box.Params {
		if _, ok := r.StartParams.Lookup(name); !ok {
			return fmt.Errorf("%w: bound: %w %q", dynamo.ErrInvalidConfig, dynamo.ErrUnknownParam, name)
		}
		if !seen[name] {
			return fmt.Errorf("%w: bound on %q, which is not a free parameter", dynamo.ErrInvalidConfig, name)
		}
		if !(b.Min < b.Max) {
			return fmt.Errorf("%w: empty bound [%g, %g] on %q", dynamo.ErrInvalidConfig, b.Min, b.Max, name)
		}
		if !b.Contains(r.StartParams.Get(name)) {
			return fmt.Errorf("%w: start value %g of %q outside [%g, %g]",
				dynamo.ErrInvalidConfig, r.StartParams.Get(name), name, b.Min, b.Max)
		}
	}

	if len(r.Box.State) != 0 {
		if len(r.Box.State) != r.System.StateDim() {
			return fmt.Errorf("%w: %d state bounds for a %d-dimensional system",
				dynamo.ErrDimensionMismatch, len(r.Box.State), r.System.StateDim())
		}
		for i, b := range r.Box.State {
			if !(b.Min < b.Max) {
				return fmt.Errorf("%w: empty bound [%g, %g] on state %d", dynamo.ErrInvalidConfig, b.Min, b.Max, i)
			}
		}
		if err := r.checkState(r.StartState); err != nil {
			return err
		}
	}

	return nil
}

// checkState rejects a state outside the state box.
func (r Request) checkState(x dynamo.State) error {
	if len(r.Box.State) != len(x) {
		return nil
	}
	for i, b := range r.Box.State {
		if !b.Contains(x[i]) {
			return fmt.Errorf("%w: start state %d = %g outside [%g, %g]", dynamo.ErrInvalidConfig, i, x[i], b.Min, b.Max)
		}
	}
	return nil
}

// bounds returns the box as one interval per unknown (state, then free params).
func (r Request) bounds() []Bound {
	n := r.System.StateDim()
	out := make([]Bound, n+len(r.FreeParams))
	for i := range out {
		out[i] = Unbounded()
	}
	if len(r.Box.State) == n {
		copy(out, r.Box.State)
	}
	for k, name := range r.FreeParams {
		if b, ok := r.Box.Params[name]; ok {
			out[n+k] = b
		}
	}
	return out
}
