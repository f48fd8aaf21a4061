package sim

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/san-kum/foldsim/internal/dynamo"
	"go.uber.org/zap"
)

// Span is the closed time interval [T0, T1].
type Span struct {
	T0 float64 `yaml:"t0"`
	T1 float64 `yaml:"t1"`
}

type Config struct {
	// Dt is the initial and maximum internal step.
	Dt        float64 `yaml:"dt" validate:"gt=0"`
	Adaptive  bool    `yaml:"adaptive"`
	Tolerance float64 `yaml:"tolerance" validate:"gte=0"`
	MinDt     float64 `yaml:"min_dt" validate:"gte=0"`
}

func DefaultConfig() Config {
	return Config{
		Dt:        0.01,
		Adaptive:  true,
		Tolerance: 1e-6,
		MinDt:     1e-9,
	}
}

// DefaultSamples is the length of the default evaluation grid.
const DefaultSamples = 10000

// DefaultSpan is the time window of the default evaluation grid.
var DefaultSpan = Span{T0: 0, T1: 100}

// Linspace returns n evenly spaced values from a to b inclusive.
func Linspace(a, b float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	if n == 1 {
		return []float64{a}
	}
	out := make([]float64, n)
	step := (b - a) / float64(n-1)
	for i := range out {
		out[i] = a + float64(i)*step
	}
	out[n-1] = b
	return out
}

// Observer sees every recorded sample.
type Observer interface {
	OnSample(t float64, x dynamo.State)
}

type Result struct {
	Times    []float64
	States   []dynamo.State
	Steps    int
	Rejected int
}

// Final returns the last recorded state.
func (r *Result) Final() dynamo.State {
	if len(r.States) == 0 {
		return nil
	}
	return r.States[len(r.States)-1]
}

// Component returns the i-th state component of every sample.
func (r *Result) Component(i int) []float64 {
	out := make([]float64, len(r.States))
	for k, x := range r.States {
		out[k] = x[i]
	}
	return out
}

type Simulator struct {
	sys        dynamo.System
	integrator dynamo.Integrator
	cfg        Config
	observers  []Observer
	log        *zap.Logger
}

func New(sys dynamo.System, integrator dynamo.Integrator, cfg Config, log *zap.Logger) *Simulator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Simulator{
		sys:        sys,
		integrator: integrator,
		cfg:        cfg,
		log:        log,
	}
}

func (s *Simulator) AddObserver(o Observer) { s.observers = append(s.observers, o) }

// Integrate solves dx/dt = F(x, p) from x0 at span.T0 and records the
// state at each time in tEval. An empty tEval records every internal step.
// A partial result is returned with the error when the state turns
// NaN/Inf or ctx is cancelled.
func (s *Simulator) Integrate(ctx context.Context, x0 dynamo.State, p dynamo.Params, span Span, tEval []float64) (*Result, error) {
	if err := s.validate(x0, span, tEval); err != nil {
		return nil, err
	}

	result := &Result{
		Times:  make([]float64, 0, len(tEval)),
		States: make([]dynamo.State, 0, len(tEval)),
	}

	x := x0.Clone()
	t := span.T0
	dt := s.cfg.Dt

	record := func(t float64, x dynamo.State) {
		result.Times = append(result.Times, t)
		result.States = append(result.States, x.Clone())
		for _, obs := range s.observers {
			obs.OnSample(t, x)
		}
	}

	targets := tEval
	everyStep := len(tEval) == 0
	if everyStep {
		targets = []float64{span.T1}
		record(t, x)
	}

	for _, te := range targets {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		for te-t > 1e-12*math.Max(1, math.Abs(te)) {
			h := math.Min(dt, te-t)
			newX, next, ok := s.step(x, p, h)
			if !ok {
				result.Rejected++
				dt = math.Max(next, s.cfg.MinDt)
				continue
			}
			if !newX.IsValid() {
				s.log.Warn("integration diverged", zap.Float64("t", t), zap.Int("steps", result.Steps))
				return result, fmt.Errorf("%w: at t=%.4f after %d steps", dynamo.ErrInvalidState, t, result.Steps)
			}

			x = newX
			t += h
			result.Steps++
			if s.cfg.Adaptive && (h == dt || next < dt) {
				dt = math.Min(math.Max(next, s.cfg.MinDt), s.cfg.Dt)
			}
			if everyStep {
				record(t, x)
			}
		}
		t = te
		if !everyStep {
			record(t, x)
		}
	}

	s.log.Debug("integration complete",
		zap.Int("samples", len(result.Times)),
		zap.Int("steps", result.Steps),
		zap.Int("rejected", result.Rejected))

	return result, nil
}

func (s *Simulator) validate(x0 dynamo.State, span Span, tEval []float64) error {
	if s.cfg.Dt <= 0 {
		return fmt.Errorf("%w: dt must be positive, got %f", dynamo.ErrInvalidConfig, s.cfg.Dt)
	}
	if s.cfg.Adaptive && s.cfg.Tolerance <= 0 {
		return fmt.Errorf("%w: tolerance must be positive for adaptive stepping", dynamo.ErrInvalidConfig)
	}
	if !(span.T1 > span.T0) {
		return fmt.Errorf("%w: empty time span [%g, %g]", dynamo.ErrInvalidConfig, span.T0, span.T1)
	}
	if len(x0) != s.sys.StateDim() {
		return fmt.Errorf("%w: initial state has %d components, system has %d",
			dynamo.ErrDimensionMismatch, len(x0), s.sys.StateDim())
	}
	if !x0.IsValid() {
		return fmt.Errorf("%w: initial state", dynamo.ErrInvalidState)
	}
	if !sort.Float64sAreSorted(tEval) {
		return fmt.Errorf("%w: evaluation times must be non-decreasing", dynamo.ErrInvalidConfig)
	}
	if len(tEval) > 0 && (tEval[0] < span.T0 || tEval[len(tEval)-1] > span.T1) {
		return fmt.Errorf("%w: evaluation times outside [%g, %g]", dynamo.ErrInvalidConfig, span.T0, span.T1)
	}
	return nil
}

// step advances by h. In adaptive mode it also reports the suggested next
// step and whether the local error met the tolerance.
func (s *Simulator) step(x dynamo.State, p dynamo.Params, h float64) (dynamo.State, float64, bool) {
	if !s.cfg.Adaptive {
		return s.integrator.Step(s.sys, x, p, h), h, true
	}
	if h <= s.cfg.MinDt {
		return s.integrator.Step(s.sys, x, p, h), h, true
	}
	if adaptive, ok := s.integrator.(dynamo.AdaptiveIntegrator); ok {
		return adaptive.StepAdaptive(s.sys, x, p, h, s.cfg.Tolerance)
	}

	// Step doubling for fixed-step integrators.
	x1 := s.integrator.Step(s.sys, x, p, h)
	xHalf := s.integrator.Step(s.sys, x, p, h/2)
	x2 := s.integrator.Step(s.sys, xHalf, p, h/2)

	errEst := x1.Sub(x2).Norm()
	if errEst > s.cfg.Tolerance {
		return x2, h / 2, false
	}
	if errEst < s.cfg.Tolerance/10 {
		return x2, h * 2, true
	}
	return x2, h, true
}
