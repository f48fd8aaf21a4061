package experiment

import (
	"context"
	"errors"
	"fmt"

	"github.com/san-kum/foldsim/internal/analysis"
	"github.com/san-kum/foldsim/internal/config"
	"github.com/san-kum/foldsim/internal/continuation"
	"github.com/san-kum/foldsim/internal/dynamo"
	"github.com/san-kum/foldsim/internal/equilibrium"
	"github.com/san-kum/foldsim/internal/sim"
	"go.uber.org/zap"
)

// EquilibriumCurveID names the one-parameter curve of a study.
const EquilibriumCurveID = "EQ1"

// FoldCurveID names the fold curve started from the i-th limit point
// (1-based) of the equilibrium curve.
func FoldCurveID(i int) string { return fmt.Sprintf("SN%d", i) }

// Study runs the bifurcation pipeline for one config: the equilibrium
// curve in the free parameter, then a fold curve from each of its limit
// points. Curves are owned by the study and addressed by id.
type Study struct {
	cfg    *config.Config
	reg    *Registry
	sys    dynamo.System
	params dynamo.Params
	solver *equilibrium.Solver
	engine *continuation.Engine
	log    *zap.Logger

	curves map[string]*continuation.Curve
	order  []string
}

// NewStudy resolves the model, applies the parameter overrides and checks
// every name the config refers to against the system.
func NewStudy(cfg *config.Config, reg *Registry, log *zap.Logger) (*Study, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if reg == nil {
		reg = NewRegistry()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	sys, err := reg.GetModel(cfg.Model)
	if err != nil {
		return nil, err
	}
	params, err := sys.DefaultParams().Override(cfg.Params)
	if err != nil {
		return nil, fmt.Errorf("%w: model %s: %w", dynamo.ErrInvalidConfig, cfg.Model, err)
	}
	if len(cfg.InitState) != sys.StateDim() {
		return nil, fmt.Errorf("%w: init state has %d components, model %s has %d",
			dynamo.ErrDimensionMismatch, len(cfg.InitState), cfg.Model, sys.StateDim())
	}
	names := []string{cfg.Continuation.FreeParam}
	if cfg.Folds.Enabled {
		names = append(names, cfg.Folds.SecondParam)
	}
	for _, name := range names {
		if _, ok := params.Lookup(name); !ok {
			return nil, fmt.Errorf("%w: model %s: %w %q", dynamo.ErrInvalidConfig, cfg.Model, dynamo.ErrUnknownParam, name)
		}
	}
	vars := make(map[string]bool, sys.StateDim())
	for _, v := range sys.VarNames() {
		vars[v] = true
	}
	for _, bounds := range []map[string]continuation.Bound{cfg.Continuation.StateBounds, cfg.Folds.StateBounds} {
		for name := range bounds {
			if !vars[name] {
				return nil, fmt.Errorf("%w: model %s has no state variable %q", dynamo.ErrInvalidConfig, cfg.Model, name)
			}
		}
	}

	log = log.With(zap.String("model", cfg.Model))
	return &Study{
		cfg:    cfg.Clone(),
		reg:    reg,
		sys:    sys,
		params: params,
		solver: equilibrium.NewSolver(cfg.Solver, log).WithThreshold(cfg.Continuation.Threshold),
		engine: continuation.NewEngine(log),
		log:    log,
		curves: make(map[string]*continuation.Curve),
	}, nil
}

func (s *Study) Config() *config.Config      { return s.cfg }
func (s *Study) System() dynamo.System       { return s.sys }
func (s *Study) Params() dynamo.Params       { return s.params }
func (s *Study) Solver() *equilibrium.Solver { return s.solver }

// Engine exposes the continuation engine so callers can attach observers
// before Run.
func (s *Study) Engine() *continuation.Engine { return s.engine }

// Start solves for the equilibrium nearest the configured initial state.
func (s *Study) Start() (equilibrium.Equilibrium, error) {
	return s.solver.Solve(s.sys, dynamo.State(s.cfg.InitState).Clone(), s.params)
}

// EquilibriumRequest is the request Run uses for the equilibrium curve.
func (s *Study) EquilibriumRequest() continuation.Request {
	c := s.cfg.Continuation
	req := continuation.NewRequest(s.sys, dynamo.State(s.cfg.InitState).Clone(), s.params, c.FreeParam)
	req.ID = EquilibriumCurveID
	req.Step = c.Step
	req.MaxNumPoints = c.MaxNumPoints
	req.Box.Params = c.Bounds
	req.Box.State = s.stateBox(c.StateBounds)
	req.DetectFolds = c.DetectFolds
	req.Predictor = c.PredictorKind()
	req.Solver = s.cfg.Solver
	req.FoldTol = c.FoldTol
	req.StabilityThreshold = c.Threshold
	return req
}

// FoldRequest is the request Run uses for fold curves. Its start point is
// filled in from the limit point by the engine.
func (s *Study) FoldRequest(id string) continuation.Request {
	c, f := s.cfg.Continuation, s.cfg.Folds
	req := continuation.NewRequest(s.sys, nil, s.params, c.FreeParam, f.SecondParam)
	req.ID = id
	req.Step = f.Step
	req.MaxNumPoints = f.MaxNumPoints
	req.Box.Params = f.Bounds
	req.Box.State = s.stateBox(f.StateBounds)
	req.Predictor = c.PredictorKind()
	req.Solver = s.cfg.Solver
	req.FoldTol = c.FoldTol
	req.StabilityThreshold = c.Threshold
	return req
}

// stateBox orders named state bounds by the system's variables, leaving
// unnamed variables unbounded. No bounds gives no box.
func (s *Study) stateBox(bounds map[string]continuation.Bound) []continuation.Bound {
	if len(bounds) == 0 {
		return nil
	}
	names := s.sys.VarNames()
	out := make([]continuation.Bound, len(names))
	for i, name := range names {
		out[i] = continuation.Unbounded()
		if b, ok := bounds[name]; ok {
			out[i] = b
		}
	}
	return out
}

// Run computes EQ1 and, when folds are enabled, SN1, SN2, ... for its
// limit points in curve order. A failed fold curve is logged and reported
// in the joined error without stopping the others; cancellation stops
// the study. Curves computed before an error are kept.
func (s *Study) Run(ctx context.Context) error {
	eq, err := s.engine.Equilibria(ctx, s.EquilibriumRequest())
	if eq != nil {
		s.put(eq)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", EquilibriumCurveID, err)
	}
	if !s.cfg.Folds.Enabled {
		return nil
	}

	var errs []error
	for i, lp := range eq.LimitPoints() {
		id := FoldCurveID(i + 1)
		curve, err := s.engine.Folds(ctx, s.FoldRequest(id), lp)
		if curve != nil {
			s.put(curve)
		}
		if err == nil {
			continue
		}
		if ctx.Err() != nil {
			return fmt.Errorf("%s: %w", id, err)
		}
		s.log.Warn("fold continuation failed",
			zap.String("curve", id),
			zap.String("limit_point", lp.Label),
			zap.Error(err))
		errs = append(errs, fmt.Errorf("%s from %s: %w", id, lp.Label, err))
	}
	return errors.Join(errs...)
}

func (s *Study) put(c *continuation.Curve) {
	if _, ok := s.curves[c.ID]; !ok {
		s.order = append(s.order, c.ID)
	}
	s.curves[c.ID] = c
}

// Curves returns a copy of the curve map; the curves themselves are shared.
func (s *Study) Curves() map[string]*continuation.Curve {
	out := make(map[string]*continuation.Curve, len(s.curves))
	for id, c := range s.curves {
		out[id] = c
	}
	return out
}

func (s *Study) Curve(id string) (*continuation.Curve, bool) {
	c, ok := s.curves[id]
	return c, ok
}

// IDs lists curve ids in the order they were computed.
func (s *Study) IDs() []string {
	return append([]string(nil), s.order...)
}

// PhasePlane is the steady-state picture of the configured parameters.
type PhasePlane struct {
	Grid       analysis.Grid
	Quiver     analysis.Grid
	Nullclines []analysis.Nullcline
	Field      []analysis.Arrow
	Steady     equilibrium.ScanResult
}

// PhasePlane scans the configured guesses for steady states and samples
// the nullclines and the normalised flow in the configured window.
func (s *Study) PhasePlane() (*PhasePlane, error) {
	pc := s.cfg.Plane
	grid := analysis.Grid{
		XMin: pc.XMin, XMax: pc.XMax, YMin: pc.YMin, YMax: pc.YMax,
		NX: pc.N, NY: pc.N, XIndex: 0, YIndex: 1,
	}
	quiver := grid
	quiver.NX, quiver.NY = pc.Quiver, pc.Quiver

	ncl, err := analysis.Nullclines(s.sys, s.params, grid)
	if err != nil {
		return nil, err
	}
	field, err := analysis.VectorField(s.sys, s.params, quiver, true)
	if err != nil {
		return nil, err
	}

	guesses := make([]dynamo.State, len(s.cfg.Scan.Guesses))
	for i, g := range s.cfg.Scan.Guesses {
		guesses[i] = dynamo.State(g).Clone()
	}
	return &PhasePlane{
		Grid:       grid,
		Quiver:     quiver,
		Nullclines: ncl,
		Field:      field,
		Steady:     s.solver.Scan(s.sys, guesses, s.params, s.cfg.Scan.Decimals),
	}, nil
}

// Timeseries integrates from the configured initial state over the
// configured span and evaluation grid.
func (s *Study) Timeseries(ctx context.Context, observers ...sim.Observer) (*sim.Result, error) {
	return s.Simulate(ctx, dynamo.State(s.cfg.InitState), s.cfg.Timeseries.Grid(), observers...)
}

// Simulate integrates from x0 over the configured span, recording the
// state at each time in tEval.
func (s *Study) Simulate(ctx context.Context, x0 dynamo.State, tEval []float64, observers ...sim.Observer) (*sim.Result, error) {
	integ, err := s.reg.GetIntegrator(s.cfg.Integrator)
	if err != nil {
		return nil, err
	}
	ts := s.cfg.Timeseries
	sm := sim.New(s.sys, integ, ts.Sim, s.log)
	for _, o := range observers {
		sm.AddObserver(o)
	}
	return sm.Integrate(ctx, x0.Clone(), s.params, ts.Span(), tEval)
}
