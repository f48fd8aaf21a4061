package continuation

import (
	"context"
	"fmt"
	"math"

	"github.com/san-kum/foldsim/internal/dynamo"
	"github.com/san-kum/foldsim/internal/equilibrium"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Observer receives every point as it is accepted. Forward and backward
// traversals run concurrently, so implementations must be safe for
// concurrent use.
type Observer interface {
	OnPoint(dir Direction, pt Point)
}

type ObserverFunc func(dir Direction, pt Point)

func (f ObserverFunc) OnPoint(dir Direction, pt Point) { f(dir, pt) }

// Engine runs continuation requests. It holds no per-run state and may be
// shared across goroutines once observers are registered.
type Engine struct {
	log       *zap.Logger
	observers []Observer
}

func NewEngine(log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{log: log}
}

func (e *Engine) AddObserver(o Observer) {
	e.observers = append(e.observers, o)
}

func (e *Engine) notify(dir Direction, pt Point) {
	for _, o := range e.observers {
		o.OnPoint(dir, pt)
	}
}

// Equilibria traces the equilibrium curve through the request's start
// point in its single free parameter.
func (e *Engine) Equilibria(ctx context.Context, req Request) (*Curve, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if len(req.FreeParams) != 1 {
		return nil, fmt.Errorf("%w: equilibrium continuation needs one free parameter, got %d",
			dynamo.ErrInvalidConfig, len(req.FreeParams))
	}

	solver := equilibrium.NewSolver(req.Solver, e.log).WithThreshold(req.StabilityThreshold)
	eq, err := solver.Solve(req.System, req.StartState, req.StartParams)
	if err != nil {
		return nil, fmt.Errorf("continuation: start point: %w", err)
	}
	if err := req.checkState(eq.State); err != nil {
		return nil, fmt.Errorf("continuation: corrected start point: %w", err)
	}

	u0 := append(eq.State.Clone(), req.StartParams.Get(req.FreeParams[0]))
	br := equilibriumBranch{newCurveSystem(req)}
	return e.trace(ctx, req, br, u0, EquilibriumCurve)
}

// Folds traces the curve of limit points through lp in two parameters.
// The start state and parameters are taken from lp; the first free
// parameter must be the one lp was detected in. Fold detection is off on
// this curve regardless of the request.
func (e *Engine) Folds(ctx context.Context, req Request, lp LimitPoint) (*Curve, error) {
	req.StartState = lp.Point.State.Clone()
	req.StartParams = lp.Point.Params
	req.DetectFolds = false

	if err := req.Validate(); err != nil {
		return nil, err
	}
	if len(req.FreeParams) != 2 {
		return nil, fmt.Errorf("%w: fold continuation needs two free parameters, got %d",
			dynamo.ErrInvalidConfig, len(req.FreeParams))
	}
	if req.FreeParams[0] != lp.Param {
		return nil, fmt.Errorf("%w: first free parameter %q is not the limit point parameter %q",
			dynamo.ErrInvalidConfig, req.FreeParams[0], lp.Param)
	}

	br := foldBranch{newCurveSystem(req)}
	n := req.System.StateDim()
	u := append(req.StartState.Clone(), req.StartParams.Get(req.FreeParams[0]), req.StartParams.Get(req.FreeParams[1]))

	// Polish onto det = 0 with the second parameter held fixed.
	res, err := correct(br, req.Solver, u, basis(len(u), n+1), u[n+1], req.Solver.MaxIter)
	if err != nil {
		return nil, fmt.Errorf("continuation: fold start point: %w", err)
	}
	return e.trace(ctx, req, br, res.U, FoldCurve)
}

func (e *Engine) trace(ctx context.Context, req Request, br branch, u0 []float64, kind CurveKind) (*Curve, error) {
	curve := &Curve{
		ID:         req.ID,
		Kind:       kind,
		FreeParams: append([]string(nil), req.FreeParams...),
		VarNames:   req.System.VarNames(),
	}
	log := e.log.With(zap.String("curve", req.ID), zap.Stringer("kind", kind))

	t0, ok := nullVector(br.jacobian(u0))
	if !ok {
		log.Warn("no tangent at start point", zap.Float64s("u", u0))
		start := br.point(u0)
		start.Flag = Start
		for _, dir := range directions(req.Directions) {
			seg := &Segment{Direction: dir, Points: []Point{start}, Termination: StartFailed}
			curve.setSegment(seg)
		}
		return curve, nil
	}

	log.Info("continuation started",
		zap.Strings("free", req.FreeParams),
		zap.Float64s("start", u0),
		zap.Stringer("predictor", req.Predictor))

	dirs := directions(req.Directions)
	segs := make([]*Segment, len(dirs))
	bounds := req.bounds()

	var g errgroup.Group
	for i, dir := range dirs {
		st := &stepper{
			br:     br,
			req:    req,
			n:      req.System.StateDim(),
			bounds: bounds,
			dir:    dir,
			log:    log,
			notify: e.notify,
		}
		g.Go(func() error {
			segs[i] = st.run(ctx, u0, t0)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, seg := range segs {
		curve.setSegment(seg)
	}

	log.Info("continuation finished",
		zap.Int("points", curve.Len()),
		zap.Int("limit_points", len(curve.LimitPoints())))
	return curve, ctx.Err()
}

func (c *Curve) setSegment(seg *Segment) {
	if seg.Direction == Backward {
		c.Backward = seg
		return
	}
	c.Forward = seg
}

func directions(d Directions) []Direction {
	switch d {
	case ForwardOnly:
		return []Direction{Forward}
	case BackwardOnly:
		return []Direction{Backward}
	default:
		return []Direction{Forward, Backward}
	}
}

// FoldValue returns det(dF/dx) at a curve point, recomputed from its state
// and parameters.
func FoldValue(sys dynamo.System, pt Point) float64 {
	return curveSystem{sys: sys, base: pt.Params, n: sys.StateDim()}.detAt(pt.State)
}

// Converged reports whether every point on c satisfies ‖F‖ < tol.
func Converged(c *Curve, tol float64) bool {
	for _, pt := range c.Points() {
		if !(pt.Residual < tol) || math.IsNaN(pt.Residual) {
			return false
		}
	}
	return true
}
