package continuation

import (
	"context"
	"math"

	"github.com/san-kum/foldsim/internal/equilibrium"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

// correct solves R(u) = 0 together with row·u = target from guess.
func correct(br branch, cfg equilibrium.Config, guess, row []float64, target float64, maxIter int) (equilibrium.Result, error) {
	d := br.dim()
	prob := equilibrium.Problem{
		Residual: func(u []float64) []float64 {
			return append(br.residual(u), dot(row, u)-target)
		},
		Jacobian: func(u []float64) *mat.Dense {
			a := mat.NewDense(d, d, nil)
			a.Slice(0, d-1, 0, d).(*mat.Dense).Copy(br.jacobian(u))
			a.SetRow(d-1, row)
			return a
		},
	}
	cfg.MaxIter = maxIter
	return equilibrium.Newton(prob, guess, cfg)
}

func basis(d, k int) []float64 {
	e := make([]float64, d)
	e[k] = 1
	return e
}

const maxFoldIter = 60

// stepper traces one direction of a curve.
type stepper struct {
	br     branch
	req    Request
	n      int
	bounds []Bound
	dir    Direction
	log    *zap.Logger
	notify func(Direction, Point)
	seg    *Segment
}

func (st *stepper) sign() float64 {
	if st.dir == Backward {
		return -1
	}
	return 1
}

func (st *stepper) accept(pt Point) bool {
	if len(st.seg.Points) >= st.req.MaxNumPoints {
		return false
	}
	pt.Index = len(st.seg.Points)
	st.seg.Points = append(st.seg.Points, pt)
	if st.notify != nil {
		st.notify(st.dir, pt)
	}
	return true
}

func (st *stepper) run(ctx context.Context, u0, t0 []float64) *Segment {
	cfg := st.req.Step
	st.seg = &Segment{Direction: st.dir}

	t := orient(t0, st.br.orientation(), st.dir)
	start := st.br.point(u0)
	start.Tangent = t
	start.StepSize = cfg.StepSize
	start.Flag = Start
	if !st.accept(start) {
		st.seg.Termination = MaxPointsReached
		return st.seg
	}

	u := u0
	tau := start.TestValue
	var s float64
	ds := cfg.StepSize

	for {
		if len(st.seg.Points) >= st.req.MaxNumPoints {
			st.seg.Termination = MaxPointsReached
			break
		}
		if ctx.Err() != nil {
			st.seg.Termination = Stopped
			break
		}

		next, res, used, ok := st.step(u, t, &ds)
		if !ok {
			st.seg.Termination = StepSizeExhausted
			break
		}

		if k, bound, frac, out := st.exit(u, next); out {
			st.finishAtBoundary(u, next, t, k, bound, frac, tau, s, used)
			st.seg.Termination = BoundaryReached
			break
		}

		pt := st.br.point(next)
		if st.req.DetectFolds && tau*pt.TestValue < 0 {
			if !st.locateFold(u, next, tau, pt.TestValue, s, used) {
				st.seg.Termination = MaxPointsReached
				break
			}
		}

		s += norm2(sub(next, u))
		nt := st.nextTangent(u, next, t)
		pt.S = st.sign() * s
		pt.Tangent = nt
		pt.StepSize = used
		pt.Iterations = res.Iterations
		if !st.accept(pt) {
			st.seg.Termination = MaxPointsReached
			break
		}
		if st.req.Stop != nil && st.req.Stop(pt) {
			st.seg.Termination = Stopped
			break
		}

		tau = pt.TestValue
		t = nt
		u = next

		switch {
		case res.Iterations <= cfg.FastIters:
			ds = math.Min(ds*cfg.GrowFactor, cfg.MaxStepSize)
		case res.Iterations >= cfg.MaxCorrIters-1:
			ds = math.Max(ds*cfg.ShrinkFactor, cfg.MinStepSize)
		}
	}

	st.log.Debug("traversal finished",
		zap.Stringer("direction", st.dir),
		zap.Int("points", len(st.seg.Points)),
		zap.Int("limit_points", len(st.seg.LimitPoints)),
		zap.Int("retries", st.seg.Retries),
		zap.Stringer("termination", st.seg.Termination))

	return st.seg
}

// step predicts along t and corrects onto the curve, shrinking ds until
// the corrector converges close to the prediction.
func (st *stepper) step(u, t []float64, ds *float64) ([]float64, equilibrium.Result, float64, bool) {
	cfg := st.req.Step
	for {
		h := *ds
		pred := axpy(h, t, u)
		res, err := correct(st.br, st.req.Solver, pred, t, dot(t, pred), cfg.MaxCorrIters)
		if err == nil && norm2(sub(res.U, pred)) <= h {
			return res.U, res, h, true
		}
		if h <= cfg.MinStepSize {
			st.log.Debug("step size exhausted",
				zap.Stringer("direction", st.dir),
				zap.Float64s("at", u),
				zap.Error(err))
			return nil, equilibrium.Result{}, h, false
		}
		*ds = math.Max(h*cfg.ShrinkFactor, cfg.MinStepSize)
		st.seg.Retries++
	}
}

func (st *stepper) nextTangent(u, next, t []float64) []float64 {
	if st.req.Predictor == Tangent {
		if nt, ok := borderedTangent(st.br.jacobian(next), t); ok {
			return nt
		}
	}
	if sec, ok := unit(sub(next, u)); ok {
		return sec
	}
	return t
}

// exit reports the first bound crossed on the chord from u to next, as the
// unknown index, the bound value and the chord fraction at the crossing.
func (st *stepper) exit(u, next []float64) (int, float64, float64, bool) {
	k, bound, frac := -1, 0.0, math.Inf(1)
	for i, b := range st.bounds {
		var v float64
		switch {
		case next[i] < b.Min:
			v = b.Min
		case next[i] > b.Max:
			v = b.Max
		default:
			continue
		}
		f := (v - u[i]) / (next[i] - u[i])
		if f < frac {
			k, bound, frac = i, v, f
		}
	}
	return k, bound, frac, k >= 0
}

func (st *stepper) inside(u []float64) bool {
	for i, b := range st.bounds {
		slack := 1e-9 * math.Max(1, math.Abs(u[i]))
		if u[i] < b.Min-slack || u[i] > b.Max+slack {
			return false
		}
	}
	return true
}

// finishAtBoundary solves for the point where the curve meets the bound on
// unknown k and appends it as the last point of the segment.
func (st *stepper) finishAtBoundary(u, next, t []float64, k int, bound, frac, tau, s, used float64) {
	if !(frac > 0 && frac <= 1) {
		st.log.Debug("bound not crossed within the step",
			zap.Stringer("direction", st.dir),
			zap.Int("unknown", k),
			zap.Float64("fraction", frac))
		return
	}
	guess := axpy(frac, sub(next, u), u)
	res, err := correct(st.br, st.req.Solver, guess, basis(len(u), k), bound, st.req.Solver.MaxIter)
	if err != nil || !st.inside(res.U) {
		st.log.Debug("boundary point not located",
			zap.Stringer("direction", st.dir),
			zap.Int("unknown", k),
			zap.Float64("bound", bound),
			zap.Error(err))
		return
	}

	chord := norm2(sub(res.U, u))
	if chord < 1e-12 {
		return
	}

	pt := st.br.point(res.U)
	if st.req.DetectFolds && tau*pt.TestValue < 0 {
		if !st.locateFold(u, res.U, tau, pt.TestValue, s, used) {
			return
		}
	}
	pt.S = st.sign() * (s + chord)
	pt.Tangent = st.nextTangent(u, res.U, t)
	pt.StepSize = used
	pt.Iterations = res.Iterations
	pt.Flag = BoundaryFlag
	st.accept(pt)
}

// locateFold refines the sign change of the test function between two
// accepted points and appends the fold. It reports false when the segment
// has no room left.
func (st *stepper) locateFold(ua, ub []float64, ta, tb, s, used float64) bool {
	u, iters := st.refineFold(ua, ub, ta, tb)

	pt := st.br.point(u)
	pt.S = st.sign() * (s + norm2(sub(u, ua)))
	if d, ok := unit(sub(ub, ua)); ok {
		pt.Tangent = d
	}
	pt.StepSize = used
	pt.Iterations = iters
	pt.Flag = LimitPointFlag
	if !st.accept(pt) {
		return false
	}

	lp := LimitPoint{
		Direction: st.dir,
		Point:     pt,
		Param:     st.req.FreeParams[0],
		Value:     u[st.n],
		Bracket:   [2]float64{ua[st.n], ub[st.n]},
	}
	st.seg.LimitPoints = append(st.seg.LimitPoints, lp)

	st.log.Info("limit point detected",
		zap.Stringer("direction", st.dir),
		zap.String("param", lp.Param),
		zap.Float64("value", lp.Value),
		zap.Float64s("state", pt.State))
	return true
}

// refineFold runs Illinois false position on the test function along the
// chord from ua to ub, correcting onto the curve at each trial distance.
func (st *stepper) refineFold(ua, ub []float64, ta, tb float64) ([]float64, int) {
	chord := sub(ub, ua)
	length := norm2(chord)
	d, ok := unit(chord)
	if !ok {
		return ua, 0
	}

	a, fa := 0.0, ta
	b, fb := length, tb
	var best []float64
	bestTau := math.Inf(1)
	iters := 0

	for i := 0; i < maxFoldIter && math.Abs(b-a) > st.req.FoldTol; i++ {
		c := b - fb*(b-a)/(fb-fa)
		if !(c > math.Min(a, b) && c < math.Max(a, b)) {
			c = (a + b) / 2
		}
		res, err := correct(st.br, st.req.Solver, axpy(c, d, ua), d, dot(d, ua)+c, st.req.Solver.MaxIter)
		if err != nil {
			c = (a + b) / 2
			res, err = correct(st.br, st.req.Solver, axpy(c, d, ua), d, dot(d, ua)+c, st.req.Solver.MaxIter)
			if err != nil {
				break
			}
		}
		iters += res.Iterations

		fc := st.br.point(res.U).TestValue
		if math.Abs(fc) < bestTau {
			best, bestTau = res.U, math.Abs(fc)
		}
		if fc == 0 {
			break
		}
		if fc*fb < 0 {
			a, fa = b, fb
		} else {
			fa /= 2
		}
		b, fb = c, fc
	}

	if best == nil {
		st.log.Warn("fold refinement failed, using nearest bracket end",
			zap.Stringer("direction", st.dir))
		if math.Abs(ta) <= math.Abs(tb) {
			return ua, iters
		}
		return ub, iters
	}
	return best, iters
}
