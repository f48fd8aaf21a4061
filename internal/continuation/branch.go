package continuation

import (
	"math"

	"github.com/san-kum/foldsim/internal/dynamo"
	"github.com/san-kum/foldsim/internal/stability"
	"gonum.org/v1/gonum/mat"
)

// branch is an underdetermined system R(u) = 0 with one more unknown than
// equations. Unknowns are laid out as the state followed by the free
// parameters in request order.
type branch interface {
	dim() int
	residual(u []float64) []float64
	// jacobian is (dim-1) × dim.
	jacobian(u []float64) *mat.Dense
	// orientation is the unknown whose increase defines the forward direction.
	orientation() int
	point(u []float64) Point
}

// detStep is the relative finite-difference step for the gradient of det(dF/dx).
const detStep = 1e-5

type curveSystem struct {
	sys       dynamo.System
	base      dynamo.Params
	free      []string
	n         int
	threshold float64
}

func newCurveSystem(req Request) curveSystem {
	return curveSystem{
		sys:       req.System,
		base:      req.StartParams,
		free:      req.FreeParams,
		n:         req.System.StateDim(),
		threshold: req.StabilityThreshold,
	}
}

func (c curveSystem) split(u []float64) (dynamo.State, dynamo.Params) {
	p := c.base
	for k, name := range c.free {
		p = p.With(name, u[c.n+k])
	}
	return dynamo.State(u[:c.n]), p
}

func (c curveSystem) detAt(u []float64) float64 {
	x, p := c.split(u)
	return stability.Determinant(dynamo.JacobianOf(c.sys, x, p))
}

func (c curveSystem) point(u []float64) Point {
	x, p := c.split(u)
	jac := dynamo.JacobianOf(c.sys, x, p)
	eigs := stability.Eigenvalues(jac)
	free := make([]float64, len(c.free))
	copy(free, u[c.n:])
	return Point{
		State:       x.Clone(),
		Params:      p,
		Free:        free,
		Residual:    c.sys.Derive(x, p).Norm(),
		Stability:   stability.ClassifyEigenvalues(eigs, c.threshold),
		Eigenvalues: eigs,
		TestValue:   stability.Determinant(jac),
	}
}

// fill writes [dF/dx | dF/dp_free] into the first n rows of out.
func (c curveSystem) fill(out *mat.Dense, u []float64) {
	x, p := c.split(u)
	fx := dynamo.JacobianOf(c.sys, x, p)
	for i := 0; i < c.n; i++ {
		for j := 0; j < c.n; j++ {
			out.Set(i, j, fx.At(i, j))
		}
	}
	for k, name := range c.free {
		dp := dynamo.ParamDerivative(c.sys, x, p, name)
		for i := 0; i < c.n; i++ {
			out.Set(i, c.n+k, dp[i])
		}
	}
}

// equilibriumBranch is F(x, p) = 0 in u = (x, p).
type equilibriumBranch struct {
	curveSystem
}

func (b equilibriumBranch) dim() int         { return b.n + 1 }
func (b equilibriumBranch) orientation() int { return b.n }

func (b equilibriumBranch) residual(u []float64) []float64 {
	x, p := b.split(u)
	return b.sys.Derive(x, p)
}

func (b equilibriumBranch) jacobian(u []float64) *mat.Dense {
	out := mat.NewDense(b.n, b.n+1, nil)
	b.fill(out, u)
	return out
}

// foldBranch is {F(x, p1, p2) = 0, det dF/dx = 0} in u = (x, p1, p2).
type foldBranch struct {
	curveSystem
}

func (b foldBranch) dim() int         { return b.n + 2 }
func (b foldBranch) orientation() int { return b.n + 1 }

func (b foldBranch) residual(u []float64) []float64 {
	x, p := b.split(u)
	return append(b.sys.Derive(x, p), b.detAt(u))
}

func (b foldBranch) jacobian(u []float64) *mat.Dense {
	d := b.dim()
	out := mat.NewDense(b.n+1, d, nil)
	b.fill(out, u)

	up := append([]float64(nil), u...)
	for j := 0; j < d; j++ {
		h := detStep * math.Max(1, math.Abs(u[j]))
		orig := up[j]
		up[j] = orig + h
		plus := b.detAt(up)
		up[j] = orig - h
		minus := b.detAt(up)
		up[j] = orig
		out.Set(b.n, j, (plus-minus)/(2*h))
	}
	return out
}
