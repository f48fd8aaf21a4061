package dynamo

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// FiniteDiffEpsilon is the relative perturbation used by the numeric derivatives.
const FiniteDiffEpsilon = 1e-6

// JacobianOf returns dF/dx at (x, p), analytic when sys implements
// Jacobian and central differences otherwise.
func JacobianOf(sys System, x State, p Params) *mat.Dense {
	if j, ok := sys.(Jacobian); ok {
		return j.Jacobian(x, p)
	}
	return NumericJacobian(sys, x, p, FiniteDiffEpsilon)
}

// NumericJacobian approximates dF/dx by central differences with a
// step of eps·max(1, |x_j|) in each component.
func NumericJacobian(sys System, x State, p Params, eps float64) *mat.Dense {
	n := len(x)
	jac := mat.NewDense(n, n, nil)
	xp := x.Clone()
	for j := 0; j < n; j++ {
		h := eps * math.Max(1, math.Abs(x[j]))
		orig := xp[j]

		xp[j] = orig + h
		fPlus := sys.Derive(xp, p)
		xp[j] = orig - h
		fMinus := sys.Derive(xp, p)
		xp[j] = orig

		for i := 0; i < n; i++ {
			jac.Set(i, j, (fPlus[i]-fMinus[i])/(2*h))
		}
	}
	return jac
}

// ParamDerivative approximates dF/dp for a single named parameter.
func ParamDerivative(sys System, x State, p Params, name string) State {
	v := p.Get(name)
	h := FiniteDiffEpsilon * math.Max(1, math.Abs(v))
	fPlus := sys.Derive(x, p.With(name, v+h))
	fMinus := sys.Derive(x, p.With(name, v-h))

	d := make(State, len(fPlus))
	for i := range d {
		d[i] = (fPlus[i] - fMinus[i]) / (2 * h)
	}
	return d
}
