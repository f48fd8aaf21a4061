package dynamo

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (s State) Norm() float64 {
	sum := 0.0
	for _, v := range s {
		sum += v * v
	}
	return math.Sqrt(sum)
}

func (s State) Add(other State) State {
	result := make(State, len(s))
	for i := range s {
		if i < len(other) {
			result[i] = s[i] + other[i]
		} else {
			result[i] = s[i]
		}
	}
	return result
}

func (s State) Scale(factor float64) State {
	result := make(State, len(s))
	for i := range s {
		result[i] = s[i] * factor
	}
	return result
}

func (s State) Sub(other State) State {
	result := make(State, len(s))
	for i := range s {
		if i < len(other) {
			result[i] = s[i] - other[i]
		} else {
			result[i] = s[i]
		}
	}
	return result
}

// System is the right-hand side of an autonomous ODE dx/dt = F(x, p).
// Implementations must be pure: the same (x, p) always gives the same result.
type System interface {
	Derive(x State, p Params) State
	StateDim() int
	VarNames() []string
	DefaultParams() Params
}

// Jacobian is implemented by systems that supply dF/dx analytically.
type Jacobian interface {
	Jacobian(x State, p Params) *mat.Dense
}

type Integrator interface {
	Step(sys System, x State, p Params, dt float64) State
}

// AdaptiveIntegrator reports the suggested next step and whether the
// current step met the tolerance.
type AdaptiveIntegrator interface {
	Integrator
	StepAdaptive(sys System, x State, p Params, dt, tol float64) (State, float64, bool)
}
