package model

import (
	"github.com/san-kum/foldsim/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

// MutualActivationParams lists the network parameters in evaluator order.
var MutualActivationParams = []string{"a0", "a", "k1", "k0", "d1", "b0", "b", "k2", "d2", "g", "k3"}

// MutualActivation is a two-gene mutual activation network where y also
// activates itself.
// State: [x, y]
// Equations:
//
//	dx/dt = a0 + a·y²/((k1-k0)² + y²) - d1·x
//	dy/dt = b0 + b·x²/(k2² + x²) - d2·y + g·y²/(k3² + y²)
type MutualActivation struct{}

func NewMutualActivation() *MutualActivation {
	return &MutualActivation{}
}

func (m *MutualActivation) StateDim() int      { return 2 }
func (m *MutualActivation) VarNames() []string { return []string{"x", "y"} }

func (m *MutualActivation) DefaultParams() dynamo.Params {
	return dynamo.NewParams(MutualActivationParams, []float64{
		0.01, // a0
		5.5,  // a
		3.0,  // k1
		0.0,  // k0
		1.0,  // d1
		0.01, // b0
		5.5,  // b
		3.0,  // k2
		1.1,  // d2
		1.5,  // g
		3.0,  // k3
	})
}

func (m *MutualActivation) DefaultState() dynamo.State {
	return dynamo.State{0, 0}
}

func (m *MutualActivation) Derive(s dynamo.State, p dynamo.Params) dynamo.State {
	x, y := s[0], s[1]
	k1 := p.Get("k1") - p.Get("k0")
	k2, k3 := p.Get("k2"), p.Get("k3")

	dx := p.Get("a0") + p.Get("a")*y*y/(k1*k1+y*y) - p.Get("d1")*x
	dy := p.Get("b0") + p.Get("b")*x*x/(k2*k2+x*x) - p.Get("d2")*y + p.Get("g")*y*y/(k3*k3+y*y)

	return dynamo.State{dx, dy}
}

// Jacobian implements dynamo.Jacobian. The Hill terms differentiate as
// d/dy [y²/(k²+y²)] = 2·y·k²/(k²+y²)².
func (m *MutualActivation) Jacobian(s dynamo.State, p dynamo.Params) *mat.Dense {
	x, y := s[0], s[1]
	k1 := p.Get("k1") - p.Get("k0")
	k2, k3 := p.Get("k2"), p.Get("k3")

	hill := func(v, k float64) float64 {
		den := k*k + v*v
		return 2 * v * k * k / (den * den)
	}

	return mat.NewDense(2, 2, []float64{
		-p.Get("d1"), p.Get("a") * hill(y, k1),
		p.Get("b") * hill(x, k2), -p.Get("d2") + p.Get("g")*hill(y, k3),
	})
}
