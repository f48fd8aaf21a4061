package model

import "github.com/san-kum/foldsim/internal/dynamo"

// Linear is dx/dt = A(x - c) in two dimensions. It has no analytic
// Jacobian, so solvers fall back to finite differences.
type Linear struct{}

func NewLinear() *Linear { return &Linear{} }

func (l *Linear) StateDim() int      { return 2 }
func (l *Linear) VarNames() []string { return []string{"x", "y"} }

func (l *Linear) DefaultParams() dynamo.Params {
	return dynamo.NewParams(
		[]string{"a11", "a12", "a21", "a22", "cx", "cy"},
		[]float64{-1, 0.5, 0, -2, 1, 2},
	)
}

func (l *Linear) DefaultState() dynamo.State { return dynamo.State{0, 0} }

func (l *Linear) Derive(s dynamo.State, p dynamo.Params) dynamo.State {
	dx := s[0] - p.Get("cx")
	dy := s[1] - p.Get("cy")
	return dynamo.State{
		p.Get("a11")*dx + p.Get("a12")*dy,
		p.Get("a21")*dx + p.Get("a22")*dy,
	}
}
