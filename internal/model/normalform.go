package model

import (
	"github.com/san-kum/foldsim/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

// Fold is the saddle-node normal form dx/dt = p - x².
// Two equilibria x = ±√p exist for p > 0 and merge at p = 0.
type Fold struct{}

func NewFold() *Fold { return &Fold{} }

func (f *Fold) StateDim() int      { return 1 }
func (f *Fold) VarNames() []string { return []string{"x"} }

func (f *Fold) DefaultParams() dynamo.Params {
	return dynamo.NewParams([]string{"p"}, []float64{0.25})
}

func (f *Fold) DefaultState() dynamo.State { return dynamo.State{0.5} }

func (f *Fold) Derive(s dynamo.State, p dynamo.Params) dynamo.State {
	return dynamo.State{p.Get("p") - s[0]*s[0]}
}

func (f *Fold) Jacobian(s dynamo.State, _ dynamo.Params) *mat.Dense {
	return mat.NewDense(1, 1, []float64{-2 * s[0]})
}

// Cusp is the cusp normal form dx/dt = p + q·x - x³.
// For q > 0 it has two folds at p = ∓2(q/3)^(3/2); the fold locus in the
// (p, q) plane is 27p² = 4q³.
type Cusp struct{}

func NewCusp() *Cusp { return &Cusp{} }

func (c *Cusp) StateDim() int      { return 1 }
func (c *Cusp) VarNames() []string { return []string{"x"} }

func (c *Cusp) DefaultParams() dynamo.Params {
	return dynamo.NewParams([]string{"p", "q"}, []float64{-1, 1})
}

func (c *Cusp) DefaultState() dynamo.State { return dynamo.State{-1.3247} }

func (c *Cusp) Derive(s dynamo.State, p dynamo.Params) dynamo.State {
	x := s[0]
	return dynamo.State{p.Get("p") + p.Get("q")*x - x*x*x}
}

func (c *Cusp) Jacobian(s dynamo.State, p dynamo.Params) *mat.Dense {
	x := s[0]
	return mat.NewDense(1, 1, []float64{p.Get("q") - 3*x*x})
}
