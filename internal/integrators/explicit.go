package integrators

import "github.com/san-kum/foldsim/internal/dynamo"

// Tableau is the Butcher tableau of an explicit Runge-Kutta method. A is
// strictly lower triangular; row i holds the weights of stages 0..i-1.
// The systems are autonomous, so the nodes c never enter a step.
type Tableau struct {
	Name string
	A    [][]float64
	B    []float64
}

var (
	EulerTableau = Tableau{
		Name: "euler",
		A:    [][]float64{{}},
		B:    []float64{1},
	}
	HeunTableau = Tableau{
		Name: "heun",
		A:    [][]float64{{}, {1}},
		B:    []float64{0.5, 0.5},
	}
	RK4Tableau = Tableau{
		Name: "rk4",
		A:    [][]float64{{}, {0.5}, {0, 0.5}, {0, 0, 1}},
		B:    []float64{1.0 / 6, 1.0 / 3, 1.0 / 3, 1.0 / 6},
	}
)

// Explicit steps with a fixed tableau. It holds no scratch state, so one
// instance may be shared across goroutines.
type Explicit struct {
	tab Tableau
}

func NewExplicit(tab Tableau) *Explicit { return &Explicit{tab: tab} }

func NewEuler() *Explicit { return NewExplicit(EulerTableau) }
func NewHeun() *Explicit  { return NewExplicit(HeunTableau) }
func NewRK4() *Explicit   { return NewExplicit(RK4Tableau) }

func (e *Explicit) Name() string { return e.tab.Name }

func (e *Explicit) Step(sys dynamo.System, x dynamo.State, p dynamo.Params, dt float64) dynamo.State {
	n := len(x)
	k := make([]dynamo.State, len(e.tab.B))
	stage := make(dynamo.State, n)

	for s, row := range e.tab.A {
		copy(stage, x)
		for j, a := range row {
			if a == 0 {
				continue
			}
			for i := range stage {
				stage[i] += dt * a * k[j][i]
			}
		}
		k[s] = sys.Derive(stage, p).Clone()
	}

	out := x.Clone()
	for s, b := range e.tab.B {
		for i := range out {
			out[i] += dt * b * k[s][i]
		}
	}
	return out
}
