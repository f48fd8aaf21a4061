package equilibrium

import (
	"fmt"

	"github.com/san-kum/foldsim/internal/dynamo"
	"github.com/san-kum/foldsim/internal/stability"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

// Equilibrium is a solved steady state. It is never modified after Solve
// returns it.
type Equilibrium struct {
	State       dynamo.State
	Params      dynamo.Params
	Jacobian    *mat.Dense
	Eigenvalues []complex128
	Stability   stability.Label
	Kind        stability.Kind
	Residual    float64
	Iterations  int
}

type Solver struct {
	cfg       Config
	threshold float64
	log       *zap.Logger
}

func NewSolver(cfg Config, log *zap.Logger) *Solver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Solver{cfg: cfg, threshold: stability.DefaultThreshold, log: log}
}

func (s *Solver) Config() Config { return s.cfg }

// WithThreshold returns a solver that labels equilibria with a different
// stability threshold.
func (s *Solver) WithThreshold(threshold float64) *Solver {
	c := *s
	c.threshold = threshold
	return &c
}

// Solve finds F(x, p) = 0 near guess at fixed parameters.
func (s *Solver) Solve(sys dynamo.System, guess dynamo.State, p dynamo.Params) (Equilibrium, error) {
	if err := s.cfg.Validate(); err != nil {
		return Equilibrium{}, err
	}
	if len(guess) != sys.StateDim() {
		return Equilibrium{}, fmt.Errorf("%w: guess has %d components, system has %d",
			dynamo.ErrDimensionMismatch, len(guess), sys.StateDim())
	}

	prob := Problem{
		Residual: func(u []float64) []float64 { return sys.Derive(u, p) },
		Jacobian: func(u []float64) *mat.Dense { return dynamo.JacobianOf(sys, u, p) },
	}

	res, err := Newton(prob, guess, s.cfg)
	if err != nil {
		s.log.Debug("equilibrium solve failed",
			zap.Float64s("guess", guess),
			zap.Error(err))
		return Equilibrium{}, err
	}

	eq := s.Label(sys, res.U, p)
	eq.Residual = res.Residual
	eq.Iterations = res.Iterations
	return eq, nil
}

// Label evaluates the Jacobian and stability at an already solved state.
func (s *Solver) Label(sys dynamo.System, x dynamo.State, p dynamo.Params) Equilibrium {
	jac := dynamo.JacobianOf(sys, x, p)
	eigs := stability.Eigenvalues(jac)
	return Equilibrium{
		State:       dynamo.State(x).Clone(),
		Params:      p,
		Jacobian:    jac,
		Eigenvalues: eigs,
		Stability:   stability.ClassifyEigenvalues(eigs, s.threshold),
		Kind:        stability.Describe(eigs, 1e-9),
		Residual:    sys.Derive(x, p).Norm(),
	}
}
