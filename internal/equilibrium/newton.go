package equilibrium

import (
	"fmt"
	"math"

	"github.com/san-kum/foldsim/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

// Config bounds a damped Newton solve.
type Config struct {
	MaxIter     int     `yaml:"max_iter" validate:"gte=1"`
	Tol         float64 `yaml:"tol" validate:"gt=0"`
	MaxHalvings int     `yaml:"max_halvings" validate:"gte=0"`
	CondCeiling float64 `yaml:"cond_ceiling" validate:"gt=1"`
}

func DefaultConfig() Config {
	return Config{
		MaxIter:     50,
		Tol:         1e-8,
		MaxHalvings: 10,
		CondCeiling: 1e12,
	}
}

func (c Config) Validate() error {
	if c.MaxIter < 1 {
		return fmt.Errorf("%w: max iterations must be positive, got %d", dynamo.ErrInvalidConfig, c.MaxIter)
	}
	if c.Tol <= 0 {
		return fmt.Errorf("%w: tolerance must be positive, got %g", dynamo.ErrInvalidConfig, c.Tol)
	}
	if c.MaxHalvings < 0 {
		return fmt.Errorf("%w: max halvings must be non-negative, got %d", dynamo.ErrInvalidConfig, c.MaxHalvings)
	}
	if c.CondCeiling <= 1 {
		return fmt.Errorf("%w: condition ceiling must exceed 1, got %g", dynamo.ErrInvalidConfig, c.CondCeiling)
	}
	return nil
}

// Problem is a square nonlinear system R(u) = 0 with Jacobian dR/du.
type Problem struct {
	Residual func(u []float64) []float64
	Jacobian func(u []float64) *mat.Dense
}

// Result is a converged Newton iterate.
type Result struct {
	U          []float64
	Residual   float64
	Iterations int
}

// Newton runs damped Newton-Raphson from u0. The returned error is a
// *dynamo.SolveError wrapping ErrConvergence or ErrSingularJacobian.
func Newton(prob Problem, u0 []float64, cfg Config) (Result, error) {
	u := append([]float64(nil), u0...)
	f := prob.Residual(u)
	r := norm(f)

	for iter := 0; ; iter++ {
		if r < cfg.Tol {
			return Result{U: u, Residual: r, Iterations: iter}, nil
		}
		if iter == cfg.MaxIter || math.IsNaN(r) || math.IsInf(r, 0) {
			return Result{}, &dynamo.SolveError{Iterations: iter, Residual: r, State: u, Wrapped: dynamo.ErrConvergence}
		}

		jac := prob.Jacobian(u)
		step, singular := newtonStep(jac, f, cfg.CondCeiling)

		lambda := 1.0
		trial := make([]float64, len(u))
		improved := false
		var fTrial []float64
		var rTrial float64
		for h := 0; h <= cfg.MaxHalvings; h++ {
			for i := range u {
				trial[i] = u[i] + lambda*step[i]
			}
			fTrial = prob.Residual(trial)
			rTrial = norm(fTrial)
			if rTrial < r {
				improved = true
				break
			}
			lambda /= 2
		}

		if !improved {
			if singular {
				return Result{}, &dynamo.SolveError{Iterations: iter, Residual: r, State: u, Wrapped: dynamo.ErrSingularJacobian}
			}
			if math.IsNaN(rTrial) || math.IsInf(rTrial, 0) {
				return Result{}, &dynamo.SolveError{Iterations: iter, Residual: r, State: u, Wrapped: dynamo.ErrConvergence}
			}
		}

		u = append(u[:0], trial...)
		f, r = fTrial, rTrial
	}
}

// newtonStep solves J·δ = -f. When J is ill-conditioned it falls back to
// the regularised normal equations (JᵀJ + μI)·δ = -Jᵀf and reports singular.
func newtonStep(jac *mat.Dense, f []float64, condCeiling float64) ([]float64, bool) {
	n := len(f)
	rhs := mat.NewVecDense(n, nil)
	for i, v := range f {
		rhs.SetVec(i, -v)
	}

	if mat.Cond(jac, 1) <= condCeiling {
		var step mat.VecDense
		if err := step.SolveVec(jac, rhs); err == nil {
			return vecData(&step), false
		}
	}

	var jtj mat.Dense
	jtj.Mul(jac.T(), jac)
	mu := 1e-10 * math.Max(1, mat.Norm(&jtj, 1))
	for i := 0; i < n; i++ {
		jtj.Set(i, i, jtj.At(i, i)+mu)
	}

	var g mat.VecDense
	g.MulVec(jac.T(), rhs)

	var step mat.VecDense
	if err := step.SolveVec(&jtj, &g); err != nil {
		return make([]float64, n), true
	}
	return vecData(&step), true
}

func vecData(v *mat.VecDense) []float64 {
	out := make([]float64, v.Len())
	for i := range out {
		out[i] = v.AtVec(i)
	}
	return out
}

func norm(v []float64) float64 {
	return dynamo.State(v).Norm()
}
