// Package dynamo provides the core primitives shared by the equilibrium,
// continuation and integration packages.
//
// The package defines the evaluator contract for autonomous ODE systems
// dx/dt = F(x, p):
//
//   - [State]: vector representing system state
//   - [Params]: ordered, copy-on-write parameter set
//   - [System]: right-hand side evaluator (pure, deterministic)
//   - [Jacobian]: optional analytic dF/dx; [JacobianOf] falls back to
//     central differences
//   - [Integrator]: time stepper used for trajectories only
//
// # Example
//
//	sys := model.NewMutualActivation()
//	p := sys.DefaultParams().With("a0", 0.05)
//	f := sys.Derive(dynamo.State{0, 0}, p)
//	j := dynamo.JacobianOf(sys, dynamo.State{0, 0}, p)
//
// # Errors
//
// The sentinel errors in this package form the error taxonomy shared by
// every solver. Failures of a single Newton solve are reported as
// [*SolveError], which unwraps to [ErrConvergence] or
// [ErrSingularJacobian].
package dynamo
