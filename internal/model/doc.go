// Package model provides concrete evaluators for the dynamo.System contract.
//
//   - [MutualActivation]: two-gene mutual activation network with a
//     self-activation loop on y (analytic Jacobian)
//   - [Fold]: saddle-node normal form, one fold at p = 0
//   - [Cusp]: cusp normal form, two folds meeting at the origin
//   - [Linear]: affine test system without an analytic Jacobian
//
// Every model also exposes DefaultState, a reasonable starting guess for
// the equilibrium solver.
package model
