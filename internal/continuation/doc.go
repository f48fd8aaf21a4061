// Package continuation traces curves of equilibria and of limit points
// through parameter space by pseudo-arclength predictor-corrector
// continuation.
//
//   - [Engine.Equilibria]: equilibrium curve in one free parameter, with
//     fold (LP) detection on the sign of det(dF/dx)
//   - [Engine.Folds]: curve of limit points in two free parameters,
//     started from a detected [LimitPoint]
//
// Each run traces a forward and a backward direction from the start point
// concurrently. Forward is the direction in which the last free parameter
// increases. [Curve.Points] joins the two with the start point once, and
// [Curve.LimitPoints] numbers the folds LP1, LP2, ... in curve order.
//
// # Example
//
//	sys := model.NewMutualActivation()
//	req := continuation.NewRequest(sys, dynamo.State{0, 0}, sys.DefaultParams(), "a0")
//	req.Box.Params = map[string]continuation.Bound{"a0": {Min: 0, Max: 0.1}}
//	eq, err := continuation.NewEngine(log).Equilibria(ctx, req)
//	...
//	lp, _ := eq.LimitPoint("LP1")
//	folds, err := engine.Folds(ctx, continuation.NewRequest(sys, nil, dynamo.Params{}, "a0", "a"), lp)
//
// A traversal ends on a [Termination]; none of them discard the points
// already accepted.
package continuation
