// Package analysis turns solver output into plottable data.
//
//   - [Nullclines]: zero sets of each component of F on a [Grid]
//   - [VectorField]: quiver samples, optionally normalised
//   - [DiagramToASCII]: bifurcation diagram of a continuation curve
//   - [PhasePortraitToASCII]: 2D phase space trajectories
//   - [PlaneToASCII]: field, nullclines and equilibria in one plot
//
// # Example
//
//	g := analysis.DefaultGrid(100)
//	ncs, err := analysis.Nullclines(sys, p, g)
//	arrows, err := analysis.VectorField(sys, p, analysis.DefaultGrid(20), true)
package analysis
