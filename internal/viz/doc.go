// Package viz renders curves and steady states in the terminal.
//
//   - [RenderSummary]: traversal and limit point tables for a curve
//   - [RenderSteady]: steady states of a multi-guess scan
//   - [Explorer]: Bubble Tea model for browsing stored curves
//   - [Canvas]: Braille dot canvas used by the explorer plot
//
// # Explorer keys
//
//	←/→ h/l  step one point
//	H/L      step ten points
//	g/G      first/last point
//	f/F      next/previous limit point
//	n/p      next/previous curve
//	x/y      cycle the x/y axis
//	t        cycle themes
//	?        help
//	q        quit
package viz
