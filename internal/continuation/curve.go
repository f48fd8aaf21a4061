package continuation

import (
	"fmt"

	"github.com/san-kum/foldsim/internal/dynamo"
	"github.com/san-kum/foldsim/internal/stability"
)

type Direction int

const (
	Forward Direction = iota
	Backward
)

func (d Direction) String() string {
	if d == Backward {
		return "backward"
	}
	return "forward"
}

type Flag int

const (
	Regular Flag = iota
	Start
	LimitPointFlag
	BoundaryFlag
)

func (f Flag) String() string {
	switch f {
	case Start:
		return "start"
	case LimitPointFlag:
		return "LP"
	case BoundaryFlag:
		return "B"
	default:
		return "regular"
	}
}

// Termination records why a traversal stopped. None of these are errors:
// the points collected up to the stop remain valid.
type Termination int

const (
	NotRun Termination = iota
	MaxPointsReached
	BoundaryReached
	StepSizeExhausted
	Stopped
	StartFailed
)

func (t Termination) String() string {
	switch t {
	case MaxPointsReached:
		return "max points reached"
	case BoundaryReached:
		return "boundary reached"
	case StepSizeExhausted:
		return "step size exhausted"
	case Stopped:
		return "stopped"
	case StartFailed:
		return "start failed"
	default:
		return "not run"
	}
}

// Err maps the termination onto the shared error taxonomy, for callers
// that want errors.Is checks. Normal stops map to nil.
func (t Termination) Err() error {
	switch t {
	case StepSizeExhausted:
		return dynamo.ErrStepSizeExhausted
	case BoundaryReached:
		return dynamo.ErrBoundaryReached
	default:
		return nil
	}
}

// Point is one accepted solution on a curve. Points are never modified
// after they are appended.
type Point struct {
	Index  int
	State  dynamo.State
	Params dynamo.Params
	// Free holds the free parameter values in request order.
	Free []float64
	// S is the signed arclength from the start: positive forward, negative backward.
	S float64
	// Tangent is the unit tangent at the point, oriented along the
	// traversal: the bordered-system tangent with the tangent predictor,
	// else the secant into the point. Limit points carry the chord of
	// their bracket.
	Tangent     []float64
	StepSize    float64
	Iterations  int
	Residual    float64
	Stability   stability.Label
	Eigenvalues []complex128
	// TestValue is det(dF/dx), the fold test function.
	TestValue float64
	Flag      Flag
}

// LimitPoint is a located fold.
type LimitPoint struct {
	Label     string
	Direction Direction
	Point     Point
	Param     string
	Value     float64
	// Bracket holds the free parameter at the two accepted points that
	// straddle the fold.
	Bracket [2]float64
}

func (lp LimitPoint) String() string {
	return fmt.Sprintf("%s %s=%.6f state=%v", lp.Label, lp.Param, lp.Value, []float64(lp.Point.State))
}

// Segment is the output of one traversal direction.
type Segment struct {
	Direction   Direction
	Points      []Point
	LimitPoints []LimitPoint
	Termination Termination
	Retries     int
}

type CurveKind int

const (
	EquilibriumCurve CurveKind = iota
	FoldCurve
)

func (k CurveKind) String() string {
	if k == FoldCurve {
		return "LP-C"
	}
	return "EP-C"
}

// Curve is the result of a continuation run. A nil segment means that
// direction was not requested.
type Curve struct {
	ID         string
	Kind       CurveKind
	FreeParams []string
	VarNames   []string
	Forward    *Segment
	Backward   *Segment
}

// Points concatenates the backward traversal in reverse with the forward
// traversal; the shared start point appears once.
func (c *Curve) Points() []Point {
	var out []Point
	if c.Backward != nil {
		for i := len(c.Backward.Points) - 1; i >= 0; i-- {
			if i == 0 && c.Forward != nil && len(c.Forward.Points) > 0 {
				break
			}
			out = append(out, c.Backward.Points[i])
		}
	}
	if c.Forward != nil {
		out = append(out, c.Forward.Points...)
	}
	return out
}

func (c *Curve) Len() int { return len(c.Points()) }

// LimitPoints returns every fold on the curve in curve order, labelled
// LP1, LP2, ... in that order.
func (c *Curve) LimitPoints() []LimitPoint {
	var out []LimitPoint
	if c.Backward != nil {
		for i := len(c.Backward.LimitPoints) - 1; i >= 0; i-- {
			out = append(out, c.Backward.LimitPoints[i])
		}
	}
	if c.Forward != nil {
		out = append(out, c.Forward.LimitPoints...)
	}
	for i := range out {
		out[i].Label = fmt.Sprintf("LP%d", i+1)
	}
	return out
}

// LimitPoint returns the fold with the given label, as assigned by LimitPoints.
func (c *Curve) LimitPoint(label string) (LimitPoint, bool) {
	for _, lp := range c.LimitPoints() {
		if lp.Label == label {
			return lp, true
		}
	}
	return LimitPoint{}, false
}

// Segments returns the traversals that were run, forward first.
func (c *Curve) Segments() []*Segment {
	var out []*Segment
	if c.Forward != nil {
		out = append(out, c.Forward)
	}
	if c.Backward != nil {
		out = append(out, c.Backward)
	}
	return out
}

// Axis resolves a plot axis on a point: a state variable name, or a
// parameter name.
func (c *Curve) Axis(pt Point, name string) (float64, bool) {
	for i, v := range c.VarNames {
		if v == name && i < len(pt.State) {
			return pt.State[i], true
		}
	}
	return pt.Params.Lookup(name)
}
