package export

import (
	"strings"
	"testing"

	"github.com/san-kum/foldsim/internal/analysis"
	"github.com/san-kum/foldsim/internal/continuation"
	"github.com/san-kum/foldsim/internal/dynamo"
	"github.com/san-kum/foldsim/internal/stability"
)

func testCurve() *continuation.Curve {
	base := dynamo.NewParams([]string{"p"}, []float64{0})
	pt := func(p, x float64, st stability.Label, flag continuation.Flag) continuation.Point {
		return continuation.Point{
			State:     dynamo.State{x},
			Params:    base.With("p", p),
			Free:      []float64{p},
			Stability: st,
			Flag:      flag,
		}
	}
	return &continuation.Curve{
		ID:         "EQ1",
		FreeParams: []string{"p"},
		VarNames:   []string{"x"},
		Forward: &continuation.Segment{Points: []continuation.Point{
			pt(1, -1, stability.Unstable, continuation.Start),
			pt(0.25, -0.5, stability.Unstable, continuation.Regular),
			pt(0, 0, stability.Unstable, continuation.LimitPointFlag),
			pt(0.25, 0.5, stability.Stable, continuation.Regular),
			pt(1, 1, stability.Stable, continuation.BoundaryFlag),
		}},
	}
}

func TestCurveToSVG(t *testing.T) {
	svg, err := CurveToSVG(testCurve(), "p", "x", 400, 300)
	if err != nil {
		t.Fatal(err)
	}

	if !strings.HasPrefix(svg, "<?xml") || !strings.HasSuffix(svg, "</svg>\n") {
		t.Error("not a complete SVG document")
	}
	if got := strings.Count(svg, "<path"); got != 2 {
		t.Errorf("expected one stable and one unstable path, got %d", got)
	}
	if got := strings.Count(svg, "stroke-dasharray"); got != 1 {
		t.Errorf("expected one dashed path, got %d", got)
	}
	if !strings.Contains(svg, ">LP1</text>") {
		t.Error("limit point not labelled")
	}
	if !strings.Contains(svg, `stroke="`+stableColor+`"`) {
		t.Error("stable stretch not drawn in the stable colour")
	}
}

func TestCurveToSVG_UnknownAxis(t *testing.T) {
	if _, err := CurveToSVG(testCurve(), "q", "x", 400, 300); err == nil {
		t.Error("expected an error for an unknown axis")
	}
}

func TestCurvesToSVG_TooFewPoints(t *testing.T) {
	if _, err := CurvesToSVG(nil, "p", "x", 400, 300); err == nil {
		t.Error("expected an error with no curves")
	}
}

func TestTrajectoryToSVG(t *testing.T) {
	if TrajectoryToSVG([]analysis.Point2{{X: 0, Y: 0}}, 100, 100, "#fff") != "" {
		t.Error("single point should give empty output")
	}

	svg := TrajectoryToSVG([]analysis.Point2{{X: 0, Y: 0}, {X: 1, Y: 2}, {X: 2, Y: 1}}, 100, 100, "#fff")
	if strings.Count(svg, " L") != 2 {
		t.Errorf("expected 2 line segments:\n%s", svg)
	}
}
