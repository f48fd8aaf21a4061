package export

import (
	"fmt"
	"math"
	"strings"

	"github.com/san-kum/foldsim/internal/analysis"
	"github.com/san-kum/foldsim/internal/continuation"
	"github.com/san-kum/foldsim/internal/stability"
)

const (
	background  = "#0a0a0a"
	stableColor = "#00ff88"
	foldColor   = "#ff5555"
	textColor   = "#cccccc"
)

// palette colours unstable runs per curve; stable runs share stableColor.
var palette = []string{"#66aaff", "#ffaa33", "#cc66ff", "#33dddd"}

type frame struct {
	minX, maxX, minY, maxY float64
	width, height          int
}

func newFrame(xs, ys []float64, width, height int) frame {
	f := frame{width: width, height: height}
	f.minX, f.maxX = padded(xs)
	f.minY, f.maxY = padded(ys)
	return f
}

// padded returns the range of v widened by 10% on each side.
func padded(v []float64) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, x := range v {
		lo = math.Min(lo, x)
		hi = math.Max(hi, x)
	}
	span := hi - lo
	if span == 0 {
		span = 1
	}
	return lo - span*0.1, hi + span*0.1
}

func (f frame) px(x, y float64) (float64, float64) {
	return (x - f.minX) / (f.maxX - f.minX) * float64(f.width),
		float64(f.height) - (y-f.minY)/(f.maxY-f.minY)*float64(f.height)
}

func header(sb *strings.Builder, width, height int) {
	fmt.Fprintf(sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="%s"/>
`, width, height, width, height, background)
}

func path(sb *strings.Builder, pts [][2]float64, color string, dashed bool) {
	if len(pts) < 2 {
		return
	}
	dash := ""
	if dashed {
		dash = ` stroke-dasharray="6,4"`
	}
	fmt.Fprintf(sb, `<path fill="none" stroke="%s" stroke-width="1.5"%s d="M%.1f,%.1f`, color, dash, pts[0][0], pts[0][1])
	for _, p := range pts[1:] {
		fmt.Fprintf(sb, " L%.1f,%.1f", p[0], p[1])
	}
	sb.WriteString("\"/>\n")
}

// CurveToSVG draws a single curve; see CurvesToSVG.
func CurveToSVG(curve *continuation.Curve, xAxis, yAxis string, width, height int) (string, error) {
	return CurvesToSVG([]*continuation.Curve{curve}, xAxis, yAxis, width, height)
}

// CurvesToSVG draws curves in the (xAxis, yAxis) plane on shared axes.
// Stable stretches are solid, unstable stretches dashed, and limit points
// are marked with a labelled circle.
func CurvesToSVG(curves []*continuation.Curve, xAxis, yAxis string, width, height int) (string, error) {
	type sample struct {
		x, y   float64
		stable bool
		fold   bool
	}
	var all [][]sample
	var xs, ys []float64
	for _, c := range curves {
		if c == nil {
			continue
		}
		var run []sample
		for _, pt := range c.Points() {
			x, ok := c.Axis(pt, xAxis)
			if !ok {
				return "", fmt.Errorf("export: curve %s has no axis %q", c.ID, xAxis)
			}
			y, ok := c.Axis(pt, yAxis)
			if !ok {
				return "", fmt.Errorf("export: curve %s has no axis %q", c.ID, yAxis)
			}
			run = append(run, sample{x: x, y: y, stable: pt.Stability == stability.Stable, fold: pt.Flag == continuation.LimitPointFlag})
			xs, ys = append(xs, x), append(ys, y)
		}
		all = append(all, run)
	}
	if len(xs) < 2 {
		return "", fmt.Errorf("export: need at least 2 points, got %d", len(xs))
	}

	f := newFrame(xs, ys, width, height)
	var sb strings.Builder
	header(&sb, width, height)

	for ci, run := range all {
		// Consecutive points with equal stability form one path; each path
		// starts at the last point of the previous one so the curve stays joined.
		var cur [][2]float64
		for i, s := range run {
			x, y := f.px(s.x, s.y)
			if i > 0 && s.stable != run[i-1].stable {
				path(&sb, cur, strokeFor(run[i-1].stable, ci), !run[i-1].stable)
				cur = cur[len(cur)-1:]
			}
			cur = append(cur, [2]float64{x, y})
		}
		if len(run) > 0 {
			last := run[len(run)-1].stable
			path(&sb, cur, strokeFor(last, ci), !last)
		}
	}

	n := 0
	for _, run := range all {
		for _, s := range run {
			if !s.fold {
				continue
			}
			n++
			x, y := f.px(s.x, s.y)
			fmt.Fprintf(&sb, `<circle cx="%.1f" cy="%.1f" r="4" fill="none" stroke="%s" stroke-width="1.5"/>
<text x="%.1f" y="%.1f" fill="%s" font-size="11" font-family="monospace">LP%d</text>
`, x, y, foldColor, x+6, y-6, textColor, n)
		}
	}

	fmt.Fprintf(&sb, `<text x="8" y="%d" fill="%s" font-size="12" font-family="monospace">%s ∈ [%.4g, %.4g]  %s ∈ [%.4g, %.4g]</text>
`, height-8, textColor, xAxis, f.minX, f.maxX, yAxis, f.minY, f.maxY)
	sb.WriteString("</svg>\n")
	return sb.String(), nil
}

func strokeFor(stable bool, curve int) string {
	if stable {
		return stableColor
	}
	return palette[curve%len(palette)]
}

// TrajectoryToSVG draws a polyline through points, such as a phase
// portrait or a time series.
func TrajectoryToSVG(points []analysis.Point2, width, height int, strokeColor string) string {
	if len(points) < 2 {
		return ""
	}
	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	for i, p := range points {
		xs[i], ys[i] = p.X, p.Y
	}
	f := newFrame(xs, ys, width, height)

	pts := make([][2]float64, len(points))
	for i, p := range points {
		x, y := f.px(p.X, p.Y)
		pts[i] = [2]float64{x, y}
	}

	var sb strings.Builder
	header(&sb, width, height)
	path(&sb, pts, strokeColor, false)
	sb.WriteString("</svg>\n")
	return sb.String()
}
