package analysis

import (
	"fmt"
	"math"
	"strings"

	"github.com/san-kum/foldsim/internal/continuation"
	"github.com/san-kum/foldsim/internal/stability"
)

const (
	stableGlyph   = '•'
	unstableGlyph = '·'
	foldGlyph     = 'X'
)

// DiagramToASCII draws a curve in the (xAxis, yAxis) plane. Stable points
// are drawn as •, unstable as ·, limit points as X on top.
func DiagramToASCII(curve *continuation.Curve, xAxis, yAxis string, width, height int) (string, error) {
	if curve == nil || width <= 0 || height <= 0 {
		return "", nil
	}
	pts := curve.Points()
	if len(pts) == 0 {
		return "", nil
	}

	xs := make([]float64, len(pts))
	ys := make([]float64, len(pts))
	for i, pt := range pts {
		x, ok := curve.Axis(pt, xAxis)
		if !ok {
			return "", fmt.Errorf("analysis: unknown axis %q", xAxis)
		}
		y, ok := curve.Axis(pt, yAxis)
		if !ok {
			return "", fmt.Errorf("analysis: unknown axis %q", yAxis)
		}
		xs[i], ys[i] = x, y
	}

	minX, maxX := bounds(xs)
	minY, maxY := bounds(ys)

	canvas := newCanvas(width, height)
	plot := func(x, y float64, glyph rune) {
		col := int((x - minX) / (maxX - minX) * float64(width-1))
		row := height - 1 - int((y-minY)/(maxY-minY)*float64(height-1))
		if row >= 0 && row < height && col >= 0 && col < width {
			canvas[row][col] = glyph
		}
	}

	for i, pt := range pts {
		glyph := unstableGlyph
		if pt.Stability == stability.Stable {
			glyph = stableGlyph
		}
		plot(xs[i], ys[i], glyph)
	}
	for i, pt := range pts {
		if pt.Flag == continuation.LimitPointFlag {
			plot(xs[i], ys[i], foldGlyph)
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %s ∈ [%.4g, %.4g], %s ∈ [%.4g, %.4g]\n", curve.ID, xAxis, minX, maxX, yAxis, minY, maxY)
	sb.WriteString(canvasString(canvas))
	return sb.String(), nil
}

func bounds(v []float64) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, x := range v {
		lo = math.Min(lo, x)
		hi = math.Max(hi, x)
	}
	if hi == lo {
		hi = lo + 1
	}
	return lo, hi
}

func newCanvas(width, height int) [][]rune {
	canvas := make([][]rune, height)
	for i := range canvas {
		canvas[i] = make([]rune, width)
		for j := range canvas[i] {
			canvas[i][j] = ' '
		}
	}
	return canvas
}

func canvasString(canvas [][]rune) string {
	var sb strings.Builder
	for _, row := range canvas {
		sb.WriteString(string(row))
		sb.WriteRune('\n')
	}
	return sb.String()
}
