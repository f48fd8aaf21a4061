package analysis

import (
	"github.com/san-kum/foldsim/internal/sim"
)

// PhasePortrait2D holds data for a 2D phase space plot.
type PhasePortrait2D struct {
	XIndex, YIndex int
	Points         []Point2
}

// TrajectoryPortrait projects an integrated trajectory onto two components.
func TrajectoryPortrait(res *sim.Result, xIdx, yIdx int) *PhasePortrait2D {
	if res == nil || len(res.States) == 0 || xIdx >= len(res.States[0]) || yIdx >= len(res.States[0]) {
		return nil
	}
	portrait := &PhasePortrait2D{
		XIndex: xIdx,
		YIndex: yIdx,
		Points: make([]Point2, 0, len(res.States)),
	}
	for _, x := range res.States {
		portrait.Points = append(portrait.Points, Point2{X: x[xIdx], Y: x[yIdx]})
	}
	return portrait
}

// PhasePortraitToASCII converts phase portrait to ASCII art.
func PhasePortraitToASCII(portrait *PhasePortrait2D, width, height int) string {
	if portrait == nil || len(portrait.Points) == 0 || width <= 0 || height <= 0 {
		return ""
	}

	minX, maxX := portrait.Points[0].X, portrait.Points[0].X
	minY, maxY := portrait.Points[0].Y, portrait.Points[0].Y
	for _, p := range portrait.Points {
		minX, maxX = min(minX, p.X), max(maxX, p.X)
		minY, maxY = min(minY, p.Y), max(maxY, p.Y)
	}

	rangeX := maxX - minX
	rangeY := maxY - minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	minX -= rangeX * 0.1
	maxX += rangeX * 0.1
	minY -= rangeY * 0.1
	maxY += rangeY * 0.1
	rangeX = maxX - minX
	rangeY = maxY - minY

	canvas := newCanvas(width, height)
	for _, p := range portrait.Points {
		col := int((p.X - minX) / rangeX * float64(width-1))
		row := height - 1 - int((p.Y-minY)/rangeY*float64(height-1))
		if row >= 0 && row < height && col >= 0 && col < width {
			canvas[row][col] = '•'
		}
	}

	// Axes, where they cross the visible area.
	if minX <= 0 && maxX >= 0 {
		col := int((0 - minX) / rangeX * float64(width-1))
		for row := 0; row < height; row++ {
			if col >= 0 && col < width && canvas[row][col] == ' ' {
				canvas[row][col] = '│'
			}
		}
	}
	if minY <= 0 && maxY >= 0 {
		row := height - 1 - int((0-minY)/rangeY*float64(height-1))
		for col := 0; col < width; col++ {
			if row >= 0 && row < height && canvas[row][col] == ' ' {
				canvas[row][col] = '─'
			}
		}
	}

	return canvasString(canvas)
}

// PlaneToASCII overlays a quiver field, nullclines and equilibria on the
// grid plane. Equilibria are drawn as S (stable) or U (unstable).
func PlaneToASCII(g Grid, field []Arrow, nullclines []Nullcline, stable, unstable []Point2, width, height int) string {
	if width <= 0 || height <= 0 {
		return ""
	}
	canvas := newCanvas(width, height)
	plot := func(x, y float64, glyph rune) {
		col := int((x - g.XMin) / (g.XMax - g.XMin) * float64(width-1))
		row := height - 1 - int((y-g.YMin)/(g.YMax-g.YMin)*float64(height-1))
		if row >= 0 && row < height && col >= 0 && col < width {
			canvas[row][col] = glyph
		}
	}

	for _, a := range field {
		plot(a.X, a.Y, ArrowGlyph(a.DX, a.DY))
	}
	nullGlyphs := []rune{'x', 'y', 'z', 'w'}
	for k, nc := range nullclines {
		glyph := nullGlyphs[k%len(nullGlyphs)]
		for _, p := range nc.Points {
			plot(p.X, p.Y, glyph)
		}
	}
	for _, p := range unstable {
		plot(p.X, p.Y, 'U')
	}
	for _, p := range stable {
		plot(p.X, p.Y, 'S')
	}
	return canvasString(canvas)
}
