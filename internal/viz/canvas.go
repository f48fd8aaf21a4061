package viz

import (
	"math"
	"strings"
)

// Braille cells hold 2x4 dots:
//
//	1 4
//	2 5
//	3 6
//	7 8
//
// starting at U+2800.
const brailleBase = 0x2800

var pixelMap = [4][2]int{
	{0x1, 0x8},
	{0x2, 0x10},
	{0x4, 0x20},
	{0x40, 0x80},
}

// Canvas is a Braille dot grid of Width×Height cells, (2·Width)×(4·Height) dots.
type Canvas struct {
	Width, Height int
	Grid          [][]rune
}

func NewCanvas(w, h int) *Canvas {
	c := &Canvas{Width: w, Height: h, Grid: make([][]rune, h)}
	for i := range c.Grid {
		c.Grid[i] = make([]rune, w)
	}
	c.Clear()
	return c
}

// Set turns on the dot at (x, y) in dot coordinates, y down.
func (c *Canvas) Set(x, y int) {
	if x < 0 || y < 0 {
		return
	}
	col, row := x/2, y/4
	if col >= c.Width || row >= c.Height {
		return
	}
	c.Grid[row][col] |= rune(pixelMap[y%4][x%2])
}

func (c *Canvas) Clear() {
	for i := range c.Grid {
		for j := range c.Grid[i] {
			c.Grid[i][j] = brailleBase
		}
	}
}

// Empty reports whether the cell at (col, row) has no dots set.
func (c *Canvas) Empty(col, row int) bool {
	return c.Grid[row][col] == brailleBase
}

// DrawLine draws a line in dot coordinates with Bresenham's algorithm.
func (c *Canvas) DrawLine(x0, y0, x1, y1 int) {
	dx := absInt(x1 - x0)
	dy := absInt(y1 - y0)
	sx := -1
	if x0 < x1 {
		sx = 1
	}
	sy := -1
	if y0 < y1 {
		sy = 1
	}
	err := dx - dy

	for {
		c.Set(x0, y0)
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x0 += sx
		}
		if e2 < dx {
			err += dx
			y0 += sy
		}
	}
}

func (c *Canvas) String() string {
	var b strings.Builder
	for _, row := range c.Grid {
		b.WriteString(string(row) + "\n")
	}
	return b.String()
}

// Viewport maps data coordinates onto a canvas.
type Viewport struct {
	MinX, MaxX float64
	MinY, MaxY float64
}

// Fit returns the viewport spanning xs and ys with a 5% margin.
func Fit(xs, ys []float64) Viewport {
	span := func(v []float64) (float64, float64) {
		a, b := math.Inf(1), math.Inf(-1)
		for _, x := range v {
			a, b = math.Min(a, x), math.Max(b, x)
		}
		if math.IsInf(a, 0) {
			return 0, 1
		}
		pad := (b - a) * 0.05
		if pad == 0 {
			pad = 0.5
		}
		return a - pad, b + pad
	}
	var v Viewport
	v.MinX, v.MaxX = span(xs)
	v.MinY, v.MaxY = span(ys)
	return v
}

// Dot converts a data point to dot coordinates on c.
func (v Viewport) Dot(c *Canvas, x, y float64) (int, int) {
	w, h := float64(c.Width*2-1), float64(c.Height*4-1)
	px := int(math.Round((x - v.MinX) / (v.MaxX - v.MinX) * w))
	py := int(math.Round(h - (y-v.MinY)/(v.MaxY-v.MinY)*h))
	return px, py
}

// Cell converts a data point to the canvas cell containing it.
func (v Viewport) Cell(c *Canvas, x, y float64) (int, int) {
	px, py := v.Dot(c, x, y)
	return px / 2, py / 4
}

// Line draws the segment between two data points.
func (v Viewport) Line(c *Canvas, x0, y0, x1, y1 float64) {
	ax, ay := v.Dot(c, x0, y0)
	bx, by := v.Dot(c, x1, y1)
	c.DrawLine(ax, ay, bx, by)
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
