package analysis

import (
	"math"

	"github.com/san-kum/foldsim/internal/dynamo"
)

// Arrow is one quiver sample: the flow (DX, DY) at (X, Y).
type Arrow struct {
	X, Y      float64
	DX, DY    float64
	Magnitude float64
}

// VectorField samples F on the grid plane. With normalize set, arrows are
// scaled to unit length; zero-length arrows stay zero.
func VectorField(sys dynamo.System, p dynamo.Params, g Grid, normalize bool) ([]Arrow, error) {
	if err := g.validate(sys); err != nil {
		return nil, err
	}
	n := sys.StateDim()

	arrows := make([]Arrow, g.NX*g.NY)
	dynamo.ParallelFor(g.NY, 4, func(start, end int) {
		for j := start; j < end; j++ {
			for i := 0; i < g.NX; i++ {
				x, y := g.X(i), g.Y(j)
				f := sys.Derive(g.state(n, x, y), p)
				dx, dy := f[g.XIndex], f[g.YIndex]
				mag := math.Hypot(dx, dy)
				if normalize && mag > 0 {
					dx, dy = dx/mag, dy/mag
				}
				arrows[j*g.NX+i] = Arrow{X: x, Y: y, DX: dx, DY: dy, Magnitude: mag}
			}
		}
	})
	return arrows, nil
}

// ArrowGlyph picks one of eight direction glyphs for a flow vector.
func ArrowGlyph(dx, dy float64) rune {
	if dx == 0 && dy == 0 {
		return '·'
	}
	glyphs := []rune{'→', '↗', '↑', '↖', '←', '↙', '↓', '↘'}
	angle := math.Atan2(dy, dx)
	k := int(math.Round(angle/(math.Pi/4))) % 8
	if k < 0 {
		k += 8
	}
	return glyphs[k]
}
