package analysis

import (
	"fmt"

	"github.com/san-kum/foldsim/internal/dynamo"
)

// Grid is a rectangular sampling of the (XIndex, YIndex) plane of state
// space. Other state components are taken from Base.
type Grid struct {
	XMin, XMax float64
	YMin, YMax float64
	NX, NY     int
	XIndex     int
	YIndex     int
	Base       dynamo.State
}

// DefaultGrid covers [0, 10]² in the first two components.
func DefaultGrid(n int) Grid {
	return Grid{XMin: 0, XMax: 10, YMin: 0, YMax: 10, NX: n, NY: n, XIndex: 0, YIndex: 1}
}

func (g Grid) validate(sys dynamo.System) error {
	if g.NX < 2 || g.NY < 2 {
		return fmt.Errorf("%w: grid needs at least 2×2 samples, got %d×%d", dynamo.ErrInvalidConfig, g.NX, g.NY)
	}
	if !(g.XMax > g.XMin) || !(g.YMax > g.YMin) {
		return fmt.Errorf("%w: empty grid extent", dynamo.ErrInvalidConfig)
	}
	n := sys.StateDim()
	if g.XIndex < 0 || g.XIndex >= n || g.YIndex < 0 || g.YIndex >= n || g.XIndex == g.YIndex {
		return fmt.Errorf("%w: plane (%d, %d) in a %d-dimensional system", dynamo.ErrDimensionMismatch, g.XIndex, g.YIndex, n)
	}
	if len(g.Base) != 0 && len(g.Base) != n {
		return fmt.Errorf("%w: base state has %d components, system has %d", dynamo.ErrDimensionMismatch, len(g.Base), n)
	}
	return nil
}

func (g Grid) X(i int) float64 { return g.XMin + float64(i)*(g.XMax-g.XMin)/float64(g.NX-1) }
func (g Grid) Y(j int) float64 { return g.YMin + float64(j)*(g.YMax-g.YMin)/float64(g.NY-1) }

func (g Grid) state(n int, x, y float64) dynamo.State {
	s := make(dynamo.State, n)
	copy(s, g.Base)
	s[g.XIndex] = x
	s[g.YIndex] = y
	return s
}

type Point2 struct {
	X, Y float64
}

// Nullcline is the sampled zero set of one component of F in the grid plane.
type Nullcline struct {
	Component int
	Name      string
	Points    []Point2
}

// Nullclines locates F_i = 0 for each plane component i by sign changes
// along grid rows and columns, with linear interpolation inside the cell.
// Rows are evaluated in parallel; the output order does not depend on
// scheduling.
func Nullclines(sys dynamo.System, p dynamo.Params, g Grid) ([]Nullcline, error) {
	if err := g.validate(sys); err != nil {
		return nil, err
	}
	n := sys.StateDim()

	values := make([][]dynamo.State, g.NY)
	dynamo.ParallelFor(g.NY, 8, func(start, end int) {
		for j := start; j < end; j++ {
			row := make([]dynamo.State, g.NX)
			for i := 0; i < g.NX; i++ {
				row[i] = sys.Derive(g.state(n, g.X(i), g.Y(j)), p)
			}
			values[j] = row
		}
	})

	names := sys.VarNames()
	var out []Nullcline
	for _, c := range []int{g.XIndex, g.YIndex} {
		nc := Nullcline{Component: c, Name: names[c]}
		for j := 0; j < g.NY; j++ {
			for i := 0; i+1 < g.NX; i++ {
				if x, ok := crossing(g.X(i), g.X(i+1), values[j][i][c], values[j][i+1][c]); ok {
					nc.Points = append(nc.Points, Point2{X: x, Y: g.Y(j)})
				}
			}
		}
		for i := 0; i < g.NX; i++ {
			for j := 0; j+1 < g.NY; j++ {
				if y, ok := crossing(g.Y(j), g.Y(j+1), values[j][i][c], values[j+1][i][c]); ok {
					nc.Points = append(nc.Points, Point2{X: g.X(i), Y: y})
				}
			}
		}
		out = append(out, nc)
	}
	return out, nil
}

// crossing interpolates the zero of a linear function through (a, fa) and
// (b, fb). A zero exactly at a counts; one exactly at b is left to the
// next interval.
func crossing(a, b, fa, fb float64) (float64, bool) {
	switch {
	case fa == 0:
		return a, true
	case fa*fb < 0:
		return a + (b-a)*fa/(fa-fb), true
	default:
		return 0, false
	}
}
