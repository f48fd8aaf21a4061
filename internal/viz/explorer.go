package viz

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/san-kum/foldsim/internal/continuation"
	"github.com/san-kum/foldsim/internal/stability"
)

// Explorer browses a set of curves: one curve at a time, plotted on two
// selectable axes, with a cursor that steps through points.
type Explorer struct {
	curves []*continuation.Curve
	points [][]continuation.Point
	axes   [][]string

	curve  int
	xAxis  int
	yAxis  int
	cursor int
	theme  int
	help   bool

	width, height int
}

func NewExplorer(curves []*continuation.Curve) Explorer {
	e := Explorer{width: 80, height: 24}
	for _, c := range curves {
		if c == nil {
			continue
		}
		e.curves = append(e.curves, c)
		e.points = append(e.points, c.Points())
		axes := append(append([]string(nil), c.FreeParams...), c.VarNames...)
		e.axes = append(e.axes, axes)
	}
	e.resetAxes()
	return e
}

// WithTheme starts the explorer on the named theme; unknown names are ignored.
func (e Explorer) WithTheme(name string) Explorer {
	for i, t := range Themes {
		if t.Name == name {
			e.theme = i
		}
	}
	return e
}

// resetAxes selects the first free parameter against the first state variable.
func (e *Explorer) resetAxes() {
	if len(e.curves) == 0 {
		return
	}
	e.xAxis = 0
	e.yAxis = len(e.curves[e.curve].FreeParams)
	if e.yAxis >= len(e.axes[e.curve]) {
		e.yAxis = 0
	}
	e.cursor = 0
}

func (e Explorer) Init() tea.Cmd { return nil }

func (e Explorer) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		e.width, e.height = msg.Width, msg.Height
	case tea.KeyMsg:
		return e.handleKey(msg)
	}
	return e, nil
}

func (e Explorer) handleKey(msg tea.KeyMsg) (Explorer, tea.Cmd) {
	if len(e.curves) == 0 {
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return e, tea.Quit
		}
		return e, nil
	}
	n := len(e.points[e.curve])

	switch msg.String() {
	case "q", "ctrl+c", "esc":
		return e, tea.Quit
	case "tab", "n":
		e.curve = (e.curve + 1) % len(e.curves)
		e.resetAxes()
	case "shift+tab", "p":
		e.curve = (e.curve + len(e.curves) - 1) % len(e.curves)
		e.resetAxes()
	case "x":
		e.xAxis = (e.xAxis + 1) % len(e.axes[e.curve])
	case "y":
		e.yAxis = (e.yAxis + 1) % len(e.axes[e.curve])
	case "right", "l":
		e.cursor = min(e.cursor+1, n-1)
	case "left", "h":
		e.cursor = max(e.cursor-1, 0)
	case "L", "pgdown":
		e.cursor = min(e.cursor+10, n-1)
	case "H", "pgup":
		e.cursor = max(e.cursor-10, 0)
	case "home", "g":
		e.cursor = 0
	case "end", "G":
		e.cursor = n - 1
	case "f":
		e.cursor = e.nextFold(1)
	case "F":
		e.cursor = e.nextFold(-1)
	case "t":
		e.theme = (e.theme + 1) % len(Themes)
	case "?":
		e.help = !e.help
	}
	return e, nil
}

// nextFold returns the index of the next limit point in direction dir,
// wrapping around; the cursor stays put when the curve has none.
func (e Explorer) nextFold(dir int) int {
	pts := e.points[e.curve]
	n := len(pts)
	for k := 1; k <= n; k++ {
		i := ((e.cursor+dir*k)%n + n) % n
		if pts[i].Flag == continuation.LimitPointFlag {
			return i
		}
	}
	return e.cursor
}

// Selected returns the curve and point under the cursor.
func (e Explorer) Selected() (*continuation.Curve, continuation.Point, bool) {
	if len(e.curves) == 0 || len(e.points[e.curve]) == 0 {
		return nil, continuation.Point{}, false
	}
	return e.curves[e.curve], e.points[e.curve][e.cursor], true
}

// Axes returns the names of the plotted axes.
func (e Explorer) Axes() (string, string) {
	if len(e.curves) == 0 {
		return "", ""
	}
	return e.axes[e.curve][e.xAxis], e.axes[e.curve][e.yAxis]
}

func (e Explorer) View() string {
	if len(e.curves) == 0 {
		return dim.Render("no curves to explore") + "\n" + KeyHint.Render("q quit") + "\n"
	}
	c, pt, _ := e.Selected()
	xName, yName := e.Axes()
	theme := Themes[e.theme]

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s  %s  %s\n",
		Title.Render(c.ID),
		dim.Render(c.Kind.String()),
		cyan.Render(fmt.Sprintf("%s vs %s", yName, xName)),
		dim.Render(fmt.Sprintf("curve %d/%d", e.curve+1, len(e.curves))))

	w := max(e.width-4, 20)
	h := max(e.height-14, 6)
	b.WriteString(Panel.Render(e.plot(w, h, theme)))
	b.WriteString("\n")

	b.WriteString(e.details(c, pt))
	b.WriteString("\n")
	if e.help {
		b.WriteString(KeyHint.Render("←/→ step  H/L ×10  g/G ends  f/F next/prev LP  n/p curve  x/y axis  t theme  q quit"))
	} else {
		b.WriteString(KeyHint.Render("? help"))
	}
	b.WriteString("\n")
	return b.String()
}

func (e Explorer) details(c *continuation.Curve, pt continuation.Point) string {
	lines := []string{
		Field("point", fmt.Sprintf("%d/%d", e.cursor+1, len(e.points[e.curve]))) + "  " +
			Field("s", fmt.Sprintf("%.5f", pt.S)) + "  " +
			Field("flag", pt.Flag.String()),
	}

	var params []string
	for i, name := range c.FreeParams {
		if i < len(pt.Free) {
			params = append(params, fmt.Sprintf("%s=%.6f", name, pt.Free[i]))
		}
	}
	lines = append(lines, white.Render(strings.Join(params, " "))+"  "+white.Render(formatState(c.VarNames, pt.State)))

	st := pt.Stability.String()
	if pt.Stability == stability.Stable {
		st = green.Render(st)
	} else {
		st = yellow.Render(st)
	}
	lines = append(lines, Field("stability", "")+st+"  "+
		Field("det", fmt.Sprintf("%.3e", pt.TestValue))+"  "+
		Field("residual", fmt.Sprintf("%.2e", pt.Residual))+"  "+
		Field("step", fmt.Sprintf("%.3g", pt.StepSize)))
	return strings.Join(lines, "\n")
}

// plot draws the current curve into a w×h cell grid. Stable and unstable
// stretches go on separate canvases so each cell can be coloured by the
// stretch that reaches it; limit points and the cursor overwrite cells.
func (e Explorer) plot(w, h int, theme Theme) string {
	c := e.curves[e.curve]
	pts := e.points[e.curve]
	xName, yName := e.Axes()

	xs := make([]float64, len(pts))
	ys := make([]float64, len(pts))
	for i, pt := range pts {
		xs[i], _ = c.Axis(pt, xName)
		ys[i], _ = c.Axis(pt, yName)
	}
	vp := Fit(xs, ys)

	stable, unstable := NewCanvas(w, h), NewCanvas(w, h)
	for i := range pts {
		cv := unstable
		if pts[i].Stability == stability.Stable {
			cv = stable
		}
		if i == 0 {
			px, py := vp.Dot(cv, xs[0], ys[0])
			cv.Set(px, py)
			continue
		}
		vp.Line(cv, xs[i-1], ys[i-1], xs[i], ys[i])
	}

	marks := make(map[[2]int]rune)
	for i, pt := range pts {
		if pt.Flag == continuation.LimitPointFlag {
			col, row := vp.Cell(stable, xs[i], ys[i])
			marks[[2]int{col, row}] = 'X'
		}
	}
	col, row := vp.Cell(stable, xs[e.cursor], ys[e.cursor])
	marks[[2]int{col, row}] = '◆'

	sStyle := lipgloss.NewStyle().Foreground(theme.Stable)
	uStyle := lipgloss.NewStyle().Foreground(theme.Unstable)
	fStyle := lipgloss.NewStyle().Foreground(theme.Fold).Bold(true)
	cStyle := lipgloss.NewStyle().Foreground(theme.Cursor).Bold(true)

	var b strings.Builder
	for r := 0; r < h; r++ {
		for q := 0; q < w; q++ {
			if m, ok := marks[[2]int{q, r}]; ok {
				if m == '◆' {
					b.WriteString(cStyle.Render(string(m)))
				} else {
					b.WriteString(fStyle.Render(string(m)))
				}
				continue
			}
			switch {
			case !stable.Empty(q, r):
				b.WriteString(sStyle.Render(string(stable.Grid[r][q] | unstable.Grid[r][q])))
			case !unstable.Empty(q, r):
				b.WriteString(uStyle.Render(string(unstable.Grid[r][q])))
			default:
				b.WriteRune(' ')
			}
		}
		if r < h-1 {
			b.WriteRune('\n')
		}
	}
	fmt.Fprintf(&b, "\n%s", lipgloss.NewStyle().Foreground(theme.Muted).Render(
		fmt.Sprintf("%s ∈ [%.4g, %.4g]  %s ∈ [%.4g, %.4g]  theme %s", xName, vp.MinX, vp.MaxX, yName, vp.MinY, vp.MaxY, theme.Name)))
	return b.String()
}
