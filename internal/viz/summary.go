package viz

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/san-kum/foldsim/internal/continuation"
	"github.com/san-kum/foldsim/internal/equilibrium"
	"github.com/san-kum/foldsim/internal/stability"
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("#444466"))).
		Headers(headers...)
}

func formatState(names []string, x []float64) string {
	parts := make([]string, len(x))
	for i, v := range x {
		name := fmt.Sprintf("x%d", i)
		if i < len(names) {
			name = names[i]
		}
		parts[i] = fmt.Sprintf("%s=%.6f", name, v)
	}
	return strings.Join(parts, " ")
}

// RenderSummary describes a curve: its traversals and its limit points.
func RenderSummary(c *continuation.Curve) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s  %s\n",
		Title.Render(c.ID),
		dim.Render(c.Kind.String()),
		Field("free", strings.Join(c.FreeParams, ", "))+"  "+Field("points", fmt.Sprint(c.Len())))

	segs := newTable("direction", "points", "folds", "retries", "termination")
	for _, s := range c.Segments() {
		term := s.Termination.String()
		if s.Termination.Err() != nil {
			term = yellow.Render(term)
		} else {
			term = green.Render(term)
		}
		segs.Row(s.Direction.String(), fmt.Sprint(len(s.Points)), fmt.Sprint(len(s.LimitPoints)), fmt.Sprint(s.Retries), term)
	}
	b.WriteString(segs.String())
	b.WriteString("\n")

	lps := c.LimitPoints()
	if len(lps) == 0 {
		b.WriteString(dim.Render("no limit points"))
		b.WriteString("\n")
		return b.String()
	}
	folds := newTable("label", "parameter", "value", "state", "stability")
	for _, lp := range lps {
		folds.Row(
			magenta.Render(lp.Label),
			lp.Param,
			fmt.Sprintf("%.6f", lp.Value),
			formatState(c.VarNames, lp.Point.State),
			lp.Point.Stability.String())
	}
	b.WriteString(folds.String())
	b.WriteString("\n")
	return b.String()
}

// RenderSteady lists the steady states of a scan and the guesses that failed.
func RenderSteady(res equilibrium.ScanResult, varNames []string) string {
	var b strings.Builder
	t := newTable("#", "state", "stability", "type", "eigenvalues")
	for i, eq := range res.Equilibria {
		label := eq.Stability.String()
		if eq.Stability == stability.Stable {
			label = green.Render(label)
		} else {
			label = yellow.Render(label)
		}
		eigs := make([]string, len(eq.Eigenvalues))
		for k, ev := range eq.Eigenvalues {
			eigs[k] = fmt.Sprintf("%.4g%+.4gi", real(ev), imag(ev))
		}
		t.Row(fmt.Sprint(i+1), formatState(varNames, eq.State), label, eq.Kind.String(), strings.Join(eigs, ", "))
	}
	b.WriteString(t.String())
	b.WriteString("\n")
	for _, f := range res.Failures {
		fmt.Fprintf(&b, "%s %v\n", dim.Render("no convergence from"), []float64(f.Guess))
	}
	return b.String()
}

// RenderMetrics prints the named values in the given order.
func RenderMetrics(values map[string]float64, names []string) string {
	parts := make([]string, 0, len(names))
	for _, n := range names {
		parts = append(parts, Field(n, fmt.Sprintf("%.4g", values[n])))
	}
	return strings.Join(parts, "  ")
}
