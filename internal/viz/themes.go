package viz

import "github.com/charmbracelet/lipgloss"

// Theme colours the curve plot.
type Theme struct {
	Name     string
	Stable   lipgloss.Color
	Unstable lipgloss.Color
	Fold     lipgloss.Color
	Cursor   lipgloss.Color
	Muted    lipgloss.Color
}

var (
	ThemeDefault = Theme{
		Name:     "default",
		Stable:   lipgloss.Color("#00ff88"),
		Unstable: lipgloss.Color("#66aaff"),
		Fold:     lipgloss.Color("#ff5555"),
		Cursor:   lipgloss.Color("#ffff00"),
		Muted:    lipgloss.Color("#666688"),
	}

	ThemeRetro = Theme{
		Name:     "retro",
		Stable:   lipgloss.Color("#00ff00"),
		Unstable: lipgloss.Color("#007700"),
		Fold:     lipgloss.Color("#ffff00"),
		Cursor:   lipgloss.Color("#88ff88"),
		Muted:    lipgloss.Color("#005500"),
	}

	ThemeMono = Theme{
		Name:     "mono",
		Stable:   lipgloss.Color("#ffffff"),
		Unstable: lipgloss.Color("#888888"),
		Fold:     lipgloss.Color("#ffffff"),
		Cursor:   lipgloss.Color("#ffffff"),
		Muted:    lipgloss.Color("#555555"),
	}
)

var Themes = []Theme{ThemeDefault, ThemeRetro, ThemeMono}
