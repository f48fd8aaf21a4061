package experiment

import (
	"fmt"
	"strings"

	"github.com/san-kum/foldsim/internal/continuation"
)

// FormatLimitPoint renders a fold as "LP1: a0 = 0.033067, x = 0.432101, y = 1.234567".
func FormatLimitPoint(lp continuation.LimitPoint, varNames []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s = %.6f", lp.Label, lp.Param, lp.Value)
	for i, v := range lp.Point.State {
		name := fmt.Sprintf("x%d", i)
		if i < len(varNames) {
			name = varNames[i]
		}
		fmt.Fprintf(&b, ", %s = %.6f", name, v)
	}
	return b.String()
}
