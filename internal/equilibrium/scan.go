package equilibrium

import (
	"fmt"
	"math"
	"sort"

	"github.com/san-kum/foldsim/internal/dynamo"
	"go.uber.org/zap"
)

// DefaultDecimals is the rounding precision used to merge duplicate roots.
const DefaultDecimals = 5

// ScanFailure records a guess that did not converge.
type ScanFailure struct {
	Guess dynamo.State
	Err   error
}

type ScanResult struct {
	Equilibria []Equilibrium
	Failures   []ScanFailure
}

// Scan solves from every guess and merges roots that agree after rounding
// to decimals places. A failed guess never aborts the scan. Equilibria are
// returned in lexicographic order of their rounded coordinates.
func (s *Solver) Scan(sys dynamo.System, guesses []dynamo.State, p dynamo.Params, decimals int) ScanResult {
	if decimals < 0 {
		decimals = DefaultDecimals
	}

	type entry struct {
		key []float64
		eq  Equilibrium
	}
	var unique []entry
	var result ScanResult

	for _, g := range guesses {
		eq, err := s.Solve(sys, g, p)
		if err != nil {
			result.Failures = append(result.Failures, ScanFailure{
				Guess: g.Clone(),
				Err:   fmt.Errorf("%w: guess %v: %w", dynamo.ErrNoEquilibrium, []float64(g), err),
			})
			continue
		}

		key := roundAll(eq.State, decimals)
		duplicate := false
		for _, u := range unique {
			if equalFloats(u.key, key) {
				duplicate = true
				break
			}
		}
		if !duplicate {
			unique = append(unique, entry{key: key, eq: eq})
		}
	}

	sort.SliceStable(unique, func(i, j int) bool {
		return lessFloats(unique[i].key, unique[j].key)
	})
	for _, u := range unique {
		result.Equilibria = append(result.Equilibria, u.eq)
	}

	s.log.Debug("equilibrium scan complete",
		zap.Int("guesses", len(guesses)),
		zap.Int("unique", len(result.Equilibria)),
		zap.Int("failed", len(result.Failures)))

	return result
}

func roundAll(x []float64, decimals int) []float64 {
	scale := math.Pow(10, float64(decimals))
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = math.Round(v*scale) / scale
		if out[i] == 0 {
			out[i] = 0 // fold -0 into +0
		}
	}
	return out
}

func equalFloats(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func lessFloats(a, b []float64) bool {
	for i := range a {
		if i >= len(b) {
			return false
		}
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}
