package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/san-kum/foldsim/internal/continuation"
	"github.com/san-kum/foldsim/internal/stability"
)

// LoadCurve rebuilds a stored curve as a single forward segment in curve
// order. Tangents and eigenvalues are not stored and come back empty.
func (s *Store) LoadCurve(runID, curveID string) (*continuation.Curve, error) {
	meta, err := s.Load(runID)
	if err != nil {
		return nil, err
	}
	cm, ok := meta.Curve(curveID)
	if !ok {
		return nil, fmt.Errorf("%w: curve %s in run %s", ErrNotFound, curveID, runID)
	}

	f, err := os.Open(filepath.Join(s.baseDir, runID, curveID+".csv"))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("storage: curve %s: %w", curveID, err)
	}

	nFree, nVar := len(cm.FreeParams), len(meta.VarNames)
	width := 2 + nFree + nVar + 5
	base := meta.Base()

	seg := &continuation.Segment{Direction: continuation.Forward, Termination: parseTermination(cm.Forward)}
	for i, rec := range records {
		if i == 0 {
			continue
		}
		if len(rec) != width {
			return nil, fmt.Errorf("storage: curve %s row %d: %d fields, want %d", curveID, i, len(rec), width)
		}
		vals, err := parseFloats(rec[1 : 2+nFree+nVar])
		if err != nil {
			return nil, fmt.Errorf("storage: curve %s row %d: %w", curveID, i, err)
		}
		tail, err := parseFloats(rec[width-3:])
		if err != nil {
			return nil, fmt.Errorf("storage: curve %s row %d: %w", curveID, i, err)
		}

		pt := continuation.Point{
			Index:     len(seg.Points),
			S:         vals[0],
			Free:      vals[1 : 1+nFree],
			State:     vals[1+nFree:],
			Params:    base,
			Stability: parseStability(rec[width-5]),
			Flag:      parseFlag(rec[width-4]),
			TestValue: tail[0],
			Residual:  tail[1],
			StepSize:  tail[2],
		}
		for k, name := range cm.FreeParams {
			pt.Params = pt.Params.With(name, pt.Free[k])
		}
		seg.Points = append(seg.Points, pt)
	}

	lpIdx := 0
	for _, pt := range seg.Points {
		if pt.Flag != continuation.LimitPointFlag || lpIdx >= len(cm.LimitPoints) {
			continue
		}
		rec := cm.LimitPoints[lpIdx]
		lpIdx++
		seg.LimitPoints = append(seg.LimitPoints, continuation.LimitPoint{
			Label:   rec.Label,
			Point:   pt,
			Param:   rec.Param,
			Value:   rec.Value,
			Bracket: rec.Bracket,
		})
	}

	return &continuation.Curve{
		ID:         cm.ID,
		Kind:       parseKind(cm.Kind),
		FreeParams: cm.FreeParams,
		VarNames:   meta.VarNames,
		Forward:    seg,
	}, nil
}

func parseFloats(fields []string) ([]float64, error) {
	out := make([]float64, len(fields))
	for i, s := range fields {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func parseKind(s string) continuation.CurveKind {
	if s == continuation.FoldCurve.String() {
		return continuation.FoldCurve
	}
	return continuation.EquilibriumCurve
}

func parseStability(s string) stability.Label {
	if s == stability.Stable.String() {
		return stability.Stable
	}
	return stability.Unstable
}

func parseFlag(s string) continuation.Flag {
	for _, f := range []continuation.Flag{continuation.Start, continuation.LimitPointFlag, continuation.BoundaryFlag} {
		if s == f.String() {
			return f
		}
	}
	return continuation.Regular
}

func parseTermination(s string) continuation.Termination {
	for t := continuation.NotRun; t <= continuation.StartFailed; t++ {
		if s == t.String() {
			return t
		}
	}
	return continuation.NotRun
}
