package storage

import (
	"encoding/json"
	"io"

	"github.com/san-kum/foldsim/internal/continuation"
)

type ExportData struct {
	Run    RunMetadata   `json:"run"`
	Curves []ExportCurve `json:"curves"`
}

type ExportCurve struct {
	ID         string        `json:"id"`
	Kind       string        `json:"kind"`
	FreeParams []string      `json:"free_params"`
	VarNames   []string      `json:"var_names"`
	Points     []ExportPoint `json:"points"`
}

type ExportPoint struct {
	S         float64   `json:"s"`
	Free      []float64 `json:"free"`
	State     []float64 `json:"state"`
	Stability string    `json:"stability"`
	Flag      string    `json:"flag"`
	TestValue float64   `json:"test_value"`
	Residual  float64   `json:"residual"`
}

// ExportJSON writes a run and its curves as one indented JSON document.
func ExportJSON(w io.Writer, meta RunMetadata, curves []*continuation.Curve) error {
	data := ExportData{Run: meta, Curves: make([]ExportCurve, 0, len(curves))}
	for _, c := range curves {
		ec := ExportCurve{
			ID:         c.ID,
			Kind:       c.Kind.String(),
			FreeParams: c.FreeParams,
			VarNames:   c.VarNames,
		}
		for _, pt := range c.Points() {
			ec.Points = append(ec.Points, ExportPoint{
				S:         pt.S,
				Free:      pt.Free,
				State:     pt.State,
				Stability: pt.Stability.String(),
				Flag:      pt.Flag.String(),
				TestValue: pt.TestValue,
				Residual:  pt.Residual,
			})
		}
		data.Curves = append(data.Curves, ec)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

// ExportRunJSON loads every curve of a stored run and exports it.
func (s *Store) ExportRunJSON(w io.Writer, runID string) error {
	meta, err := s.Load(runID)
	if err != nil {
		return err
	}
	curves := make([]*continuation.Curve, 0, len(meta.Curves))
	for _, cm := range meta.Curves {
		c, err := s.LoadCurve(runID, cm.ID)
		if err != nil {
			return err
		}
		curves = append(curves, c)
	}
	return ExportJSON(w, *meta, curves)
}
