package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/san-kum/foldsim/internal/continuation"
	"github.com/san-kum/foldsim/internal/dynamo"
)

// ErrNotFound is returned for run or curve ids with nothing on disk.
var ErrNotFound = errors.New("storage: not found")

const metadataFile = "metadata.json"

// Store keeps one directory per run under baseDir: metadata.json plus a
// <curve>.csv per curve.
type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID        string    `json:"id"`
	Name      string    `json:"name,omitempty"`
	Model     string    `json:"model"`
	Timestamp time.Time `json:"timestamp"`
	// ParamNames keeps the system's parameter order; Params alone loses it.
	ParamNames []string           `json:"param_names"`
	Params     map[string]float64 `json:"params"`
	VarNames   []string           `json:"var_names"`
	Curves     []CurveMetadata    `json:"curves"`
	Metrics    map[string]float64 `json:"metrics,omitempty"`
}

type CurveMetadata struct {
	ID          string             `json:"id"`
	Kind        string             `json:"kind"`
	FreeParams  []string           `json:"free_params"`
	Points      int                `json:"points"`
	Forward     string             `json:"forward,omitempty"`
	Backward    string             `json:"backward,omitempty"`
	LimitPoints []LimitPointRecord `json:"limit_points,omitempty"`
}

type LimitPointRecord struct {
	Label   string     `json:"label"`
	Param   string     `json:"param"`
	Value   float64    `json:"value"`
	State   []float64  `json:"state"`
	Bracket [2]float64 `json:"bracket"`
}

// NewRunMetadata describes the curves of one study. ID and Timestamp are
// assigned by Save.
func NewRunMetadata(name, model string, base dynamo.Params, varNames []string, curves []*continuation.Curve) RunMetadata {
	meta := RunMetadata{
		Name:       name,
		Model:      model,
		ParamNames: base.Names(),
		Params:     base.Map(),
		VarNames:   append([]string(nil), varNames...),
	}
	for _, c := range curves {
		meta.Curves = append(meta.Curves, describe(c))
	}
	return meta
}

func describe(c *continuation.Curve) CurveMetadata {
	cm := CurveMetadata{
		ID:         c.ID,
		Kind:       c.Kind.String(),
		FreeParams: append([]string(nil), c.FreeParams...),
		Points:     c.Len(),
	}
	if c.Forward != nil {
		cm.Forward = c.Forward.Termination.String()
	}
	if c.Backward != nil {
		cm.Backward = c.Backward.Termination.String()
	}
	for _, lp := range c.LimitPoints() {
		cm.LimitPoints = append(cm.LimitPoints, LimitPointRecord{
			Label:   lp.Label,
			Param:   lp.Param,
			Value:   lp.Value,
			State:   append([]float64(nil), lp.Point.State...),
			Bracket: lp.Bracket,
		})
	}
	return cm
}

// Save writes a new run and returns its id.
func (s *Store) Save(meta RunMetadata, curves []*continuation.Curve) (string, error) {
	meta.ID = uuid.NewString()
	meta.Timestamp = time.Now().UTC()

	runDir := filepath.Join(s.baseDir, meta.ID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	for _, c := range curves {
		if err := writeCurve(filepath.Join(runDir, c.ID+".csv"), c); err != nil {
			return "", fmt.Errorf("storage: curve %s: %w", c.ID, err)
		}
	}

	metaFile, err := os.Create(filepath.Join(runDir, metadataFile))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}
	return meta.ID, nil
}

// List returns every readable run, oldest first. Directories without
// valid metadata are skipped.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].Timestamp.Before(runs[j].Timestamp)
	})
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: run %s", ErrNotFound, runID)
		}
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("storage: run %s: %w", runID, err)
	}
	return &meta, nil
}

// Base rebuilds the run's parameter set in system order.
func (m *RunMetadata) Base() dynamo.Params {
	values := make([]float64, len(m.ParamNames))
	for i, name := range m.ParamNames {
		values[i] = m.Params[name]
	}
	return dynamo.NewParams(m.ParamNames, values)
}

func (m *RunMetadata) Curve(id string) (CurveMetadata, bool) {
	for _, c := range m.Curves {
		if c.ID == id {
			return c, true
		}
	}
	return CurveMetadata{}, false
}

// Latest returns the most recent run.
func (s *Store) Latest() (*RunMetadata, error) {
	runs, err := s.List()
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, fmt.Errorf("%w: no runs in %s", ErrNotFound, s.baseDir)
	}
	return &runs[len(runs)-1], nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func writeCurve(path string, c *continuation.Curve) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{"index", "s"}
	header = append(header, c.FreeParams...)
	header = append(header, c.VarNames...)
	header = append(header, "stability", "flag", "test_value", "residual", "step_size")
	if err := w.Write(header); err != nil {
		return err
	}

	for i, pt := range c.Points() {
		row := []string{strconv.Itoa(i), formatFloat(pt.S)}
		for _, v := range pt.Free {
			row = append(row, formatFloat(v))
		}
		for _, v := range pt.State {
			row = append(row, formatFloat(v))
		}
		row = append(row,
			pt.Stability.String(),
			pt.Flag.String(),
			formatFloat(pt.TestValue),
			formatFloat(pt.Residual),
			formatFloat(pt.StepSize))
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
