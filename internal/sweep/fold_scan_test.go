package sweep

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/san-kum/foldsim/internal/continuation"
	"github.com/san-kum/foldsim/internal/dynamo"
	"github.com/san-kum/foldsim/internal/model"
)

func cuspBase() continuation.Request {
	sys := model.NewCusp()
	req := continuation.NewRequest(sys, dynamo.State{-1.3247}, sys.DefaultParams(), "p")
	req.Box.Params = map[string]continuation.Bound{"p": {Min: -2, Max: 2}}
	return req
}

func TestFoldScan_CuspFoldsLieOnTheBifurcationSet(t *testing.T) {
	engine := continuation.NewEngine(nil)
	values := []float64{0.5, 1, 1.5}

	rows, err := NewFoldScan("q", values).WithLimit(2).Scan(context.Background(), engine, cuspBase())
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != len(values) {
		t.Fatalf("expected %d rows, got %d", len(values), len(rows))
	}

	for i, row := range rows {
		if row.Value != values[i] {
			t.Errorf("row %d has value %v, want %v", i, row.Value, values[i])
		}
		if row.Err != nil {
			t.Errorf("q=%v: %v", row.Value, row.Err)
			continue
		}
		if len(row.LimitPoints) != 2 {
			t.Errorf("q=%v: expected 2 limit points, got %d", row.Value, len(row.LimitPoints))
			continue
		}
		want := 2 * math.Pow(row.Value/3, 1.5)
		for _, lp := range row.LimitPoints {
			if math.Abs(math.Abs(lp.Value)-want) > 1e-6 {
				t.Errorf("q=%v: fold at p=%v, want ±%v", row.Value, lp.Value, want)
			}
			if q := lp.Point.Params.Get("q"); q != row.Value {
				t.Errorf("fold carries q=%v, want %v", q, row.Value)
			}
		}
	}
}

func TestFoldScan_RecordsFailedRuns(t *testing.T) {
	sys := model.NewFold()
	base := continuation.NewRequest(sys, dynamo.State{0.5}, sys.DefaultParams().With("q", 0), "p")

	// Fold ignores q, so every run starts from the same point; a zero
	// step configuration makes each run fail validation instead.
	base.Step.StepSize = 0

	rows, err := NewFoldScan("q", Range(0, 1, 3)).Scan(context.Background(), continuation.NewEngine(nil), base)
	if err != nil {
		t.Fatal(err)
	}
	for _, row := range rows {
		if !errors.Is(row.Err, dynamo.ErrInvalidConfig) {
			t.Errorf("q=%v: expected ErrInvalidConfig, got %v", row.Value, row.Err)
		}
	}
}

func TestFoldScan_RejectsBadParameter(t *testing.T) {
	engine := continuation.NewEngine(nil)

	if _, err := NewFoldScan("zeta", []float64{1}).Scan(context.Background(), engine, cuspBase()); !errors.Is(err, dynamo.ErrUnknownParam) {
		t.Errorf("expected ErrUnknownParam, got %v", err)
	}
	if _, err := NewFoldScan("p", []float64{1}).Scan(context.Background(), engine, cuspBase()); !errors.Is(err, dynamo.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig for a free sweep parameter, got %v", err)
	}
}

func TestFoldScan_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewFoldScan("q", Range(0.5, 1.5, 4)).Scan(ctx, continuation.NewEngine(nil), cuspBase())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestRange(t *testing.T) {
	got := Range(0, 1, 5)
	want := []float64{0, 0.25, 0.5, 0.75, 1}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-15 {
			t.Errorf("Range[%d] = %v, want %v", i, got[i], want[i])
		}
	}
	if Range(0, 1, 0) != nil {
		t.Error("expected nil for n=0")
	}
}
