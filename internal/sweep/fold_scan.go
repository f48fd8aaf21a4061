package sweep

import (
	"context"
	"errors"
	"fmt"

	"github.com/san-kum/foldsim/internal/continuation"
	"github.com/san-kum/foldsim/internal/dynamo"
	"golang.org/x/sync/errgroup"
)

// DefaultLimit bounds how many continuations run at once.
const DefaultLimit = 4

// FoldScan repeats a one-parameter continuation for each value of a
// secondary parameter and collects the limit points of every run.
type FoldScan struct {
	param  string
	values []float64
	limit  int
}

func NewFoldScan(param string, values []float64) *FoldScan {
	return &FoldScan{param: param, values: values, limit: DefaultLimit}
}

// WithLimit sets the number of concurrent runs; n < 1 means unbounded.
func (f *FoldScan) WithLimit(n int) *FoldScan {
	f.limit = n
	return f
}

// Row is one run of the scan.
type Row struct {
	Value       float64
	LimitPoints []continuation.LimitPoint
	Points      int
	Err         error
}

// Scan runs one continuation per value. Runs share no state: each gets its
// own copy of base with the secondary parameter overridden. A failing run
// is recorded in its row and never aborts the others; only cancellation
// of ctx does.
func (f *FoldScan) Scan(ctx context.Context, engine *continuation.Engine, base continuation.Request) ([]Row, error) {
	if _, ok := base.StartParams.Lookup(f.param); !ok {
		return nil, fmt.Errorf("%w: sweep: %w %q", dynamo.ErrInvalidConfig, dynamo.ErrUnknownParam, f.param)
	}
	for _, name := range base.FreeParams {
		if name == f.param {
			return nil, fmt.Errorf("%w: sweep parameter %q is also free", dynamo.ErrInvalidConfig, f.param)
		}
	}

	rows := make([]Row, len(f.values))
	g, gctx := errgroup.WithContext(ctx)
	if f.limit > 0 {
		g.SetLimit(f.limit)
	}

	for i, v := range f.values {
		g.Go(func() error {
			req := base
			req.StartParams = base.StartParams.With(f.param, v)
			req.StartState = base.StartState.Clone()
			req.FreeParams = append([]string(nil), base.FreeParams...)
			req.ID = fmt.Sprintf("%s=%g", f.param, v)

			row := Row{Value: v}
			curve, err := engine.Equilibria(gctx, req)
			if curve != nil {
				row.LimitPoints = curve.LimitPoints()
				row.Points = curve.Len()
			}
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				row.Err = err
			}
			rows[i] = row
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return rows, err
	}
	return rows, nil
}

// Range returns n evenly spaced values from lo to hi inclusive.
func Range(lo, hi float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	if n == 1 {
		return []float64{lo}
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = lo + float64(i)*(hi-lo)/float64(n-1)
	}
	return out
}
