package continuation_test

import (
	"context"
	"math"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/foldsim/internal/continuation"
	"github.com/san-kum/foldsim/internal/dynamo"
	"github.com/san-kum/foldsim/internal/model"
	"github.com/san-kum/foldsim/internal/stability"
)

func foldRequest() continuation.Request {
	sys := model.NewFold()
	req := continuation.NewRequest(sys, dynamo.State{0.5}, sys.DefaultParams(), "p")
	req.ID = "EQ1"
	req.Box.Params = map[string]continuation.Bound{"p": {Min: -1, Max: 1}}
	return req
}

// halfParabola is x = sqrt(1 - p), which is undefined past p = 1.
type halfParabola struct{}

func (halfParabola) Derive(x dynamo.State, p dynamo.Params) dynamo.State {
	return dynamo.State{x[0] - math.Sqrt(1-p.Get("p"))}
}
func (halfParabola) StateDim() int      { return 1 }
func (halfParabola) VarNames() []string { return []string{"x"} }
func (halfParabola) DefaultParams() dynamo.Params {
	return dynamo.NewParams([]string{"p"}, []float64{0})
}

// crossing is x² = p², two lines crossing at the origin.
type crossing struct{}

func (crossing) Derive(x dynamo.State, p dynamo.Params) dynamo.State {
	v := p.Get("p")
	return dynamo.State{x[0]*x[0] - v*v}
}
func (crossing) StateDim() int      { return 1 }
func (crossing) VarNames() []string { return []string{"x"} }
func (crossing) DefaultParams() dynamo.Params {
	return dynamo.NewParams([]string{"p"}, []float64{0})
}

func cuspRequest() continuation.Request {
	sys := model.NewCusp()
	req := continuation.NewRequest(sys, dynamo.State{-1.3247}, sys.DefaultParams(), "p")
	req.ID = "EQ1"
	req.Box.Params = map[string]continuation.Bound{"p": {Min: -2, Max: 2}}
	return req
}

var _ = Describe("Engine", func() {
	var (
		engine *continuation.Engine
		ctx    context.Context
	)

	BeforeEach(func() {
		engine = continuation.NewEngine(nil)
		ctx = context.Background()
	})

	Describe("equilibrium continuation of the fold normal form", func() {
		var curve *continuation.Curve

		BeforeEach(func() {
			var err error
			curve, err = engine.Equilibria(ctx, foldRequest())
			Expect(err).NotTo(HaveOccurred())
		})

		It("finds exactly one limit point at the origin", func() {
			lps := curve.LimitPoints()
			Expect(lps).To(HaveLen(1))
			Expect(lps[0].Label).To(Equal("LP1"))
			Expect(lps[0].Param).To(Equal("p"))
			Expect(lps[0].Value).To(BeNumerically("~", 0, 1e-6))
			Expect(lps[0].Point.State[0]).To(BeNumerically("~", 0, 1e-6))
			Expect(lps[0].Point.Flag).To(Equal(continuation.LimitPointFlag))
			Expect(lps[0].Bracket[0]).To(BeNumerically(">", 0))
			Expect(lps[0].Bracket[1]).To(BeNumerically(">", 0))
		})

		It("keeps every point on the curve", func() {
			Expect(continuation.Converged(curve, 1e-8)).To(BeTrue())
			for _, pt := range curve.Points() {
				Expect(pt.Params.Get("p")).To(BeNumerically("~", pt.State[0]*pt.State[0], 1e-8))
				Expect(pt.TestValue).To(BeNumerically("~", -2*pt.State[0], 1e-12))
			}
		})

		It("keeps step sizes within bounds", func() {
			cfg := continuation.DefaultStepConfig()
			for _, pt := range curve.Points() {
				Expect(pt.StepSize).To(BeNumerically(">=", cfg.MinStepSize))
				Expect(pt.StepSize).To(BeNumerically("<=", cfg.MaxStepSize))
			}
		})

		It("labels the upper branch stable and the lower branch unstable", func() {
			for _, pt := range curve.Points() {
				switch {
				case pt.State[0] > 1e-3:
					Expect(pt.Stability).To(Equal(stability.Stable))
				case pt.State[0] < -1e-3:
					Expect(pt.Stability).To(Equal(stability.Unstable))
				}
			}
		})

		It("stops both directions on the parameter bound", func() {
			for _, seg := range curve.Segments() {
				Expect(seg.Termination).To(Equal(continuation.BoundaryReached))
				last := seg.Points[len(seg.Points)-1]
				Expect(last.Flag).To(Equal(continuation.BoundaryFlag))
				Expect(last.Params.Get("p")).To(BeNumerically("~", 1, 1e-8))
			}
			Expect(curve.Forward.Points[len(curve.Forward.Points)-1].State[0]).To(BeNumerically("~", 1, 1e-6))
			Expect(curve.Backward.Points[len(curve.Backward.Points)-1].State[0]).To(BeNumerically("~", -1, 1e-6))
		})

		It("orders points by signed arclength with the start shared", func() {
			pts := curve.Points()
			Expect(pts).To(HaveLen(len(curve.Forward.Points) + len(curve.Backward.Points) - 1))
			for i := 1; i < len(pts); i++ {
				Expect(pts[i].S).To(BeNumerically(">", pts[i-1].S))
			}
			Expect(curve.Forward.Points[0].Flag).To(Equal(continuation.Start))
			Expect(curve.Forward.Points[0].S).To(BeZero())
			Expect(curve.Backward.Points[0].S).To(BeZero())
		})

		It("records the limit point only in the direction that crossed it", func() {
			Expect(curve.Forward.LimitPoints).To(BeEmpty())
			Expect(curve.Backward.LimitPoints).To(HaveLen(1))
			Expect(curve.Backward.LimitPoints[0].Direction).To(Equal(continuation.Backward))
		})
	})

	It("is deterministic across runs", func() {
		first, err := engine.Equilibria(ctx, foldRequest())
		Expect(err).NotTo(HaveOccurred())
		second, err := engine.Equilibria(ctx, foldRequest())
		Expect(err).NotTo(HaveOccurred())
		Expect(second.Points()).To(Equal(first.Points()))
		Expect(second.LimitPoints()).To(Equal(first.LimitPoints()))
	})

	It("finds both folds of the cusp in curve order", func() {
		curve, err := engine.Equilibria(ctx, cuspRequest())
		Expect(err).NotTo(HaveOccurred())

		want := 2 / (3 * math.Sqrt(3))
		lps := curve.LimitPoints()
		Expect(lps).To(HaveLen(2))
		Expect(lps[0].Value).To(BeNumerically("~", want, 1e-6))
		Expect(lps[0].Point.State[0]).To(BeNumerically("~", -1/math.Sqrt(3), 1e-5))
		Expect(lps[1].Value).To(BeNumerically("~", -want, 1e-6))
		Expect(lps[1].Point.State[0]).To(BeNumerically("~", 1/math.Sqrt(3), 1e-5))
		Expect(lps[1].Label).To(Equal("LP2"))

		lp, ok := curve.LimitPoint("LP2")
		Expect(ok).To(BeTrue())
		Expect(lp.Value).To(Equal(lps[1].Value))
	})

	It("locates the same fold with the tangent predictor", func() {
		req := foldRequest()
		req.Predictor = continuation.Tangent
		curve, err := engine.Equilibria(ctx, req)
		Expect(err).NotTo(HaveOccurred())
		Expect(curve.LimitPoints()).To(HaveLen(1))
		Expect(curve.LimitPoints()[0].Value).To(BeNumerically("~", 0, 1e-6))
	})

	It("caps each direction at the maximum number of points", func() {
		req := foldRequest()
		req.MaxNumPoints = 5
		curve, err := engine.Equilibria(ctx, req)
		Expect(err).NotTo(HaveOccurred())
		for _, seg := range curve.Segments() {
			Expect(seg.Points).To(HaveLen(5))
			Expect(seg.Termination).To(Equal(continuation.MaxPointsReached))
		}
	})

	It("runs a single direction when asked", func() {
		req := foldRequest()
		req.Directions = continuation.ForwardOnly
		curve, err := engine.Equilibria(ctx, req)
		Expect(err).NotTo(HaveOccurred())
		Expect(curve.Backward).To(BeNil())
		Expect(curve.Points()).To(Equal(curve.Forward.Points))
		Expect(curve.LimitPoints()).To(BeEmpty())
	})

	It("honours the stop predicate", func() {
		req := foldRequest()
		req.Directions = continuation.ForwardOnly
		req.Stop = func(pt continuation.Point) bool { return pt.Params.Get("p") > 0.5 }
		curve, err := engine.Equilibria(ctx, req)
		Expect(err).NotTo(HaveOccurred())
		Expect(curve.Forward.Termination).To(Equal(continuation.Stopped))
		last := curve.Forward.Points[len(curve.Forward.Points)-1]
		Expect(last.Params.Get("p")).To(BeNumerically(">", 0.5))
		Expect(last.Params.Get("p")).To(BeNumerically("<", 1))
	})

	It("stops on a cancelled context with only the start point", func() {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		curve, err := engine.Equilibria(cancelled, foldRequest())
		Expect(err).To(MatchError(context.Canceled))
		Expect(curve).NotTo(BeNil())
		for _, seg := range curve.Segments() {
			Expect(seg.Points).To(HaveLen(1))
			Expect(seg.Termination).To(Equal(continuation.Stopped))
		}
	})

	It("notifies observers of every accepted point", func() {
		var mu sync.Mutex
		seen := map[continuation.Direction]int{}
		engine.AddObserver(continuation.ObserverFunc(func(dir continuation.Direction, _ continuation.Point) {
			mu.Lock()
			defer mu.Unlock()
			seen[dir]++
		}))

		curve, err := engine.Equilibria(ctx, foldRequest())
		Expect(err).NotTo(HaveOccurred())
		Expect(seen[continuation.Forward]).To(Equal(len(curve.Forward.Points)))
		Expect(seen[continuation.Backward]).To(Equal(len(curve.Backward.Points)))
	})

	It("fails when the start point has no equilibrium", func() {
		req := foldRequest()
		req.StartState = dynamo.State{0}
		req.StartParams = req.StartParams.With("p", -0.5)
		_, err := engine.Equilibria(ctx, req)
		Expect(err).To(MatchError(dynamo.ErrSingularJacobian))
	})

	It("traces mutual activation reproducibly over a0", func() {
		sys := model.NewMutualActivation()
		req := continuation.NewRequest(sys, dynamo.State{0, 0}, sys.DefaultParams(), "a0")
		req.Box.Params = map[string]continuation.Bound{"a0": {Min: 0, Max: 0.1}}

		first, err := engine.Equilibria(ctx, req)
		Expect(err).NotTo(HaveOccurred())
		second, err := engine.Equilibria(ctx, req)
		Expect(err).NotTo(HaveOccurred())

		Expect(continuation.Converged(first, 1e-8)).To(BeTrue())
		Expect(second.Points()).To(Equal(first.Points()))
		for _, pt := range first.Points() {
			Expect(pt.Params.Get("a0")).To(BeNumerically(">=", -1e-8))
			Expect(pt.Params.Get("a0")).To(BeNumerically("<=", 0.1+1e-8))
			Expect(pt.Params.Get("a")).To(Equal(5.5))
		}
	})

	It("gives up when the step size is exhausted", func() {
		sys := halfParabola{}
		req := continuation.NewRequest(sys, dynamo.State{1}, sys.DefaultParams(), "p")
		req.Directions = continuation.ForwardOnly
		req.MaxNumPoints = 5000

		curve, err := engine.Equilibria(ctx, req)
		Expect(err).NotTo(HaveOccurred())
		Expect(curve.Forward.Termination).To(Equal(continuation.StepSizeExhausted))
		Expect(curve.Forward.Termination.Err()).To(MatchError(dynamo.ErrStepSizeExhausted))
		Expect(continuation.Converged(curve, req.Solver.Tol)).To(BeTrue())

		for _, pt := range curve.Points() {
			Expect(pt.StepSize).To(BeNumerically(">=", req.Step.MinStepSize))
			Expect(pt.StepSize).To(BeNumerically("<=", req.Step.MaxStepSize))
			Expect(pt.Params.Get("p")).To(BeNumerically("<=", 1))
		}
		last := curve.Forward.Points[len(curve.Forward.Points)-1]
		Expect(last.Params.Get("p")).To(BeNumerically(">", 0.9))
	})

	It("stops exactly on a state bound", func() {
		req := foldRequest()
		req.Box.State = []continuation.Bound{{Min: 0.2, Max: 0.8}}

		curve, err := engine.Equilibria(ctx, req)
		Expect(err).NotTo(HaveOccurred())
		Expect(curve.LimitPoints()).To(BeEmpty())

		ends := map[continuation.Direction][2]float64{
			continuation.Forward:  {0.8, 0.64},
			continuation.Backward: {0.2, 0.04},
		}
		for _, seg := range curve.Segments() {
			Expect(seg.Termination).To(Equal(continuation.BoundaryReached))
			last := seg.Points[len(seg.Points)-1]
			Expect(last.Flag).To(Equal(continuation.BoundaryFlag))
			Expect(last.State[0]).To(BeNumerically("~", ends[seg.Direction][0], 1e-9))
			Expect(last.Params.Get("p")).To(BeNumerically("~", ends[seg.Direction][1], 1e-8))
			for _, pt := range seg.Points {
				Expect(pt.State[0]).To(BeNumerically(">=", 0.2))
				Expect(pt.State[0]).To(BeNumerically("<=", 0.8))
			}
		}
	})

	It("rejects a start point that corrects onto a state outside the box", func() {
		req := foldRequest()
		req.StartState = dynamo.State{0.55}
		req.Box.State = []continuation.Bound{{Min: 0.52, Max: 0.8}}
		Expect(req.Validate()).To(Succeed())

		curve, err := engine.Equilibria(ctx, req)
		Expect(err).To(MatchError(dynamo.ErrInvalidConfig))
		Expect(curve).To(BeNil())
	})

	It("reports a start point without a unique tangent", func() {
		sys := crossing{}
		req := continuation.NewRequest(sys, dynamo.State{0}, sys.DefaultParams(), "p")

		curve, err := engine.Equilibria(ctx, req)
		Expect(err).NotTo(HaveOccurred())
		for _, seg := range curve.Segments() {
			Expect(seg.Termination).To(Equal(continuation.StartFailed))
			Expect(seg.Points).To(HaveLen(1))
			Expect(seg.Points[0].Flag).To(Equal(continuation.Start))
		}
		Expect(curve.Len()).To(Equal(1))
	})

	DescribeTable("stores the tangent at each point",
		func(pred continuation.Predictor) {
			req := foldRequest()
			req.Predictor = pred
			curve, err := engine.Equilibria(ctx, req)
			Expect(err).NotTo(HaveOccurred())

			pts := curve.Forward.Points
			Expect(len(pts)).To(BeNumerically(">", 3))
			for i := 1; i < len(pts); i++ {
				pt := pts[i]
				if pt.Flag != continuation.Regular {
					continue
				}
				x := pt.State[0]
				exact := []float64{1 / math.Hypot(1, 2*x), 2 * x / math.Hypot(1, 2*x)}
				t := pt.Tangent
				Expect(t).To(HaveLen(2))
				Expect(math.Hypot(t[0], t[1])).To(BeNumerically("~", 1, 1e-12))

				chord := []float64{x - pts[i-1].State[0], pt.Params.Get("p") - pts[i-1].Params.Get("p")}
				Expect(t[0]*chord[0]+t[1]*chord[1]).To(BeNumerically(">", 0), "point %d points backwards", i)

				if pred == continuation.Tangent {
					Expect(math.Abs(t[0]*exact[0] + t[1]*exact[1])).To(BeNumerically("~", 1, 1e-6))
				} else {
					n := math.Hypot(chord[0], chord[1])
					Expect(t[0]).To(BeNumerically("~", chord[0]/n, 1e-9))
					Expect(t[1]).To(BeNumerically("~", chord[1]/n, 1e-9))
				}
			}
		},
		Entry("bordered tangent", continuation.Tangent),
		Entry("secant", continuation.Secant),
	)

	Describe("fold continuation", func() {
		It("traces the cusp fold curve 27p² = 4q³", func() {
			eq, err := engine.Equilibria(ctx, cuspRequest())
			Expect(err).NotTo(HaveOccurred())
			lp, ok := eq.LimitPoint("LP1")
			Expect(ok).To(BeTrue())

			req := continuation.NewRequest(model.NewCusp(), nil, dynamo.Params{}, "p", "q")
			req.ID = "SN1"
			req.MaxNumPoints = 200
			req.Box.Params = map[string]continuation.Bound{
				"p": {Min: -3, Max: 3},
				"q": {Min: -0.5, Max: 2},
			}

			curve, err := engine.Folds(ctx, req, lp)
			Expect(err).NotTo(HaveOccurred())
			Expect(curve.Kind).To(Equal(continuation.FoldCurve))
			Expect(curve.LimitPoints()).To(BeEmpty())
			Expect(len(curve.Points())).To(BeNumerically(">", 10))

			sys := model.NewCusp()
			for _, pt := range curve.Points() {
				p, q := pt.Params.Get("p"), pt.Params.Get("q")
				Expect(27*p*p - 4*q*q*q).To(BeNumerically("~", 0, 1e-5))
				Expect(pt.Residual).To(BeNumerically("<", 1e-8))
				Expect(continuation.FoldValue(sys, pt)).To(BeNumerically("~", 0, 1e-7))
			}
			for _, seg := range curve.Segments() {
				Expect(seg.Termination).To(Equal(continuation.BoundaryReached))
			}
		})

		It("rejects a first free parameter that differs from the fold's", func() {
			eq, err := engine.Equilibria(ctx, cuspRequest())
			Expect(err).NotTo(HaveOccurred())
			lp, _ := eq.LimitPoint("LP1")

			req := continuation.NewRequest(model.NewCusp(), nil, dynamo.Params{}, "q", "p")
			_, err = engine.Folds(ctx, req, lp)
			Expect(err).To(MatchError(dynamo.ErrInvalidConfig))
		})
	})
})

var _ = Describe("Request validation", func() {
	engine := continuation.NewEngine(nil)

	DescribeTable("rejects malformed requests",
		func(mod func(*continuation.Request), want error) {
			req := foldRequest()
			mod(&req)
			Expect(req.Validate()).To(MatchError(want))
			_, err := engine.Equilibria(context.Background(), req)
			Expect(err).To(MatchError(want))
		},
		Entry("unknown free parameter", func(r *continuation.Request) { r.FreeParams = []string{"zeta"} }, dynamo.ErrUnknownParam),
		Entry("unknown free parameter is also a config error", func(r *continuation.Request) { r.FreeParams = []string{"zeta"} }, dynamo.ErrInvalidConfig),
		Entry("min step above max step", func(r *continuation.Request) { r.Step.MinStepSize = 1 }, dynamo.ErrInvalidConfig),
		Entry("zero step size", func(r *continuation.Request) { r.Step.StepSize = 0 }, dynamo.ErrInvalidConfig),
		Entry("no points", func(r *continuation.Request) { r.MaxNumPoints = 0 }, dynamo.ErrInvalidConfig),
		Entry("start outside the box", func(r *continuation.Request) {
			r.Box.Params["p"] = continuation.Bound{Min: 0.5, Max: 1}
		}, dynamo.ErrInvalidConfig),
		Entry("empty bound", func(r *continuation.Request) {
			r.Box.Params["p"] = continuation.Bound{Min: 1, Max: -1}
		}, dynamo.ErrInvalidConfig),
		Entry("start state outside the box", func(r *continuation.Request) {
			r.Box.State = []continuation.Bound{{Min: 0.6, Max: 0.8}}
		}, dynamo.ErrInvalidConfig),
		Entry("empty state bound", func(r *continuation.Request) {
			r.Box.State = []continuation.Bound{{Min: 0.8, Max: 0.6}}
		}, dynamo.ErrInvalidConfig),
		Entry("state box of the wrong dimension", func(r *continuation.Request) {
			r.Box.State = []continuation.Bound{continuation.Unbounded(), continuation.Unbounded()}
		}, dynamo.ErrDimensionMismatch),
		Entry("wrong state dimension", func(r *continuation.Request) { r.StartState = dynamo.State{1, 2} }, dynamo.ErrDimensionMismatch),
	)

	It("needs exactly one free parameter for equilibria", func() {
		req := foldRequest()
		req.StartParams = req.StartParams.With("q", 1)
		req.FreeParams = []string{"p", "q"}
		Expect(req.Validate()).To(Succeed())
		_, err := engine.Equilibria(context.Background(), req)
		Expect(err).To(MatchError(dynamo.ErrInvalidConfig))
	})

	It("accepts the defaults", func() {
		Expect(foldRequest().Validate()).To(Succeed())
	})

	It("maps terminations onto sentinel errors", func() {
		Expect(continuation.StepSizeExhausted.Err()).To(MatchError(dynamo.ErrStepSizeExhausted))
		Expect(continuation.BoundaryReached.Err()).To(MatchError(dynamo.ErrBoundaryReached))
		Expect(continuation.MaxPointsReached.Err()).To(BeNil())
	})
})
