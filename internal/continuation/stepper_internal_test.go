package continuation

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/san-kum/foldsim/internal/dynamo"
	"github.com/san-kum/foldsim/internal/model"
)

var _ = Describe("boundary points", func() {
	var (
		st      *stepper
		u, next []float64
		t       []float64
	)

	BeforeEach(func() {
		sys := model.NewFold()
		req := NewRequest(sys, dynamo.State{0.5}, sys.DefaultParams(), "p")
		req.Box.State = []Bound{{Min: 0.2, Max: 0.55}}
		st = &stepper{
			br:     equilibriumBranch{newCurveSystem(req)},
			req:    req,
			n:      1,
			bounds: req.bounds(),
			dir:    Forward,
			log:    zap.NewNop(),
			seg:    &Segment{Direction: Forward},
		}
		u = []float64{0.5, 0.25}
		next = []float64{0.6, 0.36}
		t, _ = unit(sub(next, u))
	})

	It("locates the crossing inside the step", func() {
		k, bound, frac, out := st.exit(u, next)
		Expect(out).To(BeTrue())
		Expect(k).To(Equal(0))
		Expect(bound).To(Equal(0.55))

		st.finishAtBoundary(u, next, t, k, bound, frac, -1, 0, 0.1)
		Expect(st.seg.Points).To(HaveLen(1))
		pt := st.seg.Points[0]
		Expect(pt.Flag).To(Equal(BoundaryFlag))
		Expect(pt.State[0]).To(BeNumerically("~", 0.55, 1e-12))
		Expect(pt.Params.Get("p")).To(BeNumerically("~", 0.55*0.55, 1e-8))
	})

	DescribeTable("drops a crossing outside the step",
		func(frac float64) {
			st.finishAtBoundary(u, next, t, 0, 0.55, frac, -1, 0, 0.1)
			Expect(st.seg.Points).To(BeEmpty())
		},
		Entry("at the previous point", 0.0),
		Entry("behind the previous point", -0.5),
		Entry("past the new point", 1.5),
		Entry("undefined", math.NaN()),
	)
})
