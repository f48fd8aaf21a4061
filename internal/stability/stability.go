package stability

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"
)

// DefaultThreshold keeps near-zero numerical noise from being labelled stable.
const DefaultThreshold = -1e-9

type Label int

const (
	Unstable Label = iota
	Stable
)

func (l Label) String() string {
	if l == Stable {
		return "stable"
	}
	return "unstable"
}

// Kind is the qualitative type of an equilibrium, for display only.
type Kind int

const (
	Degenerate Kind = iota
	Node
	Focus
	Saddle
	Center
)

func (k Kind) String() string {
	switch k {
	case Node:
		return "node"
	case Focus:
		return "focus"
	case Saddle:
		return "saddle"
	case Center:
		return "center"
	default:
		return "degenerate"
	}
}

// Eigenvalues returns the eigenvalues of a square Jacobian, or nil if the
// factorization fails.
func Eigenvalues(j mat.Matrix) []complex128 {
	var eig mat.Eigen
	if ok := eig.Factorize(j, mat.EigenNone); !ok {
		return nil
	}
	return eig.Values(nil)
}

// Classify labels an equilibrium from its Jacobian.
func Classify(j mat.Matrix, threshold float64) Label {
	return ClassifyEigenvalues(Eigenvalues(j), threshold)
}

// ClassifyEigenvalues is Stable iff every real part is strictly below
// threshold. An empty spectrum is Unstable.
func ClassifyEigenvalues(eigs []complex128, threshold float64) Label {
	if len(eigs) == 0 {
		return Unstable
	}
	for _, ev := range eigs {
		if !(real(ev) < threshold) {
			return Unstable
		}
	}
	return Stable
}

// Describe reports the equilibrium type. tol decides when a real or
// imaginary part counts as zero.
func Describe(eigs []complex128, tol float64) Kind {
	if len(eigs) == 0 {
		return Degenerate
	}
	var neg, pos, zero, complexPairs int
	for _, ev := range eigs {
		re := real(ev)
		switch {
		case math.Abs(re) <= tol:
			zero++
		case re < 0:
			neg++
		default:
			pos++
		}
		if math.Abs(imag(ev)) > tol {
			complexPairs++
		}
	}

	switch {
	case zero == len(eigs) && complexPairs == len(eigs):
		return Center
	case zero > 0:
		return Degenerate
	case neg > 0 && pos > 0:
		return Saddle
	case complexPairs > 0:
		return Focus
	default:
		return Node
	}
}

// Determinant is the fold test function: it changes sign when a real
// eigenvalue crosses zero.
func Determinant(j mat.Matrix) float64 {
	return mat.Det(j)
}

// SmallestMagnitude returns the eigenvalue closest to the origin.
func SmallestMagnitude(eigs []complex128) complex128 {
	best := complex(math.Inf(1), 0)
	for _, ev := range eigs {
		if cmplx.Abs(ev) < cmplx.Abs(best) {
			best = ev
		}
	}
	return best
}
