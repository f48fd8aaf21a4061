package continuation

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

func dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func norm2(a []float64) float64 {
	return math.Sqrt(dot(a, a))
}

func sub(a, b []float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = a[i] - b[i]
	}
	return out
}

// axpy returns y + alpha·x.
func axpy(alpha float64, x, y []float64) []float64 {
	out := make([]float64, len(y))
	for i := range y {
		out[i] = y[i] + alpha*x[i]
	}
	return out
}

func scaled(alpha float64, x []float64) []float64 {
	out := make([]float64, len(x))
	for i := range x {
		out[i] = alpha * x[i]
	}
	return out
}

func unit(x []float64) ([]float64, bool) {
	n := norm2(x)
	if n == 0 || math.IsNaN(n) || math.IsInf(n, 0) {
		return nil, false
	}
	return scaled(1/n, x), true
}

// nullVector returns a unit vector spanning the kernel of the
// (d-1) × d matrix j, taken from the last right singular vector.
func nullVector(j *mat.Dense) ([]float64, bool) {
	_, c := j.Dims()
	var svd mat.SVD
	if ok := svd.Factorize(j, mat.SVDFull); !ok {
		return nil, false
	}
	// The tangent is undefined where the null space is not one-dimensional.
	if vals := svd.Values(nil); len(vals) > 0 && vals[len(vals)-1] <= 1e-10*math.Max(1, vals[0]) {
		return nil, false
	}
	var v mat.Dense
	svd.VTo(&v)
	return unit(mat.Col(nil, c-1, &v))
}

// borderedTangent solves [J; prevᵀ]·t = e_d, which keeps t on the same
// side as prev.
func borderedTangent(j *mat.Dense, prev []float64) ([]float64, bool) {
	d := len(prev)
	a := mat.NewDense(d, d, nil)
	for i := 0; i < d-1; i++ {
		for k := 0; k < d; k++ {
			a.Set(i, k, j.At(i, k))
		}
	}
	a.SetRow(d-1, prev)

	rhs := mat.NewVecDense(d, nil)
	rhs.SetVec(d-1, 1)

	var t mat.VecDense
	if err := t.SolveVec(a, rhs); err != nil {
		return nil, false
	}
	return unit(mat.Col(nil, 0, &t))
}

// orient flips t so that the chosen component is positive, falling back
// to the largest component when it vanishes.
func orient(t []float64, idx int, dir Direction) []float64 {
	ref := t[idx]
	if math.Abs(ref) < 1e-12 {
		ref = 0
		for _, v := range t {
			if math.Abs(v) > math.Abs(ref) {
				ref = v
			}
		}
	}
	sign := 1.0
	if ref < 0 {
		sign = -1
	}
	if dir == Backward {
		sign = -sign
	}
	return scaled(sign, t)
}
