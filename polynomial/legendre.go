// Package polynomial implements orthogonal polynomial families usable as
// the univariate functions of a function train.
package polynomial

import (
	"errors"

	"github.com/fybazs/Compressed-Continuous-Computation/basis"
	"github.com/fybazs/Compressed-Continuous-Computation/common"
)

func init() {
	common.Register(Legendre{})
}

// Legendre is an expansion in Legendre polynomials up to and including
// degree Order on the interval [Lb, Ub]:
//  f(x) = Σ_n θ_n P_n(t),  t = (2x - Lb - Ub) / (Ub - Lb)
type Legendre struct {
	Order int
	Lb    float64
	Ub    float64
}

// NewLegendre returns a Legendre family checking that the arguments are valid
func NewLegendre(order int, lb, ub float64) (Legendre, error) {
	if order < 0 {
		return Legendre{}, errors.New("polynomial: negative order")
	}
	if !(lb < ub) {
		return Legendre{}, errors.New("polynomial: lower bound must be less than upper bound")
	}
	return Legendre{Order: order, Lb: lb, Ub: ub}, nil
}

func (l Legendre) NumParams() int {
	return l.Order + 1
}

func (Legendre) Linear() bool {
	return true
}

func (l Legendre) normalize(x float64) float64 {
	return (2*x - l.Lb - l.Ub) / (l.Ub - l.Lb)
}

// Eval uses the three term recurrence
//  (n+1) P_{n+1}(t) = (2n+1) t P_n(t) - n P_{n-1}(t)
func (l Legendre) Eval(params []float64, x float64) float64 {
	basis.CheckParams(l, "legendre", params)
	t := l.normalize(x)
	pPrev := 1.0
	sum := params[0] * pPrev
	if l.Order == 0 {
		return sum
	}
	p := t
	sum += params[1] * p
	for n := 1; n < l.Order; n++ {
		fn := float64(n)
		pNext := ((2*fn+1)*t*p - fn*pPrev) / (fn + 1)
		pPrev, p = p, pNext
		sum += params[n+1] * p
	}
	return sum
}

func (l Legendre) ParamGrad(params []float64, x float64, grad []float64) float64 {
	basis.CheckParams(l, "legendre", params)
	if len(grad) != len(params) {
		panic(basis.LengthMismatch{Family: "legendre", Want: len(params), Have: len(grad)})
	}
	t := l.normalize(x)
	grad[0] = 1
	if l.Order > 0 {
		grad[1] = t
	}
	for n := 1; n < l.Order; n++ {
		fn := float64(n)
		grad[n+1] = ((2*fn+1)*t*grad[n] - fn*grad[n-1]) / (fn + 1)
	}
	var sum float64
	for i, g := range grad {
		sum += params[i] * g
	}
	return sum
}

// FitAffine represents slope*x + offset exactly with the first two
// polynomials. A zero order expansion can only represent constants.
func (l Legendre) FitAffine(slope, offset float64, params []float64) error {
	basis.CheckParams(l, "legendre", params)
	for i := range params {
		params[i] = 0
	}
	mid := (l.Lb + l.Ub) / 2
	half := (l.Ub - l.Lb) / 2
	params[0] = slope*mid + offset
	if l.Order == 0 {
		if slope != 0 {
			return basis.ErrNotRepresentable
		}
		return nil
	}
	params[1] = slope * half
	return nil
}
