// Package kernel implements a nonlinear univariate family built from
// squared exponential kernels.
package kernel

import (
	"errors"
	"math"

	"github.com/fybazs/Compressed-Continuous-Computation/basis"
	"github.com/fybazs/Compressed-Continuous-Computation/common"
)

func init() {
	common.Register(SqExp{})
}

// SqExp is a constant plus a sum of squared exponential bumps
//  f(x) = θ_0 + Σ_k a_k exp(-0.5 (x - c_k)^2 / s_k^2),  s_k = exp(ℓ_k)
// The parameters are ordered θ_0, a_1, c_1, ℓ_1, a_2, c_2, ℓ_2, ...
// The widths are parameterized by their logs.
type SqExp struct {
	Bumps int
}

// NewSqExp returns a family with the given number of bumps
func NewSqExp(bumps int) (SqExp, error) {
	if bumps < 0 {
		return SqExp{}, errors.New("kernel: negative number of bumps")
	}
	return SqExp{Bumps: bumps}, nil
}

func (s SqExp) NumParams() int {
	return 1 + 3*s.Bumps
}

// Linear is false since the centers and widths enter nonlinearly
func (SqExp) Linear() bool {
	return false
}

// bump returns the value of the unit amplitude kernel and (x-c)/s^2
func bump(x, c, logWidth float64) (e, z float64) {
	invVar := math.Exp(-2 * logWidth)
	diff := x - c
	return math.Exp(-0.5 * diff * diff * invVar), diff * invVar
}

func (s SqExp) Eval(params []float64, x float64) float64 {
	basis.CheckParams(s, "sqexp", params)
	sum := params[0]
	for k := 0; k < s.Bumps; k++ {
		p := params[1+3*k : 4+3*k]
		e, _ := bump(x, p[1], p[2])
		sum += p[0] * e
	}
	return sum
}

func (s SqExp) ParamGrad(params []float64, x float64, grad []float64) float64 {
	basis.CheckParams(s, "sqexp", params)
	if len(grad) != len(params) {
		panic(basis.LengthMismatch{Family: "sqexp", Want: len(params), Have: len(grad)})
	}
	sum := params[0]
	grad[0] = 1
	for k := 0; k < s.Bumps; k++ {
		p := params[1+3*k : 4+3*k]
		g := grad[1+3*k : 4+3*k]
		e, z := bump(x, p[1], p[2])
		sum += p[0] * e
		g[0] = e
		g[1] = p[0] * e * z
		g[2] = p[0] * e * z * (x - p[1])
	}
	return sum
}

// FitAffine can only represent constants. The bumps are switched off by
// zeroing their amplitudes and keeping unit widths.
func (s SqExp) FitAffine(slope, offset float64, params []float64) error {
	basis.CheckParams(s, "sqexp", params)
	if slope != 0 {
		return basis.ErrNotRepresentable
	}
	params[0] = offset
	for k := 0; k < s.Bumps; k++ {
		params[1+3*k] = 0
		params[2+3*k] = 0
		params[3+3*k] = 0
	}
	return nil
}
