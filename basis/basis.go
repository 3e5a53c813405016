// Package basis defines the contract between a function train and the
// univariate function families living in each of its cores.
//
// A Basis describes a family of univariate functions f(x; θ) parameterized
// by a fixed number of parameters θ. The function train stores the
// parameters, the Basis only knows how to evaluate them.
package basis

import (
	"errors"
	"fmt"
)

// ErrNotRepresentable is returned when a family cannot represent the
// requested function exactly.
var ErrNotRepresentable = errors.New("basis: function not representable")

// Basis is a univariate function family.
type Basis interface {
	// NumParams is the number of parameters of one function of the family
	NumParams() int

	// Linear returns true if the function is linear in its parameters
	Linear() bool

	// Eval returns f(x; params)
	Eval(params []float64, x float64) float64

	// ParamGrad returns f(x; params) and stores ∂f/∂params in place into
	// grad. grad must have length NumParams().
	ParamGrad(params []float64, x float64, grad []float64) float64
}

// AffineFitter is a family that can set its parameters to represent the
// affine function slope*x + offset.
type AffineFitter interface {
	FitAffine(slope, offset float64, params []float64) error
}

// LengthMismatch is returned or panicked when a parameter slice has the
// wrong length for a family.
type LengthMismatch struct {
	Family string
	Want   int
	Have   int
}

func (l LengthMismatch) Error() string {
	return fmt.Sprintf("basis: %s: parameter length mismatch. want %v, have %v", l.Family, l.Want, l.Have)
}

// CheckParams panics with a LengthMismatch if len(params) != b.NumParams()
func CheckParams(b Basis, family string, params []float64) {
	if len(params) != b.NumParams() {
		panic(LengthMismatch{Family: family, Want: b.NumParams(), Have: len(params)})
	}
}
