// Package regtest contains a bunch of helper functions for testing
// function-train parameterizations, regression objectives and basis families.
package regtest

import (
	"math/rand"
	"reflect"
	"testing"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/mat"
)

const (
	throwPanic = true

	// FDStep is the central difference step used by the derivative checks
	FDStep = 1e-6
	// FDTol is the absolute or relative tolerance used by the derivative checks
	FDTol = 1e-6
)

func panics(f func()) (b bool) {
	defer func() {
		err := recover()
		if err != nil {
			b = true
		}
	}()
	f()
	return
}

func maybe(f func()) (b bool) {
	defer func() {
		err := recover()
		if err != nil {
			b = true
			if throwPanic {
				panic(err)
			}
		}
	}()
	f()
	return
}

// RandomMat returns an r×c matrix with entries drawn from f
func RandomMat(r, c int, f func() float64) *mat.Dense {
	m := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			m.Set(i, j, f())
		}
	}
	return m
}

// RandomSlice returns a slice of length n with entries drawn from f
func RandomSlice(n int, f func() float64) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = f()
	}
	return s
}

// ParameterGetterSetter is a type whose parameters can be read and written
// as a flat vector.
type ParameterGetterSetter interface {
	NumParams() int
	Params([]float64) []float64
	SetParams([]float64)
}

// TestGetAndSetParameters checks the contract of a ParameterGetterSetter:
// nil and non-nil destinations agree, the returned slice does not alias the
// receiver, SetParams followed by Params round trips, and bad lengths panic.
func TestGetAndSetParameters(t *testing.T, p ParameterGetterSetter, name string) {
	var nilParam []float64
	f := func() {
		nilParam = p.Params(nil)
	}
	if maybe(f) {
		t.Errorf("%v: Params panicked with nil input", name)
		return
	}

	if len(nilParam) != p.NumParams() {
		t.Errorf("%v: On nil input, incorrect length returned from Params()", name)
	}
	nilParamCopy := make([]float64, p.NumParams())
	copy(nilParamCopy, nilParam)
	nonNilParam := make([]float64, p.NumParams())
	p.Params(nonNilParam)
	if !floats.Equal(nilParam, nonNilParam) {
		t.Errorf("%v: Return from Params() with nil argument and non nil argument are different", name)
	}
	for i := range nonNilParam {
		nonNilParam[i] = rand.NormFloat64()
	}
	if !floats.Equal(nilParam, nilParamCopy) {
		t.Errorf("%v: Modifying the return from Params modified the underlying parameters", name)
	}
	setParam := make([]float64, p.NumParams())
	copy(setParam, nonNilParam)
	p.SetParams(setParam)
	if !floats.Equal(setParam, nonNilParam) {
		t.Errorf("%v: Input slice modified during call to SetParams", name)
	}
	afterParam := p.Params(nil)
	if !floats.Equal(afterParam, setParam) {
		t.Errorf("%v: SetParams followed by Params don't return the same argument", name)
	}
	if len(setParam) > 0 {
		setParam[0] += 1
		if p.Params(nil)[0] == setParam[0] {
			t.Errorf("%v: SetParams kept a reference to its argument", name)
		}
	}

	badLength := make([]float64, p.NumParams()+3)
	f = func() {
		p.Params(badLength)
	}
	if !panics(f) {
		t.Errorf("%v: Params did not panic given a slice too long", name)
	}
	f = func() {
		p.SetParams(badLength)
	}
	if !panics(f) {
		t.Errorf("%v: SetParams did not panic given a slice too long", name)
	}
	if p.NumParams() == 0 {
		return
	}
	badLength = badLength[:p.NumParams()-1]
	f = func() {
		p.Params(badLength)
	}
	if !panics(f) {
		t.Errorf("%v: Params did not panic given a slice too short", name)
	}
	f = func() {
		p.SetParams(badLength)
	}
	if !panics(f) {
		t.Errorf("%v: SetParams did not panic given a slice too short", name)
	}
}

// FuncGrader is an objective with an analytic gradient
type FuncGrader interface {
	Func(x []float64) float64
	FuncGrad(x, grad []float64) float64
}

// TestDeriv uses central finite differences to test that the gradient from
// FuncGrad is correct, and that Func and FuncGrad agree on the value.
func TestDeriv(t *testing.T, f FuncGrader, x []float64, name string) {
	TestDerivTol(t, f, x, FDStep, FDTol, name)
}

// TestDerivTol is TestDeriv with a given step and tolerance
func TestDerivTol(t *testing.T, f FuncGrader, x []float64, step, tol float64, name string) {
	xCopy := make([]float64, len(x))
	copy(xCopy, x)
	grad := make([]float64, len(x))
	val := f.FuncGrad(x, grad)
	if !floats.Equal(x, xCopy) {
		t.Errorf("%v: FuncGrad modified the input", name)
	}
	val2 := f.Func(x)
	if !scalar.EqualWithinAbsOrRel(val, val2, 1e-14, 1e-14) {
		t.Errorf("%v: Func and FuncGrad values differ: %v, %v", name, val2, val)
	}
	fdGrad := fd.Gradient(nil, f.Func, x, &fd.Settings{
		Formula: fd.Central,
		Step:    step,
	})
	for i := range grad {
		if !scalar.EqualWithinAbsOrRel(grad[i], fdGrad[i], tol, tol) {
			t.Errorf("%v: deriv doesn't match at %v: Finite Difference: %v, Analytic: %v", name, i, fdGrad[i], grad[i])
		}
	}
}

// Family is a univariate parameterized function
type Family interface {
	NumParams() int
	Eval(params []float64, x float64) float64
	ParamGrad(params []float64, x float64, grad []float64) float64
}

type familyObjective struct {
	f Family
	x float64
}

func (o familyObjective) Func(params []float64) float64 {
	return o.f.Eval(params, o.x)
}

func (o familyObjective) FuncGrad(params, grad []float64) float64 {
	return o.f.ParamGrad(params, o.x, grad)
}

// TestFamilyDeriv checks the parameter gradient of a univariate family at
// each of the locations
func TestFamilyDeriv(t *testing.T, f Family, params []float64, locs []float64, name string) {
	for _, x := range locs {
		TestDeriv(t, familyObjective{f: f, x: x}, params, name)
	}
}

type Jsoner interface {
	MarshalJSON() ([]byte, error)
	UnmarshalJSON([]byte) error
}

// TestJSON checks that jsoner1 survives a round trip through JSON into jsoner2
func TestJSON(t *testing.T, jsoner1 Jsoner, jsoner2 Jsoner) {
	b, err := jsoner1.MarshalJSON()
	if err != nil {
		t.Errorf("Error marshaling: %v", err)
		return
	}
	err = jsoner2.UnmarshalJSON(b)
	if err != nil {
		t.Errorf("Error unmarshaling: %v", err)
		return
	}
	if !reflect.DeepEqual(jsoner1, jsoner2) {
		t.Errorf("Not equal after json marshal and unmarshal")
	}
}
