package opt

import (
	"math"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

// CheckDerivEach compares the analytic gradient of the objective at x with
// a forward difference of step h and stores the absolute difference of each
// component into diff. If diff is nil a new slice is allocated.
func (o *Optimizer) CheckDerivEach(x []float64, h float64, diff []float64) []float64 {
	if len(x) != o.d {
		panic("opt: x length mismatch")
	}
	if o.obj == nil {
		panic("opt: no objective")
	}
	if diff == nil {
		diff = make([]float64, o.d)
	}
	if len(diff) != o.d {
		panic("opt: diff length mismatch")
	}
	analytic := make([]float64, o.d)
	o.obj.FuncGrad(x, analytic)
	fd.Gradient(diff, o.obj.Func, x, &fd.Settings{
		Formula: fd.Forward,
		Step:    h,
	})
	for i := range diff {
		diff[i] = math.Abs(diff[i] - analytic[i])
	}
	return diff
}

// CheckDeriv returns the norm of the difference between the analytic and
// the forward difference gradient at x
func (o *Optimizer) CheckDeriv(x []float64, h float64) float64 {
	return floats.Norm(o.CheckDerivEach(x, h, nil), 2)
}

// Problem returns the objective as a gonum optimize.Problem. The Hessian is
// set if the objective implements Hessianer.
func (o *Optimizer) Problem() optimize.Problem {
	if o.obj == nil {
		panic("opt: no objective")
	}
	obj := o.obj
	p := optimize.Problem{
		Func: obj.Func,
		Grad: func(grad, x []float64) {
			obj.FuncGrad(x, grad)
		},
	}
	if h, ok := obj.(Hessianer); ok {
		p.Hess = func(hess *mat.SymDense, x []float64) {
			h.Hess(x, hess)
		}
	}
	return p
}
