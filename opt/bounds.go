package opt

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

func (o *Optimizer) bounded() bool {
	return o.lb != nil || o.ub != nil
}

func (o *Optimizer) lower(i int) float64 {
	if o.lb == nil {
		return math.Inf(-1)
	}
	return o.lb[i]
}

func (o *Optimizer) upper(i int) float64 {
	if o.ub == nil {
		return math.Inf(1)
	}
	return o.ub[i]
}

// feasible returns false if the bounds are inconsistent or x is outside them
func (o *Optimizer) feasible(x []float64) bool {
	for i, v := range x {
		lb, ub := o.lower(i), o.upper(i)
		if lb > ub || v < lb || v > ub {
			return false
		}
	}
	return true
}

// project clips x into the box in place
func (o *Optimizer) project(x []float64) {
	if !o.bounded() {
		return
	}
	for i, v := range x {
		x[i] = math.Min(math.Max(v, o.lower(i)), o.upper(i))
	}
}

// gradNorm returns the norm of the gradient, or of the projected gradient
// P(x - g) - x for box constrained problems
func (o *Optimizer) gradNorm(x, g, tmp []float64) float64 {
	if !o.bounded() {
		return floats.Norm(g, 2)
	}
	floats.SubTo(tmp, x, g)
	o.project(tmp)
	floats.Sub(tmp, x)
	return floats.Norm(tmp, 2)
}

// projectedSearch backtracks along the projected path P(x + alpha p) until
// the sufficient decrease condition
//  f(P(x + alpha p)) <= f(x) + LSAlpha gᵀ(P(x + alpha p) - x)
// holds. If a projected step does not move, or is not a descent step, there
// is no feasible step along p and XBoundViolated is returned.
func (o *Optimizer) projectedSearch(x []float64, f0 float64, g0, p, xNew, gNew, tmp []float64) (float64, Status) {
	if !(o.LSAlpha > 0 && o.LSAlpha < 1) || !(o.LSBeta > 0 && o.LSBeta < 1) || o.LSMaxIter < 1 || !(o.InitStep > 0) {
		return f0, LSParamInvalid
	}
	alpha := o.InitStep
	for i := 0; i < o.LSMaxIter; i++ {
		step(xNew, x, p, alpha)
		o.project(xNew)
		floats.SubTo(tmp, xNew, x)
		dd := floats.Dot(g0, tmp)
		if !(dd < 0) || floats.Norm(tmp, 2) == 0 {
			return f0, XBoundViolated
		}
		f := o.eval(xNew)
		if f <= f0+o.LSAlpha*dd {
			return o.evalGrad(xNew, gNew), Success
		}
		alpha *= o.LSBeta
	}
	return f0, LSMaxIterReached
}
