package opt

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// LineSearch selects how the step length along a descent direction is chosen
type LineSearch int

const (
	// Backtrack shrinks the step by LSBeta until the sufficient decrease
	// (Armijo) condition holds
	Backtrack LineSearch = iota
	// StrongWolfe brackets a step satisfying the sufficient decrease and the
	// strong curvature condition, and zooms into the bracket by bisection
	StrongWolfe
	// WeakWolfe bisects until the sufficient decrease and the weak curvature
	// condition hold
	WeakWolfe
)

func (l LineSearch) String() string {
	switch l {
	case Backtrack:
		return "backtrack"
	case StrongWolfe:
		return "strongwolfe"
	case WeakWolfe:
		return "weakwolfe"
	}
	return "unknown"
}

func (o *Optimizer) lineSearchValid() bool {
	if o.LSMaxIter < 1 || !(o.InitStep > 0) {
		return false
	}
	if !(o.LSAlpha > 0 && o.LSAlpha < 1) {
		return false
	}
	switch o.LineSearch {
	case Backtrack:
		return o.LSBeta > 0 && o.LSBeta < 1
	case StrongWolfe, WeakWolfe:
		return o.LSCurv > o.LSAlpha && o.LSCurv < 1
	}
	return false
}

// lineSearch finds a step along p from x. On success xNew and gNew hold the
// new point and its gradient and the new value is returned.
func (o *Optimizer) lineSearch(x []float64, f0 float64, g0, p, xNew, gNew []float64) (float64, Status) {
	if !o.lineSearchValid() {
		return f0, LSParamInvalid
	}
	d0 := floats.Dot(g0, p)
	if !(d0 < 0) {
		return f0, LSParamInvalid
	}
	switch o.LineSearch {
	case Backtrack:
		return o.backtrack(x, f0, d0, p, xNew, gNew)
	case StrongWolfe:
		return o.strongWolfe(x, f0, d0, p, xNew, gNew)
	default:
		return o.weakWolfe(x, f0, d0, p, xNew, gNew)
	}
}

// step stores x + alpha p into xNew
func step(xNew, x, p []float64, alpha float64) {
	floats.AddScaledTo(xNew, x, alpha, p)
}

func (o *Optimizer) backtrack(x []float64, f0, d0 float64, p, xNew, gNew []float64) (float64, Status) {
	alpha := o.InitStep
	for i := 0; i < o.LSMaxIter; i++ {
		step(xNew, x, p, alpha)
		f := o.eval(xNew)
		if f <= f0+o.LSAlpha*alpha*d0 {
			return o.evalGrad(xNew, gNew), Success
		}
		alpha *= o.LSBeta
	}
	return f0, LSMaxIterReached
}

// trial evaluates the objective and the directional derivative at x + alpha p
func (o *Optimizer) trial(x, p, xNew, gNew []float64, alpha float64) (f, d float64) {
	step(xNew, x, p, alpha)
	f = o.evalGrad(xNew, gNew)
	return f, floats.Dot(gNew, p)
}

func (o *Optimizer) strongWolfe(x []float64, f0, d0 float64, p, xNew, gNew []float64) (float64, Status) {
	c1, c2 := o.LSAlpha, o.LSCurv
	alphaPrev, fPrev := 0.0, f0
	alpha := o.InitStep
	for i := 0; i < o.LSMaxIter; i++ {
		f, d := o.trial(x, p, xNew, gNew, alpha)
		if math.IsNaN(f) || math.IsInf(f, 1) {
			// Overshot into an invalid region
			return o.zoom(x, f0, d0, p, xNew, gNew, alphaPrev, alpha, fPrev, i)
		}
		if f > f0+c1*alpha*d0 || (i > 0 && f >= fPrev) {
			return o.zoom(x, f0, d0, p, xNew, gNew, alphaPrev, alpha, fPrev, i)
		}
		if math.Abs(d) <= -c2*d0 {
			return f, Success
		}
		if d >= 0 {
			return o.zoom(x, f0, d0, p, xNew, gNew, alpha, alphaPrev, f, i)
		}
		alphaPrev, fPrev = alpha, f
		alpha *= 2
	}
	return f0, LSMaxIterReached
}

// zoom bisects the bracket [lo, hi] until a step satisfying the strong Wolfe
// conditions is found. lo always satisfies sufficient decrease and has the
// lowest value seen.
func (o *Optimizer) zoom(x []float64, f0, d0 float64, p, xNew, gNew []float64, lo, hi, fLo float64, used int) (float64, Status) {
	c1, c2 := o.LSAlpha, o.LSCurv
	for i := used; i < o.LSMaxIter; i++ {
		alpha := (lo + hi) / 2
		f, d := o.trial(x, p, xNew, gNew, alpha)
		if f > f0+c1*alpha*d0 || f >= fLo || math.IsNaN(f) {
			hi = alpha
			continue
		}
		if math.Abs(d) <= -c2*d0 {
			return f, Success
		}
		if d*(hi-lo) >= 0 {
			hi = lo
		}
		lo, fLo = alpha, f
	}
	return f0, LSMaxIterReached
}

func (o *Optimizer) weakWolfe(x []float64, f0, d0 float64, p, xNew, gNew []float64) (float64, Status) {
	c1, c2 := o.LSAlpha, o.LSCurv
	lo, hi := 0.0, math.Inf(1)
	alpha := o.InitStep
	for i := 0; i < o.LSMaxIter; i++ {
		f, d := o.trial(x, p, xNew, gNew, alpha)
		switch {
		case math.IsNaN(f) || f > f0+c1*alpha*d0:
			hi = alpha
		case d < c2*d0:
			lo = alpha
		default:
			return f, Success
		}
		if math.IsInf(hi, 1) {
			alpha = 2 * lo
		} else {
			alpha = (lo + hi) / 2
		}
	}
	return f0, LSMaxIterReached
}
