// Package opt implements a small gradient based nonlinear minimizer used to
// fit function trains. It provides BFGS, batch gradient descent, damped
// Newton and brute force search, three line searches, and projected variants
// of the descent methods for box constrained problems.
//
// Minimize never panics or returns an error for numerical trouble; the
// outcome of a run is reported as a Status.
package opt

import (
	"errors"
	"fmt"
	"io"
	"log"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Status is the outcome of a minimization
type Status int

const (
	LSParamInvalid   Status = -4 // line search parameters are invalid
	LSMaxIterReached Status = -3 // line search could not find an acceptable step
	XBoundViolated   Status = -2 // the start is infeasible or no feasible step exists
	MaxIterReached   Status = -1 // iteration or evaluation budget exhausted
	Success          Status = 0
	FTolReached      Status = 1 // relative decrease of the objective below RelFTol
	XTolReached      Status = 2 // step length below AbsXTol
	GTolReached      Status = 3 // gradient norm below GTol
)

func (s Status) String() string {
	switch s {
	case LSParamInvalid:
		return "line search parameter invalid"
	case LSMaxIterReached:
		return "line search max iterations reached"
	case XBoundViolated:
		return "x bound violated"
	case MaxIterReached:
		return "max iterations reached"
	case Success:
		return "success"
	case FTolReached:
		return "ftol reached"
	case XTolReached:
		return "xtol reached"
	case GTolReached:
		return "gtol reached"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Converged returns true if the status is a successful termination
func (s Status) Converged() bool {
	return s >= Success
}

// Algorithm selects the minimization method
type Algorithm int

const (
	BFGS Algorithm = iota
	BatchGrad
	BruteForce
	Newton
)

func (a Algorithm) String() string {
	switch a {
	case BFGS:
		return "bfgs"
	case BatchGrad:
		return "batchgrad"
	case BruteForce:
		return "bruteforce"
	case Newton:
		return "newton"
	}
	return fmt.Sprintf("algorithm(%d)", int(a))
}

// Objective is a function with a gradient. FuncGrad stores the gradient in
// place into grad and returns the value.
type Objective interface {
	Func(x []float64) float64
	FuncGrad(x, grad []float64) float64
}

// Hessianer is an objective that can compute its Hessian. It is required by
// the Newton algorithm.
type Hessianer interface {
	Hess(x []float64, hess *mat.SymDense)
}

// ObjectiveFunc adapts a pair of functions to an Objective. If F is nil the
// value is computed with FG into a scratch gradient.
type ObjectiveFunc struct {
	F  func(x []float64) float64
	FG func(x, grad []float64) float64
}

func (o ObjectiveFunc) Func(x []float64) float64 {
	if o.F != nil {
		return o.F(x)
	}
	return o.FG(x, make([]float64, len(x)))
}

func (o ObjectiveFunc) FuncGrad(x, grad []float64) float64 {
	return o.FG(x, grad)
}

// Record is one stored iterate
type Record struct {
	Iter     int
	F        float64
	GradNorm float64
	X        []float64
}

// Optimizer holds the settings, counters and optional trajectory of a
// minimization. The exported fields may be changed between runs.
type Optimizer struct {
	alg Algorithm
	d   int
	obj Objective

	lb, ub []float64

	MaxIter  int     // Maximum number of iterations
	MaxEvals int     // Maximum number of objective evaluations, 0 is unlimited
	RelFTol  float64 // Stop if |f_old - f_new| <= RelFTol |f_old|
	AbsXTol  float64 // Stop if ||x_new - x_old|| < AbsXTol
	GTol     float64 // Stop if the (projected) gradient norm < GTol

	LineSearch LineSearch
	LSAlpha    float64 // Sufficient decrease constant
	LSBeta     float64 // Backtracking shrink factor
	LSCurv     float64 // Curvature constant of the Wolfe conditions
	LSMaxIter  int
	InitStep   float64 // First trial step of each line search

	Logger *log.Logger // Per iteration trace if not nil

	brute [][]float64

	nIters     int
	nEvals     int
	nGradEvals int
	nHessEvals int

	store  bool
	stored []Record
}

// New returns an optimizer for a d dimensional problem with default settings.
// BFGS and Newton use a strong Wolfe line search, batch gradient descent uses
// backtracking.
func New(alg Algorithm, d int) *Optimizer {
	if d < 1 {
		panic("opt: dimension must be positive")
	}
	o := &Optimizer{
		alg:       alg,
		d:         d,
		MaxIter:   1000,
		RelFTol:   1e-10,
		AbsXTol:   1e-10,
		GTol:      1e-12,
		LSAlpha:   1e-4,
		LSBeta:    0.5,
		LSCurv:    0.9,
		LSMaxIter: 50,
		InitStep:  1,
	}
	switch alg {
	case BFGS, Newton:
		o.LineSearch = StrongWolfe
	default:
		o.LineSearch = Backtrack
	}
	return o
}

// Algorithm returns the algorithm of the optimizer
func (o *Optimizer) Algorithm() Algorithm {
	return o.alg
}

// Dim returns the problem dimension
func (o *Optimizer) Dim() int {
	return o.d
}

// SetObjective sets the function to minimize
func (o *Optimizer) SetObjective(obj Objective) {
	o.obj = obj
}

// SetLowerBounds sets a lower bound on every variable
func (o *Optimizer) SetLowerBounds(lb []float64) {
	if len(lb) != o.d {
		panic("opt: bound length mismatch")
	}
	o.lb = append(o.lb[:0], lb...)
}

// SetUpperBounds sets an upper bound on every variable
func (o *Optimizer) SetUpperBounds(ub []float64) {
	if len(ub) != o.d {
		panic("opt: bound length mismatch")
	}
	o.ub = append(o.ub[:0], ub...)
}

// SetLineSearch sets the line search used by the unconstrained methods
func (o *Optimizer) SetLineSearch(ls LineSearch) {
	o.LineSearch = ls
}

// SetBruteForcePoints sets the candidate points of the brute force algorithm
func (o *Optimizer) SetBruteForcePoints(pts [][]float64) {
	for _, p := range pts {
		if len(p) != o.d {
			panic("opt: brute force point length mismatch")
		}
	}
	o.brute = pts
}

// SetStorage turns on storing the trajectory of the next runs
func (o *Optimizer) SetStorage(store bool) {
	o.store = store
}

// Stored returns the stored trajectory of the last run
func (o *Optimizer) Stored() []Record {
	return o.stored
}

// WriteStored writes the stored trajectory as whitespace separated columns:
// iteration, value, gradient norm, then x
func (o *Optimizer) WriteStored(w io.Writer) error {
	for _, r := range o.stored {
		if _, err := fmt.Fprintf(w, "%d %3.15g %3.15g", r.Iter, r.F, r.GradNorm); err != nil {
			return err
		}
		for _, v := range r.X {
			if _, err := fmt.Fprintf(w, " %3.15g", v); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}
	return nil
}

// NumIters returns the number of iterations of the last run
func (o *Optimizer) NumIters() int { return o.nIters }

// NumEvals returns the number of objective evaluations of the last run
func (o *Optimizer) NumEvals() int { return o.nEvals }

// NumGradEvals returns the number of gradient evaluations of the last run
func (o *Optimizer) NumGradEvals() int { return o.nGradEvals }

// NumHessEvals returns the number of Hessian evaluations of the last run
func (o *Optimizer) NumHessEvals() int { return o.nHessEvals }

func (o *Optimizer) eval(x []float64) float64 {
	o.nEvals++
	return o.obj.Func(x)
}

func (o *Optimizer) evalGrad(x, grad []float64) float64 {
	o.nEvals++
	o.nGradEvals++
	return o.obj.FuncGrad(x, grad)
}

func (o *Optimizer) record(iter int, f, gnorm float64, x []float64) {
	if o.store {
		o.stored = append(o.stored, Record{
			Iter:     iter,
			F:        f,
			GradNorm: gnorm,
			X:        append([]float64(nil), x...),
		})
	}
	if o.Logger != nil {
		o.Logger.Printf("opt: %v iter %d f = %3.8g |g| = %3.5g", o.alg, iter, f, gnorm)
	}
}

func (o *Optimizer) budgetExhausted() bool {
	return o.MaxEvals > 0 && o.nEvals >= o.MaxEvals
}

// Minimize minimizes the objective starting from x. x is updated in place
// with the final iterate and the final value is returned with the status.
// When a line search fails x holds the last accepted iterate.
func (o *Optimizer) Minimize(x []float64) (float64, Status) {
	if len(x) != o.d {
		panic("opt: x length mismatch")
	}
	if o.obj == nil {
		panic("opt: no objective")
	}
	o.nIters, o.nEvals, o.nGradEvals, o.nHessEvals = 0, 0, 0, 0
	o.stored = o.stored[:0]

	if o.alg == BruteForce {
		return o.bruteForce(x)
	}
	if o.bounded() && !o.feasible(x) {
		return o.eval(x), XBoundViolated
	}
	if o.alg == Newton {
		if _, ok := o.obj.(Hessianer); !ok {
			panic("opt: Newton requires an objective with a Hessian")
		}
	}
	return o.descent(x)
}

func (o *Optimizer) bruteForce(x []float64) (float64, Status) {
	if len(o.brute) == 0 {
		panic("opt: no brute force points")
	}
	best := math.Inf(1)
	bestIdx := -1
	for i, p := range o.brute {
		f := o.eval(p)
		o.nIters++
		if f < best || bestIdx < 0 {
			best = f
			bestIdx = i
		}
		o.record(i, f, math.NaN(), p)
	}
	copy(x, o.brute[bestIdx])
	return best, Success
}

// BruteForceGrid returns the tensor grid of n equally spaced points per
// dimension on the box [lb, ub]
func BruteForceGrid(lb, ub []float64, n int) [][]float64 {
	if len(lb) != len(ub) {
		panic("opt: bound length mismatch")
	}
	if n < 1 {
		panic("opt: grid needs at least one point")
	}
	d := len(lb)
	total := 1
	for i := 0; i < d; i++ {
		total *= n
	}
	pts := make([][]float64, total)
	idx := make([]int, d)
	for p := range pts {
		pt := make([]float64, d)
		for j := range pt {
			if n == 1 {
				pt[j] = (lb[j] + ub[j]) / 2
			} else {
				pt[j] = lb[j] + float64(idx[j])*(ub[j]-lb[j])/float64(n-1)
			}
		}
		pts[p] = pt
		for j := 0; j < d; j++ {
			idx[j]++
			if idx[j] < n {
				break
			}
			idx[j] = 0
		}
	}
	return pts
}

// descent runs the line search methods.
func (o *Optimizer) descent(x []float64) (float64, Status) {
	d := o.d
	bounded := o.bounded()
	g := make([]float64, d)
	p := make([]float64, d)
	xNew := make([]float64, d)
	gNew := make([]float64, d)
	s := make([]float64, d)
	y := make([]float64, d)
	tmp := make([]float64, d)

	var hInv *mat.SymDense
	var hess *mat.SymDense
	firstUpdate := true
	switch o.alg {
	case BFGS:
		hInv = identity(d)
	case Newton:
		hess = mat.NewSymDense(d, nil)
	}

	f := o.evalGrad(x, g)
	gnorm := o.gradNorm(x, g, tmp)
	o.record(0, f, gnorm, x)
	if gnorm < o.GTol {
		return f, GTolReached
	}

	for o.nIters < o.MaxIter {
		// Search direction
		switch o.alg {
		case BatchGrad:
			copy(p, g)
			floats.Scale(-1, p)
		case BFGS:
			mulSym(p, hInv, g)
			floats.Scale(-1, p)
		case Newton:
			o.obj.(Hessianer).Hess(x, hess)
			o.nHessEvals++
			if !dampedNewtonStep(p, hess, g) {
				copy(p, g)
				floats.Scale(-1, p)
			}
		}
		if floats.Dot(p, g) >= 0 {
			// Not a descent direction. Restart from steepest descent.
			copy(p, g)
			floats.Scale(-1, p)
			if hInv != nil {
				setIdentity(hInv)
				firstUpdate = true
			}
		}

		var fNew float64
		var status Status
		if bounded {
			fNew, status = o.projectedSearch(x, f, g, p, xNew, gNew, tmp)
			if status == XBoundViolated && o.alg != BatchGrad {
				// Fall back to the projected gradient
				copy(p, g)
				floats.Scale(-1, p)
				if hInv != nil {
					setIdentity(hInv)
					firstUpdate = true
				}
				fNew, status = o.projectedSearch(x, f, g, p, xNew, gNew, tmp)
			}
		} else {
			fNew, status = o.lineSearch(x, f, g, p, xNew, gNew)
		}
		if status != Success {
			return f, status
		}
		o.nIters++

		floats.SubTo(s, xNew, x)
		floats.SubTo(y, gNew, g)
		if hInv != nil {
			bfgsUpdate(hInv, s, y, tmp, firstUpdate)
			firstUpdate = false
		}

		fOld := f
		copy(x, xNew)
		copy(g, gNew)
		f = fNew
		gnorm = o.gradNorm(x, g, tmp)
		o.record(o.nIters, f, gnorm, x)

		if math.Abs(fOld-f) <= o.RelFTol*math.Abs(fOld) {
			return f, FTolReached
		}
		if floats.Norm(s, 2) < o.AbsXTol {
			return f, XTolReached
		}
		if gnorm < o.GTol {
			return f, GTolReached
		}
		if o.budgetExhausted() {
			return f, MaxIterReached
		}
	}
	return f, MaxIterReached
}

func identity(d int) *mat.SymDense {
	h := mat.NewSymDense(d, nil)
	setIdentity(h)
	return h
}

func setIdentity(h *mat.SymDense) {
	d := h.SymmetricDim()
	for i := 0; i < d; i++ {
		for j := i; j < d; j++ {
			v := 0.0
			if i == j {
				v = 1
			}
			h.SetSym(i, j, v)
		}
	}
}

// mulSym stores h·v into dst
func mulSym(dst []float64, h *mat.SymDense, v []float64) {
	dv := mat.NewVecDense(len(dst), dst)
	dv.MulVec(h, mat.NewVecDense(len(v), v))
}

// bfgsUpdate applies the inverse Hessian update
//  H+ = (I - ρ s yᵀ) H (I - ρ y sᵀ) + ρ s sᵀ,  ρ = 1 / yᵀs
// The update is skipped if the curvature yᵀs is not positive. Before the
// first update H is scaled by yᵀs / yᵀy.
func bfgsUpdate(h *mat.SymDense, s, y, hy []float64, first bool) {
	sy := floats.Dot(s, y)
	if !(sy > 1e-14*floats.Norm(s, 2)*floats.Norm(y, 2)) {
		return
	}
	if first {
		setIdentity(h)
		h.ScaleSym(sy/floats.Dot(y, y), h)
	}
	rho := 1 / sy
	mulSym(hy, h, y)
	yhy := floats.Dot(y, hy)
	sv := mat.NewVecDense(len(s), s)
	h.RankTwo(h, -rho, mat.NewVecDense(len(hy), hy), sv)
	h.SymRankOne(h, rho*rho*yhy+rho, sv)
}

// dampedNewtonStep solves (H + λI) p = -g for the smallest λ in a geometric
// sequence for which the matrix is positive definite.
func dampedNewtonStep(p []float64, hess *mat.SymDense, g []float64) bool {
	d := len(g)
	var chol mat.Cholesky
	damped := mat.NewSymDense(d, nil)
	var maxDiag float64
	for i := 0; i < d; i++ {
		maxDiag = math.Max(maxDiag, math.Abs(hess.At(i, i)))
	}
	lambda := 0.0
	for try := 0; try < 60; try++ {
		damped.CopySym(hess)
		for i := 0; i < d; i++ {
			damped.SetSym(i, i, damped.At(i, i)+lambda)
		}
		if chol.Factorize(damped) {
			pv := mat.NewVecDense(d, p)
			if err := chol.SolveVecTo(pv, mat.NewVecDense(d, g)); err != nil {
				var cond mat.Condition
				if !errors.As(err, &cond) {
					return false
				}
			}
			floats.Scale(-1, p)
			return true
		}
		if lambda == 0 {
			lambda = 1e-8 * math.Max(maxDiag, 1)
		} else {
			lambda *= 4
		}
	}
	return false
}
