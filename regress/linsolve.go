package regress

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/fybazs/Compressed-Continuous-Computation/ft"
	"github.com/fybazs/Compressed-Continuous-Computation/loss"
	"github.com/fybazs/Compressed-Continuous-Computation/regularize"
)

// ErrNotLinear is returned when a core cannot be solved in closed form
var ErrNotLinear = errors.New("regress: core objective is not a linear least squares problem")

// IsLinearSolveLosser returns true if the loss is the squared distance
func IsLinearSolveLosser(l loss.Losser) bool {
	switch l.(type) {
	case nil, loss.SquaredDistance, *loss.SquaredDistance:
		return true
	}
	return false
}

// CanSolveCore returns true if the objective of core k is a linear least
// squares problem: the basis of dimension k is linear in its parameters,
// the loss is the squared distance and the penalty is at most quadratic.
func (a *ALS) CanSolveCore(k int) bool {
	a.mustPrep()
	if !a.ftp.ApproxOpts().IsLinear(k) || !IsLinearSolveLosser(a.Losser) {
		return false
	}
	_, ok := regularize.Ridge(a.Regularizer)
	return ok
}

// SolveCore sets the parameters of the active core to the minimizer of its
// objective and returns the objective. With the other cores fixed the train
// is linear in the parameters θ of a linear core, f(x_i) = g_iᵀθ with g_i
// the gradient of the prediction, so the minimizer solves
//  min ||Gθ - y||² + ɣ||θ||²
// The minimum norm solution is taken when G is wide. A near singular G only
// loses accuracy; the condition error from the solve is not returned.
func (a *ALS) SolveCore() (float64, error) {
	a.mustCore()
	k := a.core
	if !a.CanSolveCore(k) {
		return math.NaN(), ErrNotLinear
	}
	gamma, _ := regularize.Ridge(a.Regularizer)
	a.SetCore(k)

	f := a.ftp.FT()
	n := a.data.Len()
	np := a.ftp.NumParamsPerCore(k)
	a.ws.EvalCore(f, k, a.data.x, true)
	grads := a.grads[:n*np]
	ft.CoreParamGradEval(f, k, a.ws, a.vals, grads)

	design := mat.NewDense(n, np, grads)
	rhs := mat.NewVecDense(n, a.data.y)
	if gamma > 0 {
		// Augment with sqrt(ɣ)I and zero labels
		aug := mat.NewDense(n+np, np, nil)
		aug.Slice(0, n, 0, np).(*mat.Dense).Copy(design)
		sg := math.Sqrt(gamma)
		for i := 0; i < np; i++ {
			aug.Set(n+i, i, sg)
		}
		augRHS := mat.NewVecDense(n+np, nil)
		augRHS.SliceVec(0, n).(*mat.VecDense).CopyVec(rhs)
		design, rhs = aug, augRHS
	}

	var theta mat.VecDense
	if err := theta.SolveVec(design, rhs); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return math.NaN(), err
		}
	}
	params := make([]float64, np)
	for i := range params {
		params[i] = theta.AtVec(i)
	}
	return a.Func(params), nil
}
