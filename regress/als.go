package regress

import (
	"fmt"
	"log"

	"github.com/fybazs/Compressed-Continuous-Computation/common"
	"github.com/fybazs/Compressed-Continuous-Computation/ft"
	"github.com/fybazs/Compressed-Continuous-Computation/ftparam"
	"github.com/fybazs/Compressed-Continuous-Computation/loss"
	"github.com/fybazs/Compressed-Continuous-Computation/opt"
	"github.com/fybazs/Compressed-Continuous-Computation/regularize"
)

// ALS is the regression objective restricted to the parameters of one core,
// the active core, with the other cores fixed. The running totals on both
// sides of the active core are cached, so moving the active core by one
// position costs one core product per sample.
//
// The value is the full objective Σ_i loss(f(x_i), y_i) + R(θ), so it agrees
// with AIO at the same parameters. Regularizers are separable, so the
// gradient of the penalty is that of the active core's parameters.
type ALS struct {
	Losser      loss.DerivLosser
	Regularizer regularize.Regularizer
	Logger      *log.Logger // Per core trace of the sweeps if not nil

	data *Data
	ftp  *ftparam.FTparam
	ws   *ft.Workspace
	core int

	// version of the train the cached core evaluations were computed from
	version uint64

	// Prefix[j] is valid for j <= prefixValid, Suffix[j] for j >= suffixValid
	prefixValid int
	suffixValid int

	vals  []float64
	dLoss []float64
	grads []float64
}

// NewALS returns an alternating least squares objective on the data
func NewALS(data *Data) *ALS {
	return &ALS{data: data, core: -1}
}

// Data returns the data set
func (a *ALS) Data() *Data {
	return a.data
}

// PrepMemory allocates the scratch memory for the parameterized train and
// evaluates every core at the data. No core is active afterwards.
func (a *ALS) PrepMemory(ftp *ftparam.FTparam) error {
	if a.data == nil {
		return common.NoData
	}
	if ftp.Dim() != a.data.Dim() {
		return common.InputDimension
	}
	n := a.data.Len()
	maxCore := 0
	for k := 0; k < ftp.Dim(); k++ {
		maxCore = max(maxCore, ftp.NumParamsPerCore(k))
	}
	f := ftp.FT()
	a.ftp = ftp
	a.ws = ft.NewWorkspace(f, n)
	a.core = -1
	a.reset()
	a.vals = make([]float64, n)
	a.dLoss = make([]float64, n)
	a.grads = make([]float64, n*maxCore)
	return nil
}

// FTparam returns the parameterized train
func (a *ALS) FTparam() *ftparam.FTparam {
	return a.ftp
}

func (a *ALS) mustPrep() {
	if a.ftp == nil {
		panic("regress: PrepMemory not called")
	}
}

func (a *ALS) mustCore() {
	a.mustPrep()
	if a.core < 0 {
		panic("regress: no active core")
	}
}

// reset evaluates every core at the data and invalidates the running totals
func (a *ALS) reset() {
	f := a.ftp.FT()
	a.ws.EvalCores(f, a.data.x, false)
	a.prefixValid = 0
	a.suffixValid = f.Dim() - 1
	a.version = f.Version()
}

// SetCore makes core k active and brings the running totals on both of its
// sides up to date. If the train was changed since the last evaluation, for
// example through the FTparam, every core is evaluated again first.
func (a *ALS) SetCore(k int) {
	a.mustPrep()
	if k < 0 || k >= a.ftp.Dim() {
		panic("regress: core out of range")
	}
	f := a.ftp.FT()
	if f.Version() != a.version {
		a.reset()
	}
	for ; a.prefixValid < k; a.prefixValid++ {
		a.ws.UpdatePrefix(f, a.prefixValid)
	}
	for ; a.suffixValid > k; a.suffixValid-- {
		a.ws.UpdateSuffix(f, a.suffixValid)
	}
	a.core = k
}

// Core returns the active core, or -1 if there is none
func (a *ALS) Core() int {
	return a.core
}

// NumParams returns the number of parameters of the active core
func (a *ALS) NumParams() int {
	a.mustCore()
	return a.ftp.NumParamsPerCore(a.core)
}

// setCoreParams changes the parameters of the active core, which invalidates
// the totals that include it
func (a *ALS) setCoreParams(params []float64, withGrad bool) {
	k := a.core
	a.SetCore(k)
	a.ftp.UpdateCoreParams(k, params)
	f := a.ftp.FT()
	a.ws.EvalCore(f, k, a.data.x, withGrad)
	a.prefixValid = min(a.prefixValid, k)
	a.suffixValid = max(a.suffixValid, k)
	a.version = f.Version()
}

// Func returns the objective with the parameters of the active core set to
// params
func (a *ALS) Func(params []float64) float64 {
	return a.eval(params, nil)
}

// FuncGrad returns the objective with the parameters of the active core set
// to params and stores its gradient with respect to them into grad
func (a *ALS) FuncGrad(params, grad []float64) float64 {
	if len(grad) != len(params) {
		panic("regress: gradient length mismatch")
	}
	return a.eval(params, grad)
}

func (a *ALS) eval(params, grad []float64) float64 {
	a.mustCore()
	withGrad := grad != nil
	a.setCoreParams(params, withGrad)
	f := a.ftp.FT()
	losser := losserOrDefault(a.Losser)
	r := regularizerOrDefault(a.Regularizer)

	if !withGrad {
		ft.CoreParamGradEval(f, a.core, a.ws, a.vals, nil)
		return losser.Loss(a.vals, a.data.y) + r.Loss(f.RawParams())
	}
	np := len(params)
	grads := a.grads[:a.data.Len()*np]
	ft.CoreParamGradEval(f, a.core, a.ws, a.vals, grads)
	total := losser.LossDeriv(a.vals, a.data.y, a.dLoss)
	mulGradT(grad, grads, a.dLoss)
	r.LossAddDeriv(params, grad)
	return total + r.Loss(f.RawParams())
}

// Sweep optimizes the cores in the given order. optimizers[k] minimizes core
// k; a nil optimizer solves the core in closed form, which requires
// CanSolveCore. The objective after the last core update is returned.
func (a *ALS) Sweep(order []int, optimizers []*opt.Optimizer) (float64, error) {
	a.mustPrep()
	if len(optimizers) != a.ftp.Dim() {
		panic("regress: one optimizer per core required")
	}
	var val float64
	for _, k := range order {
		a.SetCore(k)
		o := optimizers[k]
		if o == nil {
			v, err := a.SolveCore()
			if err != nil {
				return v, fmt.Errorf("regress: core %d: %w", k, err)
			}
			val = v
			a.logf("regress: core %d solved, objective %3.8g", k, val)
			continue
		}
		if o.Dim() != a.NumParams() {
			panic("regress: optimizer dimension mismatch")
		}
		o.SetObjective(a)
		x := a.ftp.FT().CoreParams(k, nil)
		_, status := o.Minimize(x)
		// The last evaluation may have been at a rejected trial point
		val = a.Func(x)
		a.logf("regress: core %d %v after %d iterations, objective %3.8g", k, status, o.NumIters(), val)
	}
	return val, nil
}

// SweepLR optimizes every core from left to right
func (a *ALS) SweepLR(optimizers []*opt.Optimizer) (float64, error) {
	a.mustPrep()
	order := make([]int, a.ftp.Dim())
	for i := range order {
		order[i] = i
	}
	return a.Sweep(order, optimizers)
}

// SweepRL optimizes every core from right to left
func (a *ALS) SweepRL(optimizers []*opt.Optimizer) (float64, error) {
	a.mustPrep()
	d := a.ftp.Dim()
	order := make([]int, d)
	for i := range order {
		order[i] = d - 1 - i
	}
	return a.Sweep(order, optimizers)
}

func (a *ALS) logf(format string, args ...interface{}) {
	if a.Logger != nil {
		a.Logger.Printf(format, args...)
	}
}
