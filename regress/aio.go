package regress

import (
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"golang.org/x/sync/errgroup"

	"github.com/fybazs/Compressed-Continuous-Computation/common"
	"github.com/fybazs/Compressed-Continuous-Computation/ft"
	"github.com/fybazs/Compressed-Continuous-Computation/ftparam"
	"github.com/fybazs/Compressed-Continuous-Computation/loss"
	"github.com/fybazs/Compressed-Continuous-Computation/regularize"
)

// AIO is the all-at-once regression objective
//  Σ_i loss(f(x_i), y_i) + R(θ)
// over every parameter θ of a function train. Losser defaults to the squared
// distance and Regularizer to no penalty. With Workers > 1 disjoint chunks of
// the samples are evaluated concurrently, each with its own workspace, and
// the results are summed. The settings must not change between PrepMemory
// and the objective calls.
type AIO struct {
	Losser      loss.DerivLosser
	Regularizer regularize.Regularizer
	Workers     int

	data    *Data
	ftp     *ftparam.FTparam
	workers []*aioWorker
}

// aioWorker is the scratch of one chunk of samples
type aioWorker struct {
	x     *mat.Dense
	y     []float64
	ws    *ft.Workspace
	vals  []float64
	dLoss []float64
	grads []float64 // row i is the gradient of the prediction at sample i
	grad  []float64
	loss  float64
}

// NewAIO returns an all-at-once objective on the data
func NewAIO(data *Data) *AIO {
	return &AIO{data: data}
}

// AddData replaces the data. PrepMemory must be called again.
func (a *AIO) AddData(data *Data) {
	a.data = data
	a.ftp = nil
	a.workers = nil
}

// Data returns the data set
func (a *AIO) Data() *Data {
	return a.data
}

// PrepMemory allocates the scratch memory for the parameterized train. The
// objective sets the parameters of ftp.
func (a *AIO) PrepMemory(ftp *ftparam.FTparam) error {
	if a.data == nil {
		return common.NoData
	}
	if ftp.Dim() != a.data.Dim() {
		return common.InputDimension
	}
	nParams := ftp.NumParams()
	chunks := common.Chunks(a.data.Len(), a.Workers)
	a.workers = make([]*aioWorker, len(chunks))
	for i, c := range chunks {
		n := c[1] - c[0]
		x, y := a.data.slice(c[0], c[1])
		a.workers[i] = &aioWorker{
			x:     x,
			y:     y,
			ws:    ft.NewWorkspace(ftp.FT(), n),
			vals:  make([]float64, n),
			dLoss: make([]float64, n),
			grads: make([]float64, n*nParams),
			grad:  make([]float64, nParams),
		}
	}
	a.ftp = ftp
	return nil
}

// FTparam returns the parameterized train
func (a *AIO) FTparam() *ftparam.FTparam {
	return a.ftp
}

// NumParams returns the number of parameters of the problem
func (a *AIO) NumParams() int {
	a.mustPrep()
	return a.ftp.NumParams()
}

func (a *AIO) mustPrep() {
	if a.ftp == nil {
		panic("regress: PrepMemory not called")
	}
}

// Func returns the objective at the parameters
func (a *AIO) Func(params []float64) float64 {
	return a.eval(params, nil)
}

// FuncGrad returns the objective at the parameters and stores its gradient
// into grad
func (a *AIO) FuncGrad(params, grad []float64) float64 {
	if len(grad) != len(params) {
		panic("regress: gradient length mismatch")
	}
	return a.eval(params, grad)
}

func (a *AIO) eval(params, grad []float64) float64 {
	a.mustPrep()
	a.ftp.UpdateParams(params)
	f := a.ftp.FT()
	losser := losserOrDefault(a.Losser)
	withGrad := grad != nil

	if len(a.workers) == 1 {
		a.workers[0].run(f, losser, withGrad)
	} else {
		var g errgroup.Group
		for _, w := range a.workers {
			w := w
			g.Go(func() error {
				w.run(f, losser, withGrad)
				return nil
			})
		}
		g.Wait()
	}

	var total float64
	if withGrad {
		for i := range grad {
			grad[i] = 0
		}
	}
	for _, w := range a.workers {
		total += w.loss
		if withGrad {
			floats.Add(grad, w.grad)
		}
	}
	r := regularizerOrDefault(a.Regularizer)
	if withGrad {
		return total + r.LossAddDeriv(params, grad)
	}
	return total + r.Loss(params)
}

// run evaluates the loss of the chunk and, if withGrad, its gradient
//  Σ_i ∂loss/∂f_i ∇f_i
func (w *aioWorker) run(f *ft.FunctionTrain, losser loss.DerivLosser, withGrad bool) {
	if !withGrad {
		ft.Eval(f, w.x, w.ws, w.vals)
		w.loss = losser.Loss(w.vals, w.y)
		return
	}
	ft.ParamGradEval(f, w.x, w.ws, w.vals, w.grads)
	w.loss = losser.LossDeriv(w.vals, w.y, w.dLoss)
	mulGradT(w.grad, w.grads, w.dLoss)
}

// mulGradT stores gradsᵀ·d into dst, where grads is a row-major
// len(d)×len(dst) matrix
func mulGradT(dst, grads, d []float64) {
	n, p := len(d), len(dst)
	blas64.Gemv(blas.Trans, 1,
		blas64.General{Rows: n, Cols: p, Stride: p, Data: grads[:n*p]},
		blas64.Vector{N: n, Data: d, Inc: 1},
		0,
		blas64.Vector{N: p, Data: dst, Inc: 1},
	)
}
