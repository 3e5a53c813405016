package ft

import "github.com/fybazs/Compressed-Continuous-Computation/common"

// Workspace is the scratch memory for evaluating one train structure over a
// batch of a fixed number of samples. It caches, for every sample, the values
// and local parameter gradients of every core, and the prefix and suffix
// running totals of every core. A Workspace is owned by one caller at a time.
type Workspace struct {
	n       int
	ranks   []int
	nparams []int

	// Prefix[k] is C_0 ... C_{k-1}, Suffix[k] is C_{k+1} ... C_{d-1}
	Prefix []*RunningCoreTotal
	Suffix []*RunningCoreTotal

	evals [][]float64 // core k, sample i at [i*rIn*rOut:]
	grads [][]float64 // core k, sample i at [i*NumCoreParams(k):]
}

// NewWorkspace allocates the scratch memory for n samples of trains with the
// structure of f
func NewWorkspace(f *FunctionTrain, n int) *Workspace {
	dim := f.Dim()
	w := &Workspace{
		n:       n,
		ranks:   f.Ranks(),
		nparams: make([]int, dim),
		Prefix:  NewRunningCoreTotals(f, n),
		Suffix:  NewRunningCoreTotals(f, n),
		evals:   make([][]float64, dim),
		grads:   make([][]float64, dim),
	}
	for k, c := range f.cores {
		w.nparams[k] = c.NumParams()
		w.evals[k] = make([]float64, n*c.NumEntries())
		w.grads[k] = make([]float64, n*c.NumParams())
	}
	return w
}

// Len returns the number of samples
func (w *Workspace) Len() int {
	return w.n
}

// Fits returns true if f has the structure the workspace was built for
func (w *Workspace) Fits(f *FunctionTrain) bool {
	if len(f.ranks) != len(w.ranks) {
		return false
	}
	for i, r := range f.ranks {
		if w.ranks[i] != r {
			return false
		}
	}
	for k, c := range f.cores {
		if c.NumParams() != w.nparams[k] {
			return false
		}
	}
	return true
}

// Restart restarts every prefix and suffix total
func (w *Workspace) Restart() {
	RestartAll(w.Prefix)
	RestartAll(w.Suffix)
}

// CoreValues returns the cached values of core k for all samples
func (w *Workspace) CoreValues(k int) []float64 {
	return w.evals[k]
}

// CoreGrads returns the cached local parameter gradients of core k
func (w *Workspace) CoreGrads(k int) []float64 {
	return w.grads[k]
}

func (w *Workspace) check(f *FunctionTrain, x common.RowMatrix) {
	if !w.Fits(f) {
		panic("ft: workspace does not match train")
	}
	if x == nil {
		return
	}
	r, c := x.Dims()
	if r != w.n {
		panic("ft: workspace sample count mismatch")
	}
	if c != f.Dim() {
		panic("ft: input dimension mismatch")
	}
}

// EvalCore evaluates core k at every sample, and the local parameter
// gradients if withGrad is true
func (w *Workspace) EvalCore(f *FunctionTrain, k int, x common.RowMatrix, withGrad bool) {
	w.check(f, x)
	c := f.cores[k]
	ne := c.NumEntries()
	np := c.NumParams()
	for i := 0; i < w.n; i++ {
		xk := x.RawRowView(i)[k]
		if withGrad {
			c.ParamGrad(xk, w.evals[k][i*ne:(i+1)*ne], w.grads[k][i*np:(i+1)*np])
		} else {
			c.Eval(xk, w.evals[k][i*ne:(i+1)*ne])
		}
	}
}

// EvalCores evaluates every core
func (w *Workspace) EvalCores(f *FunctionTrain, x common.RowMatrix, withGrad bool) {
	for k := range f.cores {
		w.EvalCore(f, k, x, withGrad)
	}
}

// ForwardTotals computes every prefix from the cached core values
func (w *Workspace) ForwardTotals(f *FunctionTrain) {
	w.Prefix[0].Restart()
	for k := 0; k < f.Dim()-1; k++ {
		w.UpdatePrefix(f, k)
	}
}

// BackwardTotals computes every suffix from the cached core values
func (w *Workspace) BackwardTotals(f *FunctionTrain) {
	d := f.Dim()
	w.Suffix[d-1].Restart()
	for k := d - 1; k > 0; k-- {
		w.UpdateSuffix(f, k)
	}
}

// UpdatePrefix sets Prefix[k+1] = Prefix[k]·C_k using the cached values of core k
func (w *Workspace) UpdatePrefix(f *FunctionTrain, k int) {
	c := f.cores[k]
	w.Prefix[k+1].CopyFrom(w.Prefix[k])
	w.Prefix[k+1].MulRight(w.evals[k], c.rIn, c.rOut)
}

// UpdateSuffix sets Suffix[k-1] = C_k·Suffix[k] using the cached values of core k
func (w *Workspace) UpdateSuffix(f *FunctionTrain, k int) {
	c := f.cores[k]
	w.Suffix[k-1].CopyFrom(w.Suffix[k])
	w.Suffix[k-1].MulLeft(w.evals[k], c.rIn, c.rOut)
}

// Eval stores the value of f at every row of x into vals
func Eval(f *FunctionTrain, x common.RowMatrix, w *Workspace, vals []float64) {
	ParamGradEval(f, x, w, vals, nil)
}

// ParamGradEval stores the value of f at every row of x into vals and, if
// grad is not nil, the gradient with respect to every parameter into grad.
// grad is a row-major len(vals)×NumParams() matrix, row i holding the
// gradient at sample i. The workspace is restarted on entry and ParamGradEval
// does not allocate.
//
// The derivative with respect to parameter θ of entry (a, b) of core k is
//  Prefix[k][a] · ∂C_k[a,b]/∂θ · Suffix[k][b]
// so every parameter reuses the same cached totals.
func ParamGradEval(f *FunctionTrain, x common.RowMatrix, w *Workspace, vals, grad []float64) {
	w.check(f, x)
	if len(vals) != w.n {
		panic("ft: value slice length mismatch")
	}
	nParams := f.NumParams()
	if grad != nil && len(grad) != w.n*nParams {
		panic("ft: gradient slice length mismatch")
	}
	w.Restart()
	w.EvalCores(f, x, grad != nil)
	w.ForwardTotals(f)

	d := f.Dim()
	last := f.cores[d-1]
	for i := 0; i < w.n; i++ {
		v := w.Prefix[d-1].Vec(i)
		cv := w.evals[d-1][i*last.rIn : (i+1)*last.rIn]
		var s float64
		for a, pa := range v {
			s += pa * cv[a]
		}
		vals[i] = s
	}
	if grad == nil {
		return
	}
	w.BackwardTotals(f)
	for k := range f.cores {
		off := f.offsets[k]
		for i := 0; i < w.n; i++ {
			w.coreGrad(f, k, i, grad[i*nParams+off:i*nParams+off+f.NumCoreParams(k)])
		}
	}
}

// CoreParamGradEval stores the value of f at every sample into vals and, if
// grad is not nil, the gradient with respect to the parameters of core k
// into grad, a row-major len(vals)×NumCoreParams(k) matrix. It uses the
// current Prefix[k] and Suffix[k] and the cached values of core k, which must
// have been computed by EvalCore with withGrad set when grad is not nil.
func CoreParamGradEval(f *FunctionTrain, k int, w *Workspace, vals, grad []float64) {
	w.check(f, nil)
	if len(vals) != w.n {
		panic("ft: value slice length mismatch")
	}
	np := f.NumCoreParams(k)
	if grad != nil && len(grad) != w.n*np {
		panic("ft: gradient slice length mismatch")
	}
	c := f.cores[k]
	if w.Prefix[k].Size() != c.rIn || w.Suffix[k].Size() != c.rOut {
		panic("ft: running totals not set for core")
	}
	ne := c.NumEntries()
	for i := 0; i < w.n; i++ {
		p := w.Prefix[k].Vec(i)
		s := w.Suffix[k].Vec(i)
		cv := w.evals[k][i*ne : (i+1)*ne]
		var sum float64
		for b := 0; b < c.rOut; b++ {
			var col float64
			for a := 0; a < c.rIn; a++ {
				col += p[a] * cv[a+b*c.rIn]
			}
			sum += col * s[b]
		}
		vals[i] = sum
		if grad != nil {
			w.coreGrad(f, k, i, grad[i*np:(i+1)*np])
		}
	}
}

// coreGrad stores the gradient of sample i with respect to core k into g
func (w *Workspace) coreGrad(f *FunctionTrain, k, i int, g []float64) {
	c := f.cores[k]
	np := c.NumParams()
	p := w.Prefix[k].Vec(i)
	s := w.Suffix[k].Vec(i)
	local := w.grads[k][i*np : (i+1)*np]
	for b := 0; b < c.rOut; b++ {
		for a := 0; a < c.rIn; a++ {
			scale := p[a] * s[b]
			e := a + b*c.rIn
			lo, hi := e*c.np, (e+1)*c.np
			for q := lo; q < hi; q++ {
				g[q] = scale * local[q]
			}
		}
	}
}
