package ft

import (
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"
)

// RunningCoreTotal holds, for every sample of a batch, a partial product of
// the train's cores. A prefix total is a row vector v = C_0 ... C_{k-1} and
// grows by right multiplication, a suffix total is a column vector
// s = C_{k+1} ... C_{d-1} and grows by left multiplication. A restarted total
// is the length one identity.
type RunningCoreTotal struct {
	n       int
	size    int
	maxSize int
	vals    []float64 // sample i is vals[i*maxSize : i*maxSize+size]
	tmp     []float64
}

// NewRunningCoreTotal allocates a total for n samples whose vectors never
// exceed maxRank. The total starts restarted.
func NewRunningCoreTotal(n, maxRank int) *RunningCoreTotal {
	if n < 1 || maxRank < 1 {
		panic("ft: bad running total size")
	}
	r := &RunningCoreTotal{
		n:       n,
		maxSize: maxRank,
		vals:    make([]float64, n*maxRank),
		tmp:     make([]float64, maxRank),
	}
	r.Restart()
	return r
}

// NewRunningCoreTotals allocates one total per dimension of f
func NewRunningCoreTotals(f *FunctionTrain, n int) []*RunningCoreTotal {
	r := make([]*RunningCoreTotal, f.Dim())
	maxRank := f.MaxRank()
	for i := range r {
		r[i] = NewRunningCoreTotal(n, maxRank)
	}
	return r
}

// Restart resets every sample to the length one identity
func (r *RunningCoreTotal) Restart() {
	r.size = 1
	for i := 0; i < r.n; i++ {
		r.vals[i*r.maxSize] = 1
	}
}

// RestartAll restarts every total
func RestartAll(rs []*RunningCoreTotal) {
	for _, r := range rs {
		r.Restart()
	}
}

// Len returns the number of samples
func (r *RunningCoreTotal) Len() int {
	return r.n
}

// Size returns the current vector length of each sample
func (r *RunningCoreTotal) Size() int {
	return r.size
}

// Vec returns the vector of sample i. The slice aliases the total.
func (r *RunningCoreTotal) Vec(i int) []float64 {
	lo := i * r.maxSize
	return r.vals[lo : lo+r.size]
}

// CopyFrom sets r to the same state as o
func (r *RunningCoreTotal) CopyFrom(o *RunningCoreTotal) {
	if r.n != o.n || r.maxSize < o.size {
		panic("ft: running total size mismatch")
	}
	r.size = o.size
	for i := 0; i < r.n; i++ {
		copy(r.Vec(i), o.Vec(i))
	}
}

// coreMatrix views the column-major rIn×rOut core values as a row-major
// rOut×rIn matrix, which is the transpose of the core.
func coreMatrix(vals []float64, rIn, rOut int) blas64.General {
	return blas64.General{
		Rows:   rOut,
		Cols:   rIn,
		Stride: rIn,
		Data:   vals[:rIn*rOut],
	}
}

// MulRight replaces the vector of each sample i by v·C_i, where C_i is the
// column-major rIn×rOut matrix stored at evals[i*rIn*rOut:].
func (r *RunningCoreTotal) MulRight(evals []float64, rIn, rOut int) {
	r.mul(evals, rIn, rOut, blas.NoTrans, rIn, rOut)
}

// MulLeft replaces the vector of each sample i by C_i·s.
func (r *RunningCoreTotal) MulLeft(evals []float64, rIn, rOut int) {
	r.mul(evals, rIn, rOut, blas.Trans, rOut, rIn)
}

func (r *RunningCoreTotal) mul(evals []float64, rIn, rOut int, t blas.Transpose, from, to int) {
	if r.size != from {
		panic("ft: running total rank mismatch")
	}
	if to > r.maxSize {
		panic("ft: running total rank too large")
	}
	ne := rIn * rOut
	if len(evals) < r.n*ne {
		panic("ft: core evaluation slice too short")
	}
	tmp := blas64.Vector{N: to, Data: r.tmp[:to], Inc: 1}
	for i := 0; i < r.n; i++ {
		lo := i * r.maxSize
		x := blas64.Vector{N: from, Data: r.vals[lo : lo+from], Inc: 1}
		blas64.Gemv(t, 1, coreMatrix(evals[i*ne:], rIn, rOut), x, 0, tmp)
		copy(r.vals[lo:lo+to], tmp.Data)
	}
	r.size = to
}
