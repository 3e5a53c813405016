// Package ftparam maps the flat parameter vector seen by an optimizer onto the
// cores of a function train.
//
// An FTparam and its function train share one parameter buffer, so a flat
// update is visible to every core before the next evaluation. The layout is
// core-major, column-major within a core, and entry-major within an entry.
package ftparam

import (
	"errors"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/fybazs/Compressed-Continuous-Computation/common"
	"github.com/fybazs/Compressed-Continuous-Computation/ft"
)

// Structure classifies how the train depends on its parameters
type Structure int

const (
	// NonlinearST means at least one dimension is nonlinear in its parameters
	NonlinearST Structure = iota
	// LinearST means every univariate function is linear in its parameters,
	// so a single core least-squares problem has a closed form solution
	LinearST
)

func (s Structure) String() string {
	if s == LinearST {
		return "linear"
	}
	return "nonlinear"
}

// FTparam is a parameterized function train
type FTparam struct {
	opts  *ft.ApproxOpts
	ranks []int
	f     *ft.FunctionTrain

	nparamsPerCore []int
	nparamsPerUni  []int
	maxParamUni    int
}

// New creates a parameterized train with the given ranks. If params is nil
// the parameters are zero, otherwise they are copied from params, which must
// have length equal to the number of parameters.
func New(opts *ft.ApproxOpts, ranks []int, params []float64) (*FTparam, error) {
	f, err := ft.New(opts, ranks)
	if err != nil {
		return nil, err
	}
	p := &FTparam{
		opts:           opts,
		ranks:          f.Ranks(),
		f:              f,
		nparamsPerCore: make([]int, f.Dim()),
	}
	for k := 0; k < f.Dim(); k++ {
		// ranks[k]*ranks[k+1]*numParams(k)
		p.nparamsPerCore[k] = f.NumCoreParams(k)
		np := opts.NumParams(k)
		for e := 0; e < ranks[k]*ranks[k+1]; e++ {
			p.nparamsPerUni = append(p.nparamsPerUni, np)
		}
		if np > p.maxParamUni {
			p.maxParamUni = np
		}
	}
	if params != nil {
		p.UpdateParams(params)
	}
	return p, nil
}

// Rebuild returns a new parameterization with a different structure. The
// receiver is not modified.
func (p *FTparam) Rebuild(opts *ft.ApproxOpts, ranks []int, params []float64) (*FTparam, error) {
	return New(opts, ranks, params)
}

// FT returns the underlying function train. It shares its parameters with p.
func (p *FTparam) FT() *ft.FunctionTrain {
	return p.f
}

// ApproxOpts returns the approximation options
func (p *FTparam) ApproxOpts() *ft.ApproxOpts {
	return p.opts
}

// Dim returns the dimension of the train
func (p *FTparam) Dim() int {
	return len(p.nparamsPerCore)
}

// Ranks returns a copy of the ranks
func (p *FTparam) Ranks() []int {
	r := make([]int, len(p.ranks))
	copy(r, p.ranks)
	return r
}

// NumParams returns the total number of parameters
func (p *FTparam) NumParams() int {
	return p.f.NumParams()
}

// NumParamsPerCore returns the number of parameters of core k
func (p *FTparam) NumParamsPerCore(k int) int {
	return p.nparamsPerCore[k]
}

// NumParamsPerUni returns the number of parameters of every univariate
// function in flat order
func (p *FTparam) NumParamsPerUni() []int {
	n := make([]int, len(p.nparamsPerUni))
	copy(n, p.nparamsPerUni)
	return n
}

// MaxParamUni returns the largest number of parameters of one univariate function
func (p *FTparam) MaxParamUni() int {
	return p.maxParamUni
}

// CoreOffset returns the index of the first parameter of core k, which is
// the sum of the parameters of the preceding cores
func (p *FTparam) CoreOffset(k int) int {
	return p.f.CoreOffset(k)
}

// Structure returns LinearST if every dimension is linearly parameterized
func (p *FTparam) Structure() Structure {
	if p.opts.AllLinear() {
		return LinearST
	}
	return NonlinearST
}

// Params copies the flat parameters into dst, allocating if dst is nil
func (p *FTparam) Params(dst []float64) []float64 {
	return p.f.Params(dst)
}

// UpdateParams replaces all of the parameters
func (p *FTparam) UpdateParams(params []float64) {
	if len(params) != p.NumParams() {
		panic("ftparam: parameter size mismatch")
	}
	p.f.SetParams(params)
}

// UpdateCoreParams replaces the parameters of one core
func (p *FTparam) UpdateCoreParams(core int, params []float64) {
	if core < 0 || core >= p.Dim() {
		panic("ftparam: core out of range")
	}
	if len(params) != p.nparamsPerCore[core] {
		panic("ftparam: core parameter size mismatch")
	}
	p.f.SetCoreParams(core, params)
}

// Eval returns the value of the train at x
func (p *FTparam) Eval(x []float64) float64 {
	return p.f.Eval(x)
}

// rankThresholds returns a threshold per core. A slice of length dim-1 is
// extended with a trailing 1.
func (p *FTparam) rankThresholds(rankStart []int) []int {
	d := p.Dim()
	switch len(rankStart) {
	case d:
		return rankStart
	case d - 1:
		r := make([]int, d)
		copy(r, rankStart)
		r[d-1] = 1
		return r
	}
	panic("ftparam: rank threshold length mismatch")
}

// outside reports whether entry (row, col) of core k lies outside of the
// thresholds. Core 0 only compares the column. The other cores compare both
// the row and the column and are outside if either is beyond its threshold.
func outside(k, row, col int, rs []int) bool {
	if k == 0 {
		return col >= rs[0]
	}
	return row >= rs[k-1] || col >= rs[k]
}

// inside reports whether entry (row, col) of core k lies inside of the
// thresholds. Core 0 only compares the column. The other cores require both
// the row and the column to be below their thresholds.
func inside(k, row, col int, rs []int) bool {
	if k == 0 {
		return col < rs[0]
	}
	return row < rs[k-1] && col < rs[k]
}

// walk calls fn for every univariate function of the train in flat order
// with its core, row, column and parameter range.
func (p *FTparam) walk(fn func(k, row, col, lo, hi int)) {
	on := 0
	uni := 0
	for k := 0; k < p.Dim(); k++ {
		for col := 0; col < p.ranks[k+1]; col++ {
			for row := 0; row < p.ranks[k]; row++ {
				n := p.nparamsPerUni[uni]
				fn(k, row, col, on, on+n)
				on += n
				uni++
			}
		}
	}
}

func (p *FTparam) countWhere(rankStart []int, sel func(k, row, col int, rs []int) bool) int {
	rs := p.rankThresholds(rankStart)
	var n int
	p.walk(func(k, row, col, lo, hi int) {
		if sel(k, row, col, rs) {
			n += hi - lo
		}
	})
	return n
}

func (p *FTparam) updateWhere(params []float64, rankStart []int, sel func(k, row, col int, rs []int) bool) {
	if len(params) != p.countWhere(rankStart, sel) {
		panic("ftparam: restricted parameter size mismatch")
	}
	rs := p.rankThresholds(rankStart)
	buf := p.f.RawParams()
	on := 0
	p.walk(func(k, row, col, lo, hi int) {
		if sel(k, row, col, rs) {
			on += copy(buf[lo:hi], params[on:])
		}
	})
	p.f.Touch()
}

// NumParamsRestrict returns the number of parameters of the univariate
// functions outside of the rank thresholds
func (p *FTparam) NumParamsRestrict(rankStart []int) int {
	return p.countWhere(rankStart, outside)
}

// NumParamsInsideRestrict returns the number of parameters of the univariate
// functions inside of the rank thresholds
func (p *FTparam) NumParamsInsideRestrict(rankStart []int) int {
	return p.countWhere(rankStart, inside)
}

// UpdateRestrictedRanks sets the parameters of the univariate functions
// outside of the rank thresholds, in flat order, leaving the others unchanged.
// rankStart has one threshold per core, or one per interior rank in which case
// the last core is given a threshold of 1.
func (p *FTparam) UpdateRestrictedRanks(params []float64, rankStart []int) {
	p.updateWhere(params, rankStart, outside)
}

// UpdateInsideRestrictedRanks sets the parameters of the univariate functions
// inside of the rank thresholds, leaving the others unchanged.
func (p *FTparam) UpdateInsideRestrictedRanks(params []float64, rankStart []int) {
	p.updateWhere(params, rankStart, inside)
}

func uniform(rnd *rand.Rand) float64 {
	if rnd == nil {
		return rand.Float64()
	}
	return rnd.Float64()
}

// perturb fills the parameters with uniform random numbers in [-scale, scale]
func (p *FTparam) perturb(scale float64, rnd *rand.Rand) {
	buf := p.f.RawParams()
	for i := range buf {
		buf[i] = scale * (uniform(rnd)*2 - 1)
	}
	p.f.Touch()
}

// embed adds the parameters of the top-left block of every core of target
// to the corresponding entries of p. block is the largest block size.
func (p *FTparam) embed(target, fallback *ft.FunctionTrain, block int) {
	for k := 0; k < p.Dim(); k++ {
		c := p.f.Core(k)
		rIn, rOut := c.Ranks()
		rows := min(block, rIn)
		cols := min(block, rOut)
		tc := target.Core(k)
		tIn, tOut := tc.Ranks()
		if rows == 1 && cols == 1 && fallback != nil && (tIn > 1 || tOut > 1) {
			tc = fallback.Core(k)
			tIn, tOut = tc.Ranks()
		}
		for col := 0; col < cols && col < tOut; col++ {
			for row := 0; row < rows && row < tIn; row++ {
				dst := c.Entry(row, col)
				from := tc.Entry(row, col)
				for l := 0; l < len(dst) && l < len(from); l++ {
					dst[l] += from[l]
				}
			}
		}
	}
	p.f.Touch()
}

// CreateConstant sets the parameters so that the train is approximately the
// constant val. Every parameter is first drawn uniformly from
// [-perturb, perturb] and the top-left entry of every core then has the
// parameters of a rank one constant train added. If rnd is nil the global
// random source is used.
func (p *FTparam) CreateConstant(val, perturb float64, rnd *rand.Rand) error {
	c, err := ft.Constant(p.opts, val)
	if err != nil {
		return err
	}
	p.perturb(perturb, rnd)
	p.embed(c, nil, 1)
	return nil
}

// CreateFromLinearLeastSquares fits an affine function to the data with
// linear least squares, and sets the parameters so that the train is
// approximately that function. The top-left 2×2 block of every core has the
// rank two affine train added on top of a uniform perturbation. Cores whose
// block is 1×1 take the constant train of the fitted intercept instead,
// unless the train is one dimensional.
func (p *FTparam) CreateFromLinearLeastSquares(x mat.Matrix, y []float64, perturb float64, rnd *rand.Rand) error {
	if err := common.VerifyInputs(x, y); err != nil {
		return err
	}
	n, dim := x.Dims()
	if dim != p.Dim() {
		return common.InputDimension
	}
	a := mat.NewDense(n, dim+1, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < dim; j++ {
			a.Set(i, j, x.At(i, j))
		}
		a.Set(i, dim, 1)
	}
	var w mat.VecDense
	if err := w.SolveVec(a, mat.NewVecDense(n, append([]float64(nil), y...))); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return err
		}
	}
	slope := make([]float64, dim)
	for j := range slope {
		slope[j] = w.AtVec(j)
	}
	intercept := w.AtVec(dim)

	lin, err := ft.Affine(p.opts, slope, intercept)
	if err != nil {
		return err
	}
	cons, err := ft.Constant(p.opts, intercept)
	if err != nil {
		return err
	}
	p.perturb(perturb, rnd)
	p.embed(lin, cons, 2)
	return nil
}
