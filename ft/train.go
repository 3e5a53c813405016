// Package ft implements the function train (tensor train) representation of
// a multivariate function, together with the batched value and parameter
// gradient evaluation used by the regression drivers.
//
// A function train of dimension d is a product of cores
//  f(x) = C_0(x_0) C_1(x_1) ... C_{d-1}(x_{d-1})
// where C_k is an r_k × r_{k+1} matrix of univariate functions and
// r_0 = r_d = 1. All parameters of the train live in one contiguous buffer in
// core-major order, column-major within a core, entry-major within an entry.
package ft

import (
	"errors"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/fybazs/Compressed-Continuous-Computation/basis"
	"github.com/fybazs/Compressed-Continuous-Computation/common"
	"github.com/fybazs/Compressed-Continuous-Computation/predict"
)

const (
	minGrain = 50
	maxGrain = 500
)

// FunctionTrain is a scalar valued function train
type FunctionTrain struct {
	opts    *ApproxOpts
	ranks   []int
	cores   []*Core
	offsets []int // offsets[k] is the start of core k in params, len dim+1
	params  []float64
	version uint64
}

// CheckRanks returns ErrApproxOpts if the ranks do not fit the options and
// ErrRank if they are not valid train ranks
func CheckRanks(opts *ApproxOpts, ranks []int) error {
	if err := opts.Validate(); err != nil {
		return err
	}
	if len(ranks) != opts.Dim()+1 {
		return ErrApproxOpts
	}
	if ranks[0] != 1 || ranks[len(ranks)-1] != 1 {
		return ErrRank
	}
	for _, r := range ranks {
		if r < 1 {
			return ErrRank
		}
	}
	return nil
}

// New creates a function train with all parameters zero
func New(opts *ApproxOpts, ranks []int) (*FunctionTrain, error) {
	if err := CheckRanks(opts, ranks); err != nil {
		return nil, err
	}
	dim := opts.Dim()
	f := &FunctionTrain{
		opts:    opts,
		ranks:   make([]int, len(ranks)),
		cores:   make([]*Core, dim),
		offsets: make([]int, dim+1),
	}
	copy(f.ranks, ranks)
	for k := 0; k < dim; k++ {
		f.offsets[k+1] = f.offsets[k] + ranks[k]*ranks[k+1]*opts.NumParams(k)
	}
	f.params = make([]float64, f.offsets[dim])
	for k := 0; k < dim; k++ {
		f.cores[k] = &Core{
			dim:    k,
			rIn:    ranks[k],
			rOut:   ranks[k+1],
			basis:  opts.Basis(k),
			np:     opts.NumParams(k),
			params: f.params[f.offsets[k]:f.offsets[k+1]:f.offsets[k+1]],
		}
	}
	return f, nil
}

// Constant returns a rank one train equal to val everywhere. Every basis must
// implement basis.AffineFitter.
func Constant(opts *ApproxOpts, val float64) (*FunctionTrain, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	ranks := make([]int, opts.Dim()+1)
	for i := range ranks {
		ranks[i] = 1
	}
	f, err := New(opts, ranks)
	if err != nil {
		return nil, err
	}
	for k, c := range f.cores {
		v := 1.0
		if k == 0 {
			v = val
		}
		if err := fitAffine(c, 0, 0, 0, v); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// Affine returns the train of slope·x + offset. The train has rank 2
// between every pair of cores, with core 0 equal to [a_0 x_0 + b, 1],
// interior cores equal to [[1, 0], [a_k x_k, 1]] and the last core equal to
// [1; a_{d-1} x_{d-1}]. A one dimensional affine function is a rank one train.
func Affine(opts *ApproxOpts, slope []float64, offset float64) (*FunctionTrain, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	dim := opts.Dim()
	if len(slope) != dim {
		return nil, errors.New("ft: slope length mismatch")
	}
	ranks := make([]int, dim+1)
	for i := range ranks {
		ranks[i] = 2
	}
	ranks[0] = 1
	ranks[dim] = 1
	f, err := New(opts, ranks)
	if err != nil {
		return nil, err
	}
	if dim == 1 {
		return f, fitAffine(f.cores[0], 0, 0, slope[0], offset)
	}
	for k, c := range f.cores {
		var err error
		switch {
		case k == 0:
			if err = fitAffine(c, 0, 0, slope[0], offset); err == nil {
				err = fitAffine(c, 0, 1, 0, 1)
			}
		case k == dim-1:
			if err = fitAffine(c, 0, 0, 0, 1); err == nil {
				err = fitAffine(c, 1, 0, slope[k], 0)
			}
		default:
			err = fitAffine(c, 0, 0, 0, 1)
			if err == nil {
				err = fitAffine(c, 0, 1, 0, 0)
			}
			if err == nil {
				err = fitAffine(c, 1, 0, slope[k], 0)
			}
			if err == nil {
				err = fitAffine(c, 1, 1, 0, 1)
			}
		}
		if err != nil {
			return nil, err
		}
	}
	return f, nil
}

func fitAffine(c *Core, i, j int, slope, offset float64) error {
	fitter, ok := c.basis.(basis.AffineFitter)
	if !ok {
		return basis.ErrNotRepresentable
	}
	return fitter.FitAffine(slope, offset, c.Entry(i, j))
}

// Dim returns the input dimension of the train
func (f *FunctionTrain) Dim() int {
	return len(f.cores)
}

// InputDim is an alias of Dim
func (f *FunctionTrain) InputDim() int {
	return len(f.cores)
}

// ApproxOpts returns the options the train was built with
func (f *FunctionTrain) ApproxOpts() *ApproxOpts {
	return f.opts
}

// Ranks returns a copy of the ranks, of length Dim()+1
func (f *FunctionTrain) Ranks() []int {
	r := make([]int, len(f.ranks))
	copy(r, f.ranks)
	return r
}

// Rank returns the k^th rank
func (f *FunctionTrain) Rank(k int) int {
	return f.ranks[k]
}

// MaxRank returns the largest rank
func (f *FunctionTrain) MaxRank() int {
	m := 1
	for _, r := range f.ranks {
		if r > m {
			m = r
		}
	}
	return m
}

// Core returns the k^th core
func (f *FunctionTrain) Core(k int) *Core {
	return f.cores[k]
}

// NumParams returns the total number of parameters
func (f *FunctionTrain) NumParams() int {
	return len(f.params)
}

// NumCoreParams returns the number of parameters of core k
func (f *FunctionTrain) NumCoreParams(k int) int {
	return f.offsets[k+1] - f.offsets[k]
}

// CoreOffset returns the index of the first parameter of core k in the
// flat parameter vector
func (f *FunctionTrain) CoreOffset(k int) int {
	return f.offsets[k]
}

// RawParams returns the flat parameter buffer of the train. Writes to the
// returned slice change the train and must be followed by Touch.
func (f *FunctionTrain) RawParams() []float64 {
	return f.params
}

// Version is incremented every time the parameters change, so holders of
// values cached from the train can tell that they are stale.
func (f *FunctionTrain) Version() uint64 {
	return f.version
}

// Touch marks the parameters as changed after writes through RawParams or
// a core entry
func (f *FunctionTrain) Touch() {
	f.version++
}

// Params copies the parameters into p. If p is nil a new slice is allocated.
// Params panics if p is non-nil and of the wrong length.
func (f *FunctionTrain) Params(p []float64) []float64 {
	if p == nil {
		p = make([]float64, len(f.params))
	}
	if len(p) != len(f.params) {
		panic("ft: parameter size mismatch")
	}
	copy(p, f.params)
	return p
}

// SetParams sets all of the parameters of the train
func (f *FunctionTrain) SetParams(p []float64) {
	if len(p) != len(f.params) {
		panic("ft: parameter size mismatch")
	}
	copy(f.params, p)
	f.version++
}

// CoreParams copies the parameters of core k into p
func (f *FunctionTrain) CoreParams(k int, p []float64) []float64 {
	c := f.cores[k]
	if p == nil {
		p = make([]float64, len(c.params))
	}
	if len(p) != len(c.params) {
		panic("ft: core parameter size mismatch")
	}
	copy(p, c.params)
	return p
}

// SetCoreParams sets the parameters of core k
func (f *FunctionTrain) SetCoreParams(k int, p []float64) {
	c := f.cores[k]
	if len(p) != len(c.params) {
		panic("ft: core parameter size mismatch")
	}
	copy(c.params, p)
	f.version++
}

// Randomize sets every parameter to a normal random number with standard
// deviation scale
func (f *FunctionTrain) Randomize(rnd *rand.Rand, scale float64) {
	for i := range f.params {
		f.params[i] = scale * rnd.NormFloat64()
	}
	f.version++
}

// Copy returns a deep copy of the train. The approximation options are shared.
func (f *FunctionTrain) Copy() *FunctionTrain {
	g, err := New(f.opts, f.ranks)
	if err != nil {
		panic(err)
	}
	copy(g.params, f.params)
	return g
}

// Eval returns the value of the train at x. Eval panics if len(x) != Dim().
func (f *FunctionTrain) Eval(x []float64) float64 {
	return f.NewPredictor().(*predictor).eval(x)
}

// Predict returns the value of the train at x
func (f *FunctionTrain) Predict(x []float64) (float64, error) {
	if len(x) != f.Dim() {
		return 0, errors.New("ft: input dimension mismatch")
	}
	return f.Eval(x), nil
}

// PredictBatch evaluates the train at every row of inputs in parallel
func (f *FunctionTrain) PredictBatch(inputs mat.Matrix, outputs []float64) ([]float64, error) {
	nSamples, _ := inputs.Dims()
	return predict.BatchPredict(f, inputs, outputs, f.Dim(), common.GetGrainSize(nSamples, minGrain, maxGrain))
}

// NewPredictor returns a predictor with its own scratch memory
func (f *FunctionTrain) NewPredictor() predict.Predictor {
	maxEntries := 0
	for _, c := range f.cores {
		if c.NumEntries() > maxEntries {
			maxEntries = c.NumEntries()
		}
	}
	r := f.MaxRank()
	return &predictor{
		f:    f,
		v:    make([]float64, r),
		tmp:  make([]float64, r),
		vals: make([]float64, maxEntries),
	}
}

type predictor struct {
	f    *FunctionTrain
	v    []float64
	tmp  []float64
	vals []float64
}

func (p *predictor) Predict(x []float64) float64 {
	return p.eval(x)
}

// eval computes the sequence of row vector times core matrix products
func (p *predictor) eval(x []float64) float64 {
	if len(x) != p.f.Dim() {
		panic("ft: input dimension mismatch")
	}
	v, tmp := p.v, p.tmp
	v[0] = 1
	for k, c := range p.f.cores {
		c.Eval(x[k], p.vals)
		for j := 0; j < c.rOut; j++ {
			var s float64
			col := p.vals[j*c.rIn : (j+1)*c.rIn]
			for i, cv := range col {
				s += v[i] * cv
			}
			tmp[j] = s
		}
		v, tmp = tmp, v
	}
	return v[0]
}
