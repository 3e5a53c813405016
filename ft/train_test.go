package ft

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/mat"

	"github.com/fybazs/Compressed-Continuous-Computation/basis"
	"github.com/fybazs/Compressed-Continuous-Computation/common/regtest"
	"github.com/fybazs/Compressed-Continuous-Computation/kernel"
	"github.com/fybazs/Compressed-Continuous-Computation/polynomial"
)

func legendreOpts(dim, order int) *ApproxOpts {
	return NewUniformApproxOpts(dim, polynomial.Legendre{Order: order, Lb: -1, Ub: 1})
}

func randomTrain(t *testing.T, rnd *rand.Rand, opts *ApproxOpts, ranks []int) *FunctionTrain {
	f, err := New(opts, ranks)
	require.NoError(t, err)
	f.Randomize(rnd, 1)
	return f
}

func randomInputs(rnd *rand.Rand, n, dim int) *mat.Dense {
	return regtest.RandomMat(n, dim, func() float64 { return rnd.Float64()*2 - 1 })
}

func requireClose(t *testing.T, want, got float64) {
	t.Helper()
	if !scalar.EqualWithinAbsOrRel(want, got, 1e-10, 1e-10) {
		t.Fatalf("want %v, got %v", want, got)
	}
}

// denseEval evaluates the train with explicit matrix products
func denseEval(f *FunctionTrain, x []float64) float64 {
	v := mat.NewDense(1, 1, []float64{1})
	for k, c := range f.cores {
		vals := make([]float64, c.NumEntries())
		c.Eval(x[k], vals)
		m := mat.NewDense(c.rIn, c.rOut, nil)
		for i := 0; i < c.rIn; i++ {
			for j := 0; j < c.rOut; j++ {
				m.Set(i, j, vals[i+j*c.rIn])
			}
		}
		var next mat.Dense
		next.Mul(v, m)
		v = &next
	}
	return v.At(0, 0)
}

func TestNewErrors(t *testing.T) {
	opts := legendreOpts(3, 2)
	for _, test := range []struct {
		name  string
		opts  *ApproxOpts
		ranks []int
		err   error
	}{
		{"TooFewRanks", opts, []int{1, 2, 1}, ErrApproxOpts},
		{"TooManyRanks", opts, []int{1, 2, 2, 2, 1}, ErrApproxOpts},
		{"FirstRank", opts, []int{2, 2, 2, 1}, ErrRank},
		{"LastRank", opts, []int{1, 2, 2, 3}, ErrRank},
		{"ZeroRank", opts, []int{1, 0, 2, 1}, ErrRank},
		{"NilOpts", nil, []int{1, 1}, ErrApproxOpts},
		{"NilBasis", NewApproxOpts(nil), []int{1, 1}, ErrApproxOpts},
	} {
		_, err := New(test.opts, test.ranks)
		if err != test.err {
			t.Errorf("%v: expected %v, found %v", test.name, test.err, err)
		}
	}
}

func TestLayout(t *testing.T) {
	opts := NewApproxOpts(
		polynomial.Legendre{Order: 2, Lb: -1, Ub: 1},
		kernel.SqExp{Bumps: 1},
		polynomial.Legendre{Order: 4, Lb: -1, Ub: 1},
	)
	f, err := New(opts, []int{1, 2, 3, 1})
	require.NoError(t, err)
	require.Equal(t, 1*2*3, f.NumCoreParams(0))
	require.Equal(t, 2*3*4, f.NumCoreParams(1))
	require.Equal(t, 3*1*5, f.NumCoreParams(2))
	require.Equal(t, 6+24+15, f.NumParams())
	require.Equal(t, 6, f.CoreOffset(1))
	require.Equal(t, 30, f.CoreOffset(2))
	require.Equal(t, 3, f.MaxRank())

	// Entry (1, 2) of core 1 is column-major entry 1 + 2*2 = 5
	f.RawParams()[6+5*4] = 7
	require.Equal(t, 7.0, f.Core(1).Entry(1, 2)[0])
	require.Panics(t, func() { f.Core(1).Entry(2, 0) })
}

func TestGetAndSetParameters(t *testing.T) {
	f, err := New(legendreOpts(3, 3), []int{1, 2, 2, 1})
	require.NoError(t, err)
	regtest.TestGetAndSetParameters(t, f, "functiontrain")

	p := f.CoreParams(1, nil)
	for i := range p {
		p[i] = float64(i)
	}
	f.SetCoreParams(1, p)
	require.Equal(t, p, f.RawParams()[f.CoreOffset(1):f.CoreOffset(2)])
	require.Panics(t, func() { f.SetCoreParams(1, p[1:]) })
}

func TestEval(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	for _, test := range []struct {
		opts  *ApproxOpts
		ranks []int
	}{
		{legendreOpts(1, 3), []int{1, 1}},
		{legendreOpts(3, 2), []int{1, 2, 3, 1}},
		{NewApproxOpts(kernel.SqExp{Bumps: 2}, polynomial.Legendre{Order: 1, Lb: -1, Ub: 1}), []int{1, 4, 1}},
	} {
		f := randomTrain(t, rnd, test.opts, test.ranks)
		x := randomInputs(rnd, 20, f.Dim())
		out, err := f.PredictBatch(x, nil)
		require.NoError(t, err)
		vals := make([]float64, 20)
		Eval(f, x, NewWorkspace(f, 20), vals)
		for i := 0; i < 20; i++ {
			want := denseEval(f, x.RawRowView(i))
			got, err := f.Predict(x.RawRowView(i))
			require.NoError(t, err)
			requireClose(t, want, got)
			require.Equal(t, got, out[i])
			requireClose(t, want, vals[i])
		}
		_, err = f.Predict(make([]float64, f.Dim()+1))
		require.Error(t, err)
	}
}

func TestConstant(t *testing.T) {
	rnd := rand.New(rand.NewSource(2))
	le, _ := basis.NewLinElem(4, -1, 1)
	opts := NewApproxOpts(polynomial.Legendre{Order: 3, Lb: -1, Ub: 1}, le, kernel.SqExp{Bumps: 2})
	f, err := Constant(opts, 2.5)
	require.NoError(t, err)
	require.Equal(t, []int{1, 1, 1, 1}, f.Ranks())
	for i := 0; i < 10; i++ {
		x := []float64{rnd.Float64()*2 - 1, rnd.Float64()*2 - 1, rnd.Float64()*2 - 1}
		require.InDelta(t, 2.5, f.Eval(x), 1e-14)
	}
}

func TestAffine(t *testing.T) {
	rnd := rand.New(rand.NewSource(3))
	le, _ := basis.NewLinElem(3, -1, 1)
	for _, opts := range []*ApproxOpts{
		legendreOpts(1, 2),
		legendreOpts(2, 1),
		NewApproxOpts(polynomial.Legendre{Order: 3, Lb: -1, Ub: 1}, le, polynomial.Legendre{Order: 2, Lb: -1, Ub: 1}, le),
	} {
		dim := opts.Dim()
		slope := make([]float64, dim)
		for i := range slope {
			slope[i] = rnd.NormFloat64()
		}
		f, err := Affine(opts, slope, 0.7)
		require.NoError(t, err)
		for i := 0; i < 10; i++ {
			x := make([]float64, dim)
			for j := range x {
				x[j] = rnd.Float64()*2 - 1
			}
			require.InDelta(t, floats.Dot(slope, x)+0.7, f.Eval(x), 1e-13)
		}
	}

	_, err := Affine(NewUniformApproxOpts(2, kernel.SqExp{Bumps: 1}), []float64{1, 0}, 0)
	require.ErrorIs(t, err, basis.ErrNotRepresentable)
	_, err = Affine(legendreOpts(2, 1), []float64{1}, 0)
	require.Error(t, err)
}

func TestCopy(t *testing.T) {
	rnd := rand.New(rand.NewSource(4))
	f := randomTrain(t, rnd, legendreOpts(3, 2), []int{1, 2, 2, 1})
	g := f.Copy()
	x := []float64{0.1, -0.3, 0.8}
	require.Equal(t, f.Eval(x), g.Eval(x))
	g.RawParams()[0] += 1
	require.NotEqual(t, f.RawParams()[0], g.RawParams()[0])
}

func TestJSON(t *testing.T) {
	rnd := rand.New(rand.NewSource(5))
	le, _ := basis.NewLinElem(3, -1, 2)
	opts := NewApproxOpts(polynomial.Legendre{Order: 3, Lb: -1, Ub: 1}, le, kernel.SqExp{Bumps: 2})
	f := randomTrain(t, rnd, opts, []int{1, 3, 2, 1})
	regtest.TestJSON(t, f, &FunctionTrain{})

	g := &FunctionTrain{}
	b, err := f.MarshalJSON()
	require.NoError(t, err)
	require.NoError(t, g.UnmarshalJSON(b))
	x := []float64{0.2, 0.4, -0.6}
	require.Equal(t, f.Eval(x), g.Eval(x))

	require.Error(t, g.UnmarshalJSON([]byte(`{"Ranks":[1,1]}`)))
}
