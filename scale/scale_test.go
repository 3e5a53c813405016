package scale

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/fybazs/Compressed-Continuous-Computation/common"
)

func flatten(data [][]float64) *mat.Dense {
	m := mat.NewDense(len(data), len(data[0]), nil)
	for i := range data {
		if len(data[i]) != len(data[0]) {
			panic("bad flatten")
		}
		m.SetRow(i, data[i])
	}
	return m
}

func testScaling(t *testing.T, u Scaler, data, scaledData *mat.Dense) {
	orig := mat.DenseCopyOf(data)

	require.NoError(t, ScaleData(u, data))
	require.True(t, mat.EqualApprox(data, scaledData, 1e-14), "scaled: want %v, got %v", mat.Formatted(scaledData), mat.Formatted(data))

	require.NoError(t, UnscaleData(u, data))
	require.True(t, mat.EqualApprox(data, orig, 1e-14), "unscaled: want %v, got %v", mat.Formatted(orig), mat.Formatted(data))

	require.NoError(t, common.InterfaceTestMarshalAndUnmarshal(u))
}

func TestScaling(t *testing.T) {
	s := math.Sqrt(26.0 / 3)
	for _, test := range []struct {
		name   string
		scaler Scaler
		data   [][]float64
		scaled [][]float64
	}{
		{
			name:   "linear unit",
			scaler: &Linear{},
			data:   [][]float64{{1, 2}, {3, 6}, {-1, 4}},
			scaled: [][]float64{{0.5, 0}, {1, 1}, {0, 0.5}},
		},
		{
			name:   "linear bounds",
			scaler: &Linear{Lb: -1, Ub: 1},
			data:   [][]float64{{1, 2}, {3, 6}, {-1, 4}},
			scaled: [][]float64{{0, -1}, {1, 1}, {-1, 0}},
		},
		{
			name:   "normal onedim",
			scaler: &Normal{},
			data:   [][]float64{{1}, {2}, {-3}, {-4}},
			scaled: [][]float64{{2 / s}, {3 / s}, {-2 / s}, {-3 / s}},
		},
		{
			name:   "normal twodim",
			scaler: &Normal{},
			data:   [][]float64{{1, 4}, {2, 9}, {-3, 12}, {-4, 15}},
			scaled: [][]float64{
				{2 / s, -6 / math.Sqrt(22)},
				{3 / s, -1 / math.Sqrt(22)},
				{-2 / s, 2 / math.Sqrt(22)},
				{-3 / s, 5 / math.Sqrt(22)},
			},
		},
		{
			name:   "none",
			scaler: &None{},
			data:   [][]float64{{1, 4}, {2, 9}},
			scaled: [][]float64{{1, 4}, {2, 9}},
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			data := flatten(test.data)
			require.False(t, test.scaler.IsScaled())
			require.NoError(t, test.scaler.SetScale(data))
			require.True(t, test.scaler.IsScaled())
			require.Equal(t, len(test.data[0]), test.scaler.Dimensions())
			testScaling(t, test.scaler, data, flatten(test.scaled))
		})
	}
}

func TestUniformDimension(t *testing.T) {
	data := [][]float64{{1, 5}, {2, 5}, {3, 5}}

	l := &Linear{}
	err := l.SetScale(flatten(data))
	unif, ok := err.(*UniformDimension)
	require.True(t, ok, "want UniformDimension, got %v", err)
	require.Equal(t, []int{1}, unif.Dims)
	require.True(t, l.IsScaled())
	testScaling(t, l, flatten(data), flatten([][]float64{{0, 0.5}, {0.5, 0.5}, {1, 0.5}}))

	n := &Normal{}
	err = n.SetScale(flatten(data))
	unif, ok = err.(*UniformDimension)
	require.True(t, ok, "want UniformDimension, got %v", err)
	require.Equal(t, []int{1}, unif.Dims)
	require.Equal(t, 1.0, n.Sigma[1])
	testScaling(t, n, flatten(data), flatten([][]float64{{-1, 0}, {0, 0}, {1, 0}}))
}

func TestBadInputs(t *testing.T) {
	for _, s := range []Scaler{&None{}, &Linear{}, &Normal{}} {
		require.Equal(t, ErrTooFew, s.SetScale(flatten([][]float64{{1, 2}})))
		require.NoError(t, s.SetScale(flatten([][]float64{{1, 2}, {3, 5}})))
		require.Equal(t, UnequalLength{}, s.Scale([]float64{1}))
		require.Equal(t, UnequalLength{}, s.Unscale([]float64{1, 2, 3}))

		err := ScaleData(s, flatten([][]float64{{1, 2, 3}, {4, 5, 6}}))
		list, ok := err.(ErrorList)
		require.True(t, ok, "want ErrorList, got %v", err)
		require.Len(t, list, 2)
	}
}

func TestScaleTrainingData(t *testing.T) {
	inputs := flatten([][]float64{{1, 2}, {3, 6}, {-1, 4}})
	labels := []float64{2, 4, 9}
	in := &Linear{Lb: -1, Ub: 1}
	out := &Normal{}
	require.NoError(t, ScaleTrainingData(inputs, labels, in, out))
	require.True(t, mat.EqualApprox(inputs, flatten([][]float64{{0, -1}, {1, 1}, {-1, 0}}), 1e-14))
	require.InDeltaSlice(t, []float64{-3 / math.Sqrt(13), -1 / math.Sqrt(13), 4 / math.Sqrt(13)}, labels, 1e-14)

	require.NoError(t, UnscaleLabels(out, labels))
	require.InDeltaSlice(t, []float64{2, 4, 9}, labels, 1e-14)

	// Scalers that are already set are not reset
	more := flatten([][]float64{{5, 2}, {3, 2}})
	require.NoError(t, ScaleTrainingData(more, []float64{5, 5}, in, out))
	require.Equal(t, 3.0, in.Max[0])
}
