package predict

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

type sumPredictor struct{}

func (sumPredictor) NewPredictor() Predictor { return sumPredictor{} }

func (sumPredictor) Predict(x []float64) float64 { return floats.Sum(x) }

func TestBatchPredict(t *testing.T) {
	n := 137
	inputs := mat.NewDense(n, 3, nil)
	want := make([]float64, n)
	for i := 0; i < n; i++ {
		for j := 0; j < 3; j++ {
			inputs.Set(i, j, float64(i*j)+0.5)
		}
		want[i] = floats.Sum(inputs.RawRowView(i))
	}

	got, err := BatchPredict(sumPredictor{}, inputs, nil, 3, 10)
	require.NoError(t, err)
	require.Equal(t, want, got)

	// A transposed view is not a RawRowViewer and takes the copying path
	got2 := make([]float64, n)
	_, err = BatchPredict(sumPredictor{}, mat.DenseCopyOf(inputs.T()).T(), got2, 3, 7)
	require.NoError(t, err)
	require.Equal(t, want, got2)

	_, err = BatchPredict(sumPredictor{}, inputs, nil, 4, 10)
	require.ErrorIs(t, err, ErrInputDim)
	_, err = BatchPredict(sumPredictor{}, inputs, make([]float64, n+1), 3, 10)
	require.ErrorIs(t, err, ErrRows)
}
