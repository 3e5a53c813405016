package kernel

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fybazs/Compressed-Continuous-Computation/basis"
	"github.com/fybazs/Compressed-Continuous-Computation/common/regtest"
)

var _ basis.Basis = SqExp{}

func TestSqExpEval(t *testing.T) {
	s, err := NewSqExp(2)
	require.NoError(t, err)
	require.Equal(t, 7, s.NumParams())
	require.False(t, s.Linear())

	params := []float64{0.5, 2, 0, 0, -1, 1, math.Log(2)}
	x := 0.5
	want := 0.5 + 2*math.Exp(-0.5*0.25) - math.Exp(-0.5*0.25/4)
	require.InDelta(t, want, s.Eval(params, x), 1e-14)
}

func TestSqExpDeriv(t *testing.T) {
	s, err := NewSqExp(3)
	require.NoError(t, err)
	params := []float64{0.1, 1.2, -0.5, -0.3, -0.7, 0.2, 0.1, 0.4, 0.9, -0.2}
	regtest.TestFamilyDeriv(t, s, params, []float64{-1, -0.3, 0.05, 0.6, 1.4}, "sqexp")
}

func TestSqExpFitAffine(t *testing.T) {
	s, _ := NewSqExp(2)
	params := make([]float64, s.NumParams())
	require.NoError(t, s.FitAffine(0, 1.5, params))
	require.InDelta(t, 1.5, s.Eval(params, 0.3), 1e-15)
	require.ErrorIs(t, s.FitAffine(1, 0, params), basis.ErrNotRepresentable)
}
