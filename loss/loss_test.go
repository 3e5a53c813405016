package loss

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"

	"github.com/fybazs/Compressed-Continuous-Computation/common"
)

const (
	FDStep = 1e-6
	FDTol  = 1e-7
	TOL    = 1e-14
)

func testDerivLosser(t *testing.T, losser DerivLosser, prediction, truth []float64, trueLoss float64, name string) {
	loss := losser.Loss(prediction, truth)
	if math.Abs(loss-trueLoss) > TOL {
		t.Errorf("%v: loss doesn't match from Loss(). Expected %v, Found: %v", name, trueLoss, loss)
	}

	derivative := make([]float64, len(prediction))
	loss = losser.LossDeriv(prediction, truth, derivative)
	if math.Abs(loss-trueLoss) > TOL {
		t.Errorf("%v: loss doesn't match from LossDeriv()", name)
	}
	fdDerivative := fd.Gradient(nil, func(p []float64) float64 {
		return losser.Loss(p, truth)
	}, prediction, &fd.Settings{Formula: fd.Central, Step: FDStep})
	if !floats.EqualApprox(derivative, fdDerivative, FDTol) {
		t.Errorf("%v: derivative doesn't match. deriv: %v, fdDeriv: %v ", name, derivative, fdDerivative)
	}

	// The loss of a partition is the sum of the losses of its parts
	split := losser.Loss(prediction[:1], truth[:1]) + losser.Loss(prediction[1:], truth[1:])
	if math.Abs(split-trueLoss) > TOL {
		t.Errorf("%v: loss is not additive over samples", name)
	}

	if err := common.InterfaceTestMarshalAndUnmarshal(losser); err != nil {
		t.Errorf("%v: error marshaling and unmarshaling: %v", name, err)
	}

	require.Panics(t, func() { losser.Loss(prediction, truth[:1]) }, name)
	require.Panics(t, func() { losser.LossDeriv(prediction, truth, derivative[:1]) }, name)

	loss = losser.LossDeriv(truth, truth, derivative)
	if loss != 0 {
		t.Errorf("%v: non-zero loss for equal pred and truth", name)
	}
	for _, val := range derivative {
		if val != 0 {
			t.Errorf("%v: non-zero derivative for equal pred and truth", name)
		}
	}
}

func TestSquaredDistance(t *testing.T) {
	prediction := []float64{1, 2, 3}
	truth := []float64{1.1, 2.2, 2.7}
	trueloss := .1*.1 + .2*.2 + .3*.3
	testDerivLosser(t, SquaredDistance{}, prediction, truth, trueloss, "SquaredDistance")
	var _ ConvexDerivLosser = SquaredDistance{}
}

func TestManhattanDistance(t *testing.T) {
	prediction := []float64{1, 2, 3}
	truth := []float64{1.1, 2.2, 2.7}
	trueloss := .1 + .2 + .3
	testDerivLosser(t, ManhattanDistance{}, prediction, truth, trueloss, "ManhattanDistance")
}

func TestRelativeSquared(t *testing.T) {
	tol := 1e-2
	prediction := []float64{1, -2, 3}
	truth := []float64{1.1, -2.2, 2.7}
	trueloss := (.1/(1.1+tol))*(.1/(1.1+tol)) + (.2/(2.2+tol))*(.2/(2.2+tol)) + (.3/(2.7+tol))*(.3/(2.7+tol))
	testDerivLosser(t, RelativeSquared(tol), prediction, truth, trueloss, "RelativeSquared")
}

func TestRelativeLog(t *testing.T) {
	tol := 1e-2
	prediction := []float64{1, -2, 3}
	truth := []float64{1.1, -2.2, 2.7}
	var trueloss float64
	for i := range prediction {
		rel := (prediction[i] - truth[i]) / (math.Abs(truth[i]) + tol)
		trueloss += math.Log(1 + rel*rel)
	}
	testDerivLosser(t, RelativeLog(tol), prediction, truth, trueloss, "RelativeLog")
}

func TestLogSquared(t *testing.T) {
	prediction := []float64{1, -2, 3}
	truth := []float64{1.1, -2.2, 2.7}
	trueloss := math.Log(.1*.1+1) + math.Log(.2*.2+1) + math.Log(.3*.3+1)
	testDerivLosser(t, LogSquared{}, prediction, truth, trueloss, "LogSquared")
}
