// Package loss provides loss functions comparing function train predictions
// with labels. Losses are sums over the samples, so the loss of a data set
// is the sum of the losses of any partition of it.
package loss

import (
	"math"

	"github.com/fybazs/Compressed-Continuous-Computation/common"
)

// init registers all of the types into the common registry for
// encoding and decoding
func init() {
	common.Register(SquaredDistance{})
	common.Register(ManhattanDistance{})
	common.Register(RelativeSquared(0))
	common.Register(RelativeLog(0))
	common.Register(LogSquared{})
}

const lenMismatch = "loss: length mismatch"

// Losser is an interface for a loss function.
// A loss function is a measure of the quality of a prediction, with
// a lower value of loss being better. Typically, the loss is zero
// iff prediction == truth, and is always non-negative
// A Losser will panic if len(prediction) != len(truth). The losser
// should not modify the slice values
type Losser interface {
	Loss(prediction, truth []float64) float64
}

// A DerivLosser is a loss function which can the loss and also the derivative
// of the loss function with respect to the prediction. The derivative
// is put in place into the derivative slice.
// The DerivLosser will panic if len(prediction), len(truth), and
// len(derivative) are not all equal
type DerivLosser interface {
	Losser
	LossDeriv(prediction, truth, derivative []float64) float64
}

// A ConvexDerivLosser is a loss function that is convex in the prediction
type ConvexDerivLosser interface {
	DerivLosser
	Convex()
}

func checkLen(prediction, truth, derivative []float64) {
	if len(prediction) != len(truth) || (derivative != nil && len(prediction) != len(derivative)) {
		panic(lenMismatch)
	}
}

// SquaredDistance is the sum of squared residuals, the square of the
// two-norm of (pred - truth)
type SquaredDistance struct{}

func (SquaredDistance) Loss(prediction, truth []float64) (loss float64) {
	checkLen(prediction, truth, nil)
	for i := range prediction {
		diff := prediction[i] - truth[i]
		loss += diff * diff
	}
	return loss
}

func (SquaredDistance) LossDeriv(prediction, truth, derivative []float64) (loss float64) {
	checkLen(prediction, truth, derivative)
	for i := range prediction {
		diff := prediction[i] - truth[i]
		derivative[i] = 2 * diff
		loss += diff * diff
	}
	return loss
}

// Convex allows SquaredDistance to be a ConvexDerivLosser
func (SquaredDistance) Convex() {}

// ManhattanDistance is the one-norm of (pred - truth)
type ManhattanDistance struct{}

func (ManhattanDistance) Loss(prediction, truth []float64) (loss float64) {
	checkLen(prediction, truth, nil)
	for i, val := range prediction {
		loss += math.Abs(val - truth[i])
	}
	return loss
}

func (ManhattanDistance) LossDeriv(prediction, truth, derivative []float64) (loss float64) {
	checkLen(prediction, truth, derivative)
	for i := range prediction {
		loss += math.Abs(prediction[i] - truth[i])
		switch {
		case prediction[i] > truth[i]:
			derivative[i] = 1
		case prediction[i] < truth[i]:
			derivative[i] = -1
		default:
			derivative[i] = 0
		}
	}
	return loss
}

// Convex allows ManhattanDistance to be a ConvexDerivLosser
func (ManhattanDistance) Convex() {}

// RelativeSquared is the squared relative error with the value of
// RelativeSquared added in the denominator
type RelativeSquared float64

func (r RelativeSquared) Loss(prediction, truth []float64) (loss float64) {
	checkLen(prediction, truth, nil)
	for i, pred := range prediction {
		tr := truth[i]
		rel := (pred - tr) / (math.Abs(tr) + float64(r))
		loss += rel * rel
	}
	return loss
}

func (r RelativeSquared) LossDeriv(prediction, truth, derivative []float64) (loss float64) {
	checkLen(prediction, truth, derivative)
	for i := range prediction {
		denom := math.Abs(truth[i]) + float64(r)
		rel := (prediction[i] - truth[i]) / denom
		loss += rel * rel
		derivative[i] = 2 * rel / denom
	}
	return loss
}

// Convex allows RelativeSquared to be a ConvexDerivLosser
func (RelativeSquared) Convex() {}

// RelativeLog is log(1 + rel*rel) of the relative error with the value of
// RelativeLog added in the denominator
type RelativeLog float64

func (l RelativeLog) Loss(prediction, truth []float64) (loss float64) {
	checkLen(prediction, truth, nil)
	for i, pred := range prediction {
		tr := truth[i]
		rel := (pred - tr) / (math.Abs(tr) + float64(l))
		loss += math.Log1p(rel * rel)
	}
	return loss
}

func (l RelativeLog) LossDeriv(prediction, truth, derivative []float64) (loss float64) {
	checkLen(prediction, truth, derivative)
	for i := range prediction {
		denom := math.Abs(truth[i]) + float64(l)
		rel := (prediction[i] - truth[i]) / denom
		loss += math.Log1p(rel * rel)
		derivative[i] = 2 * rel / denom / (1 + rel*rel)
	}
	return loss
}

// LogSquared uses log(1 + diff*diff) so that really high losses aren't as important
type LogSquared struct{}

func (LogSquared) Loss(prediction, truth []float64) (loss float64) {
	checkLen(prediction, truth, nil)
	for i, pred := range prediction {
		diff := pred - truth[i]
		loss += math.Log1p(diff * diff)
	}
	return loss
}

func (LogSquared) LossDeriv(prediction, truth, derivative []float64) (loss float64) {
	checkLen(prediction, truth, derivative)
	for i := range prediction {
		diff := prediction[i] - truth[i]
		loss += math.Log1p(diff * diff)
		derivative[i] = 2 * diff / (1 + diff*diff)
	}
	return loss
}
