// Package predict provides a set of helper routines for predicting
// with scalar valued models.
package predict

import (
	"errors"

	"gonum.org/v1/gonum/mat"

	"github.com/fybazs/Compressed-Continuous-Computation/common"
)

// BatchPredictor creates predictors. This exists so that each parallel call
// can own its temporary memory.
type BatchPredictor interface {
	NewPredictor() Predictor
}

// Predictor evaluates a model at one input
type Predictor interface {
	Predict(input []float64) float64
}

var (
	ErrInputDim = errors.New("predict batch: input dimension mismatch")
	ErrRows     = errors.New("predict batch: rows mismatch")
)

// BatchPredict evaluates the model at every row of inputs, storing the results
// in outputs. If outputs is nil a new slice is allocated.
func BatchPredict(batch BatchPredictor, inputs mat.Matrix, outputs []float64, inputDim int, grainSize int) ([]float64, error) {
	nSamples, dimInputs := inputs.Dims()
	if inputDim != dimInputs {
		return outputs, ErrInputDim
	}
	if outputs == nil {
		outputs = make([]float64, nSamples)
	} else if len(outputs) != nSamples {
		return outputs, ErrRows
	}

	// If the input is a RawRowViewer, save time by avoiding a copy
	var f func(start, end int)
	if rv, ok := inputs.(mat.RawRowViewer); ok {
		f = func(start, end int) {
			p := batch.NewPredictor()
			for i := start; i < end; i++ {
				outputs[i] = p.Predict(rv.RawRowView(i))
			}
		}
	} else {
		f = func(start, end int) {
			p := batch.NewPredictor()
			input := make([]float64, inputDim)
			for i := start; i < end; i++ {
				mat.Row(input, i, inputs)
				outputs[i] = p.Predict(input)
			}
		}
	}

	common.ParallelFor(nSamples, grainSize, f)
	return outputs, nil
}
