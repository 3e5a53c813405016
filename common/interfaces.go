package common

import "gonum.org/v1/gonum/mat"

// RowMatrix is a matrix whose rows can be viewed without copying.
// *mat.Dense satisfies RowMatrix.
type RowMatrix interface {
	mat.Matrix
	mat.RawRowViewer
}

// Predictor is a scalar valued model of a vector input.
type Predictor interface {
	Predict(input []float64) (float64, error)
	PredictBatch(inputs mat.Matrix, outputs []float64) ([]float64, error)
	InputDim() int
}
