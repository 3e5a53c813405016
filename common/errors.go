package common

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// DataMismatch is returned when the number of input rows and labels differ
type DataMismatch struct {
	Input  int
	Output int
}

func (d DataMismatch) Error() string {
	return fmt.Sprintf("common: length mismatch. inputs: %v, labels: %v", d.Input, d.Output)
}

var InputDimension error = errors.New("common: input dimension mismatch")
var NoData error = errors.New("common: no data")

// VerifyInputs returns an error if there are no samples or if the number of
// rows in inputs is not the same as the number of labels.
func VerifyInputs(inputs mat.Matrix, labels []float64) error {
	if inputs == nil {
		return NoData
	}
	nSamples, _ := inputs.Dims()
	if nSamples == 0 && len(labels) == 0 {
		return NoData
	}
	if nSamples != len(labels) {
		return DataMismatch{
			Input:  nSamples,
			Output: len(labels),
		}
	}
	return nil
}
