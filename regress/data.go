// Package regress fits function trains to data by minimizing the sum of a
// loss over the samples plus an optional penalty on the parameters. AIO
// optimizes all of the parameters at once, ALS optimizes one core at a time
// with the others held fixed.
package regress

import (
	"gonum.org/v1/gonum/mat"

	"github.com/fybazs/Compressed-Continuous-Computation/common"
	"github.com/fybazs/Compressed-Continuous-Computation/loss"
	"github.com/fybazs/Compressed-Continuous-Computation/regularize"
)

// Data is a set of samples. Row i of the inputs has label i.
type Data struct {
	x *mat.Dense
	y []float64
}

// NewData copies the inputs and labels into a data set
func NewData(x mat.Matrix, y []float64) (*Data, error) {
	if err := common.VerifyInputs(x, y); err != nil {
		return nil, err
	}
	return &Data{
		x: mat.DenseCopyOf(x),
		y: append([]float64(nil), y...),
	}, nil
}

// Len returns the number of samples
func (d *Data) Len() int {
	return len(d.y)
}

// Dim returns the input dimension
func (d *Data) Dim() int {
	_, c := d.x.Dims()
	return c
}

// X returns the inputs. The matrix must not be modified.
func (d *Data) X() *mat.Dense {
	return d.x
}

// Y returns the labels. The slice must not be modified.
func (d *Data) Y() []float64 {
	return d.y
}

// slice returns the samples in [lo, hi)
func (d *Data) slice(lo, hi int) (*mat.Dense, []float64) {
	return d.x.Slice(lo, hi, 0, d.Dim()).(*mat.Dense), d.y[lo:hi]
}

func losserOrDefault(l loss.DerivLosser) loss.DerivLosser {
	if l == nil {
		return loss.SquaredDistance{}
	}
	return l
}

func regularizerOrDefault(r regularize.Regularizer) regularize.Regularizer {
	if r == nil {
		return regularize.None{}
	}
	return r
}
