// Package scale transforms regression data so that the inputs lie in the
// domain of the univariate bases and the labels are of unit size.
package scale

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/fybazs/Compressed-Continuous-Computation/common"
)

func init() {
	common.Register(&None{})
	common.Register(&Linear{})
	common.Register(&Normal{})
}

// ErrTooFew is returned when the scale is set from less than two points
var ErrTooFew = errors.New("scale: less than two inputs")

// UniformDimension is an error type expressing that
// a dimension had all equal values. Dims is a list of the uniform dimensions
type UniformDimension struct {
	Dims []int
}

func (i *UniformDimension) Error() string {
	return fmt.Sprintf("scale: dimensions %v have all values equal", i.Dims)
}

type UnequalLength struct{}

func (u UnequalLength) Error() string {
	return "scale: data length mismatch"
}

// Scaler is an interface for transforming data so it is appropriately scaled
// for the regression. The data are the rows of a matrix. An error is returned
// if the scale is set from less than two points.
type Scaler interface {
	Scale(point []float64) error    // Scales (in place) the data point
	Unscale(point []float64) error  // Unscales (in place) the data point
	IsScaled() bool                 // Returns true if the scale for this type has already been set
	Dimensions() int                // Number of dimensions for which the data was scaled
	SetScale(data *mat.Dense) error // Uses the input data to set the scale
}

type SliceError struct {
	Header string
	Idx    int
	Err    error
}

func (s *SliceError) Error() string {
	return fmt.Sprintf("%v: element %v, error %v", s.Header, s.Idx, s.Err)
}

type ErrorList []*SliceError

func (e ErrorList) Error() string {
	return fmt.Sprintf("scale: %v errors found", len(e))
}

func apply(header string, f func([]float64) error, data *mat.Dense) error {
	m := &sync.Mutex{}
	var e ErrorList
	work := func(start, end int) {
		for r := start; r < end; r++ {
			if err := f(data.RawRowView(r)); err != nil {
				m.Lock()
				e = append(e, &SliceError{Header: header, Idx: r, Err: err})
				m.Unlock()
			}
		}
	}
	nSamples, _ := data.Dims()
	common.ParallelFor(nSamples, common.GetGrainSize(nSamples, 1, 500), work)
	if len(e) != 0 {
		return e
	}
	return nil
}

// ScaleData scales every row of data in parallel
func ScaleData(scaler Scaler, data *mat.Dense) error {
	return apply("scale", scaler.Scale, data)
}

// UnscaleData unscales every row of data in parallel
func UnscaleData(scaler Scaler, data *mat.Dense) error {
	return apply("unscale", scaler.Unscale, data)
}

// labelMatrix views the labels as a column
func labelMatrix(labels []float64) *mat.Dense {
	return mat.NewDense(len(labels), 1, labels)
}

// ScaleTrainingData sets the scale of the scalers if they are not already
// set, and then scales the inputs and labels in place. If the labels cannot
// be scaled the inputs are unscaled again.
func ScaleTrainingData(inputs *mat.Dense, labels []float64, inputScaler, labelScaler Scaler) error {
	y := labelMatrix(labels)
	if !inputScaler.IsScaled() {
		if err := inputScaler.SetScale(inputs); err != nil {
			return err
		}
	}
	if !labelScaler.IsScaled() {
		if err := labelScaler.SetScale(y); err != nil {
			return err
		}
	}
	if err := ScaleData(inputScaler, inputs); err != nil {
		return err
	}
	if err := ScaleData(labelScaler, y); err != nil {
		UnscaleData(inputScaler, inputs)
		return err
	}
	return nil
}

// UnscaleLabels unscales labels in place
func UnscaleLabels(labelScaler Scaler, labels []float64) error {
	return UnscaleData(labelScaler, labelMatrix(labels))
}

// None is a type specifying no transformation of the input should be done
type None struct {
	Dim    int // Dimensions
	Scaled bool
}

func (n *None) IsScaled() bool {
	return n.Scaled
}

func (n *None) Scale(x []float64) error {
	if len(x) != n.Dim {
		return UnequalLength{}
	}
	return nil
}

func (n *None) Unscale(x []float64) error {
	return n.Scale(x)
}

func (n *None) Dimensions() int {
	return n.Dim
}

func (n *None) SetScale(data *mat.Dense) error {
	rows, cols := data.Dims()
	if rows < 2 {
		return ErrTooFew
	}
	n.Dim = cols
	n.Scaled = true
	return nil
}

// Linear maps the range of the data in every dimension onto [Lb, Ub]. If
// Lb and Ub are both zero the range is [0, 1].
type Linear struct {
	Min    []float64 // Minimum value of the data
	Max    []float64 // Maximum value of the data
	Lb, Ub float64   // Range of the scaled data
	Scaled bool      // Flag if the scale has been set
	Dim    int       // Number of dimensions of the data
}

// IsScaled returns true if the scale has been set
func (l *Linear) IsScaled() bool {
	return l.Scaled
}

// Dimensions returns the length of the data point
func (l *Linear) Dimensions() int {
	return l.Dim
}

func (l *Linear) bounds() (lb, ub float64) {
	if l.Lb == 0 && l.Ub == 0 {
		return 0, 1
	}
	return l.Lb, l.Ub
}

// SetScale finds the minimum and maximum of every dimension. If they are
// identical in a dimension, they are set to that value +/- 0.5 and a
// UniformDimension error is returned.
func (l *Linear) SetScale(data *mat.Dense) error {
	rows, dim := data.Dims()
	if rows < 2 {
		return ErrTooFew
	}
	l.Min = make([]float64, dim)
	l.Max = make([]float64, dim)
	col := make([]float64, rows)
	var unifError *UniformDimension
	for j := 0; j < dim; j++ {
		mat.Col(col, j, data)
		l.Min[j], l.Max[j] = minMax(col)
		if l.Min[j] == l.Max[j] {
			if unifError == nil {
				unifError = &UniformDimension{}
			}
			unifError.Dims = append(unifError.Dims, j)
			l.Min[j] -= 0.5
			l.Max[j] += 0.5
		}
	}
	l.Scaled = true
	l.Dim = dim
	if unifError != nil {
		return unifError
	}
	return nil
}

func minMax(s []float64) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range s {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}

// Scale scales the point returning an error if the length doesn't match
func (l *Linear) Scale(point []float64) error {
	if len(point) != l.Dim {
		return UnequalLength{}
	}
	lb, ub := l.bounds()
	for i, val := range point {
		point[i] = lb + (val-l.Min[i])/(l.Max[i]-l.Min[i])*(ub-lb)
	}
	return nil
}

func (l *Linear) Unscale(point []float64) error {
	if len(point) != l.Dim {
		return UnequalLength{}
	}
	lb, ub := l.bounds()
	for i, val := range point {
		point[i] = (val-lb)/(ub-lb)*(l.Max[i]-l.Min[i]) + l.Min[i]
	}
	return nil
}

// Normal scales the data to have a mean of 0 and a unit sample standard
// deviation in each dimension
type Normal struct {
	Mu     []float64
	Sigma  []float64
	Dim    int
	Scaled bool
}

// IsScaled returns true if the scale has been set
func (n *Normal) IsScaled() bool {
	return n.Scaled
}

// Dimensions returns the length of the data point
func (n *Normal) Dimensions() int {
	return n.Dim
}

// SetScale finds the mean and the sample standard deviation of every
// dimension. If the standard deviation of any of the data is zero (all of
// the entries have the same value), it is set to 1.0 and a UniformDimension
// error is returned.
func (n *Normal) SetScale(data *mat.Dense) error {
	rows, dim := data.Dims()
	if rows < 2 {
		return ErrTooFew
	}
	n.Mu = make([]float64, dim)
	n.Sigma = make([]float64, dim)
	col := make([]float64, rows)
	var unifError *UniformDimension
	for j := 0; j < dim; j++ {
		mat.Col(col, j, data)
		n.Mu[j], n.Sigma[j] = stat.MeanStdDev(col, nil)
		if n.Sigma[j] == 0 {
			if unifError == nil {
				unifError = &UniformDimension{}
			}
			unifError.Dims = append(unifError.Dims, j)
			n.Sigma[j] = 1
		}
	}
	n.Scaled = true
	n.Dim = dim
	if unifError != nil {
		return unifError
	}
	return nil
}

// Scale scales the data point
func (n *Normal) Scale(point []float64) error {
	if len(point) != n.Dim {
		return UnequalLength{}
	}
	for i := range point {
		point[i] = (point[i] - n.Mu[i]) / n.Sigma[i]
	}
	return nil
}

// Unscale unscales the data point
func (n *Normal) Unscale(point []float64) error {
	if len(point) != n.Dim {
		return UnequalLength{}
	}
	for i := range point {
		point[i] = point[i]*n.Sigma[i] + n.Mu[i]
	}
	return nil
}
