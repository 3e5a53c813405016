package basis

import (
	"errors"
	"sort"

	"github.com/fybazs/Compressed-Continuous-Computation/common"
)

func init() {
	common.Register(LinElem{})
}

// LinElem is a piecewise linear function on a fixed set of nodes. The
// parameters are the function values at the nodes. Outside of the node range
// the function is held at the value of the nearest node.
type LinElem struct {
	Nodes []float64 // Sorted in increasing order
}

// NewLinElem returns n equally spaced nodes on [lb, ub]
func NewLinElem(n int, lb, ub float64) (LinElem, error) {
	if n < 2 {
		return LinElem{}, errors.New("basis: linear elements need at least two nodes")
	}
	if !(lb < ub) {
		return LinElem{}, errors.New("basis: lower bound must be less than upper bound")
	}
	nodes := make([]float64, n)
	h := (ub - lb) / float64(n-1)
	for i := range nodes {
		nodes[i] = lb + float64(i)*h
	}
	nodes[n-1] = ub
	return LinElem{Nodes: nodes}, nil
}

func (l LinElem) NumParams() int {
	return len(l.Nodes)
}

func (LinElem) Linear() bool {
	return true
}

// element returns the index of the left node and the weight on the right node
func (l LinElem) element(x float64) (int, float64) {
	n := len(l.Nodes)
	if x <= l.Nodes[0] {
		return 0, 0
	}
	if x >= l.Nodes[n-1] {
		return n - 2, 1
	}
	idx := sort.SearchFloat64s(l.Nodes, x)
	// Nodes[idx-1] < x <= Nodes[idx]
	left := idx - 1
	w := (x - l.Nodes[left]) / (l.Nodes[idx] - l.Nodes[left])
	return left, w
}

func (l LinElem) Eval(params []float64, x float64) float64 {
	CheckParams(l, "linelem", params)
	if len(params) == 1 {
		return params[0]
	}
	i, w := l.element(x)
	return (1-w)*params[i] + w*params[i+1]
}

func (l LinElem) ParamGrad(params []float64, x float64, grad []float64) float64 {
	CheckParams(l, "linelem", params)
	if len(grad) != len(params) {
		panic(LengthMismatch{Family: "linelem", Want: len(params), Have: len(grad)})
	}
	for i := range grad {
		grad[i] = 0
	}
	if len(params) == 1 {
		grad[0] = 1
		return params[0]
	}
	i, w := l.element(x)
	grad[i] = 1 - w
	grad[i+1] = w
	return (1-w)*params[i] + w*params[i+1]
}

// FitAffine sets the nodal values to slope*node + offset, which is exact
// inside the node range.
func (l LinElem) FitAffine(slope, offset float64, params []float64) error {
	CheckParams(l, "linelem", params)
	for i, node := range l.Nodes {
		params[i] = slope*node + offset
	}
	return nil
}
