// Package regularize provides penalties on the parameters of a function
// train that are added to the regression loss. All penalties are sums of
// per-parameter terms, so the penalty of a subset of the parameters has the
// same gradient as the penalty of the whole vector restricted to the subset.
package regularize

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Regularizer is a type that puts pressure on the values of
// parameters to prevent overfitting
type Regularizer interface {
	// How much loss is generated from the value of the parameters
	Loss(parameters []float64) float64

	// Returns the value of the loss and puts dLossDParameters
	// in place into the second argument. Writer may assume that
	// len(parameters) == len(derivative), but should not assume
	// that derivative is all zeros
	LossDeriv(parameters, derivative []float64) float64

	// LossAddDeriv adds the derivative rather than storing in place
	LossAddDeriv(parameters, derivative []float64) float64
}

// TwoNorm gives the result of  ɣ||w||_2^2
type TwoNorm struct {
	Gamma float64 // Relative weight compared to loss function
}

func (t TwoNorm) Loss(parameters []float64) float64 {
	return t.Gamma * floats.Dot(parameters, parameters)
}

func (t TwoNorm) LossDeriv(parameters, derivative []float64) float64 {
	for i, p := range parameters {
		derivative[i] = t.Gamma * 2 * p
	}
	return t.Loss(parameters)
}

func (t TwoNorm) LossAddDeriv(parameters, derivative []float64) float64 {
	floats.AddScaled(derivative, 2*t.Gamma, parameters)
	return t.Loss(parameters)
}

// OneNorm gives the result of  ɣ||w||_1. The derivative at zero is taken
// to be zero.
type OneNorm struct {
	Gamma float64 // Relative weight compared to loss function
}

func (o OneNorm) Loss(parameters []float64) float64 {
	return o.Gamma * floats.Norm(parameters, 1)
}

func sign(p float64) float64 {
	switch {
	case p > 0:
		return 1
	case p < 0:
		return -1
	}
	return 0
}

func (o OneNorm) LossDeriv(parameters, derivative []float64) float64 {
	for i, p := range parameters {
		derivative[i] = o.Gamma * sign(p)
	}
	return o.Loss(parameters)
}

func (o OneNorm) LossAddDeriv(parameters, derivative []float64) float64 {
	for i, p := range parameters {
		derivative[i] += o.Gamma * sign(p)
	}
	return o.Loss(parameters)
}

// None represents no regularizer
type None struct{}

func (n None) Loss(parameters []float64) float64 {
	return 0
}

func (n None) LossDeriv(parameters, derivative []float64) float64 {
	for i := range derivative {
		derivative[i] = 0
	}
	return 0
}

func (n None) LossAddDeriv(parameters, derivative []float64) float64 {
	// Don't need to modify derivative at all
	return 0
}

// Ridge returns the weight of a quadratic penalty ɣ||w||_2^2 equivalent to
// r, and false if r is not quadratic. A nil regularizer is equivalent to
// None.
func Ridge(r Regularizer) (gamma float64, ok bool) {
	switch v := r.(type) {
	case nil:
		return 0, true
	case None, *None:
		return 0, true
	case TwoNorm:
		return v.Gamma, !math.IsNaN(v.Gamma)
	case *TwoNorm:
		return v.Gamma, !math.IsNaN(v.Gamma)
	}
	return 0, false
}
