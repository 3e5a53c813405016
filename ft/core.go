package ft

import "github.com/fybazs/Compressed-Continuous-Computation/basis"

// Core is one link of a function train: an rIn×rOut grid of univariate
// functions of a single input dimension. Entries are stored column-major,
// so entry (i, j) has index i + j*rIn. Every entry has the same number of
// parameters and the parameters of entry e are params[e*np : (e+1)*np].
// The params slice is a view into the flat parameter buffer of the train.
type Core struct {
	dim    int
	rIn    int
	rOut   int
	basis  basis.Basis
	np     int
	params []float64
}

// Dim returns the input dimension of the core
func (c *Core) Dim() int {
	return c.dim
}

// Ranks returns the input and output ranks of the core
func (c *Core) Ranks() (rIn, rOut int) {
	return c.rIn, c.rOut
}

// NumEntries returns rIn*rOut
func (c *Core) NumEntries() int {
	return c.rIn * c.rOut
}

// NumParams returns the number of parameters of the whole core
func (c *Core) NumParams() int {
	return len(c.params)
}

// NumEntryParams returns the number of parameters of one entry
func (c *Core) NumEntryParams() int {
	return c.np
}

// Basis returns the univariate family of the core's entries
func (c *Core) Basis() basis.Basis {
	return c.basis
}

// Entry returns the parameters of entry (i, j). The slice aliases the train.
func (c *Core) Entry(i, j int) []float64 {
	if i < 0 || i >= c.rIn || j < 0 || j >= c.rOut {
		panic("ft: entry index out of range")
	}
	e := i + j*c.rIn
	return c.params[e*c.np : (e+1)*c.np]
}

// Eval stores the value of every entry at x into dst in column-major order.
func (c *Core) Eval(x float64, dst []float64) {
	ne := c.NumEntries()
	if len(dst) < ne {
		panic("ft: core evaluation slice too short")
	}
	for e := 0; e < ne; e++ {
		dst[e] = c.basis.Eval(c.params[e*c.np:(e+1)*c.np], x)
	}
}

// ParamGrad stores the value of every entry at x into dst, and the
// derivative of entry e with respect to its own parameters into
// grad[e*np : (e+1)*np]. The derivative of an entry with respect to the
// parameters of any other entry is zero and is not stored.
func (c *Core) ParamGrad(x float64, dst, grad []float64) {
	ne := c.NumEntries()
	if len(dst) < ne {
		panic("ft: core evaluation slice too short")
	}
	if len(grad) < len(c.params) {
		panic("ft: core gradient slice too short")
	}
	for e := 0; e < ne; e++ {
		lo, hi := e*c.np, (e+1)*c.np
		dst[e] = c.basis.ParamGrad(c.params[lo:hi], x, grad[lo:hi])
	}
}
