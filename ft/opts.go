package ft

import (
	"encoding/json"
	"errors"

	"github.com/fybazs/Compressed-Continuous-Computation/basis"
	"github.com/fybazs/Compressed-Continuous-Computation/common"
)

var (
	ErrRank       = errors.New("ft: invalid ranks")
	ErrApproxOpts = errors.New("ft: approximation options do not match the train")
)

// ApproxOpts holds the univariate function family used in every dimension
// of a function train.
type ApproxOpts struct {
	bases []basis.Basis
}

// NewApproxOpts creates options with one basis per dimension
func NewApproxOpts(bases ...basis.Basis) *ApproxOpts {
	b := make([]basis.Basis, len(bases))
	copy(b, bases)
	return &ApproxOpts{bases: b}
}

// NewUniformApproxOpts uses the same basis in all dim dimensions
func NewUniformApproxOpts(dim int, b basis.Basis) *ApproxOpts {
	bases := make([]basis.Basis, dim)
	for i := range bases {
		bases[i] = b
	}
	return &ApproxOpts{bases: bases}
}

// Dim returns the number of dimensions
func (a *ApproxOpts) Dim() int {
	return len(a.bases)
}

// Basis returns the basis of dimension d
func (a *ApproxOpts) Basis(d int) basis.Basis {
	return a.bases[d]
}

// NumParams returns the number of parameters of one univariate function
// in dimension d
func (a *ApproxOpts) NumParams(d int) int {
	return a.bases[d].NumParams()
}

// IsLinear returns true if the functions of dimension d are linear in their
// parameters
func (a *ApproxOpts) IsLinear(d int) bool {
	return a.bases[d].Linear()
}

// AllLinear returns true if every dimension is linearly parameterized
func (a *ApproxOpts) AllLinear() bool {
	for _, b := range a.bases {
		if !b.Linear() {
			return false
		}
	}
	return true
}

// Validate returns ErrApproxOpts if the options are empty or hold a nil basis
func (a *ApproxOpts) Validate() error {
	if a == nil || len(a.bases) == 0 {
		return ErrApproxOpts
	}
	for _, b := range a.bases {
		if b == nil {
			return ErrApproxOpts
		}
	}
	return nil
}

func (a *ApproxOpts) MarshalJSON() ([]byte, error) {
	m := make([]common.InterfaceMarshaler, len(a.bases))
	for i, b := range a.bases {
		m[i] = common.InterfaceMarshaler{I: b}
	}
	return json.Marshal(m)
}

func (a *ApproxOpts) UnmarshalJSON(data []byte) error {
	var m []common.InterfaceMarshaler
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	a.bases = make([]basis.Basis, len(m))
	for i, v := range m {
		b, ok := v.I.(basis.Basis)
		if !ok {
			return errors.New("ft: registered type is not a basis")
		}
		a.bases[i] = b
	}
	return nil
}
