package ft

import (
	"encoding/json"
	"errors"
)

type trainMarshal struct {
	Opts   *ApproxOpts
	Ranks  []int
	Params [][][]float64 // core, column-major entry, parameter
}

// MarshalJSON encodes the ranks, the basis of every dimension and the
// parameters of every entry of every core
func (f *FunctionTrain) MarshalJSON() ([]byte, error) {
	m := trainMarshal{
		Opts:   f.opts,
		Ranks:  f.ranks,
		Params: make([][][]float64, len(f.cores)),
	}
	for k, c := range f.cores {
		entries := make([][]float64, c.NumEntries())
		for e := range entries {
			entries[e] = c.params[e*c.np : (e+1)*c.np]
		}
		m.Params[k] = entries
	}
	return json.Marshal(m)
}

// UnmarshalJSON replaces f with the decoded train
func (f *FunctionTrain) UnmarshalJSON(data []byte) error {
	var m trainMarshal
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	g, err := New(m.Opts, m.Ranks)
	if err != nil {
		return err
	}
	if len(m.Params) != len(g.cores) {
		return errors.New("ft: number of cores mismatch")
	}
	for k, c := range g.cores {
		if len(m.Params[k]) != c.NumEntries() {
			return errors.New("ft: number of core entries mismatch")
		}
		for e, p := range m.Params[k] {
			if len(p) != c.np {
				return errors.New("ft: number of entry parameters mismatch")
			}
			copy(c.params[e*c.np:(e+1)*c.np], p)
		}
	}
	g.version = f.version + 1
	*f = *g
	return nil
}
