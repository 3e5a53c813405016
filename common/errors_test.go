package common

import (
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestVerifyInputs(t *testing.T) {
	inputs := mat.NewDense(3, 2, []float64{
		3, 4,
		6, 7,
		9, 10,
	})
	if err := VerifyInputs(inputs, []float64{1, 2, 3}); err != nil {
		t.Errorf("Error with proper input: %v", err)
	}

	for _, test := range []struct {
		Name          string
		Input, Output int
		inputs        mat.Matrix
		labels        []float64
	}{
		{
			Name:   "ShortInput",
			Input:  3,
			Output: 2,
			inputs: inputs,
			labels: []float64{1, 2},
		},
		{
			Name:   "LongLabels",
			Input:  3,
			Output: 4,
			inputs: inputs,
			labels: []float64{1, 2, 3, 4},
		},
	} {
		err := VerifyInputs(test.inputs, test.labels)
		misErr, ok := err.(DataMismatch)
		if !ok {
			t.Errorf("%v: Mismatch error not returned with bad inputs", test.Name)
			continue
		}
		if misErr.Input != test.Input {
			t.Errorf("%v: incorrect input length", test.Name)
		}
		if misErr.Output != test.Output {
			t.Errorf("%v: incorrect label length", test.Name)
		}
	}

	if err := VerifyInputs(nil, nil); err != NoData {
		t.Errorf("NoData error not returned on nil data")
	}
	if err := VerifyInputs(&mat.Dense{}, nil); err != NoData {
		t.Errorf("NoData error not returned on empty data")
	}
}

func TestChunks(t *testing.T) {
	for _, test := range []struct {
		n, k int
	}{
		{10, 3},
		{3, 10},
		{7, 1},
		{8, 4},
	} {
		chunks := Chunks(test.n, test.k)
		next := 0
		for _, c := range chunks {
			if c[0] != next {
				t.Errorf("n=%v k=%v: chunk starts at %v, expected %v", test.n, test.k, c[0], next)
			}
			if c[1] <= c[0] {
				t.Errorf("n=%v k=%v: empty chunk %v", test.n, test.k, c)
			}
			next = c[1]
		}
		if next != test.n {
			t.Errorf("n=%v k=%v: chunks cover %v samples", test.n, test.k, next)
		}
	}
}

func TestParallelFor(t *testing.T) {
	n := 1003
	seen := make([]int, n)
	ParallelFor(n, GetGrainSize(n, 1, 50), func(start, end int) {
		for i := start; i < end; i++ {
			seen[i]++
		}
	})
	for i, v := range seen {
		if v != 1 {
			t.Errorf("index %v visited %v times", i, v)
		}
	}
}
