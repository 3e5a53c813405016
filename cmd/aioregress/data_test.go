package main

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/fybazs/Compressed-Continuous-Computation/common"
	"github.com/fybazs/Compressed-Continuous-Computation/scale"
)

func TestReadMatrix(t *testing.T) {
	m, err := readMatrix(strings.NewReader("# header\n1 2.5\n\n  -3\t4e-1 \n"))
	require.NoError(t, err)
	require.True(t, mat.Equal(m, mat.NewDense(2, 2, []float64{1, 2.5, -3, 0.4})))

	_, err = readMatrix(strings.NewReader("1 2\n3\n"))
	require.ErrorIs(t, err, errRagged)

	_, err = readMatrix(strings.NewReader("1 x\n"))
	require.Error(t, err)

	_, err = readMatrix(strings.NewReader("# nothing\n\n"))
	require.Equal(t, common.NoData, err)
}

func TestReadLabels(t *testing.T) {
	y, err := readLabels(strings.NewReader("1\n# skip\n2 3\n\n4\n"))
	require.NoError(t, err)
	require.Equal(t, []float64{1, 2, 3, 4}, y)

	_, err = readLabels(strings.NewReader(""))
	require.Equal(t, common.NoData, err)

	_, err = readLabels(strings.NewReader("1\nnan?\n"))
	require.Error(t, err)
}

func writeData(t *testing.T, dir string, n int, f func(x []float64) float64) (xFile, yFile string, x [][]float64) {
	rnd := rand.New(rand.NewSource(3))
	var xs, ys strings.Builder
	for i := 0; i < n; i++ {
		pt := []float64{rnd.Float64()*2 - 1, rnd.Float64()*2 - 1}
		x = append(x, pt)
		fmt.Fprintf(&xs, "%v %v\n", pt[0], pt[1])
		fmt.Fprintf(&ys, "%v\n", f(pt))
	}
	xFile = filepath.Join(dir, "x.txt")
	yFile = filepath.Join(dir, "y.txt")
	require.NoError(t, os.WriteFile(xFile, []byte(xs.String()), 0644))
	require.NoError(t, os.WriteFile(yFile, []byte(ys.String()), 0644))
	return xFile, yFile, x
}

func TestRun(t *testing.T) {
	truth := func(x []float64) float64 { return 1 + x[0] + x[1]*x[1] }
	dir := t.TempDir()
	xFile, yFile, x := writeData(t, dir, 60, truth)

	for _, scaled := range []bool{false, true} {
		t.Run(fmt.Sprintf("scale=%v", scaled), func(t *testing.T) {
			out := filepath.Join(dir, "out.json")
			cfg := &config{
				xFile: xFile, yFile: yFile, out: out,
				rank: 2, order: 2, lb: -1, ub: 1,
				scale: scaled, workers: 3, seed: 1,
				maxIter: 2000, perturb: 1e-2,
			}
			require.NoError(t, run(cfg))

			b, err := os.ReadFile(out)
			require.NoError(t, err)
			var m model
			require.NoError(t, json.Unmarshal(b, &m))
			require.NotNil(t, m.Train)
			require.Equal(t, []int{1, 2, 1}, m.Train.Ranks())

			if !scaled {
				require.Nil(t, m.InputScaler)
				require.Nil(t, m.LabelScaler)
				for _, pt := range x[:10] {
					require.InDelta(t, truth(pt), m.Train.Eval(pt), 1e-2)
				}
				return
			}
			require.NotNil(t, m.InputScaler)
			require.NotNil(t, m.LabelScaler)
			in, ok := m.InputScaler.I.(*scale.Linear)
			require.True(t, ok)
			labels, ok := m.LabelScaler.I.(*scale.Normal)
			require.True(t, ok)
			for _, pt := range x[:10] {
				p := append([]float64(nil), pt...)
				require.NoError(t, in.Scale(p))
				for _, v := range p {
					require.True(t, v >= -1-1e-12 && v <= 1+1e-12)
				}
				pred := []float64{m.Train.Eval(p)}
				require.NoError(t, labels.Unscale(pred))
				require.False(t, math.IsNaN(pred[0]))
			}
		})
	}
}
