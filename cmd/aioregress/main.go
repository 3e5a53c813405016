// Command aioregress fits a function train to data with the all-at-once
// regression objective and BFGS, and writes the fitted train as JSON.
//
// The inputs file holds one sample per line with the coordinates separated
// by white space. The labels file holds one value per sample. Blank lines and
// lines starting with '#' are skipped.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"runtime"
	"time"

	"github.com/pkg/profile"
	"gonum.org/v1/gonum/mat"

	"github.com/fybazs/Compressed-Continuous-Computation/common"
	"github.com/fybazs/Compressed-Continuous-Computation/ft"
	"github.com/fybazs/Compressed-Continuous-Computation/ftparam"
	"github.com/fybazs/Compressed-Continuous-Computation/opt"
	"github.com/fybazs/Compressed-Continuous-Computation/polynomial"
	"github.com/fybazs/Compressed-Continuous-Computation/regress"
	"github.com/fybazs/Compressed-Continuous-Computation/scale"
)

type config struct {
	xFile, yFile, out string
	rank, order       int
	lb, ub            float64
	scale             bool
	workers           int
	seed              int64
	maxIter           int
	perturb           float64
	verbose           int
	profile           string
}

// model is the saved result. The scalers are nil unless -scale is set.
type model struct {
	Train       *ft.FunctionTrain           `json:"train"`
	InputScaler *common.InterfaceMarshaler `json:"inputScaler,omitempty"`
	LabelScaler *common.InterfaceMarshaler `json:"labelScaler,omitempty"`
}

func main() {
	log.SetFlags(0)
	log.SetPrefix("aioregress: ")

	var cfg config
	flag.StringVar(&cfg.xFile, "x", "", "inputs file")
	flag.StringVar(&cfg.yFile, "y", "", "labels file")
	flag.StringVar(&cfg.out, "o", "", "output file for the fitted train (stdout if empty)")
	flag.IntVar(&cfg.rank, "rank", 4, "interior rank of the train")
	flag.IntVar(&cfg.order, "order", 5, "Legendre polynomial order")
	flag.Float64Var(&cfg.lb, "lb", -1, "lower bound of the input domain")
	flag.Float64Var(&cfg.ub, "ub", 1, "upper bound of the input domain")
	flag.BoolVar(&cfg.scale, "scale", false, "map the inputs onto [lb, ub] and standardize the labels")
	flag.IntVar(&cfg.workers, "workers", runtime.NumCPU(), "number of concurrent objective workers")
	flag.Int64Var(&cfg.seed, "seed", 1, "seed of the initial perturbation")
	flag.IntVar(&cfg.maxIter, "maxiter", 1000, "maximum number of BFGS iterations")
	flag.Float64Var(&cfg.perturb, "perturb", 1e-2, "size of the initial perturbation")
	flag.IntVar(&cfg.verbose, "v", 0, "verbosity: 1 for a summary, 2 for an iteration trace")
	flag.StringVar(&cfg.profile, "profile", "", "write a CPU profile into this directory")
	flag.Parse()

	if cfg.xFile == "" || cfg.yFile == "" {
		flag.Usage()
		os.Exit(2)
	}
	if cfg.profile != "" {
		defer profile.Start(profile.CPUProfile, profile.ProfilePath(cfg.profile), profile.Quiet).Stop()
	}
	if err := run(&cfg); err != nil {
		log.Fatal(err)
	}
}

func run(cfg *config) error {
	x, err := readMatrixFile(cfg.xFile)
	if err != nil {
		return err
	}
	y, err := readLabelsFile(cfg.yFile)
	if err != nil {
		return err
	}
	if err := common.VerifyInputs(x, y); err != nil {
		return err
	}
	n, dim := x.Dims()
	if cfg.rank < 1 {
		return fmt.Errorf("rank must be positive, got %d", cfg.rank)
	}

	m := &model{}
	if cfg.scale {
		in := &scale.Linear{Lb: cfg.lb, Ub: cfg.ub}
		out := &scale.Normal{}
		if err := setScale(in, x, "input"); err != nil {
			return err
		}
		if err := setScale(out, mat.NewDense(n, 1, y), "label"); err != nil {
			return err
		}
		if err := scale.ScaleTrainingData(x, y, in, out); err != nil {
			return err
		}
		m.InputScaler = &common.InterfaceMarshaler{I: in}
		m.LabelScaler = &common.InterfaceMarshaler{I: out}
	}

	leg, err := polynomial.NewLegendre(cfg.order, cfg.lb, cfg.ub)
	if err != nil {
		return err
	}
	ranks := make([]int, dim+1)
	for i := range ranks {
		ranks[i] = cfg.rank
	}
	ranks[0], ranks[dim] = 1, 1
	ftp, err := ftparam.New(ft.NewUniformApproxOpts(dim, leg), ranks, nil)
	if err != nil {
		return err
	}
	rnd := rand.New(rand.NewSource(cfg.seed))
	if err := ftp.CreateFromLinearLeastSquares(x, y, cfg.perturb, rnd); err != nil {
		return err
	}

	data, err := regress.NewData(x, y)
	if err != nil {
		return err
	}
	aio := regress.NewAIO(data)
	aio.Workers = cfg.workers
	if err := aio.PrepMemory(ftp); err != nil {
		return err
	}

	o := opt.New(opt.BFGS, aio.NumParams())
	o.MaxIter = cfg.maxIter
	if cfg.verbose > 1 {
		o.Logger = log.New(os.Stderr, "bfgs: ", 0)
	}
	o.SetObjective(aio)

	params := ftp.Params(nil)
	start := time.Now()
	f0 := aio.Func(params)
	f, status := o.Minimize(params)
	ftp.UpdateParams(params)
	if cfg.verbose > 0 {
		log.Printf("%d samples, %d dimensions, %d parameters, ranks %v", n, dim, aio.NumParams(), ranks)
		log.Printf("objective %g -> %g in %d iterations, %d evaluations (%v)", f0, f, o.NumIters(), o.NumEvals(), time.Since(start))
	}
	if !status.Converged() {
		log.Printf("warning: optimizer stopped with status %q", status)
	}

	m.Train = ftp.FT()
	b, err := json.MarshalIndent(m, "", "\t")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	if cfg.out == "" {
		_, err = os.Stdout.Write(b)
		return err
	}
	return os.WriteFile(cfg.out, b, 0644)
}

// setScale sets the scale from the data, only warning about constant columns
func setScale(s scale.Scaler, data *mat.Dense, name string) error {
	err := s.SetScale(data)
	if unif, ok := err.(*scale.UniformDimension); ok {
		log.Printf("warning: %s columns %v are constant", name, unif.Dims)
		return nil
	}
	return err
}
