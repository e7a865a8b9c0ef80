// Command sparseconv trains a sparse convolution layer to reproduce the
// output of a randomly initialized reference layer with the same routing.
package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"runtime"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/FlavioCFOliveira/sparseconv/sparseconv"
)

type options struct {
	maps         int
	routing      string
	inMaps       int
	width        int
	height       int
	kernelWidth  int
	kernelHeight int
	strideX      int
	strideY      int
	accumulation string
	workers      int
	loss         string

	steps      int
	batch      int
	lr         float64
	momentum   float64
	decayEvery int
	decay      float64
	logEvery   int
	seed       uint64
	history    string
}

// optimizer is an optimizer with an adjustable learning rate.
type optimizer interface {
	sparseconv.Optimizer
	LR() float64
	SetLR(lr float64)
}

func main() {
	var opts options
	flag.IntVar(&opts.maps, "maps", 6, "number of output maps (ignored when -routing is set)")
	flag.StringVar(&opts.routing, "routing", "", `source maps per output map, e.g. "0,1;1,2;0,2" (empty = full connection)`)
	flag.IntVar(&opts.inMaps, "in-maps", 3, "number of input maps")
	flag.IntVar(&opts.width, "width", 16, "input width")
	flag.IntVar(&opts.height, "height", 16, "input height")
	flag.IntVar(&opts.kernelWidth, "kw", 5, "kernel width")
	flag.IntVar(&opts.kernelHeight, "kh", 5, "kernel height")
	flag.IntVar(&opts.strideX, "sx", 1, "stride along width")
	flag.IntVar(&opts.strideY, "sy", 1, "stride along height")
	flag.StringVar(&opts.accumulation, "accumulation", "gather", "backward accumulation: gather or atomic")
	flag.IntVar(&opts.workers, "workers", runtime.NumCPU(), "parallel workers per pass")
	flag.StringVar(&opts.loss, "loss", "sse", "training loss: sse, mse or huber")
	flag.IntVar(&opts.steps, "steps", 200, "optimizer steps")
	flag.IntVar(&opts.batch, "batch", 4, "inputs accumulated per step")
	flag.Float64Var(&opts.lr, "lr", 0.002, "learning rate")
	flag.Float64Var(&opts.momentum, "momentum", 0, "momentum (0 = plain SGD)")
	flag.IntVar(&opts.decayEvery, "decay-every", 0, "decay the learning rate every N steps (0 = never)")
	flag.Float64Var(&opts.decay, "decay", 0.5, "learning rate decay factor")
	flag.IntVar(&opts.logEvery, "log-every", 20, "log progress every N steps")
	flag.Uint64Var(&opts.seed, "seed", 42, "random seed")
	flag.StringVar(&opts.history, "history", "", "write per-step training history as CSV to this file")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	var history io.Writer
	if opts.history != "" {
		f, err := os.Create(opts.history)
		if err != nil {
			logger.Error("sparseconv failed", "err", err)
			os.Exit(1)
		}
		defer f.Close()
		history = f
	}

	if err := run(opts, os.Stdout, history, logger); err != nil {
		logger.Error("sparseconv failed", "err", err)
		os.Exit(1)
	}
}

func newContext(opts options, seed uint64, logger *slog.Logger) *sparseconv.Context {
	return &sparseconv.Context{
		Device: sparseconv.NewCPUDevice(sparseconv.ParallelConfig{
			Enabled:      opts.workers > 1,
			NumWorkers:   opts.workers,
			MinChunkSize: 64,
		}),
		RNG:    sparseconv.NewGonumNormal(seed),
		Logger: logger,
	}
}

func buildLayer(cfg sparseconv.Config, prev sparseconv.Volume, ctx *sparseconv.Context) (*sparseconv.Layer, error) {
	l, err := sparseconv.New(cfg, ctx)
	if err != nil {
		return nil, err
	}
	if err := l.Dimension(prev); err != nil {
		return nil, err
	}
	if err := l.Initialize(); err != nil {
		return nil, err
	}
	return l, nil
}

// run trains a layer toward a reference layer. history may be nil.
func run(opts options, out, history io.Writer, logger *slog.Logger) error {
	sources, err := parseRouting(opts.routing)
	if err != nil {
		return err
	}
	acc, err := sparseconv.ParseAccumulation(opts.accumulation)
	if err != nil {
		return err
	}
	objective, err := sparseconv.LossByName(opts.loss)
	if err != nil {
		return err
	}

	cfg := sparseconv.Config{
		KernelWidth:  opts.kernelWidth,
		KernelHeight: opts.kernelHeight,
		StrideX:      opts.strideX,
		StrideY:      opts.strideY,
		Sources:      sources,
		Accumulation: acc,
	}
	if sources == nil {
		cfg.NumMaps = opts.maps
	}
	prev := sparseconv.Volume{Maps: opts.inMaps, Width: opts.width, Height: opts.height}

	reference, err := buildLayer(cfg, prev, newContext(opts, opts.seed+1, logger))
	if err != nil {
		return err
	}
	student, err := buildLayer(cfg, prev, newContext(opts, opts.seed, logger))
	if err != nil {
		return err
	}
	geom := student.Geometry()
	logger.Info("layer ready",
		"layer", student.String(),
		"input", geom.Input.String(),
		"output", geom.Output.String(),
		"kernel_blocks", geom.Kernels,
		"weights", len(student.Weights()))

	rng := rand.New(rand.NewSource(int64(opts.seed)))
	inputs := make([][]float64, opts.batch)
	for i := range inputs {
		inputs[i] = make([]float64, prev.Len())
		for j := range inputs[i] {
			inputs[i][j] = rng.Float64()*2 - 1
		}
	}

	var o optimizer = sparseconv.NewSGD(opts.lr)
	if opts.momentum > 0 {
		o = sparseconv.NewMomentum(opts.lr, opts.momentum)
	}
	schedule := sparseconv.NewStepLR(o, opts.decayEvery, opts.decay)

	var hist *historyWriter
	if history != nil {
		if hist, err = newHistoryWriter(history); err != nil {
			return err
		}
	}

	want := make([]float64, geom.Output.Len())
	prevDelta := make([]float64, prev.Len())
	var loss float64

	for step := 1; step <= opts.steps; step++ {
		loss = 0
		for _, in := range inputs {
			ref, err := reference.Forward(in)
			if err != nil {
				return err
			}
			copy(want, ref)

			got, err := student.Forward(in)
			if err != nil {
				return err
			}
			loss += objective.Forward(got, want)
			objective.BackwardInPlace(got, want, student.Delta())

			if err := student.BroadcastDelta(prevDelta); err != nil {
				return err
			}
			if err := student.AccumulateGradients(in); err != nil {
				return err
			}
		}
		loss /= float64(len(inputs))

		gradNorm := floats.Norm(student.WeightGrad(), 2)
		o.Update(student)
		if hist != nil {
			if err := hist.record(step, loss, gradNorm, o.LR()); err != nil {
				return err
			}
		}
		if opts.logEvery > 0 && (step%opts.logEvery == 0 || step == opts.steps) {
			logger.Info("step",
				"step", step,
				"loss", loss,
				"grad_norm", gradNorm,
				"lr", schedule.GetLR())
		}
		schedule.Step()
	}

	if hist != nil {
		if err := hist.flush(); err != nil {
			return err
		}
	}

	mean, std := stat.MeanStdDev(student.Weights(), nil)
	dist := floats.Distance(student.Weights(), reference.Weights(), 2)
	fmt.Fprintf(out, "steps=%d loss=%.6g weight_mean=%.4f weight_std=%.4f distance_to_reference=%.4f\n",
		opts.steps, loss, mean, std, dist)
	return nil
}
