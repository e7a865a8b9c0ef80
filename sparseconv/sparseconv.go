// Package sparseconv is the public entry point of the sparse-connectivity
// convolution layer engine.
//
// Typical use:
//
//	l, err := sparseconv.New(sparseconv.Config{
//		Sources:      [][]int{{0, 1}, {1, 2}, {0, 2}},
//		KernelWidth:  5,
//		KernelHeight: 5,
//	}, sparseconv.NewContext(42))
//	err = l.Dimension(sparseconv.Volume{Maps: 3, Width: 28, Height: 28})
//	err = l.Initialize()
//
//	out, err := l.Forward(input)
//	// successor writes l.Delta()
//	err = l.BroadcastDelta(prevDelta)
//	err = l.AccumulateGradients(input)
//	optimizer.Update(l)
package sparseconv

import (
	"github.com/FlavioCFOliveira/sparseconv/internal/layer"
	"github.com/FlavioCFOliveira/sparseconv/internal/loss"
	"github.com/FlavioCFOliveira/sparseconv/internal/opt"
	"github.com/FlavioCFOliveira/sparseconv/internal/parallel"
	"github.com/FlavioCFOliveira/sparseconv/internal/random"
	"github.com/FlavioCFOliveira/sparseconv/internal/routing"
)

// Re-export common types for easier access
type (
	Layer        = layer.SparseConv2D
	Config       = layer.Config
	Context      = layer.Context
	Volume       = layer.Volume
	Geometry     = layer.Geometry
	State        = layer.State
	Accumulation = layer.Accumulation
	Device       = layer.Device
	CPUDevice    = layer.CPUDevice

	RoutingTable = routing.Table
	NormalFiller = random.NormalFiller

	ParallelConfig = parallel.Config

	Trainable = opt.Trainable
	Optimizer = opt.Optimizer
	SGD       = opt.SGD
	Momentum  = opt.Momentum
	StepLR    = opt.StepLR

	Loss       = loss.Loss
	SumSquared = loss.SumSquared
	MSE        = loss.MSE
	Huber      = loss.Huber

	RoutingIndexError = layer.RoutingIndexError
	DimensionError    = layer.DimensionError
	ConfigError       = layer.ConfigError
)

// Lifecycle states.
const (
	Uninitialized = layer.Uninitialized
	Dimensioned   = layer.Dimensioned
	Initialized   = layer.Initialized
	Ready         = layer.Ready
)

// Accumulation strategies.
const (
	AccumulateGather = layer.AccumulateGather
	AccumulateAtomic = layer.AccumulateAtomic
)

// BiasInitValue is the constant every bias starts at.
const BiasInitValue = layer.BiasInitValue

// Errors
var (
	ErrState = layer.ErrState
	ErrShape = layer.ErrShape
)

// New creates an uninitialized layer.
func New(cfg Config, ctx *Context) (*Layer, error) {
	return layer.NewSparseConv2D(cfg, ctx)
}

// NewContext returns a CPU execution context with a seeded RNG.
func NewContext(seed uint64) *Context {
	return layer.NewContext(seed)
}

// NewCPUDevice returns a CPU device with the given dispatch config.
func NewCPUDevice(cfg ParallelConfig) *CPUDevice {
	return layer.NewCPUDevice(cfg)
}

// DefaultParallelConfig returns dispatch defaults based on CPU count.
func DefaultParallelConfig() ParallelConfig {
	return parallel.DefaultConfig()
}

// NewGonumNormal returns the default gonum-backed normal sampler.
func NewGonumNormal(seed uint64) NormalFiller {
	return random.NewGonum(seed)
}

// BuildRoutingTable builds a routing table; nil sources means full connection.
func BuildRoutingTable(numOutputs, numInputs int, sources [][]int) (*RoutingTable, error) {
	return routing.Build(numOutputs, numInputs, sources)
}

// ParseAccumulation parses "gather" or "atomic".
func ParseAccumulation(s string) (Accumulation, error) {
	return layer.ParseAccumulation(s)
}

// Optimizers
func NewSGD(learningRate float64) *SGD {
	return &opt.SGD{LearningRate: learningRate}
}

func NewMomentum(learningRate, beta float64) *Momentum {
	return opt.NewMomentum(learningRate, beta)
}

func NewStepLR(optimizer opt.Rated, stepSize int, gamma float64) *StepLR {
	return opt.NewStepLR(optimizer, stepSize, gamma)
}

// LossByName returns "sse", "mse" or "huber".
func LossByName(name string) (Loss, error) {
	return loss.ByName(name)
}
