package layer

import (
	"fmt"

	"github.com/FlavioCFOliveira/sparseconv/internal/routing"
)

// Config describes a sparse convolution layer before it is dimensioned.
type Config struct {
	// NumMaps is the number of output feature maps. When Sources is set it
	// may be left zero; a non-zero value must equal len(Sources).
	NumMaps int

	KernelWidth  int
	KernelHeight int

	// StrideX and StrideY default to 1 when zero.
	StrideX int
	StrideY int

	// Sources[f] lists the input maps feeding output map f, in order.
	// Nil means full connection.
	Sources [][]int

	// InitialWeights and InitialBias, when set, replace random weight and
	// constant bias initialization. Lengths must match the dimensioned layer.
	InitialWeights []float64
	InitialBias    []float64

	Accumulation Accumulation
}

// SparseConv2D is a strided 2D correlation layer in which each output map
// reads only the input maps listed in its routing table entry.
//
// Lifecycle: NewSparseConv2D → Dimension → Initialize, then each training
// step runs Forward, BroadcastDelta and AccumulateGradients in that order.
// A layer cannot be re-dimensioned; build a new one instead.
type SparseConv2D struct {
	cfg     Config
	ctx     *Context
	numMaps int
	passes  passSet

	state State
	geom  Geometry
	table *routing.Table

	// Parameters: weights are [kernels, kernelWidth, kernelHeight], biases [numMaps].
	weights []float64
	biases  []float64

	gradWeights []float64
	gradBiases  []float64

	outputBuf []float64
	deltaBuf  []float64
}

// NewSparseConv2D validates cfg and returns an uninitialized layer.
// A nil ctx uses NewContext(DefaultSeed).
func NewSparseConv2D(cfg Config, ctx *Context) (*SparseConv2D, error) {
	if cfg.StrideX == 0 {
		cfg.StrideX = 1
	}
	if cfg.StrideY == 0 {
		cfg.StrideY = 1
	}

	switch {
	case cfg.KernelWidth <= 0:
		return nil, &ConfigError{Field: "kernel width", Reason: fmt.Sprintf("%d is not positive", cfg.KernelWidth)}
	case cfg.KernelHeight <= 0:
		return nil, &ConfigError{Field: "kernel height", Reason: fmt.Sprintf("%d is not positive", cfg.KernelHeight)}
	case cfg.StrideX < 0:
		return nil, &ConfigError{Field: "stride x", Reason: fmt.Sprintf("%d is not positive", cfg.StrideX)}
	case cfg.StrideY < 0:
		return nil, &ConfigError{Field: "stride y", Reason: fmt.Sprintf("%d is not positive", cfg.StrideY)}
	case cfg.Accumulation != AccumulateGather && cfg.Accumulation != AccumulateAtomic:
		return nil, &ConfigError{Field: "accumulation", Reason: cfg.Accumulation.String()}
	}

	numMaps := cfg.NumMaps
	if cfg.Sources != nil {
		if numMaps != 0 && numMaps != len(cfg.Sources) {
			return nil, &ConfigError{
				Field:  "map count",
				Reason: fmt.Sprintf("%d maps configured but routing lists %d", numMaps, len(cfg.Sources)),
			}
		}
		numMaps = len(cfg.Sources)
	}
	if numMaps <= 0 {
		return nil, &ConfigError{Field: "map count", Reason: fmt.Sprintf("%d is not positive", numMaps)}
	}

	return &SparseConv2D{
		cfg:     cfg,
		ctx:     ctx.withDefaults(),
		numMaps: numMaps,
		passes:  passesFor(cfg.Accumulation),
		state:   Uninitialized,
	}, nil
}

// Dimension builds the routing table against the previous layer's output
// shape and fixes every buffer shape. All validation happens before any
// allocation; on error the layer stays Uninitialized.
func (c *SparseConv2D) Dimension(prev Volume) error {
	if c.state != Uninitialized {
		return stateError("Dimension", c.state, Uninitialized)
	}
	if prev.Maps <= 0 {
		return &ConfigError{Field: "previous map count", Reason: fmt.Sprintf("%d is not positive", prev.Maps)}
	}

	plan, err := routing.Measure(c.numMaps, prev.Maps, c.cfg.Sources)
	if err != nil {
		return fmt.Errorf("SparseConv2D: %w", err)
	}

	geom, err := ComputeGeometry(prev, c.cfg.KernelWidth, c.cfg.KernelHeight,
		c.cfg.StrideX, c.cfg.StrideY, c.numMaps, plan.Kernels())
	if err != nil {
		return err
	}

	if c.cfg.InitialWeights != nil && len(c.cfg.InitialWeights) != geom.WeightLen() {
		return &ConfigError{
			Field:  "initial weights",
			Reason: fmt.Sprintf("%d values, layer needs %d", len(c.cfg.InitialWeights), geom.WeightLen()),
		}
	}
	if c.cfg.InitialBias != nil && len(c.cfg.InitialBias) != geom.BiasLen() {
		return &ConfigError{
			Field:  "initial bias",
			Reason: fmt.Sprintf("%d values, layer needs %d", len(c.cfg.InitialBias), geom.BiasLen()),
		}
	}

	c.table = plan.Populate(make([]int32, plan.AuxLen()))
	c.geom = geom
	c.outputBuf = make([]float64, geom.Output.Len())
	c.deltaBuf = make([]float64, geom.Output.Len())
	c.state = Dimensioned

	c.ctx.Logger.Debug("sparse conv dimensioned",
		"input", geom.Input.String(),
		"output", geom.Output.String(),
		"kernel_blocks", geom.Kernels,
		"routing_len", plan.AuxLen())
	return nil
}

// Initialize sets the initial weights and biases.
func (c *SparseConv2D) Initialize() error {
	if c.state != Dimensioned {
		return stateError("Initialize", c.state, Dimensioned)
	}

	c.weights = make([]float64, c.geom.WeightLen())
	c.biases = make([]float64, c.geom.BiasLen())
	c.gradWeights = make([]float64, len(c.weights))
	c.gradBiases = make([]float64, len(c.biases))

	if c.cfg.InitialWeights != nil {
		copy(c.weights, c.cfg.InitialWeights)
	} else {
		InitWeights(c.weights, c.geom.KernelArea(), c.geom.Input.Maps, c.ctx.RNG)
	}
	if c.cfg.InitialBias != nil {
		copy(c.biases, c.cfg.InitialBias)
	} else {
		InitBias(c.biases)
	}

	c.state = Initialized
	c.ctx.Logger.Debug("sparse conv initialized",
		"weights", len(c.weights),
		"biases", len(c.biases),
		"std_dev", WeightStdDev(c.geom.KernelArea(), c.geom.Input.Maps))
	return nil
}

func (c *SparseConv2D) operands() *Operands {
	return &Operands{
		Geom:       c.geom,
		Table:      c.table,
		Weights:    c.weights,
		Bias:       c.biases,
		Output:     c.outputBuf,
		Delta:      c.deltaBuf,
		WeightGrad: c.gradWeights,
		BiasGrad:   c.gradBiases,
	}
}

// Forward computes the output maps from the previous layer's output.
// The returned slice is the layer's output buffer.
func (c *SparseConv2D) Forward(input []float64) ([]float64, error) {
	if c.state != Ready {
		return nil, stateError("Forward", c.state, Ready)
	}
	if err := checkLen("input", input, c.geom.Input.Len()); err != nil {
		return nil, err
	}

	op := c.operands()
	op.Input = input
	c.passes.forward.Run(c.ctx.Device, op)
	return c.outputBuf, nil
}

// BroadcastDelta zeroes prevDelta and then scatters the layer's delta into
// it through the weights. Overlapping receptive fields are summed.
func (c *SparseConv2D) BroadcastDelta(prevDelta []float64) error {
	if c.state != Ready {
		return stateError("BroadcastDelta", c.state, Ready)
	}
	if err := checkLen("previous delta", prevDelta, c.geom.Input.Len()); err != nil {
		return err
	}

	zeroFill(c.ctx.Device, prevDelta)

	op := c.operands()
	op.PrevDelta = prevDelta
	c.passes.delta.Run(c.ctx.Device, op)
	return nil
}

// AccumulateGradients adds this step's weight and bias gradients, computed
// from the layer's delta and the previous layer's output, into the gradient
// buffers. The weights are not modified.
func (c *SparseConv2D) AccumulateGradients(input []float64) error {
	if c.state != Ready {
		return stateError("AccumulateGradients", c.state, Ready)
	}
	if err := checkLen("input", input, c.geom.Input.Len()); err != nil {
		return err
	}

	op := c.operands()
	op.Input = input
	c.passes.gradient.Run(c.ctx.Device, op)
	return nil
}

// SetDelta copies the successor's error signal into the delta buffer.
func (c *SparseConv2D) SetDelta(delta []float64) error {
	if c.state == Uninitialized {
		return stateError("SetDelta", c.state, Dimensioned)
	}
	if err := checkLen("delta", delta, len(c.deltaBuf)); err != nil {
		return err
	}
	copy(c.deltaBuf, delta)
	return nil
}

// State returns the lifecycle state.
func (c *SparseConv2D) State() State {
	return c.state
}

// Geometry returns the dimensioned shapes. Zero before Dimension.
func (c *SparseConv2D) Geometry() Geometry {
	return c.geom
}

// Table returns the routing table, nil before Dimension.
func (c *SparseConv2D) Table() *routing.Table {
	return c.table
}

// Accumulation returns the conflict resolution strategy of the backward passes.
func (c *SparseConv2D) Accumulation() Accumulation {
	return c.cfg.Accumulation
}

// Output returns the output buffer. Read by the successor's forward pass.
func (c *SparseConv2D) Output() []float64 {
	return c.outputBuf
}

// Delta returns the delta buffer. Written by the successor's backward pass.
func (c *SparseConv2D) Delta() []float64 {
	return c.deltaBuf
}

// Weights returns the weights slice directly.
func (c *SparseConv2D) Weights() []float64 {
	return c.weights
}

// Bias returns the biases slice directly.
func (c *SparseConv2D) Bias() []float64 {
	return c.biases
}

// WeightGrad returns the accumulated weight gradients directly.
func (c *SparseConv2D) WeightGrad() []float64 {
	return c.gradWeights
}

// BiasGrad returns the accumulated bias gradients directly.
func (c *SparseConv2D) BiasGrad() []float64 {
	return c.gradBiases
}

// Params returns all layer parameters flattened (copy), weights first.
func (c *SparseConv2D) Params() []float64 {
	params := make([]float64, len(c.weights)+len(c.biases))
	copy(params, c.weights)
	copy(params[len(c.weights):], c.biases)
	return params
}

// SetParams updates weights and biases from a flattened slice.
func (c *SparseConv2D) SetParams(params []float64) error {
	if c.state != Ready {
		return stateError("SetParams", c.state, Ready)
	}
	if err := checkLen("params", params, len(c.weights)+len(c.biases)); err != nil {
		return err
	}
	copy(c.weights, params[:len(c.weights)])
	copy(c.biases, params[len(c.weights):])
	return nil
}

// Gradients returns all gradients flattened (copy), weights first.
func (c *SparseConv2D) Gradients() []float64 {
	gradients := make([]float64, len(c.gradWeights)+len(c.gradBiases))
	copy(gradients, c.gradWeights)
	copy(gradients[len(c.gradWeights):], c.gradBiases)
	return gradients
}

// ClearGradients zeroes out the accumulated gradients.
func (c *SparseConv2D) ClearGradients() {
	clear(c.gradWeights)
	clear(c.gradBiases)
}

// InSize returns the number of input maps, zero before Dimension.
func (c *SparseConv2D) InSize() int {
	return c.geom.Input.Maps
}

// OutSize returns the number of output maps.
func (c *SparseConv2D) OutSize() int {
	return c.numMaps
}

func (c *SparseConv2D) String() string {
	return fmt.Sprintf("SparseConv2D(maps=%d, kernel=(%d, %d), stride=(%d, %d), accumulation=%s, state=%s)",
		c.numMaps, c.cfg.KernelWidth, c.cfg.KernelHeight, c.cfg.StrideX, c.cfg.StrideY,
		c.cfg.Accumulation, c.state)
}
