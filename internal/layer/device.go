package layer

import (
	"io"
	"log/slog"

	"github.com/FlavioCFOliveira/sparseconv/internal/parallel"
	"github.com/FlavioCFOliveira/sparseconv/internal/random"
)

// DeviceType represents the hardware device used for computation.
type DeviceType int

const (
	CPU DeviceType = iota
)

func (t DeviceType) String() string {
	if t == CPU {
		return "cpu"
	}
	return "unknown"
}

// Device dispatches data-parallel work. ParallelFor applies fn to every index
// in [0, n) and returns only after all calls completed.
type Device interface {
	Type() DeviceType
	IsAvailable() bool
	ParallelFor(n int, fn func(i int))
}

// CPUDevice handles computations on the host CPU with goroutine workers.
type CPUDevice struct {
	Parallel parallel.Config
}

// NewCPUDevice creates a CPU device with the given dispatch config.
func NewCPUDevice(cfg parallel.Config) *CPUDevice {
	return &CPUDevice{Parallel: cfg}
}

func (d *CPUDevice) Type() DeviceType { return CPU }
func (d *CPUDevice) IsAvailable() bool { return true }

// ParallelFor runs fn over [0, n) using parallel.For.
func (d *CPUDevice) ParallelFor(n int, fn func(i int)) {
	parallel.For(n, fn, d.Parallel)
}

// Context carries everything a layer needs from its environment: the device
// that runs passes, the RNG service for initialization and a logger.
type Context struct {
	Device Device
	RNG    random.NormalFiller
	Logger *slog.Logger
}

// DefaultSeed seeds the RNG of contexts created without an explicit one.
const DefaultSeed = 42

// NewContext returns a CPU context with default parallelism, a seeded gonum
// sampler and a silent logger.
func NewContext(seed uint64) *Context {
	return &Context{
		Device: NewCPUDevice(parallel.DefaultConfig()),
		RNG:    random.NewGonum(seed),
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// withDefaults returns a copy of ctx with every nil field filled in.
func (ctx *Context) withDefaults() *Context {
	def := NewContext(DefaultSeed)
	if ctx == nil {
		return def
	}
	out := *ctx
	if out.Device == nil {
		out.Device = def.Device
	}
	if out.RNG == nil {
		out.RNG = def.RNG
	}
	if out.Logger == nil {
		out.Logger = def.Logger
	}
	return &out
}
