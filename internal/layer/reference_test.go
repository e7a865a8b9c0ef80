package layer

import (
	"math/rand"

	"github.com/FlavioCFOliveira/sparseconv/internal/parallel"
)

// reference holds the result of a direct nested-loop evaluation of all three
// passes, written straight from the defining sums.
type reference struct {
	output     []float64
	prevDelta  []float64
	weightGrad []float64
	biasGrad   []float64
}

func referencePasses(c *SparseConv2D, input, delta []float64) reference {
	g := c.Geometry()
	t := c.Table()
	in, out := g.Input, g.Output
	w, b := c.Weights(), c.Bias()

	r := reference{
		output:     make([]float64, out.Len()),
		prevDelta:  make([]float64, in.Len()),
		weightGrad: make([]float64, g.WeightLen()),
		biasGrad:   make([]float64, g.BiasLen()),
	}

	for f := 0; f < out.Maps; f++ {
		for x := 0; x < out.Width; x++ {
			for y := 0; y < out.Height; y++ {
				acc := b[f]
				d := delta[out.Index(f, x, y)]
				for i := 0; i < t.Size(f); i++ {
					k := t.Offset(f) + i
					s := int(t.Sources()[k])
					for kx := 0; kx < g.KernelWidth; kx++ {
						for ky := 0; ky < g.KernelHeight; ky++ {
							inIdx := in.Index(s, x*g.StrideX+kx, y*g.StrideY+ky)
							wIdx := g.KernelIndex(k, kx, ky)
							acc += input[inIdx] * w[wIdx]
							r.prevDelta[inIdx] += d * w[wIdx]
							r.weightGrad[wIdx] += input[inIdx] * d
						}
					}
				}
				r.output[out.Index(f, x, y)] = acc
				r.biasGrad[f] += d
			}
		}
	}
	return r
}

func randomSlice(rng *rand.Rand, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = rng.Float64()*2 - 1
	}
	return out
}

// testContext returns a context that runs passes with real goroutines even
// for tiny tensors.
func testContext(seed uint64) *Context {
	ctx := NewContext(seed)
	ctx.Device = NewCPUDevice(parallel.Config{Enabled: true, NumWorkers: 4, MinChunkSize: 1})
	return ctx
}

// newReadyLayer builds a layer and takes it through Dimension and Initialize.
func newReadyLayer(cfg Config, prev Volume, ctx *Context) (*SparseConv2D, error) {
	c, err := NewSparseConv2D(cfg, ctx)
	if err != nil {
		return nil, err
	}
	if err := c.Dimension(prev); err != nil {
		return nil, err
	}
	if err := c.Initialize(); err != nil {
		return nil, err
	}
	return c, nil
}
