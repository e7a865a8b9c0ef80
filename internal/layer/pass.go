package layer

import (
	"github.com/FlavioCFOliveira/sparseconv/internal/routing"
)

// PassKind identifies one of the per-step passes.
type PassKind int

const (
	PassForward PassKind = iota
	PassBackwardDelta
	PassWeightGradient
)

func (k PassKind) String() string {
	switch k {
	case PassForward:
		return "forward"
	case PassBackwardDelta:
		return "backward-delta"
	case PassWeightGradient:
		return "weight-gradient"
	default:
		return "unknown"
	}
}

// Operands are the buffers a pass reads and writes. Weights, Bias, Input and
// Table are read-only during every pass.
type Operands struct {
	Geom    Geometry
	Table   *routing.Table
	Weights []float64
	Bias    []float64

	Input      []float64 // previous layer output, Geom.Input
	Output     []float64 // Geom.Output
	Delta      []float64 // Geom.Output
	PrevDelta  []float64 // previous layer delta, Geom.Input
	WeightGrad []float64 // Geom.WeightLen()
	BiasGrad   []float64 // Geom.BiasLen()
}

// Pass is one data-parallel step over a layer. Run returns after all of its
// work is visible.
type Pass interface {
	Kind() PassKind
	Run(dev Device, op *Operands)
}

// passSet is the fixed pass selection of a layer.
type passSet struct {
	forward  Pass
	delta    Pass
	gradient Pass
}

func passesFor(acc Accumulation) passSet {
	if acc == AccumulateAtomic {
		return passSet{forward: forwardPass{}, delta: scatterDeltaPass{}, gradient: scatterGradientPass{}}
	}
	return passSet{forward: forwardPass{}, delta: gatherDeltaPass{}, gradient: gatherGradientPass{}}
}

// zeroFill clears buf on dev.
func zeroFill(dev Device, buf []float64) {
	dev.ParallelFor(len(buf), func(i int) {
		buf[i] = 0
	})
}

// forwardPass writes every output cell exactly once:
//
//	out[f][x][y] = bias[f] + Σ_i Σ_kx,ky in[s_i][x*sx+kx][y*sy+ky] * w[off_f+i][kx][ky]
type forwardPass struct{}

func (forwardPass) Kind() PassKind { return PassForward }

func (forwardPass) Run(dev Device, op *Operands) {
	g := op.Geom
	in, out := g.Input, g.Output
	kw, kh := g.KernelWidth, g.KernelHeight
	area := g.KernelArea()
	plane := out.Plane()
	sources := op.Table.Sources()

	dev.ParallelFor(out.Len(), func(idx int) {
		f := idx / plane
		x := (idx % plane) / out.Height
		y := idx % out.Height
		x0, y0 := x*g.StrideX, y*g.StrideY

		acc := op.Bias[f]
		off := op.Table.Offset(f)
		for k := off; k < off+op.Table.Size(f); k++ {
			s := int(sources[k])
			for kx := 0; kx < kw; kx++ {
				inBase := in.Index(s, x0+kx, y0)
				wBase := k*area + kx*kh
				inRow := op.Input[inBase : inBase+kh]
				wRow := op.Weights[wBase : wBase+kh]
				for ky, v := range inRow {
					acc += v * wRow[ky]
				}
			}
		}
		op.Output[idx] = acc
	})
}

// gatherDeltaPass gives each previous-layer cell to one worker, which sums
// delta*weight over every (output cell, kernel offset) that reads it.
// PrevDelta must already be zeroed.
type gatherDeltaPass struct{}

func (gatherDeltaPass) Kind() PassKind { return PassBackwardDelta }

func (gatherDeltaPass) Run(dev Device, op *Operands) {
	g := op.Geom
	in, out := g.Input, g.Output
	kw, kh := g.KernelWidth, g.KernelHeight
	sx, sy := g.StrideX, g.StrideY
	plane := in.Plane()

	dev.ParallelFor(in.Len(), func(idx int) {
		s := idx / plane
		px := (idx % plane) / in.Height
		py := idx % in.Height

		sum := 0.0
		for _, k32 := range op.Table.Readers(s) {
			k := int(k32)
			f := op.Table.Owner(k)
			for kx := 0; kx < kw && kx <= px; kx++ {
				dx := px - kx
				if dx%sx != 0 || dx/sx >= out.Width {
					continue
				}
				x := dx / sx
				for ky := 0; ky < kh && ky <= py; ky++ {
					dy := py - ky
					if dy%sy != 0 || dy/sy >= out.Height {
						continue
					}
					sum += op.Delta[out.Index(f, x, dy/sy)] * op.Weights[g.KernelIndex(k, kx, ky)]
				}
			}
		}
		op.PrevDelta[idx] += sum
	})
}

// scatterDeltaPass gives each output cell to one worker, which adds its
// contribution to every previous-layer cell it read. PrevDelta must already
// be zeroed.
type scatterDeltaPass struct{}

func (scatterDeltaPass) Kind() PassKind { return PassBackwardDelta }

func (scatterDeltaPass) Run(dev Device, op *Operands) {
	g := op.Geom
	in, out := g.Input, g.Output
	kw, kh := g.KernelWidth, g.KernelHeight
	plane := out.Plane()

	dev.ParallelFor(out.Len(), func(idx int) {
		f := idx / plane
		x := (idx % plane) / out.Height
		y := idx % out.Height
		x0, y0 := x*g.StrideX, y*g.StrideY
		d := op.Delta[idx]

		off := op.Table.Offset(f)
		for k := off; k < off+op.Table.Size(f); k++ {
			s := op.Table.Source(k)
			for kx := 0; kx < kw; kx++ {
				for ky := 0; ky < kh; ky++ {
					atomicAddFloat64(&op.PrevDelta[in.Index(s, x0+kx, y0+ky)], d*op.Weights[g.KernelIndex(k, kx, ky)])
				}
			}
		}
	})
}

// gatherGradientPass gives each weight cell and each bias cell to one
// worker, which sums over all output positions.
type gatherGradientPass struct{}

func (gatherGradientPass) Kind() PassKind { return PassWeightGradient }

func (gatherGradientPass) Run(dev Device, op *Operands) {
	g := op.Geom
	in, out := g.Input, g.Output
	kh := g.KernelHeight
	area := g.KernelArea()
	plane := out.Plane()

	dev.ParallelFor(g.WeightLen(), func(idx int) {
		k := idx / area
		kx := (idx % area) / kh
		ky := idx % kh
		f := op.Table.Owner(k)
		s := op.Table.Source(k)

		sum := 0.0
		for x := 0; x < out.Width; x++ {
			for y := 0; y < out.Height; y++ {
				sum += op.Input[in.Index(s, x*g.StrideX+kx, y*g.StrideY+ky)] * op.Delta[out.Index(f, x, y)]
			}
		}
		op.WeightGrad[idx] += sum
	})

	dev.ParallelFor(out.Maps, func(f int) {
		sum := 0.0
		for _, d := range op.Delta[f*plane : (f+1)*plane] {
			sum += d
		}
		op.BiasGrad[f] += sum
	})
}

// scatterGradientPass gives each output cell to one worker, which adds into
// the weight and bias cells it contributes to.
type scatterGradientPass struct{}

func (scatterGradientPass) Kind() PassKind { return PassWeightGradient }

func (scatterGradientPass) Run(dev Device, op *Operands) {
	g := op.Geom
	in, out := g.Input, g.Output
	kw, kh := g.KernelWidth, g.KernelHeight
	plane := out.Plane()

	dev.ParallelFor(out.Len(), func(idx int) {
		f := idx / plane
		x := (idx % plane) / out.Height
		y := idx % out.Height
		x0, y0 := x*g.StrideX, y*g.StrideY
		d := op.Delta[idx]

		off := op.Table.Offset(f)
		for k := off; k < off+op.Table.Size(f); k++ {
			s := op.Table.Source(k)
			for kx := 0; kx < kw; kx++ {
				for ky := 0; ky < kh; ky++ {
					atomicAddFloat64(&op.WeightGrad[g.KernelIndex(k, kx, ky)], op.Input[in.Index(s, x0+kx, y0+ky)]*d)
				}
			}
		}
		atomicAddFloat64(&op.BiasGrad[f], d)
	})
}
