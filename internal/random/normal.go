// Package random provides the normal-sample service used for weight
// initialization.
package random

import (
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// NormalFiller fills a buffer with independent normal samples.
// Implementations generate samples in pairs, so len(dst) must be even.
type NormalFiller interface {
	FillNormal(dst []float64, mean, stdDev float64)
}

// Gonum is a NormalFiller backed by gonum's distuv.Normal over a seeded
// PCG source. It is not safe for concurrent use.
type Gonum struct {
	src rand.Source
}

// NewGonum creates a deterministic sampler for the given seed.
func NewGonum(seed uint64) *Gonum {
	return &Gonum{src: rand.NewSource(seed)}
}

// FillNormal writes len(dst) samples of N(mean, stdDev²) into dst.
func (g *Gonum) FillNormal(dst []float64, mean, stdDev float64) {
	if len(dst)%2 != 0 {
		panic(fmt.Sprintf("random: FillNormal needs an even length, got %d", len(dst)))
	}
	dist := distuv.Normal{Mu: mean, Sigma: stdDev, Src: g.src}
	for i := 0; i < len(dst); i += 2 {
		dst[i] = dist.Rand()
		dst[i+1] = dist.Rand()
	}
}
