package layer

import (
	"math/rand"
	"testing"
)

// lenetC3 is the LeNet-5 C3 connection scheme: 16 output maps over 6 inputs.
var lenetC3 = [][]int{
	{0, 1, 2}, {1, 2, 3}, {2, 3, 4}, {3, 4, 5}, {4, 5, 0}, {5, 0, 1},
	{0, 1, 2, 3}, {1, 2, 3, 4}, {2, 3, 4, 5}, {3, 4, 5, 0}, {4, 5, 0, 1}, {5, 0, 1, 2},
	{0, 1, 3, 4}, {1, 2, 4, 5}, {0, 2, 3, 5},
	{0, 1, 2, 3, 4, 5},
}

func benchmarkStep(b *testing.B, acc Accumulation) {
	prev := Volume{Maps: 6, Width: 14, Height: 14}
	l, err := newReadyLayer(Config{
		Sources:      lenetC3,
		KernelWidth:  5,
		KernelHeight: 5,
		Accumulation: acc,
	}, prev, NewContext(DefaultSeed))
	if err != nil {
		b.Fatal(err)
	}

	rng := rand.New(rand.NewSource(1))
	input := randomSlice(rng, prev.Len())
	if err := l.SetDelta(randomSlice(rng, l.Geometry().Output.Len())); err != nil {
		b.Fatal(err)
	}
	prevDelta := make([]float64, prev.Len())

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := l.Forward(input); err != nil {
			b.Fatal(err)
		}
		if err := l.BroadcastDelta(prevDelta); err != nil {
			b.Fatal(err)
		}
		if err := l.AccumulateGradients(input); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkStep_Gather(b *testing.B) { benchmarkStep(b, AccumulateGather) }
func BenchmarkStep_Atomic(b *testing.B) { benchmarkStep(b, AccumulateAtomic) }
