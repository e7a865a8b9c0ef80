package layer

import (
	"math"

	"github.com/FlavioCFOliveira/sparseconv/internal/random"
)

// BiasInitValue is the initial value of every bias.
const BiasInitValue = 0.5

// WeightStdDev returns sqrt(1/(kernelArea*prevMaps)).
func WeightStdDev(kernelArea, prevMaps int) float64 {
	return math.Sqrt(1 / float64(kernelArea*prevMaps))
}

// InitWeights fills dst with N(0, WeightStdDev²) samples. The sampler only
// produces pairs, so for odd lengths the last pair is drawn into scratch and
// its second value dropped.
func InitWeights(dst []float64, kernelArea, prevMaps int, rng random.NormalFiller) {
	stdDev := WeightStdDev(kernelArea, prevMaps)

	even := len(dst) &^ 1
	rng.FillNormal(dst[:even], 0, stdDev)
	if even != len(dst) {
		var pair [2]float64
		rng.FillNormal(pair[:], 0, stdDev)
		dst[even] = pair[0]
	}
}

// InitBias sets every entry of dst to BiasInitValue.
func InitBias(dst []float64) {
	for i := range dst {
		dst[i] = BiasInitValue
	}
}
