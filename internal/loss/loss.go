// Package loss provides the objectives used to produce the output delta of
// a sparse convolution layer during training.
package loss

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// Loss is a loss function with derivative.
type Loss interface {
	// Forward computes the loss between predicted and target values.
	Forward(yPred, yTrue []float64) float64

	// BackwardInPlace writes dL/dyPred into grad. grad may alias the
	// layer's delta buffer.
	BackwardInPlace(yPred, yTrue, grad []float64)
}

// SumSquared is 0.5 * sum((y_pred - y_true)^2). Its gradient is the raw
// residual, which is the delta the layer expects from a linear successor.
type SumSquared struct{}

func (SumSquared) Forward(yPred, yTrue []float64) float64 {
	checkLen("SumSquared", yPred, yTrue)
	d := floats.Distance(yPred, yTrue, 2)
	return 0.5 * d * d
}

func (SumSquared) BackwardInPlace(yPred, yTrue, grad []float64) {
	checkLen("SumSquared", yPred, yTrue, grad)
	floats.SubTo(grad, yPred, yTrue)
}

// MSE (Mean Squared Error) loss.
type MSE struct{}

// Forward computes mean squared error: (1/n) * sum((y_pred - y_true)^2)
func (MSE) Forward(yPred, yTrue []float64) float64 {
	checkLen("MSE", yPred, yTrue)
	if len(yPred) == 0 {
		return 0
	}
	d := floats.Distance(yPred, yTrue, 2)
	return d * d / float64(len(yPred))
}

// BackwardInPlace computes dL/dy_pred = (2/n) * (y_pred - y_true).
func (MSE) BackwardInPlace(yPred, yTrue, grad []float64) {
	checkLen("MSE", yPred, yTrue, grad)
	if len(yPred) == 0 {
		return
	}
	floats.SubTo(grad, yPred, yTrue)
	floats.Scale(2/float64(len(yPred)), grad)
}

// Huber loss for robust regression.
type Huber struct {
	Delta float64 // threshold for the quadratic/linear transition
}

// NewHuber creates a Huber loss with the given delta.
func NewHuber(delta float64) *Huber {
	return &Huber{Delta: delta}
}

// Forward computes the mean Huber loss.
func (h Huber) Forward(yPred, yTrue []float64) float64 {
	checkLen("Huber", yPred, yTrue)
	if len(yPred) == 0 {
		return 0
	}
	var sum float64
	for i := range yPred {
		diff := math.Abs(yPred[i] - yTrue[i])
		if diff <= h.Delta {
			sum += 0.5 * diff * diff
		} else {
			sum += h.Delta * (diff - 0.5*h.Delta)
		}
	}
	return sum / float64(len(yPred))
}

// BackwardInPlace computes the gradient of the mean Huber loss.
func (h Huber) BackwardInPlace(yPred, yTrue, grad []float64) {
	checkLen("Huber", yPred, yTrue, grad)
	n := float64(len(yPred))
	for i := range yPred {
		diff := yPred[i] - yTrue[i]
		if math.Abs(diff) <= h.Delta {
			grad[i] = diff / n
		} else {
			grad[i] = h.Delta * math.Copysign(1, diff) / n
		}
	}
}

// ByName returns the loss registered under name: "sse", "mse" or "huber".
// Huber uses a threshold of 1.
func ByName(name string) (Loss, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "sse":
		return SumSquared{}, nil
	case "mse":
		return MSE{}, nil
	case "huber":
		return NewHuber(1), nil
	}
	return nil, fmt.Errorf("loss: unknown loss %q", name)
}

func checkLen(name string, a []float64, rest ...[]float64) {
	for _, b := range rest {
		if len(b) != len(a) {
			panic(name + ": slices must have same length")
		}
	}
}
