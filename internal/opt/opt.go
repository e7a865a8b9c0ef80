// Package opt provides optimizers that apply accumulated layer gradients.
package opt

import (
	"gonum.org/v1/gonum/floats"
)

// Trainable exposes a layer's parameters and accumulated gradients.
// The slices are the layer's own buffers.
type Trainable interface {
	Weights() []float64
	Bias() []float64
	WeightGrad() []float64
	BiasGrad() []float64
	ClearGradients()
}

// Optimizer updates a layer from its accumulated gradients and clears them.
type Optimizer interface {
	Update(t Trainable)
}

// SGD (Stochastic Gradient Descent) optimizer.
type SGD struct {
	LearningRate float64
}

// StepInPlace updates params in-place: params = params - lr * gradients
func (s *SGD) StepInPlace(params, gradients []float64) {
	floats.AddScaled(params, -s.LearningRate, gradients)
}

// Update applies one SGD step to weights and biases, then clears gradients.
func (s *SGD) Update(t Trainable) {
	s.StepInPlace(t.Weights(), t.WeightGrad())
	s.StepInPlace(t.Bias(), t.BiasGrad())
	t.ClearGradients()
}

// LR returns the learning rate.
func (s *SGD) LR() float64 { return s.LearningRate }

// SetLR sets the learning rate.
func (s *SGD) SetLR(lr float64) { s.LearningRate = lr }

// Momentum is SGD with a velocity term:
//
//	v = beta*v + g
//	p = p - lr*v
//
// Velocities are sized on the first Update; an optimizer serves one layer.
type Momentum struct {
	LearningRate float64
	Beta         float64

	velWeights []float64
	velBiases  []float64
}

// NewMomentum creates a momentum optimizer.
func NewMomentum(learningRate, beta float64) *Momentum {
	return &Momentum{LearningRate: learningRate, Beta: beta}
}

// Update applies one momentum step to weights and biases, then clears gradients.
func (m *Momentum) Update(t Trainable) {
	if m.velWeights == nil {
		m.velWeights = make([]float64, len(t.Weights()))
		m.velBiases = make([]float64, len(t.Bias()))
	}
	m.step(t.Weights(), t.WeightGrad(), m.velWeights)
	m.step(t.Bias(), t.BiasGrad(), m.velBiases)
	t.ClearGradients()
}

func (m *Momentum) step(params, gradients, vel []float64) {
	floats.Scale(m.Beta, vel)
	floats.Add(vel, gradients)
	floats.AddScaled(params, -m.LearningRate, vel)
}

// LR returns the learning rate.
func (m *Momentum) LR() float64 { return m.LearningRate }

// SetLR sets the learning rate.
func (m *Momentum) SetLR(lr float64) { m.LearningRate = lr }
