package opt

// Rated is an optimizer with an adjustable learning rate.
type Rated interface {
	LR() float64
	SetLR(lr float64)
}

// StepLR decays the learning rate by gamma every stepSize steps.
type StepLR struct {
	optimizer Rated
	stepSize  int
	gamma     float64
	lastStep  int
}

// NewStepLR creates a step decay scheduler. A non-positive stepSize never decays.
func NewStepLR(optimizer Rated, stepSize int, gamma float64) *StepLR {
	return &StepLR{
		optimizer: optimizer,
		stepSize:  stepSize,
		gamma:     gamma,
	}
}

// Step advances the schedule by one training step.
func (s *StepLR) Step() {
	s.lastStep++
	if s.stepSize > 0 && s.lastStep%s.stepSize == 0 {
		s.optimizer.SetLR(s.optimizer.LR() * s.gamma)
	}
}

// GetLR returns the current learning rate.
func (s *StepLR) GetLR() float64 {
	return s.optimizer.LR()
}
