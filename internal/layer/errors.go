package layer

import (
	"errors"
	"fmt"

	"github.com/FlavioCFOliveira/sparseconv/internal/routing"
)

// RoutingIndexError reports a configured source map index that the previous
// layer does not have.
type RoutingIndexError = routing.IndexError

// DimensionError reports an input smaller than the kernel along one axis.
type DimensionError struct {
	Axis   string // "width" or "height"
	Input  int
	Kernel int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("SparseConv2D: input %s %d is smaller than kernel %s %d",
		e.Axis, e.Input, e.Axis, e.Kernel)
}

// ConfigError reports an invalid configuration value.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("SparseConv2D: invalid %s: %s", e.Field, e.Reason)
}

var (
	// ErrState is returned when an operation runs in the wrong lifecycle state.
	ErrState = errors.New("invalid layer state")
	// ErrShape is returned when a caller buffer does not match the layer shape.
	ErrShape = errors.New("buffer shape mismatch")
)

func stateError(op string, have, want State) error {
	return fmt.Errorf("SparseConv2D: %s needs state %s, layer is %s: %w", op, want, have, ErrState)
}

func checkLen(name string, buf []float64, want int) error {
	if len(buf) != want {
		return fmt.Errorf("SparseConv2D: %s has %d values, want %d: %w", name, len(buf), want, ErrShape)
	}
	return nil
}
