// Package layer provides the sparse-connectivity convolution layer and the
// passes that drive it.
package layer

import (
	"fmt"
	"strings"
)

// Volume is the shape of a (maps × width × height) tensor stored flat.
// Element (m, x, y) lives at (m*Width + x)*Height + y.
type Volume struct {
	Maps   int
	Width  int
	Height int
}

// Len returns the number of elements.
func (v Volume) Len() int {
	return v.Maps * v.Width * v.Height
}

// Plane returns the number of elements in one map.
func (v Volume) Plane() int {
	return v.Width * v.Height
}

// Index returns the flat index of (m, x, y).
func (v Volume) Index(m, x, y int) int {
	return (m*v.Width+x)*v.Height + y
}

func (v Volume) String() string {
	return fmt.Sprintf("%dx%dx%d", v.Maps, v.Width, v.Height)
}

// State is the lifecycle stage of a layer. Transitions only move forward.
type State int

const (
	Uninitialized State = iota
	Dimensioned
	Initialized
)

// Ready is the state in which passes may run.
const Ready = Initialized

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Dimensioned:
		return "dimensioned"
	case Initialized:
		return "initialized"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Accumulation selects how the backward passes resolve write conflicts on
// shared targets.
type Accumulation int

const (
	// AccumulateGather assigns every target cell to one worker that sums all
	// of its contributors. Deterministic, no shared writes.
	AccumulateGather Accumulation = iota
	// AccumulateAtomic runs one worker per output cell and adds into shared
	// targets with a compare-and-swap loop.
	AccumulateAtomic
)

func (a Accumulation) String() string {
	switch a {
	case AccumulateGather:
		return "gather"
	case AccumulateAtomic:
		return "atomic"
	default:
		return fmt.Sprintf("Accumulation(%d)", int(a))
	}
}

// ParseAccumulation parses "gather" or "atomic".
func ParseAccumulation(s string) (Accumulation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "gather":
		return AccumulateGather, nil
	case "atomic":
		return AccumulateAtomic, nil
	}
	return 0, &ConfigError{Field: "accumulation", Reason: fmt.Sprintf("unknown strategy %q", s)}
}
