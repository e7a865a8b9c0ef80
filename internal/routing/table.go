// Package routing builds the flat routing table that maps every output
// feature map to the input feature maps feeding it.
//
// The table is a single []int32 arena with three regions:
//
//	||   sizes (M)    ||   offsets (M)   ||          sources (K)          ||
//	||  1  |  3  |  2 ||  0  |  1  |  4  ||  0 | 1 | 2 | 4 | 0 | 3       ||
//
// offsets is the prefix sum of sizes, so the sources of output map f are
// sources[offsets[f] : offsets[f]+sizes[f]] and the kernel block for the
// i-th source of f is kernel index offsets[f]+i.
package routing

import (
	"fmt"
)

// IndexError reports a source index outside the predecessor's map range.
type IndexError struct {
	Output    int // Output map whose list holds the bad index.
	Position  int // Position of the bad index in that list.
	Index     int // The offending source index.
	NumInputs int // Number of input maps available.
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("routing: input index %d (output map %d, position %d) out of range [0..%d]",
		e.Index, e.Output, e.Position, e.NumInputs-1)
}

// Plan is a validated routing description whose storage has not been
// populated yet. AuxLen reports how much backing storage Populate needs.
type Plan struct {
	numOutputs int
	numInputs  int
	sourcesOf  [][]int // nil means full connection
	kernels    int
}

// Measure validates a routing description and sizes its table.
// A nil sourcesOf auto-generates full connection: every output map reads
// input maps [0, numInputs) in order.
func Measure(numOutputs, numInputs int, sourcesOf [][]int) (Plan, error) {
	if numOutputs < 0 || numInputs < 0 {
		return Plan{}, fmt.Errorf("routing: negative map count (outputs=%d, inputs=%d)", numOutputs, numInputs)
	}

	if sourcesOf == nil {
		return Plan{
			numOutputs: numOutputs,
			numInputs:  numInputs,
			kernels:    numOutputs * numInputs,
		}, nil
	}

	if len(sourcesOf) != numOutputs {
		return Plan{}, fmt.Errorf("routing: mapping lists %d output maps, want %d", len(sourcesOf), numOutputs)
	}

	kernels := 0
	for f, sources := range sourcesOf {
		for i, s := range sources {
			if s < 0 || s >= numInputs {
				return Plan{}, &IndexError{Output: f, Position: i, Index: s, NumInputs: numInputs}
			}
		}
		kernels += len(sources)
	}

	return Plan{
		numOutputs: numOutputs,
		numInputs:  numInputs,
		sourcesOf:  sourcesOf,
		kernels:    kernels,
	}, nil
}

// NumOutputs returns M.
func (p Plan) NumOutputs() int { return p.numOutputs }

// NumInputs returns N.
func (p Plan) NumInputs() int { return p.numInputs }

// Kernels returns K, the total number of kernel blocks (sum of fan-ins).
func (p Plan) Kernels() int { return p.kernels }

// AuxLen returns the arena length required by Populate: 2*M + K.
func (p Plan) AuxLen() int { return 2*p.numOutputs + p.kernels }

func (p Plan) sizeOf(f int) int {
	if p.sourcesOf == nil {
		return p.numInputs
	}
	return len(p.sourcesOf[f])
}

func (p Plan) sourceAt(f, i int) int {
	if p.sourcesOf == nil {
		return i
	}
	return p.sourcesOf[f][i]
}

// Populate writes the table into dst, which must hold at least AuxLen
// entries, and returns a Table viewing it. dst is retained.
func (p Plan) Populate(dst []int32) *Table {
	m := p.numOutputs
	if len(dst) < p.AuxLen() {
		panic(fmt.Sprintf("routing: arena length %d, need %d", len(dst), p.AuxLen()))
	}
	arena := dst[:p.AuxLen()]

	sizes := arena[:m]
	offsets := arena[m : 2*m]
	sources := arena[2*m:]

	offset := 0
	for f := 0; f < m; f++ {
		n := p.sizeOf(f)
		sizes[f] = int32(n)
		offsets[f] = int32(offset)
		for i := 0; i < n; i++ {
			sources[offset+i] = int32(p.sourceAt(f, i))
		}
		offset += n
	}

	t := &Table{
		arena:      arena,
		numOutputs: m,
		numInputs:  p.numInputs,
	}
	t.buildOwners()
	t.buildReaders()
	return t
}

// Build measures and populates a table in one step.
func Build(numOutputs, numInputs int, sourcesOf [][]int) (*Table, error) {
	plan, err := Measure(numOutputs, numInputs, sourcesOf)
	if err != nil {
		return nil, err
	}
	return plan.Populate(make([]int32, plan.AuxLen())), nil
}
