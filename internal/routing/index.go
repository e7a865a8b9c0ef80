package routing

// Table is an immutable routing table. All slices returned by its accessors
// view internal storage and must not be modified.
type Table struct {
	arena      []int32
	numOutputs int
	numInputs  int

	// owners[k] is the output map owning kernel block k.
	owners []int32

	// Inverse index with the same layout as arena, keyed by input map:
	// [sizes N][offsets N][kernel blocks K], blocks in ascending order.
	readers []int32
}

// NumOutputs returns M.
func (t *Table) NumOutputs() int { return t.numOutputs }

// NumInputs returns N.
func (t *Table) NumInputs() int { return t.numInputs }

// Kernels returns K = sum(sizes).
func (t *Table) Kernels() int { return len(t.arena) - 2*t.numOutputs }

// Arena returns the raw flat table.
func (t *Table) Arena() []int32 { return t.arena }

// Sizes returns the fan-in of every output map.
func (t *Table) Sizes() []int32 { return t.arena[:t.numOutputs] }

// Offsets returns the prefix-sum start of every output map's source list.
func (t *Table) Offsets() []int32 { return t.arena[t.numOutputs : 2*t.numOutputs] }

// Sources returns the concatenated source lists.
func (t *Table) Sources() []int32 { return t.arena[2*t.numOutputs:] }

// Size returns the fan-in of output map f.
func (t *Table) Size(f int) int { return int(t.arena[f]) }

// Offset returns the first kernel index of output map f.
func (t *Table) Offset(f int) int { return int(t.arena[t.numOutputs+f]) }

// SourcesOf returns the source maps of output map f in insertion order.
func (t *Table) SourcesOf(f int) []int32 {
	off := t.Offset(f)
	return t.Sources()[off : off+t.Size(f)]
}

// Source returns the input map read by kernel block k.
func (t *Table) Source(k int) int { return int(t.arena[2*t.numOutputs+k]) }

// Owner returns the output map that kernel block k belongs to.
func (t *Table) Owner(k int) int { return int(t.owners[k]) }

// Readers returns the kernel blocks that read input map s, ascending.
func (t *Table) Readers(s int) []int32 {
	n := t.numInputs
	size := int(t.readers[s])
	off := int(t.readers[n+s])
	return t.readers[2*n+off : 2*n+off+size]
}

func (t *Table) buildOwners() {
	t.owners = make([]int32, t.Kernels())
	sizes := t.Sizes()
	k := 0
	for f, n := range sizes {
		for i := int32(0); i < n; i++ {
			t.owners[k] = int32(f)
			k++
		}
	}
}

// buildReaders inverts the table with a counting sort over sources.
func (t *Table) buildReaders() {
	n := t.numInputs
	kernels := t.Kernels()
	t.readers = make([]int32, 2*n+kernels)

	sizes := t.readers[:n]
	offsets := t.readers[n : 2*n]
	blocks := t.readers[2*n:]

	sources := t.Sources()
	for _, s := range sources {
		sizes[s]++
	}

	offset := int32(0)
	for s := 0; s < n; s++ {
		offsets[s] = offset
		offset += sizes[s]
	}

	fill := make([]int32, n)
	for k, s := range sources {
		blocks[offsets[s]+fill[s]] = int32(k)
		fill[s]++
	}
}
