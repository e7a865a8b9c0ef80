package layer

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FlavioCFOliveira/sparseconv/internal/parallel"
)

func TestNewSparseConv2D_ConfigErrors(t *testing.T) {
	tests := []struct {
		name  string
		cfg   Config
		field string
	}{
		{"zero kernel width", Config{NumMaps: 1, KernelWidth: 0, KernelHeight: 3}, "kernel width"},
		{"negative kernel height", Config{NumMaps: 1, KernelWidth: 3, KernelHeight: -1}, "kernel height"},
		{"negative stride", Config{NumMaps: 1, KernelWidth: 3, KernelHeight: 3, StrideY: -2}, "stride y"},
		{"no maps", Config{KernelWidth: 3, KernelHeight: 3}, "map count"},
		{"empty routing", Config{KernelWidth: 3, KernelHeight: 3, Sources: [][]int{}}, "map count"},
		{"map count disagrees", Config{NumMaps: 3, KernelWidth: 3, KernelHeight: 3, Sources: [][]int{{0}}}, "map count"},
		{"unknown accumulation", Config{NumMaps: 1, KernelWidth: 1, KernelHeight: 1, Accumulation: 7}, "accumulation"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := NewSparseConv2D(tt.cfg, nil)
			assert.Nil(t, l)
			var cfgErr *ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestNewSparseConv2D_Defaults(t *testing.T) {
	l, err := NewSparseConv2D(Config{Sources: [][]int{{0}, {0}}, KernelWidth: 2, KernelHeight: 2}, nil)
	require.NoError(t, err)
	assert.Equal(t, Uninitialized, l.State())
	assert.Equal(t, 2, l.OutSize())
	assert.Equal(t, AccumulateGather, l.Accumulation())
	assert.Contains(t, l.String(), "stride=(1, 1)")
}

func TestDimension_RoutingIndexError(t *testing.T) {
	l, err := NewSparseConv2D(Config{
		Sources:      [][]int{{0, 1}, {2}},
		KernelWidth:  3,
		KernelHeight: 3,
	}, nil)
	require.NoError(t, err)

	err = l.Dimension(Volume{Maps: 2, Width: 8, Height: 8})
	var idxErr *RoutingIndexError
	require.True(t, errors.As(err, &idxErr), "got %v", err)
	assert.Equal(t, 2, idxErr.Index)
	assert.Equal(t, 2, idxErr.NumInputs)
	assert.Contains(t, err.Error(), "2")
	assert.Contains(t, err.Error(), "[0..1]")

	assert.Equal(t, Uninitialized, l.State())
	assert.Nil(t, l.Table())
	assert.Nil(t, l.Output())
	assert.ErrorIs(t, l.Initialize(), ErrState)
}

func TestDimension_InputSmallerThanKernel(t *testing.T) {
	l, err := NewSparseConv2D(Config{NumMaps: 2, KernelWidth: 3, KernelHeight: 3}, nil)
	require.NoError(t, err)

	err = l.Dimension(Volume{Maps: 1, Width: 2, Height: 2})
	var dimErr *DimensionError
	require.ErrorAs(t, err, &dimErr)
	assert.Equal(t, Uninitialized, l.State())
	assert.Nil(t, l.Table())
	assert.Nil(t, l.Delta())
}

func TestDimension_InitialParameterLength(t *testing.T) {
	l, err := NewSparseConv2D(Config{
		NumMaps:        1,
		KernelWidth:    2,
		KernelHeight:   2,
		InitialWeights: []float64{1, 2, 3},
	}, nil)
	require.NoError(t, err)

	var cfgErr *ConfigError
	require.ErrorAs(t, l.Dimension(Volume{Maps: 1, Width: 4, Height: 4}), &cfgErr)
	assert.Equal(t, "initial weights", cfgErr.Field)
	assert.Equal(t, Uninitialized, l.State())

	l, err = NewSparseConv2D(Config{NumMaps: 2, KernelWidth: 2, KernelHeight: 2, InitialBias: []float64{1}}, nil)
	require.NoError(t, err)
	require.ErrorAs(t, l.Dimension(Volume{Maps: 1, Width: 4, Height: 4}), &cfgErr)
	assert.Equal(t, "initial bias", cfgErr.Field)
}

func TestDimension_NoPreviousMaps(t *testing.T) {
	l, err := NewSparseConv2D(Config{NumMaps: 1, KernelWidth: 1, KernelHeight: 1}, nil)
	require.NoError(t, err)
	var cfgErr *ConfigError
	require.ErrorAs(t, l.Dimension(Volume{Maps: 0, Width: 4, Height: 4}), &cfgErr)
}

func TestLifecycle(t *testing.T) {
	l, err := NewSparseConv2D(Config{NumMaps: 2, KernelWidth: 3, KernelHeight: 3, StrideX: 2, StrideY: 2}, nil)
	require.NoError(t, err)

	input := make([]float64, 3*5*5)
	_, err = l.Forward(input)
	assert.ErrorIs(t, err, ErrState)
	assert.ErrorIs(t, l.Initialize(), ErrState)
	assert.ErrorIs(t, l.SetDelta(nil), ErrState)

	require.NoError(t, l.Dimension(Volume{Maps: 3, Width: 5, Height: 5}))
	assert.Equal(t, Dimensioned, l.State())
	assert.Equal(t, Volume{Maps: 2, Width: 2, Height: 2}, l.Geometry().Output)
	assert.Equal(t, 6, l.Table().Kernels())
	assert.Equal(t, 3, l.InSize())
	assert.Len(t, l.Output(), 8)
	assert.Len(t, l.Delta(), 8)

	assert.ErrorIs(t, l.Dimension(Volume{Maps: 3, Width: 9, Height: 9}), ErrState)
	_, err = l.Forward(input)
	assert.ErrorIs(t, err, ErrState)
	assert.ErrorIs(t, l.BroadcastDelta(input), ErrState)
	assert.ErrorIs(t, l.AccumulateGradients(input), ErrState)

	require.NoError(t, l.Initialize())
	assert.Equal(t, Ready, l.State())
	assert.ErrorIs(t, l.Initialize(), ErrState)
	assert.ErrorIs(t, l.Dimension(Volume{Maps: 3, Width: 5, Height: 5}), ErrState)

	out, err := l.Forward(input)
	require.NoError(t, err)
	assert.Equal(t, l.Output(), out)
	require.NoError(t, l.BroadcastDelta(make([]float64, len(input))))
	require.NoError(t, l.AccumulateGradients(input))
}

func TestPasses_ShapeErrors(t *testing.T) {
	l, err := newReadyLayer(Config{NumMaps: 1, KernelWidth: 2, KernelHeight: 2}, Volume{Maps: 1, Width: 3, Height: 3}, nil)
	require.NoError(t, err)

	_, err = l.Forward(make([]float64, 8))
	assert.ErrorIs(t, err, ErrShape)
	assert.ErrorIs(t, l.BroadcastDelta(make([]float64, 10)), ErrShape)
	assert.ErrorIs(t, l.AccumulateGradients(nil), ErrShape)
	assert.ErrorIs(t, l.SetDelta(make([]float64, 3)), ErrShape)
	assert.ErrorIs(t, l.SetParams(make([]float64, 4)), ErrShape)
}

func TestParams_RoundTrip(t *testing.T) {
	l, err := newReadyLayer(Config{Sources: [][]int{{1}, {0, 1}}, KernelWidth: 1, KernelHeight: 2}, Volume{Maps: 2, Width: 2, Height: 2}, nil)
	require.NoError(t, err)

	params := []float64{1, 2, 3, 4, 5, 6, 7, 8}
	require.NoError(t, l.SetParams(params))
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6}, l.Weights())
	assert.Equal(t, []float64{7, 8}, l.Bias())
	assert.Equal(t, params, l.Params())
	assert.Len(t, l.Gradients(), 8)
}

func TestContext_Logging(t *testing.T) {
	var buf bytes.Buffer
	ctx := &Context{
		Device: NewCPUDevice(parallel.Sequential()),
		Logger: slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})),
	}
	_, err := newReadyLayer(Config{NumMaps: 1, KernelWidth: 1, KernelHeight: 1}, Volume{Maps: 1, Width: 2, Height: 2}, ctx)
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "sparse conv dimensioned")
	assert.Contains(t, buf.String(), "output=1x2x2")
	assert.Contains(t, buf.String(), "sparse conv initialized")
}

func TestCPUDevice(t *testing.T) {
	d := NewCPUDevice(parallel.DefaultConfig())
	assert.Equal(t, CPU, d.Type())
	assert.True(t, d.IsAvailable())
	assert.Equal(t, "cpu", d.Type().String())

	hits := make([]int, 100)
	d.ParallelFor(len(hits), func(i int) { hits[i]++ })
	for _, h := range hits {
		assert.Equal(t, 1, h)
	}
}

func TestParseAccumulation(t *testing.T) {
	acc, err := ParseAccumulation("Atomic")
	require.NoError(t, err)
	assert.Equal(t, AccumulateAtomic, acc)

	acc, err = ParseAccumulation("")
	require.NoError(t, err)
	assert.Equal(t, AccumulateGather, acc)

	_, err = ParseAccumulation("lockfree")
	var cfgErr *ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}
