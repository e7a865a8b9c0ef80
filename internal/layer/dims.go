package layer

// Geometry is the fixed shape information of a dimensioned layer.
type Geometry struct {
	Input        Volume
	Output       Volume
	KernelWidth  int
	KernelHeight int
	StrideX      int
	StrideY      int
	Kernels      int // Number of kernel blocks, the sum of all fan-ins.
}

// KernelArea returns KernelWidth*KernelHeight.
func (g Geometry) KernelArea() int {
	return g.KernelWidth * g.KernelHeight
}

// WeightLen returns the number of weight values.
func (g Geometry) WeightLen() int {
	return g.Kernels * g.KernelArea()
}

// BiasLen returns the number of bias values.
func (g Geometry) BiasLen() int {
	return g.Output.Maps
}

// KernelIndex returns the flat weight index of (k, kx, ky).
func (g Geometry) KernelIndex(k, kx, ky int) int {
	return (k*g.KernelWidth+kx)*g.KernelHeight + ky
}

// ComputeGeometry derives the output volume from the previous layer's
// output, the kernel and the stride. Trailing input that does not complete a
// stride step is ignored (floor division).
func ComputeGeometry(prev Volume, kernelWidth, kernelHeight, strideX, strideY, numMaps, kernels int) (Geometry, error) {
	if prev.Width < kernelWidth {
		return Geometry{}, &DimensionError{Axis: "width", Input: prev.Width, Kernel: kernelWidth}
	}
	if prev.Height < kernelHeight {
		return Geometry{}, &DimensionError{Axis: "height", Input: prev.Height, Kernel: kernelHeight}
	}

	return Geometry{
		Input: prev,
		Output: Volume{
			Maps:   numMaps,
			Width:  (prev.Width-kernelWidth)/strideX + 1,
			Height: (prev.Height-kernelHeight)/strideY + 1,
		},
		KernelWidth:  kernelWidth,
		KernelHeight: kernelHeight,
		StrideX:      strideX,
		StrideY:      strideY,
		Kernels:      kernels,
	}, nil
}
