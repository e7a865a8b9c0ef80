package layer

import (
	"math"
	"sync/atomic"
	"unsafe"
)

// atomicAddFloat64 adds delta to *addr with a compare-and-swap loop.
func atomicAddFloat64(addr *float64, delta float64) {
	p := (*uint64)(unsafe.Pointer(addr))
	for {
		old := atomic.LoadUint64(p)
		next := math.Float64bits(math.Float64frombits(old) + delta)
		if atomic.CompareAndSwapUint64(p, old, next) {
			return
		}
	}
}
