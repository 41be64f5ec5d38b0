package accel

import (
	"fmt"
	"runtime"
	"unsafe"

	"github.com/chiyanglin-AStar/rust-gpu-accel-framework/internal/cudriver"
)

// MemoryType tags where a memory object lives. It is used only by the
// copy dispatcher to pick the transfer primitive; it is not a type
// parameter.
//
//go:generate go tool enumer -type=MemoryType -trimprefix=Memory -output=memorytype_string.go
type MemoryType int

const (
	// MemoryHost is ordinary process memory with no device awareness.
	MemoryHost MemoryType = iota
	// MemoryRegistered is process memory registered (pinned) with the
	// driver for DMA-eligible transfer.
	MemoryRegistered
	// MemoryPageLocked is driver-allocated, unpageable host memory.
	MemoryPageLocked
	// MemoryDevice is memory in the accelerator address space.
	MemoryDevice
	// MemoryArray is aligned device memory for texture/surface use.
	// Reserved; every operation on it reports not-supported.
	MemoryArray
)

// Memory is the capability common to all memory kinds: a head address
// and element count defining the byte extent [head, head+bytes), a kind
// tag for dispatch, and optional views. Individual kinds add the
// Continuous and Managed capabilities.
//
// The element type is a type parameter, so copying between memories of
// different element types does not compile.
type Memory[T Scalar] interface {
	// HeadAddr returns the unified address of the first element.
	HeadAddr() uintptr
	// ByteSize returns the size of the extent in bytes.
	ByteSize() uintptr
	// MemoryType returns the kind tag.
	MemoryType() MemoryType
	// TryAsSlice returns the memory as one contiguous element slice,
	// or false if the kind has no contiguous host-accessible view.
	TryAsSlice() ([]T, bool)
	// TryContext returns the owning Context, or false for kinds that
	// are not context-scoped (plain host memory).
	TryContext() (*Context, bool)
	// CopyFrom copies every element of src into this memory. Both
	// extents must have equal byte size, must not alias each other,
	// and must not belong to different contexts; violations panic
	// before any memory is touched.
	CopyFrom(src Memory[T]) error
	// Set stores value into every element.
	Set(value T) error
}

// Continuous is the capability of memory representable as one
// contiguous element sequence. True for the host, registered,
// page-locked and device kinds; false for Array.
type Continuous[T Scalar] interface {
	Memory[T]
	// Len returns the element count.
	Len() int
	// Slice returns the memory as a mutable element slice.
	Slice() []T
}

// Managed is the capability of memory participating in the device's
// unified memory bookkeeping.
type Managed[T Scalar] interface {
	Memory[T]
	// BufferID returns the process-unique id of the backing
	// allocation. Diagnostic use only.
	BufferID() (uint64, error)
}

// copyPrecheck enforces the dispatcher preconditions that hold for
// every kind pair. These are programmer errors, fatal at the call site.
func copyPrecheck[T Scalar](dst, src Memory[T]) {
	if dst.HeadAddr() == src.HeadAddr() {
		panic("accel: copy between identical memory extents")
	}
	if dst.ByteSize() != src.ByteSize() {
		panic(fmt.Sprintf("accel: copy size mismatch: dst is %d bytes, src is %d bytes",
			dst.ByteSize(), src.ByteSize()))
	}
}

// guardForCopy resolves which context must be current for a transfer:
// if both operands are context-scoped they must share one context
// (cross-context copy without an explicit peer mapping is unsupported
// and panics); if one is, that context is guarded; if neither, no guard
// is needed. The returned guard may be nil.
func guardForCopy[T Scalar](dst, src Memory[T]) *ContextGuard {
	dstCtx, dstOk := dst.TryContext()
	srcCtx, srcOk := src.TryContext()
	switch {
	case dstOk && srcOk:
		if !dstCtx.same(srcCtx) {
			panic("accel: copy between memories of different contexts")
		}
		return dstCtx.Guard()
	case dstOk:
		return dstCtx.Guard()
	case srcOk:
		return srcCtx.Guard()
	}
	return nil
}

// copyToHost copies src into dst, where dst is host-accessible. The
// transfer primitive is keyed on src's kind: host-like sources are a
// plain element copy, device sources issue the device-to-host call
// under the resolved context guard.
func copyToHost[T Scalar](dst, src Memory[T]) error {
	copyPrecheck[T](dst, src)
	switch src.MemoryType() {
	case MemoryHost, MemoryRegistered, MemoryPageLocked:
		dstSlice, ok := dst.TryAsSlice()
		if !ok {
			panic("accel: host-side copy destination has no slice view")
		}
		srcSlice, ok := src.TryAsSlice()
		if !ok {
			panic("accel: host-like copy source has no slice view")
		}
		copy(dstSlice, srcSlice)
		return nil
	case MemoryDevice:
		if g := guardForCopy[T](dst, src); g != nil {
			defer g.Release()
		}
		d, err := activeDriver()
		if err != nil {
			return err
		}
		res := d.MemcpyDtoH(unsafe.Pointer(dst.HeadAddr()), cudriver.Devptr(src.HeadAddr()), dst.ByteSize())
		runtime.KeepAlive(dst)
		runtime.KeepAlive(src)
		return status("cuMemcpyDtoH", res)
	default:
		return &NotSupportedError{Op: "copy", Kind: src.MemoryType()}
	}
}

// copyToDevice copies src into dst, where dst is device-resident.
func copyToDevice[T Scalar](dst, src Memory[T]) error {
	copyPrecheck[T](dst, src)
	switch src.MemoryType() {
	case MemoryHost, MemoryRegistered, MemoryPageLocked:
		srcSlice, ok := src.TryAsSlice()
		if !ok {
			panic("accel: host-like copy source has no slice view")
		}
		if g := guardForCopy[T](dst, src); g != nil {
			defer g.Release()
		}
		d, err := activeDriver()
		if err != nil {
			return err
		}
		res := d.MemcpyHtoD(cudriver.Devptr(dst.HeadAddr()), unsafe.Pointer(unsafe.SliceData(srcSlice)), dst.ByteSize())
		runtime.KeepAlive(dst)
		runtime.KeepAlive(src)
		return status("cuMemcpyHtoD", res)
	case MemoryDevice:
		if g := guardForCopy[T](dst, src); g != nil {
			defer g.Release()
		}
		d, err := activeDriver()
		if err != nil {
			return err
		}
		res := d.MemcpyDtoD(cudriver.Devptr(dst.HeadAddr()), cudriver.Devptr(src.HeadAddr()), dst.ByteSize())
		runtime.KeepAlive(dst)
		runtime.KeepAlive(src)
		return status("cuMemcpyDtoD", res)
	default:
		return &NotSupportedError{Op: "copy", Kind: src.MemoryType()}
	}
}

// fillSlice is the element-wise store fallback used by every host-like
// Set and by device elements wider than the native memset primitives.
func fillSlice[T Scalar](s []T, value T) {
	for i := range s {
		s[i] = value
	}
}
