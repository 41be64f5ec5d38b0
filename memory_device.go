package accel

import (
	"runtime"
	"unsafe"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/chiyanglin-AStar/rust-gpu-accel-framework/internal/cudriver"
)

// DeviceMemory is memory in the accelerator address space, allocated as
// a single managed span in the unified 64-bit address space. The
// unified mapping is what makes it host-indexable through Slice and
// gives it the Managed capability.
type DeviceMemory[T Scalar] struct {
	wrapper *deviceWrapper
	n       int
	ctx     *Context
}

type deviceWrapper struct {
	dptr cudriver.Devptr
	ctx  *Context
}

func (w *deviceWrapper) destroy() error {
	if w.dptr == 0 {
		return nil
	}
	dptr := w.dptr
	w.dptr = 0
	if !w.ctx.wrapper.isValid() {
		return errors.New("owning context was destroyed before the device memory was freed")
	}
	g := w.ctx.Guard()
	defer g.Release()
	d, err := activeDriver()
	if err != nil {
		return err
	}
	return status("cuMemFree", d.MemFree(dptr))
}

// NewDeviceMemory allocates n elements of device memory on ctx.
// Zero-sized allocation is a rejected precondition and panics; a native
// allocation failure is returned as an error.
func NewDeviceMemory[T Scalar](ctx *Context, n int) (*DeviceMemory[T], error) {
	if n <= 0 {
		panic("accel: zero-sized allocation is forbidden")
	}
	g := ctx.Guard()
	defer g.Release()
	d, err := activeDriver()
	if err != nil {
		return nil, err
	}
	dptr, res := d.MemAllocManaged(uintptr(n) * elemSize[T]())
	if err := status("cuMemAllocManaged", res); err != nil {
		return nil, err
	}
	m := &DeviceMemory[T]{
		wrapper: &deviceWrapper{dptr: dptr, ctx: ctx},
		n:       n,
		ctx:     ctx,
	}
	runtime.AddCleanup(m, finalizeDeviceMemory, m.wrapper)
	return m, nil
}

func finalizeDeviceMemory(w *deviceWrapper) {
	if err := w.destroy(); err != nil {
		klog.Errorf("DeviceMemory cleanup failed: %v", err)
	}
}

// Destroy frees the device allocation. Idempotent; also invoked by
// garbage collection, where failures are only logged.
func (m *DeviceMemory[T]) Destroy() error { return m.wrapper.destroy() }

func (m *DeviceMemory[T]) devptr() cudriver.Devptr {
	if m.wrapper.dptr == 0 {
		panic("accel: use of destroyed DeviceMemory")
	}
	return m.wrapper.dptr
}

func (m *DeviceMemory[T]) HeadAddr() uintptr      { return uintptr(m.devptr()) }
func (m *DeviceMemory[T]) ByteSize() uintptr      { return uintptr(m.n) * elemSize[T]() }
func (m *DeviceMemory[T]) MemoryType() MemoryType { return MemoryDevice }

func (m *DeviceMemory[T]) TryAsSlice() ([]T, bool) { return m.Slice(), true }
func (m *DeviceMemory[T]) TryContext() (*Context, bool) {
	return m.ctx, true
}

func (m *DeviceMemory[T]) Len() int { return m.n }

// Slice returns the allocation as a mutable element slice through its
// unified host mapping. Host access faults the pages over on demand;
// it is correct but much slower than a bulk copy.
func (m *DeviceMemory[T]) Slice() []T {
	return unsafe.Slice((*T)(unsafe.Pointer(m.devptr())), m.n)
}

func (m *DeviceMemory[T]) CopyFrom(src Memory[T]) error { return copyToDevice[T](m, src) }

// Set stores value into every element. Elements of 1, 2 and 4 bytes
// dispatch to the native memset primitive; 8-byte elements have no
// native fill and fall back to the element-wise store loop through the
// unified mapping, which is correct but slower.
func (m *DeviceMemory[T]) Set(value T) error {
	width := elemSize[T]()
	if width == 8 {
		fillSlice(m.Slice(), value)
		return nil
	}
	g := m.ctx.Guard()
	defer g.Release()
	d, err := activeDriver()
	if err != nil {
		return err
	}
	bits := elemBits(value)
	n := uintptr(m.n)
	switch width {
	case 1:
		return status("cuMemsetD8", d.MemsetD8(m.devptr(), uint8(bits), n))
	case 2:
		return status("cuMemsetD16", d.MemsetD16(m.devptr(), uint16(bits), n))
	default:
		return status("cuMemsetD32", d.MemsetD32(m.devptr(), uint32(bits), n))
	}
}

// BufferID returns the unified-memory buffer id of the allocation.
func (m *DeviceMemory[T]) BufferID() (uint64, error) {
	return bufferID(m.ctx, m.HeadAddr())
}

// bufferID queries the driver's unified-memory bookkeeping for the
// buffer id backing addr. Diagnostic use only.
func bufferID(ctx *Context, addr uintptr) (uint64, error) {
	g := ctx.Guard()
	defer g.Release()
	d, err := activeDriver()
	if err != nil {
		return 0, err
	}
	id, res := d.PointerGetAttribute(cudriver.AttributeBufferID, cudriver.Devptr(addr))
	if err := status("cuPointerGetAttribute", res); err != nil {
		return 0, err
	}
	return id, nil
}
