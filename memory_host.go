package accel

import (
	"runtime"
	"unsafe"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// HostMemory is plain process memory allocated by the Go runtime, with
// no device awareness and no owning context. It is the cheap staging
// kind: allocation never touches the driver.
type HostMemory[T Scalar] struct {
	data []T
}

// NewHostMemory allocates n elements of ordinary host memory.
// Zero-sized allocation is a rejected precondition and panics.
func NewHostMemory[T Scalar](n int) *HostMemory[T] {
	if n <= 0 {
		panic("accel: zero-sized allocation is forbidden")
	}
	return &HostMemory[T]{data: make([]T, n)}
}

// HostMemoryOf wraps an existing non-empty slice without copying, so
// caller-owned data can participate in the copy dispatcher directly.
func HostMemoryOf[T Scalar](s []T) *HostMemory[T] {
	if len(s) == 0 {
		panic("accel: cannot wrap an empty slice as memory")
	}
	return &HostMemory[T]{data: s}
}

func (m *HostMemory[T]) HeadAddr() uintptr {
	return uintptr(unsafe.Pointer(unsafe.SliceData(m.data)))
}

func (m *HostMemory[T]) ByteSize() uintptr       { return uintptr(len(m.data)) * elemSize[T]() }
func (m *HostMemory[T]) MemoryType() MemoryType  { return MemoryHost }
func (m *HostMemory[T]) TryAsSlice() ([]T, bool) { return m.data, true }
func (m *HostMemory[T]) TryContext() (*Context, bool) {
	return nil, false
}

func (m *HostMemory[T]) Len() int   { return len(m.data) }
func (m *HostMemory[T]) Slice() []T { return m.data }

func (m *HostMemory[T]) CopyFrom(src Memory[T]) error { return copyToHost[T](m, src) }

func (m *HostMemory[T]) Set(value T) error {
	fillSlice(m.data, value)
	return nil
}

// RegisteredMemory is caller-provided host memory pinned with the
// driver (page-locked in place), making it DMA-eligible for transfers.
// It is associated with exactly one Context and unpinned on Destroy.
// The underlying slice remains owned by the caller.
type RegisteredMemory[T Scalar] struct {
	wrapper *registeredWrapper
	data    []T
	ctx     *Context
}

type registeredWrapper struct {
	p   unsafe.Pointer
	ctx *Context // keeps the Context reachable until unregistered
}

func (w *registeredWrapper) destroy() error {
	if w.p == nil {
		return nil
	}
	p := w.p
	w.p = nil
	if !w.ctx.wrapper.isValid() {
		return errors.New("owning context was destroyed before the registered memory was released")
	}
	g := w.ctx.Guard()
	defer g.Release()
	d, err := activeDriver()
	if err != nil {
		return err
	}
	return status("cuMemHostUnregister", d.MemHostUnregister(p))
}

// RegisterMemory pins the given non-empty slice with the driver under
// ctx. The memory must be unpinned with Destroy (or by garbage
// collection) before the slice is handed back to uses that assume
// unpinned memory.
func RegisterMemory[T Scalar](ctx *Context, s []T) (*RegisteredMemory[T], error) {
	if len(s) == 0 {
		panic("accel: zero-sized allocation is forbidden")
	}
	g := ctx.Guard()
	defer g.Release()
	d, err := activeDriver()
	if err != nil {
		return nil, err
	}
	p := unsafe.Pointer(unsafe.SliceData(s))
	res := d.MemHostRegister(p, uintptr(len(s))*elemSize[T]())
	if err := status("cuMemHostRegister", res); err != nil {
		return nil, err
	}
	m := &RegisteredMemory[T]{
		wrapper: &registeredWrapper{p: p, ctx: ctx},
		data:    s,
		ctx:     ctx,
	}
	runtime.AddCleanup(m, finalizeRegistered, m.wrapper)
	return m, nil
}

func finalizeRegistered(w *registeredWrapper) {
	if err := w.destroy(); err != nil {
		klog.Errorf("RegisteredMemory cleanup failed: %v", err)
	}
}

// Destroy unregisters the memory with the driver. Idempotent.
func (m *RegisteredMemory[T]) Destroy() error { return m.wrapper.destroy() }

func (m *RegisteredMemory[T]) HeadAddr() uintptr {
	return uintptr(unsafe.Pointer(unsafe.SliceData(m.data)))
}

func (m *RegisteredMemory[T]) ByteSize() uintptr       { return uintptr(len(m.data)) * elemSize[T]() }
func (m *RegisteredMemory[T]) MemoryType() MemoryType  { return MemoryRegistered }
func (m *RegisteredMemory[T]) TryAsSlice() ([]T, bool) { return m.data, true }
func (m *RegisteredMemory[T]) TryContext() (*Context, bool) {
	return m.ctx, true
}

func (m *RegisteredMemory[T]) Len() int   { return len(m.data) }
func (m *RegisteredMemory[T]) Slice() []T { return m.data }

func (m *RegisteredMemory[T]) CopyFrom(src Memory[T]) error { return copyToHost[T](m, src) }

func (m *RegisteredMemory[T]) Set(value T) error {
	fillSlice(m.data, value)
	return nil
}
