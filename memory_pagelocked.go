package accel

import (
	"runtime"
	"unsafe"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// PageLockedMemory is host memory the driver has pinned (excluded from
// OS paging) for fast, DMA-eligible transfer. It is allocated and
// released through Context-scoped driver calls and is associated with
// exactly one Context.
//
// Pinned memory reduces the memory available to the OS for paging;
// allocate it sparingly, as staging areas for host/device exchange.
type PageLockedMemory[T Scalar] struct {
	wrapper *pageLockedWrapper
	n       int
	ctx     *Context
}

type pageLockedWrapper struct {
	p   unsafe.Pointer
	ctx *Context
}

func (w *pageLockedWrapper) destroy() error {
	if w.p == nil {
		return nil
	}
	p := w.p
	w.p = nil
	if !w.ctx.wrapper.isValid() {
		return errors.New("owning context was destroyed before the page-locked memory was freed")
	}
	g := w.ctx.Guard()
	defer g.Release()
	d, err := activeDriver()
	if err != nil {
		return err
	}
	return status("cuMemFreeHost", d.MemFreeHost(p))
}

// NewPageLockedMemory allocates n elements of page-locked host memory
// on ctx. Zero-sized allocation is a rejected precondition and panics;
// a native allocation failure is returned as an error.
func NewPageLockedMemory[T Scalar](ctx *Context, n int) (*PageLockedMemory[T], error) {
	if n <= 0 {
		panic("accel: zero-sized allocation is forbidden")
	}
	g := ctx.Guard()
	defer g.Release()
	d, err := activeDriver()
	if err != nil {
		return nil, err
	}
	p, res := d.MemAllocHost(uintptr(n) * elemSize[T]())
	if err := status("cuMemAllocHost", res); err != nil {
		return nil, err
	}
	m := &PageLockedMemory[T]{
		wrapper: &pageLockedWrapper{p: p, ctx: ctx},
		n:       n,
		ctx:     ctx,
	}
	runtime.AddCleanup(m, finalizePageLocked, m.wrapper)
	return m, nil
}

func finalizePageLocked(w *pageLockedWrapper) {
	if err := w.destroy(); err != nil {
		klog.Errorf("PageLockedMemory cleanup failed: %v", err)
	}
}

// Destroy frees the pinned allocation. Idempotent; also invoked by
// garbage collection, where failures are only logged.
func (m *PageLockedMemory[T]) Destroy() error { return m.wrapper.destroy() }

func (m *PageLockedMemory[T]) ptr() unsafe.Pointer {
	if m.wrapper.p == nil {
		panic("accel: use of destroyed PageLockedMemory")
	}
	return m.wrapper.p
}

func (m *PageLockedMemory[T]) HeadAddr() uintptr      { return uintptr(m.ptr()) }
func (m *PageLockedMemory[T]) ByteSize() uintptr      { return uintptr(m.n) * elemSize[T]() }
func (m *PageLockedMemory[T]) MemoryType() MemoryType { return MemoryPageLocked }

func (m *PageLockedMemory[T]) TryAsSlice() ([]T, bool) { return m.Slice(), true }
func (m *PageLockedMemory[T]) TryContext() (*Context, bool) {
	return m.ctx, true
}

func (m *PageLockedMemory[T]) Len() int { return m.n }

// Slice returns the pinned allocation as a mutable element slice.
func (m *PageLockedMemory[T]) Slice() []T {
	return unsafe.Slice((*T)(m.ptr()), m.n)
}

func (m *PageLockedMemory[T]) CopyFrom(src Memory[T]) error { return copyToHost[T](m, src) }

// Set stores value into every element. Page-locked memory is directly
// addressable from the host, so this is a plain store loop.
func (m *PageLockedMemory[T]) Set(value T) error {
	fillSlice(m.Slice(), value)
	return nil
}

// BufferID returns the unified-memory buffer id of the allocation.
func (m *PageLockedMemory[T]) BufferID() (uint64, error) {
	return bufferID(m.ctx, m.HeadAddr())
}
