package accel

import (
	"fmt"
	"runtime"

	"k8s.io/klog/v2"

	"github.com/chiyanglin-AStar/rust-gpu-accel-framework/internal/cudriver"
)

// Context owns one native context handle. At most one Context maps to a
// given native handle, and destruction is idempotent, so the handle is
// never double-freed. Dependent objects (memory, modules, kernels) keep
// their Context reachable, so a Context is never cleaned up while a
// dependent is still alive.
type Context struct {
	wrapper *contextWrapper
}

// contextWrapper holds the native handle that requires cleanup,
// separate from Context so a cleanup function can run after the Context
// itself became unreachable.
type contextWrapper struct {
	h cudriver.Context
}

func (w *contextWrapper) isValid() bool { return w != nil && w.h != 0 }

func (w *contextWrapper) destroy() error {
	if !w.isValid() {
		// Already destroyed, no-op.
		return nil
	}
	d, err := activeDriver()
	if err != nil {
		return err
	}
	res := d.CtxDestroy(w.h)
	w.h = 0
	return status("cuCtxDestroy", res)
}

// newContext creates a context on dev. cuCtxCreate pushes the new
// context onto the calling thread's stack; it is popped right away so
// creation does not leave it current. The create/pop pair must happen
// on one OS thread.
func newContext(dev Device) (*Context, error) {
	d, err := activeDriver()
	if err != nil {
		return nil, err
	}
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	h, res := d.CtxCreate(cudriver.CtxSchedAuto, dev.handle)
	if err := status("cuCtxCreate", res); err != nil {
		return nil, err
	}
	if h == 0 {
		panic("accel: cuCtxCreate returned a null context")
	}
	popped, res := d.CtxPopCurrent()
	if res != cudriver.Success {
		panic(fmt.Sprintf("accel: cannot pop freshly created context: %s", res))
	}
	if popped != h {
		panic("accel: context stack corrupted: popped context differs from the one just created")
	}

	c := &Context{wrapper: &contextWrapper{h: h}}
	runtime.AddCleanup(c, finalizeContext, c.wrapper)
	return c, nil
}

// finalizeContext runs during garbage collection, where a failure must
// not propagate: it is logged and swallowed.
func finalizeContext(w *contextWrapper) {
	if err := w.destroy(); err != nil {
		klog.Errorf("Context cleanup failed: %v", err)
	}
}

// handle returns the native handle, panicking on a destroyed Context:
// issuing driver calls against a stale handle is undefined behavior.
func (c *Context) handle() cudriver.Context {
	if !c.wrapper.isValid() {
		panic("accel: use of destroyed Context")
	}
	return c.wrapper.h
}

// Destroy releases the native context. It must not be called while any
// Memory, Module or Kernel created on this Context is still in use.
// Calling it twice is a no-op. Destroy is also invoked automatically if
// the Context is garbage collected, where failures are only logged.
func (c *Context) Destroy() error {
	return c.wrapper.destroy()
}

// same reports whether two Contexts refer to the same native handle.
func (c *Context) same(other *Context) bool {
	return c.handle() == other.handle()
}

// APIVersion returns the driver API version the context was created
// against.
func (c *Context) APIVersion() (uint32, error) {
	d, err := activeDriver()
	if err != nil {
		return 0, err
	}
	version, res := d.CtxGetAPIVersion(c.handle())
	if err := status("cuCtxGetApiVersion", res); err != nil {
		return 0, err
	}
	return version, nil
}

// Sync blocks the calling thread until all outstanding work in the
// context completes, and reports any asynchronous fault (e.g. a failed
// kernel launch) raised since the last synchronization.
func (c *Context) Sync() error {
	g := c.Guard()
	defer g.Release()
	d, _ := activeDriver()
	return status("cuCtxSynchronize", d.CtxSynchronize())
}

// String implements fmt.Stringer.
func (c *Context) String() string {
	if !c.wrapper.isValid() {
		return "Context[destroyed]"
	}
	return fmt.Sprintf("Context[%#x]", uintptr(c.wrapper.h))
}

// ContextGuard makes a Context current on the calling thread for a
// scope. It is acquired with Context.Guard and released with Release;
// guards must nest strictly (last acquired, first released).
//
// While a guard is alive its goroutine is locked to its OS thread,
// because the current-context stack is per-thread driver state and the
// push/pop pair must land on the same stack.
type ContextGuard struct {
	ctx      *Context
	released bool
}

// Guard pushes the context onto the calling thread's current-context
// stack and returns the guard that will pop it. Push is expected never
// to fail under correct usage; a failure indicates inconsistent
// thread-local driver state and panics.
//
// Typical use:
//
//	g := ctx.Guard()
//	defer g.Release()
func (c *Context) Guard() *ContextGuard {
	d, err := activeDriver()
	if err != nil {
		// The context in hand proves the driver was initialized.
		panic(fmt.Sprintf("accel: driver lost after initialization: %v", err))
	}
	h := c.handle()
	runtime.LockOSThread()
	if res := d.CtxPushCurrent(h); res != cudriver.Success {
		runtime.UnlockOSThread()
		panic(fmt.Sprintf("accel: cannot push context: %s", res))
	}
	return &ContextGuard{ctx: c}
}

// Release pops the guarded context off the thread's stack and restores
// whatever was current before acquisition. The popped handle must be
// the guarded one: a null or different handle means the stack was used
// outside the guard discipline (e.g. concurrent unguarded access), and
// that is an internal-consistency fault, not a recoverable error.
// Releasing twice is a no-op.
func (g *ContextGuard) Release() {
	if g.released {
		return
	}
	g.released = true
	d, _ := activeDriver()
	popped, res := d.CtxPopCurrent()
	if res != cudriver.Success {
		panic(fmt.Sprintf("accel: cannot pop current context: %s", res))
	}
	if popped == 0 {
		panic("accel: no current context on release")
	}
	if popped != g.ctx.handle() {
		panic("accel: context stack corrupted: popped context differs from the guarded one")
	}
	runtime.UnlockOSThread()
}
