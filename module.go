package accel

import (
	"runtime"

	"k8s.io/klog/v2"

	"github.com/chiyanglin-AStar/rust-gpu-accel-framework/internal/cudriver"
)

// Module is a kernel image loaded into a context. Kernels resolved
// from it borrow the module and must not outlive it.
type Module struct {
	wrapper *moduleWrapper
	ctx     *Context
}

type moduleWrapper struct {
	h   cudriver.Module
	ctx *Context
}

func (w *moduleWrapper) destroy() error {
	if w.h == 0 {
		return nil
	}
	h := w.h
	w.h = 0
	if !w.ctx.wrapper.isValid() {
		return nil
	}
	g := w.ctx.Guard()
	defer g.Release()
	d, err := activeDriver()
	if err != nil {
		return err
	}
	return status("cuModuleUnload", d.ModuleUnload(h))
}

// LoadModule loads inst into ctx. In-memory images go through the
// data-loading entry point; file-backed instructions are loaded by
// path so the driver reads them itself.
func LoadModule(ctx *Context, inst Instruction) (*Module, error) {
	g := ctx.Guard()
	defer g.Release()
	d, err := activeDriver()
	if err != nil {
		return nil, err
	}
	var (
		h   cudriver.Module
		res cudriver.Result
	)
	if image, ok := inst.image(); ok {
		h, res = d.ModuleLoadData(image)
		if err := status("cuModuleLoadData", res); err != nil {
			return nil, err
		}
	} else {
		h, res = d.ModuleLoad(inst.path)
		if err := status("cuModuleLoad", res); err != nil {
			return nil, err
		}
	}
	m := &Module{wrapper: &moduleWrapper{h: h, ctx: ctx}, ctx: ctx}
	runtime.AddCleanup(m, finalizeModule, m.wrapper)
	return m, nil
}

// ModuleFromPTX is shorthand for loading in-memory PTX text.
func ModuleFromPTX(ctx *Context, text string) (*Module, error) {
	return LoadModule(ctx, PTX(text))
}

func finalizeModule(w *moduleWrapper) {
	if err := w.destroy(); err != nil {
		klog.Errorf("Module cleanup failed: %v", err)
	}
}

// Destroy unloads the module. Idempotent; also invoked by garbage
// collection, where failures are only logged.
func (m *Module) Destroy() error { return m.wrapper.destroy() }

func (m *Module) handle() cudriver.Module {
	if m.wrapper.h == 0 {
		panic("accel: use of destroyed Module")
	}
	return m.wrapper.h
}

// Context returns the context the module is loaded into.
func (m *Module) Context() *Context { return m.ctx }

// Kernel resolves the named global function. The returned Kernel
// borrows the module: launching it after the module is destroyed
// panics.
func (m *Module) Kernel(name string) (*Kernel, error) {
	h := m.handle()
	g := m.ctx.Guard()
	defer g.Release()
	d, err := activeDriver()
	if err != nil {
		return nil, err
	}
	fn, res := d.ModuleGetFunction(h, name)
	if err := status("cuModuleGetFunction", res); err != nil {
		return nil, err
	}
	return &Kernel{fn: fn, name: name, module: m}, nil
}

// Kernel is a launchable function resolved from a loaded Module.
type Kernel struct {
	fn     cudriver.Function
	name   string
	module *Module
}

// Name returns the symbol the kernel was resolved under.
func (k *Kernel) Name() string { return k.name }
