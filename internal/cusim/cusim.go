// Package cusim is a pure-Go, CPU-backed implementation of the
// cudriver.Driver surface.
//
// It exists so the resource layer above it (contexts, memory kinds, the
// copy dispatcher, module loading, the launch protocol) behaves the same
// on machines without an NVIDIA driver: allocations are pinned Go
// buffers addressed through the same unified-address scheme, the
// current-context stack is kept per OS thread, and every transfer is
// bounds-checked against its owning allocation.
//
// Kernels are not executed. Module loading scans PTX images for .entry
// declarations and records each entry's parameter arity and whether its
// body contains a trap instruction; launching a trapping kernel faults
// the context and the fault surfaces at the next CtxSynchronize, the
// same way real launch failures are reported asynchronously.
package cusim

import (
	"sync"

	"github.com/chiyanglin-AStar/rust-gpu-accel-framework/internal/cudriver"
)

const (
	deviceName = "Simulated CUDA Device (CPU)"
	// Reported as the device's total memory; allocations are only
	// bounded by the Go heap.
	deviceTotalMem uint64 = 16 << 30
	apiVersion     uint32 = 12020
)

// Sim implements cudriver.Driver on CPU memory.
type Sim struct {
	mu sync.Mutex

	initialized bool
	nextHandle  uintptr
	nextBuffer  uint64

	stacks map[int][]cudriver.Context
	ctxs   map[cudriver.Context]*simContext
	allocs map[uintptr]*simAlloc
	hosts  map[uintptr]uintptr // registered host ranges: base -> byte size
	mods   map[cudriver.Module]*simModule
	fns    map[cudriver.Function]*simEntry
}

type simContext struct {
	dev   cudriver.Device
	fault cudriver.Result // pending asynchronous fault, Success if none
}

type simAlloc struct {
	buf  []byte // keeps the storage reachable; addresses refer into it
	base uintptr
	size uintptr
	id   uint64
	host bool // allocated via MemAllocHost rather than MemAllocManaged
}

type simModule struct {
	entries map[string]cudriver.Function
}

type simEntry struct {
	name   string
	params int
	traps  bool
}

// New returns an empty simulator. Init must be called before anything
// else, as with the real driver.
func New() *Sim {
	return &Sim{
		stacks: make(map[int][]cudriver.Context),
		ctxs:   make(map[cudriver.Context]*simContext),
		allocs: make(map[uintptr]*simAlloc),
		hosts:  make(map[uintptr]uintptr),
		mods:   make(map[cudriver.Module]*simModule),
		fns:    make(map[cudriver.Function]*simEntry),
	}
}

func (s *Sim) Name() string { return "sim" }

func (s *Sim) Init(flags uint32) cudriver.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initialized = true
	return cudriver.Success
}

// handle hands out process-unique fake handle values. They are never
// dereferenced; only allocation addresses are real.
func (s *Sim) handle() uintptr {
	s.nextHandle++
	return s.nextHandle
}

func (s *Sim) checkInit() cudriver.Result {
	if !s.initialized {
		return cudriver.ErrorNotInitialized
	}
	return cudriver.Success
}

func (s *Sim) DeviceGetCount() (int, cudriver.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if res := s.checkInit(); res != cudriver.Success {
		return 0, res
	}
	return 1, cudriver.Success
}

func (s *Sim) DeviceGet(ordinal int) (cudriver.Device, cudriver.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if res := s.checkInit(); res != cudriver.Success {
		return 0, res
	}
	if ordinal != 0 {
		return 0, cudriver.ErrorInvalidDevice
	}
	return cudriver.Device(0), cudriver.Success
}

func (s *Sim) DeviceGetName(dev cudriver.Device) (string, cudriver.Result) {
	if dev != 0 {
		return "", cudriver.ErrorInvalidDevice
	}
	return deviceName, cudriver.Success
}

func (s *Sim) DeviceTotalMem(dev cudriver.Device) (uint64, cudriver.Result) {
	if dev != 0 {
		return 0, cudriver.ErrorInvalidDevice
	}
	return deviceTotalMem, cudriver.Success
}

func (s *Sim) CtxCreate(flags uint32, dev cudriver.Device) (cudriver.Context, cudriver.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if res := s.checkInit(); res != cudriver.Success {
		return 0, res
	}
	if dev != 0 {
		return 0, cudriver.ErrorInvalidDevice
	}
	ctx := cudriver.Context(s.handle())
	s.ctxs[ctx] = &simContext{dev: dev, fault: cudriver.Success}
	// Like cuCtxCreate, the new context becomes current on this thread.
	id := tid()
	s.stacks[id] = append(s.stacks[id], ctx)
	return ctx, cudriver.Success
}

func (s *Sim) CtxDestroy(ctx cudriver.Context) cudriver.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ctxs[ctx]; !ok {
		return cudriver.ErrorInvalidContext
	}
	delete(s.ctxs, ctx)
	return cudriver.Success
}

func (s *Sim) CtxPushCurrent(ctx cudriver.Context) cudriver.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ctxs[ctx]; !ok {
		return cudriver.ErrorInvalidContext
	}
	id := tid()
	s.stacks[id] = append(s.stacks[id], ctx)
	return cudriver.Success
}

func (s *Sim) CtxPopCurrent() (cudriver.Context, cudriver.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := tid()
	stack := s.stacks[id]
	if len(stack) == 0 {
		return 0, cudriver.ErrorInvalidContext
	}
	ctx := stack[len(stack)-1]
	s.stacks[id] = stack[:len(stack)-1]
	return ctx, cudriver.Success
}

// current returns the top of the calling thread's stack, or 0.
// Caller must hold s.mu.
func (s *Sim) current() cudriver.Context {
	stack := s.stacks[tid()]
	if len(stack) == 0 {
		return 0
	}
	return stack[len(stack)-1]
}

// currentCtx resolves the calling thread's current context state.
// Caller must hold s.mu.
func (s *Sim) currentCtx() (*simContext, cudriver.Result) {
	ctx := s.current()
	if ctx == 0 {
		return nil, cudriver.ErrorInvalidContext
	}
	state, ok := s.ctxs[ctx]
	if !ok {
		// Current context was destroyed while still on the stack.
		return nil, cudriver.ErrorInvalidContext
	}
	return state, cudriver.Success
}

func (s *Sim) CtxGetAPIVersion(ctx cudriver.Context) (uint32, cudriver.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ctxs[ctx]; !ok {
		return 0, cudriver.ErrorInvalidContext
	}
	return apiVersion, cudriver.Success
}

func (s *Sim) CtxSynchronize() cudriver.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, res := s.currentCtx()
	if res != cudriver.Success {
		return res
	}
	if state.fault != cudriver.Success {
		fault := state.fault
		state.fault = cudriver.Success
		return fault
	}
	return cudriver.Success
}

// StackDepth reports the current-context stack depth of the calling OS
// thread. Test hook; the real driver has no equivalent.
func (s *Sim) StackDepth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.stacks[tid()])
}
