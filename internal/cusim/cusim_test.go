package cusim

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"

	"github.com/chiyanglin-AStar/rust-gpu-accel-framework/internal/cudriver"
)

const noopPTX = `
.version 7.0
.target sm_50
.address_size 64
.visible .entry do_nothing()
{
  ret;
}
`

const saxpyPTX = `
.version 7.0
.target sm_50
.address_size 64
.visible .entry saxpy(
    .param .f32 a,
    .param .u64 x,
    .param .u64 y,
    .param .u32 n
)
{
  ret;
}
.visible .entry always_fails()
{
  trap;
}
`

// newCurrent returns an initialized simulator with one context current
// on the calling thread. The goroutine is pinned to its OS thread for
// the duration of the test since the context stack is per-thread state.
func newCurrent(t *testing.T) (*Sim, cudriver.Context) {
	runtime.LockOSThread()
	t.Cleanup(runtime.UnlockOSThread)
	s := New()
	require.Equal(t, cudriver.Success, s.Init(0))
	dev, res := s.DeviceGet(0)
	require.Equal(t, cudriver.Success, res)
	ctx, res := s.CtxCreate(cudriver.CtxSchedAuto, dev)
	require.Equal(t, cudriver.Success, res)
	return s, ctx
}

func TestInitRequired(t *testing.T) {
	s := New()
	_, res := s.DeviceGetCount()
	require.Equal(t, cudriver.ErrorNotInitialized, res)
	require.Equal(t, cudriver.Success, s.Init(0))
	count, res := s.DeviceGetCount()
	require.Equal(t, cudriver.Success, res)
	require.Equal(t, 1, count)
}

func TestDeviceQueries(t *testing.T) {
	s := New()
	require.Equal(t, cudriver.Success, s.Init(0))
	_, res := s.DeviceGet(3)
	require.Equal(t, cudriver.ErrorInvalidDevice, res)
	dev, res := s.DeviceGet(0)
	require.Equal(t, cudriver.Success, res)
	name, res := s.DeviceGetName(dev)
	require.Equal(t, cudriver.Success, res)
	require.NotEmpty(t, name)
	mem, res := s.DeviceTotalMem(dev)
	require.Equal(t, cudriver.Success, res)
	require.NotZero(t, mem)
}

func TestContextStackDiscipline(t *testing.T) {
	s, ctx := newCurrent(t)
	// CtxCreate leaves the new context current.
	require.Equal(t, 1, s.StackDepth())

	popped, res := s.CtxPopCurrent()
	require.Equal(t, cudriver.Success, res)
	require.Equal(t, ctx, popped)
	require.Equal(t, 0, s.StackDepth())

	// Pop on an empty stack fails.
	_, res = s.CtxPopCurrent()
	require.Equal(t, cudriver.ErrorInvalidContext, res)

	// Push/pop round trip restores the stack exactly.
	require.Equal(t, cudriver.Success, s.CtxPushCurrent(ctx))
	require.Equal(t, cudriver.Success, s.CtxPushCurrent(ctx))
	require.Equal(t, 2, s.StackDepth())
	popped, res = s.CtxPopCurrent()
	require.Equal(t, cudriver.Success, res)
	require.Equal(t, ctx, popped)
	require.Equal(t, 1, s.StackDepth())

	require.Equal(t, cudriver.Success, s.CtxDestroy(ctx))
	require.Equal(t, cudriver.ErrorInvalidContext, s.CtxDestroy(ctx))
}

func TestAllocRequiresCurrentContext(t *testing.T) {
	s := New()
	require.Equal(t, cudriver.Success, s.Init(0))
	_, res := s.MemAllocManaged(16)
	require.Equal(t, cudriver.ErrorInvalidContext, res)
}

func TestMemcpyBounds(t *testing.T) {
	s, _ := newCurrent(t)
	dptr, res := s.MemAllocManaged(16)
	require.Equal(t, cudriver.Success, res)

	host := make([]byte, 32)
	// In-range copies succeed.
	require.Equal(t, cudriver.Success, s.MemcpyHtoD(dptr, unsafe.Pointer(&host[0]), 16))
	require.Equal(t, cudriver.Success, s.MemcpyDtoH(unsafe.Pointer(&host[0]), dptr, 16))
	// Out-of-range extents are rejected before touching memory.
	require.Equal(t, cudriver.ErrorInvalidValue, s.MemcpyHtoD(dptr, unsafe.Pointer(&host[0]), 32))
	require.Equal(t, cudriver.ErrorInvalidValue, s.MemcpyDtoH(unsafe.Pointer(&host[0]), dptr+8, 16))

	require.Equal(t, cudriver.Success, s.MemFree(dptr))
	require.Equal(t, cudriver.ErrorInvalidValue, s.MemFree(dptr))
}

func TestMemsetPatterns(t *testing.T) {
	s, _ := newCurrent(t)
	dptr, res := s.MemAllocManaged(16)
	require.Equal(t, cudriver.Success, res)

	require.Equal(t, cudriver.Success, s.MemsetD32(dptr, 0xdeadbeef, 4))
	got := unsafe.Slice((*uint32)(unsafe.Pointer(dptr)), 4)
	for _, v := range got {
		require.Equal(t, uint32(0xdeadbeef), v)
	}

	require.Equal(t, cudriver.Success, s.MemsetD16(dptr, 0x1234, 8))
	got16 := unsafe.Slice((*uint16)(unsafe.Pointer(dptr)), 8)
	for _, v := range got16 {
		require.Equal(t, uint16(0x1234), v)
	}

	// One element too many.
	require.Equal(t, cudriver.ErrorInvalidValue, s.MemsetD32(dptr, 0, 5))
}

func TestBufferIDs(t *testing.T) {
	s, _ := newCurrent(t)
	a, res := s.MemAllocManaged(8)
	require.Equal(t, cudriver.Success, res)
	b, res := s.MemAllocManaged(8)
	require.Equal(t, cudriver.Success, res)

	idA, res := s.PointerGetAttribute(cudriver.AttributeBufferID, a)
	require.Equal(t, cudriver.Success, res)
	idB, res := s.PointerGetAttribute(cudriver.AttributeBufferID, b)
	require.Equal(t, cudriver.Success, res)
	require.NotEqual(t, idA, idB)

	_, res = s.PointerGetAttribute(cudriver.PointerAttribute(1), a)
	require.Equal(t, cudriver.ErrorNotSupported, res)
}

func TestModuleEntryScanning(t *testing.T) {
	s, _ := newCurrent(t)
	mod, res := s.ModuleLoadData([]byte(saxpyPTX + "\x00"))
	require.Equal(t, cudriver.Success, res)

	fn, res := s.ModuleGetFunction(mod, "saxpy")
	require.Equal(t, cudriver.Success, res)
	require.Equal(t, 4, s.fns[fn].params)
	require.False(t, s.fns[fn].traps)

	fails, res := s.ModuleGetFunction(mod, "always_fails")
	require.Equal(t, cudriver.Success, res)
	require.Equal(t, 0, s.fns[fails].params)
	require.True(t, s.fns[fails].traps)

	_, res = s.ModuleGetFunction(mod, "no_such_kernel")
	require.Equal(t, cudriver.ErrorNotFound, res)

	require.Equal(t, cudriver.Success, s.ModuleUnload(mod))
	require.Equal(t, cudriver.ErrorInvalidHandle, s.ModuleUnload(mod))
}

func TestModuleLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "noop.ptx")
	require.NoError(t, os.WriteFile(path, []byte(noopPTX), 0o644))

	s, _ := newCurrent(t)
	mod, res := s.ModuleLoad(path)
	require.Equal(t, cudriver.Success, res)
	_, res = s.ModuleGetFunction(mod, "do_nothing")
	require.Equal(t, cudriver.Success, res)

	_, res = s.ModuleLoad(filepath.Join(t.TempDir(), "missing.ptx"))
	require.Equal(t, cudriver.ErrorNotFound, res)
}

func TestModuleRejectsGarbage(t *testing.T) {
	s, _ := newCurrent(t)
	_, res := s.ModuleLoadData([]byte("not ptx at all"))
	require.Equal(t, cudriver.ErrorInvalidImage, res)
	_, res = s.ModuleLoadData(nil)
	require.Equal(t, cudriver.ErrorInvalidImage, res)
}

func TestLaunchValidation(t *testing.T) {
	s, _ := newCurrent(t)
	mod, res := s.ModuleLoadData([]byte(saxpyPTX))
	require.Equal(t, cudriver.Success, res)
	fn, res := s.ModuleGetFunction(mod, "saxpy")
	require.Equal(t, cudriver.Success, res)

	params := make([]unsafe.Pointer, 4)
	var cells [4]uint64
	for i := range params {
		params[i] = unsafe.Pointer(&cells[i])
	}
	require.Equal(t, cudriver.Success,
		s.LaunchKernel(fn, 1, 1, 1, 32, 1, 1, 0, 0, params))
	require.Equal(t, cudriver.Success, s.CtxSynchronize())

	// Wrong arity.
	require.Equal(t, cudriver.ErrorInvalidValue,
		s.LaunchKernel(fn, 1, 1, 1, 32, 1, 1, 0, 0, params[:2]))
	// Degenerate geometry.
	require.Equal(t, cudriver.ErrorInvalidValue,
		s.LaunchKernel(fn, 0, 1, 1, 32, 1, 1, 0, 0, params))
	// Stale handle.
	require.Equal(t, cudriver.ErrorInvalidHandle,
		s.LaunchKernel(fn+1000, 1, 1, 1, 1, 1, 1, 0, 0, nil))
}

func TestTrapSurfacesAtSynchronize(t *testing.T) {
	s, _ := newCurrent(t)
	mod, res := s.ModuleLoadData([]byte(saxpyPTX))
	require.Equal(t, cudriver.Success, res)
	fn, res := s.ModuleGetFunction(mod, "always_fails")
	require.Equal(t, cudriver.Success, res)

	require.Equal(t, cudriver.Success, s.LaunchKernel(fn, 1, 1, 1, 1, 1, 1, 0, 0, nil))
	require.Equal(t, cudriver.ErrorLaunchFailed, s.CtxSynchronize())
	// The fault is reported once.
	require.Equal(t, cudriver.Success, s.CtxSynchronize())
}

func TestHostRegister(t *testing.T) {
	s, _ := newCurrent(t)
	buf := make([]byte, 64)
	p := unsafe.Pointer(&buf[0])
	require.Equal(t, cudriver.Success, s.MemHostRegister(p, 64))
	require.Equal(t, cudriver.ErrorInvalidValue, s.MemHostRegister(p, 64))
	require.Equal(t, cudriver.Success, s.MemHostUnregister(p))
	require.Equal(t, cudriver.ErrorInvalidValue, s.MemHostUnregister(p))
}
