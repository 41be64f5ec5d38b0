// Package cudriver declares the CUDA driver-API call surface the rest of
// the module is built on, and provides the implementation bound to
// libcuda at runtime.
//
// Only the calls the resource layer actually needs are declared: driver
// init, device queries, context lifecycle, memory lifecycle and
// transfer, module/kernel loading, and kernel launch. The exact symbol
// names (cuInit, cuCtxCreate_v2, ...) are an implementation detail of
// the libcuda binding; callers program against the Driver interface, so
// a pure-Go simulation (internal/cusim) can stand in when no NVIDIA
// driver is installed.
package cudriver

import (
	"fmt"
	"unsafe"
)

// Result is a CUresult status code returned by every driver call.
// It implements error so non-Success codes can be wrapped and inspected
// with errors.Is.
type Result int32

const (
	Success             Result = 0
	ErrorInvalidValue   Result = 1
	ErrorOutOfMemory    Result = 2
	ErrorNotInitialized Result = 3
	ErrorDeinitialized  Result = 4
	ErrorNoDevice       Result = 100
	ErrorInvalidDevice  Result = 101
	ErrorInvalidImage   Result = 200
	ErrorInvalidContext Result = 201
	ErrorInvalidHandle  Result = 400
	ErrorNotFound       Result = 500
	ErrorNotReady       Result = 600
	ErrorIllegalAddress Result = 700
	ErrorLaunchFailed   Result = 719
	ErrorNotSupported   Result = 801
	ErrorUnknown        Result = 999
)

var resultNames = map[Result]string{
	Success:             "CUDA_SUCCESS",
	ErrorInvalidValue:   "CUDA_ERROR_INVALID_VALUE",
	ErrorOutOfMemory:    "CUDA_ERROR_OUT_OF_MEMORY",
	ErrorNotInitialized: "CUDA_ERROR_NOT_INITIALIZED",
	ErrorDeinitialized:  "CUDA_ERROR_DEINITIALIZED",
	ErrorNoDevice:       "CUDA_ERROR_NO_DEVICE",
	ErrorInvalidDevice:  "CUDA_ERROR_INVALID_DEVICE",
	ErrorInvalidImage:   "CUDA_ERROR_INVALID_IMAGE",
	ErrorInvalidContext: "CUDA_ERROR_INVALID_CONTEXT",
	ErrorInvalidHandle:  "CUDA_ERROR_INVALID_HANDLE",
	ErrorNotFound:       "CUDA_ERROR_NOT_FOUND",
	ErrorNotReady:       "CUDA_ERROR_NOT_READY",
	ErrorIllegalAddress: "CUDA_ERROR_ILLEGAL_ADDRESS",
	ErrorLaunchFailed:   "CUDA_ERROR_LAUNCH_FAILED",
	ErrorNotSupported:   "CUDA_ERROR_NOT_SUPPORTED",
	ErrorUnknown:        "CUDA_ERROR_UNKNOWN",
}

// String returns the CUDA name of the status code.
func (r Result) String() string {
	if name, ok := resultNames[r]; ok {
		return name
	}
	return fmt.Sprintf("CUDA_ERROR(%d)", int32(r))
}

// Error implements the error interface. Success is never returned as an
// error by the wrapping layer, but it stringifies consistently anyway.
func (r Result) Error() string { return r.String() }

// Device is a CUdevice ordinal handle. Devices are not owned resources;
// there is no destroy call for them.
type Device int32

// Context is an opaque CUcontext handle.
type Context uintptr

// Module is an opaque CUmodule handle.
type Module uintptr

// Function is an opaque CUfunction handle: one entry point in a Module.
type Function uintptr

// Devptr is a CUdeviceptr: an address in the unified 64-bit address
// space. With managed allocations the same value is host-dereferencable.
type Devptr uintptr

// PointerAttribute selects a cuPointerGetAttribute query.
type PointerAttribute int32

// AttributeBufferID queries the process-unique id of the allocation
// backing a pointer (CU_POINTER_ATTRIBUTE_BUFFER_ID). Used only for
// diagnostics by the Managed memory capability.
const AttributeBufferID PointerAttribute = 7

// CtxSchedAuto is the default context scheduling flag
// (CU_CTX_SCHED_AUTO).
const CtxSchedAuto uint32 = 0

// Driver is the native call surface. All methods return a bare Result;
// converting to wrapped Go errors is the caller's concern. Calls that
// depend on the thread-local current-context stack (memory lifecycle,
// transfers, module loading, launch, synchronize) must run with the
// right context pushed; the Driver does not check that for the caller.
type Driver interface {
	// Name identifies the implementation ("cuda" or "sim").
	Name() string

	// Init initializes the driver. Idempotent, process-wide, must be
	// called before anything else.
	Init(flags uint32) Result

	DeviceGetCount() (int, Result)
	DeviceGet(ordinal int) (Device, Result)
	DeviceGetName(dev Device) (string, Result)
	DeviceTotalMem(dev Device) (uint64, Result)

	// CtxCreate creates a context and pushes it onto the calling
	// thread's current-context stack.
	CtxCreate(flags uint32, dev Device) (Context, Result)
	CtxDestroy(ctx Context) Result
	CtxPushCurrent(ctx Context) Result
	// CtxPopCurrent pops and returns the calling thread's current
	// context.
	CtxPopCurrent() (Context, Result)
	CtxGetAPIVersion(ctx Context) (uint32, Result)
	// CtxSynchronize blocks until all work queued on the current
	// context completes, and reports any asynchronous fault.
	CtxSynchronize() Result

	// MemAllocManaged allocates device-resident memory in the unified
	// address space (CU_MEM_ATTACH_GLOBAL).
	MemAllocManaged(bytes uintptr) (Devptr, Result)
	MemFree(dptr Devptr) Result
	MemAllocHost(bytes uintptr) (unsafe.Pointer, Result)
	MemFreeHost(p unsafe.Pointer) Result
	MemHostRegister(p unsafe.Pointer, bytes uintptr) Result
	MemHostUnregister(p unsafe.Pointer) Result

	MemcpyHtoD(dst Devptr, src unsafe.Pointer, bytes uintptr) Result
	MemcpyDtoH(dst unsafe.Pointer, src Devptr, bytes uintptr) Result
	MemcpyDtoD(dst, src Devptr, bytes uintptr) Result

	MemsetD8(dst Devptr, value uint8, n uintptr) Result
	MemsetD16(dst Devptr, value uint16, n uintptr) Result
	MemsetD32(dst Devptr, value uint32, n uintptr) Result

	PointerGetAttribute(attr PointerAttribute, ptr Devptr) (uint64, Result)

	// ModuleLoadData loads a compiled image from memory. PTX text must
	// be NUL-terminated.
	ModuleLoadData(image []byte) (Module, Result)
	// ModuleLoad loads a compiled image from a file path.
	ModuleLoad(path string) (Module, Result)
	ModuleGetFunction(mod Module, name string) (Function, Result)
	ModuleUnload(mod Module) Result

	// LaunchKernel enqueues fn on the given stream (0 for the default
	// stream) with the given geometry. params holds one pointer per
	// kernel argument, each pointing at that argument's storage.
	LaunchKernel(fn Function,
		gridX, gridY, gridZ uint32,
		blockX, blockY, blockZ uint32,
		sharedBytes uint32, stream uintptr,
		params []unsafe.Pointer) Result
}
