//go:build linux || darwin

package cudriver

// Runtime binding of libcuda via purego: no cgo, no CUDA toolkit needed
// at build time. The library is resolved with dlopen when Load is
// called; a missing library or symbol is an error, never a crash.

import (
	"unsafe"

	"github.com/ebitengine/purego"
	"github.com/pkg/errors"
)

// libcudaNames are tried in order. The ".1" soname is what the NVIDIA
// driver installs system-wide; the bare name covers toolkit-only setups.
var libcudaNames = []string{"libcuda.so.1", "libcuda.so"}

type libcuda struct {
	cuInit            func(flags uint32) Result
	cuDeviceGetCount  func(count *int32) Result
	cuDeviceGet       func(device *int32, ordinal int32) Result
	cuDeviceGetName   func(name *byte, len int32, dev int32) Result
	cuDeviceTotalMem  func(bytes *uint64, dev int32) Result
	cuCtxCreate       func(pctx *uintptr, flags uint32, dev int32) Result
	cuCtxDestroy      func(ctx uintptr) Result
	cuCtxPushCurrent  func(ctx uintptr) Result
	cuCtxPopCurrent   func(pctx *uintptr) Result
	cuCtxGetAPIVer    func(ctx uintptr, version *uint32) Result
	cuCtxSynchronize  func() Result
	cuMemAllocManaged func(dptr *uintptr, bytesize uintptr, flags uint32) Result
	cuMemFree         func(dptr uintptr) Result
	cuMemAllocHost    func(pp *unsafe.Pointer, bytesize uintptr) Result
	cuMemFreeHost     func(p unsafe.Pointer) Result
	cuMemHostRegister func(p unsafe.Pointer, bytesize uintptr, flags uint32) Result
	cuMemHostUnreg    func(p unsafe.Pointer) Result
	cuMemcpyHtoD      func(dst uintptr, src unsafe.Pointer, byteCount uintptr) Result
	cuMemcpyDtoH      func(dst unsafe.Pointer, src uintptr, byteCount uintptr) Result
	cuMemcpyDtoD      func(dst, src uintptr, byteCount uintptr) Result
	cuMemsetD8        func(dst uintptr, value uint8, n uintptr) Result
	cuMemsetD16       func(dst uintptr, value uint16, n uintptr) Result
	cuMemsetD32       func(dst uintptr, value uint32, n uintptr) Result
	cuPointerGetAttr  func(data unsafe.Pointer, attr int32, ptr uintptr) Result
	cuModuleLoadData  func(module *uintptr, image unsafe.Pointer) Result
	cuModuleLoad      func(module *uintptr, fname string) Result
	cuModuleGetFunc   func(hfunc *uintptr, hmod uintptr, name string) Result
	cuModuleUnload    func(hmod uintptr) Result
	cuLaunchKernel    func(f uintptr,
		gridX, gridY, gridZ uint32,
		blockX, blockY, blockZ uint32,
		sharedMemBytes uint32, hStream uintptr,
		kernelParams *unsafe.Pointer, extra *unsafe.Pointer) Result
}

// cuMemAttachGlobal makes a managed allocation accessible from any
// stream on any device (CU_MEM_ATTACH_GLOBAL).
const cuMemAttachGlobal uint32 = 1

// Load binds libcuda and returns the real Driver. It fails with an
// error (suitable for falling back to the simulator) when the library
// cannot be found.
func Load() (Driver, error) {
	var handle uintptr
	var err error
	for _, name := range libcudaNames {
		handle, err = purego.Dlopen(name, purego.RTLD_LAZY|purego.RTLD_GLOBAL)
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil, errors.Wrapf(err, "cannot dlopen libcuda (tried %v) -- is the NVIDIA driver installed?", libcudaNames)
	}

	l := &libcuda{}
	for _, sym := range []struct {
		fn   any
		name string
	}{
		{&l.cuInit, "cuInit"},
		{&l.cuDeviceGetCount, "cuDeviceGetCount"},
		{&l.cuDeviceGet, "cuDeviceGet"},
		{&l.cuDeviceGetName, "cuDeviceGetName"},
		{&l.cuDeviceTotalMem, "cuDeviceTotalMem_v2"},
		{&l.cuCtxCreate, "cuCtxCreate_v2"},
		{&l.cuCtxDestroy, "cuCtxDestroy_v2"},
		{&l.cuCtxPushCurrent, "cuCtxPushCurrent_v2"},
		{&l.cuCtxPopCurrent, "cuCtxPopCurrent_v2"},
		{&l.cuCtxGetAPIVer, "cuCtxGetApiVersion"},
		{&l.cuCtxSynchronize, "cuCtxSynchronize"},
		{&l.cuMemAllocManaged, "cuMemAllocManaged"},
		{&l.cuMemFree, "cuMemFree_v2"},
		{&l.cuMemAllocHost, "cuMemAllocHost_v2"},
		{&l.cuMemFreeHost, "cuMemFreeHost"},
		{&l.cuMemHostRegister, "cuMemHostRegister_v2"},
		{&l.cuMemHostUnreg, "cuMemHostUnregister"},
		{&l.cuMemcpyHtoD, "cuMemcpyHtoD_v2"},
		{&l.cuMemcpyDtoH, "cuMemcpyDtoH_v2"},
		{&l.cuMemcpyDtoD, "cuMemcpyDtoD_v2"},
		{&l.cuMemsetD8, "cuMemsetD8_v2"},
		{&l.cuMemsetD16, "cuMemsetD16_v2"},
		{&l.cuMemsetD32, "cuMemsetD32_v2"},
		{&l.cuPointerGetAttr, "cuPointerGetAttribute"},
		{&l.cuModuleLoadData, "cuModuleLoadData"},
		{&l.cuModuleLoad, "cuModuleLoad"},
		{&l.cuModuleGetFunc, "cuModuleGetFunction"},
		{&l.cuModuleUnload, "cuModuleUnload"},
		{&l.cuLaunchKernel, "cuLaunchKernel"},
	} {
		if err := registerSymbol(sym.fn, handle, sym.name); err != nil {
			return nil, err
		}
	}
	return l, nil
}

func registerSymbol(fnPtr any, handle uintptr, name string) (err error) {
	defer func() {
		// purego panics on a missing symbol; report it as an error so
		// Load's caller can fall back.
		if r := recover(); r != nil {
			err = errors.Errorf("libcuda is missing symbol %q: %v", name, r)
		}
	}()
	purego.RegisterLibFunc(fnPtr, handle, name)
	return nil
}

func (l *libcuda) Name() string { return "cuda" }

func (l *libcuda) Init(flags uint32) Result { return l.cuInit(flags) }

func (l *libcuda) DeviceGetCount() (int, Result) {
	var count int32
	res := l.cuDeviceGetCount(&count)
	return int(count), res
}

func (l *libcuda) DeviceGet(ordinal int) (Device, Result) {
	var dev int32
	res := l.cuDeviceGet(&dev, int32(ordinal))
	return Device(dev), res
}

func (l *libcuda) DeviceGetName(dev Device) (string, Result) {
	buf := make([]byte, 256)
	res := l.cuDeviceGetName(&buf[0], int32(len(buf)), int32(dev))
	if res != Success {
		return "", res
	}
	for i, b := range buf {
		if b == 0 {
			return string(buf[:i]), Success
		}
	}
	return string(buf), Success
}

func (l *libcuda) DeviceTotalMem(dev Device) (uint64, Result) {
	var bytes uint64
	res := l.cuDeviceTotalMem(&bytes, int32(dev))
	return bytes, res
}

func (l *libcuda) CtxCreate(flags uint32, dev Device) (Context, Result) {
	var ctx uintptr
	res := l.cuCtxCreate(&ctx, flags, int32(dev))
	return Context(ctx), res
}

func (l *libcuda) CtxDestroy(ctx Context) Result { return l.cuCtxDestroy(uintptr(ctx)) }

func (l *libcuda) CtxPushCurrent(ctx Context) Result { return l.cuCtxPushCurrent(uintptr(ctx)) }

func (l *libcuda) CtxPopCurrent() (Context, Result) {
	var ctx uintptr
	res := l.cuCtxPopCurrent(&ctx)
	return Context(ctx), res
}

func (l *libcuda) CtxGetAPIVersion(ctx Context) (uint32, Result) {
	var version uint32
	res := l.cuCtxGetAPIVer(uintptr(ctx), &version)
	return version, res
}

func (l *libcuda) CtxSynchronize() Result { return l.cuCtxSynchronize() }

func (l *libcuda) MemAllocManaged(bytes uintptr) (Devptr, Result) {
	var dptr uintptr
	res := l.cuMemAllocManaged(&dptr, bytes, cuMemAttachGlobal)
	return Devptr(dptr), res
}

func (l *libcuda) MemFree(dptr Devptr) Result { return l.cuMemFree(uintptr(dptr)) }

func (l *libcuda) MemAllocHost(bytes uintptr) (unsafe.Pointer, Result) {
	var p unsafe.Pointer
	res := l.cuMemAllocHost(&p, bytes)
	return p, res
}

func (l *libcuda) MemFreeHost(p unsafe.Pointer) Result { return l.cuMemFreeHost(p) }

func (l *libcuda) MemHostRegister(p unsafe.Pointer, bytes uintptr) Result {
	return l.cuMemHostRegister(p, bytes, 0)
}

func (l *libcuda) MemHostUnregister(p unsafe.Pointer) Result { return l.cuMemHostUnreg(p) }

func (l *libcuda) MemcpyHtoD(dst Devptr, src unsafe.Pointer, bytes uintptr) Result {
	return l.cuMemcpyHtoD(uintptr(dst), src, bytes)
}

func (l *libcuda) MemcpyDtoH(dst unsafe.Pointer, src Devptr, bytes uintptr) Result {
	return l.cuMemcpyDtoH(dst, uintptr(src), bytes)
}

func (l *libcuda) MemcpyDtoD(dst, src Devptr, bytes uintptr) Result {
	return l.cuMemcpyDtoD(uintptr(dst), uintptr(src), bytes)
}

func (l *libcuda) MemsetD8(dst Devptr, value uint8, n uintptr) Result {
	return l.cuMemsetD8(uintptr(dst), value, n)
}

func (l *libcuda) MemsetD16(dst Devptr, value uint16, n uintptr) Result {
	return l.cuMemsetD16(uintptr(dst), value, n)
}

func (l *libcuda) MemsetD32(dst Devptr, value uint32, n uintptr) Result {
	return l.cuMemsetD32(uintptr(dst), value, n)
}

func (l *libcuda) PointerGetAttribute(attr PointerAttribute, ptr Devptr) (uint64, Result) {
	var data uint64
	res := l.cuPointerGetAttr(unsafe.Pointer(&data), int32(attr), uintptr(ptr))
	return data, res
}

func (l *libcuda) ModuleLoadData(image []byte) (Module, Result) {
	if len(image) == 0 {
		return 0, ErrorInvalidImage
	}
	var mod uintptr
	res := l.cuModuleLoadData(&mod, unsafe.Pointer(&image[0]))
	return Module(mod), res
}

func (l *libcuda) ModuleLoad(path string) (Module, Result) {
	var mod uintptr
	res := l.cuModuleLoad(&mod, path)
	return Module(mod), res
}

func (l *libcuda) ModuleGetFunction(mod Module, name string) (Function, Result) {
	var fn uintptr
	res := l.cuModuleGetFunc(&fn, uintptr(mod), name)
	return Function(fn), res
}

func (l *libcuda) ModuleUnload(mod Module) Result { return l.cuModuleUnload(uintptr(mod)) }

func (l *libcuda) LaunchKernel(fn Function,
	gridX, gridY, gridZ uint32,
	blockX, blockY, blockZ uint32,
	sharedBytes uint32, stream uintptr,
	params []unsafe.Pointer) Result {
	var paramsPtr *unsafe.Pointer
	if len(params) > 0 {
		paramsPtr = &params[0]
	}
	return l.cuLaunchKernel(uintptr(fn),
		gridX, gridY, gridZ,
		blockX, blockY, blockZ,
		sharedBytes, stream,
		paramsPtr, nil)
}
