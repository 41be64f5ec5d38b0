package cusim

import (
	"unsafe"

	"github.com/chiyanglin-AStar/rust-gpu-accel-framework/internal/cudriver"
)

// alloc carves a new pinned buffer and registers it under its real base
// address, so Devptr values handed out by the simulator are ordinary
// dereferencable addresses, like managed memory under unified
// addressing. Caller must hold s.mu.
func (s *Sim) alloc(bytes uintptr, host bool) (uintptr, cudriver.Result) {
	if bytes == 0 {
		return 0, cudriver.ErrorInvalidValue
	}
	if _, res := s.currentCtx(); res != cudriver.Success {
		return 0, res
	}
	buf := make([]byte, bytes)
	base := uintptr(unsafe.Pointer(&buf[0]))
	s.nextBuffer++
	s.allocs[base] = &simAlloc{buf: buf, base: base, size: bytes, id: s.nextBuffer, host: host}
	return base, cudriver.Success
}

// find resolves the allocation containing [addr, addr+bytes).
// Caller must hold s.mu.
func (s *Sim) find(addr, bytes uintptr) (*simAlloc, cudriver.Result) {
	for _, a := range s.allocs {
		if addr >= a.base && addr+bytes <= a.base+a.size {
			return a, cudriver.Success
		}
	}
	return nil, cudriver.ErrorInvalidValue
}

// view returns the bytes of a tracked range.
// Caller must hold s.mu.
func (s *Sim) view(addr, bytes uintptr) ([]byte, cudriver.Result) {
	a, res := s.find(addr, bytes)
	if res != cudriver.Success {
		return nil, res
	}
	off := addr - a.base
	return a.buf[off : off+bytes], cudriver.Success
}

func (s *Sim) MemAllocManaged(bytes uintptr) (cudriver.Devptr, cudriver.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	base, res := s.alloc(bytes, false)
	return cudriver.Devptr(base), res
}

func (s *Sim) MemFree(dptr cudriver.Devptr) cudriver.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.allocs[uintptr(dptr)]
	if !ok || a.host {
		return cudriver.ErrorInvalidValue
	}
	delete(s.allocs, uintptr(dptr))
	return cudriver.Success
}

func (s *Sim) MemAllocHost(bytes uintptr) (unsafe.Pointer, cudriver.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	base, res := s.alloc(bytes, true)
	if res != cudriver.Success {
		return nil, res
	}
	return unsafe.Pointer(base), cudriver.Success
}

func (s *Sim) MemFreeHost(p unsafe.Pointer) cudriver.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.allocs[uintptr(p)]
	if !ok || !a.host {
		return cudriver.ErrorInvalidValue
	}
	delete(s.allocs, uintptr(p))
	return cudriver.Success
}

func (s *Sim) MemHostRegister(p unsafe.Pointer, bytes uintptr) cudriver.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p == nil || bytes == 0 {
		return cudriver.ErrorInvalidValue
	}
	if _, res := s.currentCtx(); res != cudriver.Success {
		return res
	}
	if _, ok := s.hosts[uintptr(p)]; ok {
		return cudriver.ErrorInvalidValue
	}
	s.hosts[uintptr(p)] = bytes
	return cudriver.Success
}

func (s *Sim) MemHostUnregister(p unsafe.Pointer) cudriver.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.hosts[uintptr(p)]; !ok {
		return cudriver.ErrorInvalidValue
	}
	delete(s.hosts, uintptr(p))
	return cudriver.Success
}

func (s *Sim) MemcpyHtoD(dst cudriver.Devptr, src unsafe.Pointer, bytes uintptr) cudriver.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, res := s.currentCtx(); res != cudriver.Success {
		return res
	}
	dstView, res := s.view(uintptr(dst), bytes)
	if res != cudriver.Success {
		return res
	}
	copy(dstView, unsafe.Slice((*byte)(src), bytes))
	return cudriver.Success
}

func (s *Sim) MemcpyDtoH(dst unsafe.Pointer, src cudriver.Devptr, bytes uintptr) cudriver.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, res := s.currentCtx(); res != cudriver.Success {
		return res
	}
	srcView, res := s.view(uintptr(src), bytes)
	if res != cudriver.Success {
		return res
	}
	copy(unsafe.Slice((*byte)(dst), bytes), srcView)
	return cudriver.Success
}

func (s *Sim) MemcpyDtoD(dst, src cudriver.Devptr, bytes uintptr) cudriver.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, res := s.currentCtx(); res != cudriver.Success {
		return res
	}
	dstView, res := s.view(uintptr(dst), bytes)
	if res != cudriver.Success {
		return res
	}
	srcView, res := s.view(uintptr(src), bytes)
	if res != cudriver.Success {
		return res
	}
	copy(dstView, srcView)
	return cudriver.Success
}

func (s *Sim) MemsetD8(dst cudriver.Devptr, value uint8, n uintptr) cudriver.Result {
	return s.memset(uintptr(dst), []byte{value}, n)
}

func (s *Sim) MemsetD16(dst cudriver.Devptr, value uint16, n uintptr) cudriver.Result {
	var pattern [2]byte
	*(*uint16)(unsafe.Pointer(&pattern[0])) = value
	return s.memset(uintptr(dst), pattern[:], n)
}

func (s *Sim) MemsetD32(dst cudriver.Devptr, value uint32, n uintptr) cudriver.Result {
	var pattern [4]byte
	*(*uint32)(unsafe.Pointer(&pattern[0])) = value
	return s.memset(uintptr(dst), pattern[:], n)
}

// memset stores n copies of pattern starting at dst.
func (s *Sim) memset(dst uintptr, pattern []byte, n uintptr) cudriver.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, res := s.currentCtx(); res != cudriver.Success {
		return res
	}
	width := uintptr(len(pattern))
	view, res := s.view(dst, n*width)
	if res != cudriver.Success {
		return res
	}
	for i := uintptr(0); i < n; i++ {
		copy(view[i*width:(i+1)*width], pattern)
	}
	return cudriver.Success
}

func (s *Sim) PointerGetAttribute(attr cudriver.PointerAttribute, ptr cudriver.Devptr) (uint64, cudriver.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if attr != cudriver.AttributeBufferID {
		return 0, cudriver.ErrorNotSupported
	}
	a, res := s.find(uintptr(ptr), 1)
	if res != cudriver.Success {
		return 0, res
	}
	return a.id, cudriver.Success
}
