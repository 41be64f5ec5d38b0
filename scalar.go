package accel

import (
	"unsafe"

	"github.com/x448/float16"
)

// Scalar constrains the element types a memory object can hold: fixed
// width integers and floats of 1, 2, 4 or 8 bytes. The approximation
// terms admit named types with these underlying representations;
// notably Float16 (underlying uint16) is a valid element type.
type Scalar interface {
	~int8 | ~int16 | ~int32 | ~int64 |
		~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// Float16 is the IEEE 754 half-precision type usable as a memory
// element type. Convert with float16.Fromfloat32 and Float16.Float32.
type Float16 = float16.Float16

// DeviceSend constrains the types that can be passed by value as kernel
// arguments: every Scalar plus bool and address-sized values.
type DeviceSend interface {
	Scalar | ~bool | ~uintptr
}

// elemSize returns the byte width of the element type.
func elemSize[T Scalar]() uintptr {
	var zero T
	return unsafe.Sizeof(zero)
}

// elemBits returns the raw bit pattern of v, zero-extended to 64 bits.
// Used to feed the width-matched native memset primitives.
func elemBits[T Scalar](v T) uint64 {
	switch unsafe.Sizeof(v) {
	case 1:
		return uint64(*(*uint8)(unsafe.Pointer(&v)))
	case 2:
		return uint64(*(*uint16)(unsafe.Pointer(&v)))
	case 4:
		return uint64(*(*uint32)(unsafe.Pointer(&v)))
	default:
		return *(*uint64)(unsafe.Pointer(&v))
	}
}
