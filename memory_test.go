package accel

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
	"github.com/x448/float16"
)

func TestZeroSizedAllocationsPanic(t *testing.T) {
	ctx := testContext(t)

	require.Panics(t, func() { NewHostMemory[float32](0) })
	require.Panics(t, func() { HostMemoryOf([]float32{}) })
	require.Panics(t, func() { _, _ = NewPageLockedMemory[float32](ctx, 0) })
	require.Panics(t, func() { _, _ = NewDeviceMemory[float32](ctx, 0) })
}

func TestByteSizes(t *testing.T) {
	ctx := testContext(t)

	const n = 12
	const want = uintptr(n * 4)

	host := NewHostMemory[float32](n)
	require.Equal(t, want, host.ByteSize())
	require.Equal(t, n, host.Len())

	locked, err := NewPageLockedMemory[float32](ctx, n)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, locked.Destroy()) })
	require.Equal(t, want, locked.ByteSize())
	require.Len(t, locked.Slice(), n)
	locked.Slice()[0] = 42
	require.Equal(t, float32(42), locked.Slice()[0])

	dev, err := NewDeviceMemory[float32](ctx, n)
	require.NoError(t, err)
	require.Equal(t, want, dev.ByteSize())
	require.Len(t, dev.Slice(), n)

	// Destroying one object leaves its siblings on the context intact.
	require.NoError(t, dev.Destroy())
	require.Equal(t, float32(42), locked.Slice()[0])
}

func TestMemoryKinds(t *testing.T) {
	ctx := testContext(t)

	host := NewHostMemory[int32](4)
	require.Equal(t, MemoryHost, host.MemoryType())
	_, ok := host.TryContext()
	require.False(t, ok, "plain host memory is not context-scoped")

	dev, err := NewDeviceMemory[int32](ctx, 4)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, dev.Destroy()) })
	require.Equal(t, MemoryDevice, dev.MemoryType())
	got, ok := dev.TryContext()
	require.True(t, ok)
	require.True(t, got.same(ctx))
}

func TestCopyRoundTrip(t *testing.T) {
	ctx := testContext(t)

	const n = 64
	src := NewHostMemory[float32](n)
	for i := range src.Slice() {
		src.Slice()[i] = float32(i) * 0.5
	}

	devA, err := NewDeviceMemory[float32](ctx, n)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, devA.Destroy()) })
	require.NoError(t, devA.CopyFrom(src))

	devB, err := NewDeviceMemory[float32](ctx, n)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, devB.Destroy()) })
	require.NoError(t, devB.CopyFrom(devA))

	locked, err := NewPageLockedMemory[float32](ctx, n)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, locked.Destroy()) })
	require.NoError(t, locked.CopyFrom(devB))

	dst := NewHostMemory[float32](n)
	require.NoError(t, dst.CopyFrom(locked))
	require.Equal(t, src.Slice(), dst.Slice())
}

func TestCopyFromHostSlice(t *testing.T) {
	ctx := testContext(t)

	data := []int32{1, 2, 3, 4, 5, 6, 7, 8}
	dev, err := NewDeviceMemory[int32](ctx, len(data))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, dev.Destroy()) })

	require.NoError(t, dev.CopyFrom(HostMemoryOf(data)))
	require.Equal(t, data, dev.Slice())
}

func TestCopyPreconditionsPanic(t *testing.T) {
	ctx := testContext(t)

	small := NewHostMemory[float32](8)
	dev, err := NewDeviceMemory[float32](ctx, 16)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, dev.Destroy()) })

	require.Panics(t, func() { _ = dev.CopyFrom(small) }, "byte-size mismatch")
	require.Panics(t, func() { _ = small.CopyFrom(small) }, "identical extents")
}

func TestCrossContextCopyPanics(t *testing.T) {
	dev, err := NthDevice(0)
	require.NoError(t, err)

	ctxA := testContext(t)
	ctxB, err := dev.CreateContext()
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, ctxB.Destroy()) })

	a, err := NewDeviceMemory[float32](ctxA, 8)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, a.Destroy()) })
	b, err := NewDeviceMemory[float32](ctxB, 8)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, b.Destroy()) })

	require.Panics(t, func() { _ = a.CopyFrom(b) })
}

func TestDeviceSetWidths(t *testing.T) {
	ctx := testContext(t)

	bytes, err := NewDeviceMemory[uint8](ctx, 16)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, bytes.Destroy()) })
	require.NoError(t, bytes.Set(0xAB))
	for _, v := range bytes.Slice() {
		require.Equal(t, uint8(0xAB), v)
	}

	halves, err := NewDeviceMemory[Float16](ctx, 16)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, halves.Destroy()) })
	half := float16.Fromfloat32(1.5)
	require.NoError(t, halves.Set(half))
	for _, v := range halves.Slice() {
		require.Equal(t, half, v)
	}

	words, err := NewDeviceMemory[float32](ctx, 16)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, words.Destroy()) })
	require.NoError(t, words.Set(2.25))
	for _, v := range words.Slice() {
		require.Equal(t, float32(2.25), v)
	}

	// 8-byte elements have no native memset and use the store loop.
	doubles, err := NewDeviceMemory[float64](ctx, 16)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, doubles.Destroy()) })
	require.NoError(t, doubles.Set(-3.5))
	for _, v := range doubles.Slice() {
		require.Equal(t, -3.5, v)
	}
}

func TestHostSet(t *testing.T) {
	host := NewHostMemory[int64](32)
	require.NoError(t, host.Set(7))
	for _, v := range host.Slice() {
		require.Equal(t, int64(7), v)
	}
}

func TestBufferIDsAreDistinct(t *testing.T) {
	ctx := testContext(t)

	a, err := NewDeviceMemory[float32](ctx, 8)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, a.Destroy()) })
	b, err := NewPageLockedMemory[float32](ctx, 8)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, b.Destroy()) })

	idA, err := a.BufferID()
	require.NoError(t, err)
	idB, err := b.BufferID()
	require.NoError(t, err)
	require.NotEqual(t, idA, idB)
}

func TestRegisteredMemory(t *testing.T) {
	ctx := testContext(t)

	data := make([]float32, 32)
	for i := range data {
		data[i] = float32(i)
	}
	reg, err := RegisterMemory(ctx, data)
	require.NoError(t, err)
	require.Equal(t, MemoryRegistered, reg.MemoryType())
	require.Equal(t, uintptr(len(data)*4), reg.ByteSize())

	dev, err := NewDeviceMemory[float32](ctx, len(data))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, dev.Destroy()) })
	require.NoError(t, dev.CopyFrom(reg))
	require.Equal(t, data, dev.Slice())

	require.NoError(t, reg.Destroy())
	require.NoError(t, reg.Destroy(), "destroy must be idempotent")
}

func TestUseAfterDestroyPanics(t *testing.T) {
	ctx := testContext(t)

	dev, err := NewDeviceMemory[float32](ctx, 8)
	require.NoError(t, err)
	require.NoError(t, dev.Destroy())
	require.Panics(t, func() { _ = dev.Slice() })

	locked, err := NewPageLockedMemory[float32](ctx, 8)
	require.NoError(t, err)
	require.NoError(t, locked.Destroy())
	require.Panics(t, func() { _ = locked.Slice() })
}

// arrayStub stands in for the reserved Array kind, which has no
// constructor yet.
type arrayStub struct {
	data []float32
}

func (a *arrayStub) HeadAddr() uintptr {
	return uintptr(unsafe.Pointer(unsafe.SliceData(a.data)))
}

func (a *arrayStub) ByteSize() uintptr             { return uintptr(len(a.data)) * 4 }
func (a *arrayStub) MemoryType() MemoryType        { return MemoryArray }
func (a *arrayStub) TryAsSlice() ([]float32, bool) { return nil, false }
func (a *arrayStub) TryContext() (*Context, bool)  { return nil, false }

func (a *arrayStub) CopyFrom(src Memory[float32]) error {
	return &NotSupportedError{Op: "copy", Kind: MemoryArray}
}
func (a *arrayStub) Set(value float32) error {
	return &NotSupportedError{Op: "set", Kind: MemoryArray}
}

func TestArrayKindNotSupported(t *testing.T) {
	host := NewHostMemory[float32](4)
	err := host.CopyFrom(&arrayStub{data: make([]float32, 4)})
	var notSupported *NotSupportedError
	require.ErrorAs(t, err, &notSupported)
	require.Equal(t, MemoryArray, notSupported.Kind)
	require.Contains(t, err.Error(), "Array")

	ctx := testContext(t)
	dev, err := NewDeviceMemory[float32](ctx, 4)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, dev.Destroy()) })
	require.ErrorAs(t, dev.CopyFrom(&arrayStub{data: make([]float32, 4)}), &notSupported)
}

func TestMemoryTypeStrings(t *testing.T) {
	require.Equal(t, "Host", MemoryHost.String())
	require.Equal(t, "Device", MemoryDevice.String())
	require.True(t, MemoryPageLocked.IsAMemoryType())
	require.False(t, MemoryType(99).IsAMemoryType())

	mt, err := MemoryTypeString("Registered")
	require.NoError(t, err)
	require.Equal(t, MemoryRegistered, mt)
}
