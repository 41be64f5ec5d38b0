package accel

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// Interface compliance for the memory kinds.
var (
	_ Continuous[float32] = (*HostMemory[float32])(nil)
	_ Continuous[float32] = (*RegisteredMemory[float32])(nil)
	_ Continuous[float32] = (*PageLockedMemory[float32])(nil)
	_ Continuous[float32] = (*DeviceMemory[float32])(nil)
	_ Managed[float32]    = (*PageLockedMemory[float32])(nil)
	_ Managed[float32]    = (*DeviceMemory[float32])(nil)
)

// testContext creates a context on device 0 and destroys it when the
// test finishes.
func testContext(t *testing.T) *Context {
	t.Helper()
	dev, err := NthDevice(0)
	require.NoError(t, err)
	ctx, err := dev.CreateContext()
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, ctx.Destroy()) })
	return ctx
}
