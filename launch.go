package accel

import (
	"runtime"
	"unsafe"
)

// Grid is the grid geometry of a launch. Zero components are
// normalized to 1, so the zero value is a single-block grid.
type Grid struct {
	X, Y, Z uint32
}

func GridX(x uint32) Grid         { return Grid{X: x} }
func GridXY(x, y uint32) Grid     { return Grid{X: x, Y: y} }
func GridXYZ(x, y, z uint32) Grid { return Grid{X: x, Y: y, Z: z} }

// Block is the block geometry of a launch, with the same zero
// normalization as Grid.
type Block struct {
	X, Y, Z uint32
}

func BlockX(x uint32) Block         { return Block{X: x} }
func BlockXY(x, y uint32) Block     { return Block{X: x, Y: y} }
func BlockXYZ(x, y, z uint32) Block { return Block{X: x, Y: y, Z: z} }

func dim(v uint32) uint32 {
	if v == 0 {
		return 1
	}
	return v
}

// Arg is one kernel argument, pinned in a stable cell so the launch
// can take its address. Build them with ValueArg and MemArg.
type Arg struct {
	cell unsafe.Pointer
	keep any
}

// ValueArg marshals a scalar, bool or raw pointer value by copying it
// into a dedicated cell.
func ValueArg[T DeviceSend](v T) Arg {
	cell := new(T)
	*cell = v
	return Arg{cell: unsafe.Pointer(cell), keep: cell}
}

// MemArg marshals a memory region as its head device pointer. The
// region must stay alive until the launch completes.
func MemArg[T Scalar](m Memory[T]) Arg {
	cell := new(uintptr)
	*cell = m.HeadAddr()
	return Arg{cell: unsafe.Pointer(cell), keep: m}
}

// Launch enqueues the kernel on the default stream of its module's
// context with zero dynamic shared memory, then returns without
// synchronizing. Launch failures inside the kernel surface at the next
// Context.Sync.
func (k *Kernel) Launch(grid Grid, block Block, args ...Arg) error {
	k.module.handle() // reject launches through a destroyed module
	ctx := k.module.ctx
	g := ctx.Guard()
	defer g.Release()
	d, err := activeDriver()
	if err != nil {
		return err
	}
	params := make([]unsafe.Pointer, len(args))
	for i, a := range args {
		params[i] = a.cell
	}
	res := d.LaunchKernel(k.fn,
		dim(grid.X), dim(grid.Y), dim(grid.Z),
		dim(block.X), dim(block.Y), dim(block.Z),
		0, 0, params)
	runtime.KeepAlive(args)
	return status("cuLaunchKernel", res)
}
