// Package accel is a typed, resource-safe layer over the CUDA driver
// API: device contexts with a guarded current-context stack discipline,
// a multi-kind memory abstraction (plain host, registered host,
// page-locked host, device-resident) unified under one interface with a
// kind-aware copy dispatcher, and typed kernel-argument marshalling for
// module loading and kernel launch.
//
// The raw driver gives almost no safety guarantees: a copy between
// mismatched contexts silently corrupts state, an operation issued
// without the right context current is undefined behavior, and a launch
// with a malformed parameter array crashes the device. This package
// makes those failure classes either statically impossible (element
// types are type parameters; copies between different element types do
// not compile) or checked at the call site (sizes, aliasing, context
// identity, stack discipline).
//
// # Typical use
//
//	dev, err := accel.NthDevice(0)
//	ctx, err := dev.CreateContext()
//	defer ctx.Destroy()
//
//	hosts, err := accel.NewPageLockedMemory[float32](ctx, 1024)
//	devs, err := accel.NewDeviceMemory[float32](ctx, 1024)
//	err = devs.CopyFrom(hosts)
//
//	mod, err := accel.ModuleFromPTX(ctx, ptxSource)
//	k, err := mod.Kernel("saxpy")
//	err = k.Launch(accel.GridX(4), accel.BlockX(256),
//		accel.ValueArg(float32(2.0)), accel.MemArg(devs), accel.ValueArg(int32(1024)))
//	err = ctx.Sync()
//
// Every operation that touches the driver runs under a context guard
// scoped to its owning Context, so callers never push or pop contexts
// themselves.
//
// # Drivers
//
// libcuda is bound at runtime (no cgo, no CUDA toolkit at build time).
// When it cannot be loaded, the package transparently falls back to a
// CPU-backed simulated driver that implements the same call surface
// with bounds-checked memory and the full context/module lifecycle, but
// does not execute kernels. UsingSimulator reports which one is active.
//
// # Concurrency
//
// The current-context stack is per OS thread; guards pin their
// goroutine to its thread for their lifetime and must nest strictly
// (last acquired, first released). Memory, Module and Kernel values are
// safe for concurrent reads once created; mutating operations require
// the caller to serialize access. Concurrent unguarded use of the same
// Context from multiple goroutines must be serialized by the caller.
package accel
