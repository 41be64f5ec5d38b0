//go:build !linux

package cusim

// Without a portable thread id the simulator collapses all threads onto
// one context stack. Guarded single-threaded use behaves identically;
// concurrent guarded use from multiple threads is already a caller-side
// serialization requirement.
func tid() int { return 0 }
