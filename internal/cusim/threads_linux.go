//go:build linux

package cusim

import "golang.org/x/sys/unix"

// tid identifies the calling OS thread. The current-context stack is
// per-thread state in the real driver; callers that care (context
// guards) lock their goroutine to the thread around push/pop.
func tid() int { return unix.Gettid() }
