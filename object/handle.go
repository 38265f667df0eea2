package object

import (
	"runtime"
	"sync/atomic"

	"github.com/wippyai/objbridge/native"
)

// Handle is the Go side of one native object reference.
type Handle struct {
	refs     native.Refcounter
	cleanup  runtime.Cleanup
	ptr      native.Ptr
	released atomic.Bool
	owning   bool
	tracked  bool
}

// Own returns a handle that holds one native reference to ptr. The caller
// transfers that reference; Release gives it back.
func Own(refs native.Refcounter, ptr native.Ptr) *Handle {
	return &Handle{refs: refs, ptr: ptr, owning: ptr != 0}
}

// View returns a borrowed handle. Releasing it never touches the native
// refcount.
func View(ptr native.Ptr) *Handle {
	return &Handle{ptr: ptr}
}

// Track attaches a cleanup to owner that releases h once owner becomes
// unreachable. owner must not be reachable from h.
func Track[T any](h *Handle, owner *T) {
	if !h.owning || h.tracked {
		return
	}
	h.tracked = true
	h.cleanup = runtime.AddCleanup(owner, releaseFromCleanup, h)
}

func releaseFromCleanup(h *Handle) {
	h.release()
}

func (h *Handle) Ptr() native.Ptr {
	return h.ptr
}

// Owning reports whether h holds a native reference.
func (h *Handle) Owning() bool {
	return h.owning
}

// Released reports whether Release has run.
func (h *Handle) Released() bool {
	return h.released.Load()
}

// Release gives back the native reference. It reports whether this call
// performed the release.
func (h *Handle) Release() bool {
	if !h.release() {
		return false
	}
	if h.tracked {
		h.cleanup.Stop()
	}
	return true
}

func (h *Handle) release() bool {
	if !h.released.CompareAndSwap(false, true) {
		return false
	}
	if h.owning {
		h.refs.Unref(h.ptr)
	}
	return true
}

// Equal reports whether h and other refer to the same native object.
func (h *Handle) Equal(other *Handle) bool {
	if h == nil || other == nil {
		return h == other
	}
	return h.ptr == other.ptr
}

// Hash is stable for the lifetime of the native object and identical for
// every handle over the same pointer.
func (h *Handle) Hash() uint64 {
	return HashPtr(h.ptr)
}

// HashPtr mixes a native address into a well-distributed hash.
func HashPtr(p native.Ptr) uint64 {
	z := uint64(p) + 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}
