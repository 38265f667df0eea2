package marshal

import (
	"sync"

	"github.com/wippyai/objbridge/native"
)

// Scratch collects native allocations whose lifetime ends with a call.
// A nil *Scratch discards additions.
type Scratch struct {
	ptrs []native.Ptr
}

var scratchPool = sync.Pool{
	New: func() any {
		return &Scratch{ptrs: make([]native.Ptr, 0, 8)}
	},
}

// NewScratch returns a pooled list.
func NewScratch() *Scratch {
	return scratchPool.Get().(*Scratch)
}

const maxPooledScratchCapacity = 128

// Release returns to pool. Must call after Free(); list invalid after Release.
func (s *Scratch) Release() {
	// Only pool small lists to prevent memory bloat
	if s == nil || cap(s.ptrs) > maxPooledScratchCapacity {
		return
	}
	s.Reset()
	scratchPool.Put(s)
}

func (s *Scratch) FreeAndRelease(mem native.Memory) {
	s.Free(mem)
	s.Release()
}

func (s *Scratch) Add(p native.Ptr) {
	if s == nil || p == 0 {
		return
	}
	s.ptrs = append(s.ptrs, p)
}

// Free releases every collected allocation in reverse order and empties the list.
func (s *Scratch) Free(mem native.Memory) {
	if s == nil || mem == nil {
		return
	}
	for i := len(s.ptrs) - 1; i >= 0; i-- {
		mem.Free(s.ptrs[i])
	}
	s.Reset()
}

func (s *Scratch) Reset() {
	if s == nil {
		return
	}
	s.ptrs = s.ptrs[:0]
}

func (s *Scratch) Count() int {
	if s == nil {
		return 0
	}
	return len(s.ptrs)
}
