package simrt

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/objbridge/native"
)

const (
	pageSize  = 65536
	blockSize = 16
	// heapBase keeps address 0 free so a zero Ptr is always null.
	heapBase = blockSize
)

var (
	ErrOutOfMemory = errors.New("simrt: out of memory")
	ErrBadAlign    = errors.New("simrt: alignment must be a power of two no greater than 16")
)

// Heap is a tracking allocator over a wazero linear memory.
// Blocks are 16-byte aligned and recycled by exact size class.
type Heap struct {
	mem     api.Memory
	runtime wazero.Runtime
	live    map[uint32]uint32
	free    map[uint32][]uint32
	top     uint32
	stats   heapStats
	mu      sync.Mutex
}

type heapStats struct {
	allocs       uint64
	frees        uint64
	invalidFrees uint64
	liveBytes    uint64
}

func newHeap(ctx context.Context, initialPages, maxPages uint32) (*Heap, error) {
	cfg := wazero.NewRuntimeConfigInterpreter().WithMemoryLimitPages(maxPages)
	r := wazero.NewRuntimeWithConfig(ctx, cfg)

	mod, err := r.InstantiateWithConfig(ctx, memoryModule(initialPages, maxPages),
		wazero.NewModuleConfig().WithName("simrt-heap"))
	if err != nil {
		_ = r.Close(ctx)
		return nil, fmt.Errorf("instantiate heap module: %w", err)
	}

	mem := mod.ExportedMemory("memory")
	if mem == nil {
		_ = r.Close(ctx)
		return nil, errors.New("heap module exports no memory")
	}

	return &Heap{
		mem:     mem,
		runtime: r,
		live:    make(map[uint32]uint32),
		free:    make(map[uint32][]uint32),
		top:     heapBase,
	}, nil
}

// memoryModule encodes a module whose only content is one exported memory.
func memoryModule(initialPages, maxPages uint32) []byte {
	limits := []byte{0x01}
	limits = appendULEB(limits, initialPages)
	limits = appendULEB(limits, maxPages)

	memSec := append([]byte{0x01}, limits...)

	expSec := []byte{0x01, 0x06, 'm', 'e', 'm', 'o', 'r', 'y', 0x02, 0x00}

	bin := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	bin = append(bin, 0x05)
	bin = appendULEB(bin, uint32(len(memSec)))
	bin = append(bin, memSec...)
	bin = append(bin, 0x07)
	bin = appendULEB(bin, uint32(len(expSec)))
	bin = append(bin, expSec...)
	return bin
}

func appendULEB(b []byte, v uint32) []byte {
	for {
		c := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b = append(b, c|0x80)
			continue
		}
		return append(b, c)
	}
}

func roundBlock(size uint32) uint32 {
	if size == 0 {
		return blockSize
	}
	return (size + blockSize - 1) &^ (blockSize - 1)
}

// Alloc returns a zeroed block of at least size bytes.
func (h *Heap) Alloc(size, align uint32) (native.Ptr, error) {
	if align > blockSize || align&(align-1) != 0 {
		return 0, ErrBadAlign
	}
	if size > math.MaxUint32-blockSize {
		return 0, ErrOutOfMemory
	}
	n := roundBlock(size)

	h.mu.Lock()
	defer h.mu.Unlock()

	var addr uint32
	if list := h.free[n]; len(list) > 0 {
		addr = list[len(list)-1]
		h.free[n] = list[:len(list)-1]
		if !h.mem.Write(addr, make([]byte, n)) {
			return 0, ErrOutOfMemory
		}
	} else {
		addr = h.top
		end := uint64(addr) + uint64(n)
		if end > uint64(h.mem.Size()) {
			need := (end - uint64(h.mem.Size()) + pageSize - 1) / pageSize
			if _, ok := h.mem.Grow(uint32(need)); !ok {
				return 0, ErrOutOfMemory
			}
		}
		h.top = uint32(end)
	}

	h.live[addr] = n
	h.stats.allocs++
	h.stats.liveBytes += uint64(n)
	return native.Ptr(addr), nil
}

// Free releases a block. Freeing an address that is not a live block is
// counted as an invalid free and otherwise ignored.
func (h *Heap) Free(p native.Ptr) {
	if p == 0 {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	addr := uint32(p)
	n, ok := h.live[addr]
	if !ok || uint64(p) > math.MaxUint32 {
		h.stats.invalidFrees++
		return
	}
	delete(h.live, addr)
	h.free[n] = append(h.free[n], addr)
	h.stats.frees++
	h.stats.liveBytes -= uint64(n)
}

// Live reports whether p is the start of a live block.
func (h *Heap) Live(p native.Ptr) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.live[uint32(p)]
	return ok && uint64(p) <= math.MaxUint32
}

func (h *Heap) Read(p native.Ptr, n uint32) ([]byte, error) {
	if uint64(p) > math.MaxUint32 {
		return nil, fmt.Errorf("read out of bounds: offset=%d, length=%d", p, n)
	}
	data, ok := h.mem.Read(uint32(p), n)
	if !ok {
		return nil, fmt.Errorf("read out of bounds: offset=%d, length=%d", p, n)
	}
	out := make([]byte, n)
	copy(out, data)
	return out, nil
}

func (h *Heap) Write(p native.Ptr, data []byte) error {
	if uint64(p) > math.MaxUint32 || !h.mem.Write(uint32(p), data) {
		return fmt.Errorf("write out of bounds: offset=%d, length=%d", p, len(data))
	}
	return nil
}

// ReadCString reads bytes up to the first NUL.
func (h *Heap) ReadCString(p native.Ptr) (string, error) {
	if p == 0 {
		return "", nil
	}
	if uint64(p) > math.MaxUint32 {
		return "", fmt.Errorf("read out of bounds: offset=%d", p)
	}
	var buf []byte
	for off := uint32(p); ; off++ {
		c, ok := h.mem.ReadByte(off)
		if !ok {
			return "", fmt.Errorf("unterminated string at offset=%d", p)
		}
		if c == 0 {
			return string(buf), nil
		}
		buf = append(buf, c)
	}
}

// AllocCString copies s into a new NUL-terminated block.
func (h *Heap) AllocCString(s string) (native.Ptr, error) {
	p, err := h.Alloc(uint32(len(s))+1, 1)
	if err != nil {
		return 0, err
	}
	if err := h.Write(p, []byte(s)); err != nil {
		h.Free(p)
		return 0, err
	}
	return p, nil
}

// ReadUint64 reads a little-endian 64-bit value.
func (h *Heap) ReadUint64(p native.Ptr) (uint64, error) {
	v, ok := h.mem.ReadUint64Le(uint32(p))
	if !ok || uint64(p) > math.MaxUint32 {
		return 0, fmt.Errorf("read out of bounds: offset=%d", p)
	}
	return v, nil
}

// WriteUint64 writes a little-endian 64-bit value.
func (h *Heap) WriteUint64(p native.Ptr, v uint64) error {
	if uint64(p) > math.MaxUint32 || !h.mem.WriteUint64Le(uint32(p), v) {
		return fmt.Errorf("write out of bounds: offset=%d", p)
	}
	return nil
}

// Pages returns the current size of the backing memory in pages.
func (h *Heap) Pages() uint32 {
	return h.mem.Size() / pageSize
}

func (h *Heap) close(ctx context.Context) error {
	return h.runtime.Close(ctx)
}

var _ native.Memory = (*Heap)(nil)
