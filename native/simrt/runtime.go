package simrt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/wippyai/objbridge/native"
)

var (
	ErrUnknownClass = errors.New("simrt: unknown class")
	ErrClassExists  = errors.New("simrt: class already defined")
	ErrDeadObject   = errors.New("simrt: object is not alive")
)

// SymFinalize is the virtual operation run when the last reference drops.
const SymFinalize = "finalize"

const instanceSize = 16

type config struct {
	initialPages uint32
	maxPages     uint32
}

// Option configures a Runtime.
type Option func(*config)

// WithInitialPages sets the initial heap size in 64KiB pages.
func WithInitialPages(n uint32) Option {
	return func(c *config) {
		if n > 0 {
			c.initialPages = n
		}
	}
}

// WithMaxPages caps heap growth in 64KiB pages.
func WithMaxPages(n uint32) Option {
	return func(c *config) {
		if n > 0 {
			c.maxPages = n
		}
	}
}

type classInfo struct {
	vtable map[string]native.Func
	name   string
	parent native.ClassID
}

type instance struct {
	class native.ClassID
	refs  int64
	data  uintptr
}

// Runtime is an in-process native object runtime. It implements
// native.Runtime and counts every refcount and registration operation so
// tests can assert on boundary traffic.
//
// No internal lock is held while a Func or EventFunc runs, so callbacks may
// re-enter the runtime freely.
type Runtime struct {
	*Heap
	classes  []*classInfo
	byName   map[string]native.ClassID
	objects  map[native.Ptr]*instance
	funcs    map[string]native.Func
	events   *eventTable
	counters counters
	mu       sync.RWMutex
}

type counters struct {
	refs        atomic.Uint64
	unrefs      atomic.Uint64
	invalidRefs atomic.Uint64
	finalized   atomic.Uint64
	connects    atomic.Uint64
	disconnects atomic.Uint64
	emits       atomic.Uint64
}

// New creates a Runtime with an empty class table.
func New(opts ...Option) (*Runtime, error) {
	cfg := config{initialPages: 1, maxPages: 256}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.maxPages < cfg.initialPages {
		cfg.maxPages = cfg.initialPages
	}

	heap, err := newHeap(context.Background(), cfg.initialPages, cfg.maxPages)
	if err != nil {
		return nil, err
	}

	return &Runtime{
		Heap:    heap,
		byName:  make(map[string]native.ClassID),
		objects: make(map[native.Ptr]*instance),
		funcs:   make(map[string]native.Func),
		events:  newEventTable(),
	}, nil
}

// Close releases the backing memory.
func (r *Runtime) Close() error {
	return r.Heap.close(context.Background())
}

// DefineClass adds a class whose vtable holds the given operations.
// Operations missing from vtable are inherited from parent.
func (r *Runtime) DefineClass(name string, parent native.ClassID, vtable map[string]native.Func) (native.ClassID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byName[name]; ok {
		return 0, fmt.Errorf("%w: %s", ErrClassExists, name)
	}
	if parent != 0 && r.classLocked(parent) == nil {
		return 0, fmt.Errorf("%w: parent %d", ErrUnknownClass, parent)
	}

	vt := make(map[string]native.Func, len(vtable))
	for sym, fn := range vtable {
		vt[sym] = fn
	}

	r.classes = append(r.classes, &classInfo{name: name, parent: parent, vtable: vt})
	id := native.ClassID(len(r.classes))
	r.byName[name] = id
	return id, nil
}

// RegisterFunc installs a non-virtual entry point callable through Call.
func (r *Runtime) RegisterFunc(symbol string, fn native.Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[symbol] = fn
}

func (r *Runtime) classLocked(c native.ClassID) *classInfo {
	if c == 0 || int(c) > len(r.classes) {
		return nil
	}
	return r.classes[c-1]
}

func (r *Runtime) LookupClass(name string) (native.ClassID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byName[name]
	return id, ok
}

func (r *Runtime) ClassParent(c native.ClassID) native.ClassID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if ci := r.classLocked(c); ci != nil {
		return ci.parent
	}
	return 0
}

func (r *Runtime) ClassName(c native.ClassID) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if ci := r.classLocked(c); ci != nil {
		return ci.name
	}
	return ""
}

func (r *Runtime) DeriveClass(parent native.ClassID, name string, overrides map[string]native.Func) (native.ClassID, error) {
	return r.DefineClass(name, parent, overrides)
}

// IsA reports whether c is sub or one of its descendants.
func (r *Runtime) IsA(c, sub native.ClassID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for c != 0 {
		if c == sub {
			return true
		}
		ci := r.classLocked(c)
		if ci == nil {
			return false
		}
		c = ci.parent
	}
	return false
}

// resolve finds the implementation of symbol starting at class c.
func (r *Runtime) resolve(c native.ClassID, symbol string) native.Func {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for c != 0 {
		ci := r.classLocked(c)
		if ci == nil {
			return nil
		}
		if fn, ok := ci.vtable[symbol]; ok {
			return fn
		}
		c = ci.parent
	}
	return nil
}

func (r *Runtime) NewInstance(c native.ClassID) (native.Ptr, error) {
	r.mu.RLock()
	ok := r.classLocked(c) != nil
	r.mu.RUnlock()
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrUnknownClass, c)
	}

	p, err := r.Heap.Alloc(instanceSize, blockSize)
	if err != nil {
		return 0, err
	}

	r.mu.Lock()
	r.objects[p] = &instance{class: c, refs: 1}
	r.mu.Unlock()
	return p, nil
}

func (r *Runtime) ClassOf(p native.Ptr) native.ClassID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if inst := r.objects[p]; inst != nil {
		return inst.class
	}
	return 0
}

func (r *Runtime) SetInstanceData(p native.Ptr, data uintptr) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if inst := r.objects[p]; inst != nil {
		inst.data = data
	}
}

func (r *Runtime) InstanceData(p native.Ptr) uintptr {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if inst := r.objects[p]; inst != nil {
		return inst.data
	}
	return 0
}

// Alive reports whether p is a live instance.
func (r *Runtime) Alive(p native.Ptr) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.objects[p] != nil
}

// RefCount returns the reference count of a live instance, or 0.
func (r *Runtime) RefCount(p native.Ptr) int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if inst := r.objects[p]; inst != nil {
		return inst.refs
	}
	return 0
}

func (r *Runtime) Ref(p native.Ptr) {
	r.mu.Lock()
	inst := r.objects[p]
	if inst == nil {
		r.mu.Unlock()
		r.counters.invalidRefs.Add(1)
		return
	}
	inst.refs++
	r.mu.Unlock()
	r.counters.refs.Add(1)
}

func (r *Runtime) Unref(p native.Ptr) {
	r.mu.Lock()
	inst := r.objects[p]
	if inst == nil {
		r.mu.Unlock()
		r.counters.invalidRefs.Add(1)
		return
	}
	inst.refs--
	last := inst.refs == 0
	r.mu.Unlock()
	r.counters.unrefs.Add(1)

	if last {
		r.finalize(p, inst)
	}
}

func (r *Runtime) finalize(p native.Ptr, inst *instance) {
	if fn := r.resolve(inst.class, SymFinalize); fn != nil {
		fn(&native.Frame{Self: p, Data: inst.data})
	}
	r.events.dropObject(p)

	r.mu.Lock()
	delete(r.objects, p)
	r.mu.Unlock()

	r.Heap.Free(p)
	r.counters.finalized.Add(1)
}

// CallSuper runs the parent implementation of symbol. Like Call, it fills
// f.Data from the instance so an override further up still finds its wrapper.
func (r *Runtime) CallSuper(c native.ClassID, symbol string, f *native.Frame) bool {
	if f.Self != 0 && f.Data == 0 {
		f.Data = r.InstanceData(f.Self)
	}
	parent := r.ClassParent(c)
	if parent == 0 {
		return false
	}
	fn := r.resolve(parent, symbol)
	if fn == nil {
		return false
	}
	fn(f)
	return true
}

// Call runs a registered function, or dispatches symbol virtually on the
// class of f.Self. Virtual dispatch fills f.Data from the instance.
func (r *Runtime) Call(symbol string, f *native.Frame) bool {
	r.mu.RLock()
	fn, ok := r.funcs[symbol]
	r.mu.RUnlock()
	if ok {
		fn(f)
		return true
	}

	if f.Self == 0 {
		return false
	}

	r.mu.RLock()
	inst := r.objects[f.Self]
	var c native.ClassID
	if inst != nil {
		c = inst.class
		f.Data = inst.data
	}
	r.mu.RUnlock()
	if inst == nil {
		return false
	}

	fn = r.resolve(c, symbol)
	if fn == nil {
		return false
	}
	fn(f)
	return true
}

// Invoke performs a virtual call from the native side, as native code
// calling through its own vtable would.
func (r *Runtime) Invoke(self native.Ptr, symbol string, nresults int, params ...uint64) ([]uint64, bool) {
	f := &native.Frame{Self: self, Params: params, Results: make([]uint64, nresults)}
	if !r.Call(symbol, f) {
		return nil, false
	}
	return f.Results, true
}

// Stats is a snapshot of boundary traffic and heap state.
type Stats struct {
	Refs         uint64
	Unrefs       uint64
	InvalidRefs  uint64
	Finalized    uint64
	Connects     uint64
	Disconnects  uint64
	Emits        uint64
	Allocs       uint64
	Frees        uint64
	InvalidFrees uint64
	LiveBytes    uint64
	LiveAllocs   int
	LiveObjects  int
}

// Stats returns current counters.
func (r *Runtime) Stats() Stats {
	r.mu.RLock()
	liveObjects := len(r.objects)
	r.mu.RUnlock()

	r.Heap.mu.Lock()
	hs := r.Heap.stats
	liveAllocs := len(r.Heap.live)
	r.Heap.mu.Unlock()

	return Stats{
		Refs:         r.counters.refs.Load(),
		Unrefs:       r.counters.unrefs.Load(),
		InvalidRefs:  r.counters.invalidRefs.Load(),
		Finalized:    r.counters.finalized.Load(),
		Connects:     r.counters.connects.Load(),
		Disconnects:  r.counters.disconnects.Load(),
		Emits:        r.counters.emits.Load(),
		Allocs:       hs.allocs,
		Frees:        hs.frees,
		InvalidFrees: hs.invalidFrees,
		LiveBytes:    hs.liveBytes,
		LiveAllocs:   liveAllocs,
		LiveObjects:  liveObjects,
	}
}

var _ native.Runtime = (*Runtime)(nil)
