package native

// Ptr is a native address. Zero is the null pointer.
type Ptr uint64

// ClassID identifies a native class. Zero is invalid.
type ClassID uint64

// EventID identifies a resolved native event descriptor.
type EventID uint64

// HandlerID identifies one native event registration on one object.
type HandlerID uint64

// Frame carries one native call across the boundary.
// Params and Results are flat 64-bit ABI slots in native argument order.
type Frame struct {
	Params  []uint64
	Results []uint64
	Self    Ptr
	Data    uintptr
}

// Func is the shape of a trampoline installed in a native class.
type Func func(f *Frame)

// EventFunc receives a native event emission. Data is the value passed to Connect.
type EventFunc func(obj Ptr, payload []uint64, data uintptr)

// Memory gives access to the native heap.
type Memory interface {
	// Alloc returns a zeroed block of at least size bytes.
	Alloc(size, align uint32) (Ptr, error)

	// Free releases a block returned by Alloc.
	Free(p Ptr)

	Read(p Ptr, n uint32) ([]byte, error)
	Write(p Ptr, data []byte) error

	// ReadCString reads a NUL-terminated string.
	ReadCString(p Ptr) (string, error)
}

// Refcounter exposes the native reference counting primitives.
type Refcounter interface {
	Ref(p Ptr)
	Unref(p Ptr)
}

// ClassSystem is the native class hierarchy and its virtual dispatch.
type ClassSystem interface {
	// LookupClass resolves a native class by name.
	LookupClass(name string) (ClassID, bool)

	// ClassParent returns the parent class, or zero for a root.
	ClassParent(c ClassID) ClassID

	ClassName(c ClassID) string

	// DeriveClass registers a subclass of parent. Overrides maps virtual
	// operation symbols to trampolines; every other operation keeps the
	// parent's implementation.
	DeriveClass(parent ClassID, name string, overrides map[string]Func) (ClassID, error)

	// ClassOf returns the class of a live instance.
	ClassOf(p Ptr) ClassID

	// NewInstance creates an instance holding one reference owned by the caller.
	NewInstance(c ClassID) (Ptr, error)

	// SetInstanceData attaches the private data passed to trampolines.
	SetInstanceData(p Ptr, data uintptr)
	InstanceData(p Ptr) uintptr

	// CallSuper invokes the implementation of symbol that the parent of c
	// provides. It reports false when no ancestor implements symbol.
	// f.Data is filled from f.Self when the caller left it zero.
	CallSuper(c ClassID, symbol string, f *Frame) bool

	// Call invokes a native entry point by symbol. Virtual operations
	// dispatch on the class of f.Self.
	Call(symbol string, f *Frame) bool
}

// EventTable resolves and manages native event registrations.
type EventTable interface {
	ResolveEvent(library, name string) (EventID, bool)
	Connect(obj Ptr, ev EventID, cb EventFunc, data uintptr) (HandlerID, error)
	Disconnect(obj Ptr, h HandlerID)
}

// Runtime is everything the bridge needs from a native object system.
type Runtime interface {
	Memory
	Refcounter
	ClassSystem
	EventTable
}
