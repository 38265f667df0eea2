//go:build linux || darwin

// Package gobject implements native.Runtime over GLib's GObject type system.
//
// The libraries are loaded at run time with purego, so the package builds
// without cgo. Class identifiers are GTypes, instance private data lives in
// object qdata, derived classes are registered with
// g_type_register_static_simple and their virtual functions are patched with
// purego callbacks, and events are GObject signals.
//
// Slots cross the C ABI as integer registers. Operations and signals that
// take or return floating point values directly are not supported by this
// backend; pass them through pointers or use a C shim.
package gobject

import (
	"fmt"
	"runtime"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
	"go.uber.org/zap"

	"github.com/wippyai/objbridge/errors"
	"github.com/wippyai/objbridge/native"
)

const maxAlign = 16

// VFunc locates one virtual operation in a class structure.
type VFunc struct {
	// Offset is the byte offset of the function pointer in the class struct.
	Offset uintptr
	// Params counts the arguments after the instance pointer.
	Params int
	// Results is 0 or 1.
	Results int
}

// Config selects the libraries to load and the class structure layout of
// every virtual operation a managed subclass may override.
type Config struct {
	Logger *zap.Logger

	// VFuncs maps operation symbols to class structure slots.
	VFuncs map[string]VFunc

	// GObject overrides the libgobject path. When empty the platform
	// defaults are tried in order.
	GObject string

	// Libraries are opened after libgobject and searched by Call and
	// LookupClass, e.g. "libgtk-4.so.1".
	Libraries []string
}

// GObjectVFuncs is the GObjectClass layout on 64-bit platforms.
var GObjectVFuncs = map[string]VFunc{
	"g_object_dispose":     {Offset: 40},
	"g_object_finalize":    {Offset: 48},
	"g_object_constructed": {Offset: 72},
}

func defaultPaths() []string {
	if runtime.GOOS == "darwin" {
		return []string{
			"libgobject-2.0.0.dylib",
			"/opt/homebrew/lib/libgobject-2.0.0.dylib",
			"/usr/local/lib/libgobject-2.0.0.dylib",
		}
	}
	return []string{"libgobject-2.0.so.0", "libgobject-2.0.so"}
}

type typeQuery struct {
	gtype        uintptr
	typeName     uintptr
	classSize    uint32
	instanceSize uint32
}

type signalQuery struct {
	signalID    uint32
	signalName  uintptr
	itype       uintptr
	signalFlags uint32
	returnType  uintptr
	nParams     uint32
	paramTypes  uintptr
}

type funcs struct {
	malloc0          func(n uintptr) uintptr
	free             func(p uintptr)
	ref              func(p uintptr) uintptr
	unref            func(p uintptr)
	refSink          func(p uintptr) uintptr
	isFloating       func(p uintptr) int32
	typeFromName     func(name string) uintptr
	typeName         func(t uintptr) string
	typeParent       func(t uintptr) uintptr
	typeQuery        func(t uintptr, q *typeQuery)
	registerSimple   func(parent uintptr, name string, classSize uint32, classInit uintptr, instanceSize uint32, instanceInit uintptr, flags uint32) uintptr
	classRef         func(t uintptr) uintptr
	classPeek        func(t uintptr) uintptr
	objectNew        func(t uintptr, n uint32, names, values uintptr) uintptr
	setQdata         func(obj uintptr, quark uint32, data uintptr)
	getQdata         func(obj uintptr, quark uint32) uintptr
	quarkFromString  func(s string) uint32
	signalLookup     func(name string, itype uintptr) uint32
	signalQuery      func(id uint32, q *signalQuery)
	signalConnect    func(obj uintptr, name string, handler, data, destroy uintptr, flags uint32) uint64
	signalDisconnect func(obj uintptr, id uint64)
}

// Runtime is a native.Runtime backed by libgobject.
type Runtime struct {
	log     *zap.Logger
	vfuncs  map[string]VFunc
	libs    []uintptr
	fn      funcs
	quark   uint32
	mu      sync.Mutex
	symbols map[string]uintptr
	events  []string
	eventID map[string]native.EventID
	tokens  map[handlerKey]uintptr
}

var _ native.Runtime = (*Runtime)(nil)

// New loads libgobject and the configured libraries.
func New(cfg Config) (*Runtime, error) {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	paths := defaultPaths()
	if cfg.GObject != "" {
		paths = []string{cfg.GObject}
	}

	var (
		handle uintptr
		err    error
	)
	for _, p := range paths {
		handle, err = purego.Dlopen(p, purego.RTLD_NOW|purego.RTLD_GLOBAL)
		if err == nil {
			log.Debug("loaded gobject", zap.String("path", p))
			break
		}
	}
	if handle == 0 {
		return nil, errors.Load("dlopen libgobject", err)
	}

	r := &Runtime{
		log:     log,
		vfuncs:  cfg.VFuncs,
		libs:    []uintptr{handle},
		symbols: make(map[string]uintptr),
		eventID: make(map[string]native.EventID),
		tokens:  make(map[handlerKey]uintptr),
	}
	if err := r.bindAll(handle); err != nil {
		return nil, err
	}
	for _, lib := range cfg.Libraries {
		h, err := purego.Dlopen(lib, purego.RTLD_NOW|purego.RTLD_GLOBAL)
		if err != nil {
			return nil, errors.Load("dlopen "+lib, err)
		}
		r.libs = append(r.libs, h)
	}
	r.quark = r.fn.quarkFromString("objbridge-instance-data")
	initCallbacks()
	return r, nil
}

func (r *Runtime) bindAll(h uintptr) error {
	f := &r.fn
	for _, b := range []struct {
		fptr any
		name string
	}{
		{&f.malloc0, "g_malloc0"},
		{&f.free, "g_free"},
		{&f.ref, "g_object_ref"},
		{&f.unref, "g_object_unref"},
		{&f.refSink, "g_object_ref_sink"},
		{&f.isFloating, "g_object_is_floating"},
		{&f.typeFromName, "g_type_from_name"},
		{&f.typeName, "g_type_name"},
		{&f.typeParent, "g_type_parent"},
		{&f.typeQuery, "g_type_query"},
		{&f.registerSimple, "g_type_register_static_simple"},
		{&f.classRef, "g_type_class_ref"},
		{&f.classPeek, "g_type_class_peek"},
		{&f.objectNew, "g_object_new_with_properties"},
		{&f.setQdata, "g_object_set_qdata"},
		{&f.getQdata, "g_object_get_qdata"},
		{&f.quarkFromString, "g_quark_from_string"},
		{&f.signalLookup, "g_signal_lookup"},
		{&f.signalQuery, "g_signal_query"},
		{&f.signalConnect, "g_signal_connect_data"},
		{&f.signalDisconnect, "g_signal_handler_disconnect"},
	} {
		if err := bind(h, b.fptr, b.name); err != nil {
			return err
		}
	}
	return nil
}

// bind turns RegisterLibFunc's panic on a missing symbol into an error.
func bind(h uintptr, fptr any, name string) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = errors.Load("symbol "+name, fmt.Errorf("%v", rec))
		}
	}()
	purego.RegisterLibFunc(fptr, h, name)
	return nil
}

// symbol resolves a C entry point in any loaded library.
func (r *Runtime) symbol(name string) uintptr {
	r.mu.Lock()
	defer r.mu.Unlock()
	if addr, ok := r.symbols[name]; ok {
		return addr
	}
	var addr uintptr
	for _, h := range r.libs {
		if a, err := purego.Dlsym(h, name); err == nil && a != 0 {
			addr = a
			break
		}
	}
	r.symbols[name] = addr
	return addr
}

func peek(addr uintptr) uintptr {
	return *(*uintptr)(unsafe.Pointer(addr))
}

func poke(addr, v uintptr) {
	*(*uintptr)(unsafe.Pointer(addr)) = v
}

func bytesAt(p native.Ptr, n uint32) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(uintptr(p))), n)
}

func (r *Runtime) Alloc(size, align uint32) (native.Ptr, error) {
	if align > maxAlign || align&(align-1) != 0 {
		return 0, errors.AllocationFailed(errors.PhaseLower, size, align)
	}
	if size == 0 {
		size = 1
	}
	p := r.fn.malloc0(uintptr(size))
	if p == 0 {
		return 0, errors.AllocationFailed(errors.PhaseLower, size, align)
	}
	return native.Ptr(p), nil
}

func (r *Runtime) Free(p native.Ptr) {
	if p != 0 {
		r.fn.free(uintptr(p))
	}
}

func (r *Runtime) Read(p native.Ptr, n uint32) ([]byte, error) {
	if p == 0 {
		return nil, errors.NilPointer(errors.PhaseLift, nil, "[]byte")
	}
	out := make([]byte, n)
	copy(out, bytesAt(p, n))
	return out, nil
}

func (r *Runtime) Write(p native.Ptr, data []byte) error {
	if p == 0 {
		return errors.NilPointer(errors.PhaseLower, nil, "[]byte")
	}
	copy(bytesAt(p, uint32(len(data))), data)
	return nil
}

func (r *Runtime) ReadCString(p native.Ptr) (string, error) {
	if p == 0 {
		return "", nil
	}
	n := uint32(0)
	for *(*byte)(unsafe.Pointer(uintptr(p) + uintptr(n))) != 0 {
		n++
	}
	return string(bytesAt(p, n)), nil
}

func (r *Runtime) Ref(p native.Ptr) {
	if p != 0 {
		r.fn.ref(uintptr(p))
	}
}

func (r *Runtime) Unref(p native.Ptr) {
	if p != 0 {
		r.fn.unref(uintptr(p))
	}
}

func (r *Runtime) SetInstanceData(p native.Ptr, data uintptr) {
	r.fn.setQdata(uintptr(p), r.quark, data)
}

func (r *Runtime) InstanceData(p native.Ptr) uintptr {
	if p == 0 {
		return 0
	}
	return r.fn.getQdata(uintptr(p), r.quark)
}
