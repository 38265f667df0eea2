//go:build linux || darwin

package gobject

import (
	"strings"
	"sync"
	"unicode"

	"github.com/ebitengine/purego"
	"go.uber.org/zap"

	"github.com/wippyai/objbridge/errors"
	"github.com/wippyai/objbridge/native"
)

const maxVFuncParams = 5

var (
	callbacksOnce sync.Once
	classInitCB   uintptr

	// slots holds the patched vtable entries of each derived class until
	// its class_init runs.
	slots sync.Map // native.ClassID -> map[uintptr]uintptr
)

func initCallbacks() {
	callbacksOnce.Do(func() {
		classInitCB = purego.NewCallback(classInit)
		signalCBs = [...]uintptr{
			purego.NewCallback(signal0),
			purego.NewCallback(signal1),
			purego.NewCallback(signal2),
			purego.NewCallback(signal3),
			purego.NewCallback(signal4),
		}
	})
}

func classInit(klass, _ uintptr) uintptr {
	gtype := native.ClassID(peek(klass))
	if v, ok := slots.Load(gtype); ok {
		for off, fn := range v.(map[uintptr]uintptr) {
			poke(klass+off, fn)
		}
	}
	return 0
}

// typeSymbol maps a type name to its get_type entry point:
// GtkWidget -> gtk_widget_get_type.
func typeSymbol(name string) string {
	rs := []rune(name)
	var b strings.Builder
	for i, c := range rs {
		if i > 0 && unicode.IsUpper(c) {
			prev := rs[i-1]
			nextLower := i+1 < len(rs) && unicode.IsLower(rs[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				b.WriteByte('_')
			}
		}
		b.WriteRune(unicode.ToLower(c))
	}
	b.WriteString("_get_type")
	return b.String()
}

// LookupClass resolves a registered GType by name. Types not yet
// registered are initialised through their get_type function.
func (r *Runtime) LookupClass(name string) (native.ClassID, bool) {
	if t := r.fn.typeFromName(name); t != 0 {
		return native.ClassID(t), true
	}
	addr := r.symbol(typeSymbol(name))
	if addr == 0 {
		return 0, false
	}
	t, _, _ := purego.SyscallN(addr)
	return native.ClassID(t), t != 0
}

func (r *Runtime) ClassParent(c native.ClassID) native.ClassID {
	return native.ClassID(r.fn.typeParent(uintptr(c)))
}

func (r *Runtime) ClassName(c native.ClassID) string {
	return r.fn.typeName(uintptr(c))
}

// ClassOf reads G_TYPE_FROM_INSTANCE.
func (r *Runtime) ClassOf(p native.Ptr) native.ClassID {
	if p == 0 {
		return 0
	}
	return native.ClassID(peek(peek(uintptr(p))))
}

// DeriveClass registers a static subtype of parent whose class structure
// points the overridden vfuncs at Go trampolines. Every override must have a
// VFuncs entry in the Config.
func (r *Runtime) DeriveClass(parent native.ClassID, name string, overrides map[string]native.Func) (native.ClassID, error) {
	patch := make(map[uintptr]uintptr, len(overrides))
	for sym, fn := range overrides {
		vf, ok := r.vfuncs[sym]
		if !ok {
			return 0, errors.New(errors.PhaseRegister, errors.KindRegistration).
				Path(name, sym).
				Detail("no vfunc slot configured").
				Build()
		}
		if vf.Params > maxVFuncParams || vf.Results > 1 {
			return 0, errors.Unsupported(errors.PhaseRegister, "vfunc "+sym+" arity")
		}
		patch[vf.Offset] = r.trampoline(vf, fn)
	}

	var q typeQuery
	r.fn.typeQuery(uintptr(parent), &q)
	if q.gtype == 0 {
		return 0, errors.NotFound(errors.PhaseRegister, "parent type", r.ClassName(parent))
	}
	t := r.fn.registerSimple(uintptr(parent), name, q.classSize, classInitCB, q.instanceSize, 0, 0)
	if t == 0 {
		return 0, errors.New(errors.PhaseRegister, errors.KindRegistration).
			Path(name).
			Detail("g_type_register_static_simple rejected %s", name).
			Build()
	}
	slots.Store(native.ClassID(t), patch)
	// The class reference is never dropped; static types live for the process.
	r.fn.classRef(t)

	r.log.Debug("derived class",
		zap.String("name", name),
		zap.String("parent", r.ClassName(parent)),
		zap.Int("overrides", len(overrides)))
	return native.ClassID(t), nil
}

// trampoline wraps fn as a C function pointer taking the instance and up to
// maxVFuncParams integer arguments.
func (r *Runtime) trampoline(vf VFunc, fn native.Func) uintptr {
	return purego.NewCallback(func(self, a1, a2, a3, a4, a5 uintptr) uintptr {
		args := [maxVFuncParams]uintptr{a1, a2, a3, a4, a5}
		f := &native.Frame{
			Self:   native.Ptr(self),
			Params: make([]uint64, vf.Params),
			Data:   r.InstanceData(native.Ptr(self)),
		}
		for i := range f.Params {
			f.Params[i] = uint64(args[i])
		}
		if vf.Results > 0 {
			f.Results = make([]uint64, 1)
		}
		fn(f)
		if vf.Results > 0 {
			return uintptr(f.Results[0])
		}
		return 0
	})
}

// NewInstance creates an instance and sinks a floating reference so the
// caller always owns exactly one.
func (r *Runtime) NewInstance(c native.ClassID) (native.Ptr, error) {
	p := r.fn.objectNew(uintptr(c), 0, 0, 0)
	if p == 0 {
		return 0, errors.New(errors.PhaseLifecycle, errors.KindAllocation).
			Detail("g_object_new_with_properties(%s) returned NULL", r.ClassName(c)).
			Build()
	}
	if r.fn.isFloating(p) != 0 {
		r.fn.refSink(p)
	}
	return native.Ptr(p), nil
}

// CallSuper invokes the vfunc slot of symbol in the class structure of
// c's parent.
func (r *Runtime) CallSuper(c native.ClassID, symbol string, f *native.Frame) bool {
	vf, ok := r.vfuncs[symbol]
	if !ok {
		return false
	}
	parent := r.fn.typeParent(uintptr(c))
	if parent == 0 {
		return false
	}
	klass := r.fn.classPeek(parent)
	if klass == 0 {
		klass = r.fn.classRef(parent)
	}
	fn := peek(klass + vf.Offset)
	if fn == 0 {
		return false
	}
	if f.Self != 0 && f.Data == 0 {
		f.Data = r.InstanceData(f.Self)
	}
	invoke(fn, f)
	return true
}

// Call invokes a C entry point by symbol. The instance pointer, when set,
// is passed first.
func (r *Runtime) Call(symbol string, f *native.Frame) bool {
	addr := r.symbol(symbol)
	if addr == 0 {
		return false
	}
	invoke(addr, f)
	return true
}

func invoke(fn uintptr, f *native.Frame) {
	args := make([]uintptr, 0, len(f.Params)+1)
	if f.Self != 0 {
		args = append(args, uintptr(f.Self))
	}
	for _, p := range f.Params {
		args = append(args, uintptr(p))
	}
	r1, _, _ := purego.SyscallN(fn, args...)
	if len(f.Results) > 0 {
		f.Results[0] = uint64(r1)
	}
}
