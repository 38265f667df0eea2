package bridge

import (
	"fmt"
	"reflect"
	"slices"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/wippyai/objbridge/class"
	"github.com/wippyai/objbridge/errors"
	"github.com/wippyai/objbridge/marshal"
	"github.com/wippyai/objbridge/native"
	"github.com/wippyai/objbridge/object"
)

// Wrapper is implemented by every type embedding Object, directly or
// through a generated wrapper.
type Wrapper interface {
	object() *Object
	Dispose()
}

// Object is the core embedded in generated wrapper types. The zero value
// is unbound; Bridge.Construct, Bridge.Adopt or a lift binds it.
//
// Overrides of one object must not run on several goroutines at once:
// CallSuper inside an override finds its level through a per-object stack
// of running overrides, which concurrent callers would share.
type Object struct {
	b      *Bridge
	handle *object.Handle
	desc   *class.Descriptor
	self   Wrapper

	// retained keeps borrowed results of overrides alive until the next
	// call of the same operation.
	retained map[string]*marshal.Scratch
	frames   []*superFrame

	id       object.ID
	disposed atomic.Bool
	mu       sync.Mutex
}

type superFrame struct {
	symbol string
	class  native.ClassID
}

func (o *Object) object() *Object { return o }

// Ptr returns the raw native pointer, or zero when unbound.
func (o *Object) Ptr() native.Ptr {
	if o.handle == nil {
		return 0
	}
	return o.handle.Ptr()
}

// Bound reports whether the object refers to a native instance.
func (o *Object) Bound() bool { return o.b != nil }

// Owning reports whether this wrapper holds a native reference.
func (o *Object) Owning() bool {
	return o.handle != nil && o.handle.Owning()
}

func (o *Object) Descriptor() *class.Descriptor { return o.desc }

func (o *Object) Bridge() *Bridge { return o.b }

// Equal reports whether w wraps the same native object.
func (o *Object) Equal(w Wrapper) bool {
	if w == nil || reflect.ValueOf(w).IsNil() {
		return false
	}
	other := w.object()
	if o.handle == nil || other.handle == nil {
		return o == other
	}
	return o.handle.Equal(other.handle)
}

// Hash is identical for every wrapper of one native object.
func (o *Object) Hash() uint64 {
	return object.HashPtr(o.Ptr())
}

func (o *Object) String() string {
	if o.desc == nil {
		return "<unbound>"
	}
	return fmt.Sprintf("%s@%#x", o.desc.Name, uint64(o.Ptr()))
}

// Call invokes an operation by method name or native symbol. Results are
// the operation result followed by out parameters, in natural Go types;
// object results are Wrappers.
func (o *Object) Call(name string, args ...any) ([]any, error) {
	op, err := o.op(name)
	if err != nil {
		return nil, err
	}
	return o.callOp(op, args, nil)
}

func (o *Object) callOp(op *class.OpDef, args []any, targets []reflect.Type) ([]any, error) {
	self := o.Ptr()
	if op.Static {
		self = 0
	}
	return o.b.call(self, op, args, 0, targets)
}

// CallSuper invokes the implementation the parent of the overriding class
// provides. Inside an override it chains to the next implementation up;
// see Object for the goroutine restriction this relies on.
func (o *Object) CallSuper(name string, args ...any) ([]any, error) {
	op, err := o.op(name)
	if err != nil {
		return nil, err
	}
	c, ok := o.superClass(op.Symbol)
	if !ok {
		return nil, errors.NotFound(errors.PhaseDispatch, "override to chain from", op.Symbol)
	}
	return o.b.call(o.Ptr(), op, args, c, nil)
}

func (o *Object) op(name string) (*class.OpDef, error) {
	if o.b == nil {
		return nil, errors.NotInitialized(errors.PhaseDispatch, "object")
	}
	op, _, ok := o.desc.Op(name)
	if !ok {
		return nil, errors.NotFound(errors.PhaseDispatch, "operation", fmt.Sprintf("%s.%s", o.desc.Name, name))
	}
	return op, nil
}

// superClass picks the class whose parent implementation CallSuper runs:
// the override currently executing for symbol, else the most derived one.
func (o *Object) superClass(symbol string) (native.ClassID, bool) {
	o.mu.Lock()
	for i := len(o.frames) - 1; i >= 0; i-- {
		if o.frames[i].symbol == symbol {
			c := o.frames[i].class
			o.mu.Unlock()
			return c, true
		}
	}
	o.mu.Unlock()

	for _, d := range o.desc.MRO {
		if _, ok := d.Override(symbol); ok {
			return d.Class, true
		}
	}
	return 0, false
}

func (o *Object) pushFrame(symbol string, c native.ClassID) *superFrame {
	fr := &superFrame{symbol: symbol, class: c}
	o.mu.Lock()
	o.frames = append(o.frames, fr)
	o.mu.Unlock()
	return fr
}

// popFrame removes fr even when frames pushed later are still present.
func (o *Object) popFrame(fr *superFrame) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := len(o.frames) - 1; i >= 0; i-- {
		if o.frames[i] == fr {
			o.frames = slices.Delete(o.frames, i, i+1)
			return
		}
	}
}

// keep retains s for symbol, freeing what the previous call retained.
func (o *Object) keep(symbol string, s *marshal.Scratch) {
	if s.Count() == 0 {
		s.Release()
		s = nil
	}
	o.mu.Lock()
	prev := o.retained[symbol]
	if s != nil {
		if o.retained == nil {
			o.retained = make(map[string]*marshal.Scratch)
		}
		o.retained[symbol] = s
	} else {
		delete(o.retained, symbol)
	}
	o.mu.Unlock()
	prev.FreeAndRelease(o.b.rt)
}

// Get reads a property through its getter.
func (o *Object) Get(name string) (any, error) {
	p, err := o.property(name)
	if err != nil {
		return nil, err
	}
	res, err := o.Call(p.Getter)
	if err != nil {
		return nil, err
	}
	if len(res) == 0 {
		return nil, errors.Signature(o.desc.GoType.String(), p.Getter, "getter returns nothing")
	}
	return res[0], nil
}

// Set writes a property through its setter.
func (o *Object) Set(name string, v any) error {
	p, err := o.property(name)
	if err != nil {
		return err
	}
	if p.Setter == "" {
		return errors.InvalidInput(errors.PhaseDispatch, fmt.Sprintf("property %q is read-only", name))
	}
	_, err = o.Call(p.Setter, v)
	return err
}

func (o *Object) property(name string) (*class.PropertyDef, error) {
	if o.b == nil {
		return nil, errors.NotInitialized(errors.PhaseDispatch, "object")
	}
	p, _, ok := o.desc.Property(name)
	if !ok {
		return nil, errors.NotFound(errors.PhaseDispatch, "property", name)
	}
	return p, nil
}

// Retain returns a new wrapper of the same type that owns its own native
// reference, for keeping a borrowed object past the call that produced it.
// A pinned managed wrapper is already unique and returns itself.
func (o *Object) Retain() (Wrapper, error) {
	if o.b == nil {
		return nil, errors.NotInitialized(errors.PhaseLifecycle, "object")
	}
	if o.id != 0 {
		return o.self, nil
	}
	ptr := o.Ptr()
	o.b.rt.Ref(ptr)
	w := reflect.New(reflect.TypeOf(o.self).Elem()).Interface().(Wrapper)
	n := o.b.bind(w, o.desc, object.Own(o.b.rt, ptr))
	object.Track(n.handle, n)
	return w, nil
}

// Dispose disconnects every listener registered through this wrapper,
// frees retained results and releases the native reference. Calling it
// again does nothing.
func (o *Object) Dispose() {
	if o.b == nil || !o.disposed.CompareAndSwap(false, true) {
		return
	}
	b := o.b
	b.disconnectOwner(o)

	o.mu.Lock()
	retained := o.retained
	o.retained = nil
	o.mu.Unlock()
	for _, s := range retained {
		s.FreeAndRelease(b.rt)
	}

	b.unpin(o)
	if o.handle.Release() {
		b.log.Debug("object disposed", zap.String("object", o.String()))
	}
}

// Disposed reports whether Dispose has run.
func (o *Object) Disposed() bool {
	return o.disposed.Load()
}
