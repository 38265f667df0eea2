package bridge

import (
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/wippyai/objbridge/class"
	"github.com/wippyai/objbridge/errors"
	"github.com/wippyai/objbridge/marshal"
	"github.com/wippyai/objbridge/native"
	"github.com/wippyai/objbridge/object"
)

var (
	wrapperType = reflect.TypeOf((*Wrapper)(nil)).Elem()
	ptrType     = reflect.TypeOf(native.Ptr(0))
	anyType     = reflect.TypeOf((*any)(nil)).Elem()
)

// Bridge connects Go wrapper types to one native runtime. All registration
// state lives here; create one per runtime and share it.
type Bridge struct {
	rt  native.Runtime
	reg *class.Registry
	mar *marshal.Marshaler
	log *zap.Logger

	// pinned holds managed wrappers by the ID stored as native instance data.
	pinned *object.Table[Wrapper]
	// slots maps the data of native event registrations to their slot.
	slots *object.Table[*eventSlot]

	unhandled atomic.Pointer[UnhandledError]

	eventIDs  map[EventKey]native.EventID
	objEvents map[native.Ptr]*objectEvents
	evMu      sync.Mutex

	listeners    map[ListenerID]*eventSlot
	nextListener atomic.Uint64
	idxMu        sync.Mutex
}

// New creates a bridge over rt.
func New(rt native.Runtime, opts ...Option) *Bridge {
	cfg := config{logger: Logger(), ptrSize: 8}
	for _, opt := range opts {
		opt(&cfg)
	}

	b := &Bridge{
		rt:        rt,
		log:       cfg.logger,
		pinned:    object.NewTable[Wrapper](),
		slots:     object.NewTable[*eventSlot](),
		eventIDs:  make(map[EventKey]native.EventID),
		objEvents: make(map[native.Ptr]*objectEvents),
		listeners: make(map[ListenerID]*eventSlot),
	}
	b.reg = class.NewRegistry(rt, b.trampoline,
		class.WithLogger(cfg.logger),
		class.WithObjectInterface(wrapperType))
	b.mar = marshal.New(rt, rt, cfg.ptrSize)
	return b
}

// Runtime returns the native runtime.
func (b *Bridge) Runtime() native.Runtime { return b.rt }

// Registry returns the class registry.
func (b *Bridge) Registry() *class.Registry { return b.reg }

// Marshaler returns the value marshaler.
func (b *Bridge) Marshaler() *marshal.Marshaler { return b.mar }

// Live returns the number of managed wrappers currently pinned.
func (b *Bridge) Live() int { return b.pinned.Len() }

// Close disposes every pinned wrapper.
func (b *Bridge) Close() error {
	err := b.pinned.Close()
	if serr := b.slots.Close(); err == nil {
		err = serr
	}
	return err
}

// RegisterGenerated binds a generated wrapper type to its metadata. proto
// is typically a nil pointer of the wrapper type.
func (b *Bridge) RegisterGenerated(def *class.Def, proto Wrapper) (*class.Descriptor, error) {
	return b.reg.RegisterGenerated(def, reflect.TypeOf(proto))
}

// Bind registers generated wrappers for defs in order. Parents must
// precede their children. Defs without a prototype are skipped.
func (b *Bridge) Bind(defs []*class.Def, protos map[string]Wrapper) error {
	for _, def := range defs {
		proto, ok := protos[def.Name]
		if !ok {
			b.log.Debug("no wrapper type for class", zap.String("class", def.Name))
			continue
		}
		if _, err := b.RegisterGenerated(def, proto); err != nil {
			return err
		}
	}
	return nil
}

// Register registers the type of proto, deriving a native class for
// managed subtypes.
func (b *Bridge) Register(proto Wrapper) (*class.Descriptor, error) {
	return b.reg.RegisterClass(reflect.TypeOf(proto))
}

// Construct creates a native instance for the type of w and binds w to it.
// w holds the instance's only reference until Dispose.
func (b *Bridge) Construct(w Wrapper) error {
	o, err := unbound(w)
	if err != nil {
		return err
	}
	d, err := b.reg.RegisterClass(reflect.TypeOf(w))
	if err != nil {
		return err
	}

	ptr, err := b.rt.NewInstance(d.Class)
	if err != nil {
		return errors.New(errors.PhaseLifecycle, errors.KindAllocation).
			Subject("native "+d.Name).Cause(err).Detail("new instance").Build()
	}

	b.bind(w, d, object.Own(b.rt, ptr))
	if d.Managed() {
		if err := b.pin(o); err != nil {
			o.handle.Release()
			return err
		}
	} else {
		object.Track(o.handle, o)
	}

	b.log.Debug("object constructed",
		zap.String("class", d.Name),
		zap.Uint64("ptr", uint64(ptr)))
	return nil
}

// Adopt binds w to an existing native object. With marshal.Owned, w takes
// over one reference the caller already holds; with marshal.Borrowed w is
// a view that must not outlive the caller's reference.
func (b *Bridge) Adopt(w Wrapper, ptr native.Ptr, transfer marshal.Ownership) error {
	o, err := unbound(w)
	if err != nil {
		return err
	}
	if ptr == 0 {
		return errors.NilPointer(errors.PhaseLifecycle, nil, reflect.TypeOf(w).String())
	}
	d, err := b.reg.RegisterClass(reflect.TypeOf(w))
	if err != nil {
		return err
	}
	if d.Managed() {
		return errors.InvalidInput(errors.PhaseLifecycle, "managed subtypes must be constructed, not adopted")
	}
	if !b.instanceOf(ptr, d.Class) {
		return errors.TypeMismatch(errors.PhaseLifecycle, nil, reflect.TypeOf(w).String(), b.rt.ClassName(b.rt.ClassOf(ptr)))
	}

	if transfer == marshal.Owned {
		b.bind(w, d, object.Own(b.rt, ptr))
		object.Track(o.handle, o)
	} else {
		b.bind(w, d, object.View(ptr))
	}
	return nil
}

func unbound(w Wrapper) (*Object, error) {
	if w == nil || reflect.ValueOf(w).IsNil() {
		return nil, errors.NilPointer(errors.PhaseLifecycle, nil, "wrapper")
	}
	o := w.object()
	if o.b != nil {
		return nil, errors.InvalidInput(errors.PhaseLifecycle, "wrapper is already bound")
	}
	return o, nil
}

func (b *Bridge) bind(w Wrapper, d *class.Descriptor, h *object.Handle) *Object {
	o := w.object()
	o.b = b
	o.desc = d
	o.handle = h
	o.self = w
	return o
}

func (b *Bridge) pin(o *Object) error {
	id, err := b.pinned.Insert(o.self)
	if err != nil {
		return errors.Wrap(errors.PhaseLifecycle, errors.KindRegistration, err, "pin wrapper")
	}
	o.id = id
	b.rt.SetInstanceData(o.Ptr(), uintptr(id))
	return nil
}

func (b *Bridge) unpin(o *Object) {
	if o.id == 0 {
		return
	}
	b.rt.SetInstanceData(o.Ptr(), 0)
	b.pinned.Remove(o.id)
	o.id = 0
}

// pinnedFor returns the live managed wrapper of ptr, if any.
func (b *Bridge) pinnedFor(ptr native.Ptr) (Wrapper, bool) {
	id := b.rt.InstanceData(ptr)
	if id == 0 {
		return nil, false
	}
	w, ok := b.pinned.Get(object.ID(id))
	if !ok || w.object().Ptr() != ptr {
		return nil, false
	}
	return w, true
}

func (b *Bridge) instanceOf(ptr native.Ptr, c native.ClassID) bool {
	for k := b.rt.ClassOf(ptr); k != 0; k = b.rt.ClassParent(k) {
		if k == c {
			return true
		}
	}
	return false
}

// Wrap returns a wrapper for a native object. target selects the wrapper
// type; nil, any or Wrapper pick the most specific registered type.
// A managed object that is still pinned is returned as itself.
func (b *Bridge) Wrap(ptr native.Ptr, transfer marshal.Ownership, target reflect.Type) (Wrapper, error) {
	if ptr == 0 {
		return nil, nil
	}

	if w, ok := b.pinnedFor(ptr); ok {
		if transfer == marshal.Owned {
			b.rt.Unref(ptr)
		}
		if target == nil || reflect.TypeOf(w).AssignableTo(target) {
			return w, nil
		}
		transfer = marshal.Borrowed
	}

	d, err := b.wrapperDescriptor(ptr, target)
	if err != nil {
		if transfer == marshal.Owned {
			b.rt.Unref(ptr)
		}
		return nil, err
	}

	w := reflect.New(d.GoType).Interface().(Wrapper)
	if transfer == marshal.Owned {
		o := b.bind(w, d, object.Own(b.rt, ptr))
		object.Track(o.handle, o)
	} else {
		b.bind(w, d, object.View(ptr))
	}
	return w, nil
}

func (b *Bridge) wrapperDescriptor(ptr native.Ptr, target reflect.Type) (*class.Descriptor, error) {
	if target != nil && target.Kind() == reflect.Pointer && target.Implements(wrapperType) {
		d, ok := b.reg.Lookup(target)
		if !ok {
			return nil, errors.NotFound(errors.PhaseLift, "wrapper type", target.String())
		}
		if d.Managed() {
			return nil, errors.TypeMismatch(errors.PhaseLift, nil, target.String(), "object without a live managed wrapper")
		}
		if !b.instanceOf(ptr, d.Class) {
			return nil, errors.TypeMismatch(errors.PhaseLift, nil, target.String(), b.rt.ClassName(b.rt.ClassOf(ptr)))
		}
		return d, nil
	}

	c := b.rt.ClassOf(ptr)
	d, ok := b.reg.ForClass(c)
	if !ok {
		return nil, errors.NotFound(errors.PhaseLift, "wrapper for native class", b.rt.ClassName(c))
	}
	// unpinned managed instances only get their generated wrapper
	return d.Generated(), nil
}

// CallStatic invokes a static operation of a generated class.
func (b *Bridge) CallStatic(className, name string, args ...any) ([]any, error) {
	d, ok := b.reg.Generated(className)
	if !ok {
		return nil, errors.NotFound(errors.PhaseDispatch, "class", className)
	}
	op, _, ok := d.Op(name)
	if !ok {
		return nil, errors.NotFound(errors.PhaseDispatch, "operation", fmt.Sprintf("%s.%s", className, name))
	}
	return b.call(0, op, args, 0, nil)
}
