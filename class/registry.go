package class

import (
	"fmt"
	"path"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/wippyai/objbridge/errors"
	"github.com/wippyai/objbridge/native"
)

// TrampolineFactory builds the native entry point for one override.
type TrampolineFactory func(op *OpDescriptor) native.Func

// Registry maps Go types to native classes. Each type is registered at most
// once; concurrent first use converges on one descriptor.
type Registry struct {
	classes native.ClassSystem
	factory TrampolineFactory
	log     *zap.Logger

	// objectType is the interface Go parameters of object type must
	// implement, besides native.Ptr.
	objectType reflect.Type

	types   map[reflect.Type]*entry
	byName  map[string]*Descriptor
	byClass map[native.ClassID]*Descriptor
	natives map[string]int
	mu      sync.Mutex
}

type entry struct {
	desc  *Descriptor
	err   error
	once  sync.Once
	ready atomic.Bool
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.log = l
		}
	}
}

// WithObjectInterface lets override signatures use Go types implementing
// iface for object parameters and results.
func WithObjectInterface(iface reflect.Type) Option {
	return func(r *Registry) {
		r.objectType = iface
	}
}

// NewRegistry creates a registry deriving classes through cs. factory is
// called once per override while a managed subtype is registered.
func NewRegistry(cs native.ClassSystem, factory TrampolineFactory, opts ...Option) *Registry {
	r := &Registry{
		classes: cs,
		factory: factory,
		log:     zap.NewNop(),
		types:   make(map[reflect.Type]*entry),
		byName:  make(map[string]*Descriptor),
		byClass: make(map[native.ClassID]*Descriptor),
		natives: make(map[string]int),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func structType(t reflect.Type) reflect.Type {
	if t != nil && t.Kind() == reflect.Pointer {
		return t.Elem()
	}
	return t
}

// RegisterGenerated binds a generated wrapper type to the native class named
// by def. The parent definition, if any, must already be registered.
func (r *Registry) RegisterGenerated(def *Def, goType reflect.Type) (*Descriptor, error) {
	t := structType(goType)
	if t == nil || t.Kind() != reflect.Struct {
		return nil, errors.InvalidInput(errors.PhaseRegister, "generated wrapper must be a struct type")
	}

	class, ok := r.classes.LookupClass(def.Native)
	if !ok {
		return nil, errors.Unresolved(errors.PhaseRegister, "class", def.Native)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.types[t]; ok && e.ready.Load() && e.desc != nil {
		if e.desc.Def != def {
			return nil, errors.Registration(t.String(), def.Native, fmt.Errorf("type already bound to %s", e.desc.Name))
		}
		return e.desc, nil
	}
	if _, dup := r.byName[def.Name]; dup {
		return nil, errors.Registration(t.String(), def.Native, fmt.Errorf("class %s already registered", def.Name))
	}

	d := &Descriptor{GoType: t, Def: def, Name: def.Native, Class: class}
	if def.Parent != "" {
		parent, ok := r.byName[def.Parent]
		if !ok {
			return nil, errors.NotFound(errors.PhaseRegister, "parent class", def.Parent)
		}
		d.Parent = parent
		d.embed = embedIndex(t, parent.GoType)
	}
	d.MRO = append([]*Descriptor{d}, mro(d.Parent)...)

	e := &entry{desc: d}
	e.once.Do(func() {})
	e.ready.Store(true)
	r.types[t] = e
	r.byName[def.Name] = d
	r.byClass[class] = d
	r.natives[def.Native]++

	r.log.Debug("generated class registered",
		zap.String("type", t.String()),
		zap.String("class", def.Native))
	return d, nil
}

func mro(d *Descriptor) []*Descriptor {
	if d == nil {
		return nil
	}
	return d.MRO
}

func embedIndex(t, parent reflect.Type) []int {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Anonymous && f.Type == parent {
			return f.Index
		}
	}
	return nil
}

// Generated returns the descriptor registered for a binding class name.
func (r *Registry) Generated(name string) (*Descriptor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.byName[name]
	return d, ok
}

// Lookup returns the descriptor of an already registered type.
func (r *Registry) Lookup(goType reflect.Type) (*Descriptor, bool) {
	t := structType(goType)
	r.mu.Lock()
	e, ok := r.types[t]
	r.mu.Unlock()
	if !ok || !e.ready.Load() {
		return nil, false
	}
	return e.desc, e.desc != nil
}

// ForClass returns the most specific descriptor registered for a native
// class or one of its ancestors.
func (r *Registry) ForClass(c native.ClassID) (*Descriptor, bool) {
	for c != 0 {
		r.mu.Lock()
		d, ok := r.byClass[c]
		r.mu.Unlock()
		if ok {
			return d, true
		}
		c = r.classes.ClassParent(c)
	}
	return nil, false
}

// RegisterClass returns the descriptor for goType, deriving a native class
// the first time a managed subtype is seen. It is idempotent.
func (r *Registry) RegisterClass(goType reflect.Type) (*Descriptor, error) {
	t := structType(goType)
	if t == nil || t.Kind() != reflect.Struct {
		return nil, errors.InvalidInput(errors.PhaseRegister, fmt.Sprintf("%v is not a struct type", goType))
	}

	r.mu.Lock()
	e, ok := r.types[t]
	if !ok {
		e = &entry{}
		r.types[t] = e
	}
	r.mu.Unlock()

	e.once.Do(func() {
		e.desc, e.err = r.derive(t)
		e.ready.Store(true)
	})
	return e.desc, e.err
}

// BuildOpTable returns the sparse override table of goType, registering it
// first when needed.
func (r *Registry) BuildOpTable(goType reflect.Type) ([]OpDescriptor, error) {
	d, err := r.RegisterClass(goType)
	if err != nil {
		return nil, err
	}
	return d.Ops, nil
}

// isClassType reports whether t is registered or embeds a class type.
func (r *Registry) isClassType(t reflect.Type) bool {
	if t.Kind() != reflect.Struct {
		return false
	}
	r.mu.Lock()
	e, ok := r.types[t]
	r.mu.Unlock()
	if ok {
		if !e.ready.Load() {
			return true
		}
		if e.desc != nil {
			return true
		}
	}
	for i := 0; i < t.NumField(); i++ {
		if f := t.Field(i); f.Anonymous && r.isClassType(f.Type) {
			return true
		}
	}
	return false
}

func (r *Registry) parentOf(t reflect.Type) (*Descriptor, []int, error) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.Anonymous || !r.isClassType(f.Type) {
			continue
		}
		parent, err := r.RegisterClass(f.Type)
		if err != nil {
			return nil, nil, err
		}
		return parent, f.Index, nil
	}
	return nil, nil, errors.Registration(t.String(), "", fmt.Errorf("%s does not embed a registered class", t))
}

func (r *Registry) derive(t reflect.Type) (*Descriptor, error) {
	parent, idx, err := r.parentOf(t)
	if err != nil {
		return nil, err
	}

	d := &Descriptor{GoType: t, Parent: parent, embed: idx, Name: r.nativeName(t)}
	d.MRO = append([]*Descriptor{d}, parent.MRO...)

	ops, err := r.buildOps(d)
	if err != nil {
		return nil, err
	}
	d.Ops = ops

	overrides := make(map[string]native.Func, len(ops))
	for i := range d.Ops {
		op := &d.Ops[i]
		op.Trampoline = r.factory(op)
		overrides[op.Symbol] = op.Trampoline
	}

	class, err := r.classes.DeriveClass(parent.Class, d.Name, overrides)
	if err != nil {
		return nil, errors.Registration(t.String(), d.Name, err)
	}
	d.Class = class

	r.mu.Lock()
	r.byClass[class] = d
	r.mu.Unlock()

	r.log.Debug("managed class derived",
		zap.String("type", t.String()),
		zap.String("class", d.Name),
		zap.String("parent", parent.Name),
		zap.Int("overrides", len(ops)))
	return d, nil
}

// nativeName picks a unique native class name for a Go type.
func (r *Registry) nativeName(t reflect.Type) string {
	pkg := path.Base(t.PkgPath())
	name := "Go" + exportName(pkg) + exportName(t.Name())
	if t.Name() == "" {
		name = "GoAnon"
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	n := r.natives[name]
	r.natives[name] = n + 1
	if n > 0 {
		name = fmt.Sprintf("%s%d", name, n+1)
	}
	return name
}

func exportName(s string) string {
	s = strings.Map(func(r rune) rune {
		if r == '.' || r == '-' || r == '/' {
			return '_'
		}
		return r
	}, s)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
