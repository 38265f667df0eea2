package binding

import (
	"fmt"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/objbridge/class"
	"github.com/wippyai/objbridge/errors"
	"github.com/wippyai/objbridge/marshal"
)

var primitives = map[string]wit.Type{
	"bool":   wit.Bool{},
	"s8":     wit.S8{},
	"s16":    wit.S16{},
	"s32":    wit.S32{},
	"s64":    wit.S64{},
	"u8":     wit.U8{},
	"u16":    wit.U16{},
	"u32":    wit.U32{},
	"u64":    wit.U64{},
	"f32":    wit.F32{},
	"f64":    wit.F64{},
	"char":   wit.Char{},
	"string": wit.String{},
}

// resolver maps type strings to wit types.
type resolver struct {
	file    *File
	types   map[string]wit.Type
	classes map[string]bool
	// resolving guards against structs that contain themselves
	resolving map[string]bool
}

func newResolver(f *File) *resolver {
	r := &resolver{
		file:      f,
		types:     make(map[string]wit.Type),
		classes:   make(map[string]bool),
		resolving: make(map[string]bool),
	}
	for _, c := range f.Classes {
		r.classes[c.Name] = true
	}
	return r
}

func invalid(path []string, format string, args ...any) error {
	return errors.New(errors.PhaseValidate, errors.KindInvalidInput).
		Path(path...).
		Detail(format, args...).
		Build()
}

// named records the declared name on a constructed type.
func named(t wit.Type, name string) wit.Type {
	if td, ok := t.(*wit.TypeDef); ok {
		td.Name = &name
	}
	return t
}

// value resolves a type usable inside a struct field: no object references.
func (r *resolver) value(name string, path []string) (wit.Type, error) {
	if t, ok := primitives[name]; ok {
		return t, nil
	}
	if t, ok := r.types[name]; ok {
		return t, nil
	}
	for _, e := range r.file.Enums {
		if e.Name == name {
			t := named(marshal.Enum(e.Cases...), name)
			r.types[name] = t
			return t, nil
		}
	}
	for _, s := range r.file.Structs {
		if s.Name != name {
			continue
		}
		if r.resolving[name] {
			return nil, invalid(path, "struct %s contains itself", name)
		}
		r.resolving[name] = true
		fields := make([]wit.Field, 0, len(s.Fields))
		for _, f := range s.Fields {
			ft, err := r.value(f.Type, append(path, name, f.Name))
			if err != nil {
				return nil, err
			}
			fields = append(fields, wit.Field{Name: f.Name, Type: ft})
		}
		delete(r.resolving, name)
		t := named(marshal.Record(fields...), name)
		r.types[name] = t
		return t, nil
	}
	if r.classes[name] {
		return nil, invalid(path, "object type %s is not allowed here", name)
	}
	return nil, invalid(path, "unknown type %q", name)
}

func (r *resolver) param(p *Param, path []string) (marshal.Param, error) {
	out := marshal.Param{Name: p.Name}

	switch p.Transfer {
	case "", "none", "borrowed":
		out.Transfer = marshal.Borrowed
	case "full", "owned":
		out.Transfer = marshal.Owned
	default:
		return out, invalid(path, "unknown transfer %q", p.Transfer)
	}
	switch p.Direction {
	case "", "in":
		out.Dir = marshal.In
	case "out":
		out.Dir = marshal.Out
	case "inout":
		out.Dir = marshal.InOut
	default:
		return out, invalid(path, "unknown direction %q", p.Direction)
	}

	if r.classes[p.Type] {
		out.Type = named(marshal.Object(out.Transfer), p.Type)
		return out, nil
	}
	t, err := r.value(p.Type, path)
	if err != nil {
		return out, err
	}
	out.Type = t
	return out, nil
}

// Defs converts the file into class definitions, parents before children.
// Every parent must be declared in the same file.
func (f *File) Defs() ([]*class.Def, error) {
	r := newResolver(f)
	byName := make(map[string]*class.Def, len(f.Classes))
	order := make([]string, 0, len(f.Classes))

	for i := range f.Classes {
		c := &f.Classes[i]
		if _, dup := byName[c.Name]; dup {
			return nil, invalid([]string{c.Name}, "class declared twice")
		}
		def, err := r.class(c)
		if err != nil {
			return nil, err
		}
		byName[c.Name] = def
		order = append(order, c.Name)
	}

	sorted := make([]*class.Def, 0, len(order))
	state := make(map[string]int, len(order))
	var visit func(name string, path []string) error
	visit = func(name string, path []string) error {
		switch state[name] {
		case 1:
			return invalid(path, "inheritance cycle through %s", name)
		case 2:
			return nil
		}
		def, ok := byName[name]
		if !ok {
			return invalid(path, "parent class %q is not declared", name)
		}
		state[name] = 1
		if def.Parent != "" {
			if err := visit(def.Parent, append(path, name)); err != nil {
				return err
			}
		}
		state[name] = 2
		sorted = append(sorted, def)
		return nil
	}
	for _, name := range order {
		if err := visit(name, nil); err != nil {
			return nil, err
		}
	}
	return sorted, nil
}

func (r *resolver) class(c *Class) (*class.Def, error) {
	def := &class.Def{
		Name:    c.Name,
		Native:  c.Native,
		Parent:  c.Parent,
		Library: c.Library,
		Prefix:  c.Prefix,
	}
	if def.Library == "" {
		def.Library = r.file.Library
	}

	methods := make(map[string]string, len(c.Ops))
	for i := range c.Ops {
		o := &c.Ops[i]
		path := []string{c.Name, o.Symbol}
		op := class.OpDef{
			Symbol:  o.Symbol,
			Method:  o.Method,
			Virtual: o.Virtual,
			Static:  o.Static,
		}
		if op.Method == "" {
			op.Method = class.MethodName(o.Symbol, c.Prefix)
		}
		if op.Virtual && op.Static {
			return nil, invalid(path, "operation cannot be both virtual and static")
		}
		if prev, dup := methods[op.Method]; dup {
			return nil, invalid(path, "method %s already used by %s", op.Method, prev)
		}
		methods[op.Method] = o.Symbol

		for j := range o.Params {
			p, err := r.param(&o.Params[j], append(path, fmt.Sprintf("param[%d]", j)))
			if err != nil {
				return nil, err
			}
			op.Sig.Params = append(op.Sig.Params, p)
		}
		if o.Result != nil {
			p, err := r.param(o.Result, append(path, "result"))
			if err != nil {
				return nil, err
			}
			if p.Dir != marshal.In {
				return nil, invalid(path, "result cannot have a direction")
			}
			op.Sig.Result = &p
		}
		def.Ops = append(def.Ops, op)
	}

	for _, p := range c.Properties {
		if _, ok := def.Op(p.Getter); !ok {
			return nil, invalid([]string{c.Name, p.Name}, "getter %s is not an operation of %s", p.Getter, c.Name)
		}
		if p.Setter != "" {
			if _, ok := def.Op(p.Setter); !ok {
				return nil, invalid([]string{c.Name, p.Name}, "setter %s is not an operation of %s", p.Setter, c.Name)
			}
		}
		def.Properties = append(def.Properties, class.PropertyDef(p))
	}

	for _, e := range c.Events {
		shape, ok := class.ParseShape(e.Payload)
		if !ok {
			return nil, invalid([]string{c.Name, e.Name}, "unknown payload %q", e.Payload)
		}
		def.Events = append(def.Events, class.EventDef{Name: e.Name, Payload: shape})
	}
	return def, nil
}

// LoadDefs loads path and converts it in one step.
func LoadDefs(path string) ([]*class.Def, error) {
	f, err := Load(path)
	if err != nil {
		return nil, err
	}
	return f.Defs()
}

// ParseDefs parses data and converts it in one step.
func ParseDefs(data []byte, format Format) ([]*class.Def, error) {
	f, err := Parse(data, format)
	if err != nil {
		return nil, err
	}
	return f.Defs()
}
