package class

import (
	"reflect"

	"github.com/wippyai/objbridge/native"
)

// Descriptor is the process-wide record of one registered Go type.
type Descriptor struct {
	GoType reflect.Type
	Def    *Def
	Parent *Descriptor
	Name   string

	// MRO lists this descriptor followed by its ancestors.
	MRO []*Descriptor

	// Ops holds one entry per virtual operation the type overrides.
	Ops []OpDescriptor

	// embed is the field index of the parent inside GoType, nil when the
	// parent is not embedded.
	embed []int
	Class native.ClassID
}

// OpDescriptor is one entry of a sparse override table.
type OpDescriptor struct {
	Trampoline native.Func
	Declaring  *Descriptor
	Op         *OpDef
	Symbol     string
}

// Managed reports whether d was derived from a Go subtype rather than
// generated from binding metadata.
func (d *Descriptor) Managed() bool {
	return d.Def == nil
}

// Generated returns the nearest generated ancestor, or d itself.
func (d *Descriptor) Generated() *Descriptor {
	for _, a := range d.MRO {
		if a.Def != nil {
			return a
		}
	}
	return nil
}

// Op resolves an operation through the MRO. The second result is the
// generated descriptor whose metadata declares it.
func (d *Descriptor) Op(name string) (*OpDef, *Descriptor, bool) {
	for _, a := range d.MRO {
		if a.Def == nil {
			continue
		}
		if op, ok := a.Def.Op(name); ok {
			return op, a, true
		}
	}
	return nil, nil, false
}

func (d *Descriptor) Property(name string) (*PropertyDef, *Descriptor, bool) {
	for _, a := range d.MRO {
		if a.Def == nil {
			continue
		}
		if p, ok := a.Def.Property(name); ok {
			return p, a, true
		}
	}
	return nil, nil, false
}

func (d *Descriptor) Event(name string) (*EventDef, *Descriptor, bool) {
	for _, a := range d.MRO {
		if a.Def == nil {
			continue
		}
		if ev, ok := a.Def.Event(name); ok {
			return ev, a, true
		}
	}
	return nil, nil, false
}

// Override returns the table entry for symbol, if d itself overrides it.
func (d *Descriptor) Override(symbol string) (*OpDescriptor, bool) {
	for i := range d.Ops {
		if d.Ops[i].Symbol == symbol {
			return &d.Ops[i], true
		}
	}
	return nil, false
}

// IsA reports whether other appears in d's MRO.
func (d *Descriptor) IsA(other *Descriptor) bool {
	for _, a := range d.MRO {
		if a == other {
			return true
		}
	}
	return false
}

// PathTo returns the field index of ancestor inside a value of d.GoType.
func (d *Descriptor) PathTo(ancestor *Descriptor) ([]int, bool) {
	var path []int
	for _, a := range d.MRO {
		if a == ancestor {
			return path, true
		}
		if a.embed == nil {
			return nil, false
		}
		path = append(path, a.embed...)
	}
	return nil, false
}

// Virtuals lists the virtual, non-static operations a subtype of d may
// override, most derived class first.
func (d *Descriptor) Virtuals() []*OpDef {
	var out []*OpDef
	seen := make(map[string]bool)
	for _, a := range d.MRO {
		if a.Def == nil {
			continue
		}
		for i := range a.Def.Ops {
			op := &a.Def.Ops[i]
			if !op.Virtual || op.Static || seen[op.Symbol] {
				continue
			}
			seen[op.Symbol] = true
			out = append(out, op)
		}
	}
	return out
}
