package class

import (
	"strings"
	"unicode"

	"github.com/wippyai/objbridge/marshal"
)

// Shape is the payload layout of a native event.
type Shape uint8

const (
	ShapeNone Shape = iota
	ShapeBool
	ShapeInt
	ShapeFloat
	ShapeObject
)

var shapeNames = [...]string{"none", "bool", "int", "float", "object"}

func (s Shape) String() string {
	if int(s) < len(shapeNames) {
		return shapeNames[s]
	}
	return "unknown"
}

// ParseShape parses a payload shape name. The empty string is ShapeNone.
func ParseShape(name string) (Shape, bool) {
	if name == "" {
		return ShapeNone, true
	}
	for i, n := range shapeNames {
		if n == name {
			return Shape(i), true
		}
	}
	return ShapeNone, false
}

// Def is the binding metadata of one generated wrapper class.
type Def struct {
	Name       string
	Native     string
	Parent     string
	Library    string
	Prefix     string
	Ops        []OpDef
	Properties []PropertyDef
	Events     []EventDef
}

// OpDef describes one native operation of a class.
type OpDef struct {
	Symbol  string
	Method  string
	Sig     marshal.Signature
	Virtual bool
	Static  bool
}

// PropertyDef pairs accessor operations under one name.
type PropertyDef struct {
	Name   string
	Getter string
	Setter string
}

// EventDef names a native event and its payload shape.
type EventDef struct {
	Name    string
	Payload Shape
}

// Op finds an operation declared by d, by method name or symbol.
func (d *Def) Op(name string) (*OpDef, bool) {
	for i := range d.Ops {
		if d.Ops[i].Method == name || d.Ops[i].Symbol == name {
			return &d.Ops[i], true
		}
	}
	return nil, false
}

func (d *Def) Property(name string) (*PropertyDef, bool) {
	for i := range d.Properties {
		if d.Properties[i].Name == name {
			return &d.Properties[i], true
		}
	}
	return nil, false
}

func (d *Def) Event(name string) (*EventDef, bool) {
	for i := range d.Events {
		if d.Events[i].Name == name {
			return &d.Events[i], true
		}
	}
	return nil, false
}

// MethodName derives the Go method name for a native symbol:
// "sim_widget_size_allocate" with prefix "sim_widget_" becomes "SizeAllocate".
func MethodName(symbol, prefix string) string {
	name := strings.TrimPrefix(symbol, prefix)
	var b strings.Builder
	upper := true
	for _, r := range name {
		if r == '_' || r == '-' {
			upper = true
			continue
		}
		if upper {
			b.WriteRune(unicode.ToUpper(r))
			upper = false
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}
