package marshal

import (
	"reflect"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/objbridge/native"
)

// Ownership says which side releases a marshaled resource.
type Ownership uint8

const (
	// Borrowed values stay owned by the sender. The receiver must not free
	// or retain them past the call.
	Borrowed Ownership = iota
	// Owned values move to the receiver, which releases them exactly once.
	Owned
)

func (o Ownership) String() string {
	if o == Owned {
		return "full"
	}
	return "none"
}

// Direction of a parameter.
type Direction uint8

const (
	In Direction = iota
	Out
	InOut
)

func (d Direction) String() string {
	switch d {
	case Out:
		return "out"
	case InOut:
		return "inout"
	default:
		return "in"
	}
}

// Param describes one parameter or result position.
type Param struct {
	Type     wit.Type
	Name     string
	Transfer Ownership
	Dir      Direction
}

// Signature describes a native operation, excluding the instance pointer.
type Signature struct {
	Result *Param
	Params []Param
}

// Inputs returns the parameters supplied by the caller, in order.
func (s Signature) Inputs() []Param {
	var in []Param
	for _, p := range s.Params {
		if p.Dir != Out {
			in = append(in, p)
		}
	}
	return in
}

// Outputs returns the parameters written by the callee, in order.
func (s Signature) Outputs() []Param {
	var out []Param
	for _, p := range s.Params {
		if p.Dir != In {
			out = append(out, p)
		}
	}
	return out
}

// Kind classifies a wit type for marshaling.
type Kind uint8

const (
	KindUnsupported Kind = iota
	KindBool
	KindSigned
	KindUnsigned
	KindFloat
	KindChar
	KindString
	KindEnum
	KindFlags
	KindRecord
	KindObject
)

var kindNames = [...]string{
	KindUnsupported: "unsupported",
	KindBool:        "bool",
	KindSigned:      "signed",
	KindUnsigned:    "unsigned",
	KindFloat:       "float",
	KindChar:        "char",
	KindString:      "string",
	KindEnum:        "enum",
	KindFlags:       "flags",
	KindRecord:      "record",
	KindObject:      "object",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// KindOf classifies t.
func KindOf(t wit.Type) Kind {
	switch typ := t.(type) {
	case wit.Bool:
		return KindBool
	case wit.S8, wit.S16, wit.S32, wit.S64:
		return KindSigned
	case wit.U8, wit.U16, wit.U32, wit.U64:
		return KindUnsigned
	case wit.F32, wit.F64:
		return KindFloat
	case wit.Char:
		return KindChar
	case wit.String:
		return KindString
	case *wit.TypeDef:
		switch kind := typ.Kind.(type) {
		case *wit.Record:
			return KindRecord
		case *wit.Enum:
			return KindEnum
		case *wit.Flags:
			return KindFlags
		case *wit.Own, *wit.Borrow:
			return KindObject
		case wit.Type:
			return KindOf(kind)
		}
	}
	return KindUnsupported
}

// IsObject reports whether t is an object reference.
func IsObject(t wit.Type) bool {
	return KindOf(t) == KindObject
}

// Object returns the type used for object references. The transfer of the
// enclosing Param decides ownership; the handle kind is informational.
func Object(transfer Ownership) wit.Type {
	if transfer == Owned {
		return &wit.TypeDef{Kind: &wit.Own{}}
	}
	return &wit.TypeDef{Kind: &wit.Borrow{}}
}

// Record builds a record type.
func Record(fields ...wit.Field) wit.Type {
	return &wit.TypeDef{Kind: &wit.Record{Fields: fields}}
}

// Enum builds an enum type.
func Enum(cases ...string) wit.Type {
	e := &wit.Enum{}
	for _, c := range cases {
		e.Cases = append(e.Cases, wit.EnumCase{Name: c})
	}
	return &wit.TypeDef{Kind: e}
}

// TypeName names t for diagnostics.
func TypeName(t wit.Type) string {
	switch t.(type) {
	case wit.Bool:
		return "bool"
	case wit.S8:
		return "s8"
	case wit.S16:
		return "s16"
	case wit.S32:
		return "s32"
	case wit.S64:
		return "s64"
	case wit.U8:
		return "u8"
	case wit.U16:
		return "u16"
	case wit.U32:
		return "u32"
	case wit.U64:
		return "u64"
	case wit.F32:
		return "f32"
	case wit.F64:
		return "f64"
	case wit.Char:
		return "char"
	case wit.String:
		return "string"
	case nil:
		return "nil"
	}
	return KindOf(t).String()
}

var (
	ptrType = reflect.TypeOf(native.Ptr(0))
	anyType = reflect.TypeOf((*any)(nil)).Elem()
	mapType = reflect.TypeOf(map[string]any(nil))
)

// GoType returns the Go type a value of t lifts to when the target is any.
func GoType(t wit.Type) reflect.Type {
	switch t.(type) {
	case wit.Bool:
		return reflect.TypeOf(false)
	case wit.S8:
		return reflect.TypeOf(int8(0))
	case wit.S16:
		return reflect.TypeOf(int16(0))
	case wit.S32:
		return reflect.TypeOf(int32(0))
	case wit.S64:
		return reflect.TypeOf(int64(0))
	case wit.U8:
		return reflect.TypeOf(uint8(0))
	case wit.U16:
		return reflect.TypeOf(uint16(0))
	case wit.U32:
		return reflect.TypeOf(uint32(0))
	case wit.U64:
		return reflect.TypeOf(uint64(0))
	case wit.F32:
		return reflect.TypeOf(float32(0))
	case wit.F64:
		return reflect.TypeOf(float64(0))
	case wit.Char:
		return reflect.TypeOf(rune(0))
	case wit.String:
		return reflect.TypeOf("")
	}
	switch KindOf(t) {
	case KindEnum, KindFlags:
		return reflect.TypeOf(uint32(0))
	case KindRecord:
		return mapType
	case KindObject:
		return ptrType
	}
	return anyType
}

// Accepts reports whether a Go value of type gt can marshal as t.
func Accepts(t wit.Type, gt reflect.Type) bool {
	if gt == anyType {
		return true
	}
	switch KindOf(t) {
	case KindBool:
		return gt.Kind() == reflect.Bool
	case KindSigned, KindUnsigned, KindChar, KindEnum, KindFlags:
		return isInteger(gt.Kind())
	case KindFloat:
		return gt.Kind() == reflect.Float32 || gt.Kind() == reflect.Float64
	case KindString:
		return gt.Kind() == reflect.String
	case KindRecord:
		if gt.Kind() == reflect.Pointer {
			gt = gt.Elem()
		}
		return gt.Kind() == reflect.Struct || gt == mapType
	case KindObject:
		return gt == ptrType
	}
	return false
}

func isInteger(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return true
	}
	return false
}
