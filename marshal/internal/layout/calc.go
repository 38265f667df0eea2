package layout

import (
	"sync"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/objbridge/marshal/internal/abi"
)

// Info is the native size, alignment and field offsets of a type.
// Size 0 marks a type with no native representation.
type Info struct {
	FieldOffs map[string]uint32
	Size      uint32
	Align     uint32
}

type Calculator struct {
	cache   map[*wit.TypeDef]Info
	ptrSize uint32
	mu      sync.Mutex
}

// NewCalculator creates a calculator for the given pointer width in bytes.
func NewCalculator(ptrSize uint32) *Calculator {
	if ptrSize != 4 {
		ptrSize = 8
	}
	return &Calculator{
		cache:   make(map[*wit.TypeDef]Info),
		ptrSize: ptrSize,
	}
}

// PtrSize returns the pointer width.
func (c *Calculator) PtrSize() uint32 {
	return c.ptrSize
}

func (c *Calculator) Calculate(t wit.Type) Info {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calculate(t)
}

func (c *Calculator) calculate(t wit.Type) Info {
	switch typ := t.(type) {
	case wit.U8, wit.S8, wit.Bool:
		return Info{Size: 1, Align: 1}
	case wit.U16, wit.S16:
		return Info{Size: 2, Align: 2}
	case wit.U32, wit.S32, wit.F32, wit.Char:
		return Info{Size: 4, Align: 4}
	case wit.U64, wit.S64, wit.F64:
		return Info{Size: 8, Align: 8}
	case wit.String:
		return Info{Size: c.ptrSize, Align: c.ptrSize} // char*
	case *wit.TypeDef:
		return c.calculateTypeDef(typ)
	default:
		return Info{Size: 0, Align: 1}
	}
}

func (c *Calculator) calculateTypeDef(t *wit.TypeDef) Info {
	if cached, ok := c.cache[t]; ok {
		return cached
	}

	var info Info

	switch kind := t.Kind.(type) {
	case *wit.Record:
		info = c.calculateRecord(kind)
	case *wit.Enum:
		info = Info{Size: 4, Align: 4}
	case *wit.Flags:
		info = Info{Size: 4, Align: 4}
	case *wit.Own, *wit.Borrow:
		info = Info{Size: c.ptrSize, Align: c.ptrSize}
	case wit.Type:
		info = c.calculate(kind)
	default:
		info = Info{Size: 0, Align: 1}
	}

	c.cache[t] = info
	return info
}

// calculateRecord lays fields out like a C struct: each at the next offset
// aligned for it, the total padded to the widest alignment.
func (c *Calculator) calculateRecord(r *wit.Record) Info {
	if len(r.Fields) == 0 {
		return Info{Size: 0, Align: 1}
	}
	info := Info{Align: 1, FieldOffs: make(map[string]uint32, len(r.Fields))}
	var offset uint32
	for _, f := range r.Fields {
		fl := c.calculate(f.Type)
		if fl.Size == 0 {
			return Info{Size: 0, Align: 1}
		}
		offset = abi.AlignTo(offset, fl.Align)
		info.FieldOffs[f.Name] = offset
		offset += fl.Size
		info.Align = max(info.Align, fl.Align)
	}
	info.Size = abi.AlignTo(offset, info.Align)
	return info
}
