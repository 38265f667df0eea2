package layout

import (
	"sync"
	"testing"

	"go.bytecodealliance.org/wit"
)

func TestCalculatePrimitives(t *testing.T) {
	c := NewCalculator(8)

	tests := []struct {
		typ   wit.Type
		name  string
		size  uint32
		align uint32
	}{
		{wit.Bool{}, "bool", 1, 1},
		{wit.U8{}, "u8", 1, 1},
		{wit.S8{}, "s8", 1, 1},
		{wit.U16{}, "u16", 2, 2},
		{wit.S16{}, "s16", 2, 2},
		{wit.U32{}, "u32", 4, 4},
		{wit.S32{}, "s32", 4, 4},
		{wit.U64{}, "u64", 8, 8},
		{wit.S64{}, "s64", 8, 8},
		{wit.F32{}, "f32", 4, 4},
		{wit.F64{}, "f64", 8, 8},
		{wit.Char{}, "char", 4, 4},
		{wit.String{}, "string", 8, 8},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			info := c.Calculate(tc.typ)
			if info.Size != tc.size {
				t.Errorf("size: got %d, want %d", info.Size, tc.size)
			}
			if info.Align != tc.align {
				t.Errorf("align: got %d, want %d", info.Align, tc.align)
			}
		})
	}
}

func TestCalculatePointerWidth(t *testing.T) {
	c := NewCalculator(4)
	if info := c.Calculate(wit.String{}); info.Size != 4 || info.Align != 4 {
		t.Errorf("string on 32-bit: %+v", info)
	}
	obj := &wit.TypeDef{Kind: &wit.Own{}}
	if info := c.Calculate(obj); info.Size != 4 {
		t.Errorf("own on 32-bit: %+v", info)
	}
	if NewCalculator(3).PtrSize() != 8 {
		t.Error("unsupported widths should fall back to 8")
	}
}

func TestCalculateRecord(t *testing.T) {
	c := NewCalculator(8)

	t.Run("empty", func(t *testing.T) {
		typedef := &wit.TypeDef{Kind: &wit.Record{Fields: []wit.Field{}}}
		if info := c.Calculate(typedef); info.Size != 0 {
			t.Errorf("size: got %d, want 0", info.Size)
		}
	})

	t.Run("rect", func(t *testing.T) {
		typedef := &wit.TypeDef{Kind: &wit.Record{Fields: []wit.Field{
			{Name: "x", Type: wit.S32{}},
			{Name: "y", Type: wit.S32{}},
			{Name: "width", Type: wit.S32{}},
			{Name: "height", Type: wit.S32{}},
		}}}
		info := c.Calculate(typedef)
		if info.Size != 16 || info.Align != 4 {
			t.Errorf("got size=%d align=%d, want 16/4", info.Size, info.Align)
		}
		if info.FieldOffs["height"] != 12 {
			t.Errorf("height offset: got %d, want 12", info.FieldOffs["height"])
		}
	})

	t.Run("pointer_padding", func(t *testing.T) {
		// struct { gboolean8 flag; char *name; int kind; }
		kind := &wit.TypeDef{Kind: &wit.Enum{Cases: []wit.EnumCase{{Name: "a"}, {Name: "b"}}}}
		typedef := &wit.TypeDef{Kind: &wit.Record{Fields: []wit.Field{
			{Name: "flag", Type: wit.Bool{}},
			{Name: "name", Type: wit.String{}},
			{Name: "kind", Type: kind},
		}}}
		info := c.Calculate(typedef)
		if info.FieldOffs["name"] != 8 {
			t.Errorf("name offset: got %d, want 8", info.FieldOffs["name"])
		}
		if info.FieldOffs["kind"] != 16 {
			t.Errorf("kind offset: got %d, want 16", info.FieldOffs["kind"])
		}
		if info.Size != 24 || info.Align != 8 {
			t.Errorf("got size=%d align=%d, want 24/8", info.Size, info.Align)
		}
	})

	t.Run("nested", func(t *testing.T) {
		point := &wit.TypeDef{Kind: &wit.Record{Fields: []wit.Field{
			{Name: "x", Type: wit.F64{}},
			{Name: "y", Type: wit.F64{}},
		}}}
		typedef := &wit.TypeDef{Kind: &wit.Record{Fields: []wit.Field{
			{Name: "id", Type: wit.U8{}},
			{Name: "origin", Type: point},
		}}}
		info := c.Calculate(typedef)
		if info.FieldOffs["origin"] != 8 || info.Size != 24 {
			t.Errorf("got %+v", info)
		}
	})

	t.Run("unsupported_field", func(t *testing.T) {
		typedef := &wit.TypeDef{Kind: &wit.Record{Fields: []wit.Field{
			{Name: "items", Type: &wit.TypeDef{Kind: &wit.List{Type: wit.U8{}}}},
		}}}
		if info := c.Calculate(typedef); info.Size != 0 {
			t.Errorf("record with list field should have no native layout, got %+v", info)
		}
	})
}

func TestCalculateEnumFlags(t *testing.T) {
	c := NewCalculator(8)
	enum := &wit.TypeDef{Kind: &wit.Enum{Cases: []wit.EnumCase{{Name: "a"}}}}
	if info := c.Calculate(enum); info.Size != 4 || info.Align != 4 {
		t.Errorf("enum: %+v", info)
	}
	flags := &wit.TypeDef{Kind: &wit.Flags{Flags: []wit.Flag{{Name: "x"}}}}
	if info := c.Calculate(flags); info.Size != 4 {
		t.Errorf("flags: %+v", info)
	}
}

func TestCalculateConcurrent(t *testing.T) {
	c := NewCalculator(8)
	rec := &wit.TypeDef{Kind: &wit.Record{Fields: []wit.Field{
		{Name: "a", Type: wit.U8{}},
		{Name: "b", Type: wit.U64{}},
	}}}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if info := c.Calculate(rec); info.Size != 16 {
				t.Errorf("size = %d, want 16", info.Size)
			}
		}()
	}
	wg.Wait()
}
