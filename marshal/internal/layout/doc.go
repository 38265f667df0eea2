// Package layout computes native C layouts for wit types.
//
// Structs passed across the boundary use the platform C layout, not the Go
// in-memory shape:
//   - Primitives: size equals alignment (u8=1, u32=4, u64=8, etc.)
//   - bool: a single byte flag
//   - string and object handles: one pointer
//   - enums and flags: a 32-bit C int
//   - records: fields in order with C padding, size rounded to
//     the largest field alignment
//
// # Usage
//
//	c := layout.NewCalculator(8)
//	info := c.Calculate(witType)
//	// info.Size, info.Align, info.FieldOffs available
//
// This package is internal to marshal.
package layout
