package abi

// AlignTo rounds offset up to a power-of-two align.
func AlignTo(offset, align uint32) uint32 {
	if align == 0 {
		return offset
	}
	return (offset + align - 1) &^ (align - 1)
}

// SignExtend widens the low size bytes of slot as a signed integer.
func SignExtend(slot uint64, size uint32) int64 {
	switch size {
	case 1:
		return int64(int8(slot))
	case 2:
		return int64(int16(slot))
	case 4:
		return int64(int32(slot))
	default:
		return int64(slot)
	}
}

// ZeroExtend keeps the low size bytes of slot.
func ZeroExtend(slot uint64, size uint32) uint64 {
	if size >= 8 {
		return slot
	}
	return slot & (1<<(size*8) - 1)
}

// FitsSigned reports whether v is representable in size bytes.
func FitsSigned(v int64, size uint32) bool {
	if size >= 8 {
		return true
	}
	bits := size * 8
	lo := int64(-1) << (bits - 1)
	hi := int64(1)<<(bits-1) - 1
	return v >= lo && v <= hi
}

// FitsUnsigned reports whether v is representable in size bytes.
func FitsUnsigned(v uint64, size uint32) bool {
	if size >= 8 {
		return true
	}
	return v < 1<<(size*8)
}
