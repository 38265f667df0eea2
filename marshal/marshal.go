package marshal

import (
	"encoding/binary"
	"math"
	"reflect"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/objbridge/errors"
	"github.com/wippyai/objbridge/marshal/internal/abi"
	"github.com/wippyai/objbridge/marshal/internal/layout"
	"github.com/wippyai/objbridge/native"
)

// Marshaler converts values between Go and native ABI slots.
// It is safe for concurrent use.
type Marshaler struct {
	mem  native.Memory
	refs native.Refcounter
	calc *layout.Calculator
}

// New creates a Marshaler over a native heap. ptrSize is the native
// pointer width in bytes (4 or 8).
func New(mem native.Memory, refs native.Refcounter, ptrSize uint32) *Marshaler {
	return &Marshaler{
		mem:  mem,
		refs: refs,
		calc: layout.NewCalculator(ptrSize),
	}
}

// Layout returns the native size and alignment of t.
func (m *Marshaler) Layout(t wit.Type) (size, align uint32) {
	info := m.calc.Calculate(t)
	return info.Size, info.Align
}

// Supported reports whether t has a native representation.
func (m *Marshaler) Supported(t wit.Type) bool {
	if KindOf(t) == KindUnsupported {
		return false
	}
	size, _ := m.Layout(t)
	return size > 0
}

// Lower converts v to an ABI slot. Allocations the receiver does not take
// over are added to s and must be freed by the caller after the call.
func (m *Marshaler) Lower(p Param, v any, s *Scratch) (uint64, error) {
	return m.LowerValue(p, reflect.ValueOf(v), s)
}

// LowerValue is Lower for a reflect.Value.
func (m *Marshaler) LowerValue(p Param, v reflect.Value, s *Scratch) (uint64, error) {
	path := []string{p.Name}
	if KindOf(p.Type) == KindRecord {
		return m.lowerRecord(p.Type, p.Transfer, v, s, path)
	}
	return m.lowerScalar(p.Type, p.Transfer, v, s, path)
}

// Lift converts an ABI slot to a Go value of type target. Owned strings and
// records are freed after copying. Objects lift to native.Ptr; the caller
// decides what the reference means.
func (m *Marshaler) Lift(p Param, slot uint64, target reflect.Type) (reflect.Value, error) {
	path := []string{p.Name}
	if KindOf(p.Type) == KindRecord {
		ptr := native.Ptr(slot)
		if ptr == 0 {
			return zeroOf(p.Type, target), nil
		}
		v, err := m.load(p.Type, ptr, target, p.Transfer, path)
		if err != nil {
			return reflect.Value{}, err
		}
		if p.Transfer == Owned {
			m.FreeRecord(p.Type, ptr)
		}
		return v, nil
	}
	return m.liftScalar(p.Type, p.Transfer, slot, target, path)
}

func zeroOf(t wit.Type, target reflect.Type) reflect.Value {
	if target == nil || target == anyType {
		target = GoType(t)
	}
	return reflect.Zero(target)
}

func deref(v reflect.Value) reflect.Value {
	for v.IsValid() && (v.Kind() == reflect.Interface || v.Kind() == reflect.Pointer) {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

func toInt64(v reflect.Value) (int64, bool) {
	switch {
	case v.CanInt():
		return v.Int(), true
	case v.CanUint():
		u := v.Uint()
		if u > math.MaxInt64 {
			return 0, false
		}
		return int64(u), true
	case v.CanFloat():
		return abi.FloatToInt64(v.Float())
	}
	return 0, false
}

func toUint64(v reflect.Value) (uint64, bool) {
	switch {
	case v.CanUint():
		return v.Uint(), true
	case v.CanInt():
		return abi.IntToUint64(v.Int())
	case v.CanFloat():
		return abi.FloatToUint64(v.Float())
	}
	return 0, false
}

func toFloat64(v reflect.Value) (float64, bool) {
	switch {
	case v.CanFloat():
		return v.Float(), true
	case v.CanInt():
		return float64(v.Int()), true
	case v.CanUint():
		return float64(v.Uint()), true
	}
	return 0, false
}

func goTypeName(v reflect.Value) string {
	if !v.IsValid() {
		return "nil"
	}
	return v.Type().String()
}

func (m *Marshaler) lowerScalar(t wit.Type, transfer Ownership, v reflect.Value, s *Scratch, path []string) (uint64, error) {
	kind := KindOf(t)
	v = deref(v)
	if !v.IsValid() {
		switch kind {
		case KindString, KindObject:
			return 0, nil
		}
		return 0, errors.NilPointer(errors.PhaseLower, path, TypeName(t))
	}

	switch kind {
	case KindBool:
		if v.Kind() != reflect.Bool {
			break
		}
		if v.Bool() {
			return 1, nil
		}
		return 0, nil

	case KindSigned:
		n, ok := toInt64(v)
		if !ok {
			break
		}
		size, _ := m.Layout(t)
		if !abi.FitsSigned(n, size) {
			return 0, errors.Overflow(errors.PhaseLower, path, n, TypeName(t))
		}
		return uint64(n), nil

	case KindUnsigned:
		if v.CanInt() && v.Int() < 0 {
			return 0, errors.Overflow(errors.PhaseLower, path, v.Int(), TypeName(t))
		}
		n, ok := toUint64(v)
		if !ok {
			break
		}
		size, _ := m.Layout(t)
		if !abi.FitsUnsigned(n, size) {
			return 0, errors.Overflow(errors.PhaseLower, path, n, TypeName(t))
		}
		return n, nil

	case KindChar:
		n, ok := toInt64(v)
		if !ok {
			break
		}
		if n < 0 || n >= 0x110000 || (n >= 0xD800 && n <= 0xDFFF) {
			return 0, errors.InvalidData(errors.PhaseLower, path, "invalid unicode scalar")
		}
		return uint64(n), nil

	case KindFloat:
		f, ok := toFloat64(v)
		if !ok {
			break
		}
		if _, isF32 := t.(wit.F32); isF32 {
			return uint64(math.Float32bits(float32(f))), nil
		}
		return math.Float64bits(f), nil

	case KindEnum:
		n, ok := toUint64(v)
		if !ok {
			break
		}
		cases := enumCases(t)
		if n >= uint64(cases) {
			return 0, errors.InvalidEnum(errors.PhaseLower, path, n, TypeName(t))
		}
		return n, nil

	case KindFlags:
		n, ok := toUint64(v)
		if !ok {
			break
		}
		if !abi.FitsUnsigned(n, 4) {
			return 0, errors.Overflow(errors.PhaseLower, path, n, "flags")
		}
		return n, nil

	case KindString:
		if v.Kind() != reflect.String {
			break
		}
		ptr, err := m.allocString(v.String())
		if err != nil {
			return 0, err
		}
		if transfer == Borrowed {
			s.Add(ptr)
		}
		return uint64(ptr), nil

	case KindObject:
		if v.Type() != ptrType && !v.CanUint() {
			break
		}
		ptr := native.Ptr(v.Uint())
		if transfer == Owned && ptr != 0 {
			m.refs.Ref(ptr)
		}
		return uint64(ptr), nil

	default:
		return 0, errors.Unsupported(errors.PhaseLower, "type "+TypeName(t))
	}

	return 0, errors.TypeMismatch(errors.PhaseLower, path, goTypeName(v), TypeName(t))
}

func enumCases(t wit.Type) int {
	if td, ok := t.(*wit.TypeDef); ok {
		switch kind := td.Kind.(type) {
		case *wit.Enum:
			return len(kind.Cases)
		case wit.Type:
			return enumCases(kind)
		}
	}
	return 0
}

func (m *Marshaler) allocString(str string) (native.Ptr, error) {
	size := uint32(len(str)) + 1
	ptr, err := m.mem.Alloc(size, 1)
	if err != nil {
		return 0, errors.AllocationFailed(errors.PhaseLower, size, 1)
	}
	if err := m.mem.Write(ptr, []byte(str)); err != nil {
		m.mem.Free(ptr)
		return 0, errors.Wrap(errors.PhaseLower, errors.KindOutOfBounds, err, "write string")
	}
	return ptr, nil
}

func (m *Marshaler) liftScalar(t wit.Type, transfer Ownership, slot uint64, target reflect.Type, path []string) (reflect.Value, error) {
	if target == nil || target == anyType {
		target = GoType(t)
	}
	size, _ := m.Layout(t)

	var out reflect.Value
	switch KindOf(t) {
	case KindBool:
		if target.Kind() != reflect.Bool {
			break
		}
		out = reflect.New(target).Elem()
		out.SetBool(slot&0xff != 0)
		return out, nil

	case KindSigned, KindChar:
		n := abi.SignExtend(slot, size)
		return setInteger(target, n, uint64(n), n < 0, path, t)

	case KindUnsigned, KindEnum, KindFlags:
		n := abi.ZeroExtend(slot, size)
		if KindOf(t) == KindEnum && n >= uint64(enumCases(t)) {
			return reflect.Value{}, errors.InvalidEnum(errors.PhaseLift, path, n, TypeName(t))
		}
		return setInteger(target, int64(n), n, false, path, t)

	case KindFloat:
		var f float64
		if _, isF32 := t.(wit.F32); isF32 {
			f = float64(math.Float32frombits(uint32(slot)))
		} else {
			f = math.Float64frombits(slot)
		}
		if target.Kind() != reflect.Float32 && target.Kind() != reflect.Float64 {
			break
		}
		out = reflect.New(target).Elem()
		out.SetFloat(f)
		return out, nil

	case KindString:
		if target.Kind() != reflect.String {
			break
		}
		ptr := native.Ptr(slot)
		str, err := m.mem.ReadCString(ptr)
		if err != nil {
			return reflect.Value{}, errors.Wrap(errors.PhaseLift, errors.KindOutOfBounds, err, "read string")
		}
		if transfer == Owned && ptr != 0 {
			m.mem.Free(ptr)
		}
		out = reflect.New(target).Elem()
		out.SetString(str)
		return out, nil

	case KindObject:
		return reflect.ValueOf(native.Ptr(slot)), nil

	default:
		return reflect.Value{}, errors.Unsupported(errors.PhaseLift, "type "+TypeName(t))
	}

	return reflect.Value{}, errors.TypeMismatch(errors.PhaseLift, path, target.String(), TypeName(t))
}

func setInteger(target reflect.Type, n int64, u uint64, negative bool, path []string, t wit.Type) (reflect.Value, error) {
	out := reflect.New(target).Elem()
	switch {
	case out.CanInt():
		if !negative && u > math.MaxInt64 || out.OverflowInt(n) {
			return reflect.Value{}, errors.Overflow(errors.PhaseLift, path, u, target.String())
		}
		out.SetInt(n)
	case out.CanUint():
		if negative || out.OverflowUint(u) {
			return reflect.Value{}, errors.Overflow(errors.PhaseLift, path, n, target.String())
		}
		out.SetUint(u)
	case out.CanFloat():
		if negative {
			out.SetFloat(float64(n))
		} else {
			out.SetFloat(float64(u))
		}
	default:
		return reflect.Value{}, errors.TypeMismatch(errors.PhaseLift, path, target.String(), TypeName(t))
	}
	return out, nil
}

// lowerRecord copies a struct or map into a freshly allocated native block.
func (m *Marshaler) lowerRecord(t wit.Type, transfer Ownership, v reflect.Value, s *Scratch, path []string) (uint64, error) {
	v = deref(v)
	if !v.IsValid() {
		return 0, nil
	}
	size, align := m.Layout(t)
	if size == 0 {
		return 0, errors.Unsupported(errors.PhaseLower, "record without native layout")
	}
	ptr, err := m.mem.Alloc(size, align)
	if err != nil {
		return 0, errors.AllocationFailed(errors.PhaseLower, size, align)
	}

	// Inner allocations follow the record: a borrowed record is released
	// by the caller, an owned one by the receiver through FreeRecord.
	inner := s
	if transfer == Owned {
		inner = nil
	}
	if err := m.store(t, ptr, v, inner, path); err != nil {
		if inner == nil {
			m.FreeRecord(t, ptr)
		} else {
			m.mem.Free(ptr)
		}
		return 0, err
	}
	if transfer == Borrowed {
		s.Add(ptr)
	}
	return uint64(ptr), nil
}

func recordFields(t wit.Type) []wit.Field {
	if td, ok := t.(*wit.TypeDef); ok {
		switch kind := td.Kind.(type) {
		case *wit.Record:
			return kind.Fields
		case wit.Type:
			return recordFields(kind)
		}
	}
	return nil
}

// store writes v at addr using the native layout of t. A nil scratch means
// string allocations belong to the block.
func (m *Marshaler) store(t wit.Type, addr native.Ptr, v reflect.Value, s *Scratch, path []string) error {
	if KindOf(t) != KindRecord {
		// fields never carry references of their own
		slot, err := m.lowerScalar(t, Borrowed, v, s, path)
		if err != nil {
			return err
		}
		return m.writeSlot(t, addr, slot)
	}

	v = deref(v)
	if !v.IsValid() {
		return errors.NilPointer(errors.PhaseLower, path, TypeName(t))
	}
	info := m.calc.Calculate(t)
	for _, field := range recordFields(t) {
		fpath := append(append([]string{}, path...), field.Name)
		fv, ok := recordField(v, field.Name)
		if !ok {
			return errors.FieldMissing(errors.PhaseLower, path, field.Name)
		}
		if err := m.store(field.Type, addr+native.Ptr(info.FieldOffs[field.Name]), fv, s, fpath); err != nil {
			return err
		}
	}
	return nil
}

func (m *Marshaler) load(t wit.Type, addr native.Ptr, target reflect.Type, transfer Ownership, path []string) (reflect.Value, error) {
	if KindOf(t) != KindRecord {
		slot, err := m.readSlot(t, addr)
		if err != nil {
			return reflect.Value{}, err
		}
		// string fields stay with the block; FreeRecord releases them
		return m.liftScalar(t, Borrowed, slot, target, path)
	}

	if target == nil || target == anyType {
		target = mapType
	}
	info := m.calc.Calculate(t)
	fields := recordFields(t)

	if target == mapType {
		out := make(map[string]any, len(fields))
		for _, field := range fields {
			fpath := append(append([]string{}, path...), field.Name)
			fv, err := m.load(field.Type, addr+native.Ptr(info.FieldOffs[field.Name]), nil, transfer, fpath)
			if err != nil {
				return reflect.Value{}, err
			}
			out[field.Name] = fv.Interface()
		}
		return reflect.ValueOf(out), nil
	}

	isPtr := target.Kind() == reflect.Pointer
	st := target
	if isPtr {
		st = target.Elem()
	}
	if st.Kind() != reflect.Struct {
		return reflect.Value{}, errors.TypeMismatch(errors.PhaseLift, path, target.String(), "record")
	}
	out := reflect.New(st).Elem()
	for _, field := range fields {
		sf, ok := findGoField(st, field.Name)
		if !ok {
			continue
		}
		fpath := append(append([]string{}, path...), field.Name)
		fv, err := m.load(field.Type, addr+native.Ptr(info.FieldOffs[field.Name]), sf.Type, transfer, fpath)
		if err != nil {
			return reflect.Value{}, err
		}
		if !fv.Type().AssignableTo(sf.Type) {
			if !fv.Type().ConvertibleTo(sf.Type) {
				return reflect.Value{}, errors.TypeMismatch(errors.PhaseLift, fpath, sf.Type.String(), TypeName(field.Type))
			}
			fv = fv.Convert(sf.Type)
		}
		out.FieldByIndex(sf.Index).Set(fv)
	}
	if isPtr {
		return out.Addr(), nil
	}
	return out, nil
}

// Discard undoes an owned lowering whose slot never reached the receiver.
// Borrowed slots belong to the scratch that produced them.
func (m *Marshaler) Discard(p Param, slot uint64) {
	if p.Transfer != Owned || slot == 0 {
		return
	}
	switch KindOf(p.Type) {
	case KindString:
		m.mem.Free(native.Ptr(slot))
	case KindRecord:
		m.FreeRecord(p.Type, native.Ptr(slot))
	case KindObject:
		m.refs.Unref(native.Ptr(slot))
	}
}

// FreeRecord releases a record block and every string it owns.
func (m *Marshaler) FreeRecord(t wit.Type, ptr native.Ptr) {
	if ptr == 0 {
		return
	}
	m.freeFields(t, ptr)
	m.mem.Free(ptr)
}

func (m *Marshaler) freeFields(t wit.Type, addr native.Ptr) {
	switch KindOf(t) {
	case KindString:
		if p, err := m.readSlot(t, addr); err == nil && p != 0 {
			m.mem.Free(native.Ptr(p))
		}
	case KindRecord:
		info := m.calc.Calculate(t)
		for _, field := range recordFields(t) {
			m.freeFields(field.Type, addr+native.Ptr(info.FieldOffs[field.Name]))
		}
	}
}

func (m *Marshaler) writeSlot(t wit.Type, addr native.Ptr, slot uint64) error {
	size, _ := m.Layout(t)
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, slot)
	if err := m.mem.Write(addr, buf[:size]); err != nil {
		return errors.Wrap(errors.PhaseLower, errors.KindOutOfBounds, err, "write field")
	}
	return nil
}

func (m *Marshaler) readSlot(t wit.Type, addr native.Ptr) (uint64, error) {
	size, _ := m.Layout(t)
	b, err := m.mem.Read(addr, size)
	if err != nil {
		return 0, errors.Wrap(errors.PhaseLift, errors.KindOutOfBounds, err, "read field")
	}
	buf := make([]byte, 8)
	copy(buf, b)
	return binary.LittleEndian.Uint64(buf), nil
}

// AllocOut allocates a zeroed out-parameter slot and returns its address.
// For InOut parameters init is stored into the slot first. The slot itself
// is added to s.
func (m *Marshaler) AllocOut(p Param, init reflect.Value, s *Scratch) (native.Ptr, error) {
	size, align := m.Layout(p.Type)
	if size == 0 {
		return 0, errors.Unsupported(errors.PhaseLower, "out parameter of type "+TypeName(p.Type))
	}
	ptr, err := m.mem.Alloc(size, align)
	if err != nil {
		return 0, errors.AllocationFailed(errors.PhaseLower, size, align)
	}
	s.Add(ptr)

	if p.Dir == InOut {
		if err := m.store(p.Type, ptr, init, s, []string{p.Name}); err != nil {
			return 0, err
		}
	}
	return ptr, nil
}

// ReadOut lifts the value a callee wrote into an out slot.
// Owned strings written by the callee are freed after copying.
func (m *Marshaler) ReadOut(p Param, ptr native.Ptr, target reflect.Type) (reflect.Value, error) {
	path := []string{p.Name}
	if KindOf(p.Type) == KindRecord {
		v, err := m.load(p.Type, ptr, target, p.Transfer, path)
		if err != nil {
			return reflect.Value{}, err
		}
		if p.Transfer == Owned {
			m.freeFields(p.Type, ptr)
		}
		return v, nil
	}
	slot, err := m.readSlot(p.Type, ptr)
	if err != nil {
		return reflect.Value{}, err
	}
	return m.liftScalar(p.Type, p.Transfer, slot, target, path)
}

// ReadIn lifts the current content of a caller-provided in-out slot
// without taking ownership of anything it points to.
func (m *Marshaler) ReadIn(p Param, ptr native.Ptr, target reflect.Type) (reflect.Value, error) {
	if ptr == 0 {
		return zeroOf(p.Type, target), nil
	}
	if KindOf(p.Type) == KindRecord {
		return m.load(p.Type, ptr, target, Borrowed, []string{p.Name})
	}
	slot, err := m.readSlot(p.Type, ptr)
	if err != nil {
		return reflect.Value{}, err
	}
	return m.liftScalar(p.Type, Borrowed, slot, target, []string{p.Name})
}

// ZeroOut clears a caller-provided out slot.
func (m *Marshaler) ZeroOut(p Param, ptr native.Ptr) error {
	if ptr == 0 {
		return nil
	}
	size, _ := m.Layout(p.Type)
	if err := m.mem.Write(ptr, make([]byte, size)); err != nil {
		return errors.Wrap(errors.PhaseLower, errors.KindOutOfBounds, err, "zero out slot")
	}
	return nil
}

// WriteOut stores v into a caller-provided out slot. Owned strings and
// objects move to the caller; borrowed allocations are added to s and must
// outlive the call.
func (m *Marshaler) WriteOut(p Param, ptr native.Ptr, v reflect.Value, s *Scratch) error {
	if ptr == 0 {
		return nil
	}
	path := []string{p.Name}
	if KindOf(p.Type) == KindRecord {
		inner := s
		if p.Transfer == Owned {
			inner = nil
		}
		return m.store(p.Type, ptr, v, inner, path)
	}
	slot, err := m.lowerScalar(p.Type, p.Transfer, v, s, path)
	if err != nil {
		return err
	}
	return m.writeSlot(p.Type, ptr, slot)
}
