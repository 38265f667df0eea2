package bridge

import (
	"reflect"

	"go.uber.org/zap"

	"github.com/wippyai/objbridge/class"
	"github.com/wippyai/objbridge/errors"
	"github.com/wippyai/objbridge/marshal"
	"github.com/wippyai/objbridge/native"
)

// call performs one Go to native crossing. A non-zero super runs the
// implementation the parent of that class provides. targets optionally
// names the Go type of each result.
func (b *Bridge) call(self native.Ptr, op *class.OpDef, args []any, super native.ClassID, targets []reflect.Type) ([]any, error) {
	sig := op.Sig
	ins := sig.Inputs()
	if len(args) != len(ins) {
		return nil, errors.New(errors.PhaseDispatch, errors.KindSignature).
			Path(op.Symbol).
			Detail("expected %d arguments, got %d", len(ins), len(args)).
			Build()
	}

	s := marshal.NewScratch()
	defer s.FreeAndRelease(b.rt)

	params := make([]uint64, len(sig.Params))
	outs := make([]native.Ptr, 0, len(sig.Params)-len(ins)+1)
	k := 0
	for i, p := range sig.Params {
		switch p.Dir {
		case marshal.In:
			slot, err := b.lowerValue(p, reflect.ValueOf(args[k]), s)
			if err != nil {
				return nil, err
			}
			params[i] = slot
			k++
		case marshal.Out, marshal.InOut:
			var init reflect.Value
			if p.Dir == marshal.InOut {
				init = objectValue(p, reflect.ValueOf(args[k]))
				k++
			}
			ptr, err := b.mar.AllocOut(p, init, s)
			if err != nil {
				return nil, err
			}
			params[i] = uint64(ptr)
			outs = append(outs, ptr)
		}
	}

	f := &native.Frame{Self: self, Params: params}
	if self != 0 {
		// managed overrides reached through a super call resolve their
		// wrapper from this
		f.Data = b.rt.InstanceData(self)
	}
	if sig.Result != nil {
		f.Results = make([]uint64, 1)
	}

	var ok bool
	if super != 0 {
		ok = b.rt.CallSuper(super, op.Symbol, f)
	} else {
		ok = b.rt.Call(op.Symbol, f)
	}
	if !ok {
		b.log.Warn("native operation not found", zap.String("op", op.Symbol))
		return nil, errors.Unresolved(errors.PhaseDispatch, "operation", op.Symbol)
	}

	// lift everything first so owned results are released even when a
	// failure is pending
	results := make([]any, 0, len(outs)+1)
	var liftErr error
	target := func(i int) reflect.Type {
		if i < len(targets) {
			return targets[i]
		}
		return nil
	}
	if sig.Result != nil {
		v, err := b.liftValue(*sig.Result, f.Results[0], target(0))
		if err != nil {
			liftErr = err
		}
		results = append(results, value(v))
	}
	i := 0
	for _, p := range sig.Params {
		if p.Dir == marshal.In {
			continue
		}
		v, err := b.liftOut(p, outs[i], target(len(results)))
		if err != nil && liftErr == nil {
			liftErr = err
		}
		results = append(results, value(v))
		i++
	}

	if err := b.CheckUnhandled(); err != nil {
		return nil, err
	}
	if liftErr != nil {
		return nil, liftErr
	}
	return results, nil
}

func value(v reflect.Value) any {
	if !v.IsValid() {
		return nil
	}
	return v.Interface()
}

// objectValue replaces wrappers by their native pointer for object params.
func objectValue(p marshal.Param, v reflect.Value) reflect.Value {
	if !marshal.IsObject(p.Type) || !v.IsValid() {
		return v
	}
	if v.Kind() == reflect.Interface {
		if v.IsNil() {
			return reflect.ValueOf(native.Ptr(0))
		}
		v = v.Elem()
	}
	if v.Type().Implements(wrapperType) {
		if v.Kind() == reflect.Pointer && v.IsNil() {
			return reflect.ValueOf(native.Ptr(0))
		}
		return reflect.ValueOf(v.Interface().(Wrapper).object().Ptr())
	}
	return v
}

func (b *Bridge) lowerValue(p marshal.Param, v reflect.Value, s *marshal.Scratch) (uint64, error) {
	return b.mar.LowerValue(p, objectValue(p, v), s)
}

// liftValue converts a slot to target. Objects become wrappers unless the
// target is native.Ptr.
func (b *Bridge) liftValue(p marshal.Param, slot uint64, target reflect.Type) (reflect.Value, error) {
	if !marshal.IsObject(p.Type) {
		return b.mar.Lift(p, slot, target)
	}
	return b.liftObject(p, native.Ptr(slot), target)
}

func (b *Bridge) liftObject(p marshal.Param, ptr native.Ptr, target reflect.Type) (reflect.Value, error) {
	if target == ptrType {
		return reflect.ValueOf(ptr), nil
	}
	if target == anyType {
		target = nil
	}
	w, err := b.Wrap(ptr, p.Transfer, target)
	if err != nil {
		return reflect.Value{}, err
	}
	if target == nil {
		target = wrapperType
	}
	if w == nil {
		return reflect.Zero(target), nil
	}
	v := reflect.ValueOf(w)
	if !v.Type().AssignableTo(target) {
		return reflect.Value{}, errors.TypeMismatch(errors.PhaseLift, []string{p.Name}, target.String(), v.Type().String())
	}
	return v, nil
}

func (b *Bridge) liftOut(p marshal.Param, ptr native.Ptr, target reflect.Type) (reflect.Value, error) {
	if !marshal.IsObject(p.Type) {
		return b.mar.ReadOut(p, ptr, target)
	}
	v, err := b.mar.ReadOut(p, ptr, ptrType)
	if err != nil {
		return reflect.Value{}, err
	}
	return b.liftObject(p, v.Interface().(native.Ptr), target)
}
