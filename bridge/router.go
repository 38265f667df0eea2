package bridge

import (
	"fmt"
	"reflect"
	"runtime/debug"

	"go.uber.org/zap"

	"github.com/wippyai/objbridge/class"
	"github.com/wippyai/objbridge/errors"
	"github.com/wippyai/objbridge/marshal"
	"github.com/wippyai/objbridge/native"
	"github.com/wippyai/objbridge/object"
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

type outSlot struct {
	param marshal.Param
	ptr   native.Ptr
}

// trampoline is the class.TrampolineFactory of the bridge.
func (b *Bridge) trampoline(op *class.OpDescriptor) native.Func {
	return func(f *native.Frame) {
		b.route(op, f)
	}
}

// route handles one native call of an overridden virtual operation.
func (b *Bridge) route(op *class.OpDescriptor, f *native.Frame) {
	w, ok := b.pinned.Get(object.ID(f.Data))
	if !ok || w.object().Ptr() != f.Self {
		// no live wrapper: behave as if the override did not exist
		if !b.rt.CallSuper(op.Declaring.Class, op.Symbol, f) {
			b.log.Warn("no parent implementation to forward to",
				zap.String("op", op.Symbol),
				zap.String("class", op.Declaring.Name))
			clear(f.Results)
		}
		return
	}
	b.dispatch(w.object(), op, f)
}

func (b *Bridge) dispatch(o *Object, op *class.OpDescriptor, f *native.Frame) {
	sig := op.Op.Sig
	s := marshal.NewScratch()
	var outs []outSlot
	done := false

	defer func() {
		if r := recover(); r != nil {
			b.fail(op, panicError(r), r)
		}
		if done {
			return
		}
		clear(f.Results)
		for _, out := range outs {
			if out.param.Dir == marshal.Out {
				_ = b.mar.ZeroOut(out.param, out.ptr)
			}
		}
		s.FreeAndRelease(b.rt)
	}()

	method, err := o.method(op)
	if err != nil {
		b.fail(op, err, nil)
		return
	}

	var args []reflect.Value
	args, outs, err = b.liftParams(sig, f, method.Type())
	if err != nil {
		b.fail(op, err, nil)
		return
	}

	results := o.invoke(op, method, args)

	if n := len(results); n > 0 && method.Type().Out(n-1) == errorType {
		if e := results[n-1]; !e.IsNil() {
			b.fail(op, e.Interface().(error), nil)
			return
		}
		results = results[:n-1]
	}

	if err := b.storeResults(sig, f, results, outs, s); err != nil {
		b.fail(op, err, nil)
		return
	}
	o.keep(op.Symbol, s)
	done = true
}

// method resolves the Go method of the declaring type inside the wrapper,
// so a chain of overrides runs each level's own body.
func (o *Object) method(op *class.OpDescriptor) (reflect.Value, error) {
	path, ok := o.desc.PathTo(op.Declaring)
	if !ok {
		return reflect.Value{}, errors.TypeMismatch(errors.PhaseDispatch, []string{op.Symbol},
			o.desc.GoType.String(), op.Declaring.GoType.String())
	}
	v := reflect.ValueOf(o.self).Elem()
	if len(path) > 0 {
		v = v.FieldByIndex(path)
	}
	m := v.Addr().MethodByName(op.Op.Method)
	if !m.IsValid() {
		return reflect.Value{}, errors.NotFound(errors.PhaseDispatch, "method", op.Op.Method)
	}
	return m, nil
}

func (o *Object) invoke(op *class.OpDescriptor, m reflect.Value, args []reflect.Value) []reflect.Value {
	fr := o.pushFrame(op.Symbol, op.Declaring.Class)
	defer o.popFrame(fr)
	return m.Call(args)
}

func (b *Bridge) liftParams(sig marshal.Signature, f *native.Frame, mt reflect.Type) ([]reflect.Value, []outSlot, error) {
	args := make([]reflect.Value, 0, mt.NumIn())
	var outs []outSlot
	for i, p := range sig.Params {
		var slot uint64
		if i < len(f.Params) {
			slot = f.Params[i]
		}
		switch p.Dir {
		case marshal.In:
			v, err := b.liftValue(p, slot, mt.In(len(args)))
			if err != nil {
				return nil, outs, err
			}
			args = append(args, fit(v, mt.In(len(args))))
		case marshal.InOut:
			gt := mt.In(len(args))
			var v reflect.Value
			var err error
			if marshal.IsObject(p.Type) {
				var pv reflect.Value
				pv, err = b.mar.ReadIn(p, native.Ptr(slot), ptrType)
				if err == nil {
					v, err = b.liftObject(marshal.Param{Type: p.Type, Name: p.Name}, pv.Interface().(native.Ptr), gt)
				}
			} else {
				v, err = b.mar.ReadIn(p, native.Ptr(slot), gt)
			}
			if err != nil {
				return nil, outs, err
			}
			args = append(args, fit(v, gt))
			outs = append(outs, outSlot{param: p, ptr: native.Ptr(slot)})
		case marshal.Out:
			if err := b.mar.ZeroOut(p, native.Ptr(slot)); err != nil {
				return nil, outs, err
			}
			outs = append(outs, outSlot{param: p, ptr: native.Ptr(slot)})
		}
	}
	return args, outs, nil
}

// fit adapts a lifted value to the exact parameter type.
func fit(v reflect.Value, t reflect.Type) reflect.Value {
	if !v.IsValid() {
		return reflect.Zero(t)
	}
	if v.Type() == t || v.Type().AssignableTo(t) {
		return v
	}
	if v.Type().ConvertibleTo(t) {
		return v.Convert(t)
	}
	return v
}

// storeResults lowers the result and writes the out parameters. On failure
// an owned result already lowered is released, since the caller only sees
// zero results.
func (b *Bridge) storeResults(sig marshal.Signature, f *native.Frame, results []reflect.Value, outs []outSlot, s *marshal.Scratch) error {
	i := 0
	var slot uint64
	if sig.Result != nil {
		var err error
		slot, err = b.lowerValue(*sig.Result, results[0], s)
		if err != nil {
			return err
		}
		i = 1
	}
	for _, out := range outs {
		v := objectValue(out.param, results[i])
		if err := b.mar.WriteOut(out.param, out.ptr, v, s); err != nil {
			if sig.Result != nil {
				b.mar.Discard(*sig.Result, slot)
			}
			return err
		}
		i++
	}
	if sig.Result != nil && len(f.Results) > 0 {
		f.Results[0] = slot
	}
	return nil
}

// fail records an override failure. The native caller gets zero results.
func (b *Bridge) fail(op *class.OpDescriptor, err error, recovered any) {
	ue := &UnhandledError{
		Err:    err,
		Panic:  recovered,
		Op:     op.Symbol,
		Method: op.Op.Method,
		Type:   op.Declaring.GoType.String(),
	}
	fields := []zap.Field{
		zap.String("op", op.Symbol),
		zap.String("type", ue.Type),
		zap.Error(err),
	}
	if recovered != nil {
		ue.Stack = debug.Stack()
		fields = append(fields, zap.String("panic", fmt.Sprint(recovered)))
	}
	b.log.Error("unhandled failure in override", fields...)
	b.record(ue)
}
