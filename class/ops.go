package class

import (
	"fmt"
	"reflect"
	"runtime"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/objbridge/errors"
	"github.com/wippyai/objbridge/marshal"
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// buildOps collects the virtual operations d.GoType declares itself.
// Methods promoted from an embedded field are inherited: the parent class
// already routes them.
func (r *Registry) buildOps(d *Descriptor) ([]OpDescriptor, error) {
	var ops []OpDescriptor
	for _, op := range d.Parent.Virtuals() {
		m, ok := declaredMethod(d.GoType, op.Method)
		if !ok {
			continue
		}
		if err := r.checkSignature(d.GoType, m, op); err != nil {
			return nil, err
		}
		ops = append(ops, OpDescriptor{
			Symbol:    op.Symbol,
			Declaring: d,
			Op:        op,
		})
	}
	return ops, nil
}

// declaredMethod returns the method name of *t when t declares it, as
// opposed to inheriting it through an embedded field.
func declaredMethod(t reflect.Type, name string) (reflect.Method, bool) {
	m, ok := reflect.PointerTo(t).MethodByName(name)
	if !ok {
		return reflect.Method{}, false
	}
	if !promotable(t, name) {
		return m, true
	}
	// t shadows a promoted method iff one of its own method bodies is not
	// a compiler generated forwarding wrapper.
	if !generated(m) {
		return m, true
	}
	if vm, ok := t.MethodByName(name); ok && !generated(vm) {
		return m, true
	}
	return reflect.Method{}, false
}

func promotable(t reflect.Type, name string) bool {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.Anonymous {
			continue
		}
		ft := f.Type
		if ft.Kind() != reflect.Pointer {
			ft = reflect.PointerTo(ft)
		}
		if _, ok := ft.MethodByName(name); ok {
			return true
		}
	}
	return false
}

func generated(m reflect.Method) bool {
	fn := runtime.FuncForPC(m.Func.Pointer())
	if fn == nil {
		return true
	}
	file, _ := fn.FileLine(fn.Entry())
	return file == "<autogenerated>"
}

// checkSignature verifies that m can serve op: one Go parameter per input,
// the result followed by out parameters as Go results, and an optional
// trailing error.
func (r *Registry) checkSignature(t reflect.Type, m reflect.Method, op *OpDef) error {
	mt := m.Type
	name := t.String()
	if mt.IsVariadic() {
		return errors.Signature(name, m.Name, "variadic overrides are not supported")
	}

	ins := op.Sig.Inputs()
	if mt.NumIn()-1 != len(ins) {
		return errors.Signature(name, m.Name,
			fmt.Sprintf("%s takes %d arguments, method has %d", op.Symbol, len(ins), mt.NumIn()-1))
	}
	for i, p := range ins {
		if gt := mt.In(i + 1); !r.accepts(p.Type, gt) {
			return errors.Signature(name, m.Name,
				fmt.Sprintf("argument %d (%s) cannot carry %s", i, gt, marshal.TypeName(p.Type)))
		}
	}

	var outs []marshal.Param
	if op.Sig.Result != nil {
		outs = append(outs, *op.Sig.Result)
	}
	outs = append(outs, op.Sig.Outputs()...)

	n := mt.NumOut()
	if n > 0 && mt.Out(n-1) == errorType {
		n--
	}
	if n != len(outs) {
		return errors.Signature(name, m.Name,
			fmt.Sprintf("%s returns %d values, method returns %d", op.Symbol, len(outs), n))
	}
	for i, p := range outs {
		if gt := mt.Out(i); !r.accepts(p.Type, gt) {
			return errors.Signature(name, m.Name,
				fmt.Sprintf("result %d (%s) cannot carry %s", i, gt, marshal.TypeName(p.Type)))
		}
	}
	return nil
}

func (r *Registry) accepts(t wit.Type, gt reflect.Type) bool {
	if marshal.IsObject(t) && r.objectType != nil && gt.Implements(r.objectType) {
		return true
	}
	return marshal.Accepts(t, gt)
}
