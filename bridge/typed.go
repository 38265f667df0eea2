package bridge

import (
	"fmt"
	"reflect"

	"go.uber.org/zap"

	"github.com/wippyai/objbridge/errors"
	"github.com/wippyai/objbridge/marshal"
)

// Property is a typed accessor generated wrappers declare once per
// property, e.g. var Label = bridge.NewProperty[string]("label").
type Property[T any] struct {
	Name string
}

func NewProperty[T any](name string) Property[T] {
	return Property[T]{Name: name}
}

// Get reads the property of w.
func (p Property[T]) Get(w Wrapper) (T, error) {
	var zero T
	o := w.object()
	prop, err := o.property(p.Name)
	if err != nil {
		return zero, err
	}
	op, err := o.op(prop.Getter)
	if err != nil {
		return zero, err
	}
	return first[T](o.callOp(op, nil, []reflect.Type{reflect.TypeFor[T]()}))
}

// Set writes the property of w.
func (p Property[T]) Set(w Wrapper, v T) error {
	return w.object().Set(p.Name, v)
}

// Event is a typed handle on a named native event.
type Event[T any] struct {
	Name string
}

func NewEvent[T any](name string) Event[T] {
	return Event[T]{Name: name}
}

// Connect subscribes fn to the event on w. Payloads that do not convert to
// T are dropped with a warning.
func (e Event[T]) Connect(w Wrapper, fn func(T)) (ListenerID, bool) {
	o := w.object()
	if o.b == nil {
		return 0, false
	}
	b := o.b
	return o.Connect(e.Name, func(v any) {
		t, err := payloadAs[T](b, v)
		if err != nil {
			b.log.Warn("event payload does not match listener type",
				zap.String("event", e.Name),
				zap.Error(err))
			return
		}
		fn(t)
	})
}

// Disconnect removes a listener added with Connect.
func (e Event[T]) Disconnect(w Wrapper, id ListenerID) bool {
	return w.object().Disconnect(id)
}

func payloadAs[T any](b *Bridge, v any) (T, error) {
	var zero T
	if v == nil {
		return zero, nil
	}
	if t, ok := v.(T); ok {
		return t, nil
	}
	target := reflect.TypeFor[T]()
	if w, ok := v.(Wrapper); ok {
		nw, err := b.Wrap(w.object().Ptr(), marshal.Borrowed, target)
		if err != nil {
			return zero, err
		}
		if t, ok := nw.(T); ok {
			return t, nil
		}
		return zero, errors.TypeMismatch(errors.PhaseEvent, nil, target.String(), reflect.TypeOf(nw).String())
	}
	rv := reflect.ValueOf(v)
	// int64 converts to string as a rune, which is never what a listener wants
	if target.Kind() != reflect.String && rv.CanConvert(target) {
		return rv.Convert(target).Interface().(T), nil
	}
	return zero, errors.TypeMismatch(errors.PhaseEvent, nil, target.String(), rv.Type().String())
}

// Create constructs a new native instance wrapped by a fresh *T.
func Create[T any, PT interface {
	*T
	Wrapper
}](b *Bridge) (PT, error) {
	w := PT(new(T))
	if err := b.Construct(w); err != nil {
		return nil, err
	}
	return w, nil
}

// As returns a borrowed view of w typed as T. The view must not outlive w.
func As[T Wrapper](w Wrapper) (T, error) {
	var zero T
	if t, ok := w.(T); ok {
		return t, nil
	}
	o := w.object()
	if o.b == nil {
		return zero, errors.NotInitialized(errors.PhaseLift, "object")
	}
	target := reflect.TypeFor[T]()
	nw, err := o.b.Wrap(o.Ptr(), marshal.Borrowed, target)
	if err != nil {
		return zero, err
	}
	t, ok := nw.(T)
	if !ok {
		return zero, errors.TypeMismatch(errors.PhaseLift, nil, target.String(), reflect.TypeOf(nw).String())
	}
	return t, nil
}

// Call1 invokes an operation with a single result and returns it as T.
func Call1[T any](w Wrapper, name string, args ...any) (T, error) {
	o := w.object()
	op, err := o.op(name)
	if err != nil {
		var zero T
		return zero, err
	}
	return first[T](o.callOp(op, args, []reflect.Type{reflect.TypeFor[T]()}))
}

// Static1 invokes a static operation of a generated class and returns its
// result as T.
func Static1[T any](b *Bridge, className, name string, args ...any) (T, error) {
	var zero T
	d, ok := b.reg.Generated(className)
	if !ok {
		return zero, errors.NotFound(errors.PhaseDispatch, "class", className)
	}
	op, _, ok := d.Op(name)
	if !ok {
		return zero, errors.NotFound(errors.PhaseDispatch, "operation", fmt.Sprintf("%s.%s", className, name))
	}
	return first[T](b.call(0, op, args, 0, []reflect.Type{reflect.TypeFor[T]()}))
}

func first[T any](res []any, err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	if len(res) == 0 {
		return zero, errors.InvalidInput(errors.PhaseDispatch, "operation returns nothing")
	}
	if res[0] == nil {
		return zero, nil
	}
	t, ok := res[0].(T)
	if !ok {
		return zero, errors.TypeMismatch(errors.PhaseLift, nil, reflect.TypeFor[T]().String(), reflect.TypeOf(res[0]).String())
	}
	return t, nil
}
