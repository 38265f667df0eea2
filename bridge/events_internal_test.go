package bridge

import (
	stderrors "errors"
	"math"
	"testing"

	"github.com/wippyai/objbridge/class"
	"github.com/wippyai/objbridge/errors"
	"github.com/wippyai/objbridge/native/simrt"
)

func newTestBridge(t *testing.T) *Bridge {
	t.Helper()
	rt, err := simrt.New()
	if err != nil {
		t.Fatalf("simrt.New: %v", err)
	}
	t.Cleanup(func() { _ = rt.Close() })
	return New(rt)
}

func TestDecode(t *testing.T) {
	b := newTestBridge(t)
	minus := int64(-7)

	tests := []struct {
		name    string
		shape   class.Shape
		payload []uint64
		want    any
	}{
		{"none ignores payload", class.ShapeNone, []uint64{9}, nil},
		{"none without payload", class.ShapeNone, nil, nil},
		{"bool true", class.ShapeBool, []uint64{1}, true},
		{"bool uses low byte", class.ShapeBool, []uint64{0x100}, false},
		{"int", class.ShapeInt, []uint64{320}, int64(320)},
		{"negative int", class.ShapeInt, []uint64{uint64(minus)}, int64(-7)},
		{"float", class.ShapeFloat, []uint64{math.Float64bits(0.5)}, 0.5},
		{"null object", class.ShapeObject, []uint64{0}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := b.decode(tt.shape, tt.payload)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %#v, want %#v", got, tt.want)
			}
		})
	}

	if _, err := b.decode(class.ShapeInt, nil); err == nil {
		t.Error("missing payload should fail")
	}
}

func TestPayloadAs(t *testing.T) {
	b := newTestBridge(t)

	if v, err := payloadAs[int32](b, int64(42)); err != nil || v != 42 {
		t.Errorf("int32 = %v, %v", v, err)
	}
	if v, err := payloadAs[float32](b, 0.5); err != nil || v != 0.5 {
		t.Errorf("float32 = %v, %v", v, err)
	}
	if v, err := payloadAs[bool](b, true); err != nil || !v {
		t.Errorf("bool = %v, %v", v, err)
	}
	if v, err := payloadAs[struct{}](b, nil); err != nil || v != (struct{}{}) {
		t.Errorf("struct{} = %v, %v", v, err)
	}
	if v, err := payloadAs[any](b, int64(1)); err != nil || v != int64(1) {
		t.Errorf("any = %v, %v", v, err)
	}
	if _, err := payloadAs[string](b, int64(65)); err == nil {
		t.Error("int payload converted to string")
	}
	if _, err := payloadAs[bool](b, int64(1)); err == nil {
		t.Error("int payload converted to bool")
	}
}

func TestUnhandledError(t *testing.T) {
	b := newTestBridge(t)

	first := &UnhandledError{Err: stderrors.New("first"), Op: "op_a", Method: "A", Type: "*pkg.T"}
	second := &UnhandledError{Panic: "second", Op: "op_b", Method: "B", Type: "*pkg.T"}
	b.record(first)
	b.record(second)

	err := b.CheckUnhandled()
	if err != first {
		t.Fatalf("CheckUnhandled = %v, want the first failure", err)
	}
	if b.CheckUnhandled() != nil {
		t.Error("failure observed twice")
	}

	if !stderrors.Is(err, errors.New(errors.PhaseDispatch, errors.KindUnhandled).Build()) {
		t.Error("UnhandledError should match the unhandled kind")
	}
	if stderrors.Is(err, errors.New(errors.PhaseDispatch, errors.KindNotFound).Build()) {
		t.Error("UnhandledError matched another kind")
	}
	if stderrors.Unwrap(err).Error() != "first" {
		t.Errorf("Unwrap = %v", stderrors.Unwrap(err))
	}
	if got := second.Error(); got != "unhandled panic in *pkg.T.B (op_b): second" {
		t.Errorf("Error = %q", got)
	}
}
