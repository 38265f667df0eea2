package bridge

import (
	"fmt"

	"github.com/wippyai/objbridge/errors"
)

// UnhandledError reports a Go override that panicked or returned an error
// while native code was calling it. The native caller saw zero results; the
// failure surfaces once, at the next call from Go into native code.
type UnhandledError struct {
	Err    error
	Panic  any
	Op     string
	Method string
	Type   string
	Stack  []byte
}

func (e *UnhandledError) Error() string {
	if e.Panic != nil {
		return fmt.Sprintf("unhandled panic in %s.%s (%s): %v", e.Type, e.Method, e.Op, e.Panic)
	}
	return fmt.Sprintf("unhandled error in %s.%s (%s): %v", e.Type, e.Method, e.Op, e.Err)
}

func (e *UnhandledError) Unwrap() error {
	return e.Err
}

// Is matches the structured unhandled error kind.
func (e *UnhandledError) Is(target error) bool {
	t, ok := target.(*errors.Error)
	return ok && t.Kind == errors.KindUnhandled
}

func panicError(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return fmt.Errorf("%v", r)
}

// CheckUnhandled returns and clears the pending unhandled failure.
func (b *Bridge) CheckUnhandled() error {
	if ue := b.unhandled.Swap(nil); ue != nil {
		return ue
	}
	return nil
}

// record keeps the first failure until it is observed.
func (b *Bridge) record(ue *UnhandledError) {
	b.unhandled.CompareAndSwap(nil, ue)
}
