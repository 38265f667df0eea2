// Package bridge exposes native objects as Go values and lets Go types
// subclass native classes.
//
// Generated wrapper types embed Object (directly or through another
// generated type) and are bound with Bridge.RegisterGenerated. Go types
// that embed a generated wrapper and implement some of its virtual
// operations are managed subtypes: Register derives a native class whose
// vtable routes exactly those operations into Go.
//
//	type Tall struct{ sim.Widget }
//
//	func (t *Tall) PreferredSize() (int32, int32) { return 10, 500 }
//
//	w, err := bridge.Create[Tall](b)
//
// Ownership follows the marshal package: a wrapper created from an owned
// pointer holds one native reference and releases it on Dispose or, as a
// backstop, when it becomes unreachable. Borrowed wrappers are views.
//
// A panic or error inside an override cannot cross the native frame. The
// trampoline writes zero results, logs the failure and records it; the
// next outbound call returns it, and CheckUnhandled drains it directly.
//
// Events are refcounted per object and event: the first Connect registers
// one native callback, later ones only append listeners, and the native
// registration is removed when the last listener disconnects.
package bridge
