// Package class maps Go wrapper types onto native classes.
//
// Generated wrapper types are bound to their native class once, from binding
// metadata (Def). Any other Go struct that embeds a registered type is a
// managed subtype: the first time it is registered the registry derives a
// native subclass whose dispatch table is sparse. Only the virtual
// operations the Go type declares itself get a trampoline; every other slot
// keeps the parent's native implementation, so code that overrides nothing
// costs nothing at dispatch time.
//
// Methods reached through an embedded field are inherited, not overridden:
//
//	type Fancy struct{ sim.Button }
//	func (f *Fancy) Measure(o uint32) int32 { ... }   // entry for measure
//
//	type Fancier struct{ Fancy }                      // no entries, inherits Fancy's class slot
//
// Registration is lazy and idempotent. Concurrent first use of a type
// converges on one descriptor and one native class.
package class
