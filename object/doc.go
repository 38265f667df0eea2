// Package object manages native handle lifetime and identity.
//
// # Handles
//
// A Handle wraps one raw native pointer:
//
//	h := object.Own(refs, ptr)    // holds one native reference
//	v := object.View(ptr)         // borrowed: no reference traffic
//
//	h.Release()                   // unrefs once; later calls are no-ops
//
// Release is guarded by a single atomically swapped flag. A runtime cleanup
// attached with Track uses the same flag, so an explicit Release followed by
// garbage collection of the owner never releases twice, and a wrapper that
// is never released explicitly still gives its reference back.
//
// Identity follows the raw pointer: two handles over the same native object
// are Equal and share a Hash, regardless of which one owns a reference.
//
// # Tables
//
// Table maps small integer IDs to Go values. IDs are what native code
// stores as per-instance private data; Go pointers never cross. ID 0 is
// reserved and always invalid, freed IDs are reused.
package object
