// Package marshal converts values between Go and a native C ABI.
//
// Every value crosses as a 64-bit slot. Strings, records and out parameters
// live in native memory and are referenced by pointer. Each parameter
// position carries an Ownership tag supplied by binding metadata:
//
//   - Borrowed: the sender keeps ownership. Lowering a borrowed string or
//     record allocates a copy that is added to a Scratch list and freed by
//     the caller after the call. Lifting a borrowed value only copies it.
//   - Owned: ownership moves with the value. Lowered copies are released
//     by the receiver; lifted values are copied and then freed here.
//     Object references lowered as owned gain one native reference for the
//     receiver to consume.
//
// Records use the native C layout computed by marshal/internal/layout, never
// the Go in-memory shape. Go structs are matched to record fields by `wit`
// tag, case-insensitive name or snake/kebab case; map[string]any is accepted
// and produced when no struct type is known.
//
// Ownership is not inferred: passing the wrong tag leaks or double-frees
// native memory exactly as a wrong annotation would in C.
package marshal
