// Package native defines the contract between the bridge and a C-ABI object
// runtime: heap access, reference counting, the class hierarchy with its
// virtual dispatch and super calls, and the event descriptor table.
//
// All values cross as flat 64-bit slots. Booleans are 0 or 1, integers are
// sign or zero extended, floats carry their IEEE bits, and strings, structs
// and objects are pointers into native memory.
//
// Two implementations ship with the module:
//
//   - native/simrt: an in-process runtime over a wazero linear memory with
//     allocation tracking, used by tests and the bridgectl tool.
//   - native/gobject: GLib's GObject type system loaded with purego.
package native
