// Package objbridge connects Go to native, reference-counted object systems
// with single-inheritance classes, virtual methods and named events.
//
// Go code holds native objects through wrappers, subclasses native classes
// with ordinary Go methods that the native side dispatches to, and listens
// to native events with Go closures.
//
// # Architecture Overview
//
// The module is organized into several packages with distinct responsibilities:
//
//	objbridge/
//	├── bridge/          Wrappers, construction and dispose, trampolines, events
//	├── class/           Class registry and sparse override tables
//	├── marshal/         Go <-> native value conversion with ownership tags
//	├── object/          Owning and borrowed handles, id tables
//	├── binding/         Binding metadata loader (TOML, YAML, JSON + schema)
//	├── native/          The runtime contract the bridge is written against
//	│   ├── simrt/       In-process runtime with allocation tracking
//	│   └── gobject/     GObject over purego
//	├── sim/             Wrappers for the simrt toolkit classes
//	├── errors/          Structured error types
//	└── cmd/bridgectl/   Binding inspection and demo tool
//
// # Quick Start
//
// Bind the toolkit and subclass a widget:
//
//	rt, _ := simrt.New()
//	simrt.InstallToolkit(rt)
//	b := bridge.New(rt)
//	sim.Bind(b)
//
//	type Tall struct{ sim.Widget }
//	func (t *Tall) PreferredSize() (int32, int32) { return 10, 500 }
//
//	w, _ := bridge.Create[Tall](b)
//	defer w.Dispose()
//	w.QueueResize() // native layout calls Tall.PreferredSize
//
// # Ownership
//
// Every value that crosses the boundary is tagged owned or borrowed. Owned
// values are released exactly once by their receiver; borrowed values are
// never released by the receiver and must not be kept past the call.
//
// # Thread Safety
//
// Bridge, registry and event state are safe for concurrent use. A single
// wrapper may be used from several goroutines; the native runtime decides
// whether concurrent calls on one object are allowed.
package objbridge
