// Package sim holds generated-style wrappers for the simrt toolkit. It is
// what a binding generator would emit for the classes in
// simrt.ToolkitBindings, and the reference for hand-written bindings.
//
// Virtual operations are reached through methods whose names differ from
// the operation names (Measurement for measure, Preferred for
// get_preferred_size), so Go subtypes can override Measure, SizeAllocate,
// Describe, PreferredSize, Snapshot and Clicked.
package sim

import (
	"sync"

	"github.com/wippyai/objbridge/binding"
	"github.com/wippyai/objbridge/bridge"
	"github.com/wippyai/objbridge/class"
	"github.com/wippyai/objbridge/native/simrt"
)

// Orientation selects the measured axis.
type Orientation uint32

const (
	Horizontal Orientation = iota
	Vertical
)

// Rect mirrors the native SimRect layout.
type Rect struct {
	X      int32
	Y      int32
	Width  int32
	Height int32
}

var (
	PropLabel   = bridge.NewProperty[string]("label")
	PropVisible = bridge.NewProperty[bool]("visible")
	PropOpacity = bridge.NewProperty[float64]("opacity")
	PropWidth   = bridge.NewProperty[int32]("width")
	PropActive  = bridge.NewProperty[bool]("active")

	SizeChanged       = bridge.NewEvent[int32](simrt.EventSizeChanged)
	VisibilityChanged = bridge.NewEvent[bool](simrt.EventVisibilityChanged)
	OpacityChanged    = bridge.NewEvent[float64](simrt.EventOpacityChanged)
	ChildAdded        = bridge.NewEvent[*Widget](simrt.EventChildAdded)
	Clicked           = bridge.NewEvent[struct{}](simrt.EventClicked)
	Toggled           = bridge.NewEvent[bool](simrt.EventToggled)
)

var (
	defsOnce sync.Once
	defs     []*class.Def
	defsErr  error
)

// Defs returns the toolkit class definitions.
func Defs() ([]*class.Def, error) {
	defsOnce.Do(func() {
		defs, defsErr = binding.ParseDefs(simrt.ToolkitBindings, binding.FormatTOML)
	})
	return defs, defsErr
}

// Bind registers the toolkit wrappers with b.
func Bind(b *bridge.Bridge) error {
	defs, err := Defs()
	if err != nil {
		return err
	}
	return b.Bind(defs, map[string]bridge.Wrapper{
		"Object":    (*Object)(nil),
		"Widget":    (*Widget)(nil),
		"Container": (*Container)(nil),
		"Button":    (*Button)(nil),
	})
}

// Object wraps SimObject.
type Object struct {
	bridge.Object
}
