package sim

import (
	"github.com/wippyai/objbridge/bridge"
)

// Widget wraps SimWidget.
type Widget struct {
	Object
}

func (w *Widget) SetSize(width, height int32) error {
	_, err := w.Call("SetSize", width, height)
	return err
}

func (w *Widget) Width() (int32, error) {
	return bridge.Call1[int32](w, "GetWidth")
}

func (w *Widget) Height() (int32, error) {
	return bridge.Call1[int32](w, "GetHeight")
}

// Label returns a copy of the widget's label.
func (w *Widget) Label() (string, error) {
	return bridge.Call1[string](w, "GetLabel")
}

func (w *Widget) SetLabel(label string) error {
	_, err := w.Call("SetLabel", label)
	return err
}

// DupLabel asks the widget for a label copy the caller owns.
func (w *Widget) DupLabel() (string, error) {
	return bridge.Call1[string](w, "DupLabel")
}

// TakeLabel hands the widget a label it takes ownership of.
func (w *Widget) TakeLabel(label string) error {
	_, err := w.Call("TakeLabel", label)
	return err
}

func (w *Widget) Visible() (bool, error) {
	return bridge.Call1[bool](w, "GetVisible")
}

func (w *Widget) SetVisible(v bool) error {
	_, err := w.Call("SetVisible", v)
	return err
}

func (w *Widget) Opacity() (float64, error) {
	return bridge.Call1[float64](w, "GetOpacity")
}

func (w *Widget) SetOpacity(v float64) error {
	_, err := w.Call("SetOpacity", v)
	return err
}

// Bounds returns the widget rectangle through an out parameter.
func (w *Widget) Bounds() (Rect, error) {
	return bridge.Call1[Rect](w, "GetBounds")
}

func (w *Widget) SetBounds(r Rect) error {
	_, err := w.Call("SetBounds", r)
	return err
}

// QueueResize reapplies the preferred size.
func (w *Widget) QueueResize() error {
	_, err := w.Call("QueueResize")
	return err
}

// Parent returns a borrowed view of the containing widget, or nil.
func (w *Widget) Parent() (bridge.Wrapper, error) {
	return bridge.Call1[bridge.Wrapper](w, "GetParent")
}

// Measurement runs the measure virtual.
func (w *Widget) Measurement(o Orientation) (int32, error) {
	return bridge.Call1[int32](w, "Measure", o)
}

// Allocate runs the size_allocate virtual.
func (w *Widget) Allocate(width, height int32) error {
	_, err := w.Call("SizeAllocate", width, height)
	return err
}

// Description runs the describe virtual.
func (w *Widget) Description() (string, error) {
	return bridge.Call1[string](w, "Describe")
}

// Preferred runs the get_preferred_size virtual.
func (w *Widget) Preferred() (int32, int32, error) {
	res, err := w.Call("PreferredSize")
	if err != nil {
		return 0, 0, err
	}
	return res[0].(int32), res[1].(int32), nil
}

// Snap runs the snapshot virtual.
func (w *Widget) Snap(r Rect) error {
	_, err := w.Call("Snapshot", r)
	return err
}
