package sim

import (
	"github.com/wippyai/objbridge/bridge"
)

// Button wraps SimButton.
type Button struct {
	Widget
}

// NewButtonWithLabel creates a button through the native constructor. The
// returned wrapper owns the new reference.
func NewButtonWithLabel(b *bridge.Bridge, label string) (*Button, error) {
	return bridge.Static1[*Button](b, "Button", "NewWithLabel", label)
}

// Click runs the clicked virtual and emits "clicked".
func (b *Button) Click() error {
	_, err := b.Call("Click")
	return err
}

func (b *Button) Clicks() (uint32, error) {
	return bridge.Call1[uint32](b, "GetClicks")
}

func (b *Button) SetActive(v bool) error {
	_, err := b.Call("SetActive", v)
	return err
}

func (b *Button) Active() (bool, error) {
	return bridge.Call1[bool](b, "GetActive")
}
