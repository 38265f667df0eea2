package sim

import (
	"github.com/wippyai/objbridge/bridge"
)

// Container wraps SimContainer. It holds a reference on every child.
type Container struct {
	Widget
}

func (c *Container) Add(child bridge.Wrapper) error {
	_, err := c.Call("Add", child)
	return err
}

func (c *Container) Remove(child bridge.Wrapper) (bool, error) {
	return bridge.Call1[bool](c, "Remove", child)
}

// Child returns a borrowed view of the child at index, or nil.
func (c *Container) Child(index uint32) (bridge.Wrapper, error) {
	return bridge.Call1[bridge.Wrapper](c, "GetChild", index)
}

func (c *Container) NChildren() (uint32, error) {
	return bridge.Call1[uint32](c, "NChildren")
}
