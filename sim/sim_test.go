package sim

import (
	"testing"

	"github.com/wippyai/objbridge/bridge"
	"github.com/wippyai/objbridge/native/simrt"
)

func newBridge(t *testing.T) (*simrt.Runtime, *bridge.Bridge) {
	t.Helper()
	rt, err := simrt.New()
	if err != nil {
		t.Fatalf("simrt.New: %v", err)
	}
	t.Cleanup(func() { _ = rt.Close() })
	if _, err := simrt.InstallToolkit(rt); err != nil {
		t.Fatalf("InstallToolkit: %v", err)
	}
	b := bridge.New(rt)
	if err := Bind(b); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	return rt, b
}

func TestBind(t *testing.T) {
	_, b := newBridge(t)

	for _, name := range []string{"Object", "Widget", "Container", "Button"} {
		d, ok := b.Registry().Generated(name)
		if !ok {
			t.Fatalf("%s not registered", name)
		}
		if d.Managed() || d.Class == 0 {
			t.Errorf("%s: descriptor %+v", name, d)
		}
	}

	d, _ := b.Registry().Generated("Button")
	if len(d.MRO) != 3 || d.MRO[1].Name != "SimWidget" || d.MRO[2].Name != "SimObject" {
		t.Errorf("Button MRO = %v", d.MRO)
	}

	if err := Bind(b); err != nil {
		t.Errorf("second Bind: %v", err)
	}
}

func TestBind_MissingToolkit(t *testing.T) {
	rt, err := simrt.New()
	if err != nil {
		t.Fatalf("simrt.New: %v", err)
	}
	defer rt.Close()
	if err := Bind(bridge.New(rt)); err == nil {
		t.Error("Bind should fail when the native classes are missing")
	}
}

func TestContainerChildren(t *testing.T) {
	rt, b := newBridge(t)

	box, err := bridge.Create[Container](b)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	okBtn, _ := NewButtonWithLabel(b, "ok")
	cancel, _ := NewButtonWithLabel(b, "cancel")
	for _, btn := range []*Button{okBtn, cancel} {
		if err := box.Add(btn); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	if n, err := box.NChildren(); err != nil || n != 2 {
		t.Errorf("NChildren = %d, %v", n, err)
	}
	parent, err := okBtn.Parent()
	if err != nil || parent == nil {
		t.Fatalf("Parent = %v, %v", parent, err)
	}
	if _, isBox := parent.(*Container); !isBox {
		t.Errorf("parent is %T", parent)
	}

	removed, err := box.Remove(cancel)
	if err != nil || !removed {
		t.Errorf("Remove = %v, %v", removed, err)
	}
	if again, _ := box.Remove(cancel); again {
		t.Error("removed twice")
	}
	if child, _ := box.Child(5); child != nil {
		t.Errorf("Child(5) = %v", child)
	}

	okBtn.Dispose()
	cancel.Dispose()
	box.Dispose()
	if s := rt.Stats(); s.LiveObjects != 0 || s.LiveAllocs != 0 || s.InvalidRefs != 0 {
		t.Errorf("stats = %+v", s)
	}
}

func TestButtonState(t *testing.T) {
	_, b := newBridge(t)
	btn, err := NewButtonWithLabel(b, "toggle")
	if err != nil {
		t.Fatalf("NewButtonWithLabel: %v", err)
	}
	defer btn.Dispose()

	if err := PropActive.Set(btn, true); err != nil {
		t.Fatalf("Set active: %v", err)
	}
	if on, _ := btn.Active(); !on {
		t.Error("button not active")
	}
	_ = btn.Click()
	_ = btn.Click()
	if n, _ := btn.Clicks(); n != 2 {
		t.Errorf("Clicks = %d", n)
	}
	if got, _ := btn.Description(); got != "SimButton(toggle)" {
		t.Errorf("Description = %q", got)
	}
	if m, _ := btn.Measurement(Horizontal); m != 0 {
		t.Errorf("Measurement = %d", m)
	}
}
