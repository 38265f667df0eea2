package simrt

import (
	"testing"

	"github.com/wippyai/objbridge/native"
)

func newToolkit(t *testing.T) (*Runtime, *Toolkit) {
	t.Helper()
	r := newRuntime(t)
	tk, err := InstallToolkit(r)
	if err != nil {
		t.Fatalf("InstallToolkit: %v", err)
	}
	return r, tk
}

func TestToolkit_SizeChanged(t *testing.T) {
	r, tk := newToolkit(t)
	w, _ := tk.New(tk.Widget)
	defer r.Unref(w)

	var got []int32
	_, err := r.Connect(w, tk.Event(EventSizeChanged), func(obj native.Ptr, payload []uint64, data uintptr) {
		got = append(got, s32(payload[0]))
	}, 0)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}

	r.Call("sim_widget_set_size", &native.Frame{Self: w, Params: []uint64{fromS32(320), fromS32(200)}})
	r.Call("sim_widget_set_size", &native.Frame{Self: w, Params: []uint64{fromS32(320), fromS32(200)}})

	if len(got) != 1 || got[0] != 320 {
		t.Errorf("size-changed payloads = %v, want [320]", got)
	}
	if aw, ah := tk.Allocation(w); aw != 320 || ah != 200 {
		t.Errorf("allocation = %dx%d", aw, ah)
	}
}

func TestToolkit_Labels(t *testing.T) {
	r, tk := newToolkit(t)

	label, _ := r.AllocCString("OK")
	f := &native.Frame{Params: []uint64{uint64(label)}, Results: make([]uint64, 1)}
	if !r.Call("sim_button_new_with_label", f) {
		t.Fatal("sim_button_new_with_label not found")
	}
	r.Free(label)

	b := native.Ptr(f.Results[0])
	if !r.IsA(r.ClassOf(b), tk.Widget) {
		t.Fatal("button is not a widget")
	}
	if tk.Label(b) != "OK" {
		t.Errorf("label = %q", tk.Label(b))
	}

	dup := &native.Frame{Self: b, Results: make([]uint64, 1)}
	r.Call("sim_widget_dup_label", dup)
	s, _ := r.ReadCString(native.Ptr(dup.Results[0]))
	if s != "OK" {
		t.Errorf("dup = %q", s)
	}
	r.Free(native.Ptr(dup.Results[0]))

	owned, _ := r.AllocCString("Cancel")
	r.Call("sim_widget_take_label", &native.Frame{Self: b, Params: []uint64{uint64(owned)}})
	if tk.Label(b) != "Cancel" {
		t.Errorf("label = %q", tk.Label(b))
	}

	r.Unref(b)
	if s := r.Stats(); s.LiveAllocs != 0 || s.InvalidFrees != 0 {
		t.Errorf("heap not clean: %+v", s)
	}
}

func TestToolkit_ContainerOwnsChildren(t *testing.T) {
	r, tk := newToolkit(t)
	box, _ := tk.New(tk.Container)
	child, _ := tk.New(tk.Button)

	var added []native.Ptr
	_, _ = r.Connect(box, tk.Event(EventChildAdded), func(obj native.Ptr, payload []uint64, data uintptr) {
		added = append(added, native.Ptr(payload[0]))
	}, 0)

	r.Call("sim_container_add", &native.Frame{Self: box, Params: []uint64{uint64(child)}})
	if r.RefCount(child) != 2 {
		t.Errorf("child refs = %d, want 2", r.RefCount(child))
	}
	if len(added) != 1 || added[0] != child {
		t.Errorf("child-added = %v", added)
	}

	r.Unref(child)
	if !r.Alive(child) {
		t.Fatal("container should keep child alive")
	}
	r.Unref(box)
	if r.Alive(child) {
		t.Error("child should die with container")
	}
	if s := r.Stats(); s.LiveObjects != 0 || s.LiveAllocs != 0 {
		t.Errorf("leak: %+v", s)
	}
}

func TestToolkit_QueueResizeUsesVTable(t *testing.T) {
	r, tk := newToolkit(t)

	sub, err := r.DeriveClass(tk.Widget, "Tall", map[string]native.Func{
		"sim_widget_get_preferred_size": func(f *native.Frame) {
			_ = tk.writeS32(native.Ptr(f.Params[0]), 10)
			_ = tk.writeS32(native.Ptr(f.Params[1]), 500)
		},
	})
	if err != nil {
		t.Fatalf("DeriveClass: %v", err)
	}

	w, _ := tk.New(sub)
	defer r.Unref(w)

	r.Call("sim_widget_queue_resize", &native.Frame{Self: w})
	if gw, gh := tk.Size(w); gw != 10 || gh != 500 {
		t.Errorf("size = %dx%d, want 10x500", gw, gh)
	}
}
