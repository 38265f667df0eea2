package bridge_test

import (
	"errors"
	"fmt"
	"reflect"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/wippyai/objbridge/bridge"
	"github.com/wippyai/objbridge/native"
	"github.com/wippyai/objbridge/native/simrt"
	"github.com/wippyai/objbridge/sim"
)

type env struct {
	rt *simrt.Runtime
	tk *simrt.Toolkit
	b  *bridge.Bridge
}

func newEnv(t *testing.T) *env {
	t.Helper()
	rt, err := simrt.New()
	if err != nil {
		t.Fatalf("simrt.New: %v", err)
	}
	t.Cleanup(func() { _ = rt.Close() })
	tk, err := simrt.InstallToolkit(rt)
	if err != nil {
		t.Fatalf("InstallToolkit: %v", err)
	}
	b := bridge.New(rt)
	if err := sim.Bind(b); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	return &env{rt: rt, tk: tk, b: b}
}

func (e *env) assertClean(t *testing.T) {
	t.Helper()
	s := e.rt.Stats()
	if s.LiveObjects != 0 || s.LiveAllocs != 0 {
		t.Errorf("leak: %d objects, %d allocations live", s.LiveObjects, s.LiveAllocs)
	}
	if s.InvalidFrees != 0 || s.InvalidRefs != 0 {
		t.Errorf("double release: %d frees, %d refs", s.InvalidFrees, s.InvalidRefs)
	}
}

func newWidget(t *testing.T, e *env) *sim.Widget {
	t.Helper()
	w, err := bridge.Create[sim.Widget](e.b)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return w
}

// tall reports a fixed preferred size.
type tall struct {
	sim.Widget
}

func (t *tall) PreferredSize() (int32, int32) { return 10, 500 }

// faulty panics in measure and fails in describe.
type faulty struct {
	sim.Widget
}

func (f *faulty) Measure(o sim.Orientation) int32 { panic("boom") }

func (f *faulty) Describe() (string, error) { return "", fmt.Errorf("no description") }

// framed wraps the native description in brackets.
type framed struct {
	sim.Widget
}

func (f *framed) Describe() string {
	res, err := f.CallSuper("Describe")
	if err != nil {
		panic(err)
	}
	return "[" + res[0].(string) + "]"
}

// braced wraps whatever framed produces in braces.
type braced struct {
	framed
}

func (b *braced) Describe() string {
	res, err := b.CallSuper("Describe")
	if err != nil {
		panic(err)
	}
	return "{" + res[0].(string) + "}"
}

// counter records clicks before chaining to the native handler.
type counter struct {
	sim.Button
	n int
}

func (c *counter) Clicked() {
	c.n++
	if _, err := c.CallSuper("Clicked"); err != nil {
		panic(err)
	}
}

func TestConstructDispose(t *testing.T) {
	e := newEnv(t)
	w := newWidget(t, e)

	if err := w.SetSize(320, 200); err != nil {
		t.Fatalf("SetSize: %v", err)
	}
	got, err := w.Width()
	if err != nil || got != 320 {
		t.Errorf("Width = %d, %v; want 320", got, err)
	}
	if !w.Owning() || w.Disposed() {
		t.Error("fresh wrapper should own its instance")
	}

	w.Dispose()
	w.Dispose()
	if !w.Disposed() {
		t.Error("Disposed = false")
	}
	if s := e.rt.Stats(); s.Unrefs != 1 {
		t.Errorf("Unrefs = %d, want 1", s.Unrefs)
	}
	e.assertClean(t)
}

func TestEqualHash(t *testing.T) {
	e := newEnv(t)
	box, err := bridge.Create[sim.Container](e.b)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	btn, err := sim.NewButtonWithLabel(e.b, "OK")
	if err != nil {
		t.Fatalf("NewButtonWithLabel: %v", err)
	}
	if err := box.Add(btn); err != nil {
		t.Fatalf("Add: %v", err)
	}

	child, err := box.Child(0)
	if err != nil {
		t.Fatalf("Child: %v", err)
	}
	view, ok := child.(*sim.Button)
	if !ok {
		t.Fatalf("child is %T, want *sim.Button", child)
	}
	if view == btn {
		t.Fatal("expected a distinct wrapper for the borrowed child")
	}
	if !view.Equal(btn) || !btn.Equal(view) {
		t.Error("wrappers of one object should be equal")
	}
	if view.Hash() != btn.Hash() {
		t.Errorf("hash %x != %x", view.Hash(), btn.Hash())
	}
	if view.Owning() {
		t.Error("borrowed child should be a view")
	}
	if view.Equal(box) {
		t.Error("different objects compare equal")
	}
	if want := fmt.Sprintf("SimButton@%#x", uint64(btn.Ptr())); view.String() != want || btn.String() != want {
		t.Errorf("String = %q / %q, want %q", view.String(), btn.String(), want)
	}

	label, err := view.Label()
	if err != nil || label != "OK" {
		t.Errorf("Label = %q, %v", label, err)
	}

	view.Dispose()
	btn.Dispose()
	box.Dispose()
	e.assertClean(t)
}

func TestCallErrors(t *testing.T) {
	e := newEnv(t)
	w := newWidget(t, e)
	defer w.Dispose()

	if _, err := w.Call("Fly"); err == nil {
		t.Error("unknown operation should fail")
	}
	if _, err := w.Call("SetSize", int32(1)); err == nil {
		t.Error("wrong arity should fail")
	}
	if _, err := w.Call("SetSize", "wide", int32(1)); err == nil {
		t.Error("wrong argument type should fail")
	}

	var unbound sim.Widget
	if _, err := unbound.Width(); err == nil {
		t.Error("unbound wrapper should fail")
	}
	if err := e.b.Construct(w); err == nil {
		t.Error("constructing a bound wrapper should fail")
	}
}

func TestProperties(t *testing.T) {
	e := newEnv(t)
	w := newWidget(t, e)
	defer w.Dispose()

	if err := sim.PropLabel.Set(w, "title"); err != nil {
		t.Fatalf("Set label: %v", err)
	}
	if got, err := sim.PropLabel.Get(w); err != nil || got != "title" {
		t.Errorf("label = %q, %v", got, err)
	}

	if got, err := sim.PropOpacity.Get(w); err != nil || got != 1 {
		t.Errorf("opacity = %v, %v", got, err)
	}
	if got, err := sim.PropVisible.Get(w); err != nil || !got {
		t.Errorf("visible = %v, %v", got, err)
	}

	_ = w.SetSize(7, 3)
	if got, err := sim.PropWidth.Get(w); err != nil || got != 7 {
		t.Errorf("width = %d, %v", got, err)
	}
	if err := sim.PropWidth.Set(w, 9); err == nil {
		t.Error("read-only property accepted a write")
	}

	v, err := w.Get("label")
	if err != nil || v != "title" {
		t.Errorf("Get = %v, %v", v, err)
	}
	if _, err := w.Get("color"); err == nil {
		t.Error("unknown property should fail")
	}
}

func TestOwnershipRoundTrips(t *testing.T) {
	e := newEnv(t)
	w := newWidget(t, e)

	if err := w.SetLabel("borrowed"); err != nil {
		t.Fatalf("SetLabel: %v", err)
	}
	if got, _ := w.Label(); got != "borrowed" {
		t.Errorf("Label = %q", got)
	}
	if err := w.TakeLabel("owned"); err != nil {
		t.Fatalf("TakeLabel: %v", err)
	}
	if got, _ := w.DupLabel(); got != "owned" {
		t.Errorf("DupLabel = %q", got)
	}
	if got := e.tk.Label(w.Ptr()); got != "owned" {
		t.Errorf("native label = %q", got)
	}

	if err := w.SetBounds(sim.Rect{Width: 64, Height: 48}); err != nil {
		t.Fatalf("SetBounds: %v", err)
	}
	r, err := w.Bounds()
	if err != nil {
		t.Fatalf("Bounds: %v", err)
	}
	if r != (sim.Rect{Width: 64, Height: 48}) {
		t.Errorf("Bounds = %+v", r)
	}
	if err := w.Snap(sim.Rect{X: 1, Y: 2, Width: 3, Height: 4}); err != nil {
		t.Fatalf("Snap: %v", err)
	}
	if got := e.tk.LastSnapshot(w.Ptr()); got != [4]int32{1, 2, 3, 4} {
		t.Errorf("snapshot = %v", got)
	}

	desc, err := w.Description()
	if err != nil || desc != "SimWidget(owned)" {
		t.Errorf("Description = %q, %v", desc, err)
	}

	btn, err := sim.NewButtonWithLabel(e.b, "go")
	if err != nil {
		t.Fatalf("NewButtonWithLabel: %v", err)
	}
	if e.rt.RefCount(btn.Ptr()) != 1 {
		t.Errorf("constructor result refs = %d, want 1", e.rt.RefCount(btn.Ptr()))
	}

	btn.Dispose()
	w.Dispose()
	e.assertClean(t)
}

func TestOverride_OutParams(t *testing.T) {
	e := newEnv(t)

	ops, err := e.b.Registry().BuildOpTable(reflect.TypeFor[tall]())
	if err != nil {
		t.Fatalf("BuildOpTable: %v", err)
	}
	if len(ops) != 1 || ops[0].Symbol != "sim_widget_get_preferred_size" {
		t.Fatalf("ops = %+v", ops)
	}

	w, err := bridge.Create[tall](e.b)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if e.b.Live() != 1 {
		t.Errorf("Live = %d, want 1", e.b.Live())
	}

	if err := w.QueueResize(); err != nil {
		t.Fatalf("QueueResize: %v", err)
	}
	if gw, gh := e.tk.Size(w.Ptr()); gw != 10 || gh != 500 {
		t.Errorf("native size = %dx%d, want 10x500", gw, gh)
	}

	pw, ph, err := w.Preferred()
	if err != nil || pw != 10 || ph != 500 {
		t.Errorf("Preferred = %d, %d, %v", pw, ph, err)
	}

	// operations the type does not override stay native
	if m, err := w.Measurement(sim.Vertical); err != nil || m != 500 {
		t.Errorf("Measurement = %d, %v", m, err)
	}

	w.Dispose()
	if e.b.Live() != 0 {
		t.Errorf("Live = %d after dispose", e.b.Live())
	}
	e.assertClean(t)
}

func TestOverride_PanicIsDeferred(t *testing.T) {
	e := newEnv(t)
	w, err := bridge.Create[faulty](e.b)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer w.Dispose()
	_ = w.SetSize(4, 4)

	// called from native code: the caller sees the zero result
	res, ok := e.rt.Invoke(w.Ptr(), "sim_widget_measure", 1, 0)
	if !ok || res[0] != 0 {
		t.Fatalf("Invoke = %v, %v; want [0]", res, ok)
	}

	_, err = w.Width()
	var ue *bridge.UnhandledError
	if !errors.As(err, &ue) {
		t.Fatalf("next call err = %v, want UnhandledError", err)
	}
	if ue.Panic != "boom" || ue.Op != "sim_widget_measure" || len(ue.Stack) == 0 {
		t.Errorf("unexpected failure: %+v", ue)
	}

	// observed exactly once
	if got, err := w.Width(); err != nil || got != 4 {
		t.Errorf("Width = %d, %v after the failure was observed", got, err)
	}
	if err := e.b.CheckUnhandled(); err != nil {
		t.Errorf("CheckUnhandled = %v", err)
	}

	// an error result from an override called through Go
	desc, err := w.Description()
	if !errors.As(err, &ue) || ue.Panic != nil || ue.Err == nil {
		t.Fatalf("Description = %q, %v", desc, err)
	}
	if !strings.Contains(err.Error(), "no description") {
		t.Errorf("error = %v", err)
	}

	if m, err := w.Measurement(sim.Horizontal); err == nil || m != 0 {
		t.Errorf("Measurement = %d, %v; want zero and an error", m, err)
	}
}

func TestOverride_SuperChain(t *testing.T) {
	e := newEnv(t)
	w, err := bridge.Create[braced](e.b)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	_ = w.SetLabel("x")

	desc, err := w.Description()
	if err != nil {
		t.Fatalf("Description: %v", err)
	}
	if !strings.HasPrefix(desc, "{[Go") || !strings.HasSuffix(desc, "(x)]}") {
		t.Errorf("Description = %q", desc)
	}

	// native code calling the virtual sees the same chain
	res, ok := e.rt.Invoke(w.Ptr(), "sim_widget_describe", 1)
	if !ok {
		t.Fatal("describe not dispatched")
	}
	s, _ := e.rt.ReadCString(native.Ptr(res[0]))
	e.rt.Free(native.Ptr(res[0]))
	if s != desc {
		t.Errorf("native describe = %q, want %q", s, desc)
	}

	// a super call started from Go runs the next managed level up
	res2, err := w.CallSuper("Describe")
	if err != nil {
		t.Fatalf("CallSuper: %v", err)
	}
	if up := res2[0].(string); !strings.HasPrefix(up, "[Go") || !strings.HasSuffix(up, "(x)]") {
		t.Errorf("CallSuper(Describe) = %q, want the framed level", up)
	}

	w.Dispose()
	e.assertClean(t)
}

func TestOverride_SuperChainPerObject(t *testing.T) {
	e := newEnv(t)
	var wg sync.WaitGroup
	for i := range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w, err := bridge.Create[braced](e.b)
			if err != nil {
				t.Errorf("Create: %v", err)
				return
			}
			defer w.Dispose()
			label := fmt.Sprint(i)
			_ = w.SetLabel(label)
			for range 20 {
				desc, err := w.Description()
				if err != nil || !strings.HasPrefix(desc, "{[") || !strings.HasSuffix(desc, "("+label+")]}") {
					t.Errorf("Description = %q, %v", desc, err)
					return
				}
			}
		}()
	}
	wg.Wait()
	e.assertClean(t)
}

func TestOverride_VoidChain(t *testing.T) {
	e := newEnv(t)
	c, err := bridge.Create[counter](e.b)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer c.Dispose()

	clicks := 0
	if _, ok := sim.Clicked.Connect(c, func(struct{}) { clicks++ }); !ok {
		t.Fatal("Connect failed")
	}
	for range 3 {
		if err := c.Click(); err != nil {
			t.Fatalf("Click: %v", err)
		}
	}
	n, _ := c.Clicks()
	if c.n != 3 || n != 3 || clicks != 3 {
		t.Errorf("override=%d native=%d listener=%d, want 3", c.n, n, clicks)
	}
}

func TestWrap_PinnedIdentity(t *testing.T) {
	e := newEnv(t)
	box, err := bridge.Create[sim.Container](e.b)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	w, err := bridge.Create[tall](e.b)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := box.Add(w); err != nil {
		t.Fatalf("Add: %v", err)
	}

	child, err := box.Child(0)
	if err != nil {
		t.Fatalf("Child: %v", err)
	}
	if child != bridge.Wrapper(w) {
		t.Fatalf("child = %T %p, want the managed wrapper %p", child, child, w)
	}

	asWidget, err := bridge.As[*sim.Widget](w)
	if err != nil {
		t.Fatalf("As: %v", err)
	}
	if !asWidget.Equal(w) || asWidget.Owning() {
		t.Error("As should return a borrowed view of the same object")
	}

	// the container keeps the instance alive after the wrapper is gone;
	// its overrides then forward to the native parent
	w.Dispose()
	child, err = box.Child(0)
	if err != nil {
		t.Fatalf("Child: %v", err)
	}
	view, ok := child.(*sim.Widget)
	if !ok {
		t.Fatalf("child is %T, want *sim.Widget", child)
	}
	if err := view.QueueResize(); err != nil {
		t.Fatalf("QueueResize: %v", err)
	}
	if gw, gh := e.tk.Size(view.Ptr()); gw != 100 || gh != 40 {
		t.Errorf("size = %dx%d, want the native 100x40", gw, gh)
	}

	box.Dispose()
	e.assertClean(t)
}

func TestRetain(t *testing.T) {
	e := newEnv(t)
	box, _ := bridge.Create[sim.Container](e.b)
	btn, _ := sim.NewButtonWithLabel(e.b, "keep")
	_ = box.Add(btn)
	btn.Dispose()

	child, err := box.Child(0)
	if err != nil {
		t.Fatalf("Child: %v", err)
	}
	kept, err := child.(*sim.Button).Retain()
	if err != nil {
		t.Fatalf("Retain: %v", err)
	}
	ptr := kept.(*sim.Button).Ptr()
	if !kept.(*sim.Button).Owning() {
		t.Error("retained wrapper should own a reference")
	}

	box.Dispose()
	if !e.rt.Alive(ptr) {
		t.Fatal("retained object died with its container")
	}
	if label, _ := kept.(*sim.Button).Label(); label != "keep" {
		t.Errorf("Label = %q", label)
	}
	kept.Dispose()
	e.assertClean(t)
}

func TestCleanupBackstop(t *testing.T) {
	e := newEnv(t)
	func() {
		for range 4 {
			if _, err := sim.NewButtonWithLabel(e.b, "lost"); err != nil {
				t.Fatalf("NewButtonWithLabel: %v", err)
			}
		}
	}()

	deadline := time.Now().Add(5 * time.Second)
	for e.rt.Stats().LiveObjects > 0 && time.Now().Before(deadline) {
		runtime.GC()
		time.Sleep(10 * time.Millisecond)
	}
	if n := e.rt.Stats().LiveObjects; n != 0 {
		t.Fatalf("%d objects still alive after GC", n)
	}
	e.assertClean(t)
}

func TestCleanupAfterDispose(t *testing.T) {
	e := newEnv(t)
	func() {
		btn, err := sim.NewButtonWithLabel(e.b, "done")
		if err != nil {
			t.Fatalf("NewButtonWithLabel: %v", err)
		}
		btn.Dispose()
	}()
	for range 5 {
		runtime.GC()
		time.Sleep(5 * time.Millisecond)
	}
	if s := e.rt.Stats(); s.Unrefs != 1 || s.InvalidRefs != 0 {
		t.Errorf("Unrefs=%d InvalidRefs=%d, want exactly one release", s.Unrefs, s.InvalidRefs)
	}
}

func TestEvents_SizeChangedScenario(t *testing.T) {
	e := newEnv(t)
	w := newWidget(t, e)
	defer w.Dispose()
	ptr := w.Ptr()

	var gotA, gotB []int32
	idA, ok := sim.SizeChanged.Connect(w, func(v int32) { gotA = append(gotA, v) })
	if !ok {
		t.Fatal("connect A failed")
	}
	idB, ok := sim.SizeChanged.Connect(w, func(v int32) { gotB = append(gotB, v) })
	if !ok {
		t.Fatal("connect B failed")
	}

	if s := e.rt.Stats(); s.Connects != 1 || s.Disconnects != 0 {
		t.Fatalf("Connects=%d Disconnects=%d, want 1/0", s.Connects, s.Disconnects)
	}

	emit := func(v int32) {
		t.Helper()
		if _, err := e.rt.EmitByName(ptr, simrt.ToolkitLibrary, simrt.EventSizeChanged, uint64(v)); err != nil {
			t.Fatalf("emit: %v", err)
		}
	}

	emit(320)
	if len(gotA) != 1 || len(gotB) != 1 || gotA[0] != 320 || gotB[0] != 320 {
		t.Fatalf("after first emit A=%v B=%v", gotA, gotB)
	}

	if !sim.SizeChanged.Disconnect(w, idA) {
		t.Fatal("disconnect A failed")
	}
	emit(400)
	if len(gotA) != 1 || len(gotB) != 2 || gotB[1] != 400 {
		t.Fatalf("after second emit A=%v B=%v", gotA, gotB)
	}
	if s := e.rt.Stats(); s.Disconnects != 0 {
		t.Fatalf("deregistered with B still subscribed")
	}

	if !sim.SizeChanged.Disconnect(w, idB) {
		t.Fatal("disconnect B failed")
	}
	if s := e.rt.Stats(); s.Disconnects != 1 || e.rt.Handlers(ptr) != 0 {
		t.Fatalf("Disconnects=%d Handlers=%d after the last unsubscribe", s.Disconnects, e.rt.Handlers(ptr))
	}
	emit(500)
	if len(gotA) != 1 || len(gotB) != 2 {
		t.Fatalf("after third emit A=%v B=%v", gotA, gotB)
	}
	if s := e.rt.Stats(); s.Connects != 1 || s.Disconnects != 1 {
		t.Errorf("Connects=%d Disconnects=%d, want 1/1", s.Connects, s.Disconnects)
	}

	if w.Disconnect(idB) {
		t.Error("second disconnect of one listener succeeded")
	}
}

func TestEvents_OrderAndPanics(t *testing.T) {
	e := newEnv(t)
	w := newWidget(t, e)
	defer w.Dispose()

	var order []string
	for _, name := range []string{"first", "second", "third"} {
		_, ok := w.Connect(simrt.EventVisibilityChanged, func(v any) {
			order = append(order, name)
			if name == "second" {
				panic("listener failure")
			}
		})
		if !ok {
			t.Fatal("Connect failed")
		}
	}

	if err := w.SetVisible(false); err != nil {
		t.Fatalf("SetVisible: %v", err)
	}
	if strings.Join(order, ",") != "first,second,third" {
		t.Errorf("order = %v", order)
	}
	if err := e.b.CheckUnhandled(); err != nil {
		t.Errorf("listener panic leaked into the unhandled slot: %v", err)
	}
	if s := e.rt.Stats(); s.Connects != 1 {
		t.Errorf("Connects = %d, want 1", s.Connects)
	}
}

func TestEvents_Payloads(t *testing.T) {
	e := newEnv(t)
	box, _ := bridge.Create[sim.Container](e.b)
	btn, _ := sim.NewButtonWithLabel(e.b, "b")

	var visible []bool
	var opacity []float64
	var added []*sim.Widget
	var toggled []bool
	clicked := 0

	sim.VisibilityChanged.Connect(box, func(v bool) { visible = append(visible, v) })
	sim.OpacityChanged.Connect(box, func(v float64) { opacity = append(opacity, v) })
	sim.ChildAdded.Connect(box, func(w *sim.Widget) { added = append(added, w) })
	sim.Toggled.Connect(btn, func(v bool) { toggled = append(toggled, v) })
	sim.Clicked.Connect(btn, func(struct{}) { clicked++ })

	_ = box.SetVisible(false)
	_ = box.SetOpacity(0.25)
	_ = box.Add(btn)
	_ = btn.SetActive(true)
	_ = btn.Click()

	if len(visible) != 1 || visible[0] {
		t.Errorf("visible = %v", visible)
	}
	if len(opacity) != 1 || opacity[0] != 0.25 {
		t.Errorf("opacity = %v", opacity)
	}
	if len(added) != 1 || !added[0].Equal(btn) {
		t.Errorf("added = %v", added)
	}
	if len(toggled) != 1 || !toggled[0] {
		t.Errorf("toggled = %v", toggled)
	}
	if clicked != 1 {
		t.Errorf("clicked = %d", clicked)
	}

	var raw []any
	box.Connect(simrt.EventChildAdded, func(v any) { raw = append(raw, v) })
	extra, _ := sim.NewButtonWithLabel(e.b, "c")
	_ = box.Add(extra)
	if len(raw) != 1 {
		t.Fatalf("raw = %v", raw)
	}
	if _, ok := raw[0].(*sim.Button); !ok {
		t.Errorf("untyped object payload is %T, want the most specific wrapper", raw[0])
	}

	extra.Dispose()
	btn.Dispose()
	box.Dispose()
	e.assertClean(t)
}

func TestEvents_Unresolved(t *testing.T) {
	e := newEnv(t)
	w := newWidget(t, e)
	defer w.Dispose()

	if _, ok := w.Connect("melted", func(any) {}); ok {
		t.Error("unknown event connected")
	}
	if s := e.rt.Stats(); s.Connects != 0 {
		t.Errorf("Connects = %d", s.Connects)
	}

	// resolution failures are not cached
	e.rt.DefineEvent(simrt.ToolkitLibrary, "melted")
	if _, ok := w.Connect("melted", func(any) {}); !ok {
		t.Error("event defined later should resolve")
	}

	var unbound sim.Widget
	if _, ok := unbound.Connect(simrt.EventClicked, func(any) {}); ok {
		t.Error("unbound wrapper connected")
	}
}

func TestEvents_DisposeDropsOwnListeners(t *testing.T) {
	e := newEnv(t)
	box, _ := bridge.Create[sim.Container](e.b)
	btn, _ := sim.NewButtonWithLabel(e.b, "b")
	_ = box.Add(btn)

	child, _ := box.Child(0)
	view := child.(*sim.Button)

	var fromOwner, fromView int
	ownerID, _ := sim.Clicked.Connect(btn, func(struct{}) { fromOwner++ })
	sim.Clicked.Connect(view, func(struct{}) { fromView++ })
	sim.Clicked.Connect(view, func(struct{}) { fromView++ })

	if view.Disconnect(ownerID) {
		t.Error("a view removed a listener owned by another wrapper")
	}

	view.Dispose()
	_ = btn.Click()
	if fromOwner != 1 || fromView != 0 {
		t.Errorf("owner=%d view=%d after disposing the view", fromOwner, fromView)
	}
	if s := e.rt.Stats(); s.Connects != 1 || s.Disconnects != 0 {
		t.Errorf("Connects=%d Disconnects=%d", s.Connects, s.Disconnects)
	}

	btn.Dispose()
	if s := e.rt.Stats(); s.Disconnects != 1 {
		t.Errorf("Disconnects = %d after the last listener owner went away", s.Disconnects)
	}
	box.Dispose()
	e.assertClean(t)
}

func TestEvents_ConcurrentSubscribers(t *testing.T) {
	e := newEnv(t)
	w := newWidget(t, e)
	defer w.Dispose()

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				id, ok := sim.Toggled.Connect(w, func(bool) {})
				if !ok {
					t.Error("Connect failed")
					return
				}
				if !w.Disconnect(id) {
					t.Error("Disconnect failed")
					return
				}
			}
		}()
	}
	wg.Wait()

	s := e.rt.Stats()
	if s.Connects != s.Disconnects || s.Connects == 0 {
		t.Errorf("Connects=%d Disconnects=%d", s.Connects, s.Disconnects)
	}
	if e.rt.Handlers(w.Ptr()) != 0 {
		t.Errorf("Handlers = %d", e.rt.Handlers(w.Ptr()))
	}
}
